package config

import (
	"os"
	"strconv"
	"strings"
)

// Environment variables recognized by FromEnv.
const (
	EnvOutlookToken  = "OUTLOOK_TOKEN"
	EnvTeamsWebhook  = "TEAMS_WEBHOOK"
	EnvJiraURL       = "JIRA_URL"
	EnvJiraEmail     = "JIRA_EMAIL"
	EnvJiraToken     = "JIRA_TOKEN"
	EnvJiraProject   = "JIRA_PROJECT"
	EnvJiraIssueType = "JIRA_ISSUE_TYPE"
	EnvKafkaBrokers  = "HERMES_KAFKA_BROKERS"
	EnvKafkaTopic    = "HERMES_KAFKA_TOPIC"
	EnvSMTPHost      = "HERMES_SMTP_HOST"
	EnvSMTPPort      = "HERMES_SMTP_PORT"
)

// DefaultIssueType is used when no Jira issue type is configured.
const DefaultIssueType = "Task"

// Mail configures the mail channel. Origin and Destination are mandatory at
// wrap time; a non-empty Token routes delivery through the cloud mail API
// instead of the SMTP relay.
type Mail struct {
	Origin      string `yaml:"origin"`
	Destination string `yaml:"destination"`
	Token       string `yaml:"token"`

	// SMTPHost and SMTPPort locate the local relay used when no Token is
	// set. Defaults: localhost:25.
	SMTPHost string `yaml:"smtpHost"`
	SMTPPort int    `yaml:"smtpPort"`

	// GraphEndpoint overrides the cloud mail send endpoint. Tests point
	// this at a local server; production leaves it empty.
	GraphEndpoint string `yaml:"graphEndpoint"`
}

// Chat configures the chat webhook channel.
type Chat struct {
	WebhookURL string `yaml:"webhook"`
}

// Configured reports whether the chat channel is active.
func (c Chat) Configured() bool {
	return c.WebhookURL != ""
}

// Ticket configures the issue tracker channel. All four of URL, Email, Token
// and Project must be present for the channel to be active.
type Ticket struct {
	URL       string `yaml:"url"`
	Email     string `yaml:"email"`
	Token     string `yaml:"token"`
	Project   string `yaml:"project"`
	IssueType string `yaml:"issueType"`
}

// Configured reports whether the ticket channel is active.
func (t Ticket) Configured() bool {
	return t.URL != "" && t.Email != "" && t.Token != "" && t.Project != ""
}

// Audit configures the optional Kafka escalation audit sink.
type Audit struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// Configured reports whether the audit sink is active.
func (a Audit) Configured() bool {
	return len(a.Brokers) > 0 && a.Topic != ""
}

// Channels is the full channel configuration consumed by the dispatcher.
type Channels struct {
	Mail   Mail   `yaml:"mail"`
	Chat   Chat   `yaml:"chat"`
	Ticket Ticket `yaml:"ticket"`
	Audit  Audit  `yaml:"audit"`
}

// FromEnv resolves the optional channel configuration from the environment,
// exactly once, at the boundary. Origin and destination addresses are
// wrap-time arguments and are passed in by the caller.
func FromEnv(origin, destination string) Channels {
	cfg := Channels{
		Mail: Mail{
			Origin:      origin,
			Destination: destination,
			Token:       os.Getenv(EnvOutlookToken),
			SMTPHost:    os.Getenv(EnvSMTPHost),
		},
		Chat: Chat{
			WebhookURL: os.Getenv(EnvTeamsWebhook),
		},
		Ticket: Ticket{
			URL:       os.Getenv(EnvJiraURL),
			Email:     os.Getenv(EnvJiraEmail),
			Token:     os.Getenv(EnvJiraToken),
			Project:   os.Getenv(EnvJiraProject),
			IssueType: os.Getenv(EnvJiraIssueType),
		},
		Audit: Audit{
			Topic: os.Getenv(EnvKafkaTopic),
		},
	}

	if port := os.Getenv(EnvSMTPPort); port != "" {
		if p, err := strconv.Atoi(port); err == nil && p > 0 {
			cfg.Mail.SMTPPort = p
		}
	}
	if brokers := os.Getenv(EnvKafkaBrokers); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.Audit.Brokers = append(cfg.Audit.Brokers, b)
			}
		}
	}
	if cfg.Ticket.IssueType == "" {
		cfg.Ticket.IssueType = DefaultIssueType
	}

	return cfg
}
