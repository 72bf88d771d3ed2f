package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"
)

// FileConfig is the YAML configuration accepted by the hermes CLI. Durations
// are strings in Go duration syntax ("30s", "2m"). Retries is a pointer so an
// omitted key is distinguishable from an explicit zero.
type FileConfig struct {
	Origin      string   `yaml:"origin" validate:"required,email"`
	Destination string   `yaml:"destination" validate:"required,email"`
	Template    string   `yaml:"template"`
	Retries     *int     `yaml:"retries" validate:"omitempty,gte=0"`
	Delay       string   `yaml:"delay" validate:"omitempty"`
	Channels    Channels `yaml:"channels"`
}

var validate = validator.New()

// Load reads and validates a hermes config file.
func Load(path string) (FileConfig, error) {
	var cfg FileConfig

	content, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("trying to open hermes config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return cfg, fmt.Errorf("error unmarshaling YAML %s: %w", path, err)
	}

	if err := validate.Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid hermes config %s: %w", path, err)
	}
	if _, err := cfg.ParsedDelay(); err != nil {
		return cfg, fmt.Errorf("invalid delay in %s: %w", path, err)
	}

	// Origin/destination in the file also populate the mail channel unless
	// the channels block overrides them.
	if cfg.Channels.Mail.Origin == "" {
		cfg.Channels.Mail.Origin = cfg.Origin
	}
	if cfg.Channels.Mail.Destination == "" {
		cfg.Channels.Mail.Destination = cfg.Destination
	}
	if cfg.Channels.Ticket.IssueType == "" {
		cfg.Channels.Ticket.IssueType = DefaultIssueType
	}

	return cfg, nil
}

// ParsedDelay returns the configured inter-retry delay, defaulting to 60s
// when unset.
func (c FileConfig) ParsedDelay() (time.Duration, error) {
	if c.Delay == "" {
		return 60 * time.Second, nil
	}
	return time.ParseDuration(c.Delay)
}

// ParsedRetries returns the configured retry count, defaulting to 1 when the
// file omits the key. An explicit zero is honored.
func (c FileConfig) ParsedRetries() int {
	if c.Retries == nil {
		return 1
	}
	return *c.Retries
}
