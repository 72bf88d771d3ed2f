package channel

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/EvanWAppel/hermes/pkg/config"
	"github.com/EvanWAppel/hermes/pkg/report"
	"github.com/EvanWAppel/hermes/pkg/version"
)

// TicketDriver files an issue in a Jira-compatible tracker with the report
// subject as summary and the body as description.
type TicketDriver struct {
	cfg    config.Ticket
	rest   *resty.Client
	logger *zap.SugaredLogger
}

// NewTicketDriver creates the ticket channel driver.
func NewTicketDriver(cfg config.Ticket, logger *zap.SugaredLogger) *TicketDriver {
	if cfg.IssueType == "" {
		cfg.IssueType = config.DefaultIssueType
	}

	rest := resty.New().
		SetTimeout(requestTimeout).
		SetHeader("User-Agent", version.UserAgent())

	return &TicketDriver{
		cfg:    cfg,
		rest:   rest,
		logger: logger.Named("ticket"),
	}
}

func (d *TicketDriver) Name() string { return "ticket" }

// issueFields is the issue-creation payload.
type issueFields struct {
	Fields struct {
		Summary     string `json:"summary"`
		Description string `json:"description"`
		Project     struct {
			Key string `json:"key"`
		} `json:"project"`
		IssueType struct {
			Name string `json:"name"`
		} `json:"issuetype"`
	} `json:"fields"`
}

func (d *TicketDriver) Send(ctx context.Context, rep report.Report) error {
	var payload issueFields
	payload.Fields.Summary = rep.Subject
	payload.Fields.Description = rep.Body
	payload.Fields.Project.Key = d.cfg.Project
	payload.Fields.IssueType.Name = d.cfg.IssueType

	endpoint := strings.TrimRight(d.cfg.URL, "/") + "/rest/api/3/issue"

	resp, err := d.rest.R().
		SetContext(ctx).
		SetBasicAuth(d.cfg.Email, d.cfg.Token).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(endpoint)
	if err != nil {
		return &DeliveryError{Channel: d.Name(), Err: err}
	}
	if resp.IsError() {
		return &DeliveryError{
			Channel: d.Name(),
			Err:     fmt.Errorf("tracker returned status %d: %s", resp.StatusCode(), resp.String()),
		}
	}

	d.logger.Infow("Failure ticket created",
		"project", d.cfg.Project,
		"issueType", d.cfg.IssueType,
		"summary", rep.Subject)
	return nil
}
