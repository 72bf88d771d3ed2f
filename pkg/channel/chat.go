package channel

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/EvanWAppel/hermes/pkg/config"
	"github.com/EvanWAppel/hermes/pkg/report"
	"github.com/EvanWAppel/hermes/pkg/version"
)

// ChatDriver posts the report to a chat webhook with the subject bolded
// above the body.
type ChatDriver struct {
	url    string
	rest   *resty.Client
	logger *zap.SugaredLogger
}

// NewChatDriver creates the chat channel driver.
func NewChatDriver(cfg config.Chat, logger *zap.SugaredLogger) *ChatDriver {
	rest := resty.New().
		SetTimeout(requestTimeout).
		SetHeader("User-Agent", version.UserAgent())

	return &ChatDriver{
		url:    cfg.WebhookURL,
		rest:   rest,
		logger: logger.Named("chat"),
	}
}

func (d *ChatDriver) Name() string { return "chat" }

func (d *ChatDriver) Send(ctx context.Context, rep report.Report) error {
	payload := map[string]string{
		"text": fmt.Sprintf("**%s**\n\n%s", rep.Subject, rep.Body),
	}

	resp, err := d.rest.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(d.url)
	if err != nil {
		return &DeliveryError{Channel: d.Name(), Err: err}
	}
	if resp.IsError() {
		return &DeliveryError{
			Channel: d.Name(),
			Err:     fmt.Errorf("webhook returned status %d: %s", resp.StatusCode(), resp.String()),
		}
	}

	d.logger.Infow("Failure report posted to chat webhook", "subject", rep.Subject)
	return nil
}
