package channel

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/EvanWAppel/hermes/pkg/config"
	"github.com/EvanWAppel/hermes/pkg/report"
	"github.com/EvanWAppel/hermes/pkg/version"
)

// defaultGraphEndpoint is the cloud mail send endpoint used when the
// configuration does not override it.
const defaultGraphEndpoint = "https://graph.microsoft.com/v1.0/me/sendMail"

// MailDriver sends the report as an email. When an API token is configured
// the message goes to the cloud mail endpoint over HTTPS; otherwise it is
// submitted to the local SMTP relay. The choice is made per send so a driver
// never opens an SMTP connection on the API path.
type MailDriver struct {
	cfg    config.Mail
	rest   *resty.Client
	logger *zap.SugaredLogger
}

// NewMailDriver creates the mail channel driver.
func NewMailDriver(cfg config.Mail, logger *zap.SugaredLogger) *MailDriver {
	if cfg.SMTPHost == "" {
		cfg.SMTPHost = "localhost"
	}
	if cfg.SMTPPort == 0 {
		cfg.SMTPPort = 25
	}
	if cfg.GraphEndpoint == "" {
		cfg.GraphEndpoint = defaultGraphEndpoint
	}

	rest := resty.New().
		SetTimeout(requestTimeout).
		SetHeader("User-Agent", version.UserAgent())

	return &MailDriver{
		cfg:    cfg,
		rest:   rest,
		logger: logger.Named("mail"),
	}
}

func (d *MailDriver) Name() string { return "mail" }

// Send delivers the report from the configured origin to the destination.
func (d *MailDriver) Send(ctx context.Context, rep report.Report) error {
	if d.cfg.Token != "" {
		return d.sendViaAPI(ctx, rep)
	}
	return d.sendViaSMTP(rep)
}

// graphMessage is the cloud mail API send payload.
type graphMessage struct {
	Message struct {
		Subject string `json:"subject"`
		Body    struct {
			ContentType string `json:"contentType"`
			Content     string `json:"content"`
		} `json:"body"`
		From         graphRecipient   `json:"from"`
		ToRecipients []graphRecipient `json:"toRecipients"`
	} `json:"message"`
	SaveToSentItems string `json:"saveToSentItems"`
}

type graphRecipient struct {
	EmailAddress struct {
		Address string `json:"address"`
	} `json:"emailAddress"`
}

func recipient(address string) graphRecipient {
	var r graphRecipient
	r.EmailAddress.Address = address
	return r
}

func (d *MailDriver) sendViaAPI(ctx context.Context, rep report.Report) error {
	payload := graphMessage{SaveToSentItems: "false"}
	payload.Message.Subject = rep.Subject
	payload.Message.Body.ContentType = "Text"
	payload.Message.Body.Content = rep.Body
	payload.Message.From = recipient(d.cfg.Origin)
	payload.Message.ToRecipients = []graphRecipient{recipient(d.cfg.Destination)}

	resp, err := d.rest.R().
		SetContext(ctx).
		SetAuthToken(d.cfg.Token).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(d.cfg.GraphEndpoint)
	if err != nil {
		return &DeliveryError{Channel: d.Name(), Err: err}
	}
	if resp.IsError() {
		return &DeliveryError{
			Channel: d.Name(),
			Err:     fmt.Errorf("mail API returned status %d: %s", resp.StatusCode(), resp.String()),
		}
	}

	d.logger.Infow("Failure report sent via mail API",
		"destination", d.cfg.Destination,
		"subject", rep.Subject)
	return nil
}

func (d *MailDriver) sendViaSMTP(rep report.Report) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", d.cfg.Origin)
	msg.SetHeader("To", d.cfg.Destination)
	msg.SetHeader("Subject", rep.Subject)
	msg.SetBody("text/plain", rep.Body)

	dialer := gomail.NewDialer(d.cfg.SMTPHost, d.cfg.SMTPPort, "", "")
	if err := dialer.DialAndSend(msg); err != nil {
		return &DeliveryError{Channel: d.Name(), Err: err}
	}

	d.logger.Infow("Failure report sent via SMTP relay",
		"host", d.cfg.SMTPHost,
		"port", d.cfg.SMTPPort,
		"destination", d.cfg.Destination,
		"subject", rep.Subject)
	return nil
}
