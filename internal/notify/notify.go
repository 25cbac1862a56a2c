// Package notify sends email alerts when tasks fail. Alerts are optional:
// the pipeline only wires a Notifier when an API key and recipient are
// configured.
package notify

import (
	"fmt"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

type sendClient interface {
	Send(email *mail.SGMailV3) (*rest.Response, error)
}

type Notifier struct {
	client      sendClient
	fromName    string
	fromAddress string
	to          string
	log         *zap.Logger
}

func New(apiKey, fromName, fromAddress, to string, log *zap.Logger) *Notifier {
	return &Notifier{
		client:      sendgrid.NewSendClient(apiKey),
		fromName:    fromName,
		fromAddress: fromAddress,
		to:          to,
		log:         log,
	}
}

// TaskFailed emails the failure to the configured recipient. Send errors are
// logged, never propagated; an alert failure must not affect the pipeline.
func (n *Notifier) TaskFailed(description string, taskErr error) {
	subject := "Task failed: " + truncate(description, 80)
	body := fmt.Sprintf("Task:\n%s\n\nError:\n%v\n", description, taskErr)

	from := mail.NewEmail(n.fromName, n.fromAddress)
	toEmail := mail.NewEmail("", n.to)
	email := mail.NewSingleEmail(from, subject, toEmail, body, body)

	response, err := n.client.Send(email)
	if err != nil {
		n.log.Error("failed to send failure alert", zap.Error(err))
		return
	}
	if response.StatusCode >= 400 {
		n.log.Error("sendgrid rejected failure alert", zap.Int("status", response.StatusCode))
		return
	}

	n.log.Info("failure alert sent", zap.String("to", n.to), zap.Int("status", response.StatusCode))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
