package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/maxaizer/jobboard-core/internal/config"
	"github.com/maxaizer/jobboard-core/internal/domain/models"
	"github.com/maxaizer/jobboard-core/internal/metrics"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const reasonTimeout = "timeout"

type SendResult struct {
	Status models.NotificationStatus
	Reason string
}

func Sent() SendResult {
	return SendResult{Status: models.NotificationSent}
}

func Failed(reason string) SendResult {
	return SendResult{Status: models.NotificationFailed, Reason: reason}
}

func (r SendResult) OK() bool {
	return r.Status == models.NotificationSent
}

// Send hands one message to the transport within the configured timeout.
// It never returns an error: every failure is folded into the result.
func (d *Dispatcher) Send(ctx context.Context, recipient, subject, body string) SendResult {
	ctx, cancel := context.WithTimeout(ctx, d.options.SendTimeout)
	defer cancel()

	msg := models.Message{
		To:       recipient,
		Subject:  subject,
		HTMLBody: body,
		Headers: map[string]string{
			"From":         d.fromHeader(ctx),
			"Content-Type": "text/html; charset=UTF-8",
		},
	}

	transportName := "mail"
	if models.IsTelegramRecipient(recipient) {
		transportName = "telegram"
	}

	start := time.Now()
	done := make(chan error, 1)
	go func() {
		done <- d.transport.Send(ctx, msg)
	}()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	metrics.SendDuration.WithLabelValues(transportName).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		return Sent()
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		log.Warnf("sending %q to %s timed out", subject, recipient)
		return Failed(reasonTimeout)
	default:
		log.Warnf("sending %q to %s failed: %v", subject, recipient, err)
		return Failed(err.Error())
	}
}

func (d *Dispatcher) fromHeader(ctx context.Context) string {
	email := d.settings.String(ctx, config.OptionFromEmail, "")
	name := d.settings.String(ctx, config.OptionFromName, "")
	if name == "" {
		return email
	}
	return fmt.Sprintf("%s <%s>", name, email)
}
