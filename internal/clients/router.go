// Package clients holds the outbound notification transports.
package clients

import (
	"context"

	"github.com/maxaizer/jobboard-core/internal/domain/models"
	"github.com/pkg/errors"
)

var ErrNoTransport = errors.New("no transport for recipient")

type transport interface {
	Send(ctx context.Context, msg models.Message) error
}

// Router picks the telegram transport for "telegram:" recipients and the mail
// transport for everything else. Either may be nil when not configured.
type Router struct {
	mail     transport
	telegram transport
}

func NewRouter(mail, telegram transport) *Router {
	return &Router{mail: mail, telegram: telegram}
}

func (r *Router) Send(ctx context.Context, msg models.Message) error {
	target := r.mail
	if models.IsTelegramRecipient(msg.To) {
		target = r.telegram
	}
	if target == nil {
		return errors.Wrapf(ErrNoTransport, "%q", msg.To)
	}
	return target.Send(ctx, msg)
}
