package mail

import (
	"context"
	"net"
	"net/textproto"
	"strings"
	"time"

	"github.com/maxaizer/jobboard-core/internal/domain/models"
	"github.com/maxaizer/jobboard-core/internal/logger"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	gomail "github.com/wneessen/go-mail"
	"golang.org/x/time/rate"
)

var ErrInvalidRecipient = errors.New("invalid recipient address")

// headers set through dedicated Msg setters
var reservedHeaders = map[string]bool{"from": true, "to": true, "subject": true, "content-type": true}

type deliverFunc func(ctx context.Context, msg *gomail.Msg) error

type Client struct {
	deliver     deliverFunc
	rateLimiter *rate.Limiter
	retries     int
	retryDelay  time.Duration
}

func NewClient(host string, port int, username, password string) (*Client, error) {
	options := []gomail.Option{
		gomail.WithPort(port),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
		gomail.WithDialContextFunc(dialWithDeadline),
	}
	if username != "" {
		options = append(options,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(username),
			gomail.WithPassword(password),
		)
	}

	smtpClient, err := gomail.NewClient(host, options...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create smtp client")
	}
	return &Client{
		deliver: func(ctx context.Context, msg *gomail.Msg) error {
			return smtpClient.DialAndSendWithContext(ctx, msg)
		},
		retryDelay: time.Second,
	}, nil
}

// dialWithDeadline bounds the whole SMTP exchange, greeting included, by the
// deadline of ctx.
func dialWithDeadline(ctx context.Context, network, address string) (net.Conn, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, network, address)
	if err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err = conn.SetDeadline(deadline); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}
	return conn, nil
}

func (c *Client) SetRateLimit(maxSendsPerSecond float32) {
	c.rateLimiter = rate.NewLimiter(rate.Limit(maxSendsPerSecond), 1)
}

// SetRetries sets how many times a failed SMTP exchange is retried.
func (c *Client) SetRetries(retries int, delay time.Duration) {
	c.retries = retries
	c.retryDelay = delay
}

func (c *Client) setDeliverFunc(deliver deliverFunc) {
	c.deliver = deliver
}

func (c *Client) Send(ctx context.Context, msg models.Message) error {
	mailMsg, err := buildMessage(msg)
	if err != nil {
		return err
	}

	if c.rateLimiter != nil {
		if err = c.rateLimiter.Wait(ctx); err != nil {
			return err
		}
	}

	_, _, err = lo.AttemptWhileWithDelay(c.retries+1, c.retryDelay, func(i int, _ time.Duration) (error, bool) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr, false
		}
		if i > 0 {
			log.Warnf("smtp send to %s failed, retrying (%d)", msg.To, i)
		}
		sendErr := c.deliver(ctx, mailMsg)
		return sendErr, isTransient(sendErr)
	})
	if err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeMail).Errorf("smtp send to %s failed: %v", msg.To, err)
	}
	return err
}

func buildMessage(msg models.Message) (*gomail.Msg, error) {
	mailMsg := gomail.NewMsg()
	if err := mailMsg.To(msg.To); err != nil {
		return nil, errors.Wrapf(ErrInvalidRecipient, "%q", msg.To)
	}
	if err := mailMsg.From(msg.Headers["From"]); err != nil {
		return nil, errors.Wrapf(err, "invalid sender %q", msg.Headers["From"])
	}
	mailMsg.Subject(msg.Subject)
	mailMsg.SetDate()
	mailMsg.SetMessageID()
	for name, value := range msg.Headers {
		if !reservedHeaders[strings.ToLower(name)] {
			mailMsg.SetGenHeader(gomail.Header(name), value)
		}
	}
	mailMsg.SetBodyString(gomail.TypeTextHTML, msg.HTMLBody)
	return mailMsg, nil
}

// isTransient reports 4xx SMTP replies and network errors, which are worth a
// retry. 5xx replies are permanent.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	var sendErr *gomail.SendError
	if errors.As(err, &sendErr) && sendErr.IsTemp() {
		return true
	}
	var replyErr *textproto.Error
	if errors.As(err, &replyErr) {
		return replyErr.Code >= 400 && replyErr.Code < 500
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
