package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	botApi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/maxaizer/jobboard-core/internal/domain/models"
	"github.com/maxaizer/jobboard-core/internal/logger"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var ErrInvalidChat = errors.New("invalid telegram recipient")

type sender interface {
	Send(chattable botApi.Chattable) (botApi.Message, error)
}

// Transport delivers notifications addressed as "telegram:<chat id>".
type Transport struct {
	api sender
}

func NewTransport(api sender) *Transport {
	return &Transport{api: api}
}

// telegram only understands a small subset of html
var htmlReplacer = strings.NewReplacer(
	"<p>", "", "</p>", "\n",
	"<strong>", "<b>", "</strong>", "</b>",
	"<br>", "\n", "<br/>", "\n",
)

func (t *Transport) Send(ctx context.Context, msg models.Message) error {
	chatID, err := ChatID(msg.To)
	if err != nil {
		return err
	}
	if err = ctx.Err(); err != nil {
		return err
	}

	text := fmt.Sprintf("<b>%s</b>\n\n%s", msg.Subject, strings.TrimSpace(htmlReplacer.Replace(msg.HTMLBody)))
	message := botApi.NewMessage(chatID, text)
	message.ParseMode = botApi.ModeHTML

	if _, err = t.api.Send(message); err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeTgApi).Errorf("failed to send notification to chat %d: %v", chatID, err)
	}
	return err
}

// ChatID parses the chat id out of a telegram recipient.
func ChatID(recipient string) (int64, error) {
	if !models.IsTelegramRecipient(recipient) {
		return 0, errors.Wrapf(ErrInvalidChat, "%q", recipient)
	}
	chatID, err := strconv.ParseInt(strings.TrimPrefix(recipient, models.TelegramRecipientPrefix), 10, 64)
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidChat, "%q", recipient)
	}
	return chatID, nil
}
