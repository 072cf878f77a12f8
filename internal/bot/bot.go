package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	botApi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/maxaizer/jobboard-core/internal/domain/access"
	"github.com/maxaizer/jobboard-core/internal/domain/events"
	"github.com/maxaizer/jobboard-core/internal/domain/models"
	"github.com/maxaizer/jobboard-core/internal/logger"
	"github.com/maxaizer/jobboard-core/internal/notifications"
	"github.com/maxaizer/jobboard-core/internal/repositories"
	"github.com/maxaizer/jobboard-core/internal/services"
	log "github.com/sirupsen/logrus"
)

type Services struct {
	Users      userDirectory
	Executor   transitionExecutor
	Dispatcher notificationResender
	Logs       notificationLogs
}

type userDirectory interface {
	GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
}

type transitionExecutor interface {
	Apply(ctx context.Context, actor models.Actor, ref models.EntityRef, requested models.Status) (*events.TransitionEvent, error)
	ApplyBulk(ctx context.Context, actor models.Actor, items []services.BulkItem) services.BulkResult
	Withdraw(ctx context.Context, actor models.Actor, applicationID int64) (*events.TransitionEvent, error)
}

type notificationResender interface {
	Resend(ctx context.Context, logID int64) (*models.NotificationLog, error)
}

type notificationLogs interface {
	GetByStatus(ctx context.Context, status models.NotificationStatus, limit int) ([]models.NotificationLog, error)
}

type updatesSource interface {
	GetUpdatesChan(config botApi.UpdateConfig) botApi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot is the admin surface of the lifecycle core: registered users drive
// transitions and administrators inspect and resend failed notifications.
type Bot struct {
	api          apiInterface
	updates      updatesSource
	services     Services
	mu           sync.Mutex
	userContexts map[int64]*userContext
}

const (
	transitionCommandName = "transition"
	withdrawCommandName   = "withdraw"
	resendCommandName     = "resend"
	failedCommandName     = "failed"
	cancelCommandName     = "cancel"

	failedListLimit = 20
)

const helpText = `Commands:
/transition <kind> <id> <status> - change a status
/bulk - change several statuses at once
/withdraw <application id> - withdraw your application
/failed - list failed notifications (admins)
/resend <log id> - resend a notification (admins)
/cancel - abort the current dialog`

func NewBot(api *botApi.BotAPI, services Services) (*Bot, error) {
	if api == nil {
		return nil, errors.New("api is nil")
	}
	if err := botApi.SetLogger(log.StandardLogger()); err != nil {
		return nil, err
	}
	log.Infof("Authorized on account %s", api.Self.UserName)
	return newBot(api, api, services)
}

func newBot(api apiInterface, updates updatesSource, services Services) (*Bot, error) {
	if services.Users == nil {
		return nil, errors.New("users repository is nil")
	}
	if services.Executor == nil {
		return nil, errors.New("transition executor is nil")
	}
	if services.Dispatcher == nil {
		return nil, errors.New("dispatcher is nil")
	}
	if services.Logs == nil {
		return nil, errors.New("notification logs repository is nil")
	}
	return &Bot{api: api, updates: updates, services: services, userContexts: make(map[int64]*userContext)}, nil
}

func (b *Bot) Run() {
	updateConfig := botApi.NewUpdate(0)
	updateConfig.Timeout = 60

	updates := b.updates.GetUpdatesChan(updateConfig)

	for update := range updates {
		if update.Message == nil {
			continue
		}
		if update.Message.Chat.IsGroup() || update.Message.Chat.IsSuperGroup() {
			continue
		}

		go b.handleMessage(update.Message)
	}
}

func (b *Bot) Stop() {
	b.updates.StopReceivingUpdates()
}

func (b *Bot) handleMessage(message *botApi.Message) {
	if message.From == nil {
		return
	}

	user, err := b.services.Users.GetByTelegramID(context.Background(), message.From.ID)
	if err != nil {
		if !errors.Is(err, repositories.ErrUserNotFound) {
			log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).Errorf("failed to resolve telegram user %d: %v", message.From.ID, err)
		}
		_, _ = sendWithLogError(b.api, botApi.NewMessage(message.Chat.ID, "You are not registered."))
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if cmd := message.Command(); cmd != "" {
		b.handleCommand(user.Actor(), message.Chat.ID, cmd, message.CommandArguments())
	} else {
		b.handleInput(user.Actor(), message.Chat.ID, message.Text)
	}
}

func (b *Bot) handleCommand(actor models.Actor, chatID int64, command string, args string) {
	var response string

	switch command {
	case "start", "help":
		response = helpText
		delete(b.userContexts, chatID)
	case cancelCommandName:
		response = "Cancelled."
		delete(b.userContexts, chatID)
	case transitionCommandName:
		response = b.transition(actor, args)
	case withdrawCommandName:
		response = b.withdraw(actor, args)
	case bulkCommandName:
		ctx := newUserContext(chatID, actor)
		b.userContexts[chatID] = ctx
		ctx.RunCommand(newBulkCommand(b.api, chatID, actor, b.services.Executor))
		if strings.TrimSpace(args) != "" {
			ctx.OnUserInput(args)
		}
	case failedCommandName:
		response = b.failed(actor)
	case resendCommandName:
		response = b.resend(actor, args)
	default:
		response = "Unknown command!"
	}

	if response == "" {
		return
	}
	_, _ = sendWithLogError(b.api, botApi.NewMessage(chatID, response))
}

func (b *Bot) handleInput(actor models.Actor, chatID int64, input string) {
	ctx := b.userContexts[chatID]
	if ctx == nil || ctx.actor != actor || !ctx.HasRunningCommand() {
		_, _ = sendWithLogError(b.api, botApi.NewMessage(chatID, "Waiting for a command. Send /help for the list."))
		return
	}

	ctx.OnUserInput(input)
	if !ctx.HasRunningCommand() {
		delete(b.userContexts, chatID)
	}
}

func (b *Bot) transition(actor models.Actor, args string) string {
	item, err := parseTransition(args)
	if err != nil {
		return err.Error()
	}

	event, err := b.services.Executor.Apply(context.Background(), actor, item.Ref, item.Status)
	if err != nil {
		return describeError(err)
	}
	return fmt.Sprintf("%s: %s -> %s", event.Ref(), event.From, event.To)
}

func (b *Bot) withdraw(actor models.Actor, args string) string {
	id, err := parseID(args)
	if err != nil {
		return err.Error()
	}

	event, err := b.services.Executor.Withdraw(context.Background(), actor, id)
	if err != nil {
		return describeError(err)
	}
	return fmt.Sprintf("Application #%d withdrawn.", event.EntityID)
}

func (b *Bot) failed(actor models.Actor) string {
	if !actor.Role.IsAdmin() {
		return "Only administrators can do that."
	}

	entries, err := b.services.Logs.GetByStatus(context.Background(), models.NotificationFailed, failedListLimit)
	if err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).Errorf("failed to list failed notifications: %v", err)
		return "Internal error!"
	}
	if len(entries) == 0 {
		return "No failed notifications."
	}

	var sb strings.Builder
	sb.WriteString("Failed notifications:")
	for _, entry := range entries {
		sb.WriteString(fmt.Sprintf("\n#%d %s to %q (%d attempts): %s",
			entry.ID, entry.Type, entry.Recipient, entry.Attempts, entry.ErrorMessage))
	}
	return sb.String()
}

func (b *Bot) resend(actor models.Actor, args string) string {
	if !actor.Role.IsAdmin() {
		return "Only administrators can do that."
	}
	id, err := parseID(args)
	if err != nil {
		return err.Error()
	}

	entry, err := b.services.Dispatcher.Resend(context.Background(), id)
	switch {
	case errors.Is(err, repositories.ErrLogNotFound):
		return fmt.Sprintf("Notification #%d not found.", id)
	case errors.Is(err, notifications.ErrAlreadySent):
		return fmt.Sprintf("Notification #%d was already sent.", id)
	case errors.Is(err, notifications.ErrInFlight):
		return fmt.Sprintf("Notification #%d is still being sent, try again later.", id)
	case err != nil:
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeDispatch).Errorf("failed to resend notification %d: %v", id, err)
		return "Internal error!"
	}

	if entry.Status == models.NotificationSent {
		return fmt.Sprintf("Notification #%d sent.", id)
	}
	return fmt.Sprintf("Notification #%d failed again: %s", id, entry.ErrorMessage)
}

func describeError(err error) string {
	switch {
	case errors.Is(err, services.ErrInvalidStatus):
		return "unknown status"
	case errors.Is(err, services.ErrIllegalTransition):
		return "transition is not allowed"
	case errors.Is(err, services.ErrForbidden):
		if reason, ok := access.ReasonOf(err); ok {
			return "forbidden: " + string(reason)
		}
		return "forbidden"
	case errors.Is(err, repositories.ErrEntityNotFound):
		return "not found"
	case errors.Is(err, services.ErrPersistence):
		return "storage is unavailable, try again"
	default:
		log.Errorf("unexpected transition error: %v", err)
		return "internal error"
	}
}
