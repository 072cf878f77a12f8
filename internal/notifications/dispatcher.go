package notifications

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/go-playground/validator/v10"
	"github.com/maxaizer/jobboard-core/internal/config"
	"github.com/maxaizer/jobboard-core/internal/domain/events"
	"github.com/maxaizer/jobboard-core/internal/domain/models"
	"github.com/maxaizer/jobboard-core/internal/logger"
	"github.com/maxaizer/jobboard-core/internal/metrics"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var (
	ErrAlreadySent = errors.New("notification was already sent")
	ErrInFlight    = errors.New("notification is still being sent")
	ErrStopped     = errors.New("dispatcher is stopped")
)

const errQueueFull = "dispatch queue full"

type transport interface {
	Send(ctx context.Context, msg models.Message) error
}

type settings interface {
	Bool(ctx context.Context, key string, def bool) bool
	String(ctx context.Context, key, def string) string
}

type logStore interface {
	Add(ctx context.Context, entry *models.NotificationLog) error
	GetByID(ctx context.Context, id int64) (*models.NotificationLog, error)
	UpdateOutcome(ctx context.Context, entry models.NotificationLog) error
}

type contactBook interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

// Request is an explicit notification not tied to a transition.
type Request struct {
	Template  TemplateKey `validate:"required"`
	Recipient string      `validate:"required"`
	Variables map[string]string
}

type Options struct {
	Workers     int
	QueueSize   int
	SendTimeout time.Duration
}

// Dispatcher turns transition events into rendered notifications, sends them
// and keeps an attempt log. Failures never reach the transition caller.
type Dispatcher struct {
	transport transport
	settings  settings
	logs      logStore
	contacts  contactBook
	validate  *validator.Validate
	options   Options
	now       func() time.Time

	mu      sync.RWMutex
	queue   chan events.TransitionEvent
	stopped bool
	workers sync.WaitGroup
}

func NewDispatcher(transport transport, settings settings, logs logStore, contacts contactBook,
	options Options) (*Dispatcher, error) {

	if transport == nil || settings == nil || logs == nil || contacts == nil {
		return nil, errors.New("transport, settings, logs and contacts are required")
	}
	if options.Workers <= 0 {
		options.Workers = 1
	}
	if options.QueueSize <= 0 {
		options.QueueSize = 64
	}
	if options.SendTimeout <= 0 {
		options.SendTimeout = 10 * time.Second
	}

	return &Dispatcher{
		transport: transport,
		settings:  settings,
		logs:      logs,
		contacts:  contacts,
		validate:  validator.New(),
		options:   options,
		now:       time.Now,
	}, nil
}

// Start subscribes to transition events and starts the worker pool.
func (d *Dispatcher) Start(bus EventBus.Bus) error {
	d.mu.Lock()
	if d.queue != nil {
		d.mu.Unlock()
		return errors.New("dispatcher already started")
	}
	d.queue = make(chan events.TransitionEvent, d.options.QueueSize)
	for i := 0; i < d.options.Workers; i++ {
		d.workers.Add(1)
		go d.work(d.queue)
	}
	d.mu.Unlock()

	// the bus holds its own lock while calling handlers, so never subscribe
	// while holding d.mu
	if err := bus.Subscribe(events.TransitionTopic, d.onTransition); err != nil {
		d.Stop()
		return err
	}
	log.Infof("notification dispatcher started with %d workers", d.options.Workers)
	return nil
}

// Stop waits until queued events are dispatched. The bus subscription stays
// in place; events published after Stop are dropped.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped || d.queue == nil {
		d.stopped = true
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.queue)
	d.mu.Unlock()

	d.workers.Wait()
	log.Info("notification dispatcher stopped")
}

func (d *Dispatcher) work(queue <-chan events.TransitionEvent) {
	defer d.workers.Done()
	for event := range queue {
		metrics.DispatchQueueLength.Dec()
		d.Dispatch(context.Background(), event)
	}
}

func (d *Dispatcher) onTransition(event events.TransitionEvent) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped {
		return
	}

	select {
	case d.queue <- event:
		metrics.DispatchQueueLength.Inc()
	default:
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeDispatch).
			Errorf("dispatch queue is full, recording notifications of event %s as failed", event.ID)
		d.dispatch(context.Background(), event, errors.New(errQueueFull))
	}
}

// Dispatch sends every notification fired by event and returns one log entry
// per attempt. It returns nothing when notifications are disabled.
func (d *Dispatcher) Dispatch(ctx context.Context, event events.TransitionEvent) []models.NotificationLog {
	return d.dispatch(ctx, event, nil)
}

func (d *Dispatcher) dispatch(ctx context.Context, event events.TransitionEvent, failure error) []models.NotificationLog {
	if !d.enabled(ctx) {
		return nil
	}

	var entries []models.NotificationLog
	for _, key := range TemplatesFor(event) {
		tpl := templates[key]
		if !d.settings.Bool(ctx, tpl.category, true) {
			log.Debugf("category %s disabled, skipping %s for event %s", tpl.category, key, event.ID)
			continue
		}

		recipient, name, err := d.resolveRecipient(ctx, tpl.audience, event)
		if failure != nil {
			err = failure
		}

		vars := d.eventVariables(ctx, event)
		vars["recipient_name"] = name
		entries = append(entries, d.deliver(ctx, key, recipient, vars, event.ID, err))
	}
	return entries
}

// Notify sends an explicit notification. It returns nil without logging when
// notifications or the template's category are disabled.
func (d *Dispatcher) Notify(ctx context.Context, request Request) (*models.NotificationLog, error) {
	if d.isStopped() {
		return nil, ErrStopped
	}
	if err := d.validate.Struct(request); err != nil {
		return nil, errors.Wrap(err, "invalid notification request")
	}
	tpl, ok := templates[request.Template]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownTemplate, "%q", string(request.Template))
	}
	if !d.enabled(ctx) || !d.settings.Bool(ctx, tpl.category, true) {
		return nil, nil
	}

	vars := map[string]string{"site_name": d.settings.String(ctx, config.OptionSiteName, "")}
	for k, v := range request.Variables {
		vars[k] = v
	}
	entry := d.deliver(ctx, request.Template, request.Recipient, vars, "", nil)
	return &entry, nil
}

// Resend retries a failed entry and overwrites its outcome. Pending entries
// belong to a send still in progress and are rejected.
func (d *Dispatcher) Resend(ctx context.Context, logID int64) (*models.NotificationLog, error) {
	if d.isStopped() {
		return nil, ErrStopped
	}
	entry, err := d.logs.GetByID(ctx, logID)
	if err != nil {
		return nil, err
	}
	switch entry.Status {
	case models.NotificationSent:
		return nil, errors.Wrapf(ErrAlreadySent, "log entry %d", logID)
	case models.NotificationPending:
		return nil, errors.Wrapf(ErrInFlight, "log entry %d", logID)
	}

	if entry.Subject == "" && entry.Body == "" {
		rendered, err := Render(TemplateKey(entry.Type), entry.Variables)
		if err != nil {
			return nil, err
		}
		entry.Subject, entry.Body = rendered.Subject, rendered.Body
	}

	var result SendResult
	if entry.Recipient == "" {
		result = Failed("no recipient")
	} else {
		result = d.Send(ctx, entry.Recipient, entry.Subject, entry.Body)
	}

	entry.Attempts++
	d.applyResult(entry, result)
	if err = d.logs.UpdateOutcome(ctx, *entry); err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).Errorf("failed to update log entry %d: %v", entry.ID, err)
		return nil, err
	}
	metrics.NotificationsCounter.WithLabelValues(entry.Type, string(entry.Status)).Inc()
	log.Infof("resent notification %d to %s: %s", entry.ID, entry.Recipient, entry.Status)
	return entry, nil
}

func (d *Dispatcher) deliver(ctx context.Context, key TemplateKey, recipient string, vars map[string]string,
	eventID string, failure error) models.NotificationLog {

	entry := models.NotificationLog{
		Type:      string(key),
		Recipient: recipient,
		Variables: vars,
		Status:    models.NotificationPending,
		Attempts:  1,
		EventID:   eventID,
	}

	rendered, err := Render(key, vars)
	if err != nil && failure == nil {
		failure = err
	}
	entry.Subject, entry.Body = rendered.Subject, rendered.Body

	if err = d.logs.Add(ctx, &entry); err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).Errorf("failed to record notification %s: %v", key, err)
	}

	var result SendResult
	if failure != nil {
		result = Failed(failure.Error())
	} else {
		result = d.Send(ctx, recipient, entry.Subject, entry.Body)
	}
	d.applyResult(&entry, result)

	if entry.ID != 0 {
		if err = d.logs.UpdateOutcome(ctx, entry); err != nil {
			log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).Errorf("failed to update log entry %d: %v", entry.ID, err)
		}
	}
	metrics.NotificationsCounter.WithLabelValues(string(key), string(entry.Status)).Inc()
	return entry
}

func (d *Dispatcher) applyResult(entry *models.NotificationLog, result SendResult) {
	entry.Status = result.Status
	entry.ErrorMessage = result.Reason
	if result.Status == models.NotificationSent {
		sentAt := d.now().UTC()
		entry.SentAt = &sentAt
	}
}

func (d *Dispatcher) isStopped() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.stopped
}

func (d *Dispatcher) enabled(ctx context.Context) bool {
	return d.settings.Bool(ctx, config.OptionNotificationsEnabled, true)
}

func (d *Dispatcher) resolveRecipient(ctx context.Context, audience audience, event events.TransitionEvent) (string, string, error) {
	var userID int64
	switch audience {
	case audienceAdmin:
		recipient := d.settings.String(ctx, config.OptionAdminRecipient, "")
		if recipient == "" {
			return "", "", errors.New("admin recipient is not configured")
		}
		return recipient, "Administrator", nil
	case audienceCandidate:
		userID = event.CandidateID
	case audienceOwner:
		userID = event.OwnerID
	}
	if userID == 0 {
		return "", "", fmt.Errorf("%s has no recipient", event.Ref())
	}

	user, err := d.contacts.GetByID(ctx, userID)
	if err != nil {
		return "", "", errors.Wrapf(err, "failed to resolve user %d", userID)
	}
	switch {
	case user.Email != "":
		return user.Email, user.Name, nil
	case user.TelegramID != 0:
		return models.TelegramRecipientPrefix + strconv.FormatInt(user.TelegramID, 10), user.Name, nil
	default:
		return "", user.Name, fmt.Errorf("user %d has no contact address", userID)
	}
}

func (d *Dispatcher) eventVariables(ctx context.Context, event events.TransitionEvent) map[string]string {
	vars := make(map[string]string, len(event.Metadata)+6)
	for k, v := range event.Metadata {
		vars[k] = v
	}
	vars["status"] = string(event.To)
	vars["previous_status"] = string(event.From)
	vars["entity_id"] = strconv.FormatInt(event.EntityID, 10)
	vars["entity_kind"] = string(event.Kind)
	vars["site_name"] = d.settings.String(ctx, config.OptionSiteName, "")
	return vars
}
