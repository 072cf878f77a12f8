package notifications

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/maxaizer/jobboard-core/internal/config"
	"github.com/maxaizer/jobboard-core/internal/domain/events"
	"github.com/maxaizer/jobboard-core/internal/domain/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Send(ctx context.Context, msg models.Message) error {
	return m.Called(ctx, msg).Error(0)
}

type memorySettings map[string]string

func (s memorySettings) Bool(_ context.Context, key string, def bool) bool {
	value, ok := s[key]
	if !ok {
		return def
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return def
	}
	return parsed
}

func (s memorySettings) String(_ context.Context, key, def string) string {
	if value, ok := s[key]; ok {
		return value
	}
	return def
}

type memoryLogs struct {
	mu      sync.Mutex
	entries []models.NotificationLog
}

func (m *memoryLogs) Add(_ context.Context, entry *models.NotificationLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.ID = int64(len(m.entries) + 1)
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *memoryLogs) GetByID(_ context.Context, id int64) (*models.NotificationLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id <= 0 || int(id) > len(m.entries) {
		return nil, errors.New("log entry not found")
	}
	entry := m.entries[id-1]
	return &entry, nil
}

func (m *memoryLogs) UpdateOutcome(_ context.Context, entry models.NotificationLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entry.ID-1] = entry
	return nil
}

func (m *memoryLogs) all() []models.NotificationLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.NotificationLog(nil), m.entries...)
}

type memoryContacts map[int64]models.User

func (c memoryContacts) GetByID(_ context.Context, id int64) (*models.User, error) {
	user, ok := c[id]
	if !ok {
		return nil, errors.New("user not found")
	}
	return &user, nil
}

var contacts = memoryContacts{
	3: {ID: 3, Role: models.RoleEmployer, Name: "Acme HR", Email: "hr@acme.test"},
	5: {ID: 5, Role: models.RoleCandidate, Name: "Jane", Email: "jane@example.test"},
	6: {ID: 6, Role: models.RoleCandidate, Name: "Bob", TelegramID: 4242},
}

func defaultSettings() memorySettings {
	return memorySettings{
		config.OptionNotificationsEnabled: "true",
		config.OptionFromEmail:            "noreply@board.test",
		config.OptionFromName:             "Job Board",
		config.OptionAdminRecipient:       "admin@board.test",
		config.OptionSiteName:             "Job Board",
	}
}

func newTestDispatcher(t *testing.T, transport transport, settings memorySettings) (*Dispatcher, *memoryLogs) {
	logs := &memoryLogs{}
	dispatcher, err := NewDispatcher(transport, settings, logs, contacts, Options{
		Workers:     2,
		QueueSize:   8,
		SendTimeout: 100 * time.Millisecond,
	})
	require.NoError(t, err)
	return dispatcher, logs
}

func reviewingEvent() events.TransitionEvent {
	return events.TransitionEvent{
		ID:          "event-1",
		Kind:        models.KindApplication,
		EntityID:    7,
		From:        models.ApplicationPending,
		To:          models.ApplicationReviewing,
		ActorID:     3,
		OwnerID:     3,
		CandidateID: 5,
		Metadata:    map[string]string{"title": "Go developer"},
	}
}

func Test_Dispatch_ShouldSendToCandidateAndLog(t *testing.T) {
	transport := new(MockTransport)
	transport.On("Send", mock.Anything, mock.MatchedBy(func(msg models.Message) bool {
		return msg.To == "jane@example.test" && msg.Headers["From"] == "Job Board <noreply@board.test>"
	})).Return(nil)
	dispatcher, logs := newTestDispatcher(t, transport, defaultSettings())

	entries := dispatcher.Dispatch(context.Background(), reviewingEvent())

	require.Len(t, entries, 1)
	entry := entries[0]
	assert.Equal(t, string(ApplicationStatusUpdate), entry.Type)
	assert.Equal(t, models.NotificationSent, entry.Status)
	assert.Equal(t, "reviewing", entry.Variables["status"])
	assert.Equal(t, "Jane", entry.Variables["recipient_name"])
	assert.Contains(t, entry.Body, "Go developer")
	assert.NotNil(t, entry.SentAt)
	assert.Equal(t, "event-1", entry.EventID)
	assert.Equal(t, []models.NotificationLog{entry}, logs.all())
	transport.AssertExpectations(t)
}

func Test_Dispatch_WhenDisabled_ShouldReturnImmediately(t *testing.T) {
	transport := new(MockTransport)
	settings := defaultSettings()
	settings[config.OptionNotificationsEnabled] = "false"
	dispatcher, logs := newTestDispatcher(t, transport, settings)

	assert.Empty(t, dispatcher.Dispatch(context.Background(), reviewingEvent()))
	assert.Empty(t, logs.all())
	transport.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func Test_Dispatch_WhenCategoryDisabled_ShouldSkipOnlyThatTemplate(t *testing.T) {
	transport := new(MockTransport)
	transport.On("Send", mock.Anything, mock.Anything).Return(nil)
	settings := defaultSettings()
	settings["candidate_application_status"] = "false"
	dispatcher, _ := newTestDispatcher(t, transport, settings)

	event := reviewingEvent()
	event.From, event.To = models.ApplicationInterview, models.ApplicationAccepted
	entries := dispatcher.Dispatch(context.Background(), event)

	require.Len(t, entries, 1)
	assert.Equal(t, string(AdminApplicationStatus), entries[0].Type)
	assert.Equal(t, "admin@board.test", entries[0].Recipient)
}

func Test_Dispatch_WhenTransportFails_ShouldLogEveryAttempt(t *testing.T) {
	transport := new(MockTransport)
	transport.On("Send", mock.Anything, mock.Anything).Return(errors.New("550 mailbox unavailable"))
	dispatcher, logs := newTestDispatcher(t, transport, defaultSettings())

	event := reviewingEvent()
	event.From, event.To = models.ApplicationInterview, models.ApplicationAccepted
	entries := dispatcher.Dispatch(context.Background(), event)

	require.Len(t, entries, 2)
	for _, entry := range entries {
		assert.Equal(t, models.NotificationFailed, entry.Status)
		assert.Equal(t, "550 mailbox unavailable", entry.ErrorMessage)
		assert.Nil(t, entry.SentAt)
	}
	assert.Len(t, logs.all(), 2)
}

func Test_Dispatch_WhenRecipientUnknown_ShouldLogFailure(t *testing.T) {
	transport := new(MockTransport)
	dispatcher, _ := newTestDispatcher(t, transport, defaultSettings())

	event := reviewingEvent()
	event.CandidateID = 404
	entries := dispatcher.Dispatch(context.Background(), event)

	require.Len(t, entries, 1)
	assert.Equal(t, models.NotificationFailed, entries[0].Status)
	assert.Empty(t, entries[0].Recipient)
	transport.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func Test_Dispatch_WhenUserHasOnlyTelegram_ShouldUseChatRecipient(t *testing.T) {
	transport := new(MockTransport)
	transport.On("Send", mock.Anything, mock.MatchedBy(func(msg models.Message) bool {
		return msg.To == "telegram:4242"
	})).Return(nil)
	dispatcher, _ := newTestDispatcher(t, transport, defaultSettings())

	event := reviewingEvent()
	event.CandidateID = 6
	entries := dispatcher.Dispatch(context.Background(), event)

	require.Len(t, entries, 1)
	assert.Equal(t, models.NotificationSent, entries[0].Status)
	transport.AssertExpectations(t)
}

func Test_Send_WhenTransportHangs_ShouldFailWithTimeout(t *testing.T) {
	transport := new(MockTransport)
	transport.On("Send", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		time.Sleep(time.Second)
	}).Return(nil)
	dispatcher, _ := newTestDispatcher(t, transport, defaultSettings())

	start := time.Now()
	result := dispatcher.Send(context.Background(), "jane@example.test", "subject", "body")

	assert.Equal(t, Failed("timeout"), result)
	assert.False(t, result.OK())
	assert.Less(t, time.Since(start), 900*time.Millisecond)
}

func Test_Resend_ShouldUpdateSameEntry(t *testing.T) {
	transport := new(MockTransport)
	transport.On("Send", mock.Anything, mock.Anything).Return(errors.New("connection refused")).Once()
	transport.On("Send", mock.Anything, mock.Anything).Return(nil).Once()
	dispatcher, logs := newTestDispatcher(t, transport, defaultSettings())

	entries := dispatcher.Dispatch(context.Background(), reviewingEvent())
	require.Len(t, entries, 1)
	require.Equal(t, models.NotificationFailed, entries[0].Status)

	resent, err := dispatcher.Resend(context.Background(), entries[0].ID)
	require.NoError(t, err)

	all := logs.all()
	require.Len(t, all, 1)
	assert.Equal(t, entries[0].ID, resent.ID)
	assert.Equal(t, models.NotificationSent, all[0].Status)
	assert.Empty(t, all[0].ErrorMessage)
	assert.Equal(t, 2, all[0].Attempts)
	assert.Equal(t, entries[0].Body, all[0].Body)

	_, err = dispatcher.Resend(context.Background(), entries[0].ID)
	assert.True(t, errors.Is(err, ErrAlreadySent))
}

func Test_Notify_ShouldSendExplicitNotification(t *testing.T) {
	transport := new(MockTransport)
	transport.On("Send", mock.Anything, mock.MatchedBy(func(msg models.Message) bool {
		return msg.Subject == "New application for Go developer"
	})).Return(nil)
	dispatcher, logs := newTestDispatcher(t, transport, defaultSettings())

	entry, err := dispatcher.Notify(context.Background(), Request{
		Template:  AdminNewApplication,
		Recipient: "admin@board.test",
		Variables: map[string]string{"title": "Go developer", "candidate_name": "Jane", "company": "Acme"},
	})

	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, models.NotificationSent, entry.Status)
	assert.Contains(t, entry.Body, "Jane applied for")
	assert.Len(t, logs.all(), 1)
}

func Test_Notify_WhenRequestInvalid_ShouldFail(t *testing.T) {
	dispatcher, logs := newTestDispatcher(t, new(MockTransport), defaultSettings())

	_, err := dispatcher.Notify(context.Background(), Request{Template: AdminNewApplication})
	assert.Error(t, err)

	_, err = dispatcher.Notify(context.Background(), Request{Template: "unknown", Recipient: "a@b.test"})
	assert.True(t, errors.Is(err, ErrUnknownTemplate))
	assert.Empty(t, logs.all())
}

func Test_Notify_WhenDisabled_ShouldDoNothing(t *testing.T) {
	settings := defaultSettings()
	settings[config.OptionNotificationsEnabled] = "false"
	dispatcher, logs := newTestDispatcher(t, new(MockTransport), settings)

	entry, err := dispatcher.Notify(context.Background(), Request{Template: AdminNewApplication, Recipient: "a@b.test"})

	assert.NoError(t, err)
	assert.Nil(t, entry)
	assert.Empty(t, logs.all())
}

func Test_Dispatcher_Start_ShouldDispatchPublishedEventsUntilStopped(t *testing.T) {
	transport := new(MockTransport)
	transport.On("Send", mock.Anything, mock.Anything).Return(nil)
	dispatcher, logs := newTestDispatcher(t, transport, defaultSettings())
	bus := EventBus.New()

	require.NoError(t, dispatcher.Start(bus))
	assert.Error(t, dispatcher.Start(bus))

	for i := 0; i < 5; i++ {
		bus.Publish(events.TransitionTopic, reviewingEvent())
	}
	dispatcher.Stop()

	assert.Len(t, logs.all(), 5)
	bus.Publish(events.TransitionTopic, reviewingEvent())
	assert.Len(t, logs.all(), 5)
}

func Test_Dispatcher_Stop_WhenBusShared_ShouldKeepOtherDispatcherSubscribed(t *testing.T) {
	transport := new(MockTransport)
	transport.On("Send", mock.Anything, mock.Anything).Return(nil)
	first, firstLogs := newTestDispatcher(t, transport, defaultSettings())
	second, secondLogs := newTestDispatcher(t, transport, defaultSettings())
	bus := EventBus.New()

	require.NoError(t, first.Start(bus))
	require.NoError(t, second.Start(bus))
	first.Stop()

	bus.Publish(events.TransitionTopic, reviewingEvent())
	second.Stop()

	assert.Empty(t, firstLogs.all())
	assert.Len(t, secondLogs.all(), 1)
}

func Test_Dispatcher_WhenStopped_ShouldRejectNotifyAndResend(t *testing.T) {
	dispatcher, _ := newTestDispatcher(t, new(MockTransport), defaultSettings())
	require.NoError(t, dispatcher.Start(EventBus.New()))
	dispatcher.Stop()

	_, err := dispatcher.Notify(context.Background(), Request{Template: AdminNewApplication, Recipient: "a@b.test"})
	assert.True(t, errors.Is(err, ErrStopped))

	_, err = dispatcher.Resend(context.Background(), 1)
	assert.True(t, errors.Is(err, ErrStopped))
}

func Test_Resend_WhenEntryPending_ShouldNotSendAgain(t *testing.T) {
	transport := new(MockTransport)
	dispatcher, logs := newTestDispatcher(t, transport, defaultSettings())
	entry := models.NotificationLog{
		Type:      string(ApplicationStatusUpdate),
		Recipient: "jane@example.test",
		Subject:   "subject",
		Body:      "body",
		Status:    models.NotificationPending,
		Attempts:  1,
	}
	require.NoError(t, logs.Add(context.Background(), &entry))

	_, err := dispatcher.Resend(context.Background(), entry.ID)

	assert.True(t, errors.Is(err, ErrInFlight))
	transport.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	assert.Equal(t, models.NotificationPending, logs.all()[0].Status)
	assert.Equal(t, 1, logs.all()[0].Attempts)
}

func Test_Dispatcher_WhenQueueFull_ShouldRecordFailedEntries(t *testing.T) {
	release := make(chan struct{})
	transport := new(MockTransport)
	transport.On("Send", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		<-release
	}).Return(nil)

	logs := &memoryLogs{}
	dispatcher, err := NewDispatcher(transport, defaultSettings(), logs, contacts, Options{
		Workers:     1,
		QueueSize:   1,
		SendTimeout: 5 * time.Second,
	})
	require.NoError(t, err)
	bus := EventBus.New()
	require.NoError(t, dispatcher.Start(bus))

	for i := 0; i < 4; i++ {
		bus.Publish(events.TransitionTopic, reviewingEvent())
	}
	close(release)
	dispatcher.Stop()

	failed := 0
	for _, entry := range logs.all() {
		if entry.Status == models.NotificationFailed {
			assert.Equal(t, "dispatch queue full", entry.ErrorMessage)
			failed++
		}
	}
	assert.GreaterOrEqual(t, failed, 2)
	assert.Len(t, logs.all(), 4)
}

func Test_NewDispatcher_WhenDependencyMissing_ShouldFail(t *testing.T) {
	_, err := NewDispatcher(nil, defaultSettings(), &memoryLogs{}, contacts, Options{})
	assert.Error(t, err)
}
