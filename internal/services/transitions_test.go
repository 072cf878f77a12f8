package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/maxaizer/jobboard-core/internal/domain/access"
	"github.com/maxaizer/jobboard-core/internal/domain/events"
	"github.com/maxaizer/jobboard-core/internal/domain/models"
	"github.com/maxaizer/jobboard-core/internal/repositories"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryEntities struct {
	mu       sync.Mutex
	entities map[models.EntityRef]models.Entity
	saveErr  error
	saves    int
}

func newMemoryEntities(entities ...models.Entity) *memoryEntities {
	m := &memoryEntities{entities: map[models.EntityRef]models.Entity{}}
	for _, e := range entities {
		m.entities[e.Ref()] = e
	}
	return m
}

func (m *memoryEntities) Load(_ context.Context, ref models.EntityRef) (*models.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entities[ref]
	if !ok {
		return nil, repositories.ErrEntityNotFound
	}
	return &e, nil
}

func (m *memoryEntities) SaveStatus(_ context.Context, entity models.Entity, status models.Status) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return 0, m.saveErr
	}
	current := m.entities[entity.Ref()]
	if current.Status != entity.Status || current.Version != entity.Version {
		return 0, repositories.ErrStaleEntity
	}
	current.Status = status
	current.Version++
	m.entities[entity.Ref()] = current
	return current.Version, nil
}

func (m *memoryEntities) status(ref models.EntityRef) models.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entities[ref].Status
}

type recordedEvents struct {
	mu     sync.Mutex
	events []events.TransitionEvent
}

func recordEvents(t *testing.T, bus EventBus.Bus) *recordedEvents {
	r := &recordedEvents{}
	require.NoError(t, bus.Subscribe(events.TransitionTopic, func(e events.TransitionEvent) {
		r.mu.Lock()
		r.events = append(r.events, e)
		r.mu.Unlock()
	}))
	return r
}

func (r *recordedEvents) all() []events.TransitionEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.TransitionEvent(nil), r.events...)
}

var (
	admin     = models.Actor{ID: 1, Role: models.RoleAdministrator}
	employer3 = models.Actor{ID: 3, Role: models.RoleEmployer}
	employer9 = models.Actor{ID: 9, Role: models.RoleEmployer}
	candidate = models.Actor{ID: 5, Role: models.RoleCandidate}

	app7 = models.Entity{ID: 7, Kind: models.KindApplication, Status: models.ApplicationPending,
		OwnerID: 3, CandidateID: 5, Metadata: map[string]string{"title": "Go developer"}}
	job1 = models.Entity{ID: 1, Kind: models.KindJob, Status: models.JobDraft, OwnerID: 3}
)

func newTestExecutor(t *testing.T, entities ...models.Entity) (*TransitionExecutor, *memoryEntities, *recordedEvents) {
	store := newMemoryEntities(entities...)
	bus := EventBus.New()
	recorded := recordEvents(t, bus)
	executor, err := NewTransitionExecutor(store, bus)
	require.NoError(t, err)
	return executor, store, recorded
}

func Test_Apply_WhenOwnerEmployer_ShouldTransitionAndEmitEvent(t *testing.T) {
	executor, store, recorded := newTestExecutor(t, app7)
	executor.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	event, err := executor.Apply(context.Background(), employer3, app7.Ref(), models.ApplicationReviewing)
	require.NoError(t, err)

	assert.Equal(t, models.ApplicationReviewing, store.status(app7.Ref()))
	assert.Equal(t, models.ApplicationPending, event.From)
	assert.Equal(t, models.ApplicationReviewing, event.To)
	assert.Equal(t, int64(3), event.ActorID)
	assert.Equal(t, int64(5), event.CandidateID)
	assert.Equal(t, "Go developer", event.Metadata["title"])
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), event.Timestamp)
	assert.NotEmpty(t, event.ID)

	all := recorded.all()
	require.Len(t, all, 1)
	assert.Equal(t, *event, all[0])
}

func Test_Apply_WhenNotOwner_ShouldBeForbiddenWithoutSideEffects(t *testing.T) {
	executor, store, recorded := newTestExecutor(t, app7)

	_, err := executor.Apply(context.Background(), employer9, app7.Ref(), models.ApplicationReviewing)

	assert.True(t, errors.Is(err, ErrForbidden))
	reason, ok := access.ReasonOf(err)
	assert.True(t, ok)
	assert.Equal(t, access.NotOwner, reason)
	assert.Equal(t, models.ApplicationPending, store.status(app7.Ref()))
	assert.Zero(t, store.saves)
	assert.Empty(t, recorded.all())
}

func Test_Apply_WhenEdgeMissing_ShouldBeIllegal(t *testing.T) {
	executor, store, recorded := newTestExecutor(t, job1, app7)

	_, err := executor.Apply(context.Background(), admin, job1.Ref(), models.JobArchived)
	assert.True(t, errors.Is(err, ErrIllegalTransition))
	assert.Equal(t, models.JobDraft, store.status(job1.Ref()))

	_, err = executor.Apply(context.Background(), admin, app7.Ref(), models.ApplicationAccepted)
	assert.True(t, errors.Is(err, ErrIllegalTransition))
	assert.Equal(t, models.ApplicationPending, store.status(app7.Ref()))

	assert.Zero(t, store.saves)
	assert.Empty(t, recorded.all())
}

func Test_Apply_WhenSameStatus_ShouldBeRejected(t *testing.T) {
	executor, store, _ := newTestExecutor(t, app7)

	_, err := executor.Apply(context.Background(), admin, app7.Ref(), app7.Status)
	assert.True(t, errors.Is(err, ErrIllegalTransition))
	assert.Zero(t, store.saves)
}

func Test_Apply_WhenStatusNotInVocabulary_ShouldBeInvalid(t *testing.T) {
	executor, store, _ := newTestExecutor(t, job1)

	_, err := executor.Apply(context.Background(), admin, job1.Ref(), models.ApplicationReviewing)
	assert.True(t, errors.Is(err, ErrInvalidStatus))

	_, err = executor.Apply(context.Background(), admin, models.EntityRef{Kind: "invoice", ID: 1}, models.JobDraft)
	assert.True(t, errors.Is(err, ErrInvalidStatus))
	assert.Zero(t, store.saves)
}

func Test_Apply_WhenStoredStatusCorrupt_ShouldNotPanic(t *testing.T) {
	corrupt := models.Entity{ID: 2, Kind: models.KindJob, Status: "weird"}
	executor, _, _ := newTestExecutor(t, corrupt)

	_, err := executor.Apply(context.Background(), admin, corrupt.Ref(), models.JobPublished)
	assert.True(t, errors.Is(err, ErrIllegalTransition))
}

func Test_Apply_WhenEntityMissing_ShouldReturnNotFound(t *testing.T) {
	executor, _, _ := newTestExecutor(t)

	_, err := executor.Apply(context.Background(), admin, job1.Ref(), models.JobPublished)
	assert.True(t, errors.Is(err, repositories.ErrEntityNotFound))
}

func Test_Apply_WhenSaveFails_ShouldAbortWithoutEvent(t *testing.T) {
	executor, store, recorded := newTestExecutor(t, app7)
	store.saveErr = errors.New("disk is full")

	_, err := executor.Apply(context.Background(), admin, app7.Ref(), models.ApplicationReviewing)

	assert.True(t, errors.Is(err, ErrPersistence))
	assert.Equal(t, models.ApplicationPending, store.status(app7.Ref()))
	assert.Empty(t, recorded.all())
}

func Test_TransitionError_ShouldMatchKindAndCause(t *testing.T) {
	cause := &access.DeniedError{Reason: access.NotOwner}
	err := error(&TransitionError{Kind: ErrForbidden, Cause: cause})

	assert.True(t, errors.Is(err, ErrForbidden))
	assert.False(t, errors.Is(err, ErrPersistence))
	reason, ok := access.ReasonOf(errors.Wrap(err, "bulk item"))
	assert.True(t, ok)
	assert.Equal(t, access.NotOwner, reason)
	assert.Equal(t, "forbidden: "+cause.Error(), err.Error())
}

func Test_Apply_WhenSaveFails_ShouldKeepCause(t *testing.T) {
	executor, store, _ := newTestExecutor(t, app7)
	store.saveErr = errors.New("disk is full")

	_, err := executor.Apply(context.Background(), admin, app7.Ref(), models.ApplicationReviewing)

	assert.True(t, errors.Is(err, store.saveErr))
	assert.EqualError(t, err, "persistence failure: disk is full")
}

func Test_Apply_WhenAdmin_ShouldIgnoreOwnership(t *testing.T) {
	for _, actor := range []models.Actor{admin, {ID: 77, Role: models.RoleSleeveAdmin}} {
		executor, store, _ := newTestExecutor(t, app7)
		_, err := executor.Apply(context.Background(), actor, app7.Ref(), models.ApplicationReviewing)
		assert.NoError(t, err)
		assert.Equal(t, models.ApplicationReviewing, store.status(app7.Ref()))
	}
}

func Test_Apply_ConcurrentSameTransition_ShouldSucceedOnce(t *testing.T) {
	executor, _, recorded := newTestExecutor(t, app7)

	var wg sync.WaitGroup
	var succeeded atomic.Int32
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := executor.Apply(context.Background(), employer3, app7.Ref(), models.ApplicationReviewing); err == nil {
				succeeded.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), succeeded.Load())
	assert.Len(t, recorded.all(), 1)
	assert.Zero(t, executor.locks.size())
}

func Test_ApplyBulk_ShouldSkipEntitiesActorCannotEdit(t *testing.T) {
	owned1 := models.Entity{ID: 11, Kind: models.KindApplication, Status: models.ApplicationPending, OwnerID: 3}
	owned2 := models.Entity{ID: 12, Kind: models.KindApplication, Status: models.ApplicationPending, OwnerID: 3}
	foreign := models.Entity{ID: 13, Kind: models.KindApplication, Status: models.ApplicationPending, OwnerID: 4}
	executor, store, recorded := newTestExecutor(t, owned1, owned2, foreign)

	result := executor.ApplyBulk(context.Background(), employer3, []BulkItem{
		{Ref: owned1.Ref(), Status: models.ApplicationReviewing},
		{Ref: owned2.Ref(), Status: models.ApplicationReviewing},
		{Ref: foreign.Ref(), Status: models.ApplicationReviewing},
	})

	assert.Len(t, result.Applied, 2)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, foreign.Ref(), result.Skipped[0].Ref)
	assert.True(t, errors.Is(result.Skipped[0].Err, ErrForbidden))
	assert.Equal(t, models.ApplicationPending, store.status(foreign.Ref()))
	assert.Len(t, recorded.all(), 2)
}

func Test_ApplyBulk_ShouldValidateEdges(t *testing.T) {
	a := models.Entity{ID: 21, Kind: models.KindApplication, Status: models.ApplicationPending, OwnerID: 3}
	b := models.Entity{ID: 22, Kind: models.KindApplication, Status: models.ApplicationInterview, OwnerID: 3}
	executor, _, _ := newTestExecutor(t, a, b)

	result := executor.ApplyBulk(context.Background(), admin, []BulkItem{
		{Ref: a.Ref(), Status: models.ApplicationAccepted},
		{Ref: b.Ref(), Status: models.ApplicationAccepted},
	})

	require.Len(t, result.Applied, 1)
	assert.Equal(t, b.ID, result.Applied[0].EntityID)
	require.Len(t, result.Skipped, 1)
	assert.True(t, errors.Is(result.Skipped[0].Err, ErrIllegalTransition))
}

func Test_Withdraw(t *testing.T) {
	executor, store, _ := newTestExecutor(t, app7)

	_, err := executor.Withdraw(context.Background(), models.Actor{ID: 6, Role: models.RoleCandidate}, app7.ID)
	assert.True(t, errors.Is(err, ErrForbidden))

	event, err := executor.Withdraw(context.Background(), candidate, app7.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationWithdrawn, event.To)
	assert.Equal(t, models.ApplicationWithdrawn, store.status(app7.Ref()))

	_, err = executor.Withdraw(context.Background(), candidate, app7.ID)
	assert.True(t, errors.Is(err, ErrIllegalTransition))
}

func Test_Expire_ShouldOnlyMovePublishedJobs(t *testing.T) {
	published := models.Entity{ID: 2, Kind: models.KindJob, Status: models.JobPublished, OwnerID: 3}
	executor, store, _ := newTestExecutor(t, job1, published)

	event, err := executor.Expire(context.Background(), published.ID)
	require.NoError(t, err)
	assert.Zero(t, event.ActorID)
	assert.Equal(t, models.JobExpired, store.status(published.Ref()))

	_, err = executor.Expire(context.Background(), job1.ID)
	assert.True(t, errors.Is(err, ErrIllegalTransition))
}

func Test_Apply_WhenEmployerExpiresJob_ShouldBeForbidden(t *testing.T) {
	published := models.Entity{ID: 2, Kind: models.KindJob, Status: models.JobPublished, OwnerID: 3}
	executor, store, _ := newTestExecutor(t, published)

	_, err := executor.Apply(context.Background(), employer3, published.Ref(), models.JobExpired)

	assert.True(t, errors.Is(err, ErrForbidden))
	reason, _ := access.ReasonOf(err)
	assert.Equal(t, access.InsufficientRole, reason)
	assert.Equal(t, models.JobPublished, store.status(published.Ref()))
}

func Test_NewTransitionExecutor_WhenDependenciesMissing_ShouldFail(t *testing.T) {
	_, err := NewTransitionExecutor(nil, EventBus.New())
	assert.Error(t, err)
	_, err = NewTransitionExecutor(newMemoryEntities(), nil)
	assert.Error(t, err)
}
