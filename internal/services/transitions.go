package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/maxaizer/jobboard-core/internal/domain/access"
	"github.com/maxaizer/jobboard-core/internal/domain/events"
	"github.com/maxaizer/jobboard-core/internal/domain/models"
	"github.com/maxaizer/jobboard-core/internal/domain/registry"
	"github.com/maxaizer/jobboard-core/internal/logger"
	"github.com/maxaizer/jobboard-core/internal/metrics"
	"github.com/maxaizer/jobboard-core/internal/repositories"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var (
	ErrInvalidStatus     = errors.New("invalid status")
	ErrIllegalTransition = errors.New("illegal transition")
	ErrForbidden         = errors.New("forbidden")
	ErrPersistence       = errors.New("persistence failure")
)

// TransitionError tags Cause with one of the Err* kinds above. errors.Is
// matches the kind; errors.As reaches the cause.
type TransitionError struct {
	Kind  error
	Cause error
}

func (e *TransitionError) Error() string {
	return e.Kind.Error() + ": " + e.Cause.Error()
}

func (e *TransitionError) Unwrap() error {
	return e.Cause
}

func (e *TransitionError) Is(target error) bool {
	return target == e.Kind
}

type entityStore interface {
	Load(ctx context.Context, ref models.EntityRef) (*models.Entity, error)
	SaveStatus(ctx context.Context, entity models.Entity, status models.Status) (int64, error)
}

type eventPublisher interface {
	Publish(topic string, args ...interface{})
}

type BulkItem struct {
	Ref    models.EntityRef
	Status models.Status
}

type SkippedItem struct {
	Ref models.EntityRef
	Err error
}

type BulkResult struct {
	Applied []events.TransitionEvent
	Skipped []SkippedItem
}

// TransitionExecutor is the only code path that changes an entity status.
// Transitions of the same entity are serialized.
type TransitionExecutor struct {
	entities entityStore
	bus      eventPublisher
	locks    *entityLocks
	now      func() time.Time
}

func NewTransitionExecutor(entities entityStore, bus eventPublisher) (*TransitionExecutor, error) {
	if entities == nil {
		return nil, errors.New("entity store is nil")
	}
	if bus == nil {
		return nil, errors.New("bus is nil")
	}
	return &TransitionExecutor{
		entities: entities,
		bus:      bus,
		locks:    newEntityLocks(),
		now:      time.Now,
	}, nil
}

// Apply validates and persists ref's move to requested on behalf of actor and
// publishes the resulting event.
func (t *TransitionExecutor) Apply(ctx context.Context, actor models.Actor, ref models.EntityRef,
	requested models.Status) (*events.TransitionEvent, error) {

	return t.apply(ctx, &actor, ref, requested)
}

// ApplyBulk applies every item independently. Items that fail for any reason
// are reported as skipped and do not affect the others.
func (t *TransitionExecutor) ApplyBulk(ctx context.Context, actor models.Actor, items []BulkItem) BulkResult {
	var result BulkResult
	for _, item := range items {
		event, err := t.apply(ctx, &actor, item.Ref, item.Status)
		if err != nil {
			result.Skipped = append(result.Skipped, SkippedItem{Ref: item.Ref, Err: err})
			continue
		}
		result.Applied = append(result.Applied, *event)
	}

	log.Infof("bulk transition by %s %d: %d applied, %d skipped",
		actor.Role, actor.ID, len(result.Applied), len(result.Skipped))
	return result
}

// Withdraw moves the candidate's own application to withdrawn.
func (t *TransitionExecutor) Withdraw(ctx context.Context, actor models.Actor, applicationID int64) (*events.TransitionEvent, error) {
	ref := models.EntityRef{Kind: models.KindApplication, ID: applicationID}
	return t.apply(ctx, &actor, ref, models.ApplicationWithdrawn)
}

// Expire moves a published job to expired. It is driven by time, so no actor
// is checked and the event carries no actor.
func (t *TransitionExecutor) Expire(ctx context.Context, jobID int64) (*events.TransitionEvent, error) {
	ref := models.EntityRef{Kind: models.KindJob, ID: jobID}
	return t.apply(ctx, nil, ref, models.JobExpired)
}

func (t *TransitionExecutor) apply(ctx context.Context, actor *models.Actor, ref models.EntityRef,
	requested models.Status) (*events.TransitionEvent, error) {

	event, err := t.transition(ctx, actor, ref, requested)
	metrics.TransitionsCounter.WithLabelValues(string(ref.Kind), resultLabel(err)).Inc()
	if err != nil {
		return nil, err
	}

	t.bus.Publish(events.TransitionTopic, *event)
	log.Infof("%s moved %s -> %s by actor %d", ref, event.From, event.To, event.ActorID)
	return event, nil
}

func (t *TransitionExecutor) transition(ctx context.Context, actor *models.Actor, ref models.EntityRef,
	requested models.Status) (*events.TransitionEvent, error) {

	if !registry.IsValidStatus(ref.Kind, requested) {
		return nil, errors.Wrapf(ErrInvalidStatus, "%q is not a %s status", requested, ref.Kind)
	}

	unlock := t.locks.Lock(ref)
	defer unlock()

	entity, err := t.entities.Load(ctx, ref)
	if err != nil {
		if errors.Is(err, repositories.ErrEntityNotFound) {
			return nil, err
		}
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).Errorf("failed to load %s: %v", ref, err)
		return nil, &TransitionError{Kind: ErrPersistence, Cause: err}
	}

	if !registry.IsValidStatus(entity.Kind, entity.Status) {
		log.Errorf("%s has status %q outside of its vocabulary", ref, entity.Status)
		return nil, errors.Wrapf(ErrIllegalTransition, "%s has unknown current status %q", ref, entity.Status)
	}

	if !registry.IsTransitionAllowed(entity.Kind, entity.Status, requested) {
		return nil, errors.Wrapf(ErrIllegalTransition, "%s: %s -> %s", ref, entity.Status, requested)
	}

	var actorID int64
	if actor != nil {
		if err = access.Authorize(*actor, *entity, entity.Status, requested); err != nil {
			return nil, &TransitionError{Kind: ErrForbidden, Cause: err}
		}
		actorID = actor.ID
	}

	if _, err = t.entities.SaveStatus(ctx, *entity, requested); err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).Errorf("failed to save status of %s: %v", ref, err)
		return nil, &TransitionError{Kind: ErrPersistence, Cause: err}
	}

	return &events.TransitionEvent{
		ID:          uuid.NewString(),
		Kind:        entity.Kind,
		EntityID:    entity.ID,
		From:        entity.Status,
		To:          requested,
		ActorID:     actorID,
		Timestamp:   t.now().UTC(),
		OwnerID:     entity.OwnerID,
		CandidateID: entity.CandidateID,
		Metadata:    copyMetadata(entity.Metadata),
	}, nil
}

func copyMetadata(metadata map[string]string) map[string]string {
	result := make(map[string]string, len(metadata))
	for k, v := range metadata {
		result[k] = v
	}
	return result
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "applied"
	case errors.Is(err, ErrInvalidStatus):
		return "invalid_status"
	case errors.Is(err, ErrIllegalTransition):
		return "illegal_transition"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, repositories.ErrEntityNotFound):
		return "not_found"
	default:
		return "persistence"
	}
}
