// Package access decides which actor may move which entity between statuses.
package access

import (
	"fmt"

	"github.com/maxaizer/jobboard-core/internal/domain/models"
	"github.com/pkg/errors"
)

type Reason string

const (
	NotOwner            Reason = "not_owner"
	InsufficientRole    Reason = "insufficient_role"
	EntityKindForbidden Reason = "entity_kind_forbidden"
)

var ErrDenied = errors.New("transition denied")

type DeniedError struct {
	Reason Reason
	Actor  models.Actor
	Entity models.EntityRef
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("%s for %s %d on %s: %s", ErrDenied, e.Actor.Role, e.Actor.ID, e.Entity, e.Reason)
}

func (e *DeniedError) Is(target error) bool {
	return target == ErrDenied
}

// ReasonOf extracts the denial reason from err, if any.
func ReasonOf(err error) (Reason, bool) {
	var denied *DeniedError
	if errors.As(err, &denied) {
		return denied.Reason, true
	}
	return "", false
}

// Authorize returns nil when actor may move entity from → to, or a
// *DeniedError otherwise. Edge validity is not checked here.
func Authorize(actor models.Actor, entity models.Entity, from, to models.Status) error {
	switch {
	case actor.Role.IsAdmin():
		return nil
	case actor.Role == models.RoleEmployer:
		return authorizeEmployer(actor, entity, to)
	case actor.Role == models.RoleCandidate:
		return authorizeCandidate(actor, entity, to)
	default:
		return deny(actor, entity, InsufficientRole)
	}
}

func authorizeEmployer(actor models.Actor, entity models.Entity, to models.Status) error {
	switch entity.Kind {
	case models.KindJob:
		if to == models.JobExpired {
			return deny(actor, entity, InsufficientRole)
		}
	case models.KindApplication:
		if to == models.ApplicationWithdrawn {
			return deny(actor, entity, InsufficientRole)
		}
	default:
		// account approval stays with administrators, including the employer's own profile
		return deny(actor, entity, EntityKindForbidden)
	}

	if entity.OwnerID == 0 || entity.OwnerID != actor.ID {
		return deny(actor, entity, NotOwner)
	}
	return nil
}

func authorizeCandidate(actor models.Actor, entity models.Entity, to models.Status) error {
	if entity.Kind != models.KindApplication {
		return deny(actor, entity, EntityKindForbidden)
	}
	if to != models.ApplicationWithdrawn {
		return deny(actor, entity, InsufficientRole)
	}
	if entity.CandidateID == 0 || entity.CandidateID != actor.ID {
		return deny(actor, entity, NotOwner)
	}
	return nil
}

func deny(actor models.Actor, entity models.Entity, reason Reason) error {
	return &DeniedError{Reason: reason, Actor: actor, Entity: entity.Ref()}
}
