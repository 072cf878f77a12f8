// Package registry holds the closed status vocabularies and allowed edges for
// every entity kind.
//
//	job:          draft ⇄ published ──► archived
//	                        └──────────► expired   (system only)
//
//	application:  pending ──► reviewing ──► interview ──► accepted
//	                             └────────────┴─────────► rejected
//	              pending|reviewing|interview ──► withdrawn (candidate only)
//
//	candidate,    pending ──► approved ──► active
//	employer:     pending|approved|active ──► suspended | inactive
//	              suspended|inactive ──► pending
//
// accepted, rejected, withdrawn, archived and expired are terminal.
package registry

import (
	"fmt"

	"github.com/maxaizer/jobboard-core/internal/domain/models"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

var (
	ErrUnknownKind   = errors.New("unknown entity kind")
	ErrUnknownStatus = errors.New("unknown status")
)

type lifecycle struct {
	statuses    []models.Status
	transitions map[models.Status][]models.Status
}

var accountLifecycle = lifecycle{
	statuses: []models.Status{
		models.AccountPending, models.AccountApproved, models.AccountActive,
		models.AccountSuspended, models.AccountInactive,
	},
	transitions: map[models.Status][]models.Status{
		models.AccountPending:   {models.AccountApproved, models.AccountSuspended, models.AccountInactive},
		models.AccountApproved:  {models.AccountActive, models.AccountSuspended, models.AccountInactive},
		models.AccountActive:    {models.AccountSuspended, models.AccountInactive},
		models.AccountSuspended: {models.AccountPending},
		models.AccountInactive:  {models.AccountPending},
	},
}

var lifecycles = map[models.Kind]lifecycle{
	models.KindJob: {
		statuses: []models.Status{models.JobDraft, models.JobPublished, models.JobArchived, models.JobExpired},
		transitions: map[models.Status][]models.Status{
			models.JobDraft:     {models.JobPublished},
			models.JobPublished: {models.JobDraft, models.JobArchived, models.JobExpired},
		},
	},
	models.KindApplication: {
		statuses: []models.Status{
			models.ApplicationPending, models.ApplicationReviewing, models.ApplicationInterview,
			models.ApplicationAccepted, models.ApplicationRejected, models.ApplicationWithdrawn,
		},
		transitions: map[models.Status][]models.Status{
			models.ApplicationPending:   {models.ApplicationReviewing, models.ApplicationWithdrawn},
			models.ApplicationReviewing: {models.ApplicationInterview, models.ApplicationRejected, models.ApplicationWithdrawn},
			models.ApplicationInterview: {models.ApplicationAccepted, models.ApplicationRejected, models.ApplicationWithdrawn},
		},
	},
	models.KindCandidate: accountLifecycle,
	models.KindEmployer:  accountLifecycle,
}

// ParseKind converts raw input to a Kind.
func ParseKind(s string) (models.Kind, error) {
	kind := models.Kind(s)
	if _, ok := lifecycles[kind]; !ok {
		return "", errors.Wrapf(ErrUnknownKind, "%q", s)
	}
	return kind, nil
}

// ParseStatus converts raw input to a Status of the given kind.
func ParseStatus(kind models.Kind, s string) (models.Status, error) {
	status := models.Status(s)
	if !IsValidStatus(kind, status) {
		return "", errors.Wrap(ErrUnknownStatus, fmt.Sprintf("%q for %s", s, kind))
	}
	return status, nil
}

// ValidStatuses returns a copy of the kind's vocabulary.
func ValidStatuses(kind models.Kind) ([]models.Status, error) {
	lc, ok := lifecycles[kind]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownKind, "%q", string(kind))
	}
	return append([]models.Status(nil), lc.statuses...), nil
}

func IsValidStatus(kind models.Kind, status models.Status) bool {
	lc, ok := lifecycles[kind]
	if !ok {
		return false
	}
	return lo.Contains(lc.statuses, status)
}

// IsTransitionAllowed returns true when moving from → to is an edge of the
// kind's state machine. Unknown kinds or statuses are never allowed.
func IsTransitionAllowed(kind models.Kind, from, to models.Status) bool {
	lc, ok := lifecycles[kind]
	if !ok {
		return false
	}
	return lo.Contains(lc.transitions[from], to)
}

// IsTerminal reports whether status has no outgoing edges.
func IsTerminal(kind models.Kind, status models.Status) bool {
	if !IsValidStatus(kind, status) {
		return false
	}
	return len(lifecycles[kind].transitions[status]) == 0
}
