package events

import (
	"time"

	"github.com/maxaizer/jobboard-core/internal/domain/models"
)

var TransitionTopic = "TransitionEvent"

// TransitionEvent is produced once per committed status change. ActorID is
// zero for system driven transitions such as job expiry.
type TransitionEvent struct {
	ID          string
	Kind        models.Kind
	EntityID    int64
	From        models.Status
	To          models.Status
	ActorID     int64
	Timestamp   time.Time
	OwnerID     int64
	CandidateID int64
	Metadata    map[string]string
}

func (e TransitionEvent) Ref() models.EntityRef {
	return models.EntityRef{Kind: e.Kind, ID: e.EntityID}
}
