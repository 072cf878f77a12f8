package models

import (
	"fmt"
	"time"
)

type Kind string

const (
	KindJob         Kind = "job"
	KindApplication Kind = "application"
	KindCandidate   Kind = "candidate"
	KindEmployer    Kind = "employer"
)

var Kinds = []Kind{KindJob, KindApplication, KindCandidate, KindEmployer}

type Status string

const (
	JobDraft     Status = "draft"
	JobPublished Status = "published"
	JobArchived  Status = "archived"
	JobExpired   Status = "expired"
)

const (
	ApplicationPending   Status = "pending"
	ApplicationReviewing Status = "reviewing"
	ApplicationInterview Status = "interview"
	ApplicationAccepted  Status = "accepted"
	ApplicationRejected  Status = "rejected"
	ApplicationWithdrawn Status = "withdrawn"
)

// Account statuses are shared by candidates and employers.
const (
	AccountPending   Status = "pending"
	AccountApproved  Status = "approved"
	AccountActive    Status = "active"
	AccountSuspended Status = "suspended"
	AccountInactive  Status = "inactive"
)

// Entity is a status-carrying record of one of the four kinds. ID is unique
// within a kind. OwnerID is the employer for jobs and applications (via the
// parent job) and the profile owner for candidates and employers; zero means
// absent. CandidateID is only set for applications.
type Entity struct {
	ID          int64             `gorm:"primaryKey;autoIncrement:false"`
	Kind        Kind              `gorm:"primaryKey;size:16"`
	Status      Status            `gorm:"size:16;index"`
	OwnerID     int64             `gorm:"index"`
	CandidateID int64             `gorm:"index"`
	Metadata    map[string]string `gorm:"type:text;serializer:json"`
	ExpiresAt   *time.Time
	Version     int64 `gorm:"not null;default:0"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (e Entity) Ref() EntityRef {
	return EntityRef{Kind: e.Kind, ID: e.ID}
}

type EntityRef struct {
	Kind Kind
	ID   int64
}

func (r EntityRef) String() string {
	return fmt.Sprintf("%s#%d", r.Kind, r.ID)
}
