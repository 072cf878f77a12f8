package models

import (
	"errors"
	"time"
)

type Role string

const (
	RoleAdministrator Role = "administrator"
	RoleSleeveAdmin   Role = "sleeve_admin"
	RoleEmployer      Role = "employer"
	RoleCandidate     Role = "candidate"
)

func ToRole(s string) (Role, error) {
	switch s {
	case string(RoleAdministrator):
		return RoleAdministrator, nil
	case string(RoleSleeveAdmin):
		return RoleSleeveAdmin, nil
	case string(RoleEmployer):
		return RoleEmployer, nil
	case string(RoleCandidate):
		return RoleCandidate, nil
	default:
		return "", errors.New("invalid role")
	}
}

// IsAdmin reports whether the role carries every capability.
func (r Role) IsAdmin() bool {
	return r == RoleAdministrator || r == RoleSleeveAdmin
}

type Actor struct {
	ID   int64
	Role Role
}

// User is the identity record behind an Actor together with the contact
// details notifications are addressed to.
type User struct {
	ID         int64 `gorm:"primaryKey"`
	Role       Role  `gorm:"size:16"`
	Name       string
	Email      string
	TelegramID int64 `gorm:"index"`
	CreatedAt  time.Time
}

func (u User) Actor() Actor {
	return Actor{ID: u.ID, Role: u.Role}
}
