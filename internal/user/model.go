package user

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
)

func (r Role) Valid() bool {
	return r == RolePatient || r == RoleDoctor
}

// CanBook reports whether this role may request new appointments.
func (r Role) CanBook() bool {
	return r == RolePatient
}

// CanReview reports whether this role may approve/reject appointments
// and read per-doctor statistics.
func (r Role) CanReview() bool {
	return r == RoleDoctor
}

type User struct {
	ID           uuid.UUID
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	// Department is free text. Empty for patients and for doctors that have
	// not been tagged yet (the generalist pool).
	Department string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
