package appointment

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Terminal reports whether no further transition is allowed from this status.
// Only pending appointments may still move.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// DoctorRef identifies a doctor either by user id or by the denormalized
// name stored on legacy appointment rows that predate the id link. Every
// doctor match in the system (conflict probe, listing, authorization,
// statistics) goes through this one value so that dropping name matching
// later is a single-place change.
type DoctorRef struct {
	ID   uuid.UUID
	Name string
}

// Matches reports whether an appointment's doctor columns refer to this
// doctor, by id when the row carries one, or by name for legacy rows.
func (ref DoctorRef) Matches(doctorID *uuid.UUID, doctorName string) bool {
	if doctorID != nil && *doctorID == ref.ID {
		return true
	}
	return ref.Name != "" && doctorName == ref.Name
}

type Appointment struct {
	ID         uuid.UUID
	Department string
	// DoctorID is nullable: historical rows may only carry DoctorName.
	DoctorID    *uuid.UUID
	DoctorName  string
	PatientID   uuid.UUID
	PatientName string
	// Date is an externally formatted calendar day; TimeSlot is an opaque
	// interval token such as "10:00-10:30". Both are matched verbatim.
	Date      string
	TimeSlot  string
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AssignedTo reports whether this appointment belongs to the given doctor.
func (a *Appointment) AssignedTo(ref DoctorRef) bool {
	return ref.Matches(a.DoctorID, a.DoctorName)
}

// Stats are the per-doctor appointment counts, partitioned by status.
type Stats struct {
	Total    int64
	Pending  int64
	Approved int64
	Rejected int64
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
