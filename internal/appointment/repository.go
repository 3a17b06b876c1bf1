package appointment

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrDoctorSlotTaken is returned by CreatePending when the store's
	// uniqueness constraint on (doctor, date, slot) rejects the insert. It
	// backstops the booking lock: the scheduler retries with the next
	// candidate instead of surfacing it.
	ErrDoctorSlotTaken = errors.New("doctor already booked for this slot")
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	// Candidate pools. Department matching is case-insensitive and trimmed;
	// generalists are doctors with no department tag at all.
	FindDoctorsByDepartment(ctx context.Context, department string) ([]DoctorRef, error)
	FindGeneralistDoctors(ctx context.Context) ([]DoctorRef, error)

	// Conflict probe: does the doctor hold a pending/approved appointment in
	// this exact date+slot, matched by id or legacy name.
	HasActiveAppointment(ctx context.Context, doctor DoctorRef, date, timeSlot string) (bool, error)

	CreatePending(ctx context.Context, appt *Appointment) (*Appointment, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)

	// Listings, newest first.
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error)
	ListByDoctor(ctx context.Context, doctor DoctorRef) ([]Appointment, error)

	// Statistics.
	CountByDoctor(ctx context.Context, doctor DoctorRef) (int64, error)
	CountByDoctorAndStatus(ctx context.Context, doctor DoctorRef, status Status) (int64, error)

	// Event logging.
	InsertEvent(ctx context.Context, ev EventLog) error
}
