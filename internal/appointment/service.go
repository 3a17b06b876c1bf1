package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	redisclient "github.com/harshdhankhar11/ArogyaSetu-Care-backend/internal/redis"
	"github.com/harshdhankhar11/ArogyaSetu-Care-backend/internal/user"
)

const (
	EventAppointmentCreated = "APPOINTMENT_CREATED"
	EventStatusUpdated      = "APPOINTMENT_STATUS_UPDATED"
)

var (
	ErrMissingField          = errors.New("department, date and time slot are required")
	ErrNoDoctorForDepartment = errors.New("no doctor available for this department")
	ErrSlotFullyBooked       = errors.New("no doctor available in this department for the selected slot")
	ErrInvalidStatus         = errors.New("status must be approved or rejected")
	ErrForbidden             = errors.New("appointment is assigned to another doctor")
	ErrAlreadyFinalized      = errors.New("appointment status is already final")
)

// errDoctorBusy marks one candidate as unavailable inside the booking loop;
// it never leaves the service.
var errDoctorBusy = errors.New("doctor busy for this slot")

type Service struct {
	repo   Repository
	locker redisclient.Locker

	// rng drives the fairness shuffle. Guarded by rngMu: rand.Rand is not
	// safe for concurrent use and bookings run request-parallel.
	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewService wires the scheduler. A nil rng falls back to a time-seeded
// source; tests inject a fixed seed for deterministic permutations.
func NewService(repo Repository, locker redisclient.Locker, rng *rand.Rand) *Service {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Service{
		repo:   repo,
		locker: locker,
		rng:    rng,
	}
}

// Book assigns an available doctor for the requested department/date/slot
// and creates a pending appointment for the caller.
//
// Candidates are resolved by department (falling back to untagged doctors),
// shuffled uniformly, then probed in order. The probe-then-create section
// for each candidate runs under a per-(doctor, date, slot) lock so two
// concurrent bookings cannot both see the same doctor as free; a lock that
// is already held means a booking for that doctor/slot is in flight, and the
// candidate is treated as busy.
func (s *Service) Book(ctx context.Context, caller *user.User, department, date, timeSlot string) (*Appointment, error) {
	department = strings.TrimSpace(department)
	date = strings.TrimSpace(date)
	timeSlot = strings.TrimSpace(timeSlot)
	if department == "" || date == "" || timeSlot == "" {
		return nil, ErrMissingField
	}

	pool, err := s.candidates(ctx, department)
	if err != nil {
		return nil, err
	}

	for _, doc := range s.shuffled(pool) {
		created, err := s.tryAssign(ctx, doc, department, date, timeSlot, caller)
		if err != nil {
			if errors.Is(err, errDoctorBusy) || errors.Is(err, redisclient.ErrLockNotAcquired) {
				continue
			}
			return nil, err
		}

		s.logEvent(ctx, created.ID, EventAppointmentCreated, map[string]any{
			"department": department,
			"doctor_id":  doc.ID.String(),
			"patient_id": caller.ID.String(),
			"date":       date,
			"time_slot":  timeSlot,
		})

		return created, nil
	}

	return nil, ErrSlotFullyBooked
}

// candidates resolves the doctor pool for a department, falling back to the
// generalist pool when the department has no tagged doctors.
func (s *Service) candidates(ctx context.Context, department string) ([]DoctorRef, error) {
	pool, err := s.repo.FindDoctorsByDepartment(ctx, department)
	if err != nil {
		return nil, fmt.Errorf("find department doctors: %w", err)
	}

	if len(pool) == 0 {
		pool, err = s.repo.FindGeneralistDoctors(ctx)
		if err != nil {
			return nil, fmt.Errorf("find generalist doctors: %w", err)
		}
	}

	if len(pool) == 0 {
		return nil, ErrNoDoctorForDepartment
	}

	return pool, nil
}

func (s *Service) shuffled(pool []DoctorRef) []DoctorRef {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return shuffleRefs(s.rng, pool)
}

// tryAssign probes one candidate and, if free, commits the appointment. The
// whole sequence holds the booking lock for that doctor/date/slot.
func (s *Service) tryAssign(ctx context.Context, doc DoctorRef, department, date, timeSlot string, caller *user.User) (*Appointment, error) {
	var created *Appointment

	err := s.locker.WithBookingLock(ctx, doc.ID, date, timeSlot, func(lockCtx context.Context) error {
		busy, err := s.repo.HasActiveAppointment(lockCtx, doc, date, timeSlot)
		if err != nil {
			return fmt.Errorf("check doctor availability: %w", err)
		}
		if busy {
			return errDoctorBusy
		}

		doctorID := doc.ID
		appt, err := s.repo.CreatePending(lockCtx, &Appointment{
			Department:  department,
			DoctorID:    &doctorID,
			DoctorName:  doc.Name,
			PatientID:   caller.ID,
			PatientName: caller.Name,
			Date:        date,
			TimeSlot:    timeSlot,
			Status:      StatusPending,
		})
		if err != nil {
			if errors.Is(err, ErrDoctorSlotTaken) {
				return errDoctorBusy
			}
			return fmt.Errorf("create appointment: %w", err)
		}

		created = appt
		return nil
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

// ListForCaller returns the caller's appointments, newest first: a patient
// sees what they booked, a doctor sees what is assigned to them (by id or
// legacy name).
func (s *Service) ListForCaller(ctx context.Context, caller *user.User) ([]Appointment, error) {
	var (
		appts []Appointment
		err   error
	)

	switch caller.Role {
	case user.RoleDoctor:
		appts, err = s.repo.ListByDoctor(ctx, DoctorRef{ID: caller.ID, Name: caller.Name})
	default:
		appts, err = s.repo.ListByPatient(ctx, caller.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}

	return appts, nil
}

// UpdateStatus moves a pending appointment to approved or rejected. Only the
// assigned doctor may do this, and both transitions are terminal.
func (s *Service) UpdateStatus(ctx context.Context, caller *user.User, id uuid.UUID, status Status) (*Appointment, error) {
	if status != StatusApproved && status != StatusRejected {
		return nil, ErrInvalidStatus
	}

	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if !appt.AssignedTo(DoctorRef{ID: caller.ID, Name: caller.Name}) {
		return nil, ErrForbidden
	}

	if appt.Status.Terminal() {
		return nil, ErrAlreadyFinalized
	}

	updated, err := s.repo.UpdateStatus(ctx, appt.ID, StatusPending, status)
	if err != nil {
		// A concurrent update can win between the read and the guarded
		// write; the row is then no longer pending.
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrAlreadyFinalized
		}
		return nil, fmt.Errorf("update appointment status: %w", err)
	}

	s.logEvent(ctx, updated.ID, EventStatusUpdated, map[string]any{
		"status":    string(status),
		"doctor_id": caller.ID.String(),
	})

	return updated, nil
}

// DoctorStats computes the caller's appointment counts by status. The four
// counts are independent reads and run concurrently.
func (s *Service) DoctorStats(ctx context.Context, caller *user.User) (*Stats, error) {
	ref := DoctorRef{ID: caller.ID, Name: caller.Name}

	var stats Stats
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		n, err := s.repo.CountByDoctor(gCtx, ref)
		stats.Total = n
		return err
	})
	for _, part := range []struct {
		status Status
		dst    *int64
	}{
		{StatusPending, &stats.Pending},
		{StatusApproved, &stats.Approved},
		{StatusRejected, &stats.Rejected},
	} {
		g.Go(func() error {
			n, err := s.repo.CountByDoctorAndStatus(gCtx, ref, part.status)
			*part.dst = n
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("count appointments: %w", err)
	}

	return &stats, nil
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("failed to marshal event payload for %s: %v", eventType, err)
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     time.Now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		log.Printf("failed to insert event log %s for appointment %s: %v", eventType, appointmentID, err)
	}
}
