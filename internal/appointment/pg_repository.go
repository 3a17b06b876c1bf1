package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var doctorID *uuid.UUID

	err := row.Scan(
		&a.ID,
		&a.Department,
		&doctorID,
		&a.DoctorName,
		&a.PatientID,
		&a.PatientName,
		&a.Date,
		&a.TimeSlot,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.DoctorID = doctorID
	return &a, nil
}

func scanDoctorRefs(rows pgx.Rows) ([]DoctorRef, error) {
	defer rows.Close()

	var refs []DoctorRef
	for rows.Next() {
		var ref DoctorRef
		if err := rows.Scan(&ref.ID, &ref.Name); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return refs, nil
}

const appointmentColumns = `
	id, department, doctor_id, doctor_name, patient_id, patient_name,
	date, time_slot, status, created_at, updated_at`

// Interface methods

func (r *PgRepository) FindDoctorsByDepartment(ctx context.Context, department string) ([]DoctorRef, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name
		FROM users
		WHERE role = 'doctor'
		  AND lower(trim(department)) = lower(trim($1))
	`, department)
	if err != nil {
		return nil, err
	}
	return scanDoctorRefs(rows)
}

func (r *PgRepository) FindGeneralistDoctors(ctx context.Context) ([]DoctorRef, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name
		FROM users
		WHERE role = 'doctor'
		  AND trim(coalesce(department, '')) = ''
	`)
	if err != nil {
		return nil, err
	}
	return scanDoctorRefs(rows)
}

func (r *PgRepository) HasActiveAppointment(ctx context.Context, doctor DoctorRef, date, timeSlot string) (bool, error) {
	var busy bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM appointments
			WHERE date = $1
			  AND time_slot = $2
			  AND status IN ('pending', 'approved')
			  AND (doctor_id = $3 OR doctor_name = $4)
		)
	`, date, timeSlot, doctor.ID, doctor.Name).Scan(&busy)
	if err != nil {
		return false, err
	}
	return busy, nil
}

func (r *PgRepository) CreatePending(ctx context.Context, appt *Appointment) (*Appointment, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments
			(id, department, doctor_id, doctor_name, patient_id, patient_name,
			 date, time_slot, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'pending', now(), now())
		RETURNING`+appointmentColumns+`
	`, id, appt.Department, appt.DoctorID, appt.DoctorName, appt.PatientID,
		appt.PatientName, appt.Date, appt.TimeSlot)

	created, err := scanAppointment(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDoctorSlotTaken
		}
		return nil, err
	}

	return created, nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT`+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING`+appointmentColumns+`
	`, id, to, from)

	return scanAppointment(row)
}

func (r *PgRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		ORDER BY created_at DESC
	`, patientID)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) ListByDoctor(ctx context.Context, doctor DoctorRef) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1 OR doctor_name = $2
		ORDER BY created_at DESC
	`, doctor.ID, doctor.Name)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) CountByDoctor(ctx context.Context, doctor DoctorRef) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM appointments
		WHERE doctor_id = $1 OR doctor_name = $2
	`, doctor.ID, doctor.Name).Scan(&n)
	return n, err
}

func (r *PgRepository) CountByDoctorAndStatus(ctx context.Context, doctor DoctorRef, status Status) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM appointments
		WHERE (doctor_id = $1 OR doctor_name = $2)
		  AND status = $3
	`, doctor.ID, doctor.Name, status).Scan(&n)
	return n, err
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
