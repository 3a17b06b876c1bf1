package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/harshdhankhar11/ArogyaSetu-Care-backend/internal/appointment"
)

func createAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		caller := CallerFrom(r.Context())

		appt, err := svc.Book(r.Context(), caller, req.Department, req.Date, req.TimeSlot)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func listAppointmentsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller := CallerFrom(r.Context())

		appts, err := svc.ListForCaller(r.Context(), caller)
		if err != nil {
			log.Printf("list appointments error: %v", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "server error")
			return
		}

		resp := AppointmentListResponse{
			Appointments: make([]AppointmentResponse, 0, len(appts)),
		}
		for i := range appts {
			resp.Appointments = append(resp.Appointments, toAppointmentResponse(&appts[i]))
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func updateAppointmentStatusHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		idStr := chi.URLParam(r, "id")
		id, err := uuid.Parse(idStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req UpdateStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		caller := CallerFrom(r.Context())

		appt, err := svc.UpdateStatus(r.Context(), caller, id, appointment.Status(req.Status))
		if err != nil {
			handleStatusError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func doctorStatsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller := CallerFrom(r.Context())

		stats, err := svc.DoctorStats(r.Context(), caller)
		if err != nil {
			log.Printf("doctor stats error: %v", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "server error")
			return
		}

		writeJSON(w, http.StatusOK, StatsResponse{
			Total:    stats.Total,
			Pending:  stats.Pending,
			Approved: stats.Approved,
			Rejected: stats.Rejected,
		})
	}
}

func handleBookingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, appointment.ErrMissingField):
		writeError(w, http.StatusBadRequest, "missing_field", err.Error())
	case errors.Is(err, appointment.ErrNoDoctorForDepartment):
		writeError(w, http.StatusNotFound, "no_doctor_for_department", err.Error())
	case errors.Is(err, appointment.ErrSlotFullyBooked):
		writeError(w, http.StatusConflict, "slot_fully_booked", err.Error())
	default:
		log.Printf("booking error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "server error")
	}
}

func handleStatusError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, appointment.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, "invalid_status", err.Error())
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, appointment.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, appointment.ErrAlreadyFinalized):
		writeError(w, http.StatusConflict, "status_already_final", err.Error())
	default:
		log.Printf("status update error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "server error")
	}
}
