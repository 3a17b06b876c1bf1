package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/harshdhankhar11/ArogyaSetu-Care-backend/internal/appointment"
	"github.com/harshdhankhar11/ArogyaSetu-Care-backend/internal/user"
)

type RouterConfig struct {
	Users        *user.Service
	Appointments *appointment.Service
	PgPool       *pgxpool.Pool
	Redis        *redis.Client
	Env          string
	Version      string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Auth endpoints
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", registerHandler(cfg.Users))
		r.Post("/login", loginHandler(cfg.Users))
	})

	// Appointment endpoints, all behind authentication. Booking is a
	// patient capability; moderation and stats are doctor capabilities.
	r.Route("/api/appointments", func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Users))

		r.With(RequireCapability(user.Role.CanBook)).
			Post("/", createAppointmentHandler(cfg.Appointments))
		r.Get("/", listAppointmentsHandler(cfg.Appointments))
		r.With(RequireCapability(user.Role.CanReview)).
			Get("/stats/doctor", doctorStatsHandler(cfg.Appointments))
		r.With(RequireCapability(user.Role.CanReview)).
			Put("/{id}", updateAppointmentStatusHandler(cfg.Appointments))
	})

	return r
}
