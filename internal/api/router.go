package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/mydoc/practice-scheduling/internal/scheduling"
)

type RouterConfig struct {
	Service *scheduling.Service
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Log     zerolog.Logger
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Log))

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	h := NewHandlers(cfg.Service, cfg.Log, cfg.Env == "prod")

	// Booking commands
	r.Post("/appointments", h.scheduleRequest)
	r.Post("/appointments/next-available", h.scheduleRequestAtNextAvailable)
	r.Get("/appointments", h.listAppointments)
	r.Get("/appointments/{id}", h.getAppointment)
	r.Post("/appointments/{id}/reschedule", h.rescheduleAppointment)
	r.Delete("/appointments/{id}", h.cancelAppointment)

	// Slots
	r.Post("/slots", h.createSlot)
	r.Post("/slots/block", h.createSlotBlock)
	r.Get("/slots", h.listSlots)
	r.Get("/slots/next-available", h.nextAvailableSlot)
	r.Get("/slots/{id}", h.getSlot)
	r.Delete("/slots/{id}", h.deleteSlot)

	// Patients
	r.Post("/patients", h.createPatient)
	r.Get("/patients", h.listPatients)
	r.Get("/patients/{id}", h.getPatient)
	r.Put("/patients/{id}", h.updatePatient)
	r.Delete("/patients/{id}", h.deletePatient)
	r.Get("/patients/{id}/requests", h.listPatientRequests)

	// Waiting-list requests
	r.Post("/requests", h.createRequest)
	r.Get("/requests", h.listRequests)
	r.Get("/requests/{id}", h.getRequest)
	r.Get("/requests/{id}/appointment", h.getAppointmentByRequest)
	r.Post("/requests/{id}/reject", h.rejectRequest)
	r.Put("/requests/{id}/note", h.updateRequestNote)
	r.Delete("/requests/{id}", h.deleteRequest)

	return r
}
