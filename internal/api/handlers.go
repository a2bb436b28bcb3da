package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mydoc/practice-scheduling/internal/scheduling"
)

type Handlers struct {
	svc      *scheduling.Service
	validate *validator.Validate
	log      zerolog.Logger
	prod     bool
}

func NewHandlers(svc *scheduling.Service, log zerolog.Logger, prod bool) *Handlers {
	return &Handlers{
		svc:      svc,
		validate: validator.New(),
		log:      log,
		prod:     prod,
	}
}

// decode parses and validates a JSON body. A false return means the error
// response has already been written.
func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

// Booking endpoints

func (h *Handlers) scheduleRequest(w http.ResponseWriter, r *http.Request) {
	var body ScheduleRequestBody
	if !h.decode(w, r, &body) {
		return
	}

	requestID, _ := uuid.Parse(body.RequestID)
	slotID, _ := uuid.Parse(body.SlotID)

	appt, err := h.svc.ScheduleRequest(r.Context(), requestID, slotID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
}

func (h *Handlers) scheduleRequestAtNextAvailable(w http.ResponseWriter, r *http.Request) {
	var body ScheduleNextBody
	if !h.decode(w, r, &body) {
		return
	}

	requestID, _ := uuid.Parse(body.RequestID)

	appt, err := h.svc.ScheduleRequestAtNextAvailable(r.Context(), requestID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
}

func (h *Handlers) rescheduleAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var body RescheduleBody
	if !h.decode(w, r, &body) {
		return
	}

	newSlotID, _ := uuid.Parse(body.NewSlotID)

	if err := h.svc.RescheduleAppointment(r.Context(), id, newSlotID); err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handlers) cancelAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.CancelAppointment(r.Context(), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handlers) getAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	appt, err := h.svc.GetAppointment(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *Handlers) listAppointments(w http.ResponseWriter, r *http.Request) {
	details, err := h.svc.ListAppointments(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	resp := make([]AppointmentDetailResponse, 0, len(details))
	for i := range details {
		resp = append(resp, toAppointmentDetailResponse(&details[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) getAppointmentByRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	detail, err := h.svc.AppointmentByRequest(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentDetailResponse(detail))
}
