package api

import (
	"errors"
	"net/http"

	"github.com/mydoc/practice-scheduling/internal/scheduling"
)

// respondError translates command-layer errors into user-displayable JSON.
// Domain errors map to 4xx with their message; exhausted transient contention
// becomes a 503 busy response; anything unexpected is logged under the
// request's correlation id and, in prod, reduced to a generic message.
func (h *Handlers) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, scheduling.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, scheduling.ErrRequestNotFound):
		writeError(w, http.StatusNotFound, "request_not_found", err.Error())
	case errors.Is(err, scheduling.ErrSlotNotFound):
		writeError(w, http.StatusNotFound, "slot_not_found", err.Error())
	case errors.Is(err, scheduling.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, scheduling.ErrRequestNotWaiting):
		writeError(w, http.StatusConflict, "request_not_waiting", err.Error())
	case errors.Is(err, scheduling.ErrRequestHasBooking):
		writeError(w, http.StatusConflict, "request_already_booked", err.Error())
	case errors.Is(err, scheduling.ErrSlotNotAvailable):
		writeError(w, http.StatusConflict, "slot_not_available", err.Error())
	case errors.Is(err, scheduling.ErrSlotOverlap):
		writeError(w, http.StatusConflict, "slot_overlap", err.Error())
	case errors.Is(err, scheduling.ErrSlotHasBooking):
		writeError(w, http.StatusConflict, "slot_has_appointment", err.Error())
	case errors.Is(err, scheduling.ErrNoSlotAvailable):
		writeError(w, http.StatusConflict, "no_slot_available", err.Error())
	case errors.Is(err, scheduling.ErrDuplicatePhone):
		writeError(w, http.StatusConflict, "duplicate_phone", err.Error())
	case errors.Is(err, scheduling.ErrPatientHasRequests):
		writeError(w, http.StatusConflict, "patient_has_requests", err.Error())
	case errors.Is(err, scheduling.ErrEmptyBlock):
		writeError(w, http.StatusBadRequest, "empty_block", err.Error())
	case errors.Is(err, scheduling.ErrStoreBusy):
		writeError(w, http.StatusServiceUnavailable, "store_busy", "storage busy, try again shortly")
	default:
		ref := GetRequestID(r.Context())
		h.log.Error().
			Str("request_id", ref).
			Str("path", r.URL.Path).
			Err(err).
			Msg("unhandled error")
		details := "unexpected error"
		if !h.prod {
			details = err.Error()
		}
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Details: details,
			Ref:     ref,
		})
	}
}
