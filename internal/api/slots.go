package api

import (
	"net/http"
	"time"
)

func (h *Handlers) createSlot(w http.ResponseWriter, r *http.Request) {
	var body CreateSlotBody
	if !h.decode(w, r, &body) {
		return
	}

	slot, err := h.svc.CreateDoctorSlot(r.Context(), body.StartTime, body.EndTime, body.DurationMinutes, body.Note)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSlotResponse(slot))
}

func (h *Handlers) createSlotBlock(w http.ResponseWriter, r *http.Request) {
	var body CreateSlotBlockBody
	if !h.decode(w, r, &body) {
		return
	}

	day, err := time.ParseInLocation("2006-01-02", body.Day, time.Local)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_day", "day must be YYYY-MM-DD")
		return
	}

	res, err := h.svc.CreateDoctorSlotsBlock(r.Context(), day, body.StartMinuteOfDay, body.EndMinuteOfDay, body.SlotDurationMinutes)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, BlockResponse{Created: res.Created, Skipped: res.Skipped})
}

func (h *Handlers) deleteSlot(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteDoctorSlot(r.Context(), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handlers) getSlot(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	slot, err := h.svc.GetSlot(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSlotResponse(slot))
}

// listSlots serves GET /slots?start=...&end=...&only_available=true with
// RFC 3339 bounds; availability filtering is opt-in because some callers
// render booked slots too.
func (h *Handlers) listSlots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	start, err := time.Parse(time.RFC3339, q.Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_start", "start must be RFC 3339")
		return
	}
	end, err := time.Parse(time.RFC3339, q.Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_end", "end must be RFC 3339")
		return
	}
	onlyAvailable := q.Get("only_available") == "true"

	slots, err := h.svc.AvailableSlotsInRange(r.Context(), start, end, onlyAvailable)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	resp := make([]SlotResponse, 0, len(slots))
	for i := range slots {
		resp = append(resp, toSlotResponse(&slots[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) nextAvailableSlot(w http.ResponseWriter, r *http.Request) {
	var from *time.Time
	if raw := r.URL.Query().Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_from", "from must be RFC 3339")
			return
		}
		from = &t
	}

	slot, err := h.svc.NextAvailableSlot(r.Context(), from)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSlotResponse(slot))
}
