package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/mydoc/practice-scheduling/internal/scheduling"
)

func (h *Handlers) createRequest(w http.ResponseWriter, r *http.Request) {
	var body CreateRequestBody
	if !h.decode(w, r, &body) {
		return
	}

	patientID, _ := uuid.Parse(body.PatientID)

	req, err := h.svc.CreateRequest(r.Context(), patientID, body.Reason, scheduling.Urgency(body.Urgency), body.DesiredDate, body.Note)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRequestResponse(req))
}

func (h *Handlers) getRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	req, err := h.svc.GetRequest(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestResponse(req))
}

// listRequests serves the waiting list: filterable by stato, ordered by
// urgency then creation time.
func (h *Handlers) listRequests(w http.ResponseWriter, r *http.Request) {
	details, err := h.svc.ListRequests(r.Context(), r.URL.Query().Get("stato"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	resp := make([]RequestResponse, 0, len(details))
	for i := range details {
		rr := toRequestResponse(&details[i].Request)
		if details[i].Patient != nil {
			p := toPatientResponse(details[i].Patient)
			rr.Patient = &p
		}
		resp = append(resp, rr)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) rejectRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var body RejectRequestBody
	if !h.decode(w, r, &body) {
		return
	}
	if err := h.svc.RejectRequest(r.Context(), id, body.Note); err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handlers) updateRequestNote(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var body RequestNoteBody
	if !h.decode(w, r, &body) {
		return
	}
	if err := h.svc.UpdateRequestNote(r.Context(), id, body.Note); err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handlers) deleteRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteRequest(r.Context(), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
