package api

import (
	"net/http"
)

func (h *Handlers) createPatient(w http.ResponseWriter, r *http.Request) {
	var body PatientBody
	if !h.decode(w, r, &body) {
		return
	}

	p, err := h.svc.CreatePatient(r.Context(), body.FirstName, body.LastName, body.Phone, body.Email, body.Note)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPatientResponse(p))
}

func (h *Handlers) updatePatient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var body PatientBody
	if !h.decode(w, r, &body) {
		return
	}

	if err := h.svc.UpdatePatient(r.Context(), id, body.FirstName, body.LastName, body.Phone, body.Email, body.Note); err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handlers) deletePatient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.DeletePatient(r.Context(), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handlers) getPatient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	p, err := h.svc.GetPatient(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPatientResponse(p))
}

func (h *Handlers) listPatients(w http.ResponseWriter, r *http.Request) {
	patients, err := h.svc.SearchPatients(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	resp := make([]PatientResponse, 0, len(patients))
	for i := range patients {
		resp = append(resp, toPatientResponse(&patients[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) listPatientRequests(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	reqs, err := h.svc.RequestsByPatient(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	resp := make([]RequestResponse, 0, len(reqs))
	for i := range reqs {
		resp = append(resp, toRequestResponse(&reqs[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}
