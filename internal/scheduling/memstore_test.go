package scheduling

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory Repository for service tests. One mutex held
// across each whole operation gives the same effective isolation as the
// store's transactions: precondition checks and writes are a single atomic
// unit, and nothing mutates unless every guard passed.
type memStore struct {
	mu           sync.Mutex
	patients     map[uuid.UUID]Patient
	requests     map[uuid.UUID]Request
	slots        map[uuid.UUID]DoctorSlot
	appointments map[uuid.UUID]Appointment
}

func newMemStore() *memStore {
	return &memStore{
		patients:     make(map[uuid.UUID]Patient),
		requests:     make(map[uuid.UUID]Request),
		slots:        make(map[uuid.UUID]DoctorSlot),
		appointments: make(map[uuid.UUID]Appointment),
	}
}

func (m *memStore) apptForRequest(requestID uuid.UUID) (Appointment, bool) {
	for _, a := range m.appointments {
		if a.RequestID == requestID {
			return a, true
		}
	}
	return Appointment{}, false
}

func (m *memStore) apptForSlot(slotID uuid.UUID) (Appointment, bool) {
	for _, a := range m.appointments {
		if a.SlotID == slotID {
			return a, true
		}
	}
	return Appointment{}, false
}

// Patients

func (m *memStore) CreatePatient(_ context.Context, p Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.patients {
		if existing.Phone == p.Phone {
			return ErrDuplicatePhone
		}
	}
	m.patients[p.ID] = p
	return nil
}

func (m *memStore) UpdatePatient(_ context.Context, p Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.patients[p.ID]
	if !ok {
		return ErrPatientNotFound
	}
	for id, other := range m.patients {
		if id != p.ID && other.Phone == p.Phone {
			return ErrDuplicatePhone
		}
	}
	p.CreatedAt = existing.CreatedAt
	m.patients[p.ID] = p
	return nil
}

func (m *memStore) DeletePatient(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.patients[id]; !ok {
		return ErrPatientNotFound
	}
	for _, r := range m.requests {
		if r.PatientID == id {
			return ErrPatientHasRequests
		}
	}
	delete(m.patients, id)
	return nil
}

func (m *memStore) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (m *memStore) ListPatients(_ context.Context) ([]Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Patient, 0, len(m.patients))
	for _, p := range m.patients {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastName != out[j].LastName {
			return out[i].LastName < out[j].LastName
		}
		return out[i].FirstName < out[j].FirstName
	})
	return out, nil
}

// Requests

func (m *memStore) CreateRequest(_ context.Context, r Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.patients[r.PatientID]; !ok {
		return ErrPatientNotFound
	}
	m.requests[r.ID] = r
	return nil
}

func (m *memStore) UpdateRequestStatus(_ context.Context, id uuid.UUID, from, to RequestStatus, note *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return ErrRequestNotFound
	}
	if r.Status != from {
		if _, booked := m.apptForRequest(id); booked {
			return ErrRequestHasBooking
		}
		return ErrRequestNotWaiting
	}
	r.Status = to
	if note != nil {
		r.Note = note
	}
	m.requests[id] = r
	return nil
}

func (m *memStore) UpdateRequestNote(_ context.Context, id uuid.UUID, note *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return ErrRequestNotFound
	}
	r.Note = note
	m.requests[id] = r
	return nil
}

func (m *memStore) DeleteRequest(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.requests[id]; !ok {
		return ErrRequestNotFound
	}
	if _, booked := m.apptForRequest(id); booked {
		return ErrRequestHasBooking
	}
	delete(m.requests, id)
	return nil
}

func (m *memStore) GetRequestByID(_ context.Context, id uuid.UUID) (*Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, ErrRequestNotFound
	}
	return &r, nil
}

func (m *memStore) ListRequests(_ context.Context) ([]RequestDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RequestDetail, 0, len(m.requests))
	for _, r := range m.requests {
		d := RequestDetail{Request: r}
		if p, ok := m.patients[r.PatientID]; ok {
			p := p
			d.Patient = &p
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *memStore) ListRequestsByPatient(_ context.Context, patientID uuid.UUID) ([]Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Request
	for _, r := range m.requests {
		if r.PatientID == patientID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Slots

func (m *memStore) overlapsExisting(start, end time.Time) bool {
	for _, s := range m.slots {
		if Overlaps(s.StartTime, s.EndTime, start, end) {
			return true
		}
	}
	return false
}

func (m *memStore) InsertSlot(_ context.Context, s DoctorSlot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.overlapsExisting(s.StartTime, s.EndTime) {
		return ErrSlotOverlap
	}
	m.slots[s.ID] = s
	return nil
}

func (m *memStore) InsertSlotBlock(_ context.Context, candidates []DoctorSlot) (BlockResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res BlockResult
	for _, s := range candidates {
		if m.overlapsExisting(s.StartTime, s.EndTime) {
			res.Skipped++
			continue
		}
		m.slots[s.ID] = s
		res.Created++
	}
	return res, nil
}

func (m *memStore) DeleteSlot(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.slots[id]; !ok {
		return ErrSlotNotFound
	}
	if _, booked := m.apptForSlot(id); booked {
		return ErrSlotHasBooking
	}
	delete(m.slots, id)
	return nil
}

func (m *memStore) GetSlotByID(_ context.Context, id uuid.UUID) (*DoctorSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	return &s, nil
}

func (m *memStore) SlotsInRange(_ context.Context, start, end time.Time) ([]DoctorSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []DoctorSlot
	for _, s := range m.slots {
		if !s.StartTime.Before(start) && !s.StartTime.After(end) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out, nil
}

func (m *memStore) NextAvailableSlot(_ context.Context, from time.Time) (*DoctorSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *DoctorSlot
	for _, s := range m.slots {
		s := s
		if !s.IsAvailable || s.StartTime.Before(from) {
			continue
		}
		if best == nil || s.StartTime.Before(best.StartTime) {
			best = &s
		}
	}
	if best == nil {
		return nil, ErrNoSlotAvailable
	}
	return best, nil
}

// Booking transactions

func (m *memStore) BookSlot(_ context.Context, requestID, slotID uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	slot, ok := m.slots[slotID]
	if !ok {
		return nil, ErrSlotNotFound
	}
	if !slot.IsAvailable {
		return nil, ErrSlotNotAvailable
	}
	req, ok := m.requests[requestID]
	if !ok {
		return nil, ErrRequestNotFound
	}
	if _, booked := m.apptForRequest(requestID); booked {
		return nil, ErrRequestHasBooking
	}
	if req.Status != RequestWaiting {
		return nil, ErrRequestNotWaiting
	}

	appt := Appointment{
		ID:        uuid.New(),
		RequestID: requestID,
		SlotID:    slotID,
		CreatedAt: time.Now(),
	}
	slot.IsAvailable = false
	req.Status = RequestScheduled
	m.slots[slotID] = slot
	m.requests[requestID] = req
	m.appointments[appt.ID] = appt
	return &appt, nil
}

func (m *memStore) MoveAppointment(_ context.Context, appointmentID, newSlotID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	appt, ok := m.appointments[appointmentID]
	if !ok {
		return ErrAppointmentNotFound
	}
	if appt.SlotID == newSlotID {
		return nil
	}
	newSlot, ok := m.slots[newSlotID]
	if !ok {
		return ErrSlotNotFound
	}
	if !newSlot.IsAvailable {
		return ErrSlotNotAvailable
	}

	oldSlot := m.slots[appt.SlotID]
	oldSlot.IsAvailable = true
	newSlot.IsAvailable = false
	appt.SlotID = newSlotID
	m.slots[oldSlot.ID] = oldSlot
	m.slots[newSlotID] = newSlot
	m.appointments[appointmentID] = appt
	return nil
}

func (m *memStore) ReleaseAppointment(_ context.Context, appointmentID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	appt, ok := m.appointments[appointmentID]
	if !ok {
		return ErrAppointmentNotFound
	}

	slot := m.slots[appt.SlotID]
	slot.IsAvailable = true
	m.slots[slot.ID] = slot

	req := m.requests[appt.RequestID]
	req.Status = RequestWaiting
	m.requests[req.ID] = req

	delete(m.appointments, appointmentID)
	return nil
}

// Appointment reads

func (m *memStore) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (m *memStore) GetAppointmentByRequest(_ context.Context, requestID uuid.UUID) (*AppointmentDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.apptForRequest(requestID)
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return m.detailLocked(a), nil
}

func (m *memStore) ListAppointments(_ context.Context) ([]AppointmentDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]AppointmentDetail, 0, len(m.appointments))
	for _, a := range m.appointments {
		out = append(out, *m.detailLocked(a))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *memStore) detailLocked(a Appointment) *AppointmentDetail {
	d := AppointmentDetail{Appointment: a}
	if s, ok := m.slots[a.SlotID]; ok {
		s := s
		d.Slot = &s
	}
	if r, ok := m.requests[a.RequestID]; ok {
		r := r
		d.Request = &r
		if p, ok := m.patients[r.PatientID]; ok {
			p := p
			d.Patient = &p
		}
	}
	return &d
}

// checkInvariants recomputes the derived state from the appointment rows
// instead of trusting the flags: is_available must mirror "no appointment
// references this slot" and stato must mirror "exactly one appointment
// references this request".
func checkInvariants(t *testing.T, m *memStore) {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()

	slotRefs := make(map[uuid.UUID]int)
	reqRefs := make(map[uuid.UUID]int)
	for _, a := range m.appointments {
		slotRefs[a.SlotID]++
		reqRefs[a.RequestID]++
	}

	for id, n := range slotRefs {
		require.LessOrEqual(t, n, 1, "slot %s double-booked", id)
	}
	for id, n := range reqRefs {
		require.LessOrEqual(t, n, 1, "request %s has multiple appointments", id)
	}
	for id, s := range m.slots {
		require.Equal(t, slotRefs[id] == 0, s.IsAvailable,
			"slot %s is_available out of sync with appointment rows", id)
	}
	for id, r := range m.requests {
		require.Equal(t, reqRefs[id] == 1, r.Status == RequestScheduled,
			"request %s stato out of sync with appointment rows", id)
	}
}
