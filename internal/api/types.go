package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/mydoc/practice-scheduling/internal/scheduling"
)

// Request bodies

type ScheduleRequestBody struct {
	RequestID string `json:"request_id" validate:"required,uuid"`
	SlotID    string `json:"slot_id" validate:"required,uuid"`
}

type ScheduleNextBody struct {
	RequestID string `json:"request_id" validate:"required,uuid"`
}

type RescheduleBody struct {
	NewSlotID string `json:"new_slot_id" validate:"required,uuid"`
}

type CreateSlotBody struct {
	StartTime       time.Time `json:"start_time" validate:"required"`
	EndTime         time.Time `json:"end_time" validate:"required"`
	DurationMinutes int       `json:"duration_minutes" validate:"omitempty,min=5,max=480"`
	Note            *string   `json:"note"`
}

type CreateSlotBlockBody struct {
	Day                 string `json:"day" validate:"required,datetime=2006-01-02"`
	StartMinuteOfDay    int    `json:"start_minute_of_day" validate:"min=0,max=1439"`
	EndMinuteOfDay      int    `json:"end_minute_of_day" validate:"required,min=1,max=1440"`
	SlotDurationMinutes int    `json:"slot_duration_minutes" validate:"required,min=5,max=480"`
}

type PatientBody struct {
	FirstName string  `json:"nome" validate:"required"`
	LastName  string  `json:"cognome" validate:"required"`
	Phone     string  `json:"telefono" validate:"required"`
	Email     *string `json:"email" validate:"omitempty,email"`
	Note      *string `json:"note"`
}

type CreateRequestBody struct {
	PatientID   string     `json:"patient_id" validate:"required,uuid"`
	Reason      string     `json:"motivo" validate:"required"`
	Urgency     string     `json:"urgenza" validate:"required,oneof=bassa media alta"`
	DesiredDate *time.Time `json:"desired_date"`
	Note        *string    `json:"note"`
}

type RejectRequestBody struct {
	Note *string `json:"note"`
}

type RequestNoteBody struct {
	Note string `json:"note"`
}

// Responses

type AppointmentResponse struct {
	ID        uuid.UUID `json:"id"`
	RequestID uuid.UUID `json:"request_id"`
	SlotID    uuid.UUID `json:"slot_id"`
	Note      *string   `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toAppointmentResponse(a *scheduling.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:        a.ID,
		RequestID: a.RequestID,
		SlotID:    a.SlotID,
		Note:      a.Note,
		CreatedAt: a.CreatedAt,
	}
}

type SlotResponse struct {
	ID              uuid.UUID `json:"id"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	DurationMinutes int       `json:"duration_minutes"`
	IsAvailable     bool      `json:"is_available"`
	Note            *string   `json:"note,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

func toSlotResponse(s *scheduling.DoctorSlot) SlotResponse {
	return SlotResponse{
		ID:              s.ID,
		StartTime:       s.StartTime,
		EndTime:         s.EndTime,
		DurationMinutes: s.DurationMinutes,
		IsAvailable:     s.IsAvailable,
		Note:            s.Note,
		CreatedAt:       s.CreatedAt,
	}
}

type BlockResponse struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

type PatientResponse struct {
	ID        uuid.UUID `json:"id"`
	FirstName string    `json:"nome"`
	LastName  string    `json:"cognome"`
	Phone     string    `json:"telefono"`
	Email     *string   `json:"email,omitempty"`
	Note      *string   `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toPatientResponse(p *scheduling.Patient) PatientResponse {
	return PatientResponse{
		ID:        p.ID,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Phone:     p.Phone,
		Email:     p.Email,
		Note:      p.Note,
		CreatedAt: p.CreatedAt,
	}
}

type RequestResponse struct {
	ID          uuid.UUID        `json:"id"`
	PatientID   uuid.UUID        `json:"patient_id"`
	Reason      string           `json:"motivo"`
	Urgency     string           `json:"urgenza"`
	Status      string           `json:"stato"`
	DesiredDate *time.Time       `json:"desired_date,omitempty"`
	Note        *string          `json:"note,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	Patient     *PatientResponse `json:"patient,omitempty"`
}

func toRequestResponse(r *scheduling.Request) RequestResponse {
	return RequestResponse{
		ID:          r.ID,
		PatientID:   r.PatientID,
		Reason:      r.Reason,
		Urgency:     string(r.Urgency),
		Status:      string(r.Status),
		DesiredDate: r.DesiredDate,
		Note:        r.Note,
		CreatedAt:   r.CreatedAt,
	}
}

type AppointmentDetailResponse struct {
	AppointmentResponse
	Slot    *SlotResponse    `json:"slot,omitempty"`
	Request *RequestResponse `json:"request,omitempty"`
	Patient *PatientResponse `json:"patient,omitempty"`
}

func toAppointmentDetailResponse(d *scheduling.AppointmentDetail) AppointmentDetailResponse {
	resp := AppointmentDetailResponse{AppointmentResponse: toAppointmentResponse(&d.Appointment)}
	if d.Slot != nil {
		s := toSlotResponse(d.Slot)
		resp.Slot = &s
	}
	if d.Request != nil {
		r := toRequestResponse(d.Request)
		resp.Request = &r
	}
	if d.Patient != nil {
		p := toPatientResponse(d.Patient)
		resp.Patient = &p
	}
	return resp
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Ref     string `json:"ref,omitempty"`
}
