package scheduling

import (
	"time"

	"github.com/google/uuid"
)

type RequestStatus string

const (
	RequestWaiting   RequestStatus = "waiting"
	RequestScheduled RequestStatus = "scheduled"
	RequestRejected  RequestStatus = "rejected"
)

type Urgency string

const (
	UrgencyLow    Urgency = "bassa"
	UrgencyMedium Urgency = "media"
	UrgencyHigh   Urgency = "alta"
)

// urgencyRank orders the waiting list for display: alta first.
func urgencyRank(u Urgency) int {
	switch u {
	case UrgencyHigh:
		return 0
	case UrgencyMedium:
		return 1
	default:
		return 2
	}
}

type Patient struct {
	ID        uuid.UUID
	FirstName string
	LastName  string
	Phone     string
	Email     *string
	Note      *string
	CreatedAt time.Time
}

type Request struct {
	ID          uuid.UUID
	PatientID   uuid.UUID
	Reason      string
	Urgency     Urgency
	Status      RequestStatus
	DesiredDate *time.Time
	Note        *string
	CreatedAt   time.Time
}

// DoctorSlot is a bookable time window. IsAvailable is derived state: it is
// true iff no appointment references the slot, and is only ever flipped in
// the same transaction as the appointment row change.
type DoctorSlot struct {
	ID              uuid.UUID
	StartTime       time.Time
	EndTime         time.Time
	DurationMinutes int
	IsAvailable     bool
	Note            *string
	CreatedAt       time.Time
}

// Appointment binds exactly one request to exactly one slot. Both FKs carry
// uniqueness constraints, so a request never holds two appointments and a
// slot is never double-booked even if an application-level guard is bypassed.
type Appointment struct {
	ID        uuid.UUID
	RequestID uuid.UUID
	SlotID    uuid.UUID
	Note      *string
	CreatedAt time.Time
}

type RequestDetail struct {
	Request
	Patient *Patient
}

type AppointmentDetail struct {
	Appointment
	Slot    *DoctorSlot
	Request *Request
	Patient *Patient
}

// BlockResult reports the outcome of bulk slot creation: conflicting
// sub-slots are skipped, not fatal.
type BlockResult struct {
	Created int
	Skipped int
}
