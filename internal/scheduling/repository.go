package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPatientNotFound     = errors.New("patient not found")
	ErrPatientHasRequests  = errors.New("patient still has requests on file")
	ErrDuplicatePhone      = errors.New("a patient with this phone number already exists")
	ErrRequestNotFound     = errors.New("request not found")
	ErrRequestNotWaiting   = errors.New("request is not on the waiting list")
	ErrRequestHasBooking   = errors.New("request already has an appointment")
	ErrSlotNotFound        = errors.New("slot not found")
	ErrSlotNotAvailable    = errors.New("slot is not available")
	ErrSlotOverlap         = errors.New("slot overlaps an existing slot")
	ErrSlotHasBooking      = errors.New("slot has a live appointment")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrNoSlotAvailable     = errors.New("no slot available")
)

// Repository contains all store interactions needed by the service.
//
// The multi-write operations (BookSlot, MoveAppointment, ReleaseAppointment,
// the guarded inserts and deletes) are each a single atomic transaction whose
// preconditions are evaluated by the store at write time. Callers never get a
// partially applied result: either every write committed or none did, and a
// failed precondition comes back as one of the sentinel errors above.
type Repository interface {
	// Patients
	CreatePatient(ctx context.Context, p Patient) error
	UpdatePatient(ctx context.Context, p Patient) error
	// DeletePatient fails with ErrPatientHasRequests while any request
	// references the patient.
	DeletePatient(ctx context.Context, id uuid.UUID) error
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	ListPatients(ctx context.Context) ([]Patient, error)

	// Requests
	CreateRequest(ctx context.Context, r Request) error
	// UpdateRequestStatus transitions only if the request currently has the
	// expected status; zero rows means ErrRequestNotFound or
	// ErrRequestNotWaiting depending on what the re-read shows.
	UpdateRequestStatus(ctx context.Context, id uuid.UUID, from, to RequestStatus, note *string) error
	UpdateRequestNote(ctx context.Context, id uuid.UUID, note *string) error
	DeleteRequest(ctx context.Context, id uuid.UUID) error
	GetRequestByID(ctx context.Context, id uuid.UUID) (*Request, error)
	ListRequests(ctx context.Context) ([]RequestDetail, error)
	ListRequestsByPatient(ctx context.Context, patientID uuid.UUID) ([]Request, error)

	// Slots
	// InsertSlot is guarded by the half-open overlap predicate: the insert
	// happens only if no existing slot intersects [StartTime, EndTime).
	InsertSlot(ctx context.Context, s DoctorSlot) error
	// InsertSlotBlock conditionally inserts each candidate in one
	// transaction, skipping overlapping ones.
	InsertSlotBlock(ctx context.Context, candidates []DoctorSlot) (BlockResult, error)
	// DeleteSlot fails with ErrSlotHasBooking while an appointment
	// references the slot.
	DeleteSlot(ctx context.Context, id uuid.UUID) error
	GetSlotByID(ctx context.Context, id uuid.UUID) (*DoctorSlot, error)
	SlotsInRange(ctx context.Context, start, end time.Time) ([]DoctorSlot, error)
	NextAvailableSlot(ctx context.Context, from time.Time) (*DoctorSlot, error)

	// Booking transactions
	BookSlot(ctx context.Context, requestID, slotID uuid.UUID) (*Appointment, error)
	MoveAppointment(ctx context.Context, appointmentID, newSlotID uuid.UUID) error
	ReleaseAppointment(ctx context.Context, appointmentID uuid.UUID) error

	// Appointment reads
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetAppointmentByRequest(ctx context.Context, requestID uuid.UUID) (*AppointmentDetail, error)
	ListAppointments(ctx context.Context) ([]AppointmentDetail, error)
}
