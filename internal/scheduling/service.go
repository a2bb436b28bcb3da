package scheduling

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mydoc/practice-scheduling/internal/config"
	redisclient "github.com/mydoc/practice-scheduling/internal/redis"
)

var ErrEmptyBlock = errors.New("no slots can be created from these parameters")

// Service is the command layer: every state-changing operation runs as one
// guarded transaction in the repository, wrapped by the transient retry. The
// advisory slot lock only fast-fails concurrent claims of the same slot; the
// store's conditional writes remain the source of truth.
type Service struct {
	repo        Repository
	locker      redisclient.Locker
	log         zerolog.Logger
	maxRetries  int
	backoffStep time.Duration
	now         func() time.Time
}

func NewService(repo Repository, locker redisclient.Locker, cfg config.Config, log zerolog.Logger) *Service {
	return &Service{
		repo:        repo,
		locker:      locker,
		log:         log,
		maxRetries:  cfg.MaxRetries,
		backoffStep: cfg.RetryBackoff,
		now:         time.Now,
	}
}

// WithClock replaces the wall clock, so tests can pin "now".
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) retry(ctx context.Context, op string, fn func(context.Context) error) error {
	err := withRetry(ctx, s.maxRetries, s.backoffStep, fn)
	if errors.Is(err, ErrStoreBusy) {
		s.log.Warn().Str("op", op).Err(err).Msg("transient contention exhausted retries")
	}
	return err
}

// Booking commands

func (s *Service) ScheduleRequest(ctx context.Context, requestID, slotID uuid.UUID) (*Appointment, error) {
	var appt *Appointment
	err := s.retry(ctx, "schedule_request", func(ctx context.Context) error {
		return s.locker.WithSlotLock(ctx, slotID, func(ctx context.Context) error {
			a, err := s.repo.BookSlot(ctx, requestID, slotID)
			if err != nil {
				return err
			}
			appt = a
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().
		Stringer("request_id", requestID).
		Stringer("slot_id", slotID).
		Stringer("appointment_id", appt.ID).
		Msg("request scheduled")
	return appt, nil
}

// ScheduleRequestAtNextAvailable books the earliest available slot at or
// after the request's desired date (or now, if absent or past). The slot can
// be claimed by a concurrent caller between the read and the booking; the
// booking transaction re-validates, so the caller at worst sees "slot is not
// available".
func (s *Service) ScheduleRequestAtNextAvailable(ctx context.Context, requestID uuid.UUID) (*Appointment, error) {
	req, err := s.repo.GetRequestByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != RequestWaiting {
		return nil, ErrRequestNotWaiting
	}

	from := s.now()
	if req.DesiredDate != nil && req.DesiredDate.After(from) {
		from = *req.DesiredDate
	}

	slot, err := s.repo.NextAvailableSlot(ctx, from)
	if err != nil {
		return nil, err
	}
	return s.ScheduleRequest(ctx, requestID, slot.ID)
}

func (s *Service) RescheduleAppointment(ctx context.Context, appointmentID, newSlotID uuid.UUID) error {
	err := s.retry(ctx, "reschedule_appointment", func(ctx context.Context) error {
		return s.locker.WithSlotLock(ctx, newSlotID, func(ctx context.Context) error {
			return s.repo.MoveAppointment(ctx, appointmentID, newSlotID)
		})
	})
	if err != nil {
		return err
	}
	s.log.Info().
		Stringer("appointment_id", appointmentID).
		Stringer("slot_id", newSlotID).
		Msg("appointment rescheduled")
	return nil
}

func (s *Service) CancelAppointment(ctx context.Context, appointmentID uuid.UUID) error {
	err := s.retry(ctx, "cancel_appointment", func(ctx context.Context) error {
		return s.repo.ReleaseAppointment(ctx, appointmentID)
	})
	if err != nil {
		return err
	}
	s.log.Info().Stringer("appointment_id", appointmentID).Msg("appointment cancelled")
	return nil
}

// Slot commands

func (s *Service) CreateDoctorSlot(ctx context.Context, start, end time.Time, durationMinutes int, note *string) (*DoctorSlot, error) {
	if !end.After(start) {
		return nil, errors.New("end time must be after start time")
	}
	if durationMinutes <= 0 {
		durationMinutes = int(end.Sub(start) / time.Minute)
	}

	slot := DoctorSlot{
		ID:              uuid.New(),
		StartTime:       start,
		EndTime:         end,
		DurationMinutes: durationMinutes,
		IsAvailable:     true,
		Note:            trimmed(note),
		CreatedAt:       s.now(),
	}
	err := s.retry(ctx, "create_slot", func(ctx context.Context) error {
		return s.repo.InsertSlot(ctx, slot)
	})
	if err != nil {
		return nil, err
	}
	return &slot, nil
}

// CreateDoctorSlotsBlock slices a day window into fixed-duration sub-slots
// and inserts them, skipping candidates that would overlap existing slots.
// Partial success is deliberate: bulk creation is an administrative
// convenience, not a transactional unit.
func (s *Service) CreateDoctorSlotsBlock(ctx context.Context, day time.Time, startMinuteOfDay, endMinuteOfDay, slotDurationMinutes int) (BlockResult, error) {
	ranges := SliceBlock(day, startMinuteOfDay, endMinuteOfDay, slotDurationMinutes)
	if len(ranges) == 0 {
		return BlockResult{}, ErrEmptyBlock
	}

	now := s.now()
	candidates := make([]DoctorSlot, 0, len(ranges))
	for _, rg := range ranges {
		candidates = append(candidates, DoctorSlot{
			ID:              uuid.New(),
			StartTime:       rg.StartTime,
			EndTime:         rg.EndTime,
			DurationMinutes: rg.DurationMinutes,
			IsAvailable:     true,
			CreatedAt:       now,
		})
	}

	var res BlockResult
	err := s.retry(ctx, "create_slot_block", func(ctx context.Context) error {
		r, err := s.repo.InsertSlotBlock(ctx, candidates)
		if err != nil {
			return err
		}
		res = r
		return nil
	})
	if err != nil {
		return BlockResult{}, err
	}
	s.log.Info().Int("created", res.Created).Int("skipped", res.Skipped).Msg("slot block created")
	return res, nil
}

func (s *Service) DeleteDoctorSlot(ctx context.Context, slotID uuid.UUID) error {
	return s.retry(ctx, "delete_slot", func(ctx context.Context) error {
		return s.repo.DeleteSlot(ctx, slotID)
	})
}

// Availability queries

// AvailableSlotsInRange returns every slot starting in [start, end] in
// ascending start order; some call sites want booked slots too, so the
// availability filter is opt-in.
func (s *Service) AvailableSlotsInRange(ctx context.Context, start, end time.Time, onlyAvailable bool) ([]DoctorSlot, error) {
	slots, err := s.repo.SlotsInRange(ctx, start, end)
	if err != nil {
		return nil, err
	}
	if !onlyAvailable {
		return slots, nil
	}
	filtered := slots[:0]
	for _, slot := range slots {
		if slot.IsAvailable {
			filtered = append(filtered, slot)
		}
	}
	return filtered, nil
}

func (s *Service) NextAvailableSlot(ctx context.Context, from *time.Time) (*DoctorSlot, error) {
	ref := s.now()
	if from != nil {
		ref = *from
	}
	return s.repo.NextAvailableSlot(ctx, ref)
}

func (s *Service) GetSlot(ctx context.Context, id uuid.UUID) (*DoctorSlot, error) {
	return s.repo.GetSlotByID(ctx, id)
}

// Patients

func (s *Service) CreatePatient(ctx context.Context, firstName, lastName, phone string, email, note *string) (*Patient, error) {
	p := Patient{
		ID:        uuid.New(),
		FirstName: strings.TrimSpace(firstName),
		LastName:  strings.TrimSpace(lastName),
		Phone:     strings.TrimSpace(phone),
		Email:     trimmed(email),
		Note:      trimmed(note),
		CreatedAt: s.now(),
	}
	if err := s.repo.CreatePatient(ctx, p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Service) UpdatePatient(ctx context.Context, id uuid.UUID, firstName, lastName, phone string, email, note *string) error {
	return s.repo.UpdatePatient(ctx, Patient{
		ID:        id,
		FirstName: strings.TrimSpace(firstName),
		LastName:  strings.TrimSpace(lastName),
		Phone:     strings.TrimSpace(phone),
		Email:     trimmed(email),
		Note:      trimmed(note),
	})
}

func (s *Service) DeletePatient(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeletePatient(ctx, id)
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetPatientByID(ctx, id)
}

// SearchPatients filters the patient list with a multi-word fuzzy match:
// every search word has to appear somewhere in the name, surname or phone.
func (s *Service) SearchPatients(ctx context.Context, search string) ([]Patient, error) {
	patients, err := s.repo.ListPatients(ctx)
	if err != nil {
		return nil, err
	}
	search = strings.TrimSpace(strings.ToLower(search))
	if search == "" {
		return patients, nil
	}
	words := strings.Fields(search)

	var matched []Patient
	for _, p := range patients {
		haystack := strings.ToLower(strings.Join([]string{
			p.FirstName, p.LastName, p.Phone,
			p.LastName + " " + p.FirstName,
			p.FirstName + " " + p.LastName,
		}, " "))
		ok := true
		for _, w := range words {
			if !strings.Contains(haystack, w) {
				ok = false
				break
			}
		}
		if ok {
			matched = append(matched, p)
		}
	}
	return matched, nil
}

// Requests

func (s *Service) CreateRequest(ctx context.Context, patientID uuid.UUID, reason string, urgency Urgency, desiredDate *time.Time, note *string) (*Request, error) {
	req := Request{
		ID:          uuid.New(),
		PatientID:   patientID,
		Reason:      strings.TrimSpace(reason),
		Urgency:     urgency,
		Status:      RequestWaiting,
		DesiredDate: desiredDate,
		Note:        trimmed(note),
		CreatedAt:   s.now(),
	}
	if err := s.repo.CreateRequest(ctx, req); err != nil {
		return nil, err
	}
	return &req, nil
}

// RejectRequest removes a waiting request from the list.
func (s *Service) RejectRequest(ctx context.Context, id uuid.UUID, note *string) error {
	return s.repo.UpdateRequestStatus(ctx, id, RequestWaiting, RequestRejected, trimmed(note))
}

func (s *Service) UpdateRequestNote(ctx context.Context, id uuid.UUID, note string) error {
	return s.repo.UpdateRequestNote(ctx, id, trimmed(&note))
}

func (s *Service) DeleteRequest(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteRequest(ctx, id)
}

func (s *Service) GetRequest(ctx context.Context, id uuid.UUID) (*Request, error) {
	return s.repo.GetRequestByID(ctx, id)
}

// ListRequests returns requests sorted by urgency (alta first) then by
// creation time, newest first. Urgency is a display ordering only; it never
// influences slot allocation.
func (s *Service) ListRequests(ctx context.Context, statusFilter string) ([]RequestDetail, error) {
	all, err := s.repo.ListRequests(ctx)
	if err != nil {
		return nil, err
	}

	var result []RequestDetail
	for _, d := range all {
		if statusFilter != "" && statusFilter != "all" && string(d.Status) != statusFilter {
			continue
		}
		result = append(result, d)
	}

	sort.SliceStable(result, func(i, j int) bool {
		ri, rj := urgencyRank(result[i].Urgency), urgencyRank(result[j].Urgency)
		if ri != rj {
			return ri < rj
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (s *Service) RequestsByPatient(ctx context.Context, patientID uuid.UUID) ([]Request, error) {
	return s.repo.ListRequestsByPatient(ctx, patientID)
}

// Appointment reads

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetAppointmentByID(ctx, id)
}

func (s *Service) AppointmentByRequest(ctx context.Context, requestID uuid.UUID) (*AppointmentDetail, error) {
	return s.repo.GetAppointmentByRequest(ctx, requestID)
}

func (s *Service) ListAppointments(ctx context.Context) ([]AppointmentDetail, error) {
	return s.repo.ListAppointments(ctx)
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}
