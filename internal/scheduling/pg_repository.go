package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.Phone, &p.Email, &p.Note, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return &p, nil
}

func scanRequest(row pgx.Row) (*Request, error) {
	var r Request
	err := row.Scan(&r.ID, &r.PatientID, &r.Reason, &r.Urgency, &r.Status, &r.DesiredDate, &r.Note, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	return &r, nil
}

func scanSlot(row pgx.Row) (*DoctorSlot, error) {
	var s DoctorSlot
	err := row.Scan(&s.ID, &s.StartTime, &s.EndTime, &s.DurationMinutes, &s.IsAvailable, &s.Note, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}
	return &s, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.RequestID, &a.SlotID, &a.Note, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return &a, nil
}

// translateConstraint maps a unique-violation slipping past the in-transaction
// guards (a race the guards should normally win) to the equivalent domain
// error.
func translateConstraint(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return err
	}
	switch pgErr.ConstraintName {
	case "appointments_request_id_key":
		return ErrRequestHasBooking
	case "appointments_slot_id_key":
		return ErrSlotNotAvailable
	case "doctor_slots_start_time_end_time_key":
		return ErrSlotOverlap
	case "patients_telefono_key":
		return ErrDuplicatePhone
	default:
		return err
	}
}

// Patients

func (r *PgRepository) CreatePatient(ctx context.Context, p Patient) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO patients (id, nome, cognome, telefono, email, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, p.ID, p.FirstName, p.LastName, p.Phone, p.Email, p.Note, p.CreatedAt)
	if err != nil {
		return translateConstraint(err)
	}
	return nil
}

func (r *PgRepository) UpdatePatient(ctx context.Context, p Patient) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE patients
		SET nome = $2, cognome = $3, telefono = $4, email = $5, note = $6
		WHERE id = $1
	`, p.ID, p.FirstName, p.LastName, p.Phone, p.Email, p.Note)
	if err != nil {
		return translateConstraint(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPatientNotFound
	}
	return nil
}

func (r *PgRepository) DeletePatient(ctx context.Context, id uuid.UUID) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			DELETE FROM patients
			WHERE id = $1
			  AND NOT EXISTS (SELECT 1 FROM requests WHERE patient_id = $1)
		`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() > 0 {
			return nil
		}
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM patients WHERE id = $1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrPatientNotFound
		}
		return ErrPatientHasRequests
	})
}

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, nome, cognome, telefono, email, note, created_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) ListPatients(ctx context.Context) ([]Patient, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, nome, cognome, telefono, email, note, created_at
		FROM patients
		ORDER BY cognome, nome
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	return result, rows.Err()
}

// Requests

func (r *PgRepository) CreateRequest(ctx context.Context, req Request) error {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO requests (id, patient_id, motivo, urgenza, stato, desired_date, note, created_at)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8
		WHERE EXISTS (SELECT 1 FROM patients WHERE id = $2)
	`, req.ID, req.PatientID, req.Reason, req.Urgency, req.Status, req.DesiredDate, req.Note, req.CreatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPatientNotFound
	}
	return nil
}

func (r *PgRepository) UpdateRequestStatus(ctx context.Context, id uuid.UUID, from, to RequestStatus, note *string) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var tag pgconn.CommandTag
		var err error
		if note != nil {
			tag, err = tx.Exec(ctx, `
				UPDATE requests SET stato = $2, note = $3 WHERE id = $1 AND stato = $4
			`, id, to, note, from)
		} else {
			tag, err = tx.Exec(ctx, `
				UPDATE requests SET stato = $2 WHERE id = $1 AND stato = $3
			`, id, to, from)
		}
		if err != nil {
			return err
		}
		if tag.RowsAffected() > 0 {
			return nil
		}
		return classifyRequestState(ctx, tx, id, from)
	})
}

func (r *PgRepository) UpdateRequestNote(ctx context.Context, id uuid.UUID, note *string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE requests SET note = $2 WHERE id = $1`, id, note)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRequestNotFound
	}
	return nil
}

func (r *PgRepository) DeleteRequest(ctx context.Context, id uuid.UUID) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			DELETE FROM requests
			WHERE id = $1
			  AND NOT EXISTS (SELECT 1 FROM appointments WHERE request_id = $1)
		`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() > 0 {
			return nil
		}
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM requests WHERE id = $1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrRequestNotFound
		}
		return ErrRequestHasBooking
	})
}

func (r *PgRepository) GetRequestByID(ctx context.Context, id uuid.UUID) (*Request, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, patient_id, motivo, urgenza, stato, desired_date, note, created_at
		FROM requests
		WHERE id = $1
	`, id)
	return scanRequest(row)
}

func (r *PgRepository) ListRequests(ctx context.Context) ([]RequestDetail, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT r.id, r.patient_id, r.motivo, r.urgenza, r.stato, r.desired_date, r.note, r.created_at,
		       p.id, p.nome, p.cognome, p.telefono, p.email, p.note, p.created_at
		FROM requests r
		JOIN patients p ON p.id = r.patient_id
		ORDER BY r.created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []RequestDetail
	for rows.Next() {
		var d RequestDetail
		var p Patient
		err := rows.Scan(
			&d.ID, &d.PatientID, &d.Reason, &d.Urgency, &d.Status, &d.DesiredDate, &d.Note, &d.CreatedAt,
			&p.ID, &p.FirstName, &p.LastName, &p.Phone, &p.Email, &p.Note, &p.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		d.Patient = &p
		result = append(result, d)
	}
	return result, rows.Err()
}

func (r *PgRepository) ListRequestsByPatient(ctx context.Context, patientID uuid.UUID) ([]Request, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, patient_id, motivo, urgenza, stato, desired_date, note, created_at
		FROM requests
		WHERE patient_id = $1
		ORDER BY created_at DESC
	`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *req)
	}
	return result, rows.Err()
}

// Slots

// insertSlotSQL only inserts when no existing slot intersects the half-open
// candidate interval, making the overlap check atomic with the write.
const insertSlotSQL = `
	INSERT INTO doctor_slots (id, start_time, end_time, duration_minutes, is_available, note, created_at)
	SELECT $1, $2, $3, $4, $5, $6, $7
	WHERE NOT EXISTS (
		SELECT 1 FROM doctor_slots
		WHERE start_time < $3 AND end_time > $2
	)
`

func (r *PgRepository) InsertSlot(ctx context.Context, s DoctorSlot) error {
	tag, err := r.pool.Exec(ctx, insertSlotSQL,
		s.ID, s.StartTime, s.EndTime, s.DurationMinutes, s.IsAvailable, s.Note, s.CreatedAt)
	if err != nil {
		return translateConstraint(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotOverlap
	}
	return nil
}

func (r *PgRepository) InsertSlotBlock(ctx context.Context, candidates []DoctorSlot) (BlockResult, error) {
	var res BlockResult
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		for _, s := range candidates {
			tag, err := tx.Exec(ctx, insertSlotSQL,
				s.ID, s.StartTime, s.EndTime, s.DurationMinutes, s.IsAvailable, s.Note, s.CreatedAt)
			if err != nil {
				return translateConstraint(err)
			}
			if tag.RowsAffected() == 0 {
				res.Skipped++
			} else {
				res.Created++
			}
		}
		return nil
	})
	if err != nil {
		return BlockResult{}, err
	}
	return res, nil
}

func (r *PgRepository) DeleteSlot(ctx context.Context, id uuid.UUID) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			DELETE FROM doctor_slots
			WHERE id = $1
			  AND NOT EXISTS (SELECT 1 FROM appointments WHERE slot_id = $1)
		`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() > 0 {
			return nil
		}
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM doctor_slots WHERE id = $1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrSlotNotFound
		}
		return ErrSlotHasBooking
	})
}

func (r *PgRepository) GetSlotByID(ctx context.Context, id uuid.UUID) (*DoctorSlot, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, start_time, end_time, duration_minutes, is_available, note, created_at
		FROM doctor_slots
		WHERE id = $1
	`, id)
	return scanSlot(row)
}

func (r *PgRepository) SlotsInRange(ctx context.Context, start, end time.Time) ([]DoctorSlot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, start_time, end_time, duration_minutes, is_available, note, created_at
		FROM doctor_slots
		WHERE start_time >= $1 AND start_time <= $2
		ORDER BY start_time ASC
	`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []DoctorSlot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	return result, rows.Err()
}

func (r *PgRepository) NextAvailableSlot(ctx context.Context, from time.Time) (*DoctorSlot, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, start_time, end_time, duration_minutes, is_available, note, created_at
		FROM doctor_slots
		WHERE is_available AND start_time >= $1
		ORDER BY start_time ASC
		LIMIT 1
	`, from)
	s, err := scanSlot(row)
	if errors.Is(err, ErrSlotNotFound) {
		return nil, ErrNoSlotAvailable
	}
	return s, err
}

// Booking transactions

// BookSlot atomically claims the slot, transitions the request to scheduled
// and inserts the appointment. All preconditions are expressed as conditional
// writes evaluated by the store, so of two racing callers exactly one can
// win; the loser's guard matches zero rows and the in-transaction re-read
// reports which precondition failed.
func (r *PgRepository) BookSlot(ctx context.Context, requestID, slotID uuid.UUID) (*Appointment, error) {
	var appt *Appointment
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE doctor_slots SET is_available = FALSE
			WHERE id = $1 AND is_available
		`, slotID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return classifySlotState(ctx, tx, slotID)
		}

		tag, err = tx.Exec(ctx, `
			UPDATE requests SET stato = $2
			WHERE id = $1 AND stato = $3
			  AND NOT EXISTS (SELECT 1 FROM appointments WHERE request_id = $1)
		`, requestID, RequestScheduled, RequestWaiting)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return classifyRequestState(ctx, tx, requestID, RequestWaiting)
		}

		row := tx.QueryRow(ctx, `
			INSERT INTO appointments (id, request_id, slot_id, note, created_at)
			VALUES ($1, $2, $3, NULL, now())
			RETURNING id, request_id, slot_id, note, created_at
		`, uuid.New(), requestID, slotID)
		appt, err = scanAppointment(row)
		return err
	})
	if err != nil {
		return nil, translateConstraint(err)
	}
	return appt, nil
}

// MoveAppointment points an appointment at a new slot: claim the new slot,
// repoint, release the old one, all in one transaction. The appointment row
// is locked first so concurrent reschedules and cancels of the same
// appointment serialise.
func (r *PgRepository) MoveAppointment(ctx context.Context, appointmentID, newSlotID uuid.UUID) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			SELECT id, request_id, slot_id, note, created_at
			FROM appointments
			WHERE id = $1
			FOR UPDATE
		`, appointmentID)
		appt, err := scanAppointment(row)
		if err != nil {
			return err
		}
		if appt.SlotID == newSlotID {
			return nil
		}

		tag, err := tx.Exec(ctx, `
			UPDATE doctor_slots SET is_available = FALSE
			WHERE id = $1 AND is_available
		`, newSlotID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return classifySlotState(ctx, tx, newSlotID)
		}

		if _, err := tx.Exec(ctx, `
			UPDATE appointments SET slot_id = $2 WHERE id = $1
		`, appointmentID, newSlotID); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			UPDATE doctor_slots SET is_available = TRUE WHERE id = $1
		`, appt.SlotID)
		return err
	})
	return translateConstraint(err)
}

// ReleaseAppointment deletes the appointment, frees its slot and puts the
// request back on the waiting list, atomically.
func (r *PgRepository) ReleaseAppointment(ctx context.Context, appointmentID uuid.UUID) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var requestID, slotID uuid.UUID
		err := tx.QueryRow(ctx, `
			DELETE FROM appointments
			WHERE id = $1
			RETURNING request_id, slot_id
		`, appointmentID).Scan(&requestID, &slotID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrAppointmentNotFound
			}
			return err
		}

		if _, err := tx.Exec(ctx, `
			UPDATE doctor_slots SET is_available = TRUE WHERE id = $1
		`, slotID); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			UPDATE requests SET stato = $2 WHERE id = $1
		`, requestID, RequestWaiting)
		return err
	})
}

// classifySlotState re-reads a slot after its conditional claim matched zero
// rows, so the caller gets the most specific precondition failure.
func classifySlotState(ctx context.Context, tx pgx.Tx, slotID uuid.UUID) error {
	var available bool
	err := tx.QueryRow(ctx, `SELECT is_available FROM doctor_slots WHERE id = $1`, slotID).Scan(&available)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrSlotNotFound
		}
		return err
	}
	if !available {
		return ErrSlotNotAvailable
	}
	return fmt.Errorf("slot %s: guard failed but slot reads available", slotID)
}

func classifyRequestState(ctx context.Context, tx pgx.Tx, requestID uuid.UUID, want RequestStatus) error {
	var status RequestStatus
	var booked bool
	err := tx.QueryRow(ctx, `
		SELECT stato, EXISTS (SELECT 1 FROM appointments WHERE request_id = $1)
		FROM requests
		WHERE id = $1
	`, requestID).Scan(&status, &booked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrRequestNotFound
		}
		return err
	}
	if booked {
		return ErrRequestHasBooking
	}
	if status != want {
		return ErrRequestNotWaiting
	}
	return fmt.Errorf("request %s: guard failed but request reads %s", requestID, status)
}

// Appointment reads

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, request_id, slot_id, note, created_at
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

const appointmentDetailSQL = `
	SELECT a.id, a.request_id, a.slot_id, a.note, a.created_at,
	       s.id, s.start_time, s.end_time, s.duration_minutes, s.is_available, s.note, s.created_at,
	       r.id, r.patient_id, r.motivo, r.urgenza, r.stato, r.desired_date, r.note, r.created_at,
	       p.id, p.nome, p.cognome, p.telefono, p.email, p.note, p.created_at
	FROM appointments a
	JOIN doctor_slots s ON s.id = a.slot_id
	JOIN requests r ON r.id = a.request_id
	JOIN patients p ON p.id = r.patient_id
`

func scanAppointmentDetail(row pgx.Row) (*AppointmentDetail, error) {
	var d AppointmentDetail
	var s DoctorSlot
	var req Request
	var p Patient
	err := row.Scan(
		&d.ID, &d.RequestID, &d.SlotID, &d.Note, &d.CreatedAt,
		&s.ID, &s.StartTime, &s.EndTime, &s.DurationMinutes, &s.IsAvailable, &s.Note, &s.CreatedAt,
		&req.ID, &req.PatientID, &req.Reason, &req.Urgency, &req.Status, &req.DesiredDate, &req.Note, &req.CreatedAt,
		&p.ID, &p.FirstName, &p.LastName, &p.Phone, &p.Email, &p.Note, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	d.Slot = &s
	d.Request = &req
	d.Patient = &p
	return &d, nil
}

func (r *PgRepository) GetAppointmentByRequest(ctx context.Context, requestID uuid.UUID) (*AppointmentDetail, error) {
	row := r.pool.QueryRow(ctx, appointmentDetailSQL+` WHERE a.request_id = $1`, requestID)
	return scanAppointmentDetail(row)
}

func (r *PgRepository) ListAppointments(ctx context.Context) ([]AppointmentDetail, error) {
	rows, err := r.pool.Query(ctx, appointmentDetailSQL+` ORDER BY a.created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []AppointmentDetail
	for rows.Next() {
		d, err := scanAppointmentDetail(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	return result, rows.Err()
}
