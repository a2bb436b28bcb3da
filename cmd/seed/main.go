package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/mydoc/practice-scheduling/internal/db"
	"github.com/mydoc/practice-scheduling/internal/scheduling"
)

// Seeds the practice with fake patients, waiting-list requests and two weeks
// of slot blocks. Meant for dev and load-testing environments only.
func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	logger.Info().Msg("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		logger.Fatal().Msg("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	if err := db.EnsureSchema(context.Background(), pool); err != nil {
		logger.Fatal().Err(err).Msg("schema setup")
	}

	gofakeit.Seed(time.Now().UnixNano())

	patientIDs, err := seedPatients(context.Background(), pool, 500)
	if err != nil {
		logger.Fatal().Err(err).Msg("seed patients")
	}
	logger.Info().Int("count", len(patientIDs)).Msg("patients seeded")

	requests, err := seedRequests(context.Background(), pool, patientIDs, 200)
	if err != nil {
		logger.Fatal().Err(err).Msg("seed requests")
	}
	logger.Info().Int("count", requests).Msg("requests seeded")

	created, skipped, err := seedSlotBlocks(context.Background(), pool, 14)
	if err != nil {
		logger.Fatal().Err(err).Msg("seed slots")
	}
	logger.Info().Int("created", created).Int("skipped", skipped).Msg("slot blocks seeded")

	logger.Info().Msg("seed complete")
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		// Phone must be unique; append the counter to sidestep collisions.
		phone := fmt.Sprintf("%s-%04d", gofakeit.Phone(), i)

		_, err := tx.Exec(ctx, `
			INSERT INTO patients (id, nome, cognome, telefono, email, note, created_at)
			VALUES ($1, $2, $3, $4, $5, NULL, now())
		`, id, gofakeit.FirstName(), gofakeit.LastName(), phone, gofakeit.Email())
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return ids, nil
}

func seedRequests(ctx context.Context, pool *pgxpool.Pool, patientIDs []uuid.UUID, count int) (int, error) {
	reasons := []string{
		"Visita di controllo",
		"Dolore persistente",
		"Rinnovo prescrizione",
		"Certificato medico",
		"Controllo post-operatorio",
		"Prima visita",
	}
	urgencies := []scheduling.Urgency{
		scheduling.UrgencyLow,
		scheduling.UrgencyMedium,
		scheduling.UrgencyHigh,
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		patientID := patientIDs[gofakeit.Number(0, len(patientIDs)-1)]
		reason := reasons[gofakeit.Number(0, len(reasons)-1)]
		urgency := urgencies[gofakeit.Number(0, len(urgencies)-1)]

		var desired *time.Time
		if gofakeit.Bool() {
			d := time.Now().AddDate(0, 0, gofakeit.Number(1, 30))
			desired = &d
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO requests (id, patient_id, motivo, urgenza, stato, desired_date, note, created_at)
			VALUES ($1, $2, $3, $4, 'waiting', $5, NULL, now())
		`, uuid.New(), patientID, reason, urgency, desired)
		if err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return count, nil
}

// seedSlotBlocks creates a 09:00-13:00 and 14:30-18:00 block of 30-minute
// slots for each of the next days, skipping whatever already exists.
func seedSlotBlocks(ctx context.Context, pool *pgxpool.Pool, days int) (created, skipped int, err error) {
	repo := scheduling.NewPgRepository(pool)

	for d := 1; d <= days; d++ {
		day := time.Now().AddDate(0, 0, d)
		for _, window := range [][2]int{{9 * 60, 13 * 60}, {14*60 + 30, 18 * 60}} {
			ranges := scheduling.SliceBlock(day, window[0], window[1], 30)
			candidates := make([]scheduling.DoctorSlot, 0, len(ranges))
			for _, rg := range ranges {
				candidates = append(candidates, scheduling.DoctorSlot{
					ID:              uuid.New(),
					StartTime:       rg.StartTime,
					EndTime:         rg.EndTime,
					DurationMinutes: rg.DurationMinutes,
					IsAvailable:     true,
					CreatedAt:       time.Now(),
				})
			}
			res, err := repo.InsertSlotBlock(ctx, candidates)
			if err != nil {
				return created, skipped, err
			}
			created += res.Created
			skipped += res.Skipped
		}
	}
	return created, skipped, nil
}
