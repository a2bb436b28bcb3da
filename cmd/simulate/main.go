package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mydoc/practice-scheduling/internal/config"
	"github.com/mydoc/practice-scheduling/internal/db"
)

// Load generator for the booking API. Workers race ScheduleRequest calls over
// a shared pool of waiting requests and open slots, then the final report
// recomputes slot/request consistency straight from the appointment rows to
// prove no run ever double-booked.

type SimConfig struct {
	APIBaseURL  string
	Duration    time.Duration
	Workers     int
	CancelRatio float64
	PostgresDSN string
}

type DataPool struct {
	Requests []uuid.UUID
	Slots    []uuid.UUID

	mu           sync.RWMutex
	appointments []uuid.UUID
}

func (dp *DataPool) AddAppointment(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) TakeRandomAppointment() (uuid.UUID, bool) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, false
	}
	idx := rand.Intn(len(dp.appointments))
	id := dp.appointments[idx]
	dp.appointments[idx] = dp.appointments[len(dp.appointments)-1]
	dp.appointments = dp.appointments[:len(dp.appointments)-1]
	return id, true
}

type Counters struct {
	Booked    int64
	Conflicts int64
	Cancelled int64
	Busy      int64
	Errors    int64
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadSimConfig()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pgPool.Close()

	pool, err := loadDataPool(ctx, pgPool)
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}
	log.Printf("loaded: %d waiting requests, %d open slots", len(pool.Requests), len(pool.Slots))

	var counters Counters
	client := &http.Client{Timeout: 10 * time.Second}

	runCtx, stopRun := context.WithTimeout(context.Background(), cfg.Duration)
	defer stopRun()

	var wg sync.WaitGroup
	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			worker(runCtx, cfg, client, pool, rng, &counters)
		}(time.Now().UnixNano() + int64(w))
	}
	wg.Wait()

	log.Printf("run complete: booked=%d conflicts=%d cancelled=%d busy=%d errors=%d",
		atomic.LoadInt64(&counters.Booked),
		atomic.LoadInt64(&counters.Conflicts),
		atomic.LoadInt64(&counters.Cancelled),
		atomic.LoadInt64(&counters.Busy),
		atomic.LoadInt64(&counters.Errors),
	)

	verifyCtx, cancelVerify := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelVerify()
	if err := verifyConsistency(verifyCtx, pgPool); err != nil {
		log.Fatalf("CONSISTENCY VIOLATION: %v", err)
	}
	log.Println("consistency verified: no double-booking, flags match appointment rows")
}

func worker(ctx context.Context, cfg SimConfig, client *http.Client, pool *DataPool, rng *rand.Rand, c *Counters) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if rng.Float64() < cfg.CancelRatio {
			if id, ok := pool.TakeRandomAppointment(); ok {
				doCancel(ctx, cfg, client, id, c)
				continue
			}
		}

		requestID := pool.Requests[rng.Intn(len(pool.Requests))]
		slotID := pool.Slots[rng.Intn(len(pool.Slots))]
		doBook(ctx, cfg, client, pool, requestID, slotID, c)
	}
}

func doBook(ctx context.Context, cfg SimConfig, client *http.Client, pool *DataPool, requestID, slotID uuid.UUID, c *Counters) {
	body, _ := json.Marshal(map[string]string{
		"request_id": requestID.String(),
		"slot_id":    slotID.String(),
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.APIBaseURL+"/appointments", bytes.NewReader(body))
	if err != nil {
		atomic.AddInt64(&c.Errors, 1)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			atomic.AddInt64(&c.Errors, 1)
		}
		return
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusCreated:
		var out struct {
			ID uuid.UUID `json:"id"`
		}
		data, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(data, &out) == nil {
			pool.AddAppointment(out.ID)
		}
		atomic.AddInt64(&c.Booked, 1)
	case resp.StatusCode == http.StatusConflict:
		atomic.AddInt64(&c.Conflicts, 1)
	case resp.StatusCode == http.StatusServiceUnavailable:
		atomic.AddInt64(&c.Busy, 1)
	default:
		atomic.AddInt64(&c.Errors, 1)
	}
}

func doCancel(ctx context.Context, cfg SimConfig, client *http.Client, id uuid.UUID, c *Counters) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, cfg.APIBaseURL+"/appointments/"+id.String(), nil)
	if err != nil {
		atomic.AddInt64(&c.Errors, 1)
		return
	}

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			atomic.AddInt64(&c.Errors, 1)
		}
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		atomic.AddInt64(&c.Cancelled, 1)
	} else {
		atomic.AddInt64(&c.Errors, 1)
	}
}

func loadSimConfig() SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatalf("load base config: %v", err)
	}

	cfg := SimConfig{
		APIBaseURL:  getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:    getDuration("SIM_DURATION", 30*time.Second),
		Workers:     getInt("SIM_WORKERS", 10),
		CancelRatio: getFloat("SIM_CANCEL_RATIO", 0.2),
		PostgresDSN: baseCfg.PostgresDSN,
	}
	if cfg.Workers <= 0 {
		log.Fatal("SIM_WORKERS must be > 0")
	}
	return cfg
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool) (*DataPool, error) {
	dp := &DataPool{}

	rows, err := pool.Query(ctx, `SELECT id FROM requests WHERE stato = 'waiting'`)
	if err != nil {
		return nil, fmt.Errorf("load requests: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		dp.Requests = append(dp.Requests, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	slotRows, err := pool.Query(ctx, `SELECT id FROM doctor_slots WHERE is_available`)
	if err != nil {
		return nil, fmt.Errorf("load slots: %w", err)
	}
	defer slotRows.Close()
	for slotRows.Next() {
		var id uuid.UUID
		if err := slotRows.Scan(&id); err != nil {
			return nil, err
		}
		dp.Slots = append(dp.Slots, id)
	}
	if err := slotRows.Err(); err != nil {
		return nil, err
	}

	if len(dp.Requests) == 0 || len(dp.Slots) == 0 {
		return nil, fmt.Errorf("no waiting requests or open slots; run cmd/seed first")
	}
	return dp, nil
}

// verifyConsistency recomputes the derived state from the appointment rows:
// is_available must be true exactly when no appointment references the slot,
// stato must be 'scheduled' exactly when an appointment references the
// request, and no slot or request may carry more than one appointment.
func verifyConsistency(ctx context.Context, pool *pgxpool.Pool) error {
	var badSlots int
	err := pool.QueryRow(ctx, `
		SELECT count(*) FROM doctor_slots s
		WHERE s.is_available <> NOT EXISTS (
			SELECT 1 FROM appointments a WHERE a.slot_id = s.id
		)
	`).Scan(&badSlots)
	if err != nil {
		return err
	}
	if badSlots > 0 {
		return fmt.Errorf("%d slots with is_available out of sync", badSlots)
	}

	var badRequests int
	err = pool.QueryRow(ctx, `
		SELECT count(*) FROM requests r
		WHERE (r.stato = 'scheduled') <> EXISTS (
			SELECT 1 FROM appointments a WHERE a.request_id = r.id
		)
	`).Scan(&badRequests)
	if err != nil {
		return err
	}
	if badRequests > 0 {
		return fmt.Errorf("%d requests with stato out of sync", badRequests)
	}

	var dupes int
	err = pool.QueryRow(ctx, `
		SELECT count(*) FROM (
			SELECT slot_id FROM appointments GROUP BY slot_id HAVING count(*) > 1
			UNION ALL
			SELECT request_id FROM appointments GROUP BY request_id HAVING count(*) > 1
		) d
	`).Scan(&dupes)
	if err != nil {
		return err
	}
	if dupes > 0 {
		return fmt.Errorf("%d slots/requests referenced by more than one appointment", dupes)
	}

	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
