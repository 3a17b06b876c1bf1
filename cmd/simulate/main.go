// Command simulate fires a burst of concurrent booking requests at one
// department/date/slot through the HTTP API, then audits the database to
// prove no doctor ended up double-booked. Run against a freshly seeded
// database (cmd/seed) and a running api-server.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/harshdhankhar11/ArogyaSetu-Care-backend/internal/db"
)

type SimConfig struct {
	APIBaseURL   string
	PostgresDSN  string
	Workers      int
	Department   string
	Date         string
	TimeSlot     string
	SeedPassword string
}

func loadConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:   getEnv("API_BASE_URL", "http://127.0.0.1:8080"),
		PostgresDSN:  os.Getenv("POSTGRES_DSN"),
		Workers:      getEnvInt("WORKERS", 20),
		Department:   getEnv("DEPARTMENT", "Cardiology"),
		Date:         getEnv("DATE", time.Now().Format("2006-01-02")),
		TimeSlot:     getEnv("TIME_SLOT", "10:00-10:30"),
		SeedPassword: getEnv("SEED_PASSWORD", "changeme-dev"),
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

type BookingMetrics struct {
	Total     int64
	Created   int64
	SlotFull  int64
	Error     int64
	mu        sync.Mutex
	latencies []time.Duration
}

func (m *BookingMetrics) Record(latency time.Duration, status int) {
	atomic.AddInt64(&m.Total, 1)
	switch status {
	case http.StatusCreated:
		atomic.AddInt64(&m.Created, 1)
	case http.StatusConflict:
		atomic.AddInt64(&m.SlotFull, 1)
	default:
		atomic.AddInt64(&m.Error, 1)
	}

	m.mu.Lock()
	m.latencies = append(m.latencies, latency)
	m.mu.Unlock()
}

func (m *BookingMetrics) Stats() (avg, p95 time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.latencies) == 0 {
		return 0, 0
	}

	latencies := make([]time.Duration, len(m.latencies))
	copy(latencies, m.latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	avg = sum / time.Duration(len(latencies))

	idx := len(latencies) * 95 / 100
	if idx >= len(latencies) {
		idx = len(latencies) - 1
	}
	p95 = latencies[idx]

	return avg, p95
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadConfig()
	if cfg.PostgresDSN == "" {
		log.Fatal("POSTGRES_DSN is required for the post-run audit")
	}

	log.Printf("config: workers=%d department=%q date=%s slot=%s base_url=%s",
		cfg.Workers, cfg.Department, cfg.Date, cfg.TimeSlot, cfg.APIBaseURL)

	client := &http.Client{Timeout: 10 * time.Second}

	// One seeded patient account per worker; emails follow cmd/seed's
	// deterministic pattern.
	tokens := make([]string, cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		email := fmt.Sprintf("patient%04d@seed.local", i)
		token, err := login(client, cfg.APIBaseURL, email, cfg.SeedPassword)
		if err != nil {
			log.Fatalf("login %s: %v", email, err)
		}
		tokens[i] = token
	}
	log.Printf("logged in %d patients", len(tokens))

	var metrics BookingMetrics
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func(token string) {
			defer wg.Done()

			began := time.Now()
			status, err := book(client, cfg.APIBaseURL, token, cfg.Department, cfg.Date, cfg.TimeSlot)
			if err != nil {
				log.Printf("booking request failed: %v", err)
				status = 0
			}
			metrics.Record(time.Since(began), status)
		}(tokens[i])
	}

	wg.Wait()
	elapsed := time.Since(start)

	avg, p95 := metrics.Stats()
	log.Printf("storm done in %s: total=%d created=%d slot_full=%d error=%d avg=%s p95=%s",
		elapsed, metrics.Total, metrics.Created, metrics.SlotFull, metrics.Error, avg, p95)

	if err := audit(cfg); err != nil {
		log.Fatalf("audit: %v", err)
	}
}

func login(client *http.Client, baseURL, email, password string) (string, error) {
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})

	resp, err := client.Post(baseURL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("login returned %d: %s", resp.StatusCode, data)
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}

	return out.Token, nil
}

func book(client *http.Client, baseURL, token, department, date, timeSlot string) (int, error) {
	body, _ := json.Marshal(map[string]string{
		"department": department,
		"date":       date,
		"time_slot":  timeSlot,
	})

	req, err := http.NewRequest(http.MethodPost, baseURL+"/api/appointments", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}

// audit scans for (doctor, date, slot) triples holding more than one
// pending/approved appointment. Any row here means the booking lock failed.
func audit(cfg SimConfig) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	rows, err := pool.Query(ctx, `
		SELECT doctor_id::text, date, time_slot, count(*)
		FROM appointments
		WHERE status IN ('pending', 'approved')
		  AND doctor_id IS NOT NULL
		GROUP BY doctor_id, date, time_slot
		HAVING count(*) > 1
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	violations := 0
	for rows.Next() {
		var doctorID, date, slot string
		var n int64
		if err := rows.Scan(&doctorID, &date, &slot, &n); err != nil {
			return err
		}
		violations++
		log.Printf("VIOLATION: doctor=%s date=%s slot=%s active_appointments=%d", doctorID, date, slot, n)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if violations > 0 {
		return fmt.Errorf("%d double-booked doctor/slot pairs found", violations)
	}

	log.Println("audit clean: no doctor holds two active appointments for the same slot")
	return nil
}
