package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/harshdhankhar11/ArogyaSetu-Care-backend/internal/db"
)

// DevPassword is the shared password for every seeded account. Dev use only.
const DevPassword = "changeme-dev"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	hash, err := bcrypt.GenerateFromPassword([]byte(DevPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("hash dev password: %v", err)
	}

	if err := seedDoctors(context.Background(), pool, string(hash), 40); err != nil {
		log.Fatalf("seed doctors: %v", err)
	}
	if err := seedPatients(context.Background(), pool, string(hash), 500); err != nil {
		log.Fatalf("seed patients: %v", err)
	}

	log.Println("seed complete")
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, passwordHash string, count int) error {
	log.Printf("seeding %d doctors", count)

	departments := []string{
		"Dermatology",
		"Cardiology",
		"General Practice",
		"Orthopedics",
		"Endocrinology",
		"Neurology",
		"Pediatrics",
		"Psychiatry",
		"Ophthalmology",
		"ENT",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Name()

		// Leave roughly one in five doctors untagged so the generalist
		// fallback pool is never empty in dev.
		department := ""
		if i%5 != 0 {
			department = departments[gofakeit.Number(0, len(departments)-1)]
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO users (id, name, email, password_hash, role, department, created_at, updated_at)
			VALUES ($1, $2, $3, $4, 'doctor', $5, now(), now())
		`, id, name, seedEmail("dr", i), passwordHash, department)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, passwordHash string, count int) error {
	log.Printf("seeding %d patients", count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Name()

		_, err := tx.Exec(ctx, `
			INSERT INTO users (id, name, email, password_hash, role, department, created_at, updated_at)
			VALUES ($1, $2, $3, $4, 'patient', '', now(), now())
		`, id, name, seedEmail("patient", i), passwordHash)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// seedEmail builds deterministic addresses so the simulator can log seeded
// accounts in without querying for them first.
func seedEmail(prefix string, n int) string {
	return strings.ToLower(fmt.Sprintf("%s%04d@seed.local", prefix, n))
}
