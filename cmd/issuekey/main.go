package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mosaichq/license-api/internal/domain/license"
	"github.com/mosaichq/license-api/internal/keycodec"
	"github.com/mosaichq/license-api/internal/storage/postgres"
	"go.uber.org/zap"
)

// issuekey issues a license directly against the database, for support and
// testing. The plain key is printed exactly once.
func main() {
	plan := flag.String("plan", "pro-monthly", "Plan tag for the issued license")
	email := flag.String("email", "", "Optional customer email to record on the license")
	flag.Parse()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	hmacSecret := os.Getenv("LICENSE_HMACSECRET")
	if hmacSecret == "" {
		log.Fatal("LICENSE_HMACSECRET environment variable is required")
	}

	codec, err := keycodec.New(hmacSecret)
	if err != nil {
		log.Fatalf("Failed to construct key codec: %v", err)
	}

	plainKey, err := codec.Generate()
	if err != nil {
		log.Fatalf("Failed to generate license key: %v", err)
	}

	logger, _ := zap.NewDevelopment()
	pool, err := pgxpool.New(context.Background(), dbURL)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v\n", err)
	}
	defer pool.Close()

	repo := postgres.NewLicenseRepository(pool, logger)

	newLicense := &license.License{
		Plan:           *plan,
		Status:         license.StatusActive,
		KeyFingerprint: codec.Fingerprint(plainKey),
		PlainKey:       sql.NullString{String: plainKey, Valid: true},
		SessionID:      "cli_" + uuid.NewString(),
		IssuedBy:       license.ActorCLI,
	}
	if *email != "" {
		newLicense.Email = sql.NullString{String: *email, Valid: true}
	}

	licenseID, err := repo.Create(context.Background(), newLicense)
	if err != nil {
		log.Fatalf("Failed to save license to database: %v", err)
	}

	fmt.Printf("License Key (SAVE THIS, it is not shown again):\n%s\n\n", plainKey)
	fmt.Printf("Record ID: %s\nPlan: %s\n", licenseID, *plan)
}
