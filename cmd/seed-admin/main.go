// seed-admin creates or updates the admin login.
//
// Usage:
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... \
//	ADMIN_PASSWORD=... go run ./cmd/seed-admin
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/maisoong/exchange_backend/config"
	"github.com/maisoong/exchange_backend/models"
)

const (
	defaultAdminUsername = "admin"
	defaultAdminEmail    = "admin@maisoong.local"
)

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	ctx := context.Background()
	password := os.Getenv("ADMIN_PASSWORD")
	if len(password) < 6 {
		fmt.Fprintln(os.Stderr, "ADMIN_PASSWORD must be set (at least 6 characters).")
		os.Exit(2)
	}

	db := config.ConnectDatabaseWithRetry()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized. Set DB_* env vars.")
		os.Exit(1)
	}
	if err := models.MigrateTable(db); err != nil {
		fmt.Fprintf(os.Stderr, "failed to migrate: %v\n", err)
		os.Exit(1)
	}

	ledger := models.NewLedger(db)
	user, err := ledger.UpsertAdmin(ctx,
		envOr("ADMIN_USERNAME", defaultAdminUsername),
		envOr("ADMIN_EMAIL", defaultAdminEmail),
		password,
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to upsert admin: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("admin user ready (id=%d username=%s)\n", user.ID, user.Username)
}
