// migrate runs DB migrations from embedded SQL; use with go run ./cmd/migrate.
// Only the Postgres-backed session store needs migrations.
package main

import (
	"flag"
	"fmt"
	"os"

	"banking-session-core/internal/config"
	"banking-session-core/internal/db/migrate"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if cfg.DatabaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is not set; the in-memory store needs no migrations")
		os.Exit(1)
	}

	if err := migrate.Run(cfg.DatabaseURL, *direction); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}
