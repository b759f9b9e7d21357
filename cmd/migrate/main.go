// Command migrate applies the embedded schema migrations: up, down or
// status against the configured Postgres database.
package main

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog/log"

	"game-catalog-pipeline/internal/config"
	"game-catalog-pipeline/internal/logging"
	"game-catalog-pipeline/internal/storage/migrations"
)

func main() {
	os.Exit(run())
}

func run() int {
	if len(os.Args) != 2 {
		usage()
		return 2
	}
	direction := os.Args[1]

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration: %v\n", err)
		return 2
	}
	logCloser, err := logging.Setup(cfg.LogBaseDir, cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging setup: %v\n", err)
		return 1
	}
	defer logCloser.Close()

	db, err := sql.Open("pgx", cfg.DatabaseDSN())
	if err != nil {
		log.Error().Err(err).Msg("open database")
		return 1
	}
	defer db.Close()

	switch direction {
	case "up":
		err = migrations.Up(db)
	case "down":
		err = migrations.Down(db)
	case "status":
		err = migrations.Status(db)
	default:
		usage()
		return 2
	}
	if err != nil {
		log.Error().Err(err).Str("direction", direction).Msg("migration failed")
		return 1
	}

	log.Info().Str("direction", direction).Msg("migration finished")
	return 0
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: migrate <up|down|status>")
}
