// Command migrate manages the database schema from the migration files
// compiled into the binary, so a deploy never depends on a migrations
// directory being present on disk.
//
// Usage: migrate [flags] <up|down|force|version|drop>
package main

import (
	"errors"
	"flag"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/mchileshe/CourierIQ/internal/database"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	var (
		steps       int
		databaseURL string
	)
	flag.IntVar(&steps, "steps", 0, "Number of migrations to apply (0 = all; force takes a version)")
	flag.StringVar(&databaseURL, "database", "", "Database URL (overrides DATABASE_URL env)")
	flag.Parse()

	command := flag.Arg(0)
	if command == "" {
		command = "up"
	}

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		log.Fatal().Msg("DATABASE_URL environment variable or -database flag is required")
	}

	m, err := database.NewMigrator(databaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create migrate instance")
	}
	defer m.Close()

	log.Info().
		Str("command", command).
		Int("steps", steps).
		Msg("Starting migration")

	switch command {
	case "up":
		if steps > 0 {
			err = m.Steps(steps)
		} else {
			err = m.Up()
		}
	case "down":
		if steps > 0 {
			err = m.Steps(-steps)
		} else {
			err = m.Down()
		}
	case "force":
		if steps == 0 {
			log.Fatal().Msg("force requires -steps with the target version")
		}
		err = m.Force(steps)
	case "version":
		version, dirty, verr := m.Version()
		if errors.Is(verr, migrate.ErrNilVersion) {
			log.Info().Msg("No migrations have been applied yet")
			return
		}
		if verr != nil {
			log.Fatal().Err(verr).Msg("Failed to get version")
		}
		log.Info().
			Uint("version", version).
			Bool("dirty", dirty).
			Msg("Current migration version")
		return
	case "drop":
		err = m.Drop()
	default:
		log.Fatal().Str("command", command).Msg("Unknown command")
	}

	if err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info().Msg("No migrations to apply")
			return
		}
		log.Fatal().Err(err).Msg("Migration failed")
	}

	log.Info().Msg("Migration completed successfully")
}
