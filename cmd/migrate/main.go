package main

import (
	"context"
	"os"

	"tasktimer/internal/config"
	"tasktimer/internal/logger"
	"tasktimer/migrations"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

func main() {
	bootLog := zerolog.New(os.Stderr).With().Timestamp().Logger()

	if err := godotenv.Load(); err != nil {
		bootLog.Info().Msg("no .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}

	log, err := logger.New(cfg.Env)
	if err != nil {
		bootLog.Fatal().Err(err).Msg("failed to init logger")
	}

	if cfg.Database.Driver != config.DriverPostgres {
		log.Fatal().Str("driver", cfg.Database.Driver).Msg("migrations only apply to postgres")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.URL())
	if err != nil {
		log.Fatal().Err(err).Msg("unable to connect to database")
	}
	defer pool.Close()

	all, err := migrations.All()
	if err != nil {
		log.Fatal().Err(err).Msg("error reading migrations")
	}

	for _, m := range all {
		if _, err := pool.Exec(ctx, m.SQL); err != nil {
			log.Fatal().Err(err).Str("migration", m.Name).Msg("error executing migration")
		}
		log.Info().Str("migration", m.Name).Msg("applied migration")
	}

	log.Info().Int("count", len(all)).Msg("migration completed successfully")
}
