package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"tasktimer/internal/attendance"
	"tasktimer/internal/autofill"
	"tasktimer/internal/bot"
	"tasktimer/internal/config"
	"tasktimer/internal/db"
	"tasktimer/internal/db/memstore"
	v1 "tasktimer/internal/delivery/http/v1"
	"tasktimer/internal/logger"
	"tasktimer/internal/notify"
	"tasktimer/internal/store"
	"tasktimer/internal/timer"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

func main() {
	bootLog := zerolog.New(os.Stderr).With().Timestamp().Logger()

	// Load environment variables from .env file
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
	log.Info().Str("env", cfg.Env).Str("db_driver", cfg.Database.Driver).Msg("starting tasktimer")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openStore(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize store")
	}
	defer s.Close()

	dispatcher := notify.NewDispatcher(cfg.Notify.Buffer, logger.Component(log, "notify"),
		notify.NewLogNotifier(logger.Component(log, "events")))
	engine := timer.NewEngine(s, attendance.Gate{}, autofill.New(logger.Component(log, "autofill")), dispatcher, logger.Component(log, "timer"))
	coordinator := timer.NewCoordinator(engine, s, logger.Component(log, "coordinator"))
	attendanceService := attendance.NewService(s, coordinator, logger.Component(log, "attendance"))

	var discordBot *bot.Bot
	if cfg.Discord.Enabled {
		discordBot, err = bot.New(cfg.Discord, engine, attendanceService, s, logger.Component(log, "bot"))
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create bot")
		}
		if cfg.Discord.NotifyChannelID != "" {
			dispatcher.AddNotifier(notify.NewDiscordNotifier(discordBot.Session(), cfg.Discord.NotifyChannelID))
		}
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		dispatcher.Run(ctx)
	}()

	var server *http.Server
	if cfg.HTTP.Enabled {
		server = newHTTPServer(cfg, log, engine, attendanceService, s)
		go func() {
			log.Info().Str("host", cfg.HTTP.Host).Str("port", cfg.HTTP.Port).Msg("setting up http server")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("failed to listen and serve http")
				stop()
			}
		}()
	}

	if discordBot != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := discordBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("error running bot")
				stop()
			}
		}()
	}

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shutdown http server")
		}
		cancel()
	}
	if discordBot != nil {
		if err := discordBot.Shutdown(); err != nil {
			log.Error().Err(err).Msg("error during bot shutdown")
		}
	}

	wg.Wait()
	log.Info().Msg("application shutdown complete")
}

func openStore(ctx context.Context, cfg config.DatabaseConfig, log zerolog.Logger) (store.Store, error) {
	if cfg.Driver == config.DriverMemory {
		log.Warn().Msg("using in-memory store, data is lost on exit")
		return memstore.New(), nil
	}
	database, err := db.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return database, nil
}

func newHTTPServer(cfg *config.Config, log zerolog.Logger, engine *timer.Engine, att *attendance.Service, s store.Store) *http.Server {
	if cfg.Env != config.EnvLocal {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	v1.New(logger.Component(log, "http"), engine, att, s, cfg.Auth.JWTIssuer, cfg.Auth.JWTSigningKey).Register(router)

	return &http.Server{
		Addr:    net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}
}
