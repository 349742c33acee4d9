// @title                       Account Service API
// @version                     1.0
// @description                 Account registration, activation, login, password reset and user management.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/account-service/internal/api"
	"github.com/99minutos/account-service/internal/core/security"
	"github.com/99minutos/account-service/internal/core/service"
	"github.com/99minutos/account-service/internal/infrastructure/config"
	redisdb "github.com/99minutos/account-service/internal/infrastructure/db/redis"
	"github.com/99minutos/account-service/internal/infrastructure/queue"
	"github.com/99minutos/account-service/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		// The logger is not configured yet.
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: "account-service",
	})

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	started := time.Now()

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.close()

	pingers := st.pingers

	opts := []service.Option{
		service.WithActivationBaseURL(cfg.HTTP.BaseURL),
		service.WithTrustedRegistrationRole(cfg.Auth.TrustRegistrationRole),
		service.WithPageSize(cfg.HTTP.DefaultPageSize, cfg.HTTP.MaxPageSize),
	}

	if cfg.Redis.Addr != "" {
		rdb, err := redisdb.Connect(ctx, redisdb.Config{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
		if err != nil {
			return err
		}
		defer rdb.Close()
		pingers = append(pingers, redisdb.Pinger{Client: rdb})

		if cfg.Auth.ResetCooldown > 0 {
			opts = append(opts, service.WithResetThrottle(redisdb.NewResetThrottle(rdb, cfg.Auth.ResetCooldown)))
			log.Info().Dur("cooldown", cfg.Auth.ResetCooldown).Msg("password reset throttling enabled")
		}
	}

	if len(cfg.Auth.DiagnosticSecrets) == 0 {
		log.Warn().Msg("DIAGNOSTIC_SECRETS is empty; /users/secret-stats will deny every request")
	}

	sender, err := newSender(cfg, log)
	if err != nil {
		return err
	}

	mailCtx, stopMail := context.WithCancel(context.Background())
	dispatcher := queue.NewDispatcher(cfg.Mail.Workers, sender, log)
	dispatcher.Start(mailCtx)
	defer func() {
		stopMail()
		dispatcher.Wait()
	}()

	sessions, err := security.NewJWTIssuer(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL)
	if err != nil {
		return err
	}

	svc := service.NewAccountService(
		st.repo,
		security.NewBcryptHasher(cfg.Auth.BcryptCost),
		security.NewTokenGenerator(cfg.Auth.ActivationTTL, cfg.Auth.ResetTTL),
		sessions,
		dispatcher,
		log,
		opts...,
	)

	e := api.NewRouter(api.Deps{
		Service:           svc,
		Sessions:          sessions,
		Log:               log,
		DiagnosticSecrets: cfg.Auth.DiagnosticSecrets,
		RateLimit:         cfg.HTTP.RateLimitRPS,
		Pingers:           pingers,
		Started:           started,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("store", cfg.Store).Str("mail", cfg.Mail.Driver).Msg("starting server")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
