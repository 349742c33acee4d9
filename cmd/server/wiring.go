package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/99minutos/account-service/internal/api/handler"
	"github.com/99minutos/account-service/internal/core/ports"
	"github.com/99minutos/account-service/internal/infrastructure/config"
	"github.com/99minutos/account-service/internal/infrastructure/db/memory"
	mongodb "github.com/99minutos/account-service/internal/infrastructure/db/mongo"
	"github.com/99minutos/account-service/internal/infrastructure/db/postgres"
	"github.com/99minutos/account-service/internal/infrastructure/mail"
)

type store struct {
	repo    ports.UserRepository
	pingers []handler.Pinger
	close   func()
}

// openStore connects the configured user store.
func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*store, error) {
	switch cfg.Store {
	case config.StoreMongo:
		client, db, err := mongodb.Connect(ctx, mongodb.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return nil, err
		}
		repo := mongodb.NewUserRepository(db)
		if err := repo.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, fmt.Errorf("mongo indexes: %w", err)
		}
		log.Info().Str("database", cfg.Mongo.Database).Msg("connected to mongo")
		return &store{
			repo:    repo,
			pingers: []handler.Pinger{mongodb.Pinger{Client: client}},
			close:   func() { _ = client.Disconnect(context.Background()) },
		}, nil

	case config.StorePostgres:
		db, err := postgres.Connect(ctx, postgres.Config{DSN: cfg.Postgres.DSN})
		if err != nil {
			return nil, err
		}
		log.Info().Msg("connected to postgres")
		return &store{
			repo:    postgres.NewUserRepository(db),
			pingers: []handler.Pinger{postgres.Pinger{DB: db}},
			close:   func() { _ = db.Close() },
		}, nil

	default:
		log.Warn().Msg("using in-memory store; data is lost on restart")
		return &store{repo: memory.NewUserRepository(), close: func() {}}, nil
	}
}

// newSender builds the configured mail transport.
func newSender(cfg *config.Config, log zerolog.Logger) (ports.Notifier, error) {
	switch cfg.Mail.Driver {
	case config.MailPostmark:
		s, err := mail.NewPostmarkSender(mail.PostmarkConfig{
			ServerToken:  cfg.Mail.PostmarkServerToken,
			AccountToken: cfg.Mail.PostmarkAccountToken,
			From:         cfg.Mail.From,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.MailHTTP:
		s, err := mail.NewHTTPSender(cfg.Mail.ServiceURL, nil)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return mail.NewLogSender(log), nil
	}
}
