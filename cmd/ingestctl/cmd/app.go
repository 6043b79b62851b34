package cmd

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/docflow/ingest-console/internal/api/handler"
	"github.com/docflow/ingest-console/internal/core/domain"
	"github.com/docflow/ingest-console/internal/core/ports"
	"github.com/docflow/ingest-console/internal/core/reconcile"
	"github.com/docflow/ingest-console/internal/core/service"
	"github.com/docflow/ingest-console/internal/infrastructure/config"
	"github.com/docflow/ingest-console/internal/infrastructure/credstore"
	"github.com/docflow/ingest-console/internal/infrastructure/db/redis"
	"github.com/docflow/ingest-console/internal/infrastructure/remote"
	"github.com/docflow/ingest-console/pkg/logger"
)

// app holds the wired components shared by every command.
type app struct {
	remote  *remote.Client
	session *service.SessionService
	guard   *service.Guard
	engine  *reconcile.Engine
	boards  service.BoardOptions
	checks  map[string]handler.CheckFunc
	rdb     *goredis.Client
}

// sessionTokens lets the remote client read the session's credential even
// though the session is built after the client.
type sessionTokens struct {
	session *service.SessionService
}

func (t *sessionTokens) Token() (*oauth2.Token, error) {
	if t.session == nil {
		return nil, domain.ErrNotAuthenticated
	}
	return t.session.Token()
}

func newApp(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*app, error) {
	a := &app{
		engine: reconcile.NewEngine(logger.Component("reconcile")),
		boards: service.BoardOptions{
			Interval:       cfg.Poll.Interval,
			RequestTimeout: cfg.Poll.RequestTimeout,
		},
		checks: map[string]handler.CheckFunc{},
	}

	store, err := a.credentialStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	tokens := &sessionTokens{}
	a.remote = remote.NewClient(remote.Config{
		BaseURL: cfg.Remote.BaseURL,
		Timeout: cfg.Remote.RequestTimeout,
	}, tokens, log)
	a.session = service.NewSessionService(a.remote, store, logger.Component("session"), cfg.Remote.RequestTimeout)
	tokens.session = a.session
	a.guard = service.NewGuard(a.session, cfg.Guard.ResolveTimeout, logger.Component("guard"))

	a.checks["backend"] = a.remote.Ping
	return a, nil
}

func (a *app) credentialStore(ctx context.Context, cfg *config.Config) (ports.CredentialStore, error) {
	switch cfg.Credential.Backend {
	case config.BackendMemory:
		return credstore.NewMemoryStore(), nil
	case config.BackendRedis:
		rdb, err := redis.Connect(ctx, redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("credential store: %w", err)
		}
		a.rdb = rdb
		a.checks["redis"] = func(ctx context.Context) error {
			return redis.Ping(ctx, rdb, 0)
		}
		return redis.NewCredentialStore(rdb, cfg.Redis.CredentialKey), nil
	default:
		store, err := credstore.NewFileStore(cfg.Credential.Path, cfg.Credential.Passphrase)
		if err != nil {
			return nil, fmt.Errorf("credential store: %w", err)
		}
		return store, nil
	}
}

func (a *app) close() {
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
}

// restoredApp builds the app and picks up the stored credential.
func restoredApp(ctx context.Context) (*app, error) {
	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	if err := a.session.Restore(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

// enter runs the guard for a terminal command. A denial becomes an error that
// tells the user what to do next.
func (a *app) enter(ctx context.Context, roles ...domain.Role) error {
	d, err := a.guard.CanEnter(ctx, roles...)
	if d.Allowed {
		return nil
	}
	switch d.Reason {
	case domain.DenyUnauthenticated:
		return errors.New("not logged in, run `ingestctl login` first")
	case domain.DenyRoleMismatch:
		return fmt.Errorf("role %q may not do this", d.Role)
	default:
		if err != nil {
			return fmt.Errorf("could not resolve your role: %w", err)
		}
		return errors.New("could not resolve your role")
	}
}
