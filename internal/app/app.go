// Package app assembles repositories, services and listeners into one application value.
package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/and161185/whosfree/internal/chat"
	"github.com/and161185/whosfree/internal/config"
	"github.com/and161185/whosfree/internal/limiter"
	"github.com/and161185/whosfree/internal/migrate"
	"github.com/and161185/whosfree/internal/repository/postgres"
	grpcserver "github.com/and161185/whosfree/internal/server/grpc"
	httpserver "github.com/and161185/whosfree/internal/server/http"
	"github.com/and161185/whosfree/internal/service"
)

// App is the running application context.
type App struct {
	Cfg *config.Config
	Log *zap.Logger
	DB  *postgres.DB
	Hub *chat.Hub

	Auth     *service.AuthServiceImpl
	Friends  *service.FriendServiceImpl
	Events   *service.EventServiceImpl
	Messages *service.MessageServiceImpl

	HTTP  *http.Server
	Admin *grpcserver.Admin
}

// New runs migrations, opens the pool and wires every component.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	if err := migrate.Up(ctx, cfg.DSN); err != nil {
		return nil, err
	}
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	return Wire(cfg, log, &postgres.DB{Pool: pool}, limiter.NewPG(pool, cfg.LimiterWindow, cfg.LimiterMaxFails, cfg.LimiterBlock)), nil
}

// Wire builds the services and listeners on top of an open database.
func Wire(cfg *config.Config, log *zap.Logger, db *postgres.DB, lim limiter.Limiter) *App {
	users := postgres.NewUserRepo(db)
	friendRepo := postgres.NewFriendRepo(db)
	eventRepo := postgres.NewEventRepo(db)
	messageRepo := postgres.NewMessageRepo(db)

	hub := chat.NewHub(log.Named("chat"))

	a := &App{
		Cfg:      cfg,
		Log:      log,
		DB:       db,
		Hub:      hub,
		Auth:     service.NewAuthService(users, []byte(cfg.JWTKey), cfg.AccessTTL, lim),
		Friends:  service.NewFriendService(friendRepo),
		Events:   service.NewEventService(eventRepo, friendRepo, cfg.Location()),
		Messages: service.NewMessageService(messageRepo, users, hub),
	}

	router := httpserver.NewRouter(httpserver.Deps{
		Auth:       a.Auth,
		Events:     a.Events,
		Friends:    a.Friends,
		Messages:   a.Messages,
		Health:     db,
		Log:        log.Named("http"),
		RateLimit:  cfg.RateLimit,
		RateBurst:  cfg.RateBurst,
		TrustProxy: cfg.TrustProxy,
	})
	a.HTTP = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	if cfg.AdminAddr != "" {
		a.Admin = grpcserver.NewAdmin(log.Named("admin"))
	}
	return a
}

// Run serves until ctx is cancelled or a listener fails, then shuts down within the configured timeout.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	if a.Admin != nil {
		lis, err := net.Listen("tcp", a.Cfg.AdminAddr)
		if err != nil {
			return err
		}
		go a.Admin.Watch(watchCtx, a.DB, a.Cfg.HealthInterval)
		go func() {
			a.Log.Info("admin grpc listening", zap.String("addr", a.Cfg.AdminAddr))
			if err := a.Admin.Serve(lis); err != nil {
				errCh <- err
			}
		}()
	}

	go func() {
		a.Log.Info("http listening", zap.String("addr", a.Cfg.HTTPAddr))
		if err := a.HTTP.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		a.Log.Error("listener failed", zap.Error(runErr))
	}
	a.shutdown()
	return runErr
}

func (a *App) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), a.Cfg.ShutdownTimeout)
	defer cancel()

	if a.Admin != nil {
		done := make(chan struct{})
		go func() {
			a.Admin.Stop()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
		}
	}
	// Shutdown does not wait for hijacked WebSocket connections.
	if err := a.HTTP.Shutdown(ctx); err != nil {
		a.Log.Warn("http shutdown", zap.Error(err))
		_ = a.HTTP.Close()
	}
}

// Close releases the database pool.
func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
	}
}
