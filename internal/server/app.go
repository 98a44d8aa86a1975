// Package server wires configuration, storage, token services and the gRPC
// transport into a runnable application with graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/tokenkeeper/internal/logging"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/audit"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/auth"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/config"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/refresh"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/services"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	gs "github.com/dmitrijs2005/tokenkeeper/internal/server/grpc"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	redis    redis.UniversalClient
	issuer   *auth.Issuer
	sessions *services.SessionService
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger, err := logging.New(c.LogFormat)
	if err != nil {
		return nil, err
	}

	app := &App{config: c, logger: logger}

	if err := app.init(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}

	return app, nil
}

func (app *App) init(ctx context.Context) error {
	c := app.config

	issuer, err := auth.NewIssuer(c.TokenSettings())
	if err != nil {
		return err
	}
	app.issuer = issuer

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	app.db = db

	if c.StorageBackend == config.StorageRedis {
		app.redis = redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		if err := app.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis init error: %w", err)
		}
	}

	rm, err := repomanager.New(c.StorageBackend, app.redis)
	if err != nil {
		return err
	}

	if err := rm.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("migrations error: %w", err)
	}

	tokens, err := refresh.NewManager(rm.RefreshTokens(db), c.TokenSettings(), app.logger)
	if err != nil {
		return err
	}

	recorder, err := app.auditRecorder(ctx)
	if err != nil {
		return err
	}

	app.sessions = services.NewSessionService(rm.Identities(db), issuer, tokens, recorder, app.logger)

	app.logger.Info(ctx, "Storage initialized", "backend", c.StorageBackend)

	return nil
}

// auditRecorder always logs events and additionally archives them to S3
// when enabled.
func (app *App) auditRecorder(ctx context.Context) (audit.Recorder, error) {
	recorders := audit.Multi{audit.NewLogRecorder(app.logger)}

	if app.config.AuditS3Enabled {
		s3r, err := audit.NewS3Recorder(ctx, app.config)
		if err != nil {
			return nil, fmt.Errorf("audit s3 init error: %w", err)
		}
		recorders = append(recorders, s3r)
	}

	return recorders, nil
}

// Close releases the database and redis connections.
func (app *App) Close() error {
	var errs []error
	if app.redis != nil {
		errs = append(errs, app.redis.Close())
	}
	if app.db != nil {
		errs = append(errs, app.db.Close())
	}
	return errors.Join(errs...)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.sessions, app.issuer, app.config.RequestTimeout)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.Close(); err != nil {
		app.logger.Error(ctx, "close error", "error", err)
	}

	app.logger.Info(ctx, "App stopped")
}
