package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BuzzLyutic/study-planner/internal/auth"
	"github.com/BuzzLyutic/study-planner/internal/config"
	"github.com/BuzzLyutic/study-planner/internal/repo"
	"github.com/BuzzLyutic/study-planner/internal/service"
	"github.com/BuzzLyutic/study-planner/internal/viewmodel"
	"github.com/BuzzLyutic/study-planner/internal/worker"
)

// app holds everything the commands share.
type app struct {
	cfg      config.Config
	logger   *zap.Logger
	loc      *time.Location
	db       *sql.DB
	remote   *pgxpool.Pool
	settings *repo.SettingsRepo
	session  *auth.Session
	pool     *worker.Pool
	vm       *viewmodel.TaskViewModel
}

func newApp(ctx context.Context) (*app, error) {
	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("timezone: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, loc: loc}
	if err := a.open(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) open(ctx context.Context) error {
	db, err := repo.OpenLocal(a.cfg.LocalDBPath)
	if err != nil {
		return err
	}
	a.db = db
	a.logger.Info("local store opened", zap.String("path", a.cfg.LocalDBPath))

	var remote repo.RemoteStore
	if a.cfg.RemoteDatabaseURL == "" {
		a.logger.Warn("REMOTE_DATABASE_URL not set, cloud copy lives in memory only")
		remote = repo.NewMemoryDocuments()
	} else {
		pool, err := pgxpool.New(ctx, a.cfg.RemoteDatabaseURL)
		if err != nil {
			return fmt.Errorf("connect remote: %w", err)
		}
		a.remote = pool
		if err := pool.Ping(ctx); err != nil {
			return fmt.Errorf("ping remote: %w", err)
		}
		docs := repo.NewDocumentRepo(pool)
		if err := docs.Migrate(ctx); err != nil {
			return err
		}
		a.logger.Info("Successfully connected to the remote database!")
		remote = docs
	}

	var verifier auth.Verifier = auth.DevVerifier{}
	if a.cfg.AuthMode == config.AuthModeGoogle {
		if verifier, err = auth.NewGoogleVerifier(ctx, a.cfg.GoogleClientID); err != nil {
			return err
		}
	} else {
		a.logger.Warn("dev auth mode, tokens are taken as user ids")
	}

	svc := service.NewTaskService(repo.NewTaskRepo(a.db, a.logger), remote, a.logger)
	a.settings = repo.NewSettingsRepo(a.db)
	a.session = auth.NewSession(verifier, a.logger)
	a.pool = worker.NewPool(a.logger, a.cfg.WorkerCount, a.cfg.QueueSize)
	a.pool.Start(context.Background())
	a.vm = viewmodel.NewTaskViewModel(svc, a.session, a.pool, a.logger)
	return nil
}

func (a *app) close() {
	if a.pool != nil {
		a.pool.Stop()
	}
	if a.remote != nil {
		a.remote.Close()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("close local store", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
