package progress

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/gorilincode/backend/internal/infrastructure/config"
	"github.com/gorilincode/backend/internal/infrastructure/monitoring"
)

// New builds the store selected by cfg. Remote backends are wrapped in a
// FallbackStore over the file store when cfg.Fallback is set.
func New(ctx context.Context, cfg config.ProgressConfig, metrics *monitoring.Metrics, log *zap.Logger) (Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("progress")

	var (
		primary Store
		err     error
	)
	switch cfg.Backend {
	case config.BackendMemory, "":
		return Instrument(NewMemoryStore(), config.BackendMemory, metrics), nil
	case config.BackendFile:
		primary, err = NewFileStore(cfg.Dir)
	case config.BackendRedis:
		primary, err = NewRedisStore(ctx, RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Timeout:  cfg.Timeout.Std(),
		})
	case config.BackendSQL:
		primary, err = OpenSQLStore(cfg.DatabaseDriver, cfg.DatabaseDSN, log)
	case config.BackendFirestore:
		primary, err = NewFirestoreStore(FirestoreOptions{
			BaseURL: cfg.FirestoreURL,
			Project: cfg.FirestoreProject,
			Token:   cfg.FirestoreToken,
			Timeout: cfg.Timeout.Std(),
			Retries: 2,
		})
	default:
		return nil, fmt.Errorf("unknown progress backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s progress store: %w", cfg.Backend, err)
	}

	primary = Instrument(primary, cfg.Backend, metrics)
	if !cfg.Fallback || cfg.Backend == config.BackendFile {
		log.Info("progress store ready", zap.String("backend", cfg.Backend))
		return primary, nil
	}

	local, err := NewFileStore(cfg.Dir)
	if err != nil {
		_ = primary.Close()
		return nil, fmt.Errorf("open fallback progress store: %w", err)
	}
	log.Info("progress store ready",
		zap.String("backend", cfg.Backend),
		zap.String("fallback", config.BackendFile))
	return NewFallbackStore(
		primary,
		Instrument(local, config.BackendFile, metrics),
		NewBreaker(cfg.Backend, log),
		metrics,
		log,
	), nil
}
