package progress

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/gorilincode/backend/internal/infrastructure/monitoring"
	"github.com/gorilincode/backend/internal/infrastructure/resilience"
)

// FallbackStore writes through a remote primary and a local store. Reads
// go to the primary and fall back to the local copy when the primary fails
// or its circuit is open.
type FallbackStore struct {
	primary Store
	local   Store
	breaker *resilience.Breaker
	metrics *monitoring.Metrics
	log     *zap.Logger
}

// NewFallbackStore wires primary and local behind a breaker. metrics and
// log may be nil.
func NewFallbackStore(primary, local Store, breaker *resilience.Breaker, metrics *monitoring.Metrics, log *zap.Logger) *FallbackStore {
	if breaker == nil {
		breaker = NewBreaker("progress", nil)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &FallbackStore{
		primary: primary,
		local:   local,
		breaker: breaker,
		metrics: metrics,
		log:     log,
	}
}

// NewBreaker creates a breaker that does not count missing records as
// backend failures.
func NewBreaker(name string, log *zap.Logger) *resilience.Breaker {
	return resilience.New(name, resilience.Settings{
		IsFailure: func(err error) bool {
			return err != nil && !errors.Is(err, ErrNotFound)
		},
		OnStateChange: func(name string, from, to resilience.State) {
			if log != nil {
				log.Warn("progress breaker state change",
					zap.String("breaker", name),
					zap.Stringer("from", from),
					zap.Stringer("to", to))
			}
		},
	})
}

func (s *FallbackStore) fallback(op string, err error) {
	s.log.Warn("progress primary unavailable, using local store",
		zap.String("op", op), zap.Error(err))
	if s.metrics != nil {
		s.metrics.IncStoreFallbacks()
	}
}

func (s *FallbackStore) Load(ctx context.Context, learner string) (*Record, error) {
	rec, err := resilience.Do(s.breaker, func() (*Record, error) {
		return s.primary.Load(ctx, learner)
	})
	if err == nil || errors.Is(err, ErrNotFound) {
		return rec, err
	}
	s.fallback("load", err)
	return s.local.Load(ctx, learner)
}

func (s *FallbackStore) Save(ctx context.Context, rec *Record) error {
	localErr := s.local.Save(ctx, rec)
	err := s.breaker.Call(func() error {
		return s.primary.Save(ctx, rec)
	})
	if err == nil {
		return nil
	}
	if localErr != nil {
		return fmt.Errorf("save progress: %w", errors.Join(err, localErr))
	}
	s.fallback("save", err)
	return nil
}

func (s *FallbackStore) Delete(ctx context.Context, learner string) error {
	localErr := s.local.Delete(ctx, learner)
	err := s.breaker.Call(func() error {
		return s.primary.Delete(ctx, learner)
	})
	if err == nil {
		return localErr
	}
	if localErr != nil {
		return fmt.Errorf("delete progress: %w", errors.Join(err, localErr))
	}
	s.fallback("delete", err)
	return nil
}

func (s *FallbackStore) Close() error {
	return errors.Join(s.primary.Close(), s.local.Close())
}
