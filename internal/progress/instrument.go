package progress

import (
	"context"
	"errors"

	"github.com/gorilincode/backend/internal/infrastructure/monitoring"
)

// instrumented records timing and status for every store call
type instrumented struct {
	Store
	backend string
	metrics *monitoring.Metrics
}

// Instrument wraps store so its calls show up in the store metrics. A nil
// metrics returns store unchanged.
func Instrument(store Store, backend string, metrics *monitoring.Metrics) Store {
	if metrics == nil {
		return store
	}
	return &instrumented{Store: store, backend: backend, metrics: metrics}
}

func (s *instrumented) Load(ctx context.Context, learner string) (*Record, error) {
	timer := monitoring.NewTimer(s.metrics, s.backend, "load")
	rec, err := s.Store.Load(ctx, learner)
	if errors.Is(err, ErrNotFound) {
		timer.Stop(nil)
	} else {
		timer.Stop(err)
	}
	return rec, err
}

func (s *instrumented) Save(ctx context.Context, rec *Record) error {
	timer := monitoring.NewTimer(s.metrics, s.backend, "save")
	err := s.Store.Save(ctx, rec)
	timer.Stop(err)
	return err
}

func (s *instrumented) Delete(ctx context.Context, learner string) error {
	timer := monitoring.NewTimer(s.metrics, s.backend, "delete")
	err := s.Store.Delete(ctx, learner)
	timer.Stop(err)
	return err
}
