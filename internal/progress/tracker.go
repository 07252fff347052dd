package progress

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gorilincode/backend/internal/infrastructure/logging"
	"github.com/gorilincode/backend/internal/infrastructure/monitoring"
	"github.com/gorilincode/backend/internal/shared/id"
)

// Update describes the effect of MarkComplete
type Update struct {
	Record *Record `json:"record"`
	// Added is false when the lesson was already complete
	Added           bool `json:"added"`
	NewGorillaHeart bool `json:"new_gorilla_heart"`
	HeartsToNext    int  `json:"hearts_to_next"`
}

// Tracker applies the heart rules on top of a Store
type Tracker struct {
	store   Store
	metrics *monitoring.Metrics
	log     *zap.Logger
	now     func() time.Time

	// one lock per learner serialises read-modify-write cycles; an entry
	// lives only while some call holds or waits on it
	mu    sync.Mutex
	locks map[string]*learnerLock
}

type learnerLock struct {
	sync.Mutex
	refs int
}

// NewTracker creates a tracker. metrics and log may be nil.
func NewTracker(store Store, metrics *monitoring.Metrics, log *zap.Logger) *Tracker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Tracker{
		store:   store,
		metrics: metrics,
		log:     log,
		now:     time.Now,
		locks:   make(map[string]*learnerLock),
	}
}

func (t *Tracker) lock(learner string) func() {
	t.mu.Lock()
	l, ok := t.locks[learner]
	if !ok {
		l = &learnerLock{}
		t.locks[learner] = l
	}
	l.refs++
	t.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()

		t.mu.Lock()
		if l.refs--; l.refs == 0 {
			delete(t.locks, learner)
		}
		t.mu.Unlock()
	}
}

func (t *Tracker) load(ctx context.Context, learner string) (*Record, error) {
	rec, err := t.store.Load(ctx, learner)
	if errors.Is(err, ErrNotFound) {
		return NewRecord(learner, t.now()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load progress for %s: %w", learner, err)
	}
	return rec, nil
}

// Register creates an empty record under a fresh learner id
func (t *Tracker) Register(ctx context.Context) (*Record, error) {
	rec := NewRecord(string(id.NewLearnerID()), t.now())
	if err := t.store.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("register learner: %w", err)
	}
	t.log.Info("learner registered", logging.LearnerID(rec.LearnerID))
	return rec, nil
}

// Snapshot returns the learner's record, empty when none is stored
func (t *Tracker) Snapshot(ctx context.Context, learner string) (*Record, error) {
	return t.load(ctx, learner)
}

// IsComplete reports whether the learner completed lesson
func (t *Tracker) IsComplete(ctx context.Context, learner string, lesson int) (bool, error) {
	rec, err := t.load(ctx, learner)
	if err != nil {
		return false, err
	}
	return rec.Has(lesson), nil
}

// MarkComplete records lesson as completed. Completing a lesson twice
// changes nothing.
func (t *Tracker) MarkComplete(ctx context.Context, learner string, lesson int) (Update, error) {
	unlock := t.lock(learner)
	defer unlock()

	rec, err := t.load(ctx, learner)
	if err != nil {
		return Update{}, err
	}
	if rec.Has(lesson) {
		return Update{Record: rec, HeartsToNext: rec.HeartsToNext()}, nil
	}

	before := rec.GorillaHearts
	rec.CompletedLessons = append(rec.CompletedLessons, lesson)
	rec.Hearts++
	rec.GorillaHearts = rec.Hearts / HeartsPerGorillaHeart
	rec.UpdatedAt = t.now()

	if err := t.store.Save(ctx, rec); err != nil {
		return Update{}, fmt.Errorf("save progress for %s: %w", learner, err)
	}
	if t.metrics != nil {
		t.metrics.IncCompletions()
	}

	up := Update{
		Record:          rec,
		Added:           true,
		NewGorillaHeart: rec.GorillaHearts > before,
		HeartsToNext:    rec.HeartsToNext(),
	}
	t.log.Info("lesson completed",
		logging.LearnerID(learner),
		logging.LessonID(lesson),
		zap.Int("hearts", rec.Hearts),
		zap.Bool("new_gorilla_heart", up.NewGorillaHeart))
	return up, nil
}

// Reset clears the learner's progress, keeping the creation time
func (t *Tracker) Reset(ctx context.Context, learner string) (*Record, error) {
	unlock := t.lock(learner)
	defer unlock()

	rec, err := t.load(ctx, learner)
	if err != nil {
		return nil, err
	}
	fresh := NewRecord(learner, t.now())
	fresh.CreatedAt = rec.CreatedAt
	if err := t.store.Save(ctx, fresh); err != nil {
		return nil, fmt.Errorf("reset progress for %s: %w", learner, err)
	}
	return fresh, nil
}

// Close closes the underlying store
func (t *Tracker) Close() error {
	return t.store.Close()
}
