package progress

import (
	"context"
	"errors"
	"slices"
	"time"
)

// HeartsPerGorillaHeart is how many hearts make one gorilla heart
const HeartsPerGorillaHeart = 5

// ErrNotFound is returned by a Store when a learner has no record
var ErrNotFound = errors.New("progress record not found")

// Record is the persisted progress of one learner
type Record struct {
	LearnerID        string    `json:"learner_id"`
	CompletedLessons []int     `json:"completed_lessons"`
	Hearts           int       `json:"hearts"`
	GorillaHearts    int       `json:"gorilla_hearts"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Store persists progress records
type Store interface {
	// Load returns ErrNotFound when the learner has no record
	Load(ctx context.Context, learner string) (*Record, error)
	Save(ctx context.Context, rec *Record) error
	Delete(ctx context.Context, learner string) error
	Close() error
}

// NewRecord returns an empty record for learner
func NewRecord(learner string, now time.Time) *Record {
	return &Record{
		LearnerID:        learner,
		CompletedLessons: []int{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Has reports whether lesson id is completed
func (r *Record) Has(id int) bool {
	return r != nil && slices.Contains(r.CompletedLessons, id)
}

// HeartsToNext returns the hearts still missing for the next gorilla heart
func (r *Record) HeartsToNext() int {
	if r == nil {
		return HeartsPerGorillaHeart
	}
	return HeartsPerGorillaHeart - r.Hearts%HeartsPerGorillaHeart
}

// Clone returns a deep copy
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.CompletedLessons = slices.Clone(r.CompletedLessons)
	if c.CompletedLessons == nil {
		c.CompletedLessons = []int{}
	}
	return &c
}
