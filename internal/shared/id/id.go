// Package id provides ULID based identifiers.
//
// ULIDs sort by creation time, so learner records and run logs can be
// ordered without a separate timestamp. Prefixes make ids readable in logs.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// LearnerID identifies a learner and keys their progress record
type LearnerID string

// RunID identifies one run of the lesson pipeline
type RunID string

// ConnID identifies a streaming connection
type ConnID string

const (
	// LearnerPrefix matches the ids stored by the web client
	LearnerPrefix = "user-"
	RunPrefix     = "run_"
	TracePrefix   = "trace_"
	SpanPrefix    = "span_"
)

// Generator generates ULIDs
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex // Protects entropy reader
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand
func NewGenerator() *Generator {
	return &Generator{entropy: rand.Reader}
}

// NewGeneratorWithEntropy creates a generator with custom entropy source.
// Useful for testing with deterministic entropy.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateString creates a new ULID as a string
func (g *Generator) GenerateString() string {
	return g.Generate().String()
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return prefix + g.GenerateString()
}

// NewLearnerID generates a learner id such as user-01J...
func NewLearnerID() LearnerID {
	return LearnerID(Default().GenerateWithPrefix(LearnerPrefix))
}

// NewRunID generates a run id
func NewRunID() RunID {
	return RunID(Default().GenerateWithPrefix(RunPrefix))
}

// NewTraceID generates a trace id
func NewTraceID() string {
	return Default().GenerateWithPrefix(TracePrefix)
}

// NewSpanID generates a span id
func NewSpanID() string {
	return Default().GenerateWithPrefix(SpanPrefix)
}

func (id LearnerID) String() string { return string(id) }
func (id RunID) String() string     { return string(id) }
func (id ConnID) String() string    { return string(id) }

// IsValid checks if an ID string is a valid ULID, ignoring known prefixes
func IsValid(id string) bool {
	_, err := Parse(id)
	return err == nil
}

// Parse parses a ULID string, ignoring known prefixes
func Parse(id string) (ulid.ULID, error) {
	for _, p := range []string{LearnerPrefix, RunPrefix, TracePrefix, SpanPrefix} {
		id = strings.TrimPrefix(id, p)
	}
	u, err := ulid.Parse(id)
	if err != nil {
		return ulid.ULID{}, fmt.Errorf("parse id: %w", err)
	}
	return u, nil
}

// Timestamp extracts the timestamp from a ULID
func Timestamp(id string) (time.Time, error) {
	parsed, err := Parse(id)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
