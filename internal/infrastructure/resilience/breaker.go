package resilience

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrCircuitOpen is returned without calling the guarded function while
	// the breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrProbeInFlight is returned in half-open state when the probe budget
	// is already spent.
	ErrProbeInFlight = errors.New("circuit breaker probe in flight")
)

// State represents the circuit breaker state
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Settings configures a Breaker. Zero values fall back to defaults.
type Settings struct {
	// Failures is the number of consecutive failures that opens the circuit
	Failures uint32
	// Cooldown is how long the circuit stays open before probing again
	Cooldown time.Duration
	// Probes is the number of successful probes that close the circuit
	Probes uint32
	// IsFailure decides whether an error counts against the backend.
	// Defaults to every non-nil error.
	IsFailure func(err error) bool
	// OnStateChange is called with the lock released
	OnStateChange func(name string, from, to State)
}

const (
	defaultFailures = 3
	defaultCooldown = 30 * time.Second
	defaultProbes   = 1
)

// Counts is a snapshot of breaker statistics
type Counts struct {
	Successes           uint64
	Failures            uint64
	Rejected            uint64
	ConsecutiveFailures uint32
	ProbeSuccesses      uint32
}

// Breaker guards calls to a backend that may be unavailable
type Breaker struct {
	name     string
	settings Settings
	now      func() time.Time

	mu       sync.Mutex
	state    State
	counts   Counts
	openedAt time.Time
	probes   uint32
}

// New creates a closed breaker
func New(name string, settings Settings) *Breaker {
	if settings.Failures == 0 {
		settings.Failures = defaultFailures
	}
	if settings.Cooldown <= 0 {
		settings.Cooldown = defaultCooldown
	}
	if settings.Probes == 0 {
		settings.Probes = defaultProbes
	}
	if settings.IsFailure == nil {
		settings.IsFailure = func(err error) bool { return err != nil }
	}
	return &Breaker{name: name, settings: settings, now: time.Now}
}

// Name returns the breaker name
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current state, moving open to half-open once the
// cooldown has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advance()
	return b.state
}

// Counts returns a copy of the statistics
func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts
}

// Call runs fn if the breaker admits it
func (b *Breaker) Call(fn func() error) error {
	if err := b.admit(); err != nil {
		return err
	}

	var err error
	defer func() {
		if p := recover(); p != nil {
			b.report(errPanicked)
			panic(p)
		}
		b.report(err)
	}()
	err = fn()
	return err
}

// Do runs fn through the breaker and returns its value
func Do[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var out T
	err := b.Call(func() error {
		v, err := fn()
		out = v
		return err
	})
	return out, err
}

var errPanicked = errors.New("panic")

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.advance()
	switch b.state {
	case StateOpen:
		b.counts.Rejected++
		return ErrCircuitOpen
	case StateHalfOpen:
		if b.probes >= b.settings.Probes {
			b.counts.Rejected++
			return ErrProbeInFlight
		}
		b.probes++
	}
	return nil
}

func (b *Breaker) report(err error) {
	b.mu.Lock()
	from := b.state
	if err != nil && b.settings.IsFailure(err) {
		b.counts.Failures++
		b.counts.ConsecutiveFailures++
		b.counts.ProbeSuccesses = 0
		if b.state == StateHalfOpen || b.counts.ConsecutiveFailures >= b.settings.Failures {
			b.trip()
		}
	} else {
		b.counts.Successes++
		b.counts.ConsecutiveFailures = 0
		if b.state == StateHalfOpen {
			b.counts.ProbeSuccesses++
			if b.counts.ProbeSuccesses >= b.settings.Probes {
				b.state = StateClosed
				b.probes = 0
				b.counts.ProbeSuccesses = 0
			}
		}
	}
	to := b.state
	b.mu.Unlock()

	b.notify(from, to)
}

func (b *Breaker) trip() {
	b.state = StateOpen
	b.openedAt = b.now()
	b.probes = 0
}

// advance must be called with mu held
func (b *Breaker) advance() {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.settings.Cooldown {
		from := b.state
		b.state = StateHalfOpen
		b.probes = 0
		b.counts.ProbeSuccesses = 0
		if b.settings.OnStateChange != nil {
			go b.settings.OnStateChange(b.name, from, StateHalfOpen)
		}
	}
}

func (b *Breaker) notify(from, to State) {
	if from != to && b.settings.OnStateChange != nil {
		b.settings.OnStateChange(b.name, from, to)
	}
}
