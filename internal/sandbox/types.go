package sandbox

import (
	"context"
	"time"
)

// Config defines executor configuration
type Config struct {
	Timeout          time.Duration // Per-run deadline, zero disables it
	AlertDelay       time.Duration // Delay before the host alert notification
	MaxCallStackSize int           // Guards runaway recursion
	PoolSize         int           // Number of pre-created runtimes
}

// ExecutionResult is the outcome of running one piece of learner code.
// Logs keeps everything captured before a throw plus one synthetic
// "❌ Error: ..." line when ErrorMessage is set.
type ExecutionResult struct {
	Logs           []string      `json:"logs"`
	AlertTriggered bool          `json:"alert_triggered"`
	ErrorMessage   string        `json:"error_message,omitempty"`
	Duration       time.Duration `json:"duration_ns"`
}

// HasError reports whether the run threw
func (r ExecutionResult) HasError() bool {
	return r.ErrorMessage != ""
}

// AlertNotifier receives the message of an intercepted alert call once the
// alert delay has elapsed
type AlertNotifier func(message string)

// Request describes a single run
type Request struct {
	Source   string
	Document *Document    // Exposed as `document` when set
	OnLog    func(string) // Called synchronously for every captured line
	OnAlert  AlertNotifier
}

// Runner executes learner code
type Runner interface {
	Execute(ctx context.Context, req Request) ExecutionResult
}

// Log line markers
const (
	alertPrefix = "🔔 ALERTA: "
	errorPrefix = "❌ Error: "
)

// Interrupt reasons surfaced as error messages
const (
	TimeoutMessage   = "execution timeout exceeded"
	CancelledMessage = "context cancelled"
	// StackOverflowMessage reports runaway recursion
	StackOverflowMessage = "Maximum call stack size exceeded"

	thrownFallback = "Error"
)

// DefaultConfig returns the executor defaults
func DefaultConfig() Config {
	return Config{
		Timeout:          2 * time.Second,
		AlertDelay:       10 * time.Millisecond,
		MaxCallStackSize: 1024,
		PoolSize:         4,
	}
}
