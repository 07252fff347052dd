package sandbox

import (
	"context"

	"go.uber.org/zap"
)

// Executor runs learner code on pooled runtimes
type Executor struct {
	pool   *Pool
	notify AlertNotifier
	logger *zap.Logger
}

// NewExecutor creates an executor. notify, when set, receives every alert
// that a request does not handle itself.
func NewExecutor(config Config, logger *zap.Logger, notify AlertNotifier) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		pool:   NewPool(config),
		notify: notify,
		logger: logger,
	}
}

// Run executes source without a document
func (e *Executor) Run(ctx context.Context, source string) ExecutionResult {
	return e.Execute(ctx, Request{Source: source})
}

// Execute runs req. Pool failures are reported like any other error so
// callers only ever inspect the result.
func (e *Executor) Execute(ctx context.Context, req Request) ExecutionResult {
	if req.OnAlert == nil {
		req.OnAlert = e.notify
	}

	result, err := e.pool.Execute(ctx, req)
	if err != nil {
		e.logger.Warn("Sandbox unavailable", zap.Error(err))
		msg := err.Error()
		if ctx.Err() != nil {
			msg = CancelledMessage
		}
		result.Logs = []string{errorPrefix + msg}
		result.ErrorMessage = msg
		return result
	}

	if result.HasError() {
		e.logger.Debug("Learner code failed",
			zap.String("error", result.ErrorMessage),
			zap.Duration("duration", result.Duration))
	}
	return result
}

// Stats returns pool statistics
func (e *Executor) Stats() PoolStats {
	return e.pool.Stats()
}

// Close releases all runtimes
func (e *Executor) Close() error {
	return e.pool.Close()
}

// Run executes source on a fresh runtime with the default configuration
func Run(source string) ExecutionResult {
	return New(DefaultConfig()).Execute(context.Background(), Request{Source: source})
}
