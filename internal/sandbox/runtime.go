package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
)

// Runtime wraps a goja VM that runs learner code as the body of
// new Function("console", "alert", source).
type Runtime struct {
	vm     *goja.Runtime
	config Config
	mu     sync.Mutex
}

// New creates a new sandboxed runtime
func New(config Config) *Runtime {
	r := &Runtime{config: config}
	r.vm = r.newVM()
	return r
}

func (r *Runtime) newVM() *goja.Runtime {
	vm := goja.New()
	if r.config.MaxCallStackSize > 0 {
		vm.SetMaxCallStackSize(r.config.MaxCallStackSize)
	}
	setupGlobals(vm)
	return vm
}

// setupGlobals removes host globals and stubs timers
func setupGlobals(vm *goja.Runtime) {
	for _, name := range []string{"require", "process", "module", "exports"} {
		_ = vm.Set(name, goja.Undefined())
	}

	// Deferred callbacks are accepted and never fire
	noop := func(goja.FunctionCall) goja.Value { return vm.ToValue(0) }
	for _, name := range []string{"setTimeout", "setInterval", "clearTimeout", "clearInterval"} {
		_ = vm.Set(name, noop)
	}
}

// capture collects the output of one run
type capture struct {
	mu     sync.Mutex
	result ExecutionResult
	onLog  func(string)
}

func (c *capture) log(line string) {
	c.mu.Lock()
	c.result.Logs = append(c.result.Logs, line)
	c.mu.Unlock()
	if c.onLog != nil {
		c.onLog(line)
	}
}

func (c *capture) fail(msg string) {
	c.log(errorPrefix + msg)
	c.mu.Lock()
	c.result.ErrorMessage = msg
	c.mu.Unlock()
}

// Execute runs req.Source and never returns an error: every failure ends
// up in the result.
func (r *Runtime) Execute(ctx context.Context, req Request) (result ExecutionResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	c := &capture{onLog: req.OnLog}
	c.result.Logs = []string{}

	defer func() {
		if p := recover(); p != nil {
			c.fail(fmt.Sprint(p))
		}
		c.result.Duration = time.Since(start)
		result = c.result
	}()

	if err := ctx.Err(); err != nil {
		c.fail(CancelledMessage)
		return
	}

	vm := r.vm
	stop := r.watch(ctx, vm)
	defer stop()

	if req.Document != nil {
		req.Document.mu.Lock()
		defer req.Document.mu.Unlock()
		_ = vm.Set("document", newDocumentBinding(vm, req.Document))
	} else {
		_ = vm.Set("document", goja.Undefined())
	}

	fn, err := r.compile(vm, req.Source)
	if err != nil {
		c.fail(errorMessage(err))
		return
	}

	console := r.consoleSink(vm, c)
	alert := r.alertSink(vm, c, req.OnAlert)

	if _, err := fn(goja.Undefined(), console, alert); err != nil {
		c.fail(errorMessage(err))
	}
	return
}

// watch interrupts the VM when the deadline passes or ctx is done. The
// returned func stops the watcher and clears any pending interrupt.
func (r *Runtime) watch(ctx context.Context, vm *goja.Runtime) func() {
	done := make(chan struct{})
	exited := make(chan struct{})

	go func() {
		defer close(exited)

		var timeout <-chan time.Time
		if r.config.Timeout > 0 {
			timer := time.NewTimer(r.config.Timeout)
			defer timer.Stop()
			timeout = timer.C
		}

		select {
		case <-timeout:
			vm.Interrupt(TimeoutMessage)
		case <-ctx.Done():
			vm.Interrupt(CancelledMessage)
		case <-done:
		}
	}()

	return func() {
		close(done)
		<-exited
		vm.ClearInterrupt()
	}
}

// compile builds the callable unit with console and alert as parameters
func (r *Runtime) compile(vm *goja.Runtime, source string) (goja.Callable, error) {
	obj, err := vm.New(vm.Get("Function"),
		vm.ToValue("console"), vm.ToValue("alert"), vm.ToValue(source))
	if err != nil {
		return nil, err
	}
	fn, ok := goja.AssertFunction(obj)
	if !ok {
		return nil, errors.New("compiled source is not callable")
	}
	return fn, nil
}

func (r *Runtime) consoleSink(vm *goja.Runtime, c *capture) *goja.Object {
	write := func(call goja.FunctionCall) goja.Value {
		c.log(joinArgs(call.Arguments))
		return goja.Undefined()
	}

	console := vm.NewObject()
	for _, level := range []string{"log", "info", "warn", "error", "debug"} {
		_ = console.Set(level, write)
	}
	return console
}

func (r *Runtime) alertSink(vm *goja.Runtime, c *capture, notify AlertNotifier) goja.Value {
	delay := r.config.AlertDelay
	return vm.ToValue(func(call goja.FunctionCall) goja.Value {
		msg := call.Argument(0).String()

		c.mu.Lock()
		c.result.AlertTriggered = true
		c.mu.Unlock()
		c.log(alertPrefix + `"` + msg + `"`)

		if notify != nil {
			time.AfterFunc(delay, func() { notify(msg) })
		}
		return goja.Undefined()
	})
}

// joinArgs mirrors String(arg) joined by single spaces
func joinArgs(args []goja.Value) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		if arg == nil {
			parts[i] = "undefined"
			continue
		}
		parts[i] = arg.String()
	}
	return strings.Join(parts, " ")
}

// errorMessage extracts the JavaScript-visible message of a failure. It
// is never empty, so a run that threw always reports an error.
func errorMessage(err error) string {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return fmt.Sprint(interrupted.Value())
	}

	var overflow *goja.StackOverflowError
	if errors.As(err, &overflow) {
		return StackOverflowMessage
	}

	var exc *goja.Exception
	if errors.As(err, &exc) {
		v := exc.Value()
		if obj, ok := v.(*goja.Object); ok {
			for _, key := range []string{"message", "name"} {
				if m := obj.Get(key); m != nil && !goja.IsUndefined(m) && m.String() != "" {
					return m.String()
				}
			}
		}
		if v != nil && v.String() != "" {
			return v.String()
		}
		return thrownFallback
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return thrownFallback
}

// Reset replaces the VM so the next run sees fresh globals
func (r *Runtime) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vm = r.newVM()
}

// Close releases the VM
func (r *Runtime) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vm = nil
}
