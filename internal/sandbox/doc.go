/*
Package sandbox runs learner JavaScript inside an embedded goja runtime.

# Overview

Source text is compiled as the body of a function whose parameters are
named console and alert, so learner calls resolve to interception sinks:

  - console.log (and info, warn, error, debug) appends the space-joined
    String() of its arguments to the ordered log list
  - alert records the call, appends 🔔 ALERTA: "<message>" and notifies
    the host after a short delay without blocking capture

Compile errors, thrown values and interrupts never escape: they append a
final "❌ Error: <message>" line and set ExecutionResult.ErrorMessage.

# Limits

Each run has a deadline (execution timeout exceeded) and follows context
cancellation (context cancelled). Timers are accepted but never fire, and
require, process, module and exports are undefined. This is not a security
boundary.

# Documents

DOM lessons hand a Document to the run. It is exposed as document with a
small subset of the browser API backed by goquery. Mutations persist across
runs of the same Document.

# Usage Example

	exec := NewExecutor(DefaultConfig(), logger, nil)
	defer exec.Close()

	result := exec.Run(ctx, `console.log("hola", 1 + 1)`)
	// result.Logs == []string{"hola 2"}
*/
package sandbox
