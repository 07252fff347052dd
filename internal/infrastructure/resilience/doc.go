/*
Package resilience provides a small circuit breaker for remote backends.

The progress store uses it to stop hammering Redis, SQL or Firestore once
they start failing, serving the local fallback store instead until a probe
succeeds.

# Usage

	breaker := resilience.New("firestore", resilience.Settings{
		Failures: 3,
		Cooldown: 30 * time.Second,
	})

	rec, err := resilience.Do(breaker, func() (*progress.Record, error) {
		return remote.Load(ctx, learner)
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		// serve from the local store
	}

# States

	Closed --[Failures in a row]-> Open --[Cooldown]-> Half-Open --[Probes ok]-> Closed
	                                 ^                      |
	                                 +------[failure]-------+

IsFailure lets callers exclude expected errors such as a missing record
from the failure count.
*/
package resilience
