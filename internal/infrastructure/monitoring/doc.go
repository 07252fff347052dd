/*
Package monitoring provides Prometheus metrics for the service.

# Overview

Collectors are registered on an injected registry so that tests and
multiple servers in one process never collide on the default registerer.

# Features

- HTTP request metrics labelled by route template
- Run metrics by lesson kind and outcome status
- Validation verdicts per lesson and first-time completions
- Progress store call latency, errors and fallbacks
- WebSocket connection metrics

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", monitoring.Handler(metrics))

	timer := monitoring.NewTimer(metrics, "redis", "load")
	rec, err := store.Load(ctx, learner)
	timer.Stop(err)
*/
package monitoring
