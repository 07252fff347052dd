// Package main is the entry point for the Gorilin tutorial backend.
//
// The server exposes the lesson catalog, runs learner code in the sandbox,
// renders HTML/CSS previews and tracks progress:
//
//	Browser → REST (/lessons, /run, /render, /progress) → tutor service
//	        → WebSocket (/stream) for live console and alert events
//
// Configuration:
//   - Defaults
//   - TOML file (-config or CONFIG_FILE)
//   - Environment variables
//   - CLI flags (override everything)
//
// Usage:
//
//	./server -port 8000 -config gorilin.toml
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
