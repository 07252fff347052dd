// Package http exposes the lesson catalog, the run pipeline and learner
// progress as a JSON API on gin.
//
// Errors are always {"error": "..."}: 400 for malformed requests, 404 for
// unknown lessons or learners, 413 for oversized sources and 500 for
// everything else.
package http
