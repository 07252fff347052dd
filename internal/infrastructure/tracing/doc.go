/*
Package tracing provides lightweight request tracing.

# Overview

Every HTTP request and every run of the lesson pipeline opens a span. Spans
carry ULID identifiers, nest through the context and are written to the
structured log once finished.

# Usage

	tracer := tracing.New("gorilin", logger)
	defer tracer.Close()

	router.Use(tracing.HTTPMiddleware(tracer))

	span, ctx := tracer.StartSpan(ctx, "tutor.run")
	defer tracer.End(span)
	span.SetTag("lesson_id", "4")

# Trace Format

Traces propagate through the X-Trace-ID and X-Span-ID headers.
*/
package tracing
