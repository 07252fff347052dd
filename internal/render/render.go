// Package render assembles the preview document for markup lessons.
package render

import (
	"fmt"
	"strings"
)

// Result is an assembled document or the reason it could not be built
type Result struct {
	HTML  string `json:"html"`
	Error string `json:"error,omitempty"`
}

// Empty reports whether there is nothing to preview
func (r Result) Empty() bool {
	return r.HTML == ""
}

const (
	head = `<!DOCTYPE html><html><head><meta charset="utf-8"><style>`
	mid  = `</style></head><body>`
	tail = `</body></html>`
)

// Render wraps markup and style in a complete document. Empty inputs fall
// back to the lesson starters. Content is inserted verbatim.
func Render(markup, style, fallbackMarkup, fallbackStyle string) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			result = Result{Error: fmt.Sprint(r)}
		}
	}()

	markup = pick(markup, fallbackMarkup)
	style = pick(style, fallbackStyle)

	var b strings.Builder
	b.Grow(len(head) + len(style) + len(mid) + len(markup) + len(tail))
	b.WriteString(head)
	b.WriteString(style)
	b.WriteString(mid)
	b.WriteString(markup)
	b.WriteString(tail)

	return Result{HTML: b.String()}
}

func pick(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}
