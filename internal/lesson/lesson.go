// Package lesson holds the lesson catalog and the declarative validators
// that decide whether a submission completes a lesson.
package lesson

import (
	"fmt"
)

// Kind selects how a lesson's source is run
type Kind string

const (
	KindJavaScript Kind = "javascript"
	KindTypeScript Kind = "typescript"
	KindHTML       Kind = "html"
	KindCSS        Kind = "css"
	KindReact      Kind = "react"
)

// Valid reports whether k is a known kind
func (k Kind) Valid() bool {
	switch k {
	case KindJavaScript, KindTypeScript, KindHTML, KindCSS, KindReact:
		return true
	}
	return false
}

// IsScript reports whether the source is executed
func (k Kind) IsScript() bool {
	return k == KindJavaScript || k == KindTypeScript || k == KindReact
}

// IsMarkup reports whether the source is rendered
func (k Kind) IsMarkup() bool {
	return k == KindHTML || k == KindCSS
}

// Typed reports whether annotations are stripped before execution
func (k Kind) Typed() bool {
	return k == KindTypeScript || k == KindReact
}

// Lesson is one entry of the catalog
type Lesson struct {
	ID            int     `yaml:"id" json:"id"`
	Title         string  `yaml:"title" json:"title"`
	Icon          string  `yaml:"icon" json:"icon"`
	Color         string  `yaml:"color" json:"color"`
	Kind          Kind    `yaml:"kind" json:"kind"`
	Section       string  `yaml:"section" json:"section"`
	Description   string  `yaml:"description" json:"description"`
	Instruction   string  `yaml:"instruction" json:"instruction"`
	StarterSource string  `yaml:"starter_source" json:"starter_source"`
	StarterMarkup string  `yaml:"starter_markup,omitempty" json:"starter_markup,omitempty"`
	StarterStyle  string  `yaml:"starter_style,omitempty" json:"starter_style,omitempty"`
	Page          string  `yaml:"page,omitempty" json:"page,omitempty"`
	Message       string  `yaml:"message" json:"message"`
	Hint          string  `yaml:"hint,omitempty" json:"hint,omitempty"`
	Checks        []Check `yaml:"checks" json:"-"`
	Guard         *Guard  `yaml:"guard,omitempty" json:"-"`
}

// Outcome is the verdict of a validator
type Outcome struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// HasPage reports whether runs of this lesson get a document
func (l *Lesson) HasPage() bool {
	return l.Page != ""
}

// Validate evaluates every check against the captured run. It is pure,
// tolerates empty inputs and never panics.
func (l *Lesson) Validate(source string, logs []string, rendered string) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = Outcome{Message: l.Hint}
		}
	}()

	in := newInput(source, logs, rendered)
	for i := range l.Checks {
		if !l.Checks[i].eval(in) {
			return Outcome{Message: l.Hint}
		}
	}
	return Outcome{Success: true, Message: l.Message}
}

// Compile prepares patterns and verifies the lesson is well formed
func (l *Lesson) Compile() error {
	if l.ID <= 0 {
		return fmt.Errorf("lesson id %d must be positive", l.ID)
	}
	if !l.Kind.Valid() {
		return fmt.Errorf("lesson %d: unknown kind %q", l.ID, l.Kind)
	}
	if len(l.Checks) == 0 {
		return fmt.Errorf("lesson %d: no checks", l.ID)
	}
	for i := range l.Checks {
		if err := l.Checks[i].compile(); err != nil {
			return fmt.Errorf("lesson %d check %d: %w", l.ID, i+1, err)
		}
	}
	if l.Guard != nil && len(l.Guard.When) == 0 {
		return fmt.Errorf("lesson %d: guard without trigger", l.ID)
	}
	return nil
}

// Guard refuses to run a submission that is known to hang before it ever
// reaches the executor.
type Guard struct {
	When       []string `yaml:"when" json:"when"`
	RequireAny []string `yaml:"require_any" json:"require_any"`
	Message    string   `yaml:"message" json:"message"`
}

// Refuses reports whether source contains every trigger token but none of
// the required ones
func (g *Guard) Refuses(source string) bool {
	if g == nil || len(g.When) == 0 {
		return false
	}
	if !containsAll(source, g.When, false) {
		return false
	}
	return !containsAny(source, g.RequireAny, false)
}
