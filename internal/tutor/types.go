package tutor

import (
	"errors"

	"github.com/gorilincode/backend/internal/lesson"
	"github.com/gorilincode/backend/internal/progress"
	"github.com/gorilincode/backend/internal/render"
	"github.com/gorilincode/backend/internal/sandbox"
)

var (
	ErrLessonNotFound = errors.New("lesson not found")
	ErrInvalidSource  = errors.New("invalid source")
	ErrInvalidLearner = errors.New("invalid learner id")
)

// Status is the verdict of a run
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusError   Status = "error"
	StatusGuarded Status = "guarded"
)

// Feedback shown when the lesson has no text of its own
const (
	FeedbackPassed      = "¡Bien hecho! 🎉"
	FeedbackFailed      = "Casi lo tienes... intenta de nuevo."
	FeedbackScriptError = "Algo salió mal... revisa la consola 🔴"
	FeedbackMarkupError = "Algo salió mal... revisa tu código 🔴"
)

// RunRequest is one submission for a lesson
type RunRequest struct {
	LearnerID string `json:"learner_id"`
	LessonID  int    `json:"lesson_id"`
	Source    string `json:"source"`
	// Workspace keeps the document of DOM lessons alive between runs.
	// Empty means a fresh page every run.
	Workspace string `json:"workspace"`

	OnLog   func(string)          `json:"-"`
	OnAlert sandbox.AlertNotifier `json:"-"`
}

// RunOutcome is everything the pipeline produced for one submission
type RunOutcome struct {
	RunID      string                   `json:"run_id"`
	LessonID   int                      `json:"lesson_id"`
	Status     Status                   `json:"status"`
	Execution  *sandbox.ExecutionResult `json:"execution,omitempty"`
	Render     *render.Result           `json:"render,omitempty"`
	Validation *lesson.Outcome          `json:"validation,omitempty"`
	Feedback   string                   `json:"feedback"`
	Progress   *progress.Update         `json:"progress,omitempty"`
	NextLesson int                      `json:"next_lesson,omitempty"`
}

// Passed reports whether the submission completed the lesson
func (o *RunOutcome) Passed() bool {
	return o != nil && o.Status == StatusPassed
}

// PlaygroundRequest runs code or renders markup outside any lesson
type PlaygroundRequest struct {
	Source     string `json:"source"`
	TypeScript bool   `json:"typescript"`
	Markup     string `json:"markup"`
	Style      string `json:"style"`
	// Page, when set, is exposed to the code as document
	Page string `json:"page"`

	OnLog   func(string)          `json:"-"`
	OnAlert sandbox.AlertNotifier `json:"-"`
}

// PlaygroundOutcome is the result of a playground request
type PlaygroundOutcome struct {
	RunID     string                   `json:"run_id"`
	Source    string                   `json:"source,omitempty"`
	Execution *sandbox.ExecutionResult `json:"execution,omitempty"`
	Render    *render.Result           `json:"render,omitempty"`
	Document  string                   `json:"document,omitempty"`
}
