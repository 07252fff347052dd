package tutor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/gorilincode/backend/internal/infrastructure/logging"
	"github.com/gorilincode/backend/internal/infrastructure/monitoring"
	"github.com/gorilincode/backend/internal/infrastructure/tracing"
	"github.com/gorilincode/backend/internal/lesson"
	"github.com/gorilincode/backend/internal/progress"
	"github.com/gorilincode/backend/internal/render"
	"github.com/gorilincode/backend/internal/sandbox"
	"github.com/gorilincode/backend/internal/shared/id"
	"github.com/gorilincode/backend/internal/shared/utils"
	"github.com/gorilincode/backend/internal/transpile"
)

// Options wires a Service. Catalog and Runner are required.
type Options struct {
	Catalog        *lesson.Catalog
	Runner         sandbox.Runner
	Stripper       *transpile.Stripper
	Tracker        *progress.Tracker
	Workspaces     *Workspaces
	Metrics        *monitoring.Metrics
	Tracer         *tracing.Tracer
	Logger         *zap.Logger
	MaxSourceBytes int
}

// Service runs submissions through strip, execute or render, and validate
type Service struct {
	catalog    *lesson.Catalog
	runner     sandbox.Runner
	stripper   *transpile.Stripper
	tracker    *progress.Tracker
	workspaces *Workspaces
	metrics    *monitoring.Metrics
	tracer     *tracing.Tracer
	logger     *zap.Logger
	maxSource  int
}

// New creates a service
func New(opts Options) *Service {
	if opts.Stripper == nil {
		opts.Stripper = transpile.NewStripper(transpile.Options{}, opts.Logger)
	}
	if opts.Workspaces == nil {
		opts.Workspaces = NewWorkspaces(0)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.MaxSourceBytes <= 0 {
		opts.MaxSourceBytes = utils.DefaultSourceSize
	}
	return &Service{
		catalog:    opts.Catalog,
		runner:     opts.Runner,
		stripper:   opts.Stripper,
		tracker:    opts.Tracker,
		workspaces: opts.Workspaces,
		metrics:    opts.Metrics,
		tracer:     opts.Tracer,
		logger:     opts.Logger,
		maxSource:  opts.MaxSourceBytes,
	}
}

// Catalog returns the lesson catalog
func (s *Service) Catalog() *lesson.Catalog { return s.catalog }

// Tracker returns the progress tracker, nil when progress is disabled
func (s *Service) Tracker() *progress.Tracker { return s.tracker }

// Workspaces returns the DOM workspace store
func (s *Service) Workspaces() *Workspaces { return s.workspaces }

// Strip removes type annotations from source
func (s *Service) Strip(source string) string {
	return s.stripper.Strip(source)
}

// Lesson looks up a lesson, mapping unknown ids to ErrLessonNotFound
func (s *Service) Lesson(lessonID int) (*lesson.Lesson, error) {
	l, err := s.catalog.Get(lessonID)
	if errors.Is(err, lesson.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrLessonNotFound, lessonID)
	}
	return l, err
}

func (s *Service) checkSource(source string) error {
	if err := utils.ValidateSource(source, s.maxSource); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSource, err)
	}
	return nil
}

// Run executes or renders a submission and validates it against the
// lesson. Learner mistakes are reported in the outcome; the error is only
// set for bad requests or a failing progress store.
func (s *Service) Run(ctx context.Context, req RunRequest) (*RunOutcome, error) {
	l, err := s.Lesson(req.LessonID)
	if err != nil {
		return nil, err
	}
	if err := s.checkSource(req.Source); err != nil {
		return nil, err
	}
	if err := utils.ValidateID(req.LearnerID, "learner_id", false); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLearner, err)
	}

	span, ctx := s.tracer.StartSpan(ctx, "tutor.run")
	defer s.tracer.End(span)
	start := time.Now()

	out := &RunOutcome{
		RunID:    string(id.NewRunID()),
		LessonID: l.ID,
	}
	span.SetTag("run_id", out.RunID)
	span.SetTag("lesson_id", strconv.Itoa(l.ID))
	span.SetTag("kind", string(l.Kind))

	log := s.logger.With(logging.RunID(out.RunID), logging.LessonID(l.ID))

	switch {
	case l.Guard.Refuses(req.Source):
		out.Status = StatusGuarded
		out.Feedback = l.Guard.Message
	case l.Kind.IsMarkup():
		s.renderLesson(l, req, out)
	default:
		if err := s.executeLesson(ctx, l, req, out); err != nil {
			span.SetError(err)
			return nil, err
		}
	}

	switch {
	case out.Status == StatusGuarded:
		span.Log("guard refused", nil)
	case out.Execution != nil && out.Execution.HasError():
		span.Log("execution failed", map[string]interface{}{"error": out.Execution.ErrorMessage})
	case out.Render != nil && out.Render.Error != "":
		span.Log("render failed", map[string]interface{}{"error": out.Render.Error})
	}

	if out.Validation != nil && s.metrics != nil {
		s.metrics.RecordValidation(strconv.Itoa(l.ID), out.Validation.Success)
	}

	if out.Passed() {
		if next, ok := s.catalog.Next(l.ID); ok {
			out.NextLesson = next.ID
		}
		if req.LearnerID != "" && s.tracker != nil {
			up, err := s.tracker.MarkComplete(ctx, req.LearnerID, l.ID)
			if err != nil {
				log.Error("Failed to record progress", logging.LearnerID(req.LearnerID), zap.Error(err))
				span.SetError(err)
			} else {
				out.Progress = &up
			}
		}
	}

	elapsed := time.Since(start)
	span.SetTag("status", string(out.Status))
	if s.metrics != nil {
		s.metrics.RecordRun(string(l.Kind), string(out.Status), elapsed)
	}
	log.Debug("Run finished",
		zap.String("status", string(out.Status)),
		logging.Elapsed(elapsed))
	return out, nil
}

// executeLesson strips, runs and validates script lessons
func (s *Service) executeLesson(ctx context.Context, l *lesson.Lesson, req RunRequest, out *RunOutcome) error {
	code := req.Source
	if l.Kind.Typed() {
		code = s.stripper.Strip(code)
	}

	var doc *sandbox.Document
	if l.HasPage() {
		var err error
		doc, err = s.workspaces.Document(req.Workspace, l.ID, l.Page)
		if err != nil {
			return fmt.Errorf("lesson %d page: %w", l.ID, err)
		}
	}

	exec := s.runner.Execute(ctx, sandbox.Request{
		Source:   code,
		Document: doc,
		OnLog:    req.OnLog,
		OnAlert:  req.OnAlert,
	})
	out.Execution = &exec

	// React lessons only inspect source text and JSX never runs, so they
	// are validated even after an error.
	if exec.HasError() && l.Kind != lesson.KindReact {
		out.Status = StatusError
		out.Feedback = FeedbackScriptError
		return nil
	}

	rendered := ""
	if doc != nil {
		rendered = doc.HTML()
	}
	s.validate(l, req.Source, exec.Logs, rendered, out)
	if exec.HasError() && !out.Passed() {
		out.Feedback = FeedbackScriptError
	}
	return nil
}

// renderLesson renders html and css lessons and validates the document
func (s *Service) renderLesson(l *lesson.Lesson, req RunRequest, out *RunOutcome) {
	var res render.Result
	if l.Kind == lesson.KindCSS {
		res = render.Render("", req.Source, l.StarterMarkup, "")
	} else {
		res = render.Render(req.Source, "", "", l.StarterStyle)
	}
	out.Render = &res

	if res.Error != "" {
		out.Status = StatusError
		out.Feedback = FeedbackMarkupError
		return
	}
	s.validate(l, req.Source, nil, res.HTML, out)
}

func (s *Service) validate(l *lesson.Lesson, source string, logs []string, rendered string, out *RunOutcome) {
	v := l.Validate(source, logs, rendered)
	out.Validation = &v
	if v.Success {
		out.Status = StatusPassed
		out.Feedback = pick(v.Message, FeedbackPassed)
		return
	}
	out.Status = StatusFailed
	out.Feedback = pick(v.Message, FeedbackFailed)
}

// Playground runs code, or renders markup when no code is given, without
// any lesson attached.
func (s *Service) Playground(ctx context.Context, req PlaygroundRequest) (*PlaygroundOutcome, error) {
	for _, text := range []string{req.Source, req.Markup, req.Style} {
		if err := s.checkSource(text); err != nil {
			return nil, err
		}
	}

	span, ctx := s.tracer.StartSpan(ctx, "tutor.playground")
	defer s.tracer.End(span)
	start := time.Now()

	out := &PlaygroundOutcome{RunID: string(id.NewRunID())}
	kind := "playground"

	if req.Source == "" && (req.Markup != "" || req.Style != "") {
		kind = "playground_markup"
		res := render.Render(req.Markup, req.Style, "", "")
		out.Render = &res
	} else {
		code := req.Source
		if req.TypeScript {
			code = s.stripper.Strip(code)
			out.Source = code
		}

		var doc *sandbox.Document
		if req.Page != "" {
			var err error
			if doc, err = sandbox.NewDocument(req.Page); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidSource, err)
			}
		}
		exec := s.runner.Execute(ctx, sandbox.Request{
			Source:   code,
			Document: doc,
			OnLog:    req.OnLog,
			OnAlert:  req.OnAlert,
		})
		out.Execution = &exec
		if doc != nil {
			out.Document = doc.HTML()
		}
	}

	if s.metrics != nil {
		status := "ok"
		if (out.Execution != nil && out.Execution.HasError()) || (out.Render != nil && out.Render.Error != "") {
			status = "error"
		}
		s.metrics.RecordRun(kind, status, time.Since(start))
	}
	return out, nil
}

func pick(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}
