package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gorilincode/backend/internal/infrastructure/monitoring"
	"github.com/gorilincode/backend/internal/lesson"
	"github.com/gorilincode/backend/internal/progress"
	"github.com/gorilincode/backend/internal/render"
	"github.com/gorilincode/backend/internal/sandbox"
	"github.com/gorilincode/backend/internal/shared/utils"
	"github.com/gorilincode/backend/internal/tutor"
)

const (
	serviceName    = "gorilin-code-lab"
	serviceVersion = "1.0.0"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	svc     *tutor.Service
	pool    func() sandbox.PoolStats
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

// NewHandlers creates a new handler set. pool and metrics may be nil.
func NewHandlers(svc *tutor.Service, pool func() sandbox.PoolStats, metrics *monitoring.Metrics, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{svc: svc, pool: pool, metrics: metrics, logger: logger}
}

// Register mounts every route on r
func (h *Handlers) Register(r gin.IRoutes) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)

	r.GET("/lessons", h.ListLessons)
	r.GET("/lessons/:id", h.GetLesson)
	r.POST("/lessons/:id/run", h.RunLesson)
	r.DELETE("/lessons/:id/workspace/:workspace", h.ResetWorkspace)

	r.POST("/run", h.Playground)
	r.POST("/render", h.Render)
	r.POST("/strip", h.Strip)

	r.POST("/learners", h.CreateLearner)
	r.GET("/progress/:learner", h.GetProgress)
	r.DELETE("/progress/:learner", h.ResetProgress)
}

// Root identifies the service
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": serviceName,
		"version": serviceVersion,
	})
}

// Health reports liveness with pool and request counters
func (h *Handlers) Health(c *gin.Context) {
	body := gin.H{
		"status":  "healthy",
		"lessons": h.svc.Catalog().Len(),
		"progress": gin.H{
			"enabled": h.svc.Tracker() != nil,
		},
	}
	if h.pool != nil {
		body["sandbox"] = h.pool()
	}
	if h.metrics != nil {
		body["metrics"] = h.metrics.GetSnapshot()
	}
	c.JSON(http.StatusOK, body)
}

// lessonSummary is the catalog listing entry
type lessonSummary struct {
	ID        int         `json:"id"`
	Title     string      `json:"title"`
	Icon      string      `json:"icon"`
	Color     string      `json:"color"`
	Kind      lesson.Kind `json:"kind"`
	Section   string      `json:"section"`
	Completed *bool       `json:"completed,omitempty"`
}

// ListLessons lists the catalog, optionally one section. With ?learner=
// each entry says whether it is completed.
func (h *Handlers) ListLessons(c *gin.Context) {
	catalog := h.svc.Catalog()
	lessons := catalog.All()
	if section := c.Query("section"); section != "" {
		lessons = catalog.BySection(section)
	}

	var rec *progress.Record
	if learner := c.Query("learner"); learner != "" {
		if err := utils.ValidateID(learner, "learner", true); err != nil {
			badRequest(c, err)
			return
		}
		if t := h.svc.Tracker(); t != nil {
			var err error
			if rec, err = t.Snapshot(c.Request.Context(), learner); err != nil {
				h.respondError(c, err)
				return
			}
		}
	}

	out := make([]lessonSummary, 0, len(lessons))
	for _, l := range lessons {
		s := lessonSummary{
			ID:      l.ID,
			Title:   l.Title,
			Icon:    l.Icon,
			Color:   l.Color,
			Kind:    l.Kind,
			Section: l.Section,
		}
		if rec != nil {
			done := rec.Has(l.ID)
			s.Completed = &done
		}
		out = append(out, s)
	}

	c.JSON(http.StatusOK, gin.H{
		"lessons":  out,
		"sections": catalog.Sections(),
		"total":    len(out),
	})
}

func lessonID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lesson id must be a positive integer"})
		return 0, false
	}
	return id, true
}

// GetLesson returns a full lesson with its rendered description
func (h *Handlers) GetLesson(c *gin.Context) {
	id, ok := lessonID(c)
	if !ok {
		return
	}
	l, err := h.svc.Lesson(id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	body := gin.H{
		"lesson":           l,
		"description_html": l.DescriptionHTML(),
		"instruction_html": l.InstructionHTML(),
	}
	if next, ok := h.svc.Catalog().Next(l.ID); ok {
		body["next"] = next.ID
	}
	c.JSON(http.StatusOK, body)
}

type runLessonRequest struct {
	LearnerID string `json:"learner_id"`
	Source    string `json:"source"`
	Workspace string `json:"workspace"`
}

// RunLesson runs a submission for a lesson
func (h *Handlers) RunLesson(c *gin.Context) {
	id, ok := lessonID(c)
	if !ok {
		return
	}
	var req runLessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}
	if err := utils.ValidateID(req.Workspace, "workspace", false); err != nil {
		badRequest(c, err)
		return
	}

	out, err := h.svc.Run(c.Request.Context(), tutor.RunRequest{
		LearnerID: req.LearnerID,
		LessonID:  id,
		Source:    req.Source,
		Workspace: req.Workspace,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// ResetWorkspace drops the DOM document of a workspace
func (h *Handlers) ResetWorkspace(c *gin.Context) {
	id, ok := lessonID(c)
	if !ok {
		return
	}
	workspace := c.Param("workspace")
	if err := utils.ValidateID(workspace, "workspace", true); err != nil {
		badRequest(c, err)
		return
	}
	h.svc.Workspaces().Reset(workspace, id)
	c.Status(http.StatusNoContent)
}

// Playground runs code or renders markup without a lesson
func (h *Handlers) Playground(c *gin.Context) {
	var req tutor.PlaygroundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}
	out, err := h.svc.Playground(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

type renderRequest struct {
	Markup         string `json:"markup"`
	Style          string `json:"style"`
	FallbackMarkup string `json:"fallback_markup"`
	FallbackStyle  string `json:"fallback_style"`
}

// Render assembles a preview document
func (h *Handlers) Render(c *gin.Context) {
	var req renderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}
	c.JSON(http.StatusOK, render.Render(req.Markup, req.Style, req.FallbackMarkup, req.FallbackStyle))
}

type stripRequest struct {
	Source string `json:"source"`
}

// Strip removes type annotations
func (h *Handlers) Strip(c *gin.Context) {
	var req stripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}
	if err := utils.ValidateSource(req.Source, utils.DefaultSourceSize); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"output": h.svc.Strip(req.Source)})
}

// progressView adds derived fields to a record
type progressView struct {
	*progress.Record
	HeartsToNext int `json:"hearts_to_next"`
}

func viewOf(rec *progress.Record) progressView {
	return progressView{Record: rec, HeartsToNext: rec.HeartsToNext()}
}

func (h *Handlers) tracker(c *gin.Context) (*progress.Tracker, bool) {
	t := h.svc.Tracker()
	if t == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "progress tracking disabled"})
		return nil, false
	}
	return t, true
}

func learnerParam(c *gin.Context) (string, bool) {
	learner := c.Param("learner")
	if err := utils.ValidateID(learner, "learner", true); err != nil {
		badRequest(c, err)
		return "", false
	}
	return learner, true
}

// CreateLearner hands out a new learner id with empty progress
func (h *Handlers) CreateLearner(c *gin.Context) {
	t, ok := h.tracker(c)
	if !ok {
		return
	}
	rec, err := t.Register(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, viewOf(rec))
}

// GetProgress returns a learner's progress
func (h *Handlers) GetProgress(c *gin.Context) {
	t, ok := h.tracker(c)
	if !ok {
		return
	}
	learner, ok := learnerParam(c)
	if !ok {
		return
	}
	rec, err := t.Snapshot(c.Request.Context(), learner)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewOf(rec))
}

// ResetProgress clears a learner's progress
func (h *Handlers) ResetProgress(c *gin.Context) {
	t, ok := h.tracker(c)
	if !ok {
		return
	}
	learner, ok := learnerParam(c)
	if !ok {
		return
	}
	rec, err := t.Reset(c.Request.Context(), learner)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewOf(rec))
}
