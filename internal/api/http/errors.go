package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gorilincode/backend/internal/progress"
	"github.com/gorilincode/backend/internal/shared/utils"
	"github.com/gorilincode/backend/internal/tutor"
)

// statusOf maps domain errors to HTTP status codes
func statusOf(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, tutor.ErrLessonNotFound), errors.Is(err, progress.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, utils.ErrSourceTooLarge), errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, tutor.ErrInvalidSource), errors.Is(err, tutor.ErrInvalidLearner):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes {"error": ...}. Internal errors are logged and
// hidden from the client.
func (h *Handlers) respondError(c *gin.Context, err error) {
	status := statusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
		msg = "internal error"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// bindError reports a body that could not be decoded
func (h *Handlers) bindError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
		return
	}
	badRequest(c, err)
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
