package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/firewatch-ph/firewatch/internal/report"
	"github.com/firewatch-ph/firewatch/internal/session"
)

// writeError maps domain errors onto HTTP responses. Every error body carries
// a stable machine-readable code beside the human message.
func writeError(c *gin.Context, err error) {
	var valErr *report.ErrValidation
	switch {
	case errors.As(err, &valErr):
		c.JSON(http.StatusBadRequest, gin.H{"code": "validation", "error": valErr.Msg})
	case errors.Is(err, report.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"code": "not_found", "error": "report not found"})
	case errors.Is(err, report.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"code": "invalid_transition", "error": err.Error()})
	case errors.Is(err, report.ErrStaleVersion):
		// Another operator committed first; the client should re-read and retry.
		c.JSON(http.StatusConflict, gin.H{"code": "stale_transition", "error": "report was modified concurrently, re-read and retry"})
	case errors.Is(err, session.ErrNoSession):
		c.JSON(http.StatusNotFound, gin.H{"code": "no_session", "error": "no open filter session for operator"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"code": "internal", "error": "internal error"})
	}
}
