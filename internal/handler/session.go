package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/firewatch-ph/firewatch/internal/session"
)

// SessionHandler exposes the dashboard filter session endpoints. All routes
// identify the operator through the X-Operator-ID header.
type SessionHandler struct {
	sessions *session.Manager
	logger   *zap.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessions *session.Manager, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, logger: logger}
}

// Register mounts the session routes on the given router group.
func (h *SessionHandler) Register(rg *gin.RouterGroup) {
	s := rg.Group("/session")
	{
		s.POST("", h.Open)
		s.GET("", h.Get)
		s.DELETE("", h.Close)
		s.PUT("/filters", h.ApplyFilter)
		s.DELETE("/filters", h.ClearFilters)
		s.PUT("/tab", h.SwitchTab)
		s.GET("/reports", h.ListReports)
	}
}

// Open handles POST /session — opens (or replaces) the operator's session.
func (h *SessionHandler) Open(c *gin.Context) {
	op, ok := h.operator(c)
	if !ok {
		return
	}
	c.JSON(http.StatusCreated, h.sessions.Open(op))
}

// Get handles GET /session.
func (h *SessionHandler) Get(c *gin.Context) {
	op, ok := h.operator(c)
	if !ok {
		return
	}
	s := h.sessions.Get(op)
	if s == nil {
		writeError(c, session.ErrNoSession)
		return
	}
	c.JSON(http.StatusOK, s)
}

// Close handles DELETE /session — logout.
func (h *SessionHandler) Close(c *gin.Context) {
	op, ok := h.operator(c)
	if !ok {
		return
	}
	h.sessions.Close(op)
	c.Status(http.StatusNoContent)
}

// ApplyFilter handles PUT /session/filters — merges the submitted criteria
// into the session. The active tab is untouched.
func (h *SessionHandler) ApplyFilter(c *gin.Context) {
	op, ok := h.operator(c)
	if !ok {
		return
	}
	var crit session.Criteria
	if err := c.ShouldBindJSON(&crit); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "validation", "error": err.Error()})
		return
	}

	s, err := h.sessions.ApplyFilter(op, crit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// ClearFilters handles DELETE /session/filters — resets criteria, keeps the
// active tab.
func (h *SessionHandler) ClearFilters(c *gin.Context) {
	op, ok := h.operator(c)
	if !ok {
		return
	}
	s, err := h.sessions.ClearFilters(op)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

type tabRequest struct {
	Tab session.Tab `json:"tab" binding:"required"`
}

// SwitchTab handles PUT /session/tab — switches between the incidents and
// hazards views. Filter criteria persist across the switch.
func (h *SessionHandler) SwitchTab(c *gin.Context) {
	op, ok := h.operator(c)
	if !ok {
		return
	}
	var req tabRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "validation", "error": err.Error()})
		return
	}

	s, err := h.sessions.SwitchTab(op, req.Tab)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// ListReports handles GET /session/reports — the reports matching the
// operator's active tab and filters.
func (h *SessionHandler) ListReports(c *gin.Context) {
	op, ok := h.operator(c)
	if !ok {
		return
	}
	reports, err := h.sessions.List(c.Request.Context(), op)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports, "count": len(reports)})
}

func (h *SessionHandler) operator(c *gin.Context) (string, bool) {
	op := c.GetHeader(operatorHeader)
	if op == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": "validation", "error": operatorHeader + " header is required"})
		return "", false
	}
	return op, true
}
