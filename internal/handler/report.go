// Package handler exposes the report lifecycle over HTTP using Gin. Handlers
// translate between JSON and the lifecycle manager; all business rules live
// below this layer.
package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/firewatch-ph/firewatch/internal/lifecycle"
	"github.com/firewatch-ph/firewatch/internal/report"
	"github.com/firewatch-ph/firewatch/internal/routing"
	"github.com/firewatch-ph/firewatch/internal/session"
)

// operatorHeader carries the acting operator's identity. The deployment sits
// behind the barangay LGU's authenticating proxy, which injects it.
const operatorHeader = "X-Operator-ID"

// ReportHandler handles HTTP requests for report intake and lifecycle
// transitions.
type ReportHandler struct {
	mgr    *lifecycle.Manager
	logger *zap.Logger
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(mgr *lifecycle.Manager, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{mgr: mgr, logger: logger}
}

// Register mounts the report routes on the given router group.
func (h *ReportHandler) Register(rg *gin.RouterGroup) {
	reports := rg.Group("/reports")
	{
		reports.POST("", h.Submit)
		reports.GET("", h.List)
		reports.GET("/:id", h.Get)
		reports.POST("/:id/severity", h.OverrideSeverity)
		reports.POST("/:id/route", h.Route)
		reports.POST("/:id/request-info", h.RequestInfo)
		reports.POST("/:id/supplement", h.Supplement)
		reports.POST("/:id/resolve", h.Resolve)
		reports.POST("/:id/reject", h.Reject)
		reports.POST("/:id/location", h.AmendLocation)
	}
}

// Submit handles POST /reports — accepts a citizen report. Classification
// runs in the background; the response acknowledges intake immediately.
func (h *ReportHandler) Submit(c *gin.Context) {
	var req report.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "validation", "error": err.Error()})
		return
	}

	r, err := h.mgr.Submit(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	RecordSubmission(string(r.Kind))
	c.JSON(http.StatusCreated, r)
}

// Get handles GET /reports/:id.
func (h *ReportHandler) Get(c *gin.Context) {
	id, ok := h.reportID(c)
	if !ok {
		return
	}
	r, err := h.mgr.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// List handles GET /reports — stateless listing with optional query filters.
// Dashboard clients with an open session use the session listing instead.
func (h *ReportHandler) List(c *gin.Context) {
	all, err := h.mgr.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	crit, kind, err := criteriaFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "validation", "error": err.Error()})
		return
	}
	if kind != "" {
		all = session.Filter(all, kind, crit)
	} else {
		// No kind filter: apply criteria across both kinds.
		incidents := session.Filter(all, report.KindUrgentIncident, crit)
		hazards := session.Filter(all, report.KindHazardReport, crit)
		all = append(incidents, hazards...)
	}
	c.JSON(http.StatusOK, gin.H{"reports": all, "count": len(all)})
}

type severityRequest struct {
	Label  report.Severity `json:"label" binding:"required"`
	Reason string          `json:"reason"`
}

// OverrideSeverity handles POST /reports/:id/severity — manual severity
// assignment by an operator.
func (h *ReportHandler) OverrideSeverity(c *gin.Context) {
	id, ok := h.reportID(c)
	if !ok {
		return
	}
	op, ok := h.operator(c)
	if !ok {
		return
	}
	var req severityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "validation", "error": err.Error()})
		return
	}

	r, err := h.mgr.OverrideSeverity(c.Request.Context(), id, req.Label, op, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

type routeRequest struct {
	Target report.Target          `json:"target" binding:"required"`
	Reason routing.OverrideReason `json:"reason"`
}

// Route handles POST /reports/:id/route — dispatches the report to a
// responder class.
func (h *ReportHandler) Route(c *gin.Context) {
	id, ok := h.reportID(c)
	if !ok {
		return
	}
	op, ok := h.operator(c)
	if !ok {
		return
	}
	var req routeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "validation", "error": err.Error()})
		return
	}

	r, err := h.mgr.Route(c.Request.Context(), id, req.Target, op, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	RecordTransition("route")
	c.JSON(http.StatusOK, r)
}

// RequestInfo handles POST /reports/:id/request-info.
func (h *ReportHandler) RequestInfo(c *gin.Context) {
	id, ok := h.reportID(c)
	if !ok {
		return
	}
	op, ok := h.operator(c)
	if !ok {
		return
	}

	r, err := h.mgr.RequestMoreInfo(c.Request.Context(), id, op)
	if err != nil {
		writeError(c, err)
		return
	}
	RecordTransition("request_info")
	c.JSON(http.StatusOK, r)
}

type supplementRequest struct {
	Note string `json:"note" binding:"required"`
}

// Supplement handles POST /reports/:id/supplement — the reporter's answer to
// a request for more information.
func (h *ReportHandler) Supplement(c *gin.Context) {
	id, ok := h.reportID(c)
	if !ok {
		return
	}
	var req supplementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "validation", "error": err.Error()})
		return
	}

	r, err := h.mgr.SupplementInfo(c.Request.Context(), id, req.Note)
	if err != nil {
		writeError(c, err)
		return
	}
	RecordTransition("supplement")
	c.JSON(http.StatusOK, r)
}

// Resolve handles POST /reports/:id/resolve.
func (h *ReportHandler) Resolve(c *gin.Context) {
	id, ok := h.reportID(c)
	if !ok {
		return
	}
	op, ok := h.operator(c)
	if !ok {
		return
	}

	r, err := h.mgr.Resolve(c.Request.Context(), id, op)
	if err != nil {
		writeError(c, err)
		return
	}
	RecordTransition("resolve")
	c.JSON(http.StatusOK, r)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

// Reject handles POST /reports/:id/reject — closes the report as a false
// alarm.
func (h *ReportHandler) Reject(c *gin.Context) {
	id, ok := h.reportID(c)
	if !ok {
		return
	}
	op, ok := h.operator(c)
	if !ok {
		return
	}
	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"code": "validation", "error": err.Error()})
		return
	}

	r, err := h.mgr.Reject(c.Request.Context(), id, op, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	RecordTransition("reject")
	c.JSON(http.StatusOK, r)
}

// AmendLocation handles POST /reports/:id/location — location correction
// while the report is still pending.
func (h *ReportHandler) AmendLocation(c *gin.Context) {
	id, ok := h.reportID(c)
	if !ok {
		return
	}
	op, ok := h.operator(c)
	if !ok {
		return
	}
	var loc report.Location
	if err := c.ShouldBindJSON(&loc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "validation", "error": err.Error()})
		return
	}

	r, err := h.mgr.AmendLocation(c.Request.Context(), id, loc, op)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *ReportHandler) reportID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "validation", "error": "id must be a UUID"})
		return uuid.Nil, false
	}
	return id, true
}

func (h *ReportHandler) operator(c *gin.Context) (string, bool) {
	op := c.GetHeader(operatorHeader)
	if op == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": "validation", "error": operatorHeader + " header is required"})
		return "", false
	}
	return op, true
}

// criteriaFromQuery parses list filters from query parameters. An empty kind
// means both kinds.
func criteriaFromQuery(c *gin.Context) (session.Criteria, report.Kind, error) {
	var crit session.Criteria
	crit.Search = c.Query("search")

	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return crit, "", &report.ErrValidation{Msg: "from must be RFC 3339"}
		}
		crit.From = &t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return crit, "", &report.ErrValidation{Msg: "to must be RFC 3339"}
		}
		crit.To = &t
	}
	crit.Barangays = c.QueryArray("barangay")
	for _, s := range c.QueryArray("severity") {
		sev := report.Severity(s)
		if !sev.Valid() {
			return crit, "", &report.ErrValidation{Msg: "unknown severity " + s}
		}
		crit.Severities = append(crit.Severities, sev)
	}
	for _, s := range c.QueryArray("status") {
		st := report.Status(s)
		if !st.Valid() {
			return crit, "", &report.ErrValidation{Msg: "unknown status " + s}
		}
		crit.Statuses = append(crit.Statuses, st)
	}

	kind := report.Kind(c.Query("kind"))
	if kind != "" && !kind.Valid() {
		return crit, "", &report.ErrValidation{Msg: "unknown kind " + string(kind)}
	}
	return crit, kind, nil
}
