package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"clubsync/internal/alerts"
	"clubsync/internal/modal"
	"clubsync/internal/realtime"
	"clubsync/internal/store"
	"clubsync/internal/telemetry"
)

// AlertHandler exposes the aggregated alert stream, connection state, and
// modal arbitration to UI consumers.
type AlertHandler struct {
	aggregator *alerts.Aggregator
	arbiter    *modal.Arbiter
	manager    *realtime.Manager
	audit      *telemetry.AuditEmitter
	durable    store.KV
}

// NewAlertHandler builds an AlertHandler.
func NewAlertHandler(aggregator *alerts.Aggregator, arbiter *modal.Arbiter, manager *realtime.Manager, audit *telemetry.AuditEmitter, durable store.KV) *AlertHandler {
	return &AlertHandler{aggregator: aggregator, arbiter: arbiter, manager: manager, audit: audit, durable: durable}
}

// ListAlerts returns the ranked, filtered alert list.
func (h *AlertHandler) ListAlerts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"alerts": h.aggregator.Alerts()})
}

// RefreshAlerts re-queries the alert sources.
func (h *AlertHandler) RefreshAlerts(c *gin.Context) {
	if err := h.aggregator.Refresh(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "all alert sources failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": h.aggregator.Alerts()})
}

// DismissAlert records a dismissal for a visible alert.
func (h *AlertHandler) DismissAlert(c *gin.Context) {
	alertID := c.Param("alert_id")
	if err := h.aggregator.Dismiss(alertID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "alert not visible"})
		return
	}
	h.audit.Emit(c.Request.Context(), "INFO", "alert dismissed: "+alertID, "")
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetConnection reports the channel state for the passive indicator.
func (h *AlertHandler) GetConnection(c *gin.Context) {
	state, attempt := h.manager.State()
	c.JSON(http.StatusOK, gin.H{"state": state, "attempt": attempt})
}

// RequestModal asks the arbiter to open a prompt; a busy slot drops it.
func (h *AlertHandler) RequestModal(c *gin.Context) {
	var payload map[string]any
	_ = c.ShouldBindJSON(&payload)

	kind := c.Param("kind")
	if promptDeclined(h.durable, kind) {
		c.JSON(http.StatusConflict, gin.H{"error": "prompt previously declined"})
		return
	}
	if !h.arbiter.Request(kind, payload) {
		c.JSON(http.StatusConflict, gin.H{"error": "prompt already pending or open"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "pending"})
}

// CloseModal releases a prompt slot.
func (h *AlertHandler) CloseModal(c *gin.Context) {
	h.arbiter.Close(c.Param("kind"))
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ForceCloseModals releases every prompt slot.
func (h *AlertHandler) ForceCloseModals(c *gin.Context) {
	h.arbiter.ForceClose()
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
