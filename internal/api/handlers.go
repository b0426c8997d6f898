package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"expiry-alert-service/internal/alerts"
	"expiry-alert-service/internal/events"
	"expiry-alert-service/internal/logging"
	"expiry-alert-service/internal/models"
)

// actorHeader carries the acting user's id, set by the upstream identity
// layer.
const actorHeader = "X-User-ID"

type Handler struct {
	svc    *alerts.Service
	bus    *events.Bus
	logger *logging.Logger
}

func NewHandler(svc *alerts.Service, bus *events.Bus, logger *logging.Logger) *Handler {
	return &Handler{svc: svc, bus: bus, logger: logger}
}

func (h *Handler) GenerateAlerts(c *gin.Context) {
	result, err := h.svc.Generate(c.Request.Context())
	if err != nil {
		h.fail(c, err, "Generate failed")
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) ListAlerts(c *gin.Context) {
	filter, page, err := parseListQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	list, total, err := h.svc.List(c.Request.Context(), filter, page)
	if err != nil {
		h.fail(c, err, "List alerts failed")
		return
	}
	if list == nil {
		list = []models.ExpiryAlert{}
	}
	c.JSON(http.StatusOK, gin.H{"alerts": list, "total": total})
}

func (h *Handler) GetAlert(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid alert id"})
		return
	}
	alert, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "Get alert failed")
		return
	}
	c.JSON(http.StatusOK, alert)
}

func (h *Handler) MarkAlertRead(c *gin.Context) {
	id, actor, ok := h.idAndActor(c)
	if !ok {
		return
	}
	if err := h.svc.MarkAsRead(c.Request.Context(), id, actor); err != nil {
		h.fail(c, err, "Mark read failed")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) DismissAlert(c *gin.Context) {
	id, actor, ok := h.idAndActor(c)
	if !ok {
		return
	}

	var req struct {
		Reason      string `json:"reason"`
		ActionTaken string `json:"action_taken"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
	}

	if err := h.svc.Dismiss(c.Request.Context(), id, actor, req.Reason, req.ActionTaken); err != nil {
		h.fail(c, err, "Dismiss failed")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) CleanupAlerts(c *gin.Context) {
	var req struct {
		RetentionDays int `json:"retention_days" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	deleted, err := h.svc.Cleanup(c.Request.Context(), req.RetentionDays)
	if err != nil {
		h.fail(c, err, "Cleanup failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted_count": deleted})
}

func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.svc.Stats(c.Request.Context())
	if err != nil {
		h.fail(c, err, "Stats failed")
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) GetConfiguration(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user_id"})
		return
	}
	cfg, err := h.svc.GetConfiguration(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err, "Get configuration failed")
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (h *Handler) UpdateConfiguration(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user_id"})
		return
	}

	var patch models.ConfigurationPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	cfg, err := h.svc.UpdateConfiguration(c.Request.Context(), userID, patch)
	if err != nil {
		h.fail(c, err, "Update configuration failed")
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (h *Handler) idAndActor(c *gin.Context) (uuid.UUID, int64, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid alert id"})
		return uuid.Nil, 0, false
	}
	actor, err := strconv.ParseInt(c.GetHeader(actorHeader), 10, 64)
	if err != nil || actor <= 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid " + actorHeader + " header"})
		return uuid.Nil, 0, false
	}
	return id, actor, true
}

// fail maps domain errors onto HTTP responses.
func (h *Handler) fail(c *gin.Context, err error, logMsg string) {
	var vErr *models.ValidationError
	var tErr *models.TransientError
	switch {
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, models.ErrNotRecipient):
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the alert recipient may do this"})
	case errors.As(err, &vErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Validation failed", "fields": vErr.Fields})
	case errors.As(err, &tErr):
		h.logger.Errorf("%s: %v", logMsg, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Store temporarily unavailable, retry"})
	default:
		h.logger.Errorf("%s: %v", logMsg, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}

func parseListQuery(c *gin.Context) (models.AlertFilter, models.Page, error) {
	var f models.AlertFilter
	var page models.Page

	for _, s := range splitCSV(c.Query("status")) {
		f.Statuses = append(f.Statuses, models.AlertStatus(s))
	}
	for _, p := range splitCSV(c.Query("priority")) {
		f.Priorities = append(f.Priorities, models.Priority(p))
	}
	if v := c.Query("expiry_from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return f, page, errors.New("expiry_from must be YYYY-MM-DD")
		}
		f.ExpiryFrom = &t
	}
	if v := c.Query("expiry_to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return f, page, errors.New("expiry_to must be YYYY-MM-DD")
		}
		f.ExpiryTo = &t
	}
	f.Location = c.Query("location")
	if v := c.Query("recipient"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return f, page, errors.New("recipient must be an integer user id")
		}
		f.Recipient = id
	}

	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return f, page, errors.New("limit must be an integer")
		}
		page.Limit = n
	}
	if v := c.Query("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return f, page, errors.New("offset must be an integer")
		}
		page.Offset = n
	}
	return f, page.Clamp(), nil
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
