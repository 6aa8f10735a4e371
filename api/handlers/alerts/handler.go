package alerts

import (
	"errors"
	"net/http"

	"hrguard/internal/alerts"
	"hrguard/internal/auth"
	"hrguard/internal/common"

	"github.com/gin-gonic/gin"
)

// Handler 告警 Handler
type Handler struct {
	service *alerts.Service
}

// NewHandler 创建 Handler
func NewHandler(service *alerts.Service) *Handler {
	return &Handler{service: service}
}

// List 获取告警列表
// @Summary 获取告警列表
// @Tags Alerts
// @Produce json
// @Param type query string false "告警类型过滤"
// @Param active query bool false "仅激活告警"
// @Success 200 {object} map[string]any
// @Router /api/alerts [get]
func (h *Handler) List(c *gin.Context) {
	userCtx, ok := auth.GetUserContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "não autenticado"})
		return
	}

	pagination := common.DefaultPagination()
	if err := c.ShouldBindQuery(&pagination); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	activeOnly := c.Query("active") == "true"

	items, total, err := h.service.ListAlerts(c.Request.Context(),
		userCtx.CompanyID, alerts.AlertType(c.Query("type")), activeOnly, pagination)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"alerts": items,
		"total":  total,
	})
}

// Get 获取告警详情
func (h *Handler) Get(c *gin.Context) {
	userCtx, ok := auth.GetUserContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "não autenticado"})
		return
	}

	alert, err := h.service.GetAlert(c.Request.Context(), userCtx.CompanyID, c.Param("id"))
	if err != nil {
		if errors.Is(err, alerts.ErrAlertNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"alert": alert})
}

// Deactivate 人工停用告警
// @Summary 停用告警
// @Description 停用后递归类告警可被再次触发重新创建
// @Tags Alerts
// @Produce json
// @Param id path string true "告警ID"
// @Success 200 {object} map[string]any
// @Failure 404 {object} map[string]string
// @Router /api/alerts/{id}/deactivate [post]
func (h *Handler) Deactivate(c *gin.Context) {
	userCtx, ok := auth.GetUserContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "não autenticado"})
		return
	}

	err := h.service.Deactivate(c.Request.Context(), userCtx.CompanyID, c.Param("id"), userCtx.UserID)
	if err != nil {
		switch {
		case errors.Is(err, alerts.ErrAlertNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, alerts.ErrAlreadyInactive):
			c.JSON(http.StatusOK, gin.H{"success": false, "message": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ListEvents 获取告警事件列表
func (h *Handler) ListEvents(c *gin.Context) {
	userCtx, ok := auth.GetUserContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "não autenticado"})
		return
	}

	events, err := h.service.ListEvents(c.Request.Context(), userCtx.CompanyID, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"events": events,
		"total":  len(events),
	})
}

// AcknowledgeEvent 确认告警事件
func (h *Handler) AcknowledgeEvent(c *gin.Context) {
	userCtx, ok := auth.GetUserContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "não autenticado"})
		return
	}

	err := h.service.AcknowledgeEvent(c.Request.Context(), userCtx.CompanyID, c.Param("id"))
	if err != nil {
		if errors.Is(err, alerts.ErrEventNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
