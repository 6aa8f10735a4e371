package overtime

import (
	"errors"
	"net/http"

	"hrguard/internal/auth"
	"hrguard/internal/infra/queue"
	"hrguard/internal/metrics"
	"hrguard/internal/overtime"

	"github.com/gin-gonic/gin"
)

// Handler 加班记录 Handler
type Handler struct {
	service *overtime.Service
	queue   queue.Client
}

// NewHandler 创建 Handler
func NewHandler(service *overtime.Service, queueClient queue.Client) *Handler {
	return &Handler{service: service, queue: queueClient}
}

// Submit 写入工时记录并立即检测
// @Summary 写入某日加班/欠时记录
// @Tags Overtime
// @Accept json
// @Produce json
// @Param request body overtime.RecordInput true "工时记录"
// @Success 201 {object} map[string]any
// @Failure 400 {object} map[string]string
// @Router /api/overtime-records [post]
func (h *Handler) Submit(c *gin.Context) {
	userCtx, ok := auth.GetUserContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "não autenticado"})
		return
	}

	var req overtime.RecordInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.CompanyID = userCtx.CompanyID
	if req.UserID == "" {
		req.UserID = userCtx.UserID
	}

	result, err := h.service.SubmitAndCheck(c.Request.Context(), req)
	if err != nil {
		metrics.ScorerRunsTotal.WithLabelValues("overtime", "error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	metrics.ScorerRunsTotal.WithLabelValues("overtime", "ok").Inc()
	c.JSON(http.StatusCreated, gin.H{
		"success":       true,
		"record":        result.Record,
		"alert_created": result.AlertCreated,
	})
}

// Sweep 触发加班记录扫描任务
// @Summary 异步扫描所有未告警的加班记录
// @Tags Overtime
// @Produce json
// @Router /api/overtime-records/sweep [post]
func (h *Handler) Sweep(c *gin.Context) {
	userCtx, ok := auth.GetUserContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "não autenticado"})
		return
	}

	if err := h.queue.EnqueueOvertimeSweep(userCtx.CompanyID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"success": true, "message": "varredura agendada"})
}

// Get 获取工时记录详情
func (h *Handler) Get(c *gin.Context) {
	userCtx, ok := auth.GetUserContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "não autenticado"})
		return
	}

	record, err := h.service.Get(c.Request.Context(), userCtx.CompanyID, c.Param("id"))
	if err != nil {
		if errors.Is(err, overtime.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"record": record})
}
