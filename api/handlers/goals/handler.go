package goals

import (
	"errors"
	"net/http"
	"time"

	"hrguard/internal/auth"
	"hrguard/internal/goals"
	"hrguard/internal/infra/queue"

	"github.com/gin-gonic/gin"
)

// Handler 目标 Handler
type Handler struct {
	service *goals.Service
	queue   queue.Client
}

// NewHandler 创建 Handler
func NewHandler(service *goals.Service, queueClient queue.Client) *Handler {
	return &Handler{service: service, queue: queueClient}
}

// createRequest 创建目标请求体
type createRequest struct {
	DepartmentID string  `json:"departmentId"`
	Title        string  `json:"title" binding:"required"`
	MetricType   string  `json:"metricType" binding:"required"`
	TargetValue  float64 `json:"targetValue" binding:"required"`
	Period       string  `json:"period" binding:"required"`
}

// Create 创建目标
// @Summary 创建业绩目标
// @Tags Goals
// @Accept json
// @Produce json
// @Success 201 {object} map[string]any
// @Failure 400 {object} map[string]string
// @Router /api/goals [post]
func (h *Handler) Create(c *gin.Context) {
	userCtx, ok := auth.GetUserContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "não autenticado"})
		return
	}

	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	goal := &goals.Goal{
		CompanyID:    userCtx.CompanyID,
		DepartmentID: req.DepartmentID,
		Title:        req.Title,
		MetricType:   goals.MetricType(req.MetricType),
		TargetValue:  req.TargetValue,
		Period:       req.Period,
	}
	if err := h.service.CreateGoal(c.Request.Context(), goal); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "goal": goal})
}

// Aggregate 同步聚合单个目标的当前周期
// @Summary 聚合某目标的当前周期达成情况
// @Tags Goals
// @Produce json
// @Param id path string true "目标ID"
// @Router /api/goals/{id}/aggregate [post]
func (h *Handler) Aggregate(c *gin.Context) {
	userCtx, ok := auth.GetUserContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "não autenticado"})
		return
	}

	goal, err := h.service.GetGoal(c.Request.Context(), userCtx.CompanyID, c.Param("id"))
	if err != nil {
		if errors.Is(err, goals.ErrGoalNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	rows, err := h.service.AggregateGoal(c.Request.Context(), goal, time.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"achievements": rows,
	})
}

// AggregateAll 触发全量聚合任务
func (h *Handler) AggregateAll(c *gin.Context) {
	h.enqueue(c, func(companyID string) error {
		return h.queue.EnqueueGoalAggregate(companyID)
	})
}

// UnderperformanceSweep 触发未达标扫描任务
func (h *Handler) UnderperformanceSweep(c *gin.Context) {
	h.enqueue(c, func(companyID string) error {
		return h.queue.EnqueueGoalUnderperformance(companyID)
	})
}

func (h *Handler) enqueue(c *gin.Context, fn func(companyID string) error) {
	userCtx, ok := auth.GetUserContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "não autenticado"})
		return
	}

	if err := fn(userCtx.CompanyID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"success": true, "message": "tarefa agendada"})
}

// ListAchievements 获取某目标的达成记录
func (h *Handler) ListAchievements(c *gin.Context) {
	userCtx, ok := auth.GetUserContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "não autenticado"})
		return
	}

	rows, err := h.service.ListAchievements(c.Request.Context(), userCtx.CompanyID, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"achievements": rows,
		"total":        len(rows),
	})
}
