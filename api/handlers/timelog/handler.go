package timelog

import (
	"net/http"
	"time"

	"hrguard/internal/auth"
	"hrguard/internal/metrics"
	"hrguard/internal/timelog"

	"github.com/gin-gonic/gin"
)

// Handler 打卡 Handler
type Handler struct {
	service *timelog.Service
}

// NewHandler 创建 Handler
func NewHandler(service *timelog.Service) *Handler {
	return &Handler{service: service}
}

// ProcessPunch 处理打卡
// @Summary 处理一次打卡
// @Description 计算时间偏差与位置距离，判定异常并执行累犯检查
// @Tags TimeLog
// @Accept json
// @Produce json
// @Param request body timelog.PunchInput true "打卡信息"
// @Success 200 {object} map[string]any
// @Failure 400 {object} map[string]string
// @Router /api/time-logs [post]
func (h *Handler) ProcessPunch(c *gin.Context) {
	userCtx, ok := auth.GetUserContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "não autenticado"})
		return
	}

	var req timelog.PunchInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.CompanyID = userCtx.CompanyID
	if req.UserID == "" {
		req.UserID = userCtx.UserID
	}

	result, err := h.service.ProcessPunch(c.Request.Context(), req)
	if err != nil {
		metrics.ScorerRunsTotal.WithLabelValues("time_log", "error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	metrics.ScorerRunsTotal.WithLabelValues("time_log", "ok").Inc()
	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"time_log":      result.Entry,
		"alert_created": result.AlertCreated,
	})
}

// List 获取打卡记录
// @Summary 获取用户打卡记录
// @Tags TimeLog
// @Produce json
// @Router /api/time-logs [get]
func (h *Handler) List(c *gin.Context) {
	userCtx, ok := auth.GetUserContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "não autenticado"})
		return
	}

	userID := c.Query("userId")
	if userID == "" {
		userID = userCtx.UserID
	}

	from, to := parseRange(c)
	entries, err := h.service.ListEntries(c.Request.Context(), userCtx.CompanyID, userID, from, to)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"time_logs": entries,
		"total":     len(entries),
	})
}

// parseRange 解析查询窗口，缺省为最近 30 天
func parseRange(c *gin.Context) (time.Time, time.Time) {
	to := time.Now()
	from := to.AddDate(0, 0, -30)
	if v := c.Query("from"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			from = t
		}
	}
	if v := c.Query("to"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			to = t
		}
	}
	return from, to
}
