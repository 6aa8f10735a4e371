package risk

import (
	"errors"
	"net/http"

	"hrguard/internal/alerts"
	"hrguard/internal/auth"
	"hrguard/internal/metrics"
	"hrguard/internal/risk"

	"github.com/gin-gonic/gin"
)

// Handler 综合风险 Handler
type Handler struct {
	service *risk.Service
	alerts  *alerts.Service
}

// NewHandler 创建 Handler
func NewHandler(service *risk.Service, alertSvc *alerts.Service) *Handler {
	return &Handler{service: service, alerts: alertSvc}
}

// scoreRequest 评分请求体
type scoreRequest struct {
	UserID       string `json:"userId" binding:"required"`
	CompanyID    string `json:"companyId"`
	AlertType    string `json:"alertType"`
	DepartmentID string `json:"departmentId"`
}

// Score 计算综合员工风险
// @Summary 计算综合员工风险分
// @Description 聚合出勤、打卡异常、病假、越权访问、敏感下载与未批加班信号；
// @Description 传入 alertType 时将结果写回该用户同类型激活告警的最新事件
// @Tags Risk
// @Accept json
// @Produce json
// @Param request body scoreRequest true "评分请求"
// @Success 200 {object} map[string]any
// @Failure 400 {object} map[string]string
// @Router /api/risk/score [post]
func (h *Handler) Score(c *gin.Context) {
	userCtx, ok := auth.GetUserContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "não autenticado"})
		return
	}

	var req scoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.service.ScoreEmployee(c.Request.Context(), risk.ScoreInput{
		CompanyID:    userCtx.CompanyID,
		UserID:       req.UserID,
		DepartmentID: req.DepartmentID,
	})
	if err != nil {
		metrics.ScorerRunsTotal.WithLabelValues("composite", "error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	response := gin.H{
		"success":     true,
		"riskScore":   result.Score,
		"riskLevel":   result.Level,
		"riskFactors": result.Factors,
	}

	// 指定告警类型时把分数/等级写回最新事件；无匹配告警属正常情况
	if req.AlertType != "" {
		event, err := h.alerts.AttachRiskToLatest(c.Request.Context(),
			userCtx.CompanyID, alerts.AlertType(req.AlertType), req.UserID, result.Score, result.Level)
		switch {
		case err == nil:
			response["alert_event"] = event
		case errors.Is(err, alerts.ErrAlertNotFound) || errors.Is(err, alerts.ErrEventNotFound):
			// 没有可写回的告警事件，评分结果照常返回
		default:
			metrics.ScorerRunsTotal.WithLabelValues("composite", "error").Inc()
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	metrics.ScorerRunsTotal.WithLabelValues("composite", "ok").Inc()
	c.JSON(http.StatusOK, response)
}
