package reimbursement

import (
	"errors"
	"net/http"

	"hrguard/internal/auth"
	"hrguard/internal/metrics"
	"hrguard/internal/reimbursement"

	"github.com/gin-gonic/gin"
)

// Handler 报销 Handler
type Handler struct {
	service *reimbursement.Service
}

// NewHandler 创建 Handler
func NewHandler(service *reimbursement.Service) *Handler {
	return &Handler{service: service}
}

// Submit 提交报销并执行欺诈评分
// @Summary 提交报销
// @Tags Reimbursement
// @Accept json
// @Produce json
// @Param request body reimbursement.SubmitInput true "报销信息"
// @Success 201 {object} map[string]any
// @Failure 400 {object} map[string]string
// @Router /api/reimbursements [post]
func (h *Handler) Submit(c *gin.Context) {
	userCtx, ok := auth.GetUserContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "não autenticado"})
		return
	}

	var req reimbursement.SubmitInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.CompanyID = userCtx.CompanyID
	if req.UserID == "" {
		req.UserID = userCtx.UserID
	}

	result, err := h.service.Submit(c.Request.Context(), req)
	if err != nil {
		metrics.ScorerRunsTotal.WithLabelValues("reimbursement", "error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	metrics.ScorerRunsTotal.WithLabelValues("reimbursement", "ok").Inc()
	c.JSON(http.StatusCreated, gin.H{
		"success":          true,
		"reimbursement":    result.Reimbursement,
		"fraud_risk_score": result.Outcome.Score,
		"fraud_risk_level": result.Outcome.Level,
		"fraud_indicators": result.Outcome.Indicators,
	})
}

// Score 重新执行欺诈评分
// @Summary 对既有报销单重新评分
// @Tags Reimbursement
// @Produce json
// @Param id path string true "报销ID"
// @Router /api/reimbursements/{id}/score [post]
func (h *Handler) Score(c *gin.Context) {
	userCtx, ok := auth.GetUserContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "não autenticado"})
		return
	}

	result, err := h.service.Score(c.Request.Context(), userCtx.CompanyID, c.Param("id"))
	if err != nil {
		if errors.Is(err, reimbursement.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		metrics.ScorerRunsTotal.WithLabelValues("reimbursement", "error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	metrics.ScorerRunsTotal.WithLabelValues("reimbursement", "ok").Inc()
	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"reimbursement":    result.Reimbursement,
		"fraud_risk_score": result.Outcome.Score,
		"fraud_risk_level": result.Outcome.Level,
		"fraud_indicators": result.Outcome.Indicators,
		"alert_created":    result.AlertCreated,
	})
}

// Approve 批准报销
func (h *Handler) Approve(c *gin.Context) {
	h.decide(c, func(companyID, id, reviewerID string) error {
		return h.service.Approve(c.Request.Context(), companyID, id, reviewerID)
	})
}

// rejectRequest 拒绝报销请求体
type rejectRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// Reject 拒绝报销
func (h *Handler) Reject(c *gin.Context) {
	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.decide(c, func(companyID, id, reviewerID string) error {
		return h.service.Reject(c.Request.Context(), companyID, id, reviewerID, req.Reason)
	})
}

func (h *Handler) decide(c *gin.Context, fn func(companyID, id, reviewerID string) error) {
	userCtx, ok := auth.GetUserContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "não autenticado"})
		return
	}

	err := fn(userCtx.CompanyID, c.Param("id"), userCtx.UserID)
	if err != nil {
		switch {
		case errors.Is(err, reimbursement.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, reimbursement.ErrAlreadyDecided):
			// 幂等场景按正常结果返回
			c.JSON(http.StatusOK, gin.H{"success": false, "message": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Get 获取报销详情
func (h *Handler) Get(c *gin.Context) {
	userCtx, ok := auth.GetUserContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "não autenticado"})
		return
	}

	r, err := h.service.Get(c.Request.Context(), userCtx.CompanyID, c.Param("id"))
	if err != nil {
		if errors.Is(err, reimbursement.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"reimbursement": r})
}
