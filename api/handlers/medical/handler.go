package medical

import (
	"errors"
	"net/http"

	"hrguard/internal/auth"
	"hrguard/internal/infra/queue"
	"hrguard/internal/medical"

	"github.com/gin-gonic/gin"
)

// Handler 病假 Handler
type Handler struct {
	service *medical.Service
	queue   queue.Client
}

// NewHandler 创建 Handler
func NewHandler(service *medical.Service, queueClient queue.Client) *Handler {
	return &Handler{service: service, queue: queueClient}
}

// RegisterCertificate 登记病假证明
// @Summary 登记病假证明
// @Tags Medical
// @Accept json
// @Produce json
// @Param request body medical.CertificateInput true "证明信息"
// @Success 201 {object} map[string]any
// @Failure 400 {object} map[string]string
// @Router /api/medical-certificates [post]
func (h *Handler) RegisterCertificate(c *gin.Context) {
	userCtx, ok := auth.GetUserContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "não autenticado"})
		return
	}

	var req medical.CertificateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.CompanyID = userCtx.CompanyID
	if req.UserID == "" {
		req.UserID = userCtx.UserID
	}

	cert, err := h.service.RegisterCertificate(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "certificate": cert})
}

// extensionRequest 延长申请请求体
type extensionRequest struct {
	ExtensionDays int `json:"extensionDays" binding:"required,gt=0"`
}

// RequestExtension 为证明发起延长申请
// @Summary 发起病假延长申请
// @Description 证明天数不足或已存在申请时返回 success=false 的正常结果
// @Tags Medical
// @Accept json
// @Produce json
// @Param id path string true "证明ID"
// @Success 200 {object} map[string]any
// @Failure 404 {object} map[string]string
// @Router /api/medical-certificates/{id}/extension [post]
func (h *Handler) RequestExtension(c *gin.Context) {
	userCtx, ok := auth.GetUserContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "não autenticado"})
		return
	}

	var req extensionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	outcome, err := h.service.RequestExtension(c.Request.Context(), userCtx.CompanyID, c.Param("id"), req.ExtensionDays)
	if err != nil {
		if errors.Is(err, medical.ErrCertificateNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if !outcome.Success {
		c.JSON(http.StatusOK, gin.H{"success": false, "message": outcome.Message})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "extension": outcome.Extension})
}

// ApproveExtension 批准延长申请
func (h *Handler) ApproveExtension(c *gin.Context) {
	userCtx, ok := auth.GetUserContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "não autenticado"})
		return
	}

	ext, err := h.service.ApproveExtension(c.Request.Context(), userCtx.CompanyID, c.Param("id"), userCtx.UserID)
	if err != nil {
		h.renderDecisionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "extension": ext})
}

// rejectionRequest 拒绝请求体
type rejectionRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// RejectExtension 拒绝延长申请
func (h *Handler) RejectExtension(c *gin.Context) {
	userCtx, ok := auth.GetUserContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "não autenticado"})
		return
	}

	var req rejectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ext, err := h.service.RejectExtension(c.Request.Context(), userCtx.CompanyID, c.Param("id"), req.Reason)
	if err != nil {
		h.renderDecisionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "extension": ext})
}

func (h *Handler) renderDecisionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, medical.ErrExtensionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, medical.ErrAlreadyDecided):
		c.JSON(http.StatusOK, gin.H{"success": false, "message": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// DetectPatterns 检测某用户的可疑病假模式
// @Summary 检测可疑病假模式
// @Tags Medical
// @Produce json
// @Param userId path string true "用户ID"
// @Success 200 {object} map[string]any
// @Router /api/medical-patterns/{userId} [get]
func (h *Handler) DetectPatterns(c *gin.Context) {
	userCtx, ok := auth.GetUserContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "não autenticado"})
		return
	}

	findings, err := h.service.DetectSuspiciousPatterns(c.Request.Context(), userCtx.CompanyID, c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"extension_count": findings.ExtensionCount,
		"patterns":        findings.Patterns,
		"suspicious":      findings.Suspicious(),
	})
}

// PatternScan 触发病假模式扫描任务
func (h *Handler) PatternScan(c *gin.Context) {
	userCtx, ok := auth.GetUserContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "não autenticado"})
		return
	}

	if err := h.queue.EnqueueMedicalPatternScan(userCtx.CompanyID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"success": true, "message": "varredura agendada"})
}
