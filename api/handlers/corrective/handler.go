package corrective

import (
	"errors"
	"net/http"

	"hrguard/internal/alerts"
	"hrguard/internal/auth"
	"hrguard/internal/corrective"
	"hrguard/pkg/aiinterface"

	"github.com/gin-gonic/gin"
)

// Handler 整改文书 Handler
type Handler struct {
	service *corrective.Service
}

// NewHandler 创建 Handler
func NewHandler(service *corrective.Service) *Handler {
	return &Handler{service: service}
}

// Generate 生成整改文书
// @Summary 为告警事件生成整改文书
// @Description 同一事件重复调用幂等返回既有文书；风险等级不足门槛返回 success=false
// @Tags Corrective
// @Accept json
// @Produce json
// @Param request body corrective.GenerateInput true "生成请求"
// @Success 200 {object} map[string]any
// @Failure 400 {object} map[string]string
// @Failure 429 {object} map[string]string
// @Router /api/corrective-actions/generate [post]
func (h *Handler) Generate(c *gin.Context) {
	userCtx, ok := auth.GetUserContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "não autenticado"})
		return
	}

	var req corrective.GenerateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.CompanyID = userCtx.CompanyID

	outcome, err := h.service.Generate(c.Request.Context(), req)
	if err != nil {
		h.renderGenerateError(c, err)
		return
	}

	if !outcome.Triggered {
		c.JSON(http.StatusOK, gin.H{"success": false, "message": outcome.Message})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":            true,
		"documentContent":    outcome.Action.DocumentContent,
		"aiSuggestions":      outcome.Action.AISuggestions,
		"correctiveActionId": outcome.Action.ID,
	})
}

// renderGenerateError 上游生成模型的失败映射为区分的状态码
func (h *Handler) renderGenerateError(c *gin.Context, err error) {
	if errors.Is(err, alerts.ErrEventNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	switch aiinterface.TypeOf(err) {
	case aiinterface.ErrorTypeRateLimit:
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
	case aiinterface.ErrorTypePaymentRequired:
		c.JSON(http.StatusPaymentRequired, gin.H{"error": err.Error()})
	case aiinterface.ErrorTypeAuth, aiinterface.ErrorTypeServerError, aiinterface.ErrorTypeNetwork:
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// MarkDelivered 文书送达
func (h *Handler) MarkDelivered(c *gin.Context) {
	h.transition(c, func(companyID, id string) (*corrective.CorrectiveAction, error) {
		return h.service.MarkDelivered(c.Request.Context(), companyID, id)
	})
}

// MarkSigned 文书签收
func (h *Handler) MarkSigned(c *gin.Context) {
	h.transition(c, func(companyID, id string) (*corrective.CorrectiveAction, error) {
		return h.service.MarkSigned(c.Request.Context(), companyID, id)
	})
}

func (h *Handler) transition(c *gin.Context, fn func(companyID, id string) (*corrective.CorrectiveAction, error)) {
	userCtx, ok := auth.GetUserContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "não autenticado"})
		return
	}

	action, err := fn(userCtx.CompanyID, c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, corrective.ErrActionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, corrective.ErrInvalidTransition):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "action": action})
}

// Get 获取文书详情
func (h *Handler) Get(c *gin.Context) {
	userCtx, ok := auth.GetUserContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "não autenticado"})
		return
	}

	action, err := h.service.Get(c.Request.Context(), userCtx.CompanyID, c.Param("id"))
	if err != nil {
		if errors.Is(err, corrective.ErrActionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"action": action})
}
