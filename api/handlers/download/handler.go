package download

import (
	"net/http"

	"hrguard/internal/auth"
	"hrguard/internal/common"
	"hrguard/internal/download"
	"hrguard/internal/metrics"

	"github.com/gin-gonic/gin"
)

// Handler 下载日志 Handler
type Handler struct {
	service *download.Service
}

// NewHandler 创建 Handler
func NewHandler(service *download.Service) *Handler {
	return &Handler{service: service}
}

// Process 处理下载日志
// @Summary 处理一次文件下载
// @Description 计算安全/LGPD/诉讼三项风险分，alto 及以上创建告警
// @Tags Download
// @Accept json
// @Produce json
// @Param request body download.ProcessInput true "下载信息"
// @Success 200 {object} map[string]any
// @Failure 400 {object} map[string]string
// @Router /api/download-logs [post]
func (h *Handler) Process(c *gin.Context) {
	userCtx, ok := auth.GetUserContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "não autenticado"})
		return
	}

	var req download.ProcessInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.CompanyID = userCtx.CompanyID
	if req.UserID == "" {
		req.UserID = userCtx.UserID
	}

	result, err := h.service.ProcessDownload(c.Request.Context(), req)
	if err != nil {
		metrics.ScorerRunsTotal.WithLabelValues("download", "error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	metrics.ScorerRunsTotal.WithLabelValues("download", "ok").Inc()
	c.JSON(http.StatusOK, gin.H{
		"success":               true,
		"download_log":          result.Entry,
		"security_risk_score":   result.Score.SecurityScore,
		"lgpd_risk_score":       result.Score.LGPDScore,
		"litigation_risk_score": result.Score.LitigationScore,
		"overall_risk_level":    result.Score.OverallLevel,
	})
}

// List 获取下载日志列表
// @Summary 获取下载日志列表
// @Tags Download
// @Produce json
// @Router /api/download-logs [get]
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

	entries, total, err := h.service.ListEntries(c.Request.Context(), userCtx.CompanyID, c.Query("userId"), pagination)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"download_logs": entries,
		"total":         total,
	})
}
