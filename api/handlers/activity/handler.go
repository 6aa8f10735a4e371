package activity

import (
	"encoding/json"
	"net/http"
	"time"

	"hrguard/internal/activity"
	"hrguard/internal/auth"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
)

// Handler 活动事件 Handler，供集成接入层写入事件
type Handler struct {
	service *activity.Service
}

// NewHandler 创建 Handler
func NewHandler(service *activity.Service) *Handler {
	return &Handler{service: service}
}

// recordRequest 事件写入请求体
type recordRequest struct {
	UserID          string         `json:"userId"`
	DepartmentID    string         `json:"departmentId"`
	ActivityType    string         `json:"activityType" binding:"required"`
	ExternalSystem  string         `json:"externalSystem"`
	ExternalID      string         `json:"externalId"`
	Timestamp       time.Time      `json:"timestamp" binding:"required"`
	DurationSeconds *int           `json:"durationSeconds"`
	Metadata        map[string]any `json:"metadata"`
}

// Record 写入活动事件
// @Summary 写入一条活动事件
// @Tags Activity
// @Accept json
// @Produce json
// @Success 201 {object} map[string]any
// @Failure 400 {object} map[string]string
// @Router /api/activity-events [post]
func (h *Handler) Record(c *gin.Context) {
	userCtx, ok := auth.GetUserContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "não autenticado"})
		return
	}

	var req recordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := req.UserID
	if userID == "" {
		userID = userCtx.UserID
	}

	event := &activity.ActivityEvent{
		CompanyID:       userCtx.CompanyID,
		UserID:          userID,
		DepartmentID:    req.DepartmentID,
		ActivityType:    activity.ActivityType(req.ActivityType),
		ExternalSystem:  req.ExternalSystem,
		ExternalID:      req.ExternalID,
		Timestamp:       req.Timestamp,
		DurationSeconds: req.DurationSeconds,
	}
	if req.Metadata != nil {
		raw, err := marshalMetadata(req.Metadata)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		event.Metadata = raw
	}

	if err := h.service.Record(c.Request.Context(), event); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "event": event})
}

func marshalMetadata(metadata map[string]any) (datatypes.JSON, error) {
	raw, err := json.Marshal(metadata)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}
