package download

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"hrguard/internal/alerts"
	"hrguard/internal/common"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Service 下载日志处理服务
type Service struct {
	db     *gorm.DB
	alerts *alerts.Service
}

// NewService 创建服务
func NewService(db *gorm.DB, alertSvc *alerts.Service) *Service {
	return &Service{db: db, alerts: alertSvc}
}

// ProcessInput 下载日志处理输入
type ProcessInput struct {
	CompanyID   string `json:"companyId"`
	UserID      string `json:"userId"`
	FileName    string `json:"fileName" binding:"required"`
	FileType    string `json:"fileType"`
	IsSensitive bool   `json:"isSensitive"`
	ContainsPII bool   `json:"containsPii"`
}

// ProcessResult 下载日志处理结果
type ProcessResult struct {
	Entry        *DownloadLogEntry
	Score        ScoreResult
	AlertCreated bool
}

// ProcessDownload 处理一次下载：评分、落库，alto/critico 时按下载ID去重创建告警
// 下载风险告警一经创建永不重复，不受激活状态影响
func (s *Service) ProcessDownload(ctx context.Context, in ProcessInput) (*ProcessResult, error) {
	score := Score(ScoreInput{
		FileName:    in.FileName,
		FileType:    in.FileType,
		IsSensitive: in.IsSensitive,
		ContainsPII: in.ContainsPII,
	})

	factors, err := json.Marshal(score.Factors)
	if err != nil {
		return nil, err
	}

	entry := &DownloadLogEntry{
		ID:                  uuid.New().String(),
		CompanyID:           in.CompanyID,
		UserID:              in.UserID,
		FileName:            in.FileName,
		FileType:            in.FileType,
		IsSensitive:         in.IsSensitive,
		ContainsPII:         in.ContainsPII,
		SecurityRiskScore:   score.SecurityScore,
		LGPDRiskScore:       score.LGPDScore,
		LitigationRiskScore: score.LitigationScore,
		OverallRiskLevel:    score.OverallLevel,
		RiskFactors:         datatypes.JSON(factors),
	}

	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, err
	}

	result := &ProcessResult{Entry: entry, Score: score}

	if score.OverallLevel == LevelAlto || score.OverallLevel == LevelCritico {
		priority := alerts.PriorityMedia
		if score.OverallLevel == LevelCritico {
			priority = alerts.PriorityAlta
		}

		overall := float64(max3(score.SecurityScore, score.LGPDScore, score.LitigationScore))
		ensured, err := s.alerts.EnsureAlert(ctx, alerts.EnsureInput{
			CompanyID:   in.CompanyID,
			Type:        alerts.TypeDownloadRisk,
			Title:       "Download de arquivo de risco",
			Description: fmt.Sprintf("Download de %q classificado como %s", in.FileName, score.OverallLevel),
			Priority:    priority,
			Key:         alerts.NaturalKey{ReferenceID: entry.ID},
			Conditions: map[string]any{
				"download_log_id": entry.ID,
				"user_id":         in.UserID,
				"file_name":       in.FileName,
			},
			TriggeredBy: map[string]any{
				"download_log_id":       entry.ID,
				"security_risk_score":   score.SecurityScore,
				"lgpd_risk_score":       score.LGPDScore,
				"litigation_risk_score": score.LitigationScore,
				"risk_factors":          score.Factors,
			},
			RiskScore: &overall,
			RiskLevel: string(score.OverallLevel),
		})
		if err != nil {
			return nil, err
		}
		result.AlertCreated = ensured.Created
	}

	return result, nil
}

// ListEntries 获取下载日志列表
func (s *Service) ListEntries(ctx context.Context, companyID, userID string, page common.PaginationRequest) ([]DownloadLogEntry, int64, error) {
	page.Normalize()

	var entries []DownloadLogEntry
	var total int64

	q := s.db.WithContext(ctx).Model(&DownloadLogEntry{}).Scopes(common.ByCompany(companyID))
	if userID != "" {
		q = q.Scopes(common.ByUser(userID))
	}

	q.Count(&total)
	err := q.Order("created_at DESC").Offset(page.GetOffset()).Limit(page.GetPageSize()).Find(&entries).Error
	return entries, total, err
}

// CountSensitive 统计窗口内敏感文件下载次数，供综合风险评分使用
func (s *Service) CountSensitive(ctx context.Context, companyID, userID string, from, to time.Time) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&DownloadLogEntry{}).
		Where("company_id = ? AND user_id = ?", companyID, userID).
		Where("is_sensitive = ?", true).
		Where("created_at BETWEEN ? AND ?", from, to).
		Count(&count).Error
	return int(count), err
}

// AutoMigrate 自动迁移表结构
func (s *Service) AutoMigrate() error {
	return s.db.AutoMigrate(&DownloadLogEntry{})
}
