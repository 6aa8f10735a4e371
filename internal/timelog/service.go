package timelog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"hrguard/internal/alerts"
	"hrguard/internal/common"
	"hrguard/internal/config"
	"hrguard/internal/geo"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 异常判定阈值
const (
	irregularLocationScore = 50 // 位置风险分达到该值视为异常
	irregularMinutes       = 15 // 时间偏差达到该分钟数视为异常
	recurrenceThreshold    = 2  // 回溯窗口内已有该数量的异常（即第3次起）触发累犯告警
	highRecurrenceCount    = 5  // 累计异常达到该次数时告警优先级提升
)

// LocationRiskScore 按偏离距离计算位置风险分（阶梯函数，非连续）
func LocationRiskScore(distanceMeters float64) int {
	switch {
	case distanceMeters <= 50:
		return 0
	case distanceMeters <= 100:
		return 10
	case distanceMeters <= 500:
		return 30
	case distanceMeters <= 1000:
		return 50
	case distanceMeters <= 5000:
		return 70
	default:
		return 100
	}
}

// Service 打卡处理服务
type Service struct {
	db     *gorm.DB
	alerts *alerts.Service
	risk   config.RiskConfig
}

// NewService 创建服务
func NewService(db *gorm.DB, alertSvc *alerts.Service, risk config.RiskConfig) *Service {
	risk.ApplyDefaults()
	return &Service{db: db, alerts: alertSvc, risk: risk}
}

// PunchInput 一次打卡的输入
type PunchInput struct {
	CompanyID    string    `json:"companyId"`
	UserID       string    `json:"userId"`
	LogType      string    `json:"logType" binding:"required"`
	ExpectedTime string    `json:"expectedTime" binding:"required"` // HH:MM
	ActualTime   string    `json:"actualTime" binding:"required"`   // HH:MM
	LogDate      time.Time `json:"logDate" binding:"required"`

	Latitude            *float64 `json:"latitude"`
	Longitude           *float64 `json:"longitude"`
	ExpectedLocationLat *float64 `json:"expectedLocationLat"`
	ExpectedLocationLng *float64 `json:"expectedLocationLng"`
}

// PunchResult 打卡处理结果
type PunchResult struct {
	Entry        *TimeLogEntry
	AlertCreated bool
	Alert        *alerts.Alert
}

// ProcessPunch 处理一次打卡：计算派生字段、落库、执行累犯检查
func (s *Service) ProcessPunch(ctx context.Context, in PunchInput) (*PunchResult, error) {
	minutes, err := geo.TimeDifferenceMinutes(in.ExpectedTime, in.ActualTime)
	if err != nil {
		return nil, err
	}

	entry := &TimeLogEntry{
		ID:                  uuid.New().String(),
		CompanyID:           in.CompanyID,
		UserID:              in.UserID,
		LogType:             in.LogType,
		ExpectedTime:        in.ExpectedTime,
		ActualTime:          in.ActualTime,
		LogDate:             in.LogDate,
		Latitude:            in.Latitude,
		Longitude:           in.Longitude,
		ExpectedLocationLat: in.ExpectedLocationLat,
		ExpectedLocationLng: in.ExpectedLocationLng,
		MinutesDifference:   minutes,
		IsLate:              minutes > 0,
	}

	if in.Latitude != nil && in.Longitude != nil && in.ExpectedLocationLat != nil && in.ExpectedLocationLng != nil {
		entry.DistanceFromExpectedMeters = geo.HaversineDistanceMeters(
			*in.Latitude, *in.Longitude, *in.ExpectedLocationLat, *in.ExpectedLocationLng)
		entry.LocationRiskScore = LocationRiskScore(entry.DistanceFromExpectedMeters)
	}

	entry.HasIrregularity, entry.IrregularityReason = classifyIrregularity(entry)

	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, err
	}

	result := &PunchResult{Entry: entry}

	if entry.HasIrregularity {
		created, alert, err := s.checkRecurrence(ctx, entry)
		if err != nil {
			return nil, err
		}
		result.AlertCreated = created
		result.Alert = alert
	}

	return result, nil
}

// classifyIrregularity 判定异常：位置风险分达标或时间偏差达标
func classifyIrregularity(entry *TimeLogEntry) (bool, string) {
	var reasons []string
	if entry.LocationRiskScore >= irregularLocationScore {
		reasons = append(reasons, fmt.Sprintf("local de registro a %.0fm do esperado", entry.DistanceFromExpectedMeters))
	}
	if abs(entry.MinutesDifference) >= irregularMinutes {
		reasons = append(reasons, fmt.Sprintf("diferenca de %d minutos do horario esperado", entry.MinutesDifference))
	}
	if len(reasons) == 0 {
		return false, ""
	}
	return true, strings.Join(reasons, "; ")
}

// checkRecurrence 累犯检查
// 统计该用户回溯窗口内（不含本条）的异常打卡；达到阈值且无激活的
// 累犯告警时创建告警，自然键仅为 user_id，后续异常都归入同一告警
func (s *Service) checkRecurrence(ctx context.Context, entry *TimeLogEntry) (bool, *alerts.Alert, error) {
	windowStart := entry.LogDate.AddDate(0, 0, -s.risk.TimeLogRecurrenceDays)

	var priorCount int64
	err := s.db.WithContext(ctx).Model(&TimeLogEntry{}).
		Where("company_id = ? AND user_id = ? AND has_irregularity = ?", entry.CompanyID, entry.UserID, true).
		Where("log_date >= ? AND log_date <= ?", windowStart, entry.LogDate).
		Where("id <> ?", entry.ID).
		Count(&priorCount).Error
	if err != nil {
		return false, nil, err
	}

	if priorCount < recurrenceThreshold {
		return false, nil, nil
	}

	totalOccurrences := priorCount + 1
	priority := alerts.PriorityMedia
	if totalOccurrences >= highRecurrenceCount {
		priority = alerts.PriorityAlta
	}

	result, err := s.alerts.EnsureAlert(ctx, alerts.EnsureInput{
		CompanyID:   entry.CompanyID,
		Type:        alerts.TypeTimeLogRecurrence,
		Title:       "Reincidência de irregularidades no ponto",
		Description: fmt.Sprintf("%d registros de ponto irregulares nos últimos %d dias", totalOccurrences, s.risk.TimeLogRecurrenceDays),
		Priority:    priority,
		Key:         alerts.NaturalKey{UserID: entry.UserID},
		Conditions: map[string]any{
			"user_id":          entry.UserID,
			"occurrence_count": totalOccurrences,
			"window_days":      s.risk.TimeLogRecurrenceDays,
		},
		TriggeredBy: map[string]any{
			"time_log_id":         entry.ID,
			"log_date":            entry.LogDate.Format("2006-01-02"),
			"minutes_difference":  entry.MinutesDifference,
			"location_risk_score": entry.LocationRiskScore,
			"irregularity_reason": entry.IrregularityReason,
		},
	})
	if err != nil {
		return false, nil, err
	}
	return result.Created, result.Alert, nil
}

// ListEntries 获取用户打卡记录
func (s *Service) ListEntries(ctx context.Context, companyID, userID string, from, to time.Time) ([]TimeLogEntry, error) {
	var entries []TimeLogEntry
	err := s.db.WithContext(ctx).
		Scopes(common.ByCompany(companyID), common.ByUser(userID), common.InDateRange("log_date", from, to)).
		Order("log_date DESC").
		Find(&entries).Error
	return entries, err
}

// WorkedDays 统计窗口内有打卡记录的去重日期数，供综合风险评分使用
func (s *Service) WorkedDays(ctx context.Context, companyID, userID string, from, to time.Time) (int, error) {
	var days int64
	err := s.db.WithContext(ctx).Model(&TimeLogEntry{}).
		Where("company_id = ? AND user_id = ?", companyID, userID).
		Where("log_date BETWEEN ? AND ?", from, to).
		Distinct("date(log_date)").
		Count(&days).Error
	return int(days), err
}

// CountIrregular 统计窗口内异常打卡次数，供综合风险评分使用
func (s *Service) CountIrregular(ctx context.Context, companyID, userID string, from, to time.Time) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&TimeLogEntry{}).
		Where("company_id = ? AND user_id = ?", companyID, userID).
		Where("has_irregularity = ?", true).
		Where("log_date BETWEEN ? AND ?", from, to).
		Count(&count).Error
	return int(count), err
}

// AutoMigrate 自动迁移表结构
func (s *Service) AutoMigrate() error {
	return s.db.AutoMigrate(&TimeLogEntry{})
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
