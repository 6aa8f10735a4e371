package overtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hrguard/internal/alerts"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("registro de horas não encontrado")

// 告警门槛
const (
	unapprovedOvertimeHours = 2 // 未经批准的加班超过该小时数
	undertimeHoursLimit     = 1 // 工时不足超过该小时数
	excessiveOvertimeHours  = 4 // 无论是否批准，加班超过该小时数
)

// Service 加班异常检测服务
type Service struct {
	db     *gorm.DB
	alerts *alerts.Service
}

// NewService 创建服务
func NewService(db *gorm.DB, alertSvc *alerts.Service) *Service {
	return &Service{db: db, alerts: alertSvc}
}

// RecordInput 某日工时记录输入
type RecordInput struct {
	CompanyID           string    `json:"companyId"`
	UserID              string    `json:"userId"`
	RecordDate          time.Time `json:"recordDate" binding:"required"`
	OvertimeHours       float64   `json:"overtimeHours"`
	UndertimeHours      float64   `json:"undertimeHours"`
	HasOvertimeApproval bool      `json:"hasOvertimeApproval"`
}

// CheckResult 检测结果
type CheckResult struct {
	Record       *OvertimeRecord
	AlertCreated bool
}

// SubmitAndCheck 写入某日工时记录并立即执行告警检测
func (s *Service) SubmitAndCheck(ctx context.Context, in RecordInput) (*CheckResult, error) {
	record := &OvertimeRecord{
		ID:                  uuid.New().String(),
		CompanyID:           in.CompanyID,
		UserID:              in.UserID,
		RecordDate:          in.RecordDate,
		OvertimeHours:       in.OvertimeHours,
		UndertimeHours:      in.UndertimeHours,
		HasOvertimeApproval: in.HasOvertimeApproval,
	}
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, err
	}
	return s.Check(ctx, record)
}

// NeedsAlert 纯告警条件
func NeedsAlert(r *OvertimeRecord) bool {
	return (r.OvertimeHours > unapprovedOvertimeHours && !r.HasOvertimeApproval) ||
		r.UndertimeHours > undertimeHoursLimit ||
		r.OvertimeHours > excessiveOvertimeHours
}

// Check 对单条记录执行告警检测
// has_alert 已置位的记录直接跳过；创建告警后置位该标记，告警自身
// 的自然键去重同样兜底，两层保护都保证一条记录至多一个告警
func (s *Service) Check(ctx context.Context, record *OvertimeRecord) (*CheckResult, error) {
	result := &CheckResult{Record: record}

	if record.HasAlert || !NeedsAlert(record) {
		return result, nil
	}

	priority := alerts.PriorityMedia
	if record.OvertimeHours > excessiveOvertimeHours {
		priority = alerts.PriorityAlta
	}

	ensured, err := s.alerts.EnsureAlert(ctx, alerts.EnsureInput{
		CompanyID:   record.CompanyID,
		Type:        alerts.TypeOvertime,
		Title:       "Horas extras fora da política",
		Description: describeRecord(record),
		Priority:    priority,
		Key:         alerts.NaturalKey{ReferenceID: record.ID},
		Conditions: map[string]any{
			"overtime_record_id": record.ID,
			"user_id":            record.UserID,
			"record_date":        record.RecordDate.Format("2006-01-02"),
		},
		TriggeredBy: map[string]any{
			"overtime_record_id":    record.ID,
			"overtime_hours":        record.OvertimeHours,
			"undertime_hours":       record.UndertimeHours,
			"has_overtime_approval": record.HasOvertimeApproval,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := s.markAlerted(ctx, record.ID); err != nil {
		return nil, err
	}
	record.HasAlert = true
	result.AlertCreated = ensured.Created

	return result, nil
}

func describeRecord(r *OvertimeRecord) string {
	switch {
	case r.OvertimeHours > excessiveOvertimeHours:
		return fmt.Sprintf("%.1f horas extras em %s", r.OvertimeHours, r.RecordDate.Format("02/01/2006"))
	case r.UndertimeHours > undertimeHoursLimit:
		return fmt.Sprintf("%.1f horas de jornada não cumpridas em %s", r.UndertimeHours, r.RecordDate.Format("02/01/2006"))
	default:
		return fmt.Sprintf("%.1f horas extras sem aprovação em %s", r.OvertimeHours, r.RecordDate.Format("02/01/2006"))
	}
}

// markAlerted 置位一次性告警标记
func (s *Service) markAlerted(ctx context.Context, recordID string) error {
	return s.db.WithContext(ctx).Model(&OvertimeRecord{}).
		Where("id = ?", recordID).
		Update("has_alert", true).Error
}

// Sweep 周期性扫描：检查所有尚未告警的记录
// 返回本次新建的告警数
func (s *Service) Sweep(ctx context.Context, companyID string) (int, error) {
	q := s.db.WithContext(ctx).Where("has_alert = ?", false)
	if companyID != "" {
		q = q.Where("company_id = ?", companyID)
	}

	var records []OvertimeRecord
	if err := q.Find(&records).Error; err != nil {
		return 0, err
	}

	created := 0
	for i := range records {
		result, err := s.Check(ctx, &records[i])
		if err != nil {
			return created, err
		}
		if result.AlertCreated {
			created++
		}
	}
	return created, nil
}

// CountUnapprovedMonths 统计窗口内出现未批准加班的去重月份数
// 供综合员工风险评分使用
func (s *Service) CountUnapprovedMonths(ctx context.Context, companyID, userID string, from, to time.Time) (int, error) {
	var records []OvertimeRecord
	err := s.db.WithContext(ctx).
		Where("company_id = ? AND user_id = ?", companyID, userID).
		Where("overtime_hours > 0 AND has_overtime_approval = ?", false).
		Where("record_date BETWEEN ? AND ?", from, to).
		Find(&records).Error
	if err != nil {
		return 0, err
	}

	months := make(map[string]bool)
	for _, r := range records {
		months[r.RecordDate.Format("2006-01")] = true
	}
	return len(months), nil
}

// Get 获取单条记录
func (s *Service) Get(ctx context.Context, companyID, recordID string) (*OvertimeRecord, error) {
	var record OvertimeRecord
	err := s.db.WithContext(ctx).
		Where("id = ? AND company_id = ?", recordID, companyID).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

// AutoMigrate 自动迁移表结构
func (s *Service) AutoMigrate() error {
	return s.db.AutoMigrate(&OvertimeRecord{})
}
