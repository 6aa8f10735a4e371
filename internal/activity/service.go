package activity

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service 活动事件读取服务
// 事件由外部集成接入层写入，这里只提供核心引擎需要的计数查询
type Service struct {
	db *gorm.DB
}

// NewService 创建服务
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// CountFilter 事件计数过滤条件
type CountFilter struct {
	CompanyID    string
	UserID       string // 空则不按用户过滤
	DepartmentID string // 空则不按部门过滤
	ActivityType ActivityType
	From         time.Time
	To           time.Time
}

// Count 统计窗口内匹配的事件数
func (s *Service) Count(ctx context.Context, f CountFilter) (int64, error) {
	q := s.db.WithContext(ctx).Model(&ActivityEvent{}).
		Where("company_id = ? AND activity_type = ?", f.CompanyID, f.ActivityType).
		Where("timestamp BETWEEN ? AND ?", f.From, f.To)
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.DepartmentID != "" {
		q = q.Where("department_id = ?", f.DepartmentID)
	}

	var count int64
	err := q.Count(&count).Error
	return count, err
}

// CountCrossDepartmentAccess 统计用户在窗口内访问本部门之外内容的次数
// 用于综合员工风险中的越权访问信号
func (s *Service) CountCrossDepartmentAccess(ctx context.Context, companyID, userID, departmentID string, from, to time.Time) (int64, error) {
	q := s.db.WithContext(ctx).Model(&ActivityEvent{}).
		Where("company_id = ? AND user_id = ? AND activity_type = ?", companyID, userID, TypeSystemAccess).
		Where("timestamp BETWEEN ? AND ?", from, to).
		Where("department_id <> '' AND department_id IS NOT NULL")
	if departmentID != "" {
		q = q.Where("department_id <> ?", departmentID)
	}

	var count int64
	err := q.Count(&count).Error
	return count, err
}

// DistinctUsers 窗口内某部门出现过事件的去重用户列表
// 目标达成聚合以此作为部门成员集合
func (s *Service) DistinctUsers(ctx context.Context, companyID, departmentID string, from, to time.Time) ([]string, error) {
	var userIDs []string
	err := s.db.WithContext(ctx).Model(&ActivityEvent{}).
		Where("company_id = ? AND department_id = ?", companyID, departmentID).
		Where("timestamp BETWEEN ? AND ?", from, to).
		Distinct("user_id").
		Pluck("user_id", &userIDs).Error
	return userIDs, err
}

// Record 写入一条活动事件（供集成接入层与测试使用）
func (s *Service) Record(ctx context.Context, event *ActivityEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	return s.db.WithContext(ctx).Create(event).Error
}

// AutoMigrate 自动迁移表结构
func (s *Service) AutoMigrate() error {
	return s.db.AutoMigrate(&ActivityEvent{})
}
