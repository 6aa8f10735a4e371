package goals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hrguard/internal/activity"
	"hrguard/internal/alerts"
	"hrguard/internal/calendar"
	"hrguard/internal/config"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrGoalNotFound = errors.New("meta não encontrada")

// 未达标告警门槛
const (
	underperformanceThreshold = 80 // 达成率低于该百分比即告警
	severeUnderperformance    = 50 // 低于该百分比优先级提升为 alta
)

// metricActivityMap 度量类型到活动类型的固定映射
var metricActivityMap = map[MetricType]activity.ActivityType{
	MetricTicketsResolved:  activity.TypeTicket,
	MetricCallsMade:        activity.TypeCall,
	MetricEmailsSent:       activity.TypeEmail,
	MetricMeetingsAttended: activity.TypeMeeting,
	MetricTasksCompleted:   activity.TypeTask,
}

// Service 目标达成聚合与未达标扫描服务
type Service struct {
	db       *gorm.DB
	activity *activity.Service
	alerts   *alerts.Service
	risk     config.RiskConfig
}

// NewService 创建服务
func NewService(db *gorm.DB, activitySvc *activity.Service, alertSvc *alerts.Service, risk config.RiskConfig) *Service {
	risk.ApplyDefaults()
	return &Service{db: db, activity: activitySvc, alerts: alertSvc, risk: risk}
}

// CreateGoal 创建目标
func (s *Service) CreateGoal(ctx context.Context, goal *Goal) error {
	if goal.ID == "" {
		goal.ID = uuid.New().String()
	}
	if _, ok := metricActivityMap[goal.MetricType]; !ok {
		return fmt.Errorf("tipo de métrica inválido: %s", goal.MetricType)
	}
	if _, err := calendar.PeriodBounds(calendar.PeriodType(goal.Period), time.Now()); err != nil {
		return err
	}
	goal.IsActive = true
	return s.db.WithContext(ctx).Create(goal).Error
}

// AggregateGoal 计算某目标当前周期的达成情况
// 部门目标：为窗口内该部门出现过事件的每个用户各写一行，再写一行部门汇总；
// 公司目标：只写一行公司汇总。重算同一周期只覆写 current_value/calculated_at
func (s *Service) AggregateGoal(ctx context.Context, goal *Goal, ref time.Time) ([]GoalAchievement, error) {
	bounds, err := calendar.PeriodBounds(calendar.PeriodType(goal.Period), ref)
	if err != nil {
		return nil, err
	}
	from, to := calendar.DayWindow(bounds.Start, bounds.End)

	activityType := metricActivityMap[goal.MetricType]
	var rows []GoalAchievement

	if goal.DepartmentID != "" {
		userIDs, err := s.activity.DistinctUsers(ctx, goal.CompanyID, goal.DepartmentID, from, to)
		if err != nil {
			return nil, err
		}

		for _, userID := range userIDs {
			count, err := s.activity.Count(ctx, activity.CountFilter{
				CompanyID:    goal.CompanyID,
				UserID:       userID,
				ActivityType: activityType,
				From:         from,
				To:           to,
			})
			if err != nil {
				return nil, err
			}
			row, err := s.upsertAchievement(ctx, goal, userID, goal.DepartmentID, bounds, float64(count))
			if err != nil {
				return nil, err
			}
			rows = append(rows, *row)
		}

		// 部门汇总行
		deptCount, err := s.activity.Count(ctx, activity.CountFilter{
			CompanyID:    goal.CompanyID,
			DepartmentID: goal.DepartmentID,
			ActivityType: activityType,
			From:         from,
			To:           to,
		})
		if err != nil {
			return nil, err
		}
		row, err := s.upsertAchievement(ctx, goal, "", goal.DepartmentID, bounds, float64(deptCount))
		if err != nil {
			return nil, err
		}
		rows = append(rows, *row)
		return rows, nil
	}

	// 公司级目标
	count, err := s.activity.Count(ctx, activity.CountFilter{
		CompanyID:    goal.CompanyID,
		ActivityType: activityType,
		From:         from,
		To:           to,
	})
	if err != nil {
		return nil, err
	}
	row, err := s.upsertAchievement(ctx, goal, "", "", bounds, float64(count))
	if err != nil {
		return nil, err
	}
	return append(rows, *row), nil
}

// upsertAchievement 按 (goal, user, department, period_start) 幂等落库
func (s *Service) upsertAchievement(ctx context.Context, goal *Goal, userID, departmentID string, bounds calendar.Bounds, current float64) (*GoalAchievement, error) {
	row := &GoalAchievement{
		ID:                    uuid.New().String(),
		CompanyID:             goal.CompanyID,
		GoalID:                goal.ID,
		UserID:                userID,
		DepartmentID:          departmentID,
		PeriodStart:           bounds.Start,
		PeriodEnd:             bounds.End,
		CurrentValue:          current,
		TargetValue:           goal.TargetValue,
		AchievementPercentage: achievementPercentage(current, goal.TargetValue),
		CalculatedAt:          time.Now(),
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "goal_id"}, {Name: "user_id"}, {Name: "department_id"}, {Name: "period_start"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"current_value", "target_value", "achievement_percentage", "calculated_at", "period_end",
		}),
	}).Create(row).Error
	if err != nil {
		return nil, err
	}

	// 冲突路径下回读落库行，保证返回的是最终状态
	var saved GoalAchievement
	err = s.db.WithContext(ctx).
		Where("goal_id = ? AND user_id = ? AND department_id = ? AND period_start = ?",
			goal.ID, userID, departmentID, bounds.Start).
		First(&saved).Error
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

// achievementPercentage 目标为 0 时达成率定义为 0
func achievementPercentage(current, target float64) float64 {
	if target == 0 {
		return 0
	}
	return current / target * 100
}

// AggregateAll 聚合公司内所有激活目标的当前周期
// companyID 为空时覆盖全部公司
func (s *Service) AggregateAll(ctx context.Context, companyID string, ref time.Time) (int, error) {
	q := s.db.WithContext(ctx).Where("is_active = ?", true)
	if companyID != "" {
		q = q.Where("company_id = ?", companyID)
	}

	var goalList []Goal
	if err := q.Find(&goalList).Error; err != nil {
		return 0, err
	}

	processed := 0
	for i := range goalList {
		if _, err := s.AggregateGoal(ctx, &goalList[i], ref); err != nil {
			return processed, err
		}
		processed++
	}
	return processed, nil
}

// UnderperformanceSweep 扫描最近窗口内计算出的达成率，低于 80% 的
// 按 (goal_id, period_start) 创建未达标告警；该类型一旦创建永不重复告警
// companyID 为空时覆盖全部公司
func (s *Service) UnderperformanceSweep(ctx context.Context, companyID string) (int, error) {
	since := time.Now().AddDate(0, 0, -s.risk.UnderperformanceSweepDays)

	q := s.db.WithContext(ctx).
		Where("achievement_percentage < ?", float64(underperformanceThreshold)).
		Where("calculated_at >= ?", since)
	if companyID != "" {
		q = q.Where("company_id = ?", companyID)
	}

	var rows []GoalAchievement
	if err := q.Find(&rows).Error; err != nil {
		return 0, err
	}

	created := 0
	for i := range rows {
		row := &rows[i]

		priority := alerts.PriorityMedia
		if row.AchievementPercentage < severeUnderperformance {
			priority = alerts.PriorityAlta
		}

		periodStart := row.PeriodStart
		ensured, err := s.alerts.EnsureAlert(ctx, alerts.EnsureInput{
			CompanyID:   row.CompanyID,
			Type:        alerts.TypeGoalUnderperformance,
			Title:       "Meta abaixo do esperado",
			Description: fmt.Sprintf("Atingimento de %.1f%% no período iniciado em %s", row.AchievementPercentage, periodStart.Format("02/01/2006")),
			Priority:    priority,
			Key:         alerts.NaturalKey{GoalID: row.GoalID, PeriodStart: &periodStart},
			Conditions: map[string]any{
				"goal_id":      row.GoalID,
				"period_start": periodStart.Format("2006-01-02"),
			},
			TriggeredBy: map[string]any{
				"achievement_id":         row.ID,
				"user_id":                row.UserID,
				"department_id":          row.DepartmentID,
				"current_value":          row.CurrentValue,
				"target_value":           row.TargetValue,
				"achievement_percentage": row.AchievementPercentage,
			},
		})
		if err != nil {
			return created, err
		}
		if ensured.Created {
			created++
		}
	}
	return created, nil
}

// GetGoal 获取目标
func (s *Service) GetGoal(ctx context.Context, companyID, goalID string) (*Goal, error) {
	var goal Goal
	err := s.db.WithContext(ctx).
		Where("id = ? AND company_id = ?", goalID, companyID).
		First(&goal).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGoalNotFound
		}
		return nil, err
	}
	return &goal, nil
}

// ListAchievements 获取某目标的达成记录
func (s *Service) ListAchievements(ctx context.Context, companyID, goalID string) ([]GoalAchievement, error) {
	var rows []GoalAchievement
	err := s.db.WithContext(ctx).
		Where("company_id = ? AND goal_id = ?", companyID, goalID).
		Order("period_start DESC, user_id").
		Find(&rows).Error
	return rows, err
}

// AutoMigrate 自动迁移表结构
func (s *Service) AutoMigrate() error {
	return s.db.AutoMigrate(&Goal{}, &GoalAchievement{})
}
