package goals

import "time"

// MetricType 目标度量类型
type MetricType string

const (
	MetricTicketsResolved  MetricType = "tickets_resolved"
	MetricCallsMade        MetricType = "calls_made"
	MetricEmailsSent       MetricType = "emails_sent"
	MetricMeetingsAttended MetricType = "meetings_attended"
	MetricTasksCompleted   MetricType = "tasks_completed"
)

// Goal 业绩目标
// department_id 为空时表示公司级目标
type Goal struct {
	ID           string     `json:"id" gorm:"primaryKey;type:uuid"`
	CompanyID    string     `json:"companyId" gorm:"type:uuid;not null;index"`
	DepartmentID string     `json:"departmentId,omitempty" gorm:"type:uuid;index"`
	Title        string     `json:"title" gorm:"size:255;not null"`
	MetricType   MetricType `json:"metricType" gorm:"size:30;not null"`
	TargetValue  float64    `json:"targetValue" gorm:"not null"`
	Period       string     `json:"period" gorm:"size:20;not null"` // daily, weekly, monthly, quarterly, yearly
	IsActive     bool       `json:"isActive" gorm:"default:true;index"`
	CreatedAt    time.Time  `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt    time.Time  `json:"updatedAt" gorm:"autoUpdateTime"`
}

func (Goal) TableName() string {
	return "goals"
}

// GoalAchievement 某目标在某周期内的达成情况
// user_id 为空表示部门或公司层级的汇总行；
// (goal_id, user_id, department_id, period_start) 唯一，重算只覆写不新增
type GoalAchievement struct {
	ID           string `json:"id" gorm:"primaryKey;type:uuid"`
	CompanyID    string `json:"companyId" gorm:"type:uuid;not null;index"`
	GoalID       string `json:"goalId" gorm:"type:uuid;not null;uniqueIndex:idx_goal_achievement"`
	UserID       string `json:"userId,omitempty" gorm:"type:uuid;default:'';uniqueIndex:idx_goal_achievement"`
	DepartmentID string `json:"departmentId,omitempty" gorm:"type:uuid;default:'';uniqueIndex:idx_goal_achievement"`

	PeriodStart time.Time `json:"periodStart" gorm:"not null;uniqueIndex:idx_goal_achievement"`
	PeriodEnd   time.Time `json:"periodEnd" gorm:"not null"`

	CurrentValue          float64 `json:"currentValue"`
	TargetValue           float64 `json:"targetValue"`
	AchievementPercentage float64 `json:"achievementPercentage" gorm:"index"`

	CalculatedAt time.Time `json:"calculatedAt" gorm:"not null"`
	CreatedAt    time.Time `json:"createdAt" gorm:"autoCreateTime"`
}

func (GoalAchievement) TableName() string {
	return "goal_achievements"
}
