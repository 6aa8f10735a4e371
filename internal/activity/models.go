package activity

import (
	"time"

	"gorm.io/datatypes"
)

// ActivityType 活动类型
type ActivityType string

const (
	TypeCall         ActivityType = "call"
	TypeEmail        ActivityType = "email"
	TypeTicket       ActivityType = "ticket"
	TypeSystemAccess ActivityType = "system_access"
	TypeMeeting      ActivityType = "meeting"
	TypeTask         ActivityType = "task"
)

// ActivityEvent 用户的一次真实动作，由集成接入层写入
// 对核心引擎只读，写入后不可变
type ActivityEvent struct {
	ID           string       `json:"id" gorm:"primaryKey;type:uuid"`
	CompanyID    string       `json:"companyId" gorm:"type:uuid;not null;index"`
	UserID       string       `json:"userId" gorm:"type:uuid;not null;index"`
	DepartmentID string       `json:"departmentId,omitempty" gorm:"type:uuid;index"`
	ActivityType ActivityType `json:"activityType" gorm:"size:30;not null;index"`

	ExternalSystem string `json:"externalSystem,omitempty" gorm:"size:50"` // crm, erp, voip, bi
	ExternalID     string `json:"externalId,omitempty" gorm:"size:100"`

	Timestamp       time.Time      `json:"timestamp" gorm:"not null;index"`
	DurationSeconds *int           `json:"durationSeconds,omitempty"`
	Metadata        datatypes.JSON `json:"metadata" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"createdAt" gorm:"autoCreateTime"`
}

func (ActivityEvent) TableName() string {
	return "activity_events"
}
