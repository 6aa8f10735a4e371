package corrective

import "time"

// ActionStatus 整改文书生命周期状态，只允许单向推进
type ActionStatus string

const (
	StatusPendente ActionStatus = "pendente"
	StatusEntregue ActionStatus = "entregue"
	StatusAssinado ActionStatus = "assinado"
)

// CorrectiveAction 整改文书
// alert_event_id 上的唯一约束保证每个告警事件至多生成一份文书，
// 重复触发直接返回既有文书
type CorrectiveAction struct {
	ID           string `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID    string `gorm:"type:uuid;not null;index" json:"company_id"`
	AlertID      string `gorm:"type:uuid;not null;index" json:"alert_id"`
	AlertEventID string `gorm:"type:uuid;not null;uniqueIndex:idx_corrective_event" json:"alert_event_id"`
	UserID       string `gorm:"type:uuid;not null;index" json:"user_id"`

	RiskLevel       string `gorm:"size:20;not null" json:"risk_level"`
	OccurrenceType  string `gorm:"size:50" json:"occurrence_type"`
	DocumentContent string `gorm:"type:text;not null" json:"document_content"`
	AISuggestions   string `gorm:"type:text" json:"ai_suggestions"`

	Status      ActionStatus `gorm:"size:20;not null;default:pendente" json:"status"`
	DeliveredAt *time.Time   `json:"delivered_at,omitempty"`
	SignedAt    *time.Time   `json:"signed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 指定表名
func (CorrectiveAction) TableName() string {
	return "corrective_actions"
}
