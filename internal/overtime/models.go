package overtime

import "time"

// OvertimeRecord 某用户某日的加班/工时不足计算结果
// has_alert 为单向标记：一旦为该记录创建过告警就置位，防止重复告警，
// 评分器不会重算或复位
type OvertimeRecord struct {
	ID        string `json:"id" gorm:"primaryKey;type:uuid"`
	CompanyID string `json:"companyId" gorm:"type:uuid;not null;index;uniqueIndex:idx_overtime_day"`
	UserID    string `json:"userId" gorm:"type:uuid;not null;index;uniqueIndex:idx_overtime_day"`

	RecordDate time.Time `json:"recordDate" gorm:"not null;index;uniqueIndex:idx_overtime_day"`

	OvertimeHours  float64 `json:"overtimeHours" gorm:"type:decimal(5,2)"`
	UndertimeHours float64 `json:"undertimeHours" gorm:"type:decimal(5,2)"`

	HasOvertimeApproval bool `json:"hasOvertimeApproval"`
	HasAlert            bool `json:"hasAlert" gorm:"index"`

	CreatedAt time.Time `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"autoUpdateTime"`
}

func (OvertimeRecord) TableName() string {
	return "overtime_records"
}
