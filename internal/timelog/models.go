package timelog

import "time"

// TimeLogEntry 一次打卡记录
// 派生字段（距离、风险分、异常标记）在创建时计算一次，之后不再重算
type TimeLogEntry struct {
	ID        string `json:"id" gorm:"primaryKey;type:uuid"`
	CompanyID string `json:"companyId" gorm:"type:uuid;not null;index"`
	UserID    string `json:"userId" gorm:"type:uuid;not null;index"`

	LogType      string    `json:"logType" gorm:"size:20;not null"` // entrada, saida, intervalo
	ExpectedTime string    `json:"expectedTime" gorm:"size:5;not null"` // HH:MM
	ActualTime   string    `json:"actualTime" gorm:"size:5;not null"`   // HH:MM
	LogDate      time.Time `json:"logDate" gorm:"not null;index"`

	// 打卡位置
	Latitude            *float64 `json:"latitude,omitempty"`
	Longitude           *float64 `json:"longitude,omitempty"`
	ExpectedLocationLat *float64 `json:"expectedLocationLat,omitempty"`
	ExpectedLocationLng *float64 `json:"expectedLocationLng,omitempty"`

	// 创建时计算的派生字段
	DistanceFromExpectedMeters float64 `json:"distanceFromExpectedMeters"`
	LocationRiskScore          int     `json:"locationRiskScore"`
	IsLate                     bool    `json:"isLate"`
	MinutesDifference          int     `json:"minutesDifference"`
	HasIrregularity            bool    `json:"hasIrregularity" gorm:"index"`
	IrregularityReason         string  `json:"irregularityReason,omitempty" gorm:"size:300"`

	CreatedAt time.Time `json:"createdAt" gorm:"autoCreateTime"`
}

func (TimeLogEntry) TableName() string {
	return "time_log_entries"
}
