package download

import (
	"time"

	"gorm.io/datatypes"
)

// RiskLevel 下载风险等级
type RiskLevel string

const (
	LevelBaixo   RiskLevel = "baixo"
	LevelMedio   RiskLevel = "medio"
	LevelAlto    RiskLevel = "alto"
	LevelCritico RiskLevel = "critico"
)

// DownloadLogEntry 一次文件下载记录
// 三项子风险分在创建时计算一次，之后不再更新
type DownloadLogEntry struct {
	ID        string `json:"id" gorm:"primaryKey;type:uuid"`
	CompanyID string `json:"companyId" gorm:"type:uuid;not null;index"`
	UserID    string `json:"userId" gorm:"type:uuid;not null;index"`

	FileName    string `json:"fileName" gorm:"size:300;not null"`
	FileType    string `json:"fileType" gorm:"size:20"`
	IsSensitive bool   `json:"isSensitive"`
	ContainsPII bool   `json:"containsPii"`

	SecurityRiskScore   int            `json:"securityRiskScore"`
	LGPDRiskScore       int            `json:"lgpdRiskScore"`
	LitigationRiskScore int            `json:"litigationRiskScore"`
	OverallRiskLevel    RiskLevel      `json:"overallRiskLevel" gorm:"size:20;index"`
	RiskFactors         datatypes.JSON `json:"riskFactors" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"createdAt" gorm:"autoCreateTime"`
}

func (DownloadLogEntry) TableName() string {
	return "download_log_entries"
}
