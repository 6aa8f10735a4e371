package reimbursement

import (
	"time"

	"gorm.io/datatypes"
)

// Status 报销单状态
type Status string

const (
	StatusPendente  Status = "pendente"
	StatusAprovado  Status = "aprovado"
	StatusRejeitado Status = "rejeitado"
)

// RiskLevel 欺诈风险等级
type RiskLevel string

const (
	LevelBaixo   RiskLevel = "baixo"
	LevelMedio   RiskLevel = "medio"
	LevelAlto    RiskLevel = "alto"
	LevelCritico RiskLevel = "critico"
)

// Reimbursement 报销申请
// 欺诈评分字段由评分器写回；状态流转由人工审批动作驱动
type Reimbursement struct {
	ID        string `json:"id" gorm:"primaryKey;type:uuid"`
	CompanyID string `json:"companyId" gorm:"type:uuid;not null;index"`
	UserID    string `json:"userId" gorm:"type:uuid;not null;index"`

	Amount      float64   `json:"amount" gorm:"type:decimal(12,2);not null"`
	Category    string    `json:"category" gorm:"size:50;not null"`
	ExpenseDate time.Time `json:"expenseDate" gorm:"not null;index"`
	Status      Status    `json:"status" gorm:"size:20;not null;default:pendente;index"`

	DocumentCount   int  `json:"documentCount"`
	HasAllDocuments bool `json:"hasAllDocuments"`

	// 评分器写回的字段
	FraudRiskScore  int            `json:"fraudRiskScore"`
	FraudRiskLevel  RiskLevel      `json:"fraudRiskLevel" gorm:"size:20"`
	FraudIndicators datatypes.JSON `json:"fraudIndicators" gorm:"type:jsonb"`

	// 审批信息
	ReviewedBy      string     `json:"reviewedBy,omitempty" gorm:"type:uuid"`
	ReviewedAt      *time.Time `json:"reviewedAt,omitempty"`
	RejectionReason string     `json:"rejectionReason,omitempty" gorm:"size:500"`

	CreatedAt time.Time `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"autoUpdateTime"`
}

func (Reimbursement) TableName() string {
	return "reimbursements"
}
