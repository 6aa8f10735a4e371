package alerts

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// ============================================================================
// 告警类型与优先级
// ============================================================================

// AlertType 告警类型
type AlertType string

const (
	TypeTimeLogRecurrence    AlertType = "time_log_recurrence"    // 打卡异常累犯
	TypeDownloadRisk         AlertType = "download_risk"          // 敏感文件下载
	TypeReimbursementFraud   AlertType = "reimbursement_fraud"    // 报销欺诈
	TypeOvertime             AlertType = "overtime"               // 加班/缺勤异常
	TypeMedicalLeavePattern  AlertType = "medical_leave_pattern"  // 病假延长可疑模式
	TypeGoalUnderperformance AlertType = "goal_underperformance"  // 目标未达
	TypeWellnessEngagement   AlertType = "wellness_engagement"    // 健康参与度
)

// Priority 告警优先级
type Priority string

const (
	PriorityBaixa   Priority = "baixa"
	PriorityMedia   Priority = "media"
	PriorityAlta    Priority = "alta"
	PriorityCritica Priority = "critica"
)

// activeOnlyDedup 去重时仅匹配激活告警的类型
// 其余类型（目标未达、报销欺诈、下载风险）一经创建永不重复告警，
// 无论激活状态如何
var activeOnlyDedup = map[AlertType]bool{
	TypeTimeLogRecurrence:   true,
	TypeOvertime:            true,
	TypeMedicalLeavePattern: true,
	TypeWellnessEngagement:  true,
}

// DedupActiveOnly 判断该类型去重时是否仅匹配激活告警
func DedupActiveOnly(t AlertType) bool {
	return activeOnlyDedup[t]
}

// ============================================================================
// 自然键
// ============================================================================

// NaturalKey 告警自然键：决定两次触发是否代表同一风险条件的字段组合
// 各字段落在独立索引列上，序列化形式用于唯一约束
type NaturalKey struct {
	UserID      string     // 按用户去重的类型（打卡累犯、病假模式）
	GoalID      string     // 目标未达
	PeriodStart *time.Time // 目标未达：周期起始
	ReferenceID string     // 按单条记录去重的类型（报销ID、下载ID、加班记录ID）
}

// String 生成确定性的键序列化形式
func (k NaturalKey) String() string {
	parts := make([]string, 0, 3)
	if k.UserID != "" {
		parts = append(parts, "user:"+k.UserID)
	}
	if k.GoalID != "" {
		parts = append(parts, "goal:"+k.GoalID)
	}
	if k.PeriodStart != nil {
		parts = append(parts, "period:"+k.PeriodStart.Format("2006-01-02"))
	}
	if k.ReferenceID != "" {
		parts = append(parts, "ref:"+k.ReferenceID)
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, "|")
}

// Valid 自然键至少包含一个判别字段
func (k NaturalKey) Valid() bool {
	return k.String() != ""
}

// ============================================================================
// 数据模型
// ============================================================================

// Alert 告警：某公司内一个已识别的持续性风险条件
// 去重依赖 (company_id, type, dedup_key) 唯一约束；递归类告警被人工停用时
// 释放 dedup_key，下一次触发可重新创建
type Alert struct {
	ID        string    `json:"id" gorm:"primaryKey;type:uuid"`
	CompanyID string    `json:"companyId" gorm:"type:uuid;not null;index;uniqueIndex:idx_alerts_dedup"`
	Type      AlertType `json:"type" gorm:"size:50;not null;index;uniqueIndex:idx_alerts_dedup"`

	Title       string   `json:"title" gorm:"size:200;not null"`
	Description string   `json:"description" gorm:"type:text"`
	Priority    Priority `json:"priority" gorm:"size:20;not null"`

	// 自然键（独立索引列 + 序列化唯一键）
	UserID      string     `json:"userId,omitempty" gorm:"type:uuid;index"`
	GoalID      string     `json:"goalId,omitempty" gorm:"type:uuid;index"`
	PeriodStart *time.Time `json:"periodStart,omitempty"`
	ReferenceID string     `json:"referenceId,omitempty" gorm:"size:100;index"`
	NaturalKey  string     `json:"naturalKey" gorm:"size:300;not null"`
	DedupKey    string     `json:"-" gorm:"size:400;not null;uniqueIndex:idx_alerts_dedup"`

	// 自由负载（仅元数据，不参与去重）
	Conditions datatypes.JSON `json:"conditions" gorm:"type:jsonb"`

	IsActive  bool     `json:"isActive" gorm:"default:true;index"`
	RiskScore *float64 `json:"riskScore,omitempty"`
	RiskLevel string   `json:"riskLevel,omitempty" gorm:"size:20"`

	DeactivatedAt *time.Time `json:"deactivatedAt,omitempty"`
	DeactivatedBy string     `json:"deactivatedBy,omitempty" gorm:"type:uuid"`

	CreatedAt time.Time `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"autoUpdateTime"`
}

func (Alert) TableName() string {
	return "alerts"
}

// retiredDedupKey 停用时释放唯一槽位用的键
func retiredDedupKey(naturalKey, alertID string) string {
	return fmt.Sprintf("%s#retired:%s", naturalKey, alertID)
}

// AlertEvent 告警事件：一次具体的触发，挂在某个告警之下
// 同一告警随时间可以累积多个事件；事件会被原地更新以附加
// 计算出的风险分数和生成的文书引用
type AlertEvent struct {
	ID        string `json:"id" gorm:"primaryKey;type:uuid"`
	AlertID   string `json:"alertId" gorm:"type:uuid;not null;index"`
	CompanyID string `json:"companyId" gorm:"type:uuid;not null;index"`

	TriggeredByData datatypes.JSON `json:"triggeredByData" gorm:"type:jsonb"`
	Acknowledged    bool           `json:"acknowledged" gorm:"default:false"`

	RiskScore                *float64 `json:"riskScore,omitempty"`
	RiskLevel                string   `json:"riskLevel,omitempty" gorm:"size:20"`
	AISuggestedActions       string   `json:"aiSuggestedActions,omitempty" gorm:"type:text"`
	CorrectiveActionDocument string   `json:"correctiveActionDocument,omitempty" gorm:"type:text"`

	CreatedAt time.Time `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"autoUpdateTime"`
}

func (AlertEvent) TableName() string {
	return "alert_events"
}
