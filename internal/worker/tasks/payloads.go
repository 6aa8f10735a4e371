package tasks

// Task Types
const (
	TypeOvertimeSweep        = "overtime:sweep"
	TypeGoalAggregate        = "goals:aggregate"
	TypeGoalUnderperformance = "goals:underperformance"
	TypeMedicalPatternScan   = "medical:pattern_scan"
)

// SweepPayload 周期性扫描任务载荷
// company_id 为空表示对所有公司逐一执行
type SweepPayload struct {
	CompanyID string `json:"company_id"`
}
