package risk

import (
	"context"
	"fmt"
	"time"

	"hrguard/internal/activity"
	"hrguard/internal/config"
	"hrguard/internal/download"
	"hrguard/internal/medical"
	"hrguard/internal/overtime"
	"hrguard/internal/timelog"
)

// 风险等级，低端边界取闭区间：30 分仍为 baixo，31 分起 medio
const (
	LevelBaixo = "baixo"
	LevelMedio = "medio"
	LevelAlto  = "alto"
	LevelGrave = "grave"
)

// 各维度贡献分
const (
	zeroWorkedDaysScore    = 40
	lowAttendanceScore     = 25
	irregularPunchScore    = 15
	irregularPunchLimit    = 5
	heavyMedicalScore      = 35
	heavyMedicalDays       = 10
	moderateMedicalScore   = 20
	moderateMedicalDays    = 6
	crossDepartmentScore   = 40
	sensitiveDownloadScore = 40
	spreadOvertimeScore    = 35
	singleOvertimeScore    = 20
	attendanceRatio        = 0.7
	maxScore               = 100
)

// Service 综合员工风险评分器
// 聚合各领域服务在固定回溯窗口内的信号，产出 0–100 分值与离散等级
type Service struct {
	timelog  *timelog.Service
	download *download.Service
	medical  *medical.Service
	activity *activity.Service
	overtime *overtime.Service
	risk     config.RiskConfig
}

// NewService 创建服务
func NewService(
	timelogSvc *timelog.Service,
	downloadSvc *download.Service,
	medicalSvc *medical.Service,
	activitySvc *activity.Service,
	overtimeSvc *overtime.Service,
	risk config.RiskConfig,
) *Service {
	risk.ApplyDefaults()
	return &Service{
		timelog:  timelogSvc,
		download: downloadSvc,
		medical:  medicalSvc,
		activity: activitySvc,
		overtime: overtimeSvc,
		risk:     risk,
	}
}

// ScoreInput 评分输入
type ScoreInput struct {
	CompanyID    string
	UserID       string
	DepartmentID string // 可选，缺省时跳过跨部门访问维度
}

// ScoreResult 评分结果
type ScoreResult struct {
	Score   float64  `json:"riskScore"`
	Level   string   `json:"riskLevel"`
	Factors []string `json:"riskFactors"`
}

// ScoreEmployee 计算综合员工风险
// 各维度相互独立累加，最终截断到 100
func (s *Service) ScoreEmployee(ctx context.Context, in ScoreInput) (*ScoreResult, error) {
	now := time.Now()
	lookback := now.AddDate(0, 0, -s.risk.CompositeLookbackDays)
	trailingMonth := now.AddDate(0, -1, 0)
	overtimeWindow := now.AddDate(0, -s.risk.OvertimeSpreadMonths, 0)

	score := 0
	factors := []string{}

	// 出勤：回溯窗口内打卡天数
	workedDays, err := s.timelog.WorkedDays(ctx, in.CompanyID, in.UserID, lookback, now)
	if err != nil {
		return nil, err
	}
	expectedDays := s.risk.ExpectedWorkDaysPerMonth
	switch {
	case workedDays == 0:
		score += zeroWorkedDaysScore
		factors = append(factors, fmt.Sprintf("nenhum dia trabalhado nos últimos %d dias", s.risk.CompositeLookbackDays))
	case float64(workedDays) < attendanceRatio*float64(expectedDays):
		score += lowAttendanceScore
		factors = append(factors, fmt.Sprintf("apenas %d dias trabalhados de %d esperados", workedDays, expectedDays))
	}

	// 打卡异常
	irregular, err := s.timelog.CountIrregular(ctx, in.CompanyID, in.UserID, lookback, now)
	if err != nil {
		return nil, err
	}
	if irregular > irregularPunchLimit {
		score += irregularPunchScore
		factors = append(factors, fmt.Sprintf("%d registros de ponto irregulares nos últimos %d dias", irregular, s.risk.CompositeLookbackDays))
	}

	// 病假天数（最近一个月）
	medicalDays, err := s.medical.CertificateDays(ctx, in.CompanyID, in.UserID, trailingMonth, now)
	if err != nil {
		return nil, err
	}
	switch {
	case medicalDays > heavyMedicalDays:
		score += heavyMedicalScore
		factors = append(factors, fmt.Sprintf("%d dias de atestado médico no último mês", medicalDays))
	case medicalDays > moderateMedicalDays:
		score += moderateMedicalScore
		factors = append(factors, fmt.Sprintf("%d dias de atestado médico no último mês", medicalDays))
	}

	// 跨部门内容访问
	if in.DepartmentID != "" {
		crossAccess, err := s.activity.CountCrossDepartmentAccess(ctx, in.CompanyID, in.UserID, in.DepartmentID, lookback, now)
		if err != nil {
			return nil, err
		}
		if crossAccess > 0 {
			score += crossDepartmentScore
			factors = append(factors, fmt.Sprintf("%d acessos a conteúdo de outros departamentos", crossAccess))
		}
	}

	// 敏感文件下载
	sensitive, err := s.download.CountSensitive(ctx, in.CompanyID, in.UserID, lookback, now)
	if err != nil {
		return nil, err
	}
	if sensitive > 0 {
		score += sensitiveDownloadScore
		factors = append(factors, fmt.Sprintf("%d downloads de arquivos sensíveis nos últimos %d dias", sensitive, s.risk.CompositeLookbackDays))
	}

	// 未批加班的跨月分布
	overtimeMonths, err := s.overtime.CountUnapprovedMonths(ctx, in.CompanyID, in.UserID, overtimeWindow, now)
	if err != nil {
		return nil, err
	}
	switch {
	case overtimeMonths > 1:
		score += spreadOvertimeScore
		factors = append(factors, fmt.Sprintf("horas extras sem aprovação em %d meses distintos", overtimeMonths))
	case overtimeMonths == 1:
		score += singleOvertimeScore
		factors = append(factors, "horas extras sem aprovação em um mês")
	}

	if score > maxScore {
		score = maxScore
	}

	return &ScoreResult{
		Score:   float64(score),
		Level:   LevelFor(float64(score)),
		Factors: factors,
	}, nil
}

// LevelFor 分值到等级的映射，低端取闭区间
func LevelFor(score float64) string {
	switch {
	case score <= 30:
		return LevelBaixo
	case score <= 60:
		return LevelMedio
	case score <= 80:
		return LevelAlto
	default:
		return LevelGrave
	}
}
