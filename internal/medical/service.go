package medical

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hrguard/internal/alerts"
	"hrguard/internal/config"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrCertificateNotFound = errors.New("atestado médico não encontrado")
	ErrExtensionNotFound   = errors.New("extensão de afastamento não encontrada")
	ErrAlreadyDecided      = errors.New("extensão já aprovada ou rejeitada")
)

// 资格与告警门槛
const (
	minDaysForExtension = 3 // 证明天数达到该值才可申请延长
	extensionCountLimit = 3 // 延长次数超过该值即告警
	highExtensionCount  = 5 // 超过该值优先级提升为 alta
	emendacaoMinCerts   = 2 // 周一/周五开头证明达到该数即可疑
	sameDoctorMinCerts  = 3 // 同一 CRM 出现在该数量证明上即可疑
	weekendEdgeMinCerts = 2 // 起止日落在周末的证明达到该数即可疑
)

// Service 病假证明与延长申请服务
type Service struct {
	db     *gorm.DB
	alerts *alerts.Service
	risk   config.RiskConfig
}

// NewService 创建服务
func NewService(db *gorm.DB, alertSvc *alerts.Service, risk config.RiskConfig) *Service {
	risk.ApplyDefaults()
	return &Service{db: db, alerts: alertSvc, risk: risk}
}

// CertificateInput 病假证明录入
type CertificateInput struct {
	CompanyID  string    `json:"companyId"`
	UserID     string    `json:"userId"`
	IssueDate  time.Time `json:"issueDate" binding:"required"`
	StartDate  time.Time `json:"startDate" binding:"required"`
	EndDate    time.Time `json:"endDate" binding:"required"`
	DaysCount  int       `json:"daysCount" binding:"required"`
	DoctorCRM  string    `json:"doctorCrm"`
	DoctorName string    `json:"doctorName"`
}

// RegisterCertificate 登记病假证明
func (s *Service) RegisterCertificate(ctx context.Context, in CertificateInput) (*MedicalCertificate, error) {
	cert := &MedicalCertificate{
		ID:         uuid.New().String(),
		CompanyID:  in.CompanyID,
		UserID:     in.UserID,
		IssueDate:  in.IssueDate,
		StartDate:  in.StartDate,
		EndDate:    in.EndDate,
		DaysCount:  in.DaysCount,
		DoctorCRM:  in.DoctorCRM,
		DoctorName: in.DoctorName,
	}
	if err := s.db.WithContext(ctx).Create(cert).Error; err != nil {
		return nil, err
	}
	return cert, nil
}

// ExtensionOutcome 延长申请结果
// 不符合资格属于正常业务结果而非错误
type ExtensionOutcome struct {
	Success   bool                   `json:"success"`
	Message   string                 `json:"message,omitempty"`
	Extension *MedicalLeaveExtension `json:"extension,omitempty"`
}

// RequestExtension 为某病假证明发起延长申请
// 资格：days_count >= 3 且该证明尚无延长申请
func (s *Service) RequestExtension(ctx context.Context, companyID, certificateID string, extensionDays int) (*ExtensionOutcome, error) {
	var cert MedicalCertificate
	err := s.db.WithContext(ctx).
		Where("id = ? AND company_id = ?", certificateID, companyID).
		First(&cert).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCertificateNotFound
		}
		return nil, err
	}

	if cert.DaysCount < minDaysForExtension {
		return &ExtensionOutcome{
			Success: false,
			Message: fmt.Sprintf("atestado de %d dia(s) não é elegível para extensão (mínimo %d)", cert.DaysCount, minDaysForExtension),
		}, nil
	}

	ext := &MedicalLeaveExtension{
		ID:            uuid.New().String(),
		CompanyID:     companyID,
		CertificateID: cert.ID,
		UserID:        cert.UserID,
		ExtensionDays: extensionDays,
		Status:        StatusPendente,
	}
	if err := s.db.WithContext(ctx).Create(ext).Error; err != nil {
		// 唯一约束兜底：并发或重复提交同一证明
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return &ExtensionOutcome{
				Success: false,
				Message: "já existe uma extensão para este atestado",
			}, nil
		}
		return nil, err
	}

	return &ExtensionOutcome{Success: true, Extension: ext}, nil
}

// ApproveExtension 批准延长申请，批准后触发一次该用户的模式检测
func (s *Service) ApproveExtension(ctx context.Context, companyID, extensionID, approverID string) (*MedicalLeaveExtension, error) {
	ext, err := s.decide(ctx, companyID, extensionID, map[string]interface{}{
		"status":      StatusAprovado,
		"approved_by": approverID,
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.EvaluateUser(ctx, companyID, ext.UserID); err != nil {
		return nil, err
	}
	return ext, nil
}

// RejectExtension 拒绝延长申请
func (s *Service) RejectExtension(ctx context.Context, companyID, extensionID, reason string) (*MedicalLeaveExtension, error) {
	return s.decide(ctx, companyID, extensionID, map[string]interface{}{
		"status":           StatusRejeitado,
		"rejection_reason": reason,
	})
}

// decide 状态流转：仅 pendente 可被裁决
func (s *Service) decide(ctx context.Context, companyID, extensionID string, updates map[string]interface{}) (*MedicalLeaveExtension, error) {
	result := s.db.WithContext(ctx).Model(&MedicalLeaveExtension{}).
		Where("id = ? AND company_id = ? AND status = ?", extensionID, companyID, StatusPendente).
		Updates(updates)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		var ext MedicalLeaveExtension
		err := s.db.WithContext(ctx).
			Where("id = ? AND company_id = ?", extensionID, companyID).
			First(&ext).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrExtensionNotFound
			}
			return nil, err
		}
		return nil, ErrAlreadyDecided
	}

	var ext MedicalLeaveExtension
	if err := s.db.WithContext(ctx).First(&ext, "id = ?", extensionID).Error; err != nil {
		return nil, err
	}
	return &ext, nil
}

// PatternFindings 可疑模式检测结果
type PatternFindings struct {
	ExtensionCount int      `json:"extension_count"`
	Patterns       []string `json:"patterns"`
}

// Suspicious 是否命中任一可疑模式
func (f *PatternFindings) Suspicious() bool {
	return len(f.Patterns) > 0
}

// DetectSuspiciousPatterns 检测某用户回溯窗口内（默认 12 个月）已批准延长
// 对应证明上的可疑模式：
//   - 起始日落在周一或周五（"emendação" 连休模式）的证明 ≥2 张
//   - 同一医生 CRM 出现在 ≥3 张证明上
//   - 起始或结束日落在周末的证明 ≥2 张
func (s *Service) DetectSuspiciousPatterns(ctx context.Context, companyID, userID string) (*PatternFindings, error) {
	since := time.Now().AddDate(0, -s.risk.MedicalPatternMonths, 0)

	certs, err := s.approvedCertificates(ctx, companyID, userID, since)
	if err != nil {
		return nil, err
	}

	findings := &PatternFindings{ExtensionCount: len(certs), Patterns: []string{}}

	mondayFriday := 0
	weekendEdge := 0
	byCRM := make(map[string]int)

	for _, cert := range certs {
		startDay := cert.StartDate.Weekday()
		endDay := cert.EndDate.Weekday()

		if startDay == time.Monday || startDay == time.Friday {
			mondayFriday++
		}
		if startDay == time.Saturday || startDay == time.Sunday ||
			endDay == time.Saturday || endDay == time.Sunday {
			weekendEdge++
		}
		if cert.DoctorCRM != "" {
			byCRM[cert.DoctorCRM]++
		}
	}

	if mondayFriday >= emendacaoMinCerts {
		findings.Patterns = append(findings.Patterns,
			fmt.Sprintf("%d atestados iniciando em sexta/segunda (padrão de emendação)", mondayFriday))
	}
	for crm, count := range byCRM {
		if count >= sameDoctorMinCerts {
			findings.Patterns = append(findings.Patterns,
				fmt.Sprintf("mesmo médico (CRM %s) em %d atestados", crm, count))
		}
	}
	if weekendEdge >= weekendEdgeMinCerts {
		findings.Patterns = append(findings.Patterns,
			fmt.Sprintf("%d atestados com início ou fim em final de semana", weekendEdge))
	}

	return findings, nil
}

// approvedCertificates 回溯窗口内存在已批准延长的证明
func (s *Service) approvedCertificates(ctx context.Context, companyID, userID string, since time.Time) ([]MedicalCertificate, error) {
	var certs []MedicalCertificate
	err := s.db.WithContext(ctx).
		Joins("JOIN medical_leave_extensions ON medical_leave_extensions.certificate_id = medical_certificates.id").
		Where("medical_certificates.company_id = ? AND medical_certificates.user_id = ?", companyID, userID).
		Where("medical_leave_extensions.status = ?", StatusAprovado).
		Where("medical_certificates.start_date >= ?", since).
		Find(&certs).Error
	return certs, err
}

// EvaluateUser 对某用户执行病假模式告警检测
// 告警条件：延长次数 > 3 或命中任一可疑模式；
// 次数 > 5 或存在可疑模式时优先级 alta。按用户去重，仅匹配激活告警
func (s *Service) EvaluateUser(ctx context.Context, companyID, userID string) (*PatternFindings, error) {
	findings, err := s.DetectSuspiciousPatterns(ctx, companyID, userID)
	if err != nil {
		return nil, err
	}

	if findings.ExtensionCount <= extensionCountLimit && !findings.Suspicious() {
		return findings, nil
	}

	priority := alerts.PriorityMedia
	if findings.ExtensionCount > highExtensionCount || findings.Suspicious() {
		priority = alerts.PriorityAlta
	}

	_, err = s.alerts.EnsureAlert(ctx, alerts.EnsureInput{
		CompanyID:   companyID,
		Type:        alerts.TypeMedicalLeavePattern,
		Title:       "Padrão suspeito de extensões de afastamento",
		Description: fmt.Sprintf("%d extensões aprovadas nos últimos %d meses", findings.ExtensionCount, s.risk.MedicalPatternMonths),
		Priority:    priority,
		Key:         alerts.NaturalKey{UserID: userID},
		Conditions: map[string]any{
			"user_id":         userID,
			"lookback_months": s.risk.MedicalPatternMonths,
		},
		TriggeredBy: map[string]any{
			"extension_count": findings.ExtensionCount,
			"patterns":        findings.Patterns,
		},
	})
	if err != nil {
		return nil, err
	}
	return findings, nil
}

// PatternScan 周期性扫描存在已批准延长的用户
// companyID 为空时覆盖全部公司
func (s *Service) PatternScan(ctx context.Context, companyID string) (int, error) {
	q := s.db.WithContext(ctx).Model(&MedicalLeaveExtension{}).
		Where("status = ?", StatusAprovado)
	if companyID != "" {
		q = q.Where("company_id = ?", companyID)
	}

	var targets []struct {
		CompanyID string
		UserID    string
	}
	if err := q.Distinct("company_id", "user_id").Find(&targets).Error; err != nil {
		return 0, err
	}

	scanned := 0
	for _, target := range targets {
		if _, err := s.EvaluateUser(ctx, target.CompanyID, target.UserID); err != nil {
			return scanned, err
		}
		scanned++
	}
	return scanned, nil
}

// CertificateDays 统计窗口内病假证明覆盖的总天数，供综合风险评分使用
func (s *Service) CertificateDays(ctx context.Context, companyID, userID string, from, to time.Time) (int, error) {
	var certs []MedicalCertificate
	err := s.db.WithContext(ctx).
		Where("company_id = ? AND user_id = ?", companyID, userID).
		Where("start_date BETWEEN ? AND ?", from, to).
		Find(&certs).Error
	if err != nil {
		return 0, err
	}

	total := 0
	for _, cert := range certs {
		total += cert.DaysCount
	}
	return total, nil
}

// GetCertificate 获取病假证明
func (s *Service) GetCertificate(ctx context.Context, companyID, certID string) (*MedicalCertificate, error) {
	var cert MedicalCertificate
	err := s.db.WithContext(ctx).
		Where("id = ? AND company_id = ?", certID, companyID).
		First(&cert).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCertificateNotFound
		}
		return nil, err
	}
	return &cert, nil
}

// AutoMigrate 自动迁移表结构
func (s *Service) AutoMigrate() error {
	return s.db.AutoMigrate(&MedicalCertificate{}, &MedicalLeaveExtension{})
}
