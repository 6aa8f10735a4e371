package reimbursement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"hrguard/internal/alerts"
	"hrguard/internal/config"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrNotFound       = errors.New("reembolso não encontrado")
	ErrAlreadyDecided = errors.New("reembolso já foi aprovado ou rejeitado")
)

// 评分规则常量
const (
	highAmountThreshold    = 1000 // 金额超过该值加分
	roundAmountThreshold   = 500  // 整百金额超过该值加分
	requiredDocumentCount  = 2    // 凭证少于该数量视为不完整
	frequencySiblingCount  = 3    // 回溯窗口内其他报销超过该数量加分
	criticalScoreThreshold = 70
	highScoreThreshold     = 50
	mediumScoreThreshold   = 30
)

// highRiskCategories 高风险报销类别
var highRiskCategories = map[string]bool{
	"combustivel": true,
	"alimentacao": true,
	"outros":      true,
}

// Service 报销欺诈评分服务
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

// SubmitInput 报销提交输入
type SubmitInput struct {
	CompanyID     string    `json:"companyId"`
	UserID        string    `json:"userId"`
	Amount        float64   `json:"amount" binding:"required,gt=0"`
	Category      string    `json:"category" binding:"required"`
	ExpenseDate   time.Time `json:"expenseDate" binding:"required"`
	DocumentCount int       `json:"documentCount"`
}

// ScoreOutcome 欺诈评分结果
type ScoreOutcome struct {
	Score      int
	Level      RiskLevel
	Indicators []string
}

// ProcessResult 报销处理结果
type ProcessResult struct {
	Reimbursement *Reimbursement
	Outcome       ScoreOutcome
	AlertCreated  bool
}

// Submit 提交报销并立即执行欺诈评分
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*ProcessResult, error) {
	r := &Reimbursement{
		ID:            uuid.New().String(),
		CompanyID:     in.CompanyID,
		UserID:        in.UserID,
		Amount:        in.Amount,
		Category:      in.Category,
		ExpenseDate:   in.ExpenseDate,
		Status:        StatusPendente,
		DocumentCount: in.DocumentCount,
	}
	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		return nil, err
	}
	return s.Score(ctx, r.CompanyID, r.ID)
}

// Score 对已存在的报销单执行欺诈评分
// 分数/等级/指标/凭证完整性总是写回记录，无论是否达到告警门槛；
// 重复调用对同一报销单不会产生第二个告警
func (s *Service) Score(ctx context.Context, companyID, reimbursementID string) (*ProcessResult, error) {
	var r Reimbursement
	err := s.db.WithContext(ctx).
		Where("id = ? AND company_id = ?", reimbursementID, companyID).
		First(&r).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	siblings, err := s.countRecentSiblings(ctx, &r)
	if err != nil {
		return nil, err
	}

	outcome := scoreClaim(&r, siblings)

	indicators, err := json.Marshal(outcome.Indicators)
	if err != nil {
		return nil, err
	}

	r.FraudRiskScore = outcome.Score
	r.FraudRiskLevel = outcome.Level
	r.FraudIndicators = datatypes.JSON(indicators)
	r.HasAllDocuments = r.DocumentCount >= requiredDocumentCount

	err = s.db.WithContext(ctx).Model(&Reimbursement{}).
		Where("id = ?", r.ID).
		Updates(map[string]interface{}{
			"fraud_risk_score":  r.FraudRiskScore,
			"fraud_risk_level":  r.FraudRiskLevel,
			"fraud_indicators":  r.FraudIndicators,
			"has_all_documents": r.HasAllDocuments,
		}).Error
	if err != nil {
		return nil, err
	}

	result := &ProcessResult{Reimbursement: &r, Outcome: outcome}

	if outcome.Level == LevelAlto || outcome.Level == LevelCritico {
		priority := alerts.PriorityMedia
		if outcome.Level == LevelCritico {
			priority = alerts.PriorityAlta
		}

		score := float64(outcome.Score)
		ensured, err := s.alerts.EnsureAlert(ctx, alerts.EnsureInput{
			CompanyID:   r.CompanyID,
			Type:        alerts.TypeReimbursementFraud,
			Title:       "Indícios de fraude em reembolso",
			Description: fmt.Sprintf("Reembolso de R$ %.2f (%s) com risco %s", r.Amount, r.Category, outcome.Level),
			Priority:    priority,
			Key:         alerts.NaturalKey{ReferenceID: r.ID},
			Conditions: map[string]any{
				"reimbursement_id": r.ID,
				"user_id":          r.UserID,
			},
			TriggeredBy: map[string]any{
				"reimbursement_id": r.ID,
				"amount":           r.Amount,
				"category":         r.Category,
				"fraud_risk_score": outcome.Score,
				"fraud_indicators": outcome.Indicators,
			},
			RiskScore: &score,
			RiskLevel: string(outcome.Level),
		})
		if err != nil {
			return nil, err
		}
		result.AlertCreated = ensured.Created
	}

	return result, nil
}

// countRecentSiblings 统计同一用户回溯窗口内的其他报销数量
func (s *Service) countRecentSiblings(ctx context.Context, r *Reimbursement) (int64, error) {
	windowStart := r.ExpenseDate.AddDate(0, 0, -s.risk.ReimbursementFrequencyDays)

	var count int64
	err := s.db.WithContext(ctx).Model(&Reimbursement{}).
		Where("company_id = ? AND user_id = ? AND id <> ?", r.CompanyID, r.UserID, r.ID).
		Where("expense_date BETWEEN ? AND ?", windowStart, r.ExpenseDate).
		Count(&count).Error
	return count, err
}

// scoreClaim 纯评分规则
func scoreClaim(r *Reimbursement, recentSiblings int64) ScoreOutcome {
	var outcome ScoreOutcome

	if r.Amount > highAmountThreshold {
		outcome.Score += 20
		outcome.Indicators = append(outcome.Indicators, "valor elevado")
	}
	if r.Amount > roundAmountThreshold && math.Mod(r.Amount, 100) == 0 {
		outcome.Score += 15
		outcome.Indicators = append(outcome.Indicators, "valor redondo acima de R$ 500")
	}
	if r.DocumentCount < requiredDocumentCount {
		outcome.Score += 30
		outcome.Indicators = append(outcome.Indicators, "documentação incompleta")
	}
	if recentSiblings > frequencySiblingCount {
		outcome.Score += 25
		outcome.Indicators = append(outcome.Indicators, "alta frequência de reembolsos no período")
	}
	if highRiskCategories[r.Category] {
		outcome.Score += 10
		outcome.Indicators = append(outcome.Indicators, "categoria de alto risco")
	}

	if outcome.Score > 100 {
		outcome.Score = 100
	}

	switch {
	case outcome.Score >= criticalScoreThreshold:
		outcome.Level = LevelCritico
	case outcome.Score >= highScoreThreshold:
		outcome.Level = LevelAlto
	case outcome.Score >= mediumScoreThreshold:
		outcome.Level = LevelMedio
	default:
		outcome.Level = LevelBaixo
	}

	return outcome
}

// Approve 批准报销（人工动作）
func (s *Service) Approve(ctx context.Context, companyID, reimbursementID, reviewerID string) error {
	return s.decide(ctx, companyID, reimbursementID, reviewerID, StatusAprovado, "")
}

// Reject 拒绝报销（人工动作）
func (s *Service) Reject(ctx context.Context, companyID, reimbursementID, reviewerID, reason string) error {
	return s.decide(ctx, companyID, reimbursementID, reviewerID, StatusRejeitado, reason)
}

func (s *Service) decide(ctx context.Context, companyID, reimbursementID, reviewerID string, status Status, reason string) error {
	now := time.Now()
	result := s.db.WithContext(ctx).Model(&Reimbursement{}).
		Where("id = ? AND company_id = ? AND status = ?", reimbursementID, companyID, StatusPendente).
		Updates(map[string]interface{}{
			"status":           status,
			"reviewed_by":      reviewerID,
			"reviewed_at":      now,
			"rejection_reason": reason,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		s.db.WithContext(ctx).Model(&Reimbursement{}).
			Where("id = ? AND company_id = ?", reimbursementID, companyID).
			Count(&count)
		if count == 0 {
			return ErrNotFound
		}
		return ErrAlreadyDecided
	}
	return nil
}

// Get 获取报销单
func (s *Service) Get(ctx context.Context, companyID, reimbursementID string) (*Reimbursement, error) {
	var r Reimbursement
	err := s.db.WithContext(ctx).
		Where("id = ? AND company_id = ?", reimbursementID, companyID).
		First(&r).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

// AutoMigrate 自动迁移表结构
func (s *Service) AutoMigrate() error {
	return s.db.AutoMigrate(&Reimbursement{})
}
