package corrective

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"hrguard/internal/alerts"
	"hrguard/internal/metrics"
	"hrguard/pkg/aiinterface"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

var (
	ErrActionNotFound    = errors.New("documento de ação corretiva não encontrado")
	ErrInvalidTransition = errors.New("transição de status inválida")
)

// triggerLevels 触发文书生成的风险等级
var triggerLevels = map[string]bool{
	"medio": true,
	"alto":  true,
	"grave": true,
}

// ShouldTrigger 某风险等级是否需要生成整改文书
func ShouldTrigger(riskLevel string) bool {
	return triggerLevels[riskLevel]
}

// Service 整改文书生成与生命周期服务
type Service struct {
	db     *gorm.DB
	alerts *alerts.Service
	model  aiinterface.ModelClient
	tracer trace.Tracer
}

// NewService 创建服务
func NewService(db *gorm.DB, alertSvc *alerts.Service, model aiinterface.ModelClient) *Service {
	return &Service{
		db:     db,
		alerts: alertSvc,
		model:  model,
		tracer: otel.Tracer("hrguard/internal/corrective"),
	}
}

// GenerateInput 文书生成请求
type GenerateInput struct {
	AlertID        string   `json:"alertId" binding:"required"`
	AlertEventID   string   `json:"alertEventId" binding:"required"`
	UserID         string   `json:"userId" binding:"required"`
	CompanyID      string   `json:"companyId"`
	RiskLevel      string   `json:"riskLevel" binding:"required"`
	RiskFactors    []string `json:"riskFactors"`
	UserName       string   `json:"userName"`
	UserDepartment string   `json:"userDepartment"`
	OccurrenceType string   `json:"occurrenceType"`
}

// GenerateOutcome 文书生成结果
// 等级不足门槛属于正常业务结果；重复触发返回既有文书且 Created=false
type GenerateOutcome struct {
	Triggered bool
	Created   bool
	Message   string
	Action    *CorrectiveAction
}

// Generate 为某告警事件生成整改文书
// 同一事件重复调用是幂等的：已有文书直接返回，不再调用生成模型
func (s *Service) Generate(ctx context.Context, in GenerateInput) (*GenerateOutcome, error) {
	if !ShouldTrigger(in.RiskLevel) {
		return &GenerateOutcome{
			Triggered: false,
			Message:   fmt.Sprintf("nível de risco %s não exige ação corretiva", in.RiskLevel),
		}, nil
	}

	// 先查既有文书，命中直接返回
	existing, err := s.findByEvent(ctx, in.CompanyID, in.AlertEventID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &GenerateOutcome{Triggered: true, Created: false, Action: existing}, nil
	}

	// 校验事件归属，避免为不存在的事件生成文书
	if _, err := s.alerts.GetEvent(ctx, in.CompanyID, in.AlertEventID); err != nil {
		return nil, err
	}

	if s.model == nil {
		return nil, &aiinterface.ClientError{
			Type:    aiinterface.ErrorTypeAuth,
			Message: "geração de documentos não configurada",
		}
	}

	ctx, span := s.tracer.Start(ctx, "Corrective.Generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("alert_event_id", in.AlertEventID),
		attribute.String("risk_level", in.RiskLevel),
		attribute.String("occurrence_type", in.OccurrenceType),
	)

	document, err := s.generateDocument(ctx, in)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "geração do documento falhou")
		return nil, err
	}
	suggestions, err := s.generateSuggestions(ctx, in)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "geração das sugestões falhou")
		return nil, err
	}

	action := &CorrectiveAction{
		ID:              uuid.New().String(),
		CompanyID:       in.CompanyID,
		AlertID:         in.AlertID,
		AlertEventID:    in.AlertEventID,
		UserID:          in.UserID,
		RiskLevel:       in.RiskLevel,
		OccurrenceType:  in.OccurrenceType,
		DocumentContent: document,
		AISuggestions:   suggestions,
		Status:          StatusPendente,
	}
	if err := s.db.WithContext(ctx).Create(action).Error; err != nil {
		// 并发触发同一事件：唯一约束兜底，回读既有文书
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			existing, ferr := s.findByEvent(ctx, in.CompanyID, in.AlertEventID)
			if ferr != nil {
				return nil, ferr
			}
			if existing != nil {
				return &GenerateOutcome{Triggered: true, Created: false, Action: existing}, nil
			}
		}
		return nil, err
	}

	// 文书与建议写回事件，失败不影响主流程
	if err := s.alerts.AttachDocument(ctx, in.CompanyID, in.AlertEventID, action.ID); err == nil {
		_ = s.alerts.AttachSuggestions(ctx, in.CompanyID, in.AlertEventID, suggestions)
	}

	metrics.CorrectiveActionsTotal.WithLabelValues(in.RiskLevel, string(StatusPendente)).Inc()
	return &GenerateOutcome{Triggered: true, Created: true, Action: action}, nil
}

func (s *Service) findByEvent(ctx context.Context, companyID, eventID string) (*CorrectiveAction, error) {
	var action CorrectiveAction
	err := s.db.WithContext(ctx).
		Where("alert_event_id = ? AND company_id = ?", eventID, companyID).
		First(&action).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &action, nil
}

// generateDocument 调用生成模型产出正式文书文本
func (s *Service) generateDocument(ctx context.Context, in GenerateInput) (string, error) {
	ctx, span := s.tracer.Start(ctx, "Corrective.GenerateDocument")
	defer span.End()

	resp, err := s.model.ChatCompletion(ctx, &aiinterface.ChatCompletionRequest{
		Messages: []aiinterface.Message{
			{
				Role:    "system",
				Content: "Você é um especialista em RH e compliance trabalhista brasileiro. Redija documentos de ação corretiva formais, objetivos e juridicamente adequados.",
			},
			{
				Role:    "user",
				Content: documentPrompt(in),
			},
		},
		Temperature: 0.3,
		MaxTokens:   1500,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// generateSuggestions 调用生成模型产出处置建议
func (s *Service) generateSuggestions(ctx context.Context, in GenerateInput) (string, error) {
	ctx, span := s.tracer.Start(ctx, "Corrective.GenerateSuggestions")
	defer span.End()

	resp, err := s.model.ChatCompletion(ctx, &aiinterface.ChatCompletionRequest{
		Messages: []aiinterface.Message{
			{
				Role:    "system",
				Content: "Você é um consultor de RH. Liste ações recomendadas, curtas e práticas, para o gestor tratar o risco descrito.",
			},
			{
				Role:    "user",
				Content: fmt.Sprintf("Risco %s (%s) para %s (%s). Fatores: %s. Liste até 5 ações recomendadas.",
					in.RiskLevel, in.OccurrenceType, in.UserName, in.UserDepartment, strings.Join(in.RiskFactors, "; ")),
			},
		},
		Temperature: 0.5,
		MaxTokens:   500,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func documentPrompt(in GenerateInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Gere um documento de ação corretiva para o colaborador %s, do departamento %s.\n", in.UserName, in.UserDepartment)
	fmt.Fprintf(&b, "Tipo de ocorrência: %s. Nível de risco: %s.\n", in.OccurrenceType, in.RiskLevel)
	if len(in.RiskFactors) > 0 {
		b.WriteString("Fatores de risco identificados:\n")
		for _, factor := range in.RiskFactors {
			fmt.Fprintf(&b, "- %s\n", factor)
		}
	}
	b.WriteString("O documento deve conter: descrição dos fatos, fundamentação, medidas corretivas esperadas e prazo de adequação.")
	return b.String()
}

// MarkDelivered 状态推进 pendente→entregue
func (s *Service) MarkDelivered(ctx context.Context, companyID, actionID string) (*CorrectiveAction, error) {
	now := time.Now()
	return s.transition(ctx, companyID, actionID, StatusPendente, map[string]interface{}{
		"status":       StatusEntregue,
		"delivered_at": now,
	})
}

// MarkSigned 状态推进 entregue→assinado
func (s *Service) MarkSigned(ctx context.Context, companyID, actionID string) (*CorrectiveAction, error) {
	now := time.Now()
	return s.transition(ctx, companyID, actionID, StatusEntregue, map[string]interface{}{
		"status":    StatusAssinado,
		"signed_at": now,
	})
}

// transition 单向状态流转，前置状态不匹配视为非法流转
func (s *Service) transition(ctx context.Context, companyID, actionID string, from ActionStatus, updates map[string]interface{}) (*CorrectiveAction, error) {
	result := s.db.WithContext(ctx).Model(&CorrectiveAction{}).
		Where("id = ? AND company_id = ? AND status = ?", actionID, companyID, from).
		Updates(updates)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		var action CorrectiveAction
		err := s.db.WithContext(ctx).
			Where("id = ? AND company_id = ?", actionID, companyID).
			First(&action).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrActionNotFound
			}
			return nil, err
		}
		return nil, ErrInvalidTransition
	}

	var action CorrectiveAction
	if err := s.db.WithContext(ctx).First(&action, "id = ?", actionID).Error; err != nil {
		return nil, err
	}
	return &action, nil
}

// Get 获取文书详情
func (s *Service) Get(ctx context.Context, companyID, actionID string) (*CorrectiveAction, error) {
	var action CorrectiveAction
	err := s.db.WithContext(ctx).
		Where("id = ? AND company_id = ?", actionID, companyID).
		First(&action).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrActionNotFound
		}
		return nil, err
	}
	return &action, nil
}

// ListByUser 获取某用户的文书列表
func (s *Service) ListByUser(ctx context.Context, companyID, userID string) ([]CorrectiveAction, error) {
	var actions []CorrectiveAction
	err := s.db.WithContext(ctx).
		Where("company_id = ? AND user_id = ?", companyID, userID).
		Order("created_at DESC").
		Find(&actions).Error
	return actions, err
}

// AutoMigrate 自动迁移表结构
func (s *Service) AutoMigrate() error {
	return s.db.AutoMigrate(&CorrectiveAction{})
}
