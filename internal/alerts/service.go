package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"hrguard/internal/common"
	"hrguard/internal/logger"
	"hrguard/internal/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrAlertNotFound   = errors.New("告警不存在")
	ErrEventNotFound   = errors.New("告警事件不存在")
	ErrInvalidKey      = errors.New("告警自然键至少需要一个判别字段")
	ErrAlreadyInactive = errors.New("告警已停用")
)

// Service 告警去重与写入服务
// 状态机：absent → active → inactive（终态，仅人工停用）
// 评分器只负责 absent→active 的创建，从不停用告警
type Service struct {
	db *gorm.DB
}

// NewService 创建服务
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// EnsureInput 告警创建输入
type EnsureInput struct {
	CompanyID   string
	Type        AlertType
	Title       string
	Description string
	Priority    Priority
	Key         NaturalKey
	Conditions  map[string]any // 自由负载，仅作元数据
	TriggeredBy map[string]any // 首个事件携带的触发数据
	RiskScore   *float64
	RiskLevel   string
}

// EnsureResult 告警创建结果
type EnsureResult struct {
	Alert   *Alert
	Event   *AlertEvent // 仅在新建时非空
	Created bool
}

// EnsureAlert 幂等创建告警
// 同一 (公司, 类型, 自然键) 已存在匹配告警时不做任何写入，返回 Created=false；
// 否则在单个事务中创建告警和首个事件。并发触发同一自然键时由
// (company_id, type, dedup_key) 唯一约束兜底，冲突方回读已有告警
func (s *Service) EnsureAlert(ctx context.Context, in EnsureInput) (*EnsureResult, error) {
	if !in.Key.Valid() {
		return nil, ErrInvalidKey
	}

	naturalKey := in.Key.String()

	// 先查：递归类只匹配激活告警，其余类型不论激活状态
	existing, err := s.findByNaturalKey(ctx, in.CompanyID, in.Type, naturalKey)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		metrics.AlertsDedupedTotal.WithLabelValues(string(in.Type)).Inc()
		return &EnsureResult{Alert: existing, Created: false}, nil
	}

	alert, event, err := s.buildAlert(in, naturalKey)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(alert).Error; err != nil {
			return err
		}
		return tx.Create(event).Error
	})
	if err != nil {
		// 并发触发撞上唯一约束：按已存在处理
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			existing, ferr := s.findByNaturalKey(ctx, in.CompanyID, in.Type, naturalKey)
			if ferr != nil {
				return nil, ferr
			}
			if existing != nil {
				metrics.AlertsDedupedTotal.WithLabelValues(string(in.Type)).Inc()
				return &EnsureResult{Alert: existing, Created: false}, nil
			}
		}
		return nil, err
	}

	metrics.AlertsCreatedTotal.WithLabelValues(string(in.Type), string(in.Priority)).Inc()
	logger.WithContext(ctx).Info("告警已创建",
		zap.String("alert_id", alert.ID),
		zap.String("company_id", in.CompanyID),
		zap.String("type", string(in.Type)),
		zap.String("priority", string(in.Priority)),
	)
	return &EnsureResult{Alert: alert, Event: event, Created: true}, nil
}

// findByNaturalKey 按类型的去重规则查找既有告警
func (s *Service) findByNaturalKey(ctx context.Context, companyID string, alertType AlertType, naturalKey string) (*Alert, error) {
	q := s.db.WithContext(ctx).
		Where("company_id = ? AND type = ? AND natural_key = ?", companyID, alertType, naturalKey)
	if DedupActiveOnly(alertType) {
		q = q.Where("is_active = ?", true)
	}

	var alert Alert
	if err := q.Order("created_at DESC").First(&alert).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &alert, nil
}

func (s *Service) buildAlert(in EnsureInput, naturalKey string) (*Alert, *AlertEvent, error) {
	conditions, err := marshalPayload(in.Conditions)
	if err != nil {
		return nil, nil, err
	}
	triggeredBy, err := marshalPayload(in.TriggeredBy)
	if err != nil {
		return nil, nil, err
	}

	alert := &Alert{
		ID:          uuid.New().String(),
		CompanyID:   in.CompanyID,
		Type:        in.Type,
		Title:       in.Title,
		Description: in.Description,
		Priority:    in.Priority,
		UserID:      in.Key.UserID,
		GoalID:      in.Key.GoalID,
		PeriodStart: in.Key.PeriodStart,
		ReferenceID: in.Key.ReferenceID,
		NaturalKey:  naturalKey,
		DedupKey:    naturalKey,
		Conditions:  conditions,
		IsActive:    true,
		RiskScore:   in.RiskScore,
		RiskLevel:   in.RiskLevel,
	}

	event := &AlertEvent{
		ID:              uuid.New().String(),
		AlertID:         alert.ID,
		CompanyID:       in.CompanyID,
		TriggeredByData: triggeredBy,
		RiskScore:       in.RiskScore,
		RiskLevel:       in.RiskLevel,
	}

	return alert, event, nil
}

func marshalPayload(payload map[string]any) (datatypes.JSON, error) {
	if payload == nil {
		return datatypes.JSON("{}"), nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

// AppendEvent 为已存在的告警追加一次触发事件
func (s *Service) AppendEvent(ctx context.Context, companyID, alertID string, triggeredBy map[string]any) (*AlertEvent, error) {
	alert, err := s.GetAlert(ctx, companyID, alertID)
	if err != nil {
		return nil, err
	}

	payload, err := marshalPayload(triggeredBy)
	if err != nil {
		return nil, err
	}

	event := &AlertEvent{
		ID:              uuid.New().String(),
		AlertID:         alert.ID,
		CompanyID:       companyID,
		TriggeredByData: payload,
	}
	if err := s.db.WithContext(ctx).Create(event).Error; err != nil {
		return nil, err
	}
	return event, nil
}

// Deactivate 人工停用告警（active→inactive，终态）
// 递归类告警停用时释放去重槽位，后续再次触发可重新创建
func (s *Service) Deactivate(ctx context.Context, companyID, alertID, operatorID string) error {
	var alert Alert
	err := s.db.WithContext(ctx).
		Where("id = ? AND company_id = ?", alertID, companyID).
		First(&alert).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAlertNotFound
		}
		return err
	}
	if !alert.IsActive {
		return ErrAlreadyInactive
	}

	now := time.Now()
	updates := map[string]interface{}{
		"is_active":      false,
		"deactivated_at": now,
		"deactivated_by": operatorID,
	}
	if DedupActiveOnly(alert.Type) {
		updates["dedup_key"] = retiredDedupKey(alert.NaturalKey, alert.ID)
	}

	return s.db.WithContext(ctx).Model(&Alert{}).
		Where("id = ?", alert.ID).
		Updates(updates).Error
}

// GetAlert 获取告警详情
func (s *Service) GetAlert(ctx context.Context, companyID, alertID string) (*Alert, error) {
	var alert Alert
	err := s.db.WithContext(ctx).
		Where("id = ? AND company_id = ?", alertID, companyID).
		First(&alert).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAlertNotFound
		}
		return nil, err
	}
	return &alert, nil
}

// ListAlerts 获取告警列表
func (s *Service) ListAlerts(ctx context.Context, companyID string, alertType AlertType, activeOnly bool, page common.PaginationRequest) ([]Alert, int64, error) {
	page.Normalize()

	var items []Alert
	var total int64

	q := s.db.WithContext(ctx).Model(&Alert{}).Scopes(common.ByCompany(companyID))
	if alertType != "" {
		q = q.Where("type = ?", alertType)
	}
	if activeOnly {
		q = q.Scopes(common.ActiveOnly())
	}

	q.Count(&total)
	err := q.Order("created_at DESC").Offset(page.GetOffset()).Limit(page.GetPageSize()).Find(&items).Error
	return items, total, err
}

// GetEvent 获取告警事件
func (s *Service) GetEvent(ctx context.Context, companyID, eventID string) (*AlertEvent, error) {
	var event AlertEvent
	err := s.db.WithContext(ctx).
		Where("id = ? AND company_id = ?", eventID, companyID).
		First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return &event, nil
}

// ListEvents 获取某告警下的事件列表
func (s *Service) ListEvents(ctx context.Context, companyID, alertID string) ([]AlertEvent, error) {
	var events []AlertEvent
	err := s.db.WithContext(ctx).
		Where("alert_id = ? AND company_id = ?", alertID, companyID).
		Order("created_at DESC").
		Find(&events).Error
	return events, err
}

// AcknowledgeEvent 确认告警事件
func (s *Service) AcknowledgeEvent(ctx context.Context, companyID, eventID string) error {
	result := s.db.WithContext(ctx).Model(&AlertEvent{}).
		Where("id = ? AND company_id = ?", eventID, companyID).
		Update("acknowledged", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrEventNotFound
	}
	return nil
}

// AttachRisk 将计算出的风险分数/等级/建议写回事件（原地更新）
// suggestions 为空时保留事件上已有的建议
func (s *Service) AttachRisk(ctx context.Context, companyID, eventID string, score float64, level, suggestions string) error {
	updates := map[string]interface{}{
		"risk_score": score,
		"risk_level": level,
	}
	if suggestions != "" {
		updates["ai_suggested_actions"] = suggestions
	}

	result := s.db.WithContext(ctx).Model(&AlertEvent{}).
		Where("id = ? AND company_id = ?", eventID, companyID).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrEventNotFound
	}
	return nil
}

// AttachRiskToLatest 将综合风险写回该用户同类型激活告警的最新事件
// 无匹配告警或事件时返回对应的未找到错误，由调用方决定是否忽略
func (s *Service) AttachRiskToLatest(ctx context.Context, companyID string, alertType AlertType, userID string, score float64, level string) (*AlertEvent, error) {
	var alert Alert
	err := s.db.WithContext(ctx).
		Where("company_id = ? AND type = ? AND user_id = ? AND is_active = ?", companyID, alertType, userID, true).
		Order("created_at DESC").
		First(&alert).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAlertNotFound
		}
		return nil, err
	}

	var event AlertEvent
	err = s.db.WithContext(ctx).
		Where("alert_id = ? AND company_id = ?", alert.ID, companyID).
		Order("created_at DESC").
		First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}

	if err := s.AttachRisk(ctx, companyID, event.ID, score, level, ""); err != nil {
		return nil, err
	}
	event.RiskScore = &score
	event.RiskLevel = level
	return &event, nil
}

// AttachSuggestions 将生成的处置建议写回事件
func (s *Service) AttachSuggestions(ctx context.Context, companyID, eventID, suggestions string) error {
	result := s.db.WithContext(ctx).Model(&AlertEvent{}).
		Where("id = ? AND company_id = ?", eventID, companyID).
		Update("ai_suggested_actions", suggestions)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrEventNotFound
	}
	return nil
}

// AttachDocument 将生成的整改文书引用写回事件
func (s *Service) AttachDocument(ctx context.Context, companyID, eventID, document string) error {
	result := s.db.WithContext(ctx).Model(&AlertEvent{}).
		Where("id = ? AND company_id = ?", eventID, companyID).
		Update("corrective_action_document", document)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrEventNotFound
	}
	return nil
}

// AutoMigrate 自动迁移表结构
func (s *Service) AutoMigrate() error {
	return s.db.AutoMigrate(&Alert{}, &AlertEvent{})
}
