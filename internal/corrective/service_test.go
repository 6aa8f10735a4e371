package corrective

import (
	"context"
	"fmt"
	"testing"
	"time"

	"hrguard/internal/alerts"
	"hrguard/pkg/aiinterface"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"gorm.io/gorm"
)

// fakeModelClient 回放固定文本的生成客户端
type fakeModelClient struct {
	calls int
	err   error
}

func (f *fakeModelClient) ChatCompletion(ctx context.Context, req *aiinterface.ChatCompletionRequest) (*aiinterface.ChatCompletionResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &aiinterface.ChatCompletionResponse{
		ID:      fmt.Sprintf("fake-%d", f.calls),
		Model:   "fake",
		Content: fmt.Sprintf("conteúdo gerado %d", f.calls),
	}, nil
}

func (f *fakeModelClient) Name() string { return "fake" }
func (f *fakeModelClient) Close() error { return nil }

func setupCorrectiveTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:corrective_service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&CorrectiveAction{}, &alerts.Alert{}, &alerts.AlertEvent{}))
	return db
}

// seedAlertEvent 创建一个告警及其首个事件，返回生成输入的基础字段
func seedAlertEvent(t *testing.T, alertSvc *alerts.Service, companyID string) (alertID, eventID, userID string) {
	t.Helper()
	userID = uuid.New().String()
	result, err := alertSvc.EnsureAlert(context.Background(), alerts.EnsureInput{
		CompanyID: companyID,
		Type:      alerts.TypeTimeLogRecurrence,
		Title:     "Reincidência de irregularidades no ponto",
		Priority:  alerts.PriorityMedia,
		Key:       alerts.NaturalKey{UserID: userID},
	})
	require.NoError(t, err)
	require.True(t, result.Created)
	return result.Alert.ID, result.Event.ID, userID
}

func TestShouldTrigger(t *testing.T) {
	require.False(t, ShouldTrigger("baixo"))
	require.True(t, ShouldTrigger("medio"))
	require.True(t, ShouldTrigger("alto"))
	require.True(t, ShouldTrigger("grave"))
	require.False(t, ShouldTrigger(""))
}

func TestGenerate(t *testing.T) {
	ctx := context.Background()

	t.Run("低风险不触发生成", func(t *testing.T) {
		db := setupCorrectiveTestDB(t)
		model := &fakeModelClient{}
		svc := NewService(db, alerts.NewService(db), model)

		outcome, err := svc.Generate(ctx, GenerateInput{
			AlertID:      uuid.New().String(),
			AlertEventID: uuid.New().String(),
			UserID:       uuid.New().String(),
			CompanyID:    uuid.New().String(),
			RiskLevel:    "baixo",
		})
		require.NoError(t, err)
		require.False(t, outcome.Triggered)
		require.Zero(t, model.calls, "门槛之下不应调用生成模型")
	})

	t.Run("达到门槛生成文书并写回事件", func(t *testing.T) {
		db := setupCorrectiveTestDB(t)
		alertSvc := alerts.NewService(db)
		model := &fakeModelClient{}
		svc := NewService(db, alertSvc, model)
		companyID := uuid.New().String()
		alertID, eventID, userID := seedAlertEvent(t, alertSvc, companyID)

		outcome, err := svc.Generate(ctx, GenerateInput{
			AlertID:        alertID,
			AlertEventID:   eventID,
			UserID:         userID,
			CompanyID:      companyID,
			RiskLevel:      "alto",
			RiskFactors:    []string{"atrasos recorrentes"},
			UserName:       "Maria Silva",
			UserDepartment: "Financeiro",
			OccurrenceType: "ponto",
		})
		require.NoError(t, err)
		require.True(t, outcome.Triggered)
		require.True(t, outcome.Created)
		require.Equal(t, StatusPendente, outcome.Action.Status)
		require.NotEmpty(t, outcome.Action.DocumentContent)
		require.NotEmpty(t, outcome.Action.AISuggestions)
		require.Equal(t, 2, model.calls, "文书与建议各一次生成调用")

		event, err := alertSvc.GetEvent(ctx, companyID, eventID)
		require.NoError(t, err)
		require.Equal(t, outcome.Action.ID, event.CorrectiveActionDocument)
		require.NotEmpty(t, event.AISuggestedActions)
	})

	t.Run("同一事件重复生成幂等", func(t *testing.T) {
		db := setupCorrectiveTestDB(t)
		alertSvc := alerts.NewService(db)
		model := &fakeModelClient{}
		svc := NewService(db, alertSvc, model)
		companyID := uuid.New().String()
		alertID, eventID, userID := seedAlertEvent(t, alertSvc, companyID)

		input := GenerateInput{
			AlertID:      alertID,
			AlertEventID: eventID,
			UserID:       userID,
			CompanyID:    companyID,
			RiskLevel:    "grave",
		}

		first, err := svc.Generate(ctx, input)
		require.NoError(t, err)
		require.True(t, first.Created)
		callsAfterFirst := model.calls

		second, err := svc.Generate(ctx, input)
		require.NoError(t, err)
		require.False(t, second.Created)
		require.Equal(t, first.Action.ID, second.Action.ID)
		require.Equal(t, callsAfterFirst, model.calls, "重复触发不应再次调用生成模型")
	})

	t.Run("事件不存在报错", func(t *testing.T) {
		db := setupCorrectiveTestDB(t)
		svc := NewService(db, alerts.NewService(db), &fakeModelClient{})

		_, err := svc.Generate(ctx, GenerateInput{
			AlertID:      uuid.New().String(),
			AlertEventID: uuid.New().String(),
			UserID:       uuid.New().String(),
			CompanyID:    uuid.New().String(),
			RiskLevel:    "alto",
		})
		require.ErrorIs(t, err, alerts.ErrEventNotFound)
	})

	t.Run("模型未配置返回类型化错误", func(t *testing.T) {
		db := setupCorrectiveTestDB(t)
		alertSvc := alerts.NewService(db)
		svc := NewService(db, alertSvc, nil)
		companyID := uuid.New().String()
		alertID, eventID, userID := seedAlertEvent(t, alertSvc, companyID)

		_, err := svc.Generate(ctx, GenerateInput{
			AlertID:      alertID,
			AlertEventID: eventID,
			UserID:       userID,
			CompanyID:    companyID,
			RiskLevel:    "alto",
		})
		require.Error(t, err)
		require.Equal(t, aiinterface.ErrorTypeAuth, aiinterface.TypeOf(err))
	})

	t.Run("模型错误原样上抛", func(t *testing.T) {
		db := setupCorrectiveTestDB(t)
		alertSvc := alerts.NewService(db)
		modelErr := &aiinterface.ClientError{Type: aiinterface.ErrorTypeRateLimit, Message: "rate limited"}
		svc := NewService(db, alertSvc, &fakeModelClient{err: modelErr})
		companyID := uuid.New().String()
		alertID, eventID, userID := seedAlertEvent(t, alertSvc, companyID)

		_, err := svc.Generate(ctx, GenerateInput{
			AlertID:      alertID,
			AlertEventID: eventID,
			UserID:       userID,
			CompanyID:    companyID,
			RiskLevel:    "alto",
		})
		require.Error(t, err)
		require.Equal(t, aiinterface.ErrorTypeRateLimit, aiinterface.TypeOf(err))

		// 生成失败不落库
		var count int64
		require.NoError(t, db.Model(&CorrectiveAction{}).Count(&count).Error)
		require.Zero(t, count)
	})
}

func TestStatusTransitions(t *testing.T) {
	ctx := context.Background()

	generate := func(t *testing.T) (*Service, string, string) {
		t.Helper()
		db := setupCorrectiveTestDB(t)
		alertSvc := alerts.NewService(db)
		svc := NewService(db, alertSvc, &fakeModelClient{})
		companyID := uuid.New().String()
		alertID, eventID, userID := seedAlertEvent(t, alertSvc, companyID)

		outcome, err := svc.Generate(ctx, GenerateInput{
			AlertID:      alertID,
			AlertEventID: eventID,
			UserID:       userID,
			CompanyID:    companyID,
			RiskLevel:    "alto",
		})
		require.NoError(t, err)
		return svc, companyID, outcome.Action.ID
	}

	t.Run("完整流转 pendente→entregue→assinado", func(t *testing.T) {
		svc, companyID, actionID := generate(t)

		delivered, err := svc.MarkDelivered(ctx, companyID, actionID)
		require.NoError(t, err)
		require.Equal(t, StatusEntregue, delivered.Status)
		require.NotNil(t, delivered.DeliveredAt)

		signed, err := svc.MarkSigned(ctx, companyID, actionID)
		require.NoError(t, err)
		require.Equal(t, StatusAssinado, signed.Status)
		require.NotNil(t, signed.SignedAt)
	})

	t.Run("跳过交付直接签署非法", func(t *testing.T) {
		svc, companyID, actionID := generate(t)
		_, err := svc.MarkSigned(ctx, companyID, actionID)
		require.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("重复交付非法", func(t *testing.T) {
		svc, companyID, actionID := generate(t)
		_, err := svc.MarkDelivered(ctx, companyID, actionID)
		require.NoError(t, err)
		_, err = svc.MarkDelivered(ctx, companyID, actionID)
		require.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("文书不存在报错", func(t *testing.T) {
		svc, companyID, _ := generate(t)
		_, err := svc.MarkDelivered(ctx, companyID, uuid.New().String())
		require.ErrorIs(t, err, ErrActionNotFound)
	})
}

// countingTracerProvider 统计 Span 创建次数的追踪实现
type countingTracerProvider struct {
	noop.TracerProvider
	starts *int
}

func (p countingTracerProvider) Tracer(name string, opts ...trace.TracerOption) trace.Tracer {
	return countingTracer{starts: p.starts}
}

type countingTracer struct {
	noop.Tracer
	starts *int
}

func (t countingTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	*t.starts++
	return t.Tracer.Start(ctx, name, opts...)
}

func TestGenerateTracing(t *testing.T) {
	ctx := context.Background()
	db := setupCorrectiveTestDB(t)
	alertSvc := alerts.NewService(db)
	companyID := uuid.New().String()
	alertID, eventID, userID := seedAlertEvent(t, alertSvc, companyID)

	starts := 0
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(countingTracerProvider{starts: &starts})
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	svc := NewService(db, alertSvc, &fakeModelClient{})
	outcome, err := svc.Generate(ctx, GenerateInput{
		AlertID:        alertID,
		AlertEventID:   eventID,
		UserID:         userID,
		CompanyID:      companyID,
		RiskLevel:      "alto",
		UserName:       "Maria Silva",
		UserDepartment: "Financeiro",
		OccurrenceType: "ponto",
	})
	require.NoError(t, err)
	require.True(t, outcome.Created)
	require.Equal(t, 3, starts, "生成流程与两次模型调用各对应一个 Span")
}
