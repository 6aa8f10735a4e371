package alerts

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupAlertsTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:alerts_service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Alert{}, &AlertEvent{}))
	return db
}

func TestNaturalKey(t *testing.T) {
	t.Run("空键无效", func(t *testing.T) {
		require.False(t, NaturalKey{}.Valid())
	})

	t.Run("序列化确定且字段有序", func(t *testing.T) {
		periodStart := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
		key := NaturalKey{GoalID: "g-1", PeriodStart: &periodStart}
		require.Equal(t, "goal:g-1|period:2024-03-01", key.String())
		require.Equal(t, key.String(), key.String())
	})

	t.Run("仅用户键", func(t *testing.T) {
		require.Equal(t, "user:u-1", NaturalKey{UserID: "u-1"}.String())
	})
}

func TestEnsureAlert(t *testing.T) {
	ctx := context.Background()

	t.Run("首次触发创建告警和事件", func(t *testing.T) {
		svc := NewService(setupAlertsTestDB(t))
		companyID := uuid.New().String()
		userID := uuid.New().String()

		result, err := svc.EnsureAlert(ctx, EnsureInput{
			CompanyID:   companyID,
			Type:        TypeTimeLogRecurrence,
			Title:       "Reincidência de irregularidades no ponto",
			Description: "3 registros irregulares",
			Priority:    PriorityMedia,
			Key:         NaturalKey{UserID: userID},
			TriggeredBy: map[string]any{"occurrences": 3},
		})
		require.NoError(t, err)
		require.True(t, result.Created)
		require.True(t, result.Alert.IsActive)
		require.NotNil(t, result.Event)
		require.Equal(t, result.Alert.ID, result.Event.AlertID)
	})

	t.Run("同一自然键去重", func(t *testing.T) {
		svc := NewService(setupAlertsTestDB(t))
		companyID := uuid.New().String()
		userID := uuid.New().String()
		input := EnsureInput{
			CompanyID: companyID,
			Type:      TypeTimeLogRecurrence,
			Title:     "Reincidência",
			Priority:  PriorityMedia,
			Key:       NaturalKey{UserID: userID},
		}

		first, err := svc.EnsureAlert(ctx, input)
		require.NoError(t, err)
		require.True(t, first.Created)

		second, err := svc.EnsureAlert(ctx, input)
		require.NoError(t, err)
		require.False(t, second.Created)
		require.Equal(t, first.Alert.ID, second.Alert.ID)
	})

	t.Run("空自然键被拒", func(t *testing.T) {
		svc := NewService(setupAlertsTestDB(t))
		_, err := svc.EnsureAlert(ctx, EnsureInput{
			CompanyID: uuid.New().String(),
			Type:      TypeTimeLogRecurrence,
			Title:     "sem chave",
			Priority:  PriorityMedia,
		})
		require.ErrorIs(t, err, ErrInvalidKey)
	})

	t.Run("不同公司相同键互不干扰", func(t *testing.T) {
		svc := NewService(setupAlertsTestDB(t))
		userID := uuid.New().String()

		for i := 0; i < 2; i++ {
			result, err := svc.EnsureAlert(ctx, EnsureInput{
				CompanyID: uuid.New().String(),
				Type:      TypeTimeLogRecurrence,
				Title:     "Reincidência",
				Priority:  PriorityMedia,
				Key:       NaturalKey{UserID: userID},
			})
			require.NoError(t, err)
			require.True(t, result.Created, "不同公司应各自创建告警")
		}
	})
}

func TestDeactivateAndRecreate(t *testing.T) {
	ctx := context.Background()

	t.Run("递归类告警停用后可重新创建", func(t *testing.T) {
		svc := NewService(setupAlertsTestDB(t))
		companyID := uuid.New().String()
		userID := uuid.New().String()
		input := EnsureInput{
			CompanyID: companyID,
			Type:      TypeTimeLogRecurrence,
			Title:     "Reincidência",
			Priority:  PriorityMedia,
			Key:       NaturalKey{UserID: userID},
		}

		first, err := svc.EnsureAlert(ctx, input)
		require.NoError(t, err)
		require.True(t, first.Created)

		require.NoError(t, svc.Deactivate(ctx, companyID, first.Alert.ID, uuid.New().String()))

		// 停用释放去重槽位，同一条件再次触发创建新告警
		second, err := svc.EnsureAlert(ctx, input)
		require.NoError(t, err)
		require.True(t, second.Created)
		require.NotEqual(t, first.Alert.ID, second.Alert.ID)
	})

	t.Run("一次性类告警停用后不再重建", func(t *testing.T) {
		svc := NewService(setupAlertsTestDB(t))
		companyID := uuid.New().String()
		refID := uuid.New().String()
		input := EnsureInput{
			CompanyID: companyID,
			Type:      TypeReimbursementFraud,
			Title:     "Fraude em reembolso",
			Priority:  PriorityAlta,
			Key:       NaturalKey{ReferenceID: refID},
		}

		first, err := svc.EnsureAlert(ctx, input)
		require.NoError(t, err)
		require.True(t, first.Created)

		require.NoError(t, svc.Deactivate(ctx, companyID, first.Alert.ID, uuid.New().String()))

		second, err := svc.EnsureAlert(ctx, input)
		require.NoError(t, err)
		require.False(t, second.Created, "一次性类告警不论激活状态都去重")
		require.Equal(t, first.Alert.ID, second.Alert.ID)
	})

	t.Run("重复停用报错", func(t *testing.T) {
		svc := NewService(setupAlertsTestDB(t))
		companyID := uuid.New().String()

		result, err := svc.EnsureAlert(ctx, EnsureInput{
			CompanyID: companyID,
			Type:      TypeOvertime,
			Title:     "Horas extras",
			Priority:  PriorityMedia,
			Key:       NaturalKey{ReferenceID: uuid.New().String()},
		})
		require.NoError(t, err)

		operatorID := uuid.New().String()
		require.NoError(t, svc.Deactivate(ctx, companyID, result.Alert.ID, operatorID))
		err = svc.Deactivate(ctx, companyID, result.Alert.ID, operatorID)
		require.ErrorIs(t, err, ErrAlreadyInactive)
	})

	t.Run("停用不存在的告警报错", func(t *testing.T) {
		svc := NewService(setupAlertsTestDB(t))
		err := svc.Deactivate(ctx, uuid.New().String(), uuid.New().String(), uuid.New().String())
		require.ErrorIs(t, err, ErrAlertNotFound)
	})
}

func TestEvents(t *testing.T) {
	ctx := context.Background()
	svc := NewService(setupAlertsTestDB(t))
	companyID := uuid.New().String()

	result, err := svc.EnsureAlert(ctx, EnsureInput{
		CompanyID: companyID,
		Type:      TypeTimeLogRecurrence,
		Title:     "Reincidência",
		Priority:  PriorityMedia,
		Key:       NaturalKey{UserID: uuid.New().String()},
	})
	require.NoError(t, err)

	t.Run("追加事件", func(t *testing.T) {
		event, err := svc.AppendEvent(ctx, companyID, result.Alert.ID, map[string]any{"extra": true})
		require.NoError(t, err)
		require.Equal(t, result.Alert.ID, event.AlertID)

		events, err := svc.ListEvents(ctx, companyID, result.Alert.ID)
		require.NoError(t, err)
		require.Len(t, events, 2)
	})

	t.Run("确认事件", func(t *testing.T) {
		require.NoError(t, svc.AcknowledgeEvent(ctx, companyID, result.Event.ID))
		saved, err := svc.GetEvent(ctx, companyID, result.Event.ID)
		require.NoError(t, err)
		require.True(t, saved.Acknowledged)
	})

	t.Run("写回风险与文书", func(t *testing.T) {
		require.NoError(t, svc.AttachRisk(ctx, companyID, result.Event.ID, 72.5, "alto", "revisar jornada"))
		require.NoError(t, svc.AttachDocument(ctx, companyID, result.Event.ID, "ADVERTÊNCIA FORMAL ..."))

		saved, err := svc.GetEvent(ctx, companyID, result.Event.ID)
		require.NoError(t, err)
		require.NotNil(t, saved.RiskScore)
		require.Equal(t, 72.5, *saved.RiskScore)
		require.Equal(t, "alto", saved.RiskLevel)
		require.Equal(t, "revisar jornada", saved.AISuggestedActions)
		require.NotEmpty(t, saved.CorrectiveActionDocument)
	})

	t.Run("操作不存在的事件报错", func(t *testing.T) {
		require.ErrorIs(t, svc.AcknowledgeEvent(ctx, companyID, uuid.New().String()), ErrEventNotFound)
		require.ErrorIs(t, svc.AttachRisk(ctx, companyID, uuid.New().String(), 1, "baixo", ""), ErrEventNotFound)
	})
}

func TestAttachRiskToLatest(t *testing.T) {
	ctx := context.Background()
	svc := NewService(setupAlertsTestDB(t))
	companyID := uuid.New().String()
	userID := uuid.New().String()

	result, err := svc.EnsureAlert(ctx, EnsureInput{
		CompanyID: companyID,
		Type:      TypeTimeLogRecurrence,
		Title:     "Reincidência",
		Priority:  PriorityMedia,
		Key:       NaturalKey{UserID: userID},
	})
	require.NoError(t, err)

	t.Run("写回最新事件且保留既有建议", func(t *testing.T) {
		time.Sleep(10 * time.Millisecond)
		latest, err := svc.AppendEvent(ctx, companyID, result.Alert.ID, map[string]any{"extra": true})
		require.NoError(t, err)
		require.NoError(t, svc.AttachSuggestions(ctx, companyID, latest.ID, "revisar jornada"))

		event, err := svc.AttachRiskToLatest(ctx, companyID, TypeTimeLogRecurrence, userID, 88, "grave")
		require.NoError(t, err)
		require.Equal(t, latest.ID, event.ID, "应命中告警下最新的事件")

		saved, err := svc.GetEvent(ctx, companyID, event.ID)
		require.NoError(t, err)
		require.NotNil(t, saved.RiskScore)
		require.Equal(t, 88.0, *saved.RiskScore)
		require.Equal(t, "grave", saved.RiskLevel)
		require.Equal(t, "revisar jornada", saved.AISuggestedActions, "写回分数不应清掉既有建议")
	})

	t.Run("无匹配告警报错", func(t *testing.T) {
		_, err := svc.AttachRiskToLatest(ctx, companyID, TypeOvertime, userID, 50, "medio")
		require.ErrorIs(t, err, ErrAlertNotFound)
	})

	t.Run("停用的告警不参与写回", func(t *testing.T) {
		require.NoError(t, svc.Deactivate(ctx, companyID, result.Alert.ID, userID))
		_, err := svc.AttachRiskToLatest(ctx, companyID, TypeTimeLogRecurrence, userID, 30, "baixo")
		require.ErrorIs(t, err, ErrAlertNotFound)
	})
}
