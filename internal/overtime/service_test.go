package overtime

import (
	"context"
	"fmt"
	"testing"
	"time"

	"hrguard/internal/alerts"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupOvertimeTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:overtime_service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&OvertimeRecord{}, &alerts.Alert{}, &alerts.AlertEvent{}))
	return db
}

func newOvertimeService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := setupOvertimeTestDB(t)
	return NewService(db, alerts.NewService(db)), db
}

func TestNeedsAlert(t *testing.T) {
	cases := []struct {
		name   string
		record OvertimeRecord
		want   bool
	}{
		{"无加班无缺勤", OvertimeRecord{}, false},
		{"已批准的少量加班", OvertimeRecord{OvertimeHours: 3, HasOvertimeApproval: true}, false},
		{"未批准加班超过2小时", OvertimeRecord{OvertimeHours: 2.5}, true},
		{"未批准加班恰好2小时", OvertimeRecord{OvertimeHours: 2}, false},
		{"缺勤超过1小时", OvertimeRecord{UndertimeHours: 1.5}, true},
		{"缺勤恰好1小时", OvertimeRecord{UndertimeHours: 1}, false},
		{"已批准但超过4小时", OvertimeRecord{OvertimeHours: 5, HasOvertimeApproval: true}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			require.Equal(t, c.want, NeedsAlert(&c.record))
		})
	}
}

func TestSubmitAndCheck(t *testing.T) {
	ctx := context.Background()
	recordDate := time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)

	t.Run("超额加班一次性告警", func(t *testing.T) {
		svc, db := newOvertimeService(t)
		companyID := uuid.New().String()
		userID := uuid.New().String()

		result, err := svc.SubmitAndCheck(ctx, RecordInput{
			CompanyID:     companyID,
			UserID:        userID,
			RecordDate:    recordDate,
			OvertimeHours: 5,
		})
		require.NoError(t, err)
		require.True(t, result.AlertCreated)
		require.True(t, result.Record.HasAlert)

		var created alerts.Alert
		require.NoError(t, db.Where("company_id = ? AND type = ?", companyID, alerts.TypeOvertime).First(&created).Error)
		require.Equal(t, alerts.PriorityAlta, created.Priority, "超过4小时加班应为 alta 优先级")

		// 扫描不会对已告警的记录再次告警
		createdCount, err := svc.Sweep(ctx, companyID)
		require.NoError(t, err)
		require.Zero(t, createdCount)

		var alertCount int64
		require.NoError(t, db.Model(&alerts.Alert{}).Where("company_id = ?", companyID).Count(&alertCount).Error)
		require.Equal(t, int64(1), alertCount)
	})

	t.Run("未批准的中等加班为media优先级", func(t *testing.T) {
		svc, db := newOvertimeService(t)
		companyID := uuid.New().String()

		result, err := svc.SubmitAndCheck(ctx, RecordInput{
			CompanyID:     companyID,
			UserID:        uuid.New().String(),
			RecordDate:    recordDate,
			OvertimeHours: 3,
		})
		require.NoError(t, err)
		require.True(t, result.AlertCreated)

		var created alerts.Alert
		require.NoError(t, db.Where("company_id = ?", companyID).First(&created).Error)
		require.Equal(t, alerts.PriorityMedia, created.Priority)
	})

	t.Run("合规记录不告警", func(t *testing.T) {
		svc, _ := newOvertimeService(t)
		result, err := svc.SubmitAndCheck(ctx, RecordInput{
			CompanyID:           uuid.New().String(),
			UserID:              uuid.New().String(),
			RecordDate:          recordDate,
			OvertimeHours:       3,
			HasOvertimeApproval: true,
		})
		require.NoError(t, err)
		require.False(t, result.AlertCreated)
		require.False(t, result.Record.HasAlert)
	})
}

func TestSweep(t *testing.T) {
	ctx := context.Background()
	svc, db := newOvertimeService(t)
	companyID := uuid.New().String()

	// 直接落库两条未检测的记录，模拟检测前导入的历史数据
	for day := 1; day <= 2; day++ {
		record := &OvertimeRecord{
			ID:            uuid.New().String(),
			CompanyID:     companyID,
			UserID:        uuid.New().String(),
			RecordDate:    time.Date(2024, time.March, day, 0, 0, 0, 0, time.UTC),
			OvertimeHours: 3,
		}
		require.NoError(t, db.Create(record).Error)
	}
	// 一条合规记录
	require.NoError(t, db.Create(&OvertimeRecord{
		ID:                  uuid.New().String(),
		CompanyID:           companyID,
		UserID:              uuid.New().String(),
		RecordDate:          time.Date(2024, time.March, 3, 0, 0, 0, 0, time.UTC),
		OvertimeHours:       1,
		HasOvertimeApproval: true,
	}).Error)

	created, err := svc.Sweep(ctx, companyID)
	require.NoError(t, err)
	require.Equal(t, 2, created)

	// 再次扫描幂等
	created, err = svc.Sweep(ctx, companyID)
	require.NoError(t, err)
	require.Zero(t, created)
}

func TestCountUnapprovedMonths(t *testing.T) {
	ctx := context.Background()
	svc, db := newOvertimeService(t)
	companyID := uuid.New().String()
	userID := uuid.New().String()

	dates := []time.Time{
		time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2024, time.January, 20, 0, 0, 0, 0, time.UTC), // 同月重复
		time.Date(2024, time.February, 5, 0, 0, 0, 0, time.UTC),
	}
	for _, d := range dates {
		require.NoError(t, db.Create(&OvertimeRecord{
			ID:            uuid.New().String(),
			CompanyID:     companyID,
			UserID:        userID,
			RecordDate:    d,
			OvertimeHours: 1,
		}).Error)
	}
	// 已批准的加班不计入
	require.NoError(t, db.Create(&OvertimeRecord{
		ID:                  uuid.New().String(),
		CompanyID:           companyID,
		UserID:              userID,
		RecordDate:          time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC),
		OvertimeHours:       2,
		HasOvertimeApproval: true,
	}).Error)

	months, err := svc.CountUnapprovedMonths(ctx, companyID, userID,
		time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, time.March, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, 2, months)
}
