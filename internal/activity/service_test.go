package activity

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

func setupActivityTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:activity_service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&ActivityEvent{}))
	return db
}

func TestCount(t *testing.T) {
	ctx := context.Background()
	svc := NewService(setupActivityTestDB(t))
	companyID := uuid.New().String()
	userID := uuid.New().String()
	departmentID := uuid.New().String()
	ts := time.Date(2024, time.March, 10, 10, 0, 0, 0, time.UTC)

	seed := func(userID, departmentID string, activityType ActivityType, ts time.Time) {
		require.NoError(t, svc.Record(ctx, &ActivityEvent{
			CompanyID:    companyID,
			UserID:       userID,
			DepartmentID: departmentID,
			ActivityType: activityType,
			Timestamp:    ts,
		}))
	}

	seed(userID, departmentID, TypeCall, ts)
	seed(userID, departmentID, TypeCall, ts.Add(time.Hour))
	seed(userID, departmentID, TypeEmail, ts)
	seed(uuid.New().String(), departmentID, TypeCall, ts)
	// 窗口外
	seed(userID, departmentID, TypeCall, ts.AddDate(0, -2, 0))

	from := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, time.March, 31, 23, 59, 59, 0, time.UTC)

	t.Run("按用户与类型过滤", func(t *testing.T) {
		count, err := svc.Count(ctx, CountFilter{
			CompanyID:    companyID,
			UserID:       userID,
			ActivityType: TypeCall,
			From:         from,
			To:           to,
		})
		require.NoError(t, err)
		require.Equal(t, int64(2), count)
	})

	t.Run("按部门聚合", func(t *testing.T) {
		count, err := svc.Count(ctx, CountFilter{
			CompanyID:    companyID,
			DepartmentID: departmentID,
			ActivityType: TypeCall,
			From:         from,
			To:           to,
		})
		require.NoError(t, err)
		require.Equal(t, int64(3), count)
	})

	t.Run("部门去重用户", func(t *testing.T) {
		users, err := svc.DistinctUsers(ctx, companyID, departmentID, from, to)
		require.NoError(t, err)
		require.Len(t, users, 2)
	})
}

func TestCountCrossDepartmentAccess(t *testing.T) {
	ctx := context.Background()
	svc := NewService(setupActivityTestDB(t))
	companyID := uuid.New().String()
	userID := uuid.New().String()
	homeDept := uuid.New().String()
	otherDept := uuid.New().String()
	now := time.Now()

	record := func(departmentID string, activityType ActivityType) {
		require.NoError(t, svc.Record(ctx, &ActivityEvent{
			CompanyID:    companyID,
			UserID:       userID,
			DepartmentID: departmentID,
			ActivityType: activityType,
			Timestamp:    now,
		}))
	}

	record(homeDept, TypeSystemAccess)  // 本部门访问不计
	record(otherDept, TypeSystemAccess) // 跨部门访问计入
	record(otherDept, TypeCall)         // 非访问类事件不计

	count, err := svc.CountCrossDepartmentAccess(ctx, companyID, userID, homeDept,
		now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
}
