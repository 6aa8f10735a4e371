package medical

import (
	"context"
	"fmt"
	"testing"
	"time"

	"hrguard/internal/alerts"
	"hrguard/internal/config"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupMedicalTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:medical_service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&MedicalCertificate{}, &MedicalLeaveExtension{}, &alerts.Alert{}, &alerts.AlertEvent{}))
	return db
}

func newMedicalService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := setupMedicalTestDB(t)
	return NewService(db, alerts.NewService(db), config.DefaultRiskConfig()), db
}

// recentWeekday 返回最近的第 weeksAgo 周内落在 weekday 的日期
// 模式检测的回溯窗口基于当前时间，测试数据必须落在窗口内
func recentWeekday(weekday time.Weekday, weeksAgo int) time.Time {
	d := time.Now().AddDate(0, 0, -7*weeksAgo)
	for d.Weekday() != weekday {
		d = d.AddDate(0, 0, -1)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}

func registerCert(t *testing.T, svc *Service, companyID, userID string, start time.Time, days int, crm string) *MedicalCertificate {
	t.Helper()
	cert, err := svc.RegisterCertificate(context.Background(), CertificateInput{
		CompanyID: companyID,
		UserID:    userID,
		IssueDate: start,
		StartDate: start,
		EndDate:   start.AddDate(0, 0, days-1),
		DaysCount: days,
		DoctorCRM: crm,
	})
	require.NoError(t, err)
	return cert
}

func TestRequestExtension(t *testing.T) {
	ctx := context.Background()

	t.Run("短证明不可延长", func(t *testing.T) {
		svc, _ := newMedicalService(t)
		companyID := uuid.New().String()
		cert := registerCert(t, svc, companyID, uuid.New().String(), recentWeekday(time.Tuesday, 1), 2, "")

		outcome, err := svc.RequestExtension(ctx, companyID, cert.ID, 5)
		require.NoError(t, err)
		require.False(t, outcome.Success)
		require.Contains(t, outcome.Message, "não é elegível")
	})

	t.Run("合格证明创建待审延长", func(t *testing.T) {
		svc, _ := newMedicalService(t)
		companyID := uuid.New().String()
		cert := registerCert(t, svc, companyID, uuid.New().String(), recentWeekday(time.Tuesday, 1), 4, "")

		outcome, err := svc.RequestExtension(ctx, companyID, cert.ID, 5)
		require.NoError(t, err)
		require.True(t, outcome.Success)
		require.Equal(t, StatusPendente, outcome.Extension.Status)
		require.Equal(t, 5, outcome.Extension.ExtensionDays)
	})

	t.Run("同一证明二次申请被拒", func(t *testing.T) {
		svc, _ := newMedicalService(t)
		companyID := uuid.New().String()
		cert := registerCert(t, svc, companyID, uuid.New().String(), recentWeekday(time.Tuesday, 1), 4, "")

		first, err := svc.RequestExtension(ctx, companyID, cert.ID, 5)
		require.NoError(t, err)
		require.True(t, first.Success)

		second, err := svc.RequestExtension(ctx, companyID, cert.ID, 3)
		require.NoError(t, err)
		require.False(t, second.Success)
		require.Contains(t, second.Message, "já existe")
	})

	t.Run("证明不存在报错", func(t *testing.T) {
		svc, _ := newMedicalService(t)
		_, err := svc.RequestExtension(ctx, uuid.New().String(), uuid.New().String(), 5)
		require.ErrorIs(t, err, ErrCertificateNotFound)
	})
}

func TestExtensionDecision(t *testing.T) {
	ctx := context.Background()

	requestExtension := func(t *testing.T, svc *Service, companyID string) *MedicalLeaveExtension {
		t.Helper()
		cert := registerCert(t, svc, companyID, uuid.New().String(), recentWeekday(time.Tuesday, 1), 4, "")
		outcome, err := svc.RequestExtension(ctx, companyID, cert.ID, 5)
		require.NoError(t, err)
		require.True(t, outcome.Success)
		return outcome.Extension
	}

	t.Run("批准流转状态", func(t *testing.T) {
		svc, _ := newMedicalService(t)
		companyID := uuid.New().String()
		ext := requestExtension(t, svc, companyID)
		approverID := uuid.New().String()

		approved, err := svc.ApproveExtension(ctx, companyID, ext.ID, approverID)
		require.NoError(t, err)
		require.Equal(t, StatusAprovado, approved.Status)
		require.Equal(t, approverID, approved.ApprovedBy)
	})

	t.Run("拒绝记录原因", func(t *testing.T) {
		svc, _ := newMedicalService(t)
		companyID := uuid.New().String()
		ext := requestExtension(t, svc, companyID)

		rejected, err := svc.RejectExtension(ctx, companyID, ext.ID, "sem justificativa médica")
		require.NoError(t, err)
		require.Equal(t, StatusRejeitado, rejected.Status)
		require.Equal(t, "sem justificativa médica", rejected.RejectionReason)
	})

	t.Run("已裁决的延长不可再次裁决", func(t *testing.T) {
		svc, _ := newMedicalService(t)
		companyID := uuid.New().String()
		ext := requestExtension(t, svc, companyID)

		_, err := svc.ApproveExtension(ctx, companyID, ext.ID, uuid.New().String())
		require.NoError(t, err)
		_, err = svc.RejectExtension(ctx, companyID, ext.ID, "tarde demais")
		require.ErrorIs(t, err, ErrAlreadyDecided)
	})

	t.Run("延长不存在报错", func(t *testing.T) {
		svc, _ := newMedicalService(t)
		_, err := svc.ApproveExtension(ctx, uuid.New().String(), uuid.New().String(), uuid.New().String())
		require.ErrorIs(t, err, ErrExtensionNotFound)
	})
}

func TestSuspiciousPatternDetection(t *testing.T) {
	ctx := context.Background()

	approveFor := func(t *testing.T, svc *Service, companyID string, cert *MedicalCertificate) {
		t.Helper()
		outcome, err := svc.RequestExtension(ctx, companyID, cert.ID, 3)
		require.NoError(t, err)
		require.True(t, outcome.Success)
		_, err = svc.ApproveExtension(ctx, companyID, outcome.Extension.ID, uuid.New().String())
		require.NoError(t, err)
	}

	t.Run("周五开头的证明命中emendação模式", func(t *testing.T) {
		svc, db := newMedicalService(t)
		companyID := uuid.New().String()
		userID := uuid.New().String()

		// 三张周五开头的证明，数量本身未超限但模式可疑
		for week := 1; week <= 3; week++ {
			cert := registerCert(t, svc, companyID, userID, recentWeekday(time.Friday, week), 4, "")
			approveFor(t, svc, companyID, cert)
		}

		findings, err := svc.DetectSuspiciousPatterns(ctx, companyID, userID)
		require.NoError(t, err)
		require.Equal(t, 3, findings.ExtensionCount)
		require.True(t, findings.Suspicious())
		require.Contains(t, findings.Patterns[0], "sexta/segunda")

		var created alerts.Alert
		require.NoError(t, db.Where("company_id = ? AND type = ?", companyID, alerts.TypeMedicalLeavePattern).First(&created).Error)
		require.Equal(t, alerts.PriorityAlta, created.Priority, "可疑模式应为 alta 优先级")
		require.Equal(t, userID, created.UserID)

		var count int64
		require.NoError(t, db.Model(&alerts.Alert{}).Where("company_id = ?", companyID).Count(&count).Error)
		require.Equal(t, int64(1), count, "同一用户应只有一条模式告警")
	})

	t.Run("同一医生CRM模式", func(t *testing.T) {
		svc, _ := newMedicalService(t)
		companyID := uuid.New().String()
		userID := uuid.New().String()

		for week := 1; week <= 3; week++ {
			cert := registerCert(t, svc, companyID, userID, recentWeekday(time.Tuesday, week), 4, "CRM-12345")
			approveFor(t, svc, companyID, cert)
		}

		findings, err := svc.DetectSuspiciousPatterns(ctx, companyID, userID)
		require.NoError(t, err)
		require.True(t, findings.Suspicious())
		require.Contains(t, findings.Patterns[0], "CRM-12345")
	})

	t.Run("无模式且次数未超限不告警", func(t *testing.T) {
		svc, db := newMedicalService(t)
		companyID := uuid.New().String()
		userID := uuid.New().String()

		cert := registerCert(t, svc, companyID, userID, recentWeekday(time.Tuesday, 1), 4, "")
		approveFor(t, svc, companyID, cert)

		findings, err := svc.DetectSuspiciousPatterns(ctx, companyID, userID)
		require.NoError(t, err)
		require.False(t, findings.Suspicious())

		var count int64
		require.NoError(t, db.Model(&alerts.Alert{}).Where("company_id = ?", companyID).Count(&count).Error)
		require.Zero(t, count)
	})

	t.Run("仅已批准的延长计入模式检测", func(t *testing.T) {
		svc, _ := newMedicalService(t)
		companyID := uuid.New().String()
		userID := uuid.New().String()

		// 两张周五证明但延长被拒绝
		for week := 1; week <= 2; week++ {
			cert := registerCert(t, svc, companyID, userID, recentWeekday(time.Friday, week), 4, "")
			outcome, err := svc.RequestExtension(ctx, companyID, cert.ID, 3)
			require.NoError(t, err)
			_, err = svc.RejectExtension(ctx, companyID, outcome.Extension.ID, "sem justificativa")
			require.NoError(t, err)
		}

		findings, err := svc.DetectSuspiciousPatterns(ctx, companyID, userID)
		require.NoError(t, err)
		require.Zero(t, findings.ExtensionCount)
		require.False(t, findings.Suspicious())
	})
}

func TestPatternScan(t *testing.T) {
	ctx := context.Background()
	svc, _ := newMedicalService(t)
	companyID := uuid.New().String()

	for i := 0; i < 2; i++ {
		userID := uuid.New().String()
		cert := registerCert(t, svc, companyID, userID, recentWeekday(time.Tuesday, 1), 4, "")
		outcome, err := svc.RequestExtension(ctx, companyID, cert.ID, 3)
		require.NoError(t, err)
		_, err = svc.ApproveExtension(ctx, companyID, outcome.Extension.ID, uuid.New().String())
		require.NoError(t, err)
	}

	scanned, err := svc.PatternScan(ctx, companyID)
	require.NoError(t, err)
	require.Equal(t, 2, scanned)
}

func TestCertificateDays(t *testing.T) {
	ctx := context.Background()
	svc, _ := newMedicalService(t)
	companyID := uuid.New().String()
	userID := uuid.New().String()

	registerCert(t, svc, companyID, userID, recentWeekday(time.Tuesday, 1), 4, "")
	registerCert(t, svc, companyID, userID, recentWeekday(time.Tuesday, 2), 7, "")

	total, err := svc.CertificateDays(ctx, companyID, userID,
		time.Now().AddDate(0, -1, 0), time.Now())
	require.NoError(t, err)
	require.Equal(t, 11, total)
}

func TestPatternScanCoversAllCompaniesWhenUnscoped(t *testing.T) {
	ctx := context.Background()
	svc, _ := newMedicalService(t)

	for i := 0; i < 2; i++ {
		companyID := uuid.New().String()
		cert := registerCert(t, svc, companyID, uuid.New().String(), recentWeekday(time.Tuesday, 1), 4, "")
		outcome, err := svc.RequestExtension(ctx, companyID, cert.ID, 3)
		require.NoError(t, err)
		_, err = svc.ApproveExtension(ctx, companyID, outcome.Extension.ID, uuid.New().String())
		require.NoError(t, err)
	}

	scanned, err := svc.PatternScan(ctx, "")
	require.NoError(t, err)
	require.Equal(t, 2, scanned, "空 companyID 应覆盖全部公司的用户")
}
