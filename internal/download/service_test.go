package download

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

func setupDownloadTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:download_service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&DownloadLogEntry{}, &alerts.Alert{}, &alerts.AlertEvent{}))
	return db
}

func TestScore(t *testing.T) {
	t.Run("普通文件低风险", func(t *testing.T) {
		result := Score(ScoreInput{FileName: "apresentacao_vendas.pptx"})
		require.Zero(t, result.SecurityScore)
		require.Zero(t, result.LGPDScore)
		require.Zero(t, result.LitigationScore)
		require.Equal(t, LevelBaixo, result.OverallLevel)
	})

	t.Run("敏感词文件名三项叠加", func(t *testing.T) {
		result := Score(ScoreInput{
			FileName:    "relatorio_confidencial_clientes.xlsx",
			IsSensitive: true,
			ContainsPII: true,
		})
		// sensível(30) + 风险格式(20) + confidencial(30)
		require.GreaterOrEqual(t, result.SecurityScore, 80)
		// PII(40) + confidencial 兜底(30) + 数据格式(20)
		require.GreaterOrEqual(t, result.LGPDScore, 90)
		// sensível(20) + PII(20)
		require.GreaterOrEqual(t, result.LitigationScore, 40)
		require.Equal(t, LevelCritico, result.OverallLevel)
		require.NotEmpty(t, result.Factors)
	})

	t.Run("法务关键词计入诉讼风险", func(t *testing.T) {
		result := Score(ScoreInput{FileName: "contrato_fornecedor.pdf"})
		require.Equal(t, 40, result.LitigationScore)
	})

	t.Run("分数封顶100", func(t *testing.T) {
		result := Score(ScoreInput{
			FileName:    "confidencial_cpf_processo.xlsx",
			IsSensitive: true,
			ContainsPII: true,
		})
		require.LessOrEqual(t, result.SecurityScore, 100)
		require.LessOrEqual(t, result.LGPDScore, 100)
		require.LessOrEqual(t, result.LitigationScore, 100)
	})

	t.Run("fileType优先于文件名后缀", func(t *testing.T) {
		result := Score(ScoreInput{FileName: "dados.txt", FileType: ".csv"})
		require.Equal(t, 20, result.SecurityScore)
	})
}

func TestLevelFor(t *testing.T) {
	require.Equal(t, LevelBaixo, levelFor(29))
	require.Equal(t, LevelMedio, levelFor(30))
	require.Equal(t, LevelMedio, levelFor(49))
	require.Equal(t, LevelAlto, levelFor(50))
	require.Equal(t, LevelAlto, levelFor(69))
	require.Equal(t, LevelCritico, levelFor(70))
	require.Equal(t, LevelCritico, levelFor(100))
}

func TestProcessDownload(t *testing.T) {
	ctx := context.Background()

	t.Run("高危下载落库并创建告警", func(t *testing.T) {
		db := setupDownloadTestDB(t)
		svc := NewService(db, alerts.NewService(db))
		companyID := uuid.New().String()
		userID := uuid.New().String()

		result, err := svc.ProcessDownload(ctx, ProcessInput{
			CompanyID:   companyID,
			UserID:      userID,
			FileName:    "relatorio_confidencial_clientes.xlsx",
			IsSensitive: true,
			ContainsPII: true,
		})
		require.NoError(t, err)
		require.Equal(t, LevelCritico, result.Entry.OverallRiskLevel)
		require.True(t, result.AlertCreated)

		var created alerts.Alert
		require.NoError(t, db.Where("company_id = ? AND type = ?", companyID, alerts.TypeDownloadRisk).First(&created).Error)
		require.Equal(t, alerts.PriorityAlta, created.Priority, "critico 等级应为 alta 优先级")
		require.Equal(t, result.Entry.ID, created.ReferenceID)
	})

	t.Run("低风险下载不产生告警", func(t *testing.T) {
		db := setupDownloadTestDB(t)
		svc := NewService(db, alerts.NewService(db))
		companyID := uuid.New().String()

		result, err := svc.ProcessDownload(ctx, ProcessInput{
			CompanyID: companyID,
			UserID:    uuid.New().String(),
			FileName:  "foto_equipe.png",
		})
		require.NoError(t, err)
		require.False(t, result.AlertCreated)

		var count int64
		require.NoError(t, db.Model(&alerts.Alert{}).Where("company_id = ?", companyID).Count(&count).Error)
		require.Zero(t, count)
	})

	t.Run("每次下载独立告警", func(t *testing.T) {
		db := setupDownloadTestDB(t)
		svc := NewService(db, alerts.NewService(db))
		companyID := uuid.New().String()
		userID := uuid.New().String()

		for i := 0; i < 2; i++ {
			result, err := svc.ProcessDownload(ctx, ProcessInput{
				CompanyID:   companyID,
				UserID:      userID,
				FileName:    "senha_producao.zip",
				IsSensitive: true,
			})
			require.NoError(t, err)
			require.True(t, result.AlertCreated, "同一文件的每次下载都是独立记录，各自告警")
		}

		var count int64
		require.NoError(t, db.Model(&alerts.Alert{}).
			Where("company_id = ? AND type = ?", companyID, alerts.TypeDownloadRisk).
			Count(&count).Error)
		require.Equal(t, int64(2), count)
	})
}

func TestCountSensitive(t *testing.T) {
	db := setupDownloadTestDB(t)
	svc := NewService(db, alerts.NewService(db))
	ctx := context.Background()
	companyID := uuid.New().String()
	userID := uuid.New().String()

	_, err := svc.ProcessDownload(ctx, ProcessInput{
		CompanyID: companyID, UserID: userID, FileName: "normal.png",
	})
	require.NoError(t, err)
	_, err = svc.ProcessDownload(ctx, ProcessInput{
		CompanyID: companyID, UserID: userID, FileName: "dados.csv", IsSensitive: true,
	})
	require.NoError(t, err)

	count, err := svc.CountSensitive(ctx, companyID, userID,
		time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, 1, count)
}
