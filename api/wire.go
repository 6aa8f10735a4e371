package api

import (
	"context"
	"fmt"

	activityHandlers "hrguard/api/handlers/activity"
	alertHandlers "hrguard/api/handlers/alerts"
	correctiveHandlers "hrguard/api/handlers/corrective"
	downloadHandlers "hrguard/api/handlers/download"
	goalHandlers "hrguard/api/handlers/goals"
	medicalHandlers "hrguard/api/handlers/medical"
	overtimeHandlers "hrguard/api/handlers/overtime"
	reimbursementHandlers "hrguard/api/handlers/reimbursement"
	riskHandlers "hrguard/api/handlers/risk"
	timelogHandlers "hrguard/api/handlers/timelog"

	"hrguard/internal/activity"
	aiopenai "hrguard/internal/ai/openai"
	"hrguard/internal/alerts"
	"hrguard/internal/auth"
	"hrguard/internal/config"
	"hrguard/internal/corrective"
	"hrguard/internal/download"
	"hrguard/internal/goals"
	"hrguard/internal/infra/queue"
	"hrguard/internal/logger"
	"hrguard/internal/medical"
	"hrguard/internal/metrics"
	"hrguard/internal/overtime"
	"hrguard/internal/reimbursement"
	"hrguard/internal/risk"
	"hrguard/internal/timelog"
	"hrguard/internal/worker"
	"hrguard/pkg/aiinterface"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AppContainer 应用服务容器
type AppContainer struct {
	Alerts        *alerts.Service
	Activity      *activity.Service
	TimeLog       *timelog.Service
	Download      *download.Service
	Reimbursement *reimbursement.Service
	Overtime      *overtime.Service
	Medical       *medical.Service
	Goals         *goals.Service
	Risk          *risk.Service
	Corrective    *corrective.Service
	Queue         queue.Client
}

// BuildContainer 构建服务容器
func BuildContainer(db *gorm.DB, cfg *config.Config) *AppContainer {
	alertSvc := alerts.NewService(db)
	activitySvc := activity.NewService(db)
	timelogSvc := timelog.NewService(db, alertSvc, cfg.Risk)
	downloadSvc := download.NewService(db, alertSvc)
	reimbursementSvc := reimbursement.NewService(db, alertSvc, cfg.Risk)
	overtimeSvc := overtime.NewService(db, alertSvc)
	medicalSvc := medical.NewService(db, alertSvc, cfg.Risk)
	goalSvc := goals.NewService(db, activitySvc, alertSvc, cfg.Risk)
	riskSvc := risk.NewService(timelogSvc, downloadSvc, medicalSvc, activitySvc, overtimeSvc, cfg.Risk)

	// 生成模型可选：未配置时文书生成接口返回配置缺失错误
	var model aiinterface.ModelClient
	if cfg.AI.OpenAI.APIKey != "" {
		client, err := aiopenai.NewClient(&aiinterface.ClientConfig{
			APIKey:  cfg.AI.OpenAI.APIKey,
			BaseURL: cfg.AI.OpenAI.BaseURL,
			Model:   cfg.AI.OpenAI.Model,
		})
		if err != nil {
			logger.Warn("生成模型初始化失败，文书生成不可用", zap.Error(err))
		} else {
			model = client
		}
	} else {
		logger.Warn("未配置生成模型 API Key，文书生成不可用")
	}
	correctiveSvc := corrective.NewService(db, alertSvc, model)

	return &AppContainer{
		Alerts:        alertSvc,
		Activity:      activitySvc,
		TimeLog:       timelogSvc,
		Download:      downloadSvc,
		Reimbursement: reimbursementSvc,
		Overtime:      overtimeSvc,
		Medical:       medicalSvc,
		Goals:         goalSvc,
		Risk:          riskSvc,
		Corrective:    correctiveSvc,
		Queue:         queue.NewClient(cfg.Redis),
	}
}

// AutoMigrate 迁移容器内所有服务的表结构
func (c *AppContainer) AutoMigrate() error {
	migrations := []func() error{
		c.Alerts.AutoMigrate,
		c.Activity.AutoMigrate,
		c.TimeLog.AutoMigrate,
		c.Download.AutoMigrate,
		c.Reimbursement.AutoMigrate,
		c.Overtime.AutoMigrate,
		c.Medical.AutoMigrate,
		c.Goals.AutoMigrate,
		c.Corrective.AutoMigrate,
	}
	for _, migrate := range migrations {
		if err := migrate(); err != nil {
			return err
		}
	}
	return nil
}

// SetupRouter 设置并返回 Gin 路由和 Worker 服务器
func SetupRouter(db *gorm.DB, cfg *config.Config, container *AppContainer) (*gin.Engine, *worker.Server) {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestID())
	router.Use(RequestLogger())
	router.Use(CORS())
	router.Use(metrics.PrometheusMiddleware())

	// Redis 可用性探测，仅提示不阻断启动
	redisClient := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Warn("Redis 不可用，异步扫描任务将无法入队", zap.Error(err))
	}
	_ = redisClient.Close()

	// 系统端点
	router.GET("/health", HealthCheck(db))
	router.GET("/ready", ReadinessCheck(db))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 业务端点，身份由外部网关注入的请求头提供
	apiGroup := router.Group("/api")
	apiGroup.Use(auth.TrustedIdentity())
	{
		timelogHandler := timelogHandlers.NewHandler(container.TimeLog)
		apiGroup.POST("/time-logs", timelogHandler.ProcessPunch)
		apiGroup.GET("/time-logs", timelogHandler.List)

		downloadHandler := downloadHandlers.NewHandler(container.Download)
		apiGroup.POST("/download-logs", downloadHandler.Process)
		apiGroup.GET("/download-logs", downloadHandler.List)

		reimbursementHandler := reimbursementHandlers.NewHandler(container.Reimbursement)
		apiGroup.POST("/reimbursements", reimbursementHandler.Submit)
		apiGroup.POST("/reimbursements/:id/score", reimbursementHandler.Score)
		apiGroup.POST("/reimbursements/:id/approve", reimbursementHandler.Approve)
		apiGroup.POST("/reimbursements/:id/reject", reimbursementHandler.Reject)
		apiGroup.GET("/reimbursements/:id", reimbursementHandler.Get)

		overtimeHandler := overtimeHandlers.NewHandler(container.Overtime, container.Queue)
		apiGroup.POST("/overtime-records", overtimeHandler.Submit)
		apiGroup.POST("/overtime-records/sweep", overtimeHandler.Sweep)
		apiGroup.GET("/overtime-records/:id", overtimeHandler.Get)

		medicalHandler := medicalHandlers.NewHandler(container.Medical, container.Queue)
		apiGroup.POST("/medical-certificates", medicalHandler.RegisterCertificate)
		apiGroup.POST("/medical-certificates/:id/extension", medicalHandler.RequestExtension)
		apiGroup.POST("/medical-extensions/:id/approve", medicalHandler.ApproveExtension)
		apiGroup.POST("/medical-extensions/:id/reject", medicalHandler.RejectExtension)
		apiGroup.GET("/medical-patterns/:userId", medicalHandler.DetectPatterns)
		apiGroup.POST("/medical-patterns/scan", medicalHandler.PatternScan)

		goalHandler := goalHandlers.NewHandler(container.Goals, container.Queue)
		apiGroup.POST("/goals", goalHandler.Create)
		apiGroup.POST("/goals/:id/aggregate", goalHandler.Aggregate)
		apiGroup.GET("/goals/:id/achievements", goalHandler.ListAchievements)
		apiGroup.POST("/goals/aggregate", goalHandler.AggregateAll)
		apiGroup.POST("/goals/underperformance-sweep", goalHandler.UnderperformanceSweep)

		riskHandler := riskHandlers.NewHandler(container.Risk, container.Alerts)
		apiGroup.POST("/risk/score", riskHandler.Score)

		alertHandler := alertHandlers.NewHandler(container.Alerts)
		apiGroup.GET("/alerts", alertHandler.List)
		apiGroup.GET("/alerts/:id", alertHandler.Get)
		apiGroup.POST("/alerts/:id/deactivate", alertHandler.Deactivate)
		apiGroup.GET("/alerts/:id/events", alertHandler.ListEvents)
		apiGroup.POST("/alert-events/:id/acknowledge", alertHandler.AcknowledgeEvent)

		correctiveHandler := correctiveHandlers.NewHandler(container.Corrective)
		apiGroup.POST("/corrective-actions/generate", correctiveHandler.Generate)
		apiGroup.POST("/corrective-actions/:id/deliver", correctiveHandler.MarkDelivered)
		apiGroup.POST("/corrective-actions/:id/sign", correctiveHandler.MarkSigned)
		apiGroup.GET("/corrective-actions/:id", correctiveHandler.Get)

		activityHandler := activityHandlers.NewHandler(container.Activity)
		apiGroup.POST("/activity-events", activityHandler.Record)
	}

	workerServer := worker.NewServer(cfg.Redis, container.Overtime, container.Goals, container.Medical, logger.Get())

	return router, workerServer
}
