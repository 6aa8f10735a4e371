package worker

import (
	"context"
	"fmt"

	"hrguard/internal/config"
	"hrguard/internal/goals"
	"hrguard/internal/medical"
	"hrguard/internal/overtime"
	"hrguard/internal/worker/handlers"
	"hrguard/internal/worker/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

type Server struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *zap.Logger
}

func NewServer(
	cfg config.RedisConfig,
	overtimeSvc *overtime.Service,
	goalsSvc *goals.Service,
	medicalSvc *medical.Service,
	logger *zap.Logger,
) *Server {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Password: cfg.Password,
			DB:       cfg.DB,
		},
		asynq.Config{
			Concurrency: 10, // 并发 worker 数
			Queues: map[string]int{
				"sweeps":  3,
				"default": 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("任务执行失败",
					zap.String("type", task.Type()),
					zap.Error(err),
				)
			}),
		},
	)

	mux := asynq.NewServeMux()

	sweepHandler := handlers.NewSweepHandler(overtimeSvc, goalsSvc, medicalSvc, logger)
	mux.HandleFunc(tasks.TypeOvertimeSweep, sweepHandler.HandleOvertimeSweep)
	mux.HandleFunc(tasks.TypeGoalAggregate, sweepHandler.HandleGoalAggregate)
	mux.HandleFunc(tasks.TypeGoalUnderperformance, sweepHandler.HandleGoalUnderperformance)
	mux.HandleFunc(tasks.TypeMedicalPatternScan, sweepHandler.HandleMedicalPatternScan)

	return &Server{
		server: srv,
		mux:    mux,
		logger: logger,
	}
}

// Run 启动 Worker 服务器
func (s *Server) Run() error {
	s.logger.Info("Worker 服务器启动中...")
	return s.server.Run(s.mux)
}

// Start 非阻塞启动
func (s *Server) Start() error {
	s.logger.Info("Worker 服务器启动中 (后台)...")
	return s.server.Start(s.mux)
}

// Shutdown 停止 Worker 服务器
func (s *Server) Shutdown() {
	s.logger.Info("Worker 服务器停止中...")
	s.server.Shutdown()
}
