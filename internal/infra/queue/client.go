package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"hrguard/internal/config"
	"hrguard/internal/worker/tasks"

	"github.com/hibiken/asynq"
)

// Client 任务队列客户端接口
type Client interface {
	EnqueueOvertimeSweep(companyID string) error
	EnqueueGoalAggregate(companyID string) error
	EnqueueGoalUnderperformance(companyID string) error
	EnqueueMedicalPatternScan(companyID string) error
	Close() error
}

type asynqClient struct {
	client *asynq.Client
}

// NewClient 创建任务队列客户端
func NewClient(cfg config.RedisConfig) Client {
	client := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &asynqClient{client: client}
}

func (c *asynqClient) EnqueueOvertimeSweep(companyID string) error {
	return c.enqueueSweep(tasks.TypeOvertimeSweep, companyID)
}

func (c *asynqClient) EnqueueGoalAggregate(companyID string) error {
	return c.enqueueSweep(tasks.TypeGoalAggregate, companyID)
}

func (c *asynqClient) EnqueueGoalUnderperformance(companyID string) error {
	return c.enqueueSweep(tasks.TypeGoalUnderperformance, companyID)
}

func (c *asynqClient) EnqueueMedicalPatternScan(companyID string) error {
	return c.enqueueSweep(tasks.TypeMedicalPatternScan, companyID)
}

func (c *asynqClient) enqueueSweep(taskType, companyID string) error {
	payload, err := json.Marshal(tasks.SweepPayload{CompanyID: companyID})
	if err != nil {
		return fmt.Errorf("marshal payload failed: %w", err)
	}

	task := asynq.NewTask(taskType, payload)

	// 扫描任务失败重试 3 次，超时 10 分钟
	_, err = c.client.Enqueue(task,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue("sweeps"),
	)
	if err != nil {
		return fmt.Errorf("enqueue task failed: %w", err)
	}
	return nil
}

func (c *asynqClient) Close() error {
	return c.client.Close()
}
