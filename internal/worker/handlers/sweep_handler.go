package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"hrguard/internal/goals"
	"hrguard/internal/medical"
	"hrguard/internal/metrics"
	"hrguard/internal/overtime"
	"hrguard/internal/worker/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// SweepHandler 周期性扫描任务处理器
type SweepHandler struct {
	overtime *overtime.Service
	goals    *goals.Service
	medical  *medical.Service
	logger   *zap.Logger
}

// NewSweepHandler 创建处理器
func NewSweepHandler(overtimeSvc *overtime.Service, goalsSvc *goals.Service, medicalSvc *medical.Service, logger *zap.Logger) *SweepHandler {
	return &SweepHandler{
		overtime: overtimeSvc,
		goals:    goalsSvc,
		medical:  medicalSvc,
		logger:   logger,
	}
}

// HandleOvertimeSweep 扫描未告警的加班异常记录
func (h *SweepHandler) HandleOvertimeSweep(ctx context.Context, t *asynq.Task) error {
	var p tasks.SweepPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json unmarshal failed: %w", err)
	}

	created, err := h.overtime.Sweep(ctx, p.CompanyID)
	if err != nil {
		metrics.SweepRunsTotal.WithLabelValues(tasks.TypeOvertimeSweep, "error").Inc()
		h.logger.Error("加班记录扫描失败", zap.String("company_id", p.CompanyID), zap.Error(err))
		return err
	}

	metrics.SweepRunsTotal.WithLabelValues(tasks.TypeOvertimeSweep, "ok").Inc()
	h.logger.Info("加班记录扫描完成",
		zap.String("company_id", p.CompanyID),
		zap.Int("alerts_created", created),
	)
	return nil
}

// HandleGoalAggregate 聚合所有激活目标的当前周期达成情况
func (h *SweepHandler) HandleGoalAggregate(ctx context.Context, t *asynq.Task) error {
	var p tasks.SweepPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json unmarshal failed: %w", err)
	}

	processed, err := h.goals.AggregateAll(ctx, p.CompanyID, time.Now())
	if err != nil {
		metrics.SweepRunsTotal.WithLabelValues(tasks.TypeGoalAggregate, "error").Inc()
		h.logger.Error("目标达成聚合失败", zap.String("company_id", p.CompanyID), zap.Error(err))
		return err
	}

	metrics.SweepRunsTotal.WithLabelValues(tasks.TypeGoalAggregate, "ok").Inc()
	h.logger.Info("目标达成聚合完成",
		zap.String("company_id", p.CompanyID),
		zap.Int("goals_processed", processed),
	)
	return nil
}

// HandleGoalUnderperformance 扫描未达标的目标达成记录
func (h *SweepHandler) HandleGoalUnderperformance(ctx context.Context, t *asynq.Task) error {
	var p tasks.SweepPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json unmarshal failed: %w", err)
	}

	created, err := h.goals.UnderperformanceSweep(ctx, p.CompanyID)
	if err != nil {
		metrics.SweepRunsTotal.WithLabelValues(tasks.TypeGoalUnderperformance, "error").Inc()
		h.logger.Error("目标未达标扫描失败", zap.String("company_id", p.CompanyID), zap.Error(err))
		return err
	}

	metrics.SweepRunsTotal.WithLabelValues(tasks.TypeGoalUnderperformance, "ok").Inc()
	h.logger.Info("目标未达标扫描完成",
		zap.String("company_id", p.CompanyID),
		zap.Int("alerts_created", created),
	)
	return nil
}

// HandleMedicalPatternScan 扫描病假延长的可疑模式
func (h *SweepHandler) HandleMedicalPatternScan(ctx context.Context, t *asynq.Task) error {
	var p tasks.SweepPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json unmarshal failed: %w", err)
	}

	scanned, err := h.medical.PatternScan(ctx, p.CompanyID)
	if err != nil {
		metrics.SweepRunsTotal.WithLabelValues(tasks.TypeMedicalPatternScan, "error").Inc()
		h.logger.Error("病假模式扫描失败", zap.String("company_id", p.CompanyID), zap.Error(err))
		return err
	}

	metrics.SweepRunsTotal.WithLabelValues(tasks.TypeMedicalPatternScan, "ok").Inc()
	h.logger.Info("病假模式扫描完成",
		zap.String("company_id", p.CompanyID),
		zap.Int("users_scanned", scanned),
	)
	return nil
}
