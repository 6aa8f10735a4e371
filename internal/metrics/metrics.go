package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// API 指标
var (
	// APIRequestsTotal API 请求总数
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hrguard_api_requests_total",
			Help: "API 请求总数",
		},
		[]string{"method", "path", "status"},
	)

	// APIRequestDuration API 请求延迟（秒）
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hrguard_api_request_duration_seconds",
			Help:    "API 请求延迟分布",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// 评分器指标
var (
	// ScorerRunsTotal 各评分器执行总数
	ScorerRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hrguard_scorer_runs_total",
			Help: "评分器执行总数",
		},
		[]string{"scorer", "status"},
	)

	// AlertsCreatedTotal 新建告警总数
	AlertsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hrguard_alerts_created_total",
			Help: "新建告警总数",
		},
		[]string{"type", "priority"},
	)

	// AlertsDedupedTotal 命中去重的告警触发总数
	AlertsDedupedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hrguard_alerts_deduped_total",
			Help: "命中既有告警被去重的触发总数",
		},
		[]string{"type"},
	)

	// CorrectiveActionsTotal 整改文书生成总数
	CorrectiveActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hrguard_corrective_actions_total",
			Help: "整改文书生成总数",
		},
		[]string{"risk_level", "status"},
	)
)

// Worker 指标
var (
	// SweepRunsTotal 周期性扫描任务执行总数
	SweepRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hrguard_sweep_runs_total",
			Help: "周期性扫描任务执行总数",
		},
		[]string{"task", "status"},
	)
)
