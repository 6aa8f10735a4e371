package infra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	gormLogger "gorm.io/gorm/logger"
)

// gormZapBridge 将 GORM 内部日志转发到全局 Zap
// 慢查询超过阈值以 Warn 级别单独标记
type gormZapBridge struct {
	base          *zap.Logger
	level         gormLogger.LogLevel
	slowThreshold time.Duration
}

func newGormLogger(base *zap.Logger, level gormLogger.LogLevel, slowThreshold time.Duration) gormLogger.Interface {
	return &gormZapBridge{
		base:          base,
		level:         level,
		slowThreshold: slowThreshold,
	}
}

func (g *gormZapBridge) LogMode(level gormLogger.LogLevel) gormLogger.Interface {
	clone := *g
	clone.level = level
	return &clone
}

func (g *gormZapBridge) Info(_ context.Context, msg string, args ...interface{}) {
	if g.level >= gormLogger.Info {
		g.base.Info(fmt.Sprintf(msg, args...))
	}
}

func (g *gormZapBridge) Warn(_ context.Context, msg string, args ...interface{}) {
	if g.level >= gormLogger.Warn {
		g.base.Warn(fmt.Sprintf(msg, args...))
	}
}

func (g *gormZapBridge) Error(_ context.Context, msg string, args ...interface{}) {
	if g.level >= gormLogger.Error {
		g.base.Error(fmt.Sprintf(msg, args...))
	}
}

// Trace 记录单条 SQL 的耗时与行数
// ErrRecordNotFound 属于正常业务路径，不按错误输出
func (g *gormZapBridge) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.level <= gormLogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	fields := []zap.Field{
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
		zap.String("sql", sql),
	}

	switch {
	case err != nil && !errors.Is(err, gormLogger.ErrRecordNotFound):
		g.base.Error("SQL 执行错误", append(fields, zap.Error(err))...)
	case g.slowThreshold > 0 && elapsed > g.slowThreshold:
		g.base.Warn("SQL 慢查询", fields...)
	case g.level >= gormLogger.Info:
		g.base.Debug("SQL 执行", fields...)
	}
}
