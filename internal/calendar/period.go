package calendar

import (
	"fmt"
	"time"
)

// PeriodType 目标周期类型
type PeriodType string

const (
	PeriodDaily     PeriodType = "daily"     // 单日
	PeriodWeekly    PeriodType = "weekly"    // 周日到周六
	PeriodMonthly   PeriodType = "monthly"   // 自然月
	PeriodQuarterly PeriodType = "quarterly" // 自然季度
	PeriodYearly    PeriodType = "yearly"    // 自然年
)

// Bounds 某个周期的起止日期（含两端，日期精度）
type Bounds struct {
	Start time.Time
	End   time.Time
}

// Contains 判断时间点是否落在周期内
func (b Bounds) Contains(t time.Time) bool {
	d := dateOnly(t)
	return !d.Before(b.Start) && !d.After(b.End)
}

// PeriodBounds 计算包含参考日期的周期边界
// 周边界固定从周日开始；季度按 1-3/4-6/7-9/10-12 划分
// 同一天多次计算必须得到完全相同的边界，目标达成聚合依赖此稳定性
func PeriodBounds(period PeriodType, ref time.Time) (Bounds, error) {
	day := dateOnly(ref)

	switch period {
	case PeriodDaily:
		return Bounds{Start: day, End: day}, nil

	case PeriodWeekly:
		start := day.AddDate(0, 0, -int(day.Weekday()))
		return Bounds{Start: start, End: start.AddDate(0, 0, 6)}, nil

	case PeriodMonthly:
		start := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, day.Location())
		return Bounds{Start: start, End: start.AddDate(0, 1, -1)}, nil

	case PeriodQuarterly:
		quarterStartMonth := time.Month((int(day.Month())-1)/3*3 + 1)
		start := time.Date(day.Year(), quarterStartMonth, 1, 0, 0, 0, 0, day.Location())
		return Bounds{Start: start, End: start.AddDate(0, 3, -1)}, nil

	case PeriodYearly:
		start := time.Date(day.Year(), time.January, 1, 0, 0, 0, 0, day.Location())
		return Bounds{Start: start, End: time.Date(day.Year(), time.December, 31, 0, 0, 0, 0, day.Location())}, nil

	default:
		return Bounds{}, fmt.Errorf("未知的周期类型: %q", period)
	}
}

// DayWindow 返回某天的时间窗口 [00:00:00, 23:59:59]
func DayWindow(start, end time.Time) (time.Time, time.Time) {
	s := dateOnly(start)
	e := dateOnly(end)
	return s, time.Date(e.Year(), e.Month(), e.Day(), 23, 59, 59, 0, e.Location())
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
