package geo

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// earthRadiusMeters 地球半径（米）
const earthRadiusMeters = 6371000.0

// HaversineDistanceMeters 计算两个经纬度坐标之间的大圆距离（米）
// 相同坐标返回 0
func HaversineDistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// TimeDifferenceMinutes 计算 HH:MM 格式时间的分钟差（actual - expected）
// 结果为正表示迟到
func TimeDifferenceMinutes(expected, actual string) (int, error) {
	expMinutes, err := parseHHMM(expected)
	if err != nil {
		return 0, fmt.Errorf("解析预期时间失败: %w", err)
	}
	actMinutes, err := parseHHMM(actual)
	if err != nil {
		return 0, fmt.Errorf("解析实际时间失败: %w", err)
	}
	return actMinutes - expMinutes, nil
}

func parseHHMM(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("时间格式无效: %q", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("时间格式无效: %q", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("时间格式无效: %q", s)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("时间超出范围: %q", s)
	}
	return hour*60 + minute, nil
}
