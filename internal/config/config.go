package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Log      LogConfig      `mapstructure:"log"`
	AI       AIConfig       `mapstructure:"ai"`
	Risk     RiskConfig     `mapstructure:"risk"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	Mode         string `mapstructure:"mode"` // debug, release, test
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // 秒
	AutoMigrate     bool   `mapstructure:"auto_migrate"`      // 是否自动迁移表结构
}

// RedisConfig Redis 配置（任务队列使用）
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, /path/to/log
}

// AIConfig 文书生成模型配置
type AIConfig struct {
	OpenAI OpenAIConfig `mapstructure:"openai"`
}

// OpenAIConfig OpenAI 配置
type OpenAIConfig struct {
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Model      string `mapstructure:"model"`
	MaxRetries int    `mapstructure:"max_retries"`
}

// RiskConfig 风险评分的回溯窗口配置
// 每个评分器使用的回溯窗口在此集中命名，避免散落在代码里的魔法数字
type RiskConfig struct {
	// 打卡相关
	TimeLogRecurrenceDays int `mapstructure:"time_log_recurrence_days"` // 打卡异常累犯回溯天数，默认 7
	// 报销相关
	ReimbursementFrequencyDays int `mapstructure:"reimbursement_frequency_days"` // 报销频率回溯天数，默认 30
	// 综合员工风险
	CompositeLookbackDays     int `mapstructure:"composite_lookback_days"`      // 综合风险回溯天数，默认 30
	OvertimeSpreadMonths      int `mapstructure:"overtime_spread_months"`       // 未批加班跨月回溯月数，默认 2
	ExpectedWorkDaysPerMonth  int `mapstructure:"expected_work_days_per_month"` // 预期月工作日，默认 22
	// 病假相关
	MedicalPatternMonths int `mapstructure:"medical_pattern_months"` // 病假延长模式回溯月数，默认 12
	// 目标相关
	UnderperformanceSweepDays int `mapstructure:"underperformance_sweep_days"` // 目标未达扫描回溯天数，默认 7
}

// DefaultRiskConfig 返回默认回溯窗口
func DefaultRiskConfig() RiskConfig {
	return RiskConfig{
		TimeLogRecurrenceDays:      7,
		ReimbursementFrequencyDays: 30,
		CompositeLookbackDays:      30,
		OvertimeSpreadMonths:       2,
		ExpectedWorkDaysPerMonth:   22,
		MedicalPatternMonths:       12,
		UnderperformanceSweepDays:  7,
	}
}

// ApplyDefaults 对未配置的窗口回填默认值
func (r *RiskConfig) ApplyDefaults() {
	def := DefaultRiskConfig()
	if r.TimeLogRecurrenceDays <= 0 {
		r.TimeLogRecurrenceDays = def.TimeLogRecurrenceDays
	}
	if r.ReimbursementFrequencyDays <= 0 {
		r.ReimbursementFrequencyDays = def.ReimbursementFrequencyDays
	}
	if r.CompositeLookbackDays <= 0 {
		r.CompositeLookbackDays = def.CompositeLookbackDays
	}
	if r.OvertimeSpreadMonths <= 0 {
		r.OvertimeSpreadMonths = def.OvertimeSpreadMonths
	}
	if r.ExpectedWorkDaysPerMonth <= 0 {
		r.ExpectedWorkDaysPerMonth = def.ExpectedWorkDaysPerMonth
	}
	if r.MedicalPatternMonths <= 0 {
		r.MedicalPatternMonths = def.MedicalPatternMonths
	}
	if r.UnderperformanceSweepDays <= 0 {
		r.UnderperformanceSweepDays = def.UnderperformanceSweepDays
	}
}

var globalConfig *Config

// Load 加载配置
// env: 环境名称（dev, prod, test）
// configPath: 配置文件路径（可选）
func Load(env string, configPath string) (*Config, error) {
	v := viper.New()

	if configPath == "" {
		v.SetConfigName(env) // dev.yaml, prod.yaml
		v.AddConfigPath("./config")
		v.AddConfigPath("../config")
		v.AddConfigPath("../../config")
	} else {
		v.SetConfigFile(configPath)
	}

	v.SetConfigType("yaml")

	// 环境变量优先级高于配置文件
	v.SetEnvPrefix("APP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // 支持嵌套配置：APP_DATABASE_HOST

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	cfg.Risk.ApplyDefaults()

	globalConfig = &cfg
	return &cfg, nil
}

// Get 获取全局配置
func Get() *Config {
	if globalConfig == nil {
		panic("配置未初始化，请先调用 Load()")
	}
	return globalConfig
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}
