package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// ErrInvalidConfig 配置校验失败
var ErrInvalidConfig = errors.New("invalid config")

// Config 应用程序配置结构
type Config struct {
	Database Database `yaml:"database"`
	Telegram Telegram `yaml:"telegram"`
	API      API      `yaml:"api"`
	App      App      `yaml:"app"`
}

// Database 数据库配置
type Database struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Username        string        `yaml:"username"`
	Database        string        `yaml:"database"`
	Password        string        `yaml:"password"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// Telegram Bot配置
type Telegram struct {
	Token         string        `yaml:"token"`
	Timeout       time.Duration `yaml:"timeout"`
	BroadcastRate int           `yaml:"broadcast_rate"` // 每秒最多发送消息数
	AdminIDs      []int64       `yaml:"admin_ids"`      // 允许录入、修改、删除开奖的用户
}

// API 开奖数据源配置（CSV）
type API struct {
	URL        string        `yaml:"url"`
	Timeout    time.Duration `yaml:"timeout"`
	RetryCount int           `yaml:"retry_count"`
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// App 应用程序配置
type App struct {
	PollingInterval time.Duration `yaml:"polling_interval"`
	LogLevel        string        `yaml:"log_level"`
	CacheTTL        time.Duration `yaml:"cache_ttl"`
	PredictionCount int           `yaml:"prediction_count"`
	Methods         []string      `yaml:"methods"`     // 为空时按注册顺序轮换
	ImportPath      string        `yaml:"import_path"` // 启动时导入的CSV文件
	MetricsAddr     string        `yaml:"metrics_addr"`
}

// LoadConfig 加载配置文件，再用环境变量覆盖敏感项
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// .env不存在时直接使用进程环境变量
	_ = godotenv.Load()
	config.applyEnv()
	config.applyDefaults()

	return &config, nil
}

// applyEnv 应用环境变量覆盖
func (c *Config) applyEnv() {
	if v := os.Getenv("LOTO_DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv("LOTO_TELEGRAM_TOKEN"); v != "" {
		c.Telegram.Token = v
	}
	if v := os.Getenv("LOTO_TELEGRAM_ADMIN_IDS"); v != "" {
		c.Telegram.AdminIDs = parseIDs(v)
	}
	if v := os.Getenv("LOTO_FEED_URL"); v != "" {
		c.API.URL = v
	}
	if v := os.Getenv("LOTO_LOG_LEVEL"); v != "" {
		c.App.LogLevel = strings.ToLower(v)
	}
}

// parseIDs 解析逗号分隔的用户ID，忽略无效项
func parseIDs(s string) []int64 {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// IsAdmin 判断用户是否为管理员
func (t *Telegram) IsAdmin(chatID int64) bool {
	for _, id := range t.AdminIDs {
		if id == chatID {
			return true
		}
	}
	return false
}

// applyDefaults 为零值字段设置默认值
func (c *Config) applyDefaults() {
	if c.Database.Port == 0 {
		c.Database.Port = 3306
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = time.Hour
	}
	if c.Telegram.Timeout == 0 {
		c.Telegram.Timeout = 60 * time.Second
	}
	if c.Telegram.BroadcastRate == 0 {
		c.Telegram.BroadcastRate = 20
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = 30 * time.Second
	}
	if c.API.RetryCount == 0 {
		c.API.RetryCount = 3
	}
	if c.API.RetryDelay == 0 {
		c.API.RetryDelay = 2 * time.Second
	}
	if c.App.PollingInterval == 0 {
		c.App.PollingInterval = 10 * time.Minute
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.App.CacheTTL == 0 {
		c.App.CacheTTL = 5 * time.Minute
	}
	if c.App.PredictionCount == 0 {
		c.App.PredictionCount = 4
	}
}

// Validate 校验必填项
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("%w: database.host is required", ErrInvalidConfig)
	}
	if c.Database.Database == "" {
		return fmt.Errorf("%w: database.database is required", ErrInvalidConfig)
	}
	if c.Telegram.Token == "" {
		return fmt.Errorf("%w: telegram.token is required", ErrInvalidConfig)
	}
	if c.App.PredictionCount < 0 {
		return fmt.Errorf("%w: app.prediction_count must not be negative", ErrInvalidConfig)
	}
	return nil
}

// GetDSN 获取数据库连接字符串
func (d *Database) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&clientFoundRows=true",
		d.Username, d.Password, d.Host, d.Port, d.Database)
}
