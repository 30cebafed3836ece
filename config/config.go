// Package config 负责加载和校验应用配置
// 配置来源优先级: 环境变量 > 配置文件 > 默认值
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/weiwangfds/booknotes/internal/logger"
)

// EnvPrefix 环境变量前缀，例如 BOOKNOTES_AUTH_JWT_SECRET
const EnvPrefix = "BOOKNOTES"

// 存储提供商
const (
	StorageLocal   = "local"
	StorageAliyun  = "aliyun"
	StorageTencent = "tencent"
	StorageQiniu   = "qiniu"
)

// 数据库驱动
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config 应用全局配置
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Log      logger.Config  `mapstructure:"log"`
	Content  ContentConfig  `mapstructure:"content"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	I18n     I18nConfig     `mapstructure:"i18n"`
}

// ServerConfig HTTP服务配置
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`             // debug, release, test
	ReadTimeout     int           `mapstructure:"read_timeout"`     // 秒
	WriteTimeout    int           `mapstructure:"write_timeout"`    // 秒
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"` // 优雅关闭等待时间
	EnableHTTPS     bool          `mapstructure:"enable_https"`
	EnableHTTP2     bool          `mapstructure:"enable_http2"`
	TLSCertFile     string        `mapstructure:"tls_cert_file"`
	TLSKeyFile      string        `mapstructure:"tls_key_file"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	RequestLog      bool          `mapstructure:"request_log"` // 是否记录完整请求/响应体（仅建议开发环境开启）
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	DSN             string `mapstructure:"dsn"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // 秒
	LogLevel        string `mapstructure:"log_level"`         // silent, error, warn, info
}

// AuthConfig 认证配置
type AuthConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	TokenTTL       time.Duration `mapstructure:"token_ttl"`
	LoginRate      float64       `mapstructure:"login_rate_per_minute"`
	LoginBurst     int           `mapstructure:"login_burst"`
	BootstrapAdmin bool          `mapstructure:"bootstrap_admin"`
	AdminUsername  string        `mapstructure:"admin_username"`
	AdminPassword  string        `mapstructure:"admin_password"`
}

// StorageConfig 媒体存储配置
// Provider 为 local 时文件写入 Root 目录，否则写入对应云存储桶
type StorageConfig struct {
	Provider  string `mapstructure:"provider"`
	Root      string `mapstructure:"root"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// ContentConfig 内容处理配置
type ContentConfig struct {
	SanitizeHTML bool `mapstructure:"sanitize_html"`
}

// CacheConfig 缓存配置
type CacheConfig struct {
	HomeTTL time.Duration `mapstructure:"home_ttl"`
}

// MetricsConfig 监控指标配置
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// I18nConfig 国际化配置
type I18nConfig struct {
	DefaultLanguage string `mapstructure:"default_language"`
}

// Load 从默认位置加载配置
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom 从指定配置文件加载配置，path为空时在 . 和 ./config 下查找 config.yaml
func LoadFrom(path string) (*Config, error) {
	// .env 文件不存在时忽略
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// setDefaults 注册全部默认值，AutomaticEnv 只对已知键生效
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3001)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 60)
	v.SetDefault("server.write_timeout", 120)
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.enable_https", false)
	v.SetDefault("server.enable_http2", false)
	v.SetDefault("server.tls_cert_file", "")
	v.SetDefault("server.tls_key_file", "")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.request_log", false)

	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.dsn", "data/booknotes.db")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", 3600)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", "168h")
	v.SetDefault("auth.login_rate_per_minute", 10)
	v.SetDefault("auth.login_burst", 5)
	v.SetDefault("auth.bootstrap_admin", true)
	v.SetDefault("auth.admin_username", "admin")
	v.SetDefault("auth.admin_password", "admin123")

	v.SetDefault("storage.provider", StorageLocal)
	v.SetDefault("storage.root", "uploads")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.region", "")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.key_prefix", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "console")
	v.SetDefault("log.file_path", "logs/app.log")

	v.SetDefault("content.sanitize_html", true)
	v.SetDefault("cache.home_ttl", "5m")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("i18n.default_language", "zh-CN")
}

// Validate 校验全部配置段
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Auth.Validate(); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	return validation.ValidateStruct(&c.I18n,
		validation.Field(&c.I18n.DefaultLanguage, validation.In("zh-CN", "en-US")),
	)
}

// Validate 校验服务配置
func (c *ServerConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.Mode, validation.In("debug", "release", "test")),
		validation.Field(&c.TLSCertFile, validation.When(c.EnableHTTPS, validation.Required)),
		validation.Field(&c.TLSKeyFile, validation.When(c.EnableHTTPS, validation.Required)),
	)
}

// Address 返回监听地址
func (c *ServerConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate 校验数据库配置
func (c *DatabaseConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required, validation.In(DriverSQLite, DriverPostgres)),
		validation.Field(&c.DSN, validation.Required),
		validation.Field(&c.LogLevel, validation.In("silent", "error", "warn", "info")),
	)
}

// Validate 校验认证配置
func (c *AuthConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.JWTSecret, validation.Required, validation.Length(16, 0)),
		validation.Field(&c.TokenTTL, validation.Required),
		validation.Field(&c.LoginRate, validation.Min(0.0)),
		validation.Field(&c.AdminUsername, validation.When(c.BootstrapAdmin, validation.Required)),
		validation.Field(&c.AdminPassword, validation.When(c.BootstrapAdmin, validation.Required, validation.Length(6, 0))),
	)
}

// Validate 校验存储配置，云存储需要完整的桶信息和密钥
func (c *StorageConfig) Validate() error {
	remote := c.Provider != StorageLocal
	return validation.ValidateStruct(c,
		validation.Field(&c.Provider, validation.Required, validation.In(StorageLocal, StorageAliyun, StorageTencent, StorageQiniu)),
		validation.Field(&c.Root, validation.When(!remote, validation.Required)),
		validation.Field(&c.Bucket, validation.When(remote, validation.Required)),
		validation.Field(&c.AccessKey, validation.When(remote, validation.Required)),
		validation.Field(&c.SecretKey, validation.When(remote, validation.Required)),
		validation.Field(&c.Region, validation.When(c.Provider == StorageTencent, validation.Required)),
	)
}
