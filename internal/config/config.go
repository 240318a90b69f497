package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DefaultDir = "configs"
	FileName   = "config.yaml"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	JWT         JWTConfig
	Storage     StorageConfig
	Log         LogConfig     `mapstructure:"log"`
	Tracing     TracingConfig `mapstructure:"tracing"`
	Execution   ExecutionConfig
	Judge0      Judge0Config
	Sphere      SphereConfig
	Grading     GradingConfig
	Certificate CertificateConfig
	Redis       RedisConfig
	CORS        CORSConfig      `mapstructure:"cors"`
	RateLimit   RateLimitConfig `mapstructure:"rate_limit"`

	// 运行时标志（非配置文件，通过命令行参数设置）
	ForceMigrate bool `mapstructure:"-"` // 强制执行数据库迁移
	MigrateOnly  bool `mapstructure:"-"` // 仅迁移模式（迁移后退出）
	Seed         bool `mapstructure:"-"` // 写入开发用种子数据
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests        int `mapstructure:"max_requests"`
	WindowMinutes      int `mapstructure:"window_minutes"`
	ExecuteMaxRequests int `mapstructure:"execute_max_requests"`
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	Driver    string // mysql、postgres 或 sqlite
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	Charset   string
	ParseTime bool
	Path      string // sqlite 文件路径
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

type StorageConfig struct {
	Type          string `mapstructure:"type"`
	LocalPath     string `mapstructure:"local_path"`
	PublicBaseURL string `mapstructure:"public_base_url"`
	MinioEndpoint string `mapstructure:"minio_endpoint"`
	MinioAccessID string `mapstructure:"minio_access_key"`
	MinioSecret   string `mapstructure:"minio_secret_key"`
	MinioBucket   string `mapstructure:"minio_bucket"`
	MinioSecure   bool   `mapstructure:"minio_secure"`
	OSSEndpoint   string `mapstructure:"oss_endpoint"`
	OSSAccessKey  string `mapstructure:"oss_access_key"`
	OSSSecretKey  string `mapstructure:"oss_secret_key"`
	OSSBucket     string `mapstructure:"oss_bucket"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"` // 为空时 debug 模式取 debug，否则取 info
	File       string `mapstructure:"file"`  // 为空时只输出到控制台
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type TracingConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	CollectorEndpoint string  `mapstructure:"collector_endpoint"`
	ServiceName       string  `mapstructure:"service_name"`
	SampleRatio       float64 `mapstructure:"sample_ratio"` // 0..1，根 span 采样比例
}

// ExecutionConfig 选择外部代码执行后端并限制其用量
type ExecutionConfig struct {
	Provider        string        `mapstructure:"provider"` // judge0 或 sphere
	MaxSourceLength int           `mapstructure:"max_source_length"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	Timeout         time.Duration `mapstructure:"timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
}

type Judge0Config struct {
	APIKey        string `mapstructure:"api_key"`
	URL           string
	Host          string
	Base64Encoded bool `mapstructure:"base64_encoded"`
}

type SphereConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Token   string `mapstructure:"token"`
}

type GradingConfig struct {
	PassThreshold     int  `mapstructure:"pass_threshold"`
	DefaultLanguageID int  `mapstructure:"default_language_id"`
	CompareOutput     bool `mapstructure:"compare_output"`
}

type CertificateConfig struct {
	Title        string        `mapstructure:"title"`
	SignedURLTTL time.Duration `mapstructure:"signed_url_ttl"`
	RefreshTTL   time.Duration `mapstructure:"refresh_ttl"`
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "4000")
	v.SetDefault("server.mode", "release")
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.charset", "utf8mb4")
	v.SetDefault("database.parsetime", true)
	v.SetDefault("log.file", "logs/app.log")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)
	v.SetDefault("tracing.service_name", "skillsnap-backend")
	v.SetDefault("tracing.sample_ratio", 1.0)
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_path", "uploads")
	v.SetDefault("execution.provider", "sphere")
	v.SetDefault("execution.max_source_length", 100000)
	v.SetDefault("execution.poll_interval", time.Second)
	v.SetDefault("execution.timeout", 120*time.Second)
	v.SetDefault("execution.request_timeout", 15*time.Second)
	v.SetDefault("judge0.base64_encoded", true)
	v.SetDefault("grading.pass_threshold", 70)
	v.SetDefault("grading.compare_output", true)
	v.SetDefault("certificate.title", "SkillSnap Certificate")
	v.SetDefault("certificate.signed_url_ttl", 7*24*time.Hour)
	v.SetDefault("certificate.refresh_ttl", time.Hour)
	v.SetDefault("redis.cache_ttl", 10*time.Minute)
	v.SetDefault("rate_limit.max_requests", 100000)
	v.SetDefault("rate_limit.window_minutes", 1)
	v.SetDefault("rate_limit.execute_max_requests", 10)
}

func LoadConfig(path string) (*Config, error) {
	// .env 文件可选
	_ = godotenv.Load()

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("SKILLSNAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	// Database
	v.BindEnv("database.driver", "DATABASE_DRIVER")
	v.BindEnv("database.host", "DATABASE_HOST")
	v.BindEnv("database.port", "DATABASE_PORT")
	v.BindEnv("database.user", "DATABASE_USER")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("database.dbname", "DATABASE_NAME")

	// JWT
	v.BindEnv("jwt.secret", "JWT_SECRET")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// Server
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.mode", "SERVER_MODE")

	// Storage
	v.BindEnv("storage.type", "STORAGE_TYPE")
	v.BindEnv("storage.oss_endpoint", "OSS_ENDPOINT")
	v.BindEnv("storage.oss_access_key", "OSS_ACCESS_KEY")
	v.BindEnv("storage.oss_secret_key", "OSS_SECRET_KEY")
	v.BindEnv("storage.oss_bucket", "OSS_BUCKET")
	v.BindEnv("storage.minio_endpoint", "MINIO_ENDPOINT")
	v.BindEnv("storage.minio_access_key", "MINIO_ACCESS_KEY")
	v.BindEnv("storage.minio_secret_key", "MINIO_SECRET_KEY")
	v.BindEnv("storage.minio_bucket", "MINIO_BUCKET")

	// Log
	v.BindEnv("log.level", "LOG_LEVEL")
	v.BindEnv("log.file", "LOG_FILE")

	// Tracing
	v.BindEnv("tracing.enabled", "TRACING_ENABLED")
	v.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	// Execution backends
	v.BindEnv("execution.provider", "EXECUTION_PROVIDER")
	v.BindEnv("judge0.api_key", "JUDGE0_KEY")
	v.BindEnv("judge0.url", "JUDGE0_URL")
	v.BindEnv("judge0.host", "JUDGE0_HOST")
	v.BindEnv("sphere.base_url", "SPHERE_BASE_URL")
	v.BindEnv("sphere.token", "SPHERE_TOKEN")

	// Grading
	v.BindEnv("grading.pass_threshold", "PASS_THRESHOLD")
	v.BindEnv("grading.default_language_id", "DEFAULT_LANGUAGE_ID")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Storage.Type == "local" {
		if _, err := os.Stat(cfg.Storage.LocalPath); os.IsNotExist(err) {
			os.MkdirAll(cfg.Storage.LocalPath, 0755)
		}
	}

	return &cfg, nil
}

// Validate 拒绝评分流程无法运行的配置
func (c *Config) Validate() error {
	if c.Server.Mode == "release" && len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(c.JWT.Secret))
	}
	switch c.Execution.Provider {
	case "judge0", "sphere":
	default:
		return fmt.Errorf("unknown execution provider %q", c.Execution.Provider)
	}
	if c.Grading.PassThreshold < 0 || c.Grading.PassThreshold > 100 {
		return fmt.Errorf("grading.pass_threshold must be within 0..100, got %d", c.Grading.PassThreshold)
	}
	if c.Grading.DefaultLanguageID < 0 {
		return fmt.Errorf("grading.default_language_id must not be negative")
	}
	if c.Execution.MaxSourceLength <= 0 {
		return fmt.Errorf("execution.max_source_length must be positive")
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be within 0..1, got %v", c.Tracing.SampleRatio)
	}
	return nil
}
