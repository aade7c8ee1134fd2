package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Security  SecurityConfig  `mapstructure:"security"`
	Log       LogConfig       `mapstructure:"log"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Push      PushConfig      `mapstructure:"push"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Feed      FeedConfig      `mapstructure:"feed"`
	Ranking   RankingConfig   `mapstructure:"ranking"`
	Recommend RecommendConfig `mapstructure:"recommend"`
}

type ServerConfig struct {
	Port  int  `mapstructure:"port"`
	Debug bool `mapstructure:"debug"`
	// AdminIPs restricts /api/admin and /metrics. Empty allows every IP
	// (staff check still applies to /api/admin).
	AdminIPs []string `mapstructure:"admin_ips"`
}

type DatabaseConfig struct {
	Mode         string        `mapstructure:"mode"` // sqlite | mysql
	SQLitePath   string        `mapstructure:"sqlite_path"`
	MySQLDSN     string        `mapstructure:"mysql_dsn"`
	MySQLMaxOpen int           `mapstructure:"mysql_max_open"`
	MySQLMaxIdle int           `mapstructure:"mysql_max_idle"`
	MySQLMaxLife time.Duration `mapstructure:"mysql_max_life"`
	// SlowQuery logs statements slower than this at warn level.
	SlowQuery time.Duration `mapstructure:"slow_query"`
	// LogQueries logs every statement at debug level.
	LogQueries bool `mapstructure:"log_queries"`
}

type CacheConfig struct {
	RedisAddr       string        `mapstructure:"redis_addr"`
	RedisPassword   string        `mapstructure:"redis_password"`
	RedisDB         int           `mapstructure:"redis_db"`
	KeyPrefix       string        `mapstructure:"key_prefix"`
	LocalGCInterval time.Duration `mapstructure:"local_gc_interval"`
	LocalPubSubBuf  int           `mapstructure:"local_pubsub_buf"`
}

type SecurityConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	JWTTTLH        time.Duration `mapstructure:"jwt_ttl_h"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	// File enables rotated file output in addition to stderr.
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type StorageConfig struct {
	// Endpoint of the S3-compatible store. Empty keeps photos in memory.
	Endpoint    string `mapstructure:"endpoint"`
	AccessKey   string `mapstructure:"access_key"`
	SecretKey   string `mapstructure:"secret_key"`
	Bucket      string `mapstructure:"bucket"`
	UseSSL      bool   `mapstructure:"use_ssl"`
	PublicURL   string `mapstructure:"public_url"`
	MaxUploadMB int    `mapstructure:"max_upload_mb"`
}

type PushConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	QueueSize        int           `mapstructure:"queue_size"`
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
	OpenTimeout      time.Duration `mapstructure:"open_timeout"`
}

type NotifyConfig struct {
	// ReadRetention is how long read notifications are kept.
	ReadRetention time.Duration `mapstructure:"read_retention"`
	PurgeInterval time.Duration `mapstructure:"purge_interval"`
}

type FeedConfig struct {
	ViewTTL        time.Duration `mapstructure:"view_ttl"`
	CandidateLimit int           `mapstructure:"candidate_limit"`
}

type RankingConfig struct {
	TopPosts    int    `mapstructure:"top_posts"`
	TopBeans    int    `mapstructure:"top_beans"`
	WarmWeekday string `mapstructure:"warm_weekday"`
	WarmHour    int    `mapstructure:"warm_hour"`
	WarmOnStart bool   `mapstructure:"warm_on_start"`
}

type RecommendConfig struct {
	ModelPath string `mapstructure:"model_path"`
	Limit     int    `mapstructure:"limit"`
}

// Load reads config from the given YAML file path. Every key can be
// overridden by an environment variable such as BREWBUDS_DATABASE_MYSQL_DSN.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("brewbuds")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, err
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it on Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.debug", false)
	v.SetDefault("server.admin_ips", []string{})

	v.SetDefault("database.mode", "sqlite")
	v.SetDefault("database.sqlite_path", "./data/brewbuds.db")
	v.SetDefault("database.mysql_dsn", "")
	v.SetDefault("database.mysql_max_open", 50)
	v.SetDefault("database.mysql_max_idle", 10)
	v.SetDefault("database.mysql_max_life", "1h")
	v.SetDefault("database.slow_query", "200ms")
	v.SetDefault("database.log_queries", false)

	v.SetDefault("cache.redis_addr", "")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.key_prefix", "")
	v.SetDefault("cache.local_gc_interval", "30s")
	v.SetDefault("cache.local_pubsub_buf", 256)

	v.SetDefault("security.jwt_secret", "")
	v.SetDefault("security.jwt_ttl_h", "72h")
	v.SetDefault("security.rate_limit_rps", 50)
	v.SetDefault("security.rate_limit_burst", 100)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age_days", 30)

	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.bucket", "brewbuds")
	v.SetDefault("storage.use_ssl", false)
	v.SetDefault("storage.public_url", "")
	v.SetDefault("storage.max_upload_mb", 10)

	v.SetDefault("push.enabled", false)
	v.SetDefault("push.queue_size", 1024)
	v.SetDefault("push.failure_threshold", 5)
	v.SetDefault("push.open_timeout", "30s")

	v.SetDefault("notify.read_retention", "2160h")
	v.SetDefault("notify.purge_interval", "6h")

	v.SetDefault("feed.view_ttl", "24h")
	v.SetDefault("feed.candidate_limit", 500)

	v.SetDefault("ranking.top_posts", 10)
	v.SetDefault("ranking.top_beans", 10)
	v.SetDefault("ranking.warm_weekday", "monday")
	v.SetDefault("ranking.warm_hour", 0)
	v.SetDefault("ranking.warm_on_start", true)

	v.SetDefault("recommend.model_path", "")
	v.SetDefault("recommend.limit", 10)
}
