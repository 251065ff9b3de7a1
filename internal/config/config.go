package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Env        string           `mapstructure:"app_env"`
	Server     ServerConfig     `mapstructure:"server"`
	Postgres   PostgresConfig   `mapstructure:"postgres"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Token      TokenConfig      `mapstructure:"token"`
	Identity   IdentityConfig   `mapstructure:"identity"`
	Mail       MailConfig       `mapstructure:"mail"`
	Minio      MinioConfig      `mapstructure:"minio"`
	Reputation ReputationConfig `mapstructure:"reputation"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
	// PublicURL используется для ссылок в письмах поставщикам
	PublicURL       string        `mapstructure:"public_url"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// AllowedOrigins шаблоны Origin для /ws/changes, кроме собственного хоста
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type PostgresConfig struct {
	Conn string `mapstructure:"conn"`
}

type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
}

type TokenConfig struct {
	Secret string        `mapstructure:"secret"`
	RFQTTL time.Duration `mapstructure:"rfq_ttl"`
}

type IdentityConfig struct {
	Secret string `mapstructure:"secret"`
}

type MailConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	UseSSL   bool   `mapstructure:"use_ssl"`
	// Suppress отключает реальную отправку, письма только логируются
	Suppress bool `mapstructure:"suppress"`
}

type MinioConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

type ReputationConfig struct {
	SourceURL   string        `mapstructure:"source_url"`
	ReviewLimit int           `mapstructure:"review_limit"`
	JobTimeout  time.Duration `mapstructure:"job_timeout"`
	PollTimeout time.Duration `mapstructure:"poll_timeout"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

const devSecret = "dev-secret"

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_env", "development")

	v.SetDefault("server.address", "0.0.0.0:8080")
	v.SetDefault("server.public_url", "http://localhost:8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.allowed_origins", []string{})

	v.SetDefault("postgres.conn", "")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.dial_timeout", 10*time.Second)
	v.SetDefault("redis.read_timeout", 10*time.Second)

	v.SetDefault("token.secret", devSecret)
	v.SetDefault("token.rfq_ttl", 7*24*time.Hour)

	v.SetDefault("identity.secret", devSecret)

	v.SetDefault("mail.host", "smtp.gmail.com")
	v.SetDefault("mail.port", 465)
	v.SetDefault("mail.username", "")
	v.SetDefault("mail.password", "")
	v.SetDefault("mail.from", "")
	v.SetDefault("mail.use_ssl", true)
	v.SetDefault("mail.suppress", true)

	v.SetDefault("minio.endpoint", "localhost:9000")
	v.SetDefault("minio.access_key", "")
	v.SetDefault("minio.secret_key", "")
	v.SetDefault("minio.bucket", "item-photos")
	v.SetDefault("minio.use_ssl", false)

	v.SetDefault("reputation.source_url", "http://localhost:8090")
	v.SetDefault("reputation.review_limit", 50)
	v.SetDefault("reputation.job_timeout", 5*time.Minute)
	v.SetDefault("reputation.poll_timeout", 5*time.Second)

	v.SetDefault("log.level", "info")
}

// Load читает .env, необязательный config.toml и переменные окружения.
// Ключ server.address переопределяется переменной SERVER_ADDRESS и т.д.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	configName := "config"
	if name := os.Getenv("CONFIG_NAME"); name != "" {
		configName = name
	}
	v.SetConfigName(configName)
	v.SetConfigType("toml")
	v.AddConfigPath("config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Production сообщает, запущен ли сервис в боевом окружении
func (c *Config) Production() bool {
	return c.Env == "production"
}

// Validate проверяет обязательные параметры
func (c *Config) Validate() error {
	if c.Postgres.Conn == "" {
		return errors.New("POSTGRES_CONN env variable is not set")
	}
	if c.Token.RFQTTL <= 0 {
		return errors.New("TOKEN_RFQ_TTL must be positive")
	}
	if c.Production() {
		if c.Token.Secret == devSecret || c.Token.Secret == "" {
			return errors.New("TOKEN_SECRET must be set in production")
		}
		if c.Identity.Secret == devSecret || c.Identity.Secret == "" {
			return errors.New("IDENTITY_SECRET must be set in production")
		}
	}
	return nil
}
