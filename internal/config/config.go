package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const envPrefix = "TASKCHAT"

type Config struct {
	Mode            string        `mapstructure:"mode"`
	Port            int           `mapstructure:"port"`
	DatabaseURL     string        `mapstructure:"database_url"`
	RedisURL        string        `mapstructure:"redis_url"`
	JWTSecret       string        `mapstructure:"jwt_secret"`
	TokenTTL        time.Duration `mapstructure:"token_ttl"`
	UploadDir       string        `mapstructure:"upload_dir"`
	UploadPrefix    string        `mapstructure:"upload_prefix"`
	MaxUploadBytes  int64         `mapstructure:"max_upload_bytes"`
	HistoryLimit    int           `mapstructure:"history_limit"`
	PostRate        float64       `mapstructure:"post_rate"`
	PostBurst       int           `mapstructure:"post_burst"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

func (c *Config) Debug() bool { return c.Mode == "debug" }

func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("database_url is required"))
	}
	if c.RedisURL == "" {
		errs = append(errs, errors.New("redis_url is required"))
	}
	if len(c.JWTSecret) < 16 {
		errs = append(errs, errors.New("jwt_secret must be at least 16 characters"))
	}
	if c.HistoryLimit <= 0 {
		errs = append(errs, errors.New("history_limit must be positive"))
	}
	return errors.Join(errs...)
}

// LoadEnv reads .env.local, then .env. Values already in the environment win.
func LoadEnv() {
	if err := godotenv.Load(".env.local"); err != nil {
		if err := godotenv.Load(); err != nil {
			log.Debug().Msg(".env not found, using environment variables")
		}
	}
}

// Load builds the server config from defaults, config/config.<env>.yaml and
// TASKCHAT_* variables, in that order of precedence.
func Load() (*Config, error) {
	v := newViper()

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("database_url", "")
	v.SetDefault("redis_url", "redis://localhost:6379/0")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("token_ttl", "24h")
	v.SetDefault("upload_dir", "./uploads")
	v.SetDefault("upload_prefix", "/api/uploads")
	v.SetDefault("max_upload_bytes", 10<<20)
	v.SetDefault("history_limit", 100)
	v.SetDefault("post_rate", 2.0)
	v.SetDefault("post_burst", 10)
	v.SetDefault("shutdown_timeout", "10s")

	// Names used by earlier deployments.
	_ = v.BindEnv("port", envPrefix+"_PORT", "PORT")
	_ = v.BindEnv("database_url", envPrefix+"_DATABASE_URL", "DATABASE_URL")
	_ = v.BindEnv("redis_url", envPrefix+"_REDIS_URL", "REDIS_URL")
	_ = v.BindEnv("jwt_secret", envPrefix+"_JWT_SECRET", "JWT_SECRET")

	if err := readFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

type ClientConfig struct {
	APIURL       string        `mapstructure:"api_url"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	HistoryLimit int           `mapstructure:"history_limit"`
	SessionFile  string        `mapstructure:"session_file"`
	Debug        bool          `mapstructure:"debug"`
}

func LoadClient() (*ClientConfig, error) {
	v := newViper()

	v.SetDefault("api_url", "http://localhost:8080")
	v.SetDefault("poll_interval", "3s")
	v.SetDefault("history_limit", 200)
	v.SetDefault("session_file", defaultSessionFile())
	v.SetDefault("debug", false)

	var cfg ClientConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse client config: %w", err)
	}
	if cfg.PollInterval <= 0 {
		return nil, errors.New("poll_interval must be positive")
	}
	return &cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func readFile(v *viper.Viper) error {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)
	if err := v.ReadInConfig(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Info().Str("file", fileName).Msg("config file not found, using defaults")
			return nil
		}
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			log.Info().Str("file", fileName).Msg("config file not found, using defaults")
			return nil
		}
		return fmt.Errorf("read %s: %w", fileName, err)
	}
	log.Info().Str("file", fileName).Msg("config loaded")
	return nil
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".taskchat-session.yaml"
	}
	return dir + string(os.PathSeparator) + "taskchat" + string(os.PathSeparator) + "session.yaml"
}
