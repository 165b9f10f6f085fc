package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

type Config struct {
	Server      ServerConfig           `mapstructure:"server"`
	Log         LogConfig              `mapstructure:"log"`
	Metrics     MetricsConfig          `mapstructure:"metrics"`
	Redis       RedisConfig            `mapstructure:"redis"`
	HTTPClient  HTTPClientConfig       `mapstructure:"http_client"`
	Breaker     BreakerConfig          `mapstructure:"breaker"`
	Interceptor map[string]interface{} `mapstructure:"interceptor"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TLS      bool          `mapstructure:"tls"`
	LocalTTL time.Duration `mapstructure:"local_ttl"`
	// PurgeInterval is how often expired local entries are dropped.
	PurgeInterval time.Duration `mapstructure:"purge_interval"`
}

type HTTPClientConfig struct {
	Timeout            time.Duration `mapstructure:"timeout"`
	MaxConnsPerHost    int           `mapstructure:"max_conns_per_host"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
	UserAgent          string        `mapstructure:"user_agent"`
	// MaxResponseBodySize is in bytes. Zero keeps the client default.
	MaxResponseBodySize int `mapstructure:"max_response_body_size"`
}

type BreakerConfig struct {
	Name        string        `mapstructure:"name"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxFailures uint32        `mapstructure:"max_failures"`
}

var globalConfig Config

func Load(configPath string) error {
	v := viper.New()
	if err := loadConfigFile(v, configPath, "config", &globalConfig); err != nil {
		return fmt.Errorf("could not load main config file: %w", err)
	}
	setDefaultValues(&globalConfig)
	return nil
}

func loadConfigFile(v *viper.Viper, configPath, fileName string, out interface{}) error {
	v.SetConfigName(fileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("config file %s.yaml not found: %w", fileName, err)
		}
		return fmt.Errorf("error reading config file %s.yaml: %w", fileName, err)
	}

	if err := v.Unmarshal(out); err != nil {
		return fmt.Errorf("failed to unmarshal %s config: %w", fileName, err)
	}
	return nil
}

func setDefaultValues(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9090
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.HTTPClient.Timeout == 0 {
		cfg.HTTPClient.Timeout = 30 * time.Second
	}
	if cfg.Redis.PurgeInterval == 0 {
		cfg.Redis.PurgeInterval = time.Minute
	}
	if cfg.Breaker.Name == "" {
		cfg.Breaker.Name = "callapi"
	}
	if cfg.Breaker.Timeout == 0 {
		cfg.Breaker.Timeout = 30 * time.Second
	}
	if cfg.Breaker.MaxFailures == 0 {
		cfg.Breaker.MaxFailures = 5
	}
	if cfg.Interceptor == nil {
		cfg.Interceptor = map[string]interface{}{}
	}
}

func GetConfig() *Config {
	return &globalConfig
}
