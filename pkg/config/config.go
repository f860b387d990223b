package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Logging   LoggingConfig
	Modules   ModulesConfig
	Dashboard DashboardConfig
	Rotation  RotationConfig
	Digest    DigestConfig
}

type ServerConfig struct {
	HTTPPort    int           `mapstructure:"http_port"`
	MetricsPort int           `mapstructure:"metrics_port"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	SSLMode      string `mapstructure:"ssl_mode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Addresses   []string `mapstructure:"addresses"`
	Password    string   `mapstructure:"password"`
	DB          int      `mapstructure:"db"`
	PoolSize    int      `mapstructure:"pool_size"`
	ClusterMode bool     `mapstructure:"cluster_mode"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

// ModulesConfig gates which sub-derivers run. A disabled module
// contributes zero operational events.
type ModulesConfig struct {
	Bookings   bool `mapstructure:"bookings"`
	Staff      bool `mapstructure:"staff"`
	Compliance bool `mapstructure:"compliance"`
}

type DashboardConfig struct {
	ComplianceLookaheadDays int `mapstructure:"compliance_lookahead_days"`
	LeaveHorizonDays        int `mapstructure:"leave_horizon_days"`
}

type RotationConfig struct {
	WindowDays    int `mapstructure:"window_days"`
	MaxCandidates int `mapstructure:"max_candidates"`
}

type DigestConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("/etc/sorted/")
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("SORTED")
	viper.AutomaticEnv()

	viper.SetDefault("server.http_port", 8080)
	viper.SetDefault("server.metrics_port", 9091)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("redis.pool_size", 100)
	viper.SetDefault("auth.token_ttl", "24h")
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("modules.bookings", true)
	viper.SetDefault("modules.staff", true)
	viper.SetDefault("modules.compliance", true)
	viper.SetDefault("dashboard.compliance_lookahead_days", 14)
	viper.SetDefault("dashboard.leave_horizon_days", 7)
	viper.SetDefault("rotation.window_days", 7)
	viper.SetDefault("rotation.max_candidates", 3)
	viper.SetDefault("digest.interval", "24h")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
