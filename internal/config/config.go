package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const defaultRedisPort = 6379

// Config represents the root configuration structure for the application
type Config struct {
	Servers []ServerConfig `mapstructure:"servers"`
	HTTP    HTTPConfig     `mapstructure:"http"`
	Redis   RedisConfig    `mapstructure:"redis"`
	Log     LogConfig      `mapstructure:"log"`
}

// ServerConfig describes one administered Redis-compatible server
type ServerConfig struct {
	Name     string `mapstructure:"name"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database int    `mapstructure:"database"` // default logical database
	Password string `mapstructure:"password"`
}

// Addr returns host:port of the server
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// HTTPConfig holds the network settings of the gateway
type HTTPConfig struct {
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	RateLimit       int           `mapstructure:"rate_limit"` // requests per second per client, 0 disables
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// RedisConfig tunes the upstream clients
type RedisConfig struct {
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`
	ScanCount    int           `mapstructure:"scan_count"` // COUNT hint used by the scan script
}

// LogConfig defines logging verbosity and output style
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

// Load reads the configuration from a file and overrides it with environment variables.
// A missing config file is not an error: found reports whether one was read
func Load(path string) (cfg *Config, found bool, err error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath(".")

	v.SetEnvPrefix("MOONVIEW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	found = true
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, false, err
		}
		found = false
	}

	cfg = &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, found, err
	}

	if err := cfg.normalize(); err != nil {
		return nil, found, err
	}

	return cfg, found, nil
}

// normalize fills per-server defaults and rejects invalid descriptors
func (c *Config) normalize() error {
	seen := make(map[string]struct{}, len(c.Servers))

	for i := range c.Servers {
		s := &c.Servers[i]

		if s.Name == "" {
			return fmt.Errorf("servers[%d]: name is required", i)
		}
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("servers[%d]: duplicate name %q", i, s.Name)
		}
		seen[s.Name] = struct{}{}

		if s.Host == "" {
			return fmt.Errorf("server %q: host is required", s.Name)
		}
		if s.Port == 0 {
			s.Port = defaultRedisPort
		}
		if s.Port < 0 || s.Port > 65535 {
			return fmt.Errorf("server %q: port %d out of range", s.Name, s.Port)
		}
		if s.Database < 0 {
			return fmt.Errorf("server %q: database must not be negative", s.Name)
		}
	}

	return nil
}

// setDefaults populates viper with fallback values if they are not provided via file or ENV
func setDefaults(v *viper.Viper) {
	// HTTP
	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", "8000")
	v.SetDefault("http.cors_origins", []string{"*"})
	v.SetDefault("http.rate_limit", 0)
	v.SetDefault("http.shutdown_timeout", "5s")

	// Redis
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.scan_count", 1000)

	// Logger
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}
