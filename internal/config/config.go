package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

const (
	EnvDev   = "dev"
	EnvProd  = "prod"
	EnvLocal = "local"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

var unresolvedPlaceholder = regexp.MustCompile(`\$\{[A-Za-z_][A-Za-z0-9_]*\}`)

// DefaultPath is read when TASKTIMER_CONFIG is not set.
const DefaultPath = "config.yaml"

type Config struct {
	Env string `yaml:"env" env:"ENV" env-upd:""`

	Discord  DiscordConfig  `yaml:"discord"`
	Database DatabaseConfig `yaml:"database"`
	HTTP     HTTPConfig     `yaml:"http"`
	Auth     AuthConfig     `yaml:"auth"`
	Notify   NotifyConfig   `yaml:"notify"`
}

type DiscordConfig struct {
	Enabled  bool   `yaml:"enabled" env:"DISCORD_ENABLED" env-upd:""`
	Token    string `yaml:"token" env:"DISCORD_TOKEN" env-upd:""`
	ClientID string `yaml:"client_id" env:"DISCORD_CLIENT_ID" env-upd:""`
	// NotifyChannelID receives timer notifications when set.
	NotifyChannelID string `yaml:"notify_channel_id" env:"DISCORD_NOTIFY_CHANNEL_ID" env-upd:""`
}

type DatabaseConfig struct {
	Driver      string        `yaml:"driver" env:"DB_DRIVER" env-upd:""`
	Host        string        `yaml:"host" env:"DB_HOST" env-upd:""`
	Port        int           `yaml:"port" env:"DB_PORT" env-upd:""`
	User        string        `yaml:"user" env:"DB_USER" env-upd:""`
	Password    string        `yaml:"password" env:"DB_PASSWORD" env-upd:""`
	DBName      string        `yaml:"dbname" env:"DB_NAME" env-upd:""`
	SSLMode     string        `yaml:"sslmode" env:"DB_SSLMODE" env-upd:""`
	MaxConns    int32         `yaml:"max_conns" env:"DB_MAX_CONNS" env-upd:""`
	MinConns    int32         `yaml:"min_conns" env:"DB_MIN_CONNS" env-upd:""`
	TxTimeout   time.Duration `yaml:"tx_timeout" env:"DB_TX_TIMEOUT" env-upd:""`
	LockTimeout time.Duration `yaml:"lock_timeout" env:"DB_LOCK_TIMEOUT" env-upd:""`
}

// URL returns the postgres connection string.
func (c DatabaseConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

type HTTPConfig struct {
	Enabled         bool          `yaml:"enabled" env:"HTTP_ENABLED" env-upd:""`
	Host            string        `yaml:"host" env:"HTTP_HOST" env-upd:""`
	Port            string        `yaml:"port" env:"HTTP_PORT" env-upd:""`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-upd:""`
}

type AuthConfig struct {
	JWTSigningKey string `yaml:"jwt_signing_key" env:"JWT_SIGNING_KEY" env-upd:""`
	JWTIssuer     string `yaml:"jwt_issuer" env:"JWT_ISSUER" env-upd:""`
}

type NotifyConfig struct {
	Buffer int `yaml:"buffer" env:"NOTIFY_BUFFER" env-upd:""`
}

// Load reads the config file named by TASKTIMER_CONFIG, or DefaultPath.
func Load() (*Config, error) {
	path := os.Getenv("TASKTIMER_CONFIG")
	if path == "" {
		path = DefaultPath
	}
	return LoadFile(path)
}

// LoadFile reads a YAML config file, expands ${VAR} placeholders from the
// environment, applies environment overrides and fills defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	// Replace environment variables in the YAML content
	content := string(data)
	for _, env := range os.Environ() {
		pair := strings.SplitN(env, "=", 2)
		if len(pair) != 2 {
			continue
		}
		placeholder := "${" + pair[0] + "}"
		content = strings.ReplaceAll(content, placeholder, pair[1])
	}
	content = unresolvedPlaceholder.ReplaceAllString(content, "")

	var cfg Config
	if err := yaml.Unmarshal([]byte(content), &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	if err := cleanenv.UpdateEnv(&cfg); err != nil {
		return nil, fmt.Errorf("error applying environment: %w", err)
	}

	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Env == "" {
		c.Env = EnvLocal
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverPostgres
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = 10
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = 2
	}
	if c.Database.TxTimeout == 0 {
		c.Database.TxTimeout = 10 * time.Second
	}
	if c.Database.LockTimeout == 0 {
		c.Database.LockTimeout = 5 * time.Second
	}
	if c.HTTP.Port == "" {
		c.HTTP.Port = "8080"
	}
	if c.HTTP.ShutdownTimeout == 0 {
		c.HTTP.ShutdownTimeout = 5 * time.Second
	}
	if c.Auth.JWTIssuer == "" {
		c.Auth.JWTIssuer = "tasktimer"
	}
	if c.Notify.Buffer == 0 {
		c.Notify.Buffer = 64
	}
}

// Validate checks that every enabled feature has what it needs.
func (c *Config) Validate() error {
	var errs []error

	switch c.Env {
	case EnvDev, EnvProd, EnvLocal:
	default:
		errs = append(errs, fmt.Errorf("unknown env: %s", c.Env))
	}

	switch c.Database.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Database.Host == "" {
			errs = append(errs, errors.New("database.host is required"))
		}
		if c.Database.User == "" {
			errs = append(errs, errors.New("database.user is required"))
		}
		if c.Database.DBName == "" {
			errs = append(errs, errors.New("database.dbname is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown database driver: %s", c.Database.Driver))
	}

	if c.Discord.Enabled {
		if c.Discord.Token == "" {
			errs = append(errs, errors.New("discord.token is required when discord is enabled"))
		}
		if c.Discord.ClientID == "" {
			errs = append(errs, errors.New("discord.client_id is required when discord is enabled"))
		}
	}

	if c.HTTP.Enabled && c.Auth.JWTSigningKey == "" {
		errs = append(errs, errors.New("auth.jwt_signing_key is required when http is enabled"))
	}

	if !c.Discord.Enabled && !c.HTTP.Enabled {
		errs = append(errs, errors.New("at least one of discord or http must be enabled"))
	}

	return errors.Join(errs...)
}
