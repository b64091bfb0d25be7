package config

import (
	"errors"
	"fmt"
	"log"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

type Config struct {
	Env          string             `yaml:"env"`
	Server       ServerConfig       `yaml:"http_server"`
	Pg           PgConfig           `yaml:"postgres"`
	Storage      string             `yaml:"storage"`
	Migrations   MigrationsConfig   `yaml:"migrations"`
	Engine       EngineConfig       `yaml:"engine"`
	Auth         AuthConfig         `yaml:"auth"`
	Notification NotificationConfig `yaml:"notification"`
	Reconcile    ReconcileConfig    `yaml:"reconcile"`
	RateLimit    RateLimitConfig    `yaml:"rate_limit"`
}

type ServerConfig struct {
	Host        string        `yaml:"host"`
	Port        int           `yaml:"port"`
	Timeout     time.Duration `yaml:"timeout"`
	CORSOrigins []string      `yaml:"cors_origins"`
}

type PgConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Db       string `yaml:"db"`
	SSLMode  string `yaml:"sslmode"`
}

// URL builds a pgx connection string with escaped credentials
func (p PgConfig) URL() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(p.User, p.Password),
		Host:   net.JoinHostPort(p.Host, strconv.Itoa(p.Port)),
		Path:   "/" + p.Db,
	}
	if p.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": []string{p.SSLMode}}.Encode()
	}
	return u.String()
}

type MigrationsConfig struct {
	Dir        string `yaml:"dir"`
	RunOnStart bool   `yaml:"run_on_start"`
}

type EngineConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	NotifyTimeout  time.Duration `yaml:"notify_timeout"`
	InitialBalance string        `yaml:"initial_balance"`
}

// Balance parses InitialBalance; empty means zero, which the accounts use case replaces with its default
func (e EngineConfig) Balance() (decimal.Decimal, error) {
	if strings.TrimSpace(e.InitialBalance) == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(strings.TrimSpace(e.InitialBalance))
}

type AuthConfig struct {
	Secret   string        `yaml:"secret"`
	Issuer   string        `yaml:"issuer"`
	Audience string        `yaml:"audience"`
	TTL      time.Duration `yaml:"ttl"`
}

type NotificationConfig struct {
	Region       string `yaml:"region"`
	FromEmail    string `yaml:"from_email"`
	EmailEnabled bool   `yaml:"email_enabled"`
	SMSEnabled   bool   `yaml:"sms_enabled"`
}

type ReconcileConfig struct {
	Schedule   string        `yaml:"schedule"`
	StaleAfter time.Duration `yaml:"stale_after"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	Burst             int `yaml:"burst"`
}

func resolvePath(cwd, p string) string {
	if p == "" {
		return ""
	}
	if filepath.IsAbs(p) {
		return p
	}
	if up, ok := findUp(cwd, p, 8); ok {
		return up
	}
	return filepath.Join(cwd, p)
}

func findUp(start, rel string, max int) (string, bool) {
	dir := start
	for i := 0; i <= max; i++ {
		p := filepath.Join(dir, rel)
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false
}

// LoadConfig loads the configuration or stops the process
func LoadConfig() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	return cfg
}

// Load reads the optional dotenv file (ENV_FILE, default .env/local.env), then the YAML file (CONFIG_PATH,
// default configs/local.yaml) with ${VAR} references expanded from the environment.
func Load() (*Config, error) {
	cwd, _ := os.Getwd()

	envPath := os.Getenv("ENV_FILE")
	if envPath == "" {
		if up, ok := findUp(cwd, ".env/local.env", 8); ok {
			envPath = up
		}
	} else {
		envPath = resolvePath(cwd, envPath)
	}
	if envPath != "" {
		if err := godotenv.Overload(envPath); err != nil {
			return nil, fmt.Errorf("read env file %s: %w", envPath, err)
		}
	}

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		up, ok := findUp(cwd, "configs/local.yaml", 8)
		if !ok {
			return nil, errors.New("CONFIG_PATH not set and configs/local.yaml not found")
		}
		path = up
	} else {
		path = resolvePath(cwd, path)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Env == "" {
		c.Env = "local"
	}
	if c.Storage == "" {
		c.Storage = StoragePostgres
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Timeout == 0 {
		c.Server.Timeout = 4 * time.Second
	}
	if c.Migrations.Dir == "" {
		c.Migrations.Dir = "migrations"
	}
	if c.Auth.Issuer == "" {
		c.Auth.Issuer = "funds-tracker"
	}
	if c.Auth.Audience == "" {
		c.Auth.Audience = "funds-tracker-api"
	}
	if c.Auth.TTL == 0 {
		c.Auth.TTL = time.Hour
	}
	if c.Notification.Region == "" {
		c.Notification.Region = "us-east-1"
	}
	if c.RateLimit.RequestsPerMinute == 0 {
		c.RateLimit.RequestsPerMinute = 60
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 10
	}
}

// Validate reports every invalid setting at once
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage {
	case StoragePostgres, StorageMemory:
	default:
		errs = append(errs, fmt.Errorf("storage: unknown backend %q", c.Storage))
	}
	if c.Auth.Secret == "" {
		errs = append(errs, errors.New("auth.secret: required"))
	}
	if c.Engine.MaxAttempts < 0 {
		errs = append(errs, errors.New("engine.max_attempts: must not be negative"))
	}
	if b, err := c.Engine.Balance(); err != nil {
		errs = append(errs, fmt.Errorf("engine.initial_balance: %w", err))
	} else if b.IsNegative() {
		errs = append(errs, errors.New("engine.initial_balance: must not be negative"))
	} else if !b.Equal(b.Truncate(2)) {
		errs = append(errs, errors.New("engine.initial_balance: at most 2 decimal places"))
	}
	if c.Notification.EmailEnabled && c.Notification.FromEmail == "" {
		errs = append(errs, errors.New("notification.from_email: required when email is enabled"))
	}
	if c.RateLimit.RequestsPerMinute < 0 || c.RateLimit.Burst < 0 {
		errs = append(errs, errors.New("rate_limit: must not be negative"))
	}
	return errors.Join(errs...)
}
