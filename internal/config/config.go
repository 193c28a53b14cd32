// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment overrides for secrets.
const (
	EnvSharedSecret = "TICKETGATE_SHARED_SECRET"
	EnvJWTSecret    = "TICKETGATE_JWT_SECRET"
)

// ErrMissingSecret is returned by Validate when no shared secret is configured.
var ErrMissingSecret = errors.New("security.shared_secret is required")

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Port      int    `yaml:"port"`
	JWTSecret string `yaml:"jwt_secret"`
}

type ScannerConfig struct {
	Source        string        `yaml:"source"` // push | dir
	Dir           string        `yaml:"dir"`    // spool directory for the dir source
	FrameInterval time.Duration `yaml:"frame_interval"`
	FacingMode    string        `yaml:"facing_mode"`
}

type SecurityConfig struct {
	SharedSecret string `yaml:"shared_secret"`
	Cipher       string `yaml:"cipher"`   // openssl | gcm
	KDFSalt      string `yaml:"kdf_salt"` // gcm only
}

type StoreConfig struct {
	Backend           string        `yaml:"backend"` // memory | redis | postgres | firebase
	AtomicTransition  *bool         `yaml:"atomic_transition"`
	OpTimeout         time.Duration `yaml:"op_timeout"`
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
}

// UseAtomicTransition defaults to true when unset.
func (s StoreConfig) UseAtomicTransition() bool {
	return s.AtomicTransition == nil || *s.AtomicTransition
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type FirebaseConfig struct {
	DatabaseURL     string `yaml:"database_url"`
	CredentialsFile string `yaml:"credentials_file"`
}

type TelegramConfig struct {
	Token   string  `yaml:"token"`
	ChatIDs []int64 `yaml:"chat_ids"`
	Workers int     `yaml:"workers"`
}

type PresentationConfig struct {
	Terminal bool   `yaml:"terminal"`
	Language string `yaml:"language"`
}

type Config struct {
	Log          LogConfig          `yaml:"log"`
	HTTP         HTTPConfig         `yaml:"http"`
	Scanner      ScannerConfig      `yaml:"scanner"`
	Security     SecurityConfig     `yaml:"security"`
	Store        StoreConfig        `yaml:"store"`
	Redis        RedisConfig        `yaml:"redis"`
	Database     DatabaseConfig     `yaml:"database"`
	Firebase     FirebaseConfig     `yaml:"firebase"`
	Telegram     TelegramConfig     `yaml:"telegram"`
	Presentation PresentationConfig `yaml:"presentation"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path, applies defaults and environment
// overrides, and validates the result.
func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return cfg, nil
}

// Parse decodes raw YAML. Exposed separately so tests need no file.
func Parse(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvSharedSecret); v != "" {
		cfg.Security.SharedSecret = v
	}
	if v := os.Getenv(EnvJWTSecret); v != "" {
		cfg.HTTP.JWTSecret = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.Scanner.Source == "" {
		cfg.Scanner.Source = "push"
	}
	if cfg.Scanner.FrameInterval <= 0 {
		// roughly one animation frame
		cfg.Scanner.FrameInterval = 33 * time.Millisecond
	}
	if cfg.Scanner.FacingMode == "" {
		cfg.Scanner.FacingMode = "environment"
	}
	if cfg.Security.Cipher == "" {
		cfg.Security.Cipher = "openssl"
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "memory"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Telegram.Workers <= 0 {
		cfg.Telegram.Workers = 1
	}
	if cfg.Presentation.Language == "" {
		cfg.Presentation.Language = "en"
	}
}

// Validate performs the minimal checks needed to wire the station.
func (c *Config) Validate() error {
	if c.Security.SharedSecret == "" {
		return ErrMissingSecret
	}
	switch strings.ToLower(c.Security.Cipher) {
	case "openssl":
	case "gcm":
		if c.Security.KDFSalt == "" {
			return errors.New("security.kdf_salt is required for the gcm cipher")
		}
	default:
		return fmt.Errorf("security.cipher %q is not supported", c.Security.Cipher)
	}

	switch strings.ToLower(c.Scanner.Source) {
	case "push":
	case "dir":
		if c.Scanner.Dir == "" {
			return errors.New("scanner.dir is required for the dir source")
		}
	default:
		return fmt.Errorf("scanner.source %q is not supported", c.Scanner.Source)
	}

	switch strings.ToLower(c.Store.Backend) {
	case "memory":
	case "redis":
		if c.Redis.URL == "" {
			return errors.New("redis.url is required")
		}
	case "postgres":
		if c.Database.URL == "" {
			return errors.New("database.url is required")
		}
	case "firebase":
		if c.Firebase.DatabaseURL == "" {
			return errors.New("firebase.database_url is required")
		}
	default:
		return fmt.Errorf("store.backend %q is not supported", c.Store.Backend)
	}

	if c.Telegram.Token != "" && len(c.Telegram.ChatIDs) == 0 {
		return errors.New("telegram.chat_ids is required when telegram.token is set")
	}
	return nil
}
