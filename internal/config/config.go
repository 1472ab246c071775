// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"imepay-gateway/internal/infra/adapters/payment"
)

type RuntimeConfig struct {
	Dev bool
}

type IMEPayConfig struct {
	APIUser         string        `yaml:"api_user"`
	APIPassword     string        `yaml:"api_password"`
	Module          string        `yaml:"module"`
	MerchantCode    string        `yaml:"merchant_code"`
	Env             string        `yaml:"env"`             // live | sandbox
	CallbackMethod  string        `yaml:"callback_method"` // GET | POST
	CallbackURL     string        `yaml:"callback_url"`
	CancelURL       string        `yaml:"cancel_url"`
	LiveAPIURL      string        `yaml:"live_api_url"`      // required when env=live
	LiveCheckoutURL string        `yaml:"live_checkout_url"` // required when env=live
	Timeout         time.Duration `yaml:"timeout"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
	// CheckoutRateLimit caps checkout requests per client IP per window; 0 disables it.
	CheckoutRateLimit  int           `yaml:"checkout_rate_limit"`
	CheckoutRateWindow time.Duration `yaml:"checkout_rate_window"`
}

type SchedulerConfig struct {
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
	StaleAfter        time.Duration `yaml:"stale_after"`
	BatchSize         int           `yaml:"batch_size"`
	Workers           int           `yaml:"workers"` // concurrent rechecks per pass
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type AdminConfig struct {
	APIKey string `yaml:"api_key"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	LockTTL  time.Duration `yaml:"lock_ttl"`
}

type Config struct {
	IMEPay    IMEPayConfig    `yaml:"imepay"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Admin     AdminConfig     `yaml:"admin"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Scheduler SchedulerConfig `yaml:"scheduler"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path (a missing file is allowed), loads
// .env into the process environment and applies IMEPAY_* and service
// environment overrides on top. Environment always wins.
func LoadConfig(path string, dev bool) (*Config, error) {
	_ = godotenv.Load() // .env is optional

	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	str := map[string]*string{
		"IMEPAY_API_USER":          &cfg.IMEPay.APIUser,
		"IMEPAY_API_PASSWORD":      &cfg.IMEPay.APIPassword,
		"IMEPAY_MODULE":            &cfg.IMEPay.Module,
		"IMEPAY_MERCHANT_CODE":     &cfg.IMEPay.MerchantCode,
		"IMEPAY_ENV":               &cfg.IMEPay.Env,
		"IMEPAY_CALLBACK_URL":      &cfg.IMEPay.CallbackURL,
		"IMEPAY_CANCEL_URL":        &cfg.IMEPay.CancelURL,
		"IMEPAY_CALLBACK_METHOD":   &cfg.IMEPay.CallbackMethod,
		"IMEPAY_LIVE_API_URL":      &cfg.IMEPay.LiveAPIURL,
		"IMEPAY_LIVE_CHECKOUT_URL": &cfg.IMEPay.LiveCheckoutURL,
		"DATABASE_URL":             &cfg.Database.URL,
		"REDIS_URL":                &cfg.Redis.URL,
		"REDIS_PASSWORD":           &cfg.Redis.Password,
		"ADMIN_API_KEY":            &cfg.Admin.APIKey,
		"LOG_LEVEL":                &cfg.Log.Level,
		"LOG_FORMAT":               &cfg.Log.Format,
	}
	for key, dst := range str {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("IMEPAY_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("IMEPAY_TIMEOUT: %w", err)
		}
		cfg.IMEPay.Timeout = d
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.IMEPay.Timeout <= 0 {
		cfg.IMEPay.Timeout = 15 * time.Second
	}
	if cfg.Server.CheckoutRateWindow <= 0 {
		cfg.Server.CheckoutRateWindow = time.Minute
	}
	if cfg.Scheduler.ReconcileInterval <= 0 {
		cfg.Scheduler.ReconcileInterval = time.Minute
	}
	if cfg.Scheduler.StaleAfter <= 0 {
		cfg.Scheduler.StaleAfter = 10 * time.Minute
	}
	if cfg.Scheduler.BatchSize <= 0 {
		cfg.Scheduler.BatchSize = 100
	}
	if cfg.Scheduler.Workers <= 0 {
		cfg.Scheduler.Workers = 4
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.LockTTL = normalizeTTL(cfg.Redis.LockTTL)
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return 30 * time.Second
	}
	return d
}

// ClientConfig maps the imepay section onto the client's configuration.
// Validation happens in payment.NewImePayGateway.
func (c *Config) ClientConfig() payment.ClientConfig {
	return payment.ClientConfig{
		APIUser:         c.IMEPay.APIUser,
		APIPassword:     c.IMEPay.APIPassword,
		Module:          c.IMEPay.Module,
		MerchantCode:    c.IMEPay.MerchantCode,
		Environment:     c.IMEPay.Env,
		CallbackMethod:  c.IMEPay.CallbackMethod,
		CallbackURL:     c.IMEPay.CallbackURL,
		CancelURL:       c.IMEPay.CancelURL,
		LiveAPIURL:      c.IMEPay.LiveAPIURL,
		LiveCheckoutURL: c.IMEPay.LiveCheckoutURL,
		HTTPClient:      &http.Client{Timeout: c.IMEPay.Timeout},
	}
}
