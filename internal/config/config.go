package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		// dev | staging | prod
		Env string `yaml:"env"`
	} `yaml:"app"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	Storage struct {
		// DSN de postgres (pgxpool). Override: DATABASE_URL
		DSN          string `yaml:"dsn"`
		MaxConns     int    `yaml:"max_conns"`
		MinConns     int    `yaml:"min_conns"`
		ConnLifetime string `yaml:"conn_lifetime"`
	} `yaml:"storage"`

	AuthCache struct {
		TTL      string `yaml:"ttl"`       // default 30s
		Capacity int    `yaml:"capacity"`  // default 1000
		SweepGap string `yaml:"sweep_gap"` // default 60s
	} `yaml:"auth_cache"`

	Session struct {
		Backend      string `yaml:"backend"` // memory | redis
		CookieName   string `yaml:"cookie_name"`
		LegacyCookie string `yaml:"legacy_cookie"`
		TTL          string `yaml:"ttl"`
		Redis        struct {
			Addr   string `yaml:"addr"`
			DB     int    `yaml:"db"`
			Prefix string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"session"`

	JWT struct {
		Issuer string `yaml:"issuer"`
		// PublicKeys: kid -> clave pública ed25519 en base64 estándar
		PublicKeys map[string]string `yaml:"public_keys"`
	} `yaml:"jwt"`

	Pool struct {
		SlowQuery       string `yaml:"slow_query"`        // default 1s
		ReportInterval  string `yaml:"report_interval"`   // default 2m
		MaxTxRetries    int    `yaml:"max_tx_retries"`    // default 3
		LongRunningMins int    `yaml:"long_running_mins"` // default 5
	} `yaml:"pool"`
}

// Load lee el YAML y aplica overrides de env.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("config yaml: %w", err)
		}
	}
	c.applyEnv()
	c.applyDefaults()
	return &c, nil
}

func (c *Config) applyEnv() {
	if v := envStr("APP_ENV"); v != "" {
		c.App.Env = v
	}
	if v := envStr("SERVER_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := envStr("DATABASE_URL"); v != "" {
		c.Storage.DSN = v
	}
	if v := envStr("SESSION_BACKEND"); v != "" {
		c.Session.Backend = v
	}
	if v := envStr("REDIS_ADDR"); v != "" {
		c.Session.Redis.Addr = v
	}
	if v := envStr("JWT_ISSUER"); v != "" {
		c.JWT.Issuer = v
	}
	if v := envStr("POOL_MAX_CONNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Storage.MaxConns = n
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Storage.MaxConns <= 0 {
		c.Storage.MaxConns = 20
	}
	if c.AuthCache.TTL == "" {
		c.AuthCache.TTL = "30s"
	}
	if c.AuthCache.Capacity <= 0 {
		c.AuthCache.Capacity = 1000
	}
	if c.AuthCache.SweepGap == "" {
		c.AuthCache.SweepGap = "60s"
	}
	if c.Session.Backend == "" {
		c.Session.Backend = "memory"
	}
	if c.Session.CookieName == "" {
		c.Session.CookieName = "qaaq_session"
	}
	if c.Session.LegacyCookie == "" {
		c.Session.LegacyCookie = "connect.sid"
	}
	if c.Session.TTL == "" {
		c.Session.TTL = "168h"
	}
	if c.Pool.SlowQuery == "" {
		c.Pool.SlowQuery = "1s"
	}
	if c.Pool.ReportInterval == "" {
		c.Pool.ReportInterval = "2m"
	}
	if c.Pool.MaxTxRetries <= 0 {
		c.Pool.MaxTxRetries = 3
	}
	if c.Pool.LongRunningMins <= 0 {
		c.Pool.LongRunningMins = 5
	}
}

// Dur parsea una duración de la config con fallback.
func Dur(s string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil && d > 0 {
		return d
	}
	return fallback
}

func envStr(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

// =================================================================================
// FLAGS DE MODO DE AUTH (leídos EN VIVO)
// =================================================================================
//
// Estos flags se consultan con os.Getenv en CADA llamada, a propósito: permiten
// apagar el cache o volver al orden legacy sin reiniciar el proceso. No cachear.

// CacheDisabled indica si el Auth Cache debe comportarse como pass-through.
func CacheDisabled() bool {
	return envStr("DISABLE_AUTH_CACHE") == "true"
}

// LegacyOrder indica si Smart Auth Priority debe usar el orden pre-optimización
// (legacy-session → federated-session → token, sin cache). Rollback seguro.
func LegacyOrder() bool {
	return envStr("USE_LEGACY_AUTH_ORDER") == "true"
}

// AutoStartPoolMonitor indica si el reporter del pool arranca con el proceso.
// En prod arranca siempre.
func AutoStartPoolMonitor(appEnv string) bool {
	if strings.ToLower(appEnv) == "prod" {
		return true
	}
	return envStr("AUTO_START_POOL_MONITOR") == "true"
}
