package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SERVER_ADDR", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("addr=%q", cfg.Server.Addr)
	}
	if cfg.AuthCache.TTL != "30s" || cfg.AuthCache.Capacity != 1000 || cfg.AuthCache.SweepGap != "60s" {
		t.Fatalf("auth cache defaults: %+v", cfg.AuthCache)
	}
	if cfg.Session.Backend != "memory" || cfg.Session.CookieName != "qaaq_session" || cfg.Session.LegacyCookie != "connect.sid" {
		t.Fatalf("session defaults: %+v", cfg.Session)
	}
	if cfg.Pool.SlowQuery != "1s" || cfg.Pool.ReportInterval != "2m" || cfg.Pool.MaxTxRetries != 3 || cfg.Pool.LongRunningMins != 5 {
		t.Fatalf("pool defaults: %+v", cfg.Pool)
	}
}

func TestLoadYAMLAndEnvOverride(t *testing.T) {
	p := writeConfig(t, `
server:
  addr: ":9999"
storage:
  dsn: "postgres://file"
auth_cache:
  capacity: 50
`)
	t.Setenv("DATABASE_URL", "postgres://env-wins")

	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":9999" {
		t.Fatalf("addr=%q", cfg.Server.Addr)
	}
	// env pisa al archivo
	if cfg.Storage.DSN != "postgres://env-wins" {
		t.Fatalf("dsn=%q", cfg.Storage.DSN)
	}
	if cfg.AuthCache.Capacity != 50 {
		t.Fatalf("capacity=%d", cfg.AuthCache.Capacity)
	}
}

func TestLoadBadYAML(t *testing.T) {
	p := writeConfig(t, "{{{not yaml")
	if _, err := Load(p); err == nil {
		t.Fatal("expected yaml error")
	}
}

func TestDur(t *testing.T) {
	if got := Dur("45s", time.Minute); got != 45*time.Second {
		t.Fatalf("got %v", got)
	}
	if got := Dur("nope", time.Minute); got != time.Minute {
		t.Fatalf("fallback: %v", got)
	}
	if got := Dur("", 2*time.Minute); got != 2*time.Minute {
		t.Fatalf("empty fallback: %v", got)
	}
}

func TestLiveFlags(t *testing.T) {
	t.Setenv("DISABLE_AUTH_CACHE", "")
	t.Setenv("USE_LEGACY_AUTH_ORDER", "")

	if CacheDisabled() || LegacyOrder() {
		t.Fatal("flags should default off")
	}

	// se leen en vivo: el cambio surte efecto sin recargar nada
	t.Setenv("DISABLE_AUTH_CACHE", "true")
	if !CacheDisabled() {
		t.Fatal("DISABLE_AUTH_CACHE not live")
	}
	t.Setenv("USE_LEGACY_AUTH_ORDER", "true")
	if !LegacyOrder() {
		t.Fatal("USE_LEGACY_AUTH_ORDER not live")
	}

	// cualquier valor distinto de "true" es off
	t.Setenv("DISABLE_AUTH_CACHE", "1")
	if CacheDisabled() {
		t.Fatal("only the literal true enables the flag")
	}
}

func TestAutoStartPoolMonitor(t *testing.T) {
	t.Setenv("AUTO_START_POOL_MONITOR", "")
	if !AutoStartPoolMonitor("prod") {
		t.Fatal("prod always starts the monitor")
	}
	if AutoStartPoolMonitor("dev") {
		t.Fatal("dev should not start without the flag")
	}
	t.Setenv("AUTO_START_POOL_MONITOR", "true")
	if !AutoStartPoolMonitor("dev") {
		t.Fatal("flag should force the monitor on")
	}
}
