package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/qaaqit/qaaq-auth/internal/authcache"
	"github.com/qaaqit/qaaq-auth/internal/authflow"
	"github.com/qaaqit/qaaq-auth/internal/config"
	"github.com/qaaqit/qaaq-auth/internal/dbpool"
	httpx "github.com/qaaqit/qaaq-auth/internal/http"
	"github.com/qaaqit/qaaq-auth/internal/http/router"
	"github.com/qaaqit/qaaq-auth/internal/observability/logger"
	"github.com/qaaqit/qaaq-auth/internal/rate"
	"github.com/qaaqit/qaaq-auth/internal/resolver"
	"github.com/qaaqit/qaaq-auth/internal/session"
	"github.com/qaaqit/qaaq-auth/internal/store/pg"
	"github.com/qaaqit/qaaq-auth/internal/token"
)

func main() {
	var (
		flagConfigPath = envOr("CONFIG_PATH", "configs/config.yaml")
		flagEnvFile    = ".env"
	)

	root := &cobra.Command{
		Use:   "qaaq-auth",
		Short: "Servicio de resolución de identidad de QAAQ",
	}
	root.PersistentFlags().StringVar(&flagConfigPath, "config", flagConfigPath, "ruta a config.yaml (env CONFIG_PATH)")
	root.PersistentFlags().StringVar(&flagEnvFile, "env-file", flagEnvFile, "ruta a .env (si existe, se carga)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Levanta el servidor HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(flagConfigPath, flagEnvFile)
		},
	}

	printCmd := &cobra.Command{
		Use:   "print-config",
		Short: "Imprime la config efectiva y termina",
		RunE: func(cmd *cobra.Command, args []string) error {
			if fileExists(flagEnvFile) {
				_ = godotenv.Load(flagEnvFile)
			}
			cfg, err := loadConfig(flagConfigPath)
			if err != nil {
				return err
			}
			printConfigSummary(cfg)
			return nil
		},
	}

	var migrateDir string
	migrateCmd := &cobra.Command{
		Use:   "migrate [up|down] [steps]",
		Short: "Aplica migraciones SQL (*_up.sql / *_down.sql)",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if fileExists(flagEnvFile) {
				_ = godotenv.Load(flagEnvFile)
			}
			return migrate(flagConfigPath, migrateDir, args)
		},
	}
	migrateCmd.Flags().StringVar(&migrateDir, "dir", "migrations/postgres", "directorio de migraciones")

	root.AddCommand(serveCmd, printCmd, migrateCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func serve(cfgPath, envFile string) error {
	if fileExists(envFile) {
		_ = godotenv.Load(envFile)
	}

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       envOr("LOG_LEVEL", "info"),
		ServiceName: "qaaq-auth",
		Version:     os.Getenv("SERVICE_VERSION"),
	})
	defer func() { _ = logger.Sync() }()
	log := logger.Named("main")

	ctx := context.Background()

	// ===== STORAGE =====
	pool, err := pg.Open(ctx, pg.PoolConfig{
		DSN:          cfg.Storage.DSN,
		MaxConns:     cfg.Storage.MaxConns,
		MinConns:     cfg.Storage.MinConns,
		ConnLifetime: cfg.Storage.ConnLifetime,
	})
	if err != nil {
		return fmt.Errorf("pg: %w", err)
	}
	defer pool.Close()

	mgr := dbpool.New(pool, dbpool.Options{
		SlowQuery:      config.Dur(cfg.Pool.SlowQuery, time.Second),
		ReportInterval: config.Dur(cfg.Pool.ReportInterval, 2*time.Minute),
		MaxTxRetries:   cfg.Pool.MaxTxRetries,
		LongRunning:    time.Duration(cfg.Pool.LongRunningMins) * time.Minute,
		Metrics:        dbpool.NewMetrics(nil),
	})
	if config.AutoStartPoolMonitor(cfg.App.Env) {
		mgr.StartMonitor()
		defer mgr.StopMonitor()
	}

	// ===== AUTH CACHE =====
	cache := authcache.New(authcache.Options{
		TTL:      config.Dur(cfg.AuthCache.TTL, 30*time.Second),
		Capacity: cfg.AuthCache.Capacity,
		SweepGap: config.Dur(cfg.AuthCache.SweepGap, time.Minute),
	})
	cache.StartSweeper()
	defer cache.Stop()

	// ===== SESIONES =====
	var (
		sessions     session.Store
		checkRedis   func(ctx context.Context) error
		adminLimiter rate.Limiter
		authLimiter  rate.Limiter
	)
	sessionTTL := config.Dur(cfg.Session.TTL, 168*time.Hour)
	switch cfg.Session.Backend {
	case "redis":
		rs := session.NewRedis(session.RedisConfig{
			Addr:   cfg.Session.Redis.Addr,
			DB:     cfg.Session.Redis.DB,
			Prefix: cfg.Session.Redis.Prefix,
			TTL:    sessionTTL,
		})
		defer func() { _ = rs.Close() }()
		sessions = rs
		checkRedis = rs.Ping
		// mismo cliente para los rate limits; el de credenciales es más duro
		adminLimiter = rate.NewRedisLimiter(rs.Client(), "rl:admin:", 60, time.Minute)
		authLimiter = rate.NewRedisLimiter(rs.Client(), "rl:auth:", 10, time.Minute)
	default:
		sessions = session.NewMemory(sessionTTL)
	}

	// ===== TOKENS =====
	verifier, err := token.NewVerifier(cfg.JWT.Issuer, cfg.JWT.PublicKeys)
	if err != nil {
		return fmt.Errorf("jwt keys: %w", err)
	}

	// ===== RESOLUCIÓN =====
	users := pg.NewUserRepo(mgr)
	links := pg.NewLinkRepo(mgr)
	res := resolver.New(users, links)
	checker := authflow.New(authflow.Deps{
		Cache:    cache,
		Resolver: res,
		Tokens:   verifier,
		Sessions: sessions,
	})

	// ===== HTTP =====
	metricsHandler, err := httpx.RegisterMetrics(httpx.MetricsConfig{
		Pool: mgr.Pool,
	})
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	r := router.New(router.Deps{
		Checker:        checker,
		Sessions:       sessions,
		Cache:          cache,
		Pool:           mgr,
		SessionCookie:  cfg.Session.CookieName,
		LegacyCookie:   cfg.Session.LegacyCookie,
		CheckRedis:     checkRedis,
		MetricsHandler: metricsHandler,
		AdminLimiter:   adminLimiter,
		Users:          users,
		Resolver:       res,
		AuthLimiter:    authLimiter,
	})

	srv := httpx.NewServer(cfg.Server.Addr, r)

	errCh := make(chan error, 1)
	go func() {
		log.Info("servidor arriba",
			logger.String("addr", cfg.Server.Addr),
			logger.String("env", cfg.App.Env),
			logger.String("session_backend", cfg.Session.Backend),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http: %w", err)
	case sig := <-stop:
		log.Info("apagando", logger.String("signal", sig.String()))
	}

	if err := httpx.Shutdown(srv, 15*time.Second); err != nil {
		log.Warn("shutdown forzado", logger.Err(err))
	}
	return nil
}

// migrate aplica las migraciones del directorio. args: [up|down] [steps].
func migrate(cfgPath, dir string, args []string) error {
	action := "up"
	steps := 0
	if len(args) >= 1 && args[0] != "" {
		action = strings.ToLower(args[0])
	}
	if len(args) >= 2 {
		if n, err := strconv.Atoi(args[1]); err == nil && n > 0 {
			steps = n
		}
	}

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Storage.DSN)
	if err != nil {
		return fmt.Errorf("pgxpool: %w", err)
	}
	defer pool.Close()

	var suffix string
	switch action {
	case "up":
		suffix = "_up.sql"
	case "down":
		suffix = "_down.sql"
	default:
		return fmt.Errorf("acción desconocida %q, usar: up | down [steps]", action)
	}

	files, err := listSQL(dir, suffix)
	if err != nil {
		return fmt.Errorf("listar migraciones: %w", err)
	}
	sort.Strings(files)
	if action == "down" {
		// los down corren de la más nueva a la más vieja
		for i, j := 0, len(files)-1; i < j; i, j = i+1, j-1 {
			files[i], files[j] = files[j], files[i]
		}
	}
	if steps > 0 && steps < len(files) {
		files = files[:steps]
	}
	if len(files) == 0 {
		fmt.Println("sin migraciones, nada que hacer")
		return nil
	}

	for _, f := range files {
		b, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("leer %s: %w", f, err)
		}
		start := time.Now()
		if _, err := pool.Exec(ctx, string(b)); err != nil {
			return fmt.Errorf("exec %s: %w", f, err)
		}
		fmt.Printf("OK %s (%s)\n", filepath.Base(f), time.Since(start).Truncate(time.Millisecond))
	}
	return nil
}

func listSQL(dir, suffix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(strings.ToLower(e.Name()), suffix) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	return out, nil
}

func loadConfig(path string) (*config.Config, error) {
	if !fileExists(path) {
		// sin archivo: todo por env + defaults
		return config.Load("")
	}
	return config.Load(path)
}

func printConfigSummary(c *config.Config) {
	fmt.Printf(`qaaq-auth config:
  app.env=%s
  server.addr=%s
  storage.max_conns=%d
  auth_cache: ttl=%s capacity=%d sweep_gap=%s
  session: backend=%s cookie=%s legacy_cookie=%s ttl=%s
  jwt.issuer=%s keys=%d
  pool: slow_query=%s report_interval=%s max_tx_retries=%d long_running_mins=%d
  flags: DISABLE_AUTH_CACHE=%t USE_LEGACY_AUTH_ORDER=%t
`,
		c.App.Env,
		c.Server.Addr,
		c.Storage.MaxConns,
		c.AuthCache.TTL, c.AuthCache.Capacity, c.AuthCache.SweepGap,
		c.Session.Backend, c.Session.CookieName, c.Session.LegacyCookie, c.Session.TTL,
		c.JWT.Issuer, len(c.JWT.PublicKeys),
		c.Pool.SlowQuery, c.Pool.ReportInterval, c.Pool.MaxTxRetries, c.Pool.LongRunningMins,
		config.CacheDisabled(), config.LegacyOrder(),
	)
}

func fileExists(p string) bool {
	st, err := os.Stat(p)
	return err == nil && !st.IsDir()
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
