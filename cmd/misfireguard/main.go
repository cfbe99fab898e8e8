package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/djlord-it/misfire-guard/internal/analytics"
	"github.com/djlord-it/misfire-guard/internal/api"
	"github.com/djlord-it/misfire-guard/internal/circuitbreaker"
	"github.com/djlord-it/misfire-guard/internal/compensation"
	"github.com/djlord-it/misfire-guard/internal/config"
	"github.com/djlord-it/misfire-guard/internal/cron"
	"github.com/djlord-it/misfire-guard/internal/history"
	"github.com/djlord-it/misfire-guard/internal/initiator"
	"github.com/djlord-it/misfire-guard/internal/leaderelection"
	"github.com/djlord-it/misfire-guard/internal/metrics"
	"github.com/djlord-it/misfire-guard/internal/poller"
	"github.com/djlord-it/misfire-guard/internal/snapshot"
	"github.com/djlord-it/misfire-guard/internal/store/postgres"

	_ "github.com/lib/pq"
)

// The bootstrap poll interval is deliberately not configurable: it only
// matters while the snapshot cache warms up.
const startupPollInterval = 60 * time.Second

// Build-time variables set via -ldflags
var (
	version = "dev"
	commit  = "unknown"
)

const (
	exitSuccess       = 0
	exitRuntimeError  = 1
	exitInvalidConfig = 2
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitRuntimeError)
	}

	cmd := os.Args[1]

	switch cmd {
	case "serve":
		os.Exit(runServe())
	case "validate":
		os.Exit(runValidate())
	case "config":
		os.Exit(runConfig())
	case "version":
		os.Exit(runVersion())
	case "--help", "-h", "help":
		printUsage()
		os.Exit(exitSuccess)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(exitRuntimeError)
	}
}

func printUsage() {
	fmt.Println(`misfireguard - cron misfire detection and compensation

Usage:
  misfireguard <command>

Commands:
  serve      Start the compensation service
  validate   Validate configuration (no connections made)
  config     Print effective configuration as JSON (secrets masked)
  version    Print version information

Environment Variables:
  DATABASE_URL               PostgreSQL connection string (required)
  HISTORY_URL                Execution history service base URL (required)
  INITIATOR_URL              Trigger initiation service base URL (required)
  REDIS_ADDR                 Redis address for compensation analytics (optional)
  HTTP_ADDR                  HTTP server address (default: ":8080")

  COMPENSATION_WINDOW        How far back to look for missed fires (default: "10m")
  CRON_TIMEZONE              Zone cron expressions are evaluated in (default: "America/Los_Angeles")
  RECURRING_ENABLED          Re-run detection after startup (default: "true")
  RECURRING_INTERVAL         Recurring detection interval (default: "5m")
  HISTORY_BATCH_SIZE         Pipeline IDs per history query (default: "20")
  SNAPSHOT_REFRESH_INTERVAL  Pipeline snapshot refresh interval (default: "30s")
  REQUEST_TIMEOUT            Timeout per collaborator HTTP request (default: "30s")

  DB_OP_TIMEOUT              Database operation timeout (default: "5s")
  DB_MAX_OPEN_CONNS          Max open database connections (default: "25")
  DB_MAX_IDLE_CONNS          Max idle database connections (default: "5")
  DB_CONN_MAX_LIFETIME       Max connection lifetime (default: "30m")
  DB_CONN_MAX_IDLE_TIME      Max connection idle time (default: "5m")

  HTTP_SHUTDOWN_TIMEOUT      Graceful HTTP shutdown timeout (default: "10s")
  METRICS_ENABLED            Enable Prometheus metrics (default: "false")
  METRICS_PATH               Metrics endpoint path (default: "/metrics")

  CIRCUIT_BREAKER_THRESHOLD  Failures before the history circuit opens, 0 disables (default: "5")
  CIRCUIT_BREAKER_COOLDOWN   Open-circuit cooldown (default: "2m")

  LEADER_ELECTION_ENABLED    Single-leader mode via Postgres advisory lock (default: "false")
  LEADER_LOCK_KEY            Advisory lock key shared by all replicas (default: "841227")
  LEADER_RETRY_INTERVAL      Follower lock retry interval (default: "5s")
  LEADER_HEARTBEAT_INTERVAL  Leader connection heartbeat interval (default: "2s")`)
}

func runServe() int {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitInvalidConfig
	}

	loc, err := time.LoadLocation(cfg.CronTimezone)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load timezone %s: %v\n", cfg.CronTimezone, err)
		return exitInvalidConfig
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
		return exitRuntimeError
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.DBConnMaxIdleTime)

	if err := db.Ping(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to database: %v\n", err)
		return exitRuntimeError
	}

	var sink metrics.Sink = metrics.NewNoopSink()
	if cfg.MetricsEnabled {
		sink = metrics.NewPrometheusSink(prometheus.DefaultRegisterer)
		log.Printf("misfireguard: metrics enabled (path=%s)", cfg.MetricsPath)
	} else {
		log.Println("misfireguard: METRICS_ENABLED not set; metrics disabled")
	}

	store := postgres.New(db, cfg.DBOpTimeout)
	cache := snapshot.NewCache(store, cfg.SnapshotRefreshInterval).WithMetrics(sink)

	breaker := circuitbreaker.New(cfg.CircuitBreakerThreshold, cfg.CircuitBreakerCooldown)
	historyClient := history.NewClient(cfg.HistoryURL).
		WithBreaker(breaker).
		WithTimeout(cfg.RequestTimeout)
	fetcher := history.NewFetcher(historyClient, cfg.HistoryBatchSize).WithMetrics(sink)

	initiatorClient := initiator.NewClient(cfg.InitiatorURL).WithTimeout(cfg.RequestTimeout)

	pass := compensation.New(
		compensation.Config{
			Window:   cfg.CompensationWindow,
			Location: loc,
		},
		cron.NewParser(),
		fetcher,
		initiatorClient,
	).WithMetrics(sink)

	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
		})
		pass = pass.WithAnalytics(analytics.NewRedisSink(redisClient))
		log.Printf("misfireguard: analytics enabled (redis=%s)", cfg.RedisAddr)
	} else {
		log.Println("misfireguard: REDIS_ADDR not set; analytics disabled")
	}

	pollerConfig := poller.Config{
		StartupInterval:   startupPollInterval,
		RecurringEnabled:  cfg.RecurringEnabled,
		RecurringInterval: cfg.RecurringInterval,
	}
	guard := poller.New(pollerConfig, cache, pass)

	// Snapshot cache runs on every replica; compensation loops run on the
	// leader only when leader election is enabled.
	cacheCtx, cancelCache := context.WithCancel(context.Background())
	pollerCtx, cancelPoller := context.WithCancel(context.Background())

	var cacheWg sync.WaitGroup
	cacheWg.Add(1)
	go func() {
		defer cacheWg.Done()
		cache.Run(cacheCtx)
	}()

	var electorWg sync.WaitGroup
	if cfg.LeaderElectionEnabled {
		elector := leaderelection.New(
			db,
			cfg.LeaderLockKey,
			cfg.LeaderRetryInterval,
			cfg.LeaderHeartbeatInterval,
			func(leaderCtx context.Context) {
				// A fresh poller per leadership term: Start is one-shot.
				term := poller.New(pollerConfig, cache, pass)
				term.Start(leaderCtx)
			},
			func() {
				// Leader duties stop via leaderCtx cancellation.
			},
		)
		electorWg.Add(1)
		go func() {
			defer electorWg.Done()
			elector.Run(pollerCtx)
		}()
		log.Printf("misfireguard: leader election enabled (lock_key=%d)", cfg.LeaderLockKey)
	} else {
		// Single-replica mode: the ready signal is simply "wiring finished".
		guard.Start(pollerCtx)
	}

	handler := api.NewHandler(cache, guard).WithHealthChecker(db)
	mux := http.NewServeMux()
	mux.Handle("/", handler)
	if cfg.MetricsEnabled {
		mux.Handle(cfg.MetricsPath, promhttp.Handler())
	}

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	go func() {
		log.Printf("misfireguard: http server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("misfireguard: http server error: %v", err)
		}
	}()

	log.Printf("misfireguard: started (window=%s, tz=%s, recurring=%t)",
		cfg.CompensationWindow, cfg.CronTimezone, cfg.RecurringEnabled)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	received := <-sig

	log.Printf("misfireguard: received signal %v, shutting down", received)

	// Phase 1: stop the compensation loops (or the elector holding them).
	log.Println("misfireguard: stopping poller...")
	cancelPoller()
	if cfg.LeaderElectionEnabled {
		electorWg.Wait()
	} else if guard.Started() {
		<-guard.Done()
	}
	log.Println("misfireguard: poller stopped")

	// Phase 2: stop the snapshot cache.
	log.Println("misfireguard: stopping snapshot cache...")
	cancelCache()
	cacheWg.Wait()
	log.Println("misfireguard: snapshot cache stopped")

	// Phase 3: stop the HTTP server with graceful shutdown.
	log.Println("misfireguard: stopping http server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("misfireguard: http server shutdown error: %v", err)
	}
	log.Println("misfireguard: http server stopped")

	log.Println("misfireguard: stopped")
	return exitSuccess
}

func runValidate() int {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitInvalidConfig
	}

	fmt.Println("configuration valid")
	return exitSuccess
}

func runConfig() int {
	cfg := config.Load()

	data, err := cfg.MaskedJSON()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal config: %v\n", err)
		return exitRuntimeError
	}

	fmt.Println(string(data))
	return exitSuccess
}

func runVersion() int {
	fmt.Printf("misfireguard version %s (commit: %s)\n", version, commit)
	return exitSuccess
}
