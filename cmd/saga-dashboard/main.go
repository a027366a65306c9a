// saga-dashboard is a CLI for monitoring sagas run by the campaign orchestrator.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	saga "github.com/MicroTeam-4-0-no-monoliticos/entrega-final"
	"github.com/MicroTeam-4-0-no-monoliticos/entrega-final/internal/config"
	"github.com/MicroTeam-4-0-no-monoliticos/entrega-final/internal/logger"
	"github.com/MicroTeam-4-0-no-monoliticos/entrega-final/internal/metrics"
)

const serviceName = "saga-dashboard"

// commandTimeout bounds one-shot commands; watch and serve run until interrupted.
const commandTimeout = 30 * time.Second

type command func(ctx context.Context, a *app, args []string) error

var commands = map[string]command{
	"list":        runList,
	"show":        runShow,
	"stats":       runStats,
	"dashboard":   runDashboard,
	"create":      runCreate,
	"create-test": runCreateTest,
	"delete":      runDelete,
	"cleanup":     runCleanup,
	"health":      runHealth,
	"watch":       runWatch,
	"serve":       runServe,
}

// longRunning commands are not bound by commandTimeout.
var longRunning = map[string]bool{
	"create-test": true,
	"watch":       true,
	"serve":       true,
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(argv []string, out, errOut io.Writer) int {
	fs := flag.NewFlagSet(serviceName, flag.ContinueOnError)
	fs.SetOutput(errOut)
	configPath := fs.String("config", "", "YAML config file")
	sagasURL := fs.String("sagas-url", "", "Saga orchestrator base URL (or SAGAS_URL)")
	databaseURL := fs.String("db", "", "Read sagas from this PostgreSQL URL instead of the API (or DATABASE_URL)")
	table := fs.String("table", "", "Saga table name (default \"saga_log\")")
	redisAddr := fs.String("redis", "", "Redis address for the snapshot cache (or REDIS_ADDR)")
	fixtures := fs.String("fixtures", "", "Serve sagas offline from a saved JSON listing (or SAGA_FIXTURES)")
	logLevel := fs.String("log-level", "", "Log level: debug, info, warn, error")
	timeout := fs.Duration("timeout", 0, "HTTP request timeout")
	fs.Usage = func() { printUsage(errOut) }
	if err := fs.Parse(argv); err != nil {
		return 2
	}

	args := fs.Args()
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}
	name, cmdArgs := args[0], args[1:]
	if name == "help" {
		printUsage(out)
		return 0
	}
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(errOut, "Unknown command: %s\n", name)
		printUsage(errOut)
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return 2
	}
	cfg = applyFlags(cfg, *sagasURL, *databaseURL, *table, *redisAddr, *fixtures, *logLevel, *timeout)

	a, err := newApp(cfg, out, errOut)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return 2
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if !longRunning[name] {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, commandTimeout)
		defer cancel()
	}

	if err := cmd(ctx, a, cmdArgs); err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return 1
	}
	return 0
}

func applyFlags(cfg config.Config, sagasURL, databaseURL, table, redisAddr, fixtures, logLevel string, timeout time.Duration) config.Config {
	if sagasURL != "" {
		cfg.SagasURL = sagasURL
	}
	if databaseURL != "" {
		cfg.DatabaseURL = databaseURL
	}
	if table != "" {
		cfg.SagaTable = table
	}
	if redisAddr != "" {
		cfg.RedisAddr = redisAddr
	}
	if fixtures != "" {
		cfg.FixturesPath = fixtures
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if timeout > 0 {
		cfg.HTTPTimeout = timeout
	}
	return cfg
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `saga-dashboard - Saga monitoring CLI

Usage:
  saga-dashboard [flags] <command> [args]

Flags:
  -config string     YAML config file
  -sagas-url string  Saga orchestrator base URL (or set SAGAS_URL)
  -db string         Read sagas from PostgreSQL instead of the API (or set DATABASE_URL)
  -table string      Saga table name (default "saga_log")
  -redis string      Redis address for the snapshot cache (or set REDIS_ADDR)
  -fixtures string   Read sagas offline from a saved JSON listing (or set SAGA_FIXTURES)
  -log-level string  Log level (default "info")
  -timeout duration  HTTP request timeout (default 10s)

Commands:
  list            List sagas (optionally filter by state and type)
  show <id>       Show one saga with reconciled step statuses
  stats           Show saga counts per state
  dashboard       Show campaign, saga, payment and report counts
  create          Start a create-campaign saga
  create-test     Start sagas with random test data
  delete <id>     Delete one saga
  cleanup [what]  Delete sagas, campaigns, payments, or all
  health          Check every configured service
  watch <id>      Re-render a saga until it finishes
  serve           Serve the reconciled view as JSON with /metrics
  help            Show this help message

Examples:
  saga-dashboard list --state FALLIDA
  saga-dashboard show 3f2c9a4e-8d1b-4c55-9a57-0b6f4f0c2d11
  saga-dashboard create --name "Summer" --affiliate af-1 --budget 1500 --amount 1500
  saga-dashboard create-test --count 5
  saga-dashboard -db "postgres://localhost/sagas" stats
  saga-dashboard -fixtures sagas.json show 3f2c9a4e-8d1b-4c55-9a57-0b6f4f0c2d11`)
}

// app holds everything a command needs, built once per invocation.
type app struct {
	cfg     config.Config
	out     io.Writer
	errOut  io.Writer
	log     *logger.Logger
	metrics *metrics.Metrics
	events  *saga.ClientEvents
	client  *saga.HTTPClient
	source  saga.Source
	viewer  *saga.Viewer
	closers []func()
}

func newApp(cfg config.Config, out, errOut io.Writer) (*app, error) {
	log := logger.New(serviceName, errOut).WithLevel(cfg.LogLevel)
	m := metrics.New()
	events := saga.ChainEvents(logEvents(log), m.Events())

	a := &app{
		cfg:     cfg,
		out:     out,
		errOut:  errOut,
		log:     log,
		metrics: m,
		events:  events,
	}

	a.client = saga.NewHTTPClient(saga.Endpoints{
		Sagas:     cfg.SagasURL,
		Campaigns: cfg.CampaignsURL,
		Payments:  cfg.PaymentsURL,
		Reporting: cfg.ReportingURL,
	}, saga.ClientOptions{Timeout: cfg.HTTPTimeout, Events: events})
	a.source = a.client

	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		src, err := saga.NewPostgresSource(db, cfg.SagaTable)
		if err != nil {
			db.Close()
			return nil, err
		}
		a.source = src
		a.closers = append(a.closers, func() { db.Close() })
	}

	// an offline fixture file wins over both live sources
	if cfg.FixturesPath != "" {
		f, err := os.Open(cfg.FixturesPath)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("open fixtures: %w", err)
		}
		src, err := saga.LoadFixtures(f)
		f.Close()
		if err != nil {
			a.Close()
			return nil, err
		}
		a.source = src
	}

	var cache saga.SnapshotCache = saga.NewMemoryCache()
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		cache = saga.NewRedisCache(rdb, serviceName+":", saga.DefaultCacheTTL)
		a.closers = append(a.closers, func() { rdb.Close() })
	}

	a.viewer = saga.NewViewer(a.source, saga.NewAppState(), saga.ViewerOptions{
		Cache:  cache,
		Events: events,
	})
	return a, nil
}

// Close releases database and cache connections.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// logEvents logs requests at debug and failures at warn, tagged with the
// request's trace and span ids.
func logEvents(log *logger.Logger) *saga.ClientEvents {
	return &saga.ClientEvents{
		OnRequestComplete: func(ctx context.Context, service, endpoint string, status int, d time.Duration) {
			log.WithContext(ctx).Debugf("request complete", map[string]interface{}{
				"target":   service,
				"endpoint": endpoint,
				"status":   status,
				"duration": d.String(),
			})
		},
		OnRequestFailed: func(ctx context.Context, service, endpoint string, err error, d time.Duration) {
			log.WithContext(ctx).WithError(err).Warnf("request failed", map[string]interface{}{
				"target":   service,
				"endpoint": endpoint,
				"duration": d.String(),
			})
		},
		OnFallback: func(sagaID string, err error) {
			log.WithError(err).Warnf("showing listing copy", map[string]interface{}{
				"saga_id": sagaID,
			})
		},
	}
}
