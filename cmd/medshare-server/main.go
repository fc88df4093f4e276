package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	medhttp "github.com/fOmar24/Medical-Research-Data-Sharing/adapters/http"
	"github.com/fOmar24/Medical-Research-Data-Sharing/core"
	"github.com/fOmar24/Medical-Research-Data-Sharing/datasets"
	redislimiter "github.com/fOmar24/Medical-Research-Data-Sharing/ratelimit/redis"
	"github.com/fOmar24/Medical-Research-Data-Sharing/riverjobs"
	memorystore "github.com/fOmar24/Medical-Research-Data-Sharing/storage/memory"
	pgstore "github.com/fOmar24/Medical-Research-Data-Sharing/storage/postgres"
	redisstore "github.com/fOmar24/Medical-Research-Data-Sharing/storage/redis"
	"github.com/fOmar24/Medical-Research-Data-Sharing/suirpc"
	"github.com/fOmar24/Medical-Research-Data-Sharing/suiwallet"
	"github.com/fOmar24/Medical-Research-Data-Sharing/walrus"
)

type config struct {
	ListenAddr       string
	DBURL            string
	RedisURL         string
	SuiRPCURL        string
	WalrusAggregator string
	WalrusPublisher  string
	UploadGrantKey   string
	MigrateOnStart   bool
	SecureCookies    bool
	RunJobs          bool
	PurgeCron        string
	PurgeRetention   int
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fatal(err)
	}

	cmd := "serve"
	if len(os.Args) > 1 && strings.TrimSpace(os.Args[1]) != "" {
		cmd = strings.TrimSpace(os.Args[1])
	}

	switch cmd {
	case "serve":
		if err := runServe(cfg); err != nil {
			fatal(err)
		}
	case "migrate":
		if err := runMigrate(cfg); err != nil {
			fatal(err)
		}
	default:
		fatal(fmt.Errorf("unknown command %q (supported: serve, migrate)", cmd))
	}
}

func loadConfig() (*config, error) {
	c := &config{
		ListenAddr:       envOr("MEDSHARE_LISTEN_ADDR", ":8080"),
		DBURL:            firstEnv("DB_URL", "DATABASE_URL"),
		RedisURL:         strings.TrimSpace(os.Getenv("REDIS_URL")),
		SuiRPCURL:        strings.TrimSpace(os.Getenv("SUI_RPC_URL")),
		WalrusAggregator: envOr("WALRUS_AGGREGATOR_URL", ""),
		WalrusPublisher:  envOr("WALRUS_PUBLISHER_URL", ""),
		UploadGrantKey:   strings.TrimSpace(os.Getenv("MEDSHARE_UPLOAD_GRANT_KEY")),
		MigrateOnStart:   envBool("MEDSHARE_MIGRATE_ON_START", true),
		SecureCookies:    envBool("MEDSHARE_SECURE_COOKIES", true),
		RunJobs:          envBool("MEDSHARE_RUN_JOBS", true),
		PurgeCron:        envOr("MEDSHARE_PURGE_CRON", "0 4 * * *"),
		PurgeRetention:   envInt("MEDSHARE_PURGE_RETENTION_DAYS", 30),
	}
	if c.DBURL == "" {
		return nil, fmt.Errorf("DB_URL (or DATABASE_URL) is required")
	}
	if (c.WalrusAggregator == "") != (c.WalrusPublisher == "") {
		return nil, fmt.Errorf("WALRUS_AGGREGATOR_URL and WALRUS_PUBLISHER_URL must be set together")
	}
	if c.WalrusPublisher != "" && c.UploadGrantKey == "" {
		return nil, fmt.Errorf("MEDSHARE_UPLOAD_GRANT_KEY is required when Walrus is configured")
	}
	return c, nil
}

func runServe(cfg *config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := logrus.StandardLogger()
	log.SetFormatter(&logrus.JSONFormatter{})

	pg, err := pgxpool.New(ctx, cfg.DBURL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()

	if cfg.MigrateOnStart {
		if err := pgstore.Migrate(ctx, pg); err != nil {
			return err
		}
	}

	users := pgstore.NewUserStore(pg)
	svc := core.NewService(core.Options{},
		pgstore.NewNonceStore(pg),
		users,
		pgstore.NewSessionStore(pg),
		&suiwallet.Verifier{},
	).WithActivityLog(pgstore.NewActivityStore(pg)).WithLogger(log)

	// Dataset CRUD runs on bun over the same database.
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DBURL)))
	bundb := bun.NewDB(sqldb, pgdialect.New())
	defer bundb.Close()

	chain := suirpc.New(cfg.SuiRPCURL)
	data := datasets.NewService(bundb, users).WithTxVerifier(chain).WithLogger(log)

	api := medhttp.NewService(svc).
		WithDatasets(data).
		WithChain(chain).
		WithSecureCookies(cfg.SecureCookies).
		WithLogger(log)

	if cfg.WalrusPublisher != "" {
		blobs := walrus.New(cfg.WalrusAggregator, cfg.WalrusPublisher, []byte(cfg.UploadGrantKey))
		data.WithBlobVerifier(blobs)
		api.WithWalrus(blobs)
	}

	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opt)
		defer rdb.Close()
		chain.WithCache(redisstore.NewKV(rdb))
		api.WithRateLimiter(redislimiter.New(rdb, medhttp.DefaultRateLimits()))
	} else {
		chain.WithCache(memorystore.NewKV())
	}

	var riverClient *river.Client[pgx.Tx]
	if cfg.RunJobs {
		workers := river.NewWorkers()
		riverjobs.RegisterPurgeAuthRecordsWorker(workers, svc, log)

		riverClient, err = river.NewClient(riverpgxv5.New(pg), &river.Config{
			Queues:  map[string]river.QueueConfig{river.QueueDefault: {MaxWorkers: 4}},
			Workers: workers,
		})
		if err != nil {
			return fmt.Errorf("river client: %w", err)
		}
		if err := riverjobs.AddPurgeAuthRecordsPeriodicJob(riverClient, cfg.PurgeCron,
			riverjobs.PurgeAuthRecordsArgs{RetentionDays: cfg.PurgeRetention}, false); err != nil {
			return err
		}
		if err := riverClient.Start(ctx); err != nil {
			return fmt.Errorf("start river: %w", err)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.Handle("/api/", api.APIHandler())

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.ListenAddr).Info("listening")
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if riverClient != nil {
		_ = riverClient.Stop(shutdownCtx)
	}
	return server.Shutdown(shutdownCtx)
}

func runMigrate(cfg *config) error {
	ctx := context.Background()
	pg, err := pgxpool.New(ctx, cfg.DBURL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()
	return pgstore.Migrate(ctx, pg)
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return def
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "medshare-server:", err)
	os.Exit(1)
}
