package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/HerbHall/curio/internal/config"
	"github.com/HerbHall/curio/internal/event"
	"github.com/HerbHall/curio/internal/fetch"
	"github.com/HerbHall/curio/internal/ingest"
	"github.com/HerbHall/curio/internal/live"
	"github.com/HerbHall/curio/internal/logging"
	"github.com/HerbHall/curio/internal/pages"
	"github.com/HerbHall/curio/internal/plugin"
	"github.com/HerbHall/curio/internal/scheduler"
	"github.com/HerbHall/curio/internal/server"
	"github.com/HerbHall/curio/internal/services"
	"github.com/HerbHall/curio/internal/store"
	"github.com/HerbHall/curio/internal/version"
	"github.com/HerbHall/curio/pkg/catalog"
)

const usage = `usage: curio <command> [flags]

commands:
  serve     run the HTTP server (default)
  backup    archive the database and config
  restore   restore a backup archive
  version   print version information
`

func main() {
	cmd, args := "serve", os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "serve":
		runServe(args)
	case "backup":
		runBackup(args)
	case "restore":
		runRestore(args)
	case "version":
		fmt.Println(version.Info())
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to configuration file")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(logging.Config{
		Level:      cfg.GetString("logging.level"),
		Format:     cfg.GetString("logging.format"),
		File:       cfg.GetString("logging.file"),
		MaxSizeMB:  cfg.GetInt("logging.max_size_mb"),
		MaxBackups: cfg.GetInt("logging.max_backups"),
		MaxAgeDays: cfg.GetInt("logging.max_age_days"),
		Compress:   cfg.GetBool("logging.compress"),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}

	logger.Info("Curio starting", zap.String("version", version.Short()))
	err = serve(cfg, logger)
	_ = logger.Sync()
	if err != nil {
		logger.Error("Curio stopped with error", zap.Error(err))
		os.Exit(1)
	}
}

func serve(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.New(cfg.GetString("database.path"))
	if err != nil {
		return err
	}
	defer db.Close()

	news, err := services.NewSQLiteNewsRepository(ctx, db)
	if err != nil {
		return err
	}
	gadgets, err := services.NewSQLiteGadgetRepository(ctx, db)
	if err != nil {
		return err
	}

	metrics := prometheus.NewRegistry()
	metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	bus := event.NewBus(logger.Named("event"))
	sched, err := scheduler.New(logger.Named("scheduler"))
	if err != nil {
		return err
	}

	userAgent := cfg.GetString("fetch.user_agent")
	if userAgent == "" {
		userAgent = version.UserAgent()
	}
	client := fetch.New(logger.Named("fetch"),
		fetch.WithTimeout(cfg.GetDuration("fetch.timeout")),
		fetch.WithUserAgent(userAgent),
		fetch.WithMetrics(fetch.NewMetrics(metrics)),
	)

	// Register all pages (compile-time composition).
	registry := plugin.NewRegistry(logger)
	backends := pages.Backends{
		Fetch:      client,
		Catalog:    catalog.NewCatalog(),
		News:       news,
		Gadgets:    gadgets,
		SessionTTL: cfg.GetDuration("sessions.ttl"),
		SweepCron:  cfg.GetString("sessions.sweep_cron"),
	}
	for _, def := range pages.All() {
		if err := registry.Register(pages.New(def, backends)); err != nil {
			return fmt.Errorf("register page: %w", err)
		}
	}
	if err := registry.InitAll(ctx, cfg, plugin.Dependencies{Bus: bus, Scheduler: sched}); err != nil {
		return err
	}

	if err := registerIngest(cfg, sched, client, news, gadgets, bus, logger.Named("ingest")); err != nil {
		return err
	}

	hub := live.NewHub(logger.Named("live"),
		live.WithRegisterer(metrics),
		live.WithOriginPatterns(cfg.GetStringSlice("live.origin_patterns")...),
	)
	unsubscribe := hub.Attach(bus)
	defer unsubscribe()

	addr := net.JoinHostPort(cfg.GetString("server.host"), cfg.GetString("server.port"))
	srv := server.New(server.Config{
		Addr:           addr,
		RateLimitRPS:   cfg.GetFloat64("server.rate_limit.rps"),
		RateLimitBurst: cfg.GetInt("server.rate_limit.burst"),
	}, registry, logger.Named("http"), server.WithMetricsRegistry(metrics))
	srv.Handle("GET /api/v1/live", hub)
	srv.Handle("GET /api/v1/tasks", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		server.WriteJSON(w, http.StatusOK, sched.Tasks())
	}))

	if err := registry.StartAll(ctx); err != nil {
		return err
	}
	sched.Start()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()
	logger.Info("Curio ready", zap.String("addr", addr))

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	if err := sched.Stop(); err != nil {
		logger.Error("scheduler shutdown error", zap.Error(err))
	}
	registry.StopAll(shutdownCtx)

	logger.Info("Curio stopped")
	return serveErr
}

// registerIngest schedules the feed and gadget ingesters that have a source
// configured.
func registerIngest(
	cfg *config.Config,
	sched *scheduler.Scheduler,
	client *fetch.Client,
	news services.NewsRepository,
	gadgets services.GadgetRepository,
	bus *event.Bus,
	logger *zap.Logger,
) error {
	cron := cfg.GetString("ingest.cron")

	if feeds := cfg.GetStringSlice("ingest.feeds"); len(feeds) > 0 {
		rss := ingest.NewRSSIngester(client, news, feeds, bus, logger.Named("rss"))
		if err := sched.RegisterTask(scheduler.TaskConfig{
			ID:          "ingest.news",
			Name:        "News ingestion",
			Description: "Pulls configured RSS and Atom feeds into the news store",
			Cron:        cron,
			Func:        ingest.Task(rss.Run),
			RunOnStart:  true,
		}); err != nil {
			return fmt.Errorf("register news ingestion: %w", err)
		}
	} else {
		logger.Info("no feeds configured, news ingestion disabled")
	}

	if url := cfg.GetString("ingest.gadgets_url"); url != "" {
		src := fetch.Source{Name: "gadgets", URL: url, ItemsKey: cfg.GetString("ingest.gadgets_items_key")}
		g := ingest.NewGadgetIngester(client, gadgets, src, bus, logger.Named("gadgets"))
		if err := sched.RegisterTask(scheduler.TaskConfig{
			ID:          "ingest.gadgets",
			Name:        "Gadget ingestion",
			Description: "Pulls the gadget list into the gadget store",
			Cron:        cron,
			Func:        ingest.Task(g.Run),
			RunOnStart:  true,
		}); err != nil {
			return fmt.Errorf("register gadget ingestion: %w", err)
		}
	}
	return nil
}

func exitOnError(prefix string, err error) {
	if err == nil {
		return
	}
	if errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "%s: interrupted\n", prefix)
	} else {
		fmt.Fprintf(os.Stderr, "%s: %v\n", prefix, err)
	}
	os.Exit(1)
}
