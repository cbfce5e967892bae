// Package main is the entry point for the controller report service.
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"unifi-report/internal/analysis"
	"unifi-report/internal/config"
	"unifi-report/internal/delivery"
	"unifi-report/internal/enrich"
	"unifi-report/internal/health"
	"unifi-report/internal/ips"
	"unifi-report/internal/logging"
	"unifi-report/internal/queue"
	"unifi-report/internal/report"
	"unifi-report/internal/rules"
	"unifi-report/internal/scheduler"
	"unifi-report/internal/schema"
	"unifi-report/internal/startup"
	"unifi-report/internal/state"
	"unifi-report/internal/storage"
	"unifi-report/internal/tui"
	"unifi-report/internal/unifi"
)

var version = "dev"

// tuiMinRefresh is how long the TUI serves a cached report before a fetch
// triggers a new collection cycle.
const tuiMinRefresh = time.Minute

func main() {
	var (
		showVersion bool
		configPath  string
		once        bool
		runTUI      bool
		check       bool
		historyN    int
	)

	flag.BoolVar(&showVersion, "version", false, "Show version and exit")
	flag.StringVar(&configPath, "config", "", "Path to config file (default configs/config.yaml)")
	flag.BoolVar(&once, "once", false, "Generate a single report and exit")
	flag.BoolVar(&runTUI, "tui", false, "Browse reports interactively")
	flag.BoolVar(&check, "check", false, "Run startup diagnostics and exit")
	flag.IntVar(&historyN, "history", 0, "List the last N stored report runs and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("unifi-report %s\n", version)
		os.Exit(0)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if check {
		diagnostics := startup.NewDiagnostics(cfg, slog.Default())
		diagnostics.RunAll(ctx)
		if diagnostics.HasErrors() {
			os.Exit(1)
		}
		return
	}

	if historyN > 0 {
		if err := runHistory(ctx, cfg, historyN); err != nil {
			slog.Error("failed to read findings history", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := startup.EnsureDirectories(cfg); err != nil {
		slog.Error("failed to prepare directories", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded",
		"controller", cfg.Controller.BaseURL,
		"site", cfg.Controller.Site,
		"schedule", cfg.Report.Schedule,
		"queue_size", cfg.Queue.Size,
		"storage_enabled", cfg.Storage.Enabled,
	)

	p, err := newPipeline(ctx, cfg)
	if err != nil {
		slog.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}
	defer p.close()

	switch {
	case once:
		err = runOnce(ctx, p, cfg.Report.Styled)
	case runTUI:
		err = tui.Run(p)
	default:
		err = runDaemon(ctx, p, cfg)
	}
	if err != nil {
		slog.Error("run failed", "error", err)
		p.close()
		os.Exit(1)
	}
}

// pipeline ties collection, analysis, formatting and delivery together.
// One cycle runs at a time; lastReport caches the most recent result for
// the TUI.
type pipeline struct {
	cfg      *config.Config
	client   *unifi.Client
	ingester *unifi.Ingester
	queue    *queue.RingBuffer
	engine   *analysis.Engine
	enricher *enrich.Enricher
	manager  *delivery.Manager
	plain    *report.Formatter

	chClient     *storage.ClickHouseClient
	batchWriter  *storage.BatchWriter
	unclassified *storage.UnclassifiedWriter

	runMu sync.Mutex

	mu         sync.Mutex
	lastRun    time.Time
	lastReport report.Report
	haveReport bool

	closeOnce sync.Once
}

func newPipeline(ctx context.Context, cfg *config.Config) (*pipeline, error) {
	client, err := unifi.NewClient(cfg.Controller)
	if err != nil {
		return nil, fmt.Errorf("controller client: %w", err)
	}

	watermark, err := newWatermark(cfg)
	if err != nil {
		return nil, fmt.Errorf("watermark store: %w", err)
	}

	eventQueue := queue.NewRingBuffer(cfg.Queue.Size)
	ingester := unifi.NewIngester(client, unifi.NewNormalizer(), eventQueue, watermark, cfg.Ingest)

	registry, err := rules.NewDefaultRegistry()
	if err != nil {
		return nil, fmt.Errorf("rule registry: %w", err)
	}
	engine := analysis.NewEngine(
		registry,
		ips.NewAnalyzer(cfg.Analysis.AggregationThreshold),
		health.NewAnalyzer(cfg.Analysis.Health),
	)

	enricher, err := enrich.NewEnricher(cfg.Enrich)
	if err != nil {
		return nil, fmt.Errorf("enrichment: %w", err)
	}

	manager, err := newDeliveryManager(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("delivery: %w", err)
	}

	p := &pipeline{
		cfg:      cfg,
		client:   client,
		ingester: ingester,
		queue:    eventQueue,
		engine:   engine,
		enricher: enricher,
		manager:  manager,
		plain:    report.NewFormatter(),
	}

	if cfg.Storage.Enabled {
		if err := p.initStorage(ctx); err != nil {
			return nil, fmt.Errorf("storage: %w", err)
		}
	}

	return p, nil
}

func newWatermark(cfg *config.Config) (unifi.Watermark, error) {
	if cfg.State.Backend == "redis" {
		store, err := state.NewRedisStore(cfg.State.Redis)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	return state.NewFileStore(cfg.State.Path), nil
}

func newDeliveryManager(ctx context.Context, cfg *config.Config) (*delivery.Manager, error) {
	manager := delivery.NewManager()

	if cfg.Delivery.File.Enabled {
		manager.Register(delivery.NewFileSink(cfg.Delivery.File.FileSinkConfig))
	}
	if cfg.Delivery.Webhook.Enabled {
		manager.Register(delivery.NewWebhookSink(cfg.Delivery.Webhook.WebhookSinkConfig))
	}
	if cfg.Delivery.Email.Enabled {
		manager.Register(delivery.NewEmailSink(cfg.Delivery.Email.EmailSinkConfig))
	}
	if cfg.Delivery.Kafka.Enabled {
		sink, err := delivery.NewKafkaSink(cfg.Delivery.Kafka.KafkaSinkConfig)
		if err != nil {
			return nil, fmt.Errorf("kafka sink: %w", err)
		}
		manager.Register(sink)
	}
	if cfg.Delivery.S3.Enabled {
		sink, err := delivery.NewS3Sink(ctx, cfg.Delivery.S3.S3SinkConfig)
		if err != nil {
			return nil, fmt.Errorf("s3 sink: %w", err)
		}
		manager.Register(sink)
	}

	if manager.Sinks() == 0 {
		slog.Warn("no delivery sinks enabled, reports will only reach stdout and the findings history")
	}
	return manager, nil
}

func (p *pipeline) initStorage(ctx context.Context) error {
	slog.Info("initializing findings history",
		"hosts", p.cfg.Storage.ClickHouse.Hosts,
		"database", p.cfg.Storage.ClickHouse.Database,
	)

	chClient, err := storage.NewClickHouseClient(p.cfg.Storage.ClickHouse)
	if err != nil {
		if errors.Is(err, storage.ErrConnectionFailed) {
			slog.Error("findings history unreachable, check storage.clickhouse.hosts",
				"hosts", p.cfg.Storage.ClickHouse.Hosts)
		}
		return err
	}

	migrator := storage.NewMigrator(chClient)
	if err := migrator.Run(ctx); err != nil {
		chClient.Close()
		return err
	}

	retention := storage.NewRetentionManager(chClient, p.cfg.Storage.Retention)
	if err := retention.ApplyTTLs(ctx); err != nil {
		slog.Warn("failed to apply retention TTLs", "error", err)
	}

	p.chClient = chClient
	p.batchWriter = storage.NewBatchWriter(chClient, p.cfg.Storage.BatchWriter)
	p.unclassified = storage.NewUnclassifiedWriter(chClient)
	return nil
}

// cycle runs one collect-analyze-deliver pass. It is the scheduler's cycle
// function and is also called directly in one-shot and TUI modes.
func (p *pipeline) cycle(ctx context.Context, due time.Time) error {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	p.ingester.Poll(ctx)

	entries := p.drainEntries()
	alarms, devices := p.ingester.Snapshot()

	result := p.engine.Analyze(analysis.Batch{
		Entries:   entries,
		IPSEvents: alarms,
		Devices:   devices,
		At:        due,
	})

	if p.enricher.Active() > 0 {
		p.enricher.Enrich(ctx, result.SourceSummaries)
	}

	p.mu.Lock()
	periodStart := p.lastRun
	p.mu.Unlock()
	if periodStart.IsZero() {
		periodStart = due.Add(-time.Duration(p.cfg.Ingest.WithinHours) * time.Hour)
	}

	rep := report.Report{
		GeneratedAt: due,
		PeriodStart: periodStart,
		PeriodEnd:   due,
		Result:      result,
	}

	slog.Info("report generated",
		"findings", len(result.Findings),
		"sources", len(result.SourceSummaries),
		"unclassified", result.UnclassifiedTotal,
	)

	var rendered bytes.Buffer
	if err := p.plain.Format(&rendered, rep); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}

	if err := p.manager.Deliver(ctx, rep, rendered.Bytes()); err != nil {
		slog.Error("report delivery incomplete", "error", err)
	}

	p.persist(ctx, rep)

	p.mu.Lock()
	p.lastRun = due
	p.lastReport = rep
	p.haveReport = true
	p.mu.Unlock()
	return nil
}

func (p *pipeline) drainEntries() []schema.LogEntry {
	drained := p.queue.Drain(p.queue.Cap())
	entries := make([]schema.LogEntry, 0, len(drained))
	for _, entry := range drained {
		entries = append(entries, *entry)
	}
	return entries
}

// persist appends the run to the findings history when storage is enabled.
func (p *pipeline) persist(ctx context.Context, rep report.Report) {
	if p.batchWriter == nil {
		return
	}

	if err := p.batchWriter.WriteAll(rep.Result.Findings, rep.GeneratedAt); err != nil {
		slog.Error("failed to store findings", "error", err)
	}

	if len(rep.Result.Unclassified) > 0 {
		entries := make([]storage.UnclassifiedEntry, 0, len(rep.Result.Unclassified))
		for key, count := range rep.Result.Unclassified {
			entries = append(entries, storage.UnclassifiedEntry{EventKey: key, Count: count})
		}
		if err := p.unclassified.WriteBatch(ctx, rep.GeneratedAt, entries); err != nil {
			slog.Error("failed to store unclassified keys", "error", err)
		}
	}
}

// Latest serves the TUI. A cached report is returned while fresh; a stale
// or missing one triggers a new cycle.
func (p *pipeline) Latest(ctx context.Context) (report.Report, error) {
	p.mu.Lock()
	if p.haveReport && time.Since(p.lastRun) < tuiMinRefresh {
		rep := p.lastReport
		p.mu.Unlock()
		return rep, nil
	}
	p.mu.Unlock()

	if err := p.cycle(ctx, time.Now().UTC()); err != nil {
		return report.Report{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastReport, nil
}

func (p *pipeline) close() {
	p.closeOnce.Do(func() {
		p.ingester.Stop()
		p.queue.Close()

		if p.batchWriter != nil {
			if err := p.batchWriter.Close(); err != nil {
				slog.Error("batch writer close error", "error", err)
			}
			metrics := p.batchWriter.Metrics()
			slog.Info("findings history metrics",
				"written", metrics.Written,
				"failed", metrics.Failed,
				"batches", metrics.Batches,
			)
		}
		if p.chClient != nil {
			if err := p.chClient.Close(); err != nil {
				slog.Error("clickhouse close error", "error", err)
			}
		}

		metrics := p.queue.Metrics()
		slog.Info("shutdown complete",
			"events_pushed", metrics.Pushed,
			"events_popped", metrics.Popped,
			"events_dropped", metrics.Dropped,
		)
	})
}

// runOnce generates a single report, prints it and exits.
func runOnce(ctx context.Context, p *pipeline, styled bool) error {
	if err := p.client.Login(ctx); err != nil {
		slog.Warn("controller login failed, retrying during collection", "error", err)
	}

	if err := p.cycle(ctx, time.Now().UTC()); err != nil {
		return err
	}

	p.mu.Lock()
	rep := p.lastReport
	p.mu.Unlock()

	if styled {
		return report.NewStyledFormatter().Format(os.Stdout, rep)
	}
	return p.plain.Format(os.Stdout, rep)
}

// runHistory lists stored report runs, newest first, and the findings of
// the most recent one.
func runHistory(ctx context.Context, cfg *config.Config, limit int) error {
	if !cfg.Storage.Enabled {
		return fmt.Errorf("findings history requires storage to be enabled")
	}

	chClient, err := storage.NewClickHouseClient(cfg.Storage.ClickHouse)
	if err != nil {
		return err
	}
	defer chClient.Close()

	reader := storage.NewHistoryReader(chClient)
	runs, err := reader.Runs(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No report runs recorded.")
		return nil
	}

	fmt.Printf("Last %d report runs:\n", len(runs))
	for _, run := range runs {
		fmt.Printf("  %s  %d findings\n", run.GeneratedAt.UTC().Format(time.RFC3339), run.Findings)
	}

	findings, err := reader.ForRun(ctx, runs[0].GeneratedAt)
	if err != nil {
		return err
	}
	if len(findings) == 0 {
		return nil
	}

	fmt.Printf("\nFindings from %s:\n", runs[0].GeneratedAt.UTC().Format(time.RFC3339))
	for _, f := range findings {
		fmt.Printf("  [%s] %s", f.Severity, f.Title)
		if f.Duplicates > 0 {
			fmt.Printf(" (x%d)", f.Duplicates+1)
		}
		fmt.Println()
	}
	return nil
}

// runDaemon polls the controller continuously and generates reports on the
// configured schedule until the context is cancelled.
func runDaemon(ctx context.Context, p *pipeline, cfg *config.Config) error {
	schedule, err := scheduler.Parse(cfg.Report.Schedule)
	if err != nil {
		return fmt.Errorf("invalid schedule: %w", err)
	}

	go func() {
		if err := p.ingester.Start(ctx); err != nil && err != context.Canceled {
			slog.Error("ingester stopped", "error", err)
		}
	}()

	runner := scheduler.NewRunner(schedule, p.cycle)
	slog.Info("starting report scheduler", "schedule", cfg.Report.Schedule)

	if err := runner.Run(ctx); err != nil && err != context.Canceled {
		return err
	}
	slog.Info("shutdown signal received")
	return nil
}
