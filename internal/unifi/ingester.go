package unifi

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"unifi-report/internal/queue"
	"unifi-report/internal/schema"
)

// Watermark persists the timestamp of the newest record already collected,
// so a restart resumes where the previous run stopped instead of re-reading
// the controller's whole event log.
type Watermark interface {
	Load(ctx context.Context) (time.Time, error)
	Store(ctx context.Context, t time.Time) error
}

// IngesterConfig holds configuration for the controller ingester.
type IngesterConfig struct {
	PollInterval   time.Duration `yaml:"poll_interval"`
	WithinHours    int           `yaml:"within_hours"`
	EventBatchSize int           `yaml:"event_batch_size"`
	AlarmBatchSize int           `yaml:"alarm_batch_size"`
	IngestEvents   bool          `yaml:"ingest_events"`
	IngestAlarms   bool          `yaml:"ingest_alarms"`
	IngestDevices  bool          `yaml:"ingest_devices"`
}

// DefaultIngesterConfig returns the default ingester configuration.
func DefaultIngesterConfig() IngesterConfig {
	return IngesterConfig{
		PollInterval:   60 * time.Second,
		WithinHours:    24,
		EventBatchSize: 1000,
		AlarmBatchSize: 500,
		IngestEvents:   true,
		IngestAlarms:   true,
		IngestDevices:  true,
	}
}

// Ingester polls the controller, normalizes what it returns, and feeds the
// processing queue. Alarms and device metrics bypass the queue: alarms
// accumulate until the next report cycle takes them, device metrics are a
// snapshot where only the latest poll matters.
type Ingester struct {
	client     *Client
	normalizer *Normalizer
	queue      *queue.RingBuffer
	watermark  Watermark
	config     IngesterConfig

	mu            sync.Mutex
	running       bool
	stopCh        chan struct{}
	lastEventTime time.Time
	alarms        []schema.IPSEvent
	devices       []schema.DeviceMetrics
	dropped       uint64
}

// NewIngester creates a controller ingester. The watermark may be nil, in
// which case collection starts from the configured lookback window.
func NewIngester(client *Client, normalizer *Normalizer, q *queue.RingBuffer, wm Watermark, cfg IngesterConfig) *Ingester {
	return &Ingester{
		client:     client,
		normalizer: normalizer,
		queue:      q,
		watermark:  wm,
		config:     cfg,
		stopCh:     make(chan struct{}),
	}
}

// Start begins polling the controller. It blocks until the context is
// cancelled or Stop is called.
func (i *Ingester) Start(ctx context.Context) error {
	i.mu.Lock()
	if i.running {
		i.mu.Unlock()
		return nil
	}
	i.running = true
	i.mu.Unlock()

	if err := i.client.Login(ctx); err != nil {
		slog.Warn("controller login failed, will retry on first poll", "error", err)
	}

	if i.watermark != nil {
		if t, err := i.watermark.Load(ctx); err != nil {
			slog.Warn("failed to load collection watermark", "error", err)
		} else if !t.IsZero() {
			i.mu.Lock()
			i.lastEventTime = t
			i.mu.Unlock()
			slog.Info("resuming collection from watermark", "since", t)
		}
	}

	slog.Info("starting controller ingester",
		"poll_interval", i.config.PollInterval,
		"within_hours", i.config.WithinHours,
		"ingest_events", i.config.IngestEvents,
		"ingest_alarms", i.config.IngestAlarms,
		"ingest_devices", i.config.IngestDevices,
	)

	ticker := time.NewTicker(i.config.PollInterval)
	defer ticker.Stop()

	i.Poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-i.stopCh:
			return nil
		case <-ticker.C:
			i.Poll(ctx)
		}
	}
}

// Stop stops the ingester.
func (i *Ingester) Stop() {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.running {
		close(i.stopCh)
		i.running = false
	}
}

// Poll runs one collection pass. It is also called directly in one-shot
// mode, where no polling loop runs.
func (i *Ingester) Poll(ctx context.Context) {
	if i.config.IngestEvents {
		i.pollEvents(ctx)
	}
	if i.config.IngestAlarms {
		i.pollAlarms(ctx)
	}
	if i.config.IngestDevices {
		i.pollDevices(ctx)
	}
}

func (i *Ingester) pollEvents(ctx context.Context) {
	i.mu.Lock()
	since := i.lastEventTime
	i.mu.Unlock()

	events, err := i.client.GetEvents(ctx, i.config.WithinHours, i.config.EventBatchSize)
	if err != nil {
		slog.Error("failed to get controller events", "error", err)
		return
	}

	var latest time.Time
	kept := 0
	for idx := range events {
		entry, err := i.normalizer.NormalizeEvent(&events[idx])
		if err != nil {
			slog.Warn("failed to normalize controller event", "key", events[idx].Key, "error", err)
			continue
		}
		if !since.IsZero() && !entry.Timestamp.After(since) {
			continue
		}

		if err := i.queue.Push(entry); err != nil {
			i.mu.Lock()
			i.dropped++
			i.mu.Unlock()
			slog.Warn("failed to enqueue controller event", "key", entry.EventKey, "error", err)
			continue
		}
		kept++
		if entry.Timestamp.After(latest) {
			latest = entry.Timestamp
		}
	}

	if kept > 0 {
		slog.Debug("collected controller events", "count", kept)
	}
	if latest.IsZero() {
		return
	}

	i.mu.Lock()
	i.lastEventTime = latest
	i.mu.Unlock()

	if i.watermark != nil {
		if err := i.watermark.Store(ctx, latest); err != nil {
			slog.Warn("failed to store collection watermark", "error", err)
		}
	}
}

func (i *Ingester) pollAlarms(ctx context.Context) {
	alarms, err := i.client.GetAlarms(ctx, i.config.WithinHours, i.config.AlarmBatchSize)
	if err != nil {
		slog.Error("failed to get controller alarms", "error", err)
		return
	}

	normalized := make([]schema.IPSEvent, 0, len(alarms))
	for idx := range alarms {
		ev, err := i.normalizer.NormalizeAlarm(&alarms[idx])
		if err != nil {
			slog.Warn("failed to normalize controller alarm", "error", err)
			continue
		}
		normalized = append(normalized, *ev)
	}
	if len(normalized) == 0 {
		return
	}

	slog.Debug("collected controller alarms", "count", len(normalized))

	i.mu.Lock()
	i.alarms = normalized
	i.mu.Unlock()
}

func (i *Ingester) pollDevices(ctx context.Context) {
	devices, err := i.client.GetDevices(ctx)
	if err != nil {
		slog.Error("failed to get controller devices", "error", err)
		return
	}

	metrics := make([]schema.DeviceMetrics, 0, len(devices))
	for idx := range devices {
		metrics = append(metrics, *i.normalizer.NormalizeDevice(&devices[idx]))
	}

	i.mu.Lock()
	i.devices = metrics
	i.mu.Unlock()
}

// Snapshot returns the alarms and device metrics gathered since the last
// call. Alarms are handed over exactly once; device metrics are the latest
// poll and survive the call.
func (i *Ingester) Snapshot() ([]schema.IPSEvent, []schema.DeviceMetrics) {
	i.mu.Lock()
	defer i.mu.Unlock()

	alarms := i.alarms
	i.alarms = nil

	devices := make([]schema.DeviceMetrics, len(i.devices))
	copy(devices, i.devices)
	return alarms, devices
}

// Stats returns current ingester statistics.
func (i *Ingester) Stats() IngesterStats {
	i.mu.Lock()
	defer i.mu.Unlock()
	return IngesterStats{
		Running:       i.running,
		LastEventTime: i.lastEventTime,
		PendingAlarms: len(i.alarms),
		KnownDevices:  len(i.devices),
		Dropped:       i.dropped,
	}
}

// IngesterStats holds ingester statistics.
type IngesterStats struct {
	Running       bool      `json:"running"`
	LastEventTime time.Time `json:"last_event_time"`
	PendingAlarms int       `json:"pending_alarms"`
	KnownDevices  int       `json:"known_devices"`
	Dropped       uint64    `json:"dropped"`
}
