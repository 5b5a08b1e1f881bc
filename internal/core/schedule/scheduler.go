package schedule

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/agorabot/agora/internal/core/activity"
	"github.com/agorabot/agora/internal/core/report"
	"github.com/agorabot/agora/internal/metrics"
)

// Default cycle intervals, matching the report-refresh and cleanup
// cadence of the bot.
const (
	DefaultReportInterval    = 30 * time.Minute
	DefaultRetentionInterval = 6 * time.Hour
)

// ReportSpec configures one periodic report.
type ReportSpec struct {
	Kind          string
	Title         string
	Category      string
	Mode          report.Mode
	DestinationID int64
}

// Config holds scheduler settings. Zero values fall back to defaults.
type Config struct {
	ReportInterval    time.Duration
	RetentionInterval time.Duration
	WindowDays        int
	MaxEntries        int
	Reports           []ReportSpec
}

// Scheduler drives the two periodic jobs. It is an explicit object
// constructed once at startup; there is no package-level state.
type Scheduler struct {
	cfg   Config
	store activity.CounterStore
	agg   *activity.Aggregator
	dir   Directory
	rec   *Reconciler

	// Optional platform integration, resolved at composition time.
	platform PlatformSource
	syncer   DirectorySyncer

	// destinations holds every report destination; those channels are
	// excluded from scoring so a report does not rank itself.
	destinations map[int64]bool

	ready <-chan struct{}
	now   func() time.Time
	log   zerolog.Logger
}

// New creates a Scheduler.
func New(cfg Config, store activity.CounterStore, agg *activity.Aggregator, dir Directory, rec *Reconciler, log zerolog.Logger) *Scheduler {
	if cfg.ReportInterval <= 0 {
		cfg.ReportInterval = DefaultReportInterval
	}
	if cfg.RetentionInterval <= 0 {
		cfg.RetentionInterval = DefaultRetentionInterval
	}
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = activity.DefaultWindowDays
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = report.DefaultMaxEntries
	}

	destinations := make(map[int64]bool, len(cfg.Reports))
	for _, spec := range cfg.Reports {
		destinations[spec.DestinationID] = true
	}

	return &Scheduler{
		cfg:          cfg,
		store:        store,
		agg:          agg,
		dir:          dir,
		rec:          rec,
		destinations: destinations,
		now:          time.Now,
		log:          log.With().Str("component", "scheduler").Logger(),
	}
}

// WithPlatformSource wires the optional platform channel listing used
// by the retention cycle to keep the directory in sync.
func (s *Scheduler) WithPlatformSource(src PlatformSource, syncer DirectorySyncer) *Scheduler {
	s.platform = src
	s.syncer = syncer
	return s
}

// WithReadySignal makes both jobs wait for ch to close before their
// first tick.
func (s *Scheduler) WithReadySignal(ch <-chan struct{}) *Scheduler {
	s.ready = ch
	return s
}

// WithClock overrides the time source for tests.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// Run starts both periodic jobs and blocks until ctx is canceled. Job
// failures are contained at the job boundary; Run only returns on
// cancellation.
func (s *Scheduler) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		s.loop(ctx, "report", s.cfg.ReportInterval, s.reportJob)
	}()
	go func() {
		defer wg.Done()
		s.loop(ctx, "retention", s.cfg.RetentionInterval, s.retentionJob)
	}()

	wg.Wait()
	return ctx.Err()
}

// loop waits for readiness, runs the job once, then ticks.
func (s *Scheduler) loop(ctx context.Context, name string, interval time.Duration, job func(context.Context) error) {
	if s.ready != nil {
		select {
		case <-ctx.Done():
			return
		case <-s.ready:
		}
	}

	s.runJob(ctx, name, job)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runJob(ctx, name, job)
		}
	}
}

// runJob is the job boundary: panics and errors are logged and the
// schedule continues uninterrupted.
func (s *Scheduler) runJob(ctx context.Context, name string, job func(context.Context) error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().
				Str("job", name).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("job panicked")
		}
	}()

	start := s.now()
	if err := job(ctx); err != nil {
		s.log.Error().Str("job", name).Err(err).Msg("job failed")
		return
	}
	s.log.Debug().Str("job", name).Dur("took", s.now().Sub(start)).Msg("job completed")
}

func (s *Scheduler) reportJob(ctx context.Context) error {
	err := s.RunReportCycle(ctx)
	if err != nil {
		metrics.ReportCycles.WithLabelValues("error").Inc()
		return err
	}
	metrics.ReportCycles.WithLabelValues("ok").Inc()
	return nil
}

func (s *Scheduler) retentionJob(ctx context.Context) error {
	err := s.RunRetentionCycle(ctx)
	if err != nil {
		metrics.RetentionCycles.WithLabelValues("error").Inc()
		return err
	}
	metrics.RetentionCycles.WithLabelValues("ok").Inc()
	return nil
}

// RunReportCycle refreshes every configured report. A failing report
// does not stop the others; all failures are joined into the returned
// error.
func (s *Scheduler) RunReportCycle(ctx context.Context) error {
	var errs []error
	for _, spec := range s.cfg.Reports {
		if err := s.refreshReport(ctx, spec); err != nil {
			s.log.Error().Str("kind", spec.Kind).Err(err).Msg("report refresh failed")
			errs = append(errs, fmt.Errorf("%s: %w", spec.Kind, err))
		}
	}
	return errors.Join(errs...)
}

// RefreshReport refreshes a single report kind. Used by the manual
// admin trigger.
func (s *Scheduler) RefreshReport(ctx context.Context, kind string) error {
	for _, spec := range s.cfg.Reports {
		if spec.Kind == kind {
			return s.refreshReport(ctx, spec)
		}
	}
	return fmt.Errorf("unknown report kind %q", kind)
}

// Kinds returns the configured report kinds.
func (s *Scheduler) Kinds() []string {
	kinds := make([]string, len(s.cfg.Reports))
	for i, spec := range s.cfg.Reports {
		kinds[i] = spec.Kind
	}
	return kinds
}

// BuildReport builds the current document for a report kind without
// publishing it. Used by the one-shot report command.
func (s *Scheduler) BuildReport(ctx context.Context, kind string) (report.Document, error) {
	for _, spec := range s.cfg.Reports {
		if spec.Kind == kind {
			return s.buildReport(ctx, spec)
		}
	}
	return report.Document{}, fmt.Errorf("unknown report kind %q", kind)
}

func (s *Scheduler) refreshReport(ctx context.Context, spec ReportSpec) error {
	doc, err := s.buildReport(ctx, spec)
	if err != nil {
		return err
	}
	return s.rec.PublishOrUpdate(ctx, spec.Kind, spec.DestinationID, doc)
}

func (s *Scheduler) buildReport(ctx context.Context, spec ReportSpec) (report.Document, error) {
	entities, err := s.dir.ListEntities(ctx, spec.Category)
	if err != nil {
		return report.Document{}, fmt.Errorf("list entities for %q: %w", spec.Category, err)
	}

	rows := make([]report.Row, 0, len(entities))
	for _, entity := range entities {
		if s.destinations[entity.ID] {
			continue
		}

		m, err := s.agg.Metrics(ctx, entity.ID)
		if err != nil {
			// Best-effort degraded report: drop this entity, keep going.
			s.log.Warn().Int64("entity_id", entity.ID).Err(err).Msg("metric computation failed, excluding entity")
			metrics.EntitiesSkipped.Inc()
			continue
		}
		rows = append(rows, report.Row{Entity: entity, Metrics: m})
	}

	return report.Build(report.BuildInput{
		Kind:        spec.Kind,
		Title:       spec.Title,
		Mode:        spec.Mode,
		MaxEntries:  s.cfg.MaxEntries,
		GeneratedAt: s.now(),
		Rows:        rows,
	}), nil
}

// RunRetentionCycle prunes every tracked entity's event log to the
// configured window, then reconciles the directory against the
// platform listing if one is wired.
func (s *Scheduler) RunRetentionCycle(ctx context.Context) error {
	ids, err := s.store.ListTracked(ctx)
	if err != nil {
		return fmt.Errorf("list tracked entities: %w", err)
	}

	var removed int64
	for _, id := range ids {
		n, err := s.agg.Retain(ctx, id, s.cfg.WindowDays)
		if err != nil {
			s.log.Warn().Int64("entity_id", id).Err(err).Msg("retention sweep failed for entity")
			continue
		}
		removed += n
	}
	s.log.Info().Int("entities", len(ids)).Int64("removed", removed).Msg("retention sweep completed")

	if s.platform == nil || s.syncer == nil {
		return nil
	}

	for _, category := range s.categories() {
		entities, err := s.platform.ListChannels(ctx, category)
		if err != nil {
			s.log.Warn().Str("category", category).Err(err).Msg("platform listing failed, skipping directory sync")
			continue
		}
		if err := s.syncer.Sync(ctx, category, entities); err != nil {
			s.log.Warn().Str("category", category).Err(err).Msg("directory sync failed")
		}
	}
	return nil
}

func (s *Scheduler) categories() []string {
	seen := make(map[string]bool)
	var categories []string
	for _, spec := range s.cfg.Reports {
		if !seen[spec.Category] {
			seen[spec.Category] = true
			categories = append(categories, spec.Category)
		}
	}
	return categories
}
