package mission

import (
	"fmt"
	"time"

	"github.com/halverson/satcom-planner/internal/coverage"
	"github.com/halverson/satcom-planner/internal/route"
	"github.com/halverson/satcom-planner/pkg/logger"
)

// BuildError wraps any unexpected timeline build failure so callers see a
// single typed error and never a partially built result.
type BuildError struct {
	MissionID string
	Err       error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("timeline build for mission %s failed: %v", e.MissionID, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// Builder builds mission timelines. It holds only read-only collaborators,
// so builds are pure functions of their inputs and safe to run concurrently;
// concurrent rebuilds of one mission are last-writer-wins by design.
type Builder struct {
	catalog SatelliteCatalog
	logger  *logger.Logger
}

// NewBuilder creates a timeline builder.
func NewBuilder(catalog SatelliteCatalog, log *logger.Logger) *Builder {
	return &Builder{
		catalog: catalog,
		logger:  log.Named("builder"),
	}
}

// Build computes the full communication timeline for one mission. sampler
// and pois may be nil; coverage analysis is skipped without a sampler.
func (b *Builder) Build(cfg *Config, r *route.Route, sampler route.CoverageLookup, pois []route.POI) (*Timeline, *Summary, error) {
	start := time.Now()

	if r == nil || len(r.Points) == 0 {
		return nil, nil, &BuildError{MissionID: cfg.ID, Err: route.ErrEmptyRoute}
	}

	projector, err := route.NewProjector(r, cfg.WindowOverride, b.logger)
	if err != nil {
		return nil, nil, &BuildError{MissionID: cfg.ID, Err: err}
	}
	window := projector.Window()

	interval := cfg.SampleInterval
	if interval <= 0 {
		interval = route.DefaultSampleInterval
	}
	samples := projector.GenerateSamples(interval, sampler)

	engine := NewEngine(window, cfg.Constraints, b.catalog, b.logger)
	engine.SetSchedule(cfg.InitialXSatellite, cfg.Transitions)
	engine.AddSafetyBuffers()
	engine.ResolveRefuelWindows(r, cfg.RefuelWindows)
	engine.AddTransitions(cfg.Transitions)
	engine.AddOutages(cfg.Outages)
	if sampler != nil {
		engine.AddCoverageAnalysis(coverage.AnalyzeKaCoverage(samples))
	}
	engine.SweepAzimuthViolations(samples)

	events := engine.SortedEvents()
	segments := AssembleTimeline(window, events)

	if err := verifyPartition(window, segments); err != nil {
		return nil, nil, &BuildError{MissionID: cfg.ID, Err: err}
	}

	now := time.Now().UTC()
	timeline := &Timeline{
		MissionID:  cfg.ID,
		Start:      window.Start,
		End:        window.End,
		Segments:   segments,
		Events:     events,
		Advisories: Advisories(events),
		Stats:      AttachStatistics(segments, now),
		BuiltAt:    now,
	}
	summary := &Summary{
		MissionID:    cfg.ID,
		Duration:     window.Duration(),
		SegmentCount: len(segments),
		EventCount:   len(events),
		POICount:     len(pois),
		Stats:        timeline.Stats,
	}

	b.logger.Info("Mission timeline built",
		logger.String("mission_id", cfg.ID),
		logger.Int("samples", len(samples)),
		logger.Int("events", len(events)),
		logger.Int("segments", len(segments)),
		logger.Duration("window", window.Duration()),
		logger.Duration("build_time", time.Since(start)))

	return timeline, summary, nil
}

// verifyPartition checks the segment list tiles the mission window exactly:
// no gaps, no overlaps, bounds matching the window.
func verifyPartition(window route.Window, segments []Segment) error {
	if len(segments) == 0 {
		return fmt.Errorf("empty segment partition for window %v to %v", window.Start, window.End)
	}
	if !segments[0].Start.Equal(window.Start) {
		return fmt.Errorf("partition starts at %v, want %v", segments[0].Start, window.Start)
	}
	if !segments[len(segments)-1].End.Equal(window.End) {
		return fmt.Errorf("partition ends at %v, want %v", segments[len(segments)-1].End, window.End)
	}
	for i := 0; i+1 < len(segments); i++ {
		if !segments[i].End.Equal(segments[i+1].Start) {
			return fmt.Errorf("partition discontinuity at %v", segments[i].End)
		}
	}
	return nil
}
