package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"nvdiff/internal/compare"
	"nvdiff/internal/config"
	"nvdiff/internal/domain"
	"nvdiff/internal/ledger"
	"nvdiff/internal/match"
	"nvdiff/internal/metrics"
	"nvdiff/internal/registry"
	"nvdiff/internal/repository"
	"nvdiff/internal/topology"
)

// Metadata keys written after each committed cycle
const (
	metaLastCycle     = "last_cycle:"
	metaLastTimestamp = "last_timestamp:"
)

// ChangeService provides comparison cycles over a ledger
type ChangeService struct {
	ledger   *ledger.Ledger
	cfg      *config.Config
	eventBus *EventBus
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// Option configures a ChangeService
type Option func(*ChangeService)

// WithMetrics records cycle metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *ChangeService) {
		s.metrics = m
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(s *ChangeService) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewChangeService creates a new change service. A nil config uses defaults.
func NewChangeService(l *ledger.Ledger, cfg *config.Config, eventBus *EventBus, opts ...Option) *ChangeService {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	s := &ChangeService{
		ledger:   l,
		cfg:      cfg,
		eventBus: eventBus,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ledger returns the ledger the service commits to
func (s *ChangeService) Ledger() *ledger.Ledger {
	return s.ledger
}

// RunCycle compares cur against old and commits the outcome. A nil old
// snapshot marks the first vintage: every record is an Addition. When pairs
// is nil the elements are paired by the default matcher.
//
// A lifecycle violation discards the whole cycle; the returned report is
// flagged and the error wraps domain.ErrCycleFlagged.
func (s *ChangeService) RunCycle(ctx context.Context, old, cur *domain.Snapshot, pairs []domain.Pair) (*CycleReport, error) {
	start := time.Now()

	if cur == nil {
		return nil, errors.New("missing incoming snapshot")
	}
	settings := s.cfg.SettingsFor(cur.Dataset)
	if err := cur.Validate(false, settings.Tolerance); err != nil {
		return nil, fmt.Errorf("incoming snapshot: %w", err)
	}
	if old == nil {
		old = domain.NewSnapshot(cur.Dataset, time.Time{})
	} else {
		if old.Dataset != cur.Dataset {
			return nil, fmt.Errorf("dataset mismatch: %q vs %q", old.Dataset, cur.Dataset)
		}
		if err := old.Validate(true, settings.Tolerance); err != nil {
			return nil, fmt.Errorf("previous snapshot: %w", err)
		}
		if !cur.Timestamp.After(old.Timestamp) {
			return nil, fmt.Errorf("incoming snapshot %s is not after previous %s",
				cur.Timestamp.Format(time.RFC3339), old.Timestamp.Format(time.RFC3339))
		}
	}

	report := &CycleReport{
		CycleID:   uuid.NewString(),
		Dataset:   cur.Dataset,
		Method:    settings.Method,
		Timestamp: cur.Timestamp,
	}
	logger := s.logger.With(
		zap.String("cycle_id", report.CycleID),
		zap.String("dataset", cur.Dataset),
		zap.String("method", string(settings.Method)),
	)

	old, err := s.ensureBaseline(ctx, old)
	if err != nil {
		return nil, err
	}

	oldNet, err := topology.Build(old.Elements, old.Junctions, settings.Tolerance)
	if err != nil {
		return nil, fmt.Errorf("build previous topology: %w", err)
	}
	curNet, err := topology.Build(cur.Elements, cur.Junctions, settings.Tolerance)
	if err != nil {
		return nil, fmt.Errorf("build incoming topology: %w", err)
	}

	if pairs == nil && len(old.Elements) > 0 {
		m := match.New(settings.Tolerance, s.cfg.Matching.SearchRadius, s.cfg.Matching.ClassFields, match.WithLogger(logger))
		pairs = m.Match(old.Elements, cur.Elements)
	}

	cmp, err := compare.New(settings.Method, settings.Tolerance,
		compare.WithWorkers(settings.Workers),
		compare.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	reg := registry.New(s.ledger.Has)
	res, err := cmp.Compare(ctx, reg, oldNet, curNet, pairs)
	if err != nil {
		s.metrics.ObserveCycle(cur.Dataset, string(settings.Method), metrics.StatusFailed, time.Since(start))
		return nil, fmt.Errorf("compare snapshots: %w", err)
	}
	report.Result = res

	n, err := s.commit(ctx, res.Outcomes(), cur.Timestamp, report.CycleID)
	if err != nil {
		if errors.Is(err, domain.ErrLifecycleViolation) {
			return s.flag(report, start, logger, err)
		}
		s.metrics.ObserveCycle(cur.Dataset, string(settings.Method), metrics.StatusFailed, time.Since(start))
		return nil, err
	}
	report.Entries = n

	report.Output = annotate(cur, curNet, res)
	unlinked := linkPoints(report.Output, curNet)
	for table, count := range unlinked {
		report.Unlinked += count
		s.metrics.AddUnlinked(cur.Dataset, table, count)
		logger.Warn("point features left without roadnid", zap.String("table", table), zap.Int("count", count))
	}
	report.ChangeLogs = changeLogs(cur.Dataset, res)

	if err := s.recordMeta(ctx, cur.Dataset, report.CycleID, cur.Timestamp); err != nil {
		logger.Warn("failed to record cycle metadata", zap.Error(err))
	}

	conflicts := report.Conflicts()
	for _, o := range conflicts {
		logger.Warn("object not finalized",
			zap.String("kind", string(o.Kind)),
			zap.String("key", o.Key()),
			zap.String("nid", string(o.NID)),
			zap.Error(o.Err),
		)
		s.eventBus.Publish(Event{
			Type:    EventConflictDetected,
			Payload: ConflictPayload{CycleID: report.CycleID, Kind: o.Kind, Key: o.Key(), Error: o.Err.Error()},
		})
	}

	report.Duration = time.Since(start)
	s.observe(report, len(conflicts))
	s.eventBus.Publish(Event{Type: EventCycleCommitted, Payload: summary(report)})

	elements := report.Counts(domain.KindElement)
	logger.Info("cycle committed",
		zap.Int("entries", report.Entries),
		zap.Int("added", elements[domain.EffectAddition]),
		zap.Int("retired", elements[domain.EffectRetirement]),
		zap.Int("modified", elements[domain.EffectDescriptiveModification]+elements[domain.EffectGeometricModification]),
		zap.Int("confirmed", elements[domain.EffectConfirmation]),
		zap.Int("conflicts", len(conflicts)),
		zap.Duration("took", report.Duration),
	)
	return report, nil
}

// commit stages one entry per successful outcome and commits them together
func (s *ChangeService) commit(ctx context.Context, outcomes []compare.Outcome, ts time.Time, cycleID string) (int, error) {
	batch := s.ledger.Begin()
	for _, o := range outcomes {
		if o.Failed() {
			continue
		}
		err := batch.Append(domain.Entry{
			NID:       o.NID,
			Kind:      o.Kind,
			Effect:    o.Effect,
			Timestamp: ts,
			CycleID:   cycleID,
			State:     o.State,
		})
		if err != nil {
			batch.Discard()
			return 0, err
		}
	}
	if err := ctx.Err(); err != nil {
		batch.Discard()
		return 0, err
	}
	n := batch.Len()
	if err := batch.Commit(ctx); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *ChangeService) flag(report *CycleReport, start time.Time, logger *zap.Logger, cause error) (*CycleReport, error) {
	report.Flagged = true
	report.FlagReason = cause.Error()
	report.Duration = time.Since(start)

	logger.Error("cycle flagged for manual review", zap.Error(cause))
	s.metrics.ObserveCycle(report.Dataset, string(report.Method), metrics.StatusFlagged, report.Duration)
	s.eventBus.Publish(Event{
		Type:    EventCycleFlagged,
		Payload: FlagPayload{CycleID: report.CycleID, Dataset: report.Dataset, Reason: report.FlagReason},
	})
	return report, fmt.Errorf("%w: %w", domain.ErrCycleFlagged, cause)
}

func (s *ChangeService) observe(report *CycleReport, conflicts int) {
	s.metrics.ObserveCycle(report.Dataset, string(report.Method), metrics.StatusCommitted, report.Duration)
	for _, kind := range []domain.FeatureKind{domain.KindElement, domain.KindJunction} {
		counts := make(map[string]int)
		for effect, n := range report.Counts(kind) {
			counts[string(effect)] = n
		}
		s.metrics.AddEffects(report.Dataset, string(kind), counts)
	}
	s.metrics.AddConflicts(report.Dataset, conflicts)
	s.metrics.SetLedgerEntries(s.ledger.Len())
}

func (s *ChangeService) recordMeta(ctx context.Context, dataset, cycleID string, ts time.Time) error {
	store := s.ledger.Store()
	if store == nil {
		return nil
	}
	if err := store.PutMeta(ctx, metaLastCycle+dataset, cycleID); err != nil {
		return err
	}
	return store.PutMeta(ctx, metaLastTimestamp+dataset, ts.UTC().Format(time.RFC3339Nano))
}

// LastCycle returns the ID and snapshot timestamp of the last committed cycle
// for a dataset
func (s *ChangeService) LastCycle(ctx context.Context, dataset string) (string, time.Time, error) {
	store := s.ledger.Store()
	if store == nil {
		return "", time.Time{}, fmt.Errorf("no cycle recorded for %s: %w", dataset, repository.ErrNotFound)
	}
	id, err := store.GetMeta(ctx, metaLastCycle+dataset)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("read last cycle for %s: %w", dataset, err)
	}
	raw, err := store.GetMeta(ctx, metaLastTimestamp+dataset)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("read last timestamp for %s: %w", dataset, err)
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("parse last timestamp for %s: %w", dataset, err)
	}
	return id, ts, nil
}

func summary(r *CycleReport) CyclePayload {
	return CyclePayload{
		CycleID:   r.CycleID,
		Dataset:   r.Dataset,
		Method:    r.Method,
		Entries:   r.Entries,
		Elements:  r.Counts(domain.KindElement),
		Junctions: r.Counts(domain.KindJunction),
	}
}
