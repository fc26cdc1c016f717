package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"nvdiff/internal/compare"
	"nvdiff/internal/domain"
	"nvdiff/internal/registry"
	"nvdiff/internal/topology"
)

// Baseline records every object of a snapshot as an Addition at the
// snapshot's timestamp. NIDs already carried by the records are kept; the
// rest are issued. Use it to start a ledger from a vintage that was
// identified elsewhere.
func (s *ChangeService) Baseline(ctx context.Context, snap *domain.Snapshot) (*CycleReport, error) {
	start := time.Now()
	if snap == nil {
		return nil, errors.New("missing snapshot")
	}
	settings := s.cfg.SettingsFor(snap.Dataset)
	if err := snap.Validate(false, settings.Tolerance); err != nil {
		return nil, fmt.Errorf("baseline snapshot: %w", err)
	}

	net, err := topology.Build(snap.Elements, snap.Junctions, settings.Tolerance)
	if err != nil {
		return nil, fmt.Errorf("build baseline topology: %w", err)
	}

	report := &CycleReport{
		CycleID:   uuid.NewString(),
		Dataset:   snap.Dataset,
		Method:    settings.Method,
		Timestamp: snap.Timestamp,
	}
	res := &compare.Result{Method: settings.Method}
	reg := registry.New(s.ledger.Has)

	addition := func(kind domain.FeatureKind, key string, nid domain.NID, state domain.Feature) compare.Outcome {
		o := compare.Outcome{Kind: kind, NewKey: key, Effect: domain.EffectAddition, Reason: "baseline"}
		if nid == "" {
			nid = reg.Issue()
		}
		o.NID = nid
		if err := reg.Bind(nid, string(kind)+"/"+key); err != nil {
			o.Err = err
			return o
		}
		state.NID = nid
		o.State = &state
		return o
	}

	for _, e := range net.Elements() {
		res.Elements = append(res.Elements, addition(domain.KindElement, e.Key, e.NID, e.Feature()))
	}
	for _, j := range net.Junctions() {
		res.Junctions = append(res.Junctions, addition(domain.KindJunction, j.Key, j.NID, j.Feature()))
	}
	report.Result = res

	logger := s.logger.With(zap.String("cycle_id", report.CycleID), zap.String("dataset", snap.Dataset))

	n, err := s.commit(ctx, res.Outcomes(), snap.Timestamp, report.CycleID)
	if err != nil {
		if errors.Is(err, domain.ErrLifecycleViolation) {
			return s.flag(report, start, logger, err)
		}
		return nil, err
	}
	report.Entries = n
	report.Output = annotate(snap, net, res)
	report.ChangeLogs = changeLogs(snap.Dataset, res)
	report.Duration = time.Since(start)

	if err := s.recordMeta(ctx, snap.Dataset, report.CycleID, snap.Timestamp); err != nil {
		logger.Warn("failed to record cycle metadata", zap.Error(err))
	}
	s.observe(report, len(report.Conflicts()))
	s.eventBus.Publish(Event{Type: EventBaselineImported, Payload: summary(report)})

	logger.Info("baseline imported",
		zap.Int("entries", n),
		zap.Int("conflicts", len(report.Conflicts())),
	)
	return report, nil
}

// ensureBaseline imports the previous snapshot when baseline bootstrapping
// is enabled and the ledger knows none of its NIDs. It returns the snapshot
// the cycle should compare against: the annotated baseline output when one
// was imported, so that junction NIDs issued by the import carry forward.
func (s *ChangeService) ensureBaseline(ctx context.Context, old *domain.Snapshot) (*domain.Snapshot, error) {
	if !s.cfg.Ledger.BootstrapBaseline || len(old.Elements) == 0 {
		return old, nil
	}
	for _, e := range old.Elements {
		if s.ledger.Has(e.NID) {
			return old, nil
		}
	}
	report, err := s.Baseline(ctx, old)
	if err != nil {
		return nil, fmt.Errorf("bootstrap baseline: %w", err)
	}
	return report.Output, nil
}
