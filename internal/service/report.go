package service

import (
	"time"

	"nvdiff/internal/compare"
	"nvdiff/internal/domain"
)

// CycleReport is the result of one comparison cycle
type CycleReport struct {
	CycleID   string
	Dataset   string
	Method    domain.ComparisonMethod
	Timestamp time.Time

	// Result holds every outcome, failed ones included
	Result *compare.Result

	// Output is the incoming snapshot annotated with NIDs and effects. Nil
	// when the cycle was flagged.
	Output *domain.Snapshot

	ChangeLogs []domain.ChangeLog

	// Entries is the number of ledger entries committed
	Entries int

	// Unlinked counts point features with no element within reach
	Unlinked int

	Flagged    bool
	FlagReason string

	Duration time.Duration
}

// Counts tallies successful outcomes of one kind by effect
func (r *CycleReport) Counts(kind domain.FeatureKind) map[domain.Effect]int {
	if r.Result == nil {
		return map[domain.Effect]int{}
	}
	return r.Result.Counts(kind)
}

// Conflicts returns the outcomes that failed to bind
func (r *CycleReport) Conflicts() []compare.Outcome {
	if r.Result == nil {
		return nil
	}
	return r.Result.Failed()
}

// ChangeLog returns the log for one kind and bucket
func (r *CycleReport) ChangeLog(kind domain.FeatureKind, change string) (domain.ChangeLog, bool) {
	for _, l := range r.ChangeLogs {
		if l.Kind == kind && l.Change == change {
			return l, true
		}
	}
	return domain.ChangeLog{}, false
}

// changeLogs buckets the successful outcomes of a cycle by kind and change.
// Every kind gets every bucket, empty ones included.
func changeLogs(dataset string, res *compare.Result) []domain.ChangeLog {
	var logs []domain.ChangeLog
	for _, kind := range []domain.FeatureKind{domain.KindElement, domain.KindJunction} {
		buckets := make(map[string][]domain.NID, len(domain.ChangeBuckets))
		for _, o := range res.Outcomes() {
			if o.Kind != kind || o.Failed() {
				continue
			}
			change := o.Effect.ChangeLogName()
			buckets[change] = append(buckets[change], o.NID)
		}
		for _, change := range domain.ChangeBuckets {
			logs = append(logs, domain.ChangeLog{
				Dataset: dataset,
				Kind:    kind,
				Change:  change,
				NIDs:    buckets[change],
			})
		}
	}
	return logs
}
