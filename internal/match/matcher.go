// Package match produces the old/new pairing consumed by the comparator.
//
// Elements are paired in three passes, each only considering what the
// previous passes left over:
//  1. a new element carrying an old element's NID is paired with it
//  2. identical geometry (snapped to the tolerance, direction ignored)
//  3. greedy nearest pairing within a search radius, restricted to elements
//     whose class fields are equal
//
// Every input element appears in exactly one pair. The matcher never produces
// a split or merge.
package match

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"nvdiff/internal/domain"
)

// Matcher pairs elements of two snapshots
type Matcher struct {
	tolerance    float64
	searchRadius float64
	classFields  []string
	logger       *zap.Logger
}

// Option configures a Matcher
type Option func(*Matcher)

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(m *Matcher) {
		if l != nil {
			m.logger = l
		}
	}
}

// New creates a matcher. A zero search radius disables proximity pairing.
func New(tolerance, searchRadius float64, classFields []string, opts ...Option) *Matcher {
	m := &Matcher{
		tolerance:    tolerance,
		searchRadius: searchRadius,
		classFields:  append([]string(nil), classFields...),
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type candidate struct {
	old, cur int
	score    float64
}

// Match pairs old and new elements. Matched pairs come first in new-element
// order, followed by unmatched new elements and then unmatched old elements.
func (m *Matcher) Match(old, cur []domain.LinearElement) []domain.Pair {
	oldTaken := make([]bool, len(old))
	curTaken := make([]int, len(cur))
	for i := range curTaken {
		curTaken[i] = -1
	}
	take := func(o, c int) {
		oldTaken[o] = true
		curTaken[c] = o
	}

	// Pass 1: explicit NID
	byNID := make(map[domain.NID]int, len(old))
	for i := range old {
		if old[i].NID != "" {
			byNID[old[i].NID] = i
		}
	}
	explicit := 0
	for c := range cur {
		if cur[c].NID == "" {
			continue
		}
		if o, ok := byNID[cur[c].NID]; ok && !oldTaken[o] {
			take(o, c)
			explicit++
		}
	}

	// Pass 2: identical geometry
	byGeom := make(map[string][]int)
	for o := range old {
		if !oldTaken[o] {
			k := old[o].GeometryKey(m.tolerance)
			byGeom[k] = append(byGeom[k], o)
		}
	}
	exact := 0
	for c := range cur {
		if curTaken[c] >= 0 {
			continue
		}
		k := cur[c].GeometryKey(m.tolerance)
		for _, o := range byGeom[k] {
			if !oldTaken[o] {
				take(o, c)
				exact++
				break
			}
		}
	}

	// Pass 3: proximity within the same class
	near := 0
	if m.searchRadius > 0 {
		idx := newGridIndex(m.searchRadius)
		for o := range old {
			if !oldTaken[o] {
				idx.insert(o, bounds(old[o].Geometry))
			}
		}

		var cands []candidate
		for c := range cur {
			if curTaken[c] >= 0 {
				continue
			}
			for _, o := range idx.query(bounds(cur[c].Geometry).expand(m.searchRadius)) {
				if !m.sameClass(&old[o], &cur[c]) {
					continue
				}
				score := hausdorff(old[o].Geometry, cur[c].Geometry)
				if score <= m.searchRadius {
					cands = append(cands, candidate{old: o, cur: c, score: score})
				}
			}
		}

		sort.Slice(cands, func(i, j int) bool {
			if cands[i].score != cands[j].score {
				return cands[i].score < cands[j].score
			}
			if cands[i].cur != cands[j].cur {
				return cands[i].cur < cands[j].cur
			}
			return cands[i].old < cands[j].old
		})
		for _, cd := range cands {
			if oldTaken[cd.old] || curTaken[cd.cur] >= 0 {
				continue
			}
			take(cd.old, cd.cur)
			near++
		}
	}

	pairs := make([]domain.Pair, 0, len(old)+len(cur))
	for c := range cur {
		if o := curTaken[c]; o >= 0 {
			pairs = append(pairs, domain.Pair{Old: old[o].Key, New: cur[c].Key})
		}
	}
	for c := range cur {
		if curTaken[c] < 0 {
			pairs = append(pairs, domain.Pair{New: cur[c].Key})
		}
	}
	for o := range old {
		if !oldTaken[o] {
			pairs = append(pairs, domain.Pair{Old: old[o].Key})
		}
	}

	m.logger.Debug("matched snapshots",
		zap.Int("old", len(old)),
		zap.Int("new", len(cur)),
		zap.Int("by_nid", explicit),
		zap.Int("by_geometry", exact),
		zap.Int("by_proximity", near),
	)
	return pairs
}

func (m *Matcher) sameClass(a, b *domain.LinearElement) bool {
	for _, f := range m.classFields {
		if a.Attributes[f] != b.Attributes[f] {
			return false
		}
	}
	return true
}

// hausdorff is the discrete Hausdorff distance between two polylines, taken
// over their vertices
func hausdorff(a, b domain.LineString) float64 {
	return math.Max(directed(a, b), directed(b, a))
}

func directed(from, to domain.LineString) float64 {
	var worst float64
	for _, p := range from {
		if d := to.DistanceTo(p); d > worst {
			worst = d
		}
	}
	return worst
}
