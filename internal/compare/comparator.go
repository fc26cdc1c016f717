// Package compare classifies the change of every element and junction
// between two snapshots and decides which NIDs carry forward.
//
// Classification of element pairs is pure and runs in parallel. Binding NIDs
// to new objects happens afterwards, sequentially in pair order, so the same
// input always yields the same bindings and the same conflicts.
package compare

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"nvdiff/internal/domain"
	"nvdiff/internal/registry"
	"nvdiff/internal/segment"
	"nvdiff/internal/topology"
)

// Comparator classifies element and junction changes with one method
type Comparator struct {
	method    domain.ComparisonMethod
	tolerance float64
	workers   int
	logger    *zap.Logger
}

// Option configures a Comparator
type Option func(*Comparator)

// WithWorkers bounds the number of pairs classified concurrently
func WithWorkers(n int) Option {
	return func(c *Comparator) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(c *Comparator) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a comparator for a method and positional tolerance
func New(method domain.ComparisonMethod, tolerance float64, opts ...Option) (*Comparator, error) {
	if !method.Valid() {
		return nil, fmt.Errorf("unknown comparison method %q", method)
	}
	if tolerance < 0 {
		return nil, fmt.Errorf("negative tolerance %g", tolerance)
	}
	c := &Comparator{
		method:    method,
		tolerance: tolerance,
		workers:   runtime.GOMAXPROCS(0),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Method returns the comparison method in use
func (c *Comparator) Method() domain.ComparisonMethod {
	return c.method
}

// decision is the pure classification of one pair
type decision struct {
	pair     domain.Pair
	effect   domain.Effect
	broken   bool
	reason   string
	segments []domain.Effect
	err      error
}

// Compare classifies every element of both networks and reconciles their
// junctions. Elements not mentioned in pairs are treated as unmatched. Every
// element of old must carry a NID. NIDs are bound in reg, which is seeded
// with the old network's bindings.
func (c *Comparator) Compare(ctx context.Context, reg *registry.Registry, old, cur *topology.Network, pairs []domain.Pair) (*Result, error) {
	pairs, err := complete(old, cur, pairs)
	if err != nil {
		return nil, err
	}

	for _, e := range old.Elements() {
		if e.NID == "" {
			return nil, fmt.Errorf("old element %s: missing nid", e.Key)
		}
		reg.Seed(e.NID, elementSlot(e.Key))
	}
	for _, j := range old.Junctions() {
		if j.NID != "" {
			reg.Seed(j.NID, junctionSlot(j.Key))
		}
	}

	ids := newIdentities(old, pairs)

	decisions := make([]decision, len(pairs))
	pending := make([]int, len(pairs))
	for i := range pending {
		pending[i] = i
	}
	for round := 1; len(pending) > 0; round++ {
		if err := c.classify(ctx, old, cur, pairs, pending, ids, decisions); err != nil {
			return nil, err
		}
		pending = c.propagate(ids, decisions)
		if len(pending) > 0 {
			c.logger.Debug("neighbors lost continuity, reclassifying",
				zap.Int("round", round),
				zap.Int("pairs", len(pending)),
			)
		}
	}

	res := &Result{Method: c.method}
	var continued []domain.Pair
	usedOld := make(map[string]string, len(pairs))
	for _, d := range decisions {
		outs, cont := c.finalize(reg, old, cur, d, usedOld)
		res.Elements = append(res.Elements, outs...)
		if cont {
			continued = append(continued, d.pair)
		}
	}

	res.Junctions = c.reconcileJunctions(reg, old, cur, continued)

	c.logger.Info("compared snapshots",
		zap.String("method", string(c.method)),
		zap.Int("pairs", len(pairs)),
		zap.Int("element_outcomes", len(res.Elements)),
		zap.Int("junction_outcomes", len(res.Junctions)),
		zap.Int("failed", len(res.Failed())),
	)
	return res, nil
}

// classify decides the pairs at the given indexes in parallel
func (c *Comparator) classify(ctx context.Context, old, cur *topology.Network, pairs []domain.Pair, idx []int, ids *identities, decisions []decision) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for _, i := range idx {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			decisions[i] = c.decide(old, cur, pairs[i], ids)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to classify elements: %w", err)
	}
	return ctx.Err()
}

// propagate records the new elements whose continuity broke so neighbors see
// them as new, and returns the continuing pairs that must be decided again.
// The broken set only grows, so repeated rounds reach a fixpoint. Only the
// topological method looks at neighbors.
func (c *Comparator) propagate(ids *identities, decisions []decision) []int {
	if c.method != domain.MethodTopological {
		return nil
	}
	grew := false
	for _, d := range decisions {
		if d.broken && d.pair.Matched() && !ids.broken[d.pair.New] {
			ids.broken[d.pair.New] = true
			grew = true
		}
	}
	if !grew {
		return nil
	}
	var again []int
	for i, d := range decisions {
		if d.pair.Matched() && !d.broken && d.err == nil {
			again = append(again, i)
		}
	}
	return again
}

// complete checks pair keys and appends a one-sided pair for every element no
// pair mentions
func complete(old, cur *topology.Network, pairs []domain.Pair) ([]domain.Pair, error) {
	out := make([]domain.Pair, 0, len(pairs))
	seenOld := make(map[string]bool)
	seenNew := make(map[string]bool)
	for _, p := range pairs {
		if p.Empty() {
			return nil, errors.New("empty pair")
		}
		if p.Old != "" {
			if _, ok := old.Element(p.Old); !ok {
				return nil, fmt.Errorf("pair references unknown old element %s", p.Old)
			}
			seenOld[p.Old] = true
		}
		if p.New != "" {
			if _, ok := cur.Element(p.New); !ok {
				return nil, fmt.Errorf("pair references unknown new element %s", p.New)
			}
			seenNew[p.New] = true
		}
		out = append(out, p)
	}
	for _, e := range cur.Elements() {
		if !seenNew[e.Key] {
			out = append(out, domain.Pair{New: e.Key})
		}
	}
	for _, e := range old.Elements() {
		if !seenOld[e.Key] {
			out = append(out, domain.Pair{Old: e.Key})
		}
	}
	return out, nil
}

// decide classifies one pair without touching shared state
func (c *Comparator) decide(old, cur *topology.Network, p domain.Pair, ids *identities) decision {
	d := decision{pair: p}
	switch {
	case p.New == "":
		d.effect = domain.EffectRetirement
		d.reason = "no corresponding new element"
		return d
	case p.Old == "":
		d.effect = domain.EffectAddition
		d.reason = "no corresponding old element"
		return d
	}

	oldE, _ := old.Element(p.Old)
	newE, _ := cur.Element(p.New)

	if oldE.Geometry.EqualWithin(newE.Geometry, c.tolerance) {
		if domain.AttributesEqual(oldE.Attributes, newE.Attributes) {
			d.effect = domain.EffectConfirmation
		} else {
			d.effect = domain.EffectDescriptiveModification
		}
	} else {
		d.effect = domain.EffectGeometricModification
		ok, reason, err := c.continuous(old, cur, p, ids)
		if err != nil {
			d.err = err
			return d
		}
		if !ok {
			d.broken = true
			d.reason = reason
			return d
		}
	}

	if oldE.Segmented() || newE.Segmented() {
		newSegs := segment.Of(newE)
		raw := segment.ClassifySegments(oldE.Geometry, newE.Geometry, segment.Of(oldE), newSegs, c.tolerance)
		resolved, err := segment.Resolve(raw)
		if err != nil {
			d.err = fmt.Errorf("element %s: %w", p.New, err)
			return d
		}
		d.effect = segment.Max(d.effect, resolved)
		if newE.Segmented() {
			d.segments = raw[:len(newSegs)]
		}
		if d.effect == domain.EffectAddition {
			d.broken = true
			d.reason = "segment added"
		}
	}
	return d
}

// continuous applies the comparison method to a pair whose geometry changed
func (c *Comparator) continuous(old, cur *topology.Network, p domain.Pair, ids *identities) (bool, string, error) {
	switch c.method {
	case domain.MethodVertex:
		return false, "vertices changed", nil

	case domain.MethodJunction:
		of, ot, err := old.JunctionsOf(p.Old)
		if err != nil {
			return false, "", err
		}
		nf, nt, err := cur.JunctionsOf(p.New)
		if err != nil {
			return false, "", err
		}
		same := (topology.SamePosition(of, nf, c.tolerance) && topology.SamePosition(ot, nt, c.tolerance)) ||
			(topology.SamePosition(of, nt, c.tolerance) && topology.SamePosition(ot, nf, c.tolerance))
		if !same {
			return false, "bounding junction moved", nil
		}
		return true, "", nil

	case domain.MethodTopological:
		before, err := old.LinkSignature(p.Old, ids.old)
		if err == nil {
			var after topology.Signature
			after, err = cur.LinkSignature(p.New, ids.cur)
			if err == nil {
				if before != after {
					return false, "neighbors changed", nil
				}
				return true, "", nil
			}
		}
		if errors.Is(err, domain.ErrAmbiguousCorrespondence) {
			c.logger.Warn("ambiguous correspondence, treating as retirement and addition",
				zap.String("old", p.Old),
				zap.String("new", p.New),
				zap.Error(err),
			)
			return false, err.Error(), nil
		}
		return false, "", err
	}
	return false, "", fmt.Errorf("unknown comparison method %q", c.method)
}

// finalize binds NIDs for one decision. It reports whether the pair carried
// its NID forward.
func (c *Comparator) finalize(reg *registry.Registry, old, cur *topology.Network, d decision, usedOld map[string]string) ([]Outcome, bool) {
	p := d.pair
	base := Outcome{Kind: domain.KindElement, OldKey: p.Old, NewKey: p.New, Effect: d.effect, Reason: d.reason}

	var oldNID domain.NID
	if p.Old != "" {
		oldNID, _ = reg.Lookup(elementSlot(p.Old))
		base.NID = oldNID
		if prev, dup := usedOld[p.Old]; dup {
			base.Err = &domain.ConflictError{NID: oldNID, Key: p.New, Existing: prev}
			return []Outcome{base}, false
		}
		usedOld[p.Old] = p.New
	}

	if d.err != nil {
		base.Err = d.err
		return []Outcome{base}, false
	}

	switch {
	case p.Old == "":
		return []Outcome{c.add(reg, cur, p.New, d.reason, d.segments)}, false

	case p.New == "":
		return []Outcome{base}, false

	case d.broken:
		c.logger.Debug("continuity broken",
			zap.String("old", p.Old),
			zap.String("new", p.New),
			zap.String("reason", d.reason),
		)
		retired := base
		retired.NewKey = ""
		retired.Effect = domain.EffectRetirement
		added := c.add(reg, cur, p.New, d.reason, d.segments)
		added.OldKey = p.Old
		return []Outcome{retired, added}, false
	}

	if err := reg.Bind(oldNID, elementSlot(p.New)); err != nil {
		base.Err = err
		return []Outcome{base}, false
	}
	base.Segments = d.segments
	base.State = elementState(cur, p.New, oldNID)
	return []Outcome{base}, true
}

func (c *Comparator) add(reg *registry.Registry, cur *topology.Network, key, reason string, segs []domain.Effect) Outcome {
	nid := reg.Issue()
	o := Outcome{
		Kind:   domain.KindElement,
		NewKey: key,
		NID:    nid,
		Effect: domain.EffectAddition,
		Reason: reason,
	}
	if err := reg.Bind(nid, elementSlot(key)); err != nil {
		o.Err = err
		return o
	}
	if len(segs) > 0 {
		o.Segments = make([]domain.Effect, len(segs))
		for i := range o.Segments {
			o.Segments[i] = domain.EffectAddition
		}
	}
	o.State = elementState(cur, key, nid)
	return o
}

func elementState(n *topology.Network, key string, nid domain.NID) *domain.Feature {
	e, ok := n.Element(key)
	if !ok {
		return nil
	}
	f := e.Feature()
	f.NID = nid
	return &f
}

// Registry slots keep element and junction keys apart
func elementSlot(key string) string  { return "element/" + key }
func junctionSlot(key string) string { return "junction/" + key }

// identities resolves the neighbor identities used by link signatures. On the
// old side a neighbor is its NID. On the new side it is the NID of the old
// element it is paired with, or a value no NID can equal when it is unpaired
// or its continuity broke. A new element paired with more than one old
// element has no identity.
type identities struct {
	oldNet    *topology.Network
	paired    map[string]string
	ambiguous map[string]bool
	broken    map[string]bool
}

func newIdentities(old *topology.Network, pairs []domain.Pair) *identities {
	ids := &identities{
		oldNet:    old,
		paired:    make(map[string]string, len(pairs)),
		ambiguous: make(map[string]bool),
		broken:    make(map[string]bool),
	}
	for _, p := range pairs {
		if !p.Matched() {
			continue
		}
		if prev, dup := ids.paired[p.New]; dup && prev != p.Old {
			ids.ambiguous[p.New] = true
			continue
		}
		ids.paired[p.New] = p.Old
	}
	return ids
}

func (ids *identities) old(key string) (string, bool) {
	e, ok := ids.oldNet.Element(key)
	if !ok || e.NID == "" {
		return "", false
	}
	return string(e.NID), true
}

func (ids *identities) cur(key string) (string, bool) {
	if ids.ambiguous[key] {
		return "", false
	}
	if ids.broken[key] {
		return "+" + key, true
	}
	if oldKey, ok := ids.paired[key]; ok {
		if nid, ok := ids.old(oldKey); ok {
			return nid, true
		}
	}
	return "+" + key, true
}
