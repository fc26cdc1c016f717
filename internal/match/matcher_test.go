package match

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"

	"nvdiff/internal/domain"
)

func el(key string, nid domain.NID, class string, pts ...float64) domain.LinearElement {
	var ls domain.LineString
	for i := 0; i+1 < len(pts); i += 2 {
		ls = append(ls, domain.NewPoint(pts[i], pts[i+1]))
	}
	e := domain.NewLinearElement(key, ls)
	e.NID = nid
	if class != "" {
		e.SetAttribute("roadclass", class)
	}
	return *e
}

var sortPairs = cmpopts.SortSlices(func(a, b domain.Pair) bool {
	if a.Old != b.Old {
		return a.Old < b.Old
	}
	return a.New < b.New
})

func TestMatch(t *testing.T) {
	t.Run("explicit nid", func(t *testing.T) {
		old := []domain.LinearElement{el("o1", "aaaa", "", 0, 0, 1, 0)}
		cur := []domain.LinearElement{el("n1", "aaaa", "", 50, 50, 60, 60)}

		got := New(1e-7, 0, nil).Match(old, cur)
		assert.Equal(t, []domain.Pair{{Old: "o1", New: "n1"}}, got)
	})

	t.Run("identical geometry ignores direction", func(t *testing.T) {
		old := []domain.LinearElement{el("o1", "aaaa", "", 0, 0, 1, 0)}
		cur := []domain.LinearElement{el("n1", "", "", 1, 0, 0, 0)}

		got := New(1e-7, 0, nil).Match(old, cur)
		assert.Equal(t, []domain.Pair{{Old: "o1", New: "n1"}}, got)
	})

	t.Run("proximity within class", func(t *testing.T) {
		old := []domain.LinearElement{
			el("o1", "aaaa", "Local", 0, 0, 10, 0),
			el("o2", "bbbb", "Arterial", 0, 1, 10, 1),
		}
		cur := []domain.LinearElement{
			el("n1", "", "Arterial", 0, 0.2, 10, 0.2),
			el("n2", "", "Local", 0, 0.9, 10, 0.9),
		}

		got := New(1e-7, 2, []string{"roadclass"}).Match(old, cur)
		want := []domain.Pair{{Old: "o1", New: "n2"}, {Old: "o2", New: "n1"}}
		if diff := cmp.Diff(want, got, sortPairs); diff != "" {
			t.Errorf("Match() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("nearest wins", func(t *testing.T) {
		old := []domain.LinearElement{el("o1", "aaaa", "", 0, 0, 10, 0)}
		cur := []domain.LinearElement{
			el("far", "", "", 0, 3, 10, 3),
			el("near", "", "", 0, 1, 10, 1),
		}

		got := New(1e-7, 5, nil).Match(old, cur)
		want := []domain.Pair{{Old: "o1", New: "near"}, {New: "far"}}
		assert.Equal(t, want, got)
	})

	t.Run("unmatched on both sides", func(t *testing.T) {
		old := []domain.LinearElement{el("o1", "aaaa", "", 0, 0, 1, 0)}
		cur := []domain.LinearElement{el("n1", "", "", 100, 100, 101, 100)}

		got := New(1e-7, 5, nil).Match(old, cur)
		assert.Equal(t, []domain.Pair{{New: "n1"}, {Old: "o1"}}, got)
	})

	t.Run("every element appears once", func(t *testing.T) {
		old := []domain.LinearElement{
			el("o1", "aaaa", "", 0, 0, 1, 0),
			el("o2", "bbbb", "", 1, 0, 2, 0),
		}
		cur := []domain.LinearElement{
			el("n1", "", "", 0, 0, 1, 0),
			el("n2", "", "", 0, 0, 1, 0),
			el("n3", "", "", 1, 0, 2, 0.1),
		}

		pairs := New(1e-7, 1, nil).Match(old, cur)
		seenOld := map[string]int{}
		seenNew := map[string]int{}
		for _, p := range pairs {
			if p.Old != "" {
				seenOld[p.Old]++
			}
			if p.New != "" {
				seenNew[p.New]++
			}
		}
		assert.Equal(t, map[string]int{"o1": 1, "o2": 1}, seenOld)
		assert.Equal(t, map[string]int{"n1": 1, "n2": 1, "n3": 1}, seenNew)
	})
}

func TestHausdorff(t *testing.T) {
	a := domain.LineString{{X: 0, Y: 0}, {X: 10, Y: 0}}
	b := domain.LineString{{X: 0, Y: 1}, {X: 5, Y: 3}, {X: 10, Y: 1}}
	assert.InDelta(t, 3.0, hausdorff(a, b), 1e-9)
	assert.InDelta(t, hausdorff(a, b), hausdorff(b, a), 1e-9)
}

func TestGridIndex(t *testing.T) {
	g := newGridIndex(10)
	g.insert(0, box{0, 0, 5, 5})
	g.insert(1, box{100, 100, 105, 105})
	g.insert(2, box{-5, -5, 25, 2})

	assert.Equal(t, []int{0, 2}, g.query(box{1, 1, 2, 2}))
	assert.Equal(t, []int{1}, g.query(box{101, 101, 102, 102}))
	assert.Empty(t, g.query(box{500, 500, 501, 501}))
}
