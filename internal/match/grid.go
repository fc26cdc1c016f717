package match

import (
	"math"
	"sort"

	"nvdiff/internal/domain"
)

type box struct {
	minX, minY, maxX, maxY float64
}

func bounds(l domain.LineString) box {
	b := box{math.Inf(1), math.Inf(1), math.Inf(-1), math.Inf(-1)}
	for _, p := range l {
		b.minX = math.Min(b.minX, p.X)
		b.minY = math.Min(b.minY, p.Y)
		b.maxX = math.Max(b.maxX, p.X)
		b.maxY = math.Max(b.maxY, p.Y)
	}
	return b
}

func (b box) expand(d float64) box {
	return box{b.minX - d, b.minY - d, b.maxX + d, b.maxY + d}
}

type cellKey struct {
	x, y int64
}

// gridIndex buckets bounding boxes into square cells
type gridIndex struct {
	size  float64
	cells map[cellKey][]int
}

func newGridIndex(size float64) *gridIndex {
	return &gridIndex{size: size, cells: make(map[cellKey][]int)}
}

func (g *gridIndex) span(b box) (x0, y0, x1, y1 int64) {
	return int64(math.Floor(b.minX / g.size)), int64(math.Floor(b.minY / g.size)),
		int64(math.Floor(b.maxX / g.size)), int64(math.Floor(b.maxY / g.size))
}

func (g *gridIndex) insert(id int, b box) {
	x0, y0, x1, y1 := g.span(b)
	for x := x0; x <= x1; x++ {
		for y := y0; y <= y1; y++ {
			k := cellKey{x, y}
			g.cells[k] = append(g.cells[k], id)
		}
	}
}

// query returns the ids whose cells intersect b, in ascending order
func (g *gridIndex) query(b box) []int {
	seen := make(map[int]struct{})
	x0, y0, x1, y1 := g.span(b)
	for x := x0; x <= x1; x++ {
		for y := y0; y <= y1; y++ {
			for _, id := range g.cells[cellKey{x, y}] {
				seen[id] = struct{}{}
			}
		}
	}
	out := make([]int, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}
