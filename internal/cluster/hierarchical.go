package cluster

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Merge is one row of a linkage matrix.
//
// A and B are cluster ids: ids below n are input rows and id n+i is the cluster formed by the i-th merge.
// Height is the linkage distance at which they merged and Size the number of rows in the result.
type Merge struct {
	A      int
	B      int
	Height float64
	Size   int
}

// condensed stores the upper triangle of a symmetric n×n distance matrix.
type condensed struct {
	n int
	d []float64
}

func (c *condensed) index(i, j int) int {
	if i > j {
		i, j = j, i
	}
	return c.n*i - i*(i+1)/2 + (j - i - 1)
}

func (c *condensed) at(i, j int) float64     { return c.d[c.index(i, j)] }
func (c *condensed) set(i, j int, v float64) { c.d[c.index(i, j)] = v }

// pairwise computes Euclidean distances between all rows of x. Ward linkage works on squared distances.
func pairwise(x *mat.Dense, squared bool) *condensed {
	n, _ := x.Dims()
	c := &condensed{n: n, d: make([]float64, n*(n-1)/2)}
	for i := range n {
		for j := i + 1; j < n; j++ {
			d := floats.Distance(x.RawRowView(i), x.RawRowView(j), 2)
			if squared {
				d *= d
			}
			c.set(i, j, d)
		}
	}
	return c
}

// BuildLinkage computes the full merge history of the rows of x with the nearest-neighbour chain algorithm.
//
// The returned n-1 merges are sorted by height (stable) and use the scipy numbering convention.
func BuildLinkage(x *mat.Dense, linkage Linkage) []Merge {
	n, _ := x.Dims()
	if n < 2 {
		return nil
	}

	ward := linkage != Average
	dist := pairwise(x, ward)
	size := make([]int, n)
	for i := range size {
		size[i] = 1
	}

	raw := make([]Merge, 0, n-1)
	chain := make([]int, 0, n)
	for range n - 1 {
		if len(chain) == 0 {
			for i, s := range size {
				if s > 0 {
					chain = append(chain, i)
					break
				}
			}
		}

		var a, b int
		var current float64
		for {
			a = chain[len(chain)-1]
			b = -1
			current = math.Inf(1)
			if len(chain) > 1 {
				b = chain[len(chain)-2]
				current = dist.at(a, b)
			}
			for i, s := range size {
				if s == 0 || i == a {
					continue
				}
				if d := dist.at(a, i); d < current {
					current, b = d, i
				}
			}
			if len(chain) > 1 && b == chain[len(chain)-2] {
				break
			}
			chain = append(chain, b)
		}
		chain = chain[:len(chain)-2]

		if a > b {
			a, b = b, a
		}
		na, nb := size[a], size[b]
		raw = append(raw, Merge{A: a, B: b, Height: current, Size: na + nb})

		size[a] = 0
		size[b] = na + nb
		for i, ni := range size {
			if ni == 0 || i == b {
				continue
			}
			dist.set(i, b, update(ward, dist.at(i, a), dist.at(i, b), current, na, nb, ni))
		}
	}

	sort.SliceStable(raw, func(i, j int) bool { return raw[i].Height < raw[j].Height })
	return relabel(raw, n, ward)
}

// update is the Lance-Williams recurrence for the distance between cluster i and the union of x and y.
func update(ward bool, dxi, dyi, dxy float64, nx, ny, ni int) float64 {
	fx, fy, fi := float64(nx), float64(ny), float64(ni)
	if ward {
		return ((fi+fx)*dxi + (fi+fy)*dyi - fi*dxy) / (fi + fx + fy)
	}
	return (fx*dxi + fy*dyi) / (fx + fy)
}

// relabel rewrites merges that reference surviving row slots into linkage cluster ids.
func relabel(raw []Merge, n int, ward bool) []Merge {
	uf := newUnionFind(2*n - 1)
	out := make([]Merge, len(raw))
	for i, m := range raw {
		a, b := uf.find(m.A), uf.find(m.B)
		if a > b {
			a, b = b, a
		}
		height := m.Height
		if ward {
			height = math.Sqrt(math.Max(height, 0))
		}
		out[i] = Merge{A: a, B: b, Height: height, Size: m.Size}
		uf.parent[a] = n + i
		uf.parent[b] = n + i
	}
	return out
}

// CutTree applies the first n-k merges and labels the resulting flat clusters 0..k-1 by first appearance in row
// order.
func CutTree(merges []Merge, n, k int) []int {
	k = max(min(k, n), 1)
	uf := newUnionFind(n)
	rep := make([]int, n+len(merges))
	for i := range n {
		rep[i] = i
	}

	for i, m := range merges[:min(n-k, len(merges))] {
		ra, rb := rep[m.A], rep[m.B]
		uf.union(ra, rb)
		rep[n+i] = ra
	}

	labels := make([]int, n)
	seen := make(map[int]int, k)
	for i := range n {
		root := uf.find(i)
		l, ok := seen[root]
		if !ok {
			l = len(seen)
			seen[root] = l
		}
		labels[i] = l
	}
	return labels
}

type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	return &unionFind{parent: parent}
}

func (u *unionFind) find(i int) int {
	for u.parent[i] != i {
		u.parent[i] = u.parent[u.parent[i]]
		i = u.parent[i]
	}
	return i
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u.parent[rb] = ra
	}
}
