package cluster

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// kmeans runs e.Restarts seeded k-means++ initialisations over the rows of x and keeps the lowest inertia.
//
// One random source is shared by every restart so the sequence of initialisations is fixed by e.Seed.
func (e *Engine) kmeans(x *mat.Dense, k int) ([]int, float64) {
	restarts := max(e.Restarts, 1)
	maxIter := max(e.MaxIter, 1)
	rng := rand.New(rand.NewSource(e.Seed))
	tol := e.Tol * meanVariance(x)

	var (
		best        []int
		bestInertia = math.Inf(1)
	)
	for range restarts {
		labels, inertia := lloyd(x, seedCenters(x, k, rng), maxIter, tol)
		if inertia < bestInertia {
			best, bestInertia = labels, inertia
		}
	}
	return best, bestInertia
}

func meanVariance(x *mat.Dense) float64 {
	n, d := x.Dims()
	if n < 2 {
		return 0
	}
	col := make([]float64, n)
	var sum float64
	for j := range d {
		mat.Col(col, j, x)
		sum += stat.Variance(col, nil)
	}
	return sum / float64(d)
}

func sqDist(a, b []float64) float64 {
	d := floats.Distance(a, b, 2)
	return d * d
}

// seedCenters picks k initial centers with k-means++: each next center is drawn with probability proportional to
// its squared distance from the closest center chosen so far.
func seedCenters(x *mat.Dense, k int, rng *rand.Rand) *mat.Dense {
	n, d := x.Dims()
	centers := mat.NewDense(k, d, nil)
	centers.SetRow(0, x.RawRowView(rng.Intn(n)))

	closest := make([]float64, n)
	for i := range n {
		closest[i] = sqDist(x.RawRowView(i), centers.RawRowView(0))
	}

	for c := 1; c < k; c++ {
		total := floats.Sum(closest)
		pick := -1
		if total > 0 {
			target := rng.Float64() * total
			var cum float64
			for i, w := range closest {
				cum += w
				if w > 0 && cum > target {
					pick = i
					break
				}
			}
		}
		if pick < 0 {
			pick = rng.Intn(n)
		}

		centers.SetRow(c, x.RawRowView(pick))
		for i := range n {
			closest[i] = math.Min(closest[i], sqDist(x.RawRowView(i), centers.RawRowView(c)))
		}
	}
	return centers
}

// lloyd relocates points until the total squared center shift drops to tol or maxIter is reached.
func lloyd(x *mat.Dense, centers *mat.Dense, maxIter int, tol float64) ([]int, float64) {
	n, _ := x.Dims()
	k, _ := centers.Dims()
	labels := make([]int, n)
	prev := mat.DenseCopyOf(centers)

	for range maxIter {
		assign(x, centers, labels)
		repairEmpty(x, centers, labels, k)
		updateCenters(x, centers, labels)

		var shift float64
		for c := range k {
			shift += sqDist(prev.RawRowView(c), centers.RawRowView(c))
		}
		if shift <= tol {
			break
		}
		prev.Copy(centers)
	}

	assign(x, centers, labels)
	repairEmpty(x, centers, labels, k)

	var inertia float64
	for i, l := range labels {
		inertia += sqDist(x.RawRowView(i), centers.RawRowView(l))
	}
	return labels, inertia
}

// assign labels each point with its nearest center; ties go to the lowest center index.
func assign(x, centers *mat.Dense, labels []int) {
	k, _ := centers.Dims()
	for i := range labels {
		row := x.RawRowView(i)
		best, bestDist := 0, math.Inf(1)
		for c := range k {
			if d := sqDist(row, centers.RawRowView(c)); d < bestDist {
				best, bestDist = c, d
			}
		}
		labels[i] = best
	}
}

// repairEmpty moves, for every empty cluster, the point farthest from its own center (taken from a cluster with
// more than one member) into the empty cluster and recenters it on that point.
func repairEmpty(x, centers *mat.Dense, labels []int, k int) {
	counts := make([]int, k)
	for _, l := range labels {
		counts[l]++
	}

	for c := range k {
		if counts[c] > 0 {
			continue
		}
		far, farDist := -1, -1.0
		for i, l := range labels {
			if counts[l] < 2 {
				continue
			}
			if d := sqDist(x.RawRowView(i), centers.RawRowView(l)); d > farDist {
				far, farDist = i, d
			}
		}
		if far < 0 {
			return
		}
		counts[labels[far]]--
		labels[far] = c
		counts[c]++
		centers.SetRow(c, x.RawRowView(far))
	}
}

func updateCenters(x, centers *mat.Dense, labels []int) {
	k, d := centers.Dims()
	sums := mat.NewDense(k, d, nil)
	counts := make([]float64, k)
	for i, l := range labels {
		floats.Add(sums.RawRowView(l), x.RawRowView(i))
		counts[l]++
	}
	for c := range k {
		if counts[c] == 0 {
			continue
		}
		row := sums.RawRowView(c)
		floats.Scale(1/counts[c], row)
		centers.SetRow(c, row)
	}
}
