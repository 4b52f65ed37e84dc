// Package cluster partitions a normalized [models.FeatureMatrix] into k groups.
//
// Two algorithm families are supported:
//   - [KMeans]: k-means++ seeded Lloyd iterations with restarts. The random source is seeded with [Seed] so
//     identical input always produces identical labels.
//   - [Agglomerative]: a full hierarchical linkage built with the nearest-neighbour chain algorithm, cut to
//     exactly k flat clusters. Memory and time grow quadratically with the number of rows; this is the
//     cost-dominant path for large libraries.
//
// The engine never sees track identities. Labels are returned in matrix row order.
package cluster

import (
	"fmt"
	"strings"

	"github.com/desertthunder/radial/internal/models"
	"github.com/desertthunder/radial/internal/shared"
)

// Seed is the fixed random seed of the k-means path.
const Seed int64 = 420

// Algorithm names a clustering family.
type Algorithm string

const (
	KMeans        Algorithm = "kmeans"
	Agglomerative Algorithm = "agglomerative hierarchical"
)

// Algorithms lists the recognized algorithm names.
var Algorithms = []Algorithm{KMeans, Agglomerative}

// ParseAlgorithm matches name case-insensitively against the recognized algorithms.
//
// Anything else, including surrounding whitespace, fails with [shared.ErrUnsupportedAlgorithm].
func ParseAlgorithm(name string) (Algorithm, error) {
	switch a := Algorithm(strings.ToLower(name)); a {
	case KMeans, Agglomerative:
		return a, nil
	default:
		return "", fmt.Errorf("%w: %q (expected %q or %q)", shared.ErrUnsupportedAlgorithm, name, KMeans, Agglomerative)
	}
}

// Title renders the algorithm for display, e.g. "Kmeans".
func (a Algorithm) Title() string { return shared.TitleCase(string(a)) }

// Linkage selects how the agglomerative path measures distance between clusters.
type Linkage string

const (
	Ward    Linkage = "ward"
	Average Linkage = "average"
)

// ParseLinkage resolves a configured linkage name, defaulting to [Ward] when empty.
func ParseLinkage(name string) (Linkage, error) {
	switch l := Linkage(strings.ToLower(strings.TrimSpace(name))); l {
	case "":
		return Ward, nil
	case Ward, Average:
		return l, nil
	default:
		return "", fmt.Errorf("%w: unknown linkage %q", shared.ErrInvalidArgument, name)
	}
}

// Engine runs a clustering algorithm over a feature matrix.
type Engine struct {
	Linkage  Linkage // agglomerative merge criterion
	Seed     int64   // k-means random seed
	Restarts int     // k-means initialisations, best inertia wins
	MaxIter  int     // k-means Lloyd iterations per restart
	Tol      float64 // k-means convergence tolerance, relative to mean feature variance
}

// NewEngine returns an [Engine] with the default k-means parameters and the given linkage.
func NewEngine(linkage Linkage) *Engine {
	if linkage == "" {
		linkage = Ward
	}
	return &Engine{
		Linkage:  linkage,
		Seed:     Seed,
		Restarts: 10,
		MaxIter:  300,
		Tol:      1e-4,
	}
}

// Cluster labels every row of m with a cluster id in [0, k).
//
// Fails with [shared.ErrUnsupportedAlgorithm] for an unknown algorithm, [shared.ErrInvalidClusterCount] for k < 2
// and [shared.ErrInsufficientData] when m has fewer rows than k.
func (e *Engine) Cluster(algorithm string, k int, m *models.FeatureMatrix) ([]models.ClusterID, error) {
	alg, err := ParseAlgorithm(algorithm)
	if err != nil {
		return nil, err
	}
	if k < 2 {
		return nil, fmt.Errorf("%w: k must be at least 2, got %d", shared.ErrInvalidClusterCount, k)
	}
	if n := m.Rows(); n < k {
		return nil, fmt.Errorf("%w: %d tracks cannot form %d clusters", shared.ErrInsufficientData, n, k)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}

	var labels []int
	switch alg {
	case KMeans:
		labels, _ = e.kmeans(m.Data, k)
	case Agglomerative:
		linkage := e.Linkage
		if linkage == "" {
			linkage = Ward
		}
		labels = CutTree(BuildLinkage(m.Data, linkage), m.Rows(), k)
	}

	ids := make([]models.ClusterID, len(labels))
	for i, l := range labels {
		ids[i] = models.ClusterID(l)
	}
	return ids, nil
}
