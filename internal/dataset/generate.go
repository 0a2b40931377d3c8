package dataset

import (
	"math/rand/v2"

	"kmviz/internal/kmeans"
)

// GenerateConfig describes a synthetic dataset of Gaussian blobs.
type GenerateConfig struct {
	Clusters         int     // number of blobs, also the number of initial centroids
	PointsPerCluster int     // points drawn around each blob centre
	Spread           float64 // standard deviation of each blob
	Extent           float64 // blob centres lie in [-Extent, Extent] x [-0.75*Extent, 0.75*Extent]
	Seed             uint64
}

// DefaultGenerateConfig fits the default -20..20 x -15..15 canvas.
func DefaultGenerateConfig() GenerateConfig {
	return GenerateConfig{
		Clusters:         3,
		PointsPerCluster: 20,
		Spread:           1.5,
		Extent:           15,
		Seed:             1,
	}
}

// Generate draws a dataset from cfg. The initial centroids are distinct
// points picked at random from the generated set. The output is a pure
// function of cfg.
func Generate(cfg GenerateConfig) Dataset {
	if cfg.Clusters <= 0 || cfg.PointsPerCluster <= 0 {
		return Dataset{}
	}
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))

	points := make([]kmeans.Point, 0, cfg.Clusters*cfg.PointsPerCluster)
	for c := 0; c < cfg.Clusters; c++ {
		cx := (rng.Float64()*2 - 1) * cfg.Extent
		cy := (rng.Float64()*2 - 1) * cfg.Extent * 0.75
		for i := 0; i < cfg.PointsPerCluster; i++ {
			points = append(points, kmeans.Point{
				X:       cx + rng.NormFloat64()*cfg.Spread,
				Y:       cy + rng.NormFloat64()*cfg.Spread,
				Cluster: kmeans.Unassigned,
			})
		}
	}

	// Pick initial centres from a shuffled index list
	idx := rng.Perm(len(points))
	centroids := make([]kmeans.Centroid, 0, cfg.Clusters)
	for _, i := range idx[:cfg.Clusters] {
		centroids = append(centroids, kmeans.Centroid{X: points[i].X, Y: points[i].Y})
	}

	return Dataset{Points: points, Centroids: centroids}
}
