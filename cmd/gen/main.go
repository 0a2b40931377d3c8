package main

import (
	"flag"
	"log"
	"time"

	"kmviz/internal/dataset"
)

func main() {
	def := dataset.DefaultGenerateConfig()

	output := flag.String("output", "data3.txt", "File to write")
	clusters := flag.Int("k", def.Clusters, "Number of clusters and initial centroids")
	perCluster := flag.Int("n", def.PointsPerCluster, "Points per cluster")
	spread := flag.Float64("spread", def.Spread, "Standard deviation of each cluster")
	extent := flag.Float64("extent", def.Extent, "Cluster centers lie within +/- extent")
	seed := flag.Uint64("seed", 0, "Random seed (0 = time based)")

	flag.Parse()

	cfg := dataset.GenerateConfig{
		Clusters:         *clusters,
		PointsPerCluster: *perCluster,
		Spread:           *spread,
		Extent:           *extent,
		Seed:             *seed,
	}
	if cfg.Seed == 0 {
		cfg.Seed = uint64(time.Now().UnixNano())
	}
	if cfg.Clusters <= 0 || cfg.PointsPerCluster <= 0 {
		log.Fatalf("Error: -k and -n must be positive")
	}

	ds := dataset.Generate(cfg)
	if err := dataset.Save(*output, ds); err != nil {
		log.Fatalf("Error writing dataset: %v", err)
	}
	log.Printf("Wrote %d points and %d centroids to %s (seed %d)", len(ds.Points), len(ds.Centroids), *output, cfg.Seed)
}
