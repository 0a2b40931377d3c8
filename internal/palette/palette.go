package palette

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"

	"kmviz/internal/kmeans"
)

var (
	// Unassigned is used for points that have not been through a step yet.
	Unassigned = colorful.Color{R: 1, G: 0, B: 0}
	// Centroid is used for every centroid marker.
	Centroid = colorful.Color{R: 0, G: 0, B: 0}

	base = []colorful.Color{
		{R: 0, G: 1, B: 0},   // green
		{R: 0, G: 0, B: 1},   // blue
		{R: 1, G: 0.5, B: 0}, // orange
	}
)

// goldenAngle spreads generated hues so neighbouring cluster indices differ.
const goldenAngle = 137.50776405

// Color returns the display colour for a cluster index. The first three
// clusters are green, blue and orange; further ones get generated hues.
func Color(cluster int) colorful.Color {
	if cluster == kmeans.Unassigned || cluster < 0 {
		return Unassigned
	}
	if cluster < len(base) {
		return base[cluster]
	}
	// Skip the reds so no cluster looks unassigned
	hue := 40 + math.Mod(float64(cluster-len(base))*goldenAngle, 280)
	return colorful.Hsl(hue, 0.65, 0.45).Clamped()
}

// Hex returns Color(cluster) as "#rrggbb".
func Hex(cluster int) string {
	return Color(cluster).Hex()
}
