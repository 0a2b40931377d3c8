package kmeans

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Unassigned marks a point that has not been through an assignment phase yet.
const Unassigned = -1

var (
	// ErrInvalidInput is returned by Load for empty or non-finite input.
	ErrInvalidInput = errors.New("kmeans: invalid input")
	// ErrNotLoaded is returned by Step before a successful Load.
	ErrNotLoaded = errors.New("kmeans: engine not loaded")
)

// Point is a 2D observation and the index of the centroid it belongs to.
type Point struct {
	X       float64
	Y       float64
	Cluster int
}

// Centroid is a cluster centre.
type Centroid struct {
	X float64
	Y float64
}

// Snapshot is a deep copy of the engine state at a given iteration.
type Snapshot struct {
	Iteration int
	Points    []Point
	Centroids []Centroid
}

// Clone returns a copy that shares no memory with s.
func (s Snapshot) Clone() Snapshot {
	return Snapshot{
		Iteration: s.Iteration,
		Points:    append([]Point(nil), s.Points...),
		Centroids: append([]Centroid(nil), s.Centroids...),
	}
}

// Sizes returns the number of points assigned to each centroid.
func (s Snapshot) Sizes() []int {
	return clusterSizes(s.Points, len(s.Centroids))
}

// Engine runs K-Means one iteration at a time and keeps a snapshot per
// iteration so a step can be undone.
//
// An Engine is not safe for concurrent use. Callers must serialize Step and
// StepBack; accessors return copies.
type Engine struct {
	points    []Point
	centroids []Centroid
	history   []Snapshot
	iteration int
	converged bool
	loaded    bool
}

// NewEngine returns an empty engine. Call Load before stepping.
func NewEngine() *Engine {
	return &Engine{iteration: 1}
}

// Load replaces the engine state with the given points and centroids,
// clears the history and records the initial snapshot. Every point starts
// unassigned. On error the previous state is kept.
func (e *Engine) Load(points []Point, centroids []Centroid) error {
	if len(points) == 0 {
		return fmt.Errorf("%w: no points", ErrInvalidInput)
	}
	if len(centroids) == 0 {
		return fmt.Errorf("%w: no centroids", ErrInvalidInput)
	}
	for i, p := range points {
		if !finite(p.X) || !finite(p.Y) {
			return fmt.Errorf("%w: point %d has non-finite coordinates (%v, %v)", ErrInvalidInput, i, p.X, p.Y)
		}
	}
	for i, c := range centroids {
		if !finite(c.X) || !finite(c.Y) {
			return fmt.Errorf("%w: centroid %d has non-finite coordinates (%v, %v)", ErrInvalidInput, i, c.X, c.Y)
		}
	}

	e.points = make([]Point, len(points))
	for i, p := range points {
		e.points[i] = Point{X: p.X, Y: p.Y, Cluster: Unassigned}
	}
	e.centroids = append([]Centroid(nil), centroids...)
	e.iteration = 1
	e.converged = false
	e.loaded = true
	e.history = []Snapshot{e.snapshot()}
	return nil
}

// Step runs one assignment and update pass and reports whether any point
// changed cluster. The pre-step state is appended to the history first.
func (e *Engine) Step() (bool, error) {
	if !e.loaded {
		return false, ErrNotLoaded
	}
	e.history = append(e.history, e.snapshot())

	// Assign points to nearest centroid
	next := make([]Point, len(e.points))
	changed := false
	pt, ct := make([]float64, 2), make([]float64, 2)
	for i, p := range e.points {
		c := nearestCentroid(p, e.centroids, pt, ct)
		if c != p.Cluster {
			changed = true
		}
		p.Cluster = c
		next[i] = p
	}

	centroids := recomputeCentroids(next, e.centroids)

	e.points = next
	e.centroids = centroids
	e.iteration++
	e.converged = !changed
	return changed, nil
}

// StepBack restores the state from before the most recent Step. It returns
// false without touching anything when the engine is at its first
// iteration.
func (e *Engine) StepBack() bool {
	if !e.loaded || e.iteration <= 1 || len(e.history) < e.iteration {
		return false
	}
	prev := e.history[e.iteration-1].Clone()
	e.history = e.history[:e.iteration-1]
	e.points = prev.Points
	e.centroids = prev.Centroids
	e.iteration--
	e.converged = false
	return true
}

// Converged reports whether the last Step changed no assignment.
func (e *Engine) Converged() bool { return e.converged }

// Loaded reports whether Load has succeeded at least once.
func (e *Engine) Loaded() bool { return e.loaded }

// Iteration returns the current iteration number, starting at 1.
func (e *Engine) Iteration() int { return e.iteration }

// HistoryLen returns the number of recorded snapshots.
func (e *Engine) HistoryLen() int { return len(e.history) }

// Points returns a copy of the points with their assigned clusters.
func (e *Engine) Points() []Point {
	return append([]Point(nil), e.points...)
}

// Centroids returns a copy of the current centroids.
func (e *Engine) Centroids() []Centroid {
	return append([]Centroid(nil), e.centroids...)
}

// Sizes returns the member count of each centroid.
func (e *Engine) Sizes() []int {
	return clusterSizes(e.points, len(e.centroids))
}

// Snapshot returns a copy of the current state.
func (e *Engine) Snapshot() Snapshot {
	return e.snapshot()
}

// History returns copies of the recorded snapshots. Entry 0 is the state
// right after Load; entry i is the state captured before step i.
func (e *Engine) History() []Snapshot {
	out := make([]Snapshot, len(e.history))
	for i, s := range e.history {
		out[i] = s.Clone()
	}
	return out
}

// Timeline returns the state shown at every iteration from 1 up to the
// current one, in order.
func (e *Engine) Timeline() []Snapshot {
	if !e.loaded {
		return nil
	}
	out := make([]Snapshot, 0, e.iteration)
	for _, s := range e.history[1:] {
		out = append(out, s.Clone())
	}
	return append(out, e.snapshot())
}

func (e *Engine) snapshot() Snapshot {
	return Snapshot{
		Iteration: e.iteration,
		Points:    append([]Point(nil), e.points...),
		Centroids: append([]Centroid(nil), e.centroids...),
	}
}

// Distance returns the Euclidean distance between a point and a centroid.
func Distance(p Point, c Centroid) float64 {
	return floats.Distance([]float64{p.X, p.Y}, []float64{c.X, c.Y}, 2)
}

// nearestCentroid picks the closest centroid. Ties go to the lower index.
// pt and ct are two-element scratch buffers reused across calls.
func nearestCentroid(p Point, centroids []Centroid, pt, ct []float64) int {
	pt[0], pt[1] = p.X, p.Y
	best := Unassigned
	minDist := math.MaxFloat64
	for i, c := range centroids {
		ct[0], ct[1] = c.X, c.Y
		d := floats.Distance(pt, ct, 2)
		if d < minDist || best == Unassigned {
			minDist = d
			best = i
		}
	}
	return best
}

// recomputeCentroids moves each centroid to the mean of its members. A
// centroid with no members keeps its position. The mean is kept as a
// running average of scaled terms so it never leaves the range of its
// members, even near math.MaxFloat64.
func recomputeCentroids(points []Point, centroids []Centroid) []Centroid {
	means := make([]Centroid, len(centroids))
	counts := make([]int, len(centroids))
	for _, p := range points {
		if p.Cluster == Unassigned {
			continue
		}
		counts[p.Cluster]++
		n := float64(counts[p.Cluster])
		m := &means[p.Cluster]
		m.X += p.X/n - m.X/n
		m.Y += p.Y/n - m.Y/n
	}

	out := append([]Centroid(nil), centroids...)
	for i := range out {
		if counts[i] > 0 {
			out[i] = means[i]
		}
	}
	return out
}

func clusterSizes(points []Point, k int) []int {
	sizes := make([]int, k)
	for _, p := range points {
		if p.Cluster >= 0 && p.Cluster < k {
			sizes[p.Cluster]++
		}
	}
	return sizes
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
