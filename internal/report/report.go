// Package report formats clustering state for people and for tools. Cluster
// and element numbers are 1-based in all output.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"kmviz/internal/driver"
	"kmviz/internal/kmeans"
)

// IterationResult is the JSON form of one snapshot.
type IterationResult struct {
	Iteration int              `json:"iteration"`
	Centroids []CentroidResult `json:"centroids"`
	Points    []PointResult    `json:"points"`
}

// CentroidResult is a centroid position and its member count.
type CentroidResult struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Size int     `json:"size"`
}

// PointResult is a point and its 1-based cluster, 0 when unassigned.
type PointResult struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Cluster int     `json:"cluster"`
}

// Result converts a snapshot to its JSON form.
func Result(s kmeans.Snapshot) IterationResult {
	sizes := s.Sizes()
	res := IterationResult{
		Iteration: s.Iteration,
		Centroids: make([]CentroidResult, len(s.Centroids)),
		Points:    make([]PointResult, len(s.Points)),
	}
	for i, c := range s.Centroids {
		res.Centroids[i] = CentroidResult{X: c.X, Y: c.Y, Size: sizes[i]}
	}
	for i, p := range s.Points {
		res.Points[i] = PointResult{X: p.X, Y: p.Y, Cluster: p.Cluster + 1}
	}
	return res
}

// WriteJSON writes the snapshots as an indented JSON array.
func WriteJSON(w io.Writer, snaps []kmeans.Snapshot) error {
	results := make([]IterationResult, len(snaps))
	for i, s := range snaps {
		results[i] = Result(s)
	}
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshaling results: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// WriteText dumps every centroid with its member count and every point with
// its cluster.
func WriteText(w io.Writer, s kmeans.Snapshot) error {
	sizes := s.Sizes()
	if _, err := fmt.Fprintf(w, "Iteration %d\n", s.Iteration); err != nil {
		return err
	}
	for i, c := range s.Centroids {
		if _, err := fmt.Fprintf(w, "  Centroid %d: (%.3f, %.3f) members=%d\n", i+1, c.X, c.Y, sizes[i]); err != nil {
			return err
		}
	}
	for i, p := range s.Points {
		if _, err := fmt.Fprintf(w, "  Point %d: (%.3f, %.3f) -> cluster %s\n", i+1, p.X, p.Y, clusterLabel(p.Cluster)); err != nil {
			return err
		}
	}
	return nil
}

func clusterLabel(c int) string {
	if c == kmeans.Unassigned {
		return "-"
	}
	return strconv.Itoa(c + 1)
}

// TextObserver prints every frame it receives. Write errors are kept and
// returned by Err; once one occurs later frames are dropped.
type TextObserver struct {
	w   io.Writer
	err error
}

// NewTextObserver returns an observer writing to w.
func NewTextObserver(w io.Writer) *TextObserver {
	return &TextObserver{w: w}
}

// Observe implements driver.Observer.
func (o *TextObserver) Observe(f driver.Frame) {
	if o.err != nil {
		return
	}
	status := "changed"
	switch {
	case f.Event == driver.EventStart:
		status = "loaded"
	case f.Event == driver.EventStepBack:
		status = "stepped back"
	case f.Converged:
		status = "converged"
	}
	if _, err := fmt.Fprintf(o.w, "-- %s\n", status); err != nil {
		o.err = err
		return
	}
	o.err = WriteText(o.w, f.Snapshot)
}

// Err returns the first write error.
func (o *TextObserver) Err() error { return o.err }

var _ driver.Observer = (*TextObserver)(nil)
