// Package dataset reads and writes the plain-text point/centroid files the
// visualizer consumes, and generates synthetic ones.
//
// The format is a stream of whitespace-separated numbers:
//
//	N
//	x1 y1
//	...
//	xN yN
//	K
//	cx1 cy1
//	...
//	cxK cyK
package dataset

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"

	"kmviz/internal/kmeans"
)

// maxPrealloc bounds the capacity reserved from an untrusted header count.
const maxPrealloc = 1 << 16

// Dataset holds the points and initial centroids of one run.
type Dataset struct {
	Points    []kmeans.Point
	Centroids []kmeans.Centroid
}

// Open reads a dataset from a file.
func Open(path string) (Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return Dataset{}, fmt.Errorf("error opening dataset: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read parses a dataset. A short or malformed stream is not an error: parsing
// stops at the first token that does not fit and whatever pairs were read so
// far are returned. Only I/O failures are reported.
func Read(r io.Reader) (Dataset, error) {
	var d Dataset
	tr := newTokenReader(r)

	n, ok := tr.count()
	if !ok {
		return d, tr.err()
	}
	d.Points = make([]kmeans.Point, 0, min(n, maxPrealloc))
	for i := 0; i < n; i++ {
		x, y, ok := tr.pair()
		if !ok {
			return d, tr.err()
		}
		d.Points = append(d.Points, kmeans.Point{X: x, Y: y, Cluster: kmeans.Unassigned})
	}

	k, ok := tr.count()
	if !ok {
		return d, tr.err()
	}
	d.Centroids = make([]kmeans.Centroid, 0, min(k, maxPrealloc))
	for i := 0; i < k; i++ {
		x, y, ok := tr.pair()
		if !ok {
			return d, tr.err()
		}
		d.Centroids = append(d.Centroids, kmeans.Centroid{X: x, Y: y})
	}
	return d, tr.err()
}

// Write emits d in the format Read accepts.
func Write(w io.Writer, d Dataset) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%d\n", len(d.Points))
	for _, p := range d.Points {
		fmt.Fprintf(bw, "%s %s\n", formatFloat(p.X), formatFloat(p.Y))
	}
	fmt.Fprintf(bw, "%d\n", len(d.Centroids))
	for _, c := range d.Centroids {
		fmt.Fprintf(bw, "%s %s\n", formatFloat(c.X), formatFloat(c.Y))
	}
	return bw.Flush()
}

// Save writes d to a file, replacing it.
func Save(path string, d Dataset) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating dataset file: %w", err)
	}
	if err := Write(f, d); err != nil {
		f.Close()
		return fmt.Errorf("error writing dataset: %w", err)
	}
	return f.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

type tokenReader struct {
	sc *bufio.Scanner
}

func newTokenReader(r io.Reader) *tokenReader {
	sc := bufio.NewScanner(r)
	sc.Split(bufio.ScanWords)
	return &tokenReader{sc: sc}
}

func (t *tokenReader) next() (string, bool) {
	if !t.sc.Scan() {
		return "", false
	}
	return t.sc.Text(), true
}

// count reads a non-negative integer header. Negative values read as zero.
func (t *tokenReader) count() (int, bool) {
	tok, ok := t.next()
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(tok)
	if err != nil {
		return 0, false
	}
	return max(n, 0), true
}

func (t *tokenReader) pair() (float64, float64, bool) {
	xs, ok := t.next()
	if !ok {
		return 0, 0, false
	}
	ys, ok := t.next()
	if !ok {
		return 0, 0, false
	}
	x, err := strconv.ParseFloat(xs, 64)
	if err != nil {
		return 0, 0, false
	}
	y, err := strconv.ParseFloat(ys, 64)
	if err != nil {
		return 0, 0, false
	}
	return x, y, true
}

func (t *tokenReader) err() error {
	if err := t.sc.Err(); err != nil {
		return fmt.Errorf("error reading dataset: %w", err)
	}
	return nil
}
