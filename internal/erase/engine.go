// Package erase splits freehand paths along the circles swept by an eraser.
//
// The engine is pure: Erase depends only on its arguments and the Options the
// Engine was built with, holds no state between calls and is safe to invoke
// repeatedly while a gesture is still in progress.
package erase

import (
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"localboard/internal/geom"
)

// Sample is one eraser position sampled during a drag.
type Sample struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
}

// Center returns the sample position as a point.
func (s Sample) Center() geom.Point {
	return geom.Pt(s.X, s.Y)
}

// Segment is a contiguous run of points that survived erasure. It always
// holds at least two points.
type Segment struct {
	ID     string       `json:"id"`
	Points []geom.Point `json:"points"`
}

// Options tunes the thresholds of the engine. Every distance derived from
// them scales with the smallest eraser radius in the batch or with the
// target stroke width.
type Options struct {
	// DensityFactor sets point spacing to DensityFactor * smallest radius.
	DensityFactor float64 `toml:"density_factor"`
	// MinSpacing floors the spacing so zero-radius erasers stay bounded.
	MinSpacing float64 `toml:"min_spacing"`
	// SmallRadius: erasers below it pre-chunk long raw spans first.
	SmallRadius float64 `toml:"small_radius"`
	// ChunkFactor sets the pre-chunk length to ChunkFactor * smallest radius.
	ChunkFactor float64 `toml:"chunk_factor"`
	// SegmentFactor scales the effective radius for the line proximity test.
	SegmentFactor float64 `toml:"segment_factor"`
	// VerySmallRadius: erasers below it engage the fallback line test.
	VerySmallRadius float64 `toml:"very_small_radius"`
	// FallbackFactor scales the effective radius for the fallback test.
	FallbackFactor float64 `toml:"fallback_factor"`
}

// DefaultOptions returns the tuning used by the whiteboard.
func DefaultOptions() Options {
	return Options{
		DensityFactor:   0.5,
		MinSpacing:      0.25,
		SmallRadius:     8,
		ChunkFactor:     2,
		SegmentFactor:   1,
		VerySmallRadius: 3,
		FallbackFactor:  1.5,
	}
}

// withDefaults replaces non-positive fields by their defaults.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.DensityFactor <= 0 {
		o.DensityFactor = d.DensityFactor
	}
	if o.MinSpacing <= 0 {
		o.MinSpacing = d.MinSpacing
	}
	if o.SmallRadius <= 0 {
		o.SmallRadius = d.SmallRadius
	}
	if o.ChunkFactor <= 0 {
		o.ChunkFactor = d.ChunkFactor
	}
	if o.SegmentFactor <= 0 {
		o.SegmentFactor = d.SegmentFactor
	}
	if o.VerySmallRadius <= 0 {
		o.VerySmallRadius = d.VerySmallRadius
	}
	if o.FallbackFactor <= 0 {
		o.FallbackFactor = d.FallbackFactor
	}
	return o
}

// Engine computes erasures with a fixed set of Options.
type Engine struct {
	opts Options
}

// New creates an engine. Zero fields in opts fall back to DefaultOptions.
func New(opts Options) *Engine {
	return &Engine{opts: opts.withDefaults()}
}

// Options returns the effective options of the engine.
func (e *Engine) Options() Options {
	return e.opts
}

var defaultEngine = New(DefaultOptions())

// Erase runs the default engine. See Engine.Erase.
func Erase(path string, strokeWidth float64, samples []Sample) []Segment {
	return defaultEngine.Erase(path, strokeWidth, samples)
}

// Erase returns the segments of path that remain after every sample's circle
// has cut out the points and line spans it covers. A path with fewer than two
// points or an empty sample batch yields no segments.
func (e *Engine) Erase(path string, strokeWidth float64, samples []Sample) []Segment {
	return e.ErasePoints(geom.PathToPoints(path), strokeWidth, samples, segmentKey(path, strokeWidth, samples))
}

// ErasePoints is Erase over an already parsed point list. key seeds the
// deterministic segment ids; identical inputs and key give identical ids.
func (e *Engine) ErasePoints(pts []geom.Point, strokeWidth float64, samples []Sample, key string) []Segment {
	if len(pts) < 2 || len(samples) == 0 {
		return nil
	}
	if strokeWidth < 0 {
		strokeWidth = 0
	}
	halfWidth := strokeWidth / 2

	// 1. bounding-box pre-filter
	if !Overlaps(geom.BoundsOf(pts), strokeWidth, samples) {
		return []Segment{newSegment(key, 0, append([]geom.Point(nil), pts...))}
	}

	samples = InterpolateSamples(samples)
	minRadius := smallestRadius(samples)

	// 2. stroke-width compensation
	eff := make([]float64, len(samples))
	for i, s := range samples {
		eff[i] = math.Max(s.Radius, 0) + halfWidth
	}

	// 3. adaptive densification
	dense, anchor := e.densify(pts, minRadius)

	// 4. per-point containment
	erased := make([]bool, len(dense))
	hit := false
	for i, p := range dense {
		for j, s := range samples {
			if p.Distance(s.Center()) <= eff[j] {
				erased[i] = true
				hit = true
				break
			}
		}
	}

	// 5. per-segment proximity
	hit = e.markSpans(dense, erased, samples, eff, e.opts.SegmentFactor) || hit

	// 6. fallback for very small erasers
	if minRadius < e.opts.VerySmallRadius {
		hit = e.markSpans(dense, erased, samples, eff, e.opts.FallbackFactor) || hit
	}

	if !hit {
		return []Segment{newSegment(key, 0, append([]geom.Point(nil), pts...))}
	}

	// 7-8. segmentation
	return segment(dense, anchor, erased, key)
}

// markSpans erases both endpoints of every surviving adjacent pair whose
// connecting line passes within factor * effective radius of a sample center.
func (e *Engine) markSpans(dense []geom.Point, erased []bool, samples []Sample, eff []float64, factor float64) bool {
	changed := false
	for i := 0; i+1 < len(dense); i++ {
		if erased[i] || erased[i+1] {
			continue
		}
		for j, s := range samples {
			if geom.SegmentDistance(s.Center(), dense[i], dense[i+1]) <= eff[j]*factor {
				erased[i] = true
				erased[i+1] = true
				changed = true
				break
			}
		}
	}
	return changed
}

// densify interpolates pts so consecutive points are never farther apart than
// a fraction of minRadius. The returned flags mark points of the original
// path; interpolated points lie on the straight span between two anchors.
func (e *Engine) densify(pts []geom.Point, minRadius float64) ([]geom.Point, []bool) {
	spacing := math.Max(minRadius*e.opts.DensityFactor, e.opts.MinSpacing)

	var chunkLen float64
	if minRadius < e.opts.SmallRadius {
		chunkLen = math.Max(minRadius*e.opts.ChunkFactor, spacing)
	}

	dense := []geom.Point{pts[0]}
	anchor := []bool{true}
	for i := 1; i < len(pts); i++ {
		raw := []geom.Point{pts[i-1], pts[i]}
		if chunkLen > 0 {
			raw = geom.Interpolate(pts[i-1], pts[i], chunkLen)
		}
		for k := 1; k < len(raw); k++ {
			seg := geom.Interpolate(raw[k-1], raw[k], spacing)
			for _, p := range seg[1:] {
				dense = append(dense, p)
				anchor = append(anchor, false)
			}
		}
		anchor[len(anchor)-1] = true
	}
	return dense, anchor
}

// segment walks the tested points and collects runs of survivors. Interior
// interpolated points are dropped since they lie on the span between their
// neighbours; run endpoints are kept so the cut edges stay where they were.
func segment(dense []geom.Point, anchor, erased []bool, key string) []Segment {
	var (
		out []Segment
		run []int
	)
	flush := func() {
		if len(run) >= 2 {
			pts := make([]geom.Point, 0, len(run))
			for k, idx := range run {
				if k == 0 || k == len(run)-1 || anchor[idx] {
					pts = append(pts, dense[idx])
				}
			}
			out = append(out, newSegment(key, len(out), pts))
		}
		run = run[:0]
	}
	for i := range dense {
		if erased[i] {
			flush()
			continue
		}
		run = append(run, i)
	}
	flush()
	return out
}

// InterpolateSamples inserts samples between consecutive samples that are
// farther apart than the smaller of their radii, so a fast drag still sweeps
// a continuous band. Radii are interpolated linearly.
func InterpolateSamples(samples []Sample) []Sample {
	if len(samples) < 2 {
		return samples
	}
	out := []Sample{samples[0]}
	for i := 1; i < len(samples); i++ {
		a, b := samples[i-1], samples[i]
		step := math.Min(a.Radius, b.Radius)
		d := a.Center().Distance(b.Center())
		if step > 0 && d > step {
			n := int(math.Ceil(d / step))
			for k := 1; k < n; k++ {
				t := float64(k) / float64(n)
				c := a.Center().Lerp(b.Center(), t)
				out = append(out, Sample{X: c.X, Y: c.Y, Radius: a.Radius + (b.Radius-a.Radius)*t})
			}
		}
		out = append(out, b)
	}
	return out
}

// SampleBounds returns the union of the circles of all samples.
func SampleBounds(samples []Sample) geom.Bounds {
	b := geom.EmptyBounds()
	for _, s := range samples {
		r := math.Max(s.Radius, 0)
		b = b.Union(geom.Bounds{MinX: s.X - r, MinY: s.Y - r, MaxX: s.X + r, MaxY: s.Y + r})
	}
	return b
}

// Overlaps is the O(1) rejection test: it reports whether a target with the
// given bounds and stroke width can be touched by any of the samples.
func Overlaps(target geom.Bounds, strokeWidth float64, samples []Sample) bool {
	return target.Inflate(strokeWidth / 2).Overlaps(SampleBounds(samples))
}

func smallestRadius(samples []Sample) float64 {
	smallest := math.Inf(1)
	for _, s := range samples {
		smallest = math.Min(smallest, s.Radius)
	}
	return math.Max(smallest, 0)
}

var segmentNamespace = uuid.MustParse("9b7f3c1e-58a4-4d8e-9c61-2f0d6c1a7e42")

func newSegment(key string, index int, pts []geom.Point) Segment {
	id := uuid.NewSHA1(segmentNamespace, []byte(fmt.Sprintf("%s#%d", key, index)))
	return Segment{ID: id.String(), Points: pts}
}

func segmentKey(path string, strokeWidth float64, samples []Sample) string {
	var sb strings.Builder
	sb.WriteString(path)
	fmt.Fprintf(&sb, "|%g", strokeWidth)
	for _, s := range samples {
		fmt.Fprintf(&sb, "|%g,%g,%g", s.X, s.Y, s.Radius)
	}
	return sb.String()
}
