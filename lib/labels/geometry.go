// Copyright 2025 The Floret Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package labels

import "fmt"

// NormalizeBox converts one absolute-pixel coordinate list into a
// normalized Box.
//
// A length-4 list is x1,y1,x2,y2. No clamping or reordering is performed:
// if x2 < x1 the width comes out negative and is passed through unchanged.
//
// A length-8 list is a quadrilateral (four corner points, any order), used
// for rotated OCR text regions. It is reduced to its axis-aligned bounding
// rectangle before normalization, deliberately losing rotation/skew.
func NormalizeBox(coords []float64, width, height float64) (Box, error) {
	switch len(coords) {
	case 4:
		return Box{
			X: coords[0] / width,
			Y: coords[1] / height,
			W: (coords[2] - coords[0]) / width,
			H: (coords[3] - coords[1]) / height,
		}, nil
	case 8:
		xMin, xMax := coords[0], coords[0]
		yMin, yMax := coords[1], coords[1]
		for i := 2; i < 8; i += 2 {
			xMin = min(xMin, coords[i])
			xMax = max(xMax, coords[i])
			yMin = min(yMin, coords[i+1])
			yMax = max(yMax, coords[i+1])
		}
		return Box{
			X: xMin / width,
			Y: yMin / height,
			W: (xMax - xMin) / width,
			H: (yMax - yMin) / height,
		}, nil
	default:
		return Box{}, fmt.Errorf("coordinate list must have 4 or 8 values, got %d", len(coords))
	}
}

// FallbackLabel substitutes a positional label for an empty one. i is the
// 0-based position in the output sequence.
func FallbackLabel(label string, i int) string {
	if label == "" {
		return fmt.Sprintf("object_%d", i+1)
	}
	return label
}

// NewDetections normalizes parallel (coordinate-list, label) sequences in
// lock-step by index. Output order matches input order.
func NewDetections(boxes [][]float64, names []string, width, height float64) (*Detections, error) {
	dets := make([]Detection, 0, len(boxes))
	for i, coords := range boxes {
		var label string
		if i < len(names) {
			label = names[i]
		}
		box, err := NormalizeBox(coords, width, height)
		if err != nil {
			return nil, fmt.Errorf("detection %d: %w", i, err)
		}
		dets = append(dets, Detection{
			Label: FallbackLabel(label, i),
			Box:   box,
		})
	}
	return &Detections{Detections: dets}, nil
}

// Staircase reconstructs a contour as an alternating horizontal/vertical
// step sequence rather than a direct point list. Starting from
// (xs[0], ys[0]), each subsequent vertex i contributes (xs[i], ys[i-1])
// followed by (xs[i], ys[i]); a closing point (xs[0], ys[N-1]) is appended.
// For N input pairs this yields exactly 2*(N-1)+2 points.
//
// The step reconstruction matches the rendering contract of the consuming
// polygon drawer and is NOT equivalent to connecting the raw points; do not
// simplify it.
func Staircase(xs, ys []float64) []Point {
	if len(xs) == 0 {
		return nil
	}
	points := make([]Point, 0, 2*len(xs))
	currY := ys[0]
	points = append(points, Point{X: xs[0], Y: currY})
	for i := 1; i < len(xs); i++ {
		points = append(points, Point{X: xs[i], Y: currY})
		currY = ys[i]
		points = append(points, Point{X: xs[i], Y: currY})
	}
	points = append(points, Point{X: xs[0], Y: currY})
	return points
}

// normalizeContour splits a flat interleaved [x1,y1,x2,y2,...] pixel stream
// into normalized x and y sequences.
func normalizeContour(contour []float64, width, height float64) (xs, ys []float64) {
	n := len(contour) / 2
	xs = make([]float64, 0, n)
	ys = make([]float64, 0, n)
	for i, v := range contour {
		if i%2 == 0 {
			xs = append(xs, v/width)
		} else {
			ys = append(ys, v/height)
		}
	}
	return xs, ys
}

// NewPolylines converts decoded polygon entries into a Polylines
// collection. Each entry may carry several contours; all of an entry's
// contours are aggregated under one polyline labeled object_<k+1>, where k
// indexes polygon entries.
//
// An empty entry list yields nil, signaling "no segmentation found"
// distinctly from "segmentation found but geometrically empty".
func NewPolylines(polygons [][][]float64, width, height float64) *Polylines {
	if len(polygons) == 0 {
		return nil
	}

	lines := make([]Polyline, 0, len(polygons))
	for k, polygon := range polygons {
		contours := make([][]Point, 0, len(polygon))
		for _, contour := range polygon {
			xs, ys := normalizeContour(contour, width, height)
			contours = append(contours, Staircase(xs, ys))
		}
		lines = append(lines, Polyline{
			Label:  fmt.Sprintf("object_%d", k+1),
			Points: contours,
			Filled: true,
			Closed: true,
		})
	}
	return &Polylines{Polylines: lines}
}
