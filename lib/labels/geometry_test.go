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

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeBoxRect(t *testing.T) {
	box, err := NormalizeBox([]float64{10, 20, 110, 220}, 100, 200)
	require.NoError(t, err)
	assert.InDelta(t, 0.1, box.X, 1e-9)
	assert.InDelta(t, 0.1, box.Y, 1e-9)
	assert.InDelta(t, 1.0, box.W, 1e-9)
	assert.InDelta(t, 1.0, box.H, 1e-9)
}

func TestNormalizeBoxNoReordering(t *testing.T) {
	// Inverted corners pass through as a negative width; the model's
	// ordering is trusted, not validated.
	box, err := NormalizeBox([]float64{110, 20, 10, 220}, 100, 200)
	require.NoError(t, err)
	assert.InDelta(t, 1.1, box.X, 1e-9)
	assert.InDelta(t, -1.0, box.W, 1e-9)
}

func TestNormalizeBoxQuad(t *testing.T) {
	box, err := NormalizeBox([]float64{0, 0, 10, 0, 10, 10, 0, 10}, 10, 10)
	require.NoError(t, err)
	assert.Equal(t, Box{X: 0, Y: 0, W: 1, H: 1}, box)
}

func TestNormalizeBoxQuadIsAxisAlignedHull(t *testing.T) {
	// A rotated quad reduces to the bounding rectangle of its corners.
	quad := []float64{50, 10, 90, 50, 50, 90, 10, 50}
	box, err := NormalizeBox(quad, 100, 100)
	require.NoError(t, err)
	assert.InDelta(t, 0.1, box.X, 1e-9)
	assert.InDelta(t, 0.1, box.Y, 1e-9)
	assert.InDelta(t, 0.8, box.W, 1e-9)
	assert.InDelta(t, 0.8, box.H, 1e-9)
}

func TestNormalizeBoxBadLength(t *testing.T) {
	for _, n := range []int{0, 1, 3, 5, 7, 9} {
		_, err := NormalizeBox(make([]float64, n), 10, 10)
		assert.Error(t, err, "length %d", n)
	}
}

func TestNewDetectionsLabelFallback(t *testing.T) {
	boxes := [][]float64{
		{0, 0, 5, 5},
		{5, 5, 10, 10},
		{0, 5, 5, 10},
	}
	dets, err := NewDetections(boxes, []string{"cat", "", "dog"}, 10, 10)
	require.NoError(t, err)
	require.Len(t, dets.Detections, 3)
	assert.Equal(t, "cat", dets.Detections[0].Label)
	assert.Equal(t, "object_2", dets.Detections[1].Label)
	assert.Equal(t, "dog", dets.Detections[2].Label)
}

func TestNewDetectionsMissingLabels(t *testing.T) {
	// A short label sequence falls back positionally for the remainder.
	dets, err := NewDetections([][]float64{{0, 0, 5, 5}, {1, 1, 2, 2}}, []string{"cat"}, 10, 10)
	require.NoError(t, err)
	assert.Equal(t, "object_2", dets.Detections[1].Label)
}

func TestNewDetectionsPreservesOrder(t *testing.T) {
	boxes := [][]float64{{4, 4, 8, 8}, {0, 0, 2, 2}}
	dets, err := NewDetections(boxes, []string{"b", "a"}, 8, 8)
	require.NoError(t, err)
	assert.Equal(t, "b", dets.Detections[0].Label)
	assert.InDelta(t, 0.5, dets.Detections[0].Box.X, 1e-9)
	assert.Equal(t, "a", dets.Detections[1].Label)
}

func TestStaircasePointCount(t *testing.T) {
	// N coordinate pairs must yield 2*(N-1)+2 points.
	for _, n := range []int{1, 2, 3, 5, 17} {
		xs := make([]float64, n)
		ys := make([]float64, n)
		for i := range xs {
			xs[i] = float64(i)
			ys[i] = float64(i * 2)
		}
		points := Staircase(xs, ys)
		assert.Len(t, points, 2*(n-1)+2, "n=%d", n)
	}
}

func TestStaircaseShape(t *testing.T) {
	// Triangle (0,0) (1,0.5) (0.5,1) reconstructs as alternating
	// horizontal and vertical steps with a closing point at x[0].
	points := Staircase([]float64{0, 1, 0.5}, []float64{0, 0.5, 1})
	expected := []Point{
		{0, 0},
		{1, 0},   // horizontal step to new x, previous y
		{1, 0.5}, // vertical step to new y
		{0.5, 0.5},
		{0.5, 1},
		{0, 1}, // close at starting x and final y
	}
	assert.Equal(t, expected, points)
}

func TestStaircaseEmpty(t *testing.T) {
	assert.Nil(t, Staircase(nil, nil))
}

func TestNewPolylinesAbsentVsEmpty(t *testing.T) {
	// No polygon entries means an absent result, not an empty collection.
	assert.Nil(t, NewPolylines(nil, 10, 10))
	assert.Nil(t, NewPolylines([][][]float64{}, 10, 10))

	got := NewPolylines([][][]float64{{{0, 0, 10, 0, 10, 10}}}, 10, 10)
	require.NotNil(t, got)
	assert.Len(t, got.Polylines, 1)
}

func TestNewPolylinesLabelsAndFlags(t *testing.T) {
	polygons := [][][]float64{
		{{0, 0, 10, 0, 10, 10}},
		{{2, 2, 4, 2, 4, 4}, {6, 6, 8, 6, 8, 8}},
	}
	got := NewPolylines(polygons, 10, 10)
	require.NotNil(t, got)
	require.Len(t, got.Polylines, 2)

	first := got.Polylines[0]
	assert.Equal(t, "object_1", first.Label)
	assert.True(t, first.Filled)
	assert.True(t, first.Closed)
	require.Len(t, first.Points, 1)
	// 3 pairs -> 2*(3-1)+2 = 6 points.
	assert.Len(t, first.Points[0], 6)

	// Entry labels index polygon entries, not contours.
	second := got.Polylines[1]
	assert.Equal(t, "object_2", second.Label)
	assert.Len(t, second.Points, 2)
}

func TestNewPolylinesNormalization(t *testing.T) {
	got := NewPolylines([][][]float64{{{0, 0, 10, 0, 10, 20}}}, 10, 20)
	require.NotNil(t, got)
	points := got.Polylines[0].Points[0]
	assert.Equal(t, Point{0, 0}, points[0])
	assert.Equal(t, Point{1, 0}, points[1])
	assert.Equal(t, Point{1, 0}, points[2])
	assert.Equal(t, Point{1, 0}, points[3])
	assert.Equal(t, Point{1, 1}, points[4])
	assert.Equal(t, Point{0, 1}, points[5])
}
