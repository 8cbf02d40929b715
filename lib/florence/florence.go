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

// Package florence decodes Florence-2 generated text into structured
// per-task records.
//
// Florence-2 emits geometry as location tokens: coordinates quantized into
// 1000 bins per axis, rendered as <loc_N> with N in [0,999]. Contours and
// polygon groups are separated by <sep>. This package turns those token
// streams back into absolute-pixel coordinate lists; normalization to [0,1]
// happens downstream in lib/labels.
package florence

import "github.com/openfloret/floret/lib/tasks"

// Result is the structured record decoded for one task. Which fields are
// populated depends on the task:
//
//   - caption tasks, plain OCR: Text
//   - detection family: Bboxes + Labels
//   - open-vocabulary detection: Bboxes + BboxesLabels
//   - OCR with region: QuadBoxes + Labels
//   - segmentation: Polygons
//
// All coordinates are absolute pixel units.
type Result struct {
	Task tasks.TaskID

	Text string

	// Bboxes holds length-4 coordinate lists (x1,y1,x2,y2).
	Bboxes [][]float64
	Labels []string

	// BboxesLabels is the label sequence for open-vocabulary detection,
	// which the model reports under a distinct key.
	BboxesLabels []string

	// QuadBoxes holds length-8 coordinate lists (four corner points).
	QuadBoxes [][]float64

	// Polygons holds polygon entries, each one or more contours, each a
	// flat interleaved [x1,y1,x2,y2,...] stream.
	Polygons [][][]float64
}

// DetectionLabels returns the label sequence paired with Bboxes,
// accounting for the open-vocabulary variant's distinct key.
func (r *Result) DetectionLabels() []string {
	if r.Task == tasks.TaskOpenVocabDetection {
		return r.BboxesLabels
	}
	return r.Labels
}

// IsTextTask reports whether the task's result is plain text.
func IsTextTask(task tasks.TaskID) bool {
	switch task {
	case tasks.TaskCaption, tasks.TaskDetailedCaption, tasks.TaskMoreDetailedCaption, tasks.TaskOCR:
		return true
	}
	return false
}
