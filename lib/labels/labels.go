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

// Package labels defines the normalized, resolution-independent label types
// produced from decoded model output, and the geometry that builds them.
//
// All coordinates are fractions of image width/height, intended to lie in
// [0,1] for well-formed input.
package labels

// Annotation is the result of one labeling operation on one image. The
// concrete type depends on the operation: Text for captioning and plain
// OCR, *Detections for the detection family, *Polylines for segmentation.
type Annotation interface {
	isAnnotation()
}

// Text is a plain string annotation (caption, plain OCR output).
type Text string

func (Text) isAnnotation() {}

// Box is a normalized bounding box. X and Y are the top-left corner.
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Detection is one labeled box.
type Detection struct {
	Label string `json:"label"`
	Box   Box    `json:"box"`
}

// Detections is an ordered collection of detections. Order matches the
// model's output order; no confidence-based sorting occurs.
type Detections struct {
	Detections []Detection `json:"detections"`
}

func (*Detections) isAnnotation() {}

// Point is one normalized vertex.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Polyline is one labeled polygon: one or more closed contours, each a
// sequence of normalized points.
type Polyline struct {
	Label  string    `json:"label"`
	Points [][]Point `json:"points"`
	Filled bool      `json:"filled"`
	Closed bool      `json:"closed"`
}

// Polylines is a collection of polylines produced by one segmentation call.
type Polylines struct {
	Polylines []Polyline `json:"polylines"`
}

func (*Polylines) isAnnotation() {}
