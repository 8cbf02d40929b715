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

// Package dataset drives bulk annotation over collections of image
// samples. A Sample carries named per-sample fields; operations that
// reference a field (a stored caption, a referring expression) get the
// resolved value passed explicitly per call, so samples can be processed
// in parallel.
package dataset

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/openfloret/floret/lib/labels"
)

// Sample is one dataset entry: an image file plus named fields. Fields
// hold both text inputs consumed by field-referencing operations and the
// annotations written back by Apply.
type Sample struct {
	Path   string         `json:"path"`
	Fields map[string]any `json:"fields,omitempty"`
}

// StringField returns the named field as a string. It reports false when
// the field is absent or not a string.
func (s *Sample) StringField(name string) (string, bool) {
	v, ok := s.Fields[name]
	if !ok {
		return "", false
	}
	text, ok := v.(string)
	return text, ok
}

// SetField sets the named field, allocating the field map if needed.
func (s *Sample) SetField(name string, value any) {
	if s.Fields == nil {
		s.Fields = make(map[string]any)
	}
	s.Fields[name] = value
}

// Dataset is a collection of samples with per-sample persistence.
type Dataset interface {
	// Samples returns the samples in iteration order.
	Samples() []*Sample

	// Save persists one sample's fields.
	Save(sample *Sample) error
}

// Annotator produces one annotation for one image. fieldText carries the
// resolved per-sample value when the annotator references a field and is
// empty otherwise.
type Annotator interface {
	// FieldRef names the sample field the annotator reads, or "" when no
	// field resolution is needed.
	FieldRef() string

	Annotate(ctx context.Context, imagePath, fieldText string) (labels.Annotation, error)
}

// Apply annotates every sample of ds in order, writing each result to
// outputField and persisting the sample. The first failure aborts the run
// and is returned with the sample path attached.
func Apply(ctx context.Context, a Annotator, ds Dataset, outputField string) error {
	for _, sample := range ds.Samples() {
		if err := applyOne(ctx, a, ds, sample, outputField); err != nil {
			return err
		}
	}
	return nil
}

// ApplyParallel annotates samples concurrently with at most workers in
// flight. Sample order in the dataset is preserved; completion order is
// not. The first failure cancels the remaining work.
func ApplyParallel(ctx context.Context, a Annotator, ds Dataset, outputField string, workers int) error {
	if workers <= 1 {
		return Apply(ctx, a, ds, outputField)
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, sample := range ds.Samples() {
		g.Go(func() error {
			return applyOne(ctx, a, ds, sample, outputField)
		})
	}
	return g.Wait()
}

func applyOne(ctx context.Context, a Annotator, ds Dataset, sample *Sample, outputField string) error {
	var fieldText string
	if ref := a.FieldRef(); ref != "" {
		fieldText, _ = sample.StringField(ref)
	}
	annotation, err := a.Annotate(ctx, sample.Path, fieldText)
	if err != nil {
		return fmt.Errorf("annotating %s: %w", sample.Path, err)
	}
	// A nil annotation means the model found nothing; the field stays
	// absent rather than holding an empty value.
	if annotation != nil {
		sample.SetField(outputField, annotation)
	}
	if err := ds.Save(sample); err != nil {
		return fmt.Errorf("saving %s: %w", sample.Path, err)
	}
	return nil
}
