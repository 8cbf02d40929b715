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

// Package floret adapts Florence-2-style vision-language models to dataset
// labeling. An Adapter binds one configured operation to one model runtime:
// it selects the task prompt, runs a single generate-and-decode call per
// image, and converts the decoded geometry into normalized labels.
package floret

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/openfloret/floret/lib/dataset"
	"github.com/openfloret/floret/lib/florence"
	"github.com/openfloret/floret/lib/generation"
	"github.com/openfloret/floret/lib/labels"
	"github.com/openfloret/floret/lib/tasks"
)

// Generation controls used for every call. Florence-2 task outputs are
// decoded with beam search and no sampling; these are not tunable per call.
const (
	MaxNewTokens = 1024
	NumBeams     = 3
)

// Adapter runs one labeling operation against one model runtime. It
// implements dataset.Annotator.
type Adapter struct {
	op        tasks.Operation
	generator generation.Generator
	model     string
	logger    *zap.Logger
}

var _ dataset.Annotator = (*Adapter)(nil)

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithLogger sets the adapter logger.
func WithLogger(logger *zap.Logger) AdapterOption {
	return func(a *Adapter) { a.logger = logger }
}

// WithModelName sets the model name reported in logs and metrics.
func WithModelName(model string) AdapterOption {
	return func(a *Adapter) { a.model = model }
}

// NewAdapter binds a validated operation to a generator. The operation's
// parameters are checked here, before any model work happens.
func NewAdapter(op tasks.Operation, generator generation.Generator, opts ...AdapterOption) (*Adapter, error) {
	if err := op.Validate(); err != nil {
		return nil, err
	}
	a := &Adapter{
		op:        op,
		generator: generator,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.Named("floret")
	return a, nil
}

// NewAdapterFromConfig builds the operation from its flat config form and
// binds it, failing on an unknown operation name or invalid parameters.
func NewAdapterFromConfig(cfg tasks.Config, generator generation.Generator, opts ...AdapterOption) (*Adapter, error) {
	op, err := tasks.FromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return NewAdapter(op, generator, opts...)
}

// Operation returns the bound operation.
func (a *Adapter) Operation() tasks.Operation { return a.op }

// FieldRef names the sample field the operation reads, or "".
func (a *Adapter) FieldRef() string { return a.op.FieldRef() }

// Annotate runs the operation against one image. fieldText carries the
// resolved per-sample value for field-referencing operations.
func (a *Adapter) Annotate(ctx context.Context, imagePath, fieldText string) (labels.Annotation, error) {
	prompt, err := a.op.Prompt(fieldText)
	if err != nil {
		return nil, err
	}

	width, height, err := dataset.ImageSize(imagePath)
	if err != nil {
		return nil, err
	}

	recordAnnotateRequest(a.op.Name(), string(prompt.Task))

	messages := []generation.Message{{
		Role: "user",
		Parts: []generation.ContentPart{
			generation.TextPart(prompt.String()),
			generation.ImagePart(imagePath),
		},
	}}
	result, err := a.generator.Generate(ctx, messages, generation.GenerateOptions{
		MaxNewTokens: MaxNewTokens,
		NumBeams:     NumBeams,
	})
	if err != nil {
		return nil, fmt.Errorf("generating for %s: %w", prompt.Task, err)
	}

	record, err := florence.Decode(prompt.Task, result.Text, width, height)
	if err != nil {
		return nil, err
	}

	annotation, err := a.toAnnotation(record, width, height)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("Annotated image",
		zap.String("image", imagePath),
		zap.String("task", string(prompt.Task)),
		zap.Int("tokens", result.TokensUsed))
	return annotation, nil
}

// toAnnotation converts the decoded record into the operation's label
// type. The operation set is closed; the default arm guards against a new
// variant being added without a handler here.
func (a *Adapter) toAnnotation(record *florence.Result, width, height int) (labels.Annotation, error) {
	w, h := float64(width), float64(height)
	switch op := a.op.(type) {
	case tasks.Caption:
		recordLabelCreation(a.op.Name(), 1)
		return labels.Text(record.Text), nil

	case tasks.OCR:
		if !op.StoreRegionInfo {
			recordLabelCreation(a.op.Name(), 1)
			return labels.Text(record.Text), nil
		}
		detections, err := labels.NewDetections(record.QuadBoxes, record.Labels, w, h)
		if err != nil {
			return nil, err
		}
		recordLabelCreation(a.op.Name(), len(detections.Detections))
		return detections, nil

	case tasks.Detection:
		detections, err := labels.NewDetections(record.Bboxes, record.DetectionLabels(), w, h)
		if err != nil {
			return nil, err
		}
		recordLabelCreation(a.op.Name(), len(detections.Detections))
		return detections, nil

	case tasks.PhraseGrounding:
		detections, err := labels.NewDetections(record.Bboxes, record.Labels, w, h)
		if err != nil {
			return nil, err
		}
		recordLabelCreation(a.op.Name(), len(detections.Detections))
		return detections, nil

	case tasks.Segmentation:
		polylines := labels.NewPolylines(record.Polygons, w, h)
		if polylines == nil {
			// The model found nothing; the sample gets no annotation at
			// all, not an empty one.
			return nil, nil
		}
		recordLabelCreation(a.op.Name(), len(polylines.Polylines))
		return polylines, nil

	default:
		return nil, fmt.Errorf("no handler for operation %q", a.op.Name())
	}
}

// Close releases the underlying generator.
func (a *Adapter) Close() error {
	return a.generator.Close()
}
