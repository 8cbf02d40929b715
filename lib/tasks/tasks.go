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

// Package tasks maps labeling operations to Florence-2 task tokens.
//
// Each operation is a tagged variant carrying only the parameters that
// operation accepts. Validation happens at construction so a misconfigured
// operation fails before any model is loaded.
package tasks

import (
	"fmt"
	"strings"
)

// TaskID is a Florence-2 task token, passed verbatim to the model prompt
// and used as the lookup key for its decoded output.
type TaskID string

const (
	TaskCaption             TaskID = "<CAPTION>"
	TaskDetailedCaption     TaskID = "<DETAILED_CAPTION>"
	TaskMoreDetailedCaption TaskID = "<MORE_DETAILED_CAPTION>"
	TaskOCR                 TaskID = "<OCR>"
	TaskOCRWithRegion       TaskID = "<OCR_WITH_REGION>"
	TaskObjectDetection     TaskID = "<OD>"
	TaskDenseRegionCaption  TaskID = "<DENSE_REGION_CAPTION>"
	TaskRegionProposal      TaskID = "<REGION_PROPOSAL>"
	TaskOpenVocabDetection  TaskID = "<OPEN_VOCABULARY_DETECTION>"
	TaskPhraseGrounding     TaskID = "<CAPTION_TO_PHRASE_GROUNDING>"
	TaskSegmentation        TaskID = "<REFERRING_EXPRESSION_SEGMENTATION>"
)

// String returns the task token as a string.
func (t TaskID) String() string {
	return string(t)
}

// Detail levels for the caption operation.
const (
	DetailBasic        = "basic"
	DetailDetailed     = "detailed"
	DetailMoreDetailed = "more_detailed"
)

// Detection type variants for the detection operation.
const (
	DetectObjects       = "detection"
	DetectDenseCaptions = "dense_region_caption"
	DetectProposals     = "region_proposal"
	DetectOpenVocab     = "open_vocabulary_detection"
)

// OperationNames lists the valid operation names in the order they are
// reported in validation errors.
var OperationNames = []string{
	"caption",
	"ocr",
	"detection",
	"phrase_grounding",
	"segmentation",
}

// Prompt is a resolved model prompt: the task token plus an optional
// free-text payload appended to it.
type Prompt struct {
	Task TaskID
	Text string
}

// String renders the prompt as sent to the model.
func (p Prompt) String() string {
	if p.Text == "" {
		return string(p.Task)
	}
	return string(p.Task) + "\n" + p.Text
}

// Operation is one configured labeling operation. The set of
// implementations is closed: Caption, OCR, Detection, PhraseGrounding and
// Segmentation.
type Operation interface {
	// Name returns the operation name ("caption", "ocr", ...).
	Name() string

	// Validate checks the operation's parameters. It is called at adapter
	// construction time.
	Validate() error

	// FieldRef returns the name of the per-sample field this operation
	// reads its text input from, or "" when no field resolution is needed.
	FieldRef() string

	// Prompt builds the model prompt. fieldText carries the resolved
	// per-sample value for field-referencing operations and is ignored
	// otherwise.
	Prompt(fieldText string) (Prompt, error)
}

// Caption generates an image caption at one of three detail levels.
type Caption struct {
	// DetailLevel is "basic", "detailed" or "more_detailed". Absent or
	// unrecognized values fall back to basic.
	DetailLevel string
}

func (c Caption) Name() string     { return "caption" }
func (c Caption) Validate() error  { return nil }
func (c Caption) FieldRef() string { return "" }

func (c Caption) Prompt(string) (Prompt, error) {
	switch c.DetailLevel {
	case DetailDetailed:
		return Prompt{Task: TaskDetailedCaption}, nil
	case DetailMoreDetailed:
		return Prompt{Task: TaskMoreDetailedCaption}, nil
	default:
		return Prompt{Task: TaskCaption}, nil
	}
}

// OCR extracts text from the image, optionally with per-region boxes.
type OCR struct {
	// StoreRegionInfo selects the region task: the result becomes a
	// detection collection whose labels are the recognized text spans.
	StoreRegionInfo bool
}

func (o OCR) Name() string     { return "ocr" }
func (o OCR) Validate() error  { return nil }
func (o OCR) FieldRef() string { return "" }

func (o OCR) Prompt(string) (Prompt, error) {
	if o.StoreRegionInfo {
		return Prompt{Task: TaskOCRWithRegion}, nil
	}
	return Prompt{Task: TaskOCR}, nil
}

// Detection locates objects in the image.
type Detection struct {
	// Type is one of the Detect* constants. Absent or unrecognized values
	// fall back to plain detection.
	Type string

	// TextPrompt is additional prompt text. It is required in effect only
	// for open-vocabulary detection but is accepted for any variant.
	TextPrompt string
}

func (d Detection) Name() string     { return "detection" }
func (d Detection) Validate() error  { return nil }
func (d Detection) FieldRef() string { return "" }

func (d Detection) Prompt(string) (Prompt, error) {
	task := TaskObjectDetection
	switch d.Type {
	case DetectDenseCaptions:
		task = TaskDenseRegionCaption
	case DetectProposals:
		task = TaskRegionProposal
	case DetectOpenVocab:
		task = TaskOpenVocabDetection
	}
	return Prompt{Task: task, Text: d.TextPrompt}, nil
}

// PhraseGrounding links the phrases of a caption to image regions. Exactly
// one of Caption (a literal string) or CaptionField (the name of a
// per-sample field resolved by the dataset driver) must be set.
type PhraseGrounding struct {
	Caption      string
	CaptionField string
}

func (g PhraseGrounding) Name() string { return "phrase_grounding" }

func (g PhraseGrounding) Validate() error {
	return requireExactlyOne(g.Name(), "caption", g.Caption, "caption_field", g.CaptionField)
}

func (g PhraseGrounding) FieldRef() string { return g.CaptionField }

func (g PhraseGrounding) Prompt(fieldText string) (Prompt, error) {
	caption := g.Caption
	if g.CaptionField != "" {
		if fieldText == "" {
			return Prompt{}, fmt.Errorf("phrase_grounding: field %q was not resolved for this sample", g.CaptionField)
		}
		caption = fieldText
	}
	return Prompt{Task: TaskPhraseGrounding, Text: caption}, nil
}

// Segmentation produces a polygon mask for the object named by a referring
// expression. Exactly one of Expression or ExpressionField must be set.
type Segmentation struct {
	Expression      string
	ExpressionField string
}

func (s Segmentation) Name() string { return "segmentation" }

func (s Segmentation) Validate() error {
	return requireExactlyOne(s.Name(), "expression", s.Expression, "expression_field", s.ExpressionField)
}

func (s Segmentation) FieldRef() string { return s.ExpressionField }

func (s Segmentation) Prompt(fieldText string) (Prompt, error) {
	expr := s.Expression
	if s.ExpressionField != "" {
		if fieldText == "" {
			return Prompt{}, fmt.Errorf("segmentation: field %q was not resolved for this sample", s.ExpressionField)
		}
		expr = fieldText
	}
	return Prompt{Task: TaskSegmentation, Text: "Expression: " + expr}, nil
}

func requireExactlyOne(op, aName, aVal, bName, bVal string) error {
	if aVal == "" && bVal == "" {
		return fmt.Errorf("%s: either %q or %q must be provided", op, aName, bName)
	}
	if aVal != "" && bVal != "" {
		return fmt.Errorf("%s: %q and %q are mutually exclusive", op, aName, bName)
	}
	return nil
}

// Config is the flat, config-file-friendly form of an operation, used by
// the CLI. Only the fields recognized by Operation are consulted.
type Config struct {
	Operation       string `json:"operation" mapstructure:"operation"`
	DetailLevel     string `json:"detail_level,omitempty" mapstructure:"detail_level"`
	StoreRegionInfo bool   `json:"store_region_info,omitempty" mapstructure:"store_region_info"`
	DetectionType   string `json:"detection_type,omitempty" mapstructure:"detection_type"`
	TextPrompt      string `json:"text_prompt,omitempty" mapstructure:"text_prompt"`
	Caption         string `json:"caption,omitempty" mapstructure:"caption"`
	CaptionField    string `json:"caption_field,omitempty" mapstructure:"caption_field"`
	Expression      string `json:"expression,omitempty" mapstructure:"expression"`
	ExpressionField string `json:"expression_field,omitempty" mapstructure:"expression_field"`
}

// FromConfig builds and validates the operation named by cfg.Operation.
func FromConfig(cfg Config) (Operation, error) {
	var op Operation
	switch cfg.Operation {
	case "caption":
		op = Caption{DetailLevel: cfg.DetailLevel}
	case "ocr":
		op = OCR{StoreRegionInfo: cfg.StoreRegionInfo}
	case "detection":
		op = Detection{Type: cfg.DetectionType, TextPrompt: cfg.TextPrompt}
	case "phrase_grounding":
		op = PhraseGrounding{Caption: cfg.Caption, CaptionField: cfg.CaptionField}
	case "segmentation":
		op = Segmentation{Expression: cfg.Expression, ExpressionField: cfg.ExpressionField}
	default:
		return nil, fmt.Errorf("invalid operation %q: must be one of [%s]",
			cfg.Operation, strings.Join(OperationNames, ", "))
	}
	if err := op.Validate(); err != nil {
		return nil, err
	}
	return op, nil
}
