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

package tasks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaptionDetailLevels(t *testing.T) {
	tests := []struct {
		detail   string
		expected TaskID
	}{
		{"", TaskCaption},
		{DetailBasic, TaskCaption},
		{DetailDetailed, TaskDetailedCaption},
		{DetailMoreDetailed, TaskMoreDetailedCaption},
		// Unrecognized values fall back to the basic caption task.
		{"unsupported_value", TaskCaption},
	}

	for _, tt := range tests {
		t.Run(tt.detail, func(t *testing.T) {
			p, err := Caption{DetailLevel: tt.detail}.Prompt("")
			require.NoError(t, err)
			assert.Equal(t, tt.expected, p.Task)
			assert.Empty(t, p.Text)
		})
	}
}

func TestOCRTaskSelection(t *testing.T) {
	p, err := OCR{}.Prompt("")
	require.NoError(t, err)
	assert.Equal(t, TaskOCR, p.Task)

	p, err = OCR{StoreRegionInfo: true}.Prompt("")
	require.NoError(t, err)
	assert.Equal(t, TaskOCRWithRegion, p.Task)
}

func TestDetectionTaskSelection(t *testing.T) {
	tests := []struct {
		detType  string
		expected TaskID
	}{
		{"", TaskObjectDetection},
		{DetectObjects, TaskObjectDetection},
		{DetectDenseCaptions, TaskDenseRegionCaption},
		{DetectProposals, TaskRegionProposal},
		{DetectOpenVocab, TaskOpenVocabDetection},
		{"bogus", TaskObjectDetection},
	}

	for _, tt := range tests {
		p, err := Detection{Type: tt.detType}.Prompt("")
		require.NoError(t, err)
		assert.Equal(t, tt.expected, p.Task)
	}
}

func TestDetectionTextPromptPassthrough(t *testing.T) {
	p, err := Detection{Type: DetectOpenVocab, TextPrompt: "a red bicycle"}.Prompt("")
	require.NoError(t, err)
	assert.Equal(t, TaskOpenVocabDetection, p.Task)
	assert.Equal(t, "a red bicycle", p.Text)
	assert.Equal(t, "<OPEN_VOCABULARY_DETECTION>\na red bicycle", p.String())
}

func TestPhraseGroundingValidation(t *testing.T) {
	err := PhraseGrounding{}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "caption")
	assert.Contains(t, err.Error(), "caption_field")

	assert.NoError(t, PhraseGrounding{Caption: "a dog on a couch"}.Validate())
	assert.NoError(t, PhraseGrounding{CaptionField: "captions"}.Validate())
	assert.Error(t, PhraseGrounding{Caption: "x", CaptionField: "y"}.Validate())
}

func TestPhraseGroundingPrompt(t *testing.T) {
	p, err := PhraseGrounding{Caption: "a dog on a couch"}.Prompt("")
	require.NoError(t, err)
	assert.Equal(t, TaskPhraseGrounding, p.Task)
	assert.Equal(t, "a dog on a couch", p.Text)

	// Field-referencing grounding takes the resolved per-sample value.
	p, err = PhraseGrounding{CaptionField: "captions"}.Prompt("two cats")
	require.NoError(t, err)
	assert.Equal(t, "two cats", p.Text)

	// Unresolved field is an error at prompt time.
	_, err = PhraseGrounding{CaptionField: "captions"}.Prompt("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "captions")
}

func TestSegmentationValidation(t *testing.T) {
	err := Segmentation{}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expression")
	assert.Contains(t, err.Error(), "expression_field")

	assert.NoError(t, Segmentation{Expression: "the left wheel"}.Validate())
	assert.NoError(t, Segmentation{ExpressionField: "expr"}.Validate())
}

func TestSegmentationPromptPrefix(t *testing.T) {
	p, err := Segmentation{Expression: "the left wheel"}.Prompt("")
	require.NoError(t, err)
	assert.Equal(t, TaskSegmentation, p.Task)
	assert.Equal(t, "Expression: the left wheel", p.Text)
}

func TestFromConfigUnknownOperation(t *testing.T) {
	_, err := FromConfig(Config{Operation: "translate"})
	require.Error(t, err)
	for _, name := range OperationNames {
		assert.Contains(t, err.Error(), name)
	}
}

func TestFromConfigValidatesBeforeReturning(t *testing.T) {
	_, err := FromConfig(Config{Operation: "phrase_grounding"})
	assert.Error(t, err)

	_, err = FromConfig(Config{Operation: "segmentation"})
	assert.Error(t, err)

	op, err := FromConfig(Config{Operation: "segmentation", Expression: "the sky"})
	require.NoError(t, err)
	assert.Equal(t, "segmentation", op.Name())
	assert.Empty(t, op.FieldRef())

	op, err = FromConfig(Config{Operation: "segmentation", ExpressionField: "expr"})
	require.NoError(t, err)
	assert.Equal(t, "expr", op.FieldRef())
}

func TestFromConfigDefaults(t *testing.T) {
	op, err := FromConfig(Config{Operation: "caption"})
	require.NoError(t, err)
	p, err := op.Prompt("")
	require.NoError(t, err)
	assert.Equal(t, TaskCaption, p.Task)
}
