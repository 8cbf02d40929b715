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

package florence

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/openfloret/floret/lib/tasks"
)

const locBins = 1000

var (
	tokenPattern   = regexp.MustCompile(`<loc_(\d+)>|<sep>`)
	specialPattern = regexp.MustCompile(`</?s>|<pad>`)
)

// token is one lexed element of the generated text: a location bin, a
// contour separator, or a span of plain text.
type token struct {
	kind tokenKind
	bin  int
	text string
}

type tokenKind int

const (
	tokenText tokenKind = iota
	tokenLoc
	tokenSep
)

// lex splits generated text into text spans, <loc_N> bins and <sep>
// separators. Special tokens are stripped beforehand and text spans are
// trimmed; empty spans are dropped.
func lex(generated string) ([]token, error) {
	generated = specialPattern.ReplaceAllString(generated, "")

	var toks []token
	last := 0
	for _, m := range tokenPattern.FindAllStringSubmatchIndex(generated, -1) {
		if text := strings.TrimSpace(generated[last:m[0]]); text != "" {
			toks = append(toks, token{kind: tokenText, text: text})
		}
		last = m[1]
		if m[2] < 0 {
			toks = append(toks, token{kind: tokenSep})
			continue
		}
		bin, err := strconv.Atoi(generated[m[2]:m[3]])
		if err != nil {
			return nil, fmt.Errorf("malformed location token %q: %w", generated[m[0]:m[1]], err)
		}
		if bin >= locBins {
			return nil, fmt.Errorf("location bin %d out of range [0,%d)", bin, locBins)
		}
		toks = append(toks, token{kind: tokenLoc, bin: bin})
	}
	if text := strings.TrimSpace(generated[last:]); text != "" {
		toks = append(toks, token{kind: tokenText, text: text})
	}
	return toks, nil
}

// dequantize maps a location bin to an absolute coordinate. Bins address
// cell centers, so bin 0 on a 1000-wide image is 0.5, not 0.
func dequantize(bin int, size float64) float64 {
	return (float64(bin) + 0.5) / locBins * size
}

// Decode parses the text generated for task into a structured Result.
// width and height are the dimensions of the image the prompt was built
// for, in pixels.
func Decode(task tasks.TaskID, generated string, width, height int) (*Result, error) {
	if IsTextTask(task) {
		return &Result{
			Task: task,
			Text: strings.TrimSpace(specialPattern.ReplaceAllString(generated, "")),
		}, nil
	}

	toks, err := lex(generated)
	if err != nil {
		return nil, fmt.Errorf("decoding %s output: %w", task, err)
	}

	w, h := float64(width), float64(height)
	res := &Result{Task: task}
	switch task {
	case tasks.TaskObjectDetection, tasks.TaskDenseRegionCaption,
		tasks.TaskRegionProposal, tasks.TaskPhraseGrounding:
		res.Bboxes, res.Labels, err = decodeBoxes(toks, 4, w, h)
	case tasks.TaskOpenVocabDetection:
		res.Bboxes, res.BboxesLabels, err = decodeBoxes(toks, 4, w, h)
	case tasks.TaskOCRWithRegion:
		res.QuadBoxes, res.Labels, err = decodeBoxes(toks, 8, w, h)
	case tasks.TaskSegmentation:
		res.Polygons, err = decodePolygons(toks, w, h)
	default:
		return nil, fmt.Errorf("no decoder for task %s", task)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s output: %w", task, err)
	}
	return res, nil
}

// decodeBoxes parses a stream of phrase-then-coordinates groups. Each
// phrase may be followed by any number of complete coordinate groups of
// stride location tokens, and each group yields one box carrying that
// phrase as its label. Leading coordinate groups with no phrase get an
// empty label.
func decodeBoxes(toks []token, stride int, w, h float64) ([][]float64, []string, error) {
	var (
		boxes  [][]float64
		labels []string
		phrase string
		run    []float64
	)
	flush := func() error {
		if len(run) == 0 {
			return nil
		}
		if len(run)%stride != 0 {
			return fmt.Errorf("got %d location tokens, want a multiple of %d", len(run), stride)
		}
		for i := 0; i < len(run); i += stride {
			boxes = append(boxes, run[i:i+stride])
			labels = append(labels, phrase)
		}
		run = nil
		return nil
	}
	for _, tok := range toks {
		switch tok.kind {
		case tokenText:
			if err := flush(); err != nil {
				return nil, nil, err
			}
			phrase = tok.text
		case tokenLoc:
			size := w
			if len(run)%2 == 1 {
				size = h
			}
			run = append(run, dequantize(tok.bin, size))
		case tokenSep:
			if err := flush(); err != nil {
				return nil, nil, err
			}
		}
	}
	if err := flush(); err != nil {
		return nil, nil, err
	}
	return boxes, labels, nil
}

// decodePolygons parses segmentation output. Each text span starts a new
// polygon entry and <sep> separates the contours within an entry. Output
// with no text spans produces a single entry.
func decodePolygons(toks []token, w, h float64) ([][][]float64, error) {
	var (
		polygons [][][]float64
		entry    [][]float64
		contour  []float64
		started  bool
	)
	closeContour := func() error {
		if len(contour) == 0 {
			return nil
		}
		if len(contour)%2 != 0 {
			return fmt.Errorf("contour has %d location tokens, want an even count", len(contour))
		}
		entry = append(entry, contour)
		contour = nil
		return nil
	}
	closeEntry := func() error {
		if err := closeContour(); err != nil {
			return err
		}
		if len(entry) > 0 {
			polygons = append(polygons, entry)
			entry = nil
		}
		return nil
	}
	for _, tok := range toks {
		switch tok.kind {
		case tokenText:
			if started {
				if err := closeEntry(); err != nil {
					return nil, err
				}
			}
			started = true
		case tokenLoc:
			size := w
			if len(contour)%2 == 1 {
				size = h
			}
			contour = append(contour, dequantize(tok.bin, size))
		case tokenSep:
			if err := closeContour(); err != nil {
				return nil, err
			}
		}
	}
	if err := closeEntry(); err != nil {
		return nil, err
	}
	return polygons, nil
}
