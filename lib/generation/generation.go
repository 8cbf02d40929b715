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

// Package generation defines the model boundary: a Generator turns a
// multimodal prompt into generated text. The ONNX-backed implementation
// lives behind build tags; builds without it get a loader that reports
// the missing support.
package generation

import (
	"context"
	"strings"
)

// Generator is the interface for vision-language generation models.
type Generator interface {
	Generate(ctx context.Context, messages []Message, opts GenerateOptions) (*GenerateResult, error)
	Close() error
}

// Message is one prompt message with optional multimodal content.
type Message struct {
	Role    string        `json:"role"`
	Content string        `json:"content,omitempty"`
	Parts   []ContentPart `json:"parts,omitempty"`
}

// ContentPart is a part of multimodal content.
type ContentPart struct {
	Type     string `json:"type"`                // "text" or "image_url"
	Text     string `json:"text,omitempty"`      // For type="text"
	ImageURL string `json:"image_url,omitempty"` // For type="image_url"
}

// GetTextContent returns the text content of the message. If Parts is set,
// it concatenates all text parts; otherwise it returns the Content field.
func (m Message) GetTextContent() string {
	if len(m.Parts) == 0 {
		return m.Content
	}
	var sb strings.Builder
	for _, part := range m.Parts {
		if part.Type == "text" {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}

// ImageURLs returns the image references of the message, in order.
func (m Message) ImageURLs() []string {
	var urls []string
	for _, part := range m.Parts {
		if part.Type == "image_url" && part.ImageURL != "" {
			urls = append(urls, part.ImageURL)
		}
	}
	return urls
}

// HasImages reports whether this message contains any image parts.
func (m Message) HasImages() bool {
	return len(m.ImageURLs()) > 0
}

// GenerateOptions holds decoding parameters. Florence-2 tasks are decoded
// deterministically with beam search, so there are no sampling knobs here.
type GenerateOptions struct {
	MaxNewTokens int `json:"max_new_tokens,omitempty"`
	NumBeams     int `json:"num_beams,omitempty"`
}

// GenerateResult holds the output of one generation call.
type GenerateResult struct {
	Text         string `json:"text"`
	TokensUsed   int    `json:"tokens_used"`
	FinishReason string `json:"finish_reason"` // "stop" or "length"
}

// TextPart creates a text content part.
func TextPart(text string) ContentPart {
	return ContentPart{
		Type: "text",
		Text: text,
	}
}

// ImagePart creates an image content part. The URL may be a local file
// path or a data URL.
func ImagePart(imageURL string) ContentPart {
	return ContentPart{
		Type:     "image_url",
		ImageURL: imageURL,
	}
}
