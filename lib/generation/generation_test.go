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

package generation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetTextContent(t *testing.T) {
	msg := Message{Role: "user", Content: "plain"}
	assert.Equal(t, "plain", msg.GetTextContent())

	msg = Message{
		Role: "user",
		Parts: []ContentPart{
			TextPart("<OD>"),
			ImagePart("/data/img.png"),
			TextPart("\nextra"),
		},
	}
	assert.Equal(t, "<OD>\nextra", msg.GetTextContent())
}

func TestImageURLs(t *testing.T) {
	msg := Message{
		Role: "user",
		Parts: []ContentPart{
			TextPart("<CAPTION>"),
			ImagePart("/data/a.png"),
			ImagePart("/data/b.png"),
		},
	}
	assert.Equal(t, []string{"/data/a.png", "/data/b.png"}, msg.ImageURLs())
	assert.True(t, msg.HasImages())

	assert.False(t, Message{Role: "user", Content: "text only"}.HasImages())
}
