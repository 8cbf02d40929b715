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

package floret

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfloret/floret/lib/labels"
)

type countingAnnotator struct {
	calls atomic.Int64
}

func (c *countingAnnotator) FieldRef() string { return "" }

func (c *countingAnnotator) Annotate(_ context.Context, imagePath, fieldText string) (labels.Annotation, error) {
	c.calls.Add(1)
	return labels.Text("caption " + fieldText), nil
}

func TestCachedAnnotatorHitPath(t *testing.T) {
	inner := &countingAnnotator{}
	cache := NewAnnotationCache(0)
	defer cache.Stop()
	cached := NewCachedAnnotator(inner, "florence-2-base", "caption", cache, nil)

	img := testImage(t, 4, 4)
	ctx := context.Background()

	first, err := cached.Annotate(ctx, img, "")
	require.NoError(t, err)
	second, err := cached.Annotate(ctx, img, "")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, inner.calls.Load())

	hits, misses, _ := cached.Stats()
	assert.EqualValues(t, 1, hits)
	assert.EqualValues(t, 1, misses)
}

func TestCachedAnnotatorKeyCoversFieldText(t *testing.T) {
	inner := &countingAnnotator{}
	cache := NewAnnotationCache(0)
	defer cache.Stop()
	cached := NewCachedAnnotator(inner, "florence-2-base", "phrase_grounding", cache, nil)

	img := testImage(t, 4, 4)
	ctx := context.Background()

	a, err := cached.Annotate(ctx, img, "a dog")
	require.NoError(t, err)
	b, err := cached.Annotate(ctx, img, "a cat")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.EqualValues(t, 2, inner.calls.Load())
}

func TestCachedAnnotatorMissingImage(t *testing.T) {
	cache := NewAnnotationCache(0)
	defer cache.Stop()
	cached := NewCachedAnnotator(&countingAnnotator{}, "m", "caption", cache, nil)

	_, err := cached.Annotate(context.Background(), "/does/not/exist.png", "")
	require.Error(t, err)
}
