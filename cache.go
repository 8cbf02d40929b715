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
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/jellydator/ttlcache/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/openfloret/floret/lib/dataset"
	"github.com/openfloret/floret/lib/labels"
)

// AnnotationCacheTTL is the default TTL for cached annotations.
const AnnotationCacheTTL = 10 * time.Minute

// CachedAnnotator wraps an Annotator with content-addressed caching.
// The key covers model, operation, resolved field text and image bytes, so
// re-running a dataset after adding files only pays for the new images.
type CachedAnnotator struct {
	annotator dataset.Annotator
	model     string
	operation string
	cache     *ttlcache.Cache[string, labels.Annotation]
	sfGroup   *singleflight.Group
	logger    *zap.Logger

	hits   atomic.Uint64
	misses atomic.Uint64
	sfHits atomic.Uint64
}

var _ dataset.Annotator = (*CachedAnnotator)(nil)

// NewAnnotationCache creates a TTL cache suitable for CachedAnnotator,
// shared across adapters when several operations run over one dataset.
func NewAnnotationCache(ttl time.Duration) *ttlcache.Cache[string, labels.Annotation] {
	if ttl == 0 {
		ttl = AnnotationCacheTTL
	}
	cache := ttlcache.New(
		ttlcache.WithTTL[string, labels.Annotation](ttl),
	)
	go cache.Start()
	return cache
}

// NewCachedAnnotator wraps annotator with caching. model and operation
// label the cache key and metrics.
func NewCachedAnnotator(
	annotator dataset.Annotator,
	model, operation string,
	cache *ttlcache.Cache[string, labels.Annotation],
	logger *zap.Logger,
) *CachedAnnotator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedAnnotator{
		annotator: annotator,
		model:     model,
		operation: operation,
		cache:     cache,
		sfGroup:   &singleflight.Group{},
		logger:    logger.Named("cache"),
	}
}

// FieldRef passes through to the wrapped annotator.
func (c *CachedAnnotator) FieldRef() string {
	return c.annotator.FieldRef()
}

// Annotate returns a cached annotation when the same model, operation,
// field text and image bytes were seen before; concurrent identical
// requests are deduplicated.
func (c *CachedAnnotator) Annotate(ctx context.Context, imagePath, fieldText string) (labels.Annotation, error) {
	key, err := c.cacheKey(imagePath, fieldText)
	if err != nil {
		return nil, err
	}

	if item := c.cache.Get(key); item != nil {
		c.hits.Add(1)
		recordCacheHit("annotation")
		c.logger.Debug("Annotation cache hit",
			zap.String("model", c.model),
			zap.String("image", imagePath))
		return item.Value(), nil
	}

	result, err, shared := c.sfGroup.Do(key, func() (any, error) {
		c.misses.Add(1)
		recordCacheMiss("annotation")

		annotation, err := c.annotator.Annotate(ctx, imagePath, fieldText)
		if err != nil {
			return nil, err
		}
		c.cache.Set(key, annotation, ttlcache.DefaultTTL)
		return annotation, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.sfHits.Add(1)
	}
	if result == nil {
		return nil, nil
	}
	return result.(labels.Annotation), nil
}

// Stats returns hit, miss and singleflight-dedup counts.
func (c *CachedAnnotator) Stats() (hits, misses, sfHits uint64) {
	return c.hits.Load(), c.misses.Load(), c.sfHits.Load()
}

func (c *CachedAnnotator) cacheKey(imagePath, fieldText string) (string, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("reading image for cache key: %w", err)
	}

	h := xxhash.New()
	_, _ = h.WriteString(c.model)
	_, _ = h.WriteString("|")
	_, _ = h.WriteString(c.operation)
	_, _ = h.WriteString("|")
	_, _ = h.WriteString(fieldText)
	_, _ = h.WriteString("|")
	_, _ = h.Write(data)
	return fmt.Sprintf("%x", h.Sum64()), nil
}
