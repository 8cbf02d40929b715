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
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"go.uber.org/zap"

	"github.com/openfloret/floret/lib/generation"
	"github.com/openfloret/floret/lib/modelhub"
)

// RunnerRegistry manages model runtimes with lazy loading and TTL-based
// unloading. Models are discovered from their manifests at startup but
// loaded only when first acquired.
type RunnerRegistry struct {
	modelsDir string
	poolSize  int
	logger    *zap.Logger

	// Model discovery (paths only, not loaded).
	discovered map[string]modelhub.InstalledModel
	mu         sync.RWMutex

	cache *ttlcache.Cache[string, generation.Generator]

	// Reference counting prevents eviction during active use.
	refCounts   map[string]int
	refCountsMu sync.Mutex

	keepAlive time.Duration

	// Replaced by tests; defaults to generation.LoadGenerator.
	load func(modelPath string, poolSize int, logger *zap.Logger) (generation.Generator, error)
}

// RegistryConfig configures the runner registry.
type RegistryConfig struct {
	ModelsDir string
	PoolSize  int           // Sessions per loaded model.
	KeepAlive time.Duration // How long to keep idle models loaded (0 = forever).
	MaxLoaded uint64        // Max models in memory (0 = unlimited).
}

// NewRunnerRegistry discovers installed models under config.ModelsDir and
// returns a registry that loads them on demand.
func NewRunnerRegistry(config RegistryConfig, logger *zap.Logger) (*RunnerRegistry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("registry")

	keepAlive := config.KeepAlive
	if keepAlive == 0 {
		keepAlive = ttlcache.NoTTL
	}

	registry := &RunnerRegistry{
		modelsDir:  config.ModelsDir,
		poolSize:   config.PoolSize,
		logger:     logger,
		discovered: make(map[string]modelhub.InstalledModel),
		refCounts:  make(map[string]int),
		keepAlive:  keepAlive,
		load:       generation.LoadGenerator,
	}

	cacheOpts := []ttlcache.Option[string, generation.Generator]{
		ttlcache.WithTTL[string, generation.Generator](keepAlive),
	}
	if config.MaxLoaded > 0 {
		cacheOpts = append(cacheOpts,
			ttlcache.WithCapacity[string, generation.Generator](config.MaxLoaded))
	}
	registry.cache = ttlcache.New(cacheOpts...)

	// Manual deletion is handled synchronously by Close; the callback only
	// covers TTL expiry and capacity eviction.
	registry.cache.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, generation.Generator]) {
		if reason == ttlcache.EvictionReasonDeleted {
			return
		}

		registry.refCountsMu.Lock()
		if refCount := registry.refCounts[item.Key()]; refCount > 0 {
			// Still in use. Re-add while holding the lock so Release
			// cannot race with the re-insert.
			registry.cache.Set(item.Key(), item.Value(), registry.keepAlive)
			registry.refCountsMu.Unlock()
			logger.Warn("Preventing eviction of model with active references",
				zap.String("model", item.Key()),
				zap.Int("refCount", refCount))
			return
		}
		registry.refCountsMu.Unlock()

		logger.Info("Evicting idle model", zap.String("model", item.Key()))
		if err := item.Value().Close(); err != nil {
			logger.Warn("Error closing evicted model",
				zap.String("model", item.Key()),
				zap.Error(err))
		}
	})

	go registry.cache.Start()

	if err := registry.discoverModels(); err != nil {
		registry.cache.Stop()
		return nil, err
	}

	logger.Info("Runner registry initialized",
		zap.Int("models_discovered", len(registry.discovered)),
		zap.Duration("keep_alive", keepAlive))
	return registry, nil
}

func (r *RunnerRegistry) discoverModels() error {
	if r.modelsDir == "" {
		r.logger.Info("No models directory configured")
		return nil
	}
	installed, err := modelhub.ListInstalled(r.modelsDir)
	if err != nil {
		return fmt.Errorf("discovering models: %w", err)
	}
	for _, model := range installed {
		r.discovered[model.Manifest.Source] = model
		r.logger.Info("Discovered model (not loaded)",
			zap.String("name", model.Manifest.Source),
			zap.String("path", model.Dir))
	}
	return nil
}

// Acquire returns the named model's generator, loading it if necessary,
// and pins it against eviction. Callers must Release when done.
func (r *RunnerRegistry) Acquire(name string) (generation.Generator, error) {
	gen, err := r.get(name)
	if err != nil {
		return nil, err
	}

	r.refCountsMu.Lock()
	r.refCounts[name]++
	count := r.refCounts[name]
	r.refCountsMu.Unlock()

	r.logger.Debug("Acquired model",
		zap.String("model", name),
		zap.Int("refCount", count))
	return gen, nil
}

// Release unpins a model acquired with Acquire.
func (r *RunnerRegistry) Release(name string) {
	r.refCountsMu.Lock()
	if r.refCounts[name] > 0 {
		r.refCounts[name]--
	}
	count := r.refCounts[name]
	r.refCountsMu.Unlock()

	r.logger.Debug("Released model",
		zap.String("model", name),
		zap.Int("refCount", count))
}

func (r *RunnerRegistry) get(name string) (generation.Generator, error) {
	if item := r.cache.Get(name); item != nil {
		r.logger.Debug("Model cache hit", zap.String("model", name))
		return item.Value(), nil
	}

	r.mu.RLock()
	info, ok := r.discovered[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("model not found: %s (run pull first)", name)
	}

	r.logger.Info("Loading model on demand",
		zap.String("model", name),
		zap.String("path", info.Dir))
	start := time.Now()
	gen, err := r.load(info.Dir, r.poolSize, r.logger.Named(name))
	if err != nil {
		return nil, fmt.Errorf("loading model %s: %w", name, err)
	}
	recordModelLoadDuration(name, time.Since(start).Seconds())

	r.cache.Set(name, gen, r.keepAlive)
	return gen, nil
}

// List returns the discovered model names, loaded or not.
func (r *RunnerRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.discovered))
	for name := range r.discovered {
		names = append(names, name)
	}
	return names
}

// IsLoaded reports whether a model is currently in memory.
func (r *RunnerRegistry) IsLoaded(name string) bool {
	return r.cache.Has(name)
}

// Close stops the cache and unloads all models.
func (r *RunnerRegistry) Close() error {
	r.logger.Info("Closing runner registry")
	r.cache.Stop()
	for _, key := range r.cache.Keys() {
		if item := r.cache.Get(key); item != nil {
			if err := item.Value().Close(); err != nil {
				r.logger.Warn("Error closing model",
					zap.String("model", key),
					zap.Error(err))
			}
		}
	}
	r.cache.DeleteAll()
	return nil
}
