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
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openfloret/floret/lib/generation"
	"github.com/openfloret/floret/lib/modelhub"
)

func writeModelDir(t *testing.T, root, owner, name, source string) {
	t.Helper()
	dir := filepath.Join(root, owner, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	manifest := `{"name":"` + name + `","source":"` + source + `","files":[],"downloaded_at":"2025-11-02T12:00:00Z"}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, modelhub.ManifestFilename), []byte(manifest), 0o644))
}

func TestRegistryDiscovery(t *testing.T) {
	root := t.TempDir()
	writeModelDir(t, root, "microsoft", "Florence-2-base", "microsoft/Florence-2-base")
	writeModelDir(t, root, "microsoft", "Florence-2-large", "microsoft/Florence-2-large")

	registry, err := NewRunnerRegistry(RegistryConfig{ModelsDir: root}, nil)
	require.NoError(t, err)
	defer registry.Close()

	assert.ElementsMatch(t, []string{
		"microsoft/Florence-2-base",
		"microsoft/Florence-2-large",
	}, registry.List())
	assert.False(t, registry.IsLoaded("microsoft/Florence-2-base"))
}

func TestRegistryLazyLoadAndPin(t *testing.T) {
	root := t.TempDir()
	writeModelDir(t, root, "microsoft", "Florence-2-base", "microsoft/Florence-2-base")

	registry, err := NewRunnerRegistry(RegistryConfig{ModelsDir: root}, zap.NewNop())
	require.NoError(t, err)
	defer registry.Close()

	var loads atomic.Int64
	gen := &mockGenerator{reply: "x"}
	registry.load = func(modelPath string, poolSize int, logger *zap.Logger) (generation.Generator, error) {
		loads.Add(1)
		assert.Equal(t, filepath.Join(root, "microsoft", "Florence-2-base"), modelPath)
		return gen, nil
	}

	first, err := registry.Acquire("microsoft/Florence-2-base")
	require.NoError(t, err)
	second, err := registry.Acquire("microsoft/Florence-2-base")
	require.NoError(t, err)

	assert.Same(t, first.(*mockGenerator), second.(*mockGenerator))
	assert.EqualValues(t, 1, loads.Load())
	assert.True(t, registry.IsLoaded("microsoft/Florence-2-base"))

	registry.Release("microsoft/Florence-2-base")
	registry.Release("microsoft/Florence-2-base")
}

func TestRegistryUnknownModel(t *testing.T) {
	registry, err := NewRunnerRegistry(RegistryConfig{ModelsDir: t.TempDir()}, nil)
	require.NoError(t, err)
	defer registry.Close()

	_, err = registry.Acquire("nobody/nothing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestRegistryCloseUnloads(t *testing.T) {
	root := t.TempDir()
	writeModelDir(t, root, "microsoft", "Florence-2-base", "microsoft/Florence-2-base")

	registry, err := NewRunnerRegistry(RegistryConfig{ModelsDir: root}, nil)
	require.NoError(t, err)

	gen := &mockGenerator{}
	registry.load = func(string, int, *zap.Logger) (generation.Generator, error) {
		return gen, nil
	}
	_, err = registry.Acquire("microsoft/Florence-2-base")
	require.NoError(t, err)
	registry.Release("microsoft/Florence-2-base")

	require.NoError(t, registry.Close())
	assert.True(t, gen.closed)
}
