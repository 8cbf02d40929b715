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

package modelhub

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectModelFilesFlatRepo(t *testing.T) {
	files := []string{
		"genai_config.json",
		"tokenizer.json",
		"tokenizer_config.json",
		"model.onnx",
		"model.onnx.data",
		"vocab.txt",
		"README.md",
		"sample.png",
	}
	selected := selectModelFiles(files, "")
	assert.ElementsMatch(t, []string{
		"genai_config.json",
		"tokenizer.json",
		"tokenizer_config.json",
		"model.onnx",
		"model.onnx.data",
		"vocab.txt",
	}, selected)
}

func TestSelectModelFilesVariantSubdir(t *testing.T) {
	files := []string{
		"cpu-int4/genai_config.json",
		"cpu-int4/model.onnx",
		"gpu-fp16/genai_config.json",
		"gpu-fp16/model.onnx",
		"README.md",
	}
	selected := selectModelFiles(files, "cpu-int4")
	assert.ElementsMatch(t, []string{
		"cpu-int4/genai_config.json",
		"cpu-int4/model.onnx",
	}, selected)
}

func TestPickVariantPrefersCPUInt4(t *testing.T) {
	files := []string{
		"gpu-fp16/genai_config.json",
		"cpu-int4/genai_config.json",
		"cpu-fp32/genai_config.json",
	}
	assert.Equal(t, "cpu-int4", pickVariant(files))

	assert.Equal(t, "cpu-fp32", pickVariant([]string{
		"gpu-fp16/genai_config.json",
		"cpu-fp32/genai_config.json",
	}))

	assert.Empty(t, pickVariant([]string{"genai_config.json", "model.onnx"}))
}

func TestParseRef(t *testing.T) {
	repoID, isHub := ParseRef("hf:microsoft/Florence-2-base")
	assert.True(t, isHub)
	assert.Equal(t, "microsoft/Florence-2-base", repoID)

	_, isHub = ParseRef("/models/florence")
	assert.False(t, isHub)
}

func TestSplitRepoID(t *testing.T) {
	owner, name, err := splitRepoID("microsoft/Florence-2-base")
	require.NoError(t, err)
	assert.Equal(t, "microsoft", owner)
	assert.Equal(t, "Florence-2-base", name)

	_, _, err = splitRepoID("florence")
	assert.Error(t, err)
}

func TestManifestRoundTrip(t *testing.T) {
	root := t.TempDir()
	modelDir := filepath.Join(root, "microsoft", "Florence-2-base")
	require.NoError(t, os.MkdirAll(modelDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(modelDir, "model.onnx"), []byte("onnx"), 0o644))
	require.NoError(t, writeManifest(modelDir, "microsoft/Florence-2-base", "cpu-int4"))

	models, err := ListInstalled(root)
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, modelDir, models[0].Dir)
	assert.Equal(t, "microsoft/Florence-2-base", models[0].Manifest.Source)
	assert.Equal(t, "cpu-int4", models[0].Manifest.Variant)
	require.Len(t, models[0].Manifest.Files, 1)
	assert.Equal(t, "model.onnx", models[0].Manifest.Files[0].Name)
	assert.EqualValues(t, 4, models[0].Manifest.Files[0].Size)
}

func TestListInstalledMissingRoot(t *testing.T) {
	models, err := ListInstalled(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, models)
}
