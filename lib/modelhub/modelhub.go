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

// Package modelhub pulls vision-language model builds from HuggingFace Hub
// and tracks what is installed locally.
package modelhub

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gomlx/go-huggingface/hub"
	"go.uber.org/zap"
)

// ProgressHandler is called as files land in the model directory.
type ProgressHandler func(current, total int64, fileName string)

// Client pulls onnxruntime-genai model builds from HuggingFace Hub.
type Client struct {
	token           string
	progressHandler ProgressHandler
	logger          *zap.Logger
}

// Option configures the client.
type Option func(*Client)

// WithToken sets the HuggingFace API token for gated repos.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithProgressHandler sets the download progress handler.
func WithProgressHandler(h ProgressHandler) Option {
	return func(c *Client) { c.progressHandler = h }
}

// WithLogger sets the client logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a hub client.
func NewClient(opts ...Option) *Client {
	c := &Client{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("modelhub")
	return c
}

// Pull downloads the genai build of repoID into destDir/owner/name and
// writes a manifest next to the files. variant names a repo subdirectory
// holding a genai_config.json; empty auto-selects the smallest CPU build.
// It returns the local model directory.
func (c *Client) Pull(ctx context.Context, repoID, destDir, variant string) (string, error) {
	owner, name, err := splitRepoID(repoID)
	if err != nil {
		return "", err
	}

	repo := hub.New(repoID)
	if c.token != "" {
		repo = repo.WithAuth(c.token)
	}

	var files []string
	for fileName, err := range repo.IterFileNames() {
		if err != nil {
			return "", fmt.Errorf("listing files in %s: %w", repoID, err)
		}
		files = append(files, fileName)
	}

	if variant == "" {
		variant = pickVariant(files)
		if variant != "" {
			c.logger.Info("Auto-selected variant", zap.String("variant", variant))
		}
	}
	toDownload := selectModelFiles(files, variant)
	if len(toDownload) == 0 {
		return "", fmt.Errorf("no model files found in %s (variant %q)", repoID, variant)
	}

	modelDir := filepath.Join(destDir, owner, name)
	if err := os.MkdirAll(modelDir, 0o755); err != nil {
		return "", fmt.Errorf("creating model directory: %w", err)
	}

	for _, fileName := range toDownload {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		localPath, err := repo.DownloadFile(fileName)
		if err != nil {
			return "", fmt.Errorf("downloading %s: %w", fileName, err)
		}

		// Variant subdirectories are flattened into the model dir.
		destName := filepath.Base(fileName)
		destPath := filepath.Join(modelDir, destName)
		if c.progressHandler != nil {
			c.progressHandler(0, 0, destName)
		}
		if err := copyFile(localPath, destPath); err != nil {
			return "", fmt.Errorf("copying %s: %w", fileName, err)
		}
		if c.progressHandler != nil {
			if info, err := os.Stat(destPath); err == nil {
				c.progressHandler(info.Size(), info.Size(), destName)
			}
		}
	}

	if err := writeManifest(modelDir, repoID, variant); err != nil {
		c.logger.Warn("Failed to write manifest", zap.Error(err))
	}
	return modelDir, nil
}

// ListRepoFiles returns all file names in a HuggingFace repo.
func (c *Client) ListRepoFiles(ctx context.Context, repoID string) ([]string, error) {
	repo := hub.New(repoID)
	if c.token != "" {
		repo = repo.WithAuth(c.token)
	}
	var files []string
	for fileName, err := range repo.IterFileNames() {
		if err != nil {
			return nil, fmt.Errorf("listing files: %w", err)
		}
		files = append(files, fileName)
	}
	return files, nil
}

// Variants returns the repo subdirectories holding a genai_config.json.
func (c *Client) Variants(ctx context.Context, repoID string) ([]string, error) {
	files, err := c.ListRepoFiles(ctx, repoID)
	if err != nil {
		return nil, err
	}
	dirs := variantDirs(files)
	slices.Sort(dirs)
	return dirs, nil
}

// ParseRef parses a model reference like "hf:owner/repo".
func ParseRef(ref string) (repoID string, isHub bool) {
	if after, ok := strings.CutPrefix(ref, "hf:"); ok {
		return after, true
	}
	return "", false
}

func splitRepoID(repoID string) (owner, name string, err error) {
	parts := strings.SplitN(repoID, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("repo ID %q is not owner/name", repoID)
	}
	return parts[0], parts[1], nil
}

// selectModelFiles picks the files an onnxruntime-genai build needs:
// genai_config.json, the ONNX graphs and their external data, tokenizer and
// processor files. When variant is set only that subdirectory is taken.
func selectModelFiles(files []string, variant string) []string {
	includeExact := map[string]bool{
		"genai_config.json":        true,
		"config.json":              true,
		"generation_config.json":   true,
		"tokenizer.json":           true,
		"tokenizer.model":          true,
		"tokenizer_config.json":    true,
		"special_tokens_map.json":  true,
		"added_tokens.json":        true,
		"preprocessor_config.json": true,
		"processor_config.json":    true,
	}
	includeSuffixes := []string{
		".onnx",
		".onnx.data",
		".onnx_data",
		".txt",
		".spm",
		".jinja",
	}

	var result []string
	for _, f := range files {
		if variant != "" && !strings.HasPrefix(f, variant+"/") {
			continue
		}
		base := filepath.Base(f)
		if includeExact[base] {
			result = append(result, f)
			continue
		}
		for _, suffix := range includeSuffixes {
			if strings.HasSuffix(base, suffix) {
				result = append(result, f)
				break
			}
		}
	}
	return result
}

// pickVariant chooses among the subdirectories that hold a
// genai_config.json, preferring int4 CPU builds, then any CPU build.
// Empty means the repo has a single flat build.
func pickVariant(files []string) string {
	dirs := variantDirs(files)
	if len(dirs) == 0 {
		return ""
	}
	slices.Sort(dirs)

	var cpu, cpuInt4 []string
	for _, dir := range dirs {
		lower := strings.ToLower(dir)
		if strings.Contains(lower, "cpu") {
			cpu = append(cpu, dir)
			if strings.Contains(lower, "int4") {
				cpuInt4 = append(cpuInt4, dir)
			}
		}
	}
	if len(cpuInt4) > 0 {
		return cpuInt4[0]
	}
	if len(cpu) > 0 {
		return cpu[0]
	}
	return dirs[0]
}

func variantDirs(files []string) []string {
	seen := make(map[string]bool)
	for _, f := range files {
		if filepath.Base(f) == "genai_config.json" {
			if dir := filepath.Dir(f); dir != "." {
				seen[dir] = true
			}
		}
	}
	dirs := make([]string, 0, len(seen))
	for dir := range seen {
		dirs = append(dirs, dir)
	}
	return dirs
}

func copyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	defer func() { _ = srcFile.Close() }()

	dstFile, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating destination: %w", err)
	}
	if _, err := io.Copy(dstFile, srcFile); err != nil {
		_ = dstFile.Close()
		return fmt.Errorf("copying: %w", err)
	}
	return dstFile.Close()
}
