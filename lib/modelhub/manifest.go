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
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/bytedance/sonic"
)

// ManifestFilename is the per-model manifest written alongside the files.
const ManifestFilename = "floret_manifest.json"

// Manifest records where a local model came from and what it contains.
type Manifest struct {
	Name         string      `json:"name"`
	Source       string      `json:"source"`
	Variant      string      `json:"variant,omitempty"`
	Files        []ModelFile `json:"files"`
	DownloadedAt time.Time   `json:"downloaded_at"`
}

// ModelFile is one file of an installed model.
type ModelFile struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// InstalledModel pairs a manifest with its local directory.
type InstalledModel struct {
	Dir      string
	Manifest Manifest
}

func writeManifest(modelDir, repoID, variant string) error {
	files, err := scanModelFiles(modelDir)
	if err != nil {
		return err
	}
	manifest := Manifest{
		Name:         filepath.Base(modelDir),
		Source:       repoID,
		Variant:      variant,
		Files:        files,
		DownloadedAt: time.Now().UTC(),
	}
	data, err := sonic.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	return os.WriteFile(filepath.Join(modelDir, ManifestFilename), data, 0o644)
}

func scanModelFiles(modelDir string) ([]ModelFile, error) {
	entries, err := os.ReadDir(modelDir)
	if err != nil {
		return nil, fmt.Errorf("scanning model directory: %w", err)
	}
	var files []ModelFile
	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == ManifestFilename {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, err
		}
		files = append(files, ModelFile{Name: entry.Name(), Size: info.Size()})
	}
	return files, nil
}

// ListInstalled walks rootDir and returns every model directory that
// carries a manifest.
func ListInstalled(rootDir string) ([]InstalledModel, error) {
	var models []InstalledModel
	err := filepath.WalkDir(rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == rootDir {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() || d.Name() != ManifestFilename {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		var manifest Manifest
		if err := sonic.Unmarshal(data, &manifest); err != nil {
			return fmt.Errorf("decoding manifest %s: %w", path, err)
		}
		models = append(models, InstalledModel{
			Dir:      filepath.Dir(path),
			Manifest: manifest,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return models, nil
}
