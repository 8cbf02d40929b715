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

package dataset

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// sidecarSuffix is appended to the image name (extension stripped) to form
// the per-sample label file.
const sidecarSuffix = ".labels.json"

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
	".webp": true,
}

// DirDataset is a directory of image files with JSON sidecar fields.
// Existing sidecars are loaded at open time, so interrupted runs pick up
// previously written fields.
type DirDataset struct {
	dir     string
	samples []*Sample
	logger  *zap.Logger
}

var _ Dataset = (*DirDataset)(nil)

// OpenDir scans dir for image files and loads their sidecars.
func OpenDir(dir string, logger *zap.Logger) (*DirDataset, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading dataset directory: %w", err)
	}

	ds := &DirDataset{dir: dir, logger: logger.Named("dataset")}
	for _, entry := range entries {
		if entry.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		sample := &Sample{Path: filepath.Join(dir, entry.Name())}
		if err := loadSidecar(sample); err != nil {
			return nil, err
		}
		ds.samples = append(ds.samples, sample)
	}
	ds.logger.Info("Opened dataset directory",
		zap.String("dir", dir),
		zap.Int("samples", len(ds.samples)))
	return ds, nil
}

// Samples returns the samples in directory order.
func (d *DirDataset) Samples() []*Sample {
	return d.samples
}

// Save writes the sample's fields to its sidecar file.
func (d *DirDataset) Save(sample *Sample) error {
	data, err := sonic.MarshalIndent(sample.Fields, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding sidecar: %w", err)
	}
	return os.WriteFile(sidecarPath(sample.Path), data, 0o644)
}

func sidecarPath(imagePath string) string {
	return strings.TrimSuffix(imagePath, filepath.Ext(imagePath)) + sidecarSuffix
}

func loadSidecar(sample *Sample) error {
	data, err := os.ReadFile(sidecarPath(sample.Path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading sidecar for %s: %w", sample.Path, err)
	}
	if err := sonic.Unmarshal(data, &sample.Fields); err != nil {
		return fmt.Errorf("decoding sidecar for %s: %w", sample.Path, err)
	}
	return nil
}

// ImageSize reads the pixel dimensions of an image file without decoding
// the full raster.
func ImageSize(path string) (width, height int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("opening image: %w", err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("decoding image header %s: %w", path, err)
	}
	return cfg.Width, cfg.Height, nil
}
