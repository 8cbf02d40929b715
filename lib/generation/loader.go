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

//go:build !onnx || !ORT

package generation

import (
	"errors"

	"go.uber.org/zap"
)

// ErrNoBackend is returned when the binary was built without an inference
// backend.
var ErrNoBackend = errors.New("no inference backend: rebuild with -tags \"onnx ORT\" and the onnxruntime-genai shared library installed")

// LoadGenerator loads a vision-language model. Without ONNX support there
// is no backend to run it on.
func LoadGenerator(modelPath string, poolSize int, logger *zap.Logger) (Generator, error) {
	if logger != nil {
		logger.Warn("Built without ONNX runtime support",
			zap.String("modelPath", modelPath),
			zap.Int("poolSize", poolSize))
	}
	return nil, ErrNoBackend
}
