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

//go:build onnx && ORT

package generation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"

	"github.com/bytedance/sonic"
	"github.com/knights-analytics/ortgenai"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// LoadGenerator loads a vision-language model through onnxruntime-genai,
// holding poolSize sessions for concurrent generation.
func LoadGenerator(modelPath string, poolSize int, logger *zap.Logger) (Generator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if poolSize <= 0 {
		poolSize = min(runtime.NumCPU(), 4)
	}

	logger.Info("Initializing pooled vision generator",
		zap.String("modelPath", modelPath),
		zap.Int("poolSize", poolSize))

	sessions := make([]*ortgenai.Session, poolSize)
	for i := 0; i < poolSize; i++ {
		session, err := createSession(modelPath)
		if err != nil {
			for j := 0; j < i; j++ {
				sessions[j].Destroy()
			}
			return nil, fmt.Errorf("creating session %d: %w", i, err)
		}
		sessions[i] = session
		logger.Debug("Created generative session", zap.Int("index", i))
	}

	return &pooledVisionGenerator{
		sessions:      sessions,
		sem:           semaphore.NewWeighted(int64(poolSize)),
		logger:        logger,
		poolSize:      poolSize,
		modelPath:     modelPath,
		contextLength: readContextLength(modelPath),
	}, nil
}

// pooledVisionGenerator round-robins requests across ortgenai sessions.
type pooledVisionGenerator struct {
	sessions      []*ortgenai.Session
	sem           *semaphore.Weighted
	nextSession   atomic.Uint64
	logger        *zap.Logger
	poolSize      int
	modelPath     string
	contextLength int
}

var _ Generator = (*pooledVisionGenerator)(nil)

func (p *pooledVisionGenerator) Generate(ctx context.Context, messages []Message, opts GenerateOptions) (*GenerateResult, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer p.sem.Release(1)

	idx := int(p.nextSession.Add(1) % uint64(p.poolSize))
	session := p.sessions[idx]

	genOpts := &ortgenai.GenerationOptions{
		MaxLength: p.maxLength(opts),
		BatchSize: 1,
	}

	var (
		outputChan <-chan ortgenai.SequenceDelta
		errChan    <-chan error
		err        error
	)

	imageURLs := collectImageURLs(messages)
	if len(imageURLs) > 0 {
		images, loadErr := ortgenai.LoadImages(imageURLs)
		if loadErr != nil {
			return nil, fmt.Errorf("loading images: %w", loadErr)
		}
		defer images.Destroy()

		processor, procErr := ortgenai.CreateMultiModalProcessor(session.GetModel())
		if procErr != nil {
			return nil, fmt.Errorf("creating multimodal processor: %w", procErr)
		}
		defer processor.Destroy()

		prompt := buildVisionPrompt(messages, len(imageURLs))
		namedTensors, tensorErr := processor.ProcessImages(prompt, images)
		if tensorErr != nil {
			return nil, fmt.Errorf("processing images: %w", tensorErr)
		}
		defer namedTensors.Destroy()

		outputChan, errChan, err = session.GenerateWithTensors(ctx, namedTensors, genOpts)
	} else {
		ortMessages := make([]ortgenai.Message, len(messages))
		for i, m := range messages {
			ortMessages[i] = ortgenai.Message{Role: m.Role, Content: m.GetTextContent()}
		}
		outputChan, errChan, err = session.Generate(ctx, [][]ortgenai.Message{ortMessages}, genOpts)
	}
	if err != nil {
		return nil, fmt.Errorf("starting generation: %w", err)
	}

	var generated strings.Builder
	var tokenCount int
	for delta := range outputChan {
		generated.WriteString(delta.Tokens)
		tokenCount++
	}
	for err := range errChan {
		if err != nil {
			return nil, fmt.Errorf("generation error: %w", err)
		}
	}

	return &GenerateResult{
		Text:         generated.String(),
		TokensUsed:   tokenCount,
		FinishReason: "stop",
	}, nil
}

func (p *pooledVisionGenerator) Close() error {
	p.logger.Info("Closing pooled vision generator", zap.Int("poolSize", p.poolSize))
	for _, session := range p.sessions {
		if session != nil {
			session.Destroy()
		}
	}
	return nil
}

// maxLength maps MaxNewTokens to ortgenai's MaxLength, which counts the
// whole sequence including the prompt.
func (p *pooledVisionGenerator) maxLength(opts GenerateOptions) int {
	maxLength := p.contextLength
	if maxLength <= 0 {
		maxLength = 4096
	}
	if opts.MaxNewTokens > 0 {
		// Florence-2 prompts are short, a fixed headroom covers them.
		want := opts.MaxNewTokens + 512
		if want < maxLength {
			maxLength = want
		}
	}
	return maxLength
}

// buildVisionPrompt renders the text content of messages with image
// placeholder tokens prepended, one per image, the way the multimodal
// processor expects.
func buildVisionPrompt(messages []Message, imageCount int) string {
	var sb strings.Builder
	for i := 0; i < imageCount; i++ {
		fmt.Fprintf(&sb, "<|image_%d|>", i+1)
	}
	for _, m := range messages {
		if text := m.GetTextContent(); text != "" {
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(text)
		}
	}
	return sb.String()
}

func collectImageURLs(messages []Message) []string {
	var urls []string
	for _, m := range messages {
		urls = append(urls, m.ImageURLs()...)
	}
	return urls
}

// createSession creates one ortgenai session for the model directory.
func createSession(modelPath string) (*ortgenai.Session, error) {
	if genaiPath := getGenAILibraryPath(); genaiPath != "" {
		ortgenai.SetSharedLibraryPath(genaiPath)
	}
	if err := ortgenai.InitializeEnvironment(); err != nil {
		if !strings.Contains(err.Error(), "already") {
			return nil, fmt.Errorf("initializing ortgenai environment: %w", err)
		}
	}
	session, err := ortgenai.CreateGenerativeSession(modelPath)
	if err != nil {
		return nil, fmt.Errorf("creating ortgenai session: %w", err)
	}
	return session, nil
}

// readContextLength reads context_length from genai_config.json, returning
// 0 when unavailable.
func readContextLength(modelPath string) int {
	data, err := os.ReadFile(filepath.Join(modelPath, "genai_config.json"))
	if err != nil {
		return 0
	}
	var cfg struct {
		Model struct {
			ContextLength int `json:"context_length"`
		} `json:"model"`
	}
	if err := sonic.Unmarshal(data, &cfg); err != nil {
		return 0
	}
	return cfg.Model.ContextLength
}

// getGenAILibraryPath returns the path to the onnxruntime-genai shared
// library, consulting ORTGENAI_DYLIB_PATH, ONNXRUNTIME_ROOT and the
// loader path in that order.
func getGenAILibraryPath() string {
	libName := getGenAILibraryName()

	if path := os.Getenv("ORTGENAI_DYLIB_PATH"); path != "" {
		return path
	}

	if root := os.Getenv("ONNXRUNTIME_ROOT"); root != "" {
		platform := runtime.GOOS + "-" + runtime.GOARCH
		platformPath := filepath.Join(root, platform, "lib", libName)
		if _, err := os.Stat(platformPath); err == nil {
			return platformPath
		}
		directPath := filepath.Join(root, "lib", libName)
		if _, err := os.Stat(directPath); err == nil {
			return directPath
		}
	}

	ldPath := os.Getenv("LD_LIBRARY_PATH")
	if runtime.GOOS == "darwin" {
		if dyldPath := os.Getenv("DYLD_LIBRARY_PATH"); dyldPath != "" {
			ldPath = dyldPath
		}
	}
	if ldPath != "" {
		for _, dir := range filepath.SplitList(ldPath) {
			libPath := filepath.Join(dir, libName)
			if _, err := os.Stat(libPath); err == nil {
				return libPath
			}
		}
	}

	return ""
}

func getGenAILibraryName() string {
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime-genai.dll"
	case "darwin":
		return "libonnxruntime-genai.dylib"
	default:
		return "libonnxruntime-genai.so"
	}
}
