// Copyright 2025 The Floret Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/openfloret/floret"
	"github.com/openfloret/floret/lib/dataset"
	"github.com/openfloret/floret/lib/tasks"
)

var annotateCmd = &cobra.Command{
	Use:   "annotate --model <name> <dataset-dir>",
	Short: "Annotate a directory of images",
	Long: `Run one labeling operation over every image in a directory and write
the results to <image>.labels.json sidecar files.

Operations:
  caption            Image caption (--detail-level basic|detailed|more_detailed)
  ocr                Text extraction (--store-region-info for per-region boxes)
  detection          Object detection (--detection-type, --text-prompt)
  phrase_grounding   Ground caption phrases (--caption or --caption-field)
  segmentation       Polygon mask (--expression or --expression-field)

Examples:
  # Caption every image
  floret annotate --model microsoft/Florence-2-base --operation caption ./images

  # Detect objects matching a text prompt
  floret annotate --model microsoft/Florence-2-base --operation detection \
    --detection-type open_vocabulary_detection --text-prompt "a red bicycle" ./images

  # Ground phrases of a caption stored on each sample
  floret annotate --model microsoft/Florence-2-base --operation phrase_grounding \
    --caption-field caption ./images`,
	Args: cobra.ExactArgs(1),
	RunE: runAnnotate,
}

func init() {
	rootCmd.AddCommand(annotateCmd)

	annotateCmd.Flags().String("model", "", "model name as shown by 'floret list' (required)")
	annotateCmd.Flags().String("operation", "caption", "labeling operation")
	annotateCmd.Flags().String("detail-level", "", "caption detail level")
	annotateCmd.Flags().Bool("store-region-info", false, "OCR: store per-region boxes")
	annotateCmd.Flags().String("detection-type", "", "detection variant")
	annotateCmd.Flags().String("text-prompt", "", "detection: free-text prompt")
	annotateCmd.Flags().String("caption", "", "phrase grounding: literal caption")
	annotateCmd.Flags().String("caption-field", "", "phrase grounding: sample field holding the caption")
	annotateCmd.Flags().String("expression", "", "segmentation: literal referring expression")
	annotateCmd.Flags().String("expression-field", "", "segmentation: sample field holding the expression")
	annotateCmd.Flags().String("output-field", "", "sample field to write (defaults to the operation name)")
	annotateCmd.Flags().Int("workers", 1, "concurrent samples")
	annotateCmd.Flags().Int("pool-size", 1, "model sessions per worker pool")
	annotateCmd.Flags().Duration("keep-alive", 5*time.Minute, "how long to keep idle models loaded")
	annotateCmd.Flags().Bool("no-cache", false, "disable the annotation cache")

	_ = annotateCmd.MarkFlagRequired("model")
}

func runAnnotate(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := newLogger()
	defer func() {
		_ = logger.Sync()
	}()

	model, _ := cmd.Flags().GetString("model")
	opCfg := operationConfig(cmd)
	outputField, _ := cmd.Flags().GetString("output-field")
	if outputField == "" {
		outputField = opCfg.Operation
	}
	workers, _ := cmd.Flags().GetInt("workers")
	poolSize, _ := cmd.Flags().GetInt("pool-size")
	keepAlive, _ := cmd.Flags().GetDuration("keep-alive")
	noCache, _ := cmd.Flags().GetBool("no-cache")

	registry, err := floret.NewRunnerRegistry(floret.RegistryConfig{
		ModelsDir: viper.GetString("models_dir"),
		PoolSize:  poolSize,
		KeepAlive: keepAlive,
	}, logger)
	if err != nil {
		return err
	}
	defer func() {
		_ = registry.Close()
	}()

	generator, err := registry.Acquire(model)
	if err != nil {
		return err
	}
	defer registry.Release(model)

	adapter, err := floret.NewAdapterFromConfig(opCfg, generator,
		floret.WithLogger(logger),
		floret.WithModelName(model))
	if err != nil {
		return err
	}

	var annotator dataset.Annotator = adapter
	var cached *floret.CachedAnnotator
	if !noCache {
		cache := floret.NewAnnotationCache(0)
		defer cache.Stop()
		cached = floret.NewCachedAnnotator(adapter, model, opCfg.Operation, cache, logger)
		annotator = cached
	}

	ds, err := dataset.OpenDir(args[0], logger)
	if err != nil {
		return err
	}

	logger.Info("Annotating dataset",
		zap.String("model", model),
		zap.String("operation", opCfg.Operation),
		zap.String("outputField", outputField),
		zap.Int("samples", len(ds.Samples())),
		zap.Int("workers", workers))

	start := time.Now()
	if err := dataset.ApplyParallel(ctx, annotator, ds, outputField, workers); err != nil {
		return err
	}

	fmt.Printf("Annotated %d samples in %s\n", len(ds.Samples()), time.Since(start).Round(time.Millisecond))
	if cached != nil {
		hits, misses, _ := cached.Stats()
		fmt.Printf("Cache: %d hits, %d misses\n", hits, misses)
	}
	return nil
}

// operationConfig gathers the operation flags into the flat config form.
func operationConfig(cmd *cobra.Command) tasks.Config {
	s := func(name string) string {
		v, _ := cmd.Flags().GetString(name)
		return v
	}
	storeRegionInfo, _ := cmd.Flags().GetBool("store-region-info")
	return tasks.Config{
		Operation:       s("operation"),
		DetailLevel:     s("detail-level"),
		StoreRegionInfo: storeRegionInfo,
		DetectionType:   s("detection-type"),
		TextPrompt:      s("text-prompt"),
		Caption:         s("caption"),
		CaptionField:    s("caption-field"),
		Expression:      s("expression"),
		ExpressionField: s("expression-field"),
	}
}
