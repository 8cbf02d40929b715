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
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/openfloret/floret/lib/modelhub"
)

var pullCmd = &cobra.Command{
	Use:   "pull <model-ref> [model-ref...]",
	Short: "Pull model build(s) from HuggingFace",
	Long: `Download onnxruntime-genai model builds into the models directory.

Model references use the hf: prefix or a bare owner/name:

Examples:
  # Pull the smallest CPU build
  floret pull hf:microsoft/Florence-2-base

  # Pull a specific build variant
  floret pull --variant cpu-int4 microsoft/Florence-2-large

  # Show available variants without downloading
  floret pull --list-variants hf:microsoft/Florence-2-base`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPull,
}

func init() {
	rootCmd.AddCommand(pullCmd)

	pullCmd.Flags().String("variant", "",
		"build variant subdirectory (auto-selects the smallest CPU build)")
	pullCmd.Flags().String("hf-token", "",
		"HuggingFace API token for gated models (or use HF_TOKEN env var)")
	pullCmd.Flags().Bool("list-variants", false,
		"list available build variants instead of downloading")
}

func runPull(cmd *cobra.Command, args []string) error {
	variant, _ := cmd.Flags().GetString("variant")
	hfToken, _ := cmd.Flags().GetString("hf-token")
	listVariants, _ := cmd.Flags().GetBool("list-variants")
	if hfToken == "" {
		hfToken = os.Getenv("HF_TOKEN")
	}

	logger := newLogger()
	defer func() {
		_ = logger.Sync()
	}()

	client := modelhub.NewClient(
		modelhub.WithToken(hfToken),
		modelhub.WithLogger(logger),
		modelhub.WithProgressHandler(func(current, total int64, fileName string) {
			if current > 0 && current == total {
				fmt.Printf("  %s (%d bytes)\n", fileName, total)
			}
		}),
	)

	for _, ref := range args {
		repoID, isHub := modelhub.ParseRef(ref)
		if !isHub {
			repoID = ref
		}

		if listVariants {
			variants, err := client.Variants(cmd.Context(), repoID)
			if err != nil {
				return fmt.Errorf("listing variants of %s: %w", repoID, err)
			}
			fmt.Printf("%s variants:\n", repoID)
			if len(variants) == 0 {
				fmt.Println("  (single flat build)")
			}
			for _, v := range variants {
				fmt.Printf("  %s\n", v)
			}
			continue
		}

		fmt.Printf("Pulling %s\n", repoID)
		modelDir, err := client.Pull(cmd.Context(), repoID, viper.GetString("models_dir"), variant)
		if err != nil {
			return fmt.Errorf("pulling %s: %w", repoID, err)
		}
		fmt.Printf("Installed to %s\n", modelDir)
	}
	return nil
}
