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
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/openfloret/floret/lib/modelhub"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List locally installed models",
	Long: `List the models installed under the models directory.

Examples:
  floret list
  floret list --models-dir /opt/floret/models`,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	models, err := modelhub.ListInstalled(viper.GetString("models_dir"))
	if err != nil {
		return err
	}
	if len(models) == 0 {
		fmt.Println("No models installed. Pull one with: floret pull hf:microsoft/Florence-2-base")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tVARIANT\tFILES\tSIZE\tPULLED")
	for _, model := range models {
		var total int64
		for _, f := range model.Manifest.Files {
			total += f.Size
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			model.Manifest.Source,
			model.Manifest.Variant,
			len(model.Manifest.Files),
			formatSize(total),
			model.Manifest.DownloadedAt.Format("2006-01-02"))
	}
	return w.Flush()
}

func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
