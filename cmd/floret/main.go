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

// Command floret labels image datasets with Florence-2-style models.
//
// Usage:
//
//	floret pull hf:microsoft/Florence-2-base   # Download a model build
//	floret list                                # List local models
//	floret annotate --model <name> <dir>       # Annotate a directory of images
package main

import "github.com/openfloret/floret/cmd/floret/cmd"

// Set by goreleaser via -ldflags at release time.
var version = "dev"

func main() {
	cmd.Version = version
	cmd.Execute()
}
