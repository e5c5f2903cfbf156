// Copyright Consensys Software Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mobius-lang/simc/ast"
	"github.com/mobius-lang/simc/model"
)

// compileCmd compiles a JSON-encoded declaration tree through the full C2-C8
// pipeline and reports the resulting instruction/group counts, without
// running any steps. Mirrors the teacher's compile subcommand shape:
// read file, run the pipeline, report diagnostics.
var compileCmd = &cobra.Command{
	Use:   "compile <model.json>",
	Short: "Compile a model file and report its instruction schedule.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		rt := mustCompile(cmd, args[0])

		fmt.Printf("compiled %d instructions into %d groups\n", len(rt.Instrs), len(rt.Schedule.Groups))

		for i, g := range rt.Schedule.Groups {
			fmt.Printf("  group %d: %d member(s)\n", i, len(g.Members))
		}
	},
}

func init() {
	rootCmd.AddCommand(compileCmd)
}

// mustCompile loads and compiles file, printing diagnostics and exiting the
// process on any failure -- the CLI has no caller to hand a []error back to.
func mustCompile(cmd *cobra.Command, file string) *model.Runtime {
	data, err := os.ReadFile(file)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	tree, err := decodeTree(data)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	libPath := GetStringFlag(cmd, "lib-path")

	var loader ast.Loader
	if libPath != "" {
		loader = fsLoader{root: libPath}
	}

	rt, errs := model.Compile(tree, loader)
	if len(errs) != 0 {
		for _, e := range errs {
			fmt.Fprintln(os.Stderr, e)
		}

		os.Exit(1)
	}

	return rt
}
