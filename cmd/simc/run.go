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

	"github.com/mobius-lang/simc/model"
	"github.com/mobius-lang/simc/ode"
)

// runCmd compiles a model file and advances it step by step, integrating any
// declared solvers' dissolved quantities alongside the discrete schedule
// each step. Mirrors the teacher's compute subcommand: read a file, run a
// pipeline, print results -- scaled here to a repeated per-step loop instead
// of a single pass, since spec.md's Run operation is iterative.
var runCmd = &cobra.Command{
	Use:   "run <model.json>",
	Short: "Compile a model file and run it for a number of steps.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		rt := mustCompile(cmd, args[0])

		steps := GetIntFlag(cmd, "steps")
		timeoutMs := GetIntFlag(cmd, "timeout-ms")

		var integrator ode.Integrator

		switch alg := GetStringFlag(cmd, "solver"); alg {
		case "", "euler":
			integrator = ode.Euler{}
		default:
			fmt.Fprintf(os.Stderr, "unknown solver algorithm %q\n", alg)
			os.Exit(1)
		}

		api := model.NewAPI(rt)

		err := api.Run(steps, timeoutMs, func(step int) {
			for _, sb := range rt.Model.Solvers {
				if !sb.HasStep {
					continue
				}

				if ierr := rt.IntegrateSolver(sb, integrator); ierr != nil {
					fmt.Fprintf(os.Stderr, "step %d: solver %d: %v\n", step, sb.ID, ierr)
				}
			}

			if GetFlag(cmd, "verbose") {
				fmt.Printf("completed step %d\n", step)
			}
		})

		if cancelled, ok := err.(*model.Cancelled); ok {
			fmt.Printf("run cancelled after %d of %d steps\n", cancelled.Steps, steps)
			return
		} else if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		fmt.Printf("completed %d steps\n", steps)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Int("steps", 1, "number of simulation steps to run")
	runCmd.Flags().Int("timeout-ms", 0, "abort the run once this many milliseconds elapse (0 disables)")
	runCmd.Flags().String("solver", "euler", "ODE integrator to use for dissolved quantities")
}
