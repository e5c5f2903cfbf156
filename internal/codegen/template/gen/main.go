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

	"github.com/consensys/bavard"

	template "github.com/mobius-lang/simc/internal/codegen/template"
)

//go:generate go run main.go

const copyrightHolder = "Consensys Software Inc."

func main() {
	bgen := bavard.NewBatchGenerator(copyrightHolder, 2025, "simc")

	data := struct {
		Kinds []template.KindSpec
	}{Kinds: template.Kinds}

	assertNoError(bgen.Generate(data, "template", "../templates",
		bavard.Entry{
			File:      "../loopbody_gen.go",
			Templates: []string{"loopbody.go.tmpl"},
		},
	))
}

func assertNoError(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
