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
	"path/filepath"

	"github.com/mobius-lang/simc/ast"
	"github.com/mobius-lang/simc/source"
)

// fsLoader resolves a library_include path against a single root directory
// (--lib-path). compose/model.go only checks that Load succeeds and
// discards the returned contents -- library declarations are resolved
// entirely through the registry's own scope import, so this Loader's job is
// existence-checking and path normalization, not recursive parsing.
type fsLoader struct {
	root string
}

var _ ast.Loader = fsLoader{}

func (l fsLoader) Load(path, basePath string, from source.Span) (string, []byte, error) {
	if l.root == "" {
		return "", nil, fmt.Errorf("library include %q: no --lib-path configured", path)
	}

	full := filepath.Join(l.root, basePath, path)

	contents, err := os.ReadFile(full)
	if err != nil {
		return "", nil, fmt.Errorf("library include %q: %w", path, err)
	}

	return full, contents, nil
}
