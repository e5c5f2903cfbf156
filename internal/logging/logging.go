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

// Package logging provides the structured logger shared by the passes of the
// compilation pipeline. The registry logs each entity allocation at Debug;
// the other passes do not log.
package logging

import "github.com/sirupsen/logrus"

var root = logrus.New()

// Component returns a logger scoped to a single pipeline pass (e.g. "units",
// "registry", "expr", "compose", "instr", "depsolve", "order", "codegen").
func Component(name string) *logrus.Entry {
	return root.WithField("component", name)
}

// SetLevel adjusts the verbosity of the shared logger, exposed so that
// cmd/simc can wire up a --verbose flag.
func SetLevel(level logrus.Level) {
	root.SetLevel(level)
}
