// Copyright 2024 Google Inc. All rights reserved.
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

package ninja

import (
	"fmt"
	"io"
	"regexp"
	"sort"

	"github.com/creator-build/creator/lists"
	"github.com/creator-build/creator/workspace"
)

// Version identifies the manifest generator in the header comment. It is
// the only part of the output allowed to change between releases.
const Version = "1.0"

var identRe = regexp.MustCompile(`[^A-Za-z0-9_]+`)

// Ident converts s into an identifier acceptable to Ninja by collapsing
// every run of invalid characters into an underscore.
func Ident(s string) string {
	return identRe.ReplaceAllString(s, "_")
}

// Export serializes the target graph of ws to w. Units are emitted in
// ascending identifier order, targets in ascending name order, build
// entries in append order, so identical workspace state yields identical
// output. defaults is a list of target references resolved against main;
// when non empty, the union of their outputs becomes the manifest's
// default targets.
func Export(w io.Writer, ws *workspace.Workspace, main *workspace.Unit, defaults []string) error {
	writer := NewWriter(w)
	writer.Comment(fmt.Sprintf("Generated by creator %s. Do not edit.", Version))
	writer.Newline()

	units := ws.Units()
	sort.Slice(units, func(i, j int) bool { return units[i].ID() < units[j].ID() })
	for _, u := range units {
		targets := u.Targets()
		if len(targets) == 0 {
			continue
		}
		sort.Slice(targets, func(i, j int) bool { return targets[i].Name() < targets[j].Name() })

		writer.Comment("Unit: " + u.ID())
		writer.Newline()
		for _, t := range targets {
			exportTarget(writer, t)
		}
	}

	if len(defaults) > 0 {
		outputs, err := defaultOutputs(ws, main, defaults)
		if err != nil {
			return err
		}
		writer.Default(outputs)
	}
	return writer.Err()
}

func exportTarget(w *Writer, t *workspace.Target) {
	w.Comment("Target: " + t.ID())

	// Every output of every dependency feeds into each build entry.
	var extraInputs []string
	seen := make(map[string]bool)
	for _, dep := range t.Dependencies() {
		for _, entry := range dep.Entries() {
			for _, out := range entry.Outputs {
				out = lists.NormPath(out)
				if !seen[out] {
					seen[out] = true
					extraInputs = append(extraInputs, out)
				}
			}
		}
	}

	var phony []string
	for i, entry := range t.Entries() {
		ruleName := Ident(fmt.Sprintf("%s_%04d", t.ID(), i))
		w.Rule(ruleName, entry.Command)
		inputs := dedup(entry.Inputs, extraInputs, entry.Auxiliary)
		w.Build(entry.Outputs, ruleName, inputs)
		w.Newline()
		phony = append(phony, entry.Outputs...)
	}
	w.Build([]string{Ident(t.ID())}, "phony", phony)
	w.Newline()
}

// dedup concatenates the path lists, keeping the first occurrence of each
// path.
func dedup(pathLists ...[]string) []string {
	var result []string
	seen := make(map[string]bool)
	for _, paths := range pathLists {
		for _, path := range paths {
			if !seen[path] {
				seen[path] = true
				result = append(result, path)
			}
		}
	}
	return result
}

// defaultOutputs resolves target references against the main unit and
// collects their outputs.
func defaultOutputs(ws *workspace.Workspace, main *workspace.Unit, refs []string) ([]string, error) {
	var outputs []string
	seen := make(map[string]bool)
	for _, ref := range refs {
		ns, name, qualified := lists.ParseVar(ref)
		u := main
		if qualified && ns != "" {
			id := main.ResolveAlias(ns)
			other, ok := ws.Unit(id)
			if !ok {
				return nil, fmt.Errorf("default target %q: no unit %q", ref, id)
			}
			u = other
		}
		t, ok := u.Target(name)
		if !ok {
			return nil, fmt.Errorf("no such target %q in unit %q", name, u.ID())
		}
		for _, entry := range t.Entries() {
			for _, out := range entry.Outputs {
				if !seen[out] {
					seen[out] = true
					outputs = append(outputs, out)
				}
			}
		}
	}
	return outputs, nil
}
