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

package workspace

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/creator-build/creator/lists"
	"github.com/creator-build/creator/macro"
)

// A SetupFunc is a target's user callback. It is invoked once, during
// setup, and populates the target with build entries and dependencies.
type SetupFunc func(t *Target) error

// A TaskFunc is an out of graph task callback.
type TaskFunc func(args []string) error

// A SetupError reports DoSetup called on a target that is already set up.
type SetupError struct {
	Target string
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("target %q is already set up", e.Target)
}

// A BuildEntry associates input files with the output files produced from
// them by one shell command. Paths are normalized against the owning
// unit's project directory.
type BuildEntry struct {
	Inputs    []string
	Outputs   []string
	Command   string
	Auxiliary []string
}

// An Event is the mutable record passed to target listeners. Listeners
// run before a build entry is recorded and may alter any field; extending
// Auxiliary adds extra inputs to the entry.
type Event struct {
	Kind      string
	Inputs    []string
	Outputs   []string
	Command   string
	Auxiliary []string
}

// Event kinds passed to listeners.
const (
	EventSetup = "setup"
	EventBuild = "build"
)

// A Listener observes target events.
type Listener func(t *Target, ev *Event) error

// A Target is a named set of build entries with dependencies on other
// targets. Its entries are collected by the setup callback and later
// emitted as Ninja rules and edges.
type Target struct {
	unit      *Unit
	name      string
	isSetup   bool
	onSetup   SetupFunc
	listeners []Listener
	deps      []*Target
	entries   []*BuildEntry
}

// ID returns the fully qualified target identifier, `unit:name`.
func (t *Target) ID() string {
	return t.unit.identifier + ":" + t.name
}

// Name returns the target name without its unit namespace.
func (t *Target) Name() string {
	return t.name
}

// Unit returns the owning unit.
func (t *Target) Unit() *Unit {
	return t.unit
}

// IsSetup reports whether the setup callback has run.
func (t *Target) IsSetup() bool {
	return t.isSetup
}

// Dependencies returns the targets this target requires.
func (t *Target) Dependencies() []*Target {
	return t.deps
}

// Entries returns the build entries in append order.
func (t *Target) Entries() []*BuildEntry {
	return t.entries
}

// Listen registers a listener. Listeners fire in registration order.
func (t *Target) Listen(l Listener) {
	t.listeners = append(t.listeners, l)
}

func (t *Target) fire(ev *Event) error {
	for _, l := range t.listeners {
		if err := l(t, ev); err != nil {
			return err
		}
	}
	return nil
}

// DoSetup runs the setup callback once. Calling it on a target that is
// already set up is an error; the flag is set before the callback runs so
// that dependency cycles terminate.
func (t *Target) DoSetup() error {
	if t.isSetup {
		return &SetupError{Target: t.ID()}
	}
	t.isSetup = true
	if err := t.fire(&Event{Kind: EventSetup}); err != nil {
		return err
	}
	if t.onSetup != nil {
		return t.onSetup(t)
	}
	return nil
}

// Requires adds a dependency on the target referenced by ref, which is a
// `unit:name` pair or a bare name resolved in the current unit. The
// dependency is set up first if it is not yet.
func (t *Target) Requires(ref string) error {
	ns, name, qualified := lists.ParseVar(ref)
	u := t.unit
	if qualified && ns != "" {
		id := t.unit.ResolveAlias(ns)
		other, ok := t.unit.ws.Unit(id)
		if !ok {
			return &UnitNotFoundError{Identifier: id, Path: t.unit.ws.Path}
		}
		u = other
	}
	dep, ok := u.Target(name)
	if !ok {
		return fmt.Errorf("unit %q has no target %q", u.ID(), name)
	}
	if !dep.IsSetup() {
		if err := dep.DoSetup(); err != nil {
			return err
		}
	}
	t.deps = append(t.deps, dep)
	return nil
}

// normPath normalizes a path against the unit's project directory.
func (t *Target) normPath(path string) string {
	if !filepath.IsAbs(path) {
		path = filepath.Join(t.unit.projectPath, path)
	}
	return filepath.Clean(path)
}

func (t *Target) normPaths(paths []string) []string {
	normalized := make([]string, len(paths))
	for i, path := range paths {
		normalized[i] = t.normPath(path)
	}
	return normalized
}

// Build evaluates inputs, outputs and command and records build entries.
// The strings are macro text evaluated in the unit, with the script scope
// visible; inputs and outputs are decoded as semicolon lists. With each
// set, inputs and outputs are paired one to one and one entry is recorded
// per pair, with $< and $@ bound per pair; otherwise a single entry is
// recorded with $< and $@ bound to the space joined lists.
func (t *Target) Build(inputs, outputs, command string, each bool) error {
	inText, err := t.unit.Eval(inputs)
	if err != nil {
		return err
	}
	outText, err := t.unit.Eval(outputs)
	if err != nil {
		return err
	}
	in := t.normPaths(lists.Split(inText))
	out := t.normPaths(lists.Split(outText))

	if each {
		if len(in) != len(out) {
			return fmt.Errorf("target %s: each requires matching list lengths, got %d inputs and %d outputs",
				t.ID(), len(in), len(out))
		}
		for i := range in {
			if err := t.addEntry(in[i:i+1], out[i:i+1], command); err != nil {
				return err
			}
		}
		return nil
	}
	return t.addEntry(in, out, command)
}

func (t *Target) addEntry(in, out []string, command string) error {
	supp := macro.NewMutableContext()
	supp.Set("<", &macro.Text{Text: strings.Join(in, " ")})
	supp.Set("@", &macro.Text{Text: strings.Join(out, " ")})
	cmd, err := t.unit.Eval(command, supp)
	if err != nil {
		return err
	}

	ev := &Event{Kind: EventBuild, Inputs: in, Outputs: out, Command: cmd}
	if err := t.fire(ev); err != nil {
		return err
	}
	t.entries = append(t.entries, &BuildEntry{
		Inputs:    ev.Inputs,
		Outputs:   ev.Outputs,
		Command:   ev.Command,
		Auxiliary: t.normPaths(ev.Auxiliary),
	})
	return nil
}

// A Task is a named callback invoked in process. It carries no graph
// edges and is never exported to the manifest.
type Task struct {
	unit *Unit
	name string
	fn   TaskFunc
}

// ID returns the fully qualified task identifier.
func (t *Task) ID() string {
	return t.unit.identifier + ":" + t.name
}

// Name returns the task name without its unit namespace.
func (t *Task) Name() string {
	return t.name
}

// Unit returns the owning unit.
func (t *Task) Unit() *Unit {
	return t.unit
}

// Run invokes the task callback.
func (t *Task) Run(args []string) error {
	return t.fn(args)
}
