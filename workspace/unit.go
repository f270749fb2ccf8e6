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
	"regexp"

	"github.com/creator-build/creator/macro"
)

var identRe = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// A NameCollisionError reports a target or task name declared twice in the
// same unit.
type NameCollisionError struct {
	Unit string
	Name string
}

func (e *NameCollisionError) Error() string {
	return fmt.Sprintf("unit %q already declares %q", e.Unit, e.Name)
}

// A Unit is a namespace of macros and targets loaded from one script file.
type Unit struct {
	ws          *Workspace
	identifier  string
	projectPath string

	// Aliases maps alias names to unit identifiers. "self" is always an
	// alias for the unit's own identifier.
	Aliases map[string]string

	// Scope holds the unit script's global variables, exposed to macro
	// evaluation as a read only stack frame context.
	Scope map[string]interface{}

	// Context resolves and assigns macros with this unit's namespace
	// rewriting.
	Context *UnitContext

	targets     map[string]*Target
	tasks       map[string]*Task
	targetOrder []string
}

// NewUnit creates a unit registered to ws. The identifier must match
// [A-Za-z0-9._-]+.
func NewUnit(ws *Workspace, identifier, projectPath string) (*Unit, error) {
	if !identRe.MatchString(identifier) {
		return nil, fmt.Errorf("invalid unit identifier %q", identifier)
	}
	u := &Unit{
		ws:          ws,
		identifier:  identifier,
		projectPath: projectPath,
		Aliases:     map[string]string{"self": identifier},
		Scope:       make(map[string]interface{}),
		targets:     make(map[string]*Target),
		tasks:       make(map[string]*Task),
	}
	u.Context = &UnitContext{unit: u}
	u.Context.SetString("ProjectPath", projectPath)
	return u, nil
}

// ID returns the unit identifier.
func (u *Unit) ID() string {
	return u.identifier
}

// ProjectPath returns the directory containing the unit script.
func (u *Unit) ProjectPath() string {
	return u.projectPath
}

// Workspace returns the owning workspace.
func (u *Unit) Workspace() *Workspace {
	return u.ws
}

// ResolveAlias maps a namespace through the unit's alias table.
func (u *Unit) ResolveAlias(ns string) string {
	if target, ok := u.Aliases[ns]; ok {
		return target
	}
	return ns
}

// Eval parses and evaluates text with the unit's context, the unit script
// scope, and any supplementary contexts layered in front.
func (u *Unit) Eval(text string, supp ...macro.Context) (string, error) {
	contexts := make([]macro.Context, 0, len(supp)+2)
	contexts = append(contexts, supp...)
	contexts = append(contexts, macro.NewFrameContext(u.Scope), u.Context)
	return macro.ParseBound(text, u.identifier).Eval(macro.NewChainContext(contexts...), nil)
}

// checkName enforces one name registry across targets and tasks.
func (u *Unit) checkName(name string) error {
	if !identRe.MatchString(name) {
		return fmt.Errorf("invalid target name %q", name)
	}
	if _, ok := u.targets[name]; ok {
		return &NameCollisionError{Unit: u.identifier, Name: name}
	}
	if _, ok := u.tasks[name]; ok {
		return &NameCollisionError{Unit: u.identifier, Name: name}
	}
	return nil
}

// AddTarget declares a target whose entries are collected by onSetup.
func (u *Unit) AddTarget(name string, onSetup SetupFunc) (*Target, error) {
	if err := u.checkName(name); err != nil {
		return nil, err
	}
	t := &Target{unit: u, name: name, onSetup: onSetup}
	u.targets[name] = t
	u.targetOrder = append(u.targetOrder, name)
	return t, nil
}

// AddTask declares an out of graph task.
func (u *Unit) AddTask(name string, fn TaskFunc) (*Task, error) {
	if err := u.checkName(name); err != nil {
		return nil, err
	}
	task := &Task{unit: u, name: name, fn: fn}
	u.tasks[name] = task
	return task, nil
}

// Target returns the named target.
func (u *Unit) Target(name string) (*Target, bool) {
	t, ok := u.targets[name]
	return t, ok
}

// Task returns the named task.
func (u *Unit) Task(name string) (*Task, bool) {
	t, ok := u.tasks[name]
	return t, ok
}

// Targets returns the unit's targets in declaration order.
func (u *Unit) Targets() []*Target {
	targets := make([]*Target, 0, len(u.targetOrder))
	for _, name := range u.targetOrder {
		targets = append(targets, u.targets[name])
	}
	return targets
}

// Extend copies every macro the other unit has defined into this unit's
// namespace, skipping names this unit has already bound. No alias is
// added; the other unit stays addressable under its own identifier.
func (u *Unit) Extend(other *Unit) {
	ws := u.ws.Context
	prefix := other.identifier + ":"
	for _, name := range ws.mutable.Names() {
		if len(name) <= len(prefix) || name[:len(prefix)] != prefix {
			continue
		}
		local := u.identifier + ":" + name[len(prefix):]
		if _, ok := ws.stored(local); ok {
			continue
		}
		if node, ok := ws.stored(name); ok {
			ws.setRaw(local, node.DeepCopy())
		}
	}
}
