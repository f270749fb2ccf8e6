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

package script

import (
	"fmt"
	"sort"

	"go.starlark.net/starlark"

	"github.com/creator-build/creator/macro"
	"github.com/creator-build/creator/workspace"
)

// rawValue wraps a macro node that must not be re-parsed on assignment.
type rawValue struct {
	node macro.Node
}

func (v *rawValue) String() string        { return "<raw macro>" }
func (v *rawValue) Type() string          { return "raw" }
func (v *rawValue) Freeze()               {}
func (v *rawValue) Truth() starlark.Bool  { return starlark.True }
func (v *rawValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: raw") }

// contextValue exposes a macro context to scripts with mapping syntax:
// C["name"] evaluates a macro, C["name"] = "value" assigns one.
type contextValue struct {
	name string
	get  func(string) (macro.Node, bool)
	set  func(string, interface{}) error
	has  func(string) bool
}

var (
	_ starlark.Mapping   = (*contextValue)(nil)
	_ starlark.HasSetKey = (*contextValue)(nil)
)

func (v *contextValue) String() string        { return "<context " + v.name + ">" }
func (v *contextValue) Type() string          { return "context" }
func (v *contextValue) Freeze()               {}
func (v *contextValue) Truth() starlark.Bool  { return starlark.True }
func (v *contextValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: context") }

func (v *contextValue) Get(key starlark.Value) (starlark.Value, bool, error) {
	name, ok := starlark.AsString(key)
	if !ok {
		return nil, false, fmt.Errorf("context keys are strings, got %s", key.Type())
	}
	node, ok := v.get(name)
	if !ok {
		return nil, false, nil
	}
	value, err := node.Eval(contextOf(v), nil)
	if err != nil {
		return nil, false, err
	}
	return starlark.String(value), true, nil
}

func (v *contextValue) SetKey(key, value starlark.Value) error {
	name, ok := starlark.AsString(key)
	if !ok {
		return fmt.Errorf("context keys are strings, got %s", key.Type())
	}
	return v.set(name, macroValue(value))
}

// evalContext adapts a contextValue's lookup for node evaluation.
type evalContext struct {
	v *contextValue
}

func contextOf(v *contextValue) macro.Context {
	return &evalContext{v: v}
}

func (c *evalContext) Has(name string) bool {
	return c.v.has(name)
}

func (c *evalContext) Get(name string) (macro.Node, bool) {
	return c.v.get(name)
}

func (c *evalContext) Namespace() (string, bool) {
	return "", false
}

// unitValue exposes the current unit.
type unitValue struct {
	unit *workspace.Unit
}

var _ starlark.HasAttrs = (*unitValue)(nil)

func (v *unitValue) String() string        { return "<unit " + v.unit.ID() + ">" }
func (v *unitValue) Type() string          { return "unit" }
func (v *unitValue) Freeze()               {}
func (v *unitValue) Truth() starlark.Bool  { return starlark.True }
func (v *unitValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: unit") }

func (v *unitValue) AttrNames() []string {
	return []string{"id", "project_path"}
}

func (v *unitValue) Attr(name string) (starlark.Value, error) {
	switch name {
	case "id":
		return starlark.String(v.unit.ID()), nil
	case "project_path":
		return starlark.String(v.unit.ProjectPath()), nil
	}
	return nil, nil
}

// workspaceValue exposes the workspace.
type workspaceValue struct {
	ws *workspace.Workspace
}

var _ starlark.HasAttrs = (*workspaceValue)(nil)

func (v *workspaceValue) String() string        { return "<workspace>" }
func (v *workspaceValue) Type() string          { return "workspace" }
func (v *workspaceValue) Freeze()               {}
func (v *workspaceValue) Truth() starlark.Bool  { return starlark.True }
func (v *workspaceValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: workspace") }

func (v *workspaceValue) AttrNames() []string {
	return []string{"path", "units"}
}

func (v *workspaceValue) Attr(name string) (starlark.Value, error) {
	switch name {
	case "path":
		values := make([]starlark.Value, len(v.ws.Path))
		for i, dir := range v.ws.Path {
			values[i] = starlark.String(dir)
		}
		return starlark.NewList(values), nil
	case "units":
		units := v.ws.Units()
		ids := make([]string, len(units))
		for i, u := range units {
			ids[i] = u.ID()
		}
		sort.Strings(ids)
		values := make([]starlark.Value, len(ids))
		for i, id := range ids {
			values[i] = starlark.String(id)
		}
		return starlark.NewList(values), nil
	}
	return nil, nil
}

// targetValue exposes a target to its setup callback.
type targetValue struct {
	target *workspace.Target
}

var _ starlark.HasAttrs = (*targetValue)(nil)

func (v *targetValue) String() string        { return "<target " + v.target.ID() + ">" }
func (v *targetValue) Type() string          { return "target" }
func (v *targetValue) Freeze()               {}
func (v *targetValue) Truth() starlark.Bool  { return starlark.True }
func (v *targetValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: target") }

func (v *targetValue) AttrNames() []string {
	return []string{"build", "name", "requires"}
}

func (v *targetValue) Attr(name string) (starlark.Value, error) {
	switch name {
	case "name":
		return starlark.String(v.target.Name()), nil
	case "build":
		return starlark.NewBuiltin("build", v.build), nil
	case "requires":
		return starlark.NewBuiltin("requires", v.requires), nil
	}
	return nil, nil
}

func (v *targetValue) build(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var inputs, outputs, command string
	each := false
	if err := starlark.UnpackArgs("build", args, kwargs,
		"inputs", &inputs, "outputs", &outputs, "command", &command, "each?", &each); err != nil {
		return nil, err
	}
	if err := v.target.Build(inputs, outputs, command, each); err != nil {
		return nil, err
	}
	return starlark.None, nil
}

func (v *targetValue) requires(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var ref string
	if err := starlark.UnpackPositionalArgs("requires", args, kwargs, 1, &ref); err != nil {
		return nil, err
	}
	if err := v.target.Requires(ref); err != nil {
		return nil, err
	}
	return starlark.None, nil
}

// taskValue exposes a registered task.
type taskValue struct {
	task *workspace.Task
}

var _ starlark.HasAttrs = (*taskValue)(nil)

func (v *taskValue) String() string        { return "<task " + v.task.ID() + ">" }
func (v *taskValue) Type() string          { return "task" }
func (v *taskValue) Freeze()               {}
func (v *taskValue) Truth() starlark.Bool  { return starlark.True }
func (v *taskValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: task") }

func (v *taskValue) AttrNames() []string {
	return []string{"name"}
}

func (v *taskValue) Attr(name string) (starlark.Value, error) {
	if name == "name" {
		return starlark.String(v.task.Name()), nil
	}
	return nil, nil
}

// responseValue is the result of shell_get.
type responseValue struct {
	output string
	status int
}

var _ starlark.HasAttrs = (*responseValue)(nil)

func (v *responseValue) String() string        { return fmt.Sprintf("<response status=%d>", v.status) }
func (v *responseValue) Type() string          { return "response" }
func (v *responseValue) Freeze()               {}
func (v *responseValue) Truth() starlark.Bool  { return starlark.Bool(v.status == 0) }
func (v *responseValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: response") }

func (v *responseValue) AttrNames() []string {
	return []string{"output", "status"}
}

func (v *responseValue) Attr(name string) (starlark.Value, error) {
	switch name {
	case "output":
		return starlark.String(v.output), nil
	case "status":
		return starlark.MakeInt(v.status), nil
	}
	return nil, nil
}
