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
	"os"
	"strings"

	"github.com/creator-build/creator/lists"
	"github.com/creator-build/creator/macro"
)

// Context is the global macro context of a workspace. Every macro lives in
// its flat map under a fully qualified name (`unit:name`) or, for globals,
// under the bare name. Lookup falls back to the builtin function table and
// to the process environment; names starting with an underscore skip both
// fallbacks.
type Context struct {
	ws      *Workspace
	mutable *macro.MutableContext
}

func newContext(ws *Workspace) *Context {
	return &Context{ws: ws, mutable: macro.NewMutableContext()}
}

func (c *Context) Has(name string) bool {
	_, ok := c.Get(name)
	return ok
}

func (c *Context) Get(name string) (macro.Node, bool) {
	if node, ok := c.mutable.Get(name); ok {
		return node, true
	}
	if strings.HasPrefix(name, "_") {
		return nil, false
	}
	if node, ok := macro.Builtin(name); ok {
		return node, true
	}
	if value, ok := os.LookupEnv(name); ok {
		return &macro.Text{Text: value}, true
	}
	return nil, false
}

func (c *Context) Namespace() (string, bool) {
	return "", false
}

// Set assigns node to name with self reference unrolling.
func (c *Context) Set(name string, node macro.Node) {
	c.mutable.Set(name, node)
}

// SetString parses value and assigns it to name.
func (c *Context) SetString(name, value string) {
	c.mutable.SetString(name, value)
}

// SetValue assigns a string or node value.
func (c *Context) SetValue(name string, value interface{}) error {
	return c.mutable.SetValue(name, value)
}

// Delete removes name from the macro map. Missing names are ignored.
func (c *Context) Delete(name string) {
	c.mutable.Delete(name)
}

// stored returns the macro map entry for name without any fallback.
func (c *Context) stored(name string) (macro.Node, bool) {
	return c.mutable.Get(name)
}

// setRaw stores node under name without unrolling. Unit contexts unroll
// against their own alias set before forwarding here.
func (c *Context) setRaw(name string, node macro.Node) {
	c.mutable.Delete(name)
	c.mutable.Set(name, node)
}

// UnitContext resolves names for one unit by rewriting them onto the
// workspace map: a namespace that is an alias of the unit is replaced by
// its target, a bare name is prefixed with the unit's own identifier, and
// the explicit empty namespace form `:name` escapes to the global scope.
type UnitContext struct {
	unit *Unit
}

// Prepare rewrites name into its fully qualified form.
func (c *UnitContext) Prepare(name string) string {
	ns, varname, qualified := lists.ParseVar(name)
	if !qualified {
		return c.unit.identifier + ":" + varname
	}
	if ns == "" {
		return varname
	}
	if target, ok := c.unit.Aliases[ns]; ok {
		return target + ":" + varname
	}
	return ns + ":" + varname
}

func (c *UnitContext) Has(name string) bool {
	_, ok := c.Get(name)
	return ok
}

func (c *UnitContext) Get(name string) (macro.Node, bool) {
	ws := c.unit.ws.Context
	if node, ok := ws.stored(c.Prepare(name)); ok {
		return node, true
	}
	// Bare names additionally resolve at the global scope, which carries
	// the builtin and environment fallbacks.
	if _, _, qualified := lists.ParseVar(name); !qualified {
		return ws.Get(name)
	}
	return nil, false
}

func (c *UnitContext) Namespace() (string, bool) {
	return c.unit.identifier, true
}

// refNames returns the spellings under which references to the qualified
// name may appear in macro text written inside this unit.
func (c *UnitContext) refNames(qualified string) []string {
	ns, varname, _ := lists.ParseVar(qualified)
	names := []string{qualified}
	if ns == c.unit.identifier {
		names = append(names, varname)
	}
	for alias, target := range c.unit.Aliases {
		if target == ns {
			names = append(names, alias+":"+varname)
		}
	}
	return names
}

// Set assigns node under the rewritten name, unrolling references to the
// previous value under every alias spelling first.
func (c *UnitContext) Set(name string, node macro.Node) {
	qualified := c.Prepare(name)
	ws := c.unit.ws.Context
	if old, ok := ws.stored(qualified); ok {
		for _, ref := range c.refNames(qualified) {
			node = node.Substitute(ref, old)
		}
	}
	ws.setRaw(qualified, node)
}

// SetString parses value under the unit's namespace and assigns it.
func (c *UnitContext) SetString(name, value string) {
	c.Set(name, macro.ParseBound(value, c.unit.identifier))
}

// SetValue assigns a string or node value.
func (c *UnitContext) SetValue(name string, value interface{}) error {
	switch v := value.(type) {
	case string:
		c.SetString(name, v)
	case macro.Node:
		c.Set(name, v)
	default:
		return &macro.TypeError{Value: value}
	}
	return nil
}

// Delete removes the rewritten name. Missing names are ignored.
func (c *UnitContext) Delete(name string) {
	c.unit.ws.Context.Delete(c.Prepare(name))
}
