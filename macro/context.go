// Copyright 2023 Google Inc. All rights reserved.
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

package macro

import "fmt"

// A Context resolves macro names to expression nodes during evaluation.
// Implementations may rewrite names before lookup.
type Context interface {
	Has(name string) bool
	Get(name string) (Node, bool)

	// Namespace returns the namespace new references parsed under this
	// context are bound to, if any.
	Namespace() (string, bool)
}

// A TypeError reports a value of an unsupported type assigned to a context.
type TypeError struct {
	Value interface{}
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("context value must be a string or macro node, got %T", e.Value)
}

// A MutableContext owns a name to node map and supports assignment.
//
// On reassignment of a bound name, references to that name inside the new
// value are replaced with the previous value before storing. This breaks
// self reference: after `x = $x;bar` the old x is inlined once instead of
// recursing. AliasNames, when set, supplies additional spellings of a name
// (such as its namespace qualified forms) that are unrolled the same way.
type MutableContext struct {
	ns         string
	hasNS      bool
	macros     map[string]Node
	AliasNames func(name string) []string
}

func NewMutableContext() *MutableContext {
	return &MutableContext{macros: make(map[string]Node)}
}

// NewNamespaceContext returns a MutableContext whose parsed references are
// bound to namespace ns.
func NewNamespaceContext(ns string) *MutableContext {
	return &MutableContext{ns: ns, hasNS: true, macros: make(map[string]Node)}
}

func (c *MutableContext) Has(name string) bool {
	_, ok := c.macros[name]
	return ok
}

func (c *MutableContext) Get(name string) (Node, bool) {
	node, ok := c.macros[name]
	return node, ok
}

func (c *MutableContext) Namespace() (string, bool) {
	return c.ns, c.hasNS
}

// Set assigns node to name, unrolling self references first.
func (c *MutableContext) Set(name string, node Node) {
	if old, ok := c.macros[name]; ok {
		node = node.Substitute(name, old)
		if c.AliasNames != nil {
			for _, alias := range c.AliasNames(name) {
				node = node.Substitute(alias, old)
			}
		}
	}
	c.macros[name] = node
}

// SetString parses value under this context's namespace and assigns it.
func (c *MutableContext) SetString(name, value string) {
	c.Set(name, ParseBound(value, c.ns))
}

// SetValue assigns a string or Node value, rejecting other types.
func (c *MutableContext) SetValue(name string, value interface{}) error {
	switch v := value.(type) {
	case string:
		c.SetString(name, v)
	case Node:
		c.Set(name, v)
	default:
		return &TypeError{Value: value}
	}
	return nil
}

// Delete removes name. Deleting an unbound name is a no-op.
func (c *MutableContext) Delete(name string) {
	delete(c.macros, name)
}

// Names returns the bound names in unspecified order.
func (c *MutableContext) Names() []string {
	names := make([]string, 0, len(c.macros))
	for name := range c.macros {
		names = append(names, name)
	}
	return names
}

// A ChainContext resolves names through an ordered list of contexts,
// returning the first hit. It is read only.
type ChainContext struct {
	Contexts []Context
}

func NewChainContext(contexts ...Context) *ChainContext {
	return &ChainContext{Contexts: contexts}
}

func (c *ChainContext) Has(name string) bool {
	for _, ctx := range c.Contexts {
		if ctx.Has(name) {
			return true
		}
	}
	return false
}

func (c *ChainContext) Get(name string) (Node, bool) {
	for _, ctx := range c.Contexts {
		if node, ok := ctx.Get(name); ok {
			return node, true
		}
	}
	return nil, false
}

func (c *ChainContext) Namespace() (string, bool) {
	for _, ctx := range c.Contexts {
		if ns, ok := ctx.Namespace(); ok {
			return ns, true
		}
	}
	return "", false
}

// A FrameContext exposes host scope variables as a read only context.
// Values that are already nodes pass through, strings are wrapped as Text
// nodes, anything else misses.
type FrameContext struct {
	Vars map[string]interface{}
}

func NewFrameContext(vars map[string]interface{}) *FrameContext {
	return &FrameContext{Vars: vars}
}

func (c *FrameContext) lookup(name string) (Node, bool) {
	value, ok := c.Vars[name]
	if !ok {
		return nil, false
	}
	switch v := value.(type) {
	case Node:
		return v, true
	case string:
		return &Text{Text: v}, true
	}
	return nil, false
}

func (c *FrameContext) Has(name string) bool {
	_, ok := c.lookup(name)
	return ok
}

func (c *FrameContext) Get(name string) (Node, bool) {
	return c.lookup(name)
}

func (c *FrameContext) Namespace() (string, bool) {
	return "", false
}
