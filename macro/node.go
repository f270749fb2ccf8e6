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

// Package macro implements the macro language used by unit scripts: a
// string substitution calculus with variable references, function calls
// and namespace qualified names. A macro value is stored as an expression
// tree that is evaluated against a Context.
package macro

import (
	"strconv"
	"strings"
)

// A Node is one node of a macro expression tree.
type Node interface {
	// Eval renders the node to a string. args carries the arguments of
	// the enclosing function call, visible to the node as $0, $1, ...
	Eval(ctx Context, args []Node) (string, error)

	// Substitute returns the tree with every variable reference matching
	// ref replaced by a deep copy of repl. ref matches a reference by its
	// literal name or by its name qualified with the namespace the
	// reference was parsed under.
	Substitute(ref string, repl Node) Node

	// DeepCopy returns a copy of the tree sharing no mutable state.
	DeepCopy() Node
}

// A Text node evaluates to its literal text.
type Text struct {
	Text string
}

func (t *Text) Eval(ctx Context, args []Node) (string, error) {
	return t.Text, nil
}

func (t *Text) Substitute(ref string, repl Node) Node {
	return t
}

func (t *Text) DeepCopy() Node {
	c := *t
	return &c
}

// A Concat node concatenates its children. The parser guarantees that a
// Concat never directly contains another Concat and that adjacent text
// chunks are coalesced.
type Concat struct {
	Nodes []Node
}

// Append adds node to the concatenation, flattening nested Concat nodes
// and merging Text nodes into a trailing Text child. Appending empty text
// is a no-op.
func (c *Concat) Append(node Node) {
	switch n := node.(type) {
	case *Concat:
		for _, child := range n.Nodes {
			c.Append(child)
		}
	case *Text:
		c.AppendText(n.Text)
	default:
		c.Nodes = append(c.Nodes, node)
	}
}

// AppendText adds literal text, merging into a trailing Text node.
func (c *Concat) AppendText(text string) {
	if text == "" {
		return
	}
	if len(c.Nodes) > 0 {
		if last, ok := c.Nodes[len(c.Nodes)-1].(*Text); ok {
			last.Text += text
			return
		}
	}
	c.Nodes = append(c.Nodes, &Text{Text: text})
}

func (c *Concat) Eval(ctx Context, args []Node) (string, error) {
	var sb strings.Builder
	for _, n := range c.Nodes {
		s, err := n.Eval(ctx, args)
		if err != nil {
			return "", err
		}
		sb.WriteString(s)
	}
	return sb.String(), nil
}

func (c *Concat) Substitute(ref string, repl Node) Node {
	nodes := make([]Node, len(c.Nodes))
	for i, n := range c.Nodes {
		nodes[i] = n.Substitute(ref, repl)
	}
	return &Concat{Nodes: nodes}
}

func (c *Concat) DeepCopy() Node {
	nodes := make([]Node, len(c.Nodes))
	for i, n := range c.Nodes {
		nodes[i] = n.DeepCopy()
	}
	return &Concat{Nodes: nodes}
}

// trimSpace strips leading and trailing whitespace from the outermost text
// chunks. Used on function call arguments after parsing.
func (c *Concat) trimSpace() {
	if len(c.Nodes) == 0 {
		return
	}
	if first, ok := c.Nodes[0].(*Text); ok {
		first.Text = strings.TrimLeft(first.Text, " \t\r\n")
	}
	if last, ok := c.Nodes[len(c.Nodes)-1].(*Text); ok {
		last.Text = strings.TrimRight(last.Text, " \t\r\n")
	}
	var nodes []Node
	for _, n := range c.Nodes {
		if t, ok := n.(*Text); ok && t.Text == "" {
			continue
		}
		nodes = append(nodes, n)
	}
	c.Nodes = nodes
}

// A Var node is a variable expansion or function call. Name may be
// namespace qualified. BoundNS is the namespace of the context the node
// was parsed under, used to match qualified references on substitution.
type Var struct {
	Name    string
	Args    []Node
	BoundNS string
}

func (v *Var) Eval(ctx Context, args []Node) (string, error) {
	subArgs := make([]Node, len(v.Args))
	for i, a := range v.Args {
		s, err := a.Eval(ctx, args)
		if err != nil {
			return "", err
		}
		subArgs[i] = &Text{Text: s}
	}

	// An integer name accesses an argument of the enclosing call.
	if i, err := strconv.Atoi(v.Name); err == nil && i >= 0 {
		if i < len(args) {
			s, err := args[i].Eval(ctx, subArgs)
			if err != nil {
				return "", err
			}
			return strings.TrimSpace(s), nil
		}
	}

	node, ok := ctx.Get(v.Name)
	if !ok {
		// Unresolved references render empty so that macros may be
		// assembled incrementally.
		return "", nil
	}
	s, err := node.Eval(ctx, subArgs)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(s), nil
}

// matches reports whether ref refers to this variable reference.
func (v *Var) matches(ref string) bool {
	if ref == v.Name {
		return true
	}
	if v.BoundNS != "" && !strings.Contains(v.Name, ":") {
		return ref == v.BoundNS+":"+v.Name
	}
	return false
}

func (v *Var) Substitute(ref string, repl Node) Node {
	if v.matches(ref) {
		return repl.DeepCopy()
	}
	args := make([]Node, len(v.Args))
	for i, a := range v.Args {
		args[i] = a.Substitute(ref, repl)
	}
	return &Var{Name: v.Name, Args: args, BoundNS: v.BoundNS}
}

func (v *Var) DeepCopy() Node {
	args := make([]Node, len(v.Args))
	for i, a := range v.Args {
		args[i] = a.DeepCopy()
	}
	return &Var{Name: v.Name, Args: args, BoundNS: v.BoundNS}
}

// A Funcs node wraps a host function as a macro function. The arguments
// passed to fn have already been evaluated into Text nodes.
type Funcs struct {
	Name  string
	Arity int // -1 for variadic
	Desc  string
	F     func(ctx Context, args []Node) (string, error)
}

func (f *Funcs) Eval(ctx Context, args []Node) (string, error) {
	if f.Arity >= 0 && len(args) != f.Arity {
		return "", &ArityError{Fn: f.Name, Want: f.Arity, Got: len(args)}
	}
	return f.F(ctx, args)
}

func (f *Funcs) Substitute(ref string, repl Node) Node {
	return f
}

func (f *Funcs) DeepCopy() Node {
	return f
}

// An ArityError reports a builtin called with the wrong argument count.
type ArityError struct {
	Fn   string
	Want int
	Got  int
}

func (e *ArityError) Error() string {
	return e.Fn + " requires " + strconv.Itoa(e.Want) + " arguments, got " + strconv.Itoa(e.Got)
}

// evalString is a convenience for builtins: evaluate a node with no call
// arguments.
func evalString(n Node, ctx Context) (string, error) {
	return n.Eval(ctx, nil)
}
