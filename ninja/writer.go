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

// Package ninja serializes a workspace's target graph into a Ninja build
// manifest.
package ninja

import (
	"fmt"
	"io"
	"strings"

	"github.com/google/blueprint/proptools"
)

// defaultWidth is wide enough that wrapped lines stay the exception;
// forced wraps inside paths would alter their meaning.
const defaultWidth = 1024

// A Writer emits Ninja syntax. Errors are sticky and surface through Err.
type Writer struct {
	w     io.Writer
	width int
	err   error
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, width: defaultWidth}
}

// Err returns the first write error.
func (n *Writer) Err() error {
	return n.err
}

func (n *Writer) writeLine(line string) {
	if n.err != nil {
		return
	}
	// Wrap on word boundaries with a trailing $ continuation, leaving
	// the indentation of the first line intact.
	indent := "    "
	for len(line) > n.width {
		space := strings.LastIndex(line[:n.width-2], " ")
		for space > 0 && strings.HasSuffix(line[:space], "$") {
			space = strings.LastIndex(line[:space], " ")
		}
		if space <= 0 {
			break
		}
		_, n.err = fmt.Fprintln(n.w, line[:space]+" $")
		if n.err != nil {
			return
		}
		line = indent + line[space+1:]
	}
	_, n.err = fmt.Fprintln(n.w, line)
}

// Comment writes a comment line.
func (n *Writer) Comment(text string) {
	n.writeLine("# " + text)
}

// Newline writes an empty line.
func (n *Writer) Newline() {
	if n.err != nil {
		return
	}
	_, n.err = fmt.Fprintln(n.w)
}

// Variable writes a top level variable binding.
func (n *Writer) Variable(key, value string) {
	n.writeLine(key + " = " + value)
}

// Rule writes a rule with its command. The command has dollar signs
// escaped so the shell sees them literally.
func (n *Writer) Rule(name, command string) {
	n.writeLine("rule " + name)
	n.writeLine("  command = " + proptools.NinjaEscape(command))
}

// Build writes a build edge.
func (n *Writer) Build(outputs []string, rule string, inputs []string) {
	line := "build " + joinPaths(outputs) + ": " + rule
	if len(inputs) > 0 {
		line += " " + joinPaths(inputs)
	}
	n.writeLine(line)
}

// Default writes the default targets directive.
func (n *Writer) Default(targets []string) {
	n.writeLine("default " + joinPaths(targets))
}

// escapePath escapes the characters that are significant in Ninja path
// lists: dollar signs, spaces and colons.
func escapePath(path string) string {
	var sb strings.Builder
	for i := 0; i < len(path); i++ {
		switch path[i] {
		case '$', ' ', ':':
			sb.WriteByte('$')
		}
		sb.WriteByte(path[i])
	}
	return sb.String()
}

func joinPaths(paths []string) string {
	escaped := make([]string, len(paths))
	for i, path := range paths {
		escaped[i] = escapePath(path)
	}
	return strings.Join(escaped, " ")
}
