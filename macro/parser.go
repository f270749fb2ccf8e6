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

import "strings"

// Parse turns macro source text into an expression tree. Parsing never
// fails: malformed macro syntax is preserved as literal text. The input is
// stripped of surrounding whitespace first.
func Parse(text string) Node {
	return ParseBound(text, "")
}

// ParseBound parses text with every variable reference bound to namespace
// ns, so that qualified substitution can later match references written
// with a bare name inside that namespace.
func ParseBound(text, ns string) Node {
	p := &parser{s: NewScanner(strings.TrimSpace(text)), ns: ns}
	return p.parseArg("")
}

type parser struct {
	s  *Scanner
	ns string
}

// parseArg parses text up to end of input or any rune in closing. The top
// level passes an empty closing set, function call arguments pass ",)".
func (p *parser) parseArg(closing string) *Concat {
	root := &Concat{}
	for {
		ch := p.s.Peek()
		if ch == eof || strings.ContainsRune(closing, ch) {
			break
		}
		switch ch {
		case '$':
			dollar := p.s.Save()
			p.s.Next()
			if p.s.Peek() == '$' {
				p.s.Next()
				root.AppendText("$")
				continue
			}
			if node := p.parseMacro(); node != nil {
				root.Append(node)
			} else {
				// Not a macro after all. Emit the dollar sign and
				// re-read the rest as plain text.
				p.s.Restore(dollar)
				p.s.Next()
				root.AppendText("$")
			}
		case '\\':
			p.s.Next()
			if next := p.s.Next(); next != eof {
				root.AppendText(string(next))
			} else {
				root.AppendText("\\")
			}
		default:
			p.s.Next()
			root.AppendText(string(ch))
		}
	}
	return root
}

// parseMacro parses the text following a '$'. It returns nil, with the
// scanner restored to its entry position, if no valid macro starts here.
func (p *parser) parseMacro() Node {
	cursor := p.s.Save()

	if p.s.Peek() == '{' {
		if node := p.parseBraced(); node != nil {
			return node
		}
		p.s.Restore(cursor)
		return nil
	}

	isCall := false
	if p.s.Peek() == '(' {
		p.s.Next()
		isCall = true
	}

	ident := p.s.ConsumeWhile(isIdentRune, -1)
	if ident == "" {
		p.s.Restore(cursor)
		return nil
	}

	var args []Node
	if isCall {
		p.s.ConsumeWhile(isSpaceRune, -1)
		if p.s.Peek() != ')' {
			for {
				arg := p.parseArg(",)")
				arg.trimSpace()
				args = append(args, arg)
				if p.s.Peek() == ',' {
					p.s.Next()
					continue
				}
				break
			}
		}
		if p.s.Peek() != ')' {
			// Unterminated call. Rewind and let the caller emit a
			// literal dollar sign, preserving the source text.
			p.s.Restore(cursor)
			return nil
		}
		p.s.Next()
	}

	return &Var{Name: ident, Args: args, BoundNS: p.ns}
}

// parseBraced parses the ${name} form, which permits no arguments.
func (p *parser) parseBraced() Node {
	p.s.Next() // consume '{'
	p.s.ConsumeWhile(isSpaceRune, -1)
	ident := p.s.ConsumeWhile(isIdentRune, -1)
	if ident == "" {
		return nil
	}
	p.s.ConsumeWhile(isSpaceRune, -1)
	if p.s.Peek() != '}' {
		return nil
	}
	p.s.Next()
	return &Var{Name: ident, BoundNS: p.ns}
}
