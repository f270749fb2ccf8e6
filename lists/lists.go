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

// Package lists implements the semicolon separated list encoding that macro
// values use to carry lists of strings, along with the path and shell
// quoting helpers that operate on decoded items.
package lists

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/google/blueprint/proptools"
)

// Split decodes a semicolon separated list. A literal semicolon inside an
// item is escaped as `\;`. Empty items are dropped.
func Split(text string) []string {
	var items []string
	var item strings.Builder
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\\':
			if i+1 < len(text) && text[i+1] == ';' {
				item.WriteByte(';')
				i++
			} else {
				item.WriteByte('\\')
			}
		case ';':
			if item.Len() > 0 {
				items = append(items, item.String())
				item.Reset()
			}
		default:
			item.WriteByte(text[i])
		}
	}
	if item.Len() > 0 {
		items = append(items, item.String())
	}
	return items
}

// Join encodes items as a semicolon separated list, escaping literal
// semicolons with a backslash.
func Join(items []string) string {
	escaped := make([]string, len(items))
	for i, item := range items {
		escaped[i] = strings.ReplaceAll(item, ";", "\\;")
	}
	return strings.Join(escaped, ";")
}

// SetSuffix replaces the extension of path with suffix. The extension starts
// at the last dot after the last path separator. A suffix without a leading
// dot gets one, an empty suffix strips the extension. If path contains no
// separator at all the suffix is dropped from the whole string first.
func SetSuffix(path, suffix string) string {
	if suffix != "" && !strings.HasPrefix(suffix, ".") {
		suffix = "." + suffix
	}
	sep := strings.LastIndexAny(path, "/\\")
	if dot := strings.LastIndex(path[sep+1:], "."); dot >= 0 {
		path = path[:sep+1+dot]
	}
	return path + suffix
}

// NormPath expands a leading ~ to the user home directory, makes the path
// absolute and cleans it.
func NormPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[1:])
		}
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return filepath.Clean(path)
}

// Quote returns s quoted for the shell of the host platform. On Windows the
// string is wrapped in double quotes when it contains whitespace, with
// embedded double quotes backslash escaped. Elsewhere POSIX single quote
// escaping is used.
func Quote(s string) string {
	if runtime.GOOS == "windows" {
		quoted := strings.ReplaceAll(s, `"`, `\"`)
		if strings.ContainsAny(quoted, " \t") || quoted == "" {
			quoted = `"` + quoted + `"`
		}
		return quoted
	}
	return proptools.ShellEscapeIncludingSpaces(s)
}

// QuoteList quotes every item in items.
func QuoteList(items []string) []string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = Quote(item)
	}
	return quoted
}

// ParseVar splits a possibly namespace qualified name at the first colon.
// hasNS reports whether a colon was present; the empty namespace form
// ":name" yields ns == "".
func ParseVar(name string) (ns string, varname string, hasNS bool) {
	if i := strings.IndexByte(name, ':'); i >= 0 {
		return name[:i], name[i+1:], true
	}
	return "", name, false
}
