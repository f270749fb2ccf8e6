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

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/blueprint/pathtools"

	"github.com/creator-build/creator/lists"
)

// wildcardFs is the filesystem used by the wildcard builtin. Tests replace
// it with pathtools.MockFs.
var wildcardFs pathtools.FileSystem = pathtools.OsFs

// SetWildcardFs swaps the filesystem used by wildcard and returns the
// previous one.
func SetWildcardFs(fs pathtools.FileSystem) pathtools.FileSystem {
	prev := wildcardFs
	wildcardFs = fs
	return prev
}

// Builtin returns the builtin function node registered under name.
func Builtin(name string) (Node, bool) {
	fn, ok := builtins[name]
	return fn, ok
}

var builtins map[string]*Funcs

func init() {
	builtins = map[string]*Funcs{}
	for _, fn := range []*Funcs{
		{Name: "addprefix", Arity: 2, Desc: "prepend a prefix to each list item", F: builtinAddprefix},
		{Name: "addsuffix", Arity: 2, Desc: "append a suffix to each list item", F: builtinAddsuffix},
		{Name: "prefix", Arity: 2, Desc: "prepend to the basename of each list item", F: builtinPrefix},
		{Name: "suffix", Arity: 2, Desc: "replace the extension of each list item", F: builtinSuffix},
		{Name: "subst", Arity: 3, Desc: "replace a substring in each list item", F: builtinSubst},
		{Name: "split", Arity: -1, Desc: "decode a list and join it with spaces", F: builtinSplit},
		{Name: "quote", Arity: -1, Desc: "shell quote each argument", F: builtinQuote},
		{Name: "quoteall", Arity: -1, Desc: "shell quote each list item, keeping the list form", F: builtinQuoteall},
		{Name: "quotesplit", Arity: -1, Desc: "shell quote each list item and join with spaces", F: builtinQuotesplit},
		{Name: "wildcard", Arity: -1, Desc: "expand glob patterns into a list", F: builtinWildcard},
		{Name: "move", Arity: 3, Desc: "rebase each list item onto a new directory", F: builtinMove},
		{Name: "dir", Arity: -1, Desc: "directory component of each list item", F: builtinDir},
	} {
		builtins[fn.Name] = fn
	}
}

func evalAll(ctx Context, args []Node) ([]string, error) {
	values := make([]string, len(args))
	for i, arg := range args {
		s, err := evalString(arg, ctx)
		if err != nil {
			return nil, err
		}
		values[i] = s
	}
	return values, nil
}

// argItems decodes the semicolon list formed by joining all arguments.
func argItems(ctx Context, args []Node) ([]string, error) {
	values, err := evalAll(ctx, args)
	if err != nil {
		return nil, err
	}
	return lists.Split(strings.Join(values, ";")), nil
}

func builtinAddprefix(ctx Context, args []Node) (string, error) {
	values, err := evalAll(ctx, args)
	if err != nil {
		return "", err
	}
	prefix := values[0]
	items := lists.Split(values[1])
	for i, item := range items {
		items[i] = prefix + item
	}
	return strings.Join(items, " "), nil
}

func builtinAddsuffix(ctx Context, args []Node) (string, error) {
	values, err := evalAll(ctx, args)
	if err != nil {
		return "", err
	}
	suffix := values[0]
	items := lists.Split(values[1])
	for i, item := range items {
		items[i] = item + suffix
	}
	return strings.Join(items, " "), nil
}

func builtinPrefix(ctx Context, args []Node) (string, error) {
	values, err := evalAll(ctx, args)
	if err != nil {
		return "", err
	}
	items := lists.Split(values[0])
	prefix := values[1]
	for i, item := range items {
		dir, base := filepath.Split(item)
		items[i] = dir + prefix + base
	}
	return lists.Join(items), nil
}

func builtinSuffix(ctx Context, args []Node) (string, error) {
	values, err := evalAll(ctx, args)
	if err != nil {
		return "", err
	}
	items := lists.Split(values[0])
	suffix := values[1]
	for i, item := range items {
		items[i] = lists.SetSuffix(item, suffix)
	}
	return lists.Join(items), nil
}

func builtinSubst(ctx Context, args []Node) (string, error) {
	values, err := evalAll(ctx, args)
	if err != nil {
		return "", err
	}
	from, to := values[0], values[1]
	items := lists.Split(values[2])
	for i, item := range items {
		items[i] = strings.ReplaceAll(item, from, to)
	}
	return lists.Join(items), nil
}

func builtinSplit(ctx Context, args []Node) (string, error) {
	if len(args) < 1 {
		return "", &ArityError{Fn: "split", Want: 1, Got: 0}
	}
	items, err := argItems(ctx, args)
	if err != nil {
		return "", err
	}
	return strings.Join(items, " "), nil
}

func builtinQuote(ctx Context, args []Node) (string, error) {
	values, err := evalAll(ctx, args)
	if err != nil {
		return "", err
	}
	return strings.Join(lists.QuoteList(values), " "), nil
}

func builtinQuoteall(ctx Context, args []Node) (string, error) {
	items, err := argItems(ctx, args)
	if err != nil {
		return "", err
	}
	return lists.Join(lists.QuoteList(items)), nil
}

func builtinQuotesplit(ctx Context, args []Node) (string, error) {
	items, err := argItems(ctx, args)
	if err != nil {
		return "", err
	}
	return strings.Join(lists.QuoteList(items), " "), nil
}

func builtinWildcard(ctx Context, args []Node) (string, error) {
	patterns, err := argItems(ctx, args)
	if err != nil {
		return "", err
	}

	var projectPath string
	if node, ok := ctx.Get("ProjectPath"); ok {
		projectPath, err = evalString(node, ctx)
		if err != nil {
			return "", err
		}
	}

	var items []string
	seen := make(map[string]bool)
	for _, pattern := range patterns {
		if projectPath != "" && !filepath.IsAbs(pattern) {
			pattern = filepath.Join(projectPath, pattern)
		}
		matches, _, err := wildcardFs.Glob(pattern, nil, pathtools.FollowSymlinks)
		if err != nil {
			continue
		}
		// Glob order is filesystem dependent; sort for reproducible
		// manifests.
		sort.Strings(matches)
		for _, match := range matches {
			if !seen[match] {
				seen[match] = true
				items = append(items, match)
			}
		}
	}
	return lists.Join(items), nil
}

func builtinMove(ctx Context, args []Node) (string, error) {
	values, err := evalAll(ctx, args)
	if err != nil {
		return "", err
	}
	items := lists.Split(values[0])
	base, newBase := values[1], values[2]
	for i, item := range items {
		rel, err := filepath.Rel(base, item)
		if err != nil {
			continue
		}
		items[i] = filepath.Join(newBase, rel)
	}
	return lists.Join(items), nil
}

func builtinDir(ctx Context, args []Node) (string, error) {
	if len(args) < 1 {
		return "", &ArityError{Fn: "dir", Want: 1, Got: 0}
	}
	items, err := argItems(ctx, args)
	if err != nil {
		return "", err
	}
	for i, item := range items {
		items[i] = filepath.Dir(item)
	}
	return lists.Join(items), nil
}
