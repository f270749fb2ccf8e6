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

package ninja

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/creator-build/creator/workspace"
)

type scriptFunc func(u *workspace.Unit, path string) error

func (f scriptFunc) RunUnitScript(u *workspace.Unit, path string) error {
	return f(u, path)
}

// buildWorkspace loads scripted units and sets all targets up.
func buildWorkspace(t *testing.T, scripts map[string]scriptFunc, main string) (*workspace.Workspace, *workspace.Unit) {
	t.Helper()
	ws := workspace.New()
	dir := t.TempDir()
	for id := range scripts {
		if err := os.WriteFile(filepath.Join(dir, id+workspace.UnitFileSuffix), nil, 0666); err != nil {
			t.Fatal(err)
		}
	}
	ws.Path = []string{dir}
	ws.Runner = scriptFunc(func(u *workspace.Unit, path string) error {
		return scripts[u.ID()](u, path)
	})
	mainUnit, err := ws.LoadUnit(main)
	if err != nil {
		t.Fatal(err)
	}
	for id := range scripts {
		if _, err := ws.LoadUnit(id); err != nil {
			t.Fatal(err)
		}
	}
	if err := ws.SetupAll(); err != nil {
		t.Fatal(err)
	}
	return ws, mainUnit
}

func export(t *testing.T, ws *workspace.Workspace, main *workspace.Unit, defaults []string) string {
	t.Helper()
	var buf bytes.Buffer
	if err := Export(&buf, ws, main, defaults); err != nil {
		t.Fatal(err)
	}
	return buf.String()
}

func TestIdent(t *testing.T) {
	testCases := []struct {
		in, out string
	}{
		{"p:foo-bar", "p_foo_bar"},
		{"already_fine", "already_fine"},
		{"a::b..c", "a_b_c"},
	}
	for _, test := range testCases {
		if got := Ident(test.in); got != test.out {
			t.Errorf("Ident(%q) = %q, want %q", test.in, got, test.out)
		}
	}
}

func TestWriterEscaping(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.Build([]string{"out dir/a$b:c"}, "cc", []string{"in put.c"})
	w.Rule("cc", "echo $PATH")
	if err := w.Err(); err != nil {
		t.Fatal(err)
	}
	got := buf.String()
	if !strings.Contains(got, "build out$ dir/a$$b$:c: cc in$ put.c") {
		t.Errorf("path escaping wrong:\n%s", got)
	}
	if !strings.Contains(got, "command = echo $$PATH") {
		t.Errorf("command escaping wrong:\n%s", got)
	}
}

func TestRuleNamesAndPhony(t *testing.T) {
	ws, main := buildWorkspace(t, map[string]scriptFunc{
		"p": func(u *workspace.Unit, path string) error {
			_, err := u.AddTarget("foo-bar", func(tgt *workspace.Target) error {
				if err := tgt.Build("a.c", "a.o", "cc a", false); err != nil {
					return err
				}
				return tgt.Build("b.c", "b.o", "cc b", false)
			})
			return err
		},
	}, "p")
	got := export(t, ws, main, nil)

	for _, want := range []string{"rule p_foo_bar_0000", "rule p_foo_bar_0001"} {
		if !strings.Contains(got, want+"\n") {
			t.Errorf("missing %q in:\n%s", want, got)
		}
	}

	pp := main.ProjectPath()
	phony := "build p_foo_bar: phony " +
		escapePath(filepath.Join(pp, "a.o")) + " " + escapePath(filepath.Join(pp, "b.o"))
	if !strings.Contains(got, phony+"\n") {
		t.Errorf("missing phony aggregator %q in:\n%s", phony, got)
	}
}

func TestDependencyFanIn(t *testing.T) {
	ws, main := buildWorkspace(t, map[string]scriptFunc{
		"p": func(u *workspace.Unit, path string) error {
			if _, err := u.AddTarget("A", func(tgt *workspace.Target) error {
				return tgt.Build("a.c", "a.o", "cc a", false)
			}); err != nil {
				return err
			}
			_, err := u.AddTarget("B", func(tgt *workspace.Target) error {
				if err := tgt.Requires("A"); err != nil {
					return err
				}
				return tgt.Build("b.c", "b.o", "cc b", false)
			})
			return err
		},
	}, "p")
	got := export(t, ws, main, nil)

	pp := main.ProjectPath()
	bO := escapePath(filepath.Join(pp, "b.o"))
	bC := escapePath(filepath.Join(pp, "b.c"))
	aO := escapePath(filepath.Join(pp, "a.o"))

	edge := "build " + bO + ": p_B_0000 " + bC + " " + aO
	if !strings.Contains(got, edge+"\n") {
		t.Errorf("missing fan-in edge %q in:\n%s", edge, got)
	}
	// The dependency output appears exactly once.
	buildLine := ""
	for _, line := range strings.Split(got, "\n") {
		if strings.HasPrefix(line, "build "+bO+":") {
			buildLine = line
		}
	}
	if strings.Count(buildLine, aO) != 1 {
		t.Errorf("dependency output not deduplicated in %q", buildLine)
	}
}

func TestExportDeterminism(t *testing.T) {
	scripts := map[string]scriptFunc{
		"zeta": func(u *workspace.Unit, path string) error {
			_, err := u.AddTarget("z", func(tgt *workspace.Target) error {
				return tgt.Build("z.c", "z.o", "cc z", false)
			})
			return err
		},
		"alpha": func(u *workspace.Unit, path string) error {
			if _, err := u.AddTarget("b", func(tgt *workspace.Target) error {
				return tgt.Build("b.c", "b.o", "cc b", false)
			}); err != nil {
				return err
			}
			_, err := u.AddTarget("a", func(tgt *workspace.Target) error {
				return tgt.Build("a.c", "a.o", "cc a", false)
			})
			return err
		},
	}
	ws, main := buildWorkspace(t, scripts, "zeta")
	first := export(t, ws, main, nil)
	second := export(t, ws, main, nil)
	if first != second {
		t.Error("two exports of the same workspace differ")
	}

	// Units ascending, targets ascending within a unit.
	idxAlpha := strings.Index(first, "# Unit: alpha")
	idxZeta := strings.Index(first, "# Unit: zeta")
	if idxAlpha < 0 || idxZeta < 0 || idxAlpha > idxZeta {
		t.Errorf("unit order wrong:\n%s", first)
	}
	idxA := strings.Index(first, "# Target: alpha:a")
	idxB := strings.Index(first, "# Target: alpha:b")
	if idxA < 0 || idxB < 0 || idxA > idxB {
		t.Errorf("target order wrong:\n%s", first)
	}
}

func TestExportDefaults(t *testing.T) {
	ws, main := buildWorkspace(t, map[string]scriptFunc{
		"p": func(u *workspace.Unit, path string) error {
			_, err := u.AddTarget("app", func(tgt *workspace.Target) error {
				return tgt.Build("a.c", "app", "cc", false)
			})
			return err
		},
	}, "p")
	got := export(t, ws, main, []string{"app"})
	want := "default " + escapePath(filepath.Join(main.ProjectPath(), "app"))
	if !strings.Contains(got, want+"\n") {
		t.Errorf("missing %q in:\n%s", want, got)
	}

	var buf bytes.Buffer
	if err := Export(&buf, ws, main, []string{"missing"}); err == nil {
		t.Error("Export with unknown default succeeded")
	}
}
