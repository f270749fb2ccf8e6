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
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// loadSingleUnit runs one scripted unit and returns it.
func loadSingleUnit(t *testing.T, id string, script scriptFunc) *Unit {
	t.Helper()
	ws := newTestWorkspace(t, map[string]scriptFunc{id: script})
	u, err := ws.LoadUnit(id)
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func TestTargetBuild(t *testing.T) {
	u := loadSingleUnit(t, "unit", func(u *Unit, path string) error {
		u.Context.SetString("CC", "gcc")
		_, err := u.AddTarget("compile", func(tgt *Target) error {
			return tgt.Build("a.c;b.c", "main", "$CC -o $@ $<", false)
		})
		return err
	})
	if err := u.ws.SetupAll(); err != nil {
		t.Fatal(err)
	}

	tgt, _ := u.Target("compile")
	entries := tgt.Entries()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}

	pp := u.ProjectPath()
	wantIn := []string{filepath.Join(pp, "a.c"), filepath.Join(pp, "b.c")}
	wantOut := []string{filepath.Join(pp, "main")}
	if diff := cmp.Diff(wantIn, entries[0].Inputs); diff != "" {
		t.Errorf("Inputs mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(wantOut, entries[0].Outputs); diff != "" {
		t.Errorf("Outputs mismatch (-want +got):\n%s", diff)
	}
	wantCmd := "gcc -o " + wantOut[0] + " " + strings.Join(wantIn, " ")
	if entries[0].Command != wantCmd {
		t.Errorf("Command = %q, want %q", entries[0].Command, wantCmd)
	}
}

func TestTargetBuildEach(t *testing.T) {
	u := loadSingleUnit(t, "unit", func(u *Unit, path string) error {
		_, err := u.AddTarget("objects", func(tgt *Target) error {
			return tgt.Build("a.c;b.c", "a.o;b.o", "cc -c -o $@ $<", true)
		})
		return err
	})
	if err := u.ws.SetupAll(); err != nil {
		t.Fatal(err)
	}

	tgt, _ := u.Target("objects")
	entries := tgt.Entries()
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	pp := u.ProjectPath()
	for i, base := range []string{"a", "b"} {
		wantCmd := "cc -c -o " + filepath.Join(pp, base+".o") + " " + filepath.Join(pp, base+".c")
		if entries[i].Command != wantCmd {
			t.Errorf("entry %d Command = %q, want %q", i, entries[i].Command, wantCmd)
		}
	}
}

func TestTargetBuildEachLengthMismatch(t *testing.T) {
	u := loadSingleUnit(t, "unit", func(u *Unit, path string) error {
		_, err := u.AddTarget("bad", func(tgt *Target) error {
			return tgt.Build("a.c;b.c", "a.o", "cc", true)
		})
		return err
	})
	if err := u.ws.SetupAll(); err == nil {
		t.Fatal("SetupAll succeeded, want length mismatch error")
	}
}

func TestTargetScopeVisibleInBuild(t *testing.T) {
	u := loadSingleUnit(t, "unit", func(u *Unit, path string) error {
		u.Scope["flags"] = "-Wall"
		_, err := u.AddTarget("compile", func(tgt *Target) error {
			return tgt.Build("a.c", "a.o", "cc $flags $<", false)
		})
		return err
	})
	if err := u.ws.SetupAll(); err != nil {
		t.Fatal(err)
	}
	tgt, _ := u.Target("compile")
	cmd := tgt.Entries()[0].Command
	if !strings.Contains(cmd, "-Wall") {
		t.Errorf("Command = %q, want script scope variable expanded", cmd)
	}
}

func TestTargetListeners(t *testing.T) {
	var kinds []string
	u := loadSingleUnit(t, "unit", func(u *Unit, path string) error {
		tgt, err := u.AddTarget("compile", func(tgt *Target) error {
			return tgt.Build("a.c", "a.o", "cc $<", false)
		})
		if err != nil {
			return err
		}
		tgt.Listen(func(tgt *Target, ev *Event) error {
			kinds = append(kinds, ev.Kind)
			if ev.Kind == EventBuild {
				ev.Auxiliary = append(ev.Auxiliary, "extra.h")
			}
			return nil
		})
		return nil
	})
	if err := u.ws.SetupAll(); err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff([]string{EventSetup, EventBuild}, kinds); diff != "" {
		t.Errorf("listener kinds mismatch (-want +got):\n%s", diff)
	}
	tgt, _ := u.Target("compile")
	aux := tgt.Entries()[0].Auxiliary
	want := []string{filepath.Join(u.ProjectPath(), "extra.h")}
	if diff := cmp.Diff(want, aux); diff != "" {
		t.Errorf("Auxiliary mismatch (-want +got):\n%s", diff)
	}
}

func TestRequiresSetsUpDependency(t *testing.T) {
	var setupOrder []string
	ws := newTestWorkspace(t, map[string]scriptFunc{
		"unit": func(u *Unit, path string) error {
			if _, err := u.AddTarget("app", func(tgt *Target) error {
				setupOrder = append(setupOrder, "app")
				if err := tgt.Requires("lib"); err != nil {
					return err
				}
				return tgt.Build("app.c", "app", "cc", false)
			}); err != nil {
				return err
			}
			_, err := u.AddTarget("lib", func(tgt *Target) error {
				setupOrder = append(setupOrder, "lib")
				return tgt.Build("lib.c", "lib.a", "ar", false)
			})
			return err
		},
	})
	u, err := ws.LoadUnit("unit")
	if err != nil {
		t.Fatal(err)
	}
	if err := ws.SetupAll(); err != nil {
		t.Fatal(err)
	}

	// app is declared first but pulls lib's setup forward through its
	// dependency edge; SetupAll must not set lib up twice.
	if diff := cmp.Diff([]string{"app", "lib"}, setupOrder); diff != "" {
		t.Errorf("setup order mismatch (-want +got):\n%s", diff)
	}
	app, _ := u.Target("app")
	deps := app.Dependencies()
	if len(deps) != 1 || deps[0].Name() != "lib" {
		t.Fatalf("app dependencies = %v, want [lib]", deps)
	}
}

func TestDoubleSetupFails(t *testing.T) {
	u := loadSingleUnit(t, "unit", func(u *Unit, path string) error {
		_, err := u.AddTarget("once", nil)
		return err
	})
	tgt, _ := u.Target("once")
	if err := tgt.DoSetup(); err != nil {
		t.Fatal(err)
	}
	err := tgt.DoSetup()
	if _, ok := err.(*SetupError); !ok {
		t.Errorf("second DoSetup = %v, want *SetupError", err)
	}
}

func TestNameCollision(t *testing.T) {
	loadSingleUnit(t, "unit", func(u *Unit, path string) error {
		if _, err := u.AddTarget("name", nil); err != nil {
			return err
		}
		_, err := u.AddTarget("name", nil)
		if _, ok := err.(*NameCollisionError); !ok {
			t.Errorf("duplicate target = %v, want *NameCollisionError", err)
		}
		_, err = u.AddTask("name", func(args []string) error { return nil })
		if _, ok := err.(*NameCollisionError); !ok {
			t.Errorf("task reusing target name = %v, want *NameCollisionError", err)
		}
		return nil
	})
}
