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
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/creator-build/creator/ui/logger"
	"github.com/creator-build/creator/workspace"
)

// loadUnits writes the scripts into a temp directory and loads main.
func loadUnits(t *testing.T, scripts map[string]string, main string) (*workspace.Workspace, *workspace.Unit) {
	t.Helper()
	dir := t.TempDir()
	for id, src := range scripts {
		path := filepath.Join(dir, id+workspace.UnitFileSuffix)
		if err := os.WriteFile(path, []byte(src), 0666); err != nil {
			t.Fatal(err)
		}
	}

	var logBuf bytes.Buffer
	runner := NewRunner(logger.New(&logBuf))
	runner.Stdin = strings.NewReader("")
	runner.Stdout = &logBuf
	runner.Stderr = &logBuf

	ws := workspace.New()
	ws.Path = []string{dir}
	ws.Runner = runner

	u, err := ws.LoadUnit(main)
	if err != nil {
		t.Fatalf("LoadUnit(%q): %v", main, err)
	}
	return ws, u
}

func evalUnit(t *testing.T, u *workspace.Unit, text string) string {
	t.Helper()
	got, err := u.Eval(text)
	if err != nil {
		t.Fatalf("Eval(%q): %v", text, err)
	}
	return got
}

func TestDefineAndSelfReference(t *testing.T) {
	_, u := loadUnits(t, map[string]string{
		"main": `
define("A", "1;2")
define("A", "$A;3")
`,
	}, "main")
	if got := evalUnit(t, u, "$A"); got != "1;2;3" {
		t.Errorf("eval($A) = %q, want %q", got, "1;2;3")
	}
}

func TestDefinedAndAppend(t *testing.T) {
	_, u := loadUnits(t, map[string]string{
		"main": `
if defined("Missing"):
    fail("Missing is defined")
define("Flags", "-Wall")
append("Flags", "-O2")
if not defined("Flags"):
    fail("Flags is not defined")
`,
	}, "main")
	if got := evalUnit(t, u, "$Flags"); got != "-Wall -O2" {
		t.Errorf("eval($Flags) = %q, want %q", got, "-Wall -O2")
	}
}

func TestContextMappingAccess(t *testing.T) {
	ws, u := loadUnits(t, map[string]string{
		"main": `
C["Local"] = "local value"
G["Global"] = "global value"
got = C["Local"]
`,
	}, "main")
	if got := evalUnit(t, u, "$Local"); got != "local value" {
		t.Errorf("eval($Local) = %q, want %q", got, "local value")
	}
	if got, ok := u.Scope["got"].(string); !ok || got != "local value" {
		t.Errorf("script read C[Local] = %v, want %q", u.Scope["got"], "local value")
	}
	if !ws.Context.Has("Global") {
		t.Error("G assignment did not reach the workspace context")
	}
}

func TestEvalInScript(t *testing.T) {
	_, u := loadUnits(t, map[string]string{
		"main": `
define("X", "a;b")
joined = eval("$(split $X)")
if not eq("$(split $X)", "a b"):
    fail("eq is broken")
if ne("$X", "a;b"):
    fail("ne is broken")
`,
	}, "main")
	if got := u.Scope["joined"]; got != "a b" {
		t.Errorf("joined = %v, want %q", got, "a b")
	}
}

func TestScriptScopeVisibleToMacros(t *testing.T) {
	_, u := loadUnits(t, map[string]string{
		"main": `cflags = "-O2 -g"`,
	}, "main")
	if got := evalUnit(t, u, "$cflags"); got != "-O2 -g" {
		t.Errorf("eval($cflags) = %q, want %q", got, "-O2 -g")
	}
}

func TestRawValueIsNotParsed(t *testing.T) {
	_, u := loadUnits(t, map[string]string{
		"main": `define("X", raw("$(not a call)"))`,
	}, "main")
	if got := evalUnit(t, u, "$X"); got != "$(not a call)" {
		t.Errorf("eval($X) = %q, want %q", got, "$(not a call)")
	}
}

func TestLoadWithAlias(t *testing.T) {
	_, u := loadUnits(t, map[string]string{
		"lib": `define("Flag", "-fPIC")`,
		"main": `
load("lib", alias="l")
`,
	}, "main")
	if got := evalUnit(t, u, "$(l:Flag)"); got != "-fPIC" {
		t.Errorf("eval($(l:Flag)) = %q, want %q", got, "-fPIC")
	}
}

func TestExtends(t *testing.T) {
	_, u := loadUnits(t, map[string]string{
		"base": `
define("CC", "gcc")
define("CFlags", "-Wall")
`,
		"main": `
define("CFlags", "-O2")
extends("base")
`,
	}, "main")
	// Inherited macros fill the gaps; existing ones are kept.
	if got := evalUnit(t, u, "$CC"); got != "gcc" {
		t.Errorf("eval($CC) = %q, want %q", got, "gcc")
	}
	if got := evalUnit(t, u, "$CFlags"); got != "-O2" {
		t.Errorf("eval($CFlags) = %q, want %q", got, "-O2")
	}
}

func TestTargetRegistrationAndSetup(t *testing.T) {
	ws, u := loadUnits(t, map[string]string{
		"main": `
def compile(t):
    t.build("a.c;b.c", "$(suffix a.c;b.c,.o)", "cc -c $<", each=True)

def link(t):
    t.requires("compile")
    t.build("a.o;b.o", "app", "cc -o $@ $<")

target(compile)
target(link)
`,
	}, "main")
	if err := ws.SetupAll(); err != nil {
		t.Fatal(err)
	}

	compile, ok := u.Target("compile")
	if !ok {
		t.Fatal("target compile not registered")
	}
	if len(compile.Entries()) != 2 {
		t.Errorf("compile has %d entries, want 2", len(compile.Entries()))
	}
	link, _ := u.Target("link")
	if len(link.Dependencies()) != 1 {
		t.Errorf("link has %d dependencies, want 1", len(link.Dependencies()))
	}
}

func TestTargetWithoutSelfParam(t *testing.T) {
	ws, u := loadUnits(t, map[string]string{
		"main": `
def probe():
    define("Probed", "yes")

target(probe)
`,
	}, "main")
	if err := ws.SetupAll(); err != nil {
		t.Fatal(err)
	}
	if _, ok := u.Target("probe"); !ok {
		t.Error("target probe not registered")
	}
	if got := evalUnit(t, u, "$Probed"); got != "yes" {
		t.Errorf("eval($Probed) = %q, want %q", got, "yes")
	}
}

func TestTargetNameCollision(t *testing.T) {
	dir := t.TempDir()
	src := `
def tgt(t):
    pass

target(tgt)
target(tgt)
`
	if err := os.WriteFile(filepath.Join(dir, "main"+workspace.UnitFileSuffix), []byte(src), 0666); err != nil {
		t.Fatal(err)
	}
	ws := workspace.New()
	ws.Path = []string{dir}
	ws.Runner = NewRunner(logger.New(new(bytes.Buffer)))
	if _, err := ws.LoadUnit("main"); err == nil {
		t.Fatal("duplicate target registration succeeded")
	}
}

func TestTaskRegistration(t *testing.T) {
	_, u := loadUnits(t, map[string]string{
		"main": `
def clean(args):
    define("CleanArgs", ";".join(args))

task(clean)
`,
	}, "main")
	task, ok := u.Task("clean")
	if !ok {
		t.Fatal("task clean not registered")
	}
	if err := task.Run([]string{"x", "y"}); err != nil {
		t.Fatal(err)
	}
	if got := evalUnit(t, u, "$CleanArgs"); got != "x;y" {
		t.Errorf("eval($CleanArgs) = %q, want %q", got, "x;y")
	}
}

func TestExit(t *testing.T) {
	_, u := loadUnits(t, map[string]string{
		"main": `
define("Before", "yes")
exit()
define("After", "yes")
`,
	}, "main")
	if !u.Context.Has("Before") {
		t.Error("statements before exit did not run")
	}
	if u.Context.Has("After") {
		t.Error("statements after exit ran")
	}
}

func TestExitNonZero(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "main"+workspace.UnitFileSuffix), []byte("exit(3)\n"), 0666); err != nil {
		t.Fatal(err)
	}
	ws := workspace.New()
	ws.Path = []string{dir}
	ws.Runner = NewRunner(logger.New(new(bytes.Buffer)))
	_, err := ws.LoadUnit("main")
	var exitErr *ExitCodeError
	if !errors.As(err, &exitErr) || exitErr.Code != 3 {
		t.Fatalf("LoadUnit = %v, want ExitCodeError with code 3", err)
	}
}

func TestShellGet(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("POSIX shell")
	}
	_, u := loadUnits(t, map[string]string{
		"main": `
r = shell_get("echo hello")
define("Out", r.output.strip())
status = r.status
`,
	}, "main")
	if got := evalUnit(t, u, "$Out"); got != "hello" {
		t.Errorf("eval($Out) = %q, want %q", got, "hello")
	}
}

func TestForeachSplit(t *testing.T) {
	_, u := loadUnits(t, map[string]string{
		"main": `
pairs = foreach_split("a.c;b.c", "a.o;b.o")
`,
	}, "main")
	pairs := u.Scope["pairs"]
	if pairs == nil {
		t.Fatal("pairs missing from scope")
	}
}
