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

// Package workspace manages the units loaded into a build session: the
// global macro context, the unit search path, cross unit aliasing and the
// target registries that are later exported as a Ninja manifest.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/creator-build/creator/macro"
)

// UnitFileSuffix is the file name suffix of unit scripts.
const UnitFileSuffix = ".crunit"

// EnvPath is the environment variable appending to the unit search path.
const EnvPath = "CREATORPATH"

// A ScriptRunner executes a unit script file inside a sandbox that exposes
// the unit API. The embedded scripting host implements it.
type ScriptRunner interface {
	RunUnitScript(u *Unit, path string) error
}

// A UnitNotFoundError reports a unit identifier that no search path entry
// resolves.
type UnitNotFoundError struct {
	Identifier string
	Path       []string
}

func (e *UnitNotFoundError) Error() string {
	return fmt.Sprintf("unit %q not found in path %v", e.Identifier, e.Path)
}

// A Workspace is the root of a build session. It owns the search path, the
// global macro context and the registry of loaded units.
type Workspace struct {
	// Path is the ordered list of directories searched for unit files.
	Path []string

	// Context is the global macro context.
	Context *Context

	// Runner executes unit scripts. It must be set before LoadUnit.
	Runner ScriptRunner

	units   map[string]*Unit
	order   []string
	statics map[string]*Unit
}

// New returns an empty workspace with its search path seeded from the
// builtin unit directory next to the executable, the CREATORPATH
// environment variable and the working directory.
func New() *Workspace {
	ws := &Workspace{
		units:   make(map[string]*Unit),
		statics: make(map[string]*Unit),
	}
	ws.Context = newContext(ws)

	if exe, err := os.Executable(); err == nil {
		builtin := filepath.Join(filepath.Dir(exe), "units")
		if info, err := os.Stat(builtin); err == nil && info.IsDir() {
			ws.Path = append(ws.Path, builtin)
		}
	}
	if env := os.Getenv(EnvPath); env != "" {
		for _, dir := range filepath.SplitList(env) {
			if dir != "" {
				ws.Path = append(ws.Path, dir)
			}
		}
	}
	if cwd, err := os.Getwd(); err == nil {
		ws.Path = append(ws.Path, cwd)
	}
	return ws
}

// SeedPlatform injects the platform probe macros into the global context.
func (ws *Workspace) SeedPlatform() {
	platform := runtime.GOOS
	if platform == "darwin" {
		platform = "macos"
	}
	ws.Context.Set("OS", &macro.Text{Text: runtime.GOOS})
	ws.Context.Set("Arch", &macro.Text{Text: runtime.GOARCH})
	ws.Context.Set("Platform", &macro.Text{Text: platform})
}

// Units returns the loaded units in registration order.
func (ws *Workspace) Units() []*Unit {
	units := make([]*Unit, 0, len(ws.order))
	for _, id := range ws.order {
		units = append(units, ws.units[id])
	}
	return units
}

// Unit returns the unit registered under identifier.
func (ws *Workspace) Unit(identifier string) (*Unit, bool) {
	u, ok := ws.units[identifier]
	return u, ok
}

// FindUnitFile locates the script file for identifier, looking for
// <dir>/<identifier>.crunit in every search directory and one subdirectory
// level deeper. The first match wins.
func (ws *Workspace) FindUnitFile(identifier string) (string, error) {
	name := identifier + UnitFileSuffix
	for _, dir := range ws.Path {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			candidate := filepath.Join(dir, entry.Name(), name)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate, nil
			}
		}
	}
	return "", &UnitNotFoundError{Identifier: identifier, Path: ws.Path}
}

// LoadUnit loads the unit registered under identifier, executing its
// script if it is not loaded yet. The unit is registered before the script
// runs so that recursive loads terminate; registration is rolled back when
// the script fails.
func (ws *Workspace) LoadUnit(identifier string) (*Unit, error) {
	if u, ok := ws.units[identifier]; ok {
		return u, nil
	}
	path, err := ws.FindUnitFile(identifier)
	if err != nil {
		return nil, err
	}
	u, err := NewUnit(ws, identifier, filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	ws.units[identifier] = u
	ws.order = append(ws.order, identifier)
	if err := ws.Runner.RunUnitScript(u, path); err != nil {
		delete(ws.units, identifier)
		for i, id := range ws.order {
			if id == identifier {
				ws.order = append(ws.order[:i], ws.order[i+1:]...)
				break
			}
		}
		return nil, err
	}
	return u, nil
}

// LoadStatic executes path as a hidden unit that takes no part in target
// setup or manifest export. Used for the per user profile script.
func (ws *Workspace) LoadStatic(path string) (*Unit, error) {
	if u, ok := ws.statics[path]; ok {
		return u, nil
	}
	identifier := strings.TrimSuffix(filepath.Base(path), UnitFileSuffix)
	identifier = strings.TrimPrefix(identifier, ".")
	if identifier == "" || !identRe.MatchString(identifier) {
		identifier = "static"
	}
	u, err := NewUnit(ws, identifier, filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	ws.statics[path] = u
	if err := ws.Runner.RunUnitScript(u, path); err != nil {
		delete(ws.statics, path)
		return nil, err
	}
	return u, nil
}

// ProfilePath returns the location of the per user profile script, or the
// empty string if it cannot be determined.
func ProfilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".creator_profile")
}

// SetupAll sets up every target of every unit: units in registration
// order, targets in declaration order. Targets already set up through a
// dependency edge are skipped.
func (ws *Workspace) SetupAll() error {
	for _, id := range ws.order {
		u := ws.units[id]
		for _, name := range u.targetOrder {
			t := u.targets[name]
			if t.IsSetup() {
				continue
			}
			if err := t.DoSetup(); err != nil {
				return err
			}
		}
	}
	return nil
}
