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

// creator loads unit scripts, resolves their macros and targets, exports
// a Ninja manifest and dispatches builds to Ninja or tasks in process.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"

	"github.com/creator-build/creator/lists"
	"github.com/creator-build/creator/macro"
	"github.com/creator-build/creator/ninja"
	"github.com/creator-build/creator/script"
	"github.com/creator-build/creator/ui/build"
	"github.com/creator-build/creator/ui/logger"
	"github.com/creator-build/creator/workspace"
)

const defaultManifest = "build.ninja"

var (
	flagDefines   = pflag.StringArrayP("define", "D", nil, "define a global macro as literal text (KEY[=VAL])")
	flagMacros    = pflag.StringArrayP("macro", "M", nil, "define a global macro, parsing VAL as a macro expression (KEY[=VAL])")
	flagUnitPath  = pflag.StringArrayP("unitpath", "i", nil, "prepend a directory to the unit search path")
	flagUnit      = pflag.StringP("unit", "u", "", "identifier of the main unit")
	flagExport    = pflag.BoolP("export", "e", false, "only export the manifest, do not run anything")
	flagNoExport  = pflag.BoolP("no-export", "n", false, "skip exporting the manifest")
	flagDry       = pflag.BoolP("dry", "d", false, "load and set up the workspace, then exit")
	flagOutput    = pflag.StringP("output", "o", "", "manifest output path")
	flagClean     = pflag.BoolP("clean", "c", false, "run the Ninja clean tool")
	flagVerbose   = pflag.BoolP("verbose", "v", false, "verbose output, passed through to Ninja")
	flagNinjaArgs = pflag.StringArrayP("args", "a", nil, "raw arguments passed to Ninja")
)

// usageError prints a CLI misuse message and exits with status 2.
func usageError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "creator: %s\n", fmt.Sprintf(format, args...))
	pflag.Usage()
	os.Exit(2)
}

func main() {
	pflag.Parse()
	if *flagExport && *flagNoExport {
		usageError("-e and -n are mutually exclusive")
	}
	if *flagDry && *flagExport {
		usageError("-d and -e are mutually exclusive")
	}

	log := logger.New(os.Stderr)
	log.SetVerbose(*flagVerbose)

	ws := workspace.New()
	ws.Path = append(append([]string{}, (*flagUnitPath)...), ws.Path...)
	ws.SeedPlatform()
	ws.Runner = script.NewRunner(log)

	if profile := workspace.ProfilePath(); profile != "" {
		if _, err := os.Stat(profile); err == nil {
			if _, err := ws.LoadStatic(profile); err != nil {
				log.Fatalf("creator: %s: %s", profile, err)
			}
		}
	}

	for _, define := range *flagDefines {
		key, value := splitDefine(define)
		if key == "" {
			usageError("invalid -D %q", define)
		}
		ws.Context.Set(key, &macro.Text{Text: value})
	}
	for _, define := range *flagMacros {
		key, value := splitDefine(define)
		if key == "" {
			usageError("invalid -M %q", define)
		}
		ws.Context.SetString(key, value)
	}

	identifier := *flagUnit
	if identifier == "" {
		identifier = discoverUnit()
	}
	mainUnit, err := ws.LoadUnit(identifier)
	if err != nil {
		log.Fatalf("creator: %s", err)
	}
	if err := ws.SetupAll(); err != nil {
		log.Fatalf("creator: %s", err)
	}
	if *flagDry {
		return
	}

	// Positional arguments name graph targets or tasks.
	var ninjaTargets []string
	var defaults []string
	var tasks []*workspace.Task
	for _, ref := range pflag.Args() {
		target, task := resolveRef(ws, mainUnit, ref)
		switch {
		case target != nil:
			ninjaTargets = append(ninjaTargets, ninja.Ident(target.ID()))
			defaults = append(defaults, ref)
		case task != nil:
			tasks = append(tasks, task)
		default:
			usageError("no such target or task %q", ref)
		}
	}
	if *flagExport && len(tasks) > 0 {
		log.Printf("creator: warning: task arguments are ignored with -e")
	}

	manifest := *flagOutput
	if manifest == "" {
		manifest = manifestPath(mainUnit)
	}
	if !*flagNoExport {
		if err := exportManifest(ws, mainUnit, manifest, defaults); err != nil {
			log.Fatalf("creator: %s", err)
		}
		log.Verbosef("creator: exported %s", manifest)
	}
	if *flagExport {
		return
	}

	if len(tasks) == 0 || len(ninjaTargets) > 0 || *flagClean {
		err := build.RunNinja(log, build.NinjaOptions{
			Manifest: manifest,
			Targets:  ninjaTargets,
			Clean:    *flagClean,
			Verbose:  *flagVerbose,
			Args:     *flagNinjaArgs,
		})
		if err != nil {
			if _, ok := err.(*exec.ExitError); ok {
				os.Exit(1)
			}
			log.Fatalf("creator: %s", err)
		}
	}

	for _, task := range tasks {
		if err := task.Run(nil); err != nil {
			log.Fatalf("creator: task %s: %s", task.ID(), err)
		}
	}
}

// splitDefine splits a KEY[=VAL] argument; a missing value yields the
// empty string.
func splitDefine(s string) (string, string) {
	if i := strings.IndexByte(s, '='); i >= 0 {
		return s[:i], s[i+1:]
	}
	return s, ""
}

// discoverUnit finds the single *.crunit file in the working directory.
func discoverUnit() string {
	matches, err := filepath.Glob("*" + workspace.UnitFileSuffix)
	if err != nil || len(matches) == 0 {
		usageError("no %s file in the current directory; use -u", workspace.UnitFileSuffix)
	}
	if len(matches) > 1 {
		usageError("multiple %s files in the current directory; use -u", workspace.UnitFileSuffix)
	}
	return strings.TrimSuffix(filepath.Base(matches[0]), workspace.UnitFileSuffix)
}

// resolveRef looks up a positional argument as a target or task, in the
// main unit for bare names.
func resolveRef(ws *workspace.Workspace, main *workspace.Unit, ref string) (*workspace.Target, *workspace.Task) {
	ns, name, qualified := lists.ParseVar(ref)
	u := main
	if qualified && ns != "" {
		other, ok := ws.Unit(main.ResolveAlias(ns))
		if !ok {
			return nil, nil
		}
		u = other
	}
	if target, ok := u.Target(name); ok {
		return target, nil
	}
	if task, ok := u.Task(name); ok {
		return nil, task
	}
	return nil, nil
}

// manifestPath returns the main unit's NinjaOut macro, or build.ninja.
func manifestPath(main *workspace.Unit) string {
	if main.Context.Has("NinjaOut") {
		if path, err := main.Eval("$(self:NinjaOut)"); err == nil && path != "" {
			return path
		}
	}
	return defaultManifest
}

func exportManifest(ws *workspace.Workspace, main *workspace.Unit, path string, defaults []string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := ninja.Export(f, ws, main, defaults); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
