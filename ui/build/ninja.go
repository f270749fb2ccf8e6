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

// Package build invokes the external Ninja process on an exported
// manifest.
package build

import (
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/creator-build/creator/ui/logger"
)

// NinjaOptions control one Ninja invocation.
type NinjaOptions struct {
	// Manifest is the build file passed with -f.
	Manifest string

	// Targets are the Ninja targets to build; empty builds the defaults.
	Targets []string

	// Clean runs the clean tool instead of building.
	Clean bool

	// Verbose adds -v and prints the environment Ninja runs in.
	Verbose bool

	// Args are appended to the command line verbatim.
	Args []string
}

// ninjaEnvAllowlist is the environment Ninja runs with. Restricting it
// keeps build commands from depending on ambient state the manifest does
// not describe.
var ninjaEnvAllowlist = []string{
	"HOME",
	"LANG",
	"LC_MESSAGES",
	"PATH",
	"PWD",
	"SHELL",
	"TMPDIR",
	"USER",
	"USERPROFILE",
	"SYSTEMROOT",
	"TEMP",
	"TMP",
}

func ninjaEnvironment() []string {
	var env []string
	for _, key := range ninjaEnvAllowlist {
		if value, ok := os.LookupEnv(key); ok {
			env = append(env, key+"="+value)
		}
	}
	sort.Strings(env)
	return env
}

// RunNinja executes ninja on the manifest and returns the process error,
// if any. An *exec.ExitError reports a failed build.
func RunNinja(log logger.Logger, opts NinjaOptions) error {
	args := []string{"-f", opts.Manifest}
	if opts.Clean {
		args = append(args, "-t", "clean")
	}
	if opts.Verbose {
		args = append(args, "-v")
	}
	args = append(args, opts.Args...)
	args = append(args, opts.Targets...)

	cmd := exec.Command("ninja", args...)
	cmd.Env = ninjaEnvironment()
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	log.Verbosef("Running: ninja %s", strings.Join(args, " "))
	if opts.Verbose {
		log.Verboseln("Ninja environment:")
		for _, kv := range cmd.Env {
			log.Verbosef("  %s", kv)
		}
	}

	if err := cmd.Run(); err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			return err
		}
		return fmt.Errorf("could not start ninja: %w", err)
	}
	return nil
}
