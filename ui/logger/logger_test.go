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

package logger

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestVerboseGating(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf)

	log.Verboseln("hidden")
	log.Println("shown")
	if out := buf.String(); strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Errorf("output with verbose off = %q", out)
	}

	buf.Reset()
	log.SetVerbose(true)
	log.Verbosef("now %s", "visible")
	if out := buf.String(); !strings.Contains(out, "now visible") {
		t.Errorf("output with verbose on = %q", out)
	}
}

func TestFileTee(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf)
	path := t.TempDir() + "/creator.log"
	if err := log.SetOutput(path); err != nil {
		t.Fatal(err)
	}
	log.Verboseln("verbose goes to the file even when hidden")
	log.Println("printed")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"verbose goes to the file", "printed"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("log file missing %q:\n%s", want, data)
		}
	}
}
