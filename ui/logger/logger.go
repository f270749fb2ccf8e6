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

// Package logger implements the build tool's output: normal messages to
// the terminal, verbose messages gated behind a flag, and an optional tee
// of everything into a log file.
package logger

import (
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"os"
)

type Logger interface {
	// Print messages are always displayed.
	Print(v ...interface{})
	Printf(format string, v ...interface{})
	Println(v ...interface{})

	// Verbose messages are only displayed when the verbose flag is set.
	Verbose(v ...interface{})
	Verbosef(format string, v ...interface{})
	Verboseln(v ...interface{})

	// Fatal messages are displayed and terminate the process with exit
	// status 1.
	Fatal(v ...interface{})
	Fatalf(format string, v ...interface{})
	Fatalln(v ...interface{})
}

type stdLogger struct {
	stderr  *log.Logger
	verbose bool

	file *log.Logger
}

var _ Logger = (*stdLogger)(nil)

// New returns a logger writing to out.
func New(out io.Writer) *stdLogger {
	return &stdLogger{
		stderr: log.New(out, "", 0),
		file:   log.New(ioutil.Discard, "", log.LstdFlags),
	}
}

// SetVerbose enables or disables verbose output.
func (s *stdLogger) SetVerbose(v bool) {
	s.verbose = v
}

// SetOutput tees all messages, including verbose ones, into a file.
func (s *stdLogger) SetOutput(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return err
	}
	s.file = log.New(f, "", log.LstdFlags)
	return nil
}

func (s *stdLogger) Print(v ...interface{}) {
	output := fmt.Sprint(v...)
	s.stderr.Print(output)
	s.file.Print(output)
}

func (s *stdLogger) Printf(format string, v ...interface{}) {
	s.Print(fmt.Sprintf(format, v...))
}

func (s *stdLogger) Println(v ...interface{}) {
	s.Print(fmt.Sprintln(v...))
}

func (s *stdLogger) Verbose(v ...interface{}) {
	output := fmt.Sprint(v...)
	if s.verbose {
		s.stderr.Print(output)
	}
	s.file.Print(output)
}

func (s *stdLogger) Verbosef(format string, v ...interface{}) {
	s.Verbose(fmt.Sprintf(format, v...))
}

func (s *stdLogger) Verboseln(v ...interface{}) {
	s.Verbose(fmt.Sprintln(v...))
}

func (s *stdLogger) Fatal(v ...interface{}) {
	s.Print(v...)
	os.Exit(1)
}

func (s *stdLogger) Fatalf(format string, v ...interface{}) {
	s.Printf(format, v...)
	os.Exit(1)
}

func (s *stdLogger) Fatalln(v ...interface{}) {
	s.Println(v...)
	os.Exit(1)
}
