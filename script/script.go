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

// Package script executes unit scripts. A *.crunit file is a Starlark
// program run in a sandbox whose predeclared environment is the unit API:
// macro definition and evaluation, unit loading, target and task
// registration, and a handful of process helpers.
package script

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"go.starlark.net/starlark"

	"github.com/creator-build/creator/lists"
	"github.com/creator-build/creator/macro"
	"github.com/creator-build/creator/ui/logger"
	"github.com/creator-build/creator/workspace"
)

// An ExitCodeError reports a subprocess that exited with non zero status,
// or an explicit exit() from a unit script.
type ExitCodeError struct {
	Command string
	Code    int
}

func (e *ExitCodeError) Error() string {
	if e.Command == "" {
		return fmt.Sprintf("exit code %d", e.Code)
	}
	return fmt.Sprintf("command %q exited with code %d", e.Command, e.Code)
}

// exitScript aborts script execution from the exit() builtin. A zero code
// is not an error.
type exitScript struct {
	code int
}

func (e *exitScript) Error() string {
	return fmt.Sprintf("exit(%d)", e.code)
}

// A Runner executes unit scripts. It implements workspace.ScriptRunner.
type Runner struct {
	Log    logger.Logger
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	stdin *bufio.Reader
}

func NewRunner(log logger.Logger) *Runner {
	return &Runner{
		Log:    log,
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

func (r *Runner) newThread(name string) *starlark.Thread {
	return &starlark.Thread{
		Name: name,
		Print: func(_ *starlark.Thread, msg string) {
			r.Log.Println(msg)
		},
	}
}

// RunUnitScript executes the script at path in a fresh sandbox for u. The
// script's global variables become the unit's scope, visible to later
// macro evaluation.
func (r *Runner) RunUnitScript(u *workspace.Unit, path string) error {
	thread := r.newThread(u.ID())
	globals, err := starlark.ExecFile(thread, path, nil, r.predeclared(u))
	if err != nil {
		var exit *exitScript
		if errors.As(err, &exit) {
			if exit.code == 0 {
				err = nil
			} else {
				return &ExitCodeError{Code: exit.code}
			}
		} else {
			return scriptError(err)
		}
	}
	for name, value := range globals {
		u.Scope[name] = scopeValue(value)
	}
	return nil
}

// scriptError keeps the Starlark backtrace visible in fatal errors.
func scriptError(err error) error {
	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		return errors.New(evalErr.Backtrace())
	}
	return err
}

// scopeValue converts a script global for the unit scope. Strings become
// Go strings so that macro evaluation can see them; macro nodes pass
// through; other values are kept opaque and miss during evaluation.
func scopeValue(value starlark.Value) interface{} {
	switch v := value.(type) {
	case starlark.String:
		return string(v)
	case *rawValue:
		return v.node
	}
	return value
}

// predeclared builds the sandbox environment for one unit.
func (r *Runner) predeclared(u *workspace.Unit) starlark.StringDict {
	ws := u.Workspace()
	env := starlark.StringDict{
		"unit":      &unitValue{unit: u},
		"workspace": &workspaceValue{ws: ws},
		"C": &contextValue{
			name: "C",
			get:  u.Context.Get,
			set:  u.Context.SetValue,
			has:  u.Context.Has,
		},
		"G": &contextValue{
			name: "G",
			get:  ws.Context.Get,
			set:  ws.Context.SetValue,
			has:  ws.Context.Has,
		},
		"ExitCodeError": starlark.NewBuiltin("ExitCodeError", builtinExitCodeError),
	}
	for name, fn := range map[string]func(*workspace.Unit, *starlark.Thread, starlark.Tuple, []starlark.Tuple) (starlark.Value, error){
		"define":        r.builtinDefine,
		"defined":       r.builtinDefined,
		"append":        r.builtinAppend,
		"eval":          r.builtinEval,
		"eq":            r.builtinEq,
		"ne":            r.builtinNe,
		"extends":       r.builtinExtends,
		"load":          r.builtinLoad,
		"target":        r.builtinTarget,
		"task":          r.builtinTask,
		"info":          r.builtinInfo,
		"warn":          r.builtinWarn,
		"confirm":       r.builtinConfirm,
		"shell":         r.builtinShell,
		"shell_get":     r.builtinShellGet,
		"split":         r.builtinSplit,
		"join":          r.builtinJoin,
		"raw":           r.builtinRaw,
		"foreach_split": r.builtinForeachSplit,
		"exit":          r.builtinExit,
	} {
		name := name
		fn := fn
		env[name] = starlark.NewBuiltin(name, func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			return fn(u, thread, args, kwargs)
		})
	}
	return env
}

func (r *Runner) builtinDefine(u *workspace.Unit, _ *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	var value starlark.Value
	if err := starlark.UnpackPositionalArgs("define", args, kwargs, 2, &name, &value); err != nil {
		return nil, err
	}
	if err := u.Context.SetValue(name, macroValue(value)); err != nil {
		return nil, err
	}
	return starlark.None, nil
}

func (r *Runner) builtinDefined(u *workspace.Unit, _ *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	if err := starlark.UnpackPositionalArgs("defined", args, kwargs, 1, &name); err != nil {
		return nil, err
	}
	return starlark.Bool(u.Context.Has(name)), nil
}

func (r *Runner) builtinAppend(u *workspace.Unit, _ *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name, text string
	if err := starlark.UnpackPositionalArgs("append", args, kwargs, 2, &name, &text); err != nil {
		return nil, err
	}
	if !u.Context.Has(name) {
		u.Context.SetString(name, text)
		return starlark.None, nil
	}
	// Reference the previous value; assignment inlines it.
	node := &macro.Concat{}
	node.Append(&macro.Var{Name: name, BoundNS: u.ID()})
	node.AppendText(" ")
	node.Append(macro.ParseBound(text, u.ID()))
	u.Context.Set(name, node)
	return starlark.None, nil
}

func (r *Runner) builtinEval(u *workspace.Unit, _ *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var text string
	if err := starlark.UnpackPositionalArgs("eval", args, kwargs, 1, &text); err != nil {
		return nil, err
	}
	value, err := u.Eval(text)
	if err != nil {
		return nil, err
	}
	return starlark.String(value), nil
}

func (r *Runner) evalBoth(u *workspace.Unit, name string, args starlark.Tuple, kwargs []starlark.Tuple) (string, string, error) {
	var a, b string
	if err := starlark.UnpackPositionalArgs(name, args, kwargs, 2, &a, &b); err != nil {
		return "", "", err
	}
	ea, err := u.Eval(a)
	if err != nil {
		return "", "", err
	}
	eb, err := u.Eval(b)
	if err != nil {
		return "", "", err
	}
	return ea, eb, nil
}

func (r *Runner) builtinEq(u *workspace.Unit, _ *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	a, b, err := r.evalBoth(u, "eq", args, kwargs)
	if err != nil {
		return nil, err
	}
	return starlark.Bool(a == b), nil
}

func (r *Runner) builtinNe(u *workspace.Unit, _ *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	a, b, err := r.evalBoth(u, "ne", args, kwargs)
	if err != nil {
		return nil, err
	}
	return starlark.Bool(a != b), nil
}

func (r *Runner) builtinExtends(u *workspace.Unit, _ *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var id string
	if err := starlark.UnpackPositionalArgs("extends", args, kwargs, 1, &id); err != nil {
		return nil, err
	}
	other, err := u.Workspace().LoadUnit(id)
	if err != nil {
		return nil, err
	}
	u.Extend(other)
	return starlark.None, nil
}

func (r *Runner) builtinLoad(u *workspace.Unit, _ *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var id, alias string
	if err := starlark.UnpackArgs("load", args, kwargs, "id", &id, "alias?", &alias); err != nil {
		return nil, err
	}
	other, err := u.Workspace().LoadUnit(id)
	if err != nil {
		return nil, err
	}
	if alias != "" {
		u.Aliases[alias] = other.ID()
	}
	return &unitValue{unit: other}, nil
}

func (r *Runner) builtinTarget(u *workspace.Unit, _ *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	fn, err := unpackCallback("target", args, kwargs)
	if err != nil {
		return nil, err
	}
	passSelf := fn.NumParams() > 0
	t, err := u.AddTarget(fn.Name(), func(tgt *workspace.Target) error {
		thread := r.newThread(tgt.ID())
		var callArgs starlark.Tuple
		if passSelf {
			callArgs = starlark.Tuple{&targetValue{target: tgt}}
		}
		if _, err := starlark.Call(thread, fn, callArgs, nil); err != nil {
			return scriptError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &targetValue{target: t}, nil
}

func (r *Runner) builtinTask(u *workspace.Unit, _ *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	fn, err := unpackCallback("task", args, kwargs)
	if err != nil {
		return nil, err
	}
	passArgs := fn.NumParams() > 0
	task, err := u.AddTask(fn.Name(), func(taskArgs []string) error {
		thread := r.newThread(u.ID() + ":" + fn.Name())
		var callArgs starlark.Tuple
		if passArgs {
			values := make([]starlark.Value, len(taskArgs))
			for i, arg := range taskArgs {
				values[i] = starlark.String(arg)
			}
			callArgs = starlark.Tuple{starlark.NewList(values)}
		}
		if _, err := starlark.Call(thread, fn, callArgs, nil); err != nil {
			return scriptError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &taskValue{task: task}, nil
}

func unpackCallback(name string, args starlark.Tuple, kwargs []starlark.Tuple) (*starlark.Function, error) {
	var value starlark.Value
	if err := starlark.UnpackPositionalArgs(name, args, kwargs, 1, &value); err != nil {
		return nil, err
	}
	fn, ok := value.(*starlark.Function)
	if !ok {
		return nil, fmt.Errorf("%s: callback must be a function, got %s", name, value.Type())
	}
	return fn, nil
}

func (r *Runner) builtinInfo(u *workspace.Unit, _ *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	r.Log.Printf("[%s] %s", u.ID(), messageText(args))
	return starlark.None, nil
}

func (r *Runner) builtinWarn(u *workspace.Unit, _ *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	r.Log.Printf("[%s] warning: %s", u.ID(), messageText(args))
	return starlark.None, nil
}

func messageText(args starlark.Tuple) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		if s, ok := starlark.AsString(arg); ok {
			parts[i] = s
		} else {
			parts[i] = arg.String()
		}
	}
	return strings.Join(parts, " ")
}

func (r *Runner) builtinConfirm(u *workspace.Unit, _ *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var prompt string
	if err := starlark.UnpackPositionalArgs("confirm", args, kwargs, 1, &prompt); err != nil {
		return nil, err
	}
	if r.stdin == nil {
		r.stdin = bufio.NewReader(r.Stdin)
	}
	fmt.Fprintf(r.Stdout, "%s [y/N] ", prompt)
	line, err := r.stdin.ReadString('\n')
	if err != nil && line == "" {
		return starlark.False, nil
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return starlark.Bool(answer == "y" || answer == "yes"), nil
}

// shellCommand builds the platform shell invocation for command.
func shellCommand(command string) *exec.Cmd {
	if runtime.GOOS == "windows" {
		return exec.Command("cmd", "/C", command)
	}
	return exec.Command("/bin/sh", "-c", command)
}

func (r *Runner) builtinShell(u *workspace.Unit, _ *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var command string
	if err := starlark.UnpackPositionalArgs("shell", args, kwargs, 1, &command); err != nil {
		return nil, err
	}
	cmd := shellCommand(command)
	cmd.Dir = u.ProjectPath()
	cmd.Stdin = r.Stdin
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	err := cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return starlark.MakeInt(exitErr.ExitCode()), nil
	}
	if err != nil {
		return nil, err
	}
	return starlark.MakeInt(0), nil
}

func (r *Runner) builtinShellGet(u *workspace.Unit, _ *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var command string
	check := true
	if err := starlark.UnpackArgs("shell_get", args, kwargs, "command", &command, "check?", &check); err != nil {
		return nil, err
	}
	cmd := shellCommand(command)
	cmd.Dir = u.ProjectPath()
	output, err := cmd.CombinedOutput()
	status := 0
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		status = exitErr.ExitCode()
	} else if err != nil {
		return nil, err
	}
	if status != 0 && check {
		return nil, &ExitCodeError{Command: command, Code: status}
	}
	return &responseValue{output: string(output), status: status}, nil
}

func (r *Runner) builtinSplit(u *workspace.Unit, _ *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var text string
	if err := starlark.UnpackPositionalArgs("split", args, kwargs, 1, &text); err != nil {
		return nil, err
	}
	items := lists.Split(text)
	values := make([]starlark.Value, len(items))
	for i, item := range items {
		values[i] = starlark.String(item)
	}
	return starlark.NewList(values), nil
}

func (r *Runner) builtinJoin(u *workspace.Unit, _ *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var list *starlark.List
	if err := starlark.UnpackPositionalArgs("join", args, kwargs, 1, &list); err != nil {
		return nil, err
	}
	items := make([]string, list.Len())
	for i := 0; i < list.Len(); i++ {
		s, ok := starlark.AsString(list.Index(i))
		if !ok {
			return nil, fmt.Errorf("join: item %d is not a string", i)
		}
		items[i] = s
	}
	return starlark.String(lists.Join(items)), nil
}

func (r *Runner) builtinRaw(u *workspace.Unit, _ *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var text string
	if err := starlark.UnpackPositionalArgs("raw", args, kwargs, 1, &text); err != nil {
		return nil, err
	}
	return &rawValue{node: &macro.Text{Text: text}}, nil
}

// builtinForeachSplit is kept for older unit scripts; build with each=True
// covers the same ground.
func (r *Runner) builtinForeachSplit(u *workspace.Unit, _ *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var inputs, outputs string
	if err := starlark.UnpackPositionalArgs("foreach_split", args, kwargs, 2, &inputs, &outputs); err != nil {
		return nil, err
	}
	inText, err := u.Eval(inputs)
	if err != nil {
		return nil, err
	}
	outText, err := u.Eval(outputs)
	if err != nil {
		return nil, err
	}
	in := lists.Split(inText)
	out := lists.Split(outText)
	if len(in) != len(out) {
		return nil, fmt.Errorf("foreach_split: %d inputs but %d outputs", len(in), len(out))
	}
	pairs := make([]starlark.Value, len(in))
	for i := range in {
		pairs[i] = starlark.Tuple{starlark.String(in[i]), starlark.String(out[i])}
	}
	return starlark.NewList(pairs), nil
}

func (r *Runner) builtinExit(u *workspace.Unit, _ *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	code := 0
	if err := starlark.UnpackPositionalArgs("exit", args, kwargs, 0, &code); err != nil {
		return nil, err
	}
	return nil, &exitScript{code: code}
}

func builtinExitCodeError(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	code := 1
	if err := starlark.UnpackPositionalArgs("ExitCodeError", args, kwargs, 0, &code); err != nil {
		return nil, err
	}
	return nil, &ExitCodeError{Code: code}
}

// macroValue converts a starlark value for context assignment.
func macroValue(value starlark.Value) interface{} {
	switch v := value.(type) {
	case starlark.String:
		return string(v)
	case *rawValue:
		return v.node
	}
	return value
}
