// Copyright 2024 Alexandre Mahdhaoui
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

// Package execcontext describes how host commands are launched: which extra
// environment variables they get and which command (e.g. "sudo") is
// prepended to them.
package execcontext

import (
	"context"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	utilsexec "k8s.io/utils/exec"
)

type Context interface {
	Envs() map[string]string
	PrependCmd() []string
}

func New(envs map[string]string, prependCmd []string) Context {
	return &execContext{
		prependCmd: prependCmd,
		envs:       envs,
	}
}

// C is the context used by probes parsing tool output: it pins the locale so
// column headers and number formats stay stable.
func C() Context {
	return New(map[string]string{"LC_ALL": "C"}, nil)
}

type execContext struct {
	envs       map[string]string
	prependCmd []string
}

// Envs implements Context.
func (c *execContext) Envs() map[string]string {
	out := make(map[string]string, len(c.envs))
	maps.Copy(out, c.envs)
	return out
}

// PrependCmd implements Context.
func (c *execContext) PrependCmd() []string {
	out := make([]string, len(c.prependCmd))
	copy(out, c.prependCmd)
	return out
}

// Argv returns the full argument vector for cmd once the prepended command
// has been applied.
func Argv(execCtx Context, cmd ...string) []string {
	return append(execCtx.PrependCmd(), cmd...)
}

// Command builds a command through exe with the context's environment and
// prepended command applied. The process environment is inherited.
func Command(ctx context.Context, exe utilsexec.Interface, execCtx Context, name string, args ...string) utilsexec.Cmd {
	argv := Argv(execCtx, append([]string{name}, args...)...)
	cmd := exe.CommandContext(ctx, argv[0], argv[1:]...)

	envs := execCtx.Envs()
	if len(envs) == 0 {
		return cmd
	}

	env := os.Environ()
	for _, k := range slices.Sorted(maps.Keys(envs)) {
		env = append(env, fmt.Sprintf("%s=%s", k, envs[k]))
	}
	cmd.SetEnv(env)

	return cmd
}

// FormatCmd renders the command as it would be typed in a shell. Used for
// logging only.
func FormatCmd(ctx Context, cmd ...string) string {
	out := ""

	envs := ctx.Envs()
	for _, k := range slices.Sorted(maps.Keys(envs)) {
		out = fmt.Sprintf("%s%s=%q ", out, k, envs[k])
	}

	for _, s := range Argv(ctx, cmd...) {
		out = safelyAppendToCmd(out, s)
	}

	return strings.TrimSpace(out)
}

var unquottable = map[string]struct{}{
	"&&": {},
	"||": {},
	";":  {},
	"|":  {},
	"&":  {},
}

func safelyAppendToCmd(cmd string, s string) string {
	if _, ok := unquottable[s]; ok {
		return fmt.Sprintf("%s%s ", cmd, s)
	}
	return fmt.Sprintf("%s%q ", cmd, s)
}
