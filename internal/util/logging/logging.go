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

// Package logging sets up the logger shared by testloop commands.
//
// A single zap sink backs both the logr.Logger handed to packages and the
// default log/slog logger. Logs are written to stderr so that stdout carries
// only the test console.
package logging

import (
	"io"
	"log/slog"
	"os"

	"github.com/go-logr/logr"
	"go.uber.org/zap/zapcore"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
)

// Options configures the logger behavior.
type Options struct {
	// Development enables the human-readable console encoder.
	Development bool

	// Verbosity enables logr V-levels up to and including this value.
	Verbosity int

	// Output defaults to os.Stderr.
	Output io.Writer
}

// DefaultOptions returns the default logging options.
func DefaultOptions() Options {
	return Options{Output: os.Stderr}
}

// New builds a logger without installing it anywhere.
func New(opts Options) logr.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	return zap.New(
		zap.UseDevMode(opts.Development),
		zap.WriteTo(out),
		zap.Level(zapcore.Level(-opts.Verbosity)),
	)
}

// Setup builds a logger, installs it as the controller-runtime logger and
// routes the default slog logger to it. Call it once, early in main.
func Setup(opts Options) logr.Logger {
	logger := New(opts)

	ctrl.SetLogger(logger)
	slog.SetDefault(slog.New(logr.ToSlogHandler(logger)))

	return logger
}
