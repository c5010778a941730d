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

// Package loop runs an acceptance test command repeatedly and records, for
// every iteration, its outcome together with the state of the host after it.
package loop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/alexandremahdhaoui/testloop/pkg/junit"
	"github.com/alexandremahdhaoui/testloop/pkg/probe"
	"github.com/alexandremahdhaoui/testloop/pkg/results"
	"github.com/alexandremahdhaoui/testloop/pkg/virt"
	"github.com/fatih/color"
	"github.com/go-logr/logr"
	"github.com/google/uuid"
	utilsexec "k8s.io/utils/exec"
)

var (
	ErrInterrupted = errors.New("test loop interrupted")
	ErrOutputFile  = errors.New("failed to create output file")
	ErrStartTest   = errors.New("failed to run test command")
	ErrReport      = errors.New("failed to collect junit report")
)

var (
	bannerColor = color.New(color.FgCyan, color.Bold)
	passColor   = color.New(color.FgGreen)
	failColor   = color.New(color.FgRed, color.Bold)
)

// HostProber samples the host after each test run.
type HostProber interface {
	DiskUsage(ctx context.Context, path string) (int64, error)
	Interfaces(ctx context.Context) (map[string]probe.Interface, error)
}

// Driver runs the test loop. It is not safe for concurrent use.
type Driver struct {
	config Config
	exec   utilsexec.Interface
	store  *results.Store

	host    HostProber
	vbox    virt.Prober
	libvirt virt.Prober

	log     logr.Logger
	metrics *Metrics
	stdout  io.Writer
	now     func() time.Time
	runID   string
}

// Option configures a Driver.
type Option func(*Driver)

func WithLogger(log logr.Logger) Option {
	return func(d *Driver) { d.log = log }
}

func WithMetrics(m *Metrics) Option {
	return func(d *Driver) { d.metrics = m }
}

// WithStdout sets where the test console and banners are streamed.
func WithStdout(w io.Writer) Option {
	return func(d *Driver) { d.stdout = w }
}

func WithClock(now func() time.Time) Option {
	return func(d *Driver) { d.now = now }
}

func WithRunID(id string) Option {
	return func(d *Driver) { d.runID = id }
}

func WithHostProber(p HostProber) Option {
	return func(d *Driver) { d.host = p }
}

// WithVirtProber replaces the VirtualBox prober.
func WithVirtProber(p virt.Prober) Option {
	return func(d *Driver) { d.vbox = p }
}

// WithLibvirtProber enables the libvirt probe, recorded as libvirtinfo.
func WithLibvirtProber(p virt.Prober) Option {
	return func(d *Driver) { d.libvirt = p }
}

// New validates config, creates the results directory and returns a Driver
// running every command through exe.
func New(config Config, exe utilsexec.Interface, opts ...Option) (*Driver, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid loop configuration: %w", err)
	}

	store, err := results.NewStore(config.ResultsDir)
	if err != nil {
		return nil, err
	}

	d := &Driver{
		config: config,
		exec:   exe,
		store:  store,
		host:   probe.NewHost(exe, nil),
		vbox:   virt.NewVBoxProber(exe, nil),
		log:    logr.Discard(),
		stdout: os.Stdout,
		now:    time.Now,
		runID:  uuid.NewString(),
	}
	for _, opt := range opts {
		opt(d)
	}

	return d, nil
}

func (d *Driver) RunID() string { return d.runID }

func (d *Driver) Store() *results.Store { return d.store }

// Run executes the configured number of iterations. It stops at the first
// fatal error. Cancelling ctx stops the loop before the next iteration and
// Run returns an error wrapping ErrInterrupted; the iteration in progress
// completes and is recorded.
func (d *Driver) Run(ctx context.Context) error {
	d.log.Info("starting test loop",
		"runID", d.runID,
		"iterations", d.config.Iterations,
		"resultsDir", d.store.Dir())

	for n := range d.config.Iterations {
		if ctx.Err() != nil {
			d.log.Info("test loop interrupted", "runID", d.runID, "completed", n)
			return fmt.Errorf("%w after %d iterations: %v", ErrInterrupted, n, context.Cause(ctx))
		}

		if _, err := d.RunIteration(context.WithoutCancel(ctx), n); err != nil {
			return fmt.Errorf("iteration %d: %w", n, err)
		}
	}

	d.log.Info("test loop done", "runID", d.runID, "iterations", d.config.Iterations)

	return nil
}

// RunIteration runs iteration n and writes its record.
func (d *Driver) RunIteration(ctx context.Context, n int) (*Record, error) {
	log := d.log.WithValues("iteration", n)

	fmt.Fprintf(d.stdout, ">>>> Doing test %d\n", n)

	outPath := d.store.OutputPath(n)

	start := d.now()
	rc, err := d.runTest(ctx, n, outPath)
	if err != nil {
		return nil, err
	}
	end := d.now()

	record := &Record{
		Num:        n,
		OutFile:    outPath,
		Success:    rc == 0,
		ReturnCode: rc,
		Duration:   end.Sub(start).Seconds(),
		RunID:      d.runID,
		StartedAt:  start.UTC(),
		FinishedAt: end.UTC(),
	}

	c := passColor
	if !record.Success {
		c = failColor
	}
	fmt.Fprintln(d.stdout, c.Sprintf("Command exited %d in %g seconds", rc, record.Duration))
	log.V(1).Info("test command finished", "exitCode", rc, "duration", record.Duration)

	if record.TmpDiskUsedKB, err = d.host.DiskUsage(ctx, d.config.DiskUsagePath); err != nil {
		return nil, err
	}

	if record.Interfaces, err = d.host.Interfaces(ctx); err != nil {
		return nil, err
	}

	record.VBoxInfo = d.probeVirt(ctx, log, "vbox", d.vbox)
	if d.libvirt != nil {
		record.LibvirtInfo = d.probeVirt(ctx, log, "libvirt", d.libvirt)
	}

	if err := d.collectReport(record); err != nil {
		return nil, err
	}

	if err := d.store.Save(record); err != nil {
		return nil, err
	}
	d.metrics.observe(record)

	fmt.Fprintf(d.stdout, "\tData written to: %s\n", d.store.DataPath(n))
	log.Info("iteration recorded",
		"success", record.Success,
		"exitCode", record.ReturnCode,
		"diskUsedKB", record.TmpDiskUsedKB,
		"junit", record.JUnitPath != "")

	return record, nil
}

// runTest runs the test command through the shell, streaming its combined
// output to the console and to outPath, and returns its exit code.
func (d *Driver) runTest(ctx context.Context, n int, outPath string) (int, error) {
	f, err := os.Create(outPath)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrOutputFile, err)
	}
	defer f.Close()

	w := io.MultiWriter(d.stdout, f)

	cmd := d.exec.CommandContext(ctx, d.config.Shell, "-c", d.config.TestCommand)
	if d.config.WorkDir != "" {
		cmd.SetDir(d.config.WorkDir)
	}
	cmd.SetStdout(w)
	cmd.SetStderr(w)

	fmt.Fprintln(d.stdout, bannerColor.Sprintf("################ BEGIN test %d ###############################", n))
	err = cmd.Run()
	fmt.Fprintln(d.stdout, bannerColor.Sprintf("################ END test %d ###############################", n))

	var exitErr utilsexec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitStatus(), nil
	} else if err != nil {
		return 0, fmt.Errorf("%w: %s -c %q: %v", ErrStartTest, d.config.Shell, d.config.TestCommand, err)
	}

	return 0, nil
}

func (d *Driver) probeVirt(ctx context.Context, log logr.Logger, name string, p virt.Prober) *virt.Info {
	info := p.Probe(ctx)

	unavailable := info.UnavailableSubprobes()
	for _, s := range unavailable {
		log.Error(errors.New(info.Unavailable[s]), "virtualization sub-probe unavailable",
			"prober", name, "subprobe", s)
	}
	d.metrics.observeUnavailable(name, unavailable)

	return info
}

// collectReport moves a report left in the work dir into the results
// directory and attaches it to record. No report is not an error.
func (d *Driver) collectReport(record *Record) error {
	src := filepath.Join(d.config.WorkDir, d.config.ReportFile)

	if _, err := os.Stat(src); errors.Is(err, os.ErrNotExist) {
		return nil
	} else if err != nil {
		return fmt.Errorf("%w: %v", ErrReport, err)
	}

	dst, err := d.store.MoveReport(src, record.Num)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrReport, err)
	}

	report, err := junit.ParseFile(dst)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrReport, err)
	}

	record.JUnit = report
	record.JUnitPath = dst

	return nil
}
