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

package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/alexandremahdhaoui/testloop/pkg/loop"
	"sigs.k8s.io/yaml"
)

const (
	// ConfigPathEnvKey is the environment variable key for the config file path
	ConfigPathEnvKey = "TESTLOOP_CONFIG_PATH"

	defaultMetricsPort = 9090
	defaultMetricsPath = "/metrics"
)

// Config holds the configuration of testloop.
type Config struct {
	// Iterations is the number of times the test command is run.
	Iterations int `json:"iterations"`
	// TestCommand is run with "<shell> -c".
	TestCommand string `json:"testCommand"`
	Shell       string `json:"shell"`
	// WorkDir is where the test command runs. Empty means the current directory.
	WorkDir string `json:"workDir,omitempty"`
	// ResultsDir receives do_test_<n>.out, results_<n>.xml and data_<n>.json.
	ResultsDir string `json:"resultsDir"`
	// ReportFile is the JUnit report the test command leaves in WorkDir.
	ReportFile string `json:"reportFile"`

	// Probes

	// DiskUsagePath is the path whose filesystem usage is recorded.
	DiskUsagePath string `json:"diskUsagePath"`
	// PrependCmd is prepended to every probe command, e.g. ["sudo", "-n"].
	PrependCmd []string `json:"prependCmd,omitempty"`
	// VBoxManage is the VBoxManage executable.
	VBoxManage string `json:"vboxManage"`

	// Libvirt enables the libvirt network probe, recorded as libvirtinfo.
	Libvirt struct {
		Enabled bool   `json:"enabled"`
		URI     string `json:"uri"`
	} `json:"libvirt"`

	// MetricsServer is the configuration for the metrics server.
	MetricsServer struct {
		Enabled bool `json:"enabled"`
		// Port is the port for the metrics server.
		Port int `json:"port"`
		// Path is the path for the metrics endpoint.
		Path string `json:"path"`
	} `json:"metricsServer"`

	// DevelopmentMode enables human-readable logs.
	DevelopmentMode bool `json:"developmentMode"`
	// Verbosity enables debug logs up to this level.
	Verbosity int `json:"verbosity"`
}

// NewDefaultConfig returns a Config reproducing the vagrant-r10k acceptance
// loop.
func NewDefaultConfig() *Config {
	c := &Config{
		Iterations:    loop.DefaultIterations,
		TestCommand:   loop.DefaultTestCommand,
		Shell:         loop.DefaultShell,
		ResultsDir:    loop.DefaultResultsDir,
		ReportFile:    loop.DefaultReportFile,
		DiskUsagePath: loop.DefaultDiskUsagePath,
		VBoxManage:    "VBoxManage",
	}
	c.Libvirt.URI = "qemu:///system"
	c.MetricsServer.Port = defaultMetricsPort
	c.MetricsServer.Path = defaultMetricsPath

	return c
}

// LoadConfig loads configuration from a YAML file path, then applies
// environment variable overrides. If configPath is empty, only defaults and
// environment variables are used.
func LoadConfig(configPath string) (*Config, error) {
	config := NewDefaultConfig()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", configPath, err)
		}

		// Parse YAML (uses json tags)
		if err := yaml.UnmarshalStrict(data, config); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", configPath, err)
		}
	}

	if err := config.applyEnvironmentOverrides(); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}

	return config, nil
}

// applyEnvironmentOverrides applies environment variable overrides to the config
func (c *Config) applyEnvironmentOverrides() error {
	var errs []error

	if val := os.Getenv("TESTLOOP_ITERATIONS"); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			errs = append(errs, fmt.Errorf("TESTLOOP_ITERATIONS: %w", err))
		}
		c.Iterations = n
	}
	if val := os.Getenv("TESTLOOP_TEST_COMMAND"); val != "" {
		c.TestCommand = val
	}
	if val := os.Getenv("TESTLOOP_SHELL"); val != "" {
		c.Shell = val
	}
	if val := os.Getenv("TESTLOOP_WORK_DIR"); val != "" {
		c.WorkDir = val
	}
	if val := os.Getenv("TESTLOOP_RESULTS_DIR"); val != "" {
		c.ResultsDir = val
	}
	if val := os.Getenv("TESTLOOP_REPORT_FILE"); val != "" {
		c.ReportFile = val
	}
	if val := os.Getenv("TESTLOOP_DISK_USAGE_PATH"); val != "" {
		c.DiskUsagePath = val
	}
	if val := os.Getenv("TESTLOOP_PREPEND_CMD"); val != "" {
		c.PrependCmd = strings.Fields(val)
	}
	if val := os.Getenv("TESTLOOP_VBOXMANAGE"); val != "" {
		c.VBoxManage = val
	}
	if val := os.Getenv("TESTLOOP_LIBVIRT_ENABLED"); val != "" {
		c.Libvirt.Enabled = isTrue(val)
	}
	if val := os.Getenv("TESTLOOP_LIBVIRT_URI"); val != "" {
		c.Libvirt.URI = val
	}
	if val := os.Getenv("TESTLOOP_METRICS_ENABLED"); val != "" {
		c.MetricsServer.Enabled = isTrue(val)
	}
	if val := os.Getenv("TESTLOOP_METRICS_PORT"); val != "" {
		port, err := strconv.Atoi(val)
		if err != nil {
			errs = append(errs, fmt.Errorf("TESTLOOP_METRICS_PORT: %w", err))
		}
		c.MetricsServer.Port = port
	}
	if val := os.Getenv("TESTLOOP_DEV_MODE"); val != "" {
		c.DevelopmentMode = isTrue(val)
	}

	return errors.Join(errs...)
}

func isTrue(val string) bool {
	return val == "true" || val == "1" || val == "yes"
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	errs := []error{c.LoopConfig().Validate()}

	if c.VBoxManage == "" {
		errs = append(errs, errors.New("vboxManage cannot be empty"))
	}
	if c.Libvirt.Enabled && c.Libvirt.URI == "" {
		errs = append(errs, errors.New("libvirt.uri cannot be empty when libvirt is enabled"))
	}
	if c.MetricsServer.Enabled {
		if c.MetricsServer.Port <= 0 || c.MetricsServer.Port > 65535 {
			errs = append(errs, fmt.Errorf("metricsServer.port must be in [1, 65535], got %d", c.MetricsServer.Port))
		}
		if !strings.HasPrefix(c.MetricsServer.Path, "/") {
			errs = append(errs, fmt.Errorf("metricsServer.path must start with '/', got %q", c.MetricsServer.Path))
		}
	}
	if c.Verbosity < 0 {
		errs = append(errs, fmt.Errorf("verbosity must not be negative, got %d", c.Verbosity))
	}

	return errors.Join(errs...)
}

// LoopConfig returns the driver configuration.
func (c *Config) LoopConfig() loop.Config {
	return loop.Config{
		Iterations:    c.Iterations,
		TestCommand:   c.TestCommand,
		Shell:         c.Shell,
		WorkDir:       c.WorkDir,
		ResultsDir:    c.ResultsDir,
		DiskUsagePath: c.DiskUsagePath,
		ReportFile:    c.ReportFile,
	}
}
