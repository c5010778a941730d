package loop

import (
	"errors"
	"fmt"

	"github.com/alexandremahdhaoui/testloop/pkg/results"
)

const (
	DefaultIterations    = 100
	DefaultTestCommand   = "bundle exec rake --trace acceptance:virtualbox"
	DefaultShell         = "/bin/bash"
	DefaultResultsDir    = "acceptance_results"
	DefaultDiskUsagePath = "/tmp/vagrant-r10k-spec"
	DefaultReportFile    = "results.xml"
)

// Record is the per-iteration summary written by the Driver.
type Record = results.Record

// Config is the fixed configuration of a Driver.
type Config struct {
	// Iterations is the number of times the test command is run.
	Iterations int
	// TestCommand is passed to Shell with "-c".
	TestCommand string
	Shell       string
	// WorkDir is where the test command runs and where it leaves ReportFile.
	// Empty means the current directory.
	WorkDir       string
	ResultsDir    string
	DiskUsagePath string
	ReportFile    string
}

// NewDefaultConfig returns the configuration of the vagrant-r10k acceptance
// suite.
func NewDefaultConfig() Config {
	return Config{
		Iterations:    DefaultIterations,
		TestCommand:   DefaultTestCommand,
		Shell:         DefaultShell,
		ResultsDir:    DefaultResultsDir,
		DiskUsagePath: DefaultDiskUsagePath,
		ReportFile:    DefaultReportFile,
	}
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error

	if c.Iterations < 0 {
		errs = append(errs, fmt.Errorf("iterations must not be negative, got %d", c.Iterations))
	}
	if c.TestCommand == "" {
		errs = append(errs, errors.New("test command is required"))
	}
	if c.Shell == "" {
		errs = append(errs, errors.New("shell is required"))
	}
	if c.ResultsDir == "" {
		errs = append(errs, errors.New("results directory is required"))
	}
	if c.DiskUsagePath == "" {
		errs = append(errs, errors.New("disk usage path is required"))
	}
	if c.ReportFile == "" {
		errs = append(errs, errors.New("report file is required"))
	}

	return errors.Join(errs...)
}
