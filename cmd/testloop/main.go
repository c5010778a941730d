package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/alexandremahdhaoui/testloop/internal/util/httputil"
	"github.com/alexandremahdhaoui/testloop/internal/util/logging"
	"github.com/alexandremahdhaoui/testloop/pkg/execcontext"
	"github.com/alexandremahdhaoui/testloop/pkg/loop"
	"github.com/alexandremahdhaoui/testloop/pkg/probe"
	"github.com/alexandremahdhaoui/testloop/pkg/results"
	"github.com/alexandremahdhaoui/testloop/pkg/virt"
	utilsexec "k8s.io/utils/exec"
)

// Exit codes
const (
	exitSuccess     = 0   // Every iteration ran
	exitError       = 1   // Invalid arguments or a fatal error during the loop
	exitInterrupted = 130 // Stopped by SIGINT or SIGTERM between iterations
)

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(exitError)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "run":
		os.Exit(cmdRun(args))

	case "summary":
		os.Exit(cmdSummary(args, os.Stdout, os.Stderr))

	case "-h", "--help", "help":
		printUsage(os.Stdout)
		os.Exit(exitSuccess)

	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command '%s'\n", command)
		printUsage(os.Stderr)
		os.Exit(exitError)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `Usage: testloop [command] [options]

Commands:
  run [--config FILE] [--iterations N] [--command CMD] [--results-dir DIR] [--work-dir DIR] [--verbose]
      Run the test command repeatedly and record every iteration

  summary [--results-dir DIR] [--format text|json]
      Print the recorded iterations

  help
      Show this help message

Environment Variables:
  %s  Path of the YAML config file
  TESTLOOP_ITERATIONS, TESTLOOP_TEST_COMMAND, TESTLOOP_SHELL, TESTLOOP_WORK_DIR,
  TESTLOOP_RESULTS_DIR, TESTLOOP_REPORT_FILE, TESTLOOP_DISK_USAGE_PATH,
  TESTLOOP_PREPEND_CMD, TESTLOOP_VBOXMANAGE, TESTLOOP_LIBVIRT_ENABLED,
  TESTLOOP_LIBVIRT_URI, TESTLOOP_METRICS_ENABLED, TESTLOOP_METRICS_PORT,
  TESTLOOP_DEV_MODE
      Override the matching config file field

Defaults:
  %d iterations of %q through %s,
  results in %s, disk usage of %s, report file %s

Exit Codes:
  0    Success
  1    Error (invalid arguments, probe failure, unreadable report, ...)
  130  Interrupted between iterations
`,
		ConfigPathEnvKey,
		loop.DefaultIterations, loop.DefaultTestCommand, loop.DefaultShell,
		loop.DefaultResultsDir, loop.DefaultDiskUsagePath, loop.DefaultReportFile)
}

// cmdRun runs the test loop.
// Returns exit code: 0=success, 1=error, 130=interrupted
func cmdRun(args []string) int {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", os.Getenv(ConfigPathEnvKey), "Path of the YAML config file")
	iterations := fs.Int("iterations", loop.DefaultIterations, "Number of iterations")
	command := fs.String("command", loop.DefaultTestCommand, "Test command")
	resultsDir := fs.String("results-dir", loop.DefaultResultsDir, "Results directory")
	workDir := fs.String("work-dir", "", "Directory the test command runs in")
	verbose := fs.Bool("verbose", false, "Enable debug logs")
	_ = fs.Parse(args) // Error is handled by flag.ExitOnError

	config, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitError
	}

	// Flags set on the command line win over the file and the environment.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "iterations":
			config.Iterations = *iterations
		case "command":
			config.TestCommand = *command
		case "results-dir":
			config.ResultsDir = *resultsDir
		case "work-dir":
			config.WorkDir = *workDir
		case "verbose":
			if *verbose {
				config.Verbosity = max(config.Verbosity, 1)
			}
		}
	})

	if err := config.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid configuration: %v\n", err)
		return exitError
	}

	log := logging.Setup(logging.Options{
		Development: config.DevelopmentMode,
		Verbosity:   config.Verbosity,
		Output:      os.Stderr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	finished := make(chan struct{})
	defer close(finished)
	go func() {
		select {
		case <-ctx.Done():
			// A second signal gets the default behavior and terminates the process.
			log.Info("signal received, stopping after the current iteration")
			stop()
		case <-finished:
		}
	}()

	exe := utilsexec.New()
	execCtx := execcontext.New(map[string]string{"LC_ALL": "C"}, config.PrependCmd)

	reg := newRegistry()
	opts := []loop.Option{
		loop.WithLogger(log),
		loop.WithMetrics(loop.NewMetrics(reg)),
		loop.WithHostProber(probe.NewHost(exe, execCtx)),
		loop.WithVirtProber(virt.NewVBoxProber(exe, execCtx, virt.WithVBoxManage(config.VBoxManage))),
	}
	if config.Libvirt.Enabled {
		opts = append(opts, loop.WithLibvirtProber(virt.NewLibvirtProber(config.Libvirt.URI)))
	}

	driver, err := loop.New(config.LoopConfig(), exe, opts...)
	if err != nil {
		log.Error(err, "failed to create test loop")
		return exitError
	}

	var metricsDone <-chan error
	metricsCtx, stopMetrics := context.WithCancel(context.Background())
	defer stopMetrics()
	if config.MetricsServer.Enabled {
		metricsDone = httputil.Serve(metricsCtx, log, map[string]*http.Server{
			"metrics": setupMetricsServer(config, reg),
		})
	}

	runErr := driver.Run(ctx)

	stopMetrics()
	if metricsDone != nil {
		if err := <-metricsDone; err != nil {
			log.Error(err, "metrics server failed")
		}
	}

	switch {
	case errors.Is(runErr, loop.ErrInterrupted):
		log.Info("test loop interrupted", "runID", driver.RunID(), "error", runErr.Error())
		return exitInterrupted
	case runErr != nil:
		log.Error(runErr, "test loop failed", "runID", driver.RunID())
		return exitError
	}

	return exitSuccess
}

// cmdSummary prints the records of a results directory.
func cmdSummary(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("summary", flag.ContinueOnError)
	fs.SetOutput(stderr)
	resultsDir := fs.String("results-dir", envOrDefault("TESTLOOP_RESULTS_DIR", loop.DefaultResultsDir), "Results directory")
	format := fs.String("format", "text", "Output format: json or text")
	if err := fs.Parse(args); err != nil {
		return exitError
	}

	if *format != "json" && *format != "text" {
		fmt.Fprintf(stderr, "Error: invalid format '%s', must be 'json' or 'text'\n", *format)
		return exitError
	}

	store, err := results.Open(*resultsDir)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}

	records, err := store.List()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}

	if *format == "json" {
		err = printSummaryJSON(stdout, records)
	} else {
		err = printSummaryText(stdout, records)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}

	return exitSuccess
}

func envOrDefault(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}
