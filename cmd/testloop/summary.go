package main

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/alexandremahdhaoui/testloop/pkg/results"
	"github.com/fatih/color"
)

var (
	passLabel = color.New(color.FgGreen).Sprint("PASS")
	failLabel = color.New(color.FgRed, color.Bold).Sprint("FAIL")
)

type summaryOutput struct {
	Summary results.Summary   `json:"summary"`
	Records []*results.Record `json:"records"`
}

func printSummaryJSON(w io.Writer, records []*results.Record) error {
	if records == nil {
		records = []*results.Record{}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	return encoder.Encode(summaryOutput{
		Summary: results.Summarize(records),
		Records: records,
	})
}

func printSummaryText(w io.Writer, records []*results.Record) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "No iterations recorded.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NUM\tRESULT\tCODE\tDURATION\tDISK_KB\tTESTS\tFAILED\tSTARTED")

	for _, r := range records {
		label := passLabel
		if !r.Success {
			label = failLabel
		}

		tests, failed := "-", "-"
		if r.JUnit != nil {
			tests = strconv.Itoa(len(r.JUnit.Tests))
			failed = strconv.Itoa(r.JUnit.Failed())
		}

		started := "-"
		if !r.StartedAt.IsZero() {
			started = r.StartedAt.Format(time.RFC3339)
		}

		fmt.Fprintf(tw, "%d\t%s\t%d\t%.1fs\t%d\t%s\t%s\t%s\n",
			r.Num, label, r.ReturnCode, r.Duration, r.TmpDiskUsedKB, tests, failed, started)
	}

	if err := tw.Flush(); err != nil {
		return err
	}

	s := results.Summarize(records)

	var exitCodes []string
	for _, code := range slices.Sorted(maps.Keys(s.ExitCodes)) {
		exitCodes = append(exitCodes, fmt.Sprintf("%d=%d", code, s.ExitCodes[code]))
	}

	fmt.Fprintf(w, "\n%d iterations: %d passed, %d failed (exit codes: %s)\n",
		s.Iterations, s.Passed, s.Failed, strings.Join(exitCodes, ", "))
	fmt.Fprintf(w, "Duration: %.1fs total, %.1fs max\n", s.TotalDuration, s.MaxDuration)
	fmt.Fprintf(w, "Disk used: %d..%d KB\n", s.MinDiskUsedKB, s.MaxDiskUsedKB)
	_, err := fmt.Fprintf(w, "JUnit: %d reports, %d failing tests\n", s.Reports, s.FailingTests)

	return err
}
