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

// Package junit reads single-suite JUnit XML reports.
//
// Only what a pass/fail summary needs is kept: the suite's attributes, and for
// every direct testcase child its attributes, whether it passed, and the
// message of its first failure. Error and skipped elements are not
// distinguished from a passing case.
package junit

import (
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
)

var (
	ErrReadReport  = errors.New("failed to read junit report")
	ErrParseReport = errors.New("failed to parse junit report")
	ErrNoTestSuite = errors.New("junit report root element is not a testsuite")
)

const (
	testSuiteElement = "testsuite"

	testsKey       = "tests"
	successKey     = "success"
	failMessageKey = "fail_message"
)

// Report is a parsed test suite.
//
// In JSON the suite attributes are flattened at top level next to "tests",
// which holds the cases in document order. A suite attribute named "tests"
// is dropped in favor of the case list.
type Report struct {
	Attributes map[string]string
	Tests      []TestCase
}

// TestCase is one testcase element.
//
// In JSON its attributes are flattened next to "success" and "fail_message".
// Attributes of the same names are dropped.
type TestCase struct {
	Attributes  map[string]string
	Success     bool
	FailMessage string
}

// Failed returns the number of failing cases.
func (r *Report) Failed() int {
	failed := 0
	for _, tc := range r.Tests {
		if !tc.Success {
			failed++
		}
	}
	return failed
}

type xmlSuite struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Cases   []xmlCase  `xml:"testcase"`
}

type xmlCase struct {
	Attrs    []xml.Attr   `xml:",any,attr"`
	Failures []xmlFailure `xml:"failure"`
}

type xmlFailure struct {
	Message string `xml:"message,attr"`
}

// ParseFile parses the report at path.
func ParseFile(path string) (*Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadReport, err)
	}
	defer f.Close()

	report, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return report, nil
}

// Parse parses a report whose root element is a testsuite.
func Parse(r io.Reader) (*Report, error) {
	var suite xmlSuite
	if err := xml.NewDecoder(r).Decode(&suite); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseReport, err)
	}

	if suite.XMLName.Local != testSuiteElement {
		return nil, fmt.Errorf("%w: got %q", ErrNoTestSuite, suite.XMLName.Local)
	}

	report := &Report{
		Attributes: attributes(suite.Attrs, testsKey),
		Tests:      make([]TestCase, 0, len(suite.Cases)),
	}

	for _, c := range suite.Cases {
		tc := TestCase{
			Attributes: attributes(c.Attrs, successKey, failMessageKey),
			Success:    len(c.Failures) == 0,
		}
		if !tc.Success {
			tc.FailMessage = c.Failures[0].Message
		}
		report.Tests = append(report.Tests, tc)
	}

	return report, nil
}

func attributes(attrs []xml.Attr, reserved ...string) map[string]string {
	out := make(map[string]string, len(attrs))

	for _, a := range attrs {
		out[a.Name.Local] = a.Value
	}
	for _, k := range reserved {
		delete(out, k)
	}

	return out
}

// MarshalJSON implements json.Marshaler.
func (r Report) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Attributes)+1)
	for k, v := range r.Attributes {
		out[k] = v
	}

	tests := r.Tests
	if tests == nil {
		tests = []TestCase{}
	}
	out[testsKey] = tests

	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Report) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	r.Tests = []TestCase{}
	if tests, ok := raw[testsKey]; ok {
		if err := json.Unmarshal(tests, &r.Tests); err != nil {
			return fmt.Errorf("tests: %w", err)
		}
		delete(raw, testsKey)
	}

	attrs, err := stringAttributes(raw)
	if err != nil {
		return err
	}
	r.Attributes = attrs

	return nil
}

// MarshalJSON implements json.Marshaler.
func (tc TestCase) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(tc.Attributes)+2)
	for k, v := range tc.Attributes {
		out[k] = v
	}
	out[successKey] = tc.Success
	out[failMessageKey] = tc.FailMessage

	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (tc *TestCase) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	tc.Success = false
	tc.FailMessage = ""
	if v, ok := raw[successKey]; ok {
		if err := json.Unmarshal(v, &tc.Success); err != nil {
			return fmt.Errorf("%s: %w", successKey, err)
		}
		delete(raw, successKey)
	}
	if v, ok := raw[failMessageKey]; ok {
		if err := json.Unmarshal(v, &tc.FailMessage); err != nil {
			return fmt.Errorf("%s: %w", failMessageKey, err)
		}
		delete(raw, failMessageKey)
	}

	attrs, err := stringAttributes(raw)
	if err != nil {
		return err
	}
	tc.Attributes = attrs

	return nil
}

func stringAttributes(raw map[string]json.RawMessage) (map[string]string, error) {
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return nil, fmt.Errorf("attribute %q: %w", k, err)
		}
		out[k] = s
	}
	return out, nil
}
