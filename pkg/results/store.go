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

// Package results owns the layout of the results directory:
//
//	do_test_<n>.out   console capture of iteration n
//	results_<n>.xml   JUnit report left by iteration n, if any
//	data_<n>.json     Record of iteration n
package results

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"syscall"
)

var (
	// ErrRecordNotFound indicates no record exists for the requested iteration
	ErrRecordNotFound = errors.New("record not found")
	// ErrStoreCorrupted indicates a record file is not valid JSON
	ErrStoreCorrupted = errors.New("store corrupted")
	// ErrMoveReport indicates the report could not be moved into the results directory
	ErrMoveReport = errors.New("failed to move report")
)

const (
	outputPrefix = "do_test_"
	outputExt    = ".out"
	reportPrefix = "results_"
	reportExt    = ".xml"
	dataPrefix   = "data_"
	dataExt      = ".json"
)

// Store reads and writes iteration files in a results directory.
type Store struct {
	dir string
	mu  sync.RWMutex
}

// NewStore creates dir if needed and returns a Store rooted at it.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create results directory: %w", err)
	}

	return &Store{dir: dir}, nil
}

// Open returns a Store on an existing results directory.
func Open(dir string) (*Store, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open results directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("failed to open results directory: %s is not a directory", dir)
	}

	return &Store{dir: dir}, nil
}

func (s *Store) Dir() string { return s.dir }

func (s *Store) OutputPath(n int) string {
	return filepath.Join(s.dir, outputPrefix+strconv.Itoa(n)+outputExt)
}

func (s *Store) ReportPath(n int) string {
	return filepath.Join(s.dir, reportPrefix+strconv.Itoa(n)+reportExt)
}

func (s *Store) DataPath(n int) string {
	return filepath.Join(s.dir, dataPrefix+strconv.Itoa(n)+dataExt)
}

// Save writes the record to data_<n>.json, replacing any previous one.
func (s *Store) Save(r *Record) error {
	if r == nil {
		return errors.New("record is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	if err := os.WriteFile(s.DataPath(r.Num), data, 0o644); err != nil {
		return fmt.Errorf("failed to write record file: %w", err)
	}

	return nil
}

// Load reads the record of iteration n.
func (s *Store) Load(n int) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.load(s.DataPath(n))
}

func (s *Store) load(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, path)
	} else if err != nil {
		return nil, fmt.Errorf("failed to read record file: %w", err)
	}

	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, errors.Join(fmt.Errorf("%s: %w", path, err), ErrStoreCorrupted)
	}

	return &r, nil
}

// List returns every record of the directory ordered by iteration. Files
// that are not data_<n>.json are ignored; a corrupted record is an error.
func (s *Store) List() ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read results directory: %w", err)
	}

	var records []*Record
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, ok := dataNum(entry.Name()); !ok {
			continue
		}

		r, err := s.load(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}

	slices.SortFunc(records, func(a, b *Record) int { return a.Num - b.Num })

	return records, nil
}

func dataNum(name string) (int, bool) {
	s, ok := strings.CutPrefix(name, dataPrefix)
	if !ok {
		return 0, false
	}
	s, ok = strings.CutSuffix(s, dataExt)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// MoveReport moves src to results_<n>.xml and returns the new path. A
// rename across filesystems falls back to copying then removing src.
func (s *Store) MoveReport(src string, n int) (string, error) {
	dst := s.ReportPath(n)

	err := os.Rename(src, dst)
	if err == nil {
		return dst, nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return "", fmt.Errorf("%w: %v", ErrMoveReport, err)
	}

	if err := copyFile(src, dst); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMoveReport, err)
	}
	if err := os.Remove(src); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMoveReport, err)
	}

	return dst, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}

	return out.Close()
}
