//go:build unit

package results

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alexandremahdhaoui/testloop/pkg/junit"
	"github.com/alexandremahdhaoui/testloop/pkg/probe"
	"github.com/alexandremahdhaoui/testloop/pkg/virt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecord(t *testing.T, n int) *Record {
	t.Helper()

	report, err := junit.Parse(strings.NewReader(
		`<testsuite name="acceptance"><testcase name="a"/><testcase name="b"><failure message="boom"/></testcase></testsuite>`,
	))
	require.NoError(t, err)

	started := time.Date(2026, 10, 19, 8, 30, 0, 123456789, time.UTC)

	return &Record{
		Num:           n,
		OutFile:       fmt.Sprintf("acceptance_results/do_test_%d.out", n),
		Success:       false,
		ReturnCode:    1,
		Duration:      12.345678,
		TmpDiskUsedKB: 8123456,
		Interfaces: map[string]probe.Interface{
			"enp3s0":   {Type: "ethernet", State: "connected"},
			"vboxnet0": {Type: "ethernet", State: "unmanaged"},
		},
		VBoxInfo: &virt.Info{
			HostOnlyIfs: virt.Listing{"vboxnet0": {"Name": "vboxnet0", "IPAddress": "192.168.56.1"}},
			DHCPServers: virt.Listing{},
		},
		JUnit:      report,
		JUnitPath:  fmt.Sprintf("acceptance_results/results_%d.xml", n),
		RunID:      "0b7c6a8e-4f4e-4d0a-9b59-2f7d2b1c3a11",
		StartedAt:  started,
		FinishedAt: started.Add(12345678 * time.Microsecond),
	}
}

func TestStore_Paths(t *testing.T) {
	s := &Store{dir: "acceptance_results"}

	assert.Equal(t, filepath.Join("acceptance_results", "do_test_7.out"), s.OutputPath(7))
	assert.Equal(t, filepath.Join("acceptance_results", "results_7.xml"), s.ReportPath(7))
	assert.Equal(t, filepath.Join("acceptance_results", "data_7.json"), s.DataPath(7))
	assert.Equal(t, "acceptance_results", s.Dir())
}

func TestStore_SaveLoad(t *testing.T) {
	s, err := NewStore(filepath.Join(t.TempDir(), "nested", "results"))
	require.NoError(t, err)

	want := newRecord(t, 3)
	require.NoError(t, s.Save(want))

	got, err := s.Load(3)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestStore_Save_JSONKeys(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	r := newRecord(t, 0)
	r.JUnit = nil
	r.JUnitPath = ""
	require.NoError(t, s.Save(r))

	data, err := os.ReadFile(s.DataPath(0))
	require.NoError(t, err)

	var flat map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &flat))

	for _, k := range []string{
		"num", "outfile", "success", "return_code", "duration",
		"tmp_disk_used_KB", "interfaces", "vboxinfo", "run_id", "started_at", "finished_at",
	} {
		assert.Contains(t, flat, k)
	}
	assert.NotContains(t, flat, "junit")
	assert.NotContains(t, flat, "junit_path")
	assert.NotContains(t, flat, "libvirtinfo")
	assert.JSONEq(t, `"2026-10-19T08:30:00.123456789Z"`, string(flat["started_at"]))
}

func TestStore_Save_Nil(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	require.Error(t, s.Save(nil))
}

func TestStore_Load_NotFound(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = s.Load(42)
	require.ErrorIs(t, err, ErrRecordNotFound)
}

func TestStore_Load_Corrupted(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(s.DataPath(0), []byte("{"), 0o644))

	_, err = s.Load(0)
	require.ErrorIs(t, err, ErrStoreCorrupted)
}

func TestStore_List(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	for _, n := range []int{10, 2, 0, 1} {
		require.NoError(t, s.Save(newRecord(t, n)))
	}
	for _, name := range []string{"do_test_0.out", "results_0.xml", "data_x.json", "data_-1.json", "notes.json"} {
		require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), name), []byte("{"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(s.Dir(), "data_5.json"), 0o755))

	records, err := s.List()
	require.NoError(t, err)

	var nums []int
	for _, r := range records {
		nums = append(nums, r.Num)
	}
	assert.Equal(t, []int{0, 1, 2, 10}, nums)
}

func TestStore_List_Corrupted(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(s.DataPath(0), []byte("not json"), 0o644))

	_, err = s.List()
	require.ErrorIs(t, err, ErrStoreCorrupted)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, s.Dir())

	_, err = Open(filepath.Join(dir, "missing"))
	require.Error(t, err)

	file := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err = Open(file)
	require.Error(t, err)
}

func TestStore_MoveReport(t *testing.T) {
	workDir := t.TempDir()
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	src := filepath.Join(workDir, "results.xml")
	require.NoError(t, os.WriteFile(src, []byte("<testsuite/>"), 0o644))

	dst, err := s.MoveReport(src, 4)
	require.NoError(t, err)
	assert.Equal(t, s.ReportPath(4), dst)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "<testsuite/>", string(data))

	_, err = os.Stat(src)
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = s.MoveReport(src, 5)
	require.ErrorIs(t, err, ErrMoveReport)
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0o644))
	require.NoError(t, os.WriteFile(dst, []byte("previous longer content"), 0o644))

	require.NoError(t, copyFile(src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}
