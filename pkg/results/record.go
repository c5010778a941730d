package results

import (
	"time"

	"github.com/alexandremahdhaoui/testloop/pkg/junit"
	"github.com/alexandremahdhaoui/testloop/pkg/probe"
	"github.com/alexandremahdhaoui/testloop/pkg/virt"
)

// Record is the summary of one iteration, persisted as data_<n>.json.
type Record struct {
	// Num is the ordinal of the iteration, starting at 0.
	Num int `json:"num"`
	// OutFile is the path of the console capture.
	OutFile string `json:"outfile"`

	Success    bool    `json:"success"`
	ReturnCode int     `json:"return_code"`
	Duration   float64 `json:"duration"`

	// TmpDiskUsedKB is the number of used 1K blocks on the probed path.
	TmpDiskUsedKB int64                      `json:"tmp_disk_used_KB"`
	Interfaces    map[string]probe.Interface `json:"interfaces"`
	VBoxInfo      *virt.Info                 `json:"vboxinfo"`

	// JUnit and JUnitPath are set only when the test command left a report.
	JUnit     *junit.Report `json:"junit,omitempty"`
	JUnitPath string        `json:"junit_path,omitempty"`

	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	LibvirtInfo *virt.Info `json:"libvirtinfo,omitempty"`
}
