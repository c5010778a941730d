package probe

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/alexandremahdhaoui/testloop/pkg/execcontext"
	utilsexec "k8s.io/utils/exec"
)

var (
	ErrDiskUsage       = errors.New("failed to query disk usage")
	ErrParseDiskUsage  = errors.New("failed to parse disk usage")
	ErrInterfaces      = errors.New("failed to list network devices")
	ErrParseInterfaces = errors.New("failed to parse network devices")
)

// Interface is one network device as reported by nmcli.
type Interface struct {
	Type  string `json:"type"`
	State string `json:"state"`
}

// Host runs the host probes.
type Host struct {
	exec    utilsexec.Interface
	execCtx execcontext.Context
}

// NewHost returns a Host running its commands through exe.
func NewHost(exe utilsexec.Interface, execCtx execcontext.Context) *Host {
	if execCtx == nil {
		execCtx = execcontext.C()
	}
	return &Host{
		exec:    exe,
		execCtx: execCtx,
	}
}

// DiskUsage returns the number of used 1K blocks on the filesystem holding
// path.
func (h *Host) DiskUsage(ctx context.Context, path string) (int64, error) {
	argv := []string{"df", "-P", "-k", path}
	output, err := execcontext.Command(ctx, h.exec, h.execCtx, argv[0], argv[1:]...).Output()
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v, output: %s",
			ErrDiskUsage, execcontext.FormatCmd(h.execCtx, argv...), err, string(output))
	}

	return ParseDiskUsage(string(output))
}

// ParseDiskUsage extracts the "used" column of the first data row of df
// output. Header rows (starting with "File") are skipped.
func ParseDiskUsage(output string) (int64, error) {
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		if strings.HasPrefix(line, "File") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 3 {
			return 0, fmt.Errorf("%w: expected at least 3 columns, got %q", ErrParseDiskUsage, line)
		}

		used, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrParseDiskUsage, err)
		}

		return used, nil
	}

	return 0, fmt.Errorf("%w: no data row in output %q", ErrParseDiskUsage, output)
}

// Interfaces lists every network device with its type and state.
func (h *Host) Interfaces(ctx context.Context) (map[string]Interface, error) {
	argv := []string{"nmcli", "-t", "-f", "DEVICE,TYPE,STATE", "d"}
	output, err := execcontext.Command(ctx, h.exec, h.execCtx, argv[0], argv[1:]...).Output()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v, output: %s",
			ErrInterfaces, execcontext.FormatCmd(h.execCtx, argv...), err, string(output))
	}

	return ParseInterfaces(string(output))
}

// ParseInterfaces parses terse nmcli output where every line is
// "device:type:state". A line with any other number of fields is an error.
func ParseInterfaces(output string) (map[string]Interface, error) {
	ifaces := make(map[string]Interface)

	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		if line == "" {
			continue
		}

		fields := strings.Split(line, ":")
		if len(fields) != 3 {
			return nil, fmt.Errorf("%w: expected 3 fields, got %d in %q", ErrParseInterfaces, len(fields), line)
		}

		ifaces[fields[0]] = Interface{
			Type:  fields[1],
			State: fields[2],
		}
	}

	return ifaces, nil
}
