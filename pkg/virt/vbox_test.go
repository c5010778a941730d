//go:build unit

package virt

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alexandremahdhaoui/testloop/pkg/execcontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	utilsexec "k8s.io/utils/exec"
	testingexec "k8s.io/utils/exec/testing"
)

type fakeResult struct {
	output string
	err    error
}

func newFakeExec(argvs *[][]string, results ...fakeResult) *testingexec.FakeExec {
	fake := &testingexec.FakeExec{}
	for _, r := range results {
		fakeCmd := &testingexec.FakeCmd{
			OutputScript: []testingexec.FakeAction{
				func() ([]byte, []byte, error) { return []byte(r.output), nil, r.err },
			},
		}
		fake.CommandScript = append(fake.CommandScript, func(cmd string, args ...string) utilsexec.Cmd {
			*argvs = append(*argvs, append([]string{cmd}, args...))
			return testingexec.InitFakeCmd(fakeCmd, cmd, args...)
		})
	}
	return fake
}

func TestVBoxProber_Probe(t *testing.T) {
	var argvs [][]string
	fake := newFakeExec(&argvs,
		fakeResult{output: hostOnlyIfsOutput},
		fakeResult{output: dhcpServersOutput},
	)

	info := NewVBoxProber(fake, execcontext.New(nil, nil)).Probe(context.Background())

	assert.Equal(t, [][]string{
		{"VBoxManage", "list", "hostonlyifs"},
		{"VBoxManage", "list", "dhcpservers"},
	}, argvs)
	assert.Len(t, info.HostOnlyIfs, 2)
	assert.Len(t, info.DHCPServers, 1)
	assert.Empty(t, info.Unavailable)
	assert.Empty(t, info.UnavailableSubprobes())
}

func TestVBoxProber_Probe_PartialFailure(t *testing.T) {
	var argvs [][]string
	fake := newFakeExec(&argvs,
		fakeResult{err: testingexec.FakeExitError{Status: 1}},
		fakeResult{output: dhcpServersOutput},
	)

	info := NewVBoxProber(fake, nil, WithVBoxManage("/usr/local/bin/VBoxManage")).Probe(context.Background())

	assert.Equal(t, "/usr/local/bin/VBoxManage", argvs[0][0])
	assert.Nil(t, info.HostOnlyIfs)
	assert.Len(t, info.DHCPServers, 1)
	assert.Equal(t, []string{HostOnlyIfs}, info.UnavailableSubprobes())
	assert.Contains(t, info.Unavailable[HostOnlyIfs], "VBoxManage failed")
}

func TestVBoxProber_Probe_AllFail(t *testing.T) {
	var argvs [][]string
	fake := newFakeExec(&argvs,
		fakeResult{err: utilsexec.ErrExecutableNotFound},
		fakeResult{output: "NetworkName: net0\ngarbage\n"},
	)

	info := NewVBoxProber(fake, nil).Probe(context.Background())

	assert.Equal(t, []string{DHCPServers, HostOnlyIfs}, info.UnavailableSubprobes())
	assert.Contains(t, info.Unavailable[HostOnlyIfs], utilsexec.ErrExecutableNotFound.Error())
	assert.Contains(t, info.Unavailable[DHCPServers], ErrMalformedLine.Error())
	assert.Nil(t, info.HostOnlyIfs)
	assert.Nil(t, info.DHCPServers)
}

func TestInfo_JSON(t *testing.T) {
	tests := []struct {
		name string
		info Info
		want string
	}{
		{
			name: "both available, one empty",
			info: Info{
				HostOnlyIfs: Listing{"vboxnet0": {"Name": "vboxnet0"}},
				DHCPServers: Listing{},
			},
			want: `{"hostonlyifs":{"vboxnet0":{"Name":"vboxnet0"}},"dhcpservers":{}}`,
		},
		{
			name: "unavailable sub-probe omitted",
			info: Info{
				DHCPServers: Listing{},
				Unavailable: map[string]string{HostOnlyIfs: "boom"},
			},
			want: `{"dhcpservers":{},"unavailable":{"hostonlyifs":"boom"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.info)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))

			var back Info
			require.NoError(t, json.Unmarshal(data, &back))
			assert.Equal(t, tt.info, back)
		})
	}
}
