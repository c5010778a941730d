//go:build unit

package execcontext

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	utilsexec "k8s.io/utils/exec"
	testingexec "k8s.io/utils/exec/testing"
)

func TestArgv(t *testing.T) {
	tests := []struct {
		name    string
		execCtx Context
		cmd     []string
		want    []string
	}{
		{
			name:    "no prepend",
			execCtx: New(nil, nil),
			cmd:     []string{"VBoxManage", "list", "hostonlyifs"},
			want:    []string{"VBoxManage", "list", "hostonlyifs"},
		},
		{
			name:    "sudo",
			execCtx: New(nil, []string{"sudo", "-n"}),
			cmd:     []string{"VBoxManage", "list", "dhcpservers"},
			want:    []string{"sudo", "-n", "VBoxManage", "list", "dhcpservers"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Argv(tt.execCtx, tt.cmd...))
		})
	}
}

func TestContext_ReturnsCopies(t *testing.T) {
	envs := map[string]string{"LC_ALL": "C"}
	prepend := []string{"sudo"}
	c := New(envs, prepend)

	gotEnvs := c.Envs()
	gotEnvs["LC_ALL"] = "fr_FR.UTF-8"
	gotPrepend := c.PrependCmd()
	gotPrepend[0] = "doas"

	assert.Equal(t, "C", c.Envs()["LC_ALL"])
	assert.Equal(t, []string{"sudo"}, c.PrependCmd())
}

func TestCommand(t *testing.T) {
	var gotName string
	var gotArgs []string
	fakeCmd := &testingexec.FakeCmd{}
	fake := &testingexec.FakeExec{
		CommandScript: []testingexec.FakeCommandAction{
			func(cmd string, args ...string) utilsexec.Cmd {
				gotName = cmd
				gotArgs = args
				return testingexec.InitFakeCmd(fakeCmd, cmd, args...)
			},
		},
	}

	cmd := Command(context.Background(), fake, New(map[string]string{"LC_ALL": "C"}, []string{"sudo"}), "df", "-P", "/tmp")
	require.NotNil(t, cmd)

	assert.Equal(t, "sudo", gotName)
	assert.Equal(t, []string{"df", "-P", "/tmp"}, gotArgs)
	assert.Contains(t, fakeCmd.Env, "LC_ALL=C")
}

func TestCommand_NoEnvKeepsDefault(t *testing.T) {
	fakeCmd := &testingexec.FakeCmd{}
	fake := &testingexec.FakeExec{
		CommandScript: []testingexec.FakeCommandAction{
			func(cmd string, args ...string) utilsexec.Cmd {
				return testingexec.InitFakeCmd(fakeCmd, cmd, args...)
			},
		},
	}

	_ = Command(context.Background(), fake, New(nil, nil), "nmcli", "-t")
	assert.Nil(t, fakeCmd.Env)
	assert.Equal(t, []string{"nmcli", "-t"}, fakeCmd.Argv)
}

func TestFormatCmd(t *testing.T) {
	got := FormatCmd(New(map[string]string{"LC_ALL": "C"}, []string{"sudo"}), "df", "-P", "/tmp/vagrant-r10k-spec")
	assert.Equal(t, `LC_ALL="C" "sudo" "df" "-P" "/tmp/vagrant-r10k-spec"`, got)

	got = FormatCmd(New(nil, nil), "true", "&&", "false")
	assert.Equal(t, `"true" && "false"`, got)
}
