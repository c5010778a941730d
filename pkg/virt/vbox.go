package virt

import (
	"context"
	"errors"
	"fmt"

	"github.com/alexandremahdhaoui/testloop/pkg/execcontext"
	utilsexec "k8s.io/utils/exec"
)

var ErrVBoxManage = errors.New("VBoxManage failed")

const defaultVBoxManage = "VBoxManage"

// VBoxProber reads host-only interfaces and DHCP servers from VirtualBox.
type VBoxProber struct {
	exec    utilsexec.Interface
	execCtx execcontext.Context
	binary  string
}

// VBoxOption configures a VBoxProber.
type VBoxOption func(*VBoxProber)

// WithVBoxManage overrides the VBoxManage executable.
func WithVBoxManage(path string) VBoxOption {
	return func(p *VBoxProber) {
		if path != "" {
			p.binary = path
		}
	}
}

// NewVBoxProber returns a VBoxProber running VBoxManage through exe.
func NewVBoxProber(exe utilsexec.Interface, execCtx execcontext.Context, opts ...VBoxOption) *VBoxProber {
	if execCtx == nil {
		execCtx = execcontext.C()
	}

	p := &VBoxProber{
		exec:    exe,
		execCtx: execCtx,
		binary:  defaultVBoxManage,
	}
	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Probe implements Prober.
func (p *VBoxProber) Probe(ctx context.Context) *Info {
	info := &Info{}

	listing, err := p.list(ctx, HostOnlyIfs, HostOnlyIfKeys)
	info.set(HostOnlyIfs, listing, err)

	listing, err = p.list(ctx, DHCPServers, DHCPServerKeys)
	info.set(DHCPServers, listing, err)

	return info
}

func (p *VBoxProber) list(ctx context.Context, what string, policy KeyPolicy) (Listing, error) {
	output, err := execcontext.Command(ctx, p.exec, p.execCtx, p.binary, "list", what).Output()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v, output: %s",
			ErrVBoxManage, execcontext.FormatCmd(p.execCtx, p.binary, "list", what), err, string(output))
	}

	return ParseListing(string(output), policy)
}
