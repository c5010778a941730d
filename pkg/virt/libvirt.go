package virt

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"libvirt.org/go/libvirt"
	"libvirt.org/go/libvirtxml"
)

var (
	ErrConnectLibvirt = errors.New("failed to connect to libvirt")
	ErrListNetworks   = errors.New("failed to list libvirt networks")
	ErrNetworkXML     = errors.New("failed to read libvirt network XML")
)

const defaultLibvirtURI = "qemu:///system"

// NetworkState is a libvirt network with its runtime flags.
type NetworkState struct {
	Network   libvirtxml.Network
	Active    bool
	Autostart bool
}

// LibvirtProber reports libvirt virtual networks in the same shape as
// VBoxProber: networks as host-only interfaces, and networks serving DHCP as
// DHCP servers.
type LibvirtProber struct {
	uri string
}

// NewLibvirtProber returns a LibvirtProber for uri. An empty uri means
// qemu:///system.
func NewLibvirtProber(uri string) *LibvirtProber {
	if uri == "" {
		uri = defaultLibvirtURI
	}
	return &LibvirtProber{uri: uri}
}

// Probe implements Prober.
func (p *LibvirtProber) Probe(ctx context.Context) *Info {
	info := &Info{}

	networks, err := p.networks()
	if err != nil {
		info.set(HostOnlyIfs, nil, err)
		info.set(DHCPServers, nil, err)
		return info
	}

	info.set(HostOnlyIfs, NetworkListing(networks), nil)
	info.set(DHCPServers, DHCPListing(networks), nil)

	return info
}

func (p *LibvirtProber) networks() ([]NetworkState, error) {
	conn, err := libvirt.NewConnect(p.uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConnectLibvirt, p.uri, err)
	}
	defer func() { _, _ = conn.Close() }()

	nets, err := conn.ListAllNetworks(0)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrListNetworks, err)
	}

	out := make([]NetworkState, 0, len(nets))
	var errs []error
	for i := range nets {
		state, err := networkState(&nets[i])
		_ = nets[i].Free()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, state)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return out, nil
}

func networkState(n *libvirt.Network) (NetworkState, error) {
	xmlDesc, err := n.GetXMLDesc(0)
	if err != nil {
		return NetworkState{}, fmt.Errorf("%w: %v", ErrNetworkXML, err)
	}

	var state NetworkState
	if err := state.Network.Unmarshal(xmlDesc); err != nil {
		return NetworkState{}, fmt.Errorf("%w: %v", ErrNetworkXML, err)
	}

	if state.Active, err = n.IsActive(); err != nil {
		return NetworkState{}, fmt.Errorf("failed to check network state: %v", err)
	}
	if state.Autostart, err = n.GetAutostart(); err != nil {
		return NetworkState{}, fmt.Errorf("failed to check autostart: %v", err)
	}

	return state, nil
}

// NetworkListing flattens networks keyed by name.
func NetworkListing(networks []NetworkState) Listing {
	listing := make(Listing, len(networks))

	for _, n := range networks {
		entry := map[string]string{
			"Name":      n.Network.Name,
			"UUID":      n.Network.UUID,
			"Mode":      "isolated",
			"Status":    status(n.Active),
			"Autostart": strconv.FormatBool(n.Autostart),
		}
		if n.Network.Forward != nil && n.Network.Forward.Mode != "" {
			entry["Mode"] = n.Network.Forward.Mode
		}
		if n.Network.Bridge != nil && n.Network.Bridge.Name != "" {
			entry["Bridge"] = n.Network.Bridge.Name
		}
		if n.Network.MAC != nil {
			entry["HardwareAddress"] = n.Network.MAC.Address
		}
		for _, ip := range n.Network.IPs {
			if ip.Family == "ipv6" {
				entry["IPV6Address"] = ip.Address
				entry["IPV6NetworkMaskPrefixLength"] = strconv.FormatUint(uint64(ip.Prefix), 10)
				continue
			}
			entry["IPAddress"] = ip.Address
			if ip.Netmask != "" {
				entry["NetworkMask"] = ip.Netmask
			} else if ip.Prefix != 0 {
				entry["NetworkMask"] = "/" + strconv.FormatUint(uint64(ip.Prefix), 10)
			}
		}

		listing[n.Network.Name] = entry
	}

	return listing
}

// DHCPListing lists the networks serving DHCP, keyed by network name.
func DHCPListing(networks []NetworkState) Listing {
	listing := make(Listing)

	for _, n := range networks {
		for _, ip := range n.Network.IPs {
			if ip.DHCP == nil || len(ip.DHCP.Ranges) == 0 {
				continue
			}

			ranges := make([]string, 0, len(ip.DHCP.Ranges))
			for _, r := range ip.DHCP.Ranges {
				ranges = append(ranges, r.Start+"-"+r.End)
			}

			listing[n.Network.Name] = map[string]string{
				"NetworkName":    n.Network.Name,
				"IP":             ip.Address,
				"NetworkMask":    ip.Netmask,
				"lowerIPAddress": ip.DHCP.Ranges[0].Start,
				"upperIPAddress": ip.DHCP.Ranges[0].End,
				"Ranges":         strings.Join(ranges, ","),
				"Enabled":        strconv.FormatBool(n.Active),
			}
			break
		}
	}

	return listing
}

func status(active bool) string {
	if active {
		return "Up"
	}
	return "Down"
}
