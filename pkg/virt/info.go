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

// Package virt reports the host-side networking of a hypervisor: host-only
// interfaces and DHCP servers.
//
// Probing is best effort. Each sub-probe either yields a Listing or is
// recorded in Info.Unavailable with the reason; a Prober never fails as a
// whole.
package virt

import (
	"context"
	"maps"
	"slices"
)

// Sub-probe names, also used as JSON keys.
const (
	HostOnlyIfs = "hostonlyifs"
	DHCPServers = "dhcpservers"
)

// Listing maps an entity key to the entity's flat field mapping.
type Listing map[string]map[string]string

// Info is the result of a Prober run.
type Info struct {
	HostOnlyIfs Listing `json:"hostonlyifs,omitzero"`
	DHCPServers Listing `json:"dhcpservers,omitzero"`

	// Unavailable maps a sub-probe name to the reason it produced nothing.
	Unavailable map[string]string `json:"unavailable,omitzero"`
}

// Prober samples the hypervisor's host networking.
type Prober interface {
	Probe(ctx context.Context) *Info
}

func (i *Info) set(subprobe string, listing Listing, err error) {
	if err != nil {
		if i.Unavailable == nil {
			i.Unavailable = make(map[string]string)
		}
		i.Unavailable[subprobe] = err.Error()
		return
	}

	switch subprobe {
	case HostOnlyIfs:
		i.HostOnlyIfs = listing
	case DHCPServers:
		i.DHCPServers = listing
	}
}

// UnavailableSubprobes returns the failed sub-probe names in sorted order.
func (i *Info) UnavailableSubprobes() []string {
	if i == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(i.Unavailable))
}
