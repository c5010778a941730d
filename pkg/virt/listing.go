package virt

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

var ErrMalformedLine = errors.New("malformed listing line")

// KeyPolicy maps a field name to its priority when choosing the key of an
// entity. Lower priorities win. Callers look entities up by these keys, so
// the table is part of the output contract.
type KeyPolicy map[string]int

var (
	// HostOnlyIfKeys keys VirtualBox host-only interfaces.
	HostOnlyIfKeys = KeyPolicy{
		"Name":            0,
		"VBoxNetworkName": 1,
		"GUID":            2,
	}

	// DHCPServerKeys keys VirtualBox DHCP servers.
	DHCPServerKeys = KeyPolicy{
		"NetworkName": 0,
	}
)

// Fields returns the field names ordered by priority.
func (p KeyPolicy) Fields() []string {
	return slices.SortedFunc(maps.Keys(p), func(a, b string) int {
		if p[a] != p[b] {
			return p[a] - p[b]
		}
		return strings.Compare(a, b)
	})
}

// Key returns the value of the highest priority field present in entry.
func (p KeyPolicy) Key(entry map[string]string) (string, bool) {
	for _, field := range p.Fields() {
		if v, ok := entry[field]; ok {
			return v, true
		}
	}
	return "", false
}

// ParseListing parses "VBoxManage list" style output: entities are separated
// by blank lines and every line is "<key>: <value>". Entities without any
// policy field are keyed "unknown_<i>", i being the entity's position.
func ParseListing(output string, policy KeyPolicy) (Listing, error) {
	listing := make(Listing)

	output = strings.ReplaceAll(output, "\r\n", "\n")
	n := 0
	for _, block := range strings.Split(output, "\n\n") {
		entry, err := parseBlock(block)
		if err != nil {
			return nil, err
		}
		if len(entry) == 0 {
			continue
		}

		key, ok := policy.Key(entry)
		if !ok {
			key = fmt.Sprintf("unknown_%d", n)
		}
		n++

		listing[key] = entry
	}

	return listing, nil
}

func parseBlock(block string) (map[string]string, error) {
	entry := make(map[string]string)

	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		k, v, ok := strings.Cut(line, " ")
		if !ok && !strings.HasSuffix(line, ":") {
			return nil, fmt.Errorf("%w: %q", ErrMalformedLine, line)
		}

		entry[strings.Trim(strings.TrimSpace(k), ":")] = strings.TrimSpace(v)
	}

	return entry, nil
}
