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

// Package probe samples host state around a test iteration.
//
// Two probes are provided by Host:
//
//   - DiskUsage: used 1K blocks of the filesystem holding a path (df)
//   - Interfaces: every network device known to NetworkManager with its
//     type and state (nmcli)
//
// Both shell out through an execcontext.Context so the locale can be pinned
// and a command such as "sudo" prepended. Parsing is strict: output that does
// not have the expected shape is an error, and callers are expected to treat
// it as fatal.
//
//	host := probe.NewHost(utilsexec.New(), execcontext.C())
//	used, err := host.DiskUsage(ctx, "/tmp/vagrant-r10k-spec")
//	ifaces, err := host.Interfaces(ctx)
package probe
