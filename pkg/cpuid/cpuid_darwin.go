// Copyright 2026 The Benchkit Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cpuid

import "golang.org/x/sys/unix"

func sysctlIdentity() (Identity, bool) {
	cpuType, err := unix.SysctlUint32("hw.cputype")
	if err != nil {
		return Identity{}, false
	}
	cpuSubtype, err := unix.SysctlUint32("hw.cpusubtype")
	if err != nil {
		return Identity{}, false
	}
	cpuFamily, err := unix.SysctlUint32("hw.cpufamily")
	if err != nil {
		return Identity{}, false
	}
	return Identity{Type: cpuType, Subtype: cpuSubtype, Family: cpuFamily}, true
}
