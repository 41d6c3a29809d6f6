//go:build unix

// Copyright 2026 The Spawner Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use file except in compliance with the License.
// You may obtain a copy of the license at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package spawner

import (
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

func setProcessGroup(c *exec.Cmd) {
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// signalGroup delivers sig to the whole process group led by proc.  A group
// that has already gone away is not an error.
func signalGroup(proc *os.Process, sig unix.Signal) error {
	if e := unix.Kill(-proc.Pid, sig); e != nil && e != unix.ESRCH {
		return e
	}
	return nil
}

func terminateGroup(proc *os.Process) error {
	return signalGroup(proc, unix.SIGTERM)
}

func killGroup(proc *os.Process) error {
	return signalGroup(proc, unix.SIGKILL)
}
