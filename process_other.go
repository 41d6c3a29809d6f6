//go:build !unix

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
	"errors"
	"os"
	"os/exec"
)

// Process groups are a POSIX notion; elsewhere only the direct child is
// signalled.
func setProcessGroup(c *exec.Cmd) {}

func terminateGroup(proc *os.Process) error {
	if e := proc.Signal(os.Interrupt); e != nil {
		return killGroup(proc)
	}
	return nil
}

func killGroup(proc *os.Process) error {
	if e := proc.Kill(); e != nil && !errors.Is(e, os.ErrProcessDone) {
		return e
	}
	return nil
}
