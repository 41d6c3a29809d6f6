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
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// LaunchEntry is one command of a session, together with whether it should
// be started again after a failing exit.
type LaunchEntry struct {
	Command []string `yaml:"command" json:"command"`
	Respawn bool     `yaml:"respawn" json:"respawn"`
}

// String renders the command the way it would be typed at a shell.
func (e LaunchEntry) String() string {
	return strings.Join(e.Command, " ")
}

// LaunchSpec is the ordered set of commands a session supervises.  Workers
// are identified by their position in the list, so two entries with
// identical (or identically concatenated) commands are still distinct.
type LaunchSpec []LaunchEntry

// NewLaunchSpec pairs up commands with their respawn flags.  Index i of
// commands goes with index i of respawn.  The input slices are copied.
func NewLaunchSpec(commands [][]string, respawn []bool) (LaunchSpec, error) {
	if len(commands) != len(respawn) {
		return nil, fmt.Errorf("%w: %d commands, %d flags",
			ErrSpecMismatch, len(commands), len(respawn))
	}
	spec := make(LaunchSpec, 0, len(commands))
	for i, c := range commands {
		spec = append(spec, LaunchEntry{
			Command: copyArray(c),
			Respawn: respawn[i],
		})
	}
	if e := spec.Validate(); e != nil {
		return nil, e
	}
	return spec, nil
}

// Validate checks that every entry has something to execute.
func (spec LaunchSpec) Validate() error {
	for i, e := range spec {
		if len(e.Command) == 0 || e.Command[0] == "" {
			return fmt.Errorf("%w: entry %d", ErrEmptyCommand, i)
		}
	}
	return nil
}

// Commands returns copies of the command lists, in order.
func (spec LaunchSpec) Commands() [][]string {
	rv := make([][]string, 0, len(spec))
	for _, e := range spec {
		rv = append(rv, copyArray(e.Command))
	}
	return rv
}

// Respawn returns the respawn flags, in order.
func (spec LaunchSpec) Respawn() []bool {
	rv := make([]bool, 0, len(spec))
	for _, e := range spec {
		rv = append(rv, e.Respawn)
	}
	return rv
}

func (spec LaunchSpec) clone() LaunchSpec {
	rv := make(LaunchSpec, 0, len(spec))
	for _, e := range spec {
		rv = append(rv, LaunchEntry{Command: copyArray(e.Command), Respawn: e.Respawn})
	}
	return rv
}

// Launch is the content of a launch file: the session name, how to obtain
// the description payload (if any), and the nodes to run.
type Launch struct {
	Name       string     `yaml:"name"`
	Descriptor []string   `yaml:"descriptor"`
	Payload    *string    `yaml:"payload"`
	Spec       LaunchSpec `yaml:"nodes"`
}

// ParseLaunch decodes a YAML launch file.  Unknown keys are rejected, so
// that a misspelled "respawn" does not silently turn into false.
func ParseLaunch(r io.Reader) (*Launch, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	l := &Launch{}
	if e := dec.Decode(l); e != nil {
		if e == io.EOF {
			return nil, fmt.Errorf("empty launch file")
		}
		return nil, e
	}
	if l.Name == "" {
		return nil, fmt.Errorf("launch file has no name")
	}
	if e := l.Spec.Validate(); e != nil {
		return nil, e
	}
	return l, nil
}

// LoadLaunchFile reads and parses the named launch file.
func LoadLaunchFile(path string) (*Launch, error) {
	f, e := os.Open(path)
	if e != nil {
		return nil, e
	}
	defer f.Close()
	l, e := ParseLaunch(f)
	if e != nil {
		return nil, fmt.Errorf("%s: %w", path, e)
	}
	return l, nil
}

func copyArray(src []string) []string {
	rv := make([]string, 0, len(src))
	rv = append(rv, src...)
	return rv
}
