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
	"context"
	"fmt"
	"log"
)

// DefaultCoordinatorCommand is what CommandLauncher runs when no command
// was configured.
var DefaultCoordinatorCommand = []string{"roscore"}

// Coordinator is the process whose lifetime bounds a session.  When it
// exits, the session drains.
type Coordinator interface {
	Pid() int

	// Poll reports, without blocking, whether the coordinator has exited
	// and with what code.
	Poll() (bool, int)

	// Terminate requests a graceful shutdown.  Repeated calls do nothing;
	// a first call after exit still reaches anything the coordinator left
	// running.
	Terminate() error

	// Kill forces the coordinator down.
	Kill() error

	// Done is closed once the coordinator has exited.
	Done() <-chan struct{}
}

// CoordinatorLauncher starts the coordinator for a session.
type CoordinatorLauncher interface {
	Start(ctx context.Context) (Coordinator, error)
}

// CoordinatorLauncherFunc adapts a function to CoordinatorLauncher.
type CoordinatorLauncherFunc func(ctx context.Context) (Coordinator, error)

func (f CoordinatorLauncherFunc) Start(ctx context.Context) (Coordinator, error) {
	return f(ctx)
}

// CommandLauncher runs the coordinator as an operating system process.
type CommandLauncher struct {
	Command []string
	Env     []string
	Dir     string
	Logger  *log.Logger
}

// Start launches the coordinator command.  Any failure is reported as
// ErrCoordinatorStart.
func (l *CommandLauncher) Start(ctx context.Context) (Coordinator, error) {
	argv := l.Command
	if len(argv) == 0 {
		argv = DefaultCoordinatorCommand
	}
	if e := ctx.Err(); e != nil {
		return nil, fmt.Errorf("%w: %v", ErrCoordinatorStart, e)
	}
	p, e := StartProcess(argv, ProcessConfig{
		Env:    l.Env,
		Dir:    l.Dir,
		Logger: l.Logger,
	})
	if e != nil {
		return nil, fmt.Errorf("%w: %v", ErrCoordinatorStart, e)
	}
	return p, nil
}
