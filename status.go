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
	"reflect"
	"sync"
	"time"
)

// State is the lifecycle position of a session.
//
//	NotStarted --> Running --> Draining --> Terminated
//	     |                                      ^
//	     +--------------------------------------+
//	            (any failure during startup)
type State int

const (
	StateNotStarted State = iota
	StateRunning
	StateDraining
	StateTerminated
)

var stateNames = map[State]string{
	StateNotStarted: "not-started",
	StateRunning:    "running",
	StateDraining:   "draining",
	StateTerminated: "terminated",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	for k, v := range stateNames {
		if v == string(b) {
			*s = k
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", b)
}

// Cause records why a session stopped.
type Cause int

const (
	CauseNone Cause = iota
	CauseCoordinatorStart
	CausePublish
	CauseCoordinatorExit
	CauseInterrupt
	CauseError
)

var causeNames = map[Cause]string{
	CauseNone:             "none",
	CauseCoordinatorStart: "coordinator-start",
	CausePublish:          "publish",
	CauseCoordinatorExit:  "coordinator-exit",
	CauseInterrupt:        "interrupt",
	CauseError:            "error",
}

func (c Cause) String() string {
	if n, ok := causeNames[c]; ok {
		return n
	}
	return fmt.Sprintf("cause(%d)", int(c))
}

func (c Cause) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Cause) UnmarshalText(b []byte) error {
	for k, v := range causeNames {
		if v == string(b) {
			*c = k
			return nil
		}
	}
	return fmt.Errorf("unknown cause %q", b)
}

// Worker status strings, as reported in WorkerInfo.
const (
	StatusRunning  = "running"
	StatusStopping = "stopping"
	StatusExited   = "exited"
	StatusFailed   = "failed"
)

type CoordinatorInfo struct {
	Pid      int       `json:"pid"`
	Running  bool      `json:"running"`
	ExitCode *int      `json:"exitCode,omitempty"`
	Since    time.Time `json:"since"`
}

type WorkerInfo struct {
	Index    int       `json:"index"`
	Command  []string  `json:"command"`
	Respawn  bool      `json:"respawn"`
	Pid      int       `json:"pid"`
	Status   string    `json:"status"`
	ExitCode *int      `json:"exitCode,omitempty"`
	Starts   int       `json:"starts"`
	Since    time.Time `json:"since"`
}

// Running reports whether the worker's current process is alive.
func (w *WorkerInfo) Running() bool {
	return w.Status == StatusRunning || w.Status == StatusStopping
}

// Snapshot is a consistent, read-only picture of a session.
type Snapshot struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	State       State            `json:"state"`
	Cause       Cause            `json:"cause"`
	Error       string           `json:"error,omitempty"`
	Coordinator *CoordinatorInfo `json:"coordinator,omitempty"`
	Workers     []WorkerInfo     `json:"workers"`
	Serial      int64            `json:"serial,string"`
	CreateTime  time.Time        `json:"created"`
	UpdateTime  time.Time        `json:"updated"`
}

func (s Snapshot) clone() Snapshot {
	rv := s
	if s.Coordinator != nil {
		c := *s.Coordinator
		rv.Coordinator = &c
	}
	rv.Workers = make([]WorkerInfo, 0, len(s.Workers))
	for _, w := range s.Workers {
		w.Command = copyArray(w.Command)
		rv.Workers = append(rv.Workers, w)
	}
	return rv
}

// Live returns the number of workers whose process is alive.
func (s *Snapshot) Live() int {
	n := 0
	for i := range s.Workers {
		if s.Workers[i].Running() {
			n++
		}
	}
	return n
}

func exitCode(exited bool, code int) *int {
	if !exited {
		return nil
	}
	return &code
}

func coordinatorInfo(c Coordinator, since time.Time) *CoordinatorInfo {
	if c == nil {
		return nil
	}
	exited, code := c.Poll()
	return &CoordinatorInfo{
		Pid:      c.Pid(),
		Running:  !exited,
		ExitCode: exitCode(exited, code),
		Since:    since,
	}
}

func workerInfo(w *Worker) WorkerInfo {
	exited, code := w.proc.Poll()
	info := WorkerInfo{
		Index:    w.index,
		Command:  w.Command(),
		Respawn:  w.entry.Respawn,
		Pid:      w.proc.Pid(),
		ExitCode: exitCode(exited, code),
		Starts:   w.starts,
		Since:    w.proc.Started(),
	}
	switch {
	case exited && code == 0:
		info.Status = StatusExited
		info.Since = w.proc.Ended()
	case exited:
		info.Status = StatusFailed
		info.Since = w.proc.Ended()
	case w.proc.Terminating():
		info.Status = StatusStopping
	default:
		info.Status = StatusRunning
	}
	return info
}

// Board holds the latest Snapshot of a session for concurrent readers.
// Only changes advance the serial, so readers can wait on it.
type Board struct {
	snap    Snapshot
	serial  int64
	changed chan struct{}
	mx      sync.Mutex
}

func NewBoard() *Board {
	// The serial starts at the current time in nanoseconds so that a
	// client caching a serial from a previous daemon sees a change.
	return &Board{
		serial:  time.Now().UnixNano(),
		changed: make(chan struct{}),
	}
}

func sameSnapshot(a, b Snapshot) bool {
	a.Serial, b.Serial = 0, 0
	a.UpdateTime, b.UpdateTime = time.Time{}, time.Time{}
	return reflect.DeepEqual(a, b)
}

// Publish replaces the snapshot.  It returns the serial, which only moves
// when the content differs from the previous snapshot.
func (b *Board) Publish(s Snapshot) int64 {
	s = s.clone()
	b.mx.Lock()
	defer b.mx.Unlock()
	if sameSnapshot(s, b.snap) {
		return b.serial
	}
	b.serial++
	s.Serial = b.serial
	s.UpdateTime = time.Now()
	b.snap = s
	close(b.changed)
	b.changed = make(chan struct{})
	return b.serial
}

// Snapshot returns a copy of the latest snapshot.
func (b *Board) Snapshot() Snapshot {
	b.mx.Lock()
	defer b.mx.Unlock()
	return b.snap.clone()
}

// Serial returns the serial of the latest snapshot.
func (b *Board) Serial() int64 {
	b.mx.Lock()
	defer b.mx.Unlock()
	return b.serial
}

// Watch waits for the serial to move past old, for expire to pass, or for
// ctx to finish, and returns the serial at that time.  Zero expire polls.
func (b *Board) Watch(ctx context.Context, old int64, expire time.Duration) int64 {
	var timeout <-chan time.Time
	if expire > 0 {
		t := time.NewTimer(expire)
		defer t.Stop()
		timeout = t.C
	}
	for {
		b.mx.Lock()
		serial, ch := b.serial, b.changed
		b.mx.Unlock()
		if serial != old || expire <= 0 {
			return serial
		}
		select {
		case <-ch:
		case <-timeout:
			return serial
		case <-ctx.Done():
			return serial
		}
	}
}
