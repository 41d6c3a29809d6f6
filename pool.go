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
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Worker is one supervised command.  Its process is replaced every time the
// command is respawned; the Worker itself lives for the whole session.
type Worker struct {
	index      int
	entry      LaunchEntry
	proc       *Process
	logger     *log.Logger
	starts     int
	startTimes []time.Time
	rateLog    bool
	reported   bool
}

// Index returns the worker's position in the launch spec.  This is its
// identity within the pool.
func (w *Worker) Index() int {
	return w.index
}

// Command returns a copy of the worker's command line.
func (w *Worker) Command() []string {
	return copyArray(w.entry.Command)
}

// Respawn reports whether a failing exit restarts the worker.
func (w *Worker) Respawn() bool {
	return w.entry.Respawn
}

// Starts returns how many processes have been launched for this worker.
func (w *Worker) Starts() int {
	return w.starts
}

// Process returns the current (possibly exited) process.
func (w *Worker) Process() *Process {
	return w.proc
}

// A worker is respawning too quickly if it has been started limit times
// within period.  It stays down until the oldest of those starts ages out.
func (w *Worker) tooQuickly(limit int, period time.Duration, now time.Time) error {
	if limit <= 0 || w.starts < limit {
		return nil
	}
	oldest := w.startTimes[w.starts%limit]
	if now.Before(oldest.Add(period)) {
		if !w.rateLog {
			w.logger.Printf("Respawning too quickly, holding for %v",
				oldest.Add(period).Sub(now).Round(time.Millisecond))
		}
		w.rateLog = true
		return ErrRateLimited
	}
	w.rateLog = false
	return nil
}

// noteExit logs an exit that will not be followed by a respawn.  Each
// process's exit is logged once.
func (w *Worker) noteExit(code int) {
	if w.reported {
		return
	}
	w.reported = true
	switch {
	case code == 0:
		w.logger.Printf("%s exited cleanly", w.entry)
	case !w.entry.Respawn:
		w.logger.Printf("%s died: %d, not respawning", w.entry, code)
	}
}

// PollResult is the outcome of checking a single worker.  Code is only
// meaningful when Exited is true.
type PollResult struct {
	Index  int
	Worker *Worker
	Exited bool
	Code   int
}

// PoolConfig describes how workers are started.
type PoolConfig struct {
	Env    []string
	Dir    string
	Logger *log.Logger

	// RestartLimit is the maximum number of starts of one worker within
	// RestartPeriod.  Zero means respawn without limit.
	RestartLimit  int
	RestartPeriod time.Duration
}

// Pool holds the workers of a session, keyed by launch spec index.  It is
// not safe for concurrent use; the session drives it from one goroutine.
type Pool struct {
	spec    LaunchSpec
	workers map[int]*Worker
	cfg     PoolConfig
	logger  *log.Logger
}

// NewPool returns an empty pool.
func NewPool(cfg PoolConfig) *Pool {
	p := &Pool{
		workers: make(map[int]*Worker),
		cfg:     cfg,
		logger:  cfg.Logger,
	}
	if p.logger == nil {
		p.logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	if p.cfg.RestartLimit > 0 && p.cfg.RestartPeriod <= 0 {
		p.cfg.RestartPeriod = time.Minute
	}
	return p
}

func (p *Pool) workerLogger(index int, argv0 string) *log.Logger {
	prefix := fmt.Sprintf("[%d:%s] ", index, filepath.Base(argv0))
	return log.New(p.logger.Writer(), prefix, p.logger.Flags())
}

func (p *Pool) start(w *Worker) error {
	now := time.Now()
	proc, e := StartProcess(w.entry.Command, ProcessConfig{
		Env:    p.cfg.Env,
		Dir:    p.cfg.Dir,
		Logger: w.logger,
	})
	if e != nil {
		w.logger.Printf("Failed to start: %v", e)
		return e
	}
	if p.cfg.RestartLimit > 0 {
		w.startTimes[w.starts%p.cfg.RestartLimit] = now
	}
	w.starts++
	w.proc = proc
	w.reported = false
	w.logger.Printf("Started %s (pid %d)", w.entry, proc.Pid())
	return nil
}

// SpawnAll starts a process for every entry of spec, in order.  It stops at
// the first command that cannot be started; workers started before that
// remain in the pool, so that they can be terminated.
func (p *Pool) SpawnAll(spec LaunchSpec) error {
	p.spec = spec.clone()
	p.logger.Printf("Spawning %d nodes", len(p.spec))
	for i, entry := range p.spec {
		w := &Worker{
			index:  i,
			entry:  entry,
			logger: p.workerLogger(i, entry.Command[0]),
		}
		if p.cfg.RestartLimit > 0 {
			w.startTimes = make([]time.Time, p.cfg.RestartLimit)
		}
		if e := p.start(w); e != nil {
			return fmt.Errorf("worker %d: %w", i, e)
		}
		p.workers[i] = w
	}
	return nil
}

// Respawn starts a fresh process for the worker at index, replacing the
// previous one.  It returns ErrRateLimited when the restart limit holds the
// worker down.
func (p *Pool) Respawn(index int) error {
	w, ok := p.workers[index]
	if !ok {
		return fmt.Errorf("%w %d", ErrNoWorker, index)
	}
	if e := w.tooQuickly(p.cfg.RestartLimit, p.cfg.RestartPeriod, time.Now()); e != nil {
		return e
	}
	_, code := w.proc.Poll()
	w.logger.Printf("%s died: %d, respawning", w.entry, code)
	// Stop anything the old process left behind in its group.
	w.proc.Terminate()
	if e := p.start(w); e != nil {
		return fmt.Errorf("worker %d: %w", index, e)
	}
	return nil
}

// Workers returns the workers ordered by index.
func (p *Pool) Workers() []*Worker {
	rv := make([]*Worker, 0, len(p.workers))
	for _, w := range p.workers {
		rv = append(rv, w)
	}
	sort.Slice(rv, func(i, j int) bool { return rv[i].index < rv[j].index })
	return rv
}

// Worker returns the worker at index, or nil.
func (p *Pool) Worker(index int) *Worker {
	return p.workers[index]
}

// Len returns the number of workers in the pool.
func (p *Pool) Len() int {
	return len(p.workers)
}

// PollAll checks every worker without blocking.
func (p *Pool) PollAll() []PollResult {
	rv := make([]PollResult, 0, len(p.workers))
	for _, w := range p.Workers() {
		exited, code := w.proc.Poll()
		rv = append(rv, PollResult{
			Index:  w.index,
			Worker: w,
			Exited: exited,
			Code:   code,
		})
	}
	return rv
}

// TerminateAll asks every worker's process group to stop, including groups
// whose leader has already exited.  A group already asked is left alone, so
// calling it more than once is harmless.
func (p *Pool) TerminateAll() {
	for _, w := range p.Workers() {
		if w.proc.Terminating() {
			continue
		}
		if exited, _ := w.proc.Poll(); !exited {
			w.logger.Printf("Terminating %s (pid %d)", w.entry, w.proc.Pid())
		}
		w.proc.Terminate()
	}
}

// Kill forcibly stops every worker's process group.
func (p *Pool) Kill() {
	for _, w := range p.Workers() {
		if exited, _ := w.proc.Poll(); !exited {
			w.logger.Printf("Killing %s (pid %d)", w.entry, w.proc.Pid())
		}
		w.proc.Kill()
	}
}

// Live returns the number of worker processes that have not exited.
func (p *Pool) Live() int {
	n := 0
	for _, w := range p.workers {
		if exited, _ := w.proc.Poll(); !exited {
			n++
		}
	}
	return n
}

// Wait blocks until every worker process has exited, or ctx expires.
func (p *Pool) Wait(ctx context.Context) error {
	for _, w := range p.Workers() {
		if _, e := w.proc.Wait(ctx); e != nil {
			return e
		}
	}
	return nil
}
