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
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// waitDelay bounds how long we keep draining a dead process's output pipes
// (a grandchild may still hold them open) before declaring it exited.
const waitDelay = time.Second

// ProcessConfig carries the optional settings for StartProcess.
type ProcessConfig struct {
	Env    []string    // Environment; nil means inherit ours
	Dir    string      // Working directory; empty means ours
	Logger *log.Logger // Receives stdout and stderr, line by line
}

// Process represents an actual operating system level process.  It is
// started in its own process group, so that terminating it also reaches
// anything it forked.  The exit status is collected by a background
// goroutine; callers only ever look at it without blocking.
type Process struct {
	argv    []string
	logger  *log.Logger
	cmd     *exec.Cmd
	stdout  *logWriter
	stderr  *logWriter
	started time.Time
	done    chan struct{}

	// Written once by doWait before done is closed.
	code   int
	reason error
	ended  time.Time

	signalled bool
	lock      sync.Mutex
}

// logWriter hands complete lines to a logger.  A trailing partial line is
// held until the next newline or until flush.
type logWriter struct {
	logger *log.Logger
	prefix string
	buf    []byte
	lock   sync.Mutex
}

func (w *logWriter) Write(b []byte) (int, error) {
	w.lock.Lock()
	defer w.lock.Unlock()
	w.buf = append(w.buf, b...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.logger.Print(w.prefix, strings.TrimRight(string(w.buf[:i]), "\r"))
		w.buf = w.buf[i+1:]
	}
	return len(b), nil
}

func (w *logWriter) flush() {
	w.lock.Lock()
	if len(w.buf) != 0 {
		w.logger.Print(w.prefix, string(w.buf))
		w.buf = nil
	}
	w.lock.Unlock()
}

// StartProcess launches argv.  It returns once the operating system has
// accepted (or refused) the process; it does not wait for it to exit.
func StartProcess(argv []string, cfg ProcessConfig) (*Process, error) {
	if len(argv) == 0 || argv[0] == "" {
		return nil, ErrEmptyCommand
	}
	p := &Process{
		argv:   copyArray(argv),
		logger: cfg.Logger,
		done:   make(chan struct{}),
	}
	if p.logger == nil {
		p.logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	p.cmd = exec.Command(argv[0], argv[1:]...)
	p.cmd.Env = cfg.Env
	p.cmd.Dir = cfg.Dir
	p.cmd.WaitDelay = waitDelay
	p.stdout = &logWriter{logger: p.logger, prefix: "stdout> "}
	p.stderr = &logWriter{logger: p.logger, prefix: "stderr> "}
	p.cmd.Stdout = p.stdout
	p.cmd.Stderr = p.stderr
	setProcessGroup(p.cmd)

	if e := p.cmd.Start(); e != nil {
		return nil, fmt.Errorf("start %s: %w", argv[0], e)
	}
	p.started = time.Now()
	go p.doWait()
	return p, nil
}

func (p *Process) doWait() {
	e := p.cmd.Wait()
	p.stdout.flush()
	p.stderr.flush()
	if st := p.cmd.ProcessState; st != nil {
		p.code = st.ExitCode()
	} else {
		p.code = -1
	}
	if _, isExit := e.(*exec.ExitError); e != nil && !isExit {
		p.reason = e
	}
	p.ended = time.Now()
	close(p.done)
}

// Pid returns the operating system process id.
func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// Argv returns a copy of the command line.
func (p *Process) Argv() []string {
	return copyArray(p.argv)
}

// Started returns when the process was launched.
func (p *Process) Started() time.Time {
	return p.started
}

// Done is closed once the process has exited and been reaped.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

func (p *Process) exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Poll reports whether the process has exited, and if so its exit code.
// A process killed by a signal reports -1.  Poll never blocks.
func (p *Process) Poll() (bool, int) {
	if !p.exited() {
		return false, 0
	}
	return true, p.code
}

// Ended returns the time the process was reaped, or the zero time while
// it is still running.
func (p *Process) Ended() time.Time {
	if !p.exited() {
		return time.Time{}
	}
	return p.ended
}

// Reason returns a wait failure other than a plain non-zero exit, if any.
func (p *Process) Reason() error {
	if !p.exited() {
		return nil
	}
	return p.reason
}

// Terminate asks the process group to shut down with SIGTERM.  Only the
// first request is delivered.  The group is signalled even when the leader
// has already exited, since anything it forked may still be running.
func (p *Process) Terminate() error {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.signalled {
		return nil
	}
	p.signalled = true
	if e := terminateGroup(p.cmd.Process); e != nil && !p.exited() {
		p.logger.Printf("Failed sending SIGTERM: %v", e)
		return e
	}
	return nil
}

// Terminating reports whether Terminate has delivered a request.
func (p *Process) Terminating() bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.signalled
}

// Kill forcibly stops the process group, whether or not the leader is
// still running.
func (p *Process) Kill() error {
	if e := killGroup(p.cmd.Process); e != nil && !p.exited() {
		p.logger.Printf("Failed killing: %v", e)
		return e
	}
	return nil
}

// Wait blocks until the process exits or the context expires.
func (p *Process) Wait(ctx context.Context) (int, error) {
	select {
	case <-p.done:
		return p.code, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}
