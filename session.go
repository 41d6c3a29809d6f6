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
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultPollInterval   = 100 * time.Millisecond
	DefaultStopTimeout    = 10 * time.Second
	DefaultPublishTimeout = 10 * time.Second

	// killGrace is how long we wait for the reaper after a SIGKILL.
	killGrace = time.Second
)

// SessionConfig describes a session.  Name, Spec and Publisher are
// required; everything else has a default.
type SessionConfig struct {
	Name string
	Spec LaunchSpec

	// Payload is published alongside the name.  When Descriptor is set,
	// its output replaces Payload.
	Payload           *string
	Descriptor        []string
	DescriptorTimeout time.Duration

	Launcher       CoordinatorLauncher // Default runs DefaultCoordinatorCommand
	Publisher      Publisher
	PublishTimeout time.Duration

	PollInterval time.Duration

	// StopTimeout is how long teardown waits for processes to exit after
	// asking them to, before killing them.  Negative means ask only.
	StopTimeout time.Duration

	RestartLimit  int
	RestartPeriod time.Duration

	Env    []string
	Dir    string
	Logger *log.Logger
}

// Session supervises one coordinator and the workers anchored to it.  A
// Session is run exactly once.  Its pool and coordinator belong to the
// goroutine inside Run; other goroutines observe the session through
// State, Cause, Snapshot, Board and Log.
type Session struct {
	id         string
	name       string
	cfg        SessionConfig
	pool       *Pool
	coord      Coordinator
	coordSince time.Time
	createTime time.Time

	mlog   *MultiLogger
	logger *log.Logger
	log    *Log
	board  *Board

	ran   bool
	state State
	cause Cause
	err   error
	lock  sync.Mutex
}

// NewSession validates cfg and returns a session ready to Run.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.Name == "" {
		return nil, errors.New("session has no name")
	}
	if cfg.Publisher == nil {
		return nil, errors.New("session has no publisher")
	}
	if e := cfg.Spec.Validate(); e != nil {
		return nil, e
	}
	cfg.Spec = cfg.Spec.clone()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.StopTimeout == 0 {
		cfg.StopTimeout = DefaultStopTimeout
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = DefaultPublishTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stderr, "", log.LstdFlags)
	}

	s := &Session{
		id:         uuid.NewString(),
		name:       cfg.Name,
		createTime: time.Now(),
		mlog:       NewMultiLogger(),
		log:        NewLog(MaxLogRecords),
		board:      NewBoard(),
	}
	s.mlog.AddLogger(cfg.Logger)
	s.mlog.AddLogger(log.New(s.log, "", 0))
	s.logger = s.mlog.Logger()

	coreLogger := log.New(s.mlog, "[core] ", 0)
	switch l := cfg.Launcher.(type) {
	case nil:
		cfg.Launcher = &CommandLauncher{
			Env:    cfg.Env,
			Dir:    cfg.Dir,
			Logger: coreLogger,
		}
	case *CommandLauncher:
		if l.Logger == nil {
			cp := *l
			cp.Logger = coreLogger
			cfg.Launcher = &cp
		}
	}
	s.cfg = cfg
	s.pool = NewPool(PoolConfig{
		Env:           cfg.Env,
		Dir:           cfg.Dir,
		Logger:        s.logger,
		RestartLimit:  cfg.RestartLimit,
		RestartPeriod: cfg.RestartPeriod,
	})
	s.publishSnapshot()
	return s, nil
}

func (s *Session) logf(format string, v ...interface{}) {
	s.logger.Printf(format, v...)
}

// ID returns the unique identifier of this session.
func (s *Session) ID() string {
	return s.id
}

// Name returns the session name, as published to the registry.
func (s *Session) Name() string {
	return s.name
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.state
}

// Cause returns why the session stopped, or CauseNone while it runs.
func (s *Session) Cause() Cause {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.cause
}

// Err returns the error Run returned (or will return).
func (s *Session) Err() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.err
}

// Snapshot returns the latest published picture of the session.
func (s *Session) Snapshot() Snapshot {
	return s.board.Snapshot()
}

// Board returns the snapshot board, for watchers.
func (s *Session) Board() *Board {
	return s.board
}

// Log returns the session's log ring.
func (s *Session) Log() *Log {
	return s.log
}

// Logger returns the logger session events are written to.
func (s *Session) Logger() *log.Logger {
	return s.logger
}

func (s *Session) setState(st State) {
	s.lock.Lock()
	s.state = st
	s.lock.Unlock()
	s.publishSnapshot()
}

func (s *Session) publishSnapshot() {
	s.lock.Lock()
	snap := Snapshot{
		ID:          s.id,
		Name:        s.name,
		State:       s.state,
		Cause:       s.cause,
		Coordinator: coordinatorInfo(s.coord, s.coordSince),
		CreateTime:  s.createTime,
	}
	if s.err != nil {
		snap.Error = s.err.Error()
	}
	s.lock.Unlock()
	for _, w := range s.pool.Workers() {
		snap.Workers = append(snap.Workers, workerInfo(w))
	}
	s.board.Publish(snap)
}

// Run launches the coordinator, publishes the session parameters, spawns
// every worker and supervises them until the coordinator exits, ctx is
// cancelled, or the loop fails.  It returns only after every process it
// started has been asked to terminate.
//
// A coordinator exit is a normal end and returns nil.  Cancellation
// returns an error matching ErrInterrupted; startup failures match
// ErrCoordinatorStart or ErrPublish; anything else matches ErrLoop.
func (s *Session) Run(ctx context.Context) error {
	s.lock.Lock()
	if s.ran {
		s.lock.Unlock()
		return ErrSessionUsed
	}
	s.ran = true
	s.lock.Unlock()

	s.logf("*** Starting session %s (%s) ***", s.name, s.id)
	if ctx.Err() != nil {
		s.logf("Terminate received before start")
		return s.finish(CauseInterrupt, ErrInterrupted)
	}

	coord, e := s.cfg.Launcher.Start(ctx)
	if e != nil {
		if !errors.Is(e, ErrCoordinatorStart) {
			e = fmt.Errorf("%w: %v", ErrCoordinatorStart, e)
		}
		s.logf("Failed to launch core: %v", e)
		return s.finish(CauseCoordinatorStart, e)
	}
	s.coord = coord
	s.coordSince = time.Now()
	s.logf("Started core (pid %d)", coord.Pid())

	var cause Cause
	if e = s.publishParams(ctx); e != nil {
		cause = CausePublish
		if ctx.Err() != nil {
			cause, e = CauseInterrupt, nil
		}
	} else if e = s.pool.SpawnAll(s.cfg.Spec); e != nil {
		cause, e = CauseError, fmt.Errorf("%w: %v", ErrLoop, e)
	} else {
		s.setState(StateRunning)
		cause, e = s.monitor(ctx)
	}
	return s.drain(cause, e)
}

func (s *Session) publishParams(ctx context.Context) error {
	payload := s.cfg.Payload
	if len(s.cfg.Descriptor) != 0 {
		out, e := RenderDescriptor(ctx, s.cfg.Descriptor, s.cfg.DescriptorTimeout)
		if e != nil {
			return fmt.Errorf("%w: %v", ErrPublish, e)
		}
		payload = &out
	}
	pctx, cancel := context.WithTimeout(ctx, s.cfg.PublishTimeout)
	defer cancel()
	if e := s.cfg.Publisher.Publish(pctx, s.name, payload); e != nil {
		return fmt.Errorf("%w: %v", ErrPublish, e)
	}
	s.logf("Published parameters for %s", s.name)
	return nil
}

// monitor is the steady state.  Each pass checks the coordinator first, so
// a dead coordinator is noticed before any worker is respawned.
func (s *Session) monitor(ctx context.Context) (Cause, error) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	for {
		if ctx.Err() != nil {
			return CauseInterrupt, nil
		}
		done, e := s.step()
		if e != nil {
			return CauseError, e
		}
		if done {
			return CauseCoordinatorExit, nil
		}

		select {
		case <-ctx.Done():
			return CauseInterrupt, nil
		case <-s.coord.Done():
		case <-ticker.C:
		}
	}
}

// step runs one monitoring pass.  A panic inside it is turned into an
// error, so that the session still drains.
func (s *Session) step() (done bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			done, err = false, fmt.Errorf("%w: panic: %v", ErrLoop, r)
		}
	}()

	if exited, code := s.coord.Poll(); exited {
		s.logf("Core exited: %d", code)
		return true, nil
	}
	for _, r := range s.pool.PollAll() {
		if !r.Exited {
			continue
		}
		if r.Code != 0 && r.Worker.Respawn() {
			e := s.pool.Respawn(r.Index)
			if e == nil || errors.Is(e, ErrRateLimited) {
				continue
			}
			return false, fmt.Errorf("%w: %v", ErrLoop, e)
		}
		r.Worker.noteExit(r.Code)
	}
	s.publishSnapshot()
	return false, nil
}

// drain tears the session down.  Every worker is asked to stop before the
// coordinator is.  Only a running session passes through Draining; one that
// fails during startup goes straight to Terminated once its coordinator is
// down.
func (s *Session) drain(cause Cause, err error) error {
	if cause == CauseInterrupt {
		err = ErrInterrupted
	}
	s.lock.Lock()
	s.cause = cause
	s.err = err
	running := s.state == StateRunning
	s.lock.Unlock()
	if running {
		s.setState(StateDraining)
	}

	switch cause {
	case CauseCoordinatorExit:
		s.logf("Core finished, shutting down")
	case CauseInterrupt:
		s.logf("Terminate received")
	case CausePublish:
		s.logf("Startup aborted: %v", err)
	default:
		s.logf("Killed due to error: %v", err)
	}

	s.pool.TerminateAll()
	if s.coord != nil {
		s.logf("Terminating core (pid %d)", s.coord.Pid())
		s.coord.Terminate()
	}
	if s.cfg.StopTimeout > 0 {
		s.await(s.cfg.StopTimeout)
	}
	return s.finish(cause, err)
}

// await gives processes up to d to exit, then kills the rest.
func (s *Session) await(d time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	if e := s.pool.Wait(ctx); e != nil {
		s.logf("Graceful shutdown timed out, killing %d workers", s.pool.Live())
		s.pool.Kill()
	}
	if s.coord != nil {
		select {
		case <-s.coord.Done():
		case <-ctx.Done():
			s.logf("Core did not stop, killing it")
			s.coord.Kill()
		}
	}

	kctx, kcancel := context.WithTimeout(context.Background(), killGrace)
	defer kcancel()
	s.pool.Wait(kctx)
	if s.coord != nil {
		select {
		case <-s.coord.Done():
		case <-kctx.Done():
		}
	}
}

func (s *Session) finish(cause Cause, err error) error {
	s.lock.Lock()
	s.cause = cause
	s.err = err
	s.lock.Unlock()
	s.setState(StateTerminated)
	if err != nil {
		s.logf("*** Session %s terminated (%s): %v ***", s.name, cause, err)
	} else {
		s.logf("*** Session %s terminated (%s) ***", s.name, cause)
	}
	return err
}
