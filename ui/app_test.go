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

package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"golang.org/x/net/context"

	"github.com/buffbot/spawner"
	"github.com/buffbot/spawner/rest"

	. "github.com/smartystreets/goconvey/convey"
)

// fakeSource hands out snapshots pushed on a channel.
type fakeSource struct {
	first *spawner.Snapshot
	err   error
	next  chan *spawner.Snapshot
	log   *rest.LogInfo
}

func (f *fakeSource) Session() (*spawner.Snapshot, error) {
	return f.first, f.err
}

func (f *fakeSource) WatchSession(ctx context.Context, last *spawner.Snapshot) (*spawner.Snapshot, error) {
	select {
	case s := <-f.next:
		return s, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeSource) GetLog() (*rest.LogInfo, error) {
	return f.log, nil
}

func (f *fakeSource) WatchLog(ctx context.Context, last *rest.LogInfo) (*rest.LogInfo, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func testSnapshot() *spawner.Snapshot {
	code := 2
	return &spawner.Snapshot{
		ID:    "d3b07384",
		Name:  "r2",
		State: spawner.StateRunning,
		Coordinator: &spawner.CoordinatorInfo{
			Pid:     100,
			Running: true,
			Since:   time.Now(),
		},
		Workers: []spawner.WorkerInfo{
			{Index: 0, Command: []string{"talker"}, Pid: 101, Status: spawner.StatusRunning, Starts: 1, Since: time.Now()},
			{Index: 1, Command: []string{"listener", "-v"}, Pid: 102, Status: spawner.StatusFailed, ExitCode: &code, Starts: 3},
		},
	}
}

func screenText(s tcell.SimulationScreen) string {
	w, h := s.Size()
	var b strings.Builder
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, _, _, _ := s.GetContent(x, y)
			if r == 0 {
				r = ' '
			}
			b.WriteRune(r)
		}
		b.WriteRune('\n')
	}
	return b.String()
}

func waitScreen(s tcell.SimulationScreen, text string) bool {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(screenText(s), text) {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func runApp(app *App, ctx context.Context) <-chan error {
	ch := make(chan error, 1)
	go func() {
		ch <- app.Run(ctx)
	}()
	return ch
}

func TestFormat(t *testing.T) {
	Convey("Durations format as h:mm:ss", t, func() {
		So(FormatDuration(0), ShouldEqual, "0:00:00")
		So(FormatDuration(3723*time.Second), ShouldEqual, "1:02:03")
		So(FormatDuration(26*time.Hour), ShouldEqual, "26:00:00")
	})
	Convey("Worker rows carry the command and exit code", t, func() {
		snap := testSnapshot()
		line := workerLine(&snap.Workers[1])
		So(line, ShouldContainSubstring, "failed")
		So(line, ShouldContainSubstring, "listener -v")
		So(line, ShouldContainSubstring, " 2 ")
		So(workerStyle(&snap.Workers[1]), ShouldEqual, StyleError)
		So(workerStyle(&snap.Workers[0]), ShouldEqual, StyleGood)
	})
	Convey("The summary counts workers", t, func() {
		text, style := summary(testSnapshot())
		So(text, ShouldContainSubstring, "2 Workers")
		So(text, ShouldContainSubstring, "1 Running")
		So(text, ShouldContainSubstring, "1 Failed")
		So(style, ShouldEqual, StyleWarn)
	})
}

func TestApp(t *testing.T) {
	Convey("Given a status app on a simulated screen", t, func() {
		screen := tcell.NewSimulationScreen("")
		src := &fakeSource{
			first: testSnapshot(),
			next:  make(chan *spawner.Snapshot, 1),
			log: &rest.LogInfo{Records: []spawner.LogRecord{
				{Time: time.Now(), Text: "Spawning 2 nodes"},
			}},
		}
		app := NewApp(screen, src, "http://127.0.0.1:8321")
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		done := runApp(app, ctx)

		So(waitScreen(screen, "Spawner: r2"), ShouldBeTrue)
		So(waitScreen(screen, "listener -v"), ShouldBeTrue)
		So(waitScreen(screen, "Core: pid 100"), ShouldBeTrue)

		Convey("Updates are redrawn", func() {
			snap := testSnapshot()
			snap.State = spawner.StateDraining
			snap.Cause = spawner.CauseInterrupt
			src.next <- snap
			So(waitScreen(screen, "draining  cause: interrupt"), ShouldBeTrue)
			cancel()
			So(<-done, ShouldBeNil)
		})

		Convey("The log view toggles", func() {
			screen.InjectKey(tcell.KeyRune, 'l', tcell.ModNone)
			So(waitScreen(screen, "Spawning 2 nodes"), ShouldBeTrue)
			screen.InjectKey(tcell.KeyEsc, 0, tcell.ModNone)
			So(waitScreen(screen, "listener -v"), ShouldBeTrue)
			cancel()
			So(<-done, ShouldBeNil)
		})

		Convey("q quits", func() {
			screen.InjectKey(tcell.KeyRune, 'q', tcell.ModNone)
			select {
			case e := <-done:
				So(e, ShouldBeNil)
			case <-time.After(5 * time.Second):
				So("app did not quit", ShouldBeEmpty)
			}
		})
	})

	Convey("Given a source that cannot be reached", t, func() {
		screen := tcell.NewSimulationScreen("")
		src := &fakeSource{err: errors.New("connection refused")}
		app := NewApp(screen, src, "")
		ctx, cancel := context.WithCancel(context.Background())
		done := runApp(app, ctx)

		So(waitScreen(screen, "connection refused"), ShouldBeTrue)
		cancel()
		So(<-done, ShouldBeNil)
	})
}
