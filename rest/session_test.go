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

package rest

import (
	"log"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/buffbot/spawner"
	"golang.org/x/net/context"

	. "github.com/smartystreets/goconvey/convey"
)

type testLog struct {
	t *testing.T
}

func (tl *testLog) Write(p []byte) (int, error) {
	tl.t.Log(string(p))
	return len(p), nil
}

func testLogger(t *testing.T) *log.Logger {
	return log.New(&testLog{t: t}, "", log.Lmicroseconds)
}

func runningSession(t *testing.T, reg *spawner.Registry) (*spawner.Session, func()) {
	spec, e := spawner.NewLaunchSpec(
		[][]string{{"sleep", "30"}, {"sh", "-c", "exit 3"}},
		[]bool{false, false})
	if e != nil {
		t.Fatalf("NewLaunchSpec: %v", e)
	}
	s, e := spawner.NewSession(spawner.SessionConfig{
		Name:         "resttest",
		Spec:         spec,
		Launcher:     &spawner.CommandLauncher{Command: []string{"sleep", "30"}},
		Publisher:    &spawner.RegistryPublisher{Registry: reg},
		PollInterval: 20 * time.Millisecond,
		StopTimeout:  2 * time.Second,
		Logger:       testLogger(t),
	})
	if e != nil {
		t.Fatalf("NewSession: %v", e)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	stop := func() {
		cancel()
		select {
		case <-done:
		case <-time.After(10 * time.Second):
			t.Errorf("session did not stop")
		}
	}
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		snap := s.Snapshot()
		if snap.State == spawner.StateRunning && len(snap.Workers) == 2 &&
			snap.Workers[1].Status == spawner.StatusFailed {
			return s, stop
		}
		time.Sleep(10 * time.Millisecond)
	}
	stop()
	t.Fatalf("session never settled")
	return nil, nil
}

func TestSessionRoutes(t *testing.T) {
	Convey("Given a running session served over HTTP", t, func() {
		reg := spawner.NewRegistry()
		s, stop := runningSession(t, reg)
		defer stop()
		srv := httptest.NewServer(NewHandler(s, reg))
		defer srv.Close()
		c := NewClient(nil, srv.URL)

		Convey("The session snapshot is served", func() {
			snap, e := c.Session()
			So(e, ShouldBeNil)
			So(snap.ID, ShouldEqual, s.ID())
			So(snap.Name, ShouldEqual, "resttest")
			So(snap.State, ShouldEqual, spawner.StateRunning)
			So(snap.Coordinator, ShouldNotBeNil)
			So(snap.Coordinator.Running, ShouldBeTrue)
			So(len(snap.Workers), ShouldEqual, 2)
		})

		Convey("Workers are served by index", func() {
			ws, e := c.Workers()
			So(e, ShouldBeNil)
			So(len(ws), ShouldEqual, 2)

			w, e := c.Worker(1)
			So(e, ShouldBeNil)
			So(w.Status, ShouldEqual, spawner.StatusFailed)
			So(*w.ExitCode, ShouldEqual, 3)

			_, e = c.Worker(7)
			So(e, ShouldNotBeNil)
			So(e.(*Error).Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("A current Etag gets 304", func() {
			snap := s.Snapshot()
			req, _ := http.NewRequest("GET", srv.URL+"/session", nil)
			req.Header.Set("If-None-Match", strconv.FormatInt(snap.Serial, 10))
			res, e := http.DefaultClient.Do(req)
			So(e, ShouldBeNil)
			res.Body.Close()
			So(res.StatusCode, ShouldEqual, http.StatusNotModified)
		})

		Convey("The session log is served", func() {
			li, e := c.GetLog()
			So(e, ShouldBeNil)
			So(len(li.Records), ShouldBeGreaterThan, 0)
		})

		Convey("The published parameters are served", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			params, e := c.GetParams(ctx, spawner.DefaultNamespace)
			So(e, ShouldBeNil)
			So(params[spawner.ParamRobotName], ShouldEqual, "resttest")
		})

		Convey("A watch returns when the session changes", func() {
			snap, e := c.Session()
			So(e, ShouldBeNil)

			ch := make(chan *spawner.Snapshot, 1)
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				n, _ := c.WatchSession(ctx, snap)
				ch <- n
			}()
			time.Sleep(50 * time.Millisecond)
			stop()

			select {
			case n := <-ch:
				So(n, ShouldNotBeNil)
				So(n.Serial, ShouldNotEqual, snap.Serial)
			case <-time.After(10 * time.Second):
				So("watch timed out", ShouldBeEmpty)
			}
		})
	})
}
