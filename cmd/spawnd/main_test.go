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

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/buffbot/spawner"
	"github.com/buffbot/spawner/config"
	"github.com/buffbot/spawner/rest"

	. "github.com/smartystreets/goconvey/convey"
)

const sampleLaunch = `
name: r2
descriptor: [xacro, r2.urdf.xacro]
nodes:
  - command: [talker]
    respawn: true
  - command: [listener, -v]
`

func executeCommand(root *cobra.Command, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func writeLaunch(t *testing.T, body string) string {
	path := filepath.Join(t.TempDir(), "launch.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write launch file: %v", err)
	}
	return path
}

func TestCheck(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	Convey("check lists the nodes of a launch file", t, func() {
		out, err := executeCommand(newRootCmd(), "check", writeLaunch(t, sampleLaunch))
		So(err, ShouldBeNil)
		So(out, ShouldContainSubstring, "Name: r2")
		So(out, ShouldContainSubstring, "0  talker (respawn)")
		So(out, ShouldContainSubstring, "1  listener -v\n")
	})

	Convey("check rejects a bad launch file", t, func() {
		_, err := executeCommand(newRootCmd(), "check", writeLaunch(t, "name: r2\nnodes:\n  - command: []\n"))
		So(err, ShouldNotBeNil)
	})

	Convey("run needs a launch file", t, func() {
		_, err := executeCommand(newRootCmd(), "run")
		So(err, ShouldNotBeNil)
	})
}

func TestWiring(t *testing.T) {
	Convey("Given the default configuration", t, func() {
		cfg := config.Default()

		Convey("Parameters go to a served local registry", func() {
			w := newWiring(cfg)
			So(w.registry, ShouldNotBeNil)
			pub, ok := w.publisher.(*spawner.RegistryPublisher)
			So(ok, ShouldBeTrue)
			So(pub.Registry, ShouldEqual, w.registry)
			So(pub.Namespace, ShouldEqual, spawner.DefaultNamespace)
		})

		Convey("An unserved registry is still used", func() {
			cfg.Registry.Serve = false
			w := newWiring(cfg)
			So(w.registry, ShouldBeNil)
			_, ok := w.publisher.(*spawner.RegistryPublisher)
			So(ok, ShouldBeTrue)
		})

		Convey("A registry URL selects the remote publisher", func() {
			cfg.Registry.URL = "http://10.0.0.2:8321"
			w := newWiring(cfg)
			So(w.registry, ShouldBeNil)
			_, ok := w.publisher.(*rest.Publisher)
			So(ok, ShouldBeTrue)
		})

		Convey("Configuration overrides the launch file", func() {
			launch, err := spawner.ParseLaunch(bytes.NewBufferString(sampleLaunch))
			So(err, ShouldBeNil)

			sc := sessionConfig(cfg, launch, nil, nil)
			So(sc.Name, ShouldEqual, "r2")
			So(sc.Descriptor, ShouldResemble, []string{"xacro", "r2.urdf.xacro"})
			So(len(sc.Spec), ShouldEqual, 2)
			So(sc.StopTimeout, ShouldEqual, spawner.DefaultStopTimeout)

			cfg.Session.Name = "c3"
			cfg.Publish.Descriptor = []string{"cat", "robot.urdf"}
			sc = sessionConfig(cfg, launch, nil, nil)
			So(sc.Name, ShouldEqual, "c3")
			So(sc.Descriptor, ShouldResemble, []string{"cat", "robot.urdf"})
		})
	})
}

func TestRunSession(t *testing.T) {
	Convey("Given a session whose coordinator exits", t, func() {
		cfg := config.Default()
		cfg.Coordinator.Command = []string{"sh", "-c", "sleep 0.5"}
		cfg.Server.Addr = "127.0.0.1:0"
		cfg.Session.PollInterval = 20 * time.Millisecond
		cfg.Session.StopTimeout = 2 * time.Second
		launch := &spawner.Launch{
			Name: "r2",
			Spec: spawner.LaunchSpec{{Command: []string{"sleep", "30"}}},
		}
		buf := &bytes.Buffer{}
		logger := log.New(buf, "", 0)

		So(runSession(context.Background(), cfg, launch, logger), ShouldBeNil)
		So(buf.String(), ShouldContainSubstring, "Serving status on 127.0.0.1:")
		So(buf.String(), ShouldContainSubstring, "Core finished")
	})

	Convey("Given an interrupted session", t, func() {
		cfg := config.Default()
		cfg.Coordinator.Command = []string{"sleep", "30"}
		cfg.Server.Addr = ""
		cfg.Session.StopTimeout = 2 * time.Second
		launch := &spawner.Launch{
			Name: "r2",
			Spec: spawner.LaunchSpec{{Command: []string{"sleep", "30"}, Respawn: true}},
		}
		ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
		defer cancel()

		So(runSession(ctx, cfg, launch, log.New(&bytes.Buffer{}, "", 0)), ShouldBeNil)
	})

	Convey("A coordinator that cannot start is an error", t, func() {
		cfg := config.Default()
		cfg.Coordinator.Command = []string{"/nonexistent/roscore"}
		cfg.Server.Addr = ""
		launch := &spawner.Launch{
			Name: "r2",
			Spec: spawner.LaunchSpec{{Command: []string{"sleep", "30"}}},
		}
		err := runSession(context.Background(), cfg, launch, log.New(&bytes.Buffer{}, "", 0))
		So(err, ShouldNotBeNil)
	})
}

func TestShutdownContext(t *testing.T) {
	if os.Getenv("SPAWND_SIGNAL_CHILD") == "1" {
		ctx, cancel := shutdownContext(context.Background())
		defer cancel()
		syscall.Kill(os.Getpid(), syscall.SIGHUP)
		<-ctx.Done()
		fmt.Println("draining")
		syscall.Kill(os.Getpid(), syscall.SIGHUP)
		time.Sleep(5 * time.Second)
		os.Exit(0)
	}

	Convey("The first signal starts teardown and a second one ends the program", t, func() {
		cmd := exec.Command(os.Args[0], "-test.run=^TestShutdownContext$")
		cmd.Env = append(os.Environ(), "SPAWND_SIGNAL_CHILD=1")
		out, e := cmd.Output()
		So(string(out), ShouldContainSubstring, "draining")

		var xe *exec.ExitError
		So(errors.As(e, &xe), ShouldBeTrue)
		ws, ok := xe.Sys().(syscall.WaitStatus)
		So(ok, ShouldBeTrue)
		So(ws.Signaled(), ShouldBeTrue)
		So(ws.Signal(), ShouldEqual, syscall.SIGHUP)
	})

	Convey("Cancelling the parent ends the context", t, func() {
		parent, cancelParent := context.WithCancel(context.Background())
		ctx, cancel := shutdownContext(parent)
		defer cancel()
		cancelParent()
		select {
		case <-ctx.Done():
		case <-time.After(time.Second):
		}
		So(ctx.Err(), ShouldNotBeNil)
	})
}
