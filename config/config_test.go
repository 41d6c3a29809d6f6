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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/buffbot/spawner"
	"github.com/spf13/viper"

	. "github.com/smartystreets/goconvey/convey"
)

func TestDefault(t *testing.T) {
	Convey("The defaults are valid", t, func() {
		cfg := Default()
		So(cfg.Validate(), ShouldBeEmpty)
		So(cfg.Session.Namespace, ShouldEqual, "/buffbot")
		So(cfg.Coordinator.Command, ShouldResemble, []string{"roscore"})
		So(cfg.Session.StopTimeout, ShouldEqual, spawner.DefaultStopTimeout)
		So(cfg.Registry.Serve, ShouldBeTrue)
		So(cfg.ServerURL(), ShouldEqual, "http://"+DefaultServerAddr)
	})
}

func TestValidate(t *testing.T) {
	Convey("Given the default configuration", t, func() {
		cfg := Default()

		Convey("A relative namespace is rejected", func() {
			cfg.Session.Namespace = "buffbot"
			So(len(cfg.Validate()), ShouldEqual, 1)
		})
		Convey("A zero poll interval is rejected", func() {
			cfg.Session.PollInterval = 0
			So(len(cfg.Validate()), ShouldEqual, 1)
		})
		Convey("A negative stop timeout is allowed", func() {
			cfg.Session.StopTimeout = -1
			So(cfg.Validate(), ShouldBeEmpty)
		})
		Convey("A restart limit needs a period", func() {
			cfg.Session.RestartLimit = 3
			cfg.Session.RestartPeriod = 0
			So(len(cfg.Validate()), ShouldEqual, 1)
		})
		Convey("An empty coordinator command is rejected", func() {
			cfg.Coordinator.Command = nil
			So(len(cfg.Validate()), ShouldEqual, 1)
		})
		Convey("A relative registry URL is rejected", func() {
			cfg.Registry.URL = "localhost/params"
			So(len(cfg.Validate()), ShouldEqual, 1)
		})
		Convey("The status listener may be disabled", func() {
			cfg.Server.Addr = ""
			So(cfg.Validate(), ShouldBeEmpty)
		})
		Convey("Every problem is reported", func() {
			cfg.Session.PollInterval = 0
			cfg.Publish.Timeout = 0
			errs := cfg.Validate()
			So(len(errs), ShouldEqual, 2)
			So(ValidationErrors(errs).Error(), ShouldContainSubstring, "publish.timeout")
		})
	})
}

func TestLoad(t *testing.T) {
	Convey("Given a config file", t, func() {
		viper.Reset()
		defer viper.Reset()

		file := filepath.Join(t.TempDir(), "spawner.yaml")
		body := `
session:
  name: r2
  poll_interval: 250ms
  restart_limit: 5
coordinator:
  command: [roscore, -p, "11312"]
registry:
  url: http://10.0.0.2:8321
`
		So(os.WriteFile(file, []byte(body), 0644), ShouldBeNil)
		So(Init(file), ShouldBeNil)

		cfg, err := Load()
		So(err, ShouldBeNil)
		So(cfg.Session.Name, ShouldEqual, "r2")
		So(cfg.Session.PollInterval, ShouldEqual, 250*time.Millisecond)
		So(cfg.Session.RestartLimit, ShouldEqual, 5)
		So(cfg.Session.RestartPeriod, ShouldEqual, time.Minute)
		So(cfg.Coordinator.Command, ShouldResemble, []string{"roscore", "-p", "11312"})
		So(cfg.Registry.URL, ShouldEqual, "http://10.0.0.2:8321")
		So(cfg.Publish.Timeout, ShouldEqual, spawner.DefaultPublishTimeout)

		Convey("The environment overrides the file", func() {
			t.Setenv("SPAWNER_SESSION_STOP_TIMEOUT", "3s")
			cfg, err := Load()
			So(err, ShouldBeNil)
			So(cfg.Session.StopTimeout, ShouldEqual, 3*time.Second)
		})
	})

	Convey("A named config file must exist", t, func() {
		viper.Reset()
		defer viper.Reset()
		So(Init(filepath.Join(t.TempDir(), "missing.yaml")), ShouldNotBeNil)
	})

	Convey("Without a config file the defaults load", t, func() {
		viper.Reset()
		defer viper.Reset()
		t.Setenv("XDG_CONFIG_HOME", t.TempDir())
		So(Init(""), ShouldBeNil)
		cfg, err := Load()
		So(err, ShouldBeNil)
		def := Default()
		So(cfg.Session, ShouldResemble, def.Session)
		So(cfg.Coordinator, ShouldResemble, def.Coordinator)
		So(cfg.Registry, ShouldResemble, def.Registry)
		So(cfg.Server, ShouldResemble, def.Server)
		So(cfg.Publish.Timeout, ShouldEqual, def.Publish.Timeout)
		So(cfg.Publish.Descriptor, ShouldBeEmpty)
	})

	Convey("An invalid value fails to load", t, func() {
		viper.Reset()
		defer viper.Reset()
		SetDefaults()
		viper.Set("session.namespace", "nope")
		_, err := Load()
		So(err, ShouldNotBeNil)
		_, ok := err.(ValidationErrors)
		So(ok, ShouldBeTrue)
	})
}

func TestConfigDir(t *testing.T) {
	Convey("XDG_CONFIG_HOME is honoured", t, func() {
		t.Setenv("XDG_CONFIG_HOME", "/custom/config")
		So(ConfigDir(), ShouldEqual, "/custom/config/spawner")
		So(ConfigFile(), ShouldEqual, "/custom/config/spawner/spawner.yaml")
	})
	Convey("Otherwise the home directory is used", t, func() {
		t.Setenv("XDG_CONFIG_HOME", "")
		home, _ := os.UserHomeDir()
		So(ConfigDir(), ShouldEqual, filepath.Join(home, ".config", "spawner"))
	})
}
