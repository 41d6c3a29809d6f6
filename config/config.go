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

// Package config holds the settings shared by spawnd and spawnctl.  Values
// come from viper: defaults, then the config file, then SPAWNER_*
// environment variables, then flags bound by the commands.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/buffbot/spawner"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes environment overrides, so session.name is read
	// from SPAWNER_SESSION_NAME.
	EnvPrefix = "SPAWNER"

	configName = "spawner"

	DefaultServerAddr = "127.0.0.1:8321"
)

type Config struct {
	Session     SessionConfig     `mapstructure:"session"`
	Coordinator CoordinatorConfig `mapstructure:"coordinator"`
	Publish     PublishConfig     `mapstructure:"publish"`
	Registry    RegistryConfig    `mapstructure:"registry"`
	Server      ServerConfig      `mapstructure:"server"`
}

// SessionConfig controls supervision.  Name overrides the name in the
// launch file when set.
type SessionConfig struct {
	Name          string        `mapstructure:"name"`
	Namespace     string        `mapstructure:"namespace"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	StopTimeout   time.Duration `mapstructure:"stop_timeout"`
	RestartLimit  int           `mapstructure:"restart_limit"`
	RestartPeriod time.Duration `mapstructure:"restart_period"`
}

type CoordinatorConfig struct {
	Command []string `mapstructure:"command"`
}

// PublishConfig controls parameter publication.  Descriptor, when set,
// overrides the launch file's descriptor command.
type PublishConfig struct {
	Descriptor        []string      `mapstructure:"descriptor"`
	DescriptorTimeout time.Duration `mapstructure:"descriptor_timeout"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

// RegistryConfig says where parameters go.  With a URL they are sent to a
// remote registry and Serve is ignored; otherwise spawnd keeps them in
// process, and Serve makes that registry available to workers on the
// status API listener.
type RegistryConfig struct {
	URL   string `mapstructure:"url"`
	Serve bool   `mapstructure:"serve"`
}

// ServerConfig is the status API listener.  An empty Addr disables it in
// spawnd; spawnctl uses it to find the daemon.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

func Default() *Config {
	return &Config{
		Session: SessionConfig{
			Namespace:     spawner.DefaultNamespace,
			PollInterval:  spawner.DefaultPollInterval,
			StopTimeout:   spawner.DefaultStopTimeout,
			RestartPeriod: time.Minute,
		},
		Coordinator: CoordinatorConfig{
			Command: append([]string(nil), spawner.DefaultCoordinatorCommand...),
		},
		Publish: PublishConfig{
			DescriptorTimeout: spawner.DefaultDescriptorTimeout,
			Timeout:           spawner.DefaultPublishTimeout,
		},
		Registry: RegistryConfig{
			Serve: true,
		},
		Server: ServerConfig{
			Addr: DefaultServerAddr,
		},
	}
}

// SetDefaults registers every default with viper.
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("session.name", defaults.Session.Name)
	viper.SetDefault("session.namespace", defaults.Session.Namespace)
	viper.SetDefault("session.poll_interval", defaults.Session.PollInterval)
	viper.SetDefault("session.stop_timeout", defaults.Session.StopTimeout)
	viper.SetDefault("session.restart_limit", defaults.Session.RestartLimit)
	viper.SetDefault("session.restart_period", defaults.Session.RestartPeriod)

	viper.SetDefault("coordinator.command", defaults.Coordinator.Command)

	viper.SetDefault("publish.descriptor", defaults.Publish.Descriptor)
	viper.SetDefault("publish.descriptor_timeout", defaults.Publish.DescriptorTimeout)
	viper.SetDefault("publish.timeout", defaults.Publish.Timeout)

	viper.SetDefault("registry.url", defaults.Registry.URL)
	viper.SetDefault("registry.serve", defaults.Registry.Serve)

	viper.SetDefault("server.addr", defaults.Server.Addr)
}

// Init points viper at the config file (or the default search path when
// file is empty) and the environment.  A missing default config file is
// not an error; a missing named one is.
func Init(file string) error {
	SetDefaults()
	if file != "" {
		viper.SetConfigFile(file)
	} else {
		viper.SetConfigName(configName)
		viper.SetConfigType("yaml")
		viper.AddConfigPath(ConfigDir())
		viper.AddConfigPath(".")
	}
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && file == "" {
			return nil
		}
		return fmt.Errorf("reading config: %w", err)
	}
	return nil
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	return &cfg, nil
}

// ValidationErrors collects every problem found in a Config.
type ValidationErrors []error

func (v ValidationErrors) Error() string {
	msgs := make([]string, 0, len(v))
	for _, e := range v {
		msgs = append(msgs, e.Error())
	}
	return "invalid configuration: " + strings.Join(msgs, "; ")
}

// Validate returns the problems in c, or nil.
func (c *Config) Validate() []error {
	var errs []error
	bad := func(format string, v ...interface{}) {
		errs = append(errs, fmt.Errorf(format, v...))
	}

	if !strings.HasPrefix(c.Session.Namespace, "/") {
		bad("session.namespace %q must start with /", c.Session.Namespace)
	}
	if c.Session.PollInterval <= 0 {
		bad("session.poll_interval must be positive")
	}
	if c.Session.StopTimeout == 0 {
		bad("session.stop_timeout must not be zero")
	}
	if c.Session.RestartLimit < 0 {
		bad("session.restart_limit must not be negative")
	}
	if c.Session.RestartLimit > 0 && c.Session.RestartPeriod <= 0 {
		bad("session.restart_period must be positive when restart_limit is set")
	}
	if len(c.Coordinator.Command) == 0 || c.Coordinator.Command[0] == "" {
		bad("coordinator.command is empty")
	}
	if c.Publish.Timeout <= 0 {
		bad("publish.timeout must be positive")
	}
	if len(c.Publish.Descriptor) > 0 && c.Publish.DescriptorTimeout <= 0 {
		bad("publish.descriptor_timeout must be positive")
	}
	if c.Registry.URL != "" {
		if u, err := url.Parse(c.Registry.URL); err != nil || u.Scheme == "" || u.Host == "" {
			bad("registry.url %q is not an absolute URL", c.Registry.URL)
		}
	}
	return errs
}

// ServerURL is the base URL of the status API.
func (c *Config) ServerURL() string {
	if strings.Contains(c.Server.Addr, "://") {
		return strings.TrimSuffix(c.Server.Addr, "/")
	}
	return "http://" + c.Server.Addr
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "spawner")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".spawner"
	}
	return filepath.Join(home, ".config", "spawner")
}

// ConfigFile returns the path to the default config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), configName+".yaml")
}
