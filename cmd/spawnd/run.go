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
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/buffbot/spawner"
	"github.com/buffbot/spawner/config"
	"github.com/buffbot/spawner/rest"
)

const shutdownGrace = time.Second

// shutdownContext is cancelled by the first interrupt, termination or hangup
// signal.  Signal handling is released before the context is done, so a
// second signal during teardown gets the default action and ends the
// program.
func shutdownContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sig, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		<-sig.Done()
		stop()
		cancel()
	}()
	return ctx, func() {
		stop()
		cancel()
	}
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <launch-file>",
		Short: "Run a session from a launch file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			launch, err := spawner.LoadLaunchFile(args[0])
			if err != nil {
				return err
			}
			logger := log.New(cmd.ErrOrStderr(), "", log.LstdFlags)

			ctx, stop := shutdownContext(cmd.Context())
			defer stop()

			return runSession(ctx, cfg, launch, logger)
		},
	}
	flags := cmd.Flags()
	flags.StringP("name", "n", "", "session name (overrides the launch file)")
	flags.String("registry", "", "URL of a remote parameter registry")
	flags.Duration("stop-timeout", spawner.DefaultStopTimeout,
		"how long to wait for processes to exit before killing them")
	_ = viper.BindPFlag("session.name", flags.Lookup("name"))
	_ = viper.BindPFlag("registry.url", flags.Lookup("registry"))
	_ = viper.BindPFlag("session.stop_timeout", flags.Lookup("stop-timeout"))
	return cmd
}

// wiring is what a session needs from the configuration besides its own
// settings: where parameters go, and which registry (if any) to serve.
type wiring struct {
	publisher spawner.Publisher
	registry  *spawner.Registry
}

func newWiring(cfg *config.Config) wiring {
	ns := cfg.Session.Namespace
	if cfg.Registry.URL != "" {
		return wiring{
			publisher: &rest.Publisher{
				Client:    rest.NewClient(nil, cfg.Registry.URL),
				Namespace: ns,
			},
		}
	}
	reg := spawner.NewRegistry()
	w := wiring{publisher: &spawner.RegistryPublisher{Registry: reg, Namespace: ns}}
	if cfg.Registry.Serve {
		w.registry = reg
	}
	return w
}

func sessionConfig(cfg *config.Config, launch *spawner.Launch, pub spawner.Publisher, logger *log.Logger) spawner.SessionConfig {
	name := cfg.Session.Name
	if name == "" {
		name = launch.Name
	}
	descriptor := launch.Descriptor
	if len(cfg.Publish.Descriptor) > 0 {
		descriptor = cfg.Publish.Descriptor
	}
	return spawner.SessionConfig{
		Name:              name,
		Spec:              launch.Spec,
		Payload:           launch.Payload,
		Descriptor:        descriptor,
		DescriptorTimeout: cfg.Publish.DescriptorTimeout,
		Launcher:          &spawner.CommandLauncher{Command: cfg.Coordinator.Command},
		Publisher:         pub,
		PublishTimeout:    cfg.Publish.Timeout,
		PollInterval:      cfg.Session.PollInterval,
		StopTimeout:       cfg.Session.StopTimeout,
		RestartLimit:      cfg.Session.RestartLimit,
		RestartPeriod:     cfg.Session.RestartPeriod,
		Logger:            logger,
	}
}

// serve starts the status API on addr, returning a function that stops it.
func serve(addr string, h http.Handler, logger *log.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	srv := &http.Server{Handler: h}
	go func() {
		if e := srv.Serve(ln); e != nil && !errors.Is(e, http.ErrServerClosed) {
			logger.Printf("Status server failed: %v", e)
		}
	}()
	logger.Printf("Serving status on %s", ln.Addr())
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		srv.Shutdown(ctx)
	}, nil
}

// runSession runs one session to completion.  An interrupted session is a
// normal way to stop, so only other failures are returned.
func runSession(ctx context.Context, cfg *config.Config, launch *spawner.Launch, logger *log.Logger) error {
	w := newWiring(cfg)
	s, err := spawner.NewSession(sessionConfig(cfg, launch, w.publisher, logger))
	if err != nil {
		return err
	}
	if cfg.Server.Addr != "" {
		stop, err := serve(cfg.Server.Addr, rest.NewHandler(s, w.registry), logger)
		if err != nil {
			return err
		}
		defer stop()
	}
	err = s.Run(ctx)
	if errors.Is(err, spawner.ErrInterrupted) {
		return nil
	}
	return err
}
