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
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/buffbot/spawner"
	"github.com/buffbot/spawner/config"
	"github.com/buffbot/spawner/rest"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <launch-file>",
		Short: "Validate a launch file and list its nodes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			launch, err := spawner.LoadLaunchFile(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Name: %s\n", launch.Name)
			if len(launch.Descriptor) > 0 {
				fmt.Fprintf(out, "Descriptor: %v\n", launch.Descriptor)
			}
			for i, e := range launch.Spec {
				respawn := ""
				if e.Respawn {
					respawn = " (respawn)"
				}
				fmt.Fprintf(out, "%3d  %s%s\n", i, e, respawn)
			}
			return nil
		},
	}
}

func newRegistryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "registry",
		Short: "Serve a parameter registry for remote sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.Server.Addr == "" {
				return fmt.Errorf("registry needs a listen address")
			}
			logger := log.New(cmd.ErrOrStderr(), "", log.LstdFlags)
			stop, err := serve(cfg.Server.Addr, rest.NewHandler(nil, spawner.NewRegistry()), logger)
			if err != nil {
				return err
			}
			defer stop()

			ctx, cancel := shutdownContext(cmd.Context())
			defer cancel()
			<-ctx.Done()
			logger.Printf("Registry shutting down")
			return nil
		},
	}
}
