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

// Command spawnd supervises a coordinator process and the workers of one
// launch file, publishing the session parameters and serving its status.
//
// Subcommands are
//
//	run <launch-file>    - run the session until the coordinator exits or
//	                       a signal arrives
//	check <launch-file>  - validate a launch file and list its nodes
//	registry             - serve only the parameter registry
//
// SIGINT, SIGTERM and SIGHUP all shut the session down cleanly.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/buffbot/spawner/config"
)

func newRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:   "spawnd",
		Short: "Coordinator-anchored process supervisor",
		Long: `spawnd starts a coordinator process, publishes the session parameters,
then launches and watches the worker nodes of a launch file.  Workers are
respawned according to their respawn flag for as long as the coordinator
lives; every process is torn down when the session ends.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.Init(cfgFile)
		},
	}
	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default is "+config.ConfigFile()+")")
	root.PersistentFlags().StringP("addr", "a", config.DefaultServerAddr,
		"status API listen address (empty to disable)")
	_ = viper.BindPFlag("server.addr", root.PersistentFlags().Lookup("addr"))

	root.AddCommand(newRunCmd(), newCheckCmd(), newRegistryCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
