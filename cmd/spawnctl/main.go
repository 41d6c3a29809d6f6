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

// Command spawnctl talks to a running spawnd.  It uses subcommands.
//
// Subcommands are
//
//	status              - show the session and its workers
//	workers [<index>]   - show all workers, or one in detail
//	log [-f]            - print (and optionally follow) the session log
//	params list         - list registry namespaces
//	params get <ns>     - print the parameters of a namespace
//	params set <ns> k=v - replace the parameters of a namespace
//	params delete <ns>  - remove a namespace
//	ui                  - full screen status display (the default)
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/buffbot/spawner/config"
	"github.com/buffbot/spawner/rest"
)

func newRootCmd() *cobra.Command {
	var cfgFile string
	var auth string

	root := &cobra.Command{
		Use:          "spawnctl",
		Short:        "Inspect a running spawnd",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.Init(cfgFile)
		},
	}
	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default is "+config.ConfigFile()+")")
	root.PersistentFlags().StringP("addr", "a", config.DefaultServerAddr, "spawnd address")
	root.PersistentFlags().StringVarP(&auth, "user", "u", "", "user:pass authentication")
	_ = viper.BindPFlag("server.addr", root.PersistentFlags().Lookup("addr"))

	// client is shared by the subcommands; it is built after flags and
	// configuration are known.
	client := func() (*rest.Client, string, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, "", err
		}
		url := cfg.ServerURL()
		c := rest.NewClient(nil, url)
		if auth != "" {
			a := strings.SplitN(auth, ":", 2)
			if len(a) != 2 {
				return nil, "", fmt.Errorf("bad user:pass supplied")
			}
			c.SetAuth(a[0], a[1])
		}
		return c, url, nil
	}

	ui := newUICmd(client)
	root.AddCommand(
		newStatusCmd(client),
		newWorkersCmd(client),
		newLogCmd(client),
		newParamsCmd(client),
		ui,
	)
	root.RunE = ui.RunE
	return root
}

type clientFunc func() (*rest.Client, string, error)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
