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
	"io"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/spf13/cobra"
	"golang.org/x/net/context"

	"github.com/buffbot/spawner"
	"github.com/buffbot/spawner/rest"
	"github.com/buffbot/spawner/ui"
)

func code(c *int) string {
	if c == nil {
		return "-"
	}
	return strconv.Itoa(*c)
}

func showWorker(w io.Writer, info *spawner.WorkerInfo) {
	d := time.Since(info.Since)
	// for printing second resolution is sufficient
	d -= d % time.Second
	fmt.Fprintf(w, "%3d %-8s %7d %6d %5s %10s  %s\n", info.Index,
		info.Status, info.Pid, info.Starts, code(info.ExitCode),
		d.String(), strings.Join(info.Command, " "))
}

func showStatus(w io.Writer, snap *spawner.Snapshot) {
	fmt.Fprintf(w, "Session:   %s\n", snap.ID)
	fmt.Fprintf(w, "Name:      %s\n", snap.Name)
	fmt.Fprintf(w, "State:     %s\n", snap.State)
	if snap.Cause != spawner.CauseNone {
		fmt.Fprintf(w, "Cause:     %s\n", snap.Cause)
	}
	if snap.Error != "" {
		fmt.Fprintf(w, "Error:     %s\n", snap.Error)
	}
	if c := snap.Coordinator; c != nil {
		if c.Running {
			fmt.Fprintf(w, "Core:      pid %d, running\n", c.Pid)
		} else {
			fmt.Fprintf(w, "Core:      pid %d, exited %s\n", c.Pid, code(c.ExitCode))
		}
	}
	fmt.Fprintf(w, "Workers:   %d (%d live)\n", len(snap.Workers), snap.Live())
	for i := range snap.Workers {
		showWorker(w, &snap.Workers[i])
	}
}

func showWorkerInfo(w io.Writer, info *spawner.WorkerInfo) {
	fmt.Fprintf(w, "Index:     %d\n", info.Index)
	fmt.Fprintf(w, "Command:   %s\n", strings.Join(info.Command, " "))
	fmt.Fprintf(w, "Respawn:   %v\n", info.Respawn)
	fmt.Fprintf(w, "Status:    %s\n", info.Status)
	fmt.Fprintf(w, "Pid:       %d\n", info.Pid)
	fmt.Fprintf(w, "Starts:    %d\n", info.Starts)
	fmt.Fprintf(w, "Exit:      %s\n", code(info.ExitCode))
	fmt.Fprintf(w, "Since:     %v\n", info.Since.Format(time.RFC3339))
}

func showRecords(w io.Writer, recs []spawner.LogRecord, after int64) int64 {
	for _, r := range recs {
		if r.Id <= after {
			continue
		}
		fmt.Fprintf(w, "%s %s\n", r.Time.Format("2006/01/02 15:04:05"), r.Text)
		after = r.Id
	}
	return after
}

// parseParams turns key=value arguments into a parameter set.
func parseParams(args []string) (map[string]string, error) {
	params := make(map[string]string, len(args))
	for _, a := range args {
		kv := strings.SplitN(a, "=", 2)
		if len(kv) != 2 || kv[0] == "" {
			return nil, fmt.Errorf("bad parameter %q, want key=value", a)
		}
		params[kv[0]] = kv[1]
	}
	return params, nil
}

func newStatusCmd(client clientFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the session and its workers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := client()
			if err != nil {
				return err
			}
			snap, err := c.Session()
			if err != nil {
				return err
			}
			showStatus(cmd.OutOrStdout(), snap)
			return nil
		},
	}
}

func newWorkersCmd(client clientFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "workers [<index>]",
		Short: "Show all workers, or one in detail",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := client()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(args) == 1 {
				index, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("bad worker index %q", args[0])
				}
				info, err := c.Worker(index)
				if err != nil {
					return err
				}
				showWorkerInfo(out, info)
				return nil
			}
			infos, err := c.Workers()
			if err != nil {
				return err
			}
			for i := range infos {
				showWorker(out, &infos[i])
			}
			return nil
		},
	}
}

func newLogCmd(client clientFunc) *cobra.Command {
	var follow bool
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Print the session log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := client()
			if err != nil {
				return err
			}
			info, err := c.GetLog()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			last := showRecords(out, info.Records, 0)
			if !follow {
				return nil
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			for {
				info, err = c.WatchLog(ctx, info)
				if ctx.Err() != nil {
					return nil
				}
				if err != nil {
					return err
				}
				last = showRecords(out, info.Records, last)
			}
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep printing new records")
	return cmd
}

func newParamsCmd(client clientFunc) *cobra.Command {
	params := &cobra.Command{
		Use:   "params",
		Short: "Inspect and change the parameter registry",
	}
	run := func(fn func(ctx context.Context, c *rest.Client, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			c, _, err := client()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			return fn(ctx, c, cmd, args)
		}
	}
	params.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List namespaces",
			Args:  cobra.NoArgs,
			RunE: run(func(ctx context.Context, c *rest.Client, cmd *cobra.Command, args []string) error {
				names, err := c.Namespaces(ctx)
				if err != nil {
					return err
				}
				for _, n := range names {
					fmt.Fprintln(cmd.OutOrStdout(), n)
				}
				return nil
			}),
		},
		&cobra.Command{
			Use:   "get <namespace>",
			Short: "Print the parameters of a namespace",
			Args:  cobra.ExactArgs(1),
			RunE: run(func(ctx context.Context, c *rest.Client, cmd *cobra.Command, args []string) error {
				p, err := c.GetParams(ctx, args[0])
				if err != nil {
					return err
				}
				keys := make([]string, 0, len(p))
				for k := range p {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", k, p[k])
				}
				return nil
			}),
		},
		&cobra.Command{
			Use:   "set <namespace> <key=value>...",
			Short: "Replace the parameters of a namespace",
			Args:  cobra.MinimumNArgs(1),
			RunE: run(func(ctx context.Context, c *rest.Client, cmd *cobra.Command, args []string) error {
				p, err := parseParams(args[1:])
				if err != nil {
					return err
				}
				return c.SetParams(ctx, args[0], p)
			}),
		},
		&cobra.Command{
			Use:   "delete <namespace>",
			Short: "Remove a namespace",
			Args:  cobra.ExactArgs(1),
			RunE: run(func(ctx context.Context, c *rest.Client, cmd *cobra.Command, args []string) error {
				return c.DeleteParams(ctx, args[0])
			}),
		},
	)
	return params
}

func newUICmd(client clientFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "ui",
		Short: "Full screen status display",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, url, err := client()
			if err != nil {
				return err
			}
			screen, err := tcell.NewScreen()
			if err != nil {
				return err
			}
			return ui.NewApp(screen, c, url).Run(cmd.Context())
		},
	}
}
