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
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/buffbot/spawner"
)

var (
	StyleNormal = tcell.StyleDefault.
			Foreground(tcell.ColorSilver).
			Background(tcell.ColorBlack)
	StyleGood = tcell.StyleDefault.
			Foreground(tcell.ColorGreen).
			Background(tcell.ColorBlack)
	StyleWarn = tcell.StyleDefault.
			Foreground(tcell.ColorYellow).
			Background(tcell.ColorBlack)
	StyleError = tcell.StyleDefault.
			Foreground(tcell.ColorMaroon).
			Background(tcell.ColorBlack)
	StyleTitle = tcell.StyleDefault.
			Foreground(tcell.ColorBlack).
			Background(tcell.ColorTeal)
	StyleKeys = tcell.StyleDefault.
			Foreground(tcell.ColorBlack).
			Background(tcell.ColorSilver)
)

func FormatDuration(d time.Duration) string {

	sec := int((d % time.Minute) / time.Second)
	min := int((d % time.Hour) / time.Minute)
	hour := int(d / time.Hour)

	return fmt.Sprintf("%d:%02d:%02d", hour, min, sec)
}

func formatCode(code *int) string {
	if code == nil {
		return "-"
	}
	return strconv.Itoa(*code)
}

// uptime is how long ago since was, to the second, or "-" if unknown.
func uptime(since time.Time) string {
	if since.IsZero() {
		return "-"
	}
	d := time.Since(since)
	d -= d % time.Second
	return FormatDuration(d)
}

func workerStyle(w *spawner.WorkerInfo) tcell.Style {
	switch w.Status {
	case spawner.StatusRunning:
		return StyleGood
	case spawner.StatusStopping:
		return StyleWarn
	case spawner.StatusFailed:
		return StyleError
	}
	return StyleNormal
}

func workerLine(w *spawner.WorkerInfo) string {
	return fmt.Sprintf("%3d  %-8s %7d %6d %5s %10s   %s",
		w.Index, w.Status, w.Pid, w.Starts, formatCode(w.ExitCode),
		uptime(w.Since), strings.Join(w.Command, " "))
}

const workerHeader = "IDX  STATUS       PID STARTS  EXIT     UPTIME   COMMAND"

func coordinatorLine(c *spawner.CoordinatorInfo) (string, tcell.Style) {
	if c == nil {
		return "Core: not started", StyleNormal
	}
	if c.Running {
		return fmt.Sprintf("Core: pid %d, up %s", c.Pid, uptime(c.Since)), StyleGood
	}
	return fmt.Sprintf("Core: pid %d, exited %s", c.Pid, formatCode(c.ExitCode)), StyleWarn
}

// summary is the status bar text and style for a snapshot.
func summary(snap *spawner.Snapshot) (string, tcell.Style) {
	nrunning, nfailed := 0, 0
	for i := range snap.Workers {
		switch snap.Workers[i].Status {
		case spawner.StatusRunning, spawner.StatusStopping:
			nrunning++
		case spawner.StatusFailed:
			nfailed++
		}
	}
	text := fmt.Sprintf("%6d Workers %6d Running %6d Failed",
		len(snap.Workers), nrunning, nfailed)
	if snap.Error != "" {
		text += "   " + snap.Error
	}
	switch {
	case snap.Cause == spawner.CauseError ||
		snap.Cause == spawner.CauseCoordinatorStart ||
		snap.Cause == spawner.CausePublish:
		return text, StyleError
	case snap.State != spawner.StateRunning || nfailed > 0:
		return text, StyleWarn
	}
	return text, StyleGood
}
