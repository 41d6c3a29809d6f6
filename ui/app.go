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

// Package ui is a terminal status screen for a running spawner session.
// It long-polls a Source and redraws whenever the session or its log
// changes.
package ui

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"golang.org/x/net/context"

	"github.com/buffbot/spawner"
	"github.com/buffbot/spawner/rest"
)

const retryDelay = 2 * time.Second

// Source supplies session state.  *rest.Client is the usual one.
type Source interface {
	Session() (*spawner.Snapshot, error)
	WatchSession(ctx context.Context, last *spawner.Snapshot) (*spawner.Snapshot, error)
	GetLog() (*rest.LogInfo, error)
	WatchLog(ctx context.Context, last *rest.LogInfo) (*rest.LogInfo, error)
}

type App struct {
	screen tcell.Screen
	src    Source
	title  string
	logger *log.Logger

	snap    *spawner.Snapshot
	err     error
	logInfo *rest.LogInfo
	logErr  error
	showLog bool
	lock    sync.Mutex
}

func (a *App) SetLogger(logger *log.Logger) {
	a.logger = logger
}

func (a *App) Logf(fmt string, v ...interface{}) {
	if a.logger != nil {
		a.logger.Printf(fmt, v...)
	}
}

func (a *App) GetAppName() string {
	return "Spawner"
}

// ShowLog switches between the worker table and the session log.
func (a *App) ShowLog(show bool) {
	a.lock.Lock()
	a.showLog = show
	a.lock.Unlock()
}

// HandleEvent reacts to a key, and reports whether the app should quit.
func (a *App) HandleEvent(ev *tcell.EventKey) bool {
	a.lock.Lock()
	showLog := a.showLog
	a.lock.Unlock()

	switch ev.Key() {
	case tcell.KeyCtrlC:
		return true
	case tcell.KeyCtrlL:
		a.screen.Sync()
	case tcell.KeyEsc:
		if showLog {
			a.ShowLog(false)
			return false
		}
		return true
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'Q', 'q':
			return true
		case 'L', 'l':
			a.ShowLog(!showLog)
		}
	}
	return false
}

// wake makes the event loop redraw.
func (a *App) wake() {
	a.screen.PostEvent(tcell.NewEventInterrupt(nil))
}

func (a *App) refresh(ctx context.Context) {
	snap, e := a.src.Session()
	for {
		a.lock.Lock()
		if snap != nil {
			a.snap = snap
		}
		a.err = e
		a.lock.Unlock()
		a.wake()

		if e != nil {
			a.Logf("Cannot load session: %v", e)
			select {
			case <-ctx.Done():
				return
			case <-time.After(retryDelay):
			}
			snap, e = a.src.Session()
			continue
		}
		snap, e = a.src.WatchSession(ctx, snap)
		if ctx.Err() != nil {
			return
		}
	}
}

func (a *App) refreshLog(ctx context.Context) {
	info, e := a.src.GetLog()
	for {
		a.lock.Lock()
		if info != nil {
			a.logInfo = info
		}
		a.logErr = e
		a.lock.Unlock()
		a.wake()

		if e != nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(retryDelay):
			}
			info, e = a.src.GetLog()
			continue
		}
		info, e = a.src.WatchLog(ctx, info)
		if ctx.Err() != nil {
			return
		}
	}
}

// Run takes over the screen until the user quits or ctx is done.
func (a *App) Run(ctx context.Context) error {
	if e := a.screen.Init(); e != nil {
		return e
	}
	defer a.screen.Fini()
	a.screen.SetStyle(StyleNormal)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.Logf("Starting user interface")
	go a.refresh(ctx)
	go a.refreshLog(ctx)
	go func() {
		<-ctx.Done()
		a.wake()
	}()

	a.Draw()
	for {
		ev := a.screen.PollEvent()
		if ev == nil || ctx.Err() != nil {
			return nil
		}
		switch ev := ev.(type) {
		case *tcell.EventResize:
			a.screen.Sync()
		case *tcell.EventKey:
			if a.HandleEvent(ev) {
				return nil
			}
		}
		a.Draw()
	}
}

// Draw renders the current state: a title bar, the content area, a
// status bar and a key bar.
func (a *App) Draw() {
	a.lock.Lock()
	snap, err := a.snap, a.err
	showLog := a.showLog
	logInfo, logErr := a.logInfo, a.logErr
	a.lock.Unlock()

	s := a.screen
	s.Clear()
	w, h := s.Size()
	if h < 4 {
		s.Show()
		return
	}

	title := a.GetAppName()
	if snap != nil {
		title = fmt.Sprintf("%s: %s (%s)", title, snap.Name, a.title)
	} else if a.title != "" {
		title = fmt.Sprintf("%s: %s", title, a.title)
	}
	fill(s, 0, w, StyleTitle)
	center(s, 0, w, title, StyleTitle)

	p := &page{rows: h - 3}
	var status string
	var sstyle tcell.Style
	keys := "[Q] Quit  [L] Log"

	switch {
	case showLog:
		keys = "[Q] Quit  [Esc] Workers"
		status, sstyle = a.logPage(p, logInfo, logErr)
	case snap == nil && err != nil:
		status, sstyle = fmt.Sprintf("Cannot load session: %v", err), StyleError
	case snap == nil:
		status, sstyle = "Connecting...", StyleNormal
	default:
		a.mainPage(p, snap)
		status, sstyle = summary(snap)
		if err != nil {
			status, sstyle = fmt.Sprintf("Connection lost: %v", err), StyleError
		}
	}
	for i, l := range p.lines {
		puts(s, 0, 1+i, l, p.styles[i])
	}
	fill(s, h-2, w, sstyle.Reverse(true))
	puts(s, 0, h-2, status, sstyle.Reverse(true))
	fill(s, h-1, w, StyleKeys)
	puts(s, 0, h-1, keys, StyleKeys)
	s.Show()
}

func (a *App) mainPage(p *page, snap *spawner.Snapshot) {
	p.add(fmt.Sprintf("Session %s  %s  cause: %s", snap.ID, snap.State, snap.Cause), StyleNormal)
	p.add(coordinatorLine(snap.Coordinator))
	p.add("", StyleNormal)
	p.add(workerHeader, StyleNormal.Bold(true))
	for i := range snap.Workers {
		w := &snap.Workers[i]
		p.add(workerLine(w), workerStyle(w))
	}
}

func (a *App) logPage(p *page, info *rest.LogInfo, err error) (string, tcell.Style) {
	if info == nil {
		if err != nil {
			return fmt.Sprintf("Cannot load log: %v", err), StyleError
		}
		return "Loading log...", StyleNormal
	}
	recs := info.Records
	if len(recs) > p.rows {
		recs = recs[len(recs)-p.rows:]
	}
	for _, r := range recs {
		p.add(r.Time.Format("15:04:05")+" "+r.Text, StyleNormal)
	}
	return fmt.Sprintf("%6d Log records", len(info.Records)), StyleNormal
}

func NewApp(screen tcell.Screen, src Source, title string) *App {
	return &App{
		screen: screen,
		src:    src,
		title:  title,
	}
}
