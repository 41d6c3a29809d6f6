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
	"github.com/gdamore/tcell/v2"
)

// page collects the lines of the content area, dropping any that would
// not fit.
type page struct {
	rows   int
	lines  []string
	styles []tcell.Style
}

func (p *page) add(line string, style tcell.Style) {
	if len(p.lines) >= p.rows {
		return
	}
	p.lines = append(p.lines, line)
	p.styles = append(p.styles, style)
}

// puts writes text at (x, y), one cell per rune, clipped to the screen.
func puts(s tcell.Screen, x, y int, text string, style tcell.Style) {
	w, _ := s.Size()
	for _, r := range text {
		if x >= w {
			return
		}
		s.SetContent(x, y, r, nil, style)
		x++
	}
}

func fill(s tcell.Screen, y, w int, style tcell.Style) {
	for x := 0; x < w; x++ {
		s.SetContent(x, y, ' ', nil, style)
	}
}

func center(s tcell.Screen, y, w int, text string, style tcell.Style) {
	x := (w - len([]rune(text))) / 2
	if x < 0 {
		x = 0
	}
	puts(s, x, y, text, style)
}
