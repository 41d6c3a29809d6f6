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

package spawner

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MaxLogRecords is the default capacity of a Log.
const MaxLogRecords = 1000

// LogRecord is one line of session output.
type LogRecord struct {
	Id   int64     `json:"id,string"`
	Time time.Time `json:"time"`
	Text string    `json:"text"`
}

// Log keeps the most recent lines written to it.  It is an io.Writer, so a
// log.Logger can write into it.  Every write advances an id, which readers
// use as an Etag to detect (or wait for) changes.
type Log struct {
	records []LogRecord
	next    int // total lines ever written
	id      int64
	changed chan struct{}
	mx      sync.Mutex
}

// NewLog returns a Log holding up to max lines; max <= 0 selects
// MaxLogRecords.
func NewLog(max int) *Log {
	if max <= 0 {
		max = MaxLogRecords
	}
	return &Log{
		records: make([]LogRecord, max),
		// Seed ids from the clock so a restarted daemon never repeats
		// an Etag a client may still hold.
		id:      time.Now().UnixNano(),
		changed: make(chan struct{}),
	}
}

// Write implements io.Writer.  Input is split into lines.
func (l *Log) Write(b []byte) (int, error) {
	str := strings.TrimRight(string(b), "\n")
	now := time.Now()
	l.mx.Lock()
	for _, line := range strings.Split(str, "\n") {
		l.id++
		l.records[l.next%len(l.records)] = LogRecord{
			Id:   l.id,
			Time: now,
			Text: line,
		}
		l.next++
	}
	close(l.changed)
	l.changed = make(chan struct{})
	l.mx.Unlock()
	return len(b), nil
}

// Clear discards all records.
func (l *Log) Clear() {
	l.mx.Lock()
	l.next = 0
	l.id = time.Now().UnixNano()
	close(l.changed)
	l.changed = make(chan struct{})
	l.mx.Unlock()
}

// Records returns the retained records, oldest first, and the current id.
// If last equals the current id, nothing changed and nil is returned.
func (l *Log) Records(last int64) ([]LogRecord, int64) {
	l.mx.Lock()
	defer l.mx.Unlock()
	if l.id == last {
		return nil, last
	}
	cnt := l.next
	if cnt > len(l.records) {
		cnt = len(l.records)
	}
	recs := make([]LogRecord, 0, cnt)
	for i := l.next - cnt; i < l.next; i++ {
		recs = append(recs, l.records[i%len(l.records)])
	}
	return recs, l.id
}

// Watch waits until the id differs from last, the expiry passes, or ctx is
// done, and returns the id at that point.  An expiry of zero polls.
func (l *Log) Watch(ctx context.Context, last int64, expire time.Duration) int64 {
	var timeout <-chan time.Time
	if expire > 0 {
		t := time.NewTimer(expire)
		defer t.Stop()
		timeout = t.C
	}
	for {
		l.mx.Lock()
		id, ch := l.id, l.changed
		l.mx.Unlock()
		if id != last || expire <= 0 {
			return id
		}
		select {
		case <-ch:
		case <-timeout:
			return id
		case <-ctx.Done():
			return id
		}
	}
}
