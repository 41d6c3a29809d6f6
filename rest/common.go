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

// Package rest exposes a spawner session, and the parameter registry its
// workers read, over HTTP.  The Handler is the server side; Client talks
// to it.
//
// Reads support conditional requests: every response carries an Etag, and
// a request with If-None-Match set to the current Etag gets 304.  Adding
// the poll headers turns such a request into a long poll that waits for
// the Etag to change.
package rest

import (
	"fmt"
)

const (
	mimeJson = "application/json; charset=UTF-8"

	// PollEtagHeader carries the Etag a long poll waits to see change.
	PollEtagHeader = "X-Spawner-Poll-Etag"
	// PollTimeHeader is how many seconds a long poll may wait.
	PollTimeHeader = "X-Spawner-Poll-Time"

	maxPollSecs = 300
)

var ok struct{}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d: %s", e.Code, e.Message)
}
