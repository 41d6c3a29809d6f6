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

// Package spawner supervises a robot's processes: one coordinator (the
// "core") and the worker nodes that depend on it.
//
// A Session starts the coordinator, publishes the session's parameters to
// a registry the workers can read, and then launches every command of its
// LaunchSpec.  While the coordinator lives, workers that fail (exit with a
// non-zero status) and are marked for respawn are started again; the rest
// stay down.  When the coordinator exits, the context is cancelled, or the
// supervisor itself runs into an error, the session drains: every worker
// and then the coordinator are asked to terminate, stragglers are killed
// after a grace period, and only then does Session.Run return.
//
// Processes are watched by polling, never by blocking waits, on a short
// interval; the supervisor is therefore always responsive to cancellation.
//
// The rest package exposes a running session (and a parameter registry)
// over HTTP, and the ui package renders it on a terminal.
package spawner
