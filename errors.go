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
	"errors"
)

var (
	ErrCoordinatorStart = errors.New("Failed to start coordinator")
	ErrPublish          = errors.New("Failed to publish parameters")
	ErrInterrupted      = errors.New("Session interrupted")
	ErrLoop             = errors.New("Supervisor loop failed")
	ErrSpecMismatch     = errors.New("Command and respawn lists differ in length")
	ErrEmptyCommand     = errors.New("Empty command")
	ErrRateLimited      = errors.New("Respawning too quickly")
	ErrSessionUsed      = errors.New("Session already run")
	ErrNoWorker         = errors.New("No worker at index")
)
