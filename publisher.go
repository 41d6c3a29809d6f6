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
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const (
	// DefaultNamespace is where session parameters are published.
	DefaultNamespace = "/buffbot"

	ParamRobotName   = "robot-name"
	ParamDescription = "description"

	// DefaultDescriptorTimeout bounds a descriptor command run.
	DefaultDescriptorTimeout = 30 * time.Second
)

// Publisher makes the session's metadata visible to its workers.  The
// payload is optional.
type Publisher interface {
	Publish(ctx context.Context, name string, payload *string) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, name string, payload *string) error

func (f PublisherFunc) Publish(ctx context.Context, name string, payload *string) error {
	return f(ctx, name, payload)
}

// SessionParams returns the parameter set published for a session.
func SessionParams(name string, payload *string) map[string]string {
	params := map[string]string{ParamRobotName: name}
	if payload != nil {
		params[ParamDescription] = *payload
	}
	return params
}

// RegistryPublisher publishes into a Registry in this process.
type RegistryPublisher struct {
	Registry  *Registry
	Namespace string
}

func (p *RegistryPublisher) Publish(ctx context.Context, name string, payload *string) error {
	if e := ctx.Err(); e != nil {
		return e
	}
	ns := p.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}
	p.Registry.Set(ns, SessionParams(name, payload))
	return nil
}

// RenderDescriptor runs argv and returns what it printed, stdout and stderr
// combined.  The command is killed if it outlives timeout.
func RenderDescriptor(ctx context.Context, argv []string, timeout time.Duration) (string, error) {
	if len(argv) == 0 || argv[0] == "" {
		return "", ErrEmptyCommand
	}
	if timeout <= 0 {
		timeout = DefaultDescriptorTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	out, e := cmd.CombinedOutput()
	if e != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("descriptor %s timed out after %v",
				argv[0], timeout)
		}
		msg := strings.TrimSpace(string(out))
		if msg != "" {
			return "", fmt.Errorf("descriptor %s: %v: %s", argv[0], e, msg)
		}
		return "", fmt.Errorf("descriptor %s: %w", argv[0], e)
	}
	return string(out), nil
}
