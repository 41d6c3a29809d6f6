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

package rest

import (
	"errors"
	"fmt"
	"time"

	"github.com/buffbot/spawner"
	"golang.org/x/net/context"
)

const defaultRetry = 250 * time.Millisecond

// Publisher stores session parameters in a remote registry.  Connection
// failures and server errors are retried until the context expires, since
// the registry is often still coming up alongside the coordinator.  A
// request the server rejects as bad is not retried.
type Publisher struct {
	Client    *Client
	Namespace string
	Retry     time.Duration
}

func (p *Publisher) Publish(ctx context.Context, name string, payload *string) error {
	ns := p.Namespace
	if ns == "" {
		ns = spawner.DefaultNamespace
	}
	retry := p.Retry
	if retry <= 0 {
		retry = defaultRetry
	}
	params := spawner.SessionParams(name, payload)
	for {
		e := p.Client.SetParams(ctx, ns, params)
		if e == nil {
			return nil
		}
		var re *Error
		if errors.As(e, &re) && re.Code < 500 {
			return e
		}
		t := time.NewTimer(retry)
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("%v (last error: %w)", ctx.Err(), e)
		case <-t.C:
		}
	}
}
