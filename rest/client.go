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
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/buffbot/spawner"
	"golang.org/x/net/context"
)

type LogInfo struct {
	etag    string
	Records []spawner.LogRecord
}

type Client struct {
	user      string // HTTP Basic-Auth
	pass      string
	base      string // URI to root of tree on server
	auth      bool
	client    *http.Client
	transport *http.Transport

	// Cached data
	snap *spawner.Snapshot
	log  *LogInfo
	lock sync.Mutex
}

func (c *Client) SetAuth(user string, pass string) {
	c.user = user
	c.pass = pass
	c.auth = true
}

func (c *Client) paramsURL(ns string) string {
	ns = strings.TrimPrefix(spawner.CleanNamespace(ns), "/")
	return c.base + "/params/" + ns
}

func (c *Client) request(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, e := http.NewRequestWithContext(ctx, method, url, body)
	if e != nil {
		return nil, e
	}
	if c.auth {
		req.SetBasicAuth(c.user, c.pass)
	}
	return req, nil
}

func statusError(res *http.Response) error {
	v := &Error{}
	if b, e := io.ReadAll(res.Body); e == nil && json.Unmarshal(b, v) == nil && v.Message != "" {
		return v
	}
	return &Error{Code: res.StatusCode, Message: res.Status}
}

// poll issues an HTTP GET against the URL, optionally checking for a cache,
// including optionally issuing a long poll that tries to wait until the
// value changes.  The return values are the new Etag and any error.  If the
// value did not change, then the returned etag will be "", but the error will
// be nil.
func (c *Client) poll(ctx context.Context, url string, etag string, wait int, v interface{}) (string, error) {

	req, e := c.request(ctx, "GET", url, nil)
	if e != nil {
		return "", e
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
		if wait > 0 {
			req.Header.Set(PollEtagHeader, etag)
			req.Header.Set(PollTimeHeader, strconv.Itoa(wait))
		}
	}
	res, e := c.client.Do(req)
	if e != nil {
		return "", e
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotModified {
		return "", nil
	}
	if res.StatusCode != http.StatusOK {
		return "", statusError(res)
	}
	body, e := io.ReadAll(res.Body)
	if e != nil {
		return "", e
	}
	if e := json.Unmarshal(body, v); e != nil {
		return "", e
	}
	return res.Header.Get("Etag"), nil
}

func (c *Client) send(ctx context.Context, method, url string, v interface{}) error {
	var body io.Reader
	if v != nil {
		b, e := json.Marshal(v)
		if e != nil {
			return e
		}
		body = bytes.NewReader(b)
	}
	req, e := c.request(ctx, method, url, body)
	if e != nil {
		return e
	}
	if v != nil {
		req.Header.Set("Content-Type", mimeJson)
	}
	res, e := c.client.Do(req)
	if e != nil {
		return e
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return statusError(res)
	}
	return nil
}

func (c *Client) pollSession(ctx context.Context, secs int, last *spawner.Snapshot) (*spawner.Snapshot, error) {

	c.lock.Lock()
	cached := c.snap
	c.lock.Unlock()

	otag := ""
	if last == nil {
		secs = 0
	} else if cached != nil && cached.Serial != last.Serial {
		// The cache already moved past what the caller has seen.
		return cached, nil
	} else {
		otag = strconv.FormatInt(last.Serial, 10)
	}

	v := &spawner.Snapshot{}
	etag, e := c.poll(ctx, c.base+"/session", otag, secs, v)
	if e != nil {
		return nil, e
	}
	if etag == "" {
		if cached == nil {
			return last, nil
		}
		return cached, nil
	}
	c.lock.Lock()
	c.snap = v
	c.lock.Unlock()
	return v, nil
}

// Session returns the current snapshot of the session.
func (c *Client) Session() (*spawner.Snapshot, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.pollSession(ctx, 0, nil)
}

// WatchSession waits for the session to change from last, and returns
// the new snapshot.  If nothing changed within the poll window, last
// (or the cached equivalent) comes back.
func (c *Client) WatchSession(ctx context.Context, last *spawner.Snapshot) (*spawner.Snapshot, error) {
	return c.pollSession(ctx, maxPollSecs, last)
}

func (c *Client) Workers() ([]spawner.WorkerInfo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	v := []spawner.WorkerInfo{}
	if _, e := c.poll(ctx, c.base+"/workers", "", 0, &v); e != nil {
		return nil, e
	}
	return v, nil
}

func (c *Client) Worker(index int) (*spawner.WorkerInfo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	v := &spawner.WorkerInfo{}
	if _, e := c.poll(ctx, c.base+"/workers/"+strconv.Itoa(index), "", 0, v); e != nil {
		return nil, e
	}
	return v, nil
}

func (c *Client) pollLog(ctx context.Context, secs int, last *LogInfo) (*LogInfo, error) {

	c.lock.Lock()
	cached := c.log
	c.lock.Unlock()

	otag := ""
	if last == nil {
		secs = 0
	} else if cached != nil && cached.etag != last.etag {
		return cached, nil
	} else {
		otag = last.etag
	}

	v := &LogInfo{}
	etag, e := c.poll(ctx, c.base+"/log", otag, secs, &v.Records)
	if e != nil {
		c.lock.Lock()
		c.log = nil
		c.lock.Unlock()
		return nil, e
	}
	if etag == "" {
		if cached == nil {
			return last, nil
		}
		return cached, nil
	}
	v.etag = etag
	c.lock.Lock()
	c.log = v
	c.lock.Unlock()
	return v, nil
}

func (c *Client) GetLog() (*LogInfo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.pollLog(ctx, 0, nil)
}

func (c *Client) WatchLog(ctx context.Context, last *LogInfo) (*LogInfo, error) {
	// Let the poll wait for up to 300 secs (5 minutes).
	return c.pollLog(ctx, maxPollSecs, last)
}

// Namespaces lists the parameter namespaces held by the registry.
func (c *Client) Namespaces(ctx context.Context) ([]string, error) {
	v := []string{}
	if _, e := c.poll(ctx, c.base+"/params", "", 0, &v); e != nil {
		return nil, e
	}
	return v, nil
}

func (c *Client) GetParams(ctx context.Context, ns string) (map[string]string, error) {
	v := map[string]string{}
	if _, e := c.poll(ctx, c.paramsURL(ns), "", 0, &v); e != nil {
		return nil, e
	}
	return v, nil
}

// SetParams replaces the whole namespace with params.
func (c *Client) SetParams(ctx context.Context, ns string, params map[string]string) error {
	return c.send(ctx, "PUT", c.paramsURL(ns), params)
}

func (c *Client) DeleteParams(ctx context.Context, ns string) error {
	return c.send(ctx, "DELETE", c.paramsURL(ns), nil)
}

// NewClient returns a Client handle.  The transport maybe nil to use
// a default transport, but it may also be adjusted to support additional
// options such as TLS.  baseURI is the base URL to use.
func NewClient(t *http.Transport, baseURI string) *Client {
	if t == nil {
		t = &http.Transport{}
	}
	return &Client{
		transport: t,
		base:      strings.TrimSuffix(baseURI, "/"),
		client:    &http.Client{Transport: t},
	}
}
