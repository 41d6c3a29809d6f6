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
	"sort"
	"strings"
	"sync"
	"time"
)

// Registry is a parameter store shared by the processes of a session.
// Each namespace holds a flat set of string parameters, replaced as a
// whole on every Set.
type Registry struct {
	params map[string]map[string]string
	serial int64
	lock   sync.Mutex
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		params: make(map[string]map[string]string),
		serial: time.Now().UnixNano(),
	}
}

// CleanNamespace normalizes a namespace to a single leading slash and no
// trailing slash.  The root namespace is "/".
func CleanNamespace(ns string) string {
	ns = strings.Trim(ns, "/")
	return "/" + ns
}

// Set replaces the parameters of a namespace.
func (r *Registry) Set(ns string, params map[string]string) {
	cp := make(map[string]string, len(params))
	for k, v := range params {
		cp[k] = v
	}
	ns = CleanNamespace(ns)
	r.lock.Lock()
	r.params[ns] = cp
	r.serial++
	r.lock.Unlock()
}

// Get returns a copy of a namespace's parameters.
func (r *Registry) Get(ns string) (map[string]string, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	params, ok := r.params[CleanNamespace(ns)]
	if !ok {
		return nil, false
	}
	cp := make(map[string]string, len(params))
	for k, v := range params {
		cp[k] = v
	}
	return cp, true
}

// Delete removes a namespace.  It reports whether it existed.
func (r *Registry) Delete(ns string) bool {
	ns = CleanNamespace(ns)
	r.lock.Lock()
	defer r.lock.Unlock()
	if _, ok := r.params[ns]; !ok {
		return false
	}
	delete(r.params, ns)
	r.serial++
	return true
}

// Namespaces returns the populated namespaces, sorted.
func (r *Registry) Namespaces() []string {
	r.lock.Lock()
	rv := make([]string, 0, len(r.params))
	for ns := range r.params {
		rv = append(rv, ns)
	}
	r.lock.Unlock()
	sort.Strings(rv)
	return rv
}

// Serial changes whenever any namespace changes.
func (r *Registry) Serial() int64 {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.serial
}
