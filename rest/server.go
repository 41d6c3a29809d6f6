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
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/buffbot/spawner"
	"github.com/gorilla/mux"
)

const maxParamsBody = 4 << 20

// Handler wraps a Session and a Registry, adding http.Handler
// functionality.  Either may be nil, in which case its routes answer 404.
type Handler struct {
	s   *spawner.Session
	reg *spawner.Registry
	r   *mux.Router
}

func (h *Handler) writeJson(w http.ResponseWriter, v interface{}, etag string) {
	b, e := json.Marshal(v)
	if e != nil {
		http.Error(w, e.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", mimeJson)
	if etag != "" {
		w.Header().Set("Etag", etag)
	}
	w.Write(b)
}

func (h *Handler) writeError(w http.ResponseWriter, code int, msg string) {
	b, _ := json.Marshal(&Error{Code: code, Message: msg})
	w.Header().Set("Content-Type", mimeJson)
	w.WriteHeader(code)
	w.Write(b)
}

// longPoll waits, when the request asks for it, until watch reports a
// value different from the Etag in PollEtagHeader.
func longPoll(r *http.Request, watch func(context.Context, int64, time.Duration) int64) {
	old, e := strconv.ParseInt(r.Header.Get(PollEtagHeader), 10, 64)
	if e != nil {
		return
	}
	secs, _ := strconv.Atoi(r.Header.Get(PollTimeHeader))
	if secs > maxPollSecs {
		secs = maxPollSecs
	}
	if secs <= 0 {
		return
	}
	watch(r.Context(), old, time.Duration(secs)*time.Second)
}

// notModified answers 304 if the client already holds etag.
func notModified(w http.ResponseWriter, r *http.Request, etag string) bool {
	if r.Header.Get("If-None-Match") == etag {
		w.Header().Set("Etag", etag)
		w.WriteHeader(http.StatusNotModified)
		return true
	}
	return false
}

func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) (*spawner.Snapshot, string, bool) {
	if h.s == nil {
		h.writeError(w, http.StatusNotFound, "No session")
		return nil, "", false
	}
	longPoll(r, h.s.Board().Watch)
	snap := h.s.Snapshot()
	etag := strconv.FormatInt(snap.Serial, 10)
	if notModified(w, r, etag) {
		return nil, "", false
	}
	return &snap, etag, true
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	if snap, etag, ok := h.snapshot(w, r); ok {
		h.writeJson(w, snap, etag)
	}
}

func (h *Handler) listWorkers(w http.ResponseWriter, r *http.Request) {
	if snap, etag, ok := h.snapshot(w, r); ok {
		h.writeJson(w, snap.Workers, etag)
	}
}

func (h *Handler) getWorker(w http.ResponseWriter, r *http.Request) {
	index, e := strconv.Atoi(mux.Vars(r)["index"])
	if e != nil {
		h.writeError(w, http.StatusBadRequest, "Bad worker index")
		return
	}
	snap, etag, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	for i := range snap.Workers {
		if snap.Workers[i].Index == index {
			h.writeJson(w, &snap.Workers[i], etag)
			return
		}
	}
	h.writeError(w, http.StatusNotFound, "Worker not found")
}

func (h *Handler) getLog(w http.ResponseWriter, r *http.Request) {
	if h.s == nil {
		h.writeError(w, http.StatusNotFound, "No session")
		return
	}
	l := h.s.Log()
	longPoll(r, l.Watch)
	recs, id := l.Records(0)
	etag := strconv.FormatInt(id, 10)
	if notModified(w, r, etag) {
		return
	}
	if recs == nil {
		recs = []spawner.LogRecord{}
	}
	h.writeJson(w, recs, etag)
}

func (h *Handler) registry(w http.ResponseWriter) bool {
	if h.reg == nil {
		h.writeError(w, http.StatusNotFound, "No registry")
		return false
	}
	return true
}

func (h *Handler) listNamespaces(w http.ResponseWriter, r *http.Request) {
	if h.registry(w) {
		h.writeJson(w, h.reg.Namespaces(), "")
	}
}

func (h *Handler) getParams(w http.ResponseWriter, r *http.Request) {
	if !h.registry(w) {
		return
	}
	if params, found := h.reg.Get(mux.Vars(r)["namespace"]); !found {
		h.writeError(w, http.StatusNotFound, "Namespace not found")
	} else {
		h.writeJson(w, params, "")
	}
}

func (h *Handler) putParams(w http.ResponseWriter, r *http.Request) {
	if !h.registry(w) {
		return
	}
	params := map[string]string{}
	body := io.LimitReader(r.Body, maxParamsBody)
	if e := json.NewDecoder(body).Decode(&params); e != nil {
		h.writeError(w, http.StatusBadRequest, "Bad parameters: "+e.Error())
		return
	}
	h.reg.Set(mux.Vars(r)["namespace"], params)
	h.writeJson(w, ok, "")
}

func (h *Handler) deleteParams(w http.ResponseWriter, r *http.Request) {
	if !h.registry(w) {
		return
	}
	if !h.reg.Delete(mux.Vars(r)["namespace"]) {
		h.writeError(w, http.StatusNotFound, "Namespace not found")
		return
	}
	h.writeJson(w, ok, "")
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	h.r.ServeHTTP(w, req)
}

func NewHandler(s *spawner.Session, reg *spawner.Registry) *Handler {
	r := mux.NewRouter()
	h := &Handler{s: s, reg: reg, r: r}
	r.HandleFunc("/session", h.getSession).Methods("GET")
	r.HandleFunc("/workers", h.listWorkers).Methods("GET")
	r.HandleFunc("/workers/{index}", h.getWorker).Methods("GET")
	r.HandleFunc("/log", h.getLog).Methods("GET")
	r.HandleFunc("/params", h.listNamespaces).Methods("GET")
	r.HandleFunc("/params/{namespace:.+}", h.getParams).Methods("GET")
	r.HandleFunc("/params/{namespace:.+}", h.putParams).Methods("PUT")
	r.HandleFunc("/params/{namespace:.+}", h.deleteParams).Methods("DELETE")
	return h
}
