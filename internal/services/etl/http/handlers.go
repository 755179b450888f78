// Package http serves the operator endpoints of the sync daemon
package http

import (
	"context"
	"net/http"
	"sort"
	"time"

	"moviesync/internal/core/version"
	phttp "moviesync/internal/platform/net/http"
	cpdom "moviesync/internal/services/checkpoint/domain"
	dlqdom "moviesync/internal/services/deadletter/domain"
	"moviesync/internal/services/etl/service"
)

// Pinger is satisfied by every backend the daemon talks to
type Pinger interface {
	Ping(context.Context) error
}

// Deps are the handler dependencies
type Deps struct {
	StartedAt  time.Time
	Status     func() service.Status
	Checkpoint cpdom.Store
	// DeadLetters is nil when the queue is disabled
	DeadLetters dlqdom.Queue
	// Checks are pinged by /readyz; a nil entry is reported as skipped
	Checks map[string]Pinger
}

type handlers struct {
	deps Deps
}

// Register mounts the ops routes
func Register(r phttp.Router, d Deps) {
	h := &handlers{deps: d}

	phttp.GetJSON(r, "/healthz", h.health)
	r.Get("/readyz", phttp.Handle(h.ready))
	phttp.GetJSON(r, "/status", h.status)
	phttp.GetJSON(r, "/version", h.version)
}

// HealthResponse is the liveness payload
type HealthResponse struct {
	OK      bool   `json:"ok"`
	Service string `json:"service"`
	Started string `json:"started"`
	Uptime  int64  `json:"uptime"`
}

// ReadyCheck describes a single dependency check
type ReadyCheck struct {
	Name   string `json:"name"`
	Status string `json:"status"` // ok fail skipped
	Error  string `json:"error,omitempty"`
}

// ReadyResponse summarizes readiness
type ReadyResponse struct {
	Status string       `json:"status"` // ok fail
	Checks []ReadyCheck `json:"checks"`
	Now    string       `json:"now"`
}

// CheckpointView is the checkpoint as operators read it
type CheckpointView struct {
	Cursor     string `json:"cursor"`
	Locked     bool   `json:"locked"`
	Owner      string `json:"owner,omitempty"`
	LeaseUntil string `json:"lease_until,omitempty"`
	Error      string `json:"error,omitempty"`
}

// StatusResponse is the loop state plus the durable records it drives
type StatusResponse struct {
	Loop        service.Status `json:"loop"`
	Checkpoint  CheckpointView `json:"checkpoint"`
	DeadLetters *int64         `json:"dead_letters,omitempty"`
}

func (h *handlers) health(_ *http.Request) (any, error) {
	return HealthResponse{
		OK:      true,
		Service: version.Service,
		Started: h.deps.StartedAt.UTC().Format(time.RFC3339),
		Uptime:  int64(time.Since(h.deps.StartedAt) / time.Second),
	}, nil
}

func (h *handlers) ready(r *http.Request) phttp.Response {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.deps.Checks))
	for name := range h.deps.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	out := ReadyResponse{Status: "ok", Checks: make([]ReadyCheck, 0, len(names))}
	for _, name := range names {
		c := ReadyCheck{Name: name, Status: "ok"}
		if p := h.deps.Checks[name]; p == nil {
			c.Status = "skipped"
		} else if err := p.Ping(ctx); err != nil {
			c.Status, c.Error = "fail", err.Error()
			out.Status = "fail"
		}
		out.Checks = append(out.Checks, c)
	}
	out.Now = time.Now().UTC().Format(time.RFC3339)

	if out.Status != "ok" {
		return phttp.Response{Status: http.StatusServiceUnavailable, Body: out}
	}
	return phttp.OK(out)
}

func (h *handlers) status(r *http.Request) (any, error) {
	ctx := r.Context()
	var out StatusResponse
	if h.deps.Status != nil {
		out.Loop = h.deps.Status()
	}

	if h.deps.Checkpoint != nil {
		cp, err := h.deps.Checkpoint.Get(ctx)
		if err != nil {
			out.Checkpoint.Error = err.Error()
		} else {
			out.Checkpoint = viewOf(cp)
		}
	}

	if h.deps.DeadLetters != nil {
		if n, err := h.deps.DeadLetters.Len(ctx); err == nil {
			out.DeadLetters = &n
		}
	}
	return out, nil
}

func (h *handlers) version(_ *http.Request) (any, error) {
	return version.Info(), nil
}

func viewOf(cp cpdom.Checkpoint) CheckpointView {
	v := CheckpointView{Cursor: cpdom.FormatCursor(cp.Cursor), Locked: cp.Locked, Owner: cp.Owner}
	if !cp.LeaseUntil.IsZero() {
		v.LeaseUntil = cp.LeaseUntil.UTC().Format(time.RFC3339)
	}
	return v
}
