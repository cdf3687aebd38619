// Copyright (c) 2026 Commonwealth Scientific and Industrial Research Organisation (CSIRO). All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package aitool

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"
)

const (
	jsonContentType = "application/json"

	// maxBodyBytes bounds inbound request bodies.
	maxBodyBytes int64 = 1 << 20 // 1 MiB
)

// Server exposes a Registry of tools over HTTP. Routes per tool:
//
//	POST /{tool}        execute
//	GET  /{tool}        tool definition
//	GET  /{tool}/{job}  collect a deferred result
//
// plus POST / (JSON-RPC adapter), GET / (landing page) and GET /_healtz.
type Server struct {
	reg  *Registry
	exec *executor
	mux  *http.ServeMux

	logger      *slog.Logger
	serverID    string
	serviceName string
	version     string
}

// NewServer creates an HTTP server for the given registry.
func NewServer(reg *Registry) *Server {
	s := &Server{
		reg:    reg,
		logger: slog.Default(),
	}
	s.exec = newExecutor(s.logger)
	s.mux = http.NewServeMux()
	s.mux.HandleFunc("GET /_healtz", s.handleHealth)
	s.mux.HandleFunc("POST /{tool}", s.handleInvoke)
	s.mux.HandleFunc("GET /{tool}", s.handleDefinition)
	s.mux.HandleFunc("GET /{tool}/{job}", s.handleJobResult)
	s.mux.HandleFunc("POST /{$}", s.handleRPC)
	s.mux.HandleFunc("GET /{$}", s.handleLanding)
	return s
}

// SetServerID sets a server identifier included in dispatch hook metadata.
func (s *Server) SetServerID(id string) {
	s.serverID = id
	s.exec.serverID = id
}

// SetServiceName sets a logical service name used by the landing page and
// observability hooks.
func (s *Server) SetServiceName(name string) { s.serviceName = name }

// ServiceName returns the logical service name, or empty string if not set.
func (s *Server) ServiceName() string { return s.serviceName }

// SetVersion sets the version string reported by GET /_healtz.
func (s *Server) SetVersion(v string) { s.version = v }

// SetDispatchHook registers a hook that is called around each tool dispatch.
func (s *Server) SetDispatchHook(hook DispatchHook) { s.exec.hook = hook }

// SetDebugErrors controls whether handler failures are logged with caller
// frames. Error response bodies never include stack detail either way.
func (s *Server) SetDebugErrors(enabled bool) { s.exec.debugErrors = enabled }

// SetLogger replaces the server's logger (default slog.Default()).
func (s *Server) SetLogger(logger *slog.Logger) {
	s.logger = logger
	s.exec.logger = logger
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleInvoke dispatches POST /{tool}: run the tool as a job and wait at
// most MaxWaitTime for it, deferring with 204 otherwise.
func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("tool")
	info, ok := s.reg.lookup(name)
	if !ok {
		s.writeUnknownTool(w, name)
		return
	}

	if !jsonRequest(r) {
		writeHTTPError(w, http.StatusUnsupportedMediaType,
			fmt.Sprintf("unsupported content type: %s", r.Header.Get("Content-Type")))
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeHTTPError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeHTTPError(w, http.StatusBadRequest, err.Error())
		return
	}

	j := s.exec.execute(r.Context(), info, body, r.Header.Get("X-Request-Id"), TransportHTTP)

	t := time.NewTimer(info.Options.MaxWaitTime)
	defer t.Stop()
	select {
	case <-j.done:
		s.writeOutcome(w, j)
	case <-t.C:
		writeDeferred(w, &RetryLater{
			Location: info.Path + "/" + j.id,
			Delay:    info.Options.RefreshInterval,
		})
	case <-r.Context().Done():
		// Caller went away; the job keeps running and stays collectable.
	}
}

// handleJobResult dispatches GET /{tool}/{job}.
func (s *Server) handleJobResult(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("tool")
	info, ok := s.reg.lookup(name)
	if !ok {
		s.writeUnknownTool(w, name)
		return
	}

	jobID := r.PathValue("job")
	j, ok := s.exec.lookup(jobID)
	if !ok || j.info != info {
		writeHTTPError(w, http.StatusNotFound,
			fmt.Sprintf("job %s can't be found. It either never existed or its result is no longer cached.", jobID))
		return
	}

	if !j.finished() {
		writeDeferred(w, &RetryLater{
			Location: info.Path + "/" + j.id,
			Delay:    info.Options.RefreshInterval,
		})
		return
	}
	s.writeOutcome(w, j)
}

// handleDefinition dispatches GET /{tool}: the tool definition for agents.
func (s *Server) handleDefinition(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("tool")
	info, ok := s.reg.lookup(name)
	if !ok {
		s.writeUnknownTool(w, name)
		return
	}
	writeJSON(w, http.StatusOK, info.definition())
}

// handleHealth reports liveness and the deployed version.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	v := s.version
	if v == "" {
		v = "???"
	}
	writeJSON(w, http.StatusOK, map[string]string{"version": v})
}

// writeOutcome encodes a finished job: deferred signal, tool error, or the
// JSON result.
func (s *Server) writeOutcome(w http.ResponseWriter, j *job) {
	if j.err != nil {
		var later *RetryLater
		if errors.As(j.err, &later) {
			writeDeferred(w, later)
			return
		}
		var terr *ToolError
		if errors.As(j.err, &terr) && terr.Code >= 400 && terr.Code < 500 {
			writeHTTPError(w, terr.Code, terr.Message)
			return
		}
		writeHTTPError(w, http.StatusInternalServerError, j.err.Error())
		return
	}
	w.Header().Set("Content-Type", jsonContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(j.result)
}

func (s *Server) writeUnknownTool(w http.ResponseWriter, name string) {
	writeHTTPError(w, http.StatusNotFound,
		fmt.Sprintf("Unknown tool: '%s'. Available tools: %v", name, s.reg.Names()))
}

// jsonRequest reports whether the request body is JSON (or unlabelled).
func jsonRequest(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return true
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return mt == jsonContentType || strings.HasSuffix(mt, "+json")
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", jsonContentType)
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

func writeHTTPError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, errorModel{Message: message, Code: statusCode})
}
