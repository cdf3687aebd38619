// Copyright (c) 2026 Commonwealth Scientific and Industrial Research Organisation (CSIRO). All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package aitool

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// JSON-RPC 2.0 reserved error codes, plus the implementation-defined code
// used for deferred results.
const (
	rpcCodeParse          = -32700
	rpcCodeInvalidRequest = -32600
	rpcCodeMethodNotFound = -32601
	rpcCodeInvalidParams  = -32602
	rpcCodeInternal       = -32603
	rpcCodeDeferred       = -32050
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcDeferred is the error data payload pointing at the job resource.
type rpcDeferred struct {
	Location   string `json:"location"`
	RetryLater int    `json:"retry_later"`
}

// handleRPC is the JSON-RPC adapter mounted at POST /. A JSON-RPC shaped body
// is rewritten into a dispatch of the named tool with params as body; the
// outcome is wrapped back into a result or error envelope. Bodies that are
// not JSON-RPC shaped (no "jsonrpc" key, or not a JSON object at all) fall
// through to normal routing unchanged.
//
// ID echo policy: the request id is carried as raw JSON and echoed back on
// every response, including invalid-request errors. An id that is not a
// string, number or null — or a body whose envelope never parsed — yields
// "id":null.
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
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

	var probe map[string]json.RawMessage
	if json.Unmarshal(body, &probe) != nil {
		// Malformed JSON that still names the protocol gets a proper parse
		// error; anything else was never meant for this adapter.
		if bytes.Contains(body, []byte(`"jsonrpc"`)) {
			writeRPC(w, rpcResponse{
				JSONRPC: "2.0",
				Error:   &rpcError{Code: rpcCodeParse, Message: "parse error"},
			})
			return
		}
		s.rpcPassThrough(w, r, body)
		return
	}
	if _, shaped := probe["jsonrpc"]; !shaped {
		s.rpcPassThrough(w, r, body)
		return
	}

	var req rpcRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeRPC(w, rpcResponse{
			JSONRPC: "2.0",
			ID:      normalizeRPCID(probe["id"]),
			Error:   &rpcError{Code: rpcCodeInvalidRequest, Message: "invalid request"},
		})
		return
	}
	id := normalizeRPCID(req.ID)

	if req.JSONRPC != "2.0" || req.Method == "" {
		writeRPC(w, rpcResponse{
			JSONRPC: "2.0",
			ID:      id,
			Error:   &rpcError{Code: rpcCodeInvalidRequest, Message: "invalid request"},
		})
		return
	}

	info, ok := s.reg.lookup(req.Method)
	if !ok {
		writeRPC(w, rpcResponse{
			JSONRPC: "2.0",
			ID:      id,
			Error:   &rpcError{Code: rpcCodeMethodNotFound, Message: "method not found"},
		})
		return
	}

	started := time.Now()
	s.logger.Info("rpc request", "method", req.Method, "rpc_id", string(id))

	params := req.Params
	if len(bytes.TrimSpace(params)) == 0 {
		params = json.RawMessage(`{}`)
	}
	j := s.exec.execute(r.Context(), info, params, r.Header.Get("X-Request-Id"), TransportJSONRPC)

	var outcomeErr error
	t := time.NewTimer(info.Options.MaxWaitTime)
	defer t.Stop()
	select {
	case <-j.done:
		outcomeErr = j.err
	case <-t.C:
		outcomeErr = &RetryLater{
			Location: info.Path + "/" + j.id,
			Delay:    info.Options.RefreshInterval,
		}
	case <-r.Context().Done():
		return
	}

	if outcomeErr != nil {
		rerr := mapRPCError(outcomeErr)
		s.logger.Error("rpc failed", "method", req.Method, "rpc_code", rerr.Code,
			"latency_ms", time.Since(started).Milliseconds())
		writeRPC(w, rpcResponse{JSONRPC: "2.0", ID: id, Error: rerr})
		return
	}

	s.logger.Info("rpc response", "method", req.Method,
		"latency_ms", time.Since(started).Milliseconds())
	writeRPC(w, rpcResponse{JSONRPC: "2.0", ID: id, Result: j.result})
}

// rpcPassThrough hands a non-envelope body back to normal routing. No other
// handler is mounted at POST /, so this currently reports 404, but the body
// is forwarded untouched so embedders wrapping the mux see the original
// request.
func (s *Server) rpcPassThrough(w http.ResponseWriter, r *http.Request, body []byte) {
	r2 := r.Clone(r.Context())
	r2.Body = io.NopCloser(bytes.NewReader(body))
	s.handleNotFound(w, r2)
}

// mapRPCError converts a handler outcome into a JSON-RPC error object. Only
// the error message crosses the wire; stack detail stays in the server log.
func mapRPCError(err error) *rpcError {
	var later *RetryLater
	if errors.As(err, &later) {
		return &rpcError{
			Code:    rpcCodeDeferred,
			Message: fmt.Sprintf("result not ready, poll %s in %ds", later.Location, later.retrySeconds()),
			Data:    rpcDeferred{Location: later.Location, RetryLater: later.retrySeconds()},
		}
	}
	var terr *ToolError
	if errors.As(err, &terr) {
		switch {
		case terr.Code < 0:
			return &rpcError{Code: terr.Code, Message: terr.Message}
		case terr.Code >= 400 && terr.Code < 500:
			return &rpcError{Code: rpcCodeInvalidParams, Message: terr.Message}
		}
	}
	return &rpcError{Code: rpcCodeInternal, Message: err.Error()}
}

// normalizeRPCID validates a raw id for echoing. JSON-RPC ids must be a
// string, a number or null; anything else is treated as unparseable and
// echoed as null.
func normalizeRPCID(raw json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil
	}
	switch trimmed[0] {
	case '{', '[':
		return nil
	}
	return trimmed
}

func writeRPC(w http.ResponseWriter, resp rpcResponse) {
	w.Header().Set("Content-Type", jsonContentType)
	_ = json.NewEncoder(w).Encode(resp)
}
