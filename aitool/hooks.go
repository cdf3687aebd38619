// Copyright (c) 2026 Commonwealth Scientific and Industrial Research Organisation (CSIRO). All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package aitool

import "context"

// Transport name constants for DispatchInfo.Transport.
const (
	TransportHTTP    = "http"
	TransportJSONRPC = "jsonrpc"
)

// DispatchHook provides observability callpoints around tool dispatch.
// Implementations must be safe for concurrent use; the HTTP transport runs
// one dispatch per inbound request. Both callpoints run on the job goroutine,
// so OnDispatchEnd fires when the handler finishes even if the HTTP response
// was already deferred with 204.
type DispatchHook interface {
	OnDispatchStart(ctx context.Context, info DispatchInfo) (context.Context, HookToken)
	OnDispatchEnd(ctx context.Context, token HookToken, info DispatchInfo, stats *CallStatistics, err error)
}

// HookToken is an opaque value returned by OnDispatchStart and passed back to
// OnDispatchEnd. Only meaningful to the DispatchHook that created it.
type HookToken interface{}

// DispatchInfo carries dispatch metadata passed to hooks.
type DispatchInfo struct {
	Tool      string // registered tool name
	Transport string // TransportHTTP or TransportJSONRPC
	ServerID  string // server identifier, if set
	JobID     string // execution identifier
	RequestID string // caller-supplied correlation id
}

// CallStatistics holds per-dispatch I/O counters.
type CallStatistics struct {
	InputBytes  int64
	OutputBytes int64
}

// RecordInput adds n bytes to the input counter.
func (s *CallStatistics) RecordInput(n int64) { s.InputBytes += n }

// RecordOutput adds n bytes to the output counter.
func (s *CallStatistics) RecordOutput(n int64) { s.OutputBytes += n }
