// Copyright (c) 2026 Commonwealth Scientific and Industrial Research Organisation (CSIRO). All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package aitool

import "log/slog"

// CallContext provides request-scoped information to tool handlers.
type CallContext struct {
	// JobID identifies this execution. It is also the last path element of
	// the Location header when the result is deferred.
	JobID string
	// RequestID is the caller-supplied correlation identifier (X-Request-Id),
	// empty if none was sent.
	RequestID string
	// Tool is the name the handler was registered under.
	Tool string
	// Transport names the ingress path: "http" or "jsonrpc".
	Transport string
	// Logger carries job_id and tool attributes; handlers should log through
	// it so job output is correlatable.
	Logger *slog.Logger
}
