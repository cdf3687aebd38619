// Copyright (c) 2026 Commonwealth Scientific and Industrial Research Organisation (CSIRO). All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package aitool turns plain typed Go functions into HTTP "AI tool" services
// that agent frameworks can discover and call.
//
// A tool is a function of the form
//
//	func(ctx context.Context, cc *aitool.CallContext, req P) (R, error)
//
// where P is a struct describing the tool's public parameters and R is the
// result type. Tools are collected in an explicit [Registry] built once at
// startup:
//
//	reg := aitool.NewRegistry()
//	aitool.Register(reg, "/is_prime", isPrime, nil)
//	srv := aitool.NewServer(reg)
//
// # Routes
//
// [Server] exposes, for every registered tool:
//
//	POST /{tool}        — execute the tool (a "job")
//	GET  /{tool}        — the tool definition (JSON Schema) for agent discovery
//	GET  /{tool}/{job}  — collect the result of an earlier execution
//
// A POST waits at most [ToolOptions].MaxWaitTime for the job to finish. If the
// job is still running by then the response is 204 No Content with a Location
// header naming the job resource and a Retry-Later header telling the caller
// how many seconds to wait before polling. Handlers may force the same shape
// by returning a [RetryLater] value.
//
// # JSON-RPC
//
// POST / accepts JSON-RPC 2.0 envelopes. The adapter resolves the envelope's
// method against the registry, dispatches params as if the request had been
// addressed to POST /{method}, and wraps the outcome in a result or error
// envelope. Bodies that are not JSON-RPC shaped fall through to normal
// routing untouched.
//
// # Bootstrap
//
// [Run] is the process glue: flag parsing, config, request logging, rate
// limiting, Prometheus metrics, gzip, and graceful shutdown. OpenTelemetry
// instrumentation lives in the otel subpackage and attaches through
// [Server.SetDispatchHook].
package aitool
