// Copyright (c) 2026 Commonwealth Scientific and Industrial Research Organisation (CSIRO). All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package aitool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func testToolInfo(t *testing.T, handler func(context.Context, *CallContext, echoParams) (echoResult, error), opts *ToolOptions) *toolInfo {
	t.Helper()
	reg := NewRegistry()
	Register(reg, "/echo", handler, opts)
	info, _ := reg.lookup("echo")
	return info
}

func waitDone(t *testing.T, j *job) {
	t.Helper()
	select {
	case <-j.done:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not finish")
	}
}

func TestExecutorRunsJobAndStoresResult(t *testing.T) {
	info := testToolInfo(t, func(_ context.Context, _ *CallContext, p echoParams) (echoResult, error) {
		return echoResult{Echo: p.Text}, nil
	}, nil)
	exec := newExecutor(slog.Default())

	j := exec.execute(context.Background(), info, json.RawMessage(`{"text":"hi"}`), "", TransportHTTP)
	waitDone(t, j)

	if j.err != nil {
		t.Fatalf("unexpected error: %v", j.err)
	}
	var out echoResult
	if err := json.Unmarshal(j.result, &out); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if out.Echo != "hi" {
		t.Fatalf("expected hi, got %q", out.Echo)
	}
	if got, ok := exec.lookup(j.id); !ok || got != j {
		t.Fatal("expected finished job to stay collectable")
	}
}

func TestExecutorRecoversHandlerPanic(t *testing.T) {
	info := testToolInfo(t, func(_ context.Context, _ *CallContext, _ echoParams) (echoResult, error) {
		panic("kaboom")
	}, nil)
	exec := newExecutor(slog.Default())

	j := exec.execute(context.Background(), info, json.RawMessage(`{"text":"x"}`), "", TransportHTTP)
	waitDone(t, j)

	if j.err == nil {
		t.Fatal("expected panic to surface as error")
	}
}

func TestExecutorSurvivesCallerCancellation(t *testing.T) {
	info := testToolInfo(t, func(ctx context.Context, _ *CallContext, p echoParams) (echoResult, error) {
		select {
		case <-ctx.Done():
			return echoResult{}, ctx.Err()
		case <-time.After(50 * time.Millisecond):
			return echoResult{Echo: p.Text}, nil
		}
	}, nil)
	exec := newExecutor(slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	j := exec.execute(ctx, info, json.RawMessage(`{"text":"detached"}`), "", TransportHTTP)
	cancel()
	waitDone(t, j)

	if j.err != nil {
		t.Fatalf("job should outlive the caller, got %v", j.err)
	}
}

func TestExecutorSweepEvictsExpiredResults(t *testing.T) {
	info := testToolInfo(t, func(_ context.Context, _ *CallContext, p echoParams) (echoResult, error) {
		return echoResult{Echo: p.Text}, nil
	}, &ToolOptions{ResultTTL: time.Minute})
	exec := newExecutor(slog.Default())

	j := exec.execute(context.Background(), info, json.RawMessage(`{"text":"hi"}`), "", TransportHTTP)
	waitDone(t, j)

	exec.mu.Lock()
	exec.sweepLocked(time.Now())
	exec.mu.Unlock()
	if _, ok := exec.lookup(j.id); !ok {
		t.Fatal("fresh result should survive the sweep")
	}

	exec.mu.Lock()
	exec.sweepLocked(time.Now().Add(2 * time.Minute))
	exec.mu.Unlock()
	if _, ok := exec.lookup(j.id); ok {
		t.Fatal("expired result should be evicted")
	}
}

type capturingHook struct {
	mu    sync.Mutex
	start DispatchInfo
	end   DispatchInfo
	stats CallStatistics
	err   error
	calls int
}

func (h *capturingHook) OnDispatchStart(ctx context.Context, info DispatchInfo) (context.Context, HookToken) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.start = info
	return ctx, "token"
}

func (h *capturingHook) OnDispatchEnd(_ context.Context, token HookToken, info DispatchInfo, stats *CallStatistics, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if token != HookToken("token") {
		panic(fmt.Sprintf("token not round-tripped: %v", token))
	}
	h.end = info
	h.stats = *stats
	h.err = err
	h.calls++
}

func TestExecutorHookObservesDispatch(t *testing.T) {
	info := testToolInfo(t, func(_ context.Context, _ *CallContext, p echoParams) (echoResult, error) {
		return echoResult{Echo: p.Text}, nil
	}, nil)
	exec := newExecutor(slog.Default())
	exec.serverID = "srv-1"
	hook := &capturingHook{}
	exec.hook = hook

	raw := json.RawMessage(`{"text":"hi"}`)
	j := exec.execute(context.Background(), info, raw, "req-42", TransportJSONRPC)
	waitDone(t, j)

	hook.mu.Lock()
	defer hook.mu.Unlock()
	if hook.calls != 1 {
		t.Fatalf("expected one end call, got %d", hook.calls)
	}
	if hook.start.Tool != "echo" || hook.start.Transport != TransportJSONRPC {
		t.Fatalf("unexpected start info: %+v", hook.start)
	}
	if hook.end.ServerID != "srv-1" || hook.end.RequestID != "req-42" || hook.end.JobID != j.id {
		t.Fatalf("unexpected end info: %+v", hook.end)
	}
	if hook.err != nil {
		t.Fatalf("unexpected hook error: %v", hook.err)
	}
	if hook.stats.InputBytes != int64(len(raw)) || hook.stats.OutputBytes != int64(len(j.result)) {
		t.Fatalf("unexpected stats: %+v", hook.stats)
	}
}

type panickyHook struct{}

func (panickyHook) OnDispatchStart(ctx context.Context, _ DispatchInfo) (context.Context, HookToken) {
	panic("hook start")
}

func (panickyHook) OnDispatchEnd(context.Context, HookToken, DispatchInfo, *CallStatistics, error) {
	panic("hook end")
}

func TestExecutorContainsHookPanics(t *testing.T) {
	info := testToolInfo(t, func(_ context.Context, _ *CallContext, p echoParams) (echoResult, error) {
		return echoResult{Echo: p.Text}, nil
	}, nil)
	exec := newExecutor(slog.Default())
	exec.hook = panickyHook{}

	j := exec.execute(context.Background(), info, json.RawMessage(`{"text":"hi"}`), "", TransportHTTP)
	waitDone(t, j)

	if j.err != nil {
		t.Fatalf("hook panic must not fail the job: %v", j.err)
	}
}

func TestNewJobIDsUniqueAndOrdered(t *testing.T) {
	a := newJobID()
	b := newJobID()
	if a == b {
		t.Fatal("expected distinct job ids")
	}
	if len(a) != 36 {
		t.Fatalf("expected canonical UUID, got %q", a)
	}
}
