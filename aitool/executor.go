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
	"time"

	"github.com/google/uuid"
)

// job tracks one tool execution from dispatch until its result is collected
// or evicted.
type job struct {
	id   string
	info *toolInfo

	done chan struct{}

	// Set by the job goroutine before done is closed, read-only afterwards.
	result     json.RawMessage
	err        error
	finishedAt time.Time
}

func (j *job) finished() bool {
	select {
	case <-j.done:
		return true
	default:
		return false
	}
}

// executor runs tool handlers as jobs and caches finished results for later
// pickup. All shared state is confined to the mutex-guarded job map; the
// transports themselves stay stateless.
type executor struct {
	mu   sync.Mutex
	jobs map[string]*job
	hits uint64

	serverID    string
	hook        DispatchHook
	logger      *slog.Logger
	debugErrors bool
}

func newExecutor(logger *slog.Logger) *executor {
	return &executor{
		jobs:   make(map[string]*job),
		logger: logger,
	}
}

// execute starts a job for the given tool and returns immediately. The
// caller decides how long to wait on job.done. The handler runs detached
// from the request context so a deferred (204) response does not cancel it.
func (e *executor) execute(ctx context.Context, info *toolInfo, raw json.RawMessage, requestID, transport string) *job {
	jobID := newJobID()
	j := &job{
		id:   jobID,
		info: info,
		done: make(chan struct{}),
	}

	e.mu.Lock()
	e.jobs[jobID] = j
	e.hits++
	if e.hits%64 == 0 {
		e.sweepLocked(time.Now())
	}
	e.mu.Unlock()

	cc := &CallContext{
		JobID:     jobID,
		RequestID: requestID,
		Tool:      info.Name,
		Transport: transport,
		Logger:    e.logger.With("tool", info.Name, "job_id", jobID),
	}

	go e.run(context.WithoutCancel(ctx), j, cc, raw)
	return j
}

// run executes the handler, records the outcome and fires the dispatch hook.
func (e *executor) run(ctx context.Context, j *job, cc *CallContext, raw json.RawMessage) {
	defer close(j.done)
	defer func() { j.finishedAt = time.Now() }()

	info := DispatchInfo{
		Tool:      j.info.Name,
		Transport: cc.Transport,
		ServerID:  e.serverID,
		JobID:     j.id,
		RequestID: cc.RequestID,
	}
	stats := &CallStatistics{}
	stats.RecordInput(int64(len(raw)))

	var hookToken HookToken
	var hookActive bool
	if e.hook != nil {
		func() {
			defer func() {
				if rv := recover(); rv != nil {
					e.logger.Error("dispatch hook start panic", "err", rv)
				}
			}()
			hookCtx, token := e.hook.OnDispatchStart(ctx, info)
			if hookCtx != nil {
				ctx = hookCtx
			}
			hookToken = token
			hookActive = true
		}()
	}

	result, err := e.call(ctx, j, cc, raw)
	if err != nil {
		j.err = err
		if e.debugErrors {
			e.logger.Error("tool failed", "tool", j.info.Name, "job_id", j.id,
				"err", err, "frames", callerFrames(2))
		} else {
			e.logger.Error("tool failed", "tool", j.info.Name, "job_id", j.id, "err", err)
		}
	} else {
		j.result = result
		stats.RecordOutput(int64(len(result)))
	}

	if hookActive {
		func() {
			defer func() {
				if rv := recover(); rv != nil {
					e.logger.Error("dispatch hook end panic", "err", rv)
				}
			}()
			e.hook.OnDispatchEnd(ctx, hookToken, info, stats, err)
		}()
	}
}

// call invokes the handler with panic containment and encodes the result.
func (e *executor) call(ctx context.Context, j *job, cc *CallContext, raw json.RawMessage) (result json.RawMessage, err error) {
	defer func() {
		if rv := recover(); rv != nil {
			err = fmt.Errorf("tool %s panicked: %v", j.info.Name, rv)
		}
	}()

	out, err := j.info.Invoke(ctx, cc, raw)
	if err != nil {
		return nil, err
	}
	return encodeResult(out)
}

// lookup returns the job for id, or false when it never existed or its
// result was already evicted.
func (e *executor) lookup(id string) (*job, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	j, ok := e.jobs[id]
	return j, ok
}

// sweepLocked evicts finished jobs that outlived their tool's ResultTTL.
// Callers must hold e.mu.
func (e *executor) sweepLocked(now time.Time) {
	for id, j := range e.jobs {
		if !j.finished() {
			continue
		}
		if now.Sub(j.finishedAt) > j.info.Options.ResultTTL {
			delete(e.jobs, id)
		}
	}
}

// newJobID returns a time-ordered job identifier.
func newJobID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
