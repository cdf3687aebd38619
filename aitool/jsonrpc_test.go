// Copyright (c) 2026 Commonwealth Scientific and Industrial Research Organisation (CSIRO). All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package aitool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func callRPC(t *testing.T, srv *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decodeRPC(t *testing.T, rec *httptest.ResponseRecorder) rpcResponse {
	t.Helper()
	var resp rpcResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode rpc response %q: %v", rec.Body.String(), err)
	}
	if resp.JSONRPC != "2.0" {
		t.Fatalf("expected jsonrpc 2.0, got %q", resp.JSONRPC)
	}
	return resp
}

func TestRPCSuccessWrapsResult(t *testing.T) {
	srv := newEchoServer(t)

	rec := callRPC(t, srv, `{"jsonrpc":"2.0","id":7,"method":"echo","params":{"text":"hi"}}`)
	resp := decodeRPC(t, rec)
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	if string(resp.ID) != "7" {
		t.Fatalf("expected id 7, got %s", resp.ID)
	}
	var out echoResult
	if err := json.Unmarshal(resp.Result, &out); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if out.Echo != "hi" {
		t.Fatalf("expected echo %q, got %q", "hi", out.Echo)
	}
}

func TestRPCStringIDEchoed(t *testing.T) {
	srv := newEchoServer(t)

	rec := callRPC(t, srv, `{"jsonrpc":"2.0","id":"req-1","method":"echo","params":{"text":"x"}}`)
	resp := decodeRPC(t, rec)
	if string(resp.ID) != `"req-1"` {
		t.Fatalf("expected string id echoed, got %s", resp.ID)
	}
}

func TestRPCMethodNotFound(t *testing.T) {
	srv := newEchoServer(t)

	rec := callRPC(t, srv, `{"jsonrpc":"2.0","id":1,"method":"nothere","params":{}}`)
	resp := decodeRPC(t, rec)
	if resp.Error == nil || resp.Error.Code != rpcCodeMethodNotFound {
		t.Fatalf("expected %d, got %+v", rpcCodeMethodNotFound, resp.Error)
	}
}

func TestRPCWrongVersionRejected(t *testing.T) {
	srv := newEchoServer(t)

	rec := callRPC(t, srv, `{"jsonrpc":"1.0","id":1,"method":"echo","params":{}}`)
	resp := decodeRPC(t, rec)
	if resp.Error == nil || resp.Error.Code != rpcCodeInvalidRequest {
		t.Fatalf("expected %d, got %+v", rpcCodeInvalidRequest, resp.Error)
	}
	if string(resp.ID) != "1" {
		t.Fatalf("expected id echoed on invalid request, got %s", resp.ID)
	}
}

func TestRPCMissingMethodRejected(t *testing.T) {
	srv := newEchoServer(t)

	rec := callRPC(t, srv, `{"jsonrpc":"2.0","id":3}`)
	resp := decodeRPC(t, rec)
	if resp.Error == nil || resp.Error.Code != rpcCodeInvalidRequest {
		t.Fatalf("expected %d, got %+v", rpcCodeInvalidRequest, resp.Error)
	}
	if string(resp.ID) != "3" {
		t.Fatalf("expected id echoed, got %s", resp.ID)
	}
}

func TestRPCObjectIDEchoesNull(t *testing.T) {
	srv := newEchoServer(t)

	rec := callRPC(t, srv, `{"jsonrpc":"2.0","id":{"odd":true},"method":"echo","params":{"text":"x"}}`)
	if !bytes.Contains(rec.Body.Bytes(), []byte(`"id":null`)) {
		t.Fatalf("expected id null for unrepresentable id, got %s", rec.Body.String())
	}
}

func TestRPCMalformedEnvelopeParseError(t *testing.T) {
	srv := newEchoServer(t)

	rec := callRPC(t, srv, `{"jsonrpc":"2.0","id":1,`)
	resp := decodeRPC(t, rec)
	if resp.Error == nil || resp.Error.Code != rpcCodeParse {
		t.Fatalf("expected %d, got %+v", rpcCodeParse, resp.Error)
	}
}

func TestRPCPassThroughWithoutEnvelope(t *testing.T) {
	srv := newEchoServer(t)

	// A plain JSON object without a "jsonrpc" member is not for the adapter.
	rec := callRPC(t, srv, `{"text":"hi"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 pass-through, got %d: %s", rec.Code, rec.Body.String())
	}
	var em errorModel
	decodeBody(t, rec, &em)
	if em.Code != http.StatusNotFound {
		t.Fatalf("expected JSON not-found body, got %+v", em)
	}
}

func TestRPCToolErrorMapsToInvalidParams(t *testing.T) {
	reg := NewRegistry()
	Register(reg, "/strict", func(_ context.Context, _ *CallContext, _ echoParams) (echoResult, error) {
		return echoResult{}, Invalidf("text is required")
	}, nil)
	srv := NewServer(reg)

	rec := callRPC(t, srv, `{"jsonrpc":"2.0","id":1,"method":"strict","params":{}}`)
	resp := decodeRPC(t, rec)
	if resp.Error == nil || resp.Error.Code != rpcCodeInvalidParams {
		t.Fatalf("expected %d, got %+v", rpcCodeInvalidParams, resp.Error)
	}
	if resp.Error.Message != "text is required" {
		t.Fatalf("expected handler message, got %q", resp.Error.Message)
	}
}

func TestRPCInternalErrorHidesNothingButMessage(t *testing.T) {
	reg := NewRegistry()
	Register(reg, "/boom", func(_ context.Context, _ *CallContext, _ echoParams) (echoResult, error) {
		return echoResult{}, fmt.Errorf("backend unavailable")
	}, nil)
	srv := NewServer(reg)

	rec := callRPC(t, srv, `{"jsonrpc":"2.0","id":1,"method":"boom","params":{"text":"x"}}`)
	resp := decodeRPC(t, rec)
	if resp.Error == nil || resp.Error.Code != rpcCodeInternal {
		t.Fatalf("expected %d, got %+v", rpcCodeInternal, resp.Error)
	}
	if resp.Error.Data != nil {
		t.Fatalf("expected no error data, got %v", resp.Error.Data)
	}
}

func TestRPCNegativeToolCodePassesThrough(t *testing.T) {
	reg := NewRegistry()
	Register(reg, "/custom", func(_ context.Context, _ *CallContext, _ echoParams) (echoResult, error) {
		return echoResult{}, &ToolError{Code: -32001, Message: "custom failure"}
	}, nil)
	srv := NewServer(reg)

	rec := callRPC(t, srv, `{"jsonrpc":"2.0","id":1,"method":"custom","params":{"text":"x"}}`)
	resp := decodeRPC(t, rec)
	if resp.Error == nil || resp.Error.Code != -32001 {
		t.Fatalf("expected custom code, got %+v", resp.Error)
	}
}

func TestRPCMissingParamsDefaultsToEmptyObject(t *testing.T) {
	reg := NewRegistry()
	Register(reg, "/noargs", func(_ context.Context, _ *CallContext, _ struct{}) (string, error) {
		return "ok", nil
	}, nil)
	srv := NewServer(reg)

	rec := callRPC(t, srv, `{"jsonrpc":"2.0","id":1,"method":"noargs"}`)
	resp := decodeRPC(t, rec)
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	if string(resp.Result) != `"ok"` {
		t.Fatalf("expected result ok, got %s", resp.Result)
	}
}

func TestRPCDeferredResultCollectableOverHTTP(t *testing.T) {
	srv := newEchoServer(t)

	rec := callRPC(t, srv, `{"jsonrpc":"2.0","id":9,"method":"slow","params":{"text":"later"}}`)
	resp := decodeRPC(t, rec)
	if resp.Error == nil || resp.Error.Code != rpcCodeDeferred {
		t.Fatalf("expected %d, got %+v", rpcCodeDeferred, resp.Error)
	}

	raw, err := json.Marshal(resp.Error.Data)
	if err != nil {
		t.Fatalf("re-encode error data: %v", err)
	}
	var deferred rpcDeferred
	if err := json.Unmarshal(raw, &deferred); err != nil {
		t.Fatalf("decode error data: %v", err)
	}
	if !strings.HasPrefix(deferred.Location, "/slow/") {
		t.Fatalf("expected job location under /slow/, got %q", deferred.Location)
	}
	if deferred.RetryLater != 1 {
		t.Fatalf("expected retry_later 1, got %d", deferred.RetryLater)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		poll := doJSON(t, srv, http.MethodGet, deferred.Location, "")
		if poll.Code == http.StatusOK {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("deferred job never finished")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRPCConcurrentCallsStayIsolated(t *testing.T) {
	srv := newEchoServer(t)

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			body := fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"method":"echo","params":{"text":"t%d"}}`, i, i)
			rec := callRPC(t, srv, body)
			var resp rpcResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				errs <- fmt.Errorf("call %d: decode: %v", i, err)
				return
			}
			if resp.Error != nil {
				errs <- fmt.Errorf("call %d: rpc error %+v", i, resp.Error)
				return
			}
			if want := fmt.Sprintf("%d", i); string(resp.ID) != want {
				errs <- fmt.Errorf("call %d: id %s", i, resp.ID)
				return
			}
			var out echoResult
			if err := json.Unmarshal(resp.Result, &out); err != nil {
				errs <- fmt.Errorf("call %d: result: %v", i, err)
				return
			}
			if out.Echo != fmt.Sprintf("t%d", i) {
				errs <- fmt.Errorf("call %d: crossed result %q", i, out.Echo)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
