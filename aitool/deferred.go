// Copyright (c) 2026 Commonwealth Scientific and Industrial Research Organisation (CSIRO). All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package aitool

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// HeaderRetryLater names the response header carrying the suggested poll
// delay in seconds.
const HeaderRetryLater = "Retry-Later"

// RetryLater signals that a result is not ready yet and tells the caller
// where and approximately when it can be collected. It is control flow, not
// a failure: the transport turns it into a 204 No Content response with
// Location and Retry-Later headers and an empty body. Handlers may return it
// directly; the library returns it itself when a job outlives the tool's
// MaxWaitTime.
type RetryLater struct {
	// Location is the URI path to poll for the result.
	Location string
	// Delay is the suggested wait before polling.
	Delay time.Duration
}

func (e *RetryLater) Error() string {
	return fmt.Sprintf("result not ready, retry %s in %s", e.Location, e.Delay)
}

// Is supports errors.Is by matching any *RetryLater target.
func (e *RetryLater) Is(target error) bool {
	_, ok := target.(*RetryLater)
	return ok
}

// retrySeconds renders the delay as whole seconds, rounding up so a caller
// never polls before the suggested time. A non-positive delay becomes 0.
func (e *RetryLater) retrySeconds() int {
	if e.Delay <= 0 {
		return 0
	}
	secs := int((e.Delay + time.Second - 1) / time.Second)
	return secs
}

// writeDeferred emits the deferred-result response shape: 204, Location,
// Retry-Later, no body.
func writeDeferred(w http.ResponseWriter, sig *RetryLater) {
	w.Header().Set("Location", sig.Location)
	w.Header().Set(HeaderRetryLater, strconv.Itoa(sig.retrySeconds()))
	w.WriteHeader(http.StatusNoContent)
}
