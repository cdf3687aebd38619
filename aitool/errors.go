package aitool

import (
	"fmt"
	"runtime"
)

// ErrTool is a sentinel for use with errors.Is to check whether any error in a
// chain is a *ToolError.
var ErrTool = &ToolError{}

// ToolError is an error a tool handler wants reported to the caller with a
// specific code. Codes in the 4xx range map to the matching HTTP status; a
// negative code is passed through verbatim as a JSON-RPC error code.
type ToolError struct {
	Code    int
	Message string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%d: %s", e.Code, e.Message)
}

// Is supports errors.Is by matching any *ToolError target.
func (e *ToolError) Is(target error) bool {
	_, ok := target.(*ToolError)
	return ok
}

// Invalidf builds a ToolError reporting invalid input (code 400).
func Invalidf(format string, args ...any) *ToolError {
	return &ToolError{Code: 400, Message: fmt.Sprintf(format, args...)}
}

// errorModel is the JSON error body written by the HTTP transport.
type errorModel struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// callerFrames captures a handful of stack frames for debug logging of
// handler failures. Never included in response bodies.
func callerFrames(skip int) []string {
	pcs := make([]uintptr, 8)
	n := runtime.Callers(skip+1, pcs)
	if n == 0 {
		return nil
	}
	frames := runtime.CallersFrames(pcs[:n])
	var out []string
	for {
		frame, more := frames.Next()
		out = append(out, fmt.Sprintf("%s (%s:%d)", frame.Function, frame.File, frame.Line))
		if !more || len(out) >= 5 {
			break
		}
	}
	return out
}
