// Copyright (c) 2026 Commonwealth Scientific and Industrial Research Organisation (CSIRO). All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package aitool

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
)

// Default tool option values, matching the platform's conventions.
const (
	DefaultMaxWaitTime     = 5 * time.Second
	DefaultRefreshInterval = 3 * time.Second
	DefaultResultTTL       = 10 * time.Minute
)

// ToolOptions customizes one tool registration. The zero value (or nil) gets
// the defaults above.
type ToolOptions struct {
	// Name overrides the tool name derived from the registration path.
	Name string
	// Description is the human/agent-readable summary published in the tool
	// definition. Defaults to the doc line "Executes the <name> tool.".
	Description string
	// Tags group tools in the landing page and definitions.
	Tags []string
	// MaxWaitTime bounds how long a POST waits for the job before answering
	// 204 with Location and Retry-Later headers.
	MaxWaitTime time.Duration
	// RefreshInterval is the suggested delay, sent in Retry-Later, before the
	// caller polls the job resource.
	RefreshInterval time.Duration
	// ResultTTL is how long a finished job result stays collectable.
	ResultTTL time.Duration
}

func (o *ToolOptions) withDefaults() ToolOptions {
	out := ToolOptions{}
	if o != nil {
		out = *o
	}
	if out.MaxWaitTime <= 0 {
		out.MaxWaitTime = DefaultMaxWaitTime
	}
	if out.RefreshInterval <= 0 {
		out.RefreshInterval = DefaultRefreshInterval
	}
	if out.ResultTTL <= 0 {
		out.ResultTTL = DefaultResultTTL
	}
	return out
}

// invokeFunc is the type-erased handler stored in the route table. It decodes
// raw params, calls the typed handler and returns the undecoded result.
type invokeFunc func(ctx context.Context, cc *CallContext, raw json.RawMessage) (any, error)

// toolInfo stores the registration details for one tool.
type toolInfo struct {
	Name       string
	Path       string
	ParamsType reflect.Type
	ResultType reflect.Type
	Options    ToolOptions
	Invoke     invokeFunc

	inputSchema  *jsonschema.Schema
	outputSchema *jsonschema.Schema
	signature    string
}

// Registry is the explicit route table mapping tool names to handlers. It is
// populated at startup via [Register] and then treated as read-only; servers
// never mutate it.
type Registry struct {
	tools map[string]*toolInfo
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*toolInfo)}
}

// lookup resolves a tool by name.
func (r *Registry) lookup(name string) (*toolInfo, bool) {
	info, ok := r.tools[name]
	return info, ok
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Register adds a tool to the registry under the given path. P must be a
// struct describing the tool's public parameters; R is the result type. The
// tool name is the path with slashes trimmed ("/is_prime" registers tool
// "is_prime") unless opts.Name overrides it.
//
// Registration is startup-time configuration: an invalid params type, an
// unroutable path or a duplicate name panics.
func Register[P any, R any](r *Registry, path string, handler func(context.Context, *CallContext, P) (R, error), opts *ToolOptions) {
	var p P
	var res R
	paramsType := reflect.TypeOf(p)
	resultType := reflect.TypeOf(res)

	if paramsType == nil || paramsType.Kind() != reflect.Struct {
		panic(fmt.Sprintf("aitool: registering %q: params type %T must be a struct", path, p))
	}

	name := strings.Trim(path, "/")
	o := opts.withDefaults()
	if o.Name != "" {
		name = o.Name
	}
	if name == "" || strings.Contains(name, "/") {
		panic(fmt.Sprintf("aitool: registering %q: cannot derive a single-segment tool name", path))
	}
	if _, exists := r.tools[name]; exists {
		panic(fmt.Sprintf("aitool: tool %q already registered", name))
	}
	if o.Description == "" {
		o.Description = fmt.Sprintf("Executes the %s tool.", name)
	}

	info := &toolInfo{
		Name:       name,
		Path:       "/" + name,
		ParamsType: paramsType,
		ResultType: resultType,
		Options:    o,
		Invoke: func(ctx context.Context, cc *CallContext, raw json.RawMessage) (any, error) {
			var params P
			if err := decodeParams(raw, &params); err != nil {
				return nil, Invalidf("parameter decoding: %v", err)
			}
			return handler(ctx, cc, params)
		},
		inputSchema:  reflectSchema(paramsType),
		outputSchema: reflectSchema(resultType),
		signature:    fnSignature(name, paramsType, resultType),
	}
	r.tools[name] = info
}

// reflectSchema builds a self-contained JSON Schema for t. A nil type (an
// untyped nil result) yields nil, published as JSON null.
func reflectSchema(t reflect.Type) *jsonschema.Schema {
	if t == nil {
		return nil
	}
	reflector := jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: t.Kind() == reflect.Struct,
	}
	return reflector.ReflectFromType(t)
}

// fnSignature renders a readable call signature for tool definitions,
// e.g. "is_prime(number int) bool".
func fnSignature(name string, params, result reflect.Type) string {
	var args []string
	if params != nil && params.Kind() == reflect.Struct {
		for i := 0; i < params.NumField(); i++ {
			f := params.Field(i)
			if !f.IsExported() {
				continue
			}
			fieldName := f.Name
			if tag, ok := f.Tag.Lookup("json"); ok {
				if n, _, _ := strings.Cut(tag, ","); n != "" && n != "-" {
					fieldName = n
				}
			}
			args = append(args, fmt.Sprintf("%s %s", fieldName, f.Type.String()))
		}
	}
	out := ""
	if result != nil {
		out = " " + result.String()
	}
	return fmt.Sprintf("%s(%s)%s", name, strings.Join(args, ", "), out)
}
