// Copyright (c) 2026 Commonwealth Scientific and Industrial Research Organisation (CSIRO). All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package aitool

import (
	"github.com/invopop/jsonschema"
)

// toolDefinitionSchema is the $schema tag stamped on every tool definition.
const toolDefinitionSchema = "urn:sd:schema:ai-tool.1"

// ToolDefinition describes a tool in the shape agent frameworks consume:
// name, prose, call signature and JSON Schemas for input and output.
type ToolDefinition struct {
	Schema      string             `json:"$schema"`
	ID          string             `json:"id,omitempty"`
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Tags        []string           `json:"tags,omitempty"`
	FnSignature string             `json:"fn_signature,omitempty"`
	Input       *jsonschema.Schema `json:"input"`
	Output      *jsonschema.Schema `json:"output"`
}

// definition builds the published definition for one tool.
func (info *toolInfo) definition() ToolDefinition {
	return ToolDefinition{
		Schema:      toolDefinitionSchema,
		ID:          info.Path,
		Name:        info.Name,
		Description: info.Options.Description,
		Tags:        info.Options.Tags,
		FnSignature: info.signature,
		Input:       info.inputSchema,
		Output:      info.outputSchema,
	}
}

// Describe returns the definitions of all registered tools, sorted by name.
// Primarily used by agents and by the --print-tool-description bootstrap flag.
func (r *Registry) Describe() []ToolDefinition {
	names := r.Names()
	defs := make([]ToolDefinition, 0, len(names))
	for _, name := range names {
		defs = append(defs, r.tools[name].definition())
	}
	return defs
}
