// Copyright (c) 2026 Commonwealth Scientific and Industrial Research Organisation (CSIRO). All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package aitool

import (
	"fmt"
	"html"
	"net/http"
	"strings"
)

// --- HTML templates ---

const landingHTMLTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>%s &mdash; AI tool service</title>
<style>
  body { font-family: system-ui, -apple-system, sans-serif; max-width: 720px;
         margin: 0 auto; padding: 48px 20px; color: #24292f; }
  h1 { margin-bottom: 4px; }
  .meta { color: #57606a; font-size: 0.9em; margin-top: 0; }
  code { background: #f6f8fa; padding: 2px 6px; border-radius: 3px; font-size: 0.9em; }
  .card { border: 1px solid #d0d7de; border-radius: 8px; padding: 16px 20px;
          margin: 14px 0; }
  .card .sig { font-family: ui-monospace, monospace; font-size: 0.9em; color: #0550ae; }
  .card p { margin: 8px 0 0; color: #57606a; font-size: 0.95em; }
  a { color: #0969da; text-decoration: none; }
  a:hover { text-decoration: underline; }
</style>
</head>
<body>
<h1>%s</h1>
<p class="meta">AI tool service &middot; version <code>%s</code></p>
<p>Each tool accepts <code>POST /{tool}</code>, publishes its definition at
<code>GET /{tool}</code>, and answers JSON-RPC 2.0 envelopes at <code>POST /</code>.</p>
%s
</body>
</html>`

const notFoundHTMLTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>404 &mdash; AI tool service</title>
<style>
  body { font-family: system-ui, -apple-system, sans-serif; max-width: 600px;
         margin: 60px auto; padding: 0 20px; color: #24292f; text-align: center; }
  code { background: #f6f8fa; padding: 2px 6px; border-radius: 3px; }
</style>
</head>
<body>
<h1>404 &mdash; Not Found</h1>
<p>This is an AI tool service endpoint.</p>
<p>Tools are available under <code>/&lt;tool&gt;</code>; the registered set is
listed at <code>GET /</code>.</p>
</body>
</html>`

// buildLandingHTML renders the landing page listing all registered tools.
func buildLandingHTML(title, version string, defs []ToolDefinition) []byte {
	if title == "" {
		title = "AI tool service"
	}
	if version == "" {
		version = "???"
	}
	var cards strings.Builder
	for _, def := range defs {
		cards.WriteString(`<div class="card">`)
		fmt.Fprintf(&cards, `<a href="%s"><strong>%s</strong></a> <span class="sig">%s</span>`,
			html.EscapeString(def.ID),
			html.EscapeString(def.Name),
			html.EscapeString(def.FnSignature))
		if def.Description != "" {
			fmt.Fprintf(&cards, `<p>%s</p>`, html.EscapeString(def.Description))
		}
		cards.WriteString("</div>\n")
	}
	return []byte(fmt.Sprintf(landingHTMLTemplate,
		html.EscapeString(title),
		html.EscapeString(title),
		html.EscapeString(version),
		cards.String(),
	))
}

// handleLanding serves GET /.
func (s *Server) handleLanding(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buildLandingHTML(s.serviceName, s.version, s.reg.Describe()))
}

// handleNotFound answers unrouted requests: JSON for POST (API callers),
// HTML otherwise.
func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		writeHTTPError(w, http.StatusNotFound, "no route for "+r.Method+" "+r.URL.Path)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte(notFoundHTMLTemplate))
}
