// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package vgirpc

import (
	"fmt"
	"html"
	"net/http"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
)

const describeHTMLTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>%s &mdash; vgi-rpc</title>
<style>
  body { font-family: system-ui, -apple-system, sans-serif; max-width: 900px;
         margin: 0 auto; padding: 40px 20px; color: #2c2c1e; background: #faf8f0; }
  h1 { color: #2d5016; margin-bottom: 4px; }
  .meta { color: #6b6b5a; font-size: 0.9em; margin-bottom: 24px; }
  .card { background: #fff; border: 1px solid #e6e1d0; border-radius: 6px;
          padding: 12px 16px; margin-bottom: 12px; }
  .method-name { font-family: monospace; font-weight: 600; font-size: 1.05em; }
  .doc { color: #6b6b5a; margin: 6px 0; }
  .section-label { font-size: 0.8em; text-transform: uppercase; color: #6b6b5a; margin-top: 8px; }
  table { border-collapse: collapse; font-size: 0.9em; }
  td, th { padding: 2px 12px 2px 0; text-align: left; }
  code { font-family: monospace; }
</style>
</head>
<body>
<h1>%s</h1>
<div class="meta">%s &middot; %d methods &middot; POST <code>%s/&lt;method&gt;</code></div>
%s
</body>
</html>`

const notFoundHTMLTemplate = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>404 &mdash; vgi-rpc endpoint</title></head>
<body>
<h1>404 &mdash; Not Found</h1>
<p>This is a <code>vgi-rpc</code> service endpoint. RPC methods are available under <code>%s/&lt;method&gt;</code>.</p>
</body>
</html>`

func buildDescribeHTML(s *Server, prefix string) []byte {
	names := s.availableMethods()
	var cards strings.Builder
	for _, name := range names {
		buildMethodCard(&cards, s.methods[name])
	}
	return []byte(fmt.Sprintf(describeHTMLTemplate,
		html.EscapeString(s.protocolName()), // <title>
		html.EscapeString(s.protocolName()), // <h1>
		html.EscapeString(s.serverID),
		len(names),
		html.EscapeString(prefix),
		cards.String(),
	))
}

func buildMethodCard(w *strings.Builder, info *methodInfo) {
	w.WriteString(`<div class="card">`)
	fmt.Fprintf(w, `<span class="method-name">%s</span>`, html.EscapeString(info.Name))
	if info.Doc != "" {
		fmt.Fprintf(w, `<div class="doc">%s</div>`, html.EscapeString(info.Doc))
	}
	writeFieldTable(w, "Parameters", info.ParamsSchema.Fields(), info.ParamDefaults)
	if info.HasReturn {
		writeFieldTable(w, "Returns", info.ResultSchema.Fields(), nil)
	}
	w.WriteString("</div>\n")
}

func writeFieldTable(w *strings.Builder, label string, fields []arrow.Field, defaults map[string]string) {
	if len(fields) == 0 {
		return
	}
	fmt.Fprintf(w, `<div class="section-label">%s</div><table>`, label)
	for _, f := range fields {
		def := ""
		if v, ok := defaults[f.Name]; ok {
			def = " = " + html.EscapeString(v)
		}
		fmt.Fprintf(w, `<tr><td><code>%s</code></td><td><code>%s</code>%s</td></tr>`,
			html.EscapeString(f.Name), html.EscapeString(arrowTypeToString(f.Type)), def)
	}
	w.WriteString(`</table>`)
}

func (h *HttpServer) handleDescribePage(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buildDescribeHTML(h.server, h.prefix))
}

func (h *HttpServer) handleNotFound(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	_, _ = fmt.Fprintf(w, notFoundHTMLTemplate, html.EscapeString(h.prefix))
}
