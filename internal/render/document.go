// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

package render

import (
	"fmt"
	"html"
	"strings"
)

// DiagramSelector matches the SVG Mermaid inserts once layout succeeds.
const DiagramSelector = "#diagram svg"

// HostDocument builds the page loaded into the sandbox: the Mermaid library
// plus the markup as the text content of #diagram. The markup is HTML escaped
// so it is never interpreted as document structure.
func HostDocument(scriptURL, markup string) string {
	var b strings.Builder
	b.Grow(len(markup) + 1024)

	b.WriteString(`<!doctype html><html data-diagram-status="loading"><head>`)
	b.WriteString(`<meta charset="utf-8">`)
	b.WriteString(`<style>html,body{margin:0;padding:0;background:#ffffff}#diagram{display:inline-block;padding:16px}</style>`)
	fmt.Fprintf(&b, `<script src="%s"></script>`, html.EscapeString(scriptURL))
	b.WriteString(`</head><body>`)
	b.WriteString(`<div id="diagram" class="mermaid">`)
	b.WriteString(html.EscapeString(markup))
	b.WriteString(`</div>`)
	b.WriteString(`<script>
(function () {
  var root = document.documentElement;
  if (typeof mermaid === "undefined") {
    root.dataset.diagramStatus = "error";
    root.dataset.diagramError = "mermaid library failed to load";
    return;
  }
  mermaid.initialize({ startOnLoad: false, securityLevel: "strict", theme: "default" });
  mermaid.run({ querySelector: "#diagram" }).then(function () {
    root.dataset.diagramStatus = "ready";
  }).catch(function (err) {
    root.dataset.diagramStatus = "error";
    root.dataset.diagramError = String(err && err.message ? err.message : err);
  });
})();
</script>`)
	b.WriteString(`</body></html>`)
	return b.String()
}
