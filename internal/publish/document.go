// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

package publish

import (
	"html"
	"strings"
	"time"

	"github.com/gebl/onenote-diagram-server/internal/utils"
)

// PlaceholderDocument builds the XHTML for the text-only page created before
// the image is attached. The markup transcript keeps the diagram source
// recoverable if the image never arrives.
func PlaceholderDocument(req DiagramRequest, created time.Time) string {
	var b strings.Builder
	b.Grow(len(req.Markup) + len(req.Description) + 512)

	b.WriteString(`<!DOCTYPE html><html><head>`)
	b.WriteString(`<title>` + html.EscapeString(req.Title) + `</title>`)
	b.WriteString(`<meta name="created" content="` + created.Format(time.RFC3339) + `" />`)
	b.WriteString(`</head><body>`)

	if desc := strings.TrimSpace(req.Description); desc != "" {
		fragment, _ := utils.ConvertToHTML(desc)
		b.WriteString(`<div data-id="diagram-description">` + fragment + `</div>`)
	}

	b.WriteString(`<p><b>Diagram source</b></p>`)
	b.WriteString(`<pre data-id="diagram-source">` + html.EscapeString(req.Markup) + `</pre>`)
	b.WriteString(`</body></html>`)
	return b.String()
}
