// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

package pages

import (
	"strings"

	"golang.org/x/net/html"
)

// PageReady reports whether content is a served page document: it parses and
// has a non-empty <title>. Used as the readiness check while polling a new
// placeholder.
func PageReady(content string) bool {
	if strings.TrimSpace(content) == "" {
		return false
	}
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return false
	}
	title := findElement(doc, "title")
	if title == nil {
		return false
	}
	return strings.TrimSpace(textContent(title)) != ""
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if found := findElement(child, tag); found != nil {
			return found
		}
	}
	return nil
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return b.String()
}
