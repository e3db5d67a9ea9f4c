// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

// validation.go - Text format detection and HTML conversion.
//
// Page descriptions may arrive as plain text, Markdown or HTML. The format is
// detected from the content and converted to an HTML fragment suitable for a
// OneNote page body.
//
// Usage Example:
//   fragment, format := ConvertToHTML("# Overview\n- step one")

package utils

import (
	"html"
	"regexp"
	"strings"

	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// TextFormat represents the format of text content
type TextFormat int

const (
	FormatASCII TextFormat = iota
	FormatMarkdown
	FormatHTML
)

func (f TextFormat) String() string {
	switch f {
	case FormatASCII:
		return "ASCII"
	case FormatMarkdown:
		return "Markdown"
	case FormatHTML:
		return "HTML"
	default:
		return "Unknown"
	}
}

var (
	htmlTagRegex = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)

	markdownLinePatterns = []*regexp.Regexp{
		regexp.MustCompile(`^#{1,6}\s`),             // headers
		regexp.MustCompile(`^[-*+]\s`),              // unordered lists
		regexp.MustCompile(`^\d+\.\s`),              // ordered lists
		regexp.MustCompile(`^>\s`),                  // blockquotes
		regexp.MustCompile("^```|^~~~"),             // code fences
		regexp.MustCompile(`^(---+|\*\*\*+|___+)$`), // horizontal rules
		regexp.MustCompile(`^\|.*\|`),               // tables
	}
)

// DetectTextFormat analyzes text content to determine if it's HTML, Markdown, or plain ASCII
func DetectTextFormat(content string) TextFormat {
	content = strings.TrimSpace(content)
	if content == "" {
		return FormatASCII
	}
	if htmlTagRegex.MatchString(content) {
		return FormatHTML
	}
	if hasMarkdownSyntax(content) {
		return FormatMarkdown
	}
	return FormatASCII
}

func hasMarkdownSyntax(content string) bool {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		for _, re := range markdownLinePatterns {
			if re.MatchString(line) {
				return true
			}
		}
	}
	return false
}

// ConvertToHTML converts text content to HTML based on its detected format
func ConvertToHTML(content string) (string, TextFormat) {
	format := DetectTextFormat(content)

	switch format {
	case FormatHTML:
		return normalizeHTMLFragment(content), format
	case FormatMarkdown:
		return convertMarkdownToHTML(content), format
	default:
		return convertASCIIToHTML(content), FormatASCII
	}
}

// normalizeHTMLFragment reparses caller HTML as body content and serializes it
// back, closing open elements and self-closing void ones. Stray end tags are
// dropped so the fragment cannot close the enclosing page markup. Content that
// fails to parse is escaped as text.
func normalizeHTMLFragment(fragment string) string {
	body := &xhtml.Node{Type: xhtml.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := xhtml.ParseFragment(strings.NewReader(fragment), body)
	if err != nil {
		return html.EscapeString(fragment)
	}

	var b strings.Builder
	for _, n := range nodes {
		if err := xhtml.Render(&b, n); err != nil {
			return html.EscapeString(fragment)
		}
	}
	return b.String()
}

func convertMarkdownToHTML(markdownText string) string {
	extensions := parser.CommonExtensions | parser.AutoHeadingIDs | parser.NoEmptyLineBeforeBlock
	p := parser.NewWithExtensions(extensions)

	// XHTML output keeps void elements self-closed for the page create endpoint.
	opts := mdhtml.RendererOptions{Flags: mdhtml.CommonFlags | mdhtml.HrefTargetBlank | mdhtml.UseXHTML}
	renderer := mdhtml.NewRenderer(opts)

	return string(markdown.ToHTML([]byte(markdownText), p, renderer))
}

// convertASCIIToHTML escapes plain text and keeps its line breaks.
func convertASCIIToHTML(text string) string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, html.EscapeString(line))
		}
	}

	switch len(lines) {
	case 0:
		return "<p></p>"
	case 1:
		return "<p>" + lines[0] + "</p>"
	default:
		return "<p>" + strings.Join(lines, "<br />") + "</p>"
	}
}
