// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

package render

import (
	"strings"
)

// NormalizeMarkup canonicalizes line endings, trims surrounding whitespace and
// removes a ```mermaid code fence if the markup is wrapped in one.
func NormalizeMarkup(raw string) (string, error) {
	source := strings.TrimSpace(strings.ReplaceAll(raw, "\r\n", "\n"))
	source = strings.TrimSpace(stripMermaidFence(source))
	if source == "" {
		return "", ErrEmptyMarkup
	}
	return source, nil
}

func stripMermaidFence(source string) string {
	lines := strings.Split(source, "\n")
	if len(lines) < 2 {
		return source
	}

	first := strings.TrimSpace(lines[0])
	if !strings.HasPrefix(first, "```") {
		return source
	}
	lang := strings.TrimSpace(strings.TrimPrefix(first, "```"))
	if lang != "" && !strings.EqualFold(lang, "mermaid") {
		return source
	}

	end := len(lines)
	if strings.TrimSpace(lines[end-1]) == "```" {
		end--
	}
	return strings.Join(lines[1:end], "\n")
}
