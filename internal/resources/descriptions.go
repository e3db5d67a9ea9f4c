// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

package resources

import (
	"fmt"
)

// toolDescriptions contains all tool descriptions as Go string constants
var toolDescriptions = map[string]string{
	"saveDiagram": "Render a Mermaid diagram to an image and save it as a new OneNote page.\n\nUser says \"Save this flowchart to my Architecture section\" → Step 1: obtain the section ID (sectionID must be an actual ID like '0-abc123!45', never a section name) → Step 2: saveDiagram(title, mermaid, sectionID, description).\n\n**PARAMETERS:**\n- title (required): Page title, also used as the image alt text\n- mermaid (required): Mermaid source. A surrounding ```mermaid fence is accepted and stripped\n- sectionID (required): Section to create the page in\n- description (optional): Plain text, Markdown or HTML shown on the page above the diagram source\n\n**HOW IT WORKS:** The diagram is rendered in a headless browser and converted to JPEG. A text-only page holding the title, description and Mermaid source is created first, then the image is appended to it.\n\n**FAILURES:** The error names the failed stage. If the image could not be attached, the text-only page is left in place and its ID is reported so it can be found or deleted. The call is not idempotent: retrying creates another page.\n\n**RESPONSE:** JSON object {\"id\": \"...\", \"title\": \"...\"} for the new page.",
}

// GetToolDescription returns the description for a specific tool
func GetToolDescription(toolName string) (string, error) {
	desc, exists := toolDescriptions[toolName]
	if !exists {
		return "", fmt.Errorf("description not found for tool: %s", toolName)
	}
	return desc, nil
}

// MustGetToolDescription returns the description for a tool or panics if not found
// This should only be used during server initialization where we want to fail fast
func MustGetToolDescription(toolName string) string {
	desc, err := GetToolDescription(toolName)
	if err != nil {
		panic(err)
	}
	return desc
}
