// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/gebl/onenote-diagram-server/internal/logging"
	"github.com/gebl/onenote-diagram-server/internal/publish"
	"github.com/gebl/onenote-diagram-server/internal/resources"
)

// DiagramPublisher is satisfied by *publish.Coordinator.
type DiagramPublisher interface {
	Publish(ctx context.Context, req publish.DiagramRequest) (*publish.Page, error)
}

// registerTools registers all MCP tools for the diagram server
func registerTools(s *server.MCPServer, publisher DiagramPublisher) {
	logging.ToolsLogger.Debug("Starting tool registration")

	saveDiagramTool := mcp.NewTool(
		"saveDiagram",
		mcp.WithDescription(resources.MustGetToolDescription("saveDiagram")),
		mcp.WithString("title", mcp.Required(), mcp.Description("Title of the new page")),
		mcp.WithString("mermaid", mcp.Required(), mcp.Description("Mermaid diagram source, optionally wrapped in a ```mermaid fence")),
		mcp.WithString("sectionID", mcp.Required(), mcp.Description("Section ID to create the page in - MUST be an actual ID, NOT a section name")),
		mcp.WithString("description", mcp.Description("Optional: text, Markdown or HTML shown above the diagram source")),
	)
	s.AddTool(saveDiagramTool, saveDiagramHandler(publisher))

	logging.ToolsLogger.Debug("All tools registered successfully")
}

func saveDiagramHandler(publisher DiagramPublisher) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		logger := logging.ToolsLogger
		logger.Info("Tool called", "tool", "saveDiagram", "type", "tool_invocation")

		title, err := req.RequireString("title")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		markup, err := req.RequireString("mermaid")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		sectionID, err := req.RequireString("sectionID")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		page, err := publisher.Publish(ctx, publish.DiagramRequest{
			Title:       title,
			Markup:      markup,
			ContainerID: sectionID,
			Description: req.GetString("description", ""),
		})
		if err != nil {
			logger.Error("saveDiagram failed", "section_id", sectionID, "error", err)
			return mcp.NewToolResultError(describeFailure(err)), nil
		}

		jsonBytes, err := json.Marshal(page)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to marshal page: %v", err)), nil
		}
		logger.Debug("saveDiagram completed", "page_id", page.ID)
		return mcp.NewToolResultText(string(jsonBytes)), nil
	}
}

// describeFailure names the failed stage and, when one was left behind, the
// placeholder page so the caller can find or delete it.
func describeFailure(err error) string {
	var pubErr *publish.Error
	if !errors.As(err, &pubErr) {
		return fmt.Sprintf("Failed to save diagram: %v", err)
	}
	if pubErr.PageID != "" {
		return fmt.Sprintf("Failed to save diagram at stage %s: %v. A text-only placeholder page was left behind: %s",
			pubErr.Stage, pubErr.Err, pubErr.PageID)
	}
	return fmt.Sprintf("Failed to save diagram at stage %s: %v", pubErr.Stage, pubErr.Err)
}
