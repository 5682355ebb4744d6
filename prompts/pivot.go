package prompts

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// RegisterInvestigationPrompts registers prompts that drive the graph tools
func RegisterInvestigationPrompts(s *server.MCPServer) {
	pivot := mcp.NewPrompt("pivot_investigation",
		mcp.WithPromptDescription("Seed a new investigation from a node of an existing graph"),
		mcp.WithArgument("investigation_id", mcp.ArgumentDescription("Investigation holding the node"), mcp.RequiredArgument()),
		mcp.WithArgument("node_id", mcp.ArgumentDescription("Username, email, phone, address or person node to pivot on"), mcp.RequiredArgument()),
	)
	s.AddPrompt(pivot, pivotHandler)

	review := mcp.NewPrompt("review_findings",
		mcp.WithPromptDescription("Review the weakest findings of an investigation graph"),
		mcp.WithArgument("investigation_id", mcp.ArgumentDescription("Investigation to review"), mcp.RequiredArgument()),
		mcp.WithArgument("max_confidence", mcp.ArgumentDescription("Upper confidence bound of nodes to review (default 50)")),
	)
	s.AddPrompt(review, reviewHandler)
}

func pivotHandler(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	investigationID := request.Params.Arguments["investigation_id"]
	nodeID := request.Params.Arguments["node_id"]
	if investigationID == "" || nodeID == "" {
		return nil, fmt.Errorf("investigation_id and node_id are required")
	}

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Pivot on node %s of %s", nodeID, investigationID),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf("Call pivot_node with investigation_id %q and node_id %q. "+
						"Use the returned type and value as the search criteria of a new investigation, "+
						"then call build_investigation_graph for it once findings arrive.", investigationID, nodeID),
				},
			},
		},
	}, nil
}

func reviewHandler(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	investigationID := request.Params.Arguments["investigation_id"]
	if investigationID == "" {
		return nil, fmt.Errorf("investigation_id is required")
	}
	bound := strings.TrimSpace(request.Params.Arguments["max_confidence"])
	if bound == "" {
		bound = "50"
	}

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Low confidence review of %s", investigationID),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf("Call query_graph with investigation_id %q and filters \"confidence<=%s\". "+
						"For each node, say whether a second independent source confirms it and which agent to run next.", investigationID, bound),
				},
			},
		},
	}, nil
}
