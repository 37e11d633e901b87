package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/benvon/thought-capture/internal/services/nlp"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// RulesResourceURI addresses the active rule table.
const RulesResourceURI = "thought-capture://rules"

type rulesDocument struct {
	Version string     `json:"version"`
	Rules   []nlp.Rule `json:"rules"`
}

func registerRulesResource(s *server.MCPServer, engine *nlp.Engine) {
	resource := mcp.NewResource(
		RulesResourceURI,
		"Rule Table",
		mcp.WithResourceDescription("The active classification rule table: every pattern with its tag and tier."),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(resource, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		rules := engine.Rules()
		data, err := json.MarshalIndent(rulesDocument{Version: rules.Version(), Rules: rules.Rules()}, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encoding rule table: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      RulesResourceURI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}
