package mcp

import (
	"context"

	mcpmcp "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// RegisterPrompts registers the single "admin" prompt describing how to
// drive the bus's admin tool surface.
func RegisterPrompts(s *mcpserver.MCPServer) {
	s.AddPrompt(
		mcpmcp.NewPrompt("admin",
			mcpmcp.WithPromptDescription("Guidance for operating the event bus's admin tools: publish_event, list_subscriptions, watch_events, unwatch_events."),
		),
		adminPromptHandler,
	)
}

func adminPromptHandler(ctx context.Context, req mcpmcp.GetPromptRequest) (*mcpmcp.GetPromptResult, error) {
	const text = `You have four tools for operating the event bus:
- publish_event(family, subtype, payload_json): publish one event on the global sublist.
- list_subscriptions(): list every active subscription currently registered.
- watch_events(family, subtype): receive matching events as notifications for the rest of this session.
- unwatch_events(): stop receiving them.
family and subtype are small positive integers; subtype 0 on watch_events matches the whole family.`

	return mcpmcp.NewGetPromptResult(
		"Event bus admin guidance",
		[]mcpmcp.PromptMessage{
			mcpmcp.NewPromptMessage(
				mcpmcp.RoleUser,
				mcpmcp.TextContent{Type: "text", Text: text},
			),
		},
	), nil
}
