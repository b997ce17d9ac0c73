package mcp

import (
	"encoding/json"
	"fmt"
	"strconv"

	mcpmcp "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"context"

	"github.com/alanyang/eventmesh/internal/eventbus"
)

// RegisterTools registers the bus admin tools: publish_event,
// list_subscriptions, watch_events, unwatch_events.
func RegisterTools(s *mcpserver.MCPServer, reg *SessionRegistry, bus *eventbus.Bus) {
	s.AddTool(mcpmcp.NewTool("publish_event",
		mcpmcp.WithDescription("Publish an event on the bus's global sublist. family and subtype are small positive integers; subtype must have exactly one bit set."),
		mcpmcp.WithString("family", mcpmcp.Required(), mcpmcp.Description("Event family, e.g. 1 for server events")),
		mcpmcp.WithString("subtype", mcpmcp.Required(), mcpmcp.Description("Event subtype bit, e.g. 1")),
		mcpmcp.WithString("payload_json", mcpmcp.Description("JSON object delivered as the event payload")),
	), publishEventHandler(bus))

	s.AddTool(mcpmcp.NewTool("list_subscriptions",
		mcpmcp.WithDescription("List every active subscription currently on the bus's global sublist."),
	), listSubscriptionsHandler(bus))

	s.AddTool(mcpmcp.NewTool("watch_events",
		mcpmcp.WithDescription("Start forwarding events matching family/subtype to this session as notifications. Replaces any previous watch on this session."),
		mcpmcp.WithString("family", mcpmcp.Required(), mcpmcp.Description("Event family to watch")),
		mcpmcp.WithString("subtype", mcpmcp.Description("Subtype bitmask to watch; 0 or omitted matches the whole family")),
	), watchEventsHandler(s, reg, bus))

	s.AddTool(mcpmcp.NewTool("unwatch_events",
		mcpmcp.WithDescription("Stop this session's event watch, if any."),
	), unwatchEventsHandler(reg))
}

func publishEventHandler(bus *eventbus.Bus) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcpmcp.CallToolRequest) (*mcpmcp.CallToolResult, error) {
		family, subtype, err := parseType(req)
		if err != nil {
			return mcpmcp.NewToolResultText(fmt.Sprintf("error: %s", err)), nil
		}

		var payload any
		if raw := mcpmcp.ParseString(req, "payload_json", ""); raw != "" {
			if err := json.Unmarshal([]byte(raw), &payload); err != nil {
				return mcpmcp.NewToolResultText(fmt.Sprintf("error: invalid payload_json: %s", err)), nil
			}
		}

		delivered := bus.Publish(nil, eventbus.NewType(family, subtype), payload)
		result, _ := json.Marshal(map[string]bool{"delivered": delivered})
		return mcpmcp.NewToolResultText(string(result)), nil
	}
}

func listSubscriptionsHandler(bus *eventbus.Bus) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcpmcp.CallToolRequest) (*mcpmcp.CallToolResult, error) {
		subs := bus.Global().Snapshot()
		type view struct {
			Handle  uint64           `json:"handle"`
			ID      uint64           `json:"id,omitempty"`
			Family  eventbus.Family  `json:"family"`
			Subtype eventbus.Subtype `json:"subtype"`
		}
		out := make([]view, 0, len(subs))
		for _, sub := range subs {
			filter := sub.GetFilter()
			out = append(out, view{Handle: sub.Handle(), ID: sub.ID(), Family: filter.Family, Subtype: filter.Subtype})
		}
		data, _ := json.Marshal(out)
		return mcpmcp.NewToolResultText(string(data)), nil
	}
}

func watchEventsHandler(srv *mcpserver.MCPServer, reg *SessionRegistry, bus *eventbus.Bus) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcpmcp.CallToolRequest) (*mcpmcp.CallToolResult, error) {
		family, subtype, err := parseType(req)
		if err != nil {
			return mcpmcp.NewToolResultText(fmt.Sprintf("error: %s", err)), nil
		}

		session := mcpserver.ClientSessionFromContext(ctx)
		if session == nil {
			return mcpmcp.NewToolResultText("error: no active session"), nil
		}
		sessionID := session.SessionID()

		ref, err := bus.SubscribePtr(nil, eventbus.NewType(family, subtype), eventbus.AsyncFnHandler(
			func(h eventbus.SubHandle, evt eventbus.Type, safe any) {
				params := map[string]any{
					"family":  evt.Family,
					"subtype": evt.Subtype,
					"name":    eventbus.String(evt),
					"payload": safe,
				}
				_ = srv.SendNotificationToSpecificClient(sessionID, "notifications/message", params)
			},
			nil, nil,
		))
		if err != nil {
			return mcpmcp.NewToolResultText(fmt.Sprintf("error: %s", err)), nil
		}

		reg.SetWatch(sessionID, ref)
		return mcpmcp.NewToolResultText(`{"ok":true}`), nil
	}
}

func unwatchEventsHandler(reg *SessionRegistry) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcpmcp.CallToolRequest) (*mcpmcp.CallToolResult, error) {
		session := mcpserver.ClientSessionFromContext(ctx)
		if session == nil {
			return mcpmcp.NewToolResultText("error: no active session"), nil
		}
		reg.ClearWatch(session.SessionID())
		return mcpmcp.NewToolResultText(`{"ok":true}`), nil
	}
}

func parseType(req mcpmcp.CallToolRequest) (eventbus.Family, eventbus.Subtype, error) {
	familyStr := mcpmcp.ParseString(req, "family", "")
	subtypeStr := mcpmcp.ParseString(req, "subtype", "0")

	familyN, err := strconv.ParseUint(familyStr, 10, 8)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid family: %w", err)
	}
	subtypeN, err := strconv.ParseUint(subtypeStr, 10, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid subtype: %w", err)
	}
	return eventbus.Family(familyN), eventbus.Subtype(subtypeN), nil
}
