package mcp

import (
	"context"
	"encoding/json"
	"testing"

	mcpmcp "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyang/eventmesh/internal/eventbus"
)

func makeReq(args map[string]any) mcpmcp.CallToolRequest {
	var req mcpmcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(r *mcpmcp.CallToolResult) string {
	if r == nil || len(r.Content) == 0 {
		return ""
	}
	b, _ := json.Marshal(r.Content[0])
	var m map[string]any
	_ = json.Unmarshal(b, &m)
	if text, ok := m["text"].(string); ok {
		return text
	}
	return ""
}

func TestParseType(t *testing.T) {
	family, subtype, err := parseType(makeReq(map[string]any{"family": "1", "subtype": "2"}))
	require.NoError(t, err)
	assert.Equal(t, eventbus.Family(1), family)
	assert.Equal(t, eventbus.Subtype(2), subtype)
}

func TestParseType_DefaultsSubtypeToZero(t *testing.T) {
	_, subtype, err := parseType(makeReq(map[string]any{"family": "1"}))
	require.NoError(t, err)
	assert.Equal(t, eventbus.Subtype(0), subtype)
}

func TestParseType_RejectsNonNumericFamily(t *testing.T) {
	_, _, err := parseType(makeReq(map[string]any{"family": "nope"}))
	assert.Error(t, err)
}

func TestPublishEventHandler_DeliversAndReportsSuccess(t *testing.T) {
	bus := eventbus.NewBus()
	received := make(chan any, 1)
	_, err := bus.Subscribe(nil, eventbus.NewType(3, 1), eventbus.Sync(func(h eventbus.SubHandle, evt eventbus.Type, payload any) {
		received <- payload
	}, nil, nil))
	require.NoError(t, err)

	handler := publishEventHandler(bus)
	result, err := handler(context.Background(), makeReq(map[string]any{
		"family":       "3",
		"subtype":      "1",
		"payload_json": `{"hello":"world"}`,
	}))
	require.NoError(t, err)
	assert.Contains(t, resultText(result), `"delivered":true`)

	select {
	case payload := <-received:
		assert.Equal(t, map[string]any{"hello": "world"}, payload)
	default:
		t.Fatal("sync handler was never invoked")
	}
}

func TestPublishEventHandler_InvalidFamilyReturnsErrorText(t *testing.T) {
	bus := eventbus.NewBus()
	handler := publishEventHandler(bus)
	result, err := handler(context.Background(), makeReq(map[string]any{"family": "not-a-number", "subtype": "1"}))
	require.NoError(t, err)
	assert.Contains(t, resultText(result), "error:")
}

func TestListSubscriptionsHandler_ReflectsBusState(t *testing.T) {
	bus := eventbus.NewBus()
	_, err := bus.Subscribe(nil, eventbus.NewType(5, 1), eventbus.Sync(func(eventbus.SubHandle, eventbus.Type, any) {}, nil, nil).WithID(9))
	require.NoError(t, err)

	handler := listSubscriptionsHandler(bus)
	result, err := handler(context.Background(), makeReq(nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(result), `"id":9`)
}

func TestUnwatchEventsHandler_NoSessionInContext(t *testing.T) {
	reg := NewSessionRegistry()
	handler := unwatchEventsHandler(reg)
	result, err := handler(context.Background(), makeReq(nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(result), "error: no active session")
}
