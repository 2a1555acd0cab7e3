package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"homelink/internal/config"
	"homelink/internal/engine"
	"homelink/internal/memstore"
	"homelink/internal/models"
	"homelink/internal/queue"
	"homelink/internal/registry"

	"github.com/mark3labs/mcp-go/mcp"
)

func newTestServer(t *testing.T) (*Server, *models.Device) {
	t.Helper()
	ctx := context.Background()
	store := memstore.New()
	u := &models.User{Username: "alice"}
	if err := store.CreateUser(ctx, u, "x"); err != nil {
		t.Fatal(err)
	}
	caller := models.HumanCaller(u.ID)
	reg := registry.NewRegistry(store)
	dev, err := reg.Register(ctx, caller, registry.RegisterRequest{
		Name: "lamp",
		Data: json.RawMessage(`{"components":[{"name":"LED","actions":["on","off"]}]}`),
	})
	if err != nil {
		t.Fatal(err)
	}
	q := queue.NewQueue(store, reg, config.QueueConfig{
		Lookahead:          time.Hour,
		PollInterval:       10 * time.Millisecond,
		DefaultPollTimeout: time.Second,
		MaxPollTimeout:     time.Second,
	})
	q.SetResolver(engine.NewEngine(store, q, config.EngineConfig{MaxRetries: 3, RetryBackoff: time.Millisecond}))
	return NewServer(reg, q, engine.NewLinkService(store, reg), caller), dev
}

func call(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("empty result")
	}
	switch c := res.Content[0].(type) {
	case mcp.TextContent:
		return c.Text
	case *mcp.TextContent:
		return c.Text
	}
	t.Fatalf("unexpected content %T", res.Content[0])
	return ""
}

func TestEnqueueAndListPending(t *testing.T) {
	s, dev := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleEnqueueCommand(ctx, call(map[string]any{
		"device_id": float64(dev.ID),
		"component": "LED",
		"action":    "on",
	}))
	if err != nil || res.IsError {
		t.Fatalf("enqueue failed: %v %s", err, resultText(t, res))
	}

	res, _ = s.handleListPending(ctx, call(nil))
	var out listCommandsOutput
	if err := json.Unmarshal([]byte(resultText(t, res)), &out); err != nil {
		t.Fatal(err)
	}
	if out.Count != 1 || out.Commands[0].Data.Action != "on" {
		t.Fatalf("unexpected pending %+v", out)
	}

	res, _ = s.handleCompleteCommand(ctx, call(map[string]any{"id": float64(out.Commands[0].ID)}))
	if res.IsError || !strings.Contains(resultText(t, res), "completed") {
		t.Fatalf("unexpected completion result %s", resultText(t, res))
	}
}

func TestEnqueueValidation(t *testing.T) {
	s, dev := newTestServer(t)
	cases := []map[string]any{
		{"component": "LED", "action": "on"},
		{"device_id": 1.5, "component": "LED", "action": "on"},
		{"device_id": float64(dev.ID), "action": "on"},
		{"device_id": float64(dev.ID), "component": "LED", "action": "on", "scheduled_at": "tomorrow"},
		{"device_id": float64(999), "component": "LED", "action": "on"},
	}
	for i, args := range cases {
		res, err := s.handleEnqueueCommand(context.Background(), call(args))
		if err != nil {
			t.Fatal(err)
		}
		if !res.IsError {
			t.Errorf("case %d: expected tool error", i)
		}
	}
}

func TestCreateLink(t *testing.T) {
	s, dev := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleCreateLink(ctx, call(map[string]any{
		"triggers": []any{map[string]any{"device_id": float64(dev.ID), "component_name": "LED", "action": "on"}},
		"results":  []any{map[string]any{"device_id": float64(dev.ID), "data": map[string]any{"name": "LED", "action": "off"}}},
		"ttl":      "00:01:00",
	}))
	if err != nil || res.IsError {
		t.Fatalf("create failed: %v %s", err, resultText(t, res))
	}
	var l models.CommandsLink
	if err := json.Unmarshal([]byte(resultText(t, res)), &l); err != nil {
		t.Fatal(err)
	}
	if l.OwnerID != s.caller.OwnerID || l.TTL == nil || l.TTL.Duration != time.Minute {
		t.Fatalf("unexpected link %+v", l)
	}

	res, _ = s.handleListLinks(ctx, call(nil))
	var out listLinksOutput
	_ = json.Unmarshal([]byte(resultText(t, res)), &out)
	if out.Count != 1 {
		t.Fatalf("expected one link, got %+v", out)
	}
}
