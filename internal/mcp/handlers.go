package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"homelink/internal/models"
	"homelink/internal/queue"

	"github.com/mark3labs/mcp-go/mcp"
)

type listDevicesOutput struct {
	Devices []models.Device `json:"devices"`
	Count   int             `json:"count"`
}

type listCommandsOutput struct {
	Commands []models.Command `json:"commands"`
	Count    int              `json:"count"`
}

type listLinksOutput struct {
	Links []models.CommandsLink `json:"links"`
	Count int                   `json:"count"`
}

func (s *Server) handleListDevices(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	devices, err := s.registry.List(ctx, s.caller, models.DeviceFilter{})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list devices: %s", err)), nil
	}
	return mcp.NewToolResultText(formatJSON(listDevicesOutput{Devices: devices, Count: len(devices)})), nil
}

func (s *Server) handleEnqueueCommand(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	deviceID, err := requiredInt(request, "device_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	component, err := requiredString(request, "component")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	action, err := requiredString(request, "action")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	req := queue.EnqueueRequest{
		DeviceID:    &deviceID,
		Data:        models.CommandPayload{Name: component, Action: action},
		Description: "mcp",
		SelfExecute: optionalBool(request, "self_execute"),
	}
	if v := optionalString(request, "scheduled_at"); v != "" {
		at, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return mcp.NewToolResultError("scheduled_at must be RFC3339"), nil
		}
		req.ScheduledAt = &at
	}
	if v := optionalString(request, "repeat_interval"); v != "" {
		d, err := models.ParseDuration(v)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid repeat_interval: %s", err)), nil
		}
		req.RepeatInterval = models.NewDuration(d)
	}

	cmd, err := s.queue.Enqueue(ctx, s.caller, req)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to enqueue command: %s", err)), nil
	}
	return mcp.NewToolResultText(formatJSON(cmd)), nil
}

func (s *Server) handleListPending(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cmds, err := s.queue.ListPending(ctx, s.caller, optionalBool(request, "all"))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list commands: %s", err)), nil
	}
	return mcp.NewToolResultText(formatJSON(listCommandsOutput{Commands: cmds, Count: len(cmds)})), nil
}

func (s *Server) handleCompleteCommand(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requiredInt(request, "id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cancel := optionalBool(request, "cancel")
	if err := s.queue.Complete(ctx, s.caller, id, cancel); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to complete command: %s", err)), nil
	}
	verb := "completed"
	if cancel {
		verb = "cancelled"
	}
	return mcp.NewToolResultText(fmt.Sprintf("command %d %s", id, verb)), nil
}

func (s *Server) handleListLinks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	links, err := s.links.List(ctx, s.caller)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list links: %s", err)), nil
	}
	return mcp.NewToolResultText(formatJSON(listLinksOutput{Links: links, Count: len(links)})), nil
}

func (s *Server) handleCreateLink(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	raw, err := json.Marshal(map[string]any{
		"triggers": args["triggers"],
		"results":  args["results"],
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var l models.CommandsLink
	if err := json.Unmarshal(raw, &l); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid link: %s", err)), nil
	}
	if v := optionalString(request, "ttl"); v != "" {
		d, err := models.ParseDuration(v)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid ttl: %s", err)), nil
		}
		l.TTL = models.NewDuration(d)
	}

	created, err := s.links.Create(ctx, s.caller, &l)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to create link: %s", err)), nil
	}
	return mcp.NewToolResultText(formatJSON(created)), nil
}

// --- helpers ---

func requiredString(request mcp.CallToolRequest, key string) (string, error) {
	v, ok := request.GetArguments()[key]
	if !ok || v == nil {
		return "", fmt.Errorf("required parameter %q is missing", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("parameter %q must be a non-empty string", key)
	}
	return s, nil
}

func requiredInt(request mcp.CallToolRequest, key string) (int64, error) {
	v, ok := request.GetArguments()[key]
	if !ok || v == nil {
		return 0, fmt.Errorf("required parameter %q is missing", key)
	}
	f, ok := v.(float64)
	if !ok || f != float64(int64(f)) || f <= 0 {
		return 0, fmt.Errorf("parameter %q must be a positive integer", key)
	}
	return int64(f), nil
}

func optionalString(request mcp.CallToolRequest, key string) string {
	s, _ := request.GetArguments()[key].(string)
	return s
}

func optionalBool(request mcp.CallToolRequest, key string) bool {
	b, _ := request.GetArguments()[key].(bool)
	return b
}

func formatJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"error":"failed to marshal response: %s"}`, err)
	}
	return string(b)
}
