package mcp

import "github.com/mark3labs/mcp-go/mcp"

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool("list_devices",
			mcp.WithDescription("List the devices you own or share through a space, with their components and actions"),
		),
		s.handleListDevices,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("enqueue_command",
			mcp.WithDescription("Queue a command for a device. The device picks it up on its next poll."),
			mcp.WithNumber("device_id",
				mcp.Required(),
				mcp.Description("Target device id"),
			),
			mcp.WithString("component",
				mcp.Required(),
				mcp.Description("Component name, e.g. LED"),
			),
			mcp.WithString("action",
				mcp.Required(),
				mcp.Description("Action declared by the component, e.g. on"),
			),
			mcp.WithString("scheduled_at",
				mcp.Description("RFC3339 time before which the device should not see the command"),
			),
			mcp.WithString("repeat_interval",
				mcp.Description("Repeat interval as HH:MM:SS, requires scheduled_at"),
			),
			mcp.WithBoolean("self_execute",
				mcp.Description("Resolve immediately instead of delivering, to report an event (default false)"),
			),
		),
		s.handleEnqueueCommand,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("list_pending",
			mcp.WithDescription("List commands waiting for your devices"),
			mcp.WithBoolean("all",
				mcp.Description("Include executed and far-future commands (default false)"),
			),
		),
		s.handleListPending,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("complete_command",
			mcp.WithDescription("Mark a command executed, or cancel it without running links"),
			mcp.WithNumber("id",
				mcp.Required(),
				mcp.Description("Command id"),
			),
			mcp.WithBoolean("cancel",
				mcp.Description("Delete the command without evaluating links (default false)"),
			),
		),
		s.handleCompleteCommand,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("list_links",
			mcp.WithDescription("List your command links"),
		),
		s.handleListLinks,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("create_link",
			mcp.WithDescription("Create a link that queues result commands once every trigger was seen within the ttl"),
			mcp.WithArray("triggers",
				mcp.Required(),
				mcp.Description(`Triggers, e.g. [{"device_id": 1, "component_name": "Door", "action": "opened"}]`),
			),
			mcp.WithArray("results",
				mcp.Required(),
				mcp.Description(`Results, e.g. [{"device_id": 2, "data": {"name": "LED", "action": "on"}}]`),
			),
			mcp.WithString("ttl",
				mcp.Description("Maximum time between the first and last trigger, HH:MM:SS"),
			),
		),
		s.handleCreateLink,
	)
}
