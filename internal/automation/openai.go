package automation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"homelink/internal/config"
	"homelink/internal/models"

	"github.com/sashabaranov/go-openai"
)

const (
	defaultTimeout = 30 * time.Second

	generateInstructions = `You control a home automation system. Reply with ONLY a JSON object:
{"text": string, "commands": [{"device_id": int, "data": {"name": string, "action": string}, "scheduled_at": RFC3339 or null, "repeat_interval": "HH:MM:SS" or null}], "capability_override": null or {"device_id": int, "data": {"components": [...]}}}.
Only use devices, components and actions from the catalog.`

	suggestInstructions = `You design automations for a home. Reply with ONLY a JSON object:
{"links": [{"triggers": [{"device_id": int, "component_name": string, "action": string, "satisfied_at": null}], "results": [{"device_id": int, "data": {"name": string, "action": string}}], "ttl": "HH:MM:SS" or null}]}.
Only use devices, components and actions from the catalog.`
)

// Client talks to an OpenAI-compatible chat completions endpoint
type Client struct {
	api   *openai.Client
	model string
}

// NewClient creates a chat completions client from config. BaseURL may point at any compatible server.
func NewClient(cfg config.LLMConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	oc.HTTPClient = &http.Client{Timeout: timeout}
	return &Client{api: openai.NewClientWithConfig(oc), model: cfg.Model}
}

// Generate asks the model for commands matching prompt
func (c *Client) Generate(ctx context.Context, prompt string, catalog []models.Device) (*Generation, error) {
	content, err := c.complete(ctx, generateInstructions, catalog, prompt)
	if err != nil {
		return nil, err
	}
	var gen Generation
	if err := json.Unmarshal([]byte(content), &gen); err != nil {
		return nil, fmt.Errorf("%w: decode generation: %v", models.ErrUpstreamGeneration, err)
	}
	return &gen, nil
}

// SuggestLinks asks the model for links that would make sense for catalog
func (c *Client) SuggestLinks(ctx context.Context, catalog []models.Device) ([]models.CommandsLink, error) {
	content, err := c.complete(ctx, suggestInstructions, catalog, "Suggest useful automations.")
	if err != nil {
		return nil, err
	}
	var out struct {
		Links []models.CommandsLink `json:"links"`
	}
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return nil, fmt.Errorf("%w: decode links: %v", models.ErrUpstreamGeneration, err)
	}
	return out.Links, nil
}

func (c *Client) complete(ctx context.Context, instructions string, catalog []models.Device, prompt string) (string, error) {
	catalogJSON, err := json.Marshal(catalog)
	if err != nil {
		return "", err
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: instructions},
			{Role: openai.ChatMessageRoleSystem, Content: "Device catalog: " + string(catalogJSON)},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrUpstreamGeneration, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty response", models.ErrUpstreamGeneration)
	}
	return resp.Choices[0].Message.Content, nil
}
