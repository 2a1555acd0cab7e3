package agent

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"homelink/internal/models"

	"github.com/go-resty/resty/v2"
)

// Client calls the command API with device account credentials
type Client struct {
	http *resty.Client
}

// NewClient creates an API client. pollTimeout bounds one long poll.
func NewClient(baseURL, username, password string, pollTimeout time.Duration) *Client {
	rc := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetBasicAuth(username, password).
		SetTimeout(pollTimeout + 10*time.Second).
		SetHeader("Accept", "application/json")
	return &Client{http: rc}
}

// Poll waits up to timeout for pending commands
func (c *Client) Poll(ctx context.Context, timeout time.Duration) ([]models.Command, error) {
	var cmds []models.Command
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("timeout", strconv.FormatFloat(timeout.Seconds(), 'f', -1, 64)).
		SetResult(&cmds).
		Get("/api/commands/poll")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return cmds, nil
}

// Complete acknowledges a command; cancel skips link evaluation
func (c *Client) Complete(ctx context.Context, id int64, cancel bool) error {
	req := c.http.R().
		SetContext(ctx).
		SetPathParam("id", strconv.FormatInt(id, 10))
	if cancel {
		req.SetQueryParam("cancel", "1")
	}
	return check(req.Delete("/api/commands/{id}"))
}

// Report records an event raised by the device as a self-executing command
func (c *Client) Report(ctx context.Context, p models.CommandPayload) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{"data": p, "self_execute": true}).
		Post("/api/commands")
	return check(resp, err)
}

func check(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("%s %s: status %d: %s", resp.Request.Method, resp.Request.URL,
			resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	return nil
}
