package internet_bridge

import "encoding/json"

const (
	msgRegister = "register"
	msgRequest  = "request"
	msgResponse = "response"

	// ServerIDHeader selects the agent a public request is relayed to
	ServerIDHeader = "X-Server-ID"
)

type registerMsg struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type requestMsg struct {
	Type    string            `json:"type"`
	ReqID   string            `json:"reqId"`
	Method  string            `json:"method"`
	Path    string            `json:"path"`
	Query   string            `json:"query,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    json.RawMessage   `json:"body,omitempty"`
}

type responseMsg struct {
	Type   string          `json:"type"`
	ReqID  string          `json:"reqId"`
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body,omitempty"`
}

// envelope is decoded first to dispatch on type
type envelope struct {
	Type string `json:"type"`
}

// forwardedHeaders are copied between the public request and the local API
var forwardedHeaders = []string{"Authorization", "Content-Type", "X-Request-ID"}
