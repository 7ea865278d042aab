package network

import "encoding/json"

// Request is the one message a client writes on a stream before closing its
// write side.
type Request struct {
	Type string          `json:"type"`
	Body json.RawMessage `json:"body,omitempty"`
}

// Response is the server's single reply. Status mirrors the HTTP status the
// same call would get.
type Response struct {
	OK     bool            `json:"ok"`
	Status int             `json:"status,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}
