package tinychat

// Wire types shared by the gateway and the Go client.

// ChatRequest is the raw body of POST /api/chat. Exactly one of the two
// request forms must be present; Resolve picks it apart once at the boundary.
type ChatRequest struct {
	// Incremental form: only the newest message plus the session id.
	ID      string   `json:"id,omitempty"`
	Message *Message `json:"message,omitempty"`

	// Legacy form: the full sequence, no session id.
	Messages []Message `json:"messages,omitempty"`
}

// IncrementalRequest carries the newest message for an existing session.
type IncrementalRequest struct {
	ID      string
	Message Message
}

// LegacyRequest carries a full message sequence with no session id.
type LegacyRequest struct {
	Messages []Message
}

// Resolve returns the tagged variant of the request. Exactly one of the two
// results is non-nil on success.
func (r *ChatRequest) Resolve() (*IncrementalRequest, *LegacyRequest, error) {
	if r.Message != nil && r.ID != "" {
		return &IncrementalRequest{ID: r.ID, Message: *r.Message}, nil, nil
	}
	if len(r.Messages) > 0 {
		return nil, &LegacyRequest{Messages: r.Messages}, nil
	}
	return nil, nil, ErrBadRequest
}

// StreamFrame is one chunk of the SSE response: incremental assistant
// content, then a terminal frame with Finished set.
type StreamFrame struct {
	Content   string `json:"content"`
	Finished  bool   `json:"finished"`
	SessionID string `json:"sessionId"`
}

// ErrorFrame is the structured error payload, both as a JSON error body and
// as an SSE error event once streaming has begun.
type ErrorFrame struct {
	Message string `json:"error"`
	Details string `json:"details,omitempty"`
}
