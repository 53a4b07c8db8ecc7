package tinychat

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

// Client is the HTTP transport behind a Conversation: it dispatches the
// newest message to the gateway and feeds the streamed response back into
// the state machine.
type Client struct {
	endpoint string
	http     *http.Client
	logger   *slog.Logger
}

// NewClient builds a client for a gateway chat endpoint, e.g.
// "http://localhost:8080/api/chat".
func NewClient(endpoint string) *Client {
	return &Client{
		endpoint: endpoint,
		http:     http.DefaultClient,
		logger:   slog.Default(),
	}
}

// Send runs one full turn: appends the user message, posts it with the
// session id, and applies streamed chunks until the terminal frame. The
// input is only consumed after a successful dispatch, so a rejected send
// leaves the caller's buffer untouched. Cancelling ctx aborts the turn; the
// partially streamed assistant message does not survive in the view.
func (c *Client) Send(ctx context.Context, conv *Conversation, text string) error {
	msg, err := conv.Send(text)
	if err != nil {
		return err
	}

	body, err := json.Marshal(ChatRequest{ID: conv.ID(), Message: &msg})
	if err != nil {
		conv.Fail(err)
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		conv.Fail(err)
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		conv.Fail(err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var frame ErrorFrame
		if decodeErr := json.NewDecoder(resp.Body).Decode(&frame); decodeErr == nil && frame.Message != "" {
			err = errors.New(frame.Message)
		} else {
			err = fmt.Errorf("chat request failed with status %d", resp.StatusCode)
		}
		conv.Fail(err)
		return err
	}

	return c.consume(conv, resp)
}

// consume reads SSE frames off the response body and drives the
// conversation callbacks in transmission order.
func (c *Client) consume(conv *Conversation, resp *http.Response) error {
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	event := ""
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			switch event {
			case "message":
				var frame StreamFrame
				if err := json.Unmarshal([]byte(data), &frame); err != nil {
					conv.Fail(err)
					return err
				}
				if frame.Content != "" {
					conv.ApplyChunk(frame.Content)
				}
				if frame.Finished {
					conv.Finish()
					return nil
				}
			case "error":
				var frame ErrorFrame
				if err := json.Unmarshal([]byte(data), &frame); err != nil {
					conv.Fail(err)
					return err
				}
				err := errors.New(frame.Message)
				conv.Fail(err)
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		conv.Fail(err)
		return err
	}
	err := errors.New("stream ended without a terminal frame")
	conv.Fail(err)
	return err
}
