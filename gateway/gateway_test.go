package gateway

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/packages/ssestream"

	"github.com/boat-builder/tinychat"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// scriptedDecoder feeds canned provider events into an ssestream.Stream.
type scriptedDecoder struct {
	events []ssestream.Event
	pos    int
	err    error
}

func (d *scriptedDecoder) Next() bool {
	if d.pos < len(d.events) {
		d.pos++
		return true
	}
	return false
}

func (d *scriptedDecoder) Event() ssestream.Event {
	return d.events[d.pos-1]
}

func (d *scriptedDecoder) Close() error { return nil }
func (d *scriptedDecoder) Err() error   { return d.err }

func chunkEvent(content string) ssestream.Event {
	data := fmt.Sprintf(`{"id":"chatcmpl-1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":%q}}]}`, content)
	return ssestream.Event{Data: []byte(data)}
}

type fakeLLM struct {
	chunks      []string
	streamErr   error
	streamCalls int
}

func (f *fakeLLM) New(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	return &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: `{"title":"Friendly greetings"}`}},
		},
	}, nil
}

func (f *fakeLLM) NewStreaming(ctx context.Context, params openai.ChatCompletionNewParams) *ssestream.Stream[openai.ChatCompletionChunk] {
	f.streamCalls++
	if f.streamErr != nil {
		return ssestream.NewStream[openai.ChatCompletionChunk](&scriptedDecoder{err: f.streamErr}, nil)
	}
	events := make([]ssestream.Event, 0, len(f.chunks))
	for _, content := range f.chunks {
		events = append(events, chunkEvent(content))
	}
	return ssestream.NewStream[openai.ChatCompletionChunk](&scriptedDecoder{events: events}, nil)
}

func newTestGateway(t *testing.T, llm tinychat.LLM, apiKey string) (*Gateway, tinychat.Store) {
	t.Helper()
	store, err := tinychat.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return New(store, llm, apiKey, "deepseek-chat", nil), store
}

func postChat(t *testing.T, g *Gateway, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	g.Router().ServeHTTP(w, req)
	return w
}

// sseFrames parses the message frames and error frames out of an SSE body.
func sseFrames(t *testing.T, body string) ([]tinychat.StreamFrame, []tinychat.ErrorFrame) {
	t.Helper()
	var frames []tinychat.StreamFrame
	var errFrames []tinychat.ErrorFrame
	event := ""
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			switch event {
			case "message":
				var frame tinychat.StreamFrame
				if err := json.Unmarshal([]byte(data), &frame); err != nil {
					t.Fatalf("bad message frame %q: %v", data, err)
				}
				frames = append(frames, frame)
			case "error":
				var frame tinychat.ErrorFrame
				if err := json.Unmarshal([]byte(data), &frame); err != nil {
					t.Fatalf("bad error frame %q: %v", data, err)
				}
				errFrames = append(errFrames, frame)
			}
		}
	}
	return frames, errFrames
}

func TestMissingAPIKeyFailsFast(t *testing.T) {
	llm := &fakeLLM{chunks: []string{"Hi"}}
	g, store := newTestGateway(t, llm, "")

	msg := tinychat.NewUserMessage("Hello")
	w := postChat(t, g, tinychat.ChatRequest{ID: "abc123", Message: &msg})

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	var frame tinychat.ErrorFrame
	if err := json.Unmarshal(w.Body.Bytes(), &frame); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if !strings.Contains(frame.Message, "No DeepSeek API key configured") {
		t.Fatalf("error = %q, want the missing-key message", frame.Message)
	}
	if llm.streamCalls != 0 {
		t.Fatal("no provider call may happen without a key")
	}
	ids, err := store.ListSessions(context.Background())
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(ids) != 0 {
		t.Fatal("nothing may be persisted without a key")
	}
}

func TestTurnStreamsAndPersists(t *testing.T) {
	llm := &fakeLLM{chunks: []string{"Hi", " there"}}
	g, store := newTestGateway(t, llm, "sk-test")

	msg := tinychat.NewUserMessage("Hello")
	w := postChat(t, g, tinychat.ChatRequest{ID: "abc123", Message: &msg})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	frames, errFrames := sseFrames(t, w.Body.String())
	if len(errFrames) != 0 {
		t.Fatalf("unexpected error frames: %+v", errFrames)
	}
	if len(frames) != 3 {
		t.Fatalf("have %d frames, want 3: %+v", len(frames), frames)
	}
	if frames[0].Content != "Hi" || frames[1].Content != " there" {
		t.Fatalf("chunk contents out of order: %+v", frames)
	}
	if !frames[2].Finished {
		t.Fatal("missing terminal frame")
	}
	for _, frame := range frames {
		if frame.SessionID != "abc123" {
			t.Fatalf("frame carries session %q, want abc123", frame.SessionID)
		}
	}

	messages, err := store.Load(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("persisted %d messages, want 2", len(messages))
	}
	if messages[0].Role != tinychat.RoleUser || messages[0].Text() != "Hello" {
		t.Fatalf("first persisted message = %+v", messages[0])
	}
	if messages[1].Role != tinychat.RoleAssistant || messages[1].Text() != "Hi there" {
		t.Fatalf("second persisted message = %+v", messages[1])
	}
}

func TestTurnAppendsToHistory(t *testing.T) {
	llm := &fakeLLM{chunks: []string{"Fine, thanks"}}
	g, store := newTestGateway(t, llm, "sk-test")

	history := []tinychat.Message{
		tinychat.NewUserMessage("Hello"),
		tinychat.NewAssistantMessage("Hi there"),
	}
	if err := store.Save(context.Background(), "abc123", history); err != nil {
		t.Fatalf("Save: %v", err)
	}

	msg := tinychat.NewUserMessage("How are you?")
	w := postChat(t, g, tinychat.ChatRequest{ID: "abc123", Message: &msg})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	messages, err := store.Load(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(messages) != 4 {
		t.Fatalf("persisted %d messages, want 4", len(messages))
	}
	if messages[2].Text() != "How are you?" || messages[3].Text() != "Fine, thanks" {
		t.Fatalf("history order broken: %+v", messages)
	}
}

func TestProviderFailurePersistsNothing(t *testing.T) {
	llm := &fakeLLM{streamErr: fmt.Errorf("upstream unreachable")}
	g, store := newTestGateway(t, llm, "sk-test")

	msg := tinychat.NewUserMessage("Hello")
	w := postChat(t, g, tinychat.ChatRequest{ID: "abc123", Message: &msg})

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	var frame tinychat.ErrorFrame
	if err := json.Unmarshal(w.Body.Bytes(), &frame); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if !strings.Contains(frame.Message, "DeepSeek API error") {
		t.Fatalf("error = %q, want the provider-error message", frame.Message)
	}
	if frame.Details == "" {
		t.Fatal("expected a diagnostic detail string")
	}

	messages, err := store.Load(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(messages) != 0 {
		t.Fatal("a failed turn must not be persisted")
	}
}

func TestLegacyRequestAllocatesFreshID(t *testing.T) {
	llm := &fakeLLM{chunks: []string{"Hi there"}}
	g, store := newTestGateway(t, llm, "sk-test")

	w := postChat(t, g, tinychat.ChatRequest{
		Messages: []tinychat.Message{tinychat.NewUserMessage("Hello")},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	frames, _ := sseFrames(t, w.Body.String())
	if len(frames) == 0 {
		t.Fatal("no frames streamed")
	}
	sessionID := frames[0].SessionID
	if sessionID == "" {
		t.Fatal("legacy request must be assigned a session id")
	}

	messages, err := store.Load(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("persisted %d messages under %s, want 2", len(messages), sessionID)
	}
}

func TestEmptyRequestRejected(t *testing.T) {
	g, _ := newTestGateway(t, &fakeLLM{}, "sk-test")

	w := postChat(t, g, tinychat.ChatRequest{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestNewChatRedirects(t *testing.T) {
	g, store := newTestGateway(t, &fakeLLM{}, "sk-test")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/chat", nil)
	g.Router().ServeHTTP(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", w.Code)
	}
	location := w.Header().Get("Location")
	if !strings.HasPrefix(location, "/chat/") {
		t.Fatalf("redirect location = %q", location)
	}
	id := strings.TrimPrefix(location, "/chat/")

	messages, err := store.Load(context.Background(), id)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(messages) != 0 {
		t.Fatalf("fresh session has %d messages, want 0", len(messages))
	}
}

func TestGetChatReturnsHistory(t *testing.T) {
	g, store := newTestGateway(t, &fakeLLM{}, "sk-test")

	history := []tinychat.Message{tinychat.NewUserMessage("Hello")}
	if err := store.Save(context.Background(), "abc123", history); err != nil {
		t.Fatalf("Save: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/chat/abc123", nil)
	g.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp struct {
		ID       string             `json:"id"`
		Messages []tinychat.Message `json:"messages"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID != "abc123" || len(resp.Messages) != 1 || resp.Messages[0].Text() != "Hello" {
		t.Fatalf("unexpected history response: %+v", resp)
	}
}

func TestGetChatUnknownIDIsEmpty(t *testing.T) {
	g, _ := newTestGateway(t, &fakeLLM{}, "sk-test")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/chat/nope", nil)
	g.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp struct {
		Messages []tinychat.Message `json:"messages"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Messages) != 0 {
		t.Fatalf("unknown id returned %d messages, want 0", len(resp.Messages))
	}
}
