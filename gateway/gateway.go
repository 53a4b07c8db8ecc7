// Package gateway exposes the chat service over HTTP: session creation,
// history retrieval and the streaming completion endpoint.
package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/openai/openai-go"

	"github.com/boat-builder/tinychat"
)

const missingKeyError = "No DeepSeek API key configured. Please add DEEPSEEK_API_KEY to your .env file."
const providerError = "DeepSeek API error. Please check your API key and model configuration."

// Gateway resolves sessions, forwards conversations to the provider and
// persists each completed turn exactly once.
type Gateway struct {
	store  tinychat.Store
	llm    tinychat.LLM
	model  string
	apiKey string
	logger *slog.Logger

	titleMu sync.Mutex
	titles  map[string]string
}

func New(store tinychat.Store, llm tinychat.LLM, apiKey, model string, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		store:  store,
		llm:    llm,
		model:  model,
		apiKey: apiKey,
		logger: logger,
		titles: make(map[string]string),
	}
}

// Router wires the HTTP surface.
func (g *Gateway) Router() *gin.Engine {
	r := gin.Default()
	r.POST("/api/chat", g.PostChat)
	r.GET("/api/sessions", g.ListSessions)
	r.GET("/chat", g.NewChat)
	r.GET("/chat/:id", g.GetChat)
	return r
}

// NewChat is the session-less entry point: create an empty chat and redirect
// to its session-scoped URL.
func (g *Gateway) NewChat(c *gin.Context) {
	id, err := g.store.Create(c.Request.Context())
	if err != nil {
		g.logger.Error("Failed to create chat", "error", err)
		c.JSON(http.StatusInternalServerError, tinychat.ErrorFrame{Message: "Failed to create chat", Details: err.Error()})
		return
	}
	c.Redirect(http.StatusFound, "/chat/"+id)
}

// GetChat returns the persisted history for a session. An unknown id is an
// empty history, same as the store contract.
func (g *Gateway) GetChat(c *gin.Context) {
	id := c.Param("id")
	messages, err := g.store.Load(c.Request.Context(), id)
	if err != nil {
		g.logger.Error("Failed to load chat", "sessionID", id, "error", err)
		c.JSON(http.StatusInternalServerError, tinychat.ErrorFrame{Message: "Failed to load chat history", Details: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "messages": messages, "title": g.title(id)})
}

// ListSessions returns every persisted session with its generated title.
func (g *Gateway) ListSessions(c *gin.Context) {
	ids, err := g.store.ListSessions(c.Request.Context())
	if err != nil {
		g.logger.Error("Failed to list chats", "error", err)
		c.JSON(http.StatusInternalServerError, tinychat.ErrorFrame{Message: "Failed to list chats", Details: err.Error()})
		return
	}
	sessions := make([]gin.H, 0, len(ids))
	for _, id := range ids {
		sessions = append(sessions, gin.H{"id": id, "title": g.title(id)})
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// PostChat handles one turn: resolve the request form, load history, stream
// the provider response back as SSE frames and persist the full sequence
// once the stream ends.
func (g *Gateway) PostChat(c *gin.Context) {
	var req tinychat.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, tinychat.ErrorFrame{Message: "Invalid request body", Details: err.Error()})
		return
	}
	incremental, legacy, err := req.Resolve()
	if err != nil {
		c.JSON(http.StatusBadRequest, tinychat.ErrorFrame{Message: err.Error()})
		return
	}

	// Fail fast before any network call.
	if g.apiKey == "" {
		g.logger.Error("No API key configured")
		c.JSON(http.StatusInternalServerError, tinychat.ErrorFrame{Message: missingKeyError})
		return
	}

	var sessionID string
	var fullSequence []tinychat.Message
	if incremental != nil {
		sessionID = incremental.ID
		history, err := g.store.Load(c.Request.Context(), sessionID)
		if err != nil {
			g.logger.Error("Failed to load chat", "sessionID", sessionID, "error", err)
			c.JSON(http.StatusInternalServerError, tinychat.ErrorFrame{Message: "Failed to load chat history", Details: err.Error()})
			return
		}
		fullSequence = append(history, incremental.Message)
	} else {
		// Legacy callers send the whole sequence and get a fresh id for the
		// turn; no history is loaded.
		sessionID = tinychat.NewSessionID()
		fullSequence = legacy.Messages
	}

	ctx := context.WithValue(c.Request.Context(), tinychat.ContextKey("sessionID"), sessionID)
	params := openai.ChatCompletionNewParams{
		Messages: openai.F(append(
			[]openai.ChatCompletionMessageParamUnion{openai.SystemMessage(tinychat.SystemInstruction)},
			tinychat.OpenAIMessages(fullSequence)...,
		)),
		Model: openai.F(g.model),
	}

	stream := g.llm.NewStreaming(ctx, params)
	defer stream.Close()

	completion := openai.ChatCompletionAccumulator{}
	streamed := false
	for stream.Next() {
		chunk := stream.Current()
		completion.AddChunk(chunk)
		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			if !streamed {
				g.sseHeaders(c)
				streamed = true
			}
			c.SSEvent("message", tinychat.StreamFrame{
				Content:   chunk.Choices[0].Delta.Content,
				SessionID: sessionID,
			})
			c.Writer.Flush()
		}
	}
	if err := stream.Err(); err != nil {
		g.logger.Error("Provider stream failed", "sessionID", sessionID, "error", err)
		// Nothing is persisted for a failed turn.
		if !streamed {
			c.JSON(http.StatusInternalServerError, tinychat.ErrorFrame{Message: providerError, Details: err.Error()})
			return
		}
		c.SSEvent("error", tinychat.ErrorFrame{Message: providerError, Details: err.Error()})
		c.Writer.Flush()
		return
	}

	assistantText := ""
	if len(completion.Choices) > 0 {
		assistantText = completion.Choices[0].Message.Content
	}
	finalSequence := append(fullSequence, tinychat.NewAssistantMessage(assistantText))

	if err := g.store.Save(ctx, sessionID, finalSequence); err != nil {
		g.logger.Error("Failed to save chat", "sessionID", sessionID, "error", err)
		if !streamed {
			c.JSON(http.StatusInternalServerError, tinychat.ErrorFrame{Message: "Failed to save chat history", Details: err.Error()})
			return
		}
		c.SSEvent("error", tinychat.ErrorFrame{Message: "Failed to save chat history", Details: err.Error()})
		c.Writer.Flush()
		return
	}

	if !streamed {
		g.sseHeaders(c)
	}
	c.SSEvent("message", tinychat.StreamFrame{Finished: true, SessionID: sessionID})
	c.Writer.Flush()

	g.maybeNameSession(sessionID, finalSequence)
}

func (g *Gateway) sseHeaders(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
}

func (g *Gateway) title(id string) string {
	g.titleMu.Lock()
	defer g.titleMu.Unlock()
	return g.titles[id]
}

// maybeNameSession generates a title after the session's first completed
// turn. Best effort; a failure just leaves the session unnamed.
func (g *Gateway) maybeNameSession(id string, messages []tinychat.Message) {
	g.titleMu.Lock()
	_, named := g.titles[id]
	g.titleMu.Unlock()
	if named || len(messages) == 0 {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		title, err := tinychat.GenerateTitle(ctx, g.llm, g.model, messages)
		if err != nil {
			g.logger.Error("Failed to name session", "sessionID", id, "error", err)
			return
		}
		g.titleMu.Lock()
		g.titles[id] = title
		g.titleMu.Unlock()
		g.logger.Info("Session named", "sessionID", id, "title", title)
	}()
}
