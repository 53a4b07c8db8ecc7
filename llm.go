package tinychat

import (
	"context"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
)

// Define a custom type for context keys
type ContextKey string

// SystemInstruction is injected at the head of every completion request.
const SystemInstruction = "You are a helpful assistant."

// LLM defines the minimal contract required by the gateway to interact with
// a language-model provider. Implementations may add additional helper
// methods but only the operations below are relied upon by the rest of the
// codebase.
type LLM interface {
	// New issues a non-streaming chat completion request.
	New(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)

	// NewStreaming issues a streaming chat completion request, returning
	// an ssestream.Stream to consume the chunks.
	NewStreaming(ctx context.Context, params openai.ChatCompletionNewParams) *ssestream.Stream[openai.ChatCompletionChunk]
}

var _ LLM = &Provider{}

// Provider is an OpenAI-compatible completion client. BaseURL selects the
// upstream (DeepSeek in the default deployment); an empty BaseURL falls back
// to the SDK default.
type Provider struct {
	APIKey  string
	BaseURL string
	Model   string
	client  *openai.Client
}

func NewProvider(apiKey, baseURL, model string) *Provider {
	var client *openai.Client
	if baseURL != "" {
		client = openai.NewClient(option.WithBaseURL(baseURL), option.WithAPIKey(apiKey))
	} else {
		client = openai.NewClient(option.WithAPIKey(apiKey))
	}
	return &Provider{
		APIKey:  apiKey,
		BaseURL: baseURL,
		Model:   model,
		client:  client,
	}
}

func optsWithIds(ctx context.Context, opts []option.RequestOption) []option.RequestOption {
	if sessionID, ok := ctx.Value(ContextKey("sessionID")).(string); ok {
		opts = append(opts, option.WithJSONSet("custom_identifier", sessionID))
	}
	return opts
}

func (c *Provider) New(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	opts := []option.RequestOption{}
	opts = optsWithIds(ctx, opts)
	return c.client.Chat.Completions.New(ctx, params, opts...)
}

func (c *Provider) NewStreaming(ctx context.Context, params openai.ChatCompletionNewParams) *ssestream.Stream[openai.ChatCompletionChunk] {
	opts := []option.RequestOption{}
	opts = optsWithIds(ctx, opts)
	return c.client.Chat.Completions.NewStreaming(ctx, params, opts...)
}

// OpenAIMessages converts a stored message sequence into provider message
// params, flattening each message to its concatenated text content.
func OpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Text()))
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Text()))
		default:
			out = append(out, openai.UserMessage(m.Text()))
		}
	}
	return out
}

func GenerateSchema[T any]() interface{} {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	schema := reflector.Reflect(v)
	return schema
}
