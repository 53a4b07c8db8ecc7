package tinychat

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go"
)

// sessionTitle is the structured output for naming a session.
type sessionTitle struct {
	Title string `json:"title" jsonschema_description:"A concise name for the conversation, at most six words"`
}

var sessionTitleSchema = GenerateSchema[sessionTitle]()

// GenerateTitle names a session from its opening exchange with a
// non-streaming structured-output completion.
func GenerateTitle(ctx context.Context, llm LLM, model string, messages []Message) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("no messages to name the session from")
	}

	prompt := "Name this conversation in at most six words."
	developerMessage := openai.ChatCompletionDeveloperMessageParam{
		Role: openai.F(openai.ChatCompletionDeveloperMessageParamRoleDeveloper),
		Content: openai.F([]openai.ChatCompletionContentPartTextParam{
			openai.TextPart(prompt),
		}),
	}
	params := openai.ChatCompletionNewParams{
		Messages: openai.F(append(OpenAIMessages(messages), openai.ChatCompletionMessageParamUnion(developerMessage))),
		Model:    openai.F(model),
		ResponseFormat: openai.F[openai.ChatCompletionNewParamsResponseFormatUnion](
			openai.ResponseFormatJSONSchemaParam{
				Type: openai.F(openai.ResponseFormatJSONSchemaTypeJSONSchema),
				JSONSchema: openai.F(openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   openai.F("session_title"),
					Schema: openai.F(sessionTitleSchema),
					Strict: openai.Bool(true),
				}),
			},
		),
	}

	completion, err := llm.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("failed to generate session title: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("empty completion while naming session")
	}

	var title sessionTitle
	if err := json.Unmarshal([]byte(completion.Choices[0].Message.Content), &title); err != nil {
		return "", fmt.Errorf("failed to decode session title: %w", err)
	}
	return title.Title, nil
}
