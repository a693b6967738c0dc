package llm

import (
	"context"
	"fmt"

	openaiComponent "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/schema"

	"github.com/oak/crypto-sentinel/internal/logger"
)

// DoubaoCaller talks to a Doubao (or any OpenAI-compatible) endpoint through
// eino-ext's openai chat-model component, the same component the teacher
// uses for its trader decision call.
type DoubaoCaller struct {
	apiKey  string
	baseURL string
	model   string
	log     *logger.ColorLogger
}

// NewDoubaoCaller builds a Caller bound to one Doubao-compatible deployment.
func NewDoubaoCaller(apiKey, baseURL, model string, log *logger.ColorLogger) *DoubaoCaller {
	return &DoubaoCaller{apiKey: apiKey, baseURL: baseURL, model: model, log: log}
}

// Call sends one system+user turn and returns the assistant's reply text.
func (d *DoubaoCaller) Call(ctx context.Context, systemPrompt, userMessage, agentName string) (string, error) {
	chatModel, err := openaiComponent.NewChatModel(ctx, &openaiComponent.ChatModelConfig{
		APIKey:  d.apiKey,
		BaseURL: d.baseURL,
		Model:   d.model,
	})
	if err != nil {
		return "", fmt.Errorf("init doubao chat model: %w", err)
	}

	messages := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(userMessage),
	}

	d.log.ToolCall(fmt.Sprintf("doubao:%s", agentName))
	resp, err := chatModel.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("doubao generate: %w", err)
	}

	if resp.ResponseMeta != nil && resp.ResponseMeta.Usage != nil {
		d.log.Debug(fmt.Sprintf("%s token 使用: %d", agentName, resp.ResponseMeta.Usage.TotalTokens))
	}
	return resp.Content, nil
}
