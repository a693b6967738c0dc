package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"

	"github.com/oak/crypto-sentinel/internal/logger"
)

// ClaudeCaller talks to the Anthropic Messages API directly. No teacher or
// pack repo touches this wire format, so this is plain net/http rather than
// an adapted library client.
type ClaudeCaller struct {
	apiKey     string
	baseURL    string
	model      string
	log        *logger.ColorLogger
	httpClient *http.Client
}

// NewClaudeCaller builds a Caller bound to one Claude deployment.
func NewClaudeCaller(apiKey, baseURL, model string, log *logger.ColorLogger) *ClaudeCaller {
	return &ClaudeCaller{
		apiKey:     apiKey,
		baseURL:    baseURL,
		model:      model,
		log:        log,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	System    string          `json:"system,omitempty"`
	Messages  []claudeMessage `json:"messages"`
}

type claudeContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type claudeResponse struct {
	Content []claudeContentBlock `json:"content"`
	Usage   struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Call sends one system+user turn to the Messages API and returns the
// concatenated text of the reply's content blocks.
func (c *ClaudeCaller) Call(ctx context.Context, systemPrompt, userMessage, agentName string) (string, error) {
	body := claudeRequest{
		Model:     c.model,
		MaxTokens: 4096,
		System:    systemPrompt,
		Messages:  []claudeMessage{{Role: "user", Content: userMessage}},
	}
	payload, err := sonic.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal claude request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build claude request: %w", err)
	}
	req.Header.Set("content-type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	c.log.ToolCall(fmt.Sprintf("claude:%s", agentName))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("claude request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read claude response: %w", err)
	}

	text, usage, err := parseClaudeResponse(raw, resp.StatusCode)
	if err != nil {
		return "", err
	}

	c.log.Debug(fmt.Sprintf("%s token 使用: 输入 %d, 输出 %d", agentName, usage.InputTokens, usage.OutputTokens))
	return text, nil
}

// parseClaudeResponse extracts the concatenated text content from a Messages
// API response body, surfacing API-level and transport-level errors alike.
func parseClaudeResponse(raw []byte, statusCode int) (string, struct {
	InputTokens  int
	OutputTokens int
}, error) {
	var usage struct {
		InputTokens  int
		OutputTokens int
	}

	var parsed claudeResponse
	if err := sonic.Unmarshal(raw, &parsed); err != nil {
		return "", usage, fmt.Errorf("unmarshal claude response: %w", err)
	}
	if parsed.Error != nil {
		return "", usage, fmt.Errorf("claude api error (%s): %s", parsed.Error.Type, parsed.Error.Message)
	}
	if statusCode != http.StatusOK {
		return "", usage, fmt.Errorf("claude api returned status %d", statusCode)
	}

	var out bytes.Buffer
	for _, block := range parsed.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}

	usage.InputTokens = parsed.Usage.InputTokens
	usage.OutputTokens = parsed.Usage.OutputTokens
	return out.String(), usage, nil
}
