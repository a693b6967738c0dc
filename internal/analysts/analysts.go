// Package analysts implements the six analyst roles: technical, market,
// fundamental, macro, chief, and trader. Each role owns a prompt template
// and a formatter that turns an AnalysisContext into one LLM user message.
package analysts

import (
	"fmt"
	"os"
	"strings"

	"github.com/oak/crypto-sentinel/internal/logger"
)

// loadPrompt reads a role's system prompt from promptPath, falling back to
// fallback when the path is empty, unreadable, or blank, following the
// teacher's loadPromptFromFile pattern in internal/agents/graph.go.
func loadPrompt(promptPath, fallback string, roleName string, log *logger.ColorLogger) string {
	if promptPath == "" {
		return fallback
	}

	content, err := os.ReadFile(promptPath)
	if err != nil {
		log.Warning(fmt.Sprintf("无法读取 %s Prompt 文件 %s: %v，使用默认 Prompt", roleName, promptPath, err))
		return fallback
	}

	trimmed := strings.TrimSpace(string(content))
	if trimmed == "" {
		log.Warning(fmt.Sprintf("%s Prompt 文件 %s 为空，使用默认 Prompt", roleName, promptPath))
		return fallback
	}

	log.Success(fmt.Sprintf("成功加载 %s Prompt: %s", roleName, promptPath))
	return trimmed
}
