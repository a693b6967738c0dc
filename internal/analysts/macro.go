package analysts

import (
	"context"
	"fmt"

	"github.com/oak/crypto-sentinel/internal/constant"
	"github.com/oak/crypto-sentinel/internal/llm"
	"github.com/oak/crypto-sentinel/internal/logger"
)

const defaultMacroPrompt = `你是一位宏观经济分析师，专注于全球宏观经济环境对加密货币市场的影响，
包括利率政策、通胀数据、地缘政治事件和传统金融市场联动。请提供专业的宏观层面解读。`

const defaultMacroUserMessage = "请基于当前全球宏观经济环境，分析对加密货币市场的潜在影响。"

// Macro formats and calls the macro analysis role. It takes no per-call
// inputs beyond the prompt template, and runs at most once per calendar day
// (enforced by Controller.MacroAnalysis, which caches the day's result).
type Macro struct {
	caller llm.Caller
	prompt string
	log    *logger.ColorLogger
}

// NewMacro builds the macro analyst.
func NewMacro(caller llm.Caller, promptPath string, log *logger.ColorLogger) *Macro {
	return &Macro{
		caller: caller,
		prompt: loadPrompt(promptPath, defaultMacroPrompt, constant.AgentMacro, log),
		log:    log,
	}
}

// Analyze calls the LLM with the free-form macro prompt.
func (m *Macro) Analyze(ctx context.Context) string {
	result, err := m.caller.Call(ctx, m.prompt, defaultMacroUserMessage, constant.AgentMacro)
	if err != nil {
		return fmt.Sprintf("❌ 宏观分析失败: %v", err)
	}
	return result
}
