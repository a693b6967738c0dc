package analysts

import (
	"context"
	"fmt"
	"strings"

	"github.com/oak/crypto-sentinel/internal/constant"
	"github.com/oak/crypto-sentinel/internal/llm"
	"github.com/oak/crypto-sentinel/internal/logger"
	"github.com/oak/crypto-sentinel/internal/model"
)

const defaultChiefPrompt = `你是首席分析师，负责整合技术分析师、市场分析师、基本面分析师和宏观分析师
四份报告，给出客观、专业、可操作的综合投资建议。注意平衡各方观点，重点关注各维度分析
的一致性和分歧点。`

// Chief formats and calls the chief analysis role. It never reads raw
// market data — only the four sub-analysts' string outputs carried on the
// context.
type Chief struct {
	caller llm.Caller
	prompt string
	log    *logger.ColorLogger
}

// NewChief builds the chief analyst.
func NewChief(caller llm.Caller, promptPath string, log *logger.ColorLogger) *Chief {
	return &Chief{
		caller: caller,
		prompt: loadPrompt(promptPath, defaultChiefPrompt, constant.AgentChief, log),
		log:    log,
	}
}

// Analyze concatenates the four sub-analyst reports under fixed headings.
func (c *Chief) Analyze(ctx context.Context, ac *model.AnalysisContext) string {
	userMessage := formatChiefMessage(ac)

	result, err := c.caller.Call(ctx, c.prompt, userMessage, constant.AgentChief)
	if err != nil {
		return fmt.Sprintf("❌ 首席分析师综合分析失败: %v", err)
	}
	return result
}

func formatChiefMessage(ac *model.AnalysisContext) string {
	symbol := ac.TargetSymbol

	orFallback := func(s, fallback string) string {
		if s == "" {
			return fallback
		}
		return s
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "请整合以下四个专业代理的分析报告，提供针对%s的全面投资建议：\n\n", symbol)

	sb.WriteString("=== 技术分析师报告 ===\n")
	sb.WriteString(orFallback(ac.TechnicalAnalysis, "暂无技术分析"))

	sb.WriteString("\n\n=== 市场分析师报告 ===\n")
	sb.WriteString(orFallback(ac.SentimentAnalysis, "暂无市场分析"))

	sb.WriteString("\n\n=== 基本面分析师报告 ===\n")
	sb.WriteString(orFallback(ac.FundamentalAnalysisResult, "暂无基本面分析"))

	sb.WriteString("\n\n=== 宏观分析师报告 ===\n")
	sb.WriteString(orFallback(ac.MacroAnalysisResult, "暂无宏观分析"))

	fmt.Fprintf(&sb, "\n\n请基于技术面、市场情绪、基本面和宏观面的综合分析，提供针对%s的全面投资建议。\n", symbol)
	sb.WriteString("注意平衡各方观点，给出客观专业的结论，重点关注各维度分析的一致性和分歧点。\n")
	fmt.Fprintf(&sb, "请提供具体、可操作的%s投资建议，避免空泛的表述。", symbol)

	return sb.String()
}
