package analysts

import (
	"context"
	"fmt"

	"github.com/oak/crypto-sentinel/internal/constant"
	"github.com/oak/crypto-sentinel/internal/llm"
	"github.com/oak/crypto-sentinel/internal/logger"
	"github.com/oak/crypto-sentinel/internal/model"
)

const defaultFundamentalPrompt = `你是一位基本面分析师，专注于加密货币项目的基本面情况，
包括市场地位、成交量和价格表现，请提供简洁专业的评估。`

// Fundamental formats and calls the fundamental analysis role. Its user
// message is deliberately minimal — the original implementation never
// enriches this role beyond a symbol and a one-line context hint.
type Fundamental struct {
	caller llm.Caller
	prompt string
	log    *logger.ColorLogger
}

// NewFundamental builds the fundamental analyst.
func NewFundamental(caller llm.Caller, promptPath string, log *logger.ColorLogger) *Fundamental {
	return &Fundamental{
		caller: caller,
		prompt: loadPrompt(promptPath, defaultFundamentalPrompt, constant.AgentFundamental, log),
		log:    log,
	}
}

// Analyze sends the minimal symbol-and-context user message. When kline
// data happens to be present on the context it adds a one-line price/volume
// snapshot; the formatter never fetches data of its own.
func (f *Fundamental) Analyze(ctx context.Context, ac *model.AnalysisContext) string {
	priceLine := "价格/成交量: 暂无数据"
	if candles := ac.GetKlineData(); len(candles) > 0 {
		last := candles[len(candles)-1]
		priceLine = fmt.Sprintf("价格/成交量: 最新价 %.4f, 最新成交量 %.2f", last.Close, last.Volume)
	}

	userMessage := fmt.Sprintf(
		"请分析%s的基本面情况：\n基于当前价格表现、成交量和市场地位进行分析。\n\n币种: %s\n%s",
		ac.TargetSymbol, ac.TargetSymbol, priceLine,
	)

	result, err := f.caller.Call(ctx, f.prompt, userMessage, constant.AgentFundamental)
	if err != nil {
		return fmt.Sprintf("❌ 基本面分析失败: %v", err)
	}
	return result
}
