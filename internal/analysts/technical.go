package analysts

import (
	"context"
	"fmt"
	"strings"

	"github.com/oak/crypto-sentinel/internal/constant"
	"github.com/oak/crypto-sentinel/internal/indicators"
	"github.com/oak/crypto-sentinel/internal/llm"
	"github.com/oak/crypto-sentinel/internal/logger"
	"github.com/oak/crypto-sentinel/internal/model"
)

const defaultTechnicalPrompt = `你是一位专业的技术分析师，擅长从K线数据和技术指标中解读市场走势。
请基于提供的SMA、RSI、MACD等指标数据，保持简洁专业，重点关注短期走势。`

const minCandlesForTechnical = 50

// Technical formats and calls the technical analysis role.
type Technical struct {
	caller llm.Caller
	prompt string
	log    *logger.ColorLogger
}

// NewTechnical builds the technical analyst, loading its prompt template
// from promptPath (or falling back to a default) per the teacher's idiom.
func NewTechnical(caller llm.Caller, promptPath string, log *logger.ColorLogger) *Technical {
	return &Technical{
		caller: caller,
		prompt: loadPrompt(promptPath, defaultTechnicalPrompt, constant.AgentTechnical, log),
		log:    log,
	}
}

// Analyze requires at least 50 candles for the target symbol; otherwise it
// returns a data-insufficient error string without calling the LLM.
func (t *Technical) Analyze(ctx context.Context, ac *model.AnalysisContext) string {
	if !ac.HasKlineData() {
		return "❌ 数据不足"
	}

	candles := ac.GetKlineData()
	if len(candles) < minCandlesForTechnical {
		return "❌ 数据不足"
	}

	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}

	snapshot := indicators.Compute(closes)
	userMessage := formatTechnicalMessage(ac.TargetSymbol, candles, closes, snapshot)

	result, err := t.caller.Call(ctx, t.prompt, userMessage, constant.AgentTechnical)
	if err != nil {
		return fmt.Sprintf("❌ 技术分析失败: %v", err)
	}
	return result
}

func formatTechnicalMessage(symbol string, candles []model.Candle, closes []float64, snap *indicators.Snapshot) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "请分析%s的K线数据：\n\n", symbol)
	sb.WriteString("最近10个完整周期的技术指标数据：\n\n")
	sb.WriteString(snap.FormatTable(closes, 10))
	sb.WriteString("\n请保持简洁专业，重点关注短期走势，并在报告中明确引用 SMA20、SMA50、RSI、MACD 数值。")
	return sb.String()
}
