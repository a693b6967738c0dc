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

const defaultMarketPrompt = `你是一位专业的市场情绪分析师，擅长从全球市场数据、恐贪指数、
热门趋势和主流币种表现中解读当前加密货币市场的整体情绪。请提供客观专业的评估。`

// Market formats and calls the market-sentiment analysis role. It runs once
// per comprehensive_analysis invocation, not per symbol.
type Market struct {
	caller llm.Caller
	prompt string
	log    *logger.ColorLogger
}

// NewMarket builds the market analyst.
func NewMarket(caller llm.Caller, promptPath string, log *logger.ColorLogger) *Market {
	return &Market{
		caller: caller,
		prompt: loadPrompt(promptPath, defaultMarketPrompt, constant.AgentMarket, log),
		log:    log,
	}
}

// Analyze formats the four market-sentiment sections and calls the LLM.
func (m *Market) Analyze(ctx context.Context, ac *model.AnalysisContext) string {
	userMessage := formatMarketSentimentMessage(ac)

	result, err := m.caller.Call(ctx, m.prompt, userMessage, constant.AgentMarket)
	if err != nil {
		return fmt.Sprintf("❌ 市场情绪分析失败: %v", err)
	}
	return result
}

func formatMarketSentimentMessage(ac *model.AnalysisContext) string {
	var sb strings.Builder
	sb.WriteString("请基于以下多维度数据分析当前加密货币市场情绪：\n\n")

	sb.WriteString("=== 全球市场数据 ===\n")
	sb.WriteString(formatGlobalData(ac.GlobalMarketData))
	sb.WriteString("\n\n")

	sb.WriteString("=== 恐贪指数 ===\n")
	sb.WriteString(formatFearGreed(ac.FearGreedIndex))
	sb.WriteString("\n\n")

	sb.WriteString("=== BTC/ETH主导率 ===\n")
	sb.WriteString(formatDominance(ac.GlobalMarketData))
	sb.WriteString("\n\n")

	sb.WriteString("=== 热门搜索趋势 ===\n")
	sb.WriteString(formatTrending(ac.TrendingCoins))
	sb.WriteString("\n\n")

	sb.WriteString("=== 主流币种表现 ===\n")
	sb.WriteString(formatMajorCoins(ac.MajorCoinsPerformance))
	sb.WriteString("\n\n")

	sb.WriteString("请提供客观专业的市场情绪评估，重点关注多个指标之间的相互验证。")
	return sb.String()
}

func formatGlobalData(global map[string]any) string {
	if global == nil {
		return "❌ 暂无全球市场数据"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "总市值: $%.0f\n", asFloat(global["total_market_cap_usd"]))
	fmt.Fprintf(&sb, "24H成交量: $%.0f\n", asFloat(global["total_volume_24h_usd"]))
	fmt.Fprintf(&sb, "24H市值变化: %.2f%%\n", asFloat(global["market_cap_change_percentage_24h_usd"]))
	fmt.Fprintf(&sb, "活跃加密货币: %.0f", asFloat(global["active_cryptocurrencies"]))
	return sb.String()
}

func formatFearGreed(fg map[string]any) string {
	if fg == nil {
		return "❌ 恐贪指数数据暂时不可用"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "当前指数: %.0f (%s)\n", asFloat(fg["value"]), asString(fg["classification"], "未知"))
	fmt.Fprintf(&sb, "数据源: %s\n", asString(fg["source"], "未知"))
	fmt.Fprintf(&sb, "更新时间: %s", asString(fg["timestamp"], "未知"))
	return sb.String()
}

func formatDominance(global map[string]any) string {
	if global == nil {
		return "❌ 主导率数据暂时不可用"
	}
	pct, ok := global["market_cap_percentage"].(map[string]any)
	if !ok {
		return "❌ 主导率数据暂时不可用"
	}

	btcDom := asFloat(pct["btc"])
	ethDom := asFloat(pct["eth"])

	var sb strings.Builder
	fmt.Fprintf(&sb, "BTC主导率: %.2f%%\n", btcDom)
	fmt.Fprintf(&sb, "ETH主导率: %.2f%%\n", ethDom)

	switch {
	case btcDom > 50:
		sb.WriteString("分析：BTC主导地位强势，市场相对保守")
	case btcDom < 40:
		sb.WriteString("分析：山寨币活跃，市场风险偏好上升")
	}
	return sb.String()
}

func formatTrending(trending []map[string]any) string {
	if len(trending) == 0 {
		return "❌ 暂无热门币种数据"
	}
	limit := len(trending)
	if limit > 5 {
		limit = 5
	}
	var lines []string
	for _, coin := range trending[:limit] {
		name := asString(coin["name"], asString(coin["symbol"], "Unknown"))
		symbol := strings.ToUpper(asString(coin["symbol"], ""))
		rank := asString(coin["market_cap_rank"], "?")
		lines = append(lines, fmt.Sprintf("%s (%s) [排名#%s]", name, symbol, rank))
	}
	return strings.Join(lines, "\n")
}

func formatMajorCoins(coins []map[string]any) string {
	if len(coins) == 0 {
		return "❌ 暂无主流币种数据"
	}
	var lines []string
	for _, coin := range coins {
		symbol := strings.ToUpper(asString(coin["symbol"], ""))
		name := asString(coin["name"], "Unknown")
		price := asFloat(coin["current_price"])
		change := asFloat(coin["price_change_24h"])
		volume := asFloat(coin["total_volume"])
		lines = append(lines, fmt.Sprintf("%s (%s): $%.2f (%+.2f%%) 成交量:$%.0f", name, symbol, price, change, volume))
	}
	return strings.Join(lines, "\n")
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}

func asString(v any, fallback string) string {
	s, ok := v.(string)
	if !ok || s == "" {
		return fallback
	}
	return s
}
