package analysts

import (
	"context"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/oak/crypto-sentinel/internal/constant"
	"github.com/oak/crypto-sentinel/internal/llm"
	"github.com/oak/crypto-sentinel/internal/logger"
	"github.com/oak/crypto-sentinel/internal/model"
)

const defaultTraderPrompt = `你是专业的期货交易员，基于研究部门的多币种分析报告制定合约交易策略。
必须从 LONG、SHORT、HOLD、CLOSE_LONG、CLOSE_SHORT 中选择一项，并给出仓位大小、杠杆、
止损和目标点位。没有把握不如观望，宁可错过也不做不确定的交易。`

const tradingToolsDescription = `
**币安USDT永续合约交易工具**

1. **账户余额查询** (get_account_balance) - 总钱包余额、可用余额、未实现盈亏、保证金余额
2. **持仓信息查询** (get_current_positions) - 持仓币种和方向、数量、入场价、标记价格、杠杆、强平价格
3. **市价开仓/平仓** - 支持做多(LONG)和做空(SHORT)，支持市价单和限价单
4. **风险管理** - 止损单、止盈单、仓位大小控制、杠杆倍数调整
`

// TradingInput is the research-department handoff the trader role consumes.
type TradingInput struct {
	ResearchSummary      string
	SymbolAnalyses       map[string]string
	Question             string
	AccountBalanceJSON   string
	CurrentPositionsJSON string
	RecentChiefRecords   []model.AnalysisRecord
}

// Trader formats and calls the trader analysis role.
type Trader struct {
	caller llm.Caller
	prompt string
	log    *logger.ColorLogger
}

// NewTrader builds the trader analyst.
func NewTrader(caller llm.Caller, promptPath string, log *logger.ColorLogger) *Trader {
	return &Trader{
		caller: caller,
		prompt: loadPrompt(promptPath, defaultTraderPrompt, constant.AgentTrader, log),
		log:    log,
	}
}

// Analyze composes the trading decision prompt and calls the LLM.
func (t *Trader) Analyze(ctx context.Context, input TradingInput) string {
	primarySymbol := "BTCUSDT"
	for sym := range input.SymbolAnalyses {
		primarySymbol = sym
		break
	}

	userMessage := formatTradingMessage(input, primarySymbol)

	result, err := t.caller.Call(ctx, t.prompt, userMessage, constant.AgentTrader)
	if err != nil {
		return fmt.Sprintf("❌ 交易分析生成失败: %v", err)
	}
	return fmt.Sprintf("💼 永续交易员分析报告\n\n%s", result)
}

func formatTradingMessage(input TradingInput, primarySymbol string) string {
	recentJSON, err := sonic.MarshalIndent(input.RecentChiefRecords, "", "  ")
	if err != nil {
		recentJSON = []byte("[]")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "基于研究部门的多币种分析报告，重点针对 %s 制定合约交易策略：\n\n", primarySymbol)

	sb.WriteString("=== 研究部门综合报告 ===\n")
	sb.WriteString(input.ResearchSummary)
	sb.WriteString("\n\n")

	sb.WriteString("=== 可用交易工具 ===\n")
	sb.WriteString(tradingToolsDescription)
	sb.WriteString("\n")

	sb.WriteString("=== 当前账户状态 ===\n")
	fmt.Fprintf(&sb, "余额信息: %s\n", orEmpty(input.AccountBalanceJSON, "{}"))
	fmt.Fprintf(&sb, "当前持仓: %s\n\n", orEmpty(input.CurrentPositionsJSON, "{}"))

	sb.WriteString("=== 历史交易参考 ===\n")
	sb.Write(recentJSON)
	sb.WriteString("\n\n")

	sb.WriteString("=== 用户问题 ===\n")
	sb.WriteString(input.Question)
	sb.WriteString("\n\n")

	sb.WriteString("请给出交易方向（LONG/SHORT/HOLD/CLOSE_LONG/CLOSE_SHORT）、仓位大小、杠杆倍数、")
	sb.WriteString("入场点位、止损点位、止盈点位，以及风险提示和执行建议。")

	return sb.String()
}

func orEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
