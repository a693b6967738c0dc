// Package constant holds small sentinel values shared across packages.
package constant

const (
	BlankStr = ""

	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"

	DataTypeTechnical  = "technical_analysis"
	DataTypeSentiment  = "market_sentiment_analysis"
	DataTypeFundamental = "fundamental_analysis"
	DataTypeMacro      = "macro_analysis"
	DataTypeChief      = "chief_analysis"
	DataTypeTrader     = "trading_analysis"

	AgentTechnical   = "技术分析师"
	AgentMarket      = "市场分析师"
	AgentFundamental = "基本面分析师"
	AgentMacro       = "宏观分析师"
	AgentChief       = "首席分析师"
	AgentTrader      = "交易员分析师"
)
