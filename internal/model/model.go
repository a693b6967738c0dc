// Package model holds the data types shared across the orchestration core.
package model

import (
	"strings"
	"time"
)

// NormalizeSymbol upper-cases a trading pair and appends the USDT quote
// asset if the caller only supplied the base asset.
func NormalizeSymbol(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "/", "")
	if s == "" {
		return s
	}
	if !strings.HasSuffix(s, "USDT") {
		s += "USDT"
	}
	return s
}

// Candle is one OHLCV bar. Timestamp is monotone non-decreasing within a
// sequence.
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// AnalysisContext is the construct-once, read-many carrier passed to every
// analyst role formatter. Analysts must never mutate it.
type AnalysisContext struct {
	TargetSymbol string
	KlineData    map[string][]Candle

	GlobalMarketData      map[string]any
	FearGreedIndex        map[string]any
	TrendingCoins         []map[string]any
	MajorCoinsPerformance []map[string]any

	MacroData map[string]any

	TechnicalAnalysis         string
	SentimentAnalysis         string
	FundamentalAnalysisResult string
	MacroAnalysisResult       string
}

// NewAnalysisContext builds an empty context for the given symbol.
func NewAnalysisContext(symbol string) *AnalysisContext {
	return &AnalysisContext{
		TargetSymbol: symbol,
		KlineData:    make(map[string][]Candle),
	}
}

// HasKlineData reports whether kline data for the target symbol is present
// and non-empty.
func (c *AnalysisContext) HasKlineData() bool {
	rows, ok := c.KlineData[c.TargetSymbol]
	return ok && len(rows) > 0
}

// HasMarketData reports whether global market data has been populated.
func (c *AnalysisContext) HasMarketData() bool {
	return c.GlobalMarketData != nil
}

// HasMacroData reports whether macro data has been populated.
func (c *AnalysisContext) HasMacroData() bool {
	return c.MacroData != nil
}

// GetKlineData returns the candle sequence for the target symbol, or nil.
func (c *AnalysisContext) GetKlineData() []Candle {
	return c.KlineData[c.TargetSymbol]
}

// CapabilityHandler is the signature every registered capability satisfies.
// It never returns a Go error across the registry boundary: failures are
// encoded into the returned string as a leading "❌ " line.
type CapabilityHandler func(args map[string]any) string

// CapabilityDescriptor declares one invokable action.
type CapabilityDescriptor struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON-Schema-shaped parameter description
	Handler     CapabilityHandler
}

// ChatMessage is one row of a chat's conversation log.
type ChatMessage struct {
	ID          int64
	ChatID      string
	Role        string
	Content     string
	RoundNumber int
	IsSummary   bool
	Metadata    string
	Archived    bool
	CreatedAt   time.Time
}

// SymbolMonitor tracks a per-symbol recurring technical-analysis worker.
type SymbolMonitor struct {
	Symbol          string
	IntervalMinutes int
	Active          bool
	StartedAt       time.Time
}

// AnalysisRecord is a persisted analyst output, used both for audit and as
// recent-history input to the trader role.
type AnalysisRecord struct {
	ID        int64
	Timestamp time.Time
	AgentName string
	Symbol    string
	Content   string
	Summary   string
	DataType  string
}
