// Package pipeline implements the comprehensive_analysis fan-out: technical
// analysis per symbol, market sentiment once, fundamentals per symbol,
// macro once, chief synthesis per symbol, then one trader call — grounded
// on the teacher's parallel-lambda graph in internal/agents/graph.go, but
// running analyst calls directly over goroutines instead of an eino graph
// since the control flow here is a fixed five-stage fan-out/fan-in rather
// than a reusable DAG.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/bytedance/sonic"

	"github.com/oak/crypto-sentinel/internal/analysts"
	"github.com/oak/crypto-sentinel/internal/logger"
	"github.com/oak/crypto-sentinel/internal/model"
	"github.com/oak/crypto-sentinel/internal/storage"
)

// MarketDataProvider is the opaque market-data interface the pipeline pulls
// from, per the collect_kline_data/collect_global_market_data contract.
type MarketDataProvider interface {
	FetchKline(ctx context.Context, symbol string) ([]model.Candle, error)
	FetchGlobalMarketData(ctx context.Context) (map[string]any, error)
	FetchFearGreedIndex(ctx context.Context) (map[string]any, error)
	FetchTrendingCoins(ctx context.Context) ([]map[string]any, error)
	FetchMajorCoinsPerformance(ctx context.Context) ([]map[string]any, error)
}

// AccountProvider supplies the trader role's account/position snapshot.
type AccountProvider interface {
	AccountBalanceJSON(ctx context.Context) string
	CurrentPositionsJSON(ctx context.Context) string
}

// Pipeline wires the six analyst roles to a market-data source and a
// persistence layer for recording chief-analyst outputs.
type Pipeline struct {
	Technical   *analysts.Technical
	Market      *analysts.Market
	Fundamental *analysts.Fundamental
	Macro       *analysts.Macro
	Chief       *analysts.Chief
	Trader      *analysts.Trader

	marketData MarketDataProvider
	account    AccountProvider
	store      *storage.Storage
	log        *logger.ColorLogger
}

// New builds a Pipeline from its six analyst roles and collaborators.
func New(
	technical *analysts.Technical,
	market *analysts.Market,
	fundamental *analysts.Fundamental,
	macro *analysts.Macro,
	chief *analysts.Chief,
	trader *analysts.Trader,
	marketData MarketDataProvider,
	account AccountProvider,
	store *storage.Storage,
	log *logger.ColorLogger,
) *Pipeline {
	return &Pipeline{
		Technical:   technical,
		Market:      market,
		Fundamental: fundamental,
		Macro:       macro,
		Chief:       chief,
		Trader:      trader,
		marketData:  marketData,
		account:     account,
		store:       store,
		log:         log,
	}
}

const noSymbolsPrompt = "请提供您想要分析的交易对，例如：分析 BTCUSDT 和 ETHUSDT"

// RunComprehensiveAnalysis runs the full eight-step algorithm and returns
// the concatenated research summary and trading report.
func (p *Pipeline) RunComprehensiveAnalysis(ctx context.Context, question string, symbols []string) string {
	if len(symbols) == 0 {
		return noSymbolsPrompt
	}

	// Steps 2 and 4 run in parallel with the per-symbol technical fan-out
	// (step 1); there is no shared mutable state between them.
	var wg sync.WaitGroup
	var marketSentiment, macroResult string
	var globalData, fearGreed map[string]any
	var trending, majorCoins []map[string]any

	wg.Add(1)
	go func() {
		defer wg.Done()
		globalData, _ = p.marketData.FetchGlobalMarketData(ctx)
		fearGreed, _ = p.marketData.FetchFearGreedIndex(ctx)
		trending, _ = p.marketData.FetchTrendingCoins(ctx)
		majorCoins, _ = p.marketData.FetchMajorCoinsPerformance(ctx)

		marketCtx := model.NewAnalysisContext("")
		marketCtx.GlobalMarketData = globalData
		marketCtx.FearGreedIndex = fearGreed
		marketCtx.TrendingCoins = trending
		marketCtx.MajorCoinsPerformance = majorCoins
		marketSentiment = p.Market.Analyze(ctx, marketCtx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		macroResult = p.Macro.Analyze(ctx)
	}()

	// Step 1 + step 3: technical and fundamental per symbol, each symbol
	// owns its own AnalysisContext exclusively.
	type symbolResult struct {
		symbol      string
		technical   string
		fundamental string
	}
	perSymbol := make([]symbolResult, len(symbols))

	var symWg sync.WaitGroup
	for i, sym := range symbols {
		symWg.Add(1)
		go func(i int, sym string) {
			defer symWg.Done()

			ac := model.NewAnalysisContext(sym)
			if candles, err := p.marketData.FetchKline(ctx, sym); err == nil {
				ac.KlineData[sym] = candles
			} else {
				p.log.Warning(fmt.Sprintf("获取 %s K线数据失败: %v", sym, err))
			}

			perSymbol[i] = symbolResult{
				symbol:      sym,
				technical:   p.Technical.Analyze(ctx, ac),
				fundamental: p.Fundamental.Analyze(ctx, ac),
			}
		}(i, sym)
	}
	symWg.Wait()
	wg.Wait()

	// Step 5: chief synthesis per symbol using the shared sentiment/macro
	// strings plus each symbol's own technical/fundamental output.
	symbolAnalyses := make(map[string]string, len(symbols))
	for _, r := range perSymbol {
		chiefCtx := model.NewAnalysisContext(r.symbol)
		chiefCtx.TechnicalAnalysis = r.technical
		chiefCtx.SentimentAnalysis = marketSentiment
		chiefCtx.FundamentalAnalysisResult = r.fundamental
		chiefCtx.MacroAnalysisResult = macroResult

		chiefOutput := p.Chief.Analyze(ctx, chiefCtx)
		symbolAnalyses[r.symbol] = chiefOutput

		if p.store != nil {
			if _, err := p.store.SaveAnalysisRecord(model.AnalysisRecord{
				AgentName: "首席分析师",
				Symbol:    r.symbol,
				Content:   chiefOutput,
				DataType:  "chief_analysis",
			}); err != nil {
				p.log.Warning(fmt.Sprintf("保存 %s 首席分析记录失败: %v", r.symbol, err))
			}
		}
	}

	// Step 6: concatenate per-symbol chief outputs.
	var researchSummary strings.Builder
	for _, sym := range symbols {
		fmt.Fprintf(&researchSummary, "\n================ %s 综合分析 ================\n", sym)
		researchSummary.WriteString(symbolAnalyses[sym])
		researchSummary.WriteString("\n")
	}

	// Step 7: call the trader with the research summary and question.
	var recentRecords []model.AnalysisRecord
	if p.store != nil {
		if records, err := p.store.GetAnalysisRecords("chief_analysis", "首席分析师", 10); err == nil {
			recentRecords = records
		}
	}

	accountJSON, positionsJSON := "{}", "{}"
	if p.account != nil {
		accountJSON = p.account.AccountBalanceJSON(ctx)
		positionsJSON = p.account.CurrentPositionsJSON(ctx)
	}

	traderOutput := p.Trader.Analyze(ctx, analysts.TradingInput{
		ResearchSummary:      researchSummary.String(),
		SymbolAnalyses:       symbolAnalyses,
		Question:             question,
		AccountBalanceJSON:   accountJSON,
		CurrentPositionsJSON: positionsJSON,
		RecentChiefRecords:   recentRecords,
	})

	// Step 8: combine research summary and trader output.
	return fmt.Sprintf("%s\n%s\n%s", researchSummary.String(), strings.Repeat("=", 60), traderOutput)
}

// SymbolAnalysesJSON is a debugging helper that marshals a
// symbol→chief-output map to JSON; nothing else in this module calls it.
func SymbolAnalysesJSON(symbolAnalyses map[string]string) string {
	data, err := sonic.Marshal(symbolAnalyses)
	if err != nil {
		return "{}"
	}
	return string(data)
}
