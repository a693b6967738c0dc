package pipeline

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/oak/crypto-sentinel/internal/analysts"
	"github.com/oak/crypto-sentinel/internal/logger"
	"github.com/oak/crypto-sentinel/internal/model"
)

type fakeCaller struct {
	responses map[string]string
}

func (f *fakeCaller) Call(ctx context.Context, systemPrompt, userMessage, agentName string) (string, error) {
	if r, ok := f.responses[agentName]; ok {
		return r, nil
	}
	return agentName + ":ok", nil
}

type fakeMarketData struct{}

func (fakeMarketData) FetchKline(ctx context.Context, symbol string) ([]model.Candle, error) {
	candles := make([]model.Candle, 60)
	price := 100.0
	for i := range candles {
		price += 1
		candles[i] = model.Candle{Timestamp: time.Now(), Close: price}
	}
	return candles, nil
}

func (fakeMarketData) FetchGlobalMarketData(ctx context.Context) (map[string]any, error) {
	return map[string]any{"total_market_cap_usd": 1.0e12}, nil
}

func (fakeMarketData) FetchFearGreedIndex(ctx context.Context) (map[string]any, error) {
	return map[string]any{"value": 55.0, "classification": "Greed"}, nil
}

func (fakeMarketData) FetchTrendingCoins(ctx context.Context) ([]map[string]any, error) {
	return nil, nil
}

func (fakeMarketData) FetchMajorCoinsPerformance(ctx context.Context) ([]map[string]any, error) {
	return nil, nil
}

type fakeAccount struct{}

func (fakeAccount) AccountBalanceJSON(ctx context.Context) string    { return `{"success":true}` }
func (fakeAccount) CurrentPositionsJSON(ctx context.Context) string { return `{"success":true,"positions":[]}` }

func init() {
	logger.Init(false)
}

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	caller := &fakeCaller{responses: map[string]string{
		"首席分析师":  "chief-verdict",
		"交易员分析师": "HOLD",
	}}

	return New(
		analysts.NewTechnical(caller, "", logger.Global),
		analysts.NewMarket(caller, "", logger.Global),
		analysts.NewFundamental(caller, "", logger.Global),
		analysts.NewMacro(caller, "", logger.Global),
		analysts.NewChief(caller, "", logger.Global),
		analysts.NewTrader(caller, "", logger.Global),
		fakeMarketData{},
		fakeAccount{},
		nil,
		logger.Global,
	)
}

func TestRunComprehensiveAnalysisNoSymbols(t *testing.T) {
	p := newTestPipeline(t)
	got := p.RunComprehensiveAnalysis(context.Background(), "问题", nil)
	if got != noSymbolsPrompt {
		t.Fatalf("RunComprehensiveAnalysis() = %q, want the no-symbols prompt", got)
	}
}

func TestRunComprehensiveAnalysisCoversAllSymbols(t *testing.T) {
	p := newTestPipeline(t)
	got := p.RunComprehensiveAnalysis(context.Background(), "怎么操作", []string{"BTCUSDT", "ETHUSDT"})

	for _, want := range []string{"BTCUSDT", "ETHUSDT", "chief-verdict", "HOLD"} {
		if !strings.Contains(got, want) {
			t.Fatalf("RunComprehensiveAnalysis() missing %q in:\n%s", want, got)
		}
	}
}
