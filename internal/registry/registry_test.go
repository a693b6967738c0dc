package registry

import (
	"context"
	"strings"
	"testing"
)

type fakeProvider struct {
	lastSymbol  string
	lastSymbols []string
	lastSeconds int
}

func (f *fakeProvider) TechnicalAnalysis(ctx context.Context, symbol string) string {
	f.lastSymbol = symbol
	return "technical:" + symbol
}
func (f *fakeProvider) MarketSentimentAnalysis(ctx context.Context) string { return "sentiment" }
func (f *fakeProvider) FundamentalAnalysis(ctx context.Context, symbol string) string {
	return "fundamental:" + symbol
}
func (f *fakeProvider) MacroAnalysis(ctx context.Context) string { return "macro" }
func (f *fakeProvider) ComprehensiveAnalysis(ctx context.Context, question string, symbols []string) string {
	f.lastSymbols = symbols
	return "comprehensive"
}
func (f *fakeProvider) GetAccountStatus(ctx context.Context) string       { return "{}" }
func (f *fakeProvider) GetCurrentPositions(ctx context.Context) string   { return "{}" }
func (f *fakeProvider) TradingAnalysis(ctx context.Context, analysisResults, question string) string {
	return "trading"
}
func (f *fakeProvider) GetMarketData(ctx context.Context, symbols []string) string {
	f.lastSymbols = symbols
	return "{}"
}
func (f *fakeProvider) ManualTriggerAnalysis(ctx context.Context, symbol string) string {
	return "manual:" + symbol
}
func (f *fakeProvider) SendTelegramNotification(ctx context.Context, message string) string {
	return "sent"
}
func (f *fakeProvider) GetSystemStatus(ctx context.Context) string { return "{}" }
func (f *fakeProvider) SetMonitoringSymbols(ctx context.Context, primary, secondary []string) string {
	f.lastSymbols = primary
	return "ok"
}
func (f *fakeProvider) GetMonitoringSymbols(ctx context.Context) string { return "{}" }
func (f *fakeProvider) SetHeartbeatInterval(ctx context.Context, seconds int) string {
	f.lastSeconds = seconds
	return "ok"
}
func (f *fakeProvider) GetHeartbeatSettings(ctx context.Context) string { return "{}" }
func (f *fakeProvider) StartSymbolMonitor(ctx context.Context, symbol string, intervalMinutes int) string {
	f.lastSymbol = symbol
	f.lastSeconds = intervalMinutes
	return "started"
}
func (f *fakeProvider) StopSymbolMonitor(ctx context.Context, symbol string) string {
	f.lastSymbol = symbol
	return "stopped"
}
func (f *fakeProvider) GetSymbolMonitorsStatus(ctx context.Context) string { return "{}" }

func TestBuildHasNineteenCapabilities(t *testing.T) {
	reg := Build(&fakeProvider{})
	if len(reg) != 19 {
		t.Fatalf("Build() returned %d capabilities, want 19", len(reg))
	}
}

func TestTechnicalAnalysisDispatchNormalizesSymbol(t *testing.T) {
	p := &fakeProvider{}
	reg := Build(p)

	result := reg["technical_analysis"].Handler(map[string]any{"symbol": "btc"})
	if result != "technical:BTCUSDT" {
		t.Fatalf("handler result = %q, want technical:BTCUSDT", result)
	}
}

func TestSetHeartbeatIntervalValidatesRange(t *testing.T) {
	p := &fakeProvider{}
	reg := Build(p)

	tooLow := reg["set_heartbeat_interval"].Handler(map[string]any{"interval_seconds": 10})
	if !strings.HasPrefix(tooLow, "❌") {
		t.Fatalf("expected rejection for out-of-range interval, got %q", tooLow)
	}

	ok := reg["set_heartbeat_interval"].Handler(map[string]any{"interval_seconds": 120})
	if ok != "ok" {
		t.Fatalf("handler result = %q, want ok", ok)
	}
	if p.lastSeconds != 120 {
		t.Fatalf("lastSeconds = %d, want 120", p.lastSeconds)
	}
}

func TestStartSymbolMonitorDefaultsIntervalTo30(t *testing.T) {
	p := &fakeProvider{}
	reg := Build(p)

	result := reg["start_symbol_monitor"].Handler(map[string]any{"symbol": "ethusdt"})
	if result != "started" {
		t.Fatalf("handler result = %q, want started", result)
	}
	if p.lastSeconds != 30 {
		t.Fatalf("default interval = %d, want 30", p.lastSeconds)
	}
	if p.lastSymbol != "ETHUSDT" {
		t.Fatalf("lastSymbol = %q, want ETHUSDT", p.lastSymbol)
	}
}

func TestComprehensiveAnalysisParsesSymbolList(t *testing.T) {
	p := &fakeProvider{}
	reg := Build(p)

	reg["comprehensive_analysis"].Handler(map[string]any{
		"question": "怎么操作",
		"symbols":  []string{"btc", "eth"},
	})
	if len(p.lastSymbols) != 2 || p.lastSymbols[0] != "BTCUSDT" || p.lastSymbols[1] != "ETHUSDT" {
		t.Fatalf("lastSymbols = %v, want [BTCUSDT ETHUSDT]", p.lastSymbols)
	}
}

func TestMissingMarketDataSymbolReturnsError(t *testing.T) {
	p := &fakeProvider{}
	reg := Build(p)

	result := reg["get_market_data"].Handler(map[string]any{})
	if !strings.HasPrefix(result, "❌") {
		t.Fatalf("expected error string for missing symbol/symbols, got %q", result)
	}
}
