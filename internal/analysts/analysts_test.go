package analysts

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/oak/crypto-sentinel/internal/logger"
	"github.com/oak/crypto-sentinel/internal/model"
)

type stubCaller struct {
	response string
	err      error
	lastRole string
}

func (s *stubCaller) Call(ctx context.Context, systemPrompt, userMessage, agentName string) (string, error) {
	s.lastRole = agentName
	return s.response, s.err
}

func init() {
	logger.Init(false)
}

func TestTechnicalAnalyzeInsufficientData(t *testing.T) {
	caller := &stubCaller{response: "ok"}
	tech := NewTechnical(caller, "", logger.Global)

	ac := model.NewAnalysisContext("BTCUSDT")
	ac.KlineData["BTCUSDT"] = []model.Candle{{Timestamp: time.Now(), Close: 100}}

	got := tech.Analyze(context.Background(), ac)
	if got != "❌ 数据不足" {
		t.Fatalf("Analyze() = %q, want insufficient-data message", got)
	}
}

func TestTechnicalAnalyzeWithEnoughCandles(t *testing.T) {
	caller := &stubCaller{response: "SMA20 RSI MACD all bullish"}
	tech := NewTechnical(caller, "", logger.Global)

	ac := model.NewAnalysisContext("BTCUSDT")
	candles := make([]model.Candle, 60)
	price := 100.0
	for i := range candles {
		price += 1
		candles[i] = model.Candle{Timestamp: time.Now(), Close: price}
	}
	ac.KlineData["BTCUSDT"] = candles

	got := tech.Analyze(context.Background(), ac)
	if got != caller.response {
		t.Fatalf("Analyze() = %q, want %q", got, caller.response)
	}
	if caller.lastRole != "技术分析师" {
		t.Fatalf("agentName = %q, want 技术分析师", caller.lastRole)
	}
}

func TestChiefAnalyzeConcatenatesAllFourReports(t *testing.T) {
	caller := &stubCaller{response: "final verdict"}
	chief := NewChief(caller, "", logger.Global)

	ac := model.NewAnalysisContext("ETHUSDT")
	ac.TechnicalAnalysis = "tech-report"
	ac.SentimentAnalysis = "sentiment-report"
	ac.FundamentalAnalysisResult = "fundamental-report"
	ac.MacroAnalysisResult = "macro-report"

	got := chief.Analyze(context.Background(), ac)
	if got != "final verdict" {
		t.Fatalf("Analyze() = %q, want %q", got, "final verdict")
	}

	msg := formatChiefMessage(ac)
	for _, want := range []string{"tech-report", "sentiment-report", "fundamental-report", "macro-report"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("formatChiefMessage() missing %q in:\n%s", want, msg)
		}
	}
}

func TestFundamentalAnalyzeMinimalMessage(t *testing.T) {
	caller := &stubCaller{response: "ok"}
	fund := NewFundamental(caller, "", logger.Global)

	ac := model.NewAnalysisContext("SOLUSDT")
	got := fund.Analyze(context.Background(), ac)
	if got != "ok" {
		t.Fatalf("Analyze() = %q, want %q", got, "ok")
	}
}

func TestTraderAnalyzePrependsReportHeader(t *testing.T) {
	caller := &stubCaller{response: "HOLD"}
	trader := NewTrader(caller, "", logger.Global)

	got := trader.Analyze(context.Background(), TradingInput{
		ResearchSummary: "summary",
		SymbolAnalyses:  map[string]string{"BTCUSDT": "chief text"},
		Question:        "怎么操作？",
	})

	if !strings.Contains(got, "💼 永续交易员分析报告") || !strings.Contains(got, "HOLD") {
		t.Fatalf("Analyze() = %q, missing report header or LLM output", got)
	}
}
