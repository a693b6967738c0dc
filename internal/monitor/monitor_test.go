package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/oak/crypto-sentinel/internal/logger"
	"github.com/oak/crypto-sentinel/internal/model"
)

func init() {
	logger.Init(false)
}

type stubAnalyst struct {
	mu    sync.Mutex
	calls int
}

func (s *stubAnalyst) Analyze(ctx context.Context, ac *model.AnalysisContext) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return "technical report"
}

type stubTrader struct{}

func (stubTrader) Analyze(ctx context.Context, input TraderInput) string { return "trade decision" }

type stubMarketData struct{}

func (stubMarketData) FetchKline(ctx context.Context, symbol string) ([]model.Candle, error) {
	return nil, nil
}

type stubNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (s *stubNotifier) SendMessage(chatID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, text)
	return nil
}

func (s *stubNotifier) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

func TestStartRejectsDuplicate(t *testing.T) {
	analyst := &stubAnalyst{}
	notifier := &stubNotifier{}
	m := New(analyst, stubTrader{}, stubMarketData{}, notifier, "chat1", func() bool { return false }, logger.Global)

	ok, _ := m.Start("BTCUSDT", 60)
	if !ok {
		t.Fatalf("first Start() ok = false, want true")
	}

	ok, msg := m.Start("BTCUSDT", 60)
	if ok {
		t.Fatalf("second Start() ok = true, want false")
	}
	if msg == "" {
		t.Fatalf("expected a rejection message")
	}

	m.Stop("BTCUSDT")
}

func TestStopThenStartSucceeds(t *testing.T) {
	m := New(&stubAnalyst{}, stubTrader{}, stubMarketData{}, &stubNotifier{}, "chat1", func() bool { return false }, logger.Global)

	m.Start("ETHUSDT", 60)

	ok, _ := m.Stop("ETHUSDT")
	if !ok {
		t.Fatalf("Stop() ok = false, want true")
	}

	ok, _ = m.Start("ETHUSDT", 60)
	if !ok {
		t.Fatalf("Start() after Stop() ok = false, want true")
	}

	m.Stop("ETHUSDT")
}

func TestStopUnknownSymbolFails(t *testing.T) {
	m := New(&stubAnalyst{}, stubTrader{}, stubMarketData{}, &stubNotifier{}, "chat1", func() bool { return false }, logger.Global)

	ok, _ := m.Stop("SOLUSDT")
	if ok {
		t.Fatalf("Stop() on unknown symbol ok = true, want false")
	}
}

func TestListReflectsActiveMonitors(t *testing.T) {
	m := New(&stubAnalyst{}, stubTrader{}, stubMarketData{}, &stubNotifier{}, "chat1", func() bool { return false }, logger.Global)

	m.Start("BTCUSDT", 45)
	defer m.Stop("BTCUSDT")

	list := m.List()
	if len(list) != 1 {
		t.Fatalf("List() len = %d, want 1", len(list))
	}
	if list[0].Symbol != "BTCUSDT" || list[0].IntervalMinutes != 45 {
		t.Fatalf("List()[0] = %+v, unexpected", list[0])
	}
}

func TestCyclePushesReportAndStopsOnSignal(t *testing.T) {
	analyst := &stubAnalyst{}
	notifier := &stubNotifier{}
	m := New(analyst, stubTrader{}, stubMarketData{}, notifier, "chat1", func() bool { return false }, logger.Global)

	m.mu.Lock()
	e := &entry{active: true, intervalMinutes: 60, stop: make(chan struct{})}
	m.monitors["BTCUSDT"] = e
	m.mu.Unlock()

	m.cycle("BTCUSDT")

	if notifier.count() != 1 {
		t.Fatalf("notifier received %d messages, want 1", notifier.count())
	}

	m.Stop("BTCUSDT")
	select {
	case <-e.stop:
	case <-time.After(time.Second):
		t.Fatalf("stop channel was not closed")
	}
}

func TestCycleChainsTraderWhenAutoTradeEnabled(t *testing.T) {
	notifier := &stubNotifier{}
	m := New(&stubAnalyst{}, stubTrader{}, stubMarketData{}, notifier, "chat1", func() bool { return true }, logger.Global)

	m.mu.Lock()
	m.monitors["BTCUSDT"] = &entry{active: true, intervalMinutes: 60, stop: make(chan struct{})}
	m.mu.Unlock()

	m.cycle("BTCUSDT")

	if notifier.count() != 2 {
		t.Fatalf("notifier received %d messages, want 2 (technical + trader)", notifier.count())
	}
}
