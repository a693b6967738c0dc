package controller

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/oak/crypto-sentinel/internal/analysts"
	"github.com/oak/crypto-sentinel/internal/config"
	"github.com/oak/crypto-sentinel/internal/logger"
	"github.com/oak/crypto-sentinel/internal/pipeline"
	"github.com/oak/crypto-sentinel/internal/storage"
)

func init() {
	logger.Init(false)
}

type stubCaller struct {
	calls    int
	response string
}

func (s *stubCaller) Call(ctx context.Context, systemPrompt, userMessage, agentName string) (string, error) {
	s.calls++
	return s.response, nil
}

func newTestController(t *testing.T) (*Controller, *stubCaller) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := storage.NewStorage(dbPath)
	if err != nil {
		t.Fatalf("NewStorage() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	caller := &stubCaller{response: "宏观分析结果"}
	macro := analysts.NewMacro(caller, "", logger.Global)
	pl := pipeline.New(nil, nil, nil, macro, nil, nil, nil, nil, store, logger.Global)

	cfg := &config.Config{
		DynamicConfigPath: filepath.Join(t.TempDir(), "dynamic_config.json"),
		PrimarySymbols:    []string{"BTCUSDT"},
		HeartbeatIntervalS: 300,
	}

	c := New(cfg, logger.Global, store, nil, pl, nil, nil)
	return c, caller
}

func TestSetMonitoringSymbolsRejectsBadFormat(t *testing.T) {
	c, _ := newTestController(t)

	msg := c.SetMonitoringSymbols(context.Background(), []string{"BTC"}, nil)
	if !strings.HasPrefix(msg, "❌") {
		t.Fatalf("message = %q, want a rejection", msg)
	}
}

func TestSetMonitoringSymbolsUpdatesAndPersists(t *testing.T) {
	c, _ := newTestController(t)

	msg := c.SetMonitoringSymbols(context.Background(), []string{"BTCUSDT", "ETHUSDT"}, []string{"SOLUSDT"})
	if !strings.HasPrefix(msg, "✅") {
		t.Fatalf("message = %q, want success", msg)
	}

	got := c.MonitoredSymbols()
	if len(got) != 2 || got[0] != "BTCUSDT" || got[1] != "ETHUSDT" {
		t.Fatalf("MonitoredSymbols() = %v", got)
	}
}

func TestSetHeartbeatIntervalEnforcesBounds(t *testing.T) {
	c, _ := newTestController(t)

	if msg := c.SetHeartbeatInterval(context.Background(), 30); !strings.HasPrefix(msg, "❌") {
		t.Fatalf("expected rejection below 60s, got %q", msg)
	}
	if msg := c.SetHeartbeatInterval(context.Background(), 4000); !strings.HasPrefix(msg, "❌") {
		t.Fatalf("expected rejection above 3600s, got %q", msg)
	}
	if msg := c.SetHeartbeatInterval(context.Background(), 120); !strings.HasPrefix(msg, "✅") {
		t.Fatalf("expected success within bounds, got %q", msg)
	}
	if got := c.HeartbeatSeconds(); got != 120 {
		t.Fatalf("HeartbeatSeconds() = %d, want 120", got)
	}
}

func TestMacroAnalysisCachesWithinSameDay(t *testing.T) {
	c, caller := newTestController(t)

	first := c.MacroAnalysis(context.Background())
	second := c.MacroAnalysis(context.Background())

	if first != second {
		t.Fatalf("macro results differ across same-day calls: %q vs %q", first, second)
	}
	if caller.calls != 1 {
		t.Fatalf("caller invoked %d times, want 1 (cached on second call)", caller.calls)
	}
}

func TestGetMonitoringSymbolsReturnsJSON(t *testing.T) {
	c, _ := newTestController(t)

	out := c.GetMonitoringSymbols(context.Background())
	if out == "" || out[0] != '{' {
		t.Fatalf("GetMonitoringSymbols() = %q, want a JSON object", out)
	}
}

func TestStateLifecycleTransitions(t *testing.T) {
	c, _ := newTestController(t)

	if c.State() != StateInitialized {
		t.Fatalf("State() = %q, want %q", c.State(), StateInitialized)
	}

	c.Start(context.Background())
	if c.State() != StateRunning {
		t.Fatalf("State() after Start = %q, want %q", c.State(), StateRunning)
	}

	c.StopMonitoring()
	if c.State() != StateStopped {
		t.Fatalf("State() after StopMonitoring = %q, want %q", c.State(), StateStopped)
	}
}
