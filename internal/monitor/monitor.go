// Package monitor implements the Symbol Monitor Manager: per-symbol daemon
// loops that periodically run a technical analysis and push the result to a
// chat transport, optionally chaining a trader decision. Grounded on
// original_source/crypto_monitor_controller.py's start_symbol_monitor /
// monitor_task / stop_symbol_monitor / get_symbol_monitors_status, with the
// Python daemon thread replaced by a goroutine-per-symbol loop in the
// teacher's StopLossManager idiom (internal/executors/stoploss_manager.go):
// a mutex-guarded map is the single source of truth for "is this symbol
// being watched," and every worker rechecks its own active flag before each
// cycle rather than being force-killed.
package monitor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oak/crypto-sentinel/internal/logger"
	"github.com/oak/crypto-sentinel/internal/model"
)

// Analyst is the narrow slice of internal/analysts.Technical this package
// depends on, so monitor never imports the analysts package's LLM wiring
// directly.
type Analyst interface {
	Analyze(ctx context.Context, ac *model.AnalysisContext) string
}

// Trader is the narrow slice of internal/analysts.Trader this package needs
// to chain an auto-trading decision after a technical report.
type Trader interface {
	Analyze(ctx context.Context, input TraderInput) string
}

// TraderInput carries just enough context for a monitor-triggered trader
// call; it mirrors the relevant fields of analysts.TradingInput.
type TraderInput struct {
	ResearchSummary string
	Symbol          string
}

// Notifier pushes a message to the chat transport. Kept narrow so this
// package never imports internal/telegram directly.
type Notifier interface {
	SendMessage(chatID, text string) error
}

// MarketDataProvider fetches the klines a technical analysis needs.
type MarketDataProvider interface {
	FetchKline(ctx context.Context, symbol string) ([]model.Candle, error)
}

type entry struct {
	active          bool
	intervalMinutes int
	startedAt       time.Time
	stop            chan struct{}
}

// Manager owns every active symbol monitor. A single mutex is the sole
// source of truth for "is this symbol being watched," per spec.md §4.6.
type Manager struct {
	mu       sync.Mutex
	monitors map[string]*entry

	technical  Analyst
	trader     Trader
	marketData MarketDataProvider
	notifier   Notifier
	chatID     string
	autoTrade  func() bool
	log        *logger.ColorLogger
}

// New builds a Symbol Monitor Manager. autoTrade is polled at the start of
// every cycle so the controller can flip auto-trading on/off live.
func New(technical Analyst, trader Trader, marketData MarketDataProvider, notifier Notifier, chatID string, autoTrade func() bool, log *logger.ColorLogger) *Manager {
	return &Manager{
		monitors:   make(map[string]*entry),
		technical:  technical,
		trader:     trader,
		marketData: marketData,
		notifier:   notifier,
		chatID:     chatID,
		autoTrade:  autoTrade,
		log:        log,
	}
}

// Start begins monitoring symbol at the given interval. A second Start for
// an already-active symbol fails per testable property #6.
func (m *Manager) Start(symbol string, intervalMinutes int) (bool, string) {
	symbol = model.NormalizeSymbol(symbol)
	if intervalMinutes <= 0 {
		intervalMinutes = 30
	}

	m.mu.Lock()
	if existing, ok := m.monitors[symbol]; ok && existing.active {
		m.mu.Unlock()
		return false, fmt.Sprintf("%s 已在监控中", symbol)
	}

	e := &entry{active: true, intervalMinutes: intervalMinutes, startedAt: time.Now(), stop: make(chan struct{})}
	m.monitors[symbol] = e
	m.mu.Unlock()

	go m.run(symbol, e)

	return true, fmt.Sprintf("已开始监控 %s，间隔 %d 分钟", symbol, intervalMinutes)
}

// Stop ends monitoring for symbol. The worker goroutine exits at its next
// wake or immediately if currently sleeping, via the closed stop channel.
func (m *Manager) Stop(symbol string) (bool, string) {
	symbol = model.NormalizeSymbol(symbol)

	m.mu.Lock()
	e, ok := m.monitors[symbol]
	if !ok {
		m.mu.Unlock()
		return false, fmt.Sprintf("%s 未在监控中", symbol)
	}
	e.active = false
	close(e.stop)
	delete(m.monitors, symbol)
	m.mu.Unlock()

	return true, fmt.Sprintf("已停止监控 %s", symbol)
}

// List snapshots every currently active monitor.
func (m *Manager) List() []model.SymbolMonitor {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]model.SymbolMonitor, 0, len(m.monitors))
	for symbol, e := range m.monitors {
		if !e.active {
			continue
		}
		out = append(out, model.SymbolMonitor{
			Symbol:          symbol,
			IntervalMinutes: e.intervalMinutes,
			Active:          true,
			StartedAt:       e.startedAt,
		})
	}
	return out
}

func (m *Manager) isActive(symbol string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.monitors[symbol]
	return ok && e.active
}

// run is the per-symbol daemon loop: analyze, push, optionally chain a
// trader decision, sleep, repeat until stopped.
func (m *Manager) run(symbol string, e *entry) {
	for m.isActive(symbol) {
		m.cycle(symbol)

		select {
		case <-e.stop:
			return
		case <-time.After(time.Duration(e.intervalMinutes) * time.Minute):
		}
	}
}

func (m *Manager) cycle(symbol string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	ac := model.NewAnalysisContext(symbol)
	if m.marketData != nil {
		if candles, err := m.marketData.FetchKline(ctx, symbol); err == nil {
			ac.KlineData[symbol] = candles
		} else if m.log != nil {
			m.log.Warning(fmt.Sprintf("%s 监控任务获取K线失败: %v", symbol, err))
		}
	}

	if m.log != nil {
		m.log.MonitorTick(symbol)
	}

	report := m.technical.Analyze(ctx, ac)
	if report == "" {
		if m.log != nil {
			m.log.Warning(fmt.Sprintf("%s 分析结果为空", symbol))
		}
		return
	}

	display := strings.TrimSuffix(symbol, "USDT")
	m.notify(fmt.Sprintf("📊 *%s 定时分析*\n\n%s", display, report))

	if m.autoTrade == nil || !m.autoTrade() || m.trader == nil {
		return
	}

	decision := m.trader.Analyze(ctx, TraderInput{ResearchSummary: report, Symbol: symbol})
	if decision != "" {
		m.notify(fmt.Sprintf("💼 *%s 交易员决策*\n\n%s", display, decision))
	}
}

func (m *Manager) notify(message string) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.SendMessage(m.chatID, message); err != nil && m.log != nil {
		m.log.Error(fmt.Sprintf("推送消息失败: %v", err))
	}
}
