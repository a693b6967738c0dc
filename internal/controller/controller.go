// Package controller wires every orchestration-core component together and
// implements registry.Provider, telegram.Dispatcher, and monitor.Notifier.
// Grounded on original_source/crypto_monitor_controller.py's
// CryptoMonitorController: the same multi-phase construction (core
// components, then services, then service coordination), the same
// start_monitoring/stop_monitoring split (stopping monitoring never stops
// the Telegram transport), and the same capability-method surface
// (manual_analysis, set_monitoring_symbols, start_symbol_monitor, ...), with
// the Python single-process dict-of-callbacks replaced by the frozen
// registry.Build(Provider) map already built in internal/registry.
package controller

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"

	"github.com/oak/crypto-sentinel/internal/analysts"
	"github.com/oak/crypto-sentinel/internal/brokerage"
	"github.com/oak/crypto-sentinel/internal/config"
	"github.com/oak/crypto-sentinel/internal/constant"
	"github.com/oak/crypto-sentinel/internal/dataflows"
	"github.com/oak/crypto-sentinel/internal/logger"
	"github.com/oak/crypto-sentinel/internal/masterbrain"
	"github.com/oak/crypto-sentinel/internal/model"
	"github.com/oak/crypto-sentinel/internal/monitor"
	"github.com/oak/crypto-sentinel/internal/pipeline"
	"github.com/oak/crypto-sentinel/internal/scheduler"
	"github.com/oak/crypto-sentinel/internal/session"
	"github.com/oak/crypto-sentinel/internal/storage"
	"github.com/oak/crypto-sentinel/internal/telegram"
)

// lifecycle states, mirroring start_monitoring/stop_monitoring's is_running
// flag but named explicitly per spec.md §4.8.
const (
	StateInitialized = "initialized"
	StateRunning     = "running"
	StateStopped     = "stopped"
)

// Controller owns every long-lived collaborator: storage, session history,
// the analysis pipeline, market/brokerage clients, the symbol monitor
// manager, the wall-clock scheduler, and the Telegram transport.
type Controller struct {
	cfg   *config.Config
	log   *logger.ColorLogger
	store *storage.Storage

	session    *session.Store
	pipeline   *pipeline.Pipeline
	marketData *dataflows.Composite
	brokerage  *brokerage.Client

	monitor   *monitor.Manager
	scheduler *scheduler.Scheduler
	telegram  *telegram.Bot
	brain     *masterbrain.Brain
	registry  map[string]model.CapabilityDescriptor

	mu               sync.Mutex
	state            string
	telegramStarted  bool
	primarySymbols   []string
	secondarySymbols []string
	heartbeatSeconds int
	lastMacroDate    time.Time
	lastMacroResult  string
}

// New constructs a Controller in the "initialized" state. The registry,
// Master Brain, symbol monitor manager, scheduler, and Telegram transport
// are wired afterward via the Set* methods, because each of those depends
// on the Controller itself satisfying an interface they consume (the same
// two-phase _initialize_core_components/_setup_service_coordination split
// the original controller performs).
func New(cfg *config.Config, log *logger.ColorLogger, store *storage.Storage, sess *session.Store, pl *pipeline.Pipeline, marketData *dataflows.Composite, broker *brokerage.Client) *Controller {
	return &Controller{
		cfg:              cfg,
		log:              log,
		store:            store,
		session:          sess,
		pipeline:         pl,
		marketData:       marketData,
		brokerage:        broker,
		state:            StateInitialized,
		primarySymbols:   cfg.PrimarySymbols,
		secondarySymbols: cfg.SecondarySymbols,
		heartbeatSeconds: cfg.HeartbeatIntervalS,
	}
}

// SetRegistry binds the frozen capability registry built from this
// Controller (registry.Build(ctrl)).
func (c *Controller) SetRegistry(reg map[string]model.CapabilityDescriptor) { c.registry = reg }

// Registry returns the frozen capability registry for callers (e.g. the
// Master Brain constructor) that need it directly.
func (c *Controller) Registry() map[string]model.CapabilityDescriptor { return c.registry }

// SetBrain binds the Master Brain dispatcher.
func (c *Controller) SetBrain(b *masterbrain.Brain) { c.brain = b }

// SetMonitor binds the symbol monitor manager.
func (c *Controller) SetMonitor(m *monitor.Manager) { c.monitor = m }

// SetScheduler binds the wall-clock scheduler.
func (c *Controller) SetScheduler(s *scheduler.Scheduler) { c.scheduler = s }

// SetTelegram binds the Telegram transport.
func (c *Controller) SetTelegram(b *telegram.Bot) { c.telegram = b }

// Start transitions initialized/stopped -> running: it launches the
// Telegram long-poll loop (once; a Start after StopMonitoring leaves the
// already-running loop alone) and starts the scheduler. It never re-enters
// if already running.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	if c.state == StateRunning {
		c.mu.Unlock()
		return
	}
	c.state = StateRunning
	startTelegram := c.telegram != nil && !c.telegramStarted
	if startTelegram {
		c.telegramStarted = true
	}
	c.mu.Unlock()

	if startTelegram {
		go c.telegram.Run(ctx)
	}
	if c.scheduler != nil {
		c.scheduler.Start()
	}
}

// StopMonitoring transitions running -> stopped: it halts the scheduler and
// every active symbol monitor, but deliberately leaves the Telegram
// transport running, per the original controller's stop_monitoring (which
// comments out stopping the bot so users can still reach the system).
func (c *Controller) StopMonitoring() {
	c.mu.Lock()
	c.state = StateStopped
	c.mu.Unlock()

	if c.scheduler != nil {
		c.scheduler.Stop()
	}
	if c.monitor != nil {
		for _, m := range c.monitor.List() {
			c.monitor.Stop(m.Symbol)
		}
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ---- registry.Provider ----

// TechnicalAnalysis runs the technical analyst over symbol's klines and
// records the result.
func (c *Controller) TechnicalAnalysis(ctx context.Context, symbol string) string {
	ac := model.NewAnalysisContext(symbol)
	if candles, err := c.marketData.FetchKline(ctx, symbol); err == nil {
		ac.KlineData[symbol] = candles
	} else if c.log != nil {
		c.log.Warning(fmt.Sprintf("获取 %s K线失败: %v", symbol, err))
	}

	result := c.pipeline.Technical.Analyze(ctx, ac)
	c.record(constant.AgentTechnical, symbol, result, constant.DataTypeTechnical)
	return result
}

// MarketSentimentAnalysis runs the market analyst over freshly fetched
// global/fear-greed/trending data.
func (c *Controller) MarketSentimentAnalysis(ctx context.Context) string {
	ac := c.globalAnalysisContext(ctx)
	result := c.pipeline.Market.Analyze(ctx, ac)
	c.record(constant.AgentMarket, "", result, constant.DataTypeSentiment)
	return result
}

// FundamentalAnalysis runs the fundamental analyst for symbol.
func (c *Controller) FundamentalAnalysis(ctx context.Context, symbol string) string {
	ac := model.NewAnalysisContext(symbol)
	if candles, err := c.marketData.FetchKline(ctx, symbol); err == nil {
		ac.KlineData[symbol] = candles
	} else if c.log != nil {
		c.log.Warning(fmt.Sprintf("获取 %s K线失败: %v", symbol, err))
	}
	result := c.pipeline.Fundamental.Analyze(ctx, ac)
	c.record(constant.AgentFundamental, symbol, result, constant.DataTypeFundamental)
	return result
}

// MacroAnalysis runs the macro analyst, but at most once per calendar day;
// a repeat call the same day returns the cached result rather than issuing
// another LLM call, per the macro-once-per-day resource-optimization rule
// in the Master Brain's system prompt.
func (c *Controller) MacroAnalysis(ctx context.Context) string {
	today := truncateDate(time.Now())

	c.mu.Lock()
	if c.lastMacroDate.Equal(today) && c.lastMacroResult != "" {
		cached := c.lastMacroResult
		c.mu.Unlock()
		return cached
	}
	c.mu.Unlock()

	result := c.pipeline.Macro.Analyze(ctx)
	c.record(constant.AgentMacro, "", result, constant.DataTypeMacro)

	c.mu.Lock()
	c.lastMacroDate = today
	c.lastMacroResult = result
	c.mu.Unlock()

	return result
}

// ComprehensiveAnalysis runs the full research+trading pipeline. An empty
// symbols list is passed through as-is so the pipeline's own no-symbols
// short-circuit (§4.3: fixed prompt-for-symbols message, no LLM calls)
// applies rather than silently substituting the monitored symbol set.
func (c *Controller) ComprehensiveAnalysis(ctx context.Context, question string, symbols []string) string {
	return c.pipeline.RunComprehensiveAnalysis(ctx, question, symbols)
}

// GetAccountStatus returns the futures account balance as JSON.
func (c *Controller) GetAccountStatus(ctx context.Context) string {
	return c.brokerage.AccountBalanceJSON(ctx)
}

// GetCurrentPositions returns open futures positions as JSON.
func (c *Controller) GetCurrentPositions(ctx context.Context) string {
	return c.brokerage.CurrentPositionsJSON(ctx)
}

// TradingAnalysis runs the trader role against an already-produced research
// summary and a free-form question.
func (c *Controller) TradingAnalysis(ctx context.Context, analysisResults, question string) string {
	input := analysts.TradingInput{
		ResearchSummary:      analysisResults,
		Question:             question,
		AccountBalanceJSON:   c.GetAccountStatus(ctx),
		CurrentPositionsJSON: c.GetCurrentPositions(ctx),
	}
	if recent, err := c.store.GetAnalysisRecords(constant.DataTypeChief, "", 10); err == nil {
		input.RecentChiefRecords = recent
	}
	return c.pipeline.Trader.Analyze(ctx, input)
}

// GetMarketData returns raw OHLCV plus a best-effort funding rate for each
// requested symbol as JSON.
func (c *Controller) GetMarketData(ctx context.Context, symbols []string) string {
	out := make(map[string]any, len(symbols))
	for _, symbol := range symbols {
		candles, err := c.marketData.FetchKline(ctx, symbol)
		if err != nil {
			out[symbol] = map[string]string{"error": err.Error()}
			continue
		}
		entry := map[string]any{"candles": candles}
		if rate, err := c.marketData.GetFundingRate(ctx, symbol); err == nil {
			entry["funding_rate"] = rate
		}
		out[symbol] = entry

		if c.store != nil {
			if payload, err := sonic.MarshalString(entry); err == nil {
				if err := c.store.SaveMarketDataSnapshot(symbol, payload); err != nil && c.log != nil {
					c.log.Warning(fmt.Sprintf("保存 %s 市场数据快照失败: %v", symbol, err))
				}
			}
		}
	}
	return marshalOrError(out)
}

// ManualTriggerAnalysis runs a technical analysis on demand and returns the
// result to the caller (it does not push it to the bound chat), mirroring
// manual_analysis + force_analysis.
func (c *Controller) ManualTriggerAnalysis(ctx context.Context, symbol string) string {
	result := c.TechnicalAnalysis(ctx, symbol)
	return result
}

// SendTelegramNotification pushes message to the configured chat.
func (c *Controller) SendTelegramNotification(ctx context.Context, message string) string {
	if err := c.SendMessage(c.cfg.TelegramChatID, message); err != nil {
		return fmt.Sprintf("❌ 发送Telegram消息失败: %v", err)
	}
	return "✅ 已发送"
}

// GetSystemStatus summarizes configuration, monitoring, and trading state
// as JSON.
func (c *Controller) GetSystemStatus(ctx context.Context) string {
	status := map[string]any{
		"state":             c.State(),
		"primary_symbols":   c.MonitoredSymbols(),
		"monitors":          c.monitorSnapshot(),
		"heartbeat_seconds": c.HeartbeatSeconds(),
	}
	if c.store != nil {
		if events, err := c.store.GetTriggerEvents("scheduled_base_analysis", 5); err == nil {
			status["recent_scheduled_runs"] = events
		}
	}
	return marshalOrError(status)
}

// SetMonitoringSymbols replaces the primary/secondary symbol lists and
// persists the change to the dynamic-config sidecar.
func (c *Controller) SetMonitoringSymbols(ctx context.Context, primary, secondary []string) string {
	for _, symbol := range append(append([]string{}, primary...), secondary...) {
		if !strings.HasSuffix(symbol, "USDT") {
			return fmt.Sprintf("❌ 币种格式错误: %s，应为BTCUSDT格式", symbol)
		}
	}

	c.mu.Lock()
	c.primarySymbols = primary
	c.secondarySymbols = secondary
	c.mu.Unlock()

	if err := config.SaveDynamicConfig(c.cfg.DynamicConfigPath, config.DynamicConfig{
		PrimarySymbols:     primary,
		SecondarySymbols:   secondary,
		HeartbeatIntervalS: c.HeartbeatSeconds(),
	}); err != nil && c.log != nil {
		c.log.Warning(fmt.Sprintf("保存动态配置失败: %v", err))
	}

	primaryDisplay := stripUSDT(primary)
	secondaryDisplay := stripUSDT(secondary)
	secondaryText := "无"
	if len(secondaryDisplay) > 0 {
		secondaryText = strings.Join(secondaryDisplay, ", ")
	}
	return fmt.Sprintf("✅ 监控币种已更新\n主要币种: %s\n次要币种: %s", strings.Join(primaryDisplay, ", "), secondaryText)
}

// GetMonitoringSymbols returns the current primary/secondary symbol lists
// as JSON.
func (c *Controller) GetMonitoringSymbols(ctx context.Context) string {
	c.mu.Lock()
	primary := c.primarySymbols
	secondary := c.secondarySymbols
	c.mu.Unlock()

	return marshalOrError(map[string]any{
		"primary_symbols":   primary,
		"secondary_symbols": secondary,
		"total_count":       len(primary) + len(secondary),
	})
}

// SetHeartbeatInterval updates the heartbeat polling interval, bounded to
// [60, 3600] seconds per the original controller's validation.
func (c *Controller) SetHeartbeatInterval(ctx context.Context, seconds int) string {
	if seconds < 60 {
		return "❌ 心跳间隔不能少于60秒"
	}
	if seconds > 3600 {
		return "❌ 心跳间隔不能超过1小时"
	}

	c.mu.Lock()
	c.heartbeatSeconds = seconds
	primary := c.primarySymbols
	secondary := c.secondarySymbols
	c.mu.Unlock()

	if err := config.SaveDynamicConfig(c.cfg.DynamicConfigPath, config.DynamicConfig{
		PrimarySymbols:     primary,
		SecondarySymbols:   secondary,
		HeartbeatIntervalS: seconds,
	}); err != nil && c.log != nil {
		c.log.Warning(fmt.Sprintf("保存动态配置失败: %v", err))
	}

	return fmt.Sprintf("✅ 心跳间隔已设置为 %d 秒 (%.1f 分钟)", seconds, float64(seconds)/60)
}

// GetHeartbeatSettings returns the current heartbeat configuration as JSON.
func (c *Controller) GetHeartbeatSettings(ctx context.Context) string {
	return marshalOrError(map[string]any{
		"normal_interval":  c.HeartbeatSeconds(),
		"fetch_interval":   c.cfg.MonitorIntervalMins,
	})
}

// StartSymbolMonitor starts a recurring technical-analysis worker for
// symbol.
func (c *Controller) StartSymbolMonitor(ctx context.Context, symbol string, intervalMinutes int) string {
	ok, msg := c.monitor.Start(symbol, intervalMinutes)
	if !ok {
		return "❌ " + msg
	}
	return "✅ " + msg
}

// StopSymbolMonitor stops the recurring worker for symbol.
func (c *Controller) StopSymbolMonitor(ctx context.Context, symbol string) string {
	ok, msg := c.monitor.Stop(symbol)
	if !ok {
		return "❌ " + msg
	}
	return "✅ " + msg
}

// GetSymbolMonitorsStatus returns every active symbol monitor as JSON.
func (c *Controller) GetSymbolMonitorsStatus(ctx context.Context) string {
	return marshalOrError(c.monitorSnapshot())
}

// ---- telegram.Dispatcher ----

// HandleMessage forwards free-form chat text to the Master Brain.
func (c *Controller) HandleMessage(ctx context.Context, chatID, text string) string {
	if c.brain == nil {
		return "❌ 系统尚未就绪"
	}
	mode := c.State()
	return c.brain.ProcessRequest(ctx, text, chatID, map[string]string{"source": "telegram"}, c.MonitoredSymbols(), mode)
}

// Analyze implements telegram.Dispatcher's /analyze command handler.
func (c *Controller) Analyze(ctx context.Context, symbol string) string {
	return c.ManualTriggerAnalysis(ctx, model.NormalizeSymbol(symbol))
}

// StartMonitor implements telegram.Dispatcher's monitor-start button.
func (c *Controller) StartMonitor(ctx context.Context, symbol string, intervalMinutes int) string {
	return c.StartSymbolMonitor(ctx, symbol, intervalMinutes)
}

// StopMonitor implements telegram.Dispatcher's monitor-stop button.
func (c *Controller) StopMonitor(ctx context.Context, symbol string) string {
	return c.StopSymbolMonitor(ctx, symbol)
}

// AccountStatus implements telegram.Dispatcher's account-status button with
// a human-formatted report rather than the raw JSON GetAccountStatus
// returns, mirroring _handle_account_status.
func (c *Controller) AccountStatus(ctx context.Context) string {
	balance := c.brokerage.GetAccountBalance(ctx)
	if !balance.Success {
		return fmt.Sprintf("❌ 账户状态获取失败: %s", balance.Error)
	}
	return fmt.Sprintf("💰 *账户状态*\n⏰ %s\n\n总额 `$%.2f` | 可用 `$%.2f` | 盈亏 `$%.2f`",
		time.Now().Format("2006-01-02 15:04:05"),
		balance.TotalWalletBalance, balance.AvailableBalance, balance.TotalUnrealizedProfit)
}

// monitorTrader adapts Controller.TradingAnalysis to monitor.Trader's
// narrower TraderInput shape, since the monitor package never imports
// internal/analysts directly.
type monitorTrader struct{ c *Controller }

// NewMonitorTrader builds the monitor.Trader adapter bound to c.
func NewMonitorTrader(c *Controller) monitor.Trader { return monitorTrader{c: c} }

func (t monitorTrader) Analyze(ctx context.Context, input monitor.TraderInput) string {
	question := fmt.Sprintf("请基于技术分析为 %s 提供交易决策建议", input.Symbol)
	return t.c.TradingAnalysis(ctx, input.ResearchSummary, question)
}

// ---- monitor.Notifier ----

// SendMessage implements monitor.Notifier and is reused by
// SendTelegramNotification.
func (c *Controller) SendMessage(chatID, text string) error {
	if c.telegram == nil {
		return fmt.Errorf("telegram transport not configured")
	}
	return c.telegram.SendMessage(chatID, text)
}

// AutoTradingEnabled is the monitor package's autoTrade poll function. The
// system never trades autonomously, per spec.md §4.4 and the Master
// Brain's standby invariant, so this always reports false; it exists as a
// named hook rather than a bare closure so the invariant has one place to
// change if that ever becomes configurable.
func (c *Controller) AutoTradingEnabled() bool { return false }

// ---- scheduled + heartbeat support ----

// RunScheduledBaseAnalysis is the scheduler.Callback bound at startup: it
// runs macro, market-sentiment, and fundamental analysis for every primary
// symbol and pushes the combined result to the bound chat, grounded on
// _run_scheduled_analysis's "宏观+市场+基本面" contract.
func (c *Controller) RunScheduledBaseAnalysis() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if c.store != nil {
		if err := c.store.SaveTriggerEvent("scheduled_base_analysis", "", strings.Join(c.MonitoredSymbols(), ",")); err != nil && c.log != nil {
			c.log.Warning(fmt.Sprintf("记录触发事件失败: %v", err))
		}
	}

	var sb strings.Builder
	sb.WriteString("🌍 *定时基础分析*\n\n")
	sb.WriteString(c.MacroAnalysis(ctx))
	sb.WriteString("\n\n")
	sb.WriteString(c.MarketSentimentAnalysis(ctx))

	for _, symbol := range c.MonitoredSymbols() {
		sb.WriteString("\n\n")
		sb.WriteString(c.FundamentalAnalysis(ctx, symbol))
	}

	if err := c.SendMessage(c.cfg.TelegramChatID, sb.String()); err != nil && c.log != nil {
		c.log.Error(fmt.Sprintf("定时分析推送失败: %v", err))
	}
}

// MonitoredSymbols returns the current primary symbol list.
func (c *Controller) MonitoredSymbols() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string{}, c.primarySymbols...)
}

// HeartbeatSeconds returns the current heartbeat interval.
func (c *Controller) HeartbeatSeconds() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.heartbeatSeconds
}

// ---- helpers ----

func (c *Controller) globalAnalysisContext(ctx context.Context) *model.AnalysisContext {
	ac := model.NewAnalysisContext("")
	if global, err := c.marketData.FetchGlobalMarketData(ctx); err == nil {
		ac.GlobalMarketData = global
	}
	if fg, err := c.marketData.FetchFearGreedIndex(ctx); err == nil {
		ac.FearGreedIndex = fg
	}
	if trending, err := c.marketData.FetchTrendingCoins(ctx); err == nil {
		ac.TrendingCoins = trending
	}
	if major, err := c.marketData.FetchMajorCoinsPerformance(ctx); err == nil {
		ac.MajorCoinsPerformance = major
	}
	return ac
}

func (c *Controller) record(agentName, symbol, content, dataType string) {
	if c.store == nil {
		return
	}
	if _, err := c.store.SaveAnalysisRecord(model.AnalysisRecord{
		Timestamp: time.Now(),
		AgentName: agentName,
		Symbol:    symbol,
		Content:   content,
		DataType:  dataType,
	}); err != nil && c.log != nil {
		c.log.Warning(fmt.Sprintf("保存分析记录失败: %v", err))
	}
}

func (c *Controller) monitorSnapshot() []model.SymbolMonitor {
	if c.monitor == nil {
		return nil
	}
	return c.monitor.List()
}

func marshalOrError(v any) string {
	data, err := sonic.MarshalString(v)
	if err != nil {
		return fmt.Sprintf(`{"success":false,"error":%q}`, err.Error())
	}
	return data
}

func stripUSDT(symbols []string) []string {
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		out = append(out, strings.TrimSuffix(s, "USDT"))
	}
	return out
}

func truncateDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
