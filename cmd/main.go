package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/oak/crypto-sentinel/internal/analysts"
	"github.com/oak/crypto-sentinel/internal/brokerage"
	"github.com/oak/crypto-sentinel/internal/config"
	"github.com/oak/crypto-sentinel/internal/constant"
	"github.com/oak/crypto-sentinel/internal/controller"
	"github.com/oak/crypto-sentinel/internal/dataflows"
	"github.com/oak/crypto-sentinel/internal/llm"
	"github.com/oak/crypto-sentinel/internal/logger"
	"github.com/oak/crypto-sentinel/internal/masterbrain"
	"github.com/oak/crypto-sentinel/internal/monitor"
	"github.com/oak/crypto-sentinel/internal/pipeline"
	"github.com/oak/crypto-sentinel/internal/registry"
	"github.com/oak/crypto-sentinel/internal/scheduler"
	"github.com/oak/crypto-sentinel/internal/session"
	"github.com/oak/crypto-sentinel/internal/storage"
	"github.com/oak/crypto-sentinel/internal/telegram"
)

func main() {
	cfg, err := config.LoadConfig(constant.BlankStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.DebugMode)
	log := logger.Global

	log.Header("加密货币监控哨兵 - Go 版本", '=', 80)
	log.Info(fmt.Sprintf("主要币种: %v", cfg.PrimarySymbols))
	log.Info(fmt.Sprintf("次要币种: %v", cfg.SecondarySymbols))
	log.Info(fmt.Sprintf("心跳间隔: %d 秒", cfg.HeartbeatIntervalS))
	if cfg.BinanceTestMode {
		log.Success("🟢 Binance 模式: 测试网")
	} else {
		log.Warning("🔴 Binance 模式: 实盘")
	}

	log.Subheader("初始化数据库", '─', 80)
	dbDir := filepath.Dir(cfg.DatabasePath)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		log.Error(fmt.Sprintf("创建数据库目录失败: %v", err))
		os.Exit(1)
	}
	store, err := storage.NewStorage(cfg.DatabasePath)
	if err != nil {
		log.Error(fmt.Sprintf("初始化数据库失败: %v", err))
		os.Exit(1)
	}
	defer store.Close()
	log.Success(fmt.Sprintf("数据库已连接: %s", cfg.DatabasePath))

	defaultCaller := buildDefaultCaller(cfg, log)

	sess := session.New(store, defaultCaller, log)

	log.Subheader("初始化分析师团队", '─', 80)
	technical := analysts.NewTechnical(defaultCaller, "", log)
	market := analysts.NewMarket(defaultCaller, "", log)
	fundamental := analysts.NewFundamental(defaultCaller, "", log)
	macro := analysts.NewMacro(defaultCaller, "", log)
	chief := analysts.NewChief(defaultCaller, "", log)
	trader := analysts.NewTrader(defaultCaller, "", log)
	log.Success("✅ 六位分析师已就绪：技术、市场、基本面、宏观、首席、交易员")

	marketData := dataflows.NewMarketData(cfg)
	globalMarket := dataflows.NewGlobalMarket()
	composite := dataflows.NewComposite(marketData, globalMarket)

	broker := brokerage.New(cfg, log)

	pl := pipeline.New(technical, market, fundamental, macro, chief, trader, composite, broker, store, log)

	ctrl := controller.New(cfg, log, store, sess, pl, composite, broker)

	reg := registry.Build(ctrl)
	ctrl.SetRegistry(reg)
	log.Success(fmt.Sprintf("✅ 能力注册表已构建，共 %d 项能力", len(reg)))

	brain := masterbrain.New(reg, defaultCaller, sess, log)
	ctrl.SetBrain(brain)

	mon := monitor.New(technical, controller.NewMonitorTrader(ctrl), composite, ctrl, cfg.TelegramChatID, ctrl.AutoTradingEnabled, log)
	ctrl.SetMonitor(mon)

	sched := scheduler.New(ctrl.RunScheduledBaseAnalysis, log)
	ctrl.SetScheduler(sched)

	log.Subheader("连接 Telegram", '─', 80)
	bot, err := telegram.NewBot(cfg.TelegramBotToken, ctrl, log)
	if err != nil {
		log.Error(fmt.Sprintf("Telegram 初始化失败: %v", err))
		os.Exit(1)
	}
	ctrl.SetTelegram(bot)
	log.Success("✅ Telegram 机器人已就绪")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ctrl.Start(ctx)
	log.Header("系统已启动，等待指令", '=', 80)
	log.Info("按 Ctrl+C 停止程序")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Warning("收到停止信号，正在关闭...")
	cancel()
	ctrl.StopMonitoring()
	log.Success("✅ 已安全退出")
}

// buildDefaultCaller picks Doubao as the default analyst/brain LLM backend
// when configured, falling back to Claude, mirroring
// _get_llm_client_for_analyst's doubao-first fallback in the original
// controller (per-analyst provider overrides are not exposed by SPEC_FULL's
// configuration surface, so every role shares one default caller).
func buildDefaultCaller(cfg *config.Config, log *logger.ColorLogger) llm.Caller {
	if cfg.DoubaoAPIKey != constant.BlankStr {
		return llm.NewDoubaoCaller(cfg.DoubaoAPIKey, cfg.DoubaoBaseURL, cfg.DoubaoModel, log)
	}
	return llm.NewClaudeCaller(cfg.ClaudeAPIKey, cfg.ClaudeBaseURL, cfg.ClaudeModel, log)
}
