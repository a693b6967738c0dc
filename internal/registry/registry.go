// Package registry declares the closed set of invokable capabilities the
// Master Brain dispatches into, grounded on the teacher's eino tool
// declarations in internal/agents/tools.go but adapted to this service's
// own JSON-argument dispatch rather than eino's ToolInfo/InvokableRun.
package registry

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/oak/crypto-sentinel/internal/model"
)

// Provider is every Controller operation a capability handler can invoke.
// Implemented by internal/controller.Controller.
type Provider interface {
	TechnicalAnalysis(ctx context.Context, symbol string) string
	MarketSentimentAnalysis(ctx context.Context) string
	FundamentalAnalysis(ctx context.Context, symbol string) string
	MacroAnalysis(ctx context.Context) string
	ComprehensiveAnalysis(ctx context.Context, question string, symbols []string) string
	GetAccountStatus(ctx context.Context) string
	GetCurrentPositions(ctx context.Context) string
	TradingAnalysis(ctx context.Context, analysisResults, question string) string
	GetMarketData(ctx context.Context, symbols []string) string
	ManualTriggerAnalysis(ctx context.Context, symbol string) string
	SendTelegramNotification(ctx context.Context, message string) string
	GetSystemStatus(ctx context.Context) string
	SetMonitoringSymbols(ctx context.Context, primary, secondary []string) string
	GetMonitoringSymbols(ctx context.Context) string
	SetHeartbeatInterval(ctx context.Context, seconds int) string
	GetHeartbeatSettings(ctx context.Context) string
	StartSymbolMonitor(ctx context.Context, symbol string, intervalMinutes int) string
	StopSymbolMonitor(ctx context.Context, symbol string) string
	GetSymbolMonitorsStatus(ctx context.Context) string
}

// Build constructs the frozen capability registry. The map is read-only
// after this call returns; handlers never mutate it.
func Build(p Provider) map[string]model.CapabilityDescriptor {
	return map[string]model.CapabilityDescriptor{
		"technical_analysis": {
			Name:        "technical_analysis",
			Description: "对指定交易对执行技术面分析",
			Parameters:  map[string]any{"symbol": "string, required"},
			Handler: func(args map[string]any) string {
				return p.TechnicalAnalysis(context.Background(), model.NormalizeSymbol(argString(args, "symbol")))
			},
		},
		"market_sentiment_analysis": {
			Name:        "market_sentiment_analysis",
			Description: "执行全局市场情绪分析",
			Parameters:  map[string]any{},
			Handler: func(args map[string]any) string {
				return p.MarketSentimentAnalysis(context.Background())
			},
		},
		"fundamental_analysis": {
			Name:        "fundamental_analysis",
			Description: "对指定交易对执行基本面分析",
			Parameters:  map[string]any{"symbol": "string, required"},
			Handler: func(args map[string]any) string {
				return p.FundamentalAnalysis(context.Background(), model.NormalizeSymbol(argString(args, "symbol")))
			},
		},
		"macro_analysis": {
			Name:        "macro_analysis",
			Description: "执行宏观经济分析（每日至多一次）",
			Parameters:  map[string]any{},
			Handler: func(args map[string]any) string {
				return p.MacroAnalysis(context.Background())
			},
		},
		"comprehensive_analysis": {
			Name:        "comprehensive_analysis",
			Description: "对一组交易对执行完整的研究+交易分析流程",
			Parameters:  map[string]any{"question": "string, required", "symbols": "string list, optional"},
			Handler: func(args map[string]any) string {
				symbols := normalizeSymbols(argStringSlice(args, "symbols"))
				return p.ComprehensiveAnalysis(context.Background(), argString(args, "question"), symbols)
			},
		},
		"get_account_status": {
			Name:        "get_account_status",
			Description: "获取当前账户余额状态（JSON）",
			Parameters:  map[string]any{},
			Handler: func(args map[string]any) string {
				return p.GetAccountStatus(context.Background())
			},
		},
		"get_current_positions": {
			Name:        "get_current_positions",
			Description: "获取当前持仓列表（JSON）",
			Parameters:  map[string]any{},
			Handler: func(args map[string]any) string {
				return p.GetCurrentPositions(context.Background())
			},
		},
		"trading_analysis": {
			Name:        "trading_analysis",
			Description: "基于既有分析结果执行交易员决策",
			Parameters:  map[string]any{"analysis_results": "string, required", "question": "string, required"},
			Handler: func(args map[string]any) string {
				return p.TradingAnalysis(context.Background(), argString(args, "analysis_results"), argString(args, "question"))
			},
		},
		"get_market_data": {
			Name:        "get_market_data",
			Description: "获取一个或多个交易对的原始市场数据（JSON）",
			Parameters:  map[string]any{"symbol": "string, optional", "symbols": "string list, optional"},
			Handler: func(args map[string]any) string {
				symbols := normalizeSymbols(argStringSlice(args, "symbols"))
				if single := argString(args, "symbol"); single != "" {
					symbols = append(symbols, model.NormalizeSymbol(single))
				}
				if len(symbols) == 0 {
					return "❌ 缺少必需参数: symbol 或 symbols"
				}
				return p.GetMarketData(context.Background(), symbols)
			},
		},
		"manual_trigger_analysis": {
			Name:        "manual_trigger_analysis",
			Description: "手动触发指定交易对的分析",
			Parameters:  map[string]any{"symbol": "string, required"},
			Handler: func(args map[string]any) string {
				return p.ManualTriggerAnalysis(context.Background(), model.NormalizeSymbol(argString(args, "symbol")))
			},
		},
		"send_telegram_notification": {
			Name:        "send_telegram_notification",
			Description: "向绑定的聊天发送一条通知",
			Parameters:  map[string]any{"message": "string, required"},
			Handler: func(args map[string]any) string {
				message := argString(args, "message")
				if message == "" {
					return "❌ 缺少必需参数: message"
				}
				return p.SendTelegramNotification(context.Background(), message)
			},
		},
		"get_system_status": {
			Name:        "get_system_status",
			Description: "获取系统运行状态（JSON）",
			Parameters:  map[string]any{},
			Handler: func(args map[string]any) string {
				return p.GetSystemStatus(context.Background())
			},
		},
		"set_monitoring_symbols": {
			Name:        "set_monitoring_symbols",
			Description: "更新主要/次要监控交易对列表",
			Parameters:  map[string]any{"primary_symbols": "string list, required", "secondary_symbols": "string list, optional"},
			Handler: func(args map[string]any) string {
				primary := normalizeSymbols(argStringSlice(args, "primary_symbols"))
				if len(primary) == 0 {
					return "❌ 缺少必需参数: primary_symbols"
				}
				secondary := normalizeSymbols(argStringSlice(args, "secondary_symbols"))
				return p.SetMonitoringSymbols(context.Background(), primary, secondary)
			},
		},
		"get_monitoring_symbols": {
			Name:        "get_monitoring_symbols",
			Description: "获取当前监控交易对列表（JSON）",
			Parameters:  map[string]any{},
			Handler: func(args map[string]any) string {
				return p.GetMonitoringSymbols(context.Background())
			},
		},
		"set_heartbeat_interval": {
			Name:        "set_heartbeat_interval",
			Description: "设置心跳间隔（60-3600秒）",
			Parameters:  map[string]any{"interval_seconds": "int, required, 60<=x<=3600"},
			Handler: func(args map[string]any) string {
				seconds, ok := argInt(args, "interval_seconds")
				if !ok {
					return "❌ 缺少必需参数: interval_seconds"
				}
				if seconds < 60 || seconds > 3600 {
					return "❌ interval_seconds 必须在 60 到 3600 之间"
				}
				return p.SetHeartbeatInterval(context.Background(), seconds)
			},
		},
		"get_heartbeat_settings": {
			Name:        "get_heartbeat_settings",
			Description: "获取当前心跳设置（JSON）",
			Parameters:  map[string]any{},
			Handler: func(args map[string]any) string {
				return p.GetHeartbeatSettings(context.Background())
			},
		},
		"start_symbol_monitor": {
			Name:        "start_symbol_monitor",
			Description: "启动对某交易对的定时监控",
			Parameters:  map[string]any{"symbol": "string, required", "interval_minutes": "int, optional, default 30"},
			Handler: func(args map[string]any) string {
				symbol := model.NormalizeSymbol(argString(args, "symbol"))
				if symbol == "" {
					return "❌ 缺少必需参数: symbol"
				}
				interval, ok := argInt(args, "interval_minutes")
				if !ok {
					interval = 30
				}
				return p.StartSymbolMonitor(context.Background(), symbol, interval)
			},
		},
		"stop_symbol_monitor": {
			Name:        "stop_symbol_monitor",
			Description: "停止对某交易对的定时监控",
			Parameters:  map[string]any{"symbol": "string, required"},
			Handler: func(args map[string]any) string {
				symbol := model.NormalizeSymbol(argString(args, "symbol"))
				if symbol == "" {
					return "❌ 缺少必需参数: symbol"
				}
				return p.StopSymbolMonitor(context.Background(), symbol)
			},
		},
		"get_symbol_monitors_status": {
			Name:        "get_symbol_monitors_status",
			Description: "获取所有交易对监控的状态（JSON）",
			Parameters:  map[string]any{},
			Handler: func(args map[string]any) string {
				return p.GetSymbolMonitorsStatus(context.Background())
			},
		},
	}
}

func argString(args map[string]any, key string) string {
	v, ok := args[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return fmt.Sprintf("%v", v)
	}
	return strings.TrimSpace(s)
}

func argStringSlice(args map[string]any, key string) []string {
	v, ok := args[key]
	if !ok {
		return nil
	}
	switch t := v.(type) {
	case []string:
		return t
	case string:
		if t == "" {
			return nil
		}
		parts := strings.Split(t, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
		return out
	default:
		return nil
	}
}

func argInt(args map[string]any, key string) (int, bool) {
	v, ok := args[key]
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case int:
		return t, true
	case float64:
		return int(t), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

func normalizeSymbols(raw []string) []string {
	if raw == nil {
		return nil
	}
	out := make([]string, len(raw))
	for i, s := range raw {
		out[i] = model.NormalizeSymbol(s)
	}
	return out
}
