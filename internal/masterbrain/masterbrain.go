package masterbrain

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/oak/crypto-sentinel/internal/constant"
	"github.com/oak/crypto-sentinel/internal/llm"
	"github.com/oak/crypto-sentinel/internal/logger"
	"github.com/oak/crypto-sentinel/internal/model"
)

const masterBrainAgentName = "智能主脑"

const standbyPrompt = `你是加密货币交易系统的智能主脑，当前处于待机模式。

## 工作模式
- 待机状态：系统已启动但不主动分析
- Telegram 控制：所有分析和交易通过用户命令触发
- 按需响应：只在收到明确指令时才执行相应操作
- 动态监控：系统没有默认监控币种，完全根据用户输入动态添加和移除

## 工作原则
1. 按需服务：只在收到用户明确请求时执行操作
2. 智能决策：根据用户请求选择合适的能力组合
3. 风险优先：任何交易决策都要优先考虑风险控制
4. 透明执行：清晰说明思考过程和调用的能力
5. 资源优化：宏观分析每日限一次，避免重复调用

## 响应格式
- 首先说明你的理解和计划
- 然后调用相应的 function
- 最后总结结果并给出建议`

const directiveGrammar = `
如果需要调用函数，请用以下格式：
FUNCTION_CALL: function_name(param1=value1, param2=value2)

注意：字符串参数要用引号，数组参数用方括号，如 symbols=["BTCUSDT", "ETHUSDT"]。`

const historyWindow = 10

// History is the subset of internal/session.Store the Master Brain reads
// and writes through. Kept as a narrow interface so this package never
// imports storage directly.
type History interface {
	GetHistory(chatID string, limit int) ([]model.ChatMessage, error)
	AddMessage(chatID, role, content string) error
	CheckAndCompress(chatID string)
}

// Brain is the Master Brain dispatcher: it never holds a back-reference to
// the Controller, only a frozen capability registry (built by the
// Controller, borrowed here) and an LLM caller, per spec.md §9.
type Brain struct {
	registry map[string]model.CapabilityDescriptor
	caller   llm.Caller
	history  History
	log      *logger.ColorLogger
}

// New builds a Master Brain bound to a frozen capability registry.
func New(registry map[string]model.CapabilityDescriptor, caller llm.Caller, history History, log *logger.ColorLogger) *Brain {
	return &Brain{registry: registry, caller: caller, history: history, log: log}
}

// ProcessRequest runs the full request-handling algorithm: context assembly,
// history read, one LLM call, directive dispatch, then session persistence.
func (b *Brain) ProcessRequest(ctx context.Context, userText, chatID string, extraContext map[string]string, monitoredSymbols []string, systemMode string) string {
	contextInfo := b.prepareContext(extraContext, monitoredSymbols, systemMode)

	var history []model.ChatMessage
	if b.history != nil {
		if h, err := b.history.GetHistory(chatID, historyWindow); err == nil {
			history = h
		}
	}

	systemPrompt := b.buildSystemPrompt()
	userMessage := fmt.Sprintf("## 当前上下文\n%s\n\n## 用户请求\n%s\n\n请智能分析并执行相应操作。", contextInfo, userText)

	raw, err := b.caller.Call(ctx, systemPrompt+"\n\n"+formatHistory(history), userMessage, masterBrainAgentName)
	if err != nil {
		return fmt.Sprintf("❌ 主脑处理失败: %v", err)
	}

	reply := b.processFunctionCalls(raw)

	if b.history != nil {
		_ = b.history.AddMessage(chatID, constant.RoleUser, userText)
		_ = b.history.AddMessage(chatID, constant.RoleAssistant, reply)
		b.history.CheckAndCompress(chatID)
	}

	return reply
}

// HeartbeatDecision is intentionally a no-op: the system never trades
// autonomously on a heartbeat, per spec.md §4.4.
func (b *Brain) HeartbeatDecision(marketConditions map[string]any) string {
	symbol := "N/A"
	if s, ok := marketConditions["symbol"].(string); ok && s != "" {
		symbol = s
	}
	return fmt.Sprintf("🧠 系统待机中...\n\n📊 市场监控正常：\n- 币种: %s\n- 状态: 数据收集正常\n\n📱 请通过 Telegram 发送指令进行分析或交易操作。", symbol)
}

func (b *Brain) prepareContext(extra map[string]string, monitoredSymbols []string, systemMode string) string {
	monitored := "无(等待用户添加)"
	if len(monitoredSymbols) > 0 {
		monitored = strings.Join(monitoredSymbols, ", ")
	}

	lines := []string{
		fmt.Sprintf("系统时间: %s", time.Now().Format("2006-01-02 15:04:05")),
		fmt.Sprintf("监控币种: %s", monitored),
		fmt.Sprintf("系统模式: %s", systemMode),
	}

	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%s: %s", k, extra[k]))
	}

	return strings.Join(lines, "\n")
}

func (b *Brain) buildSystemPrompt() string {
	names := make([]string, 0, len(b.registry))
	for name := range b.registry {
		names = append(names, name)
	}
	sort.Strings(names)

	var list strings.Builder
	for _, name := range names {
		fmt.Fprintf(&list, "- %s: %s\n", name, b.registry[name].Description)
	}

	return fmt.Sprintf("%s\n\n可用的函数调用:\n%s%s", standbyPrompt, list.String(), directiveGrammar)
}

// processFunctionCalls walks the reply line by line, dispatching every
// FUNCTION_CALL directive and substituting its result in place.
func (b *Brain) processFunctionCalls(response string) string {
	lines := strings.Split(response, "\n")
	out := make([]string, 0, len(lines))

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "FUNCTION_CALL:") {
			out = append(out, line)
			continue
		}

		call := strings.TrimSpace(strings.TrimPrefix(trimmed, "FUNCTION_CALL:"))
		result := b.dispatch(call)
		if result != "" {
			out = append(out, result)
		} else {
			out = append(out, line)
		}
	}

	return strings.Join(out, "\n")
}

func (b *Brain) dispatch(call string) string {
	d, ok := parseDirective(call)
	if !ok {
		return fmt.Sprintf("❌ 无法解析的函数调用: %s", call)
	}

	capability, ok := b.registry[d.name]
	if !ok {
		return fmt.Sprintf("❌ 未知的函数调用: %s", call)
	}

	if b.log != nil {
		b.log.CapabilityDispatch(d.name, d.args)
	}
	return capability.Handler(d.args)
}

func formatHistory(history []model.ChatMessage) string {
	if len(history) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("## 历史对话\n")
	for _, m := range history {
		fmt.Fprintf(&sb, "%s: %s\n", m.Role, m.Content)
	}
	return sb.String()
}
