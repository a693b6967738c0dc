// Package telegram implements the Command Surface: a long-polling Telegram
// bot that exposes /start, /analyze <SYMBOL>, inline monitor/account
// buttons, and free-form text forwarded to the Master Brain. Grounded on
// original_source/integrations/telegram_bot.py's CryptoTelegramBot
// (start_command, analyze_command, _send_long_message, button_handler,
// message_handler), reimplemented against
// github.com/go-telegram-bot-api/telegram-bot-api/v5 since no complete
// example repo in the pack talks to Telegram inbound; the teacher's
// jpillora/backoff dependency is reused here for update-loop reconnects
// instead of the position-retry use it has in the teacher.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jpillora/backoff"

	"github.com/oak/crypto-sentinel/internal/logger"
)

const (
	maxMessageLength   = 4000
	defaultMonitorMins = 30
)

const welcomeMessage = `🤖 *加密货币监控系统*

👋 欢迎！

📊 ` + "`/analyze 币种`" + ` - 技术分析
💰 点击下方按钮查看账户状态
💬 直接发消息即可让智能主脑为你处理`

// Dispatcher is every controller operation the command surface invokes.
// Kept narrow so this package never imports internal/controller directly.
type Dispatcher interface {
	HandleMessage(ctx context.Context, chatID, text string) string
	Analyze(ctx context.Context, symbol string) string
	StartMonitor(ctx context.Context, symbol string, intervalMinutes int) string
	StopMonitor(ctx context.Context, symbol string) string
	AccountStatus(ctx context.Context) string
}

// Bot owns the Telegram transport: an authenticated client, the update
// long-poll loop, and translation between chat updates and the Dispatcher.
type Bot struct {
	api        *tgbotapi.BotAPI
	dispatcher Dispatcher
	log        *logger.ColorLogger
}

// NewBot authenticates against the Telegram Bot API.
func NewBot(token string, dispatcher Dispatcher, log *logger.ColorLogger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: auth failed: %w", err)
	}
	return &Bot{api: api, dispatcher: dispatcher, log: log}, nil
}

// Run starts the long-poll update loop and blocks until ctx is cancelled.
// When the update channel closes, the loop reconnects after a fixed 30s
// delay (jpillora/backoff with Min == Max), at most 5 times; after that it
// logs an error and returns.
func (b *Bot) Run(ctx context.Context) {
	const maxReconnects = 5
	bo := &backoff.Backoff{Min: 30 * time.Second, Max: 30 * time.Second}

	for {
		if ctx.Err() != nil {
			return
		}

		updateConfig := tgbotapi.NewUpdate(0)
		updateConfig.Timeout = 60
		updates := b.api.GetUpdatesChan(updateConfig)

		if b.log != nil {
			b.log.Success("Telegram 机器人已启动，开始轮询更新")
		}

		b.consume(ctx, updates)

		if ctx.Err() != nil {
			return
		}

		if bo.Attempt() >= maxReconnects {
			if b.log != nil {
				b.log.Error(fmt.Sprintf("Telegram 更新通道已关闭，重连 %d 次后停止", maxReconnects))
			}
			return
		}
		delay := bo.Duration()
		if b.log != nil {
			b.log.Warning(fmt.Sprintf("Telegram 更新通道已关闭，%s 后重试", delay))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func (b *Bot) consume(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.IsCommand():
		b.handleCommand(ctx, update.Message)
	case update.Message != nil:
		b.handleText(ctx, update.Message)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		b.sendWithKeyboard(msg.Chat.ID, welcomeMessage, mainMenuKeyboard())
	case "analyze":
		args := strings.TrimSpace(msg.CommandArguments())
		if args == "" {
			b.send(msg.Chat.ID, "❌ 格式错误！\n正确格式：`/analyze 币种`\n例：`/analyze BTC`")
			return
		}
		symbol := strings.ToUpper(strings.Fields(args)[0])
		if !strings.HasSuffix(symbol, "USDT") {
			symbol += "USDT"
		}
		b.send(msg.Chat.ID, fmt.Sprintf("🔍 正在分析 %s...", symbol))
		result := b.dispatcher.Analyze(ctx, symbol)
		b.sendLongWithKeyboard(msg.Chat.ID, result, monitorKeyboard(symbol))
	default:
		b.send(msg.Chat.ID, "未知命令，请使用 /start 查看帮助。")
	}
}

func (b *Bot) handleText(ctx context.Context, msg *tgbotapi.Message) {
	chatID := strconv.FormatInt(msg.Chat.ID, 10)
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	reply := b.dispatcher.HandleMessage(ctx, chatID, text)
	if reply == "" {
		b.send(msg.Chat.ID, "未收到响应，请重试。")
		return
	}
	b.sendLong(msg.Chat.ID, reply)
}

func (b *Bot) handleCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	ack := tgbotapi.NewCallback(query.ID, "")
	_, _ = b.api.Request(ack)

	chatID := query.Message.Chat.ID
	data := query.Data

	switch {
	case data == "main_menu":
		b.sendWithKeyboard(chatID, welcomeMessage, mainMenuKeyboard())
	case data == "account_status":
		b.sendLong(chatID, b.dispatcher.AccountStatus(ctx))
	case strings.HasPrefix(data, "monitor_start_"):
		symbol := strings.TrimPrefix(data, "monitor_start_")
		b.send(chatID, b.dispatcher.StartMonitor(ctx, symbol, defaultMonitorMins))
	case strings.HasPrefix(data, "monitor_stop_"):
		symbol := strings.TrimPrefix(data, "monitor_stop_")
		b.send(chatID, b.dispatcher.StopMonitor(ctx, symbol))
	}
}

func mainMenuKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💰 账户状态", "account_status"),
		),
	)
}

// monitorKeyboard binds the start/stop monitor buttons to symbol via
// callback data, per /analyze's reply contract.
func monitorKeyboard(symbol string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔔 开始监控", "monitor_start_"+symbol),
			tgbotapi.NewInlineKeyboardButtonData("⏹️ 停止监控", "monitor_stop_"+symbol),
		),
	)
}

// send posts text with Markdown formatting; if that fails it resends the
// same text as plain text and logs only when the plain-text send fails too.
func (b *Bot) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.api.Send(msg); err != nil {
		msg.ParseMode = ""
		if _, err := b.api.Send(msg); err != nil && b.log != nil {
			b.log.Error(fmt.Sprintf("Telegram 发送失败: %v", err))
		}
	}
}

func (b *Bot) sendWithKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = keyboard
	if _, err := b.api.Send(msg); err != nil {
		msg.ParseMode = ""
		if _, err := b.api.Send(msg); err != nil && b.log != nil {
			b.log.Error(fmt.Sprintf("Telegram 发送失败: %v", err))
		}
	}
}

// sendLong splits message on line boundaries so no single chunk exceeds
// maxMessageLength, per the teacher's _send_long_message.
func (b *Bot) sendLong(chatID int64, message string) {
	parts := chunkMessage(message, maxMessageLength)
	for i, part := range parts {
		text := part
		if i > 0 {
			text = "📄 *续：* " + text
		}
		b.send(chatID, text)
		if i < len(parts)-1 {
			time.Sleep(1 * time.Second)
		}
	}
}

// sendLongWithKeyboard is sendLong but attaches keyboard to the final chunk,
// so a multi-part analysis reply still ends with the monitor buttons.
func (b *Bot) sendLongWithKeyboard(chatID int64, message string, keyboard tgbotapi.InlineKeyboardMarkup) {
	parts := chunkMessage(message, maxMessageLength)
	for i, part := range parts {
		text := part
		if i > 0 {
			text = "📄 *续：* " + text
		}
		if i == len(parts)-1 {
			b.sendWithKeyboard(chatID, text, keyboard)
		} else {
			b.send(chatID, text)
			time.Sleep(1 * time.Second)
		}
	}
}

// SendMessage implements the narrow Notifier interface internal/monitor and
// the registry's SendTelegramNotification capability depend on. chatID is
// parsed as a Telegram numeric chat ID.
func (b *Bot) SendMessage(chatID, text string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: invalid chat id %q: %w", chatID, err)
	}
	b.sendLong(id, text)
	return nil
}

// chunkMessage splits message into parts no longer than max, breaking only
// at line boundaries so Markdown formatting is never split mid-line. A single
// line longer than max is not cut; it becomes a part of its own that exceeds
// max.
func chunkMessage(message string, max int) []string {
	if len(message) <= max {
		return []string{message}
	}

	var parts []string
	var current strings.Builder

	for _, line := range strings.Split(message, "\n") {
		if current.Len()+len(line)+1 > max && current.Len() > 0 {
			parts = append(parts, strings.TrimSpace(current.String()))
			current.Reset()
		}
		current.WriteString(line)
		current.WriteByte('\n')
	}
	if current.Len() > 0 {
		parts = append(parts, strings.TrimSpace(current.String()))
	}
	return parts
}
