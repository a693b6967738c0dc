package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ANSI color codes
const (
	Reset  = "\033[0m"
	Bold   = "\033[1m"

	// Foreground colors
	Red     = "\033[31m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Blue    = "\033[34m"
	Magenta = "\033[35m"
	Cyan    = "\033[36m"
	White   = "\033[37m"

	// Bright foreground colors
	BrightRed     = "\033[91m"
	BrightGreen   = "\033[92m"
	BrightYellow  = "\033[93m"
	BrightBlue    = "\033[94m"
	BrightMagenta = "\033[95m"
	BrightCyan    = "\033[96m"

	// Background colors
	BgBlack   = "\033[40m"
	BgRed     = "\033[41m"
	BgGreen   = "\033[42m"
	BgYellow  = "\033[43m"
	BgBlue    = "\033[44m"
	BgMagenta = "\033[45m"
	BgCyan    = "\033[46m"
	BgWhite   = "\033[47m"
)

// ColorLogger provides colored terminal output
type ColorLogger struct {
	logger zerolog.Logger
	writer io.Writer
}

// NewColorLogger creates a new ColorLogger instance
func NewColorLogger(debug bool) *ColorLogger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
		NoColor:    false,
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	logger := zerolog.New(output).With().Timestamp().Logger()

	return &ColorLogger{
		logger: logger,
		writer: os.Stdout,
	}
}

// Header prints a header with the given text
func (l *ColorLogger) Header(text string, char rune, width int) {
	line := strings.Repeat(string(char), width)
	fmt.Fprintf(l.writer, "\n%s%s%s%s\n", Bold, BrightCyan, line, Reset)
	fmt.Fprintf(l.writer, "%s%s%s%s\n", Bold, BrightCyan, center(text, width), Reset)
	fmt.Fprintf(l.writer, "%s%s%s%s\n\n", Bold, BrightCyan, line, Reset)
}

// Subheader prints a subheader
func (l *ColorLogger) Subheader(text string, char rune, width int) {
	line := strings.Repeat(string(char), width)
	fmt.Fprintf(l.writer, "\n%s%s%s\n", BrightBlue, line, Reset)
	fmt.Fprintf(l.writer, "%s%s%s%s\n", Bold, BrightBlue, text, Reset)
	fmt.Fprintf(l.writer, "%s%s%s\n\n", BrightBlue, line, Reset)
}

// Success prints a success message
func (l *ColorLogger) Success(text string) {
	fmt.Fprintf(l.writer, "%s✅ %s%s\n", BrightGreen, text, Reset)
	l.logger.Info().Msg(text)
}

// Error prints an error message
func (l *ColorLogger) Error(text string) {
	fmt.Fprintf(l.writer, "%s❌ %s%s\n", BrightRed, text, Reset)
	l.logger.Error().Msg(text)
}

// Warning prints a warning message
func (l *ColorLogger) Warning(text string) {
	fmt.Fprintf(l.writer, "%s⚠️  %s%s\n", BrightYellow, text, Reset)
	l.logger.Warn().Msg(text)
}

// Info prints an info message
func (l *ColorLogger) Info(text string) {
	fmt.Fprintf(l.writer, "%sℹ️  %s%s\n", Cyan, text, Reset)
	l.logger.Info().Msg(text)
}

// ToolCall prints a tool call message
func (l *ColorLogger) ToolCall(toolName string) {
	fmt.Fprintf(l.writer, "%s🔧 调用工具: %s%s%s\n", Yellow, Bold, toolName, Reset)
	l.logger.Debug().Str("tool", toolName).Msg("Tool called")
}

// Debug prints a debug message (only if debug mode is enabled)
func (l *ColorLogger) Debug(text string) {
	l.logger.Debug().Msg(text)
}

// MonitorTick logs one symbol-monitor wake-up.
func (l *ColorLogger) MonitorTick(symbol string) {
	fmt.Fprintf(l.writer, "%s🔔 监控触发: %s%s\n", BrightBlue, symbol, Reset)
	l.logger.Info().Str("symbol", symbol).Msg("monitor tick")
}

// SchedulerFire logs a wall-clock scheduler firing.
func (l *ColorLogger) SchedulerFire(slot string) {
	fmt.Fprintf(l.writer, "%s%s🕐 定时任务触发: %s%s\n", Bold, BrightMagenta, slot, Reset)
	l.logger.Info().Str("slot", slot).Msg("scheduler fire")
}

// CapabilityDispatch logs a Master Brain capability dispatch.
func (l *ColorLogger) CapabilityDispatch(name string, args map[string]any) {
	fmt.Fprintf(l.writer, "%s⚙️  调用能力: %s%s%s\n", Yellow, Bold, name, Reset)
	l.logger.Debug().Str("capability", name).Interface("args", args).Msg("capability dispatch")
}

// Helper function to center text
func center(text string, width int) string {
	if len(text) >= width {
		return text
	}
	padding := (width - len(text)) / 2
	return strings.Repeat(" ", padding) + text
}

// Global logger instance
var Global *ColorLogger

// Init initializes the global logger
func Init(debug bool) {
	Global = NewColorLogger(debug)
}