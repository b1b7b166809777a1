package initializer

import (
	"io"
	"log/slog"
	"os"

	"github.com/amirasaad/bankcore/pkg/config"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

type levelStyle struct {
	level log.Level
	icon  string
	color string
}

var levelStyles = []levelStyle{
	{level: log.ErrorLevel, icon: "❌", color: "#FF6B6B"},
	{level: log.WarnLevel, icon: "⚠️", color: "#EE6FF8"},
	{level: log.InfoLevel, icon: "ℹ️", color: "#04B575"},
	{level: log.DebugLevel, icon: "🐛", color: "#7E57C2"},
}

// Keys highlighted in every record.
var highlightedKeys = []string{"error", "component", "operation", "id", "provider", "prefix", "caller", "time"}

func loggerStyles() *log.Styles {
	styles := log.DefaultStyles()
	for _, ls := range levelStyles {
		color := lipgloss.AdaptiveColor{Light: ls.color, Dark: ls.color}
		styles.Levels[ls.level] = lipgloss.NewStyle().
			SetString(ls.icon).
			Bold(true).
			Padding(0, 1).
			Foreground(color)
	}
	accent := lipgloss.AdaptiveColor{Light: "#7E57C2", Dark: "#7E57C2"}
	for _, key := range highlightedKeys {
		styles.Keys[key] = lipgloss.NewStyle().Foreground(accent)
		styles.Values[key] = lipgloss.NewStyle().Bold(true)
	}
	styles.Keys["error"] = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#FF6B6B", Dark: "#FF6B6B"})
	return styles
}

// NewLogger builds a styled charmbracelet handler writing to w.
func NewLogger(w io.Writer, cfg *config.Log) *slog.Logger {
	formatter := log.TextFormatter
	if cfg.Format == "json" {
		formatter = log.JSONFormatter
	}
	handler := log.NewWithOptions(w, log.Options{
		ReportCaller:    true,
		ReportTimestamp: true,
		TimeFormat:      cfg.TimeFormat,
		Level:           log.Level(cfg.Level),
		Prefix:          cfg.Prefix,
		Formatter:       formatter,
	})
	handler.SetStyles(loggerStyles())
	return slog.New(handler)
}

// setupLogger installs the process-wide logger.
func setupLogger(cfg *config.Log) *slog.Logger {
	logger := NewLogger(os.Stdout, cfg)
	slog.SetDefault(logger)
	return logger
}
