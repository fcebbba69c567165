// Package notify shows toasts and navigation requests outside a browser:
// rendered to a terminal or routed to the log.
package notify

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/baghaven/storefront/internal/logger"
	"github.com/baghaven/storefront/internal/model"
)

// Console renders toasts to a terminal writer.
type Console struct {
	mu     sync.Mutex
	out    io.Writer
	styles map[model.Level]lipgloss.Style
	route  lipgloss.Style
}

var (
	_ model.Notifier  = (*Console)(nil)
	_ model.Navigator = (*Console)(nil)
)

// NewConsole creates a Console writing to out. Colors are used only when out
// is a terminal that supports them.
func NewConsole(out io.Writer) *Console {
	r := lipgloss.NewRenderer(out)
	return &Console{
		out: out,
		styles: map[model.Level]lipgloss.Style{
			model.LevelInfo:    r.NewStyle().Foreground(lipgloss.Color("#61AFEF")),
			model.LevelSuccess: r.NewStyle().Foreground(lipgloss.Color("#98C379")).Bold(true),
			model.LevelError:   r.NewStyle().Foreground(lipgloss.Color("#E06C75")).Bold(true),
		},
		route: r.NewStyle().Faint(true),
	}
}

// Notify prints message tagged with its level.
func (c *Console) Notify(level model.Level, message string) {
	style, ok := c.styles[level]
	if !ok {
		style = c.styles[model.LevelInfo]
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintln(c.out, style.Render(fmt.Sprintf("[%s] %s", level, message)))
}

// Navigate prints the route the client was sent to.
func (c *Console) Navigate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintln(c.out, c.route.Render("-> "+path))
}

// Log routes toasts and navigation to the logger.
type Log struct {
	logger *logger.Logger
}

var (
	_ model.Notifier  = (*Log)(nil)
	_ model.Navigator = (*Log)(nil)
)

// NewLog creates a Log notifier.
func NewLog(logger *logger.Logger) *Log {
	return &Log{logger: logger}
}

// Notify logs message at a level matching the toast.
func (l *Log) Notify(level model.Level, message string) {
	switch level {
	case model.LevelError:
		l.logger.Error("Notify: "+message, "toast", string(level))
	default:
		l.logger.Info("Notify: "+message, "toast", string(level))
	}
}

// Navigate logs the route.
func (l *Log) Navigate(path string) {
	l.logger.Info("Navigate", "path", path)
}
