package notify

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/baghaven/storefront/internal/logger"
	"github.com/baghaven/storefront/internal/model"
)

func TestConsole_Notify(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)

	c.Notify(model.LevelError, "Your account has been blocked.")
	c.Notify(model.LevelSuccess, "Added to cart")
	c.Notify(model.Level("odd"), "still shown")

	out := buf.String()
	assert.Contains(t, out, "[error] Your account has been blocked.")
	assert.Contains(t, out, "[success] Added to cart")
	assert.Contains(t, out, "[odd] still shown")
	// a buffer is not a terminal, so no escape codes
	assert.NotContains(t, out, "\x1b[")
}

func TestConsole_Navigate(t *testing.T) {
	var buf bytes.Buffer
	NewConsole(&buf).Navigate("/login")
	assert.Equal(t, "-> /login\n", buf.String())
}

func TestLog(t *testing.T) {
	var buf bytes.Buffer
	l := NewLog(logger.NewWithWriter(&buf, int(slog.LevelDebug)))

	l.Notify(model.LevelError, "blocked")
	l.Notify(model.LevelInfo, "hello")
	l.Navigate("/admin/login")

	out := buf.String()
	assert.Contains(t, out, `level=ERROR msg="Notify: blocked"`)
	assert.Contains(t, out, `level=INFO msg="Notify: hello"`)
	assert.Contains(t, out, "path=/admin/login")
}
