package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoggerLevels(t *testing.T) {
	var out, errOut bytes.Buffer
	l := NewLoggerWithWriters("warn", &out, &errOut)

	l.Debug("debug message")
	l.Info("info message")
	l.Warn("warn message", "userID", "42")
	l.Error("error message", "orderID", "1700000000000")

	assert.NotContains(t, out.String(), "debug message")
	assert.NotContains(t, out.String(), "info message")
	assert.Contains(t, out.String(), "WARN: ")
	assert.Contains(t, out.String(), "warn message userID=42")
	assert.Contains(t, errOut.String(), "error message orderID=1700000000000")
}

func TestLoggerWithFields(t *testing.T) {
	var out bytes.Buffer
	l := NewLoggerWithWriters("info", &out, &out).With("component", "orders")

	l.Info("placed", "userID", "7")

	assert.Contains(t, out.String(), "placed component=orders userID=7")
}

func TestFormatMsgOddKeyvals(t *testing.T) {
	assert.Equal(t, "msg a=1 b=missing", formatMsg("msg", "a", 1, "b"))
	assert.Equal(t, "msg", formatMsg("msg"))
}
