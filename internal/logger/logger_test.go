package logger_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vexfs/vexfs/internal/logger"
)

func TestTextHandlerIncludesFields(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWithWriter(&buf, "DEBUG", "text")

	logger.Info("committed transaction", "tid", 42)

	out := buf.String()
	assert.Contains(t, out, "committed transaction")
	assert.Contains(t, out, "tid=42")
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWithWriter(&buf, "WARN", "text")

	logger.Debug("should not appear")
	logger.Warn("should appear")

	out := buf.String()
	assert.NotContains(t, out, "should not appear")
	assert.Contains(t, out, "should appear")
}

func TestContextFieldsInjected(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWithWriter(&buf, "INFO", "text")

	ctx := logger.WithContext(context.Background(), &logger.LogContext{
		TraceID:   "trace-1",
		Operation: "txn.commit",
	})
	logger.InfoCtx(ctx, "committing")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Contains(t, lines[len(lines)-1], "trace_id=trace-1")
	assert.Contains(t, lines[len(lines)-1], "operation=txn.commit")
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWithWriter(&buf, "INFO", "json")
	defer logger.SetFormat("text")

	logger.Info("hello", "k", "v")
	assert.Contains(t, buf.String(), `"msg":"hello"`)
}
