package logger

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recorder struct {
	lines []string
}

func (r *recorder) Printf(format string, args ...interface{}) {
	r.lines = append(r.lines, fmt.Sprintf(format, args...))
}

func (r *recorder) joined() string {
	return strings.Join(r.lines, "\n")
}

func TestLoggerLevels(t *testing.T) {
	ctx := context.Background()

	rec := &recorder{}
	l := New(rec, Config{LogLevel: Warn})

	l.Info(ctx, "info msg")
	assert.Empty(t, rec.lines, "info is below the configured level")

	l.Warn(ctx, "warn msg")
	l.Error(ctx, "error msg")
	assert.Len(t, rec.lines, 2)
}

func TestLoggerTrace(t *testing.T) {
	ctx := context.Background()

	rec := &recorder{}
	l := New(rec, Config{LogLevel: Info})

	l.Trace(ctx, time.Now(), func() (string, int64) {
		return "Find Customer", 3
	}, nil)
	assert.Contains(t, rec.joined(), "Find Customer")
}

func TestLoggerTraceError(t *testing.T) {
	ctx := context.Background()

	rec := &recorder{}
	l := New(rec, Config{LogLevel: Error})

	l.Trace(ctx, time.Now(), func() (string, int64) {
		return "Find Customer", 0
	}, fmt.Errorf("boom"))
	assert.Contains(t, rec.joined(), "boom")
}

func TestLoggerIgnoresNotFound(t *testing.T) {
	ctx := context.Background()

	rec := &recorder{}
	l := New(rec, Config{LogLevel: Error, IgnoreRecordNotFoundError: true})

	l.Trace(ctx, time.Now(), func() (string, int64) {
		return "Find Customer", 0
	}, ErrRecordNotFound)
	assert.Empty(t, rec.lines)
}

func TestLoggerSilent(t *testing.T) {
	ctx := context.Background()

	rec := &recorder{}
	l := New(rec, Config{LogLevel: Silent})

	l.Error(ctx, "error msg")
	l.Trace(ctx, time.Now(), func() (string, int64) {
		return "op", 1
	}, fmt.Errorf("boom"))
	assert.Empty(t, rec.lines)
}

func TestLogModeReturnsCopy(t *testing.T) {
	rec := &recorder{}
	l := New(rec, Config{LogLevel: Silent})

	loud := l.LogMode(Info)
	loud.Info(context.Background(), "hello")
	assert.Len(t, rec.lines, 1)

	l.Info(context.Background(), "hidden")
	assert.Len(t, rec.lines, 1, "the original keeps its level")
}
