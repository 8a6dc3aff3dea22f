package logging

import (
	"fmt"
	"testing"
)

// TestLogger routes log output through testing.T so it appears alongside
// the rest of a test's output and under -v.
type TestLogger struct {
	t *testing.T
}

var _ Logger = (*TestLogger)(nil)

// NewTest returns a Logger backed by t.
func NewTest(t *testing.T) *TestLogger { return &TestLogger{t: t} }

func (l *TestLogger) Debug(msg string, kv ...any) { l.t.Logf("DEBUG: %s %s", msg, formatKV(kv)) }
func (l *TestLogger) Info(msg string, kv ...any)  { l.t.Logf("INFO: %s %s", msg, formatKV(kv)) }
func (l *TestLogger) Warn(msg string, kv ...any)  { l.t.Logf("WARN: %s %s", msg, formatKV(kv)) }
func (l *TestLogger) Error(msg string, kv ...any) { l.t.Logf("ERROR: %s %s", msg, formatKV(kv)) }

// Fatal fails the test immediately via t.Fatalf.
func (l *TestLogger) Fatal(msg string, kv ...any) { l.t.Fatalf("FATAL: %s %s", msg, formatKV(kv)) }

func formatKV(kv []any) string {
	if len(kv) == 0 {
		return ""
	}

	result := ""
	for i := 0; i < len(kv); i += 2 {
		if i+1 < len(kv) {
			result += fmt.Sprintf("%v=%v ", kv[i], kv[i+1])
		} else {
			result += fmt.Sprintf("%v=<missing> ", kv[i])
		}
	}

	return result
}
