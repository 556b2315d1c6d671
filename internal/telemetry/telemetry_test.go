package telemetry

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/shaiso/Remora/internal/contracts"
	"github.com/shaiso/Remora/internal/retry"
	"github.com/shaiso/Remora/internal/rpc"
)

// --- Logging Tests ---

func TestLogLevel(t *testing.T) {
	tests := []struct {
		env  string
		want slog.Level
	}{
		{"", slog.LevelInfo},
		{"DEBUG", slog.LevelDebug},
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Setenv("LOG_LEVEL", tt.env)
		if got := LogLevel(); got != tt.want {
			t.Errorf("LOG_LEVEL=%q: got %v, want %v", tt.env, got, tt.want)
		}
	}
}

func TestSetupLoggerTo_Formats(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	t.Setenv("LOG_LEVEL", "INFO")

	var buf bytes.Buffer
	t.Setenv("LOG_FORMAT", "")
	SetupLoggerTo(&buf).Info("hello", "ticket", "abc")
	if !strings.HasPrefix(buf.String(), "{") || !strings.Contains(buf.String(), `"ticket":"abc"`) {
		t.Errorf("expected JSON output, got %q", buf.String())
	}

	buf.Reset()
	t.Setenv("LOG_FORMAT", "text")
	SetupLoggerTo(&buf).Info("hello", "ticket", "abc")
	if !strings.Contains(buf.String(), "ticket=abc") {
		t.Errorf("expected text output, got %q", buf.String())
	}
}

func TestFromContext(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	fallback := slog.New(slog.DiscardHandler)
	ctx := WithLogger(context.Background(), logger)

	if FromContext(ctx, fallback) != logger {
		t.Error("expected logger from context")
	}
	if FromContext(context.Background(), fallback) != fallback {
		t.Error("expected fallback logger")
	}
	if FromContext(context.Background(), nil) != slog.Default() {
		t.Error("expected default logger")
	}
}

func TestForExecution(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	ForExecution(base, "t-1", "http://w1").Info("started")
	if !strings.Contains(buf.String(), `"ticket":"t-1"`) || !strings.Contains(buf.String(), `"worker":"http://w1"`) {
		t.Errorf("expected ticket and worker, got %q", buf.String())
	}

	buf.Reset()
	ForExecution(base, "t-2", "").Info("started")
	if strings.Contains(buf.String(), `"worker"`) {
		t.Errorf("empty worker must be omitted, got %q", buf.String())
	}

	buf.Reset()
	ForWorker(base, "http://w2").Info("ready")
	if !strings.Contains(buf.String(), `"worker":"http://w2"`) {
		t.Errorf("expected worker, got %q", buf.String())
	}
}

// --- Metrics Tests ---

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, OutcomeSuccess},
		{errors.New("boom"), OutcomeFailure},
		{context.Canceled, OutcomeCancelled},
		{fmt.Errorf("wrapped: %w", context.Canceled), OutcomeCancelled},
		{&retry.AbandonedError{AbandonAfter: time.Second}, OutcomeAbandoned},
	}

	for _, tt := range tests {
		if got := Outcome(tt.err); got != tt.want {
			t.Errorf("Outcome(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestPrometheusObserver(t *testing.T) {
	reg := prometheus.NewRegistry()
	o := NewPrometheusObserver(reg)

	call := rpc.NewCall("ScriptServiceV2", "GetStatus")
	start := time.Now()

	o.RPCCallCompleted(rpc.CallMetrics{Call: call, Start: start, End: start.Add(time.Second), Attempts: 3, WithRetries: true})
	o.RPCCallCompleted(rpc.CallMetrics{Call: call, Start: start, End: start, Attempts: 1, WithRetries: true, Err: errors.New("boom")})
	o.ExecuteScriptCompleted(rpc.OperationMetrics{ScriptServiceVersion: contracts.Version2, Start: start, End: start.Add(time.Minute)})

	if got := testutil.ToFloat64(o.rpcCalls.WithLabelValues(call.String(), OutcomeSuccess, "true")); got != 1 {
		t.Errorf("expected 1 successful call, got %v", got)
	}
	if got := testutil.ToFloat64(o.rpcCalls.WithLabelValues(call.String(), OutcomeFailure, "true")); got != 1 {
		t.Errorf("expected 1 failed call, got %v", got)
	}
	if got := testutil.ToFloat64(o.rpcAttempts.WithLabelValues(call.String())); got != 4 {
		t.Errorf("expected 4 attempts, got %v", got)
	}
	if got := testutil.ToFloat64(o.executions.WithLabelValues("ScriptServiceV2", OutcomeSuccess)); got != 1 {
		t.Errorf("expected 1 execution, got %v", got)
	}
}

func TestMultiObserver(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	reg := prometheus.NewRegistry()
	m := MultiObserver{NewPrometheusObserver(reg), LogObserver{Logger: logger}}

	m.RPCCallCompleted(rpc.CallMetrics{Call: rpc.NewCall("CapabilitiesService", "GetCapabilities"), Attempts: 1})
	m.ExecuteScriptCompleted(rpc.OperationMetrics{ScriptServiceVersion: contracts.Version3})

	out := buf.String()
	if !strings.Contains(out, "rpc call completed") || !strings.Contains(out, "script execution metrics") {
		t.Errorf("expected both log lines, got %q", out)
	}
}
