package journal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shaiso/Remora/internal/contracts"
	"github.com/shaiso/Remora/internal/domain"
	"github.com/shaiso/Remora/internal/mq"
	"github.com/shaiso/Remora/internal/retry"
	"github.com/shaiso/Remora/internal/scripts"
	"github.com/shaiso/Remora/internal/telemetry"
)

type fakeStore struct {
	mu        sync.Mutex
	created   []domain.ScriptExecution
	logs      []domain.ProcessOutput
	completed []domain.ExecutionOutcome
	err       error
	ctxErrs   []error
}

func (s *fakeStore) Create(ctx context.Context, exec *domain.ScriptExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, *exec)
	s.ctxErrs = append(s.ctxErrs, ctx.Err())
	return s.err
}

func (s *fakeStore) AppendLogs(ctx context.Context, ticket domain.ScriptTicket, logs []domain.ProcessOutput) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, logs...)
	s.ctxErrs = append(s.ctxErrs, ctx.Err())
	return int64(len(s.logs)), s.err
}

func (s *fakeStore) Complete(ctx context.Context, ticket domain.ScriptTicket, outcome domain.ExecutionOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = append(s.completed, outcome)
	s.ctxErrs = append(s.ctxErrs, ctx.Err())
	return s.err
}

type fakePublisher struct {
	mu        sync.Mutex
	statuses  []mq.ScriptStatusPayload
	completed []mq.ScriptCompletedPayload
	err       error
}

func (p *fakePublisher) PublishScriptStatus(ctx context.Context, payload mq.ScriptStatusPayload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses = append(p.statuses, payload)
	return p.err
}

func (p *fakePublisher) PublishScriptCompleted(ctx context.Context, payload mq.ScriptCompletedPayload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completed = append(p.completed, payload)
	return p.err
}

var fixedNow = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func newTestRecorder(store Store, publisher EventPublisher) *Recorder {
	return New(Config{
		Store:     store,
		Publisher: publisher,
		Logger:    slog.New(slog.DiscardHandler),
		Now:       func() time.Time { return fixedNow },
	})
}

func logLines(texts ...string) []domain.ProcessOutput {
	out := make([]domain.ProcessOutput, len(texts))
	for i, text := range texts {
		out[i] = domain.ProcessOutput{Source: domain.OutputStdOut, Text: text}
	}
	return out
}

// --- Recorder Tests ---

func TestRecorder_Lifecycle(t *testing.T) {
	store := &fakeStore{}
	pub := &fakePublisher{}
	r := newTestRecorder(store, pub)

	cmd := domain.StartScriptCommand{Ticket: "t-1", TaskID: "task", ScriptBody: "echo"}
	entry := r.Begin(context.Background(), "http://w", cmd)

	var forwarded int
	completed := false
	callbacks := entry.Callbacks(scripts.Callbacks{
		OnStatusReceived: func(s domain.ScriptExecutionStatus) { forwarded += len(s.Logs) },
		OnCompleted:      func(context.Context) { completed = true },
	})

	callbacks.OnStatusReceived(domain.ScriptExecutionStatus{Logs: logLines("a", "b")})
	callbacks.OnStatusReceived(domain.ScriptExecutionStatus{})
	callbacks.OnStatusReceived(domain.ScriptExecutionStatus{Logs: logLines("c")})
	callbacks.OnCompleted(context.Background())

	outcome := entry.Finish(contracts.Version2, domain.ScriptExecutionResult{State: domain.ProcessStateComplete, ExitCode: 0}, nil)

	if len(store.created) != 1 || store.created[0].Ticket != "t-1" || store.created[0].State != domain.ProcessStatePending {
		t.Errorf("unexpected created %+v", store.created)
	}
	if !store.created[0].StartedAt.Equal(fixedNow) {
		t.Errorf("unexpected started_at %v", store.created[0].StartedAt)
	}
	if len(store.logs) != 3 || entry.LogCount() != 3 {
		t.Errorf("expected 3 journaled logs, got %d/%d", len(store.logs), entry.LogCount())
	}
	if len(pub.statuses) != 2 {
		t.Errorf("empty status must not be published, got %d", len(pub.statuses))
	}
	if forwarded != 3 || !completed {
		t.Errorf("callbacks not forwarded: %d %v", forwarded, completed)
	}

	if outcome.ScriptServiceVersion != "ScriptServiceV2" || outcome.ExitCode != 0 || !outcome.FinishedAt.Equal(fixedNow) {
		t.Errorf("unexpected outcome %+v", outcome)
	}
	if len(store.completed) != 1 || len(pub.completed) != 1 || pub.completed[0].Worker != "http://w" {
		t.Errorf("expected one completion, got %+v %+v", store.completed, pub.completed)
	}
}

func TestRecorder_FinishOnce(t *testing.T) {
	store := &fakeStore{}
	entry := newTestRecorder(store, nil).Begin(context.Background(), "w", domain.StartScriptCommand{Ticket: "t"})

	entry.Finish(contracts.Version3, domain.ScriptExecutionResult{State: domain.ProcessStateComplete}, nil)
	entry.Finish(contracts.Version3, domain.ScriptExecutionResult{State: domain.ProcessStateComplete}, nil)

	if len(store.completed) != 1 {
		t.Errorf("expected single completion, got %d", len(store.completed))
	}
}

func TestRecorder_FailuresDoNotPropagate(t *testing.T) {
	store := &fakeStore{err: errors.New("db down")}
	pub := &fakePublisher{err: errors.New("mq down")}
	entry := newTestRecorder(store, pub).Begin(context.Background(), "w", domain.StartScriptCommand{Ticket: "t"})

	entry.Callbacks(scripts.Callbacks{}).OnStatusReceived(domain.ScriptExecutionStatus{Logs: logLines("x")})
	outcome := entry.Finish(0, domain.ScriptExecutionResult{State: domain.ProcessStateComplete, ExitCode: 1}, nil)

	if outcome.ExitCode != 1 || outcome.ScriptServiceVersion != "" {
		t.Errorf("unexpected outcome %+v", outcome)
	}
}

func TestRecorder_CancelledContextStillJournals(t *testing.T) {
	store := &fakeStore{}
	ctx, cancel := context.WithCancel(context.Background())
	entry := newTestRecorder(store, nil).Begin(ctx, "w", domain.StartScriptCommand{Ticket: "t"})
	cancel()

	entry.Callbacks(scripts.Callbacks{}).OnStatusReceived(domain.ScriptExecutionStatus{Logs: logLines("x")})
	entry.Finish(contracts.Version2, domain.ScriptExecutionResult{}, scripts.ErrScriptCancelled)

	for i, err := range store.ctxErrs {
		if err != nil {
			t.Errorf("store call %d got cancelled context", i)
		}
	}
	if store.completed[0].ExitCode != domain.CanceledExitCode {
		t.Errorf("expected cancelled exit code, got %+v", store.completed[0])
	}
}

func TestRecorder_NoDependencies(t *testing.T) {
	entry := newTestRecorder(nil, nil).Begin(context.Background(), "w", domain.StartScriptCommand{Ticket: "t"})
	entry.Callbacks(scripts.Callbacks{}).OnStatusReceived(domain.ScriptExecutionStatus{Logs: logLines("x")})
	entry.Finish(contracts.Version1, domain.ScriptExecutionResult{State: domain.ProcessStateComplete}, nil)

	if entry.LogCount() != 1 {
		t.Errorf("expected 1 log, got %d", entry.LogCount())
	}
}

func TestRecorder_UsesContextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil)).With("run", "ctx")
	ctx := telemetry.WithLogger(context.Background(), logger)

	store := &fakeStore{err: errors.New("db down")}
	newTestRecorder(store, nil).Begin(ctx, "w", domain.StartScriptCommand{Ticket: "t"})

	if !strings.Contains(buf.String(), `"run":"ctx"`) || !strings.Contains(buf.String(), "failed to journal script execution") {
		t.Errorf("expected journal warning on context logger, got %q", buf.String())
	}
}

func TestRecorder_FallbackLoggerCarriesExecution(t *testing.T) {
	var buf bytes.Buffer
	r := New(Config{Store: &fakeStore{err: errors.New("db down")}, Logger: slog.New(slog.NewJSONHandler(&buf, nil))})
	r.Begin(context.Background(), "http://w", domain.StartScriptCommand{Ticket: "t-9"})

	if !strings.Contains(buf.String(), `"ticket":"t-9"`) || !strings.Contains(buf.String(), `"worker":"http://w"`) {
		t.Errorf("expected ticket and worker attributes, got %q", buf.String())
	}
}

// --- Outcome Tests ---

func TestOutcome(t *testing.T) {
	tests := []struct {
		name     string
		result   domain.ScriptExecutionResult
		err      error
		exitCode int
		hasError bool
	}{
		{"success", domain.ScriptExecutionResult{State: domain.ProcessStateComplete, ExitCode: 0}, nil, 0, false},
		{"script failed", domain.ScriptExecutionResult{State: domain.ProcessStateComplete, ExitCode: 2}, nil, 2, false},
		{"cancelled", domain.ScriptExecutionResult{}, fmt.Errorf("x: %w", scripts.ErrScriptCancelled), domain.CanceledExitCode, true},
		{"abandoned", domain.ScriptExecutionResult{}, fmt.Errorf("cancel script: %w", &retry.AbandonedError{AbandonAfter: time.Second}), domain.CanceledExitCode, true},
		{"client error", domain.ScriptExecutionResult{}, contracts.ErrMalformedResponse, domain.FatalExitCode, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Outcome(tt.result, tt.err)
			if got.ExitCode != tt.exitCode {
				t.Errorf("exit code: got %d, want %d", got.ExitCode, tt.exitCode)
			}
			if (got.Error != "") != tt.hasError {
				t.Errorf("error: got %q", got.Error)
			}
		})
	}
}
