package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/Remora/internal/config"
	"github.com/shaiso/Remora/internal/contracts"
	"github.com/shaiso/Remora/internal/domain"
	"github.com/shaiso/Remora/internal/transport"
)

// echoWorker — V2-воркер: печатает тело скрипта, "fail" завершается с кодом 1.
type echoWorker struct {
	mu      sync.Mutex
	scripts map[domain.ScriptTicket]contracts.StartScriptCommandV2
}

func newEchoWorker(t *testing.T) (*echoWorker, string) {
	t.Helper()
	w := &echoWorker{scripts: make(map[domain.ScriptTicket]contracts.StartScriptCommandV2)}
	srv := httptest.NewServer(transport.NewHandler(transport.Services{V2: w, Capabilities: w}, slog.New(slog.DiscardHandler)))
	t.Cleanup(srv.Close)
	return w, srv.URL
}

func (w *echoWorker) GetCapabilities(ctx context.Context) (contracts.CapabilitiesResponse, error) {
	return contracts.CapabilitiesResponse{SupportedCapabilities: []string{
		contracts.CapabilityScriptServiceV1,
		contracts.CapabilityScriptServiceV2,
	}}, nil
}

func (w *echoWorker) StartScript(ctx context.Context, cmd contracts.StartScriptCommandV2) (contracts.ScriptStatusResponseV2, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.scripts[cmd.Ticket] = cmd
	return contracts.ScriptStatusResponseV2{Ticket: cmd.Ticket, State: domain.ProcessStateRunning, ExitCode: domain.RunningExitCode}, nil
}

func (w *echoWorker) GetStatus(ctx context.Context, req contracts.ScriptStatusRequestV2) (contracts.ScriptStatusResponseV2, error) {
	w.mu.Lock()
	cmd, ok := w.scripts[req.Ticket]
	w.mu.Unlock()
	if !ok {
		return contracts.ScriptStatusResponseV2{}, contracts.ErrUnknownTicket
	}

	exitCode := 0
	if cmd.ScriptBody == "fail" {
		exitCode = 1
	}
	return contracts.ScriptStatusResponseV2{
		Ticket:          req.Ticket,
		State:           domain.ProcessStateComplete,
		ExitCode:        exitCode,
		Logs:            []domain.ProcessOutput{{Source: domain.OutputStdOut, Text: cmd.ScriptBody}},
		NextLogSequence: 1,
	}, nil
}

func (w *echoWorker) CancelScript(ctx context.Context, cmd contracts.CancelScriptCommandV2) (contracts.ScriptStatusResponseV2, error) {
	return contracts.ScriptStatusResponseV2{Ticket: cmd.Ticket, State: domain.ProcessStateComplete, ExitCode: domain.CanceledExitCode}, nil
}

func (w *echoWorker) CompleteScript(ctx context.Context, cmd contracts.CompleteScriptCommandV2) error {
	return nil
}

func (w *echoWorker) started() []contracts.StartScriptCommandV2 {
	w.mu.Lock()
	defer w.mu.Unlock()
	var cmds []contracts.StartScriptCommandV2
	for _, c := range w.scripts {
		cmds = append(cmds, c)
	}
	return cmds
}

// execute запускает команду так же, как cmd/remora.
func execute(t *testing.T, cfg config.Config, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	var jsonOutput bool

	root := &cobra.Command{Use: "remora", SilenceUsage: true, SilenceErrors: true}
	root.PersistentFlags().BoolVar(&jsonOutput, "json", false, "")

	env := NewEnv(cfg, slog.New(slog.DiscardHandler))
	envFn := func() (*Env, error) { return env, nil }
	outputFn := func() *Output { return NewOutputTo(jsonOutput, &stdout, &stderr) }

	root.AddCommand(
		NewRunCmd(envFn, outputFn),
		NewCapabilitiesCmd(envFn, outputFn),
		NewScheduleCmd(envFn, outputFn),
		NewEnqueueCmd(envFn, outputFn),
	)
	root.SetArgs(args)

	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// --- Run Tests ---

func TestRun_SingleWorker(t *testing.T) {
	worker, url := newEchoWorker(t)

	stdout, _, err := execute(t, config.Default(), "run", "--worker", url, "--", "echo", "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(stdout, "echo hello\n") {
		t.Errorf("expected script output in stdout, got:\n%s", stdout)
	}
	if !strings.Contains(stdout, "ScriptServiceV2") {
		t.Errorf("expected result table, got:\n%s", stdout)
	}

	started := worker.started()
	if len(started) != 1 || started[0].ScriptBody != "echo hello" {
		t.Errorf("unexpected started scripts %+v", started)
	}
}

func TestRun_MultipleWorkersJSON(t *testing.T) {
	_, url1 := newEchoWorker(t)
	_, url2 := newEchoWorker(t)

	cfg := config.Default()
	cfg.Workers = []string{url1, url2}

	stdout, stderr, err := execute(t, cfg, "--json", "run", "--script", "uptime")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var executions []Execution
	if err := json.Unmarshal([]byte(stdout), &executions); err != nil {
		t.Fatalf("stdout is not JSON: %v\n%s", err, stdout)
	}
	if len(executions) != 2 || executions[0].Worker != url1 || executions[1].Worker != url2 {
		t.Fatalf("unexpected executions %+v", executions)
	}
	if executions[0].Ticket == executions[1].Ticket {
		t.Error("each worker must get its own ticket")
	}

	// В JSON-режиме вывод скриптов идёт в stderr с меткой воркера.
	if !strings.Contains(stderr, "["+url1+"] uptime") {
		t.Errorf("expected prefixed log in stderr, got:\n%s", stderr)
	}
}

func TestRun_ScriptFailure(t *testing.T) {
	_, url := newEchoWorker(t)

	_, _, err := execute(t, config.Default(), "run", "-w", url, "--script", "fail")
	if !errors.Is(err, ErrScriptFailed) {
		t.Errorf("expected ErrScriptFailed, got %v", err)
	}
}

func TestRun_UnreachableWorker(t *testing.T) {
	_, url := newEchoWorker(t)

	cfg := config.Default()
	cfg.Client.RetriesEnabled = false

	stdout, _, err := execute(t, cfg, "--json", "run", "-w", url, "-w", "http://127.0.0.1:1", "--script", "true")
	if !errors.Is(err, ErrScriptFailed) {
		t.Fatalf("expected ErrScriptFailed, got %v", err)
	}

	var executions []Execution
	if err := json.Unmarshal([]byte(stdout), &executions); err != nil {
		t.Fatalf("stdout is not JSON: %v", err)
	}
	if !executions[0].Succeeded() {
		t.Errorf("healthy worker must succeed, got %+v", executions[0])
	}
	if executions[1].Succeeded() || executions[1].ExitCode != domain.FatalExitCode {
		t.Errorf("unreachable worker must fail fatally, got %+v", executions[1])
	}
}

func TestRun_NoWorkers(t *testing.T) {
	_, _, err := execute(t, config.Default(), "run", "--script", "true")
	if !errors.Is(err, ErrNoWorkers) {
		t.Errorf("expected ErrNoWorkers, got %v", err)
	}
}

// --- Capabilities Tests ---

func TestCapabilities(t *testing.T) {
	_, url := newEchoWorker(t)

	stdout, _, err := execute(t, config.Default(), "--json", "capabilities", "-w", url)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var results []WorkerCapabilities
	if err := json.Unmarshal([]byte(stdout), &results); err != nil {
		t.Fatalf("stdout is not JSON: %v", err)
	}
	if len(results) != 1 || len(results[0].Capabilities) != 2 {
		t.Errorf("unexpected capabilities %+v", results)
	}
}

// --- Schedule Tests ---

func TestSchedule_Count(t *testing.T) {
	worker, url := newEchoWorker(t)

	_, stderr, err := execute(t, config.Default(), "schedule", "-w", url, "--interval", "10ms", "--count", "2", "--script", "date")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if n := len(worker.started()); n != 2 {
		t.Errorf("expected 2 executions, got %d", n)
	}
	if !strings.Contains(stderr, "Run 2") {
		t.Errorf("expected run banner, got:\n%s", stderr)
	}
}

func TestSchedule_InvalidSchedule(t *testing.T) {
	_, url := newEchoWorker(t)

	_, _, err := execute(t, config.Default(), "schedule", "-w", url, "--script", "date")
	if err == nil {
		t.Error("expected error without --cron or --interval")
	}

	_, _, err = execute(t, config.Default(), "schedule", "-w", url, "--cron", "* * *", "--script", "date")
	if err == nil {
		t.Error("expected error for invalid cron expression")
	}
}

func TestEnqueue_RequiresScript(t *testing.T) {
	_, _, err := execute(t, config.Default(), "enqueue")
	if !errors.Is(err, ErrNoScript) {
		t.Errorf("expected ErrNoScript, got %v", err)
	}
}

// --- Script Flags Tests ---

func TestScriptFlags_Command(t *testing.T) {
	dir := t.TempDir()
	scriptPath := filepath.Join(dir, "deploy.sh")
	dataPath := filepath.Join(dir, "data.json")
	if err := os.WriteFile(scriptPath, []byte("./deploy"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dataPath, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	f := scriptFlags{
		file:       scriptPath,
		isolation:  "full",
		mutexName:  "deploy",
		files:      []string{dataPath, "config.json=" + dataPath},
		waitFinish: 5 * time.Second,
	}

	cmd, err := f.command(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cmd.ScriptBody != "./deploy" {
		t.Errorf("unexpected body %q", cmd.ScriptBody)
	}
	if cmd.Isolation != domain.IsolationFull || cmd.IsolationMutexTimeout != domain.NoMutexTimeout {
		t.Errorf("unexpected isolation %v/%v", cmd.Isolation, cmd.IsolationMutexTimeout)
	}
	if len(cmd.Files) != 2 || cmd.Files[0].Name != "data.json" || cmd.Files[1].Name != "config.json" {
		t.Errorf("unexpected files %+v", cmd.Files)
	}
	if cmd.DurationStartScriptCanWaitForScriptToFinish == nil || *cmd.DurationStartScriptCanWaitForScriptToFinish != 5*time.Second {
		t.Error("expected start wait to be set")
	}
	if !cmd.Ticket.IsZero() {
		t.Error("ticket must be assigned per execution")
	}
}

func TestScriptFlags_Errors(t *testing.T) {
	tests := []struct {
		name  string
		flags scriptFlags
		args  []string
		want  error
	}{
		{"no script", scriptFlags{}, nil, ErrNoScript},
		{"unknown isolation", scriptFlags{script: "true", isolation: "partial"}, nil, domain.ErrUnknownIsolation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.flags.command(tt.args)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	both := scriptFlags{script: "true"}
	if _, err := both.command([]string{"echo"}); err == nil {
		t.Error("expected error for two script sources")
	}
}

// --- Output Tests ---

func TestOutput_Table(t *testing.T) {
	var stdout bytes.Buffer
	out := NewOutputTo(false, &stdout, &bytes.Buffer{})

	out.Print([]string{"WORKER", "STATE"}, [][]string{{"http://a", "Complete"}}, nil)

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header, separator and row, got %q", lines)
	}
	if !strings.HasPrefix(lines[1], "------") {
		t.Errorf("unexpected separator %q", lines[1])
	}
}

func TestOutput_LogStdErr(t *testing.T) {
	var stdout, stderr bytes.Buffer
	out := NewOutputTo(false, &stdout, &stderr)

	out.Log("", domain.ProcessOutput{Source: domain.OutputStdOut, Text: "out"})
	out.Log("w1", domain.ProcessOutput{Source: domain.OutputStdErr, Text: "err"})

	if stdout.String() != "out\n" {
		t.Errorf("unexpected stdout %q", stdout.String())
	}
	if stderr.String() != "[w1] err\n" {
		t.Errorf("unexpected stderr %q", stderr.String())
	}
}

// --- Env Tests ---

func TestEnv_Workers(t *testing.T) {
	cfg := config.Default()
	cfg.Workers = []string{"http://a", " ", "http://b"}
	env := NewEnv(cfg, nil)

	got, err := env.Workers(nil)
	if err != nil || len(got) != 2 {
		t.Errorf("expected config workers, got %v, %v", got, err)
	}

	got, err = env.Workers([]string{"http://c"})
	if err != nil || len(got) != 1 || got[0] != "http://c" {
		t.Errorf("flags must override config, got %v, %v", got, err)
	}
}
