package scripts

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shaiso/Remora/internal/backoff"
	"github.com/shaiso/Remora/internal/contracts"
	"github.com/shaiso/Remora/internal/domain"
	"github.com/shaiso/Remora/internal/rpc"
)

var errTransient = errors.New("connection reset by peer")

// callLog — потокобезопасный журнал вызовов фейков.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, name)
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.calls))
	copy(out, l.calls)
	return out
}

func (l *callLog) count(name string) int {
	n := 0
	for _, c := range l.list() {
		if c == name {
			n++
		}
	}
	return n
}

// --- ScriptServiceV2 fake ---

type fakeV2 struct {
	log callLog

	start    func(ctx context.Context, cmd contracts.StartScriptCommandV2) (contracts.ScriptStatusResponseV2, error)
	status   func(ctx context.Context, req contracts.ScriptStatusRequestV2) (contracts.ScriptStatusResponseV2, error)
	cancel   func(ctx context.Context, cmd contracts.CancelScriptCommandV2) (contracts.ScriptStatusResponseV2, error)
	complete func(ctx context.Context, cmd contracts.CompleteScriptCommandV2) error
}

func (f *fakeV2) StartScript(ctx context.Context, cmd contracts.StartScriptCommandV2) (contracts.ScriptStatusResponseV2, error) {
	f.log.add("StartScript")
	return f.start(ctx, cmd)
}

func (f *fakeV2) GetStatus(ctx context.Context, req contracts.ScriptStatusRequestV2) (contracts.ScriptStatusResponseV2, error) {
	f.log.add("GetStatus")
	return f.status(ctx, req)
}

func (f *fakeV2) CancelScript(ctx context.Context, cmd contracts.CancelScriptCommandV2) (contracts.ScriptStatusResponseV2, error) {
	f.log.add("CancelScript")
	if f.cancel == nil {
		return contracts.ScriptStatusResponseV2{
			Ticket:          cmd.Ticket,
			State:           domain.ProcessStateComplete,
			ExitCode:        domain.CanceledExitCode,
			NextLogSequence: cmd.LastLogSeq,
		}, nil
	}
	return f.cancel(ctx, cmd)
}

func (f *fakeV2) CompleteScript(ctx context.Context, cmd contracts.CompleteScriptCommandV2) error {
	f.log.add("CompleteScript")
	if f.complete == nil {
		return nil
	}
	return f.complete(ctx, cmd)
}

// sequenceV2 возвращает ответы GetStatus по порядку.
func sequenceV2(responses ...contracts.ScriptStatusResponseV2) func(context.Context, contracts.ScriptStatusRequestV2) (contracts.ScriptStatusResponseV2, error) {
	var (
		mu sync.Mutex
		i  int
	)
	return func(ctx context.Context, req contracts.ScriptStatusRequestV2) (contracts.ScriptStatusResponseV2, error) {
		mu.Lock()
		defer mu.Unlock()
		r := responses[min(i, len(responses)-1)]
		i++
		r.Ticket = req.Ticket
		return r, nil
	}
}

func v2Response(state domain.ProcessState, exitCode int, seq int64, lines ...string) contracts.ScriptStatusResponseV2 {
	return contracts.ScriptStatusResponseV2{
		State:           state,
		ExitCode:        exitCode,
		Logs:            outputs(lines...),
		NextLogSequence: seq,
	}
}

// --- ScriptServiceV3 fake ---

type fakeV3 struct {
	log callLog

	status   func(ctx context.Context, req contracts.ScriptStatusRequestV3) (contracts.ScriptStatusResponseV3, error)
	complete func(ctx context.Context, cmd contracts.CompleteScriptCommandV3) error
}

func (f *fakeV3) StartScript(ctx context.Context, cmd contracts.StartScriptCommandV3) (contracts.ScriptStatusResponseV3, error) {
	f.log.add("StartScript")
	return contracts.ScriptStatusResponseV3{
		Ticket:   cmd.Ticket,
		State:    domain.ProcessStateRunning,
		ExitCode: domain.RunningExitCode,
	}, nil
}

func (f *fakeV3) GetStatus(ctx context.Context, req contracts.ScriptStatusRequestV3) (contracts.ScriptStatusResponseV3, error) {
	f.log.add("GetStatus")
	if f.status != nil {
		return f.status(ctx, req)
	}
	return contracts.ScriptStatusResponseV3{
		Ticket:          req.Ticket,
		State:           domain.ProcessStateComplete,
		ExitCode:        0,
		NextLogSequence: req.LastLogSeq + 1,
		Logs:            outputs("done"),
	}, nil
}

func (f *fakeV3) CancelScript(ctx context.Context, cmd contracts.CancelScriptCommandV3) (contracts.ScriptStatusResponseV3, error) {
	f.log.add("CancelScript")
	return contracts.ScriptStatusResponseV3{
		Ticket:          cmd.Ticket,
		State:           domain.ProcessStateComplete,
		ExitCode:        domain.CanceledExitCode,
		NextLogSequence: cmd.LastLogSeq,
	}, nil
}

func (f *fakeV3) CompleteScript(ctx context.Context, cmd contracts.CompleteScriptCommandV3) error {
	f.log.add("CompleteScript")
	if f.complete == nil {
		return nil
	}
	return f.complete(ctx, cmd)
}

// --- ScriptServiceV1 fake ---

type fakeV1 struct {
	log callLog

	status func(ctx context.Context, req contracts.ScriptStatusRequestV1) (contracts.ScriptStatusResponseV1, error)
}

func (f *fakeV1) StartScript(ctx context.Context, cmd contracts.StartScriptCommandV1) (contracts.ScriptStatusResponseV1, error) {
	f.log.add("StartScript")
	return contracts.ScriptStatusResponseV1{
		Ticket:   cmd.Ticket,
		State:    domain.ProcessStateRunning,
		ExitCode: domain.RunningExitCode,
	}, nil
}

func (f *fakeV1) GetStatus(ctx context.Context, req contracts.ScriptStatusRequestV1) (contracts.ScriptStatusResponseV1, error) {
	f.log.add("GetStatus")
	return f.status(ctx, req)
}

func (f *fakeV1) CompleteScript(ctx context.Context, cmd contracts.CompleteScriptCommandV1) (contracts.ScriptStatusResponseV1, error) {
	f.log.add("CompleteScript")
	return contracts.ScriptStatusResponseV1{
		Ticket:          cmd.Ticket,
		State:           domain.ProcessStateComplete,
		ExitCode:        0,
		Logs:            outputs("cleanup"),
		NextLogSequence: cmd.LastLogSeq + 1,
	}, nil
}

// --- Capabilities fake ---

type fakeCapabilities struct {
	log          callLog
	capabilities []string
	err          error
}

func (f *fakeCapabilities) GetCapabilities(ctx context.Context) (contracts.CapabilitiesResponse, error) {
	f.log.add("GetCapabilities")
	if f.err != nil {
		return contracts.CapabilitiesResponse{}, f.err
	}
	return contracts.CapabilitiesResponse{SupportedCapabilities: f.capabilities}, nil
}

// --- helpers ---

func outputs(lines ...string) []domain.ProcessOutput {
	if len(lines) == 0 {
		return nil
	}
	out := make([]domain.ProcessOutput, 0, len(lines))
	for _, l := range lines {
		out = append(out, domain.ProcessOutput{Source: domain.OutputStdOut, Text: l})
	}
	return out
}

func newTestExecutor() *rpc.Executor {
	return rpc.NewExecutor(rpc.Config{
		RetryDuration:                   5 * time.Second,
		RetryIfRemainingDurationAtLeast: time.Millisecond,
		Backoff:                         backoff.Constant(time.Millisecond),
	})
}

func newTestBinding(retries bool) binding {
	return binding{
		executor:             newTestExecutor(),
		metrics:              rpc.StartOperation("ExecuteScript"),
		retriesEnabled:       retries,
		abandonCompleteAfter: time.Second,
		logger:               discardLogger(),
	}
}

// recorder собирает события наблюдателя в порядке поступления.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		OnStatusReceived: func(status domain.ScriptExecutionStatus) {
			r.mu.Lock()
			defer r.mu.Unlock()
			line := "status"
			for _, l := range status.Logs {
				line += ":" + l.Text
			}
			r.events = append(r.events, line)
		},
		OnCompleted: func(ctx context.Context) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.events = append(r.events, "completed")
		},
	}
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	copy(out, r.events)
	return out
}

func newCommand() domain.StartScriptCommand {
	return domain.StartScriptCommand{
		Ticket:     domain.NewScriptTicket(),
		ScriptBody: "echo hello",
	}
}

func noSleep(context.Context, time.Duration) error { return nil }
