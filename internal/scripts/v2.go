package scripts

import (
	"context"

	"github.com/shaiso/Remora/internal/contracts"
	"github.com/shaiso/Remora/internal/domain"
	"github.com/shaiso/Remora/internal/rpc"
)

var (
	callStartScriptV2    = rpc.NewCall("ScriptServiceV2", "StartScript")
	callGetStatusV2      = rpc.NewCall("ScriptServiceV2", "GetStatus")
	callCancelScriptV2   = rpc.NewCall("ScriptServiceV2", "CancelScript")
	callCompleteScriptV2 = rpc.NewCall("ScriptServiceV2", "CompleteScript")
)

// newV2Ops — привязка к ScriptServiceV2.
//
// StartScript, GetStatus и CancelScript повторяются согласно конфигурации.
// CancelScript не отменяется контекстом вызывающей стороны. CompleteScript
// выполняется один раз и ограничен abandonCompleteAfter.
func newV2Ops(svc contracts.ScriptServiceV2, b binding) versionOps[contracts.StartScriptCommandV2, contracts.ScriptStatusResponseV2] {
	type response = contracts.ScriptStatusResponseV2

	return versionOps[contracts.StartScriptCommandV2, response]{
		version: contracts.Version2,

		mapCommand: func(cmd domain.StartScriptCommand) contracts.StartScriptCommandV2 {
			return contracts.StartScriptCommandV2{
				Ticket:                cmd.Ticket,
				TaskID:                cmd.TaskID,
				ScriptBody:            cmd.ScriptBody,
				Isolation:             cmd.Isolation,
				IsolationMutexName:    cmd.IsolationMutexName,
				IsolationMutexTimeout: cmd.IsolationMutexTimeout,
				Arguments:             cmd.Arguments,
				AdditionalScripts:     cmd.AdditionalScripts,
				Files:                 cmd.Files,
				DurationToWait:        cmd.DurationStartScriptCanWaitForScriptToFinish,
			}
		},

		pending: func(cmd contracts.StartScriptCommandV2) response {
			return response{
				Ticket:   cmd.Ticket,
				State:    domain.ProcessStatePending,
				ExitCode: domain.RunningExitCode,
			}
		},

		state:    func(r response) domain.ProcessState { return r.State },
		sequence: func(r response) int64 { return r.NextLogSequence },
		logs:     func(r response) []domain.ProcessOutput { return r.Logs },
		exitCode: func(r response) int { return r.ExitCode },
		noLogs: func(r response) response {
			r.Logs = nil
			return r
		},

		start: func(ctx context.Context, cmd contracts.StartScriptCommandV2) (response, int, error) {
			return executeCounted(ctx, b, b.request(callStartScriptV2), func(ctx context.Context) (response, error) {
				return svc.StartScript(ctx, cmd)
			})
		},

		getStatus: func(ctx context.Context, last response) (response, error) {
			return rpc.Execute(ctx, b.executor, b.request(callGetStatusV2), func(ctx context.Context) (response, error) {
				return svc.GetStatus(ctx, contracts.ScriptStatusRequestV2{
					Ticket:     last.Ticket,
					LastLogSeq: last.NextLogSequence,
				})
			})
		},

		cancel: func(ctx context.Context, last response) (response, error) {
			return rpc.Execute(context.WithoutCancel(ctx), b.executor, b.request(callCancelScriptV2), func(ctx context.Context) (response, error) {
				return svc.CancelScript(ctx, contracts.CancelScriptCommandV2{
					Ticket:     last.Ticket,
					LastLogSeq: last.NextLogSequence,
				})
			})
		},

		finish: func(last response) (response, error) {
			ctx, cancel := b.completeContext(context.Background())
			defer cancel()

			err := rpc.ExecuteVoid(ctx, b.executor, b.noRetries(callCompleteScriptV2), func(ctx context.Context) error {
				return svc.CompleteScript(ctx, contracts.CompleteScriptCommandV2{Ticket: last.Ticket})
			})
			return last, err
		},
	}
}
