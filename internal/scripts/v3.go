package scripts

import (
	"context"

	"github.com/shaiso/Remora/internal/contracts"
	"github.com/shaiso/Remora/internal/domain"
	"github.com/shaiso/Remora/internal/rpc"
)

var (
	callStartScriptV3    = rpc.NewCall("ScriptServiceV3", "StartScript")
	callGetStatusV3      = rpc.NewCall("ScriptServiceV3", "GetStatus")
	callCancelScriptV3   = rpc.NewCall("ScriptServiceV3", "CancelScript")
	callCompleteScriptV3 = rpc.NewCall("ScriptServiceV3", "CompleteScript")
)

// newV3Ops — привязка к ScriptServiceV3.
//
// Как V2, но CompleteScript дополнительно бросается, если транспорт не
// вернул управление к истечению abandonCompleteAfter.
func newV3Ops(svc contracts.ScriptServiceV3, b binding) versionOps[contracts.StartScriptCommandV3, contracts.ScriptStatusResponseV3] {
	type response = contracts.ScriptStatusResponseV3

	return versionOps[contracts.StartScriptCommandV3, response]{
		version: contracts.Version3,

		mapCommand: func(cmd domain.StartScriptCommand) contracts.StartScriptCommandV3 {
			v3 := contracts.StartScriptCommandV3{
				Ticket:                cmd.Ticket,
				TaskID:                cmd.TaskID,
				ScriptBody:            cmd.ScriptBody,
				Isolation:             cmd.Isolation,
				IsolationMutexName:    cmd.IsolationMutexName,
				IsolationMutexTimeout: cmd.IsolationMutexTimeout,
				Arguments:             cmd.Arguments,
				AdditionalScripts:     cmd.AdditionalScripts,
				Files:                 cmd.Files,
			}
			if cmd.DurationStartScriptCanWaitForScriptToFinish != nil {
				v3.DurationToWait = *cmd.DurationStartScriptCanWaitForScriptToFinish
			}
			return v3
		},

		pending: func(cmd contracts.StartScriptCommandV3) response {
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

		start: func(ctx context.Context, cmd contracts.StartScriptCommandV3) (response, int, error) {
			return executeCounted(ctx, b, b.request(callStartScriptV3), func(ctx context.Context) (response, error) {
				return svc.StartScript(ctx, cmd)
			})
		},

		getStatus: func(ctx context.Context, last response) (response, error) {
			return rpc.Execute(ctx, b.executor, b.request(callGetStatusV3), func(ctx context.Context) (response, error) {
				return svc.GetStatus(ctx, contracts.ScriptStatusRequestV3{
					Ticket:     last.Ticket,
					LastLogSeq: last.NextLogSequence,
				})
			})
		},

		cancel: func(ctx context.Context, last response) (response, error) {
			return rpc.Execute(context.WithoutCancel(ctx), b.executor, b.request(callCancelScriptV3), func(ctx context.Context) (response, error) {
				return svc.CancelScript(ctx, contracts.CancelScriptCommandV3{
					Ticket:     last.Ticket,
					LastLogSeq: last.NextLogSequence,
				})
			})
		},

		finish: func(last response) (response, error) {
			ctx, cancel := b.completeContext(context.Background())
			defer cancel()

			req := b.noRetries(callCompleteScriptV3)
			req.AbandonOnCancellation = true

			err := rpc.ExecuteVoid(ctx, b.executor, req, func(ctx context.Context) error {
				return svc.CompleteScript(ctx, contracts.CompleteScriptCommandV3{Ticket: last.Ticket})
			})
			return last, err
		},
	}
}
