package scripts

import (
	"context"

	"github.com/shaiso/Remora/internal/contracts"
	"github.com/shaiso/Remora/internal/domain"
	"github.com/shaiso/Remora/internal/rpc"
)

var (
	callStartScriptV1    = rpc.NewCall("ScriptService", "StartScript")
	callGetStatusV1      = rpc.NewCall("ScriptService", "GetStatus")
	callCompleteScriptV1 = rpc.NewCall("ScriptService", "CompleteScript")
)

// newV1Ops — привязка к ScriptServiceV1.
//
// V1 не умеет отменять скрипт и не поддерживает повторы: все вызовы
// выполняются ровно один раз. В режиме отмены продолжается опрос статуса
// до завершения скрипта. CompleteScript возвращает финальный статус
// с оставшимися логами.
func newV1Ops(svc contracts.ScriptServiceV1, b binding) versionOps[contracts.StartScriptCommandV1, contracts.ScriptStatusResponseV1] {
	type response = contracts.ScriptStatusResponseV1

	getStatus := func(ctx context.Context, last response) (response, error) {
		return rpc.Execute(ctx, b.executor, b.noRetries(callGetStatusV1), func(ctx context.Context) (response, error) {
			return svc.GetStatus(ctx, contracts.ScriptStatusRequestV1{
				Ticket:     last.Ticket,
				LastLogSeq: last.NextLogSequence,
			})
		})
	}

	return versionOps[contracts.StartScriptCommandV1, response]{
		version: contracts.Version1,

		mapCommand: func(cmd domain.StartScriptCommand) contracts.StartScriptCommandV1 {
			return contracts.StartScriptCommandV1{
				Ticket:            cmd.Ticket,
				TaskID:            cmd.TaskID,
				ScriptBody:        cmd.ScriptBody,
				Isolation:         cmd.Isolation,
				Arguments:         cmd.Arguments,
				AdditionalScripts: cmd.AdditionalScripts,
				Files:             cmd.Files,
			}
		},

		pending: func(cmd contracts.StartScriptCommandV1) response {
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

		start: func(ctx context.Context, cmd contracts.StartScriptCommandV1) (response, int, error) {
			return executeCounted(ctx, b, b.noRetries(callStartScriptV1), func(ctx context.Context) (response, error) {
				return svc.StartScript(ctx, cmd)
			})
		},

		getStatus: getStatus,

		cancel: func(ctx context.Context, last response) (response, error) {
			b.logger.Debug("script service v1 cannot cancel scripts, waiting for completion", "ticket", last.Ticket.String())
			return getStatus(context.WithoutCancel(ctx), last)
		},

		finish: func(last response) (response, error) {
			return rpc.Execute(context.Background(), b.executor, b.noRetries(callCompleteScriptV1), func(ctx context.Context) (response, error) {
				return svc.CompleteScript(ctx, contracts.CompleteScriptCommandV1{
					Ticket:     last.Ticket,
					LastLogSeq: last.NextLogSequence,
				})
			})
		},
		finishReportsStatus: true,
	}
}
