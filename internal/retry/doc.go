// Package retry выполняет RPC-действия с повторами в пределах общего бюджета
// времени.
//
// Каждая попытка классифицируется в Outcome (OK, Retryable, TimedOut,
// Abandoned, Cancelled, Fatal), и цикл повторов решает, что делать дальше,
// только по этому результату. Первая попытка выполняется без таймаута,
// последующие ограничены остатком бюджета.
//
// Режим abandon: после отмены контекста действие ждут не дольше
// AbandonAfter, затем возвращается ErrAbandoned, а само действие
// дорабатывает в фоне.
package retry
