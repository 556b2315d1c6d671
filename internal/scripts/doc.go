// Package scripts выполняет скрипты на удалённом воркере.
//
// Один общий алгоритм (observingOrchestrator) управляет выполнением:
//
//	Starting → Observing (Pending | Running) → Finishing → Terminal
//
// Версии протокола (V1, V2, V3) отличаются только набором операций
// (versionOps), который выбирается один раз при создании оркестратора.
//
// Отмена:
//   - если StartScript гарантированно не был отправлен, ошибка возвращается сразу
//   - иначе считаем, что скрипт запущен: CancelScript, затем CompleteScript,
//     затем ErrScriptCancelled
//
// Очистка (CompleteScript) выполняется всегда и никогда не влияет на результат:
// её ошибки только логируются.
//
// Factory запрашивает возможности воркера и выбирает версию V3 → V2 → V1.
package scripts
