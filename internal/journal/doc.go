// Package journal сохраняет и публикует ход выполнения скриптов.
//
// Recorder.Begin создаёт запись о выполнении и возвращает Entry, чьи
// Callbacks передаются оркестратору: каждая порция логов сохраняется в Store
// и публикуется через EventPublisher. Entry.Finish закрывает запись итогом.
//
// Сбои Store и EventPublisher логируются и никогда не меняют результат
// выполнения. Оба зависимых компонента опциональны.
package journal
