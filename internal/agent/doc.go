// Package agent выполняет скрипты по запросам из очереди.
//
// # Обзор
//
// Agent — долгоживущий процесс, который:
//
//   - Получает запросы script.requested из очереди scripts.requested
//   - Выполняет каждый запрос через client.Client на указанном воркере
//   - Журналирует ход выполнения (journal.Recorder)
//   - Публикует script.status и script.completed
//
// Каждый запрос — независимое выполнение со своим тикетом и своими
// метриками. Клиенты воркеров создаются лениво и переиспользуются.
//
// # Использование
//
//	a := agent.New(agent.Config{
//	    Conn:          mqConn,
//	    Recorder:      recorder,
//	    Runners:       factory,
//	    DefaultWorker: "http://worker-1:8080",
//	    Concurrency:   4,
//	    Logger:        logger,
//	})
//
//	if err := a.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer a.Stop()
//
// # Остановка
//
// Stop отменяет контекст выполняющихся скриптов. Оркестратор отменяет
// скрипт на воркере и очищает рабочую директорию, после чего итог
// (отмена) попадает в журнал. Stop ждёт завершения всех обработчиков.
//
// # Ошибки
//
// Некорректный запрос (не разбирается payload, не задан воркер) уходит
// в DLQ. Ошибки выполнения скрипта журналируются, а сообщение
// подтверждается: повторный запуск скрипта не делается автоматически.
package agent
