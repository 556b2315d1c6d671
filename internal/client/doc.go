// Package client — фасад выполнения скриптов на удалённом воркере.
//
// Client связывает rpc.Executor, scripts.Factory и наблюдателя метрик:
// на каждый ExecuteScript создаётся свой накопитель метрик, Factory выбирает
// версию протокола, оркестратор выполняет скрипт, а итоговые метрики
// передаются в ClientObserver.
package client
