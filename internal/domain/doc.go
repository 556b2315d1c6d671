// Package domain содержит версия-независимые типы выполнения скриптов.
//
// ScriptTicket коррелирует все вызовы одного выполнения, ProcessState
// описывает монотонный жизненный цикл скрипта, StartScriptCommand —
// команду запуска, из которой оркестраторы строят wire-формы конкретной
// версии протокола.
package domain
