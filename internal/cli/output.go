package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/shaiso/Remora/internal/domain"
)

// Output управляет форматированием вывода CLI.
//
// Безопасен для конкурентного использования: логи нескольких
// воркеров печатаются построчно, не перемешиваясь.
type Output struct {
	mu       sync.Mutex
	jsonMode bool
	w        io.Writer // stdout для данных
	errW     io.Writer // stderr для сообщений
}

// NewOutput создаёт Output. Если jsonMode=true, данные выводятся в JSON.
func NewOutput(jsonMode bool) *Output {
	return NewOutputTo(jsonMode, os.Stdout, os.Stderr)
}

// NewOutputTo — как NewOutput, но пишет в w и errW.
func NewOutputTo(jsonMode bool, w, errW io.Writer) *Output {
	return &Output{
		jsonMode: jsonMode,
		w:        w,
		errW:     errW,
	}
}

// Print выводит данные: таблицу или JSON в зависимости от режима.
func (o *Output) Print(headers []string, rows [][]string, jsonData any) {
	if o.jsonMode {
		o.JSON(jsonData)
		return
	}
	o.Table(headers, rows)
}

// Table выводит данные в виде таблицы через tabwriter.
func (o *Output) Table(headers []string, rows [][]string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)

	// Заголовки
	fmt.Fprintln(tw, strings.Join(headers, "\t"))

	// Разделитель
	dashes := make([]string, len(headers))
	for i, h := range headers {
		dashes[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(tw, strings.Join(dashes, "\t"))

	// Строки данных
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}

	tw.Flush()
}

// JSON выводит данные в формате JSON с отступами.
func (o *Output) JSON(v any) {
	o.mu.Lock()
	defer o.mu.Unlock()

	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

// Log печатает строку вывода скрипта.
//
// StdErr скрипта и весь вывод в JSON-режиме идут в stderr,
// чтобы stdout оставался валидным JSON. prefix — метка воркера (может быть пустой).
func (o *Output) Log(prefix string, line domain.ProcessOutput) {
	o.mu.Lock()
	defer o.mu.Unlock()

	w := o.w
	if o.jsonMode || line.Source == domain.OutputStdErr {
		w = o.errW
	}

	if prefix != "" {
		fmt.Fprintf(w, "[%s] %s\n", prefix, line.Text)
		return
	}
	fmt.Fprintln(w, line.Text)
}

// Success выводит сообщение об успехе в stderr.
func (o *Output) Success(msg string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintln(o.errW, msg)
}

// Error выводит сообщение об ошибке в stderr.
func (o *Output) Error(msg string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintln(o.errW, "Error: "+msg)
}
