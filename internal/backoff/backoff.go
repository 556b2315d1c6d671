// Package backoff вычисляет задержки между итерациями опроса и повторами.
package backoff

import "time"

// Strategy отображает номер итерации (начиная с 1) в длительность ожидания.
//
// Реализации — чистые функции: одинаковый номер итерации всегда даёт
// одинаковую задержку.
type Strategy interface {
	Backoff(iteration int) time.Duration
}

// StrategyFunc адаптирует функцию к Strategy.
type StrategyFunc func(iteration int) time.Duration

// Backoff вызывает f.
func (f StrategyFunc) Backoff(iteration int) time.Duration {
	return f(iteration)
}

// Exponential — delay = Initial * Factor^(iteration-1), capped at Max.
type Exponential struct {
	Initial time.Duration
	Max     time.Duration
	Factor  float64
}

// Backoff вычисляет задержку для итерации.
func (e Exponential) Backoff(iteration int) time.Duration {
	initial := e.Initial
	if initial <= 0 {
		initial = time.Second
	}

	maxDelay := e.Max
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}

	factor := e.Factor
	if factor < 1 {
		factor = 2
	}

	if iteration < 1 {
		iteration = 1
	}

	delay := float64(initial)
	for i := 1; i < iteration; i++ {
		delay *= factor
		if delay >= float64(maxDelay) {
			return maxDelay
		}
	}

	if time.Duration(delay) > maxDelay {
		return maxDelay
	}
	return time.Duration(delay)
}

// Constant — одна и та же задержка для любой итерации.
type Constant time.Duration

// Backoff возвращает постоянную задержку.
func (c Constant) Backoff(int) time.Duration {
	return time.Duration(c)
}

// DefaultScriptObserver — стратегия опроса статуса скрипта по умолчанию.
//
// Первые опросы частые (короткие скрипты завершаются быстро), дальше
// интервал растёт до 5 секунд.
func DefaultScriptObserver() Strategy {
	return Exponential{
		Initial: 100 * time.Millisecond,
		Max:     5 * time.Second,
		Factor:  1.5,
	}
}

// DefaultRPCRetry — стратегия пауз между повторами RPC-вызова по умолчанию.
func DefaultRPCRetry() Strategy {
	return Exponential{
		Initial: time.Second,
		Max:     10 * time.Second,
		Factor:  2,
	}
}
