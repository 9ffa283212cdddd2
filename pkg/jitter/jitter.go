// Package jitter добавляет случайную составляющую к интервалам повторов,
// чтобы фоновые задачи разных реплик не просыпались одновременно.
package jitter

import (
	"math/rand/v2"
	"time"
)

// DefaultJitter стандартный коэффициент джиттера (50%)
const DefaultJitter = 0.5

// Duration возвращает d с джиттером в диапазоне [d, d*(1+jitterFactor)].
func Duration(d time.Duration, jitterFactor float64) time.Duration {
	return d + time.Duration(rand.Float64()*jitterFactor*float64(d))
}

// ExponentialBackoff вычисляет задержку перед попыткой attempt (нумерация с нуля):
// base удваивается на каждой попытке, но не превышает max, затем добавляется джиттер.
func ExponentialBackoff(base, max time.Duration, attempt int, jitterFactor float64) time.Duration {
	backoff := base
	for i := 0; i < attempt; i++ {
		backoff *= 2
		if backoff > max {
			backoff = max
			break
		}
	}

	return Duration(backoff, jitterFactor)
}
