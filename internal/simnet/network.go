// Package simnet имитирует сеть между хранилищем и внешними сервисами:
// задержку ответа и случайные отказы. Используется в разработке вместо
// PostgreSQL и в тестах отката оптимистичных изменений.
package simnet

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync/atomic"
	"time"
)

// ErrUnavailable имитированный отказ сети
var ErrUnavailable = errors.New("simnet: сервис недоступен")

// Network параметры имитации
type Network struct {
	latency     time.Duration
	failureRate float64
	random      func() float64
	calls       atomic.Int64
	failures    atomic.Int64
}

// New создаёт имитацию сети. failureRate вне [0, 1] обрезается.
func New(latency time.Duration, failureRate float64) *Network {
	return &Network{
		latency:     latency,
		failureRate: min(max(failureRate, 0), 1),
		random:      rand.Float64,
	}
}

// Roundtrip ждёт задержку и решает, пройдёт ли вызов
func (n *Network) Roundtrip(ctx context.Context) error {
	n.calls.Add(1)
	if n.latency > 0 {
		timer := time.NewTimer(n.latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	if n.failureRate > 0 && n.random() < n.failureRate {
		n.failures.Add(1)
		return ErrUnavailable
	}
	return nil
}

// Stats возвращает число вызовов и отказов
func (n *Network) Stats() (calls, failures int64) {
	return n.calls.Load(), n.failures.Load()
}
