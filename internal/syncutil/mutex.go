//go:build !deadlock

// Package syncutil provides the mutex used by the modem. Build with
// -tags=deadlock to swap in github.com/sasha-s/go-deadlock for lock-order and
// hold-time checking.
package syncutil

import "sync"

// Mutex is a sync.Mutex unless built with -tags=deadlock.
type Mutex struct {
	sync.Mutex
}
