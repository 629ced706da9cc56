//go:build deadlock

// Package syncutil provides the mutex used by the modem. This file is
// compiled with -tags=deadlock.
package syncutil

import deadlock "github.com/sasha-s/go-deadlock"

// Mutex reports lock-order inversions and locks held too long.
type Mutex struct {
	deadlock.Mutex
}
