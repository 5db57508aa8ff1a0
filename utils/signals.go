/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package utils carries the daemon's signal plumbing. Signals only ever
// set intent flags; the supervisor and the packet loop read and clear
// them at well defined points.
package utils

import (
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
)

// Intents latches shutdown and reload requests delivered by signal.
// SIGINT, SIGTERM, and SIGQUIT request shutdown; SIGHUP requests a
// config and whitelist reload.
type Intents struct {
	shutdown atomic.Bool
	reload   atomic.Bool
	notify   chan os.Signal
	wake     chan struct{}
}

func NewIntents() *Intents {
	i := &Intents{
		notify: make(chan os.Signal, 8),
		wake:   make(chan struct{}, 1),
	}
	signal.Notify(i.notify, syscall.SIGHUP, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)
	go i.drain()
	return i
}

func (i *Intents) drain() {
	for sig := range i.notify {
		if sig == syscall.SIGHUP {
			i.reload.Store(true)
		} else {
			i.shutdown.Store(true)
		}
		select {
		case i.wake <- struct{}{}:
		default:
		}
	}
}

// Wake returns a channel that fires when any intent arrives, so an idle
// supervisor does not wait on packet traffic to notice a signal.
func (i *Intents) Wake() <-chan struct{} {
	return i.wake
}

// ShutdownRequested reports the sticky shutdown flag.
func (i *Intents) ShutdownRequested() bool {
	return i.shutdown.Load()
}

// RequestShutdown latches shutdown from inside the process, the same
// path a SIGTERM takes.
func (i *Intents) RequestShutdown() {
	i.shutdown.Store(true)
	select {
	case i.wake <- struct{}{}:
	default:
	}
}

// TakeReload consumes a pending reload intent.
func (i *Intents) TakeReload() bool {
	return i.reload.CompareAndSwap(true, false)
}

// Stop detaches from signal delivery.
func (i *Intents) Stop() {
	signal.Stop(i.notify)
	close(i.notify)
}
