//go:build linux
// +build linux

/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package main

import (
	"github.com/gravwell/floodguard/detect"
	"github.com/gravwell/floodguard/log"
)

// logSink renders detection events into the structured log. Whitelist
// hits fire per packet, so they land at DEBUG; everything else is an
// operator visible decision.
type logSink struct {
	lg *log.Logger
}

func newLogSink(lg *log.Logger) *logSink {
	return &logSink{
		lg: lg,
	}
}

func (s *logSink) HandleEvent(e detect.Event) {
	switch e.Type {
	case detect.EventBlocked:
		s.lg.Info("address blocked",
			log.KV("address", e.AddrString()),
			log.KV("syncount", e.SynCount),
			log.KV("halfopen", e.HalfOpen))
	case detect.EventSuspicious:
		s.lg.Warn("suspicious SYN rate not confirmed by socket state",
			log.KV("address", e.AddrString()),
			log.KV("syncount", e.SynCount),
			log.KV("halfopen", e.HalfOpen))
	case detect.EventUnblocked:
		s.lg.Info("address unblocked", log.KV("address", e.AddrString()))
	case detect.EventWhitelisted:
		s.lg.Debug("whitelisted source", log.KV("address", e.AddrString()))
	}
}
