/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package log

import (
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	gateEventsPerMinute = 100
)

// gate caps throughput for a single log level. When the cap is hit,
// records are dropped and counted; the first record that passes after a
// suppression run is preceded by a summary naming the dropped count.
type gate struct {
	mtx        sync.Mutex
	lim        *rate.Limiter
	suppressed uint64
}

func newGate() *gate {
	return &gate{
		lim: rate.NewLimiter(rate.Every(time.Minute/gateEventsPerMinute), gateEventsPerMinute),
	}
}

// take returns whether the caller may emit, and if so a non-empty summary
// message when the gate just came out of suppression.
func (g *gate) take() (ok bool, summary string) {
	g.mtx.Lock()
	defer g.mtx.Unlock()
	if !g.lim.Allow() {
		g.suppressed++
		return false, ``
	}
	if g.suppressed > 0 {
		summary = `rate limit suppressed ` + strconv.FormatUint(g.suppressed, 10) + ` log records`
		g.suppressed = 0
	}
	return true, summary
}
