/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package detect

import (
	"time"

	"github.com/gravwell/floodguard/blockset"
	"github.com/gravwell/floodguard/clock"
	"github.com/gravwell/floodguard/log"
	"github.com/gravwell/floodguard/metrics"
	"github.com/gravwell/floodguard/tracker"
)

const (
	sweepBatchSize = 1024

	// granularity of the interruptible sleep, bounds shutdown latency
	sweepTick = time.Second
)

// Sweeper periodically walks the tracker for expired blocks, pulls them
// out of the kernel set, and flips the records back to observed state.
type Sweeper struct {
	interval time.Duration
	tbl      *tracker.Table
	drv      blockset.Driver
	cts      *metrics.Counters
	snk      Sink
	lg       *log.Logger
	die      chan bool
	done     chan struct{}
}

func NewSweeper(interval time.Duration, tbl *tracker.Table, drv blockset.Driver, cts *metrics.Counters, snk Sink, lg *log.Logger) *Sweeper {
	if snk == nil {
		snk = discardSink{}
	}
	if cts == nil {
		cts = metrics.NewCounters()
	}
	return &Sweeper{
		interval: interval,
		tbl:      tbl,
		drv:      drv,
		cts:      cts,
		snk:      snk,
		lg:       lg,
		die:      make(chan bool, 1),
		done:     make(chan struct{}),
	}
}

// Start launches the sweep loop.
func (s *Sweeper) Start() {
	go s.run()
}

// Stop interrupts the sleep and joins the loop.
func (s *Sweeper) Stop() {
	s.die <- true
	<-s.done
}

func (s *Sweeper) run() {
	defer close(s.done)
	tckr := time.NewTicker(sweepTick)
	defer tckr.Stop()
	var slept time.Duration
	for {
		select {
		case <-s.die:
			return
		case <-tckr.C:
			if slept += sweepTick; slept < s.interval {
				continue
			}
			slept = 0
		}
		s.Sweep(clock.Now())
	}
}

// Sweep performs one expiration pass at the given timestamp. The scan is
// repeated while full batches come back so a storm of simultaneous
// expirations drains in one pass. The tracker lock is held per record,
// never across a batch.
func (s *Sweeper) Sweep(now int64) {
	buf := make([]uint32, sweepBatchSize)
	for {
		n := s.tbl.ExpiredBlocks(now, buf)
		for _, addr := range buf[:n] {
			if err := s.drv.Remove(addr); err != nil {
				if s.lg != nil {
					s.lg.Warn("failed to remove expired block",
						log.KV("address", Event{Addr: addr}.AddrString()), log.KVErr(err))
				}
				continue
			}
			//a concurrent clear may have dropped the record already,
			//the set removal above still counts
			s.tbl.With(addr, func(r *tracker.Record) {
				r.Blocked = false
				r.BlockExpiry = 0
			})
			s.snk.HandleEvent(Event{Type: EventUnblocked, Addr: addr})
		}
		if n < sweepBatchSize {
			break
		}
	}
	if cnt, err := s.drv.Count(); err == nil {
		s.cts.SetBlockedCurrent(int64(cnt))
	}
	total, blocked := s.tbl.Stats()
	s.cts.SetTrackerGauges(int64(total), int64(blocked))
}
