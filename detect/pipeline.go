/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package detect implements the per-packet decision engine and the block
// expiration sweeper. The pipeline runs synchronously on the packet
// source thread; the sweeper runs beside it and only ever communicates
// through the tracker and the block set.
package detect

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/gravwell/floodguard/blockset"
	"github.com/gravwell/floodguard/log"
	"github.com/gravwell/floodguard/metrics"
	"github.com/gravwell/floodguard/tracker"
	"github.com/gravwell/floodguard/whitelist"
)

var (
	ErrNilTracker = errors.New("nil tracker table")
	ErrNilDriver  = errors.New("nil block set driver")
	ErrBadConfig  = errors.New("invalid detection config")
)

// Config is the detection snapshot consumed per packet. Snapshots are
// immutable once published; a reload publishes a fresh one.
type Config struct {
	SynThreshold    uint32
	WindowNS        int64
	BlockDurationNS int64
	BlockTTLSecs    uint32
	SweepInterval   time.Duration
}

func (c Config) valid() bool {
	return c.SynThreshold > 0 && c.WindowNS > 0 && c.BlockDurationNS > 0 &&
		c.BlockTTLSecs > 0 && c.SweepInterval > 0
}

// Prober answers how many half-open sockets currently point back at a
// given source.
type Prober interface {
	HalfOpenPeer(addr uint32) uint32
}

// snapshot binds the detection config and the whitelist so a reload
// publishes both as one unit; a packet mid-flight sees either the old
// pair or the new pair, never a mix.
type snapshot struct {
	cfg Config
	wl  *whitelist.Whitelist
}

type Pipeline struct {
	snap atomic.Pointer[snapshot]
	tbl  *tracker.Table
	prb  Prober
	drv  blockset.Driver
	cts  *metrics.Counters
	snk  Sink
	lg   *log.Logger
}

func NewPipeline(cfg Config, wl *whitelist.Whitelist, tbl *tracker.Table, prb Prober, drv blockset.Driver, cts *metrics.Counters, snk Sink, lg *log.Logger) (*Pipeline, error) {
	if tbl == nil {
		return nil, ErrNilTracker
	}
	if drv == nil {
		return nil, ErrNilDriver
	}
	if !cfg.valid() {
		return nil, ErrBadConfig
	}
	if snk == nil {
		snk = discardSink{}
	}
	if cts == nil {
		cts = metrics.NewCounters()
	}
	p := &Pipeline{
		tbl: tbl,
		prb: prb,
		drv: drv,
		cts: cts,
		snk: snk,
		lg:  lg,
	}
	p.snap.Store(&snapshot{cfg: cfg, wl: wl})
	return p, nil
}

// Publish atomically installs a new config and whitelist pair. The old
// pair is dropped once no packet can still be reading it. The reload
// path is the single writer.
func (p *Pipeline) Publish(cfg Config, wl *whitelist.Whitelist) error {
	if !cfg.valid() {
		return ErrBadConfig
	}
	p.snap.Store(&snapshot{cfg: cfg, wl: wl})
	return nil
}

// UpdateConfig republishes with a new detection config, keeping the
// current whitelist.
func (p *Pipeline) UpdateConfig(cfg Config) error {
	return p.Publish(cfg, p.snap.Load().wl)
}

// UpdateWhitelist republishes with a replacement whitelist, keeping the
// current config.
func (p *Pipeline) UpdateWhitelist(wl *whitelist.Whitelist) {
	p.Publish(p.snap.Load().cfg, wl)
}

// Config returns the current detection config.
func (p *Pipeline) Config() Config {
	return p.snap.Load().cfg
}

// Whitelist returns the currently published whitelist.
func (p *Pipeline) Whitelist() *whitelist.Whitelist {
	return p.snap.Load().wl
}

// Tracker exposes the table for the supervisor's reload pruning and
// state persistence.
func (p *Pipeline) Tracker() *tracker.Table {
	return p.tbl
}

// OnSYN runs the decision sequence for one inbound SYN. It never fails;
// every error is absorbed here and surfaces only as events and counters.
// The verdict is always accept, dropping is the kernel set's job.
func (p *Pipeline) OnSYN(addr uint32, now int64) {
	snap := p.snap.Load()
	cfg := &snap.cfg

	if snap.wl.Contains(addr) {
		p.cts.AddWhitelistHit()
		p.snk.HandleEvent(Event{Type: EventWhitelisted, Addr: addr})
		return
	}

	var evt *Event
	p.tbl.Update(addr, now, func(r *tracker.Record) {
		if now-r.WindowStart > cfg.WindowNS {
			//window rolled, this SYN opens the next one
			r.SynCount = 1
			r.WindowStart = now
		} else {
			r.SynCount++
		}
		if r.SynCount > cfg.SynThreshold && !r.Blocked {
			halfOpen := p.probeHalfOpen(addr)
			if halfOpen > cfg.SynThreshold/2 {
				if err := p.drv.Add(addr, cfg.BlockTTLSecs); err != nil {
					//leave the record unblocked, the next SYN over
					//threshold retries the add
					if p.lg != nil {
						p.lg.Warn("failed to add address to block set",
							log.KV("address", Event{Addr: addr}.AddrString()), log.KVErr(err))
					}
					return
				}
				r.Blocked = true
				r.BlockExpiry = now + cfg.BlockDurationNS
				evt = &Event{Type: EventBlocked, Addr: addr, SynCount: r.SynCount, HalfOpen: halfOpen}
			} else {
				evt = &Event{Type: EventSuspicious, Addr: addr, SynCount: r.SynCount, HalfOpen: halfOpen}
			}
		}
	})

	if evt != nil {
		switch evt.Type {
		case EventBlocked:
			p.cts.AddDetection()
		case EventSuspicious:
			p.cts.AddFalsePositive()
		}
		p.snk.HandleEvent(*evt)
	}
	p.cts.AddSynPacket()
}

// probeHalfOpen tolerates a nil prober and treats a probe failure as
// zero, which lands the packet in the not-confirmed branch.
func (p *Pipeline) probeHalfOpen(addr uint32) uint32 {
	if p.prb == nil {
		return 0
	}
	return p.prb.HalfOpenPeer(addr)
}
