/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package metrics holds the daemon's shared counters. Hot path counters
// are plain atomics so the packet loop never takes a lock to count.
package metrics

import (
	"sync/atomic"
)

type Counters struct {
	totalPackets   atomic.Uint64
	synPackets     atomic.Uint64
	detections     atomic.Uint64
	falsePositives atomic.Uint64
	whitelistHits  atomic.Uint64

	blockedCurrent atomic.Int64
	trackerEntries atomic.Int64
	trackerBlocked atomic.Int64
}

// Snapshot is a point-in-time copy for the metrics export component.
// No cross-counter ordering is promised.
type Snapshot struct {
	TotalPackets   uint64
	SynPackets     uint64
	Detections     uint64
	FalsePositives uint64
	WhitelistHits  uint64

	BlockedCurrent int64
	TrackerEntries int64
	TrackerBlocked int64
}

func NewCounters() *Counters {
	return &Counters{}
}

func (c *Counters) AddPacket()        { c.totalPackets.Add(1) }
func (c *Counters) AddSynPacket()     { c.synPackets.Add(1) }
func (c *Counters) AddDetection()     { c.detections.Add(1) }
func (c *Counters) AddFalsePositive() { c.falsePositives.Add(1) }
func (c *Counters) AddWhitelistHit()  { c.whitelistHits.Add(1) }

// SetBlockedCurrent records the current size of the kernel block set.
func (c *Counters) SetBlockedCurrent(v int64) { c.blockedCurrent.Store(v) }

// SetTrackerGauges records the tracker's record total and blocked total.
func (c *Counters) SetTrackerGauges(entries, blocked int64) {
	c.trackerEntries.Store(entries)
	c.trackerBlocked.Store(blocked)
}

func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		TotalPackets:   c.totalPackets.Load(),
		SynPackets:     c.synPackets.Load(),
		Detections:     c.detections.Load(),
		FalsePositives: c.falsePositives.Load(),
		WhitelistHits:  c.whitelistHits.Load(),
		BlockedCurrent: c.blockedCurrent.Load(),
		TrackerEntries: c.trackerEntries.Load(),
		TrackerBlocked: c.trackerBlocked.Load(),
	}
}
