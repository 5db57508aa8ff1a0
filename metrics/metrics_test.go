/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package metrics

import (
	"sync"
	"testing"
)

func TestCounters(t *testing.T) {
	c := NewCounters()
	for i := 0; i < 10; i++ {
		c.AddPacket()
		c.AddSynPacket()
	}
	c.AddDetection()
	c.AddFalsePositive()
	c.AddWhitelistHit()
	c.SetBlockedCurrent(3)
	c.SetTrackerGauges(100, 3)

	s := c.Snapshot()
	if s.TotalPackets != 10 || s.SynPackets != 10 {
		t.Fatalf("packet counters %d/%d", s.TotalPackets, s.SynPackets)
	}
	if s.Detections != 1 || s.FalsePositives != 1 || s.WhitelistHits != 1 {
		t.Fatalf("event counters %d/%d/%d", s.Detections, s.FalsePositives, s.WhitelistHits)
	}
	if s.BlockedCurrent != 3 || s.TrackerEntries != 100 || s.TrackerBlocked != 3 {
		t.Fatalf("gauges %d/%d/%d", s.BlockedCurrent, s.TrackerEntries, s.TrackerBlocked)
	}
}

func TestConcurrentCounting(t *testing.T) {
	c := NewCounters()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				c.AddPacket()
			}
		}()
	}
	wg.Wait()
	if s := c.Snapshot(); s.TotalPackets != 8000 {
		t.Fatalf("lost updates: %d", s.TotalPackets)
	}
}
