/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package probe

import (
	"strings"
	"testing"

	"github.com/gravwell/floodguard/log"
)

const sampleTable = `  sl  local_address rem_address   st tx_queue rx_queue tr tm->when retrnsmt   uid  timeout inode
   0: 0100007F:0016 00000000:0000 0A 00000000:00000000 00:00000000 00000000     0        0 18293
   1: 0A000001:0050 6471A8C0:D431 03 00000000:00000000 00:00000000 00000000     0        0 0
   2: 0A000001:0050 6471A8C0:D432 03 00000000:00000000 00:00000000 00000000     0        0 0
   3: 0A000001:0050 0B00710A:C350 03 00000000:00000000 00:00000000 00000000     0        0 0
   4: 0A000001:0050 6471A8C0:D433 01 00000000:00000000 00:00000000 00000000     0        0 0
`

// 6471A8C0 little endian is 192.168.113.100... actually c0.a8.71.64 = 192.168.113.100
func addr(a, b, c, d byte) uint32 {
	return uint32(a)<<24 | uint32(b)<<16 | uint32(c)<<8 | uint32(d)
}

func TestCountAll(t *testing.T) {
	cnt := countHalfOpen(strings.NewReader(sampleTable), 0, false)
	if cnt != 3 {
		t.Fatalf("half open count %d != 3", cnt)
	}
}

func TestCountFiltered(t *testing.T) {
	// 6471A8C0 is the little endian rendering of 192.168.113.100
	cnt := countHalfOpen(strings.NewReader(sampleTable), addr(192, 168, 113, 100), true)
	if cnt != 2 {
		t.Fatalf("filtered count %d != 2", cnt)
	}
	cnt = countHalfOpen(strings.NewReader(sampleTable), addr(10, 113, 0, 11), true)
	if cnt != 1 {
		t.Fatalf("filtered count %d != 1", cnt)
	}
	cnt = countHalfOpen(strings.NewReader(sampleTable), addr(1, 2, 3, 4), true)
	if cnt != 0 {
		t.Fatalf("filtered count %d != 0 for absent peer", cnt)
	}
}

func TestEmptyAndMalformed(t *testing.T) {
	if cnt := countHalfOpen(strings.NewReader(``), 0, false); cnt != 0 {
		t.Fatalf("empty input counted %d", cnt)
	}
	junk := "garbage line\n   1: nope 03\n   2: 0A000001:0050 ZZZZZZZZ:0000 03 x x\n"
	if cnt := countHalfOpen(strings.NewReader(junk), 0, false); cnt != 0 {
		t.Fatalf("malformed rows counted %d", cnt)
	}
	// malformed rows between good ones do not poison the scan
	mixed := junk + "   3: 0A000001:0050 04030201:0001 03 00000000:00000000 00:00000000 00000000 0 0 0\n"
	if cnt := countHalfOpen(strings.NewReader(mixed), 0, false); cnt != 1 {
		t.Fatalf("mixed rows counted %d", cnt)
	}
}

func TestParsePeer(t *testing.T) {
	v, ok := parsePeer(`0100007F:1234`)
	if !ok || v != addr(127, 0, 0, 1) {
		t.Fatalf("loopback parse failed: %x %v", v, ok)
	}
	if _, ok = parsePeer(`0100007F`); ok {
		t.Fatal("missing port column accepted")
	}
	if _, ok = parsePeer(`07F:1234`); ok {
		t.Fatal("short address accepted")
	}
}

func TestMissingFile(t *testing.T) {
	p := NewWithPath(`/this/path/does/not/exist`, log.NewDiscardLogger())
	if cnt := p.HalfOpen(); cnt != 0 {
		t.Fatalf("missing table counted %d", cnt)
	}
	if cnt := p.HalfOpenPeer(addr(1, 2, 3, 4)); cnt != 0 {
		t.Fatalf("missing table counted %d filtered", cnt)
	}
}
