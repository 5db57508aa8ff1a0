/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package capture produces the inbound SYN stream. Two interchangeable
// sources exist: the netfilter verdict queue the operator redirects SYNs
// into, and a pcap sniffer with a kernel BPF filter for hosts where no
// queue rule is installed. Both hand the pipeline nothing but the packet's
// network layer source and an arrival timestamp.
package capture

import (
	"encoding/binary"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

const (
	// how many packets between supervisor intent checks
	svcInterval = 1000
)

// Handler is invoked synchronously for every SYN, on the single reader
// thread, preserving per-source arrival order.
type Handler func(addr uint32, now int64)

// Service is invoked every svcInterval packets so the supervisor can act
// on pending signal intents. Returning false stops the source.
type Service func() bool

// Source is the capability set shared by the queue and sniffer variants.
type Source interface {
	Run() error
	Stop()
	Close() error
}

// decoder holds reusable layer state for the single reader thread.
type decoder struct {
	eth     layers.Ethernet
	ip4     layers.IPv4
	tcp     layers.TCP
	parser  *gopacket.DecodingLayerParser
	decoded []gopacket.LayerType
}

// newDecoder builds a decoder rooted at the link layer when frames carry
// an ethernet header, or at the network layer for raw IP payloads.
func newDecoder(linked bool) (d *decoder) {
	d = &decoder{}
	if linked {
		d.parser = gopacket.NewDecodingLayerParser(layers.LayerTypeEthernet, &d.eth, &d.ip4, &d.tcp)
	} else {
		d.parser = gopacket.NewDecodingLayerParser(layers.LayerTypeIPv4, &d.ip4, &d.tcp)
	}
	d.parser.IgnoreUnsupported = true
	return
}

// synSource extracts the IPv4 source of a TCP segment with SYN set and
// ACK clear. Anything else, malformed frames and IPv6 included, returns
// false and is skipped by the caller.
func (d *decoder) synSource(data []byte) (uint32, bool) {
	if err := d.parser.DecodeLayers(data, &d.decoded); err != nil {
		return 0, false
	}
	var gotIP, gotTCP bool
	for _, lt := range d.decoded {
		switch lt {
		case layers.LayerTypeIPv4:
			gotIP = true
		case layers.LayerTypeTCP:
			gotTCP = true
		}
	}
	if !gotIP || !gotTCP {
		return 0, false
	}
	if !d.tcp.SYN || d.tcp.ACK {
		return 0, false
	}
	src := d.ip4.SrcIP.To4()
	if src == nil {
		return 0, false
	}
	return binary.BigEndian.Uint32(src), true
}
