/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package capture

import (
	"errors"
	"io"
	"time"

	"github.com/gravwell/floodguard/clock"
	"github.com/gravwell/floodguard/log"
	"github.com/gravwell/floodguard/metrics"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
)

const (
	defaultSnapLen int = 96

	pktTimeout time.Duration = 500 * time.Millisecond

	// kernel side filter: protocol is TCP, SYN set, ACK clear
	SynOnlyFilter = `tcp[tcpflags] & (tcp-syn|tcp-ack) == tcp-syn`
)

var (
	ErrNoInterface = errors.New("no capture interface specified")
)

type SnifferConfig struct {
	Interface string
	SnapLen   int
	Promisc   bool
	BPFFilter string //override, the SYN-only filter is appended regardless
}

// Sniffer is the fallback source: a filtered raw capture on one
// interface. There is no verdict channel; enforcement is entirely the
// address set's job.
type Sniffer struct {
	SnifferConfig
	hnd      Handler
	svc      Service
	cts      *metrics.Counters
	lg       *log.Logger
	handle   *pcap.Handle
	dec      *decoder
	trimSize int
	die      chan bool
	count    uint64
}

func NewSniffer(sc SnifferConfig, hnd Handler, svc Service, cts *metrics.Counters, lg *log.Logger) (*Sniffer, error) {
	if hnd == nil {
		return nil, ErrNilHandler
	}
	if sc.Interface == `` {
		return nil, ErrNoInterface
	}
	if sc.SnapLen <= 0 {
		sc.SnapLen = defaultSnapLen
	}
	hnd2, err := pcap.OpenLive(sc.Interface, int32(sc.SnapLen), sc.Promisc, pktTimeout)
	if err != nil {
		return nil, err
	}
	filter := SynOnlyFilter
	if sc.BPFFilter != `` {
		filter = `(` + sc.BPFFilter + `) and (` + SynOnlyFilter + `)`
	}
	if err := hnd2.SetBPFFilter(filter); err != nil {
		hnd2.Close()
		return nil, err
	}
	if cts == nil {
		cts = metrics.NewCounters()
	}
	s := &Sniffer{
		SnifferConfig: sc,
		hnd:           hnd,
		svc:           svc,
		cts:           cts,
		lg:            lg,
		handle:        hnd2,
		die:           make(chan bool, 1),
	}
	//cooked SLL captures carry a 16 byte pseudo header, trimming two
	//bytes lines the IP layer up at the ethernet offset
	if hnd2.LinkType() == layers.LinkTypeLinuxSLL {
		s.trimSize = 2
	}
	s.dec = newDecoder(hnd2.LinkType() != layers.LinkTypeRaw)
	return s, nil
}

// Run blocks reading frames until Stop or an unrecoverable read error.
func (s *Sniffer) Run() error {
	for {
		select {
		case <-s.die:
			return nil
		default:
		}
		data, _, err := s.handle.ReadPacketData()
		if err != nil {
			if err == pcap.NextErrorTimeoutExpired || err == io.EOF {
				continue
			}
			if s.lg != nil {
				s.lg.Error("failed to read packet", log.KV("interface", s.Interface), log.KVErr(err))
			}
			return err
		}
		s.cts.AddPacket()
		if s.trimSize > 0 && len(data) > s.trimSize {
			data = data[s.trimSize:]
		}
		if src, ok := s.dec.synSource(data); ok {
			s.hnd(src, clock.Now())
		}
		if s.count++; s.count%svcInterval == 0 && s.svc != nil {
			if !s.svc() {
				return nil
			}
		}
	}
}

// Stop makes Run return at the next read timeout.
func (s *Sniffer) Stop() {
	select {
	case s.die <- true:
	default:
	}
}

func (s *Sniffer) Close() error {
	s.handle.Close()
	return nil
}
