//go:build linux
// +build linux

/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package capture

import (
	"context"
	"errors"
	"time"

	"github.com/gravwell/floodguard/clock"
	"github.com/gravwell/floodguard/log"
	"github.com/gravwell/floodguard/metrics"

	nfqueue "github.com/florianl/go-nfqueue"
)

const (
	maxPacketLen       uint32 = 0xffff
	defaultMaxQueueLen uint32 = 1024

	verdictTimeout = 15 * time.Millisecond
)

var (
	ErrNilHandler = errors.New("nil packet handler")
)

type NFQueueConfig struct {
	QueueNum    uint16
	MaxQueueLen uint32
	FailOpen    bool //kernel accepts rather than drops when the queue backs up
}

// NFQueue consumes the netfilter queue the operator redirects inbound
// SYNs into. Every received id gets an accept verdict once the pipeline
// has seen the packet; dropping is the address set match's job.
type NFQueue struct {
	nf    *nfqueue.Nfqueue
	hnd   Handler
	svc   Service
	cts   *metrics.Counters
	lg    *log.Logger
	dec   *decoder
	ctx   context.Context
	cf    context.CancelFunc
	count uint64
}

func NewNFQueue(qc NFQueueConfig, hnd Handler, svc Service, cts *metrics.Counters, lg *log.Logger) (*NFQueue, error) {
	if hnd == nil {
		return nil, ErrNilHandler
	}
	if qc.MaxQueueLen == 0 {
		qc.MaxQueueLen = defaultMaxQueueLen
	}
	cfg := nfqueue.Config{
		NfQueue:      qc.QueueNum,
		MaxPacketLen: maxPacketLen,
		MaxQueueLen:  qc.MaxQueueLen,
		Copymode:     nfqueue.NfQnlCopyPacket,
		WriteTimeout: verdictTimeout,
	}
	if qc.FailOpen {
		cfg.Flags = nfqueue.NfQaCfgFlagFailOpen
	}
	nf, err := nfqueue.Open(&cfg)
	if err != nil {
		return nil, err
	}
	ctx, cf := context.WithCancel(context.Background())
	if cts == nil {
		cts = metrics.NewCounters()
	}
	return &NFQueue{
		nf:  nf,
		hnd: hnd,
		svc: svc,
		cts: cts,
		lg:  lg,
		dec: newDecoder(false), //queue payloads start at the IP header
		ctx: ctx,
		cf:  cf,
	}, nil
}

// Run blocks consuming the queue until Stop, or until the service callback
// asks the source to stop. Receive errors are logged and the read continues.
func (q *NFQueue) Run() error {
	if err := q.nf.RegisterWithErrorFunc(q.ctx, q.packet, q.sockErr); err != nil {
		return err
	}
	<-q.ctx.Done()
	return nil
}

func (q *NFQueue) packet(a nfqueue.Attribute) int {
	if a.PacketID == nil {
		return 0
	}
	q.cts.AddPacket()
	if a.Payload != nil {
		if src, ok := q.dec.synSource(*a.Payload); ok {
			q.hnd(src, clock.Now())
		}
	}
	//the verdict goes back only after the pipeline returned
	if err := q.nf.SetVerdict(*a.PacketID, nfqueue.NfAccept); err != nil && q.lg != nil {
		q.lg.Warn("failed to set verdict", log.KVErr(err))
	}
	if q.count++; q.count%svcInterval == 0 && q.svc != nil {
		if !q.svc() {
			q.cf()
			return 1
		}
	}
	return 0
}

func (q *NFQueue) sockErr(err error) int {
	if q.ctx.Err() != nil {
		//shutting down, the read unblocked by design
		return 1
	}
	if q.lg != nil {
		q.lg.Error("netfilter queue receive failure", log.KVErr(err))
	}
	return 0
}

// Stop unblocks the queue read promptly.
func (q *NFQueue) Stop() {
	q.cf()
}

func (q *NFQueue) Close() error {
	q.cf()
	return q.nf.Close()
}
