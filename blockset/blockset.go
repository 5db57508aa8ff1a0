/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package blockset drives the kernel resident address set that inbound
// packets are matched against for dropping. The production driver speaks
// netlink to the ipset subsystem directly, no shell-outs; a memory driver
// backs dry-run mode and tests.
package blockset

import (
	"errors"
	"net"
)

var (
	ErrClosed     = errors.New("block set driver is closed")
	ErrEmptyName  = errors.New("block set name is empty")
	ErrZeroMaxTTL = errors.New("default TTL must be nonzero")
)

// Driver is the mutation surface over the enforcement set. All
// implementations serialize internally and may be called from any thread.
// Shutdown releases driver resources without destroying the set, so
// blocks survive a daemon restart.
type Driver interface {
	Add(addr uint32, ttlSecs uint32) error
	Remove(addr uint32) error
	Test(addr uint32) (bool, error)
	Flush() error
	Count() (uint32, error)
	Shutdown() error
}

// ipv4 renders a host order address for the netlink layer.
func ipv4(addr uint32) net.IP {
	return net.IPv4(byte(addr>>24), byte(addr>>16), byte(addr>>8), byte(addr)).To4()
}
