//go:build linux
// +build linux

/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package blockset

import (
	"errors"
	"os"
	"sync"

	"github.com/gravwell/floodguard/log"

	"github.com/vishvananda/netlink"
	"github.com/vishvananda/netlink/nl"
)

const (
	setType = `hash:ip`
)

// IPSet drives a kernel ipset of type hash:ip with per-entry timeouts.
// The kernel ages entries out on its own; the daemon also removes them
// on sweep so tracker state and the set stay aligned.
type IPSet struct {
	mtx  sync.Mutex
	name string
	hot  bool
	lg   *log.Logger
}

// NewIPSet creates the named set if it does not exist and returns a
// driver over it. Creation is idempotent; an existing set is adopted
// as is, including any entries surviving from a previous run.
func NewIPSet(name string, defaultTTL, maxElements uint32, lg *log.Logger) (*IPSet, error) {
	if name == `` {
		return nil, ErrEmptyName
	}
	if defaultTTL == 0 {
		return nil, ErrZeroMaxTTL
	}
	ttl := defaultTTL
	opts := netlink.IpsetCreateOptions{
		Timeout:     &ttl,
		MaxElements: maxElements,
	}
	if err := netlink.IpsetCreate(name, setType, opts); err != nil && !existsErr(err) {
		return nil, err
	}
	return &IPSet{
		name: name,
		hot:  true,
		lg:   lg,
	}, nil
}

// Add inserts addr with the given TTL. Re-adding a present address
// refreshes its TTL.
func (s *IPSet) Add(addr uint32, ttlSecs uint32) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if !s.hot {
		return ErrClosed
	}
	ttl := ttlSecs
	ent := netlink.IPSetEntry{
		IP:      ipv4(addr),
		Timeout: &ttl,
		Replace: true,
	}
	return netlink.IpsetAdd(s.name, &ent)
}

// Remove deletes addr from the set; removing an absent address is a no-op.
func (s *IPSet) Remove(addr uint32) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if !s.hot {
		return ErrClosed
	}
	ent := netlink.IPSetEntry{
		IP:      ipv4(addr),
		Replace: true,
	}
	if err := netlink.IpsetDel(s.name, &ent); err != nil && !existsErr(err) {
		return err
	}
	return nil
}

// Test reports whether addr is currently in the set.
func (s *IPSet) Test(addr uint32) (bool, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if !s.hot {
		return false, ErrClosed
	}
	r, err := netlink.IpsetList(s.name)
	if err != nil {
		return false, err
	}
	want := ipv4(addr)
	for i := range r.Entries {
		if r.Entries[i].IP.Equal(want) {
			return true, nil
		}
	}
	return false, nil
}

// Flush empties the set.
func (s *IPSet) Flush() error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if !s.hot {
		return ErrClosed
	}
	return netlink.IpsetFlush(s.name)
}

// Count returns the number of live entries.
func (s *IPSet) Count() (uint32, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if !s.hot {
		return 0, ErrClosed
	}
	r, err := netlink.IpsetList(s.name)
	if err != nil {
		return 0, err
	}
	return uint32(len(r.Entries)), nil
}

// Shutdown marks the driver closed. The set itself is left in the
// kernel so active blocks keep dropping traffic across a restart.
func (s *IPSet) Shutdown() error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if !s.hot {
		return ErrClosed
	}
	s.hot = false
	return nil
}

// existsErr matches both the generic EEXIST family and the ipset
// subsystem's own exist/not-exist error code.
func existsErr(err error) bool {
	if errors.Is(err, os.ErrExist) || errors.Is(err, os.ErrNotExist) {
		return true
	}
	var ipsetErr nl.IPSetError
	if errors.As(err, &ipsetErr) {
		return ipsetErr == nl.IPSET_ERR_EXIST
	}
	return false
}
