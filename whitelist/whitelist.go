/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package whitelist implements the trusted-source CIDR set consulted on
// every inbound SYN. Lookups are read-only and safe for concurrent use;
// a reload builds a complete replacement set and swaps it in whole.
package whitelist

import (
	"bufio"
	"errors"
	"io"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/asergeyev/nradix"
)

var (
	ErrNilReader = errors.New("nil reader")
)

type Whitelist struct {
	tree    *nradix.Tree
	entries int
}

// New builds a whitelist from newline separated CIDR entries. A bare
// address is treated as a /32. Blank lines and lines whose first non-space
// character is '#' are ignored. Malformed lines are counted and skipped,
// they do not abort the build.
func New(rdr io.Reader) (w *Whitelist, skipped int, err error) {
	if rdr == nil {
		return nil, 0, ErrNilReader
	}
	w = &Whitelist{
		tree: nradix.NewTree(32),
	}
	scn := bufio.NewScanner(rdr)
	for scn.Scan() {
		ln := strings.TrimSpace(scn.Text())
		if len(ln) == 0 || ln[0] == '#' {
			continue
		}
		cidr, ok := normalize(ln)
		if !ok {
			skipped++
			continue
		}
		if lerr := w.tree.AddCIDR(cidr, true); lerr != nil {
			//duplicate or otherwise unusable entry, count it and move on
			skipped++
			continue
		}
		w.entries++
	}
	if err = scn.Err(); err != nil {
		return nil, skipped, err
	}
	return
}

// LoadFile builds a whitelist from the file at pth.
func LoadFile(pth string) (*Whitelist, int, error) {
	fin, err := os.Open(pth)
	if err != nil {
		return nil, 0, err
	}
	defer fin.Close()
	return New(fin)
}

// normalize validates a whitelist line and returns it in full CIDR form,
// appending /32 to bare addresses.
func normalize(ln string) (string, bool) {
	if strings.Contains(ln, `/`) {
		ip, ipn, err := net.ParseCIDR(ln)
		if err != nil || ip.To4() == nil {
			return ``, false
		}
		return ipn.String(), true
	}
	ip := net.ParseIP(ln)
	if ip == nil || ip.To4() == nil {
		return ``, false
	}
	return ln + `/32`, true
}

// Contains returns true if any stored prefix covers addr. addr is a host
// order IPv4 value. An empty whitelist answers false for everything.
func (w *Whitelist) Contains(addr uint32) bool {
	if w == nil || w.entries == 0 {
		return false
	}
	var buf [15]byte
	v, err := w.tree.FindCIDRb(appendAddr(buf[:0], addr))
	if err != nil || v == nil {
		return false
	}
	return true
}

// Count returns the number of live entries.
func (w *Whitelist) Count() int {
	if w == nil {
		return 0
	}
	return w.entries
}

func appendAddr(b []byte, addr uint32) []byte {
	b = strconv.AppendUint(b, uint64(addr>>24), 10)
	b = append(b, '.')
	b = strconv.AppendUint(b, uint64((addr>>16)&0xff), 10)
	b = append(b, '.')
	b = strconv.AppendUint(b, uint64((addr>>8)&0xff), 10)
	b = append(b, '.')
	b = strconv.AppendUint(b, uint64(addr&0xff), 10)
	return b
}
