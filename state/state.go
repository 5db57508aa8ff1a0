/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package state persists the live block list across restarts. The kernel
// set already survives a daemon exit; the snapshot lets the tracker
// rejoin it so the sweeper can release those blocks on schedule instead
// of orphaning them to the kernel TTL.
package state

import (
	"encoding/gob"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dchest/safefile"
)

var (
	ErrInvalidStatePath = errors.New("Invalid state file path")
	ErrNoState          = errors.New("No state available")
)

// Block is one persisted entry. Deadlines are wall clock because the
// monotonic epoch does not survive the process.
type Block struct {
	Addr     uint32
	Deadline time.Time
}

type BlockState struct {
	sync.Mutex
	fpath string
	perm  os.FileMode
}

func NewBlockState(pth string, perm os.FileMode) (s *BlockState, err error) {
	var fi os.FileInfo
	if pth = filepath.Clean(pth); pth == `.` {
		err = ErrInvalidStatePath
		return
	}
	//check that if it exists, it is a regular file
	if fi, err = os.Stat(pth); err == nil {
		if !fi.Mode().IsRegular() {
			err = ErrInvalidStatePath
			return
		}
	} else {
		if !os.IsNotExist(err) {
			//if its some other non is not exist error, bail
			return
		}
		err = nil //just doesn't exist yet
	}
	s = &BlockState{
		fpath: pth,
		perm:  perm,
	}
	return
}

// Write atomically replaces the snapshot with the given block list. The
// file is only published once the full encode has landed.
func (s *BlockState) Write(blocks []Block) (err error) {
	s.Lock()
	defer s.Unlock()
	var fout *safefile.File
	if fout, err = safefile.Create(s.fpath, s.perm); err != nil {
		return
	}
	n := fout.Name() //in case we have to destroy it
	if err = gob.NewEncoder(fout).Encode(blocks); err != nil {
		fout.File.Close()
		os.Remove(n)
	} else if err = fout.Commit(); err != nil {
		fout.File.Close()
		os.Remove(n)
	}
	return
}

// Read returns the persisted block list. A missing snapshot is ErrNoState.
func (s *BlockState) Read() (blocks []Block, err error) {
	s.Lock()
	defer s.Unlock()
	var fin *os.File
	if fin, err = os.Open(s.fpath); err != nil {
		if os.IsNotExist(err) {
			err = ErrNoState
		}
		return
	}
	err = gob.NewDecoder(fin).Decode(&blocks)
	if lerr := fin.Close(); lerr != nil && err == nil {
		err = lerr
	}
	return
}

// Live filters a snapshot down to entries whose deadline has not passed.
func Live(blocks []Block, now time.Time) (r []Block) {
	for _, b := range blocks {
		if b.Deadline.After(now) {
			r = append(r, b)
		}
	}
	return
}
