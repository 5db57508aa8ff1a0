/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package state

import (
	"path/filepath"
	"testing"
	"time"
)

func TestRoundTrip(t *testing.T) {
	p := filepath.Join(t.TempDir(), `blocks.state`)
	s, err := NewBlockState(p, 0660)
	if err != nil {
		t.Fatal(err)
	}
	now := time.Now()
	in := []Block{
		{Addr: 0xCB007164, Deadline: now.Add(300 * time.Second)},
		{Addr: 0x0A000001, Deadline: now.Add(10 * time.Second)},
	}
	if err = s.Write(in); err != nil {
		t.Fatal(err)
	}
	out, err := s.Read()
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Fatalf("read %d blocks", len(out))
	}
	for i := range in {
		if out[i].Addr != in[i].Addr || !out[i].Deadline.Equal(in[i].Deadline) {
			t.Fatalf("block %d mangled: %+v != %+v", i, out[i], in[i])
		}
	}
}

func TestMissingState(t *testing.T) {
	s, err := NewBlockState(filepath.Join(t.TempDir(), `missing.state`), 0660)
	if err != nil {
		t.Fatal(err)
	}
	if _, err = s.Read(); err != ErrNoState {
		t.Fatalf("missing snapshot: %v", err)
	}
}

func TestOverwrite(t *testing.T) {
	p := filepath.Join(t.TempDir(), `blocks.state`)
	s, err := NewBlockState(p, 0660)
	if err != nil {
		t.Fatal(err)
	}
	if err = s.Write([]Block{{Addr: 1, Deadline: time.Now().Add(time.Hour)}}); err != nil {
		t.Fatal(err)
	}
	if err = s.Write(nil); err != nil {
		t.Fatal(err)
	}
	out, err := s.Read()
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 0 {
		t.Fatalf("overwrite left %d blocks", len(out))
	}
}

func TestInvalidPath(t *testing.T) {
	if _, err := NewBlockState(``, 0660); err != ErrInvalidStatePath {
		t.Fatalf("empty path: %v", err)
	}
	if _, err := NewBlockState(t.TempDir(), 0660); err != ErrInvalidStatePath {
		t.Fatalf("directory path: %v", err)
	}
}

func TestLive(t *testing.T) {
	now := time.Now()
	blocks := []Block{
		{Addr: 1, Deadline: now.Add(-time.Second)},
		{Addr: 2, Deadline: now.Add(time.Minute)},
		{Addr: 3, Deadline: now},
	}
	live := Live(blocks, now)
	if len(live) != 1 || live[0].Addr != 2 {
		t.Fatalf("live set %+v", live)
	}
}
