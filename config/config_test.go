/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const baseConfig = `
[Global]
	Syn-Threshold=100
	Window-Ms=1000
	Block-Duration-Sec=300
	Max-Tracked-Ips=10000
	Hash-Buckets=1024
	Sweep-Interval-Sec=10
	Ipset-Name=floodguard
	Whitelist-File=/tmp/whitelist.conf
	Log-Level=INFO

[Queue "default"]
	Queue-Num=0
	Fail-Open=true
`

const snifferConfig = `
[Global]
	Syn-Threshold=50

[Sniffer "eth0"]
	Interface=eth0
	Snap-Len=128
	Promisc=false
`

func TestParseQueueConfig(t *testing.T) {
	c, err := ParseConfig(baseConfig)
	if err != nil {
		t.Fatal(err)
	}
	if c.Syn_Threshold != 100 || c.Window_Ms != 1000 || c.Block_Duration_Sec != 300 {
		t.Fatalf("global block mangled: %+v", c.GlobalConfig)
	}
	if len(c.Queue) != 1 || len(c.Sniffer) != 0 {
		t.Fatalf("capture sections %d/%d", len(c.Queue), len(c.Sniffer))
	}
	q := c.Queue[`default`]
	if q.Queue_Num != 0 || !q.Fail_Open {
		t.Fatalf("queue section %+v", q)
	}
}

func TestParseSnifferConfig(t *testing.T) {
	c, err := ParseConfig(snifferConfig)
	if err != nil {
		t.Fatal(err)
	}
	if c.Syn_Threshold != 50 {
		t.Fatalf("threshold %d", c.Syn_Threshold)
	}
	// unset values take defaults
	if c.Window_Ms != defaultWindowMs || c.Hash_Buckets != defaultHashBuckets {
		t.Fatalf("defaults not applied: %+v", c.GlobalConfig)
	}
	if c.Ipset_Name != defaultIpsetName {
		t.Fatalf("ipset name %q", c.Ipset_Name)
	}
	s := c.Sniffer[`eth0`]
	if s == nil || s.Interface != `eth0` || s.Snap_Len != 128 {
		t.Fatalf("sniffer section %+v", s)
	}
}

func TestRejectBadConfigs(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{`no capture`, "[Global]\nSyn-Threshold=5\n"},
		{`two captures`, "[Queue \"a\"]\nQueue-Num=1\n[Sniffer \"b\"]\nInterface=eth0\n"},
		{`bad buckets`, "[Global]\nHash-Buckets=1000\n[Queue \"a\"]\nQueue-Num=1\n"},
		{`bad level`, "[Global]\nLog-Level=LOUD\n[Queue \"a\"]\nQueue-Num=1\n"},
		{`bare sniffer`, "[Sniffer \"x\"]\nPromisc=true\n"},
		{`garbage`, "this is not an ini file {{{"},
	}
	for _, tc := range cases {
		if _, err := ParseConfig(tc.content); err == nil {
			t.Fatalf("%s accepted", tc.name)
		}
	}
}

func TestDetectConfig(t *testing.T) {
	c, err := ParseConfig(baseConfig)
	if err != nil {
		t.Fatal(err)
	}
	dc := c.DetectConfig()
	if dc.SynThreshold != 100 {
		t.Fatalf("threshold %d", dc.SynThreshold)
	}
	if dc.WindowNS != int64(time.Second) {
		t.Fatalf("window %d", dc.WindowNS)
	}
	if dc.BlockDurationNS != int64(300*time.Second) || dc.BlockTTLSecs != 300 {
		t.Fatalf("block duration %d/%d", dc.BlockDurationNS, dc.BlockTTLSecs)
	}
	if dc.SweepInterval != 10*time.Second {
		t.Fatalf("sweep interval %v", dc.SweepInterval)
	}
}

func TestUUIDWriteback(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, `floodguard.conf`)
	if err := os.WriteFile(p, []byte(baseConfig), 0660); err != nil {
		t.Fatal(err)
	}
	c, err := GetConfig(p)
	if err != nil {
		t.Fatal(err)
	}
	id, ok := c.DaemonUUID()
	if !ok {
		t.Fatal("no UUID assigned on first start")
	}
	// the UUID landed in the file and survives a reload
	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), id.String()) {
		t.Fatal("UUID not written back to config file")
	}
	c2, err := GetConfig(p)
	if err != nil {
		t.Fatal(err)
	}
	id2, ok := c2.DaemonUUID()
	if !ok || id2 != id {
		t.Fatalf("UUID changed across restarts: %v -> %v", id, id2)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv(envIpsetName, `special-set`)
	c, err := ParseConfig(snifferConfig)
	if err != nil {
		t.Fatal(err)
	}
	if c.Ipset_Name != `special-set` {
		t.Fatalf("env override missed: %q", c.Ipset_Name)
	}
	// explicit config value beats the environment
	c2, err := ParseConfig(baseConfig)
	if err != nil {
		t.Fatal(err)
	}
	if c2.Ipset_Name != `floodguard` {
		t.Fatalf("env beat the config file: %q", c2.Ipset_Name)
	}
}

func TestParseBool(t *testing.T) {
	for _, v := range []string{`true`, `T`, `yes`, `1`} {
		if b, err := ParseBool(v); err != nil || !b {
			t.Fatalf("%q: %v %v", v, b, err)
		}
	}
	for _, v := range []string{`false`, `F`, `no`, `0`} {
		if b, err := ParseBool(v); err != nil || b {
			t.Fatalf("%q: %v %v", v, b, err)
		}
	}
	if _, err := ParseBool(`maybe`); err == nil {
		t.Fatal("bad bool accepted")
	}
}
