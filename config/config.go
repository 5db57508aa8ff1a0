/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package config parses and validates the daemon configuration file. The
// file is INI form with a [Global] block carrying the detection knobs and
// exactly one capture section, either a [Queue "name"] or a
// [Sniffer "name"].
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/gravwell/gcfg"

	"github.com/gravwell/floodguard/detect"
)

const (
	maxConfigSize int64 = 1024 * 1024 * 2 //2MB, anything larger is not a config file

	defaultSynThreshold  uint32 = 100
	defaultWindowMs      uint32 = 1000
	defaultBlockSec      uint32 = 300
	defaultMaxTracked    uint32 = 10000
	defaultHashBuckets   uint32 = 1024
	defaultSweepSec      uint32 = 10
	defaultMaxBlocked    uint32 = 65536
	defaultIpsetName     string = `floodguard`
	defaultWhitelistFile string = `/opt/floodguard/etc/whitelist.conf`

	envIpsetName string = `FLOODGUARD_IPSET`
	envQueueNum  string = `FLOODGUARD_QUEUE_NUM`
	envInterface string = `FLOODGUARD_SNIFF_INTERFACE`
	envWhitelist string = `FLOODGUARD_WHITELIST_FILE`
)

var (
	ErrConfigTooLarge  = errors.New("config file is too large")
	ErrShortRead       = errors.New("failed to read the entire config file")
	ErrNoCaptureSource = errors.New("no capture source specified")
	ErrManyCaptures    = errors.New("only one capture source may be specified")
)

type GlobalConfig struct {
	Syn_Threshold      uint32
	Window_Ms          uint32
	Block_Duration_Sec uint32
	Max_Tracked_Ips    uint32
	Hash_Buckets       uint32
	Sweep_Interval_Sec uint32
	Ipset_Name         string
	Max_Blocked_Ips    uint32
	Whitelist_File     string
	State_File         string
	Log_File           string
	Log_Level          string
	Verbose            bool
	Dry_Run            bool
	Daemon_UUID        string
}

type QueueConfig struct {
	Queue_Num     uint16
	Max_Queue_Len uint32
	Fail_Open     bool
}

type SnifferConfig struct {
	Interface  string
	Snap_Len   int
	Promisc    bool
	BPF_Filter string
}

type cfgReadType struct {
	Global  GlobalConfig
	Queue   map[string]*QueueConfig
	Sniffer map[string]*SnifferConfig
}

type Config struct {
	GlobalConfig
	Queue   map[string]*QueueConfig
	Sniffer map[string]*SnifferConfig
}

// GetConfig loads, validates, and completes the config at path. A daemon
// UUID is generated and written back into the file on first start.
func GetConfig(path string) (*Config, error) {
	content, err := readConfigFile(path)
	if err != nil {
		return nil, err
	}
	c, err := ParseConfig(content)
	if err != nil {
		return nil, err
	}
	if _, ok := c.DaemonUUID(); !ok {
		id := uuid.New()
		if err = c.SetDaemonUUID(id, path); err != nil {
			return nil, err
		}
		if id2, ok := c.DaemonUUID(); !ok || id != id2 {
			return nil, errors.New("failed to set a new daemon UUID")
		}
	}
	return c, nil
}

// ReloadConfig re-reads and validates the config at path without any
// UUID write-back. A broken edit never displaces the running config,
// the caller keeps the old snapshot when this errors.
func ReloadConfig(path string) (*Config, error) {
	content, err := readConfigFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(content)
}

// ParseConfig validates a config from raw content.
func ParseConfig(content string) (*Config, error) {
	var cr cfgReadType
	if err := gcfg.ReadStringInto(&cr, content); err != nil {
		return nil, err
	}
	c := &Config{
		GlobalConfig: cr.Global,
		Queue:        cr.Queue,
		Sniffer:      cr.Sniffer,
	}
	if err := verifyConfig(c); err != nil {
		return nil, err
	}
	return c, nil
}

func readConfigFile(path string) (string, error) {
	fin, err := os.Open(path)
	if err != nil {
		return ``, err
	}
	defer fin.Close()
	fi, err := fin.Stat()
	if err != nil {
		return ``, err
	}
	if fi.Size() > maxConfigSize {
		return ``, ErrConfigTooLarge
	}
	content := make([]byte, fi.Size())
	n, err := fin.Read(content)
	if err != nil {
		return ``, err
	} else if int64(n) != fi.Size() {
		return ``, ErrShortRead
	}
	return string(content), nil
}

func verifyConfig(c *Config) error {
	//defaults first, then validation
	if c.Syn_Threshold == 0 {
		c.Syn_Threshold = defaultSynThreshold
	}
	if c.Window_Ms == 0 {
		c.Window_Ms = defaultWindowMs
	}
	if c.Block_Duration_Sec == 0 {
		c.Block_Duration_Sec = defaultBlockSec
	}
	if c.Max_Tracked_Ips == 0 {
		c.Max_Tracked_Ips = defaultMaxTracked
	}
	if c.Hash_Buckets == 0 {
		c.Hash_Buckets = defaultHashBuckets
	}
	if c.Sweep_Interval_Sec == 0 {
		c.Sweep_Interval_Sec = defaultSweepSec
	}
	if c.Max_Blocked_Ips == 0 {
		c.Max_Blocked_Ips = defaultMaxBlocked
	}
	if err := LoadEnvVar(&c.Ipset_Name, envIpsetName, defaultIpsetName); err != nil {
		return err
	}
	if err := LoadEnvVar(&c.Whitelist_File, envWhitelist, defaultWhitelistFile); err != nil {
		return err
	}
	if c.Hash_Buckets&(c.Hash_Buckets-1) != 0 {
		return fmt.Errorf("Hash-Buckets %d is not a power of two", c.Hash_Buckets)
	}
	if c.Log_Level != `` {
		if err := checkLogLevel(c.Log_Level); err != nil {
			return err
		}
	}
	for k, v := range c.Queue {
		if v == nil {
			return fmt.Errorf("Queue %q is invalid", k)
		}
		if err := LoadEnvVar(&v.Queue_Num, envQueueNum, uint16(0)); err != nil {
			return err
		}
	}
	for k, v := range c.Sniffer {
		if v == nil {
			return fmt.Errorf("Sniffer %q is invalid", k)
		}
		if err := LoadEnvVar(&v.Interface, envInterface, ``); err != nil {
			return err
		}
		if v.Interface == `` {
			return fmt.Errorf("Sniffer %q has no Interface", k)
		}
		if v.Snap_Len < 0 {
			return fmt.Errorf("Sniffer %q has negative Snap-Len", k)
		}
	}
	if len(c.Queue)+len(c.Sniffer) == 0 {
		return ErrNoCaptureSource
	}
	if len(c.Queue)+len(c.Sniffer) > 1 {
		return ErrManyCaptures
	}
	return nil
}

func checkLogLevel(s string) error {
	switch s {
	case `OFF`, `DEBUG`, `INFO`, `WARN`, `ERROR`, `CRITICAL`, `FATAL`:
		return nil
	}
	return fmt.Errorf("invalid Log-Level %q", s)
}

// DetectConfig renders the validated global block as the immutable
// detection snapshot consumed per packet.
func (c *Config) DetectConfig() detect.Config {
	return detect.Config{
		SynThreshold:    c.Syn_Threshold,
		WindowNS:        int64(c.Window_Ms) * int64(time.Millisecond),
		BlockDurationNS: int64(c.Block_Duration_Sec) * int64(time.Second),
		BlockTTLSecs:    c.Block_Duration_Sec,
		SweepInterval:   time.Duration(c.Sweep_Interval_Sec) * time.Second,
	}
}

// DaemonUUID returns the persisted instance id, if a valid one is set.
func (c *Config) DaemonUUID() (id uuid.UUID, ok bool) {
	if c.Daemon_UUID == `` {
		return
	}
	var err error
	if id, err = uuid.Parse(c.Daemon_UUID); err == nil {
		ok = true
	}
	if id == (uuid.UUID{}) {
		ok = false
	}
	return
}
