//go:build linux
// +build linux

/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package main

import (
	"github.com/gravwell/floodguard/blockset"
	"github.com/gravwell/floodguard/config"
	"github.com/gravwell/floodguard/detect"
	"github.com/gravwell/floodguard/log"
	"github.com/gravwell/floodguard/tracker"
	"github.com/gravwell/floodguard/utils"
	"github.com/gravwell/floodguard/whitelist"
)

// supervisor owns the reload path and the periodic intent service the
// packet sources call into. All of it runs on either the main goroutine
// or the packet thread, never both at once for reload (the packet thread
// only reaches reload through service, and the main loop only while the
// source is between service calls; reload itself is idempotent and the
// intent flag is take-once).
type supervisor struct {
	configLoc string
	intents   *utils.Intents
	pipe      *detect.Pipeline
	drv       blockset.Driver
	lg        *log.Logger
}

// service is invoked by the packet source every thousand packets.
// Returning false stops the source.
func (s *supervisor) service() bool {
	if s.intents.TakeReload() {
		s.reload()
	}
	return !s.intents.ShutdownRequested()
}

// reload re-reads the configuration and whitelist and publishes both as
// one snapshot. Any failure keeps the running pair untouched.
func (s *supervisor) reload() {
	cfg, err := config.ReloadConfig(s.configLoc)
	if err != nil {
		s.lg.Error("reload failed, keeping current configuration", log.KVErr(err))
		return
	}
	wl, skipped, err := whitelist.LoadFile(cfg.Whitelist_File)
	if err != nil {
		s.lg.Error("reload failed to load whitelist, keeping current configuration",
			log.KV("path", cfg.Whitelist_File), log.KVErr(err))
		return
	}
	if skipped > 0 {
		s.lg.Warn("skipped malformed whitelist entries on reload", log.KV("count", skipped))
	}
	if err = s.pipe.Publish(cfg.DetectConfig(), wl); err != nil {
		s.lg.Error("reload produced an invalid detection config", log.KVErr(err))
		return
	}
	if cfg.Log_Level != `` {
		if err = s.lg.SetLevelString(cfg.Log_Level); err != nil {
			s.lg.Error("reload carried an invalid log level", log.KV("level", cfg.Log_Level), log.KVErr(err))
		}
	}
	s.pruneWhitelisted(wl)
	s.lg.Info("configuration reloaded", log.KV("whitelist", wl.Count()), log.KV("threshold", cfg.Syn_Threshold))
}

// pruneWhitelisted drops tracker records, and any standing blocks, for
// addresses the new whitelist now trusts.
func (s *supervisor) pruneWhitelisted(wl *whitelist.Whitelist) {
	tbl := s.pipe.Tracker()
	var stale []uint32
	var blocked []uint32
	tbl.ForEach(func(r tracker.Record) {
		if !wl.Contains(r.Addr) {
			return
		}
		stale = append(stale, r.Addr)
		if r.Blocked {
			blocked = append(blocked, r.Addr)
		}
	})
	for _, addr := range blocked {
		if err := s.drv.Remove(addr); err != nil {
			s.lg.Warn("failed to remove newly whitelisted block",
				log.KV("address", detect.Event{Addr: addr}.AddrString()), log.KVErr(err))
		}
	}
	for _, addr := range stale {
		tbl.Remove(addr)
	}
	if len(stale) > 0 {
		s.lg.Info("pruned newly whitelisted addresses from tracker",
			log.KV("count", len(stale)), log.KV("unblocked", len(blocked)))
	}
}
