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
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gravwell/floodguard/blockset"
	"github.com/gravwell/floodguard/capture"
	"github.com/gravwell/floodguard/clock"
	"github.com/gravwell/floodguard/config"
	"github.com/gravwell/floodguard/detect"
	"github.com/gravwell/floodguard/log"
	"github.com/gravwell/floodguard/metrics"
	"github.com/gravwell/floodguard/probe"
	"github.com/gravwell/floodguard/state"
	"github.com/gravwell/floodguard/tracker"
	"github.com/gravwell/floodguard/utils"
	"github.com/gravwell/floodguard/utils/caps"
	"github.com/gravwell/floodguard/version"
	"github.com/gravwell/floodguard/whitelist"
)

const (
	defaultConfigLoc = `/opt/floodguard/etc/floodguard.conf`
	appName          = `floodguardd`
)

var (
	configLoc = flag.String("config-file", defaultConfigLoc, "Location of the configuration file")
	verFlag   = flag.Bool("version", false, "Print version information and exit")
	verbose   = flag.Bool("v", false, "Print verbose status updates to stdout")

	debugOn bool
	lg      *log.Logger
)

func main() {
	flag.Parse()
	if *verFlag {
		version.PrintVersion(os.Stdout)
		log.PrintOSInfo(os.Stdout)
		return
	}

	cfg, err := config.GetConfig(*configLoc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to get configuration: %v\n", err)
		os.Exit(-1)
	}
	debugOn = *verbose || cfg.Verbose

	if cfg.Log_File != `` {
		if lg, err = log.NewFile(cfg.Log_File); err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log file %s: %v\n", cfg.Log_File, err)
			os.Exit(-1)
		}
	} else {
		lg = log.NewStderrLogger()
	}
	if cfg.Log_Level != `` {
		if err = lg.SetLevelString(cfg.Log_Level); err != nil {
			lg.FatalCode(-1, "invalid log level", log.KV("level", cfg.Log_Level), log.KVErr(err))
		}
	}
	if id, ok := cfg.DaemonUUID(); ok {
		lg.Info("starting", log.KV("app", appName), log.KV("version", version.GetVersion()), log.KV("daemon", id.String()))
	}
	if debugOn {
		log.PrintOSInfo(os.Stdout)
	}

	//scream early if we are missing the capabilities the kernel surfaces need
	if !caps.Has(caps.NET_ADMIN) {
		lg.Warn("missing capability", log.KV("capability", "NET_ADMIN"), log.KV("warning", "may not be able to drive the verdict queue or the address set"))
		debugout("missing capability NET_ADMIN\n")
	}
	if len(cfg.Sniffer) > 0 && !caps.Has(caps.NET_RAW) {
		lg.Warn("missing capability", log.KV("capability", "NET_RAW"), log.KV("warning", "may not be able to establish raw capture sockets"))
		debugout("missing capability NET_RAW\n")
	}

	wl, skipped, err := loadWhitelist(cfg.Whitelist_File)
	if err != nil {
		lg.FatalCode(-2, "failed to load whitelist", log.KV("path", cfg.Whitelist_File), log.KVErr(err))
	}
	if skipped > 0 {
		lg.Warn("skipped malformed whitelist entries", log.KV("path", cfg.Whitelist_File), log.KV("count", skipped))
	}
	debugout("whitelist loaded with %d entries (%d skipped)\n", wl.Count(), skipped)

	tbl, err := tracker.NewTable(cfg.Hash_Buckets, cfg.Max_Tracked_Ips)
	if err != nil {
		lg.FatalCode(-2, "failed to build tracker table", log.KVErr(err))
	}

	var drv blockset.Driver
	if cfg.Dry_Run {
		lg.Info("dry run mode, kernel address set will not be touched")
		drv = blockset.NewMemory()
	} else {
		if drv, err = blockset.NewIPSet(cfg.Ipset_Name, cfg.Block_Duration_Sec, cfg.Max_Blocked_Ips, lg); err != nil {
			lg.FatalCode(-2, "failed to initialize address set", log.KV("set", cfg.Ipset_Name), log.KVErr(err))
		}
	}

	cts := metrics.NewCounters()
	snk := newLogSink(lg)
	pipe, err := detect.NewPipeline(cfg.DetectConfig(), wl, tbl, probe.New(lg), drv, cts, snk, lg)
	if err != nil {
		lg.FatalCode(-2, "failed to build detection pipeline", log.KVErr(err))
	}

	var blockState *state.BlockState
	if cfg.State_File != `` {
		if blockState, err = state.NewBlockState(cfg.State_File, 0660); err != nil {
			lg.FatalCode(-2, "invalid state file", log.KV("path", cfg.State_File), log.KVErr(err))
		}
		restoreBlocks(blockState, tbl, drv)
	}

	sweeper := detect.NewSweeper(pipe.Config().SweepInterval, tbl, drv, cts, snk, lg)
	sweeper.Start()

	intents := utils.NewIntents()
	sup := &supervisor{
		configLoc: *configLoc,
		intents:   intents,
		pipe:      pipe,
		drv:       drv,
		lg:        lg,
	}

	src, err := buildSource(cfg, pipe.OnSYN, sup.service, cts, lg)
	if err != nil {
		sweeper.Stop()
		lg.FatalCode(-2, "failed to initialize packet source", log.KVErr(err))
	}

	runErr := make(chan error, 1)
	go func() {
		runErr <- src.Run()
	}()
	lg.Info("floodguard started", log.KV("threshold", pipe.Config().SynThreshold), log.KV("set", cfg.Ipset_Name))
	debugout("started with threshold %d window %dms\n", cfg.Syn_Threshold, cfg.Window_Ms)

	start := time.Now()
	srcDone := false
mainLoop:
	for {
		select {
		case <-intents.Wake():
			if intents.TakeReload() {
				sup.reload()
			}
			if intents.ShutdownRequested() {
				break mainLoop
			}
		case err = <-runErr:
			if err != nil {
				lg.Error("packet source failed", log.KVErr(err))
			}
			srcDone = true
			break mainLoop
		}
	}

	//tear down in reverse of bring up: sweeper, then the packet source,
	//then the set driver; the address set itself is left in the kernel
	//so standing blocks keep working
	sweeper.Stop()
	src.Stop()
	if !srcDone {
		<-runErr
	}
	src.Close()
	if blockState != nil {
		saveBlocks(blockState, tbl)
	}
	if err = drv.Shutdown(); err != nil {
		lg.Error("failed to shut down address set driver", log.KVErr(err))
	}
	tbl.Clear()
	intents.Stop()

	s := cts.Snapshot()
	lg.Info("floodguard exiting",
		log.KV("uptime", time.Since(start).String()),
		log.KV("packets", s.TotalPackets),
		log.KV("syns", s.SynPackets),
		log.KV("detections", s.Detections))
	debugout("processed %d packets, %d detections in %v\n", s.TotalPackets, s.Detections, time.Since(start))
	lg.Close()
}

// loadWhitelist treats a missing file as an empty whitelist, anything
// else that fails is fatal at init.
func loadWhitelist(pth string) (*whitelist.Whitelist, int, error) {
	wl, skipped, err := whitelist.LoadFile(pth)
	if err != nil && os.IsNotExist(err) {
		return whitelist.New(strings.NewReader(``))
	}
	return wl, skipped, err
}

func buildSource(cfg *config.Config, hnd capture.Handler, svc capture.Service, cts *metrics.Counters, lg *log.Logger) (capture.Source, error) {
	for k, v := range cfg.Queue {
		debugout("attaching to netfilter queue %d (%s)\n", v.Queue_Num, k)
		return capture.NewNFQueue(capture.NFQueueConfig{
			QueueNum:    v.Queue_Num,
			MaxQueueLen: v.Max_Queue_Len,
			FailOpen:    v.Fail_Open,
		}, hnd, svc, cts, lg)
	}
	for k, v := range cfg.Sniffer {
		debugout("sniffing %s (%s)\n", v.Interface, k)
		return capture.NewSniffer(capture.SnifferConfig{
			Interface: v.Interface,
			SnapLen:   v.Snap_Len,
			Promisc:   v.Promisc,
			BPFFilter: v.BPF_Filter,
		}, hnd, svc, cts, lg)
	}
	return nil, config.ErrNoCaptureSource
}

// restoreBlocks rejoins the surviving kernel set after a restart: each
// persisted block that has not aged out yet is re-marked in the tracker
// and re-armed in the set with its remaining TTL.
func restoreBlocks(bs *state.BlockState, tbl *tracker.Table, drv blockset.Driver) {
	blocks, err := bs.Read()
	if err != nil {
		if err != state.ErrNoState {
			lg.Warn("failed to read block state", log.KVErr(err))
		}
		return
	}
	now := time.Now()
	mono := clock.Now()
	var restored int
	for _, b := range state.Live(blocks, now) {
		remaining := b.Deadline.Sub(now)
		ttl := uint32((remaining + time.Second - 1) / time.Second)
		if err := drv.Add(b.Addr, ttl); err != nil {
			lg.Warn("failed to restore block", log.KV("address", detect.Event{Addr: b.Addr}.AddrString()), log.KVErr(err))
			continue
		}
		tbl.Update(b.Addr, mono, func(r *tracker.Record) {
			r.SynCount = 1
			r.Blocked = true
			r.BlockExpiry = mono + int64(remaining)
		})
		restored++
	}
	if restored > 0 {
		lg.Info("restored blocks from state", log.KV("count", restored))
	}
	debugout("restored %d blocks\n", restored)
}

// saveBlocks snapshots live blocks at shutdown with wall clock deadlines.
func saveBlocks(bs *state.BlockState, tbl *tracker.Table) {
	now := time.Now()
	mono := clock.Now()
	var blocks []state.Block
	tbl.ForEach(func(r tracker.Record) {
		if !r.Blocked || r.BlockExpiry <= mono {
			return
		}
		blocks = append(blocks, state.Block{
			Addr:     r.Addr,
			Deadline: now.Add(time.Duration(r.BlockExpiry - mono)),
		})
	})
	if err := bs.Write(blocks); err != nil {
		lg.Error("failed to write block state", log.KVErr(err))
		return
	}
	debugout("saved %d blocks\n", len(blocks))
}

func debugout(format string, args ...interface{}) {
	if debugOn {
		fmt.Printf(format, args...)
	}
}
