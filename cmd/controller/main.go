// Command controller runs one shard's SDN control plane process: it joins
// the overlay, adapts its local switches' southbound events, maintains the
// heat-degree routing engine, and installs/answers for the sessions it
// owns (§5, §6).
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli"
	"golang.org/x/sync/errgroup"

	"github.com/qosmcast/heatctl/cmn/config"
	"github.com/qosmcast/heatctl/cmn/cos"
	"github.com/qosmcast/heatctl/cmn/nlog"
	"github.com/qosmcast/heatctl/coordinator"
	"github.com/qosmcast/heatctl/distributor"
	"github.com/qosmcast/heatctl/graph"
	"github.com/qosmcast/heatctl/local"
	"github.com/qosmcast/heatctl/oracle"
	"github.com/qosmcast/heatctl/orchestrator"
	"github.com/qosmcast/heatctl/overlay"
	"github.com/qosmcast/heatctl/session"
	"github.com/qosmcast/heatctl/southbound"
	"github.com/qosmcast/heatctl/stats"
	"github.com/qosmcast/heatctl/topology"
)

func main() {
	app := cli.NewApp()
	app.Name = "controller"
	app.Usage = "QoS-multicast SDN control plane shard daemon"
	app.Flags = []cli.Flag{
		cli.IntFlag{Name: "controller-id", Usage: "this controller's cid (required)"},
		cli.IntFlag{Name: "ofp-tcp-listen-port", Usage: "port the OpenFlow collaborator attaches on", Value: 6653},
		cli.IntFlag{Name: "wsapi-port", Usage: "coordinator HTTP surface port (§6)", Value: 8080},
		cli.BoolFlag{Name: "observe-links", Usage: "enable link discovery"},
		cli.StringFlag{Name: "config", Usage: "path to the cid->shard map YAML (required)"},
		cli.IntFlag{Name: "metrics-port", Usage: "Prometheus /metrics port", Value: 9090},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		nlog.Errorln(err)
		os.Exit(exitCodeFor(err))
	}
}

// exitErr carries §6's exit-code convention through cli.App's generic
// error return.
type exitErr struct {
	code int
	err  error
}

func (e *exitErr) Error() string { return e.err.Error() }

func exitCodeFor(err error) int {
	if ee, ok := err.(*exitErr); ok {
		return ee.code
	}
	return 1
}

func run(c *cli.Context) error {
	if !c.IsSet("controller-id") {
		return &exitErr{1, fmt.Errorf("controller: --controller-id is required")}
	}
	if c.String("config") == "" {
		return &exitErr{1, fmt.Errorf("controller: --config is required")}
	}
	cid := int16(c.Int("controller-id"))

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return &exitErr{1, err}
	}
	if _, ok := cfg.Shards[cid]; !ok {
		return &exitErr{1, fmt.Errorf("controller: cid %d owns no shard in %q", cid, c.String("config"))}
	}

	writerID := [16]byte(cos.NewWriterID())

	statsRunner := stats.NewRunner(cid)

	store := topology.New()
	store.Stats = statsRunner
	sessions := session.NewRegistry()
	g := graph.New()
	for _, dpids := range cfg.Shards {
		for _, d := range dpids {
			g.AddNode(d)
		}
	}
	orc := oracle.Build(g)
	shard := distributor.NewShardMap(cfg.Shards)

	bus := overlay.NewInProcBus()
	remote := local.NewRemote(store, nil) // Notify wired to orc below
	remote.Stats = statsRunner
	remote.SelfCid = cid
	remote.WriterID = writerID

	peer := overlay.NewPeer(writerID, bus, nil, remote.Handlers())
	peer.PeerTimeout = cfg.Timing.PeerTimeout
	peer.HeartbeatEvery = cfg.Timing.HeartbeatInterval
	peer.Stats = statsRunner

	orc2 := orchestrator.New(store, g, orc, sessions, shard, cid)
	orc2.Stats = statsRunner
	orc2.Peer = peer
	remote.Notify = orc2

	adapter := local.New(cid, writerID, store, peer, orc2)
	var _ southbound.EventSink = adapter // C7 attaches the collaborator here
	peer.View = adapter

	commander := collaboratorStub{}
	installer := distributor.NewInstaller(cid, shard, store, commander)
	installer.Stats = statsRunner
	orc2.Installer = installer

	pending := coordinator.NewPendingTracker(shard, orc2, sessions)
	srv := coordinator.NewServer(store, sessions, pending, orc2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error { return peer.Run(egCtx) })
	eg.Go(func() error { return orc2.Run(egCtx) })
	eg.Go(func() error { return serveCoordinator(egCtx, srv, c.Int("wsapi-port")) })
	eg.Go(func() error { return serveMetrics(egCtx, statsRunner, c.Int("metrics-port")) })

	if c.Bool("observe-links") {
		nlog.Infof("controller %d: link discovery enabled", cid)
	}
	nlog.Infof("controller %d: southbound collaborator expected on tcp/%d", cid, c.Int("ofp-tcp-listen-port"))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	// Either a clean SIGINT/SIGTERM, or a running loop erroring out, or
	// §7's fatal duplicate-cid detection, triggers shutdown.
	var runErr error
	select {
	case <-sigCh:
		nlog.Infof("controller %d: SIGINT received, shutting down", cid)
	case runErr = <-remote.Fatal:
	case <-egCtx.Done():
	}
	cancel()

	done := make(chan error, 1)
	go func() { done <- eg.Wait() }()
	select {
	case err := <-done:
		if runErr != nil {
			return &exitErr{1, runErr}
		}
		if err != nil {
			return &exitErr{2, err}
		}
	case <-time.After(cfg.Timing.ShutdownGrace):
		return &exitErr{2, fmt.Errorf("controller %d: shutdown grace period exceeded", cid)}
	}
	return nil
}

// collaboratorStub stands in for the southbound OpenFlow collaborator
// (§1 "Out of scope"): it logs the commands the distributor would have
// sent, so the control loop is exercisable end to end without a live
// switch fleet attached.
type collaboratorStub struct{}

func (collaboratorStub) FlowMod(f southbound.FlowMod) error {
	nlog.Infof("southbound: flow-mod dpid=%016X delete=%v", f.Dpid, f.Delete)
	return nil
}

func (collaboratorStub) GroupMod(g southbound.GroupMod) error {
	nlog.Infof("southbound: group-mod dpid=%016X group=%d cmd=%v buckets=%d", g.Dpid, g.GroupID, g.Command, len(g.Buckets))
	return nil
}

func (collaboratorStub) PacketOut(p southbound.PacketOut) error {
	nlog.Infof("southbound: packet-out dpid=%016X", p.Dpid)
	return nil
}

func serveCoordinator(ctx context.Context, srv *coordinator.Server, port int) error {
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(fmt.Sprintf(":%d", port)) }()
	select {
	case <-ctx.Done():
		return srv.Shutdown()
	case err := <-errCh:
		return err
	}
}

func serveMetrics(ctx context.Context, r *stats.Runner, port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.Registry(), promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
