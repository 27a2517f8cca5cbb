// Package boot assembles an endpoint from configuration.
package boot

import (
	"context"
	"errors"
	"fmt"

	"firestige.xyz/bypass/internal/arp"
	"firestige.xyz/bypass/internal/codec"
	"firestige.xyz/bypass/internal/config"
	"firestige.xyz/bypass/internal/log"
	"firestige.xyz/bypass/internal/metrics"
	"firestige.xyz/bypass/internal/nic"
	"firestige.xyz/bypass/internal/nic/sniffer"
	"firestige.xyz/bypass/internal/queue"

	// drivers register themselves with nic
	_ "firestige.xyz/bypass/internal/nic/afpacket"
	_ "firestige.xyz/bypass/internal/nic/channel"
	_ "firestige.xyz/bypass/internal/nic/tap"
)

// Endpoint owns a driver and the queue built on it.
type Endpoint struct {
	Config *config.Config
	Driver nic.Driver
	ARP    *arp.Table
	Codec  *codec.Codec
	Queue  *queue.Queue

	metrics *metrics.Server
	log     log.Logger
}

// Start initializes logging, opens the configured driver and builds the queue,
// binding and connecting it when queue.local and queue.peer are set.
func Start(ctx context.Context, cfg *config.Config) (*Endpoint, error) {
	if err := log.Init(&cfg.Log); err != nil {
		return nil, fmt.Errorf("init log: %w", err)
	}
	e := &Endpoint{
		Config: cfg,
		log:    log.GetLogger().WithField("component", "boot"),
	}
	if err := e.build(ctx); err != nil {
		if cerr := e.Close(ctx); cerr != nil {
			e.log.WithError(cerr).Warn("cleanup after failed start")
		}
		return nil, err
	}
	return e, nil
}

func (e *Endpoint) build(ctx context.Context) error {
	cfg := e.Config

	drv, err := nic.Open(cfg.NIC.Driver, cfg.NIC.Options)
	if err != nil {
		return err
	}
	e.Driver = drv
	if cfg.Sniffer.Enabled {
		s, err := sniffer.Wrap(drv, sniffer.Options{
			LogFrames: cfg.Sniffer.LogFrames,
			PcapFile:  cfg.Sniffer.PcapFile,
		})
		if err != nil {
			return err
		}
		e.Driver = s
	}

	entries, err := cfg.ARPEntries()
	if err != nil {
		return err
	}
	arpOpts, err := cfg.ARPOptions()
	if err != nil {
		return err
	}
	if e.ARP, err = arp.NewTable(entries, arpOpts); err != nil {
		return err
	}

	codecOpts, err := cfg.CodecOptions()
	if err != nil {
		return err
	}
	if e.Codec, err = codec.New(codecOpts); err != nil {
		return err
	}

	queueOpts, err := cfg.QueueOptions()
	if err != nil {
		return err
	}
	e.Queue = queue.New(e.Driver, e.Codec, e.ARP, queueOpts)

	if local, ok, err := cfg.LocalAddr(); err != nil {
		return err
	} else if ok {
		if err := e.Queue.Bind(local); err != nil {
			return err
		}
	}
	if peer, ok, err := cfg.PeerAddr(); err != nil {
		return err
	} else if ok {
		if err := e.Queue.Connect(peer); err != nil {
			return err
		}
	}

	if cfg.Metrics.Enabled {
		e.metrics = metrics.NewServer(cfg.Metrics.Listen, cfg.Metrics.Path)
		if err := e.metrics.Start(ctx); err != nil {
			e.metrics = nil
			return err
		}
	}

	e.log.WithField("driver", cfg.NIC.Driver).
		WithField("mac", e.Driver.LinkAddr().String()).
		WithField("local", e.Queue.LocalAddr().String()).
		Info("endpoint started")
	return nil
}

// Close stops the metrics server, closes the queue and releases the driver.
func (e *Endpoint) Close(ctx context.Context) error {
	var errs []error
	if e.metrics != nil {
		errs = append(errs, e.metrics.Stop(ctx))
		e.metrics = nil
	}
	if e.Queue != nil {
		errs = append(errs, e.Queue.Close())
	}
	if e.Driver != nil {
		errs = append(errs, e.Driver.Close())
		e.Driver = nil
	}
	return errors.Join(errs...)
}
