//go:build linux

package tap

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/songgao/water"

	"firestige.xyz/bypass/internal/codec"
	"firestige.xyz/bypass/internal/core"
	"firestige.xyz/bypass/internal/log"
	"firestige.xyz/bypass/internal/metrics"
	"firestige.xyz/bypass/internal/nic"
)

func init() {
	nic.Register(driverName, open)
}

// Driver is an endpoint on a TAP device.
type Driver struct {
	ifce   *water.Interface
	mac    core.LinkAddr
	rx     chan []byte
	frame  int
	closed atomic.Bool
	wg     sync.WaitGroup
	log    log.Logger
}

func open(opts map[string]any) (nic.Driver, error) {
	o := defaultOptions()
	if err := nic.DecodeOptions(opts, &o); err != nil {
		return nil, err
	}
	return New(o)
}

// New creates or attaches to the TAP device and starts its reader.
func New(o Options) (*Driver, error) {
	mac, err := core.ParseLinkAddr(o.MAC)
	if err != nil {
		return nil, fmt.Errorf("tap: %w", err)
	}
	if o.QueueSize <= 0 {
		o.QueueSize = defaultQueueSize
	}
	if o.MTU <= 0 {
		o.MTU = defaultMTU
	}

	ifce, err := water.New(water.Config{
		DeviceType: water.TAP,
		PlatformSpecificParams: water.PlatformSpecificParams{
			Name:    o.Name,
			Persist: o.Persist,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("tap: failed to open device %q: %w", o.Name, err)
	}

	d := &Driver{
		ifce:  ifce,
		mac:   mac,
		rx:    make(chan []byte, o.QueueSize),
		frame: codec.EthernetHeaderLen + o.MTU,
		log:   log.GetLogger().WithField("driver", driverName).WithField("device", ifce.Name()),
	}
	d.wg.Add(1)
	go d.readLoop()

	d.log.WithField("mac", mac.String()).Info("tap driver opened")
	return d, nil
}

func (d *Driver) readLoop() {
	defer d.wg.Done()
	for {
		buf := make([]byte, d.frame)
		n, err := d.ifce.Read(buf)
		if err != nil {
			if !d.closed.Load() {
				d.log.WithError(err).Error("tap read failed, receive path stopped")
			}
			return
		}
		select {
		case d.rx <- buf[:n]:
		default:
			metrics.FramesDroppedTotal.WithLabelValues(metrics.ReasonQueueFull).Inc()
		}
	}
}

// TransmitBurst writes frames to the device until a write fails.
func (d *Driver) TransmitBurst(frames [][]byte) int {
	if d.closed.Load() {
		return 0
	}
	for i, f := range frames {
		if _, err := d.ifce.Write(f); err != nil {
			d.log.WithError(err).Debug("transmit refused")
			return i
		}
	}
	return len(frames)
}

// ReceiveBurst drains up to max frames already read from the device.
func (d *Driver) ReceiveBurst(max int) [][]byte {
	var frames [][]byte
	for len(frames) < max {
		select {
		case f := <-d.rx:
			frames = append(frames, f)
		default:
			return frames
		}
	}
	return frames
}

func (d *Driver) LinkAddr() core.LinkAddr {
	return d.mac
}

// Close closes the device and waits for the reader to exit.
func (d *Driver) Close() error {
	if d.closed.Swap(true) {
		return core.ErrDriverClosed
	}
	err := d.ifce.Close()
	d.wg.Wait()
	d.log.Info("tap driver closed")
	return err
}
