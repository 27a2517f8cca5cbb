// Package tap implements a driver over a Linux TAP device.
//
// Registered as "tap" on Linux:
//
//	nic:
//	  driver: tap
//	  options:
//	    name: bypass0
//	    mac: 02:00:00:00:00:01   # this endpoint, not the kernel side
//	    queue_size: 1024
//
// The kernel side of the device must be configured (address, link up)
// separately. A reader goroutine moves frames from the device into a bounded
// buffer so ReceiveBurst never blocks; frames arriving while it is full are
// dropped.
package tap

const (
	driverName       = "tap"
	defaultQueueSize = 1024
	defaultMTU       = 1500
)

// Options is the `nic.options` map of the tap driver.
type Options struct {
	Name      string `mapstructure:"name"`       // optional, kernel picks tapN
	MAC       string `mapstructure:"mac"`        // optional, default 02:00:00:00:00:01
	QueueSize int    `mapstructure:"queue_size"` // optional, default 1024
	MTU       int    `mapstructure:"mtu"`        // optional, default 1500
	Persist   bool   `mapstructure:"persist"`    // optional
}

func defaultOptions() Options {
	return Options{
		MAC:       "02:00:00:00:00:01",
		QueueSize: defaultQueueSize,
		MTU:       defaultMTU,
	}
}
