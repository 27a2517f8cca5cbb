// Package arp implements the static IPv4 to link address resolution table.
//
// It is not ARP: nothing is discovered on the wire. The table is configured at
// startup and a miss resolves to a fallback group address instead of failing.
// Optionally, pairs observed on inbound frames are remembered for a while.
package arp

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/patrickmn/go-cache"

	"firestige.xyz/bypass/internal/core"
)

// Entry pairs a link address with an IPv4 address.
type Entry struct {
	IP  netip.Addr
	MAC core.LinkAddr
}

// Options configures a Table.
type Options struct {
	// Fallback is returned by Resolve on a miss. Zero means core.Broadcast.
	Fallback core.LinkAddr
	// LearnTTL enables passive learning when positive.
	LearnTTL time.Duration
}

// Table resolves IPv4 addresses to link addresses.
type Table struct {
	entries  []Entry
	fallback core.LinkAddr
	learned  *cache.Cache
	ttl      time.Duration
}

// NewTable creates a table over a copy of entries.
func NewTable(entries []Entry, opts Options) (*Table, error) {
	for i, e := range entries {
		if !e.IP.Is4() {
			return nil, fmt.Errorf("arp entry %d: %v: %w", i, e.IP, core.ErrAddressFamily)
		}
	}
	t := &Table{
		entries:  append([]Entry(nil), entries...),
		fallback: opts.Fallback,
		ttl:      opts.LearnTTL,
	}
	if t.fallback.IsZero() {
		t.fallback = core.Broadcast
	}
	if t.ttl > 0 {
		t.learned = cache.New(t.ttl, 2*t.ttl)
	}
	return t, nil
}

// Resolve returns the link address configured for ip, then any learned one,
// and the fallback address otherwise.
func (t *Table) Resolve(ip netip.Addr) core.LinkAddr {
	for _, e := range t.entries {
		if e.IP == ip {
			return e.MAC
		}
	}
	if t.learned != nil {
		if v, ok := t.learned.Get(ip.String()); ok {
			return v.(core.LinkAddr)
		}
	}
	return t.fallback
}

// ResolveIP is the reverse lookup over the static entries. It returns the
// zero address and false on a miss.
func (t *Table) ResolveIP(mac core.LinkAddr) (netip.Addr, bool) {
	for _, e := range t.entries {
		if e.MAC == mac {
			return e.IP, true
		}
	}
	return netip.Addr{}, false
}

// Learn remembers mac for ip when learning is enabled. Static entries always win
// and group addresses are never learned.
func (t *Table) Learn(ip netip.Addr, mac core.LinkAddr) {
	if t.learned == nil || !ip.Is4() || mac.IsZero() || mac[0]&0x01 != 0 {
		return
	}
	t.learned.Set(ip.String(), mac, cache.DefaultExpiration)
}

// Learning reports whether passive learning is enabled.
func (t *Table) Learning() bool {
	return t.learned != nil
}

// Fallback returns the address used on a miss.
func (t *Table) Fallback() core.LinkAddr {
	return t.fallback
}

// Entries returns a copy of the static entries.
func (t *Table) Entries() []Entry {
	return append([]Entry(nil), t.entries...)
}
