// Package registry holds the control point's view of discovered devices:
// UDN-keyed dedupe, active/last-seen tracking, byebye deactivation, and
// explicit or staleness-based eviction.
package registry

import (
	"log"
	"time"

	"github.com/brightgrove/dlnacore/internal/upnp"
)

// Registry aggregates devices discovered via SSDP. The UDN is the device
// key; no two entries share a UDN.
type Registry struct {
	devices map[string]*upnp.Device
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{devices: make(map[string]*upnp.Device)}
}

// Lookup returns the device with the given UDN, if known.
func (r *Registry) Lookup(udn string) (*upnp.Device, bool) {
	d, ok := r.devices[udn]
	return d, ok
}

// Touch marks udn active and bumps its last-seen time if already known.
// Reports whether the UDN was already present, so the caller can skip a
// redundant description fetch.
func (r *Registry) Touch(udn string, now time.Time) bool {
	d, ok := r.devices[udn]
	if !ok {
		return false
	}
	d.Active = true
	for _, svc := range d.Services {
		svc.Active = true
	}
	d.LastSeenAt = now
	return true
}

// Insert adds a newly-fetched-and-parsed device to the registry. If its
// UDN is already present the existing entry is replaced (a re-fetch after
// a byebye/alive cycle).
func (r *Registry) Insert(d *upnp.Device, now time.Time) {
	d.Active = true
	if d.DiscoveredAt.IsZero() {
		d.DiscoveredAt = now
	}
	d.LastSeenAt = now
	r.devices[d.UDN] = d
	log.Printf("REGISTRY: added device %s (%s)", d.UDN, d.FriendlyName)
}

// MarkInactive marks the device referenced by udn, and each of its
// services, inactive (byebye received); the entry is not removed, so a
// late-arriving alive can revive it without a re-fetch.
func (r *Registry) MarkInactive(udn string) {
	d, ok := r.devices[udn]
	if !ok {
		return
	}
	d.Active = false
	for _, svc := range d.Services {
		svc.Active = false
	}
	log.Printf("REGISTRY: marked device %s inactive", udn)
}

// Evict removes udn entirely.
func (r *Registry) Evict(udn string) {
	if _, ok := r.devices[udn]; !ok {
		return
	}
	delete(r.devices, udn)
	log.Printf("REGISTRY: evicted device %s", udn)
}

// EvictStale removes every device whose LastSeenAt is older than
// olderThan relative to now, regardless of active flag. Returns the
// evicted UDNs.
func (r *Registry) EvictStale(now time.Time, olderThan time.Duration) []string {
	var evicted []string
	for udn, d := range r.devices {
		if now.Sub(d.LastSeenAt) > olderThan {
			delete(r.devices, udn)
			evicted = append(evicted, udn)
		}
	}
	return evicted
}

// All returns every device currently in the registry, active or not.
func (r *Registry) All() []*upnp.Device {
	out := make([]*upnp.Device, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, d)
	}
	return out
}

// Count reports the number of devices currently in the registry.
func (r *Registry) Count() int {
	return len(r.devices)
}
