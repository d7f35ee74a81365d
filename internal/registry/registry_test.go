package registry_test

import (
	"testing"
	"time"

	"github.com/brightgrove/dlnacore/internal/registry"
	"github.com/brightgrove/dlnacore/internal/upnp"
	"github.com/stretchr/testify/require"
)

func TestInsertThenLookup(t *testing.T) {
	r := registry.New()
	now := time.Now()
	r.Insert(&upnp.Device{UDN: "uuid:01", FriendlyName: "Living Room"}, now)

	d, ok := r.Lookup("uuid:01")
	require.True(t, ok)
	require.Equal(t, "Living Room", d.FriendlyName)
	require.True(t, d.Active)
	require.Equal(t, now, d.DiscoveredAt)
	require.Equal(t, 1, r.Count())
}

func TestTouchReturnsFalseForUnknownUDN(t *testing.T) {
	r := registry.New()
	require.False(t, r.Touch("uuid:missing", time.Now()))
}

func TestTouchUpdatesLastSeenAndActiveFlag(t *testing.T) {
	r := registry.New()
	start := time.Now()
	r.Insert(&upnp.Device{UDN: "uuid:01"}, start)
	r.MarkInactive("uuid:01")

	later := start.Add(time.Minute)
	require.True(t, r.Touch("uuid:01", later))

	d, _ := r.Lookup("uuid:01")
	require.True(t, d.Active)
	require.Equal(t, later, d.LastSeenAt)
}

func TestInsertReplacesExistingEntryWithSameUDN(t *testing.T) {
	r := registry.New()
	now := time.Now()
	r.Insert(&upnp.Device{UDN: "uuid:01", FriendlyName: "Old Name"}, now)
	r.Insert(&upnp.Device{UDN: "uuid:01", FriendlyName: "New Name"}, now)

	require.Equal(t, 1, r.Count(), "re-insertion must not duplicate the UDN key")
	d, _ := r.Lookup("uuid:01")
	require.Equal(t, "New Name", d.FriendlyName)
}

func TestMarkInactiveCascadesToServices(t *testing.T) {
	r := registry.New()
	d := &upnp.Device{
		UDN:      "uuid:01",
		Services: []*upnp.Service{{Name: "AVTransport", Active: true}},
	}
	r.Insert(d, time.Now())
	r.MarkInactive("uuid:01")

	require.False(t, d.Services[0].Active)

	r.Touch("uuid:01", time.Now())
	require.True(t, d.Services[0].Active, "a later alive revives the services")
}

func TestMarkInactiveDoesNotEvict(t *testing.T) {
	r := registry.New()
	r.Insert(&upnp.Device{UDN: "uuid:01"}, time.Now())
	r.MarkInactive("uuid:01")

	d, ok := r.Lookup("uuid:01")
	require.True(t, ok, "byebye marks inactive but keeps the entry for a later alive")
	require.False(t, d.Active)
}

func TestEvictRemovesEntry(t *testing.T) {
	r := registry.New()
	r.Insert(&upnp.Device{UDN: "uuid:01"}, time.Now())
	r.Evict("uuid:01")

	_, ok := r.Lookup("uuid:01")
	require.False(t, ok)
	require.Equal(t, 0, r.Count())
}

func TestEvictStaleRemovesOnlyDevicesPastTheThreshold(t *testing.T) {
	r := registry.New()
	start := time.Now()
	r.Insert(&upnp.Device{UDN: "uuid:fresh"}, start)
	r.Insert(&upnp.Device{UDN: "uuid:stale"}, start)

	r.Touch("uuid:fresh", start.Add(90*time.Second))

	evicted := r.EvictStale(start.Add(100*time.Second), time.Minute)
	require.ElementsMatch(t, []string{"uuid:stale"}, evicted)
	require.Equal(t, 1, r.Count())

	_, ok := r.Lookup("uuid:fresh")
	require.True(t, ok)
}

func TestAllReturnsEveryDeviceRegardlessOfActiveFlag(t *testing.T) {
	r := registry.New()
	r.Insert(&upnp.Device{UDN: "uuid:01"}, time.Now())
	r.Insert(&upnp.Device{UDN: "uuid:02"}, time.Now())
	r.MarkInactive("uuid:02")

	all := r.All()
	require.Len(t, all, 2)
}
