// Package admin exposes read-only JSON diagnostics for a running Device
// Host or Control Point: subscription counts, scheduler size, and
// registry contents. It is an operational sidecar, not part of the UPnP
// wire protocol, built on the same Stripe-flavored response/error
// envelope (internal/api, internal/apperrors) the hub's management API
// uses.
package admin

import (
	"net/http"

	"github.com/brightgrove/dlnacore/internal/api"
	"github.com/brightgrove/dlnacore/internal/apperrors"
	"github.com/brightgrove/dlnacore/internal/registry"
	"github.com/brightgrove/dlnacore/internal/statecache"
	"github.com/brightgrove/dlnacore/internal/upnp"
)

// DeviceDiagnostics is the subset of *host.Host the diagnostics handlers
// need, kept as an interface so this package never imports host (host
// already imports this package's siblings transitively through nothing,
// but the narrow interface also makes the handlers independently
// testable with a fake).
type DeviceDiagnostics interface {
	Device() *upnp.Device
	SubscriptionsCount() int
	PendingCount() int
	SchedulerSize() int
}

// RegisterDeviceDiagnostics mounts read-only GET routes describing a
// hosted device's identity, services, and subscription/scheduler state.
func RegisterDeviceDiagnostics(mux *http.ServeMux, h DeviceDiagnostics) {
	mux.Handle("/admin/device", api.RecovererMiddleware(api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		device := h.Device()
		if device == nil {
			return apperrors.NewNotFoundResource("device", "")
		}
		services := make([]map[string]any, 0, len(device.Services))
		for _, svc := range device.Services {
			services = append(services, map[string]any{
				"object":       "service",
				"name":         svc.Name,
				"service_type": svc.ServiceType,
				"service_id":   svc.ServiceID,
			})
		}
		return api.WriteResource(w, http.StatusOK, map[string]any{
			"object":        "device",
			"udn":           device.UDN,
			"friendly_name": device.FriendlyName,
			"device_type":   device.DeviceType,
			"active":        device.Active,
			"services":      services,
		})
	})))

	mux.Handle("/admin/subscriptions", api.RecovererMiddleware(api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		return api.WriteResource(w, http.StatusOK, map[string]any{
			"object":         "subscription_summary",
			"active_count":   h.SubscriptionsCount(),
			"pending_count":  h.PendingCount(),
			"scheduler_size": h.SchedulerSize(),
		})
	})))
}

// ControlPointDiagnostics is the subset of *controlpoint.ControlPoint
// the diagnostics handlers need.
type ControlPointDiagnostics interface {
	Registry() *registry.Registry
}

// RegisterControlPointDiagnostics mounts a read-only GET /admin/devices
// route listing every device currently in the control point's registry.
func RegisterControlPointDiagnostics(mux *http.ServeMux, cp ControlPointDiagnostics) {
	mux.Handle("/admin/devices", api.RecovererMiddleware(api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		devices := cp.Registry().All()
		data := make([]map[string]any, 0, len(devices))
		for _, d := range devices {
			data = append(data, map[string]any{
				"object":        "device",
				"udn":           d.UDN,
				"friendly_name": d.FriendlyName,
				"device_type":   d.DeviceType,
				"active":        d.Active,
				"service_count": len(d.Services),
			})
		}
		return api.WriteList(w, "/admin/devices", data, false)
	})))

	mux.Handle("/admin/devices/", api.RecovererMiddleware(api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		udn := r.URL.Path[len("/admin/devices/"):]
		if udn == "" {
			return apperrors.NewValidationError("device UDN is required", nil)
		}
		device, ok := cp.Registry().Lookup(udn)
		if !ok {
			return apperrors.NewNotFoundResource("device", udn)
		}
		return api.WriteResource(w, http.StatusOK, map[string]any{
			"object":        "device",
			"udn":           device.UDN,
			"friendly_name": device.FriendlyName,
			"device_type":   device.DeviceType,
			"active":        device.Active,
			"service_count": len(device.Services),
		})
	})))
}

// RegisterStateCacheDiagnostics mounts a read-only GET
// /admin/statecache route listing every subscription's cached
// NOTIFY-derived state-variable values.
func RegisterStateCacheDiagnostics(mux *http.ServeMux, cache *statecache.StateCache) {
	mux.Handle("/admin/statecache", api.RecovererMiddleware(api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		entries := cache.List()
		hits, misses, size := cache.Stats()
		data := make([]map[string]any, 0, len(entries))
		for _, e := range entries {
			data = append(data, map[string]any{
				"object": "state_cache_entry",
				"sid":    e.SID,
				"vars":   e.Vars,
			})
		}
		return api.WriteResource(w, http.StatusOK, map[string]any{
			"object":  "state_cache_summary",
			"hits":    hits,
			"misses":  misses,
			"size":    size,
			"entries": data,
		})
	})))
}
