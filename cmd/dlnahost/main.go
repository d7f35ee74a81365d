// Command dlnahost hosts a single UPnP MediaRenderer-style device: it
// advertises itself over SSDP, serves its description/SCPD documents,
// dispatches AVTransport/RenderingControl/ConnectionManager actions, and
// answers event subscriptions. The three service implementations
// themselves (internal/avtransport, internal/rendering,
// internal/connectionmanager) are demo applications, not part of the
// protocol core.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brightgrove/dlnacore/internal/admin"
	"github.com/brightgrove/dlnacore/internal/avtransport"
	"github.com/brightgrove/dlnacore/internal/config"
	"github.com/brightgrove/dlnacore/internal/connectionmanager"
	"github.com/brightgrove/dlnacore/internal/host"
	"github.com/brightgrove/dlnacore/internal/rendering"
	"github.com/brightgrove/dlnacore/internal/soap"
	"github.com/brightgrove/dlnacore/internal/upnp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	profile, err := config.LoadDeviceProfile(cfg.DeviceProfilePath)
	if err != nil {
		log.Fatalf("device profile error: %v", err)
	}

	device := deviceFromProfile(profile, "http://"+hostAdvertiseAddr(cfg)+":"+cfg.Port)

	h, err := host.New(device, host.Config{
		Host:                    cfg.Host,
		HTTPPort:                cfg.Port,
		SSDPPort:                cfg.SSDPPort,
		RunSchedulerEveryMs:     cfg.RunSchedulerEveryMs,
		RunSubscriptionsEveryMs: cfg.RunSubscriptionsEveryMs,
		HTTPRequestTimeoutMs:    cfg.HTTPRequestTimeoutMs,
		SubscriptionTimeoutSec:  cfg.SubscriptionTimeoutSec,
		MaxSendErrors:           cfg.MaxSendErrors,
		Verbose:                 cfg.Verbose,
	})
	if err != nil {
		log.Fatalf("host init error: %v", err)
	}

	wireRenderingControl(h)
	wireAVTransport(h)
	wireConnectionManager(h)

	if err := h.Start(); err != nil {
		log.Fatalf("host start error: %v", err)
	}
	log.Printf("dlnahost: %s (%s) listening on %s", device.FriendlyName, device.UDN, device.BaseURL)

	adminMux := http.NewServeMux()
	admin.RegisterDeviceDiagnostics(adminMux, h)
	adminAddr := cfg.Host + ":" + envOr("ADMIN_PORT", "8201")
	adminSrv := &http.Server{Addr: adminAddr, Handler: adminMux}
	go func() {
		if err := adminSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("admin server stopped: %v", err)
		}
	}()
	log.Printf("dlnahost: admin diagnostics on %s", adminAddr)

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, os.Interrupt, syscall.SIGTERM)

	loopDelay := time.Duration(cfg.LoopDelayMs) * time.Millisecond
	if loopDelay <= 0 {
		loopDelay = 5 * time.Millisecond
	}

	ticker := time.NewTicker(loopDelay)
	defer ticker.Stop()

	for {
		select {
		case <-shutdownCh:
			log.Printf("dlnahost: shutting down")
			h.End()
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			adminSrv.Shutdown(ctx)
			cancel()
			return
		case now := <-ticker.C:
			h.Tick(now)
		}
	}
}

func deviceFromProfile(p config.DeviceProfile, baseURL string) *upnp.Device {
	device := &upnp.Device{
		UDN:              p.UDN,
		DeviceType:       p.DeviceType,
		FriendlyName:     p.FriendlyName,
		Manufacturer:     p.Manufacturer,
		ManufacturerURL:  p.ManufacturerURL,
		ModelDescription: p.ModelDescription,
		ModelName:        p.ModelName,
		ModelNumber:      p.ModelNumber,
		SerialNumber:     p.SerialNumber,
		UPC:              p.UPC,
		BaseURL:          baseURL,
	}
	if device.DeviceType == "" {
		device.DeviceType = "urn:schemas-upnp-org:device:MediaRenderer:1"
	}
	return device
}

// wireRenderingControl registers a demo RenderingControl:1 service on
// the host. A production device type would register its own set of
// services instead.
func wireRenderingControl(h *host.Host) {
	svc := &upnp.Service{
		Name:        "RenderingControl",
		ServiceType: rendering.ServiceType,
		ServiceID:   rendering.ServiceID,
		SCPDURL:     "/rcs/scpd.xml",
		ControlURL:  "/rcs/control",
		EventSubURL: "/rcs/event",
	}
	svc.SCPDHandler = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/xml; charset=\"utf-8\"")
		upnp.WriteSCPD(w, rendering.SCPD())
	}

	rcs := rendering.New(h, svc.Name, 50)
	svc.ControlHandler = func(w http.ResponseWriter, r *http.Request) {
		soap.Dispatch(w, r, rendering.ServiceType, rcs.Handler())
	}

	h.RegisterService(svc)
}

// wireAVTransport registers a demo AVTransport:1 service on the host.
func wireAVTransport(h *host.Host) {
	svc := &upnp.Service{
		Name:        "AVTransport",
		ServiceType: avtransport.ServiceType,
		ServiceID:   avtransport.ServiceID,
		SCPDURL:     "/avt/scpd.xml",
		ControlURL:  "/avt/control",
		EventSubURL: "/avt/event",
	}
	svc.SCPDHandler = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/xml; charset=\"utf-8\"")
		upnp.WriteSCPD(w, avtransport.SCPD())
	}

	avt := avtransport.New(h, svc.Name)
	svc.ControlHandler = func(w http.ResponseWriter, r *http.Request) {
		soap.Dispatch(w, r, avtransport.ServiceType, avt.Handler())
	}

	h.RegisterService(svc)
}

// wireConnectionManager registers a demo ConnectionManager:1 service on
// the host. Its evented variables never change here, so subscribers of
// /cm/event simply see no notifications.
func wireConnectionManager(h *host.Host) {
	svc := &upnp.Service{
		Name:        "ConnectionManager",
		ServiceType: connectionmanager.ServiceType,
		ServiceID:   connectionmanager.ServiceID,
		SCPDURL:     "/cm/scpd.xml",
		ControlURL:  "/cm/control",
		EventSubURL: "/cm/event",
	}
	svc.SCPDHandler = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/xml; charset=\"utf-8\"")
		upnp.WriteSCPD(w, connectionmanager.SCPD())
	}

	cm := connectionmanager.New("http-get:*:audio/mpeg:*,http-get:*:audio/mp4:*")
	svc.ControlHandler = func(w http.ResponseWriter, r *http.Request) {
		soap.Dispatch(w, r, connectionmanager.ServiceType, cm.Handler())
	}

	h.RegisterService(svc)
}

func hostAdvertiseAddr(cfg config.Config) string {
	if cfg.Host == "0.0.0.0" || cfg.Host == "" {
		return "127.0.0.1"
	}
	return cfg.Host
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
