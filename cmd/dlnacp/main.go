// Command dlnacp drives UPnP discovery as a control point: it searches
// for devices, fetches and parses their descriptions into the registry,
// and exposes the registry over a read-only admin JSON API. It
// subscribes to every discovered service's events and records
// NOTIFY-driven property changes into a small in-memory state cache.
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
	"github.com/brightgrove/dlnacore/internal/config"
	"github.com/brightgrove/dlnacore/internal/controlpoint"
	"github.com/brightgrove/dlnacore/internal/events"
	"github.com/brightgrove/dlnacore/internal/soap"
	"github.com/brightgrove/dlnacore/internal/ssdp"
	"github.com/brightgrove/dlnacore/internal/statecache"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	callbackAddr := cfg.Host + ":" + envOr("CALLBACK_PORT", "8202")
	if cfg.Host == "0.0.0.0" || cfg.Host == "" {
		callbackAddr = "127.0.0.1:" + envOr("CALLBACK_PORT", "8202")
	}
	callbackURL := "http://" + callbackAddr + "/notify"

	transport := events.NewHTTPGENATransport(time.Duration(cfg.HTTPRequestTimeoutMs) * time.Millisecond)
	soapClient := soap.NewClient(time.Duration(cfg.HTTPRequestTimeoutMs) * time.Millisecond)

	cp := controlpoint.New(controlpoint.Config{
		CallbackURL:             callbackURL,
		HTTPRequestTimeoutMs:    cfg.HTTPRequestTimeoutMs,
		SubscriptionTimeoutSec:  cfg.SubscriptionTimeoutSec,
		MSearchRepeatMs:         cfg.MSearchRepeatMs,
		RunSubscriptionsEveryMs: cfg.RunSubscriptionsEveryMs,
	}, transport, soapClient)

	cache := statecache.New()

	notifyMux := http.NewServeMux()
	notifyMux.HandleFunc("/notify", func(w http.ResponseWriter, r *http.Request) {
		cp.HandleNotify(w, r, func(sid, varName, value string) {
			cache.Update(sid, varName, value)
			log.Printf("CP: notify sid=%s %s=%s", sid, varName, value)
		})
	})
	notifySrv := &http.Server{Addr: callbackAddr, Handler: notifyMux}
	go func() {
		if err := notifySrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("notify server stopped: %v", err)
		}
	}()
	log.Printf("dlnacp: event callback on %s", callbackAddr)

	adminMux := http.NewServeMux()
	admin.RegisterControlPointDiagnostics(adminMux, cp)
	admin.RegisterStateCacheDiagnostics(adminMux, cache)
	adminAddr := cfg.Host + ":" + envOr("ADMIN_PORT", "8203")
	adminSrv := &http.Server{Addr: adminAddr, Handler: adminMux}
	go func() {
		if err := adminSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("admin server stopped: %v", err)
		}
	}()
	log.Printf("dlnacp: admin diagnostics on %s", adminAddr)

	if err := cp.Begin(ssdp.STAll, 200*time.Millisecond, 3*time.Second); err != nil {
		log.Fatalf("discovery error: %v", err)
	}
	log.Printf("dlnacp: %d device(s) registered after initial search", cp.Registry().Count())

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
			log.Printf("dlnacp: shutting down")
			cp.End()
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			notifySrv.Shutdown(ctx)
			adminSrv.Shutdown(ctx)
			cancel()
			return
		case now := <-ticker.C:
			cp.Tick(now)
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
