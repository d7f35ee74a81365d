// Package controlpoint composes the Control Point: SSDP
// discovery, the device Registry, description fetch/parse, the
// Control-Point Subscription Manager, and SOAP action invocation.
package controlpoint

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/brightgrove/dlnacore/internal/events"
	"github.com/brightgrove/dlnacore/internal/registry"
	"github.com/brightgrove/dlnacore/internal/scheduler"
	"github.com/brightgrove/dlnacore/internal/soap"
	"github.com/brightgrove/dlnacore/internal/ssdp"
	"github.com/brightgrove/dlnacore/internal/udpconn"
	"github.com/brightgrove/dlnacore/internal/upnp"
)

// Config carries the tick intervals, timeouts, and local callback
// address a ControlPoint needs.
type Config struct {
	CallbackURL             string
	HTTPRequestTimeoutMs    int
	SubscriptionTimeoutSec  int
	MSearchRepeatMs         int
	RunSubscriptionsEveryMs int
}

// ControlPoint drives discovery and owns the Registry and Control-Point
// Subscription Manager. Every exported method must be called from the
// single loop thread, except HTTP handlers which net/http invokes
// on its own goroutines per the standard library contract.
type ControlPoint struct {
	cfg Config

	udp    *udpconn.MulticastConn
	sched  *scheduler.Scheduler
	reg    *registry.Registry
	subs   *events.CPSubscriptionManager
	soapCL *soap.Client
	client *http.Client

	lastSubscriptionRun time.Time
}

// New builds a ControlPoint using transport for GENA calls (typically
// events.NewHTTPGENATransport) and soapClient for action invocation.
func New(cfg Config, transport events.GENATransport, soapClient *soap.Client) *ControlPoint {
	return &ControlPoint{
		cfg:    cfg,
		sched:  scheduler.New(),
		reg:    registry.New(),
		subs:   events.NewCPSubscriptionManager(transport, cfg.CallbackURL, cfg.SubscriptionTimeoutSec),
		soapCL: soapClient,
		client: &http.Client{Timeout: time.Duration(cfg.HTTPRequestTimeoutMs) * time.Millisecond},
	}
}

// Begin opens multicast UDP and enqueues the repeating M-SEARCH task for
// searchTarget, then spins the loop until at least minWait has elapsed
// and at least one device is registered (or until maxWait regardless).
func (cp *ControlPoint) Begin(searchTarget string, minWait, maxWait time.Duration) error {
	udp, err := udpconn.ListenMulticast(ssdp.MulticastAddr)
	if err != nil {
		return err
	}
	udp.ReadTimeout = 5 * time.Millisecond
	cp.udp = udp

	start := time.Now()
	repeat := time.Duration(cp.cfg.MSearchRepeatMs) * time.Millisecond
	if repeat <= 0 {
		repeat = 10 * time.Second
	}
	cp.sched.Add(ssdp.NewMSearchTask(searchTarget, 3, repeat, start.Add(maxWait)))

	for {
		now := time.Now()
		cp.Tick(now)

		elapsed := now.Sub(start)
		if elapsed >= minWait && cp.reg.Count() > 0 {
			return nil
		}
		if elapsed >= maxWait {
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// Tick runs one pass of the Control Point's per-loop work: drain one
// pending UDP datagram, reconcile it into the registry, execute the
// scheduler, and periodically reconcile/publish subscriptions.
func (cp *ControlPoint) Tick(now time.Time) {
	buf := make([]byte, 8192)
	n, _, err := cp.udp.ReadDatagram(buf)
	if err != nil {
		log.Printf("CP: udp read error: %v", err)
	} else if n > 0 {
		cp.handleInboundDatagram(buf[:n])
	}
	cp.sched.Execute(cp.udp, nil, now)

	if now.Sub(cp.lastSubscriptionRun) >= time.Duration(cp.cfg.RunSubscriptionsEveryMs)*time.Millisecond {
		cp.lastSubscriptionRun = now
		cp.reconcileSubscriptions(now)
	}
}

func (cp *ControlPoint) reconcileSubscriptions(now time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cp.cfg.HTTPRequestTimeoutMs)*time.Millisecond)
	defer cancel()
	for _, d := range cp.reg.All() {
		cp.subs.Reconcile(ctx, d.Services, d.Active, now)
	}
}

// handleInboundDatagram parses a raw SSDP datagram and, if it carries a
// usable USN, reconciles the referenced device into the registry.
func (cp *ControlPoint) handleInboundDatagram(data []byte) {
	msg, ok := ssdp.ParseMessage(data)
	if !ok {
		return
	}
	reply, ok := ssdp.ParseInboundReply(msg)
	if !ok {
		return
	}
	cp.handleReply(reply)
}

func (cp *ControlPoint) handleReply(reply ssdp.InboundReply) {
	now := time.Now()

	if !reply.Alive {
		cp.reg.MarkInactive(reply.UDN)
		return
	}

	if cp.reg.Touch(reply.UDN, now) {
		return
	}

	device, err := cp.fetchDescription(reply.UDN, reply.Location)
	if err != nil {
		log.Printf("CP: description fetch failed for %s: %v", reply.UDN, err)
		return
	}
	cp.reg.Insert(device, now)
}

// fetchDescription retrieves and parses the device description document
// at location, with the fixed per-call HTTP timeout. Service endpoint
// URLs are resolved against the device base URL so they are directly
// dialable.
func (cp *ControlPoint) fetchDescription(udn, location string) (*upnp.Device, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cp.cfg.HTTPRequestTimeoutMs)*time.Millisecond)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, err
	}
	resp, err := cp.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("description fetch: %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	device := upnp.ParseDescription(body, location)
	if device.UDN == "" {
		device.UDN = udn
	}
	for _, svc := range device.Services {
		svc.Active = true
		svc.SCPDURL = device.ResolveURL(svc.SCPDURL)
		svc.ControlURL = device.ResolveURL(svc.ControlURL)
		svc.EventSubURL = device.ResolveURL(svc.EventSubURL)
	}
	return device, nil
}

// ExecuteAction serialises req, POSTs it, and returns the collected
// result arguments. A malformed request or transport failure
// yields ActionReply.Valid == false rather than an error, consistent
// with soap.Client.Execute.
func (cp *ControlPoint) ExecuteAction(ctx context.Context, req *soap.ActionRequest) *soap.ActionReply {
	return cp.soapCL.Execute(ctx, req)
}

// HandleNotify serves the Control Point's local NOTIFY endpoint,
// dispatching each property change to fn.
func (cp *ControlPoint) HandleNotify(w http.ResponseWriter, r *http.Request, fn func(sid, varName, value string)) {
	cp.subs.HandleNotify(w, r, fn)
}

// Registry exposes the device registry for application wiring and
// diagnostics.
func (cp *ControlPoint) Registry() *registry.Registry {
	return cp.reg
}

// Subscriptions exposes the Control-Point Subscription Manager for
// diagnostics and tests.
func (cp *ControlPoint) Subscriptions() *events.CPSubscriptionManager {
	return cp.subs
}

// End stops discovery and releases the UDP socket; in-flight HTTP calls
// complete or fail by their own timeout.
func (cp *ControlPoint) End() {
	cp.sched.SetActive(false)
	if cp.udp != nil {
		cp.udp.Close()
	}
}
