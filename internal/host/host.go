// Package host composes the Device Host: the Scheduler, SSDP
// announcement tasks, HTTP route registration, and Device Subscription
// Manager that together make one UPnP device discoverable, describable,
// controllable, and eventable.
package host

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/brightgrove/dlnacore/internal/events"
	"github.com/brightgrove/dlnacore/internal/scheduler"
	"github.com/brightgrove/dlnacore/internal/ssdp"
	"github.com/brightgrove/dlnacore/internal/udpconn"
	"github.com/brightgrove/dlnacore/internal/upnp"
	"github.com/brightgrove/dlnacore/internal/xmlio"
)

// Config carries the tick intervals and network ports a Host needs.
type Config struct {
	Host                    string
	HTTPPort                string
	SSDPPort                int
	RunSchedulerEveryMs     int
	RunSubscriptionsEveryMs int
	HTTPRequestTimeoutMs    int
	SubscriptionTimeoutSec  int
	MaxSendErrors           int

	// Verbose enables a periodic diagnostic log line (every 10 s) with
	// subscription and scheduler counts.
	Verbose bool
}

// Host owns one device's description, Scheduler, Device Subscription
// Manager, HTTP server, and multicast UDP socket. Every exported method
// must be called from the single loop thread.
type Host struct {
	cfg Config

	device *upnp.Device
	udp    *udpconn.MulticastConn
	sched  *scheduler.Scheduler
	subs   *events.DeviceSubscriptionManager
	router chi.Router
	server *http.Server

	lastSchedulerRun time.Time
	lastPublishRun   time.Time
	lastDiagnostic   time.Time
	started          time.Time
}

// New builds a Host for device, wiring its HTTP routes and SSDP
// announcement tasks but not yet opening the network. Call Start to
// bring the device onto the wire.
func New(device *upnp.Device, cfg Config) (*Host, error) {
	h := &Host{
		cfg:    cfg,
		device: device,
		sched:  scheduler.New(),
		subs:   events.NewDeviceSubscriptionManager(events.NewHTTPNotifier(time.Duration(cfg.HTTPRequestTimeoutMs) * time.Millisecond)),
	}
	h.subs.MaxSendErrors = cfg.MaxSendErrors
	h.setupDLNAServer()
	return h, nil
}

// AddChange enqueues a state-variable change for every subscriber of the
// named service, routed through the Device Subscription Manager. write
// emits the inner <Event> body; nsAbbrev is the LastChange namespace
// abbreviation ("AVT", "RCS").
func (h *Host) AddChange(serviceName string, nsAbbrev string, write xmlio.NestedWriter, ref any) {
	svc := h.serviceByName(serviceName)
	if svc == nil {
		log.Printf("HOST: addChange for unknown service %s", serviceName)
		return
	}
	h.subs.AddChange(svc, nsAbbrev, write, ref)
}

func (h *Host) serviceByName(name string) *upnp.Service {
	for _, svc := range h.device.Services {
		if svc.Name == name {
			return svc
		}
	}
	return nil
}

// setupDLNAServer registers one route per device/service endpoint on a
// chi router, then wraps it in the prefix-intercepting handler that
// routes SUBSCRIBE/UNSUBSCRIBE (methods chi's muxer does not recognise)
// straight to the Device Subscription Manager.
func (h *Host) setupDLNAServer() {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)

	router.Get("/description.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/xml; charset=\"utf-8\"")
		upnp.WriteDescription(w, h.device)
	})

	for _, svc := range h.device.Services {
		svc := svc
		if svc.SCPDHandler != nil {
			router.Get(svc.SCPDURL, svc.SCPDHandler)
		}
		if svc.ControlHandler != nil {
			router.Post(svc.ControlURL, svc.ControlHandler)
		}
		if svc.EventSubURL != "" && svc.EventHandler == nil {
			svc.EventHandler = h.eventSubscribeHandler(svc)
		}
	}

	h.router = router
}

// eventSubscribeHandler returns the http.Handler that answers
// SUBSCRIBE/UNSUBSCRIBE on svc's event URL, routed to the shared
// Device Subscription Manager.
func (h *Host) eventSubscribeHandler(svc *upnp.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.subs.HandleSubscribe(w, r, svc)
	}
}

// Handler returns the composed http.Handler: chi for GET/POST routes,
// with an outer wrapper intercepting each service's event URL for the
// GENA verbs before falling through to chi.
func (h *Host) Handler() http.Handler {
	eventRoutes := make(map[string]http.HandlerFunc)
	for _, svc := range h.device.Services {
		if svc.EventSubURL != "" && svc.EventHandler != nil {
			eventRoutes[svc.EventSubURL] = svc.EventHandler
		}
	}

	router := h.router
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler, ok := eventRoutes[r.URL.Path]; ok && (r.Method == "SUBSCRIBE" || r.Method == "UNSUBSCRIBE") {
			handler(w, r)
			return
		}
		router.ServeHTTP(w, r)
	})
}

// RegisterService attaches a service (with its three endpoint URLs and
// handlers already populated) to the device and re-registers its
// routes. Must be called before Start.
func (h *Host) RegisterService(svc *upnp.Service) {
	h.device.Services = append(h.device.Services, svc)
	h.setupDLNAServer()
}

// Start opens the multicast UDP socket, enqueues the two staggered
// NotifyAlive tasks per announced scope, and begins serving HTTP on
// cfg.Host:cfg.HTTPPort.
func (h *Host) Start() error {
	udp, err := udpconn.ListenMulticast(ssdp.MulticastAddr)
	if err != nil {
		return err
	}
	udp.ReadTimeout = 5 * time.Millisecond
	h.udp = udp

	h.setupNotifyAlive()

	addr := h.cfg.Host + ":" + h.cfg.HTTPPort
	h.server = &http.Server{Addr: addr, Handler: h.Handler()}
	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("HOST: http server stopped: %v", err)
		}
	}()

	h.started = time.Now()
	return nil
}

// setupNotifyAlive enqueues, for every announcement scope (the bare UDN,
// upnp:rootdevice, each service type), two NotifyAlive tasks
// 100 ms apart so a single lost multicast datagram still reaches every
// listener.
func (h *Host) setupNotifyAlive() {
	location := h.device.BaseURL + "/description.xml"
	const maxAgeSec = 1800
	const repeat = 15 * time.Minute

	scopes := h.announcementScopes()
	for _, scope := range scopes {
		usn := ssdp.ComposeUSN(h.device.UDN, scope)
		first := ssdp.NewNotifyAliveTask(scopeNT(scope, h.device), usn, location, maxAgeSec, repeat)
		h.sched.Add(first)

		second := ssdp.NewNotifyAliveTask(scopeNT(scope, h.device), usn, location, maxAgeSec, repeat)
		second.DueAt = time.Now().Add(100 * time.Millisecond)
		h.sched.Add(second)
	}
}

// announcementScopes lists the NT suffixes this device announces under:
// "" (root-device USN uses the bare UDN), upnp:rootdevice, and every
// service type.
func (h *Host) announcementScopes() []string {
	scopes := []string{"", ssdp.STRootDevice}
	for _, svc := range h.device.Services {
		scopes = append(scopes, svc.ServiceType)
	}
	return scopes
}

func scopeNT(scope string, device *upnp.Device) string {
	if scope == "" {
		return device.UDN
	}
	return scope
}

// HandleInboundDatagram parses a raw SSDP datagram and, if it is an
// M-SEARCH whose ST matches this device, enqueues a one-shot reply task
// addressed back to fromAddr.
func (h *Host) HandleInboundDatagram(data []byte, fromAddr string) {
	msg, ok := ssdp.ParseMessage(data)
	if !ok || !msg.IsMSearch() {
		return
	}
	st := msg.Header("ST")

	location := h.device.BaseURL + "/description.xml"
	const maxAgeSec = 1800

	if ssdp.MatchST(st, h.device.UDN, h.device.DeviceType) {
		usn := ssdp.ComposeUSN(h.device.UDN, matchedScope(st, h.device))
		h.sched.Add(ssdp.NewMSearchReplyTask(ssdp.MSearchReplyPayload{
			ReplyTo:   fromAddr,
			Location:  location,
			ST:        st,
			USN:       usn,
			MaxAgeSec: maxAgeSec,
		}))
		return
	}
	for _, svc := range h.device.Services {
		if st == svc.ServiceType {
			usn := ssdp.ComposeUSN(h.device.UDN, svc.ServiceType)
			h.sched.Add(ssdp.NewMSearchReplyTask(ssdp.MSearchReplyPayload{
				ReplyTo:   fromAddr,
				Location:  location,
				ST:        st,
				USN:       usn,
				MaxAgeSec: maxAgeSec,
			}))
			return
		}
	}
}

func matchedScope(st string, device *upnp.Device) string {
	switch st {
	case ssdp.STAll, device.UDN:
		return ""
	default:
		return st
	}
}

// Tick runs one pass of the Device Host's per-loop work:
// when a scheduler pass is due, drain one pending UDP datagram (if any),
// fold it into the scheduler, and execute; when a subscriptions pass is
// due, publish pending notifications.
func (h *Host) Tick(now time.Time) {
	if h.cfg.Verbose && now.Sub(h.lastDiagnostic) >= 10*time.Second {
		h.lastDiagnostic = now
		log.Printf("HOST: up %s, %d subscription(s), %d pending notify, %d task(s)",
			now.Sub(h.started).Round(time.Second), h.subs.SubscriptionsCount(), h.subs.PendingCount(), h.sched.Size())
	}

	if now.Sub(h.lastSchedulerRun) >= time.Duration(h.cfg.RunSchedulerEveryMs)*time.Millisecond {
		h.lastSchedulerRun = now
		buf := make([]byte, 8192)
		n, from, err := h.udp.ReadDatagram(buf)
		if err != nil {
			log.Printf("HOST: udp read error: %v", err)
		} else if n > 0 {
			h.HandleInboundDatagram(buf[:n], from)
		}
		h.sched.Execute(h.udp, h.device, now)
	}

	if now.Sub(h.lastPublishRun) >= time.Duration(h.cfg.RunSubscriptionsEveryMs)*time.Millisecond {
		h.lastPublishRun = now
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(h.cfg.HTTPRequestTimeoutMs)*time.Millisecond)
		h.subs.Publish(ctx, now)
		cancel()
	}
}

// End silences the repeating alive announcements, enqueues ssdp:byebye
// announcements for every scope, runs the scheduler for roughly two
// seconds to drain them, then shuts down the HTTP server and UDP
// socket.
func (h *Host) End() {
	h.sched.DeactivateAll()
	for _, scope := range h.announcementScopes() {
		usn := ssdp.ComposeUSN(h.device.UDN, scope)
		h.sched.Add(ssdp.NewNotifyByebyeTask(scopeNT(scope, h.device), usn, 3))
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && h.sched.Size() > 0 {
		h.sched.Execute(h.udp, h.device, time.Now())
		time.Sleep(50 * time.Millisecond)
	}

	if h.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		h.server.Shutdown(ctx)
		cancel()
	}
	if h.udp != nil {
		h.udp.Close()
	}
}

// Device exposes the hosted device model, for application wiring
// (service registration before Start, diagnostics after).
func (h *Host) Device() *upnp.Device {
	return h.device
}

// Subscriptions exposes the Device Subscription Manager for diagnostics
// and tests.
func (h *Host) Subscriptions() *events.DeviceSubscriptionManager {
	return h.subs
}

// Scheduler exposes the Scheduler for diagnostics and tests.
func (h *Host) Scheduler() *scheduler.Scheduler {
	return h.sched
}

// SubscriptionsCount reports the number of live subscriptions, for
// admin diagnostics.
func (h *Host) SubscriptionsCount() int {
	return h.subs.SubscriptionsCount()
}

// PendingCount reports the number of queued, undelivered notifications,
// for admin diagnostics.
func (h *Host) PendingCount() int {
	return h.subs.PendingCount()
}

// SchedulerSize reports the number of queued tasks, for admin
// diagnostics.
func (h *Host) SchedulerSize() int {
	return h.sched.Size()
}
