package events

import (
	"bytes"
	"context"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/brightgrove/dlnacore/internal/upnp"
	"github.com/brightgrove/dlnacore/internal/xmlio"
	"github.com/google/uuid"
)

// Subscription is the device-side record of one subscriber.
type Subscription struct {
	SID         string
	CallbackURL string
	TimeoutSec  int
	Seq         int
	ExpiresAt   time.Time
	Service     *upnp.Service

	ref Ref
}

// PendingNotification is a non-owning reference to a Subscription plus
// the already-sized wrapped NOTIFY body waiting to be delivered. It is
// dropped once delivered, once its subscription is gone, or after more
// than MaxSendErrors failed attempts.
type PendingNotification struct {
	subRef     Ref
	sid        string
	seq        int
	body       []byte
	errorCount int
}

// Notifier is the external HTTP collaborator used to deliver NOTIFY
// requests; DeviceSubscriptionManager never constructs an http.Client
// directly so tests can substitute a fake.
type Notifier interface {
	Notify(ctx context.Context, callbackURL, sid string, seq int, body []byte) (statusCode int, err error)
}

// HTTPNotifier is the default Notifier, a thin wrapper over net/http
// carrying the fixed per-call timeout the concurrency model requires.
type HTTPNotifier struct {
	Client *http.Client
}

// NewHTTPNotifier returns an HTTPNotifier whose requests time out after
// timeout.
func NewHTTPNotifier(timeout time.Duration) *HTTPNotifier {
	return &HTTPNotifier{Client: &http.Client{Timeout: timeout}}
}

func (n *HTTPNotifier) Notify(ctx context.Context, callbackURL, sid string, seq int, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, "NOTIFY", callbackURL, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("NT", "upnp:event")
	req.Header.Set("NTS", "upnp:propchange")
	req.Header.Set("SID", sid)
	req.Header.Set("SEQ", strconv.Itoa(seq))
	req.Header.Set("Content-Type", "text/xml")
	req.Header.Set("Content-Length", strconv.Itoa(len(body)))

	resp, err := n.Client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

// DeviceSubscriptionManager accepts SUBSCRIBE/UNSUBSCRIBE, tracks
// subscribers, and delivers NOTIFY bodies with retry. It must
// only be driven from the single loop thread; none of its methods may
// be re-entered from a NOTIFY delivery callback.
type DeviceSubscriptionManager struct {
	arena    subscriptionArena
	bySID    map[string]Ref
	pending  []*PendingNotification
	notifier Notifier

	// MaxSendErrors is the drop-after threshold for NOTIFY retries
	// (default 3, config knob MAX_SEND_ERRORS).
	MaxSendErrors int
}

// NewDeviceSubscriptionManager returns a manager that delivers NOTIFY
// bodies through notifier.
func NewDeviceSubscriptionManager(notifier Notifier) *DeviceSubscriptionManager {
	return &DeviceSubscriptionManager{
		bySID:         make(map[string]Ref),
		notifier:      notifier,
		MaxSendErrors: 3,
	}
}

// Subscribe handles an inbound SUBSCRIBE. If sid refers to an existing
// subscription on svc, it is renewed in place (timeout, expiry, and
// optionally callbackURL updated) and the same SID returned. Otherwise a
// new subscription is created with a freshly generated SID. Returns
// ok == false if svc has no event URL, or if a new subscription would
// have no callback URL to deliver to.
func (m *DeviceSubscriptionManager) Subscribe(svc *upnp.Service, sid, callbackURL string, timeoutSec int, now time.Time) (newSID string, actualTimeout int, ok bool) {
	if svc == nil || svc.EventSubURL == "" {
		return "", 0, false
	}

	if sid != "" {
		if ref, found := m.bySID[sid]; found {
			if sub, live := m.arena.resolve(ref); live && sub.Service == svc {
				sub.TimeoutSec = timeoutSec
				sub.ExpiresAt = now.Add(time.Duration(timeoutSec) * time.Second)
				if callbackURL != "" {
					sub.CallbackURL = callbackURL
				}
				return sub.SID, sub.TimeoutSec, true
			}
		}
	}
	if callbackURL == "" {
		return "", 0, false
	}

	newSub := &Subscription{
		SID:         "uuid:" + uuid.NewString(),
		CallbackURL: callbackURL,
		TimeoutSec:  timeoutSec,
		Seq:         0,
		ExpiresAt:   now.Add(time.Duration(timeoutSec) * time.Second),
		Service:     svc,
	}
	ref := m.arena.alloc(newSub)
	newSub.ref = ref
	m.bySID[newSub.SID] = ref
	return newSub.SID, newSub.TimeoutSec, true
}

// Unsubscribe removes the subscription identified by sid and cascades
// to every pending notification referencing it. Returns false (caller
// replies 404) if sid is unknown.
func (m *DeviceSubscriptionManager) Unsubscribe(sid string) bool {
	ref, found := m.bySID[sid]
	if !found {
		return false
	}
	m.arena.free(ref)
	delete(m.bySID, sid)
	m.dropPendingFor(ref)
	return true
}

func (m *DeviceSubscriptionManager) dropPendingFor(ref Ref) {
	kept := m.pending[:0]
	for _, p := range m.pending {
		if p.subRef != ref {
			kept = append(kept, p)
		}
	}
	m.pending = kept
}

// AddChange enqueues a state-variable change for every current
// subscriber of svc. write emits the inner <Event> body (typically a
// LastChange fragment); nsAbbrev is the LastChange namespace
// abbreviation ("AVT", "RCS"). An empty writer output is logged and
// skipped, never enqueued.
func (m *DeviceSubscriptionManager) AddChange(svc *upnp.Service, nsAbbrev string, write xmlio.NestedWriter, ref any) {
	for _, sub := range m.arena.live() {
		if sub.Service != svc {
			continue
		}

		n, err := 0, error(nil)
		if write != nil {
			n, err = write(io.Discard, ref)
		}
		if err != nil || n == 0 {
			log.Printf("SUB: empty or failing change writer for sid %s, skipping", sub.SID)
			continue
		}
		var body bytes.Buffer
		if _, err := WriteNotifyBody(&body, nsAbbrev, write, ref); err != nil {
			log.Printf("SUB: failed to render notify body for sid %s: %v", sub.SID, err)
			continue
		}

		sub.Seq++
		m.pending = append(m.pending, &PendingNotification{
			subRef: sub.ref,
			sid:    sub.SID,
			seq:    sub.Seq,
			body:   body.Bytes(),
		})
	}
}

// Publish sweeps expired subscriptions (cascading to their pending
// notifications) and then attempts delivery of every remaining pending
// notification in FIFO order. A delivered (HTTP 200) entry is dropped;
// any other outcome increments its error count and, once that exceeds
// MaxSendErrors, drops it with a warning. Failed entries remain at the
// head of the queue and stall later entries for the same subscription
// until they succeed or are dropped.
func (m *DeviceSubscriptionManager) Publish(ctx context.Context, now time.Time) {
	m.sweepExpired(now)

	stalled := make(map[Ref]bool)
	kept := m.pending[:0]
	for _, p := range m.pending {
		sub, live := m.arena.resolve(p.subRef)
		if !live {
			continue
		}
		if stalled[p.subRef] {
			kept = append(kept, p)
			continue
		}

		status, err := m.notifier.Notify(ctx, sub.CallbackURL, p.sid, p.seq, p.body)
		if err == nil && status == http.StatusOK {
			continue
		}
		p.errorCount++
		if p.errorCount > m.MaxSendErrors {
			log.Printf("SUB: dropping notify for sid %s after %d failed attempts", p.sid, p.errorCount)
			continue
		}
		stalled[p.subRef] = true
		kept = append(kept, p)
	}
	m.pending = kept
}

func (m *DeviceSubscriptionManager) sweepExpired(now time.Time) {
	for _, sub := range m.arena.live() {
		if !sub.ExpiresAt.After(now) {
			m.Unsubscribe(sub.SID)
		}
	}
}

// SubscriptionsCount reports the number of live subscriptions.
func (m *DeviceSubscriptionManager) SubscriptionsCount() int {
	return len(m.arena.live())
}

// PendingCount reports the number of queued, undelivered notifications.
func (m *DeviceSubscriptionManager) PendingCount() int {
	return len(m.pending)
}

// LookupSID reports whether sid refers to a live subscription.
func (m *DeviceSubscriptionManager) LookupSID(sid string) (*Subscription, bool) {
	ref, found := m.bySID[sid]
	if !found {
		return nil, false
	}
	return m.arena.resolve(ref)
}

const defaultSubscriptionTimeoutSec = 1800

// HandleSubscribe serves a service's event URL for both SUBSCRIBE and
// UNSUBSCRIBE requests. CALLBACK carries the subscriber's notify URL
// enclosed in angle brackets; TIMEOUT is "Second-<n>" or
// "Second-infinite", the latter clamped to defaultSubscriptionTimeoutSec
// since this manager always tracks a concrete expiry.
func (m *DeviceSubscriptionManager) HandleSubscribe(w http.ResponseWriter, r *http.Request, svc *upnp.Service) {
	switch r.Method {
	case "SUBSCRIBE":
		sid := r.Header.Get("SID")
		callback := strings.Trim(r.Header.Get("CALLBACK"), "<>")
		timeoutSec := parseTimeoutHeader(r.Header.Get("TIMEOUT"), defaultSubscriptionTimeoutSec)

		if sid == "" && callback == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if sid != "" {
			// A renewal for a SID this device has forgotten must not
			// mint a callback-less subscription; the peer re-subscribes
			// fresh on seeing 412.
			if _, live := m.LookupSID(sid); !live {
				w.WriteHeader(http.StatusPreconditionFailed)
				return
			}
		}

		newSID, actual, ok := m.Subscribe(svc, sid, callback, timeoutSec, time.Now())
		if !ok {
			w.WriteHeader(http.StatusPreconditionFailed)
			return
		}
		w.Header().Set("SID", newSID)
		w.Header().Set("TIMEOUT", "Second-"+strconv.Itoa(actual))
		w.WriteHeader(http.StatusOK)

	case "UNSUBSCRIBE":
		sid := r.Header.Get("SID")
		if sid == "" || !m.Unsubscribe(sid) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
