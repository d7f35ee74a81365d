package events

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/brightgrove/dlnacore/internal/upnp"
)

// ErrSubscriptionNotFound is returned by GENATransport.Renew when the
// device has forgotten the SID (HTTP 404 or 412, depending on the
// peer's vintage).
var ErrSubscriptionNotFound = errors.New("subscription not found")

// GENATransport issues the GENA SUBSCRIBE/UNSUBSCRIBE HTTP calls. The
// control-point subscription manager never builds these requests
// itself, so tests can substitute a fake that never touches the
// network.
type GENATransport interface {
	Subscribe(ctx context.Context, eventSubURL, callbackURL string, timeoutSec int) (sid string, actualTimeout int, err error)
	Renew(ctx context.Context, eventSubURL, sid string, timeoutSec int) (actualTimeout int, err error)
	Unsubscribe(ctx context.Context, eventSubURL, sid string) error
}

// HTTPGENATransport is the default GENATransport, built on net/http with
// the fixed per-call timeout the concurrency model requires.
type HTTPGENATransport struct {
	Client *http.Client
}

// NewHTTPGENATransport returns an HTTPGENATransport whose requests time
// out after timeout.
func NewHTTPGENATransport(timeout time.Duration) *HTTPGENATransport {
	return &HTTPGENATransport{Client: &http.Client{Timeout: timeout}}
}

func (t *HTTPGENATransport) Subscribe(ctx context.Context, eventSubURL, callbackURL string, timeoutSec int) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, "SUBSCRIBE", eventSubURL, nil)
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("CALLBACK", "<"+callbackURL+">")
	req.Header.Set("NT", "upnp:event")
	req.Header.Set("TIMEOUT", fmt.Sprintf("Second-%d", timeoutSec))

	resp, err := t.Client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("subscribe failed: %s", resp.Status)
	}
	sid := resp.Header.Get("SID")
	if sid == "" {
		return "", 0, fmt.Errorf("subscribe reply carried no SID")
	}
	return sid, parseTimeoutHeader(resp.Header.Get("TIMEOUT"), timeoutSec), nil
}

func (t *HTTPGENATransport) Renew(ctx context.Context, eventSubURL, sid string, timeoutSec int) (int, error) {
	req, err := http.NewRequestWithContext(ctx, "SUBSCRIBE", eventSubURL, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("SID", sid)
	req.Header.Set("TIMEOUT", fmt.Sprintf("Second-%d", timeoutSec))

	resp, err := t.Client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusPreconditionFailed || resp.StatusCode == http.StatusNotFound {
		return 0, ErrSubscriptionNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("renew failed: %s", resp.Status)
	}
	return parseTimeoutHeader(resp.Header.Get("TIMEOUT"), timeoutSec), nil
}

func (t *HTTPGENATransport) Unsubscribe(ctx context.Context, eventSubURL, sid string) error {
	req, err := http.NewRequestWithContext(ctx, "UNSUBSCRIBE", eventSubURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("SID", sid)

	resp, err := t.Client.Do(req)
	if err != nil {
		// the device may be offline; the local subscription is cleared
		// regardless.
		return nil
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusPreconditionFailed || resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unsubscribe failed: %s", resp.Status)
	}
	return nil
}

func parseTimeoutHeader(header string, fallback int) int {
	const prefix = "Second-"
	if !strings.HasPrefix(header, prefix) {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimPrefix(header, prefix))
	if err != nil {
		return fallback
	}
	return n
}

// backoffState tracks exponential retry backoff for one service whose
// last subscribe/renew attempt failed, so an unreachable device isn't
// re-attempted on every reconciliation tick.
type backoffState struct {
	failureCount int
	nextAttempt  time.Time
}

// shouldAttempt reports whether enough time has passed since the last
// failure to retry now. Backoff grows as 30s * 2^failures, capped at
// 600s.
func (b *backoffState) shouldAttempt(now time.Time) bool {
	if b == nil {
		return true
	}
	return !now.Before(b.nextAttempt)
}

func (b *backoffState) recordFailure(now time.Time) {
	b.failureCount++
	delay := 30 * time.Second
	for i := 0; i < b.failureCount && delay < 600*time.Second; i++ {
		delay *= 2
	}
	if delay > 600*time.Second {
		delay = 600 * time.Second
	}
	b.nextAttempt = now.Add(delay)
}

// CPSubscriptionManager issues SUBSCRIBE/renew/UNSUBSCRIBE from the
// control-point side and dispatches incoming NOTIFY bodies to
// application callbacks.
type CPSubscriptionManager struct {
	transport   GENATransport
	callbackURL string
	timeoutSec  int
	backoffs    map[*upnp.Service]*backoffState
	bySID       map[string]*upnp.Service
}

// NewCPSubscriptionManager returns a manager that subscribes through
// transport, advertising callbackURL, requesting timeoutSec-second
// subscriptions.
func NewCPSubscriptionManager(transport GENATransport, callbackURL string, timeoutSec int) *CPSubscriptionManager {
	return &CPSubscriptionManager{
		transport:   transport,
		callbackURL: callbackURL,
		timeoutSec:  timeoutSec,
		backoffs:    make(map[*upnp.Service]*backoffState),
		bySID:       make(map[string]*upnp.Service),
	}
}

// Subscribe subscribes to svc if it has no unexpired subscription
// already. Renewing (SID present) is attempted before creating a fresh
// subscription.
func (m *CPSubscriptionManager) Subscribe(ctx context.Context, svc *upnp.Service, now time.Time) error {
	if svc.SubState == upnp.SubActive && svc.ExpiresAt.After(now) {
		return nil
	}
	if b := m.backoffs[svc]; !b.shouldAttempt(now) {
		return nil
	}

	svc.SubState = upnp.SubPending
	if svc.SID != "" {
		timeout, err := m.transport.Renew(ctx, svc.EventSubURL, svc.SID, m.timeoutSec)
		if err == nil {
			m.confirm(svc, svc.SID, timeout, now)
			return nil
		}
		if !errors.Is(err, ErrSubscriptionNotFound) {
			m.recordFailure(svc, now)
			return err
		}
		// fall through to a fresh subscribe
	}

	sid, timeout, err := m.transport.Subscribe(ctx, svc.EventSubURL, m.callbackURL, m.timeoutSec)
	if err != nil {
		m.recordFailure(svc, now)
		return err
	}
	m.confirm(svc, sid, timeout, now)
	return nil
}

func (m *CPSubscriptionManager) confirm(svc *upnp.Service, sid string, timeoutSec int, now time.Time) {
	if svc.SID != "" && svc.SID != sid {
		delete(m.bySID, svc.SID)
	}
	svc.SID = sid
	svc.SubState = upnp.SubActive
	svc.ConfirmedAt = now
	if svc.StartedAt.IsZero() {
		svc.StartedAt = now
	}
	svc.ExpiresAt = now.Add(time.Duration(timeoutSec) * time.Second)
	m.bySID[sid] = svc
	delete(m.backoffs, svc)
}

func (m *CPSubscriptionManager) recordFailure(svc *upnp.Service, now time.Time) {
	svc.SubState = upnp.SubNone
	b, ok := m.backoffs[svc]
	if !ok {
		b = &backoffState{}
		m.backoffs[svc] = b
	}
	b.recordFailure(now)
}

// Unsubscribe unsubscribes svc; on success (or a network error, treated
// as the device being offline) local state is cleared.
func (m *CPSubscriptionManager) Unsubscribe(ctx context.Context, svc *upnp.Service) error {
	if svc.SID == "" {
		return nil
	}
	err := m.transport.Unsubscribe(ctx, svc.EventSubURL, svc.SID)
	delete(m.bySID, svc.SID)
	svc.SID = ""
	svc.SubState = upnp.SubNone
	svc.ExpiresAt = time.Time{}
	delete(m.backoffs, svc)
	return err
}

// Reconcile drives the periodic reconciliation pass: if activeGlobally
// and svc is not Subscribed, subscribe; if not activeGlobally and svc is
// Subscribed, unsubscribe.
func (m *CPSubscriptionManager) Reconcile(ctx context.Context, services []*upnp.Service, activeGlobally bool, now time.Time) {
	for _, svc := range services {
		if svc.EventSubURL == "" {
			continue
		}
		subscribed := svc.SubState == upnp.SubActive && svc.ExpiresAt.After(now)
		switch {
		case activeGlobally && !subscribed:
			m.Subscribe(ctx, svc, now)
		case !activeGlobally && subscribed:
			m.Unsubscribe(ctx, svc)
		}
	}
}

// HandleNotify is the local HTTP endpoint's NOTIFY handler: it extracts
// the SID header, incrementally parses the body, and invokes fn with
// (sid, varName, value) for each property directly under the root
// property element. It always replies 200 OK.
func (m *CPSubscriptionManager) HandleNotify(w http.ResponseWriter, r *http.Request, fn func(sid, varName, value string)) {
	sid := r.Header.Get("SID")
	body, _ := io.ReadAll(r.Body)
	defer r.Body.Close()

	if _, known := m.bySID[sid]; known {
		ParsePropertySet(body, func(name, value string) {
			fn(sid, name, value)
		})
	}
	w.WriteHeader(http.StatusOK)
}

// ServiceBySID returns the service currently holding sid, if any.
func (m *CPSubscriptionManager) ServiceBySID(sid string) (*upnp.Service, bool) {
	svc, ok := m.bySID[sid]
	return svc, ok
}
