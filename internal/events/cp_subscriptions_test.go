package events_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/brightgrove/dlnacore/internal/events"
	"github.com/brightgrove/dlnacore/internal/upnp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGENATransport struct {
	subscribeCalls int
	renewCalls     int
	unsubCalls     int

	subscribeSID     string
	subscribeTimeout int
	subscribeErr     error

	renewTimeout int
	renewErr     error

	unsubErr error
}

func (f *fakeGENATransport) Subscribe(ctx context.Context, eventSubURL, callbackURL string, timeoutSec int) (string, int, error) {
	f.subscribeCalls++
	if f.subscribeErr != nil {
		return "", 0, f.subscribeErr
	}
	sid := f.subscribeSID
	if sid == "" {
		sid = "uuid:cp-sub-1"
	}
	timeout := f.subscribeTimeout
	if timeout == 0 {
		timeout = timeoutSec
	}
	return sid, timeout, nil
}

func (f *fakeGENATransport) Renew(ctx context.Context, eventSubURL, sid string, timeoutSec int) (int, error) {
	f.renewCalls++
	if f.renewErr != nil {
		return 0, f.renewErr
	}
	timeout := f.renewTimeout
	if timeout == 0 {
		timeout = timeoutSec
	}
	return timeout, nil
}

func (f *fakeGENATransport) Unsubscribe(ctx context.Context, eventSubURL, sid string) error {
	f.unsubCalls++
	return f.unsubErr
}

func cpSvcFixture() *upnp.Service {
	return &upnp.Service{
		Name:        "AVTransport",
		ServiceType: "urn:schemas-upnp-org:service:AVTransport:1",
		EventSubURL: "http://device/av/event",
	}
}

func TestCPSubscribeCreatesSubscriptionWhenNoneExists(t *testing.T) {
	transport := &fakeGENATransport{}
	m := events.NewCPSubscriptionManager(transport, "http://cp/notify", 1800)
	svc := cpSvcFixture()

	err := m.Subscribe(context.Background(), svc, time.Now())
	require.NoError(t, err)
	require.Equal(t, 1, transport.subscribeCalls)
	require.Equal(t, 0, transport.renewCalls)
	require.Equal(t, upnp.SubActive, svc.SubState)
	require.NotEmpty(t, svc.SID)
}

func TestCPSubscribeIsNoOpWhenAlreadyUnexpiredlySubscribed(t *testing.T) {
	transport := &fakeGENATransport{}
	m := events.NewCPSubscriptionManager(transport, "http://cp/notify", 1800)
	svc := cpSvcFixture()
	now := time.Now()

	require.NoError(t, m.Subscribe(context.Background(), svc, now))
	require.Equal(t, 1, transport.subscribeCalls)

	require.NoError(t, m.Subscribe(context.Background(), svc, now.Add(time.Second)))
	require.Equal(t, 1, transport.subscribeCalls, "already-subscribed service must not re-subscribe")
}

func TestCPSubscribeRenewsWhenSIDPresent(t *testing.T) {
	transport := &fakeGENATransport{}
	m := events.NewCPSubscriptionManager(transport, "http://cp/notify", 1800)
	svc := cpSvcFixture()
	now := time.Now()

	require.NoError(t, m.Subscribe(context.Background(), svc, now))
	svc.ExpiresAt = now // force expiry so the next call attempts a renewal

	require.NoError(t, m.Subscribe(context.Background(), svc, now.Add(time.Second)))
	require.Equal(t, 1, transport.renewCalls)
	require.Equal(t, 1, transport.subscribeCalls, "renewal must not fall back to a fresh subscribe on success")
}

func TestCPSubscribeFallsBackToFreshSubscribeWhenRenewFindsSubscriptionGone(t *testing.T) {
	transport := &fakeGENATransport{renewErr: events.ErrSubscriptionNotFound}
	m := events.NewCPSubscriptionManager(transport, "http://cp/notify", 1800)
	svc := cpSvcFixture()
	now := time.Now()

	svc.SID = "uuid:stale"
	svc.SubState = upnp.SubActive
	svc.ExpiresAt = now.Add(-time.Minute)

	err := m.Subscribe(context.Background(), svc, now)
	require.NoError(t, err)
	require.Equal(t, 1, transport.renewCalls)
	require.Equal(t, 1, transport.subscribeCalls)
	require.Equal(t, upnp.SubActive, svc.SubState)
}

func TestCPSubscribeAppliesBackoffAfterFailure(t *testing.T) {
	transport := &fakeGENATransport{subscribeErr: assert.AnError}
	m := events.NewCPSubscriptionManager(transport, "http://cp/notify", 1800)
	svc := cpSvcFixture()
	now := time.Now()

	err := m.Subscribe(context.Background(), svc, now)
	require.Error(t, err)
	require.Equal(t, 1, transport.subscribeCalls)

	err = m.Subscribe(context.Background(), svc, now.Add(time.Second))
	require.NoError(t, err)
	require.Equal(t, 1, transport.subscribeCalls, "immediate retry is suppressed by backoff")

	err = m.Subscribe(context.Background(), svc, now.Add(time.Hour))
	require.Error(t, err)
	require.Equal(t, 2, transport.subscribeCalls, "retry proceeds once backoff has elapsed")
}

func TestCPUnsubscribeClearsLocalStateEvenOnTransportError(t *testing.T) {
	transport := &fakeGENATransport{}
	m := events.NewCPSubscriptionManager(transport, "http://cp/notify", 1800)
	svc := cpSvcFixture()
	now := time.Now()
	require.NoError(t, m.Subscribe(context.Background(), svc, now))

	transport.unsubErr = assert.AnError
	err := m.Unsubscribe(context.Background(), svc)
	require.Error(t, err)
	require.Equal(t, upnp.SubNone, svc.SubState)
	require.Empty(t, svc.SID)
}

func TestCPUnsubscribeNoOpWithoutSID(t *testing.T) {
	transport := &fakeGENATransport{}
	m := events.NewCPSubscriptionManager(transport, "http://cp/notify", 1800)
	svc := cpSvcFixture()

	require.NoError(t, m.Unsubscribe(context.Background(), svc))
	require.Equal(t, 0, transport.unsubCalls)
}

func TestCPReconcileSubscribesWhenActiveAndUnsubscribesWhenNot(t *testing.T) {
	transport := &fakeGENATransport{}
	m := events.NewCPSubscriptionManager(transport, "http://cp/notify", 1800)
	svc := cpSvcFixture()
	now := time.Now()

	m.Reconcile(context.Background(), []*upnp.Service{svc}, true, now)
	require.Equal(t, 1, transport.subscribeCalls)
	require.Equal(t, upnp.SubActive, svc.SubState)

	m.Reconcile(context.Background(), []*upnp.Service{svc}, false, now)
	require.Equal(t, 1, transport.unsubCalls)
	require.Equal(t, upnp.SubNone, svc.SubState)
}

func TestCPReconcileSkipsServiceWithoutEventURL(t *testing.T) {
	transport := &fakeGENATransport{}
	m := events.NewCPSubscriptionManager(transport, "http://cp/notify", 1800)
	svc := &upnp.Service{Name: "NoEvents"}

	m.Reconcile(context.Background(), []*upnp.Service{svc}, true, time.Now())
	require.Equal(t, 0, transport.subscribeCalls)
}

func TestHandleNotifyDispatchesKnownSIDAndAlwaysReplies200(t *testing.T) {
	transport := &fakeGENATransport{subscribeSID: "uuid:known"}
	m := events.NewCPSubscriptionManager(transport, "http://cp/notify", 1800)
	svc := cpSvcFixture()
	require.NoError(t, m.Subscribe(context.Background(), svc, time.Now()))

	body := `<e:propertyset xmlns:e="urn:schemas-upnp-org:metadata-1-0/events"><e:property><TransportState>PLAYING</TransportState></e:property></e:propertyset>`
	req := httptest.NewRequest(http.MethodPost, "/notify", strings.NewReader(body))
	req.Header.Set("SID", "uuid:known")
	rec := httptest.NewRecorder()

	var got [][3]string
	m.HandleNotify(rec, req, func(sid, varName, value string) {
		got = append(got, [3]string{sid, varName, value})
	})

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, [][3]string{{"uuid:known", "TransportState", "PLAYING"}}, got)
}

func TestHandleNotifyIgnoresUnknownSIDButStillReplies200(t *testing.T) {
	transport := &fakeGENATransport{}
	m := events.NewCPSubscriptionManager(transport, "http://cp/notify", 1800)

	body := `<e:propertyset xmlns:e="urn:schemas-upnp-org:metadata-1-0/events"><e:property><TransportState>PLAYING</TransportState></e:property></e:propertyset>`
	req := httptest.NewRequest(http.MethodPost, "/notify", strings.NewReader(body))
	req.Header.Set("SID", "uuid:unknown")
	rec := httptest.NewRecorder()

	var called bool
	m.HandleNotify(rec, req, func(sid, varName, value string) { called = true })

	require.Equal(t, http.StatusOK, rec.Code)
	require.False(t, called)
}
