package controlpoint_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/brightgrove/dlnacore/internal/controlpoint"
	"github.com/brightgrove/dlnacore/internal/events"
	"github.com/brightgrove/dlnacore/internal/soap"
	"github.com/brightgrove/dlnacore/internal/ssdp"
	"github.com/brightgrove/dlnacore/internal/udpconn"
	"github.com/brightgrove/dlnacore/internal/upnp"
	"github.com/stretchr/testify/require"
)

var upnpServiceRenderingControl = upnp.Service{
	Name:        "RenderingControl",
	ServiceType: "urn:schemas-upnp-org:service:RenderingControl:1",
	ServiceID:   "urn:upnp-org:serviceId:RenderingControl",
}

func testConfig() controlpoint.Config {
	return controlpoint.Config{
		CallbackURL:             "http://127.0.0.1:9100/notify",
		HTTPRequestTimeoutMs:    2000,
		SubscriptionTimeoutSec:  1800,
		MSearchRepeatMs:         50,
		RunSubscriptionsEveryMs: 20,
	}
}

const sampleDescriptionXML = `<?xml version="1.0"?>
<root xmlns="urn:schemas-upnp-org:device-1-0">
  <specVersion><major>1</major><minor>0</minor></specVersion>
  <device>
    <deviceType>urn:schemas-upnp-org:device:MediaRenderer:1</deviceType>
    <friendlyName>Remote Renderer</friendlyName>
    <UDN>uuid:remote-1</UDN>
    <serviceList>
      <service>
        <serviceType>urn:schemas-upnp-org:service:AVTransport:1</serviceType>
        <serviceId>urn:upnp-org:serviceId:AVTransport</serviceId>
        <SCPDURL>/avt/scpd.xml</SCPDURL>
        <controlURL>/avt/control</controlURL>
        <eventSubURL>/avt/event</eventSubURL>
      </service>
    </serviceList>
  </device>
</root>`

// TestDiscoveryViaLoopbackNotifyRegistersDevice covers concrete scenario
// 1 from the testable-properties set: an inbound alive announcement
// causes a description fetch and registry insert, and Begin returns as
// soon as minWait has elapsed and a device is present.
func TestDiscoveryViaLoopbackNotifyRegistersDevice(t *testing.T) {
	descServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/xml")
		// trailing newline, as real devices send
		w.Write([]byte(sampleDescriptionXML + "\n"))
	}))
	defer descServer.Close()

	transport := events.NewHTTPGENATransport(2 * time.Second)
	soapClient := soap.NewClient(2 * time.Second)
	cp := controlpoint.New(testConfig(), transport, soapClient)

	go func() {
		time.Sleep(50 * time.Millisecond)
		sender, err := udpconn.Listen(0)
		if err != nil {
			return
		}
		defer sender.Close()
		notify := ssdp.EncodeNotify(ssdp.NTSAlive, descServer.URL+"/description.xml", "upnp:rootdevice", "uuid:remote-1::upnp:rootdevice", 1800)
		sender.Send(ssdp.MulticastAddr, notify)
	}()

	err := cp.Begin(ssdp.STAll, 0, 2*time.Second)
	require.NoError(t, err)
	defer cp.End()

	require.Equal(t, 1, cp.Registry().Count())
	device, ok := cp.Registry().Lookup("uuid:remote-1")
	require.True(t, ok)
	require.Equal(t, "Remote Renderer", device.FriendlyName)
	require.True(t, device.Active)
}

// TestDiscoveryViaLoopbackByebyeMarksDeviceInactive covers concrete
// scenario 2: a byebye for an already-known device marks it inactive
// without evicting it.
func TestDiscoveryViaLoopbackByebyeMarksDeviceInactive(t *testing.T) {
	descServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleDescriptionXML))
	}))
	defer descServer.Close()

	transport := events.NewHTTPGENATransport(2 * time.Second)
	soapClient := soap.NewClient(2 * time.Second)
	cp := controlpoint.New(testConfig(), transport, soapClient)

	go func() {
		time.Sleep(50 * time.Millisecond)
		sender, err := udpconn.Listen(0)
		if err != nil {
			return
		}
		defer sender.Close()
		notify := ssdp.EncodeNotify(ssdp.NTSAlive, descServer.URL+"/description.xml", "upnp:rootdevice", "uuid:remote-1::upnp:rootdevice", 1800)
		sender.Send(ssdp.MulticastAddr, notify)
	}()

	err := cp.Begin(ssdp.STAll, 0, 2*time.Second)
	require.NoError(t, err)
	require.Equal(t, 1, cp.Registry().Count())

	sender, err := udpconn.Listen(0)
	require.NoError(t, err)
	defer sender.Close()
	byebye := ssdp.EncodeNotify(ssdp.NTSByebye, "", "upnp:rootdevice", "uuid:remote-1::upnp:rootdevice", 0)
	_, err = sender.Send(ssdp.MulticastAddr, byebye)
	require.NoError(t, err)

	deadline := time.Now().Add(1 * time.Second)
	for time.Now().Before(deadline) {
		cp.Tick(time.Now())
		device, ok := cp.Registry().Lookup("uuid:remote-1")
		if ok && !device.Active {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	cp.End()

	device, ok := cp.Registry().Lookup("uuid:remote-1")
	require.True(t, ok)
	require.False(t, device.Active)
}

// TestExecuteActionRoundTripsThroughSOAPClient covers concrete scenario
// 4: a SOAP action invocation against a real HTTP control endpoint.
func TestExecuteActionRoundTripsThroughSOAPClient(t *testing.T) {
	controlServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/xml")
		w.Write([]byte(`<?xml version="1.0"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/" s:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/">
  <s:Body>
    <u:GetVolumeResponse xmlns:u="urn:schemas-upnp-org:service:RenderingControl:1">
      <CurrentVolume>42</CurrentVolume>
    </u:GetVolumeResponse>
  </s:Body>
</s:Envelope>`))
	}))
	defer controlServer.Close()

	transport := events.NewHTTPGENATransport(2 * time.Second)
	soapClient := soap.NewClient(2 * time.Second)
	cp := controlpoint.New(testConfig(), transport, soapClient)

	req := &soap.ActionRequest{
		Service:    &upnpServiceRenderingControl,
		ControlURL: controlServer.URL,
		Action:     "GetVolume",
		Args:       []soap.Arg{{Name: "InstanceID", Value: "0"}, {Name: "Channel", Value: "Master"}},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	reply := cp.ExecuteAction(ctx, req)

	require.True(t, reply.Valid)
	volume, ok := reply.Get("CurrentVolume")
	require.True(t, ok)
	require.Equal(t, "42", volume)
}
