package upnp_test

import (
	"bytes"
	"testing"

	"github.com/brightgrove/dlnacore/internal/upnp"
	"github.com/stretchr/testify/require"
)

func sampleDevice() *upnp.Device {
	return &upnp.Device{
		UDN:          "uuid:01",
		DeviceType:   "urn:schemas-upnp-org:device:MediaRenderer:1",
		FriendlyName: "Living Room",
		Manufacturer: "brightgrove",
		BaseURL:      "http://10.0.0.2:8080/",
		Services: []*upnp.Service{
			{
				Name:        "RenderingControl",
				ServiceType: "urn:schemas-upnp-org:service:RenderingControl:1",
				ServiceID:   "urn:upnp-org:serviceId:RenderingControl",
				SCPDURL:     "/rcs/scpd.xml",
				ControlURL:  "/rcs/control",
				EventSubURL: "/rcs/event",
			},
		},
	}
}

func TestWriteDescriptionRoundTripsThroughParse(t *testing.T) {
	d := sampleDevice()
	var buf bytes.Buffer
	n, err := upnp.WriteDescription(&buf, d)
	require.NoError(t, err)
	require.Equal(t, buf.Len(), n)

	parsed := upnp.ParseDescription(buf.Bytes(), "")
	require.Equal(t, d.UDN, parsed.UDN)
	require.Equal(t, d.DeviceType, parsed.DeviceType)
	require.Equal(t, d.FriendlyName, parsed.FriendlyName)
	require.Len(t, parsed.Services, 1)
	require.Equal(t, d.Services[0].ServiceType, parsed.Services[0].ServiceType)
	require.Equal(t, d.Services[0].ControlURL, parsed.Services[0].ControlURL)
}

func TestWriteDescriptionIsByteStable(t *testing.T) {
	d := sampleDevice()
	var a, b bytes.Buffer
	_, err := upnp.WriteDescription(&a, d)
	require.NoError(t, err)
	_, err = upnp.WriteDescription(&b, d)
	require.NoError(t, err)
	require.Equal(t, a.String(), b.String())
}

func TestContentLengthMatchesRealWrite(t *testing.T) {
	d := sampleDevice()
	sized := upnp.ContentLength(d)

	var buf bytes.Buffer
	n, err := upnp.WriteDescription(&buf, d)
	require.NoError(t, err)
	require.Equal(t, sized, n)
	require.Equal(t, sized, buf.Len())
}

func TestParseDescriptionMultipleServicesAreSeparate(t *testing.T) {
	doc := `<?xml version="1.0"?><root xmlns="urn:schemas-upnp-org:device-1-0">
<device>
<UDN>uuid:02</UDN>
<serviceList>
<service><serviceType>A</serviceType><serviceId>idA</serviceId><SCPDURL>/a</SCPDURL><controlURL>/a/c</controlURL><eventSubURL>/a/e</eventSubURL></service>
<service><serviceType>B</serviceType><serviceId>idB</serviceId><SCPDURL>/b</SCPDURL><controlURL>/b/c</controlURL><eventSubURL>/b/e</eventSubURL></service>
</serviceList>
</device>
</root>`

	d := upnp.ParseDescription([]byte(doc), "")
	require.Len(t, d.Services, 2)
	require.Equal(t, "A", d.Services[0].ServiceType)
	require.Equal(t, "B", d.Services[1].ServiceType)
	require.Equal(t, "idA", d.Services[0].ServiceID)
	require.Equal(t, "idB", d.Services[1].ServiceID)
}

func sampleSCPD() *upnp.SCPD {
	return &upnp.SCPD{
		Actions: []upnp.Action{
			{
				Name: "Play",
				Arguments: []upnp.Argument{
					{Name: "InstanceID", Direction: "in", RelatedStateVariable: "A_ARG_TYPE_InstanceID"},
				},
			},
		},
		StateVariables: []upnp.StateVariable{
			{Name: "TransportState", DataType: "string", SendEvents: true, AllowedValues: []string{"PLAYING", "STOPPED"}},
		},
	}
}

func TestWriteSCPDRoundTripsThroughParse(t *testing.T) {
	scpd := sampleSCPD()
	var buf bytes.Buffer
	_, err := upnp.WriteSCPD(&buf, scpd)
	require.NoError(t, err)

	parsed := upnp.ParseSCPD(buf.Bytes())
	require.Len(t, parsed.Actions, 1)
	require.Equal(t, "Play", parsed.Actions[0].Name)
	require.Len(t, parsed.Actions[0].Arguments, 1)
	require.Equal(t, "InstanceID", parsed.Actions[0].Arguments[0].Name)
	require.Equal(t, "in", parsed.Actions[0].Arguments[0].Direction)

	require.Len(t, parsed.StateVariables, 1)
	require.True(t, parsed.StateVariables[0].SendEvents)
	require.Equal(t, []string{"PLAYING", "STOPPED"}, parsed.StateVariables[0].AllowedValues)
}

func TestResolveURLMakesServicePathsAbsolute(t *testing.T) {
	d := &upnp.Device{BaseURL: "http://10.0.0.2:8080/description.xml"}
	require.Equal(t, "http://10.0.0.2:8080/avt/event", d.ResolveURL("/avt/event"))
	require.Equal(t, "http://10.0.0.2:8080/avt/control", d.ResolveURL("/avt/control"))
	require.Equal(t, "http://other:9/x", d.ResolveURL("http://other:9/x"), "absolute refs pass through")
	require.Equal(t, "", d.ResolveURL(""))
}

func TestServiceRegisteredRequiresAllThree(t *testing.T) {
	svc := &upnp.Service{SCPDURL: "/s", ControlURL: "/c", EventSubURL: "/e"}
	require.False(t, svc.Registered(), "handlers are still nil")
}

func TestDeviceServiceLookup(t *testing.T) {
	d := sampleDevice()
	require.NotNil(t, d.ServiceByType("urn:schemas-upnp-org:service:RenderingControl:1"))
	require.Nil(t, d.ServiceByType("urn:schemas-upnp-org:service:AVTransport:1"))
	require.NotNil(t, d.ServiceByID("urn:upnp-org:serviceId:RenderingControl"))
}
