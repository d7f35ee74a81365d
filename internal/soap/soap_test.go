package soap_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/brightgrove/dlnacore/internal/soap"
	"github.com/brightgrove/dlnacore/internal/upnp"
	"github.com/stretchr/testify/require"
)

func TestWriteRequestEnvelope(t *testing.T) {
	req := &soap.ActionRequest{
		Service: &upnp.Service{ServiceType: "urn:schemas-upnp-org:service:AVTransport:1"},
		Action:  "Play",
		Args: []soap.Arg{
			{Name: "InstanceID", Value: "0"},
			{Name: "Speed", Value: "1"},
		},
	}
	var buf bytes.Buffer
	_, err := soap.WriteRequestEnvelope(&buf, req)
	require.NoError(t, err)

	out := buf.String()
	require.Contains(t, out, `<u:Play xmlns:u="urn:schemas-upnp-org:service:AVTransport:1">`)
	require.Contains(t, out, "<InstanceID>0</InstanceID>")
	require.Contains(t, out, "<Speed>1</Speed>")
	require.Contains(t, out, "</u:Play>")
}

func TestParseResponseExtractsArgs(t *testing.T) {
	body := `<?xml version="1.0"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/">
<s:Body>
<u:PlayResponse xmlns:u="urn:schemas-upnp-org:service:AVTransport:1">
<Result>OK</Result>
</u:PlayResponse>
</s:Body>
</s:Envelope>`

	reply := soap.ParseResponse([]byte(body))
	require.True(t, reply.Valid)
	require.Len(t, reply.Args, 1)
	value, ok := reply.Get("Result")
	require.True(t, ok)
	require.Equal(t, "OK", value)
}

func TestParseResponseTerminatesOnTrailingNewline(t *testing.T) {
	body := `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body>
<u:PlayResponse xmlns:u="urn:schemas-upnp-org:service:AVTransport:1"><Result>OK</Result></u:PlayResponse>
</s:Body></s:Envelope>` + "\n"

	reply := soap.ParseResponse([]byte(body))
	require.True(t, reply.Valid)
	value, ok := reply.Get("Result")
	require.True(t, ok)
	require.Equal(t, "OK", value)
}

func TestParseResponseTerminatesOnPlaintextBody(t *testing.T) {
	reply := soap.ParseResponse([]byte("404 page not found\n"))
	require.False(t, reply.Valid)
	require.Empty(t, reply.Args)
}

func TestParseResponsePreservesEscapedResultVerbatim(t *testing.T) {
	body := `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body>` +
		`<u:BrowseResponse xmlns:u="urn:schemas-upnp-org:service:ContentDirectory:1">` +
		`<Result>&lt;DIDL-Lite&gt;&lt;item&gt;&lt;/item&gt;&lt;/DIDL-Lite&gt;</Result>` +
		`</u:BrowseResponse></s:Body></s:Envelope>`

	reply := soap.ParseResponse([]byte(body))
	require.True(t, reply.Valid)
	value, _ := reply.Get("Result")
	require.Equal(t, "&lt;DIDL-Lite&gt;&lt;item&gt;&lt;/item&gt;&lt;/DIDL-Lite&gt;", value, "RawText is used for Result, not unescaped Text")
}

func TestEmptyOutArgSurvivesRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	_, err := soap.WriteResponseEnvelope(&buf, "urn:schemas-upnp-org:service:ConnectionManager:1", "GetProtocolInfo", []soap.Arg{
		{Name: "Source", Value: ""},
		{Name: "Sink", Value: "http-get:*:audio/mpeg:*"},
	})
	require.NoError(t, err)
	require.Contains(t, buf.String(), "<Source></Source>")

	reply := soap.ParseResponse(buf.Bytes())
	require.True(t, reply.Valid)
	source, ok := reply.Get("Source")
	require.True(t, ok, "an empty out-arg is present, not absent")
	require.Equal(t, "", source)
	sink, ok := reply.Get("Sink")
	require.True(t, ok)
	require.Equal(t, "http-get:*:audio/mpeg:*", sink)
}

func TestParseResponseFault(t *testing.T) {
	body := `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body>
<s:Fault>
<faultcode>s:Client</faultcode>
<faultstring>UPnPError</faultstring>
<detail><UPnPError xmlns="urn:schemas-upnp-org:control-1-0">
<errorCode>402</errorCode>
<errorDescription>Invalid Args</errorDescription>
</UPnPError></detail>
</s:Fault>
</s:Body></s:Envelope>`

	reply := soap.ParseResponse([]byte(body))
	require.False(t, reply.Valid)
	require.NotNil(t, reply.Fault)
	require.Equal(t, "402", reply.Fault.ErrorCode)
	require.Equal(t, "Invalid Args", reply.Fault.ErrorDescription)
}

func TestParseRequestExtractsActionAndArgs(t *testing.T) {
	body := `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body>
<u:Play xmlns:u="urn:schemas-upnp-org:service:AVTransport:1">
<InstanceID>0</InstanceID>
<Speed>1</Speed>
</u:Play>
</s:Body></s:Envelope>`

	action, args, ok := soap.ParseRequest([]byte(body))
	require.True(t, ok)
	require.Equal(t, "Play", action)
	require.Equal(t, []soap.Arg{{Name: "InstanceID", Value: "0"}, {Name: "Speed", Value: "1"}}, args)
}

func TestDispatchInvokesHandlerAndWritesEnvelope(t *testing.T) {
	body := `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body>
<u:Play xmlns:u="urn:schemas-upnp-org:service:AVTransport:1"><InstanceID>0</InstanceID></u:Play>
</s:Body></s:Envelope>`

	req := httptest.NewRequest(http.MethodPost, "/control", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()

	soap.Dispatch(rec, req, "urn:schemas-upnp-org:service:AVTransport:1", func(action string, args []soap.Arg) ([]soap.Arg, error) {
		require.Equal(t, "Play", action)
		return []soap.Arg{{Name: "Result", Value: "OK"}}, nil
	})

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "<u:PlayResponse")
	require.Contains(t, rec.Body.String(), "<Result>OK</Result>")
}

func TestDispatchWritesFaultOnHandlerError(t *testing.T) {
	body := `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body>
<u:Play xmlns:u="urn:schemas-upnp-org:service:AVTransport:1"><InstanceID>0</InstanceID></u:Play>
</s:Body></s:Envelope>`

	req := httptest.NewRequest(http.MethodPost, "/control", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()

	soap.Dispatch(rec, req, "urn:schemas-upnp-org:service:AVTransport:1", func(action string, args []soap.Arg) ([]soap.Arg, error) {
		return nil, &soap.Fault{ErrorCode: "701", ErrorDescription: "Transition not available"}
	})

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "<errorCode>701</errorCode>")
}

func TestActionRequestInvalidWithoutServiceOrAction(t *testing.T) {
	require.False(t, (&soap.ActionRequest{}).Valid())
	require.False(t, (&soap.ActionRequest{Service: &upnp.Service{}}).Valid())
	require.True(t, (&soap.ActionRequest{Service: &upnp.Service{}, Action: "Play"}).Valid())
}
