package xmlio_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/brightgrove/dlnacore/internal/xmlio"
	"github.com/stretchr/testify/require"
)

func TestLeaf(t *testing.T) {
	var buf bytes.Buffer
	n, err := xmlio.Leaf(&buf, "friendlyName", "Living Room")
	require.NoError(t, err)
	require.Equal(t, "<friendlyName>Living Room</friendlyName>", buf.String())
	require.Equal(t, buf.Len(), n)
}

func TestLeafEmptyKeepsExplicitCloseTag(t *testing.T) {
	var buf bytes.Buffer
	_, err := xmlio.Leaf(&buf, "UPC", "")
	require.NoError(t, err)
	require.Equal(t, "<UPC></UPC>", buf.String())
}

func TestLeafEscapesText(t *testing.T) {
	var buf bytes.Buffer
	_, err := xmlio.Leaf(&buf, "title", `Tom & "Jerry" <Show>`)
	require.NoError(t, err)
	require.Equal(t, `<title>Tom &amp; &quot;Jerry&quot; &lt;Show&gt;</title>`, buf.String())
}

func TestNestedSizeMatchesDiscardThenRealSink(t *testing.T) {
	body := func(w io.Writer, ctx any) (int, error) {
		return xmlio.Leaf(w, "UDN", ctx.(string))
	}

	sized, err := xmlio.Nested(io.Discard, "", "device", "", body, "uuid:01")
	require.NoError(t, err)

	var buf bytes.Buffer
	written, err := xmlio.Nested(&buf, "", "device", "", body, "uuid:01")
	require.NoError(t, err)

	require.Equal(t, sized, written)
	require.Equal(t, "<device><UDN>uuid:01</UDN></device>", buf.String())
}

func TestOpenElementWithPrefixAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	_, err := xmlio.OpenElement(&buf, "e", "property", `xmlns:e="urn:schemas-upnp-org:metadata-1-0/events"`)
	require.NoError(t, err)
	require.Equal(t, `<e:property xmlns:e="urn:schemas-upnp-org:metadata-1-0/events">`, buf.String())
}

func TestSelfClosingWhenAttrsOnly(t *testing.T) {
	var buf bytes.Buffer
	_, err := xmlio.SelfClosing(&buf, "", "icon", `width="64" height="64"`)
	require.NoError(t, err)
	require.Equal(t, `<icon width="64" height="64"/>`, buf.String())
}

func TestWritePreamble(t *testing.T) {
	var buf bytes.Buffer
	n, err := xmlio.WritePreamble(&buf)
	require.NoError(t, err)
	require.Equal(t, `<?xml version="1.0" encoding="utf-8"?>`, buf.String())
	require.Equal(t, buf.Len(), n)
}

func TestEscapingWriterReportsExpandedLength(t *testing.T) {
	var buf bytes.Buffer
	ew := xmlio.EscapingWriter{W: &buf}
	n, err := ew.Write([]byte("<a&b>"))
	require.NoError(t, err)
	require.Equal(t, "&lt;a&amp;b&gt;", buf.String())
	require.Equal(t, len("&lt;a&amp;b&gt;"), n)
}
