package soap

import (
	"io"

	"github.com/brightgrove/dlnacore/internal/xmlio"
)

const soapFaultNS = `xmlns:s="http://schemas.xmlsoap.org/soap/envelope/" s:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/"`

// writeFaultEnvelope serialises f as a SOAP 1.1 fault carrying a nested
// UPnPError detail, the shape every UPnP control point expects on a
// failed action invocation.
func writeFaultEnvelope(w io.Writer, f *Fault) (int, error) {
	total := 0
	n, err := xmlio.WritePreamble(w)
	total += n
	if err != nil {
		return total, err
	}
	n, err = xmlio.Nested(w, "s", "Envelope", soapFaultNS, func(w io.Writer, _ any) (int, error) {
		return xmlio.Nested(w, "s", "Body", "", func(w io.Writer, _ any) (int, error) {
			return xmlio.Nested(w, "s", "Fault", "", writeFaultBody, f)
		}, nil)
	}, nil)
	total += n
	return total, err
}

func writeFaultBody(w io.Writer, ctx any) (int, error) {
	f := ctx.(*Fault)
	total := 0
	n, err := xmlio.Leaf(w, "faultcode", "s:Client")
	total += n
	if err != nil {
		return total, err
	}
	n, err = xmlio.Leaf(w, "faultstring", "UPnPError")
	total += n
	if err != nil {
		return total, err
	}
	n, err = xmlio.Nested(w, "", "detail", "", func(w io.Writer, _ any) (int, error) {
		return xmlio.Nested(w, "", "UPnPError", `xmlns="urn:schemas-upnp-org:control-1-0"`, func(w io.Writer, _ any) (int, error) {
			total := 0
			n, err := xmlio.Leaf(w, "errorCode", f.ErrorCode)
			total += n
			if err != nil {
				return total, err
			}
			n, err = xmlio.Leaf(w, "errorDescription", f.ErrorDescription)
			total += n
			return total, err
		}, nil)
	}, nil)
	total += n
	return total, err
}
