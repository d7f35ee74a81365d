package soap

import (
	"io"

	"github.com/brightgrove/dlnacore/internal/xmlio"
)

const (
	envelopeNS = `xmlns:s="http://schemas.xmlsoap.org/soap/envelope/" s:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/"`
)

// WriteRequestEnvelope serialises an action invocation as a SOAP 1.1
// envelope: fixed namespace attributes on s:Envelope/s:Body, a
// u:<Action> element namespaced to the service type, one text child per
// argument. Call once into io.Discard to size Content-Length, once into
// the real sink to send.
func WriteRequestEnvelope(w io.Writer, req *ActionRequest) (int, error) {
	total := 0
	n, err := xmlio.WritePreamble(w)
	total += n
	if err != nil {
		return total, err
	}
	n, err = xmlio.Nested(w, "s", "Envelope", envelopeNS, writeRequestBody, req)
	total += n
	return total, err
}

func writeRequestBody(w io.Writer, ctx any) (int, error) {
	req := ctx.(*ActionRequest)
	return xmlio.Nested(w, "s", "Body", "", func(w io.Writer, _ any) (int, error) {
		attrs := `xmlns:u="` + req.ServiceType() + `"`
		return xmlio.Nested(w, "u", req.Action, attrs, writeArgs, req.Args)
	}, nil)
}

func writeArgs(w io.Writer, ctx any) (int, error) {
	args := ctx.([]Arg)
	total := 0
	for _, a := range args {
		n, err := xmlio.Leaf(w, a.Name, a.Value)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteResponseEnvelope serialises a server-side action reply as a SOAP
// 1.1 envelope: "<Action>Response" wrapping the result arguments,
// namespaced to serviceType.
func WriteResponseEnvelope(w io.Writer, serviceType, action string, args []Arg) (int, error) {
	total := 0
	n, err := xmlio.WritePreamble(w)
	total += n
	if err != nil {
		return total, err
	}
	n, err = xmlio.Nested(w, "s", "Envelope", envelopeNS, func(w io.Writer, _ any) (int, error) {
		return xmlio.Nested(w, "s", "Body", "", func(w io.Writer, _ any) (int, error) {
			attrs := `xmlns:u="` + serviceType + `"`
			return xmlio.Nested(w, "u", action+"Response", attrs, writeArgs, args)
		}, nil)
	}, nil)
	total += n
	return total, err
}
