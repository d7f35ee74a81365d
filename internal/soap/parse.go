package soap

import "github.com/brightgrove/dlnacore/internal/xmlio"

// ParseResponse parses a SOAP response body incrementally. Each element
// directly inside /Envelope/Body/<Action>Response becomes a (name, text)
// result argument; an empty element is recorded with an empty value, so
// empty-but-present out-args survive the round trip. Result carries its
// raw (still-escaped) content verbatim, since it typically wraps escaped
// DIDL-Lite meant for a downstream parser. A malformed envelope (no
// Body child found) yields Valid == false with no arguments.
func ParseResponse(body []byte) *ActionReply {
	p := xmlio.NewParser()
	p.Write(body)

	reply := &ActionReply{}
	var ev xmlio.Event
	sawBodyChild := false

	for p.Next(&ev) {
		if ev.Kind == xmlio.EventStart && len(ev.Path) == 3 {
			sawBodyChild = true
			if ev.Name == "Fault" {
				reply.Fault = parseFaultFrom(p, ev)
				reply.Valid = false
				return reply
			}
			continue
		}
		if ev.Kind == xmlio.EventStart && len(ev.Path) == 4 {
			reply.Args = append(reply.Args, Arg{Name: ev.Name})
			continue
		}
		if ev.Kind != xmlio.EventText {
			continue
		}
		if len(ev.Path) != 4 {
			continue
		}
		value := ev.Text
		if ev.Name == "Result" {
			value = ev.RawText
		}
		if n := len(reply.Args); n > 0 && reply.Args[n-1].Name == ev.Name {
			reply.Args[n-1].Value = value
		}
	}

	reply.Valid = sawBodyChild
	return reply
}

// parseFaultFrom continues draining p (already positioned just past the
// Fault start tag) looking for the nested UPnPError detail.
func parseFaultFrom(p *xmlio.Parser, start xmlio.Event) *Fault {
	f := &Fault{}
	var ev xmlio.Event
	for p.Next(&ev) {
		if ev.Kind != xmlio.EventText {
			continue
		}
		switch ev.Name {
		case "errorCode":
			f.ErrorCode = ev.Text
		case "errorDescription":
			f.ErrorDescription = ev.Text
		case "faultstring":
			if f.ErrorDescription == "" {
				f.ErrorDescription = ev.Text
			}
		}
	}
	return f
}

// ParseRequest parses an inbound control POST body incrementally: the
// action element name is the first element inside /Envelope/Body, and
// each of its children become (name, value) argument pairs, empty
// elements included.
func ParseRequest(body []byte) (action string, args []Arg, ok bool) {
	p := xmlio.NewParser()
	p.Write(body)

	var ev xmlio.Event
	for p.Next(&ev) {
		if ev.Kind == xmlio.EventStart && len(ev.Path) == 3 {
			action = ev.Name
			ok = true
			continue
		}
		if ev.Kind == xmlio.EventStart && len(ev.Path) == 4 {
			args = append(args, Arg{Name: ev.Name})
			continue
		}
		if ev.Kind != xmlio.EventText {
			continue
		}
		if len(ev.Path) != 4 {
			continue
		}
		if n := len(args); n > 0 && args[n-1].Name == ev.Name {
			args[n-1].Value = ev.Text
		}
	}
	return action, args, ok
}
