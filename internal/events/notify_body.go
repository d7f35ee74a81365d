package events

import (
	"io"

	"github.com/brightgrove/dlnacore/internal/xmlio"
)

const propertySetNS = `xmlns:e="urn:schemas-upnp-org:metadata-1-0/events"`

// eventNamespace returns the xmlns for a LastChange <Event> element for
// the given subscription-namespace abbreviation (e.g. "AVT", "RCS").
func eventNamespace(nsAbbrev string) string {
	return `xmlns="urn:schemas-upnp-org:metadata-1-0/` + nsAbbrev + `/"`
}

// WriteNotifyBody wraps the application-supplied inner writer in the
// full NOTIFY payload: <e:propertyset><e:property><LastChange><Event
// xmlns="...">...</Event></LastChange></e:property></e:propertyset>.
// Call once into io.Discard to size Content-Length, once into the real
// sink to send.
func WriteNotifyBody(w io.Writer, nsAbbrev string, inner xmlio.NestedWriter, ref any) (int, error) {
	return xmlio.Nested(w, "e", "propertyset", propertySetNS, func(w io.Writer, _ any) (int, error) {
		return xmlio.Nested(w, "e", "property", "", func(w io.Writer, _ any) (int, error) {
			return xmlio.Nested(w, "", "LastChange", "", func(w io.Writer, _ any) (int, error) {
				return xmlio.Nested(w, "", "Event", eventNamespace(nsAbbrev), inner, ref)
			}, nil)
		}, nil)
	}, nil)
}

// ParsePropertySet parses a device NOTIFY body (or a simple property
// change body for non-LastChange-wrapped variables) and invokes fn with
// each (name, value) pair directly under a <property> element.
func ParsePropertySet(body []byte, fn func(name, value string)) {
	p := xmlio.NewParser()
	p.Write(body)

	var ev xmlio.Event
	for p.Next(&ev) {
		if ev.Kind != xmlio.EventText {
			continue
		}
		if len(ev.Path) != 3 || ev.Path[1] != "property" {
			continue
		}
		fn(ev.Name, ev.Text)
	}
}
