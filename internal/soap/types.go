// Package soap implements the action pipeline: building SOAP envelopes
// for outbound action invocations, parsing replies (and inbound control
// requests) incrementally, and surfacing UPnP faults.
package soap

import "github.com/brightgrove/dlnacore/internal/upnp"

// Arg is one (name, value) argument or result pair.
type Arg struct {
	Name  string
	Value string
}

// ActionRequest carries everything needed to invoke one action: the
// target service, the action name, and its ordered arguments.
// ControlURL is the already-resolved absolute URL (service.ControlURL
// joined against the owning device's BaseURL); the pipeline itself does
// no URL resolution.
type ActionRequest struct {
	Service    *upnp.Service
	ControlURL string
	Action     string
	Args       []Arg
}

// Valid reports whether the request is well-formed: it is invalid if
// Service is nil or Action is empty.
func (r *ActionRequest) Valid() bool {
	return r != nil && r.Service != nil && r.Action != ""
}

// ServiceType returns the owning service's type URN, used both as the
// envelope's xmlns:u and the SOAPACTION header.
func (r *ActionRequest) ServiceType() string {
	if r.Service == nil {
		return ""
	}
	return r.Service.ServiceType
}

// Fault is a parsed UPnP SOAP fault (s:Fault/detail/UPnPError).
type Fault struct {
	ErrorCode        string
	ErrorDescription string
}

// ActionReply carries the result of an invocation: a validity flag and
// the ordered result arguments. A reply with Valid == false carries no
// arguments; Fault is populated when the remote peer returned a
// structured UPnP error rather than a bare non-2xx.
type ActionReply struct {
	Valid bool
	Args  []Arg
	Fault *Fault
}

// Get returns the value of the first result argument named name.
func (r *ActionReply) Get(name string) (string, bool) {
	for _, a := range r.Args {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}
