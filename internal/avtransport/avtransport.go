// Package avtransport is a demo AVTransport:1 service implementation for
// the reference device-hosting binary: it answers SetAVTransportURI,
// Play, and Stop over the action pipeline and publishes a LastChange
// event through the Device Subscription Manager whenever the transport
// state changes.
package avtransport

import (
	"fmt"
	"io"
	"sync"

	"github.com/brightgrove/dlnacore/internal/soap"
	"github.com/brightgrove/dlnacore/internal/upnp"
	"github.com/brightgrove/dlnacore/internal/xmlio"
)

const (
	ServiceType     = "urn:schemas-upnp-org:service:AVTransport:1"
	ServiceID       = "urn:upnp-org:serviceId:AVTransport"
	NamespaceAbbrev = "AVT"
)

const (
	StateStopped = "STOPPED"
	StatePlaying = "PLAYING"
)

// Publisher is the subset of host.Host a Service needs to announce
// transport-state changes; satisfied by *host.Host without an import
// cycle.
type Publisher interface {
	AddChange(serviceName, nsAbbrev string, write xmlio.NestedWriter, ref any)
}

// Service holds the mutable AVTransport state for a single hosted
// instance (InstanceID 0 only; multi-instance transport queues are out
// of scope for this demo).
type Service struct {
	mu             sync.Mutex
	uri            string
	uriMetaData    string
	transportState string

	publisher   Publisher
	serviceName string
}

// New returns a Service starting in the stopped state with an empty
// transport URI, publishing changes through pub under the service named
// serviceName.
func New(pub Publisher, serviceName string) *Service {
	return &Service{publisher: pub, serviceName: serviceName, transportState: StateStopped}
}

// SCPD describes SetAVTransportURI, Play, and Stop plus their backing
// state variables.
func SCPD() *upnp.SCPD {
	return &upnp.SCPD{
		Actions: []upnp.Action{
			{Name: "SetAVTransportURI", Arguments: []upnp.Argument{
				{Name: "InstanceID", Direction: "in", RelatedStateVariable: "A_ARG_TYPE_InstanceID"},
				{Name: "CurrentURI", Direction: "in", RelatedStateVariable: "AVTransportURI"},
				{Name: "CurrentURIMetaData", Direction: "in", RelatedStateVariable: "AVTransportURIMetaData"},
			}},
			{Name: "Play", Arguments: []upnp.Argument{
				{Name: "InstanceID", Direction: "in", RelatedStateVariable: "A_ARG_TYPE_InstanceID"},
				{Name: "Speed", Direction: "in", RelatedStateVariable: "TransportPlaySpeed"},
			}},
			{Name: "Stop", Arguments: []upnp.Argument{
				{Name: "InstanceID", Direction: "in", RelatedStateVariable: "A_ARG_TYPE_InstanceID"},
			}},
		},
		StateVariables: []upnp.StateVariable{
			{Name: "AVTransportURI", DataType: "string", SendEvents: false},
			{Name: "AVTransportURIMetaData", DataType: "string", SendEvents: false},
			{Name: "TransportState", DataType: "string", SendEvents: false},
			{Name: "TransportStatus", DataType: "string", SendEvents: false},
			{Name: "TransportPlaySpeed", DataType: "string", SendEvents: false},
			{Name: "LastChange", DataType: "string", SendEvents: true},
			{Name: "A_ARG_TYPE_InstanceID", DataType: "ui4", SendEvents: false},
		},
	}
}

// Handler returns the soap.ActionHandler to register as the service's
// control-URL handler.
func (s *Service) Handler() soap.ActionHandler {
	return func(action string, args []soap.Arg) ([]soap.Arg, error) {
		switch action {
		case "SetAVTransportURI":
			uri, ok := argValue(args, "CurrentURI")
			if !ok {
				return nil, &soap.Fault{ErrorCode: "402", ErrorDescription: "Invalid Args"}
			}
			meta, _ := argValue(args, "CurrentURIMetaData")
			s.setURI(uri, meta)
			return nil, nil

		case "Play":
			s.setTransportState(StatePlaying)
			return nil, nil

		case "Stop":
			s.setTransportState(StateStopped)
			return nil, nil

		default:
			return nil, &soap.Fault{ErrorCode: "401", ErrorDescription: "Invalid Action"}
		}
	}
}

func argValue(args []soap.Arg, name string) (string, bool) {
	for _, a := range args {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

func (s *Service) setURI(uri, metaData string) {
	s.mu.Lock()
	s.uri = uri
	s.uriMetaData = metaData
	s.mu.Unlock()
	s.publishLastChange()
}

func (s *Service) setTransportState(state string) {
	s.mu.Lock()
	changed := s.transportState != state
	s.transportState = state
	s.mu.Unlock()
	if changed {
		s.publishLastChange()
	}
}

func (s *Service) publishLastChange() {
	if s.publisher == nil {
		return
	}
	s.mu.Lock()
	state := s.transportState
	s.mu.Unlock()
	s.publisher.AddChange(s.serviceName, NamespaceAbbrev, func(w io.Writer, _ any) (int, error) {
		total := 0
		n, err := xmlio.Nested(w, "", "InstanceID", `val="0"`, func(w io.Writer, _ any) (int, error) {
			return xmlio.SelfClosing(w, "", "TransportState", fmt.Sprintf(`val="%s"`, state))
		}, nil)
		total += n
		return total, err
	}, nil)
}
