// Package rendering is a demo RenderingControl:1 service implementation
// for the dlnahost example binary: it answers GetVolume/SetVolume
// over the action pipeline and publishes a LastChange event through the
// Device Subscription Manager whenever the volume changes.
package rendering

import (
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/brightgrove/dlnacore/internal/soap"
	"github.com/brightgrove/dlnacore/internal/upnp"
	"github.com/brightgrove/dlnacore/internal/xmlio"
)

const (
	ServiceType     = "urn:schemas-upnp-org:service:RenderingControl:1"
	ServiceID       = "urn:upnp-org:serviceId:RenderingControl"
	NamespaceAbbrev = "RCS"
)

// Publisher is the subset of host.Host a Service needs to announce
// volume changes; satisfied by *host.Host without an import cycle.
type Publisher interface {
	AddChange(serviceName, nsAbbrev string, write xmlio.NestedWriter, ref any)
}

// Service holds the mutable RenderingControl state for a single hosted
// instance (InstanceID 0 only; multi-instance rendering is out of scope
// for this demo).
type Service struct {
	mu     sync.Mutex
	volume int
	muted  bool

	publisher   Publisher
	serviceName string
}

// New returns a Service starting at the given volume (0-100), publishing
// changes through pub under the service named serviceName (the name
// passed to upnp.Service.Name / host.Host.AddChange).
func New(pub Publisher, serviceName string, initialVolume int) *Service {
	return &Service{publisher: pub, serviceName: serviceName, volume: initialVolume}
}

// SCPD describes GetVolume, SetVolume, GetMute, and SetMute plus their
// backing state variables.
func SCPD() *upnp.SCPD {
	return &upnp.SCPD{
		Actions: []upnp.Action{
			{Name: "GetVolume", Arguments: []upnp.Argument{
				{Name: "InstanceID", Direction: "in", RelatedStateVariable: "A_ARG_TYPE_InstanceID"},
				{Name: "Channel", Direction: "in", RelatedStateVariable: "A_ARG_TYPE_Channel"},
				{Name: "CurrentVolume", Direction: "out", RelatedStateVariable: "Volume"},
			}},
			{Name: "SetVolume", Arguments: []upnp.Argument{
				{Name: "InstanceID", Direction: "in", RelatedStateVariable: "A_ARG_TYPE_InstanceID"},
				{Name: "Channel", Direction: "in", RelatedStateVariable: "A_ARG_TYPE_Channel"},
				{Name: "DesiredVolume", Direction: "in", RelatedStateVariable: "Volume"},
			}},
			{Name: "GetMute", Arguments: []upnp.Argument{
				{Name: "InstanceID", Direction: "in", RelatedStateVariable: "A_ARG_TYPE_InstanceID"},
				{Name: "Channel", Direction: "in", RelatedStateVariable: "A_ARG_TYPE_Channel"},
				{Name: "CurrentMute", Direction: "out", RelatedStateVariable: "Mute"},
			}},
			{Name: "SetMute", Arguments: []upnp.Argument{
				{Name: "InstanceID", Direction: "in", RelatedStateVariable: "A_ARG_TYPE_InstanceID"},
				{Name: "Channel", Direction: "in", RelatedStateVariable: "A_ARG_TYPE_Channel"},
				{Name: "DesiredMute", Direction: "in", RelatedStateVariable: "Mute"},
			}},
		},
		StateVariables: []upnp.StateVariable{
			{Name: "Volume", DataType: "ui2", SendEvents: false},
			{Name: "Mute", DataType: "boolean", SendEvents: false},
			{Name: "LastChange", DataType: "string", SendEvents: true},
			{Name: "A_ARG_TYPE_InstanceID", DataType: "ui4", SendEvents: false},
			{Name: "A_ARG_TYPE_Channel", DataType: "string", SendEvents: false},
		},
	}
}

// Handler returns the soap.ActionHandler to register as the service's
// control-URL handler.
func (s *Service) Handler() soap.ActionHandler {
	return func(action string, args []soap.Arg) ([]soap.Arg, error) {
		switch action {
		case "GetVolume":
			s.mu.Lock()
			v := s.volume
			s.mu.Unlock()
			return []soap.Arg{{Name: "CurrentVolume", Value: strconv.Itoa(v)}}, nil

		case "SetVolume":
			desired, ok := argValue(args, "DesiredVolume")
			if !ok {
				return nil, &soap.Fault{ErrorCode: "402", ErrorDescription: "Invalid Args"}
			}
			n, err := strconv.Atoi(desired)
			if err != nil || n < 0 || n > 100 {
				return nil, &soap.Fault{ErrorCode: "601", ErrorDescription: "Parameter Out of Range"}
			}
			s.setVolume(n)
			return nil, nil

		case "GetMute":
			s.mu.Lock()
			m := s.muted
			s.mu.Unlock()
			return []soap.Arg{{Name: "CurrentMute", Value: boolArg(m)}}, nil

		case "SetMute":
			desired, ok := argValue(args, "DesiredMute")
			if !ok {
				return nil, &soap.Fault{ErrorCode: "402", ErrorDescription: "Invalid Args"}
			}
			s.setMute(desired == "1" || desired == "true")
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

func boolArg(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func (s *Service) setVolume(v int) {
	s.mu.Lock()
	changed := s.volume != v
	s.volume = v
	s.mu.Unlock()
	if changed {
		s.publishLastChange()
	}
}

func (s *Service) setMute(m bool) {
	s.mu.Lock()
	changed := s.muted != m
	s.muted = m
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
	v, m := s.volume, s.muted
	s.mu.Unlock()
	s.publisher.AddChange(s.serviceName, NamespaceAbbrev, func(w io.Writer, _ any) (int, error) {
		total := 0
		n, err := xmlio.Nested(w, "", "InstanceID", `val="0"`, func(w io.Writer, _ any) (int, error) {
			t := 0
			n, err := xmlio.SelfClosing(w, "", "Volume", fmt.Sprintf(`channel="Master" val="%d"`, v))
			t += n
			if err != nil {
				return t, err
			}
			n, err = xmlio.SelfClosing(w, "", "Mute", fmt.Sprintf(`channel="Master" val="%s"`, boolArg(m)))
			t += n
			return t, err
		}, nil)
		total += n
		return total, err
	}, nil)
}
