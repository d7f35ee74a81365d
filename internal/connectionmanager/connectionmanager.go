// Package connectionmanager is a demo ConnectionManager:1 service
// implementation for the reference device-hosting binary: it answers
// GetProtocolInfo and GetCurrentConnectionIDs/Info with a single,
// always-open connection. Unlike AVTransport/RenderingControl it
// carries no mutable state and publishes no LastChange events.
package connectionmanager

import (
	"github.com/brightgrove/dlnacore/internal/soap"
	"github.com/brightgrove/dlnacore/internal/upnp"
)

const (
	ServiceType = "urn:schemas-upnp-org:service:ConnectionManager:1"
	ServiceID   = "urn:upnp-org:serviceId:ConnectionManager"
)

// Service answers ConnectionManager actions for a device whose only sink
// protocol is the one given to New.
type Service struct {
	sinkProtocolInfo string
}

// New returns a Service advertising sinkProtocolInfo as its sole
// protocol capability (e.g. "http-get:*:audio/mpeg:*").
func New(sinkProtocolInfo string) *Service {
	return &Service{sinkProtocolInfo: sinkProtocolInfo}
}

// SCPD describes GetProtocolInfo, GetCurrentConnectionIDs, and
// GetCurrentConnectionInfo plus their backing state variables.
func SCPD() *upnp.SCPD {
	return &upnp.SCPD{
		Actions: []upnp.Action{
			{Name: "GetProtocolInfo", Arguments: []upnp.Argument{
				{Name: "Source", Direction: "out", RelatedStateVariable: "SourceProtocolInfo"},
				{Name: "Sink", Direction: "out", RelatedStateVariable: "SinkProtocolInfo"},
			}},
			{Name: "GetCurrentConnectionIDs", Arguments: []upnp.Argument{
				{Name: "ConnectionIDs", Direction: "out", RelatedStateVariable: "CurrentConnectionIDs"},
			}},
			{Name: "GetCurrentConnectionInfo", Arguments: []upnp.Argument{
				{Name: "ConnectionID", Direction: "in", RelatedStateVariable: "A_ARG_TYPE_ConnectionID"},
				{Name: "RcsID", Direction: "out", RelatedStateVariable: "RcsID"},
				{Name: "AVTransportID", Direction: "out", RelatedStateVariable: "AVTransportID"},
				{Name: "ProtocolInfo", Direction: "out", RelatedStateVariable: "A_ARG_TYPE_ProtocolInfo"},
				{Name: "PeerConnectionManager", Direction: "out", RelatedStateVariable: "PeerConnectionManager"},
				{Name: "PeerConnectionID", Direction: "out", RelatedStateVariable: "A_ARG_TYPE_ConnectionID"},
				{Name: "Direction", Direction: "out", RelatedStateVariable: "A_ARG_TYPE_Direction"},
				{Name: "Status", Direction: "out", RelatedStateVariable: "A_ARG_TYPE_ConnectionStatus"},
			}},
		},
		StateVariables: []upnp.StateVariable{
			{Name: "SourceProtocolInfo", DataType: "string", SendEvents: true},
			{Name: "SinkProtocolInfo", DataType: "string", SendEvents: true},
			{Name: "CurrentConnectionIDs", DataType: "string", SendEvents: true},
			{Name: "A_ARG_TYPE_ConnectionStatus", DataType: "string", SendEvents: false},
			{Name: "A_ARG_TYPE_ConnectionManager", DataType: "string", SendEvents: false},
			{Name: "A_ARG_TYPE_Direction", DataType: "string", SendEvents: false},
			{Name: "A_ARG_TYPE_ProtocolInfo", DataType: "string", SendEvents: false},
			{Name: "A_ARG_TYPE_ConnectionID", DataType: "i4", SendEvents: false},
			{Name: "AVTransportID", DataType: "i4", SendEvents: false},
			{Name: "RcsID", DataType: "i4", SendEvents: false},
			{Name: "PeerConnectionManager", DataType: "string", SendEvents: false},
		},
	}
}

// Handler returns the soap.ActionHandler to register as the service's
// control-URL handler. The device exposes exactly one, permanently
// open connection (ID 0).
func (s *Service) Handler() soap.ActionHandler {
	return func(action string, args []soap.Arg) ([]soap.Arg, error) {
		switch action {
		case "GetProtocolInfo":
			return []soap.Arg{
				{Name: "Source", Value: ""},
				{Name: "Sink", Value: s.sinkProtocolInfo},
			}, nil

		case "GetCurrentConnectionIDs":
			return []soap.Arg{{Name: "ConnectionIDs", Value: "0"}}, nil

		case "GetCurrentConnectionInfo":
			return []soap.Arg{
				{Name: "RcsID", Value: "0"},
				{Name: "AVTransportID", Value: "0"},
				{Name: "ProtocolInfo", Value: s.sinkProtocolInfo},
				{Name: "PeerConnectionManager", Value: ""},
				{Name: "PeerConnectionID", Value: "-1"},
				{Name: "Direction", Value: "Input"},
				{Name: "Status", Value: "OK"},
			}, nil

		default:
			return nil, &soap.Fault{ErrorCode: "401", ErrorDescription: "Invalid Action"}
		}
	}
}
