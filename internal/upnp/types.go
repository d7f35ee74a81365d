// Package upnp holds the in-memory device description model: the Device
// and Service types the streaming writer serialises into the root
// description document and each service's SCPD, and the incremental
// parser populates when a control point fetches a remote description.
package upnp

import (
	"net/http"
	"net/url"
	"time"
)

// Icon describes one entry of a device's iconList.
type Icon struct {
	Mime   string
	Width  int
	Height int
	Depth  int
	URL    string
	Bytes  int
}

// SubscriptionState is the control-point-side view of a service's event
// subscription lifecycle.
type SubscriptionState int

const (
	SubNone SubscriptionState = iota
	SubPending
	SubActive
	SubExpired
)

// Service is one entry of a device's serviceList. The three endpoint
// URLs and handlers are either all set (device role) or all empty
// (control-point role, populated by description parse); Registered
// reports whether a service is fully specified.
type Service struct {
	Name        string // short name, e.g. "AVTransport"
	ServiceType string // urn:schemas-upnp-org:service:AVTransport:1
	ServiceID   string // urn:upnp-org:serviceId:AVTransport
	SCPDURL     string
	ControlURL  string
	EventSubURL string

	// NamespaceAbbrev is the LastChange event namespace abbreviation,
	// e.g. "AVT" or "RCS".
	NamespaceAbbrev string

	// SCPDHandler and ControlHandler are supplied by the hosting
	// application; the Device Host sets EventHandler when it registers
	// the service. All three are nil on the control-point side.
	SCPDHandler    http.HandlerFunc
	ControlHandler http.HandlerFunc
	EventHandler   http.HandlerFunc

	// Control-point-only bookkeeping. Active tracks alive/byebye state
	// alongside the owning device's flag.
	Active      bool
	SubState    SubscriptionState
	SID         string
	StartedAt   time.Time
	ConfirmedAt time.Time
	ExpiresAt   time.Time
}

// Registered reports whether the three endpoint URLs and handlers are
// all present, the invariant a device-role service must satisfy before
// it can be hosted.
func (s *Service) Registered() bool {
	return s.SCPDURL != "" && s.ControlURL != "" && s.EventSubURL != "" &&
		s.SCPDHandler != nil && s.ControlHandler != nil && s.EventHandler != nil
}

// Device is the in-memory representation of a UPnP device, constructed
// either directly by the hosting application or by an incremental parse
// of a fetched description document.
type Device struct {
	UDN              string
	DeviceType       string
	FriendlyName     string
	Manufacturer     string
	ManufacturerURL  string
	ModelDescription string
	ModelName        string
	ModelNumber      string
	SerialNumber     string
	UPC              string
	BaseURL          string
	Icon             *Icon
	Services         []*Service
	Active           bool
	DiscoveredAt     time.Time
	LastSeenAt       time.Time
}

// ResolveURL resolves ref against the device's base URL, so the
// relative SCPD/control/event paths a description document carries
// become absolute URLs a client can dial. An unparseable base or ref is
// returned unchanged.
func (d *Device) ResolveURL(ref string) string {
	if ref == "" || d.BaseURL == "" {
		return ref
	}
	base, err := url.Parse(d.BaseURL)
	if err != nil {
		return ref
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(parsed).String()
}

// ServiceByType returns the first service whose ServiceType equals
// serviceType, or nil.
func (d *Device) ServiceByType(serviceType string) *Service {
	for _, s := range d.Services {
		if s.ServiceType == serviceType {
			return s
		}
	}
	return nil
}

// ServiceByID returns the first service whose ServiceID equals id, or
// nil.
func (d *Device) ServiceByID(id string) *Service {
	for _, s := range d.Services {
		if s.ServiceID == id {
			return s
		}
	}
	return nil
}

// Action describes one SCPD actionList entry.
type Action struct {
	Name      string
	Arguments []Argument
}

// Argument describes one SCPD argumentList entry.
type Argument struct {
	Name                 string
	Direction            string // "in" or "out"
	RelatedStateVariable string
}

// StateVariable describes one SCPD serviceStateTable entry.
type StateVariable struct {
	Name          string
	DataType      string
	SendEvents    bool
	AllowedValues []string
}

// SCPD is a service's action list and state variable table.
type SCPD struct {
	Actions        []Action
	StateVariables []StateVariable
}

// ActionByName returns the action named name, or nil.
func (s *SCPD) ActionByName(name string) *Action {
	for i := range s.Actions {
		if s.Actions[i].Name == name {
			return &s.Actions[i]
		}
	}
	return nil
}
