package upnp

import (
	"strconv"
	"strings"

	"github.com/brightgrove/dlnacore/internal/xmlio"
)

// ParseDescription runs the incremental XML parser over a fetched
// device description document and builds a Device. Unknown fields are
// dropped; a service accumulator is flushed when the next service starts
// and at the end of the document.
// baseURL is used when the document has no URLBase.
func ParseDescription(doc []byte, baseURL string) *Device {
	p := xmlio.NewParser()
	p.Write(doc)

	d := &Device{BaseURL: baseURL}
	var svc *Service
	flushService := func() {
		if svc != nil {
			d.Services = append(d.Services, svc)
			svc = nil
		}
	}

	var ev xmlio.Event

	for p.Next(&ev) {
		path := strings.Join(ev.Path, "/")

		if ev.Kind == xmlio.EventStart {
			if path == "root/device/serviceList/service" {
				flushService()
				svc = &Service{}
			}
			continue
		}
		if ev.Kind != xmlio.EventText {
			continue
		}

		switch {
		case path == "root/URLBase":
			d.BaseURL = ev.Text
		case path == "root/device/deviceType":
			d.DeviceType = ev.Text
		case path == "root/device/friendlyName":
			d.FriendlyName = ev.Text
		case path == "root/device/manufacturer":
			d.Manufacturer = ev.Text
		case path == "root/device/manufacturerURL":
			d.ManufacturerURL = ev.Text
		case path == "root/device/modelDescription":
			d.ModelDescription = ev.Text
		case path == "root/device/modelName":
			d.ModelName = ev.Text
		case path == "root/device/modelNumber":
			d.ModelNumber = ev.Text
		case path == "root/device/serialNumber":
			d.SerialNumber = ev.Text
		case path == "root/device/UDN":
			d.UDN = ev.Text
		case path == "root/device/UPC":
			d.UPC = ev.Text

		case path == "root/device/iconList/icon/mimetype":
			d.icon().Mime = ev.Text
		case path == "root/device/iconList/icon/width":
			d.icon().Width = atoi(ev.Text)
		case path == "root/device/iconList/icon/height":
			d.icon().Height = atoi(ev.Text)
		case path == "root/device/iconList/icon/depth":
			d.icon().Depth = atoi(ev.Text)
		case path == "root/device/iconList/icon/url":
			d.icon().URL = ev.Text

		case path == "root/device/serviceList/service/serviceType" && svc != nil:
			svc.ServiceType = ev.Text
		case path == "root/device/serviceList/service/serviceId" && svc != nil:
			svc.ServiceID = ev.Text
		case path == "root/device/serviceList/service/SCPDURL" && svc != nil:
			svc.SCPDURL = ev.Text
		case path == "root/device/serviceList/service/controlURL" && svc != nil:
			svc.ControlURL = ev.Text
		case path == "root/device/serviceList/service/eventSubURL" && svc != nil:
			svc.EventSubURL = ev.Text
		}
	}
	flushService()
	return d
}

func (d *Device) icon() *Icon {
	if d.Icon == nil {
		d.Icon = &Icon{}
	}
	return d.Icon
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// ParseSCPD runs the incremental parser over a fetched SCPD document and
// builds an SCPD model.
func ParseSCPD(doc []byte) *SCPD {
	p := xmlio.NewParser()
	p.Write(doc)

	scpd := &SCPD{}
	var action *Action
	var arg *Argument
	var stateVar *StateVariable
	var ev xmlio.Event

	flushArg := func() {
		if action != nil && arg != nil {
			action.Arguments = append(action.Arguments, *arg)
			arg = nil
		}
	}
	flushAction := func() {
		flushArg()
		if action != nil {
			scpd.Actions = append(scpd.Actions, *action)
			action = nil
		}
	}
	flushStateVar := func() {
		if stateVar != nil {
			scpd.StateVariables = append(scpd.StateVariables, *stateVar)
			stateVar = nil
		}
	}

	for p.Next(&ev) {
		path := strings.Join(ev.Path, "/")

		if ev.Kind == xmlio.EventStart {
			switch path {
			case "scpd/actionList/action":
				flushAction()
				action = &Action{}
			case "scpd/actionList/action/argumentList/argument":
				flushArg()
				arg = &Argument{}
			case "scpd/serviceStateTable/stateVariable":
				flushStateVar()
				stateVar = &StateVariable{SendEvents: strings.Contains(ev.Attrs, `sendEvents="yes"`)}
			}
			continue
		}
		if ev.Kind != xmlio.EventText {
			continue
		}

		switch {
		case path == "scpd/actionList/action/name" && action != nil:
			action.Name = ev.Text
		case path == "scpd/actionList/action/argumentList/argument/name" && arg != nil:
			arg.Name = ev.Text
		case path == "scpd/actionList/action/argumentList/argument/direction" && arg != nil:
			arg.Direction = ev.Text
		case path == "scpd/actionList/action/argumentList/argument/relatedStateVariable" && arg != nil:
			arg.RelatedStateVariable = ev.Text
		case path == "scpd/serviceStateTable/stateVariable/name" && stateVar != nil:
			stateVar.Name = ev.Text
		case path == "scpd/serviceStateTable/stateVariable/dataType" && stateVar != nil:
			stateVar.DataType = ev.Text
		case path == "scpd/serviceStateTable/stateVariable/allowedValueList/allowedValue" && stateVar != nil:
			stateVar.AllowedValues = append(stateVar.AllowedValues, ev.Text)
		}
	}
	flushAction()
	flushStateVar()
	return scpd
}
