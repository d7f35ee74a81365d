package upnp

import (
	"io"

	"github.com/brightgrove/dlnacore/internal/xmlio"
)

// WriteDescription serialises d as a UPnP root device description
// document directly from the model, in a fixed field order, so output is
// byte-stable across calls for the same device. Call once into
// io.Discard to size a Content-Length header, then again into the real
// sink to send.
func WriteDescription(w io.Writer, d *Device) (int, error) {
	total := 0
	n, err := xmlio.WritePreamble(w)
	total += n
	if err != nil {
		return total, err
	}

	n, err = xmlio.Nested(w, "", "root", `xmlns="urn:schemas-upnp-org:device-1-0"`, writeRootBody, d)
	total += n
	return total, err
}

func writeRootBody(w io.Writer, ctx any) (int, error) {
	d := ctx.(*Device)
	total := 0

	n, err := xmlio.Nested(w, "", "specVersion", "", writeSpecVersion, nil)
	total += n
	if err != nil {
		return total, err
	}

	if d.BaseURL != "" {
		n, err = xmlio.Leaf(w, "URLBase", d.BaseURL)
		total += n
		if err != nil {
			return total, err
		}
	}

	n, err = xmlio.Nested(w, "", "device", "", writeDeviceBody, d)
	total += n
	return total, err
}

func writeSpecVersion(w io.Writer, ctx any) (int, error) {
	total := 0
	n, err := xmlio.LeafInt(w, "major", 1)
	total += n
	if err != nil {
		return total, err
	}
	n, err = xmlio.LeafInt(w, "minor", 0)
	total += n
	return total, err
}

func writeDeviceBody(w io.Writer, ctx any) (int, error) {
	d := ctx.(*Device)
	total := 0

	fields := []struct{ name, value string }{
		{"deviceType", d.DeviceType},
		{"friendlyName", d.FriendlyName},
		{"manufacturer", d.Manufacturer},
		{"manufacturerURL", d.ManufacturerURL},
		{"modelDescription", d.ModelDescription},
		{"modelName", d.ModelName},
		{"modelNumber", d.ModelNumber},
		{"serialNumber", d.SerialNumber},
		{"UDN", d.UDN},
		{"UPC", d.UPC},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		n, err := xmlio.Leaf(w, f.name, f.value)
		total += n
		if err != nil {
			return total, err
		}
	}

	if d.Icon != nil {
		n, err := xmlio.Nested(w, "", "iconList", "", writeIconList, d.Icon)
		total += n
		if err != nil {
			return total, err
		}
	}

	if len(d.Services) > 0 {
		n, err := xmlio.Nested(w, "", "serviceList", "", writeServiceList, d.Services)
		total += n
		if err != nil {
			return total, err
		}
	}

	return total, nil
}

func writeIconList(w io.Writer, ctx any) (int, error) {
	icon := ctx.(*Icon)
	return xmlio.Nested(w, "", "icon", "", func(w io.Writer, _ any) (int, error) {
		total := 0
		n, err := xmlio.Leaf(w, "mimetype", icon.Mime)
		total += n
		if err != nil {
			return total, err
		}
		n, err = xmlio.LeafInt(w, "width", icon.Width)
		total += n
		if err != nil {
			return total, err
		}
		n, err = xmlio.LeafInt(w, "height", icon.Height)
		total += n
		if err != nil {
			return total, err
		}
		n, err = xmlio.LeafInt(w, "depth", icon.Depth)
		total += n
		if err != nil {
			return total, err
		}
		n, err = xmlio.Leaf(w, "url", icon.URL)
		total += n
		return total, err
	}, nil)
}

func writeServiceList(w io.Writer, ctx any) (int, error) {
	services := ctx.([]*Service)
	total := 0
	for _, svc := range services {
		n, err := xmlio.Nested(w, "", "service", "", writeServiceEntry, svc)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func writeServiceEntry(w io.Writer, ctx any) (int, error) {
	svc := ctx.(*Service)
	total := 0
	fields := []struct{ name, value string }{
		{"serviceType", svc.ServiceType},
		{"serviceId", svc.ServiceID},
		{"SCPDURL", svc.SCPDURL},
		{"controlURL", svc.ControlURL},
		{"eventSubURL", svc.EventSubURL},
	}
	for _, f := range fields {
		n, err := xmlio.Leaf(w, f.name, f.value)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// ContentLength returns the byte length WriteDescription would produce
// for d, by writing into io.Discard first.
func ContentLength(d *Device) int {
	n, _ := WriteDescription(io.Discard, d)
	return n
}
