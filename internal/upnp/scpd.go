package upnp

import (
	"io"

	"github.com/brightgrove/dlnacore/internal/xmlio"
)

// WriteSCPD serialises scpd as a UPnP SCPD (action list + state variable
// table) document, directly from the model as WriteDescription does.
func WriteSCPD(w io.Writer, scpd *SCPD) (int, error) {
	total := 0
	n, err := xmlio.WritePreamble(w)
	total += n
	if err != nil {
		return total, err
	}

	n, err = xmlio.Nested(w, "", "scpd", `xmlns="urn:schemas-upnp-org:service-1-0"`, writeSCPDBody, scpd)
	total += n
	return total, err
}

func writeSCPDBody(w io.Writer, ctx any) (int, error) {
	scpd := ctx.(*SCPD)
	total := 0

	n, err := xmlio.Nested(w, "", "specVersion", "", writeSpecVersion, nil)
	total += n
	if err != nil {
		return total, err
	}

	n, err = xmlio.Nested(w, "", "actionList", "", writeActionList, scpd.Actions)
	total += n
	if err != nil {
		return total, err
	}

	n, err = xmlio.Nested(w, "", "serviceStateTable", "", writeStateTable, scpd.StateVariables)
	total += n
	return total, err
}

func writeActionList(w io.Writer, ctx any) (int, error) {
	actions := ctx.([]Action)
	total := 0
	for _, a := range actions {
		n, err := xmlio.Nested(w, "", "action", "", writeAction, a)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func writeAction(w io.Writer, ctx any) (int, error) {
	a := ctx.(Action)
	total := 0
	n, err := xmlio.Leaf(w, "name", a.Name)
	total += n
	if err != nil {
		return total, err
	}
	if len(a.Arguments) == 0 {
		return total, nil
	}
	n, err = xmlio.Nested(w, "", "argumentList", "", writeArgumentList, a.Arguments)
	total += n
	return total, err
}

func writeArgumentList(w io.Writer, ctx any) (int, error) {
	args := ctx.([]Argument)
	total := 0
	for _, arg := range args {
		n, err := xmlio.Nested(w, "", "argument", "", writeArgument, arg)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func writeArgument(w io.Writer, ctx any) (int, error) {
	arg := ctx.(Argument)
	total := 0
	n, err := xmlio.Leaf(w, "name", arg.Name)
	total += n
	if err != nil {
		return total, err
	}
	n, err = xmlio.Leaf(w, "direction", arg.Direction)
	total += n
	if err != nil {
		return total, err
	}
	n, err = xmlio.Leaf(w, "relatedStateVariable", arg.RelatedStateVariable)
	total += n
	return total, err
}

func writeStateTable(w io.Writer, ctx any) (int, error) {
	vars := ctx.([]StateVariable)
	total := 0
	for _, v := range vars {
		attrs := `sendEvents="no"`
		if v.SendEvents {
			attrs = `sendEvents="yes"`
		}
		n, err := xmlio.Nested(w, "", "stateVariable", attrs, writeStateVariable, v)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func writeStateVariable(w io.Writer, ctx any) (int, error) {
	v := ctx.(StateVariable)
	total := 0
	n, err := xmlio.Leaf(w, "name", v.Name)
	total += n
	if err != nil {
		return total, err
	}
	n, err = xmlio.Leaf(w, "dataType", v.DataType)
	total += n
	if err != nil {
		return total, err
	}
	if len(v.AllowedValues) == 0 {
		return total, nil
	}
	n, err = xmlio.Nested(w, "", "allowedValueList", "", writeAllowedValues, v.AllowedValues)
	total += n
	return total, err
}

func writeAllowedValues(w io.Writer, ctx any) (int, error) {
	values := ctx.([]string)
	total := 0
	for _, v := range values {
		n, err := xmlio.Leaf(w, "allowedValue", v)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
