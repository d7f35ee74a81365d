package soap

import (
	"fmt"
	"io"
	"net/http"
)

// ActionHandler is the application-registered entry point for one
// service's control URL: it receives the action name and parsed
// arguments and returns the result arguments to echo back, or an error
// to surface as a UPnP fault.
type ActionHandler func(action string, args []Arg) ([]Arg, error)

// Dispatch reads an inbound control POST body, parses the action
// request, invokes handler, and writes the SOAP response (or fault)
// envelope to w with the matching Content-Length and status code.
// serviceType is the xmlns:u of both the request and the response.
func Dispatch(w http.ResponseWriter, r *http.Request, serviceType string, handler ActionHandler) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeFault(w, &Fault{ErrorCode: "402", ErrorDescription: "Invalid Args"})
		return
	}

	action, args, ok := ParseRequest(body)
	if !ok {
		writeFault(w, &Fault{ErrorCode: "401", ErrorDescription: "Invalid Action"})
		return
	}

	result, err := handler(action, args)
	if err != nil {
		writeFault(w, faultFromError(err))
		return
	}

	n, _ := WriteResponseEnvelope(io.Discard, serviceType, action, result)
	w.Header().Set("Content-Type", "text/xml; charset=\"utf-8\"")
	w.Header().Set("Content-Length", fmt.Sprintf("%d", n))
	w.WriteHeader(http.StatusOK)
	WriteResponseEnvelope(w, serviceType, action, result)
}

func faultFromError(err error) *Fault {
	if f, ok := err.(*Fault); ok {
		return f
	}
	return &Fault{ErrorCode: "501", ErrorDescription: err.Error()}
}

// Error lets *Fault be returned directly from an ActionHandler.
func (f *Fault) Error() string {
	return f.ErrorCode + ": " + f.ErrorDescription
}

func writeFault(w http.ResponseWriter, f *Fault) {
	n, _ := writeFaultEnvelope(io.Discard, f)
	w.Header().Set("Content-Type", "text/xml; charset=\"utf-8\"")
	w.Header().Set("Content-Length", fmt.Sprintf("%d", n))
	w.WriteHeader(http.StatusInternalServerError)
	writeFaultEnvelope(w, f)
}
