package soap

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client invokes actions over HTTP POST. Every call carries the fixed
// per-call timeout mandated by the concurrency model (default 6000 ms);
// there is no retry here, that policy lives with the caller
// (Control-Point Subscription Manager / application).
type Client struct {
	HTTPClient *http.Client
}

// NewClient returns a Client whose HTTP requests time out after timeout.
func NewClient(timeout time.Duration) *Client {
	return &Client{HTTPClient: &http.Client{Timeout: timeout}}
}

// Execute serialises req, POSTs it to req.ControlURL, and parses the
// reply. An invalid request, a transport error, or a non-200 response
// all yield ActionReply.Valid == false rather than an error return; the
// caller decides whether and how to retry.
func (c *Client) Execute(ctx context.Context, req *ActionRequest) *ActionReply {
	if !req.Valid() {
		return &ActionReply{Valid: false}
	}

	var sized bytes.Buffer
	n, err := WriteRequestEnvelope(&sized, req)
	if err != nil {
		return &ActionReply{Valid: false}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.ControlURL, bytes.NewReader(sized.Bytes()))
	if err != nil {
		return &ActionReply{Valid: false}
	}
	httpReq.Header.Set("Content-Type", "text/xml; charset=\"utf-8\"")
	httpReq.Header.Set("Content-Length", fmt.Sprintf("%d", n))
	httpReq.Header.Set("SOAPACTION", fmt.Sprintf("%q", req.ServiceType()+"#"+req.Action))

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return &ActionReply{Valid: false}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &ActionReply{Valid: false}
	}

	reply := ParseResponse(body)
	if resp.StatusCode != http.StatusOK {
		reply.Valid = false
		if reply.Fault == nil {
			reply.Fault = &Fault{ErrorDescription: resp.Status}
		}
	}
	return reply
}
