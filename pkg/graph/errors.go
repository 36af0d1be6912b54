package graph

import "fmt"

// TransportError wraps a network or connectivity failure. The client does not
// retry; the error surfaces to the caller as-is.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("graph: %s: transport failure: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// EndpointError is a non-2xx, non-304 response from a Graph data-security
// endpoint. Body carries the raw error payload for caller inspection.
type EndpointError struct {
	Op         string
	StatusCode int
	Body       []byte
}

func (e *EndpointError) Error() string {
	return fmt.Sprintf("graph: %s: endpoint returned status %d: %s", e.Op, e.StatusCode, string(e.Body))
}
