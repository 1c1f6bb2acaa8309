package policetocitizen

import (
	"fmt"
	"net/http"
)

type FailureKind string

const (
	InvalidParameter  FailureKind = "invalid_parameter"
	ConnectionError   FailureKind = "connection_error"
	Timeout           FailureKind = "timeout"
	HttpError         FailureKind = "http_error"
	MalformedResponse FailureKind = "malformed_response"
	Blocked           FailureKind = "blocked"
)

// Failure is the classified outcome of an attempt that did not yield a
// usable result set. It keeps everything the debug bundle needs:
// which transport was used, the raw status/headers/body and a
// human-readable reason.
type Failure struct {
	Kind    FailureKind
	Method  Transport
	Status  int
	Headers http.Header
	Body    string
	Reason  string
}

func (f *Failure) Error() string {
	if f.Status != 0 {
		return fmt.Sprintf("%s (status %d): %s", f.Kind, f.Status, f.Reason)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Reason)
}
