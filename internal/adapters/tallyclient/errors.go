package tallyclient

import (
	"errors"
	"fmt"
)

// Sentinel kinds for errors.Is checks.
var (
	ErrTransport         = errors.New("tally service transport error")
	ErrMalformedResponse = errors.New("tally service malformed response")
	ErrApplication       = errors.New("tally service application error")
)

// TransportError is a failed round trip: the request never completed
// (Status 0) or the service answered with a non-success status.
type TransportError struct {
	Endpoint string
	Status   int
	Message  string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s", e.Endpoint, e.Message)
}

// Is matches ErrTransport.
func (e *TransportError) Is(target error) bool { return target == ErrTransport }

func (e *TransportError) Unwrap() error { return e.Err }

// MalformedResponseError is a body that could not be parsed as JSON.
type MalformedResponseError struct {
	Endpoint string
	Status   int
	Err      error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%s: server returned non-JSON (status %d)", e.Endpoint, e.Status)
}

// Is matches ErrMalformedResponse.
func (e *MalformedResponseError) Is(target error) bool { return target == ErrMalformedResponse }

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// ApplicationError is a well-formed success response that does not carry the
// expected payload, usually a business message in place of data.
type ApplicationError struct {
	Endpoint string
	Message  string
}

func (e *ApplicationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Endpoint, e.Message)
}

// Is matches ErrApplication.
func (e *ApplicationError) Is(target error) bool { return target == ErrApplication }

// Kind names the error class for metrics labels.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, ErrApplication):
		return "application"
	case errors.Is(err, ErrTransport):
		return "transport"
	default:
		return "other"
	}
}
