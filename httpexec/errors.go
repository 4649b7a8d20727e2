package httpexec

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies one member of the error taxonomy. Every failure the
// executor produces carries exactly one Kind; callers branch on it to
// decide remediation (retry at a higher level, surface to the user,
// treat a Validation failure differently from a Timeout, and so on).
type Kind uint8

const (
	// KindBadRequest is an HTTP 400 response.
	KindBadRequest Kind = iota + 1
	// KindUnauthorized is an HTTP 401 response.
	KindUnauthorized
	// KindForbidden is an HTTP 403 response.
	KindForbidden
	// KindNotFound is an HTTP 404 response.
	KindNotFound
	// KindInternalServer is an HTTP 500 response.
	KindInternalServer
	// KindServerError is any other non-2xx response.
	KindServerError
	// KindTimeout is a per-attempt timeout with the retry budget exhausted.
	KindTimeout
	// KindAbort is a caller-supplied cancellation. Never retried.
	KindAbort
	// KindConnection is a connect-level transport failure with the retry
	// budget exhausted.
	KindConnection
	// KindParseBody is a response body that could not be decoded.
	KindParseBody
	// KindValidation is a decoded body that failed schema validation.
	KindValidation
	// KindClientError is any other failure raised on the client side.
	KindClientError
)

var kindNames = map[Kind]string{
	KindBadRequest:     "bad_request",
	KindUnauthorized:   "unauthorized",
	KindForbidden:      "forbidden",
	KindNotFound:       "not_found",
	KindInternalServer: "internal_server",
	KindServerError:    "server_error",
	KindTimeout:        "timeout",
	KindAbort:          "abort",
	KindConnection:     "connection",
	KindParseBody:      "parse_body",
	KindValidation:     "validation",
	KindClientError:    "client_error",
}

// String returns the snake_case name of the kind, suitable for metric
// and log labels.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Group is the coarse family a Kind belongs to. Group membership is a
// derived property, not a type hierarchy.
type Group uint8

const (
	// GroupServer covers failures reported by the remote server via an
	// HTTP status code.
	GroupServer Group = iota + 1
	// GroupNetwork covers failures between the client and the server:
	// timeouts, cancellations, connection faults.
	GroupNetwork
	// GroupClient covers failures produced on the client side: decoding,
	// validation, unclassified errors.
	GroupClient
)

var kindGroups = map[Kind]Group{
	KindBadRequest:     GroupServer,
	KindUnauthorized:   GroupServer,
	KindForbidden:      GroupServer,
	KindNotFound:       GroupServer,
	KindInternalServer: GroupServer,
	KindServerError:    GroupServer,
	KindTimeout:        GroupNetwork,
	KindAbort:          GroupNetwork,
	KindConnection:     GroupNetwork,
	KindParseBody:      GroupClient,
	KindValidation:     GroupClient,
	KindClientError:    GroupClient,
}

// Group returns the family the kind belongs to.
func (k Kind) Group() Group {
	return kindGroups[k]
}

// String returns the group name.
func (g Group) String() string {
	switch g {
	case GroupServer:
		return "server"
	case GroupNetwork:
		return "network"
	case GroupClient:
		return "client"
	default:
		return "unknown"
	}
}

// Error is the failure payload of a Result. It is an immutable value
// constructed at classification time.
//
// Response is populated for GroupServer kinds so callers can inspect the
// raw status, headers and body of the failing response. Cause holds the
// originating transport or decode error where one exists.
type Error struct {
	Kind     Kind
	Message  string
	Cause    error
	Response *Response
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap exposes the originating cause to errors.Is / errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// newError builds an Error with a cause chain.
func newError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// kindForStatus maps a non-success HTTP status to its taxonomy member.
// The five statuses with dedicated kinds map exactly; everything else is
// the generic server error.
func kindForStatus(status int) Kind {
	switch status {
	case http.StatusBadRequest:
		return KindBadRequest
	case http.StatusUnauthorized:
		return KindUnauthorized
	case http.StatusForbidden:
		return KindForbidden
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusInternalServerError:
		return KindInternalServer
	default:
		return KindServerError
	}
}

// statusError builds the Error for a non-success response, attaching the
// raw response for caller inspection.
func statusError(resp *Response) *Error {
	return &Error{
		Kind:     kindForStatus(resp.StatusCode),
		Message:  fmt.Sprintf("server returned status %d", resp.StatusCode),
		Response: resp,
	}
}

// timeoutMarker is the fixed reason text carried by the synthetic
// per-attempt timeout cancellation. The classifier keys off the cause
// identity, not this text, but the text is part of the public behavior:
// it is what callers see in a terminal Timeout failure.
const timeoutMarker = "Request timed out"

// errAttemptTimeout is the cancellation cause injected by the per-attempt
// timer. Its identity is what distinguishes the synthetic timeout from a
// caller-supplied cancellation that raced with it.
var errAttemptTimeout = errors.New(timeoutMarker)
