package errors

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Kind classifies a failure into the taxonomy the stores act on:
// local gate rejections, session loss, remote rejections and transport
// failures each demand a different reaction at the store boundary.
type Kind int

const (
	// KindNone is the zero kind, carried only by nil errors.
	KindNone Kind = iota
	// KindUnauthenticated: no session present when an authenticated action was attempted.
	KindUnauthenticated
	// KindSessionExpired: token refresh failed and the session was discarded.
	KindSessionExpired
	// KindForbidden: the current identity is not allowed to perform the action.
	KindForbidden
	// KindRejected: the backend answered with a 4xx/5xx status.
	KindRejected
	// KindTransport: the request never produced a response (network, DNS, timeout).
	KindTransport
	// KindConflict: a concurrent mutation against the same record is still in flight.
	KindConflict
	// KindNotFound: the requested record does not exist locally or remotely.
	KindNotFound
	// KindInvalid: the input failed local validation before any network call.
	KindInvalid
	// KindInternal: everything else.
	KindInternal
)

var kindNames = map[Kind]string{
	KindNone:            "none",
	KindUnauthenticated: "unauthenticated",
	KindSessionExpired:  "session_expired",
	KindForbidden:       "forbidden",
	KindRejected:        "rejected",
	KindTransport:       "transport",
	KindConflict:        "conflict",
	KindNotFound:        "not_found",
	KindInvalid:         "invalid",
	KindInternal:        "internal",
}

// String returns the snake_case name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Code returns the canonical HTTP-ish status code for the kind.
func (k Kind) Code() int {
	switch k {
	case KindUnauthenticated, KindSessionExpired:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindInvalid:
		return http.StatusBadRequest
	case KindRejected:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// MarshalJSON encodes the kind as its string name.
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes a kind from its string name.
func (k *Kind) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for kind, n := range kindNames {
		if n == name {
			*k = kind
			return nil
		}
	}
	*k = KindInternal
	return nil
}

// Constructors for the common kinds.

func Unauthenticated(format string, args ...any) *Error {
	return New(KindUnauthenticated, format, args...)
}

func SessionExpired(format string, args ...any) *Error {
	return New(KindSessionExpired, format, args...)
}

func Forbidden(format string, args ...any) *Error {
	return New(KindForbidden, format, args...)
}

func Rejected(format string, args ...any) *Error {
	return New(KindRejected, format, args...)
}

func Transport(format string, args ...any) *Error {
	return New(KindTransport, format, args...)
}

func Conflict(format string, args ...any) *Error {
	return New(KindConflict, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, format, args...)
}

func Invalid(format string, args ...any) *Error {
	return New(KindInvalid, format, args...)
}

func Internal(format string, args ...any) *Error {
	return New(KindInternal, format, args...)
}

// remotePayload is the loose error shape the backend emits: either
// {"detail": "..."} or a field->messages map from serializer validation.
type remotePayload struct {
	Detail  string `json:"detail"`
	Message string `json:"message"`
}

// FromResponse converts a non-2xx backend response into a tagged
// error and closes the body, consuming at most a small prefix of it.
// 2xx responses return nil with the body untouched.
func FromResponse(resp *http.Response) *Error {
	if resp == nil {
		return Transport("no response")
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	detail := readDetail(resp.Body)
	if resp.Body != nil {
		resp.Body.Close()
	}

	kind := KindRejected
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		kind = KindUnauthenticated
	case http.StatusForbidden:
		kind = KindForbidden
	case http.StatusNotFound:
		kind = KindNotFound
	}

	msg := detail
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	return New(kind, "%s", msg).WithCode(resp.StatusCode)
}

// readDetail extracts a human-readable message from an error body.
func readDetail(body io.Reader) string {
	if body == nil {
		return ""
	}

	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(raw) == 0 {
		return ""
	}

	var payload remotePayload
	if err := json.Unmarshal(raw, &payload); err == nil {
		if payload.Detail != "" {
			return payload.Detail
		}
		if payload.Message != "" {
			return payload.Message
		}
	}

	// Serializer errors arrive as {"field": ["msg", ...]}.
	var fields map[string][]string
	if err := json.Unmarshal(raw, &fields); err == nil {
		for field, msgs := range fields {
			if len(msgs) > 0 && msgs[0] != "" {
				return field + ": " + msgs[0]
			}
		}
	}

	return ""
}
