package zymmr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

// Common errors. An *APIError matches the sentinel of its Kind through errors.Is.
var (
	// ErrAuthentication indicates invalid credentials or a session the server rejected
	ErrAuthentication = errors.New("authentication failed")
	// ErrPermission indicates an authenticated user is not allowed to perform the call
	ErrPermission = errors.New("permission denied")
	// ErrNotFound indicates the document or collection does not exist
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates the server rejected the request data
	ErrValidation = errors.New("validation failed")
	// ErrServer indicates the server failed with a 5xx status
	ErrServer = errors.New("server error")
	// ErrConnection indicates a transport-level failure
	ErrConnection = errors.New("connection failed")
	// ErrTimeout indicates a transport failure caused by a timeout
	ErrTimeout = errors.New("request timed out")
	// ErrClientClosed is returned for calls made after Close
	ErrClientClosed = errors.New("client has been closed")
)

// Kind classifies an APIError.
type Kind int

const (
	KindUnknown Kind = iota
	KindAuthentication
	KindPermission
	KindNotFound
	KindValidation
	KindServer
	KindConnection
)

// String returns the string representation of a Kind
func (k Kind) String() string {
	switch k {
	case KindAuthentication:
		return "authentication"
	case KindPermission:
		return "permission"
	case KindNotFound:
		return "not found"
	case KindValidation:
		return "validation"
	case KindServer:
		return "server"
	case KindConnection:
		return "connection"
	default:
		return "unknown"
	}
}

// APIError is the single error type returned by the client for failed calls.
type APIError struct {
	Kind       Kind
	StatusCode int    // 0 for transport failures
	Message    string // server message, when the response carried one
	ExcType    string // Frappe exception class, e.g. "ValidationError"
	RequestID  string

	// SessionExpired is set when the server signalled that the session cookie
	// is no longer valid, as opposed to rejecting the credentials.
	SessionExpired bool
	// Timeout is set for connection failures caused by a timeout.
	Timeout bool

	Err error
}

// Error implements the error interface
func (e *APIError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "zymmr %s error", e.Kind)
	if e.StatusCode > 0 {
		fmt.Fprintf(&sb, ": status %d", e.StatusCode)
	}
	switch {
	case e.Message != "":
		sb.WriteString(": " + e.Message)
	case e.Err != nil:
		sb.WriteString(": " + e.Err.Error())
	}
	if e.RequestID != "" {
		fmt.Fprintf(&sb, " (request_id: %s)", e.RequestID)
	}
	return sb.String()
}

// Unwrap returns the underlying transport error, if any.
func (e *APIError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for sentinel error matching.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrAuthentication:
		return e.Kind == KindAuthentication
	case ErrPermission:
		return e.Kind == KindPermission
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrValidation:
		return e.Kind == KindValidation
	case ErrServer:
		return e.Kind == KindServer
	case ErrConnection:
		return e.Kind == KindConnection
	case ErrTimeout:
		return e.Timeout
	}
	return false
}

// IsNotFound checks if the error indicates a missing document or collection
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAuthError checks if the error indicates an authentication failure
func IsAuthError(err error) bool {
	return errors.Is(err, ErrAuthentication)
}

// IsPermissionError checks if the error indicates a forbidden call
func IsPermissionError(err error) bool {
	return errors.Is(err, ErrPermission)
}

// IsValidationError checks if the error indicates rejected request data
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsServerError checks if the error indicates a 5xx failure
func IsServerError(err error) bool {
	return errors.Is(err, ErrServer)
}

// IsConnectionError checks if the error indicates a transport failure
func IsConnectionError(err error) bool {
	return errors.Is(err, ErrConnection)
}

// kindForStatus maps an HTTP status to an error kind. Login rejections are
// always authentication failures, never permission ones.
func kindForStatus(status int, login bool) Kind {
	switch {
	case status == http.StatusUnauthorized:
		return KindAuthentication
	case status == http.StatusForbidden:
		if login {
			return KindAuthentication
		}
		return KindPermission
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusRequestTimeout:
		return KindConnection
	case status == http.StatusTooManyRequests:
		return KindServer
	case status >= 500:
		return KindServer
	case status >= 400:
		return KindValidation
	default:
		return KindUnknown
	}
}

// frappeError is the error envelope Frappe returns for failed calls.
type frappeError struct {
	Message        json.RawMessage `json:"message"`
	Exception      string          `json:"exception"`
	ExcType        string          `json:"exc_type"`
	ServerMessages string          `json:"_server_messages"`
	SessionExpired any             `json:"session_expired"`
}

// newHTTPError translates a non-2xx response into an APIError.
func newHTTPError(status int, body []byte, requestID string, login bool) *APIError {
	apiErr := &APIError{
		Kind:       kindForStatus(status, login),
		StatusCode: status,
		RequestID:  requestID,
	}

	var fe frappeError
	if err := json.Unmarshal(body, &fe); err != nil {
		apiErr.Message = strings.TrimSpace(truncate(string(body), 512))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(status)
		}
		apiErr.SessionExpired = !login && status == http.StatusUnauthorized
		return apiErr
	}

	apiErr.ExcType = fe.ExcType
	apiErr.Message = fe.message()
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}

	if !login && (status == http.StatusUnauthorized || truthy(fe.SessionExpired)) {
		apiErr.Kind = KindAuthentication
		apiErr.SessionExpired = true
	}

	return apiErr
}

// message picks the most specific human-readable text in the envelope.
func (fe frappeError) message() string {
	if msgs := parseServerMessages(fe.ServerMessages); len(msgs) > 0 {
		return strings.Join(msgs, "; ")
	}

	if len(fe.Message) > 0 {
		var s string
		if err := json.Unmarshal(fe.Message, &s); err == nil && s != "" {
			return s
		}
	}

	if fe.Exception != "" {
		// "frappe.exceptions.ValidationError: Title is required"
		if _, after, ok := strings.Cut(fe.Exception, ": "); ok {
			return after
		}
		return fe.Exception
	}

	return ""
}

// parseServerMessages decodes Frappe's _server_messages field, a JSON encoded
// list whose items are themselves JSON encoded objects with a "message" key.
func parseServerMessages(raw string) []string {
	if raw == "" {
		return nil
	}

	var items []string
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil
	}

	msgs := make([]string, 0, len(items))
	for _, item := range items {
		var m struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal([]byte(item), &m); err == nil && m.Message != "" {
			msgs = append(msgs, m.Message)
			continue
		}
		if item != "" {
			msgs = append(msgs, item)
		}
	}
	return msgs
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != "" && t != "0" && !strings.EqualFold(t, "false")
	default:
		return true
	}
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
