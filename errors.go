package gatekeeper

import "net/http"

// ErrorID is a stable, machine-readable identifier for an admission
// pipeline rejection. Clients should switch on ErrorID rather than on the
// human-readable message, which may change wording over time.
type ErrorID string

const (
	UnauthorizedApp          ErrorID = "unauthorizedApp"
	UnauthorizedRequest      ErrorID = "unauthorizedRequest"
	InvalidRequest           ErrorID = "invalidRequest"
	MissingRequiredHeaders   ErrorID = "missingRequiredHeaders"
	MissingJSONBody          ErrorID = "missingJsonBody"
	InvalidJSONBody          ErrorID = "invalidJsonBody"
	InvalidRequestParameters ErrorID = "invalidRequestParameters"
	InsecureProtocol         ErrorID = "insecureProtocol"
	UnknownError             ErrorID = "unknownError"
)

// statusForID maps a stable error ID to the HTTP status it is sent with.
func statusForID(id ErrorID) int {
	switch id {
	case InsecureProtocol:
		return http.StatusForbidden
	case MissingRequiredHeaders, MissingJSONBody, InvalidJSONBody, InvalidRequestParameters:
		return http.StatusBadRequest
	case UnauthorizedApp, InvalidRequest, UnauthorizedRequest:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// Error represents an admission pipeline rejection. It never propagates out
// of a handler; the pipeline catches it and serializes it to the response
// body.
type Error struct {
	ID      ErrorID `json:"-"`
	Message string  `json:"-"`

	status int
}

// Error satisfies the stdlib error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// StatusCode returns the HTTP status this error is sent with.
func (e *Error) StatusCode() int {
	if e == nil {
		return http.StatusInternalServerError
	}
	return e.status
}

func newError(id ErrorID, message string) *Error {
	return &Error{ID: id, Message: message, status: statusForID(id)}
}

// NewUnauthorizedAppError builds the error returned when the API key does
// not resolve to a known application.
func NewUnauthorizedAppError(message string) *Error {
	return newError(UnauthorizedApp, message)
}

// NewUnauthorizedRequestError builds the error returned when the
// authorization gate denies the caller's effective access level.
func NewUnauthorizedRequestError(message string) *Error {
	return newError(UnauthorizedRequest, message)
}

// NewInvalidRequestError builds the error returned for freshness failures,
// replay hits, and signature mismatches.
func NewInvalidRequestError(message string) *Error {
	return newError(InvalidRequest, message)
}

// NewMissingRequiredHeadersError builds the error returned when a required
// header is absent or empty.
func NewMissingRequiredHeadersError(message string) *Error {
	return newError(MissingRequiredHeaders, message)
}

// NewMissingJSONBodyError builds the error returned when an endpoint
// requires a JSON body and none, or an empty object, was sent.
func NewMissingJSONBodyError(message string) *Error {
	return newError(MissingJSONBody, message)
}

// NewInvalidJSONBodyError builds the error returned when the configured
// body validator rejects a non-empty body.
func NewInvalidJSONBodyError(message string) *Error {
	return newError(InvalidJSONBody, message)
}

// NewInvalidRequestParametersError builds the error returned for missing or
// invalid query parameters.
func NewInvalidRequestParametersError(message string) *Error {
	return newError(InvalidRequestParameters, message)
}

// NewInsecureProtocolError builds the error returned when a request arrives
// over plaintext HTTP outside of developer mode.
func NewInsecureProtocolError(message string) *Error {
	return newError(InsecureProtocol, message)
}

// NewUnknownError builds the error returned when a handler panics or
// returns an unrecognized error. message is redacted to a generic string
// unless developerMode is enabled, so internal details never leak to
// callers in production.
func NewUnknownError(message string, developerMode bool) *Error {
	if !developerMode {
		message = "an internal error occurred"
	}
	return newError(UnknownError, message)
}

// envelope is the JSON shape every rejected request receives.
type envelope struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Error   envelopeError `json:"error"`
}

type envelopeError struct {
	ID      ErrorID `json:"id"`
	Message string  `json:"message"`
}

func newEnvelope(err *Error) envelope {
	return envelope{
		Success: false,
		Message: err.Message,
		Error: envelopeError{
			ID:      err.ID,
			Message: err.Message,
		},
	}
}
