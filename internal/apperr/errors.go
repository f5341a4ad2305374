// Package apperr implements the closed error taxonomy every component in
// the hub returns through: a small set of kinds, each with a stable code
// and HTTP status, so callers never need to string-match error messages.
package apperr

import "net/http"

// Kind is the closed set of error categories.
type Kind string

const (
	KindAuthentication Kind = "AUTHENTICATION"
	KindAuthorization  Kind = "AUTHORIZATION"
	KindNotFound       Kind = "NOT_FOUND"
	KindPayment        Kind = "PAYMENT"
	KindConflict       Kind = "CONFLICT"
	KindBusinessState  Kind = "BUSINESS_STATE"
	KindValidation     Kind = "VALIDATION"
	KindInfrastructure Kind = "INFRASTRUCTURE"
)

var kindStatus = map[Kind]int{
	KindAuthentication: http.StatusUnauthorized,
	KindAuthorization:  http.StatusForbidden,
	KindNotFound:       http.StatusNotFound,
	KindPayment:        http.StatusPaymentRequired,
	KindConflict:       http.StatusConflict,
	KindBusinessState:  http.StatusUnprocessableEntity,
	KindValidation:     http.StatusBadRequest,
	KindInfrastructure: http.StatusInternalServerError,
}

// Stable codes, grouped by kind.
const (
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeInvalidToken     = "INVALID_TOKEN"
	CodeInvalidSignature = "INVALID_SIGNATURE"

	CodeForbidden = "FORBIDDEN"

	CodeNotFound = "NOT_FOUND"

	CodeInsufficientFunds = "INSUFFICIENT_FUNDS"

	CodeAlreadySettled      = "ALREADY_SETTLED"
	CodeAlreadyInLobby      = "ALREADY_IN_LOBBY"
	CodeDisplayNameTaken    = "DISPLAY_NAME_TAKEN"
	CodeDuplicateExecution  = "DUPLICATE_EXECUTION"
	CodeConcurrencyConflict = "CONCURRENCY_CONFLICT"

	CodeLobbyFull      = "LOBBY_FULL"
	CodeLobbyNotReady  = "LOBBY_NOT_READY"
	CodeSessionExpired = "SESSION_EXPIRED"
	CodeGameNotActive  = "GAME_NOT_ACTIVE"
	CodeInvalidState   = "INVALID_STATE"

	CodeValidationError = "VALIDATION_ERROR"

	CodeInternalError = "INTERNAL_ERROR"
)

// Error is the single error type every component boundary returns.
type Error struct {
	Kind       Kind              `json:"-"`
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Details    map[string]string `json:"details,omitempty"`
	HTTPStatus int               `json:"-"`
}

func (e *Error) Error() string { return e.Message }

func newErr(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message, HTTPStatus: kindStatus[kind]}
}

// WithDetails attaches field-level or amount detail to an error and
// returns the same error for chaining at the call site.
func (e *Error) WithDetails(details map[string]string) *Error {
	e.Details = details
	return e
}

// Constructors, one per code, so call sites read as a sentence.

func Unauthorized(message string) *Error {
	return newErr(KindAuthentication, CodeUnauthorized, message)
}

func InvalidToken(message string) *Error {
	return newErr(KindAuthentication, CodeInvalidToken, message)
}

func InvalidSignature(message string) *Error {
	return newErr(KindAuthentication, CodeInvalidSignature, message)
}

func Forbidden(message string) *Error {
	return newErr(KindAuthorization, CodeForbidden, message)
}

func NotFound(resource, id string) *Error {
	return newErr(KindNotFound, CodeNotFound, resource+" not found: "+id)
}

func InsufficientFunds(required, available string) *Error {
	return newErr(KindPayment, CodeInsufficientFunds, "insufficient funds").
		WithDetails(map[string]string{"required": required, "available": available})
}

func AlreadySettled(sessionID string) *Error {
	return newErr(KindConflict, CodeAlreadySettled, "session already settled: "+sessionID)
}

func AlreadyInLobby(userID string) *Error {
	return newErr(KindConflict, CodeAlreadyInLobby, "user already in a lobby: "+userID)
}

func DisplayNameTaken(name string) *Error {
	return newErr(KindConflict, CodeDisplayNameTaken, "display name taken: "+name)
}

func DuplicateExecution(message string) *Error {
	return newErr(KindConflict, CodeDuplicateExecution, message)
}

func ConcurrencyConflict(message string) *Error {
	return newErr(KindConflict, CodeConcurrencyConflict, message)
}

func LobbyFull(lobbyID string) *Error {
	return newErr(KindBusinessState, CodeLobbyFull, "lobby full: "+lobbyID)
}

func LobbyNotReady(lobbyID string) *Error {
	return newErr(KindBusinessState, CodeLobbyNotReady, "lobby not ready: "+lobbyID)
}

func SessionExpired(sessionID string) *Error {
	return newErr(KindBusinessState, CodeSessionExpired, "session expired: "+sessionID)
}

func GameNotActive(gameID string) *Error {
	return newErr(KindBusinessState, CodeGameNotActive, "game not active: "+gameID)
}

func InvalidState(message string) *Error {
	return newErr(KindBusinessState, CodeInvalidState, message)
}

func Validation(message string, details map[string]string) *Error {
	return newErr(KindValidation, CodeValidationError, message).WithDetails(details)
}

func Internal(message string) *Error {
	return newErr(KindInfrastructure, CodeInternalError, message)
}

// As extracts an *Error from err if it already carries one.
func As(err error) (*Error, bool) {
	e, ok := err.(*Error)
	return e, ok
}
