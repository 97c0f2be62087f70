package gzhmu

import "fmt"

// CredentialError is returned when the supplied username or password
// cannot be used to attempt a login.
type CredentialError struct {
	Message string
}

func NewCredentialError(message string) *CredentialError {
	return &CredentialError{
		Message: message,
	}
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("credential error: %s", e.Message)
}

var (
	ErrEmptyUsername   = NewCredentialError("username is empty")
	ErrEmptyPassword   = NewCredentialError("password is empty")
	ErrInvalidUsername = NewCredentialError("username must be a 10-digit number")
	ErrInvalidPassword = NewCredentialError("password must be at least 8 characters")
)

// NetworkLocationError is returned when the client's network location
// does not match its Web VPN setting.
type NetworkLocationError struct {
	OnCampus bool
}

func (e *NetworkLocationError) Error() string {
	if e.OnCampus {
		return "you are on campus network, there is no need to use Web VPN"
	}
	return "you are not on campus network, please connect to the campus network or use Web VPN"
}

var (
	ErrOnCampusNetwork    = &NetworkLocationError{OnCampus: true}
	ErrNotOnCampusNetwork = &NetworkLocationError{OnCampus: false}
)

// CaptchaError is returned when the captcha image cannot be fetched or
// decoded.
type CaptchaError struct {
	Message string
}

func NewCaptchaError(message string) *CaptchaError {
	return &CaptchaError{
		Message: message,
	}
}

func (e *CaptchaError) Error() string {
	return fmt.Sprintf("captcha error: %s", e.Message)
}

// LoginError is returned when the SSO server rejects a login attempt.
type LoginError struct {
	Message string
}

func NewLoginError(message string) *LoginError {
	return &LoginError{
		Message: message,
	}
}

func (e *LoginError) Error() string {
	return fmt.Sprintf("login failed: %s", e.Message)
}

var (
	ErrIncorrectCredential       = NewLoginError("incorrect username or password")
	ErrIncorrectVerificationCode = NewLoginError("incorrect verification code")
	ErrUsernameNotExists         = NewLoginError("username does not exist")
)

// ConnectionError is returned when connection to a campus service fails.
type ConnectionError struct {
	Message string
	Cause   error
}

func NewConnectionError(message string, cause error) *ConnectionError {
	return &ConnectionError{
		Message: message,
		Cause:   cause,
	}
}

func (e *ConnectionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("connection error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("connection error: %s", e.Message)
}

func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// RequestError is returned when a server responds with an unexpected
// status code.
type RequestError struct {
	Message    string
	StatusCode int
}

func NewRequestError(message string, statusCode int) *RequestError {
	return &RequestError{
		Message:    message,
		StatusCode: statusCode,
	}
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request error (status %d): %s", e.StatusCode, e.Message)
}

// SessionExpiredError is returned when an operation requires an
// authenticated session but the session is missing or expired.
type SessionExpiredError struct{}

func (e *SessionExpiredError) Error() string {
	return "not logged in or login expired"
}

var ErrSessionExpired = &SessionExpiredError{}

// APIError is returned when the reservation API reports a failure
// through its ret field.
type APIError struct {
	Message string
	Ret     int
}

func NewAPIError(message string, ret int) *APIError {
	return &APIError{
		Message: message,
		Ret:     ret,
	}
}

func (e *APIError) Error() string {
	return fmt.Sprintf("reservation API error (ret %d): %s", e.Ret, e.Message)
}

// ReserveError is returned when a reservation request is rejected.
type ReserveError struct {
	Message string
}

func (e *ReserveError) Error() string {
	return fmt.Sprintf("reserve error: %s", e.Message)
}

var (
	ErrReserveConflict = &ReserveError{Message: "the time slot conflicts with an existing reservation"}
	ErrReserveTooShort = &ReserveError{Message: "reservation must be at least 30 minutes"}
)

// NotFoundError is returned when a library, room or seat lookup finds
// no match.
type NotFoundError struct {
	Kind string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.Kind)
}

var (
	ErrLibraryNotFound = &NotFoundError{Kind: "library"}
	ErrRoomNotFound    = &NotFoundError{Kind: "room"}
	ErrSeatNotFound    = &NotFoundError{Kind: "seat"}
)

// SeatNameError is returned when a seat name carries no trailing seat
// number.
type SeatNameError struct {
	Name string
}

func (e *SeatNameError) Error() string {
	return fmt.Sprintf("seat name %q has no trailing seat number", e.Name)
}
