package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/propertyhub/propertyhub/internal/credential"
)

// Kind classifies authentication failures.
type Kind string

// Failure kinds surfaced by the Store.
const (
	KindInvalidCredentials Kind = "invalid_credentials"
	KindRateLimited        Kind = "rate_limited"
	KindServerError        Kind = "server_error"
	KindNetwork            Kind = "network"
	KindNoToken            Kind = "no_token"
	KindInvalidData        Kind = "invalid_data"
	KindConflict           Kind = "conflict"
	KindSessionExpired     Kind = "session_expired"
	KindUnknown            Kind = "unknown"
)

// MessageSessionExpired is shown whenever a stored or renewed credential is unusable.
const MessageSessionExpired = "Your session has expired. Please sign in again."

var (
	// ErrRefreshFailed wraps every renewal failure.
	ErrRefreshFailed = errors.New("session: credential refresh failed")
	// ErrSessionClosed indicates the session was cleared while an operation was in flight.
	ErrSessionClosed = errors.New("session: closed")
)

// AuthError is a user-facing authentication failure. Err keeps the original
// detail for logging.
type AuthError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	return e.Message
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is an AuthError of kind k.
func IsKind(err error, k Kind) bool {
	var authErr *AuthError
	return errors.As(err, &authErr) && authErr.Kind == k
}

// StatusCoder is implemented by collaborator errors carrying an HTTP status.
type StatusCoder interface {
	StatusCode() int
}

// UpstreamMessager is implemented by collaborator errors carrying a backend message.
type UpstreamMessager interface {
	UpstreamMessage() string
}

type operation string

const (
	opLogin    operation = "login"
	opRegister operation = "register"
)

func (op operation) networkMessage() string {
	if op == opRegister {
		return "Registration failed. Please check your connection."
	}
	return "Login failed. Please check your connection."
}

func classify(op operation, err error) *AuthError {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr
	}
	var sc StatusCoder
	if !errors.As(err, &sc) {
		return &AuthError{Kind: KindNetwork, Message: op.networkMessage(), Err: err}
	}
	status := sc.StatusCode()
	switch {
	case op == opLogin && status == http.StatusUnauthorized:
		return &AuthError{Kind: KindInvalidCredentials, Message: "Invalid email or password", Err: err}
	case op == opRegister && status == http.StatusBadRequest:
		return &AuthError{Kind: KindInvalidData, Message: "Invalid user data. Please check your information.", Err: err}
	case op == opRegister && status == http.StatusConflict:
		return &AuthError{Kind: KindConflict, Message: "Username or email already exists.", Err: err}
	case status == http.StatusTooManyRequests && op == opRegister:
		return &AuthError{Kind: KindRateLimited, Message: "Too many registration attempts. Please try again later.", Err: err}
	case status == http.StatusTooManyRequests:
		return &AuthError{Kind: KindRateLimited, Message: "Too many login attempts. Please try again later.", Err: err}
	case status >= http.StatusInternalServerError:
		return &AuthError{Kind: KindServerError, Message: "Server error. Please try again later.", Err: err}
	}
	msg := op.networkMessage()
	var um UpstreamMessager
	if errors.As(err, &um) && strings.TrimSpace(um.UpstreamMessage()) != "" {
		msg = um.UpstreamMessage()
	}
	return &AuthError{Kind: KindUnknown, Message: msg, Err: err}
}

func expired(err error) *AuthError {
	return &AuthError{Kind: KindSessionExpired, Message: MessageSessionExpired, Err: err}
}

// IsNetwork reports whether err stems from transport failure or timeout.
func IsNetwork(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded)
}

func refreshFailure(err error) error {
	var decodeErr *credential.DecodeError
	if errors.As(err, &decodeErr) {
		return fmt.Errorf("%w: %w", ErrRefreshFailed, expired(err))
	}
	return fmt.Errorf("%w: %w", ErrRefreshFailed, err)
}
