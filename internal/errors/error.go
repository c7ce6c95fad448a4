package errors

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	// common errors
	ErrAccountNotFound   = errors.New("account not found")
	ErrAccountIncomplete = errors.New("account configuration incomplete")
	ErrConnectionTimeout = errors.New("connection timeout")

	// sync errors
	ErrSyncUnavailable = errors.New("backup store unavailable")

	// cache control-flow signal, not a failure
	ErrCacheMiss = errors.New("cache miss")

	// health monitor
	ErrSweepInProgress = errors.New("health sweep already in progress")
)

type AuthReason string

const (
	AuthReasonInvalidGrant AuthReason = "invalid_grant"
	AuthReasonNetwork      AuthReason = "network"
	AuthReasonRateLimited  AuthReason = "rate_limited"
)

// AuthError classifies a failed token acquisition for one account.
type AuthError struct {
	Email  string
	Reason AuthReason
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth failed for %s (%s): %v", e.Email, e.Reason, e.Err)
	}
	return fmt.Sprintf("auth failed for %s (%s)", e.Email, e.Reason)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

func NewAuthError(email string, reason AuthReason, err error) *AuthError {
	return &AuthError{Email: email, Reason: reason, Err: err}
}

func AsAuthError(err error) (*AuthError, bool) {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr, true
	}
	return nil, false
}

func IsInvalidGrant(err error) bool {
	if authErr, ok := AsAuthError(err); ok {
		return authErr.Reason == AuthReasonInvalidGrant
	}
	return false
}

type PoolErrorKind string

const (
	PoolExhausted     PoolErrorKind = "exhausted"
	PoolConnectFailed PoolErrorKind = "connect_failed"
)

// PoolError reports a failure to lend a protocol session.
type PoolError struct {
	Email string
	Kind  PoolErrorKind
	Err   error
}

func (e *PoolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("connection pool %s for %s: %v", e.Kind, e.Email, e.Err)
	}
	return fmt.Sprintf("connection pool %s for %s", e.Kind, e.Email)
}

func (e *PoolError) Unwrap() error {
	return e.Err
}

func NewPoolError(email string, kind PoolErrorKind, err error) *PoolError {
	return &PoolError{Email: email, Kind: kind, Err: err}
}

// ProtocolError wraps a failed mail-protocol operation. Permanent failures are
// surfaced to the caller unmodified; transient ones may be retried locally.
type ProtocolError struct {
	Permanent bool
	Err       error
}

func (e *ProtocolError) Error() string {
	if e.Permanent {
		return fmt.Sprintf("protocol error (permanent): %v", e.Err)
	}
	return fmt.Sprintf("protocol error (transient): %v", e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

func NewProtocolError(permanent bool, err error) *ProtocolError {
	return &ProtocolError{Permanent: permanent, Err: err}
}

func AsProtocolError(err error) (*ProtocolError, bool) {
	var protoErr *ProtocolError
	if errors.As(err, &protoErr) {
		return protoErr, true
	}
	return nil, false
}

// IsAuthFailure reports whether an error from the protocol layer indicates the
// session's credentials were rejected, which calls for a token refresh and a
// single retry at the orchestrator level.
func IsAuthFailure(err error) bool {
	if err == nil {
		return false
	}
	if _, ok := AsAuthError(err); ok {
		return true
	}

	msg := strings.ToLower(err.Error())
	patterns := []string{
		"authenticationfailed",
		"authentication failed",
		"authentication error",
		"invalid credentials",
		"login failed",
		"unauthorized",
		"access denied",
	}
	for _, pattern := range patterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// IsTransient reports whether an error is worth retrying with backoff.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if authErr, ok := AsAuthError(err); ok {
		return authErr.Reason != AuthReasonInvalidGrant
	}
	var protoErr *ProtocolError
	if errors.As(err, &protoErr) {
		return !protoErr.Permanent
	}

	msg := strings.ToLower(err.Error())
	patterns := []string{
		"connection refused",
		"connection reset",
		"connection closed",
		"connection lost",
		"i/o timeout",
		"timeout",
		"temporary failure",
		"network unreachable",
		"no such host",
		"broken pipe",
		"unexpected eof",
	}
	for _, pattern := range patterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
