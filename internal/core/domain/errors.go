package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a categorized validation failure. These codes are
// stable and are suitable for programmatic handling via errors.Is.
type ErrorCode string

const (
	ErrCodeParseFailure       ErrorCode = "parse_failure"
	ErrCodeStructuralMismatch ErrorCode = "structural_mismatch"
	ErrCodeAlgorithmUnsupported ErrorCode = "algorithm_unsupported"
	ErrCodeDigestMismatch     ErrorCode = "digest_mismatch"
	ErrCodeSignatureInvalid   ErrorCode = "signature_invalid"
	ErrCodeTrustFailure       ErrorCode = "trust_failure"
	ErrCodeRevocationFailure  ErrorCode = "revocation_failure"
	ErrCodeTransportFailure   ErrorCode = "transport_failure"
	ErrCodeConfigFailure      ErrorCode = "config_failure"
)

// String returns the error code as a string.
func (c ErrorCode) String() string {
	return string(c)
}

// ValidationError is a structured error with a stable code, a human-readable
// message, and an optional wrapped cause.
type ValidationError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ValidationError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a *ValidationError with the same code, so
// callers can do errors.Is(err, &ValidationError{Code: ErrCodeDigestMismatch}).
func (e *ValidationError) Is(target error) bool {
	var t *ValidationError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

func newError(code ErrorCode, message string) *ValidationError {
	return &ValidationError{Code: code, Message: message}
}

func wrapError(code ErrorCode, message string, cause error) *ValidationError {
	return &ValidationError{Code: code, Message: message, Cause: cause}
}

// ParseFailure reports an XML parse or structural-decoding error.
func ParseFailure(message string, cause error) *ValidationError {
	return wrapError(ErrCodeParseFailure, message, cause)
}

// StructuralMismatch reports a cardinality or schema-shape violation.
func StructuralMismatch(message string) *ValidationError {
	return newError(ErrCodeStructuralMismatch, message)
}

// AlgorithmUnsupported reports an unrecognized signature, digest, or
// canonicalization algorithm URI.
func AlgorithmUnsupported(uri string) *ValidationError {
	return newError(ErrCodeAlgorithmUnsupported, fmt.Sprintf("unsupported algorithm: %s", uri))
}

// DigestMismatch reports a recomputed digest that does not equal a stored value.
func DigestMismatch(what string) *ValidationError {
	return newError(ErrCodeDigestMismatch, fmt.Sprintf("digest mismatch: %s", what))
}

// SignatureInvalid reports a failed RSA signature verification.
func SignatureInvalid(cause error) *ValidationError {
	return wrapError(ErrCodeSignatureInvalid, "signature verification failed", cause)
}

// TrustFailure reports a chain-verification or responder-trust failure.
func TrustFailure(message string) *ValidationError {
	return newError(ErrCodeTrustFailure, message)
}

// RevocationFailure reports an OCSP status, freshness, or nonce failure.
func RevocationFailure(message string) *ValidationError {
	return newError(ErrCodeRevocationFailure, message)
}

// TransportFailure reports a network-layer OCSP exchange failure.
func TransportFailure(cause error) *ValidationError {
	return wrapError(ErrCodeTransportFailure, "OCSP exchange failed", cause)
}

// ConfigFailure reports a missing or unusable OCSP configuration: no entry
// for an issuer CN, a config source that fails to load, or a missing
// collaborator.
func ConfigFailure(message string) *ValidationError {
	return newError(ErrCodeConfigFailure, message)
}

// JoinBatch accumulates a batch's errors into a single error, or nil if the
// batch passed cleanly. The offline validator runs three such batches and
// joins their results into one composite error.
func JoinBatch(errs ...error) error {
	return errors.Join(errs...)
}
