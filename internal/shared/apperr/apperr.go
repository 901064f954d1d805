package apperr

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

const (
	CodeForbidden          = "forbidden"
	CodeNotFound           = "not_found"
	CodeAlreadyExists      = "already_exists"
	CodeAlreadyMember      = "already_member"
	CodeInvalidParticipant = "invalid_participant"
	CodeEmailMismatch      = "email_mismatch"
	CodeUnavailable        = "store_unavailable"
	CodeInvalid            = "invalid_request"
)

// Error is the taxonomy every failure path resolves to. Cause is kept for
// store_unavailable so transient driver errors stay inspectable.
type Error struct {
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

func Forbidden(msg string) *Error          { return &Error{Code: CodeForbidden, Message: msg} }
func NotFound(msg string) *Error           { return &Error{Code: CodeNotFound, Message: msg} }
func AlreadyExists(msg string) *Error      { return &Error{Code: CodeAlreadyExists, Message: msg} }
func AlreadyMember(msg string) *Error      { return &Error{Code: CodeAlreadyMember, Message: msg} }
func InvalidParticipant(msg string) *Error { return &Error{Code: CodeInvalidParticipant, Message: msg} }
func EmailMismatch(msg string) *Error      { return &Error{Code: CodeEmailMismatch, Message: msg} }
func Invalid(msg string) *Error            { return &Error{Code: CodeInvalid, Message: msg} }

func Unavailable(msg string, cause error) *Error {
	return &Error{Code: CodeUnavailable, Message: msg, Cause: cause}
}

// Code extracts the taxonomy code, or "" for a foreign error.
func Code(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// Status maps a taxonomy error to an HTTP status code.
func Status(err error) int {
	switch Code(err) {
	case CodeForbidden, CodeInvalidParticipant, CodeEmailMismatch:
		return fiber.StatusForbidden
	case CodeNotFound:
		return fiber.StatusNotFound
	case CodeAlreadyExists, CodeAlreadyMember:
		return fiber.StatusConflict
	case CodeUnavailable:
		return fiber.StatusServiceUnavailable
	case CodeInvalid:
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}
