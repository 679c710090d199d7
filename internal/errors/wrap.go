package errors

import (
	"github.com/cockroachdb/errors"
)

// sentinelByCode resolves an error code to its sentinel
var sentinelByCode = map[string]*InternalError{
	ErrCodeNotFound:            ErrNotFound,
	ErrCodeAlreadyExists:       ErrAlreadyExists,
	ErrCodeVersionConflict:     ErrVersionConflict,
	ErrCodeValidation:          ErrValidation,
	ErrCodeInvalidOperation:    ErrInvalidOperation,
	ErrCodePermissionDenied:    ErrPermissionDenied,
	ErrCodePaymentDeclined:     ErrPaymentDeclined,
	ErrCodeProviderUnavailable: ErrProviderUnavailable,
	ErrCodeInvalidSignature:    ErrInvalidSignature,
	ErrCodeWebhookReplay:       ErrWebhookReplay,
	ErrCodeMalformedWebhook:    ErrMalformedWebhook,
	ErrCodeDatabase:            ErrDatabase,
	ErrCodeSystemError:         ErrSystem,
}

// Wrap wraps an error with a code and message while preserving the cause.
// Unknown codes fall back to the system error sentinel.
func Wrap(err error, code string, message string) error {
	if err == nil {
		return nil
	}
	sentinel, ok := sentinelByCode[code]
	if !ok {
		sentinel = ErrSystem
	}
	return errors.Mark(errors.WithMessage(err, message), sentinel)
}

// Wrapf wraps an error with a formatted message
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, format, args...)
}
