package entity

import (
	"context"
	"errors"
)

var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden: not a participant of this conversation")
	ErrSelfConversation = errors.New("cannot start a conversation about your own listing")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrNotFound         = errors.New("not found")
	ErrUniqueViolation  = errors.New("unique constraint violation")
	ErrPersistence      = errors.New("persistence error")
	ErrSubscription     = errors.New("realtime subscription error")
	ErrTimeout          = errors.New("operation timed out")
)

// IsRetryable reports whether the caller may reasonably try the same operation again.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrPersistence) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrSubscription) ||
		errors.Is(err, context.DeadlineExceeded)
}
