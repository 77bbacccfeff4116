package domain

import (
	"errors"
	"fmt"
)

var (
	ErrBidNotFound          = errors.New("bid not found")
	ErrTenderNotFound       = errors.New("tender not found")
	ErrInvalidState         = errors.New("invalid bid state")
	ErrInvalidInput         = errors.New("invalid input")
	ErrReconciliationFailed = errors.New("reconciliation failed")
	ErrTemporary            = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
