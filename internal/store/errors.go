package store

import (
	"errors"
	"fmt"
)

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrDuplicateKey   = errors.New("already exists")
)

type ErrInvalidSettings struct {
	error
}

func NewErrInvalidSettings(err error) *ErrInvalidSettings {
	return &ErrInvalidSettings{fmt.Errorf("invalid system settings: %w", err)}
}

func (e *ErrInvalidSettings) Unwrap() error {
	return errors.Unwrap(e.error)
}
