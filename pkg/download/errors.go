package download

import (
	"errors"
	"fmt"
)

type ErrUnsupportedScheme struct {
	error
}

func NewErrUnsupportedScheme(scheme string) *ErrUnsupportedScheme {
	return &ErrUnsupportedScheme{fmt.Errorf("no downloader registered for scheme %q", scheme)}
}

type ErrTooLarge struct {
	error
}

func NewErrTooLarge(limit int64) *ErrTooLarge {
	return &ErrTooLarge{fmt.Errorf("media exceeds the size limit of %d bytes", limit)}
}

type ErrUnsupportedMediaType struct {
	error
}

func NewErrUnsupportedMediaType(mediaType string) *ErrUnsupportedMediaType {
	return &ErrUnsupportedMediaType{fmt.Errorf("unsupported media type %q", mediaType)}
}

// ErrStatus is returned for a non-2xx response.
type ErrStatus struct {
	error
	StatusCode int
}

func NewErrStatus(location string, code int) *ErrStatus {
	return &ErrStatus{error: fmt.Errorf("failed to download %q, status code: %d", location, code), StatusCode: code}
}

func IsTooLarge(err error) bool {
	var target *ErrTooLarge
	return errors.As(err, &target)
}
