package moderation

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	ErrInvalidJobID       = errors.New("invalid job id")
	errMissingCredentials = errors.New("classification service credentials are not configured")
)

// ErrAcquisition reports that the media could not be fetched.
type ErrAcquisition struct {
	error
}

func NewErrAcquisition(err error) *ErrAcquisition {
	return &ErrAcquisition{fmt.Errorf("failed to download media: %w", err)}
}

func (e *ErrAcquisition) Unwrap() error {
	return errors.Unwrap(e.error)
}

// ErrDurationExceeded is the only failure resolving a run to the failed status.
type ErrDurationExceeded struct {
	error
	Duration float64
	Limit    float64
}

func NewErrDurationExceeded(duration, limit float64) *ErrDurationExceeded {
	return &ErrDurationExceeded{
		error:    fmt.Errorf("Video too long (%ss). Limit is %ss.", formatSeconds(duration), formatSeconds(limit)),
		Duration: duration,
		Limit:    limit,
	}
}

type ErrProbe struct {
	error
}

func NewErrProbe(err error) *ErrProbe {
	return &ErrProbe{fmt.Errorf("failed to read media metadata: %w", err)}
}

func (e *ErrProbe) Unwrap() error {
	return errors.Unwrap(e.error)
}

type ErrClassificationService struct {
	error
}

func NewErrClassificationService(err error) *ErrClassificationService {
	return &ErrClassificationService{fmt.Errorf("classification service error: %w", err)}
}

func (e *ErrClassificationService) Unwrap() error {
	return errors.Unwrap(e.error)
}

// ErrStage wraps any other failure with the stage it happened in.
type ErrStage struct {
	error
	Stage State
}

func NewErrStage(stage State, err error) *ErrStage {
	return &ErrStage{error: fmt.Errorf("%s: %w", stage, err), Stage: stage}
}

func (e *ErrStage) Unwrap() error {
	return errors.Unwrap(e.error)
}

func IsDurationExceeded(err error) bool {
	var target *ErrDurationExceeded
	return errors.As(err, &target)
}

// isTyped reports whether err already belongs to the stage error taxonomy.
func isTyped(err error) bool {
	var (
		acq   *ErrAcquisition
		dur   *ErrDurationExceeded
		probe *ErrProbe
		cls   *ErrClassificationService
		stage *ErrStage
	)
	return errors.As(err, &acq) || errors.As(err, &dur) || errors.As(err, &probe) ||
		errors.As(err, &cls) || errors.As(err, &stage)
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
