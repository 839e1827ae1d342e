package detection

import (
	"errors"
	"fmt"
)

// ErrorCode classifies pipeline failures.
type ErrorCode string

const (
	CodeDetectorUnavailable ErrorCode = "DETECTOR_UNAVAILABLE"
	CodeDetectorFailed      ErrorCode = "DETECTOR_FAILED"
	CodeEmptyRegion         ErrorCode = "EMPTY_REGION"
	CodeSuperseded          ErrorCode = "SUPERSEDED"
	CodeInvalidFrame        ErrorCode = "INVALID_FRAME"
)

// Sentinel errors for errors.Is checks.
var (
	ErrDetectorUnavailable = errors.New("detector unavailable")
	ErrEmptyRegion         = errors.New("region has no area")
	ErrSuperseded          = errors.New("request superseded by a newer one")
	ErrInvalidFrame        = errors.New("invalid frame")
)

// Error is a coded failure tied to a tile region.
type Error struct {
	Code    ErrorCode
	Message string
	// Region is the tile index the failure belongs to, or -1 when it is not
	// tied to a tile.
	Region int
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is match an *Error against the sentinel for its code.
func (e *Error) Is(target error) bool {
	switch e.Code {
	case CodeDetectorUnavailable:
		return target == ErrDetectorUnavailable
	case CodeEmptyRegion:
		return target == ErrEmptyRegion
	case CodeSuperseded:
		return target == ErrSuperseded
	case CodeInvalidFrame:
		return target == ErrInvalidFrame
	}
	return false
}

func NewDetectorFailedError(region int, cause error) *Error {
	return &Error{
		Code:    CodeDetectorFailed,
		Message: fmt.Sprintf("detector failed on region %d", region),
		Region:  region,
		Cause:   cause,
	}
}

func NewDetectorUnavailableError(name string, cause error) *Error {
	return &Error{
		Code:    CodeDetectorUnavailable,
		Message: fmt.Sprintf("%s detector is not available", name),
		Region:  -1,
		Cause:   cause,
	}
}

func NewEmptyRegionError(region int) *Error {
	return &Error{
		Code:    CodeEmptyRegion,
		Message: fmt.Sprintf("region %d has no area", region),
		Region:  region,
	}
}

func NewSupersededError(generation uint64) *Error {
	return &Error{
		Code:    CodeSuperseded,
		Message: fmt.Sprintf("generation %d superseded", generation),
		Region:  -1,
	}
}

func NewInvalidFrameError(msg string) *Error {
	return &Error{
		Code:    CodeInvalidFrame,
		Message: msg,
		Region:  -1,
	}
}
