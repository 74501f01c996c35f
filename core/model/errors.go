package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies planning failures.
type ErrorKind string

const (
	KindInputInvalid           ErrorKind = "InputInvalid"
	KindNoCoverage             ErrorKind = "NoCoverageAvailable"
	KindInsufficientVisibility ErrorKind = "InsufficientVisibility"
)

// Sentinels matched with errors.Is against any *Error of the same kind.
var (
	ErrInputInvalid           = errors.New("input invalid")
	ErrNoCoverage             = errors.New("no coverage available")
	ErrInsufficientVisibility = errors.New("insufficient visibility")
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindInputInvalid:
		return ErrInputInvalid
	case KindNoCoverage:
		return ErrNoCoverage
	case KindInsufficientVisibility:
		return ErrInsufficientVisibility
	}
	return nil
}

// Error carries the kind of failure and the telescope or tile it concerns.
type Error struct {
	Kind      ErrorKind
	Telescope string
	Tile      string
	Err       error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Telescope != "" {
		msg += " telescope=" + e.Telescope
	}
	if e.Tile != "" {
		msg += " tile=" + e.Tile
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	var errs []error
	if s := e.Kind.sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Invalid builds an InputInvalid error for a telescope (which may be empty).
func Invalid(telescope, format string, args ...any) *Error {
	return &Error{Kind: KindInputInvalid, Telescope: telescope, Err: fmt.Errorf(format, args...)}
}

// NoCoverage builds a NoCoverageAvailable error.
func NoCoverage(telescope, format string, args ...any) *Error {
	return &Error{Kind: KindNoCoverage, Telescope: telescope, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
