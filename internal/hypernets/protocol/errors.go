package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrSequenceMissing   = errors.New("sequence file not found")
	ErrUndefinedVariable = errors.New("flag variable not defined")
	ErrRequestBeforeGeom = errors.New("request before any geometry")
)

// ParseError locates a problem in a sequence file
type ParseError struct {
	File string
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s:%d: %v", e.File, e.Line, e.Err)
	}
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func (e *ParseError) Is(target error) bool {
	_, ok := target.(*ParseError)
	return ok
}
