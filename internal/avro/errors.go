package avro

import (
	"fmt"
	"strings"
)

// ParseError reports a malformed schema document.
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("parse schema: %v", e.Err)
	}
	return fmt.Sprintf("parse schema %s: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// UnresolvedError reports named references that no parsed document defines.
type UnresolvedError struct {
	Names   []string
	Sources []string
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("undefined name(s) %s in %s",
		strings.Join(e.Names, ", "), strings.Join(e.Sources, ", "))
}

// RedefinitionError reports a full name defined twice with different structure.
type RedefinitionError struct {
	Name    string
	Sources []string
}

func (e *RedefinitionError) Error() string {
	if len(e.Sources) == 0 {
		return fmt.Sprintf("can't redefine %s with a different definition", e.Name)
	}
	return fmt.Sprintf("can't redefine %s with a different definition (%s)",
		e.Name, strings.Join(e.Sources, ", "))
}
