package handlebars

import (
	"errors"
	"fmt"
)

var (
	ErrParse         = errors.New("parse error")
	ErrLookup        = errors.New("lookup error")
	ErrUnknownHelper = errors.New("unknown helper")
	ErrConfig        = errors.New("configuration error")
)

// ParseError reports a nesting problem. Name is the offending tag and Index
// its byte offset in the template source.
type ParseError struct {
	Name   string
	Index  int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s at offset %d", e.Reason, e.Index)
}

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// LookupError is returned by strict lookups that cannot resolve Path.
type LookupError struct {
	Path    string
	Segment string
}

func (e *LookupError) Error() string {
	if e.Segment != "" && e.Segment != e.Path {
		return fmt.Sprintf("can not find %q (segment %q) in context", e.Path, e.Segment)
	}
	return fmt.Sprintf("can not find %q in context", e.Path)
}

func (e *LookupError) Is(target error) bool { return target == ErrLookup }

// HelperError names a helper that is not registered.
type HelperError struct {
	Name string
}

func (e *HelperError) Error() string {
	return e.Name + " is not registered as a helper"
}

func (e *HelperError) Is(target error) bool { return target == ErrUnknownHelper }

// ConfigError is returned when an engine option is unusable.
type ConfigError struct {
	Option string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s option: %s", e.Option, e.Reason)
}

func (e *ConfigError) Is(target error) bool { return target == ErrConfig }
