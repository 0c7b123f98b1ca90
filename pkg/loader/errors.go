package loader

import "errors"

// ErrNotFound matches every *NotFoundError.
var ErrNotFound = errors.New("template not found")

// NotFoundError reports a name no loader source could satisfy.
type NotFoundError struct{ Name string }

func (e *NotFoundError) Error() string { return "template not found: " + e.Name }

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }
