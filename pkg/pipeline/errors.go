package pipeline

import (
	"fmt"
	"strings"
)

// NotFoundError reports a missing input resource.
type NotFoundError struct {
	Path string
	Err  error
}

func (e *NotFoundError) Error() string {
	if e == nil {
		return "not found"
	}
	return fmt.Sprintf("input not found: %s", e.Path)
}

func (e *NotFoundError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// FormatError reports unparseable content or an unsupported serialization.
type FormatError struct {
	Format Format
	Detail string
	Err    error
}

func (e *FormatError) Error() string {
	if e == nil {
		return "format error"
	}
	parts := []string{"format error"}
	if e.Format != "" {
		parts = append(parts, "format="+string(e.Format))
	}
	if strings.TrimSpace(e.Detail) != "" {
		parts = append(parts, e.Detail)
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *FormatError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ValidationError blocks the transform in strict mode. It carries the error
// findings that caused the rejection.
type ValidationError struct {
	Findings []Finding
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Findings) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %d error finding(s), first: %s", len(e.Findings), e.Findings[0])
}

// TransformError reports a misconfigured transform policy, e.g. deriving a
// total over a column that does not exist.
type TransformError struct {
	Detail string
}

func (e *TransformError) Error() string {
	if e == nil {
		return "transform error"
	}
	return "transform error: " + e.Detail
}
