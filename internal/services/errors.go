package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// FailureKind is the typed outcome of a failed handler invocation.
type FailureKind string

const (
	// FailureTransient covers network errors, rate limits, and timeouts.
	FailureTransient FailureKind = "transient"
	// FailurePermanent covers deterministic failures such as missing input
	// or malformed payloads; retrying cannot change the outcome.
	FailurePermanent FailureKind = "permanent"
)

// ErrorClassifier is implemented by errors that know their own failure kind,
// such as HTTP status errors from service clients.
type ErrorClassifier interface {
	ErrorKind() string
}

// Wrap builds an error message that includes handler context while tagging it with
// the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Classify maps a handler error to its failure kind. Unknown errors are
// transient so that an unclassified failure never skips the retry budget.
func Classify(err error) FailureKind {
	if err == nil {
		return FailureTransient
	}
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrConfiguration), errors.Is(err, ErrNotFound):
		return FailurePermanent
	case errors.Is(err, ErrTransient), errors.Is(err, ErrTimeout), errors.Is(err, ErrExternalTool):
		return FailureTransient
	case errors.Is(err, context.DeadlineExceeded):
		return FailureTransient
	}
	var classifier ErrorClassifier
	if errors.As(err, &classifier) {
		switch strings.ToLower(strings.TrimSpace(classifier.ErrorKind())) {
		case "validation", "configuration", "not_found", "permanent":
			return FailurePermanent
		}
	}
	return FailureTransient
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	for _, part := range []string{stage, operation, message} {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
