package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks failures caused by bad or incomplete caller input.
	ErrValidation = errors.New("validation error")
	// ErrRemote marks failures of the remote workflow engine or its transport.
	ErrRemote = errors.New("remote engine error")
	// ErrNotFound marks lookups of entities that do not exist locally or remotely.
	ErrNotFound = errors.New("not found")
	// ErrConsistency marks local mirror states that violate an invariant.
	ErrConsistency = errors.New("consistency error")
	// ErrConfiguration marks missing or unusable configuration.
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrRemote
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
