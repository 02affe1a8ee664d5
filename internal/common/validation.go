package common

import (
	"fmt"
	"regexp"
	"strings"
)

// ValidationError represents validation failures
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s %s (got %v)", e.Field, e.Message, e.Value)
}

// Validator collects validation failures across several fields.
type Validator struct {
	errors []ValidationError
}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{
		errors: make([]ValidationError, 0),
	}
}

// Field validates a field and collects errors
func (v *Validator) Field(fieldName string, value interface{}, rules ...ValidationRule) *Validator {
	for _, rule := range rules {
		if err := rule(fieldName, value); err != nil {
			v.errors = append(v.errors, *err)
		}
	}
	return v
}

// HasErrors returns true if there are validation errors
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Errors returns all validation errors
func (v *Validator) Errors() []ValidationError {
	return v.errors
}

// ErrorMessage returns a combined error message as string
func (v *Validator) ErrorMessage() string {
	if !v.HasErrors() {
		return ""
	}

	var messages []string
	for _, err := range v.errors {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "; ")
}

// ValidationRule represents a single validation rule
type ValidationRule func(fieldName string, value interface{}) *ValidationError

// Required rejects nil and blank strings.
func Required(fieldName string, value interface{}) *ValidationError {
	if value == nil {
		return &ValidationError{Field: fieldName, Value: value, Message: "is required"}
	}
	if s, ok := value.(string); ok && strings.TrimSpace(s) == "" {
		return &ValidationError{Field: fieldName, Value: value, Message: "is required"}
	}
	return nil
}

var fileSafe = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// FileSafe accepts strings usable as part of a file name.
func FileSafe(fieldName string, value interface{}) *ValidationError {
	s, ok := value.(string)
	if !ok || s == "" {
		return nil
	}
	if !fileSafe.MatchString(s) {
		return &ValidationError{Field: fieldName, Value: value, Message: "may only contain letters, digits, '.', '_' and '-'"}
	}
	return nil
}

// FileSafeItems applies FileSafe to every item of a string list. Items name
// directories, so "." and ".." are rejected as well.
func FileSafeItems(fieldName string, value interface{}) *ValidationError {
	list, _ := value.([]string)
	for _, item := range list {
		if item == "." || item == ".." {
			return &ValidationError{Field: fieldName, Value: value, Message: fmt.Sprintf("item %q is not a directory name", item)}
		}
		if err := FileSafe(fieldName, item); err != nil {
			err.Value = value
			err.Message = fmt.Sprintf("item %q %s", item, err.Message)
			return err
		}
	}
	return nil
}

// NonEmptyList rejects an empty string list.
func NonEmptyList(fieldName string, value interface{}) *ValidationError {
	list, ok := value.([]string)
	if !ok || len(list) == 0 {
		return &ValidationError{Field: fieldName, Value: value, Message: "must list at least one item"}
	}
	return nil
}

// UniqueItems rejects a string list with duplicates.
func UniqueItems(fieldName string, value interface{}) *ValidationError {
	list, _ := value.([]string)
	seen := make(map[string]struct{}, len(list))
	for _, item := range list {
		if _, dup := seen[item]; dup {
			return &ValidationError{Field: fieldName, Value: value, Message: fmt.Sprintf("lists %q twice", item)}
		}
		seen[item] = struct{}{}
	}
	return nil
}

// AtLeast returns a rule requiring an int of at least min.
func AtLeast(min int) ValidationRule {
	return func(fieldName string, value interface{}) *ValidationError {
		n, ok := value.(int)
		if !ok || n < min {
			return &ValidationError{Field: fieldName, Value: value, Message: fmt.Sprintf("must be at least %d", min)}
		}
		return nil
	}
}

// OneOf returns a rule requiring one of the given strings.
func OneOf(allowed ...string) ValidationRule {
	return func(fieldName string, value interface{}) *ValidationError {
		s, _ := value.(string)
		for _, a := range allowed {
			if s == a {
				return nil
			}
		}
		return &ValidationError{Field: fieldName, Value: value, Message: "must be one of " + strings.Join(allowed, ", ")}
	}
}
