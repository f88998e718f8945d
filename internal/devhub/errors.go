package devhub

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"marketplace/internal/services"
)

// NonField collects errors that belong to the form as a whole.
const NonField = "__all__"

// Common field messages.
const (
	msgRequired     = "This field is required."
	msgInvalidURL   = "Enter a valid URL."
	msgInvalidEmail = "Enter a valid e-mail address."
)

// FormErrors maps field names to validation messages.
type FormErrors map[string][]string

// Add records a message against field.
func (e FormErrors) Add(field, format string, args ...any) {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	e[field] = append(e[field], msg)
}

// Has reports whether field has at least one message.
func (e FormErrors) Has(field string) bool { return len(e[field]) > 0 }

func (e FormErrors) Error() string {
	fields := make([]string, 0, len(e))
	for field := range e {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+strings.Join(e[field], " "))
	}
	return "invalid form: " + strings.Join(parts, "; ")
}

// Unwrap classifies form errors as validation failures.
func (e FormErrors) Unwrap() error { return services.ErrValidation }

// Err returns e as an error, or nil when it holds no messages.
func (e FormErrors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// AsFormErrors extracts field errors from err.
func AsFormErrors(err error) (FormErrors, bool) {
	var fe FormErrors
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// Redirect tells the caller to continue at another developer hub path.
type Redirect struct {
	Path string
}

func (r *Redirect) Error() string { return "redirect to " + r.Path }

// AsRedirect extracts the target path from a redirect error.
func AsRedirect(err error) (string, bool) {
	var r *Redirect
	if errors.As(err, &r) {
		return r.Path, true
	}
	return "", false
}

func forbidden(op, msg string) error {
	return services.Wrap(services.ErrForbidden, "devhub", op, msg, nil)
}

func notFound(op, msg string) error {
	return services.Wrap(services.ErrNotFound, "devhub", op, msg, nil)
}

func invalid(op, msg string) error {
	return services.Wrap(services.ErrValidation, "devhub", op, msg, nil)
}
