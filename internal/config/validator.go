package config

import (
	"fmt"
	"net"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors struct {
	Errors []*ValidationError
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "no validation errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e.Errors)))
	for i, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Add adds an error to the collection.
func (e *ValidationErrors) Add(field, message string) {
	e.Errors = append(e.Errors, &ValidationError{Field: field, Message: message})
}

// HasErrors returns true if there are any errors.
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

// Validate checks the semantic constraints the schema cannot express.
//
// Returns nil if valid, or a *ValidationErrors containing all errors.
func (f *File) Validate() error {
	errs := &ValidationErrors{}

	if f.BucketsPerWindow < 1 || f.BucketsPerWindow > 3600 {
		errs.Add("bucketsPerWindow", "must be between 1 and 3600")
	}
	if f.ReapHorizon < 0 {
		errs.Add("reapHorizon", "must not be negative")
	}
	if strings.ContainsAny(f.Domain, quoteChars) {
		errs.Add("domain", fmt.Sprintf("must not contain any of %s", quoteChars))
	}
	if f.Intervals != nil && strings.TrimSpace(*f.Intervals) != "" && len(f.IntervalDurations()) == 0 {
		errs.Add("intervals", fmt.Sprintf("no valid interval in %q", *f.Intervals))
	}
	if f.Listen != "" {
		if _, _, err := net.SplitHostPort(f.Listen); err != nil {
			errs.Add("listen", err.Error())
		}
	}

	switch strings.ToLower(f.Log.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errs.Add("log.level", fmt.Sprintf("unknown level %q", f.Log.Level))
	}
	switch f.Log.Format {
	case "", "terminal", "text":
	default:
		errs.Add("log.format", fmt.Sprintf("unknown format %q", f.Log.Format))
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// quoteChars are characters that would force quoting in external names.
const quoteChars = `,=:"*?`
