// Package outcome carries the two result classes every pipeline operation
// can report: hard configuration failures, returned as errors, and
// data-quality warnings, accumulated alongside a normal result.
package outcome

import (
	"errors"
	"fmt"
	"strings"
)

// ConfigurationError reports that a column, individual, bodypart or
// parameter referenced by configuration does not exist or is invalid.
// Operations return it before producing any output.
type ConfigurationError struct {
	Op  string // operation that rejected the configuration, e.g. "refine_ids"
	Key string // offending key, e.g. "mouse1" or "nose"
	Msg string
}

func (e *ConfigurationError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s: configuration error: %s", e.Op, e.Msg)
	}
	return fmt.Sprintf("%s: configuration error: %q %s", e.Op, e.Key, e.Msg)
}

// Configf builds a ConfigurationError with a formatted message.
func Configf(op, key, format string, args ...interface{}) error {
	return &ConfigurationError{Op: op, Key: key, Msg: fmt.Sprintf(format, args...)}
}

// IsConfigurationError reports whether err wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// Outcome accumulates non-fatal warnings and progress notes for one
// operation. The zero value is ready to use.
type Outcome struct {
	Warnings []string
	Notes    []string
}

// Warnf records a data-quality warning.
func (o *Outcome) Warnf(format string, args ...interface{}) {
	o.Warnings = append(o.Warnings, fmt.Sprintf(format, args...))
}

// Notef records an informational line, e.g. "completed freezing".
func (o *Outcome) Notef(format string, args ...interface{}) {
	o.Notes = append(o.Notes, fmt.Sprintf(format, args...))
}

// Merge appends the warnings and notes of other.
func (o *Outcome) Merge(other Outcome) {
	o.Warnings = append(o.Warnings, other.Warnings...)
	o.Notes = append(o.Notes, other.Notes...)
}

// HasWarnings reports whether any warning was recorded.
func (o Outcome) HasWarnings() bool { return len(o.Warnings) > 0 }

// String renders one line per entry, warnings first with a WARNING prefix.
func (o Outcome) String() string {
	var b strings.Builder
	for _, w := range o.Warnings {
		b.WriteString("WARNING: ")
		b.WriteString(w)
		b.WriteByte('\n')
	}
	for _, n := range o.Notes {
		b.WriteString(n)
		b.WriteByte('\n')
	}
	return b.String()
}
