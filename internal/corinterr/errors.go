// Package corinterr defines the three error taxonomies of the compiler and
// runtime (spec §7): compile errors, recoverable runtime errors, and fatal
// runtime errors.
package corinterr

import (
	"errors"
	"fmt"
)

// Kind identifies a specific error case within a taxonomy.
type Kind string

const (
	// Compile-time (fatal, surfaced at load).
	KindImportNotFound    Kind = "import_not_found"
	KindInvalidYAML       Kind = "invalid_yaml"
	KindCircularImport    Kind = "circular_import"
	KindDuplicateID       Kind = "duplicate_id"
	KindIDNamespaceConfl  Kind = "id_namespace_conflict"
	KindUnknownRef        Kind = "unknown_ref"
	KindExtendsNotFound   Kind = "extends_not_found"
	KindCircularExtends   Kind = "circular_extends"
	KindFeatureCycle      Kind = "feature_cycle"
	KindUnknownConfigRef  Kind = "unknown_config_ref"
	KindInvalidExpression Kind = "invalid_expression"
	KindDialectViolation  Kind = "dialect_violation"
	KindMissingField      Kind = "missing_required_field"
	KindPipelineCycle     Kind = "pipeline_cycle"

	// Runtime recoverable.
	KindDatasourceUnavailable Kind = "datasource_unavailable"
	KindTimeout               Kind = "timeout"
	KindExternalAPIError      Kind = "external_api_error"
	KindKeyNotFound           Kind = "key_not_found"
	KindTypeMismatch          Kind = "type_mismatch"
	KindMissingValue          Kind = "missing_value"

	// Runtime fatal (per-request).
	KindNoPipelineMatched       Kind = "no_pipeline_matched"
	KindStepNotFound            Kind = "step_not_found"
	KindInternalInvariant       Kind = "internal_invariant_violated"
	KindDeadlineExceeded        Kind = "deadline_exceeded"
)

// Class distinguishes which of the three taxonomies an error belongs to.
type Class int

const (
	ClassCompile Class = iota
	ClassRecoverable
	ClassFatal
)

func (c Class) String() string {
	switch c {
	case ClassCompile:
		return "compile"
	case ClassRecoverable:
		return "recoverable"
	case ClassFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error is the shared error type across the engine; it always carries a
// Kind and Class, and optionally a location (path:line) and wrapped cause.
type Error struct {
	Kind     Kind
	Class    Class
	Location string
	Message  string
	Cause    error
}

func (e *Error) Error() string {
	loc := ""
	if e.Location != "" {
		loc = e.Location + ": "
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s%s: %s: %v", loc, e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s%s: %s", loc, e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is supports errors.Is comparisons by Kind.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.Kind == e.Kind
	}
	return false
}

func newErr(class Class, kind Kind, location, msg string, cause error) *Error {
	return &Error{Kind: kind, Class: class, Location: location, Message: msg, Cause: cause}
}

// Compile constructs a compile-time (fatal) error.
func Compile(kind Kind, location, msg string, cause error) *Error {
	return newErr(ClassCompile, kind, location, msg, cause)
}

// Recoverable constructs a runtime-recoverable error.
func Recoverable(kind Kind, msg string, cause error) *Error {
	return newErr(ClassRecoverable, kind, "", msg, cause)
}

// Fatal constructs a runtime-fatal (per-request) error.
func Fatal(kind Kind, msg string, cause error) *Error {
	return newErr(ClassFatal, kind, "", msg, cause)
}

// IsRecoverable reports whether err is a recoverable-class Error.
func IsRecoverable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == ClassRecoverable
	}
	return false
}

// IsFatal reports whether err is a fatal-class Error.
func IsFatal(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == ClassFatal
	}
	return false
}

// KindOf extracts the Kind of err, if it is (or wraps) an *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
