// Package errors provides structured error handling with i18n support.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Setup errors
	CodeConfigurationInvalid Code = "CONFIGURATION_INVALID"

	// Interaction errors
	CodeMissingAssociation Code = "MISSING_ASSOCIATION"
	CodeLegacyCustomID     Code = "LEGACY_CUSTOM_ID"
	CodeInvalidSelection   Code = "INVALID_SELECTION"
	CodeNothingSelected    Code = "NOTHING_SELECTED"
	CodeWrongUser          Code = "WRONG_USER"

	// Evaluation errors
	CodeEvaluationFailed Code = "EVALUATION_FAILED"

	// Storage errors
	CodeUnknownRecordFormat Code = "UNKNOWN_RECORD_FORMAT"
	CodeStorageFailure      Code = "STORAGE_FAILURE"
)

// Soft reports whether the code describes an expected user-facing outcome
// rather than a fault. Soft errors are replied to without being logged.
func (c Code) Soft() bool {
	switch c {
	case CodeMissingAssociation,
		CodeLegacyCustomID,
		CodeInvalidSelection,
		CodeNothingSelected,
		CodeWrongUser,
		CodeConfigurationInvalid,
		CodeEvaluationFailed:
		return true
	default:
		return false
	}
}
