package i18n

// Error codes mirror internal/platform/errors/codes.go as strings
// because that package cannot be imported from here.
const (
	CodeUnknown              = "UNKNOWN"
	CodeConfigurationInvalid = "CONFIGURATION_INVALID"
	CodeMissingAssociation   = "MISSING_ASSOCIATION"
	CodeLegacyCustomID       = "LEGACY_CUSTOM_ID"
	CodeInvalidSelection     = "INVALID_SELECTION"
	CodeNothingSelected      = "NOTHING_SELECTED"
	CodeWrongUser            = "WRONG_USER"
	CodeEvaluationFailed     = "EVALUATION_FAILED"
	CodeUnknownRecordFormat  = "UNKNOWN_RECORD_FORMAT"
	CodeStorageFailure       = "STORAGE_FAILURE"
)

// Codes lists every code a catalog is expected to translate.
func Codes() []string {
	return []string{
		CodeUnknown,
		CodeConfigurationInvalid,
		CodeMissingAssociation,
		CodeLegacyCustomID,
		CodeInvalidSelection,
		CodeNothingSelected,
		CodeWrongUser,
		CodeEvaluationFailed,
		CodeUnknownRecordFormat,
		CodeStorageFailure,
	}
}
