package errors

import (
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// ConfigInvalid indicates an out-of-range or malformed configuration
	ConfigInvalid ErrorCode = "CONFIG_INVALID"
	// ParseFailed indicates a source file could not be parsed
	ParseFailed ErrorCode = "PARSE_FAILED"
	// UnsupportedLanguage indicates no grammar is registered for a file
	UnsupportedLanguage ErrorCode = "UNSUPPORTED_LANGUAGE"
	// IndexMissing indicates a SCIP index was requested but not found
	IndexMissing ErrorCode = "INDEX_MISSING"
	// IndexCorrupt indicates a SCIP index could not be decoded
	IndexCorrupt ErrorCode = "INDEX_CORRUPT"
	// CacheUnavailable indicates the function cache could not be opened
	CacheUnavailable ErrorCode = "CACHE_UNAVAILABLE"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// FixActionType represents the type of fix action
type FixActionType string

const (
	// RunCommand suggests running a command
	RunCommand FixActionType = "run-command"
	// OpenDocs suggests opening documentation
	OpenDocs FixActionType = "open-docs"
)

// FixAction represents a suggested fix for an error
type FixAction struct {
	Type        FixActionType `json:"type"`
	Command     string        `json:"command,omitempty"`
	Safe        bool          `json:"safe,omitempty"`
	Description string        `json:"description,omitempty"`
	URL         string        `json:"url,omitempty"`
}

// DiffError represents a smartdiff error with code, message, and suggestions
type DiffError struct {
	Code           ErrorCode   `json:"code"`
	Message        string      `json:"message"`
	Details        interface{} `json:"details,omitempty"`
	SuggestedFixes []FixAction `json:"suggestedFixes,omitempty"`
	cause          error       // Underlying error (not exported to JSON)
}

// NewDiffError creates a new DiffError with fixes looked up from the code
func NewDiffError(code ErrorCode, message string, cause error) *DiffError {
	return &DiffError{
		Code:           code,
		Message:        message,
		cause:          cause,
		SuggestedFixes: GetSuggestedFixes(code),
	}
}

// Error implements the error interface
func (e *DiffError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DiffError) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *DiffError) WithDetails(details interface{}) *DiffError {
	e.Details = details
	return e
}

// ErrorActions maps error codes to suggested fix actions
var ErrorActions = map[ErrorCode][]FixAction{
	ConfigInvalid: {
		{
			Type:        RunCommand,
			Command:     "smartdiff config --show",
			Safe:        true,
			Description: "Print the effective configuration with defaults applied",
		},
	},
	IndexMissing: {
		{
			Type:        RunCommand,
			Command:     "scip-go --output .scip/index.scip",
			Safe:        true,
			Description: "Generate a SCIP index for the repository",
		},
	},
	CacheUnavailable: {
		{
			Type:        RunCommand,
			Command:     "rm -f .smartdiff/cache.db",
			Safe:        false,
			Description: "Remove the function cache so it can be rebuilt",
		},
	},
}

// GetSuggestedFixes returns suggested fixes for an error code
func GetSuggestedFixes(code ErrorCode) []FixAction {
	if fixes, ok := ErrorActions[code]; ok {
		return fixes
	}
	return nil
}
