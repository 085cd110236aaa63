package errors

import (
	"errors"
	"fmt"
)

// Standard application errors
var (
	ErrEmptyInput      = errors.New("input is empty or contains only whitespace")
	ErrInvalidJSON     = errors.New("invalid JSON format")
	ErrInvalidYAML     = errors.New("invalid YAML format")
	ErrMultipleJSON    = errors.New("multiple JSON values found at the root, only one is allowed")
	ErrFileNotFound    = errors.New("file not found")
	ErrFileEmpty       = errors.New("file is empty")
	ErrNoInput         = errors.New("no input provided: please specify a file with -i or pipe JSON data to stdin")
	ErrInvalidFilePath = errors.New("invalid file path")
	ErrNotAnObject     = errors.New("document root is not an object")
)

// Engine errors. All of them end the current synthesis; there is no
// partial output.
var (
	// ErrUnsupportedValueKind is returned for a value outside the JSON model.
	ErrUnsupportedValueKind = errors.New("unsupported value kind")
	// ErrUnsupportedTypeKind is returned for a typed-code node outside the
	// closed set of primitive, union, list and record.
	ErrUnsupportedTypeKind = errors.New("unsupported type kind")
	// ErrNameSpaceExhausted is returned when every suffixed candidate of a
	// declaration name is already taken.
	ErrNameSpaceExhausted = errors.New("name space exhausted")
	// ErrMissingRecordName is returned when an object is inferred without
	// a key to name its record after.
	ErrMissingRecordName = errors.New("record has no name")
)

// PathError attaches the key path of the offending value to an engine error.
type PathError struct {
	Path   string
	Detail string
	Err    error
}

// Error implements error interface
func (e *PathError) Error() string {
	msg := fmt.Sprintf("%v at %q", e.Err, e.Path)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Unwrap returns wrapped error
func (e *PathError) Unwrap() error {
	return e.Err
}

// NewPathError creates a PathError.
func NewPathError(path string, err error, detail string) *PathError {
	return &PathError{Path: path, Err: err, Detail: detail}
}

// ErrorType categorizes errors
type ErrorType string

const (
	ErrorTypeInput      ErrorType = "input"
	ErrorTypeParsing    ErrorType = "parsing"
	ErrorTypeQuery      ErrorType = "query"
	ErrorTypeAnalysis   ErrorType = "analysis"
	ErrorTypeGenerate   ErrorType = "generate"
	ErrorTypeFormat     ErrorType = "format"
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeOutput     ErrorType = "output"
	ErrorTypeUnknown    ErrorType = "unknown"
)

// AppError is an application-specific error with context
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for comparison
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

func newAppError(t ErrorType, message string, err error) *AppError {
	return &AppError{Type: t, Message: message, Err: err}
}

// NewInputError creates a new error related to input processing
func NewInputError(message string, err error) *AppError {
	return newAppError(ErrorTypeInput, message, err)
}

// NewParsingError creates a new error related to JSON parsing
func NewParsingError(message string, err error) *AppError {
	return newAppError(ErrorTypeParsing, message, err)
}

// NewQueryError creates a new error related to jq selection
func NewQueryError(message string, err error) *AppError {
	return newAppError(ErrorTypeQuery, message, err)
}

// NewAnalysisError creates a new error related to type analysis
func NewAnalysisError(message string, err error) *AppError {
	return newAppError(ErrorTypeAnalysis, message, err)
}

// NewGenerateError creates a new error related to code generation
func NewGenerateError(message string, err error) *AppError {
	return newAppError(ErrorTypeGenerate, message, err)
}

// NewFormatError creates a new error related to code formatting
func NewFormatError(message string, err error) *AppError {
	return newAppError(ErrorTypeFormat, message, err)
}

// NewValidationError creates a new error related to schema validation
func NewValidationError(message string, err error) *AppError {
	return newAppError(ErrorTypeValidation, message, err)
}

// NewOutputError creates a new error related to output processing
func NewOutputError(message string, err error) *AppError {
	return newAppError(ErrorTypeOutput, message, err)
}

// UserFriendlyError returns a user-friendly error message
func UserFriendlyError(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		msg := appErr.Message
		var pathErr *PathError
		if errors.As(appErr.Err, &pathErr) {
			msg = fmt.Sprintf("%s (%v)", msg, pathErr)
		}
		switch appErr.Type {
		case ErrorTypeInput:
			return fmt.Sprintf("Input error: %s", msg)
		case ErrorTypeParsing:
			return fmt.Sprintf("JSON parsing error: %s", msg)
		case ErrorTypeQuery:
			return fmt.Sprintf("Query error: %s", msg)
		case ErrorTypeAnalysis:
			return fmt.Sprintf("Type analysis error: %s", msg)
		case ErrorTypeGenerate:
			return fmt.Sprintf("Code generation error: %s", msg)
		case ErrorTypeFormat:
			return fmt.Sprintf("Code formatting error: %s", msg)
		case ErrorTypeValidation:
			return fmt.Sprintf("Validation error: %s", msg)
		case ErrorTypeOutput:
			return fmt.Sprintf("Output error: %s", msg)
		default:
			return fmt.Sprintf("Error: %s", msg)
		}
	}

	if errors.Is(err, ErrEmptyInput) {
		return "Error: The input is empty. Please provide valid JSON data."
	}
	if errors.Is(err, ErrInvalidJSON) {
		return "Error: The input contains invalid JSON. Please check your JSON syntax."
	}
	if errors.Is(err, ErrInvalidYAML) {
		return "Error: The input contains invalid YAML. Please check your YAML syntax."
	}
	if errors.Is(err, ErrMultipleJSON) {
		return "Error: Multiple JSON values found. Please provide a single JSON object."
	}
	if errors.Is(err, ErrFileNotFound) {
		return "Error: The specified file could not be found. Please check the file path."
	}
	if errors.Is(err, ErrFileEmpty) {
		return "Error: The specified file is empty. Please provide a file with valid JSON content."
	}
	if errors.Is(err, ErrNoInput) {
		return "Error: No input provided. Please specify a file with -i or pipe JSON data to stdin."
	}
	if errors.Is(err, ErrInvalidFilePath) {
		return "Error: Invalid file path. Please provide a valid file path."
	}
	if errors.Is(err, ErrNotAnObject) {
		return "Error: The JSON document does not represent an object. Only objects can be turned into TypedDicts."
	}

	// Generic error message for unknown errors
	return fmt.Sprintf("Error: %v", err)
}
