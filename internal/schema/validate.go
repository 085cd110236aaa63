package schema

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	invopop "github.com/invopop/jsonschema"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/mcncl/pytyper/internal/errors"
	"github.com/mcncl/pytyper/internal/models"
)

const resourceURL = "schema.json"

// printer renders validation messages in English.
var printer = message.NewPrinter(language.English)

// ValidationResult is the outcome of validating one document.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// Validator validates documents against a compiled schema.
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles an exported schema.
func NewValidator(schema *invopop.Schema) (*Validator, error) {
	data, err := json.Marshal(schema)
	if err != nil {
		return nil, errors.NewValidationError("failed to encode schema", err)
	}
	return CompileBytes(data)
}

// CompileBytes compiles a JSON Schema document.
func CompileBytes(data []byte) (*Validator, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, errors.NewValidationError("failed to decode schema", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(resourceURL, doc); err != nil {
		return nil, errors.NewValidationError("failed to add schema resource", err)
	}
	compiled, err := compiler.Compile(resourceURL)
	if err != nil {
		return nil, errors.NewValidationError("failed to compile schema", err)
	}
	return &Validator{schema: compiled}, nil
}

// Validate checks value against the schema. Errors are "path: message"
// strings sorted by path.
func (v *Validator) Validate(value models.JSONValue) ValidationResult {
	err := v.schema.Validate(models.ToAny(value))
	if err == nil {
		return ValidationResult{Valid: true}
	}

	var validationErr *jsonschema.ValidationError
	if !stderrors.As(err, &validationErr) {
		return ValidationResult{Errors: []string{err.Error()}}
	}

	seen := make(map[string]bool)
	var messages []string
	collectErrors(validationErr, func(msg string) {
		if !seen[msg] {
			seen[msg] = true
			messages = append(messages, msg)
		}
	})
	if len(messages) == 0 {
		messages = []string{validationErr.Error()}
	}
	sort.Strings(messages)
	return ValidationResult{Errors: messages}
}

// collectErrors reports leaf errors only; intermediate nodes just say that
// a subschema failed.
func collectErrors(err *jsonschema.ValidationError, emit func(string)) {
	if err.ErrorKind != nil && len(err.Causes) == 0 {
		msg := err.ErrorKind.LocalizedString(printer)
		if !strings.HasPrefix(msg, "$ref ") && !strings.HasPrefix(msg, "doesn't validate with") {
			emit(fmt.Sprintf("/%s: %s", strings.Join(err.InstanceLocation, "/"), msg))
		}
	}
	for _, cause := range err.Causes {
		collectErrors(cause, emit)
	}
}
