package sysio

import (
	"embed"
	"errors"
	"fmt"
	"os"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

// Kind identifies which embedded schema a document is checked against.
type Kind string

// Document kinds recognized by DetectKind.
const (
	KindSystem   Kind = "system"
	KindSettings Kind = "settings"
)

// ErrUnknownKind indicates a document whose top-level keys match
// neither a system nor a settings file.
var ErrUnknownKind = errors.New("sysio: document matches neither a system nor a settings file")

// schemaFiles maps kinds to their embedded schema path.
var schemaFiles = map[Kind]string{
	KindSystem:   "schemas/system.schema.json",
	KindSettings: "schemas/settings.schema.json",
}

// settingsKeys are the top-level keys that mark a settings document.
var settingsKeys = []string{"solver", "diis", "scaling", "checkpoint", "report", "observability", "workers"}

// FieldError is one schema violation tied to a document field.
type FieldError struct {
	Field       string `json:"field"`
	Description string `json:"description"`
}

// ValidationResult is the outcome of a schema check.
type ValidationResult struct {
	Kind   Kind         `json:"kind"`
	Valid  bool         `json:"valid"`
	Errors []FieldError `json:"errors,omitempty"`
}

// ValidateFile detects the document kind from its top-level keys and
// validates it against the matching embedded schema.
func ValidateFile(path string) (*ValidationResult, error) {
	doc, err := readYAMLDocument(path)
	if err != nil {
		return nil, err
	}

	kind, err := detectKind(doc)
	if err != nil {
		return nil, err
	}

	return validateDocument(kind, doc)
}

// ValidateSystemFile validates a document against the system schema.
func ValidateSystemFile(path string) (*ValidationResult, error) {
	return validateFileAs(KindSystem, path)
}

// ValidateSettingsFile validates a document against the settings schema.
func ValidateSettingsFile(path string) (*ValidationResult, error) {
	return validateFileAs(KindSettings, path)
}

func validateFileAs(kind Kind, path string) (*ValidationResult, error) {
	doc, err := readYAMLDocument(path)
	if err != nil {
		return nil, err
	}

	return validateDocument(kind, doc)
}

func readYAMLDocument(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}

	var doc map[string]any

	err = yaml.Unmarshal(data, &doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedSystem, err)
	}

	return doc, nil
}

func detectKind(doc map[string]any) (Kind, error) {
	if _, ok := doc["pairs"]; ok {
		return KindSystem, nil
	}

	if _, ok := doc["occupied"]; ok {
		return KindSystem, nil
	}

	for _, key := range settingsKeys {
		if _, ok := doc[key]; ok {
			return KindSettings, nil
		}
	}

	return "", ErrUnknownKind
}

func validateDocument(kind Kind, doc map[string]any) (*ValidationResult, error) {
	schemaBytes, err := schemaFS.ReadFile(schemaFiles[kind])
	if err != nil {
		return nil, fmt.Errorf("read embedded schema: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaBytes),
		gojsonschema.NewGoLoader(doc),
	)
	if err != nil {
		return nil, fmt.Errorf("schema validation: %w", err)
	}

	out := &ValidationResult{Kind: kind, Valid: result.Valid()}

	for _, verr := range result.Errors() {
		out.Errors = append(out.Errors, FieldError{
			Field:       verr.Field(),
			Description: verr.Description(),
		})
	}

	return out, nil
}
