package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/xeipuuv/gojsonschema"
)

// ErrSchemaMismatch reports a response body that does not match its schema.
var ErrSchemaMismatch = errors.New("client: response does not match schema")

// Envelope is the response shape shared by the API endpoints. Endpoint
// specific fields are allowed alongside it.
type Envelope struct {
	Success   *bool  `json:"success,omitempty"`
	Error     string `json:"error,omitempty"`
	Code      string `json:"code,omitempty"`
	Message   string `json:"message,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// SchemaValidator checks response bodies against a schema reflected from a
// Go type.
type SchemaValidator struct {
	name   string
	schema *gojsonschema.Schema
}

// NewSchemaValidator reflects T into a JSON schema. When allowAdditional is
// false, fields T does not declare are rejected.
func NewSchemaValidator[T any](allowAdditional bool) (*SchemaValidator, error) {
	r := &jsonschema.Reflector{
		DoNotReference:            true,
		ExpandedStruct:            true,
		AllowAdditionalProperties: allowAdditional,
	}
	s := r.Reflect(new(T))
	// Compile against the built-in drafts rather than a remote metaschema.
	s.Version = ""
	s.ID = ""

	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("client: marshal schema: %w", err)
	}
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("client: compile schema: %w", err)
	}

	return &SchemaValidator{name: fmt.Sprintf("%T", *new(T)), schema: compiled}, nil
}

// MustSchemaValidator is like NewSchemaValidator but panics on error.
func MustSchemaValidator[T any](allowAdditional bool) *SchemaValidator {
	v, err := NewSchemaValidator[T](allowAdditional)
	if err != nil {
		panic(err)
	}
	return v
}

// Name returns the reflected type name.
func (v *SchemaValidator) Name() string { return v.name }

// Validate checks body. A mismatch wraps ErrSchemaMismatch and lists the
// failing fields.
func (v *SchemaValidator) Validate(body []byte) error {
	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("client: validate %s: %w", v.name, err)
	}
	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		problems = append(problems, e.String())
	}
	return fmt.Errorf("%w: %s: %s", ErrSchemaMismatch, v.name, strings.Join(problems, "; "))
}
