// Package formsettings parses form schemas and resolves per-policy settings
// over their documented defaults.
package formsettings

import (
	"encoding/json"
	"fmt"
)

// Field is one form field as authored in the builder. Unknown builder
// properties are ignored.
type Field struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Label       string          `json:"label"`
	Required    bool            `json:"required,omitempty"`
	Placeholder string          `json:"placeholder,omitempty"`
	Options     json.RawMessage `json:"options,omitempty"`
	Validation  json.RawMessage `json:"validation,omitempty"`
}

// Settings holds the raw per-policy objects. Each policy is kept as raw JSON
// so Resolve can tell absent keys from zero values.
type Settings struct {
	Title          string `json:"title"`
	PublicTitle    string `json:"publicTitle,omitempty"`
	Description    string `json:"description,omitempty"`
	SuccessMessage string `json:"successMessage,omitempty"`

	RateLimit           json.RawMessage `json:"rateLimit,omitempty"`
	ResponseLimit       json.RawMessage `json:"responseLimit,omitempty"`
	DuplicatePrevention json.RawMessage `json:"duplicatePrevention,omitempty"`
	ProfanityFilter     json.RawMessage `json:"profanityFilter,omitempty"`
	BotProtection       json.RawMessage `json:"botProtection,omitempty"`
	Notifications       json.RawMessage `json:"notifications,omitempty"`
	API                 json.RawMessage `json:"api,omitempty"`
	PasswordProtection  json.RawMessage `json:"passwordProtection,omitempty"`
}

// Schema is the persisted form definition.
type Schema struct {
	Fields   []Field  `json:"fields"`
	Settings Settings `json:"settings"`
}

// ParseSchema decodes a stored form schema. An empty document yields an empty schema.
func ParseSchema(raw []byte) (*Schema, error) {
	schema := &Schema{}
	if len(raw) == 0 {
		return schema, nil
	}
	if errUnmarshal := json.Unmarshal(raw, schema); errUnmarshal != nil {
		return nil, fmt.Errorf("formsettings: parse schema: %w", errUnmarshal)
	}
	return schema, nil
}

// FieldByID returns the field with the given id.
func (s *Schema) FieldByID(id string) (Field, bool) {
	if s == nil {
		return Field{}, false
	}
	for _, f := range s.Fields {
		if f.ID == id {
			return f, true
		}
	}
	return Field{}, false
}
