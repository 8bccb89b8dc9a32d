package fanout

import (
	"time"
)

// FieldValue is one answered field with its builder label.
type FieldValue struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Type  string `json:"type,omitempty"`
	Value any    `json:"value"`
}

// Payload is the human-readable webhook body.
type Payload struct {
	Event        string         `json:"event"`
	FormID       string         `json:"formId"`
	FormTitle    string         `json:"formTitle"`
	SubmissionID string         `json:"submissionId"`
	IPAddress    string         `json:"ipAddress"`
	SubmittedAt  string         `json:"submittedAt"`
	Fields       []FieldValue   `json:"fields"`
	Data         map[string]any `json:"data"`
}

// FormatPayload labels submitted values with their schema fields. Fields are
// listed in schema order; values without a schema field follow, labelled by
// their key.
func FormatPayload(ev Event) Payload {
	fields := make([]FieldValue, 0, len(ev.Data))
	seen := make(map[string]struct{}, len(ev.Fields))
	for _, f := range ev.Fields {
		value, ok := ev.Data[f.ID]
		if !ok {
			continue
		}
		seen[f.ID] = struct{}{}
		label := f.Label
		if label == "" {
			label = f.ID
		}
		fields = append(fields, FieldValue{ID: f.ID, Label: label, Type: f.Type, Value: value})
	}
	for _, key := range sortedKeys(ev.Data) {
		if _, ok := seen[key]; ok {
			continue
		}
		fields = append(fields, FieldValue{ID: key, Label: key, Value: ev.Data[key]})
	}

	name := ev.Name
	if name == "" {
		name = EventFormSubmitted
	}
	data := ev.Data
	if data == nil {
		data = map[string]any{}
	}
	return Payload{
		Event:        name,
		FormID:       ev.FormID,
		FormTitle:    ev.FormTitle,
		SubmissionID: ev.SubmissionID,
		IPAddress:    ev.IPAddress,
		SubmittedAt:  ev.SubmittedAt.UTC().Format(time.RFC3339),
		Fields:       fields,
		Data:         data,
	}
}
