package metadata

import (
	apperrors "github.com/edgard/botmeta/internal/errors"
)

// Field names one independently written part of the metadata.
type Field string

const (
	FieldName             Field = "name"
	FieldDescription      Field = "description"
	FieldShortDescription Field = "short_description"
	FieldCommands         Field = "commands"
)

// Fields lists the four fields in the order outcomes are reported.
var Fields = [4]Field{FieldName, FieldDescription, FieldShortDescription, FieldCommands}

// Outcome is the result of one remote write. When OK is false the remote
// state of that field is unknown.
type Outcome struct {
	Field Field  `json:"field"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
}

// Outcomes holds one Outcome per field, in Fields order.
type Outcomes []Outcome

// AllOK reports whether every write succeeded.
func (o Outcomes) AllOK() bool {
	for _, r := range o {
		if !r.OK {
			return false
		}
	}
	return len(o) > 0
}

// FailedFields returns the fields whose write failed.
func (o Outcomes) FailedFields() []Field {
	var failed []Field
	for _, r := range o {
		if !r.OK {
			failed = append(failed, r.Field)
		}
	}
	return failed
}

// CredentialRejected reports whether any write failed because the bot token
// was refused.
func (o Outcomes) CredentialRejected() bool {
	for _, r := range o {
		if r.Code == apperrors.CodeCredentialInvalid {
			return true
		}
	}
	return false
}

// NewOutcomes builds the four outcomes from per-field errors, indexed like Fields.
func NewOutcomes(errs [4]error) Outcomes {
	out := make(Outcomes, len(Fields))
	for i, f := range Fields {
		out[i] = Outcome{Field: f, OK: errs[i] == nil}
		if errs[i] != nil {
			out[i].Error = errs[i].Error()
			out[i].Code = apperrors.Code(errs[i])
		}
	}
	return out
}
