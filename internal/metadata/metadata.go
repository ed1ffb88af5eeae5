// Package metadata defines the bot profile snapshot, the policy that decides
// whether a localization differs from the default, and the per-field outcome
// of write operations.
package metadata

import (
	"strings"
)

// BotCommand is one entry of a bot's command list.
type BotCommand struct {
	Command     string `json:"command"     validate:"required,max=32"`
	Description string `json:"description" validate:"required,max=256"`
}

// BotMetadata is one localization snapshot: the default one or the one bound
// to a language code. Values are never mutated in place after a fetch.
type BotMetadata struct {
	Name             string       `json:"name"              validate:"max=64"`
	Description      string       `json:"description"       validate:"max=512"`
	ShortDescription string       `json:"short_description" validate:"max=120"`
	Commands         []BotCommand `json:"commands"          validate:"dive"`
}

// IsEmpty reports whether every text field is blank and there are no commands.
func (m BotMetadata) IsEmpty() bool {
	return strings.TrimSpace(m.Name) == "" &&
		strings.TrimSpace(m.Description) == "" &&
		strings.TrimSpace(m.ShortDescription) == "" &&
		len(m.Commands) == 0
}

// Differs compares two snapshots field by field with exact string equality.
// Commands are compared positionally, so a reordered list differs.
func Differs(a, b BotMetadata) bool {
	if a.Name != b.Name || a.Description != b.Description || a.ShortDescription != b.ShortDescription {
		return true
	}
	if len(a.Commands) != len(b.Commands) {
		return true
	}
	for i := range a.Commands {
		if a.Commands[i].Command != b.Commands[i].Command ||
			a.Commands[i].Description != b.Commands[i].Description {
			return true
		}
	}
	return false
}

// Clone returns a copy that shares no backing storage with m.
func (m BotMetadata) Clone() BotMetadata {
	out := m
	if m.Commands != nil {
		out.Commands = make([]BotCommand, len(m.Commands))
		copy(out.Commands, m.Commands)
	}
	return out
}
