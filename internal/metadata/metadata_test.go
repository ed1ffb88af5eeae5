package metadata

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/edgard/botmeta/internal/errors"
)

func sample() BotMetadata {
	return BotMetadata{
		Name:             "Foo",
		Description:      "D",
		ShortDescription: "S",
		Commands:         []BotCommand{{Command: "start", Description: "Start"}},
	}
}

func TestDiffers(t *testing.T) {
	t.Parallel()

	twoCmds := sample()
	twoCmds.Commands = []BotCommand{{Command: "start", Description: "Start"}, {Command: "help", Description: "Help"}}
	reordered := sample()
	reordered.Commands = []BotCommand{{Command: "help", Description: "Help"}, {Command: "start", Description: "Start"}}

	tests := []struct {
		name   string
		a, b   BotMetadata
		differ bool
	}{
		{name: "identical", a: sample(), b: sample(), differ: false},
		{name: "both empty", a: BotMetadata{}, b: BotMetadata{Commands: []BotCommand{}}, differ: false},
		{name: "name", a: sample(), b: func() BotMetadata { m := sample(); m.Name = "Bar"; return m }(), differ: true},
		{name: "description", a: sample(), b: func() BotMetadata { m := sample(); m.Description = "X"; return m }(), differ: true},
		{name: "short description", a: sample(), b: func() BotMetadata { m := sample(); m.ShortDescription = "X"; return m }(), differ: true},
		{name: "trailing whitespace is significant", a: sample(), b: func() BotMetadata { m := sample(); m.Name = "Foo "; return m }(), differ: true},
		{name: "command description", a: sample(), b: func() BotMetadata {
			m := sample()
			m.Commands = []BotCommand{{Command: "start", Description: "Démarrer"}}
			return m
		}(), differ: true},
		{name: "command identifier", a: sample(), b: func() BotMetadata {
			m := sample()
			m.Commands = []BotCommand{{Command: "begin", Description: "Start"}}
			return m
		}(), differ: true},
		{name: "command count", a: sample(), b: twoCmds, differ: true},
		{name: "same multiset different order", a: twoCmds, b: reordered, differ: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.differ, Differs(tc.a, tc.b))
			assert.Equal(t, tc.differ, Differs(tc.b, tc.a), "must be symmetric")
		})
	}
}

func TestIsEmpty(t *testing.T) {
	t.Parallel()

	assert.True(t, BotMetadata{}.IsEmpty())
	assert.True(t, BotMetadata{Name: "  ", Description: "\n", ShortDescription: "\t"}.IsEmpty())
	assert.False(t, BotMetadata{ShortDescription: "x"}.IsEmpty())
	assert.False(t, BotMetadata{Commands: []BotCommand{{Command: "a", Description: "b"}}}.IsEmpty())
}

func TestClone(t *testing.T) {
	t.Parallel()

	orig := sample()
	cp := orig.Clone()
	cp.Commands[0].Description = "changed"
	assert.Equal(t, "Start", orig.Commands[0].Description)
	assert.Nil(t, BotMetadata{}.Clone().Commands)
}

func TestOutcomes(t *testing.T) {
	t.Parallel()

	all := NewOutcomes([4]error{})
	require.Len(t, all, 4)
	assert.True(t, all.AllOK())
	assert.Empty(t, all.FailedFields())
	for i, f := range Fields {
		assert.Equal(t, f, all[i].Field)
	}

	partial := NewOutcomes([4]error{nil, nil, nil, errors.New("Bad Request: commands too long")})
	assert.False(t, partial.AllOK())
	assert.Equal(t, []Field{FieldCommands}, partial.FailedFields())
	assert.Equal(t, "Bad Request: commands too long", partial[3].Error)
	assert.Empty(t, partial[0].Error)
	assert.Equal(t, apperrors.CodeUnknown, partial[3].Code)
	assert.Empty(t, partial[0].Code)
	assert.False(t, partial.CredentialRejected())

	rejected := apperrors.NewRemoteError("setMyName", 401, "Unauthorized", apperrors.KindRemote, nil)
	denied := NewOutcomes([4]error{rejected, rejected, rejected, rejected})
	assert.True(t, denied.CredentialRejected())
	assert.Equal(t, apperrors.CodeCredentialInvalid, denied[0].Code)

	assert.False(t, Outcomes(nil).AllOK())
}

func TestValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, sample().Validate())
	require.NoError(t, BotMetadata{}.Validate())

	tooLong := sample()
	tooLong.ShortDescription = strings.Repeat("x", 121)
	err := tooLong.Validate()
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeValidation, apperrors.Code(err))

	badCmd := sample()
	badCmd.Commands = []BotCommand{{Command: "", Description: "x"}}
	require.Error(t, badCmd.Validate())
}

func TestValidateToken(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidateToken("123456:ABC-def_ghi"))
	for _, tok := range []string{"", "abc:def", "123456", "123456:bad token", ":abc"} {
		err := ValidateToken(tok)
		require.Error(t, err, tok)
		assert.Equal(t, apperrors.CodeValidation, apperrors.Code(err))
	}
}

func TestDescribeValidation(t *testing.T) {
	t.Parallel()

	type request struct {
		BotToken     string      `json:"bot_token" validate:"required,bot_token"`
		LanguageCode string      `json:"language_code" validate:"omitempty,language_code"`
		Metadata     BotMetadata `json:"metadata"`
	}

	req := request{BotToken: "nope", LanguageCode: "zz"}
	req.Metadata.Name = strings.Repeat("n", 65)

	msg := DescribeValidation(Validator().Struct(req))
	assert.Contains(t, msg, "bot_token: bot_token")
	assert.Contains(t, msg, "language_code: language_code")
	assert.Contains(t, msg, "metadata.name: max=64")

	require.NoError(t, Validator().Struct(request{BotToken: "1:a", LanguageCode: "de"}))
	require.NoError(t, Validator().Struct(request{BotToken: "1:a"}))
}
