package metadata

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/edgard/botmeta/internal/errors"
	"github.com/edgard/botmeta/internal/languages"
)

var tokenPattern = regexp.MustCompile(`^\d+:[A-Za-z0-9_-]+$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("bot_token", func(fl validator.FieldLevel) bool {
		return tokenPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("language_code", func(fl validator.FieldLevel) bool {
		return languages.Valid(fl.Field().String())
	})
	return v
}

// Validator exposes the shared validator, with the bot_token and
// language_code tags registered, so request types elsewhere can be checked
// with the same rules.
func Validator() *validator.Validate {
	return validate
}

// Validate checks the field limits the Bot API enforces.
func (m BotMetadata) Validate() error {
	if err := validate.Struct(m); err != nil {
		return apperrors.NewValidationError(DescribeValidation(err), nil)
	}
	return nil
}

// DescribeValidation renders validator errors as "field: rule" pairs using
// JSON field names, e.g. "metadata.name: max=64".
func DescribeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		parts = append(parts, fmt.Sprintf("%s: %s", field, rule))
	}
	return "invalid " + strings.Join(parts, ", ")
}

// ValidateToken checks the bot token format without contacting the API.
func ValidateToken(token string) error {
	if token == "" {
		return apperrors.NewValidationError("bot token is required", nil)
	}
	if !tokenPattern.MatchString(token) {
		return apperrors.NewValidationError("invalid bot token format", nil)
	}
	return nil
}
