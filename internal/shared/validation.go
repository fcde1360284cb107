package shared

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

const (
	notBlankTag  = "notblank"
	notBlankText = "{0} cannot be blank"

	// notBeforeTag compares two YYYY-MM-DD fields: notbefore=StartDate.
	notBeforeTag  = "notbefore"
	notBeforeText = "{0} cannot be earlier than the start date"
)

// Validator wraps go-playground/validator with english messages keyed by the
// json or form tag name of each field.
type Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

// NewValidator instantiates a validator for forms.
func NewValidator() *Validator {
	validate := validator.New(validator.WithRequiredStructEnabled())
	english := en.New()
	uni := ut.New(english, english)
	translator, _ := uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"form", "json"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return fld.Name
	})

	v := &Validator{validate: validate, translator: translator}
	_ = validate.RegisterValidation(notBlankTag, func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	v.RegisterTranslation(notBlankTag, notBlankText)
	_ = validate.RegisterValidation(notBeforeTag, notBeforeValidation)
	v.RegisterTranslation(notBeforeTag, notBeforeText)
	return v
}

// RegisterTranslation registers the message rendered for a custom tag.
func (v *Validator) RegisterTranslation(tag, text string) {
	_ = v.validate.RegisterTranslation(
		tag, v.translator,
		func(t ut.Translator) error { return t.Add(tag, text, true) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// RegisterStructValidation adds a cross-field rule for the given types.
func (v *Validator) RegisterStructValidation(fn validator.StructLevelFunc, types ...any) {
	v.validate.RegisterStructValidation(fn, types...)
}

// Struct validates s and returns a *ValidationError keyed by field name.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	out := &ValidationError{Fields: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		if _, exists := out.Fields[fe.Field()]; exists {
			continue
		}
		out.Fields[fe.Field()] = fe.Translate(v.translator)
	}
	return out
}

// notBeforeValidation passes when either date is missing or malformed; those
// cases are left to the required and datetime tags.
func notBeforeValidation(fl validator.FieldLevel) bool {
	other := fl.Parent().FieldByName(fl.Param())
	if !other.IsValid() || other.Kind() != reflect.String {
		return false
	}
	end, err := time.Parse(time.DateOnly, fl.Field().String())
	if err != nil {
		return true
	}
	start, err := time.Parse(time.DateOnly, other.String())
	if err != nil {
		return true
	}
	return !end.Before(start)
}
