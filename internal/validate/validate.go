// Package validate wraps go-playground/validator with JSON field names and
// English messages, and carries field-level failures as a plain error.
package validate

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	v          *validator.Validate
	translator ut.Translator

	alphaNumUnderRegex = regexp.MustCompile(`^\w+$`)
)

func init() {
	v = validator.New()

	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(v, translator)

	// Use JSON tag names for errors instead of Go struct names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	RegisterTranslation("required", "this field is required", true)
	RegisterTag("alphanum_", func(fl validator.FieldLevel) bool {
		return alphaNumUnderRegex.MatchString(fl.Field().String())
	}, "only alphanumeric characters and underscores are allowed")
}

// FieldError is a failure on one request field.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

type Error struct {
	Msg    string
	Fields []FieldError
}

func New(msg string, fields ...FieldError) error {
	return &Error{Msg: msg, Fields: fields}
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if len(e.Fields) > 0 {
		return e.Fields[0].Field + ": " + e.Fields[0].Error
	}
	return "validation failed"
}

// As extracts an *Error from err.
func As(err error) (*Error, bool) {
	var ve *Error
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// Struct validates s against its `validate` tags.
func Struct(s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &Error{Msg: "validation failed"}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{Field: fieldPath(fe), Error: fe.Translate(translator)})
	}
	return out
}

// Var validates a single value against tag.
func Var(field string, value any, tag string) error {
	if err := v.Var(value, tag); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return New("validation failed", FieldError{Field: field, Error: verrs[0].Translate(translator)})
		}
		return err
	}
	return nil
}

// RegisterTag adds a custom validation tag with its English message.
// Call it from package init.
func RegisterTag(tag string, fn validator.Func, text string) {
	_ = v.RegisterValidation(tag, fn)
	RegisterTranslation(tag, text, false)
}

// RegisterTranslation registers a custom message for the validation tag.
func RegisterTranslation(tag, text string, override bool) {
	_ = v.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, override) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// fieldPath drops the top-level struct name: "req.sections[0].name" -> "sections[0].name".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}
