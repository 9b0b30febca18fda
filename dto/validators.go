package dto

import (
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/princinho/escolaportal/utils"
)

var (
	Translator ut.Translator

	// custom validation tags
	notBlankTag = "notblank"
	hhmmTag     = "hhmm"
	isoDateTag  = "isodate"

	registerOnce sync.Once
	registerErr  error
)

// RegisterValidators hooks the custom tags and english messages into gin's
// validator. Safe to call more than once.
func RegisterValidators() error {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_en := en.New()
		uni := ut.New(_en, _en)
		Translator, _ = uni.GetTranslator("en")
		if registerErr = en_translations.RegisterDefaultTranslations(v, Translator); registerErr != nil {
			return
		}

		// Use JSON tag names for errors instead of Go struct names.
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			tag := fld.Tag.Get("json")
			if tag == "" {
				tag = fld.Tag.Get("form")
			}
			name := strings.SplitN(tag, ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		for tag, fn := range map[string]validator.Func{
			notBlankTag: notBlankValidation,
			hhmmTag:     hhmmValidation,
			isoDateTag:  isoDateValidation,
		} {
			if registerErr = v.RegisterValidation(tag, fn); registerErr != nil {
				return
			}
			registerErr = v.RegisterTranslation(tag, Translator, func(ut.Translator) error { return nil }, translateCustomValidationErrs)
			if registerErr != nil {
				return
			}
		}
	})
	return registerErr
}

func translateCustomValidationErrs(_ ut.Translator, fe validator.FieldError) string {
	switch fe.Tag() {
	case notBlankTag:
		return "this field cannot be blank"
	case hhmmTag:
		return "must be a time in HH:mm format"
	case isoDateTag:
		return "must be a date in YYYY-MM-DD format"
	default:
		return ""
	}
}

func notBlankValidation(fl validator.FieldLevel) bool {
	if str, ok := fl.Field().Interface().(string); ok {
		return strings.TrimSpace(str) != ""
	}
	return false
}

func hhmmValidation(fl validator.FieldLevel) bool {
	s, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	_, err := utils.MinutesOfDay(s)
	return err == nil
}

func isoDateValidation(fl validator.FieldLevel) bool {
	s, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	_, err := utils.ParseDate(s)
	return err == nil
}
