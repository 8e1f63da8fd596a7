package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	en "github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// validate holds the settings and caches for validating request struct
// values.
var validate = validator.New()

// translator is a cache of locale and translation information.
var translator *ut.UniversalTranslator

func init() {
	enLocale := en.New()
	translator = ut.New(enLocale, enLocale)
	lang, _ := translator.GetTranslator("en")
	en_translations.RegisterDefaultTranslations(validate, lang)
}

// Decode reads the body of an HTTP request looking for a JSON document. The
// body is decoded into the provided value, and then the value is checked
// for validation errors against its `validate` struct tags, if present.
func Decode(r *http.Request, val any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(val); err != nil {
		return fmt.Errorf("unable to decode payload: %w", err)
	}

	if err := validate.Struct(val); err != nil {

		verrors, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}

		lang, _ := translator.GetTranslator("en")

		var fields []string
		for _, verror := range verrors {
			field := verror.Field()
			fields = append(fields, fmt.Sprintf("%s: %s", field, verror.Translate(lang)))
		}

		return &FieldErrors{Fields: strings.Join(fields, ",")}
	}

	return nil
}

// FieldErrors represents a collection of struct-tag validation failures
// produced while decoding a request body.
type FieldErrors struct {
	Fields string
}

// Error implements the error interface.
func (fe *FieldErrors) Error() string {
	return fe.Fields
}

// IsFieldErrors checks if an error of type FieldErrors exists.
func IsFieldErrors(err error) bool {
	var fe *FieldErrors
	return errors.As(err, &fe)
}
