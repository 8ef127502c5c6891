package validation

import (
	"reflect"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Violations maps a JSON field name to what is wrong with it.
type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

func (v Violations) Error() string {
	parts := make([]string, 0, len(v))
	for field, msg := range v {
		parts = append(parts, field+": "+msg)
	}
	return strings.Join(parts, "; ")
}

var (
	validate   *validator.Validate
	translator ut.Translator

	moneyTag    = "money"
	moneyText   = "{0} must have at most {1} decimal places"
	moneyPlaces atomic.Int32
)

// SetMoneyPlaces sets how many decimals the money tag accepts. The default is 2.
func SetMoneyPlaces(places int32) {
	if places < 0 {
		places = 0
	}
	moneyPlaces.Store(places)
}

func init() {
	moneyPlaces.Store(2)
	validate = validator.New()

	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// Decimals are compared as floats by the numeric tags (gt, gte, lte...).
	validate.RegisterCustomTypeFunc(func(v reflect.Value) any {
		d, ok := v.Interface().(decimal.Decimal)
		if !ok {
			return nil
		}
		f, _ := d.Float64()
		return f
	}, decimal.Decimal{})

	_ = validate.RegisterValidation(moneyTag, moneyValidation)
	registerTranslation(moneyTag, moneyText)
}

func registerTranslation(tag, text string) {
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, false) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field(), strconv.Itoa(int(moneyPlaces.Load())))
			return s
		},
	)
}

// moneyValidation runs on the float produced by the decimal type func.
func moneyValidation(fl validator.FieldLevel) bool {
	d := decimal.NewFromFloat(fl.Field().Float())
	return d.Equal(d.Round(moneyPlaces.Load()))
}

// Struct validates s against its `validate` tags. Field errors come back as
// Violations; any other failure is returned as is.
func Struct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	v := make(Violations, len(fieldErrs))
	for _, fe := range fieldErrs {
		v[fieldPath(fe)] = fe.Translate(translator)
	}
	return v
}

// fieldPath drops the top-level struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}
