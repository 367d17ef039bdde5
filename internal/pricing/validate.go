package pricing

import (
	"errors"
	"math"
	"reflect"
	"strings"
	"sync"

	validator "github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "" || name == "-" {
				return fld.Name
			}
			return name
		})
		_ = v.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
			f := fl.Field().Float()
			return !math.IsNaN(f) && !math.IsInf(f, 0)
		})
		validate = v
	})
	return validate
}

// ValidateRequest rejects negative or non-finite amounts and a non-positive exchange rate.
func ValidateRequest(req Request) error {
	return validateStruct(req)
}

type lineItemsInput struct {
	Items               []LineItem `json:"items" validate:"min=1,dive"`
	ExchangeRate        float64    `json:"exchange_rate" validate:"finite,gt=0"`
	AdditionalProfitUSD float64    `json:"additional_profit_usd" validate:"finite,gte=0"`
}

// ValidateLineItems checks the inputs of AggregateLineItems.
func ValidateLineItems(items []LineItem, exchangeRate, additionalProfitUSD float64) error {
	return validateStruct(lineItemsInput{
		Items:               items,
		ExchangeRate:        exchangeRate,
		AdditionalProfitUSD: additionalProfitUSD,
	})
}

func validateStruct(v any) error {
	err := validatorInstance().Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := &ValidationError{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		_, field, _ := strings.Cut(fe.Namespace(), ".")
		out.Fields = append(out.Fields, FieldError{Field: field, Reason: reason(fe)})
	}
	return out
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "finite":
		return "must be a finite number"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "min":
		return "must have at least " + fe.Param() + " entry"
	default:
		return "failed " + fe.Tag()
	}
}
