package api

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// refIDPattern excludes '|' and whitespace, which would corrupt the
// pipe-delimited checkout payload.
var refIDPattern = regexp.MustCompile(`^[A-Za-z0-9_\-.:]+$`)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("npr_amount", validateAmount)
	_ = v.RegisterValidation("ref_id", validateRefID)
	return v
}

// validateAmount accepts positive decimals with at most two fractional digits (paisa).
func validateAmount(fl validator.FieldLevel) bool {
	d, err := decimal.NewFromString(strings.TrimSpace(fl.Field().String()))
	if err != nil {
		return false
	}
	return d.IsPositive() && d.Equal(d.Truncate(2))
}

func validateRefID(fl validator.FieldLevel) bool {
	return refIDPattern.MatchString(fl.Field().String())
}

// validationMessage flattens validator errors into one client-facing line.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "npr_amount":
			msgs = append(msgs, field+" must be a positive amount with at most 2 decimals")
		case "ref_id":
			msgs = append(msgs, field+" may contain only letters, digits and _-.:")
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return strings.Join(msgs, "; ")
}
