package partners

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/mini-erp/mini-erp/internal/shared"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func init() {
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
}

// check runs struct tag validation and reports failures as validation errors
// naming the JSON fields.
func check(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	fields := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, fe.Field()+" "+fe.Tag())
	}
	return shared.Validationf("partners: invalid %s", strings.Join(fields, ", "))
}

func checkCreditLimit(limit *decimal.Decimal) error {
	if limit != nil && limit.IsNegative() {
		return shared.Validationf("partners: credit_limit must not be negative")
	}
	if limit != nil && !shared.WholeCents(*limit) {
		return shared.Validationf("partners: credit_limit must not have fractional cents")
	}
	return nil
}
