package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"carbid/pkg/logger"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

func (v ValidationErrors) Details() map[string]any {
	details := make(map[string]any, len(v))
	for _, err := range v {
		details[err.Field] = err.Message
	}
	return details
}

// AuctionValidator checks the auction-service models (auctions, cars, users)
// against their struct tags.
type AuctionValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewAuctionValidator(log *logger.Logger) *AuctionValidator {
	v := validator.New()
	v.RegisterCustomTypeFunc(decimalAsFloat, decimal.Decimal{})

	return &AuctionValidator{
		validate: v,
		logger:   log,
	}
}

func (av *AuctionValidator) Validate(v any) error {
	err := av.validate.Struct(v)
	if err == nil {
		return nil
	}

	var invalid validator.ValidationErrors
	if !errors.As(err, &invalid) {
		return ValidationErrors{{Field: "body", Message: err.Error()}}
	}

	out := make(ValidationErrors, 0, len(invalid))
	for _, fe := range invalid {
		out = append(out, ValidationError{
			Field:   fe.Field(),
			Message: fmt.Sprintf("failed '%s' constraint", fe.Tag()),
		})
	}
	return out
}

func decimalAsFloat(field reflect.Value) any {
	if d, ok := field.Interface().(decimal.Decimal); ok {
		f, _ := d.Float64()
		return f
	}
	return nil
}
