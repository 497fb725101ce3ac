package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"carbid/pkg/logger"
	"carbid/pkg/model"
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

type BidValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewBidValidator(log *logger.Logger) *BidValidator {
	v := validator.New()

	// Decimals validate through their float value so numeric tags (gt, min)
	// apply to bid amounts.
	v.RegisterCustomTypeFunc(decimalAsFloat, decimal.Decimal{})

	return &BidValidator{
		validate: v,
		logger:   log,
	}
}

func (bv *BidValidator) ValidatePlaceBid(req *model.PlaceBidRequest) error {
	return bv.check(req)
}

func (bv *BidValidator) ValidateJoinAuction(req *model.JoinAuctionRequest) error {
	return bv.check(req)
}

func (bv *BidValidator) ValidateAuctionEnd(req *model.AuctionEndRequest) error {
	return bv.check(req)
}

func (bv *BidValidator) check(v any) error {
	err := bv.validate.Struct(v)
	if err == nil {
		return nil
	}

	var invalid validator.ValidationErrors
	if !errors.As(err, &invalid) {
		return ValidationErrors{{Field: "payload", Message: err.Error()}}
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
