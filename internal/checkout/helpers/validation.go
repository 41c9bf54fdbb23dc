package helpers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	pkgerrors "github.com/vitalcart/storefront-backend/pkg/errors"
	"github.com/vitalcart/storefront-backend/pkg/types"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	return v
}

// ValidateCart rejects an empty cart and lines whose pricing does not add up.
func ValidateCart(cart types.Cart) error {
	if len(cart) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	if err := validate.Var(cart, "dive"); err != nil {
		return formatErrors(err, "cartItems")
	}
	for i, item := range cart {
		if err := item.CheckTotal(); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cart item").
				WithDetails(map[string]string{fmt.Sprintf("cartItems[%d].totalPrice", i): err.Error()})
		}
	}
	return nil
}

// ValidateSignup checks the account section of a guest checkout, including
// acceptance of the terms and privacy policy.
func ValidateSignup(account any) error {
	if err := validate.Struct(account); err != nil {
		return formatErrors(err, "account")
	}
	return nil
}

func ValidateAddress(addr types.Address) error {
	if addr.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "address is required").
			WithDetails(map[string]string{"address": "is required"})
	}
	if err := validate.Struct(addr); err != nil {
		return formatErrors(err, "address")
	}
	return nil
}

func formatErrors(err error, prefix string) error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
	}
	details := map[string]string{}
	for _, fe := range errs {
		details[fieldPath(prefix, fe)] = message(fe)
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
}

func fieldPath(prefix string, fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexAny(ns, ".["); i >= 0 {
		ns = ns[i:]
	} else {
		ns = "." + ns
	}
	return prefix + ns
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of %s", fe.Param())
	case "eq":
		return "must be accepted"
	}
	return "is invalid"
}
