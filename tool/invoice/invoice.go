// Package invoice provides the invoice-parser tool. The model extracts an
// invoice from the conversation (or an uploaded receipt) and the tool returns
// it unmodified once it passes validation.
package invoice

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/hupe1980/genui/tool"
)

// Name is the tool name the model selects.
const Name = "invoice-parser"

// LineItem is one invoice position.
type LineItem struct {
	ID       string  `json:"id,omitempty" jsonschema:"description=Unique identifier for the line item"`
	Name     string  `json:"name" jsonschema:"description=Name or description of the line item"`
	Quantity int     `json:"quantity" validate:"gt=0" jsonschema:"description=Quantity of the line item,exclusiveMinimum=0"`
	Price    float64 `json:"price" validate:"gt=0" jsonschema:"description=Price per unit of the line item,exclusiveMinimum=0"`
}

// ShippingAddress is where the order ships to.
type ShippingAddress struct {
	Name   string `json:"name" jsonschema:"description=Name of the recipient"`
	Street string `json:"street" jsonschema:"description=Street address for shipping"`
	City   string `json:"city" jsonschema:"description=City for shipping"`
	State  string `json:"state" jsonschema:"description=State or province for shipping"`
	Zip    string `json:"zip" jsonschema:"description=ZIP or postal code for shipping"`
}

// CustomerInfo identifies the buyer.
type CustomerInfo struct {
	Name  string `json:"name" jsonschema:"description=Name of the customer"`
	Email string `json:"email" validate:"email" jsonschema:"description=Email address of the customer,format=email"`
	Phone string `json:"phone,omitempty" jsonschema:"description=Phone number of the customer"`
}

// PaymentInfo describes the card used.
type PaymentInfo struct {
	CardType           string `json:"cardType" jsonschema:"description=Type of credit card used for payment"`
	CardNumberLastFour string `json:"cardNumberLastFour" jsonschema:"description=Last four digits of the credit card number"`
}

// Invoice is both the tool argument and its result.
type Invoice struct {
	OrderID         string           `json:"orderId" validate:"required" jsonschema:"description=The order ID"`
	LineItems       []LineItem       `json:"lineItems" validate:"required,min=1,dive" jsonschema:"description=List of line items in the invoice"`
	ShippingAddress *ShippingAddress `json:"shippingAddress,omitempty" jsonschema:"description=Shipping address for the order"`
	CustomerInfo    *CustomerInfo    `json:"customerInfo,omitempty" jsonschema:"description=Information about the customer"`
	PaymentInfo     *PaymentInfo     `json:"paymentInfo,omitempty" jsonschema:"description=Payment information for the order"`
}

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate implements tool.Validator. Line items without an id get one.
func (inv *Invoice) Validate() error {
	for i := range inv.LineItems {
		if inv.LineItems[i].ID == "" {
			inv.LineItems[i].ID = uuid.NewString()
		}
	}

	err := validate.Struct(inv)
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	errs := make([]error, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		errs = append(errs, fieldError(fe))
	}
	return errors.Join(errs...)
}

func fieldError(fe validator.FieldError) error {
	field := strings.TrimPrefix(fe.Namespace(), "Invoice.")
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s is required", field)
	case "min":
		return fmt.Errorf("%s must not be empty", field)
	case "gt":
		return fmt.Errorf("%s must be greater than %s", field, fe.Param())
	case "email":
		return fmt.Errorf("%s must be a valid email address", field)
	default:
		return fmt.Errorf("%s failed %s validation", field, fe.Tag())
	}
}

// New creates the invoice-parser tool.
func New() tool.Tool {
	return tool.NewTyped(Name, "Parse an invoice and return it without modification.",
		func(_ context.Context, inv Invoice) (any, error) {
			return inv, nil
		})
}
