package checkout

import (
	"strings"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/angelmondragon/ghanadude-checkout/pkg/errors"
)

var validate = validator.New()

// ShippingForm is the buyer's delivery details.
type ShippingForm struct {
	FullName   string `json:"full_name"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Email      string `json:"email"`
}

type formRule struct {
	field string
	value string
	tag   string
}

// Normalized returns a copy with every field trimmed.
func (f ShippingForm) Normalized() ShippingForm {
	return ShippingForm{
		FullName:   strings.TrimSpace(f.FullName),
		Phone:      strings.TrimSpace(f.Phone),
		Address:    strings.TrimSpace(f.Address),
		City:       strings.TrimSpace(f.City),
		PostalCode: strings.TrimSpace(f.PostalCode),
		Country:    strings.TrimSpace(f.Country),
		Email:      strings.TrimSpace(f.Email),
	}
}

// Validate checks fields in form order and reports only the first failure.
func (f ShippingForm) Validate() error {
	f = f.Normalized()
	rules := []formRule{
		{"full_name", f.FullName, "required"},
		{"phone", f.Phone, "required"},
		{"address", f.Address, "required"},
		{"city", f.City, "required"},
		{"postal_code", f.PostalCode, "required"},
		{"country", f.Country, "required"},
		{"email", f.Email, "required,email"},
	}
	for _, rule := range rules {
		if err := validate.Var(rule.value, rule.tag); err != nil {
			return pkgerrors.Field(rule.field, fieldMessage(rule.field, err))
		}
	}
	return nil
}

func fieldMessage(field string, err error) string {
	label := strings.ReplaceAll(field, "_", " ")
	if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 && errs[0].Tag() == "email" {
		return label + " must be a valid email"
	}
	return label + " is required"
}

// FirstName is used to greet the buyer on the payment page.
func (f ShippingForm) FirstName() string {
	parts := strings.Fields(f.FullName)
	if len(parts) == 0 {
		return ""
	}
	return parts[0]
}
