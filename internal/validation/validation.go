// Package validation holds the form rules applied before any store call.
// Rules live in validate struct tags and run through go-playground/validator;
// each form maps the failing field and tag to its own message.
package validation

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/vaidashi/storefront-orders/internal/models"
	"github.com/vaidashi/storefront-orders/pkg/errors"
)

const (
	PhoneLength       = 10
	PasswordMinLength = 6
	PasswordMaxLength = 18
)

const (
	PaymentCashOnDelivery = "Cash on Delivery"
	PaymentOnline         = "Online Payment"
)

var (
	emailPattern  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	digitsPattern = regexp.MustCompile(`^[0-9]*$`)

	// RE2 has no lookahead, so each password class is its own pattern
	passwordClasses = []struct {
		pattern *regexp.Regexp
		message string
	}{
		{regexp.MustCompile(`[a-z]`), "Password must include at least one lowercase letter."},
		{regexp.MustCompile(`[A-Z]`), "Password must include at least one uppercase letter."},
		{regexp.MustCompile(`[0-9]`), "Password must include at least one number."},
		{regexp.MustCompile(`[@$!%*?&]`), "Password must include at least one special character (@$!%*?&)."},
	}
)

var paymentMethods = map[string]bool{
	PaymentCashOnDelivery: true,
	PaymentOnline:         true,
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// Report fields by their JSON names so messages key the same way clients send them
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	rules := map[string]validator.Func{
		"notblank": func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		},
		"storefront_email": func(fl validator.FieldLevel) bool {
			return emailPattern.MatchString(fl.Field().String())
		},
		"digits": func(fl validator.FieldLevel) bool {
			return digitsPattern.MatchString(fl.Field().String())
		},
		"phone10": func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			return len(s) == PhoneLength && digitsPattern.MatchString(s)
		},
		"password_classes": func(fl validator.FieldLevel) bool {
			return missingPasswordClass(fl.Field().String()) == ""
		},
		"payment_method": func(fl validator.FieldLevel) bool {
			return paymentMethods[fl.Field().String()]
		},
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(fmt.Sprintf("validation: register %s: %v", tag, err))
		}
	}

	return v
}

// missingPasswordClass returns the message for the first character class absent from pw
func missingPasswordClass(pw string) string {
	for _, c := range passwordClasses {
		if !c.pattern.MatchString(pw) {
			return c.message
		}
	}
	return ""
}

// messages maps "field.tag" to the text shown for that failure
type messages map[string]string

func (m messages) of(fe validator.FieldError) string {
	if fe.Tag() == "password_classes" {
		return missingPasswordClass(fe.Value().(string))
	}
	if msg, ok := m[fe.Field()+"."+fe.Tag()]; ok {
		return msg
	}
	return fmt.Sprintf("%s is invalid.", fe.Field())
}

// check runs the tag rules on form. Validator stops at the first failing tag
// of a field, so each bad field carries exactly one message.
func check(form interface{}, msgs messages) error {
	err := validate.Struct(form)
	if err == nil {
		return nil
	}

	var failures validator.ValidationErrors
	if !stderrors.As(err, &failures) {
		return errors.NewInternalError(fmt.Sprintf("failed to validate form: %v", err))
	}

	fields := errors.FieldErrors{}
	for _, fe := range failures {
		if _, seen := fields[fe.Field()]; !seen {
			fields[fe.Field()] = msgs.of(fe)
		}
	}
	return errors.NewValidationError(fields)
}

var checkoutMessages = messages{
	"name.notblank":          "Name is required.",
	"email.notblank":         "Email is required.",
	"email.storefront_email": "Invalid email format.",
	"address.notblank":       "Address is required.",
	"phone.notblank":         "Phone number is required.",
	"phone.phone10":          "Phone number must be 10 digits.",
	"payment.notblank":       "Select a payment method.",
	"payment.payment_method": "Select a payment method.",
}

// Checkout validates the contact and payment details captured when ordering
func Checkout(info models.UserInfo) error {
	return check(info, checkoutMessages)
}

// Signup carries the registration form
type Signup struct {
	Username string `json:"username" validate:"notblank"`
	Email    string `json:"email" validate:"notblank,storefront_email"`
	Password string `json:"password" validate:"notblank,min=6,max=18,password_classes"`
	Phone    string `json:"phone" validate:"notblank,digits,phone10"`
	Address  string `json:"address" validate:"notblank"`
}

const requiredField = "This field is required."

var signupMessages = messages{
	"username.notblank":      requiredField,
	"email.notblank":         requiredField,
	"email.storefront_email": "Invalid email format.",
	"password.notblank":      requiredField,
	"password.min":           "Password must be at least 6 characters.",
	"password.max":           "Password cannot exceed 18 characters.",
	"phone.notblank":         requiredField,
	"phone.digits":           "Phone number can only contain digits.",
	"phone.phone10":          "Phone number must be 10 digits.",
	"address.notblank":       requiredField,
}

// ValidateSignup applies the registration rules
func ValidateSignup(s Signup) error {
	return check(s, signupMessages)
}

// Login carries the login form
type Login struct {
	Email    string `json:"email" validate:"notblank,storefront_email"`
	Password string `json:"password" validate:"notblank,min=6"`
}

var loginMessages = messages{
	"email.notblank":         "Email is required.",
	"email.storefront_email": "Invalid email format.",
	"password.notblank":      "Password is required.",
	"password.min":           "Password must be at least 6 characters.",
}

// ValidateLogin applies the login form rules
func ValidateLogin(l Login) error {
	return check(l, loginMessages)
}

var profileMessages = messages{
	"username.notblank":      "Username is required",
	"email.notblank":         "Email is required",
	"email.storefront_email": "Invalid email format",
	"phone.notblank":         "Phone number is required",
	"phone.phone10":          "Phone number must be 10 digits",
	"address.notblank":       "Address is required",
}

// Profile validates an edit of the profile fields
func Profile(p models.ProfileUpdate) error {
	return check(p, profileMessages)
}
