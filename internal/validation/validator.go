package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/you/findmyseat/domain"
	"github.com/you/findmyseat/internal/config"
)

var requiredMessages = map[string]string{
	"email":            "Email is required",
	"password":         "Password is required",
	"name":             "Name is required",
	"phone_number":     "Phone number is required",
	"otp":              "OTP is required",
	"confirm_password": "Please confirm your password",
	"current_password": "Current password is required",
	"new_password":     "New password is required",
	"account_type":     "Please select account type",
}

// Validator runs the client-side schema checks on form value objects
type Validator struct {
	v         *validator.Validate
	rules     *config.Rules
	otp       *regexp.Regexp
	otpLength int
}

// New creates a validator bound to the given rules. rules must be compiled.
func New(rules config.Rules, otpLength int) *Validator {
	if otpLength <= 0 {
		otpLength = 6
	}
	val := &Validator{
		v:         validator.New(validator.WithRequiredStructEnabled()),
		rules:     &rules,
		otp:       regexp.MustCompile(fmt.Sprintf(`^\d{%d}$`, otpLength)),
		otpLength: otpLength,
	}

	val.v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// Registration only fails on an empty tag or nil func, neither of which can happen here.
	_ = val.v.RegisterValidation("localmobile", func(fl validator.FieldLevel) bool {
		return val.rules.MatchPhone(fl.Field().String())
	})
	_ = val.v.RegisterValidation("strongpassword", func(fl validator.FieldLevel) bool {
		return val.rules.Password.PasswordIssue(fl.Field().String()) == ""
	})
	_ = val.v.RegisterValidation("otpcode", func(fl validator.FieldLevel) bool {
		return val.otp.MatchString(fl.Field().String())
	})
	_ = val.v.RegisterValidation("ifsc", func(fl validator.FieldLevel) bool {
		return val.rules.MatchIFSC(fl.Field().String())
	})

	return val
}

// Login checks the login form; the same rules apply to admin login
func (val *Validator) Login(c domain.Credentials) error {
	err := val.check(c)
	if len(c.Password) == 0 || len(c.Password) >= val.rules.LoginMinChars {
		return err
	}

	var vErr *domain.ValidationError
	if err == nil {
		vErr = &domain.ValidationError{Fields: map[string]string{}}
	} else if !errors.As(err, &vErr) {
		return err
	}
	if _, seen := vErr.Fields["password"]; !seen {
		vErr.Fields["password"] = fmt.Sprintf("Password must be at least %d characters", val.rules.LoginMinChars)
	}
	return vErr
}

// Register checks the registration form
func (val *Validator) Register(r domain.Registration) error {
	return val.check(r)
}

// VerifyOTP checks the OTP form
func (val *Validator) VerifyOTP(v domain.OTPVerification) error {
	return val.check(v)
}

type phoneOnly struct {
	Phone string `json:"phone_number" validate:"required,localmobile"`
}

// ResendOTP checks the phone number a resend is requested for
func (val *Validator) ResendOTP(phone string) error {
	return val.check(phoneOnly{Phone: phone})
}

// ForgotPassword checks the forgot-password form
func (val *Validator) ForgotPassword(f domain.ForgotPassword) error {
	return val.check(f)
}

// ResetPassword checks the new password pair. The token is checked by the caller
// because its absence is terminal rather than a field error.
func (val *Validator) ResetPassword(r domain.PasswordReset) error {
	return val.check(r)
}

// ChangePassword applies the checks in order and stops at the first violation
func (val *Validator) ChangePassword(req domain.PasswordChangeRequest) error {
	if req.CurrentPassword == "" {
		return domain.NewValidationError("current_password", requiredMessages["current_password"])
	}
	if issue := val.rules.Password.PasswordIssue(req.NewPassword); issue != "" {
		return domain.NewValidationError("new_password", issue)
	}
	if req.NewPassword != req.ConfirmNewPassword {
		return domain.NewValidationError("confirm_new_password", "Passwords do not match")
	}
	if req.NewPassword == req.CurrentPassword {
		return domain.NewValidationError("new_password", "New password must be different from current password")
	}
	return nil
}

// StatusUpdate checks an admin decision: rejections need a reason
func (val *Validator) StatusUpdate(u domain.StatusUpdate) error {
	switch u.Status {
	case domain.ApplicationApproved, domain.ApplicationPending:
		return nil
	case domain.ApplicationRejected:
		if strings.TrimSpace(u.Reason) == "" {
			return domain.NewValidationError("reason", "Please provide a reason for rejection")
		}
		return nil
	default:
		return domain.NewValidationError("status", fmt.Sprintf("Unknown status %q", u.Status))
	}
}

// OrganizerApplication checks the organizer apply form
func (val *Validator) OrganizerApplication(form domain.OrganizerApplicationForm) error {
	return val.check(form)
}

func (val *Validator) check(s interface{}) error {
	err := val.v.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validation: %w", err)
	}

	out := &domain.ValidationError{Fields: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		if _, seen := out.Fields[fe.Field()]; seen {
			continue
		}
		out.Fields[fe.Field()] = val.message(fe)
	}
	return out
}

func (val *Validator) message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		if msg, ok := requiredMessages[fe.Field()]; ok {
			return msg
		}
		return "This field is required"
	case "email":
		return "Invalid email address"
	case "min":
		if fe.Field() == "account_number" {
			return fmt.Sprintf("Account number must be at least %s digits", fe.Param())
		}
		return fmt.Sprintf("Must be at least %s characters", fe.Param())
	case "max":
		if fe.Field() == "account_number" {
			return fmt.Sprintf("Account number must not exceed %s digits", fe.Param())
		}
		return fmt.Sprintf("Must not exceed %s characters", fe.Param())
	case "numeric":
		return "Must contain digits only"
	case "eqfield":
		return "Passwords do not match"
	case "oneof":
		if fe.Field() == "account_type" {
			return requiredMessages["account_type"]
		}
		return fmt.Sprintf("Must be one of: %s", fe.Param())
	case "localmobile":
		return "Enter valid 10-digit phone number starting with 6-9"
	case "strongpassword":
		return val.rules.Password.PasswordIssue(fmt.Sprintf("%v", fe.Value()))
	case "otpcode":
		return fmt.Sprintf("OTP must be exactly %d digits", val.otpLength)
	case "ifsc":
		return "Invalid IFSC code format (e.g., SBIN0001234)"
	default:
		return fmt.Sprintf("Invalid value (%s)", fe.Tag())
	}
}
