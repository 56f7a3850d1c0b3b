package config

import (
	"fmt"
	"regexp"
	"unicode"
)

// PasswordPolicy is the composability rule shared by register, change and reset
type PasswordPolicy struct {
	MinLength      int  `yaml:"min_length"`
	RequireUpper   bool `yaml:"require_upper"`
	RequireLower   bool `yaml:"require_lower"`
	RequireDigit   bool `yaml:"require_digit"`
	RequireSpecial bool `yaml:"require_special"`
}

// Rules holds the field rules applied before any request leaves the client
type Rules struct {
	Password      PasswordPolicy `yaml:"password_policy"`
	PhonePattern  string         `yaml:"phone_pattern"`
	IFSCPattern   string         `yaml:"ifsc_pattern"`
	LoginMinChars int            `yaml:"login_min_password"`

	phone *regexp.Regexp
	ifsc  *regexp.Regexp
}

// DefaultRules matches the API's own constraints
func DefaultRules() Rules {
	return Rules{
		Password: PasswordPolicy{
			MinLength:    8,
			RequireUpper: true,
			RequireLower: true,
			RequireDigit: true,
		},
		PhonePattern:  `^[6-9]\d{9}$`,
		IFSCPattern:   `^[A-Z]{4}0[A-Z0-9]{6}$`,
		LoginMinChars: 6,
	}
}

// Compile prepares the patterns; it must be called before the matchers are used
func (r *Rules) Compile() error {
	phone, err := regexp.Compile(r.PhonePattern)
	if err != nil {
		return fmt.Errorf("invalid phone pattern: %w", err)
	}
	ifsc, err := regexp.Compile(r.IFSCPattern)
	if err != nil {
		return fmt.Errorf("invalid IFSC pattern: %w", err)
	}
	if r.Password.MinLength <= 0 {
		return fmt.Errorf("invalid password policy: min_length must be positive")
	}
	r.phone = phone
	r.ifsc = ifsc
	return nil
}

// MatchPhone reports whether phone is a valid local mobile number
func (r *Rules) MatchPhone(phone string) bool {
	if r.phone == nil {
		return false
	}
	return r.phone.MatchString(phone)
}

// MatchIFSC reports whether code is a valid bank branch code
func (r *Rules) MatchIFSC(code string) bool {
	if r.ifsc == nil {
		return false
	}
	return r.ifsc.MatchString(code)
}

// PasswordIssue returns the first rule password breaks, or "" when it passes
func (p PasswordPolicy) PasswordIssue(password string) string {
	if len(password) < p.MinLength {
		return fmt.Sprintf("Minimum %d characters", p.MinLength)
	}

	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		default:
			special = true
		}
	}

	switch {
	case p.RequireUpper && !upper:
		return "Must contain uppercase letter"
	case p.RequireLower && !lower:
		return "Must contain lowercase letter"
	case p.RequireDigit && !digit:
		return "Must contain number"
	case p.RequireSpecial && !special:
		return "Must contain special character"
	}
	return ""
}
