package domain

import "time"

// User represents the identity returned by the API for a signed-in account
type User struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone_number"`
	Role  string `json:"role"`
}

// Session is a point-in-time view of a session store
type Session struct {
	User            *User  `json:"user"`
	IsAuthenticated bool   `json:"is_authenticated"`
	Loading         bool   `json:"loading"`
	Error           string `json:"error,omitempty"`
}

// AdminSession has the same shape as Session but is produced by the admin store only
type AdminSession Session

// AuthResult is what login and OTP verification return
type AuthResult struct {
	AccessToken string `json:"access_token"`
	User        *User  `json:"user"`
}

// Credentials represents login input for both user and admin login
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Registration represents the register form
type Registration struct {
	Name            string `json:"name" validate:"required,min=3"`
	Email           string `json:"email" validate:"required,email"`
	Phone           string `json:"phone_number" validate:"required,localmobile"`
	Password        string `json:"password" validate:"required,strongpassword"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

// OTPStatus is the lifecycle state of an OTP challenge
type OTPStatus string

const (
	OTPPending  OTPStatus = "pending"
	OTPExpired  OTPStatus = "expired"
	OTPVerified OTPStatus = "verified"
)

// OTPChallenge represents a pending phone verification. The code is never kept.
type OTPChallenge struct {
	Phone     string    `json:"phone_number"`
	ExpiresAt time.Time `json:"expires_at"`
	Status    OTPStatus `json:"status"`
}

// Remaining returns whole seconds left before expiry, never negative
func (c *OTPChallenge) Remaining(now time.Time) int {
	ms := c.ExpiresAt.Sub(now).Milliseconds()
	if ms <= 0 {
		return 0
	}
	return int(ms / 1000)
}

// StatusAt derives the challenge status at the given instant
func (c *OTPChallenge) StatusAt(now time.Time) OTPStatus {
	if c.Status == OTPVerified {
		return OTPVerified
	}
	if c.Remaining(now) == 0 {
		return OTPExpired
	}
	return OTPPending
}

// OTPVerification is the verify-otp form
type OTPVerification struct {
	Phone string `json:"phone_number" validate:"required,localmobile"`
	Code  string `json:"otp" validate:"required,otpcode"`
}

// PasswordChangeRequest is validated and then discarded; it is never stored
type PasswordChangeRequest struct {
	CurrentPassword    string `json:"current_password"`
	NewPassword        string `json:"new_password"`
	ConfirmNewPassword string `json:"confirm_new_password"`
}

// PasswordReset is the reset-password form; Token comes from the reset link
type PasswordReset struct {
	Token           string `json:"token"`
	NewPassword     string `json:"password" validate:"required,strongpassword"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=NewPassword"`
}

// ForgotPassword is the forgot-password form
type ForgotPassword struct {
	Email string `json:"email" validate:"required,email"`
}

// ApplicationStatus is the review state of an organizer application
type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationApproved ApplicationStatus = "approved"
	ApplicationRejected ApplicationStatus = "rejected"
)

// OrganizerApplication as returned by the admin and organizer endpoints
type OrganizerApplication struct {
	ID               uint              `json:"id"`
	OrganizationName string            `json:"organization_name"`
	Address          string            `json:"address"`
	ContactName      string            `json:"contact_name"`
	ContactEmail     string            `json:"contact_email"`
	ContactPhone     string            `json:"contact_phone"`
	BeneficiaryName  string            `json:"beneficiary_name"`
	AccountType      string            `json:"account_type"`
	BankName         string            `json:"bank_name"`
	AccountNumber    string            `json:"account_number"`
	IFSCCode         string            `json:"ifsc_code"`
	Status           ApplicationStatus `json:"status"`
	RejectionReason  string            `json:"rejection_reason,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// StatusUpdate is the admin decision on an application
type StatusUpdate struct {
	Status ApplicationStatus `json:"status"`
	Reason string            `json:"reason,omitempty"`
}

// OrganizerApplicationForm is the organizer apply form
type OrganizerApplicationForm struct {
	OrganizationName string `json:"organization_or_individual_name" validate:"required,min=3"`
	Address          string `json:"address" validate:"required,min=10"`
	ContactName      string `json:"contact_name" validate:"required,min=3"`
	Email            string `json:"email" validate:"required,email"`
	Phone            string `json:"phone_number" validate:"required,localmobile"`
	BeneficiaryName  string `json:"beneficiary_name" validate:"required,min=3"`
	AccountType      string `json:"account_type" validate:"required,oneof=Savings Current"`
	BankName         string `json:"bank_name" validate:"required,min=3"`
	AccountNumber    string `json:"account_number" validate:"required,numeric,min=9,max=18"`
	IFSCCode         string `json:"ifsc_code" validate:"required,ifsc"`
}

// PolicyRule lets a role dispatch the methods matched by Methods (a regex such
// as "(GET|POST)") on routes matched by Route (a keyMatch2 pattern)
type PolicyRule struct {
	Role    string `json:"role"`
	Route   string `json:"route"`
	Methods string `json:"methods"`
}
