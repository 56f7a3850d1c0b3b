package e2e

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/you/findmyseat/domain"
)

const fakeSigningKey = "e2e-signing-key"

type fakeAccount struct {
	user     domain.User
	hash     []byte
	verified bool
}

// FakeAPI is an in-process stand-in for the remote FindMySeat REST API. It
// keeps accounts, OTP codes, reset tokens and organizer applications in memory.
type FakeAPI struct {
	t      *testing.T
	server *httptest.Server

	mu          sync.Mutex
	nextUserID  uint
	nextAppID   uint
	accounts    map[string]*fakeAccount // by email
	otpCodes    map[string]string       // by phone
	resetTokens map[string]string       // token -> email
	apps        map[uint]*domain.OrganizerApplication
	appOwners   map[uint]uint // application -> user id
	calls       map[string]int
	tokenTTL    time.Duration
}

// NewFakeAPI starts the fake API and registers its shutdown with t
func NewFakeAPI(t *testing.T) *FakeAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &FakeAPI{
		t:           t,
		nextUserID:  1,
		nextAppID:   1,
		accounts:    make(map[string]*fakeAccount),
		otpCodes:    make(map[string]string),
		resetTokens: make(map[string]string),
		apps:        make(map[uint]*domain.OrganizerApplication),
		appOwners:   make(map[uint]uint),
		calls:       make(map[string]int),
		tokenTTL:    time.Hour,
	}

	r := gin.New()
	r.Use(f.count)
	v1 := r.Group("/api/v1")
	v1.POST("/auth/register", f.register)
	v1.POST("/auth/verify-otp", f.verifyOTP)
	v1.POST("/auth/resend-otp", f.resendOTP)
	v1.POST("/auth/login", f.login)
	v1.POST("/auth/change-password", f.requireRole(""), f.changePassword)
	v1.POST("/auth/forgot-password", f.forgotPassword)
	v1.POST("/auth/reset-password", f.resetPassword)
	v1.POST("/admin/login", f.adminLogin)
	v1.GET("/admin/organizer-applications", f.requireRole("admin"), f.listApplications)
	v1.GET("/admin/organizer-applications/:id", f.requireRole("admin"), f.getApplication)
	v1.PATCH("/admin/organizer-applications/:id/status", f.requireRole("admin"), f.updateStatus)
	v1.POST("/organizers/apply", f.requireRole(""), f.apply)
	v1.GET("/organizers/me", f.requireRole(""), f.myApplication)

	f.server = httptest.NewServer(r)
	t.Cleanup(f.server.Close)
	return f
}

// BaseURL is the API root the gateway should be configured with
func (f *FakeAPI) BaseURL() string { return f.server.URL + "/api/v1" }

// SeedUser creates a verified account
func (f *FakeAPI) SeedUser(name, email, phone, password, role string) domain.User {
	f.t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		f.t.Fatalf("hash password: %v", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	u := domain.User{ID: f.nextUserID, Name: name, Email: email, Phone: phone, Role: role}
	f.nextUserID++
	f.accounts[email] = &fakeAccount{user: u, hash: hash, verified: true}
	return u
}

// SeedApplication stores an application owned by no one
func (f *FakeAPI) SeedApplication(name string, status domain.ApplicationStatus) uint {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextAppID
	f.nextAppID++
	now := time.Now().UTC()
	f.apps[id] = &domain.OrganizerApplication{
		ID:               id,
		OrganizationName: name,
		Status:           status,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	return id
}

// OTPFor returns the code last "sent" to phone
func (f *FakeAPI) OTPFor(phone string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.otpCodes[phone]
}

// IssueResetToken mimics the reset link e-mailed for email
func (f *FakeAPI) IssueResetToken(email string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	token := fmt.Sprintf("reset-%d", len(f.resetTokens)+1)
	f.resetTokens[token] = email
	return token
}

// Application returns a copy of the stored application
func (f *FakeAPI) Application(id uint) (domain.OrganizerApplication, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	app, ok := f.apps[id]
	if !ok {
		return domain.OrganizerApplication{}, false
	}
	return *app, true
}

// Calls reports how many requests hit route, e.g. "POST /api/v1/auth/login"
func (f *FakeAPI) Calls(route string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[route]
}

func (f *FakeAPI) count(c *gin.Context) {
	c.Next()
	f.mu.Lock()
	f.calls[c.Request.Method+" "+c.FullPath()]++
	f.mu.Unlock()
}

func (f *FakeAPI) issueToken(u domain.User) string {
	claims := jwt.MapClaims{
		"sub":  strconv.FormatUint(uint64(u.ID), 10),
		"role": u.Role,
		"exp":  time.Now().Add(f.tokenTTL).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(fakeSigningKey))
	if err != nil {
		f.t.Errorf("sign token: %v", err)
	}
	return signed
}

// requireRole checks the bearer token. An empty role accepts any signed-in user.
func (f *FakeAPI) requireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Not authenticated"})
			return
		}
		claims := jwt.MapClaims{}
		_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
			return []byte(fakeSigningKey), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Could not validate credentials"})
			return
		}
		if role != "" && claims["role"] != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"detail": "Admin access required"})
			return
		}
		sub, _ := claims.GetSubject()
		id, _ := strconv.ParseUint(sub, 10, 64)
		c.Set("user_id", uint(id))
		c.Next()
	}
}

func (f *FakeAPI) accountByID(id uint) *fakeAccount {
	for _, acc := range f.accounts {
		if acc.user.ID == id {
			return acc
		}
	}
	return nil
}

func (f *FakeAPI) register(c *gin.Context) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Phone    string `json:"phone_number"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": []gin.H{{"msg": "Invalid request body"}}})
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.MinCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Could not hash password"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.accounts[req.Email]; exists {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Email already registered"})
		return
	}
	u := domain.User{ID: f.nextUserID, Name: req.Name, Email: req.Email, Phone: req.Phone, Role: "user"}
	f.nextUserID++
	f.accounts[req.Email] = &fakeAccount{user: u, hash: hash}
	f.otpCodes[req.Phone] = fmt.Sprintf("%06d", 100000+u.ID)
	c.JSON(http.StatusCreated, gin.H{"message": "OTP sent"})
}

func (f *FakeAPI) verifyOTP(c *gin.Context) {
	var req struct {
		Phone string `json:"phone_number"`
		Code  string `json:"otp"`
	}
	_ = c.ShouldBindJSON(&req)

	f.mu.Lock()
	defer f.mu.Unlock()
	if code, ok := f.otpCodes[req.Phone]; !ok || code != req.Code {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid OTP"})
		return
	}
	for _, acc := range f.accounts {
		if acc.user.Phone == req.Phone {
			acc.verified = true
			delete(f.otpCodes, req.Phone)
			c.JSON(http.StatusOK, domain.AuthResult{AccessToken: f.issueToken(acc.user), User: &acc.user})
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"detail": "User not found"})
}

func (f *FakeAPI) resendOTP(c *gin.Context) {
	var req struct {
		Phone string `json:"phone_number"`
	}
	_ = c.ShouldBindJSON(&req)

	f.mu.Lock()
	defer f.mu.Unlock()
	code, ok := f.otpCodes[req.Phone]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "No pending verification for this number"})
		return
	}
	n, _ := strconv.Atoi(code)
	f.otpCodes[req.Phone] = fmt.Sprintf("%06d", 100000+(n+1)%900000)
	c.JSON(http.StatusOK, gin.H{"message": "OTP resent"})
}

func (f *FakeAPI) checkPassword(email, password string) (*fakeAccount, bool) {
	f.mu.Lock()
	acc, ok := f.accounts[email]
	f.mu.Unlock()
	if !ok {
		return nil, false
	}
	if bcrypt.CompareHashAndPassword(acc.hash, []byte(password)) != nil {
		return nil, false
	}
	return acc, true
}

func (f *FakeAPI) login(c *gin.Context) {
	var req domain.Credentials
	_ = c.ShouldBindJSON(&req)

	acc, ok := f.checkPassword(req.Email, req.Password)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Invalid email or password"})
		return
	}
	if !acc.verified {
		c.JSON(http.StatusForbidden, gin.H{"detail": "Phone number not verified"})
		return
	}
	c.JSON(http.StatusOK, domain.AuthResult{AccessToken: f.issueToken(acc.user), User: &acc.user})
}

func (f *FakeAPI) adminLogin(c *gin.Context) {
	var req domain.Credentials
	_ = c.ShouldBindJSON(&req)

	acc, ok := f.checkPassword(req.Email, req.Password)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Invalid email or password"})
		return
	}
	if acc.user.Role != "admin" {
		c.JSON(http.StatusForbidden, gin.H{"detail": "Admin access required"})
		return
	}
	c.JSON(http.StatusOK, domain.AuthResult{AccessToken: f.issueToken(acc.user), User: &acc.user})
}

func (f *FakeAPI) changePassword(c *gin.Context) {
	var req struct {
		Current string `json:"current_password"`
		New     string `json:"new_password"`
	}
	_ = c.ShouldBindJSON(&req)

	f.mu.Lock()
	acc := f.accountByID(c.GetUint("user_id"))
	f.mu.Unlock()
	if acc == nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "User not found"})
		return
	}
	if bcrypt.CompareHashAndPassword(acc.hash, []byte(req.Current)) != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Current password is incorrect"})
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.New), bcrypt.MinCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Could not hash password"})
		return
	}
	f.mu.Lock()
	acc.hash = hash
	f.mu.Unlock()
	c.Status(http.StatusNoContent)
}

func (f *FakeAPI) forgotPassword(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "If the email exists, a reset link has been sent"})
}

func (f *FakeAPI) resetPassword(c *gin.Context) {
	var req struct {
		Token string `json:"token"`
		New   string `json:"new_password"`
	}
	_ = c.ShouldBindJSON(&req)

	f.mu.Lock()
	defer f.mu.Unlock()
	email, ok := f.resetTokens[req.Token]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid or expired reset token"})
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.New), bcrypt.MinCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Could not hash password"})
		return
	}
	f.accounts[email].hash = hash
	delete(f.resetTokens, req.Token)
	c.JSON(http.StatusOK, gin.H{"message": "Password reset successful"})
}

func (f *FakeAPI) listApplications(c *gin.Context) {
	status := domain.ApplicationStatus(c.Query("status"))

	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.OrganizerApplication, 0, len(f.apps))
	for id := uint(1); id < f.nextAppID; id++ {
		app, ok := f.apps[id]
		if !ok || (status != "" && app.Status != status) {
			continue
		}
		out = append(out, *app)
	}
	c.JSON(http.StatusOK, out)
}

func (f *FakeAPI) lookupApplication(c *gin.Context) (*domain.OrganizerApplication, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid application ID"})
		return nil, false
	}
	app, ok := f.apps[uint(id)]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Application not found"})
		return nil, false
	}
	return app, true
}

func (f *FakeAPI) getApplication(c *gin.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if app, ok := f.lookupApplication(c); ok {
		c.JSON(http.StatusOK, app)
	}
}

func (f *FakeAPI) updateStatus(c *gin.Context) {
	var req domain.StatusUpdate
	_ = c.ShouldBindJSON(&req)

	f.mu.Lock()
	defer f.mu.Unlock()
	app, ok := f.lookupApplication(c)
	if !ok {
		return
	}
	if req.Status == domain.ApplicationRejected && req.Reason == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": []gin.H{{"msg": "Rejection reason is required"}}})
		return
	}
	app.Status = req.Status
	app.RejectionReason = req.Reason
	app.UpdatedAt = time.Now().UTC()
	c.JSON(http.StatusOK, app)
}

func (f *FakeAPI) apply(c *gin.Context) {
	var form domain.OrganizerApplicationForm
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": []gin.H{{"msg": "Invalid request body"}}})
		return
	}
	owner := c.GetUint("user_id")

	f.mu.Lock()
	defer f.mu.Unlock()
	for id, o := range f.appOwners {
		if o == owner && f.apps[id].Status != domain.ApplicationRejected {
			c.JSON(http.StatusConflict, gin.H{"detail": "You already have an application under review"})
			return
		}
	}
	now := time.Now().UTC()
	app := &domain.OrganizerApplication{
		ID:               f.nextAppID,
		OrganizationName: form.OrganizationName,
		Address:          form.Address,
		ContactName:      form.ContactName,
		ContactEmail:     form.Email,
		ContactPhone:     form.Phone,
		BeneficiaryName:  form.BeneficiaryName,
		AccountType:      form.AccountType,
		BankName:         form.BankName,
		AccountNumber:    form.AccountNumber,
		IFSCCode:         form.IFSCCode,
		Status:           domain.ApplicationPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	f.nextAppID++
	f.apps[app.ID] = app
	f.appOwners[app.ID] = owner
	c.JSON(http.StatusCreated, app)
}

func (f *FakeAPI) myApplication(c *gin.Context) {
	owner := c.GetUint("user_id")

	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *domain.OrganizerApplication
	for id, o := range f.appOwners {
		if o == owner && (latest == nil || id > latest.ID) {
			latest = f.apps[id]
		}
	}
	if latest == nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "No application found"})
		return
	}
	c.JSON(http.StatusOK, latest)
}
