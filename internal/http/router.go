package httpx

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/you/findmyseat/internal/http/handlers"
	"github.com/you/findmyseat/internal/http/middleware"
	"go.uber.org/zap"
)

// Routes bundles what the intent gateway dispatches to
type Routes struct {
	Auth      *handlers.AuthHandlers
	State     *handlers.StateHandlers
	Admin     *handlers.AdminHandlers
	Organizer *handlers.OrganizerHandlers
	Policies  *handlers.PolicyHandlers

	Sessions *middleware.AuthMW
	Casbin   *middleware.CasbinMW
	Metrics  *middleware.Metrics
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

func BuildRouter(rt Routes) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID())
	if rt.Logger != nil {
		r.Use(middleware.Logger(rt.Logger))
	}
	if rt.Metrics != nil {
		r.Use(rt.Metrics.Handler())
	}

	r.GET("/health", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })
	if rt.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(rt.Gatherer, promhttp.HandlerOpts{})))
	}

	intents := r.Group("/intents")
	intents.POST("/login", rt.Auth.Login)
	intents.POST("/register", rt.Auth.Register)
	intents.POST("/verify-otp", rt.Auth.VerifyOTP)
	intents.POST("/resend-otp", rt.Auth.ResendOTP)
	intents.POST("/change-password", rt.Auth.ChangePassword)
	intents.POST("/forgot-password", rt.Auth.ForgotPassword)
	intents.POST("/reset-password", rt.Auth.ResetPassword)
	intents.POST("/logout", rt.Auth.Logout)
	intents.POST("/edit", rt.Auth.Edit)
	intents.DELETE("/:kind/success", rt.Auth.ClearSuccess)

	state := r.Group("/state")
	state.GET("", rt.State.State)
	state.GET("/otp", rt.State.OTP)
	state.GET("/otp/stream", rt.State.OTPStream)

	// admin login and logout never require an admin session
	adminIntents := r.Group("/admin/intents")
	adminIntents.POST("/login", rt.Admin.Login)
	adminIntents.POST("/logout", rt.Admin.Logout)

	adm := r.Group("/admin").Use(rt.Sessions.WithAdmin(), rt.Casbin.Enforce())
	adm.GET("/applications", rt.Admin.List)
	adm.GET("/applications/:id", rt.Admin.Get)
	adm.PATCH("/applications/:id/status", rt.Admin.UpdateStatus)
	adm.GET("/policies", rt.Policies.List)
	adm.POST("/policies", rt.Policies.Add)

	org := r.Group("/organizer").Use(rt.Sessions.WithUser(), rt.Casbin.Enforce())
	org.POST("/apply", rt.Organizer.Apply)
	org.GET("/application", rt.Organizer.Application)
	org.POST("/clear", rt.Organizer.ClearState)

	return r
}
