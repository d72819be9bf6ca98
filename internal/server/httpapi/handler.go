// Package httpapi exposes the authentication service over HTTP with gin.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/realforestry/hortus-auth/internal/logging"
	"github.com/realforestry/hortus-auth/internal/server/accounts"
	"github.com/realforestry/hortus-auth/internal/server/models"
	"github.com/realforestry/hortus-auth/internal/server/services"
)

type Handler struct {
	svc    *services.AuthService
	logger logging.Logger
}

func NewHandler(svc *services.AuthService, logger logging.Logger) *Handler {
	return &Handler{svc: svc, logger: logger.With("module", "http_api")}
}

// NewRouter wires every route. allowedOrigins empty disables CORS.
func NewRouter(h *Handler, allowedOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), h.requestLog())

	if len(allowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     allowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	a := r.Group("/auth")
	{
		a.POST("/register", h.register)
		a.POST("/verify-otp", h.verifyOTP)
		a.POST("/resend-otp", h.resendOTP)
		a.POST("/login", h.login)
		a.POST("/refresh", h.refresh)
		a.POST("/forgot-password", h.forgotPassword)
		a.POST("/verify-reset-otp", h.checkResetCode)
		a.POST("/reset-password", h.resetPassword)
		a.POST("/logout", RequireAuth(h.svc), h.logout)
	}

	me := r.Group("/users/me", RequireAuth(h.svc))
	{
		me.GET("", h.getProfile)
		me.PATCH("", h.updateProfile)
		me.POST("/password", h.changePassword)
	}

	return r
}

func (h *Handler) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		h.logger.Info(c.Request.Context(), "request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errBadRequest)
		return
	}

	res, err := h.svc.Register(c.Request.Context(), accounts.RegisterInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
		FullName: req.FullName,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toSessionResponse(res))
}

func (h *Handler) verifyOTP(c *gin.Context) {
	var req codeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errBadRequest)
		return
	}

	res, err := h.svc.VerifyOTP(c.Request.Context(), req.Email, req.Code)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, toSessionResponse(res))
}

func (h *Handler) resendOTP(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errBadRequest)
		return
	}

	if err := h.svc.ResendOTP(c.Request.Context(), req.Email); err != nil {
		abortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errBadRequest)
		return
	}

	res, err := h.svc.Login(c.Request.Context(), req.Login, req.Password)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, toSessionResponse(res))
}

func (h *Handler) refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errBadRequest)
		return
	}

	res, err := h.svc.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, toSessionResponse(res))
}

func (h *Handler) logout(c *gin.Context) {
	p := principalFrom(c)
	if err := h.svc.Logout(c.Request.Context(), p.Subject); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) forgotPassword(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errBadRequest)
		return
	}

	if err := h.svc.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		abortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) checkResetCode(c *gin.Context) {
	var req codeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errBadRequest)
		return
	}

	if err := h.svc.CheckResetCode(c.Request.Context(), req.Email, req.Code); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"valid": true})
}

func (h *Handler) resetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errBadRequest)
		return
	}

	if err := h.svc.ResetPassword(c.Request.Context(), req.Email, req.Code, req.NewPassword); err != nil {
		abortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) getProfile(c *gin.Context) {
	a, err := h.svc.GetProfile(c.Request.Context(), principalFrom(c).Subject)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toAccountResponse(a))
}

func (h *Handler) updateProfile(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errBadRequest)
		return
	}

	a, err := h.svc.UpdateProfile(c.Request.Context(), principalFrom(c).Subject, models.Profile{
		FullName:  req.FullName,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, toAccountResponse(a))
}

func (h *Handler) changePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errBadRequest)
		return
	}

	err := h.svc.ChangePassword(c.Request.Context(), principalFrom(c).Subject, req.CurrentPassword, req.NewPassword)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
