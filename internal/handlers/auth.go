package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/charlesng35/authgate/internal/auth"
	"github.com/charlesng35/authgate/internal/middleware"
	"github.com/charlesng35/authgate/internal/models"
	"github.com/charlesng35/authgate/pkg/errors"
	"github.com/charlesng35/authgate/pkg/response"
)

// AuthHandler exposes the authentication flows over HTTP.
type AuthHandler struct {
	engine   *iauth.Engine
	sessions *iauth.SessionService
}

// NewAuthHandler wires the auth engine into gin handlers.
func NewAuthHandler(engine *iauth.Engine, sessions *iauth.SessionService) *AuthHandler {
	return &AuthHandler{engine: engine, sessions: sessions}
}

type signUpRequest struct {
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

// POST /api/auth/signup
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req signUpRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.engine.SignUp(requestContext(c), iauth.SignUpInput{
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		Meta:            requestMeta(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"user":                  userPayload(user),
		"verification_required": !user.EmailVerified(),
	})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.engine.SignInWithPassword(requestContext(c), iauth.PasswordSignInInput{
		Email:    req.Email,
		Password: req.Password,
		Meta:     requestMeta(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	http.SetCookie(c.Writer, result.Cookie)
	response.Success(c, http.StatusOK, gin.H{"user": userPayload(result.User)})
}

type otpRequest struct {
	Email         string `json:"email" validate:"required,email"`
	ResetPassword bool   `json:"reset_password"`
}

// POST /api/auth/otp
func (h *AuthHandler) RequestOTP(c *gin.Context) {
	var req otpRequest
	if !bindAndValidate(c, &req) {
		return
	}

	err := h.engine.SignInWithOTP(requestContext(c), iauth.OTPSignInInput{
		Email:             req.Email,
		ResetPasswordMode: req.ResetPassword,
		Meta:              requestMeta(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "If the email exists, a login link is on its way"})
}

// GET /auth/otp/validate?token=...
//
// The magic-link landing endpoint. The redirect target is decided by the
// purpose stored with the token, not by query parameters a sender could
// forge.
func (h *AuthHandler) ValidateOTP(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))

	result, err := h.engine.VerifyOTP(requestContext(c), iauth.VerifyOTPInput{
		Token: token,
		Meta:  requestMeta(c),
	})
	if err != nil {
		c.Redirect(http.StatusFound, "/login?error=invalid-token")
		return
	}

	http.SetCookie(c.Writer, result.Cookie)

	if result.TokenPurpose == models.TokenPurposeResetPassword {
		c.Redirect(http.StatusFound, "/reset-password")
		return
	}
	c.Redirect(http.StatusFound, "/")
}

type resetPasswordRequest struct {
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

// POST /api/auth/password (authenticated)
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrNotAuthenticated)
		return
	}

	err := h.engine.ResetPassword(requestContext(c), iauth.ResetPasswordInput{
		UserID:          userID,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		Meta:            requestMeta(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "Password updated"})
}

// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	value, err := c.Cookie(h.sessions.CookieName())
	if err == nil {
		if err := h.engine.Logout(requestContext(c), value, requestMeta(c)); err != nil {
			response.Error(c, err)
			return
		}
	}

	http.SetCookie(c.Writer, h.sessions.ClearCookie())
	response.Success(c, http.StatusOK, gin.H{"message": "Signed out"})
}

// GET /api/auth/me (authenticated)
func (h *AuthHandler) Me(c *gin.Context) {
	value, ok := c.Get(middleware.CtxUserKey)
	if !ok {
		response.Error(c, errors.ErrNotAuthenticated)
		return
	}

	user, ok := value.(*models.User)
	if !ok {
		response.Error(c, errors.ErrNotAuthenticated)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"user": userPayload(user)})
}

func userPayload(user *models.User) gin.H {
	return gin.H{
		"id":             user.ID,
		"email":          user.Email,
		"name":           user.Name,
		"email_verified": user.EmailVerified(),
		"created_at":     user.CreatedAt,
	}
}

func requestMeta(c *gin.Context) iauth.RequestMeta {
	return iauth.RequestMeta{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}
