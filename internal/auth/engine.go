package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/charlesng35/authgate/internal/models"
	"github.com/charlesng35/authgate/internal/services"
	"github.com/charlesng35/authgate/internal/store"
	"github.com/charlesng35/authgate/pkg/crypto"
	apperrors "github.com/charlesng35/authgate/pkg/errors"
	"github.com/charlesng35/authgate/pkg/logger"
	"github.com/charlesng35/authgate/pkg/mail"
	"github.com/charlesng35/authgate/pkg/metrics"
	"github.com/charlesng35/authgate/pkg/validator"
)

// Engine defaults.
const (
	DefaultTokenTTL          = 24 * time.Hour
	DefaultTokenLength       = 32
	DefaultPasswordMinLength = 8
	DefaultPasswordMaxLength = 128
)

// EngineConfig describes policy knobs for the auth engine.
type EngineConfig struct {
	AppName                  string
	BaseURL                  string
	RequireEmailVerification bool
	TokenTTL                 time.Duration
	TokenLength              int
	PasswordMinLength        int
	PasswordMaxLength        int
	Clock                    func() time.Time
}

// Engine orchestrates sign-up, password and OTP sign-in, token redemption,
// password reset, and session issuance. It is stateless per request; all
// shared state lives behind the store adapters.
type Engine struct {
	users    *store.UserStore
	sessions *SessionService
	mailer   mail.Mailer
	hasher   *crypto.Hasher
	audit    *services.AuditService
	log      *zap.Logger

	appName             string
	baseURL             string
	requireVerification bool
	tokenTTL            time.Duration
	tokenLength         int
	minPassword         int
	maxPassword         int
	now                 func() time.Time
}

// NewEngine constructs the auth engine. The audit service is optional; every
// other collaborator is required.
func NewEngine(users *store.UserStore, sessions *SessionService, mailer mail.Mailer, hasher *crypto.Hasher, audit *services.AuditService, cfg EngineConfig) (*Engine, error) {
	if users == nil {
		return nil, errors.New("auth engine: user store is required")
	}
	if sessions == nil {
		return nil, errors.New("auth engine: session service is required")
	}
	if mailer == nil {
		return nil, errors.New("auth engine: mailer is required")
	}
	if hasher == nil {
		return nil, errors.New("auth engine: hasher is required")
	}

	tokenTTL := cfg.TokenTTL
	if tokenTTL <= 0 {
		tokenTTL = DefaultTokenTTL
	}

	tokenLength := cfg.TokenLength
	if tokenLength <= 0 {
		tokenLength = DefaultTokenLength
	}

	minPassword := cfg.PasswordMinLength
	if minPassword <= 0 {
		minPassword = DefaultPasswordMinLength
	}

	maxPassword := cfg.PasswordMaxLength
	if maxPassword <= 0 {
		maxPassword = DefaultPasswordMaxLength
	}

	clock := time.Now
	if cfg.Clock != nil {
		clock = cfg.Clock
	}

	return &Engine{
		users:               users,
		sessions:            sessions,
		mailer:              mailer,
		hasher:              hasher,
		audit:               audit,
		log:                 logger.WithModule("auth"),
		appName:             strings.TrimSpace(cfg.AppName),
		baseURL:             strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		requireVerification: cfg.RequireEmailVerification,
		tokenTTL:            tokenTTL,
		tokenLength:         tokenLength,
		minPassword:         minPassword,
		maxPassword:         maxPassword,
		now:                 clock,
	}, nil
}

// RequestMeta carries client context for audit entries.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// SignUpInput captures the details required to register with a password.
type SignUpInput struct {
	Email           string
	Password        string
	ConfirmPassword string
	Meta            RequestMeta
}

// Result bundles the outcome of an operation that established a session.
type Result struct {
	User    *models.User
	Session *models.Session
	Cookie  *http.Cookie

	// TokenPurpose is set on OTP redemptions and tells the caller which flow
	// issued the redeemed token.
	TokenPurpose string
}

// SignUp registers a new password-based account. When verification is
// required the user stays unverified and receives a verification email; the
// caller is expected to show a "check your email" state instead of signing
// the user in.
func (e *Engine) SignUp(ctx context.Context, input SignUpInput) (*models.User, error) {
	email, err := e.normalizeEmail(input.Email)
	if err != nil {
		return nil, err
	}
	if err := e.validatePassword(input.Password, input.ConfirmPassword); err != nil {
		return nil, err
	}

	if _, err := e.users.FindByEmail(ctx, email); err == nil {
		metrics.SignUps.WithLabelValues("failure").Inc()
		return nil, apperrors.NewValidation("email is already registered")
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("auth engine: lookup email: %w", err)
	}

	hash, err := e.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("auth engine: hash password: %w", err)
	}

	user := &models.User{
		Email:        email,
		Name:         localPart(email),
		PasswordHash: &hash,
	}
	if !e.requireVerification {
		now := e.now()
		user.EmailVerifiedAt = &now
	}

	if err := e.users.Create(ctx, user); err != nil {
		metrics.SignUps.WithLabelValues("failure").Inc()
		return nil, err
	}

	metrics.SignUps.WithLabelValues("success").Inc()
	e.recordAudit(ctx, services.AuditActionSignUp, services.AuditResultSuccess, &user.ID, input.Meta, nil)

	if e.requireVerification {
		token, err := e.issueToken(ctx, user.ID, models.TokenPurposeVerifyEmail)
		if err != nil {
			return nil, err
		}
		if err := e.sendTokenMail(ctx, email, token, models.TokenPurposeVerifyEmail); err != nil {
			return nil, err
		}
	}

	return user, nil
}

// PasswordSignInInput captures a password sign-in attempt.
type PasswordSignInInput struct {
	Email    string
	Password string
	Meta     RequestMeta
}

// SignInWithPassword authenticates by email and password. Unknown emails and
// wrong passwords produce the same error, and no session is created unless
// every check passes.
func (e *Engine) SignInWithPassword(ctx context.Context, input PasswordSignInInput) (*Result, error) {
	email, err := e.normalizeEmail(input.Email)
	if err != nil {
		return nil, err
	}
	if input.Password == "" {
		return nil, apperrors.NewValidation("password is required")
	}

	user, err := e.users.FindByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		metrics.AuthAttempts.WithLabelValues("password", "failure").Inc()
		e.recordAudit(ctx, services.AuditActionLogin, services.AuditResultFailure, nil, input.Meta, map[string]any{"reason": "credentials"})
		return nil, apperrors.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if !user.HasPassword() || !e.hasher.Verify(*user.PasswordHash, input.Password) {
		metrics.AuthAttempts.WithLabelValues("password", "failure").Inc()
		e.recordAudit(ctx, services.AuditActionLogin, services.AuditResultFailure, &user.ID, input.Meta, map[string]any{"reason": "credentials"})
		return nil, apperrors.ErrInvalidCredentials
	}

	if e.requireVerification && !user.EmailVerified() {
		metrics.AuthAttempts.WithLabelValues("password", "failure").Inc()
		e.recordAudit(ctx, services.AuditActionLogin, services.AuditResultFailure, &user.ID, input.Meta, map[string]any{"reason": "unverified"})
		return nil, apperrors.ErrEmailNotVerified
	}

	session, cookie, err := e.sessions.Create(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	metrics.AuthAttempts.WithLabelValues("password", "success").Inc()
	e.recordAudit(ctx, services.AuditActionLogin, services.AuditResultSuccess, &user.ID, input.Meta, nil)

	return &Result{User: user, Session: session, Cookie: cookie}, nil
}

// OTPSignInInput captures a magic-link request.
type OTPSignInInput struct {
	Email             string
	ResetPasswordMode bool
	Meta              RequestMeta
}

// SignInWithOTP starts a magic-link flow. In reset mode an unknown email
// returns success without creating anything, so the response is
// indistinguishable from a real request. Outside reset mode an unknown email
// provisions a fresh unverified account.
func (e *Engine) SignInWithOTP(ctx context.Context, input OTPSignInInput) error {
	if !e.requireVerification {
		return apperrors.NewValidation("email verification is disabled, OTP sign-in is unavailable")
	}

	email, err := e.normalizeEmail(input.Email)
	if err != nil {
		return err
	}

	user, err := e.users.FindByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		if input.ResetPasswordMode {
			// Reset requests must not create accounts or leak existence.
			return nil
		}

		user = &models.User{Email: email, Name: localPart(email)}
		if err := e.users.Create(ctx, user); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	purpose := models.TokenPurposeLogin
	if input.ResetPasswordMode {
		purpose = models.TokenPurposeResetPassword
	}

	token, err := e.issueToken(ctx, user.ID, purpose)
	if err != nil {
		return err
	}

	e.recordAudit(ctx, services.AuditActionOTPRequest, services.AuditResultSuccess, &user.ID, input.Meta, map[string]any{"purpose": purpose})

	return e.sendTokenMail(ctx, email, token, purpose)
}

// VerifyOTPInput captures a token redemption.
type VerifyOTPInput struct {
	Token string
	Meta  RequestMeta
}

// VerifyOTP redeems a verification token: the token is consumed, the email is
// marked verified, and a session is issued. Consumption strictly precedes
// session issuance and is never retried, so a redeemed token can never be
// replayed even if issuance fails.
func (e *Engine) VerifyOTP(ctx context.Context, input VerifyOTPInput) (*Result, error) {
	user, err := e.consumeToken(ctx, input.Token, input.Meta)
	if err != nil {
		return nil, err
	}
	purpose := user.VerificationTokenPurpose

	session, cookie, err := e.sessions.Create(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	metrics.AuthAttempts.WithLabelValues("otp", "success").Inc()
	e.recordAudit(ctx, services.AuditActionOTPVerify, services.AuditResultSuccess, &user.ID, input.Meta, map[string]any{"purpose": purpose})

	fresh, err := e.users.FindByID(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	return &Result{User: fresh, Session: session, Cookie: cookie, TokenPurpose: purpose}, nil
}

// VerifyEmail redeems a verification token without establishing a session.
func (e *Engine) VerifyEmail(ctx context.Context, input VerifyOTPInput) (*models.User, error) {
	user, err := e.consumeToken(ctx, input.Token, input.Meta)
	if err != nil {
		return nil, err
	}

	e.recordAudit(ctx, services.AuditActionOTPVerify, services.AuditResultSuccess, &user.ID, input.Meta, map[string]any{"purpose": user.VerificationTokenPurpose, "session": false})

	return e.users.FindByID(ctx, user.ID)
}

// consumeToken resolves and consumes a verification token. Expired and
// unknown tokens fail identically.
func (e *Engine) consumeToken(ctx context.Context, token string, meta RequestMeta) (*models.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperrors.ErrInvalidToken
	}

	user, err := e.users.FindByToken(ctx, token, false, e.now())
	if errors.Is(err, store.ErrNotFound) {
		metrics.AuthAttempts.WithLabelValues("otp", "failure").Inc()
		e.recordAudit(ctx, services.AuditActionOTPVerify, services.AuditResultFailure, nil, meta, nil)
		return nil, apperrors.ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}

	if err := e.users.ConsumeVerificationToken(ctx, user.ID, e.now()); err != nil {
		return nil, err
	}

	return user, nil
}

// ResetPasswordInput captures a password change authorised by a live session.
type ResetPasswordInput struct {
	UserID          string
	Password        string
	ConfirmPassword string
	Meta            RequestMeta
}

// ResetPassword sets a new password for an already-authenticated user. The
// session that authorised the change stays valid; there is no forced
// re-login after a reset.
func (e *Engine) ResetPassword(ctx context.Context, input ResetPasswordInput) error {
	if _, err := uuid.Parse(input.UserID); err != nil {
		return apperrors.NewValidation("invalid user id")
	}
	if err := e.validatePassword(input.Password, input.ConfirmPassword); err != nil {
		return err
	}

	if _, err := e.users.FindByID(ctx, input.UserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperrors.ErrNotAuthenticated
		}
		return err
	}

	hash, err := e.hasher.Hash(input.Password)
	if err != nil {
		return fmt.Errorf("auth engine: hash password: %w", err)
	}

	if err := e.users.UpdatePassword(ctx, input.UserID, hash); err != nil {
		return err
	}

	e.recordAudit(ctx, services.AuditActionPasswordReset, services.AuditResultSuccess, &input.UserID, input.Meta, nil)

	return nil
}

// CheckServerSideAuth resolves the session cookie into its owning user. All
// failure modes collapse into an unauthenticated result.
func (e *Engine) CheckServerSideAuth(ctx context.Context, cookieValue string) (*models.User, bool) {
	_, user, err := e.sessions.Resolve(ctx, cookieValue)
	if err != nil {
		return nil, false
	}
	return user, true
}

// Logout revokes every session of the cookie's owner: signing out signs out
// everywhere, consistent with the single-session model. An invalid or
// missing cookie is not an error.
func (e *Engine) Logout(ctx context.Context, cookieValue string, meta RequestMeta) error {
	_, user, err := e.sessions.Resolve(ctx, cookieValue)
	if err != nil {
		return nil
	}

	if _, err := e.sessions.RevokeAllForUser(ctx, user.ID); err != nil {
		return err
	}

	e.recordAudit(ctx, services.AuditActionLogout, services.AuditResultSuccess, &user.ID, meta, nil)

	return nil
}

func (e *Engine) normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validator.ValidateVar(email, "required,email"); err != nil {
		return "", apperrors.NewValidation("please enter a valid email address")
	}
	return email, nil
}

func (e *Engine) validatePassword(password, confirm string) error {
	if len(password) < e.minPassword {
		return apperrors.NewValidation(fmt.Sprintf("password must be at least %d characters", e.minPassword))
	}
	if len(password) > e.maxPassword {
		return apperrors.NewValidation(fmt.Sprintf("password must be at most %d characters", e.maxPassword))
	}
	if password != confirm {
		return apperrors.NewValidation("passwords do not match")
	}
	return nil
}

// issueToken generates a fresh token and stores it with its expiry and
// purpose in a single update, overwriting any previous token.
func (e *Engine) issueToken(ctx context.Context, userID, purpose string) (string, error) {
	token, err := crypto.GenerateToken(e.tokenLength)
	if err != nil {
		return "", fmt.Errorf("auth engine: generate token: %w", err)
	}

	expiresAt := e.now().Add(e.tokenTTL)
	if err := e.users.SetVerificationToken(ctx, userID, token, expiresAt, purpose); err != nil {
		return "", err
	}

	return token, nil
}

func (e *Engine) sendTokenMail(ctx context.Context, email, token, purpose string) error {
	link := e.verificationURL(token, purpose)

	var subject, body, kind string
	switch purpose {
	case models.TokenPurposeVerifyEmail:
		subject = e.appName + " - Verify your email"
		body = fmt.Sprintf(`Click <a href="%s">here</a> to verify your email.`, link)
		kind = "verify_email"
	case models.TokenPurposeResetPassword:
		subject = e.appName + " - Reset your password"
		body = fmt.Sprintf(`Click <a href="%s">here</a> to reset your password.`, link)
		kind = "reset_password"
	default:
		subject = e.appName + " - Login to your account"
		body = fmt.Sprintf(`Click <a href="%s">here</a> to login to your account.`, link)
		kind = "otp_login"
	}

	err := e.mailer.Send(ctx, mail.Message{To: email, Subject: subject, Body: body})
	if err != nil {
		metrics.MailDispatches.WithLabelValues(kind, "failure").Inc()
		e.log.Warn("mail dispatch failed", zap.String("kind", kind), zap.Error(err))
		// The token is already persisted and stays redeemable; the caller may
		// simply request another email.
		return apperrors.ErrDeliveryFailed.WithInternal(err)
	}

	metrics.MailDispatches.WithLabelValues(kind, "success").Inc()
	return nil
}

func (e *Engine) verificationURL(token, purpose string) string {
	link := fmt.Sprintf("%s/auth/otp/validate?token=%s", e.baseURL, url.QueryEscape(token))
	switch purpose {
	case models.TokenPurposeVerifyEmail:
		return link + "&verifyMail=true"
	case models.TokenPurposeResetPassword:
		return link + "&resetPassword=true"
	default:
		return link + "&otp=true"
	}
}

func (e *Engine) recordAudit(ctx context.Context, action, result string, userID *string, meta RequestMeta, metadata map[string]any) {
	if e.audit == nil {
		return
	}

	err := e.audit.Log(ctx, services.AuditEntry{
		UserID:    userID,
		Action:    action,
		Result:    result,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		Metadata:  metadata,
	})
	if err != nil {
		e.log.Warn("audit write failed", zap.String("action", action), zap.Error(err))
	}
}

func localPart(email string) string {
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}
