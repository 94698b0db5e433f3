// Package service implements the session lifecycle core: token issuance,
// stateless validation, refresh-token revocation, and the OTP flows backing
// email verification and password reset.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/VanHoang0612/Mochi-Chat/internal/config"
	"github.com/VanHoang0612/Mochi-Chat/internal/domain"
	"github.com/VanHoang0612/Mochi-Chat/internal/mail"
	"github.com/VanHoang0612/Mochi-Chat/internal/otp"
	"github.com/VanHoang0612/Mochi-Chat/internal/password"
	"github.com/VanHoang0612/Mochi-Chat/internal/repository"
	"github.com/VanHoang0612/Mochi-Chat/internal/revocation"
	"github.com/VanHoang0612/Mochi-Chat/internal/token"
)

// AuthService orchestrates the credential, token, and OTP components. It is
// the only place business invariants live; the stores it drives are
// mechanism.
type AuthService struct {
	users     repository.UserRepository
	codec     *token.Codec
	revoked   revocation.Store
	codes     otp.Store
	sender    mail.Sender
	snowflake *snowflake.Node
	cfg       config.Config
	logger    *zap.Logger
	tracer    trace.Tracer
}

// NewAuthService wires dependencies.
func NewAuthService(users repository.UserRepository, codec *token.Codec, revoked revocation.Store, codes otp.Store, sender mail.Sender, node *snowflake.Node, cfg config.Config, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:     users,
		codec:     codec,
		revoked:   revoked,
		codes:     codes,
		sender:    sender,
		snowflake: node,
		cfg:       cfg,
		logger:    logger,
		tracer:    otel.Tracer("github.com/VanHoang0612/Mochi-Chat/internal/service"),
	}
}

// Login authenticates by username or email plus password. The failure is one
// generic message whether the identifier or the password was wrong.
func (s *AuthService) Login(ctx context.Context, identifier, secret string) (*LoginResult, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Login")
	defer span.End()

	user, err := s.users.FindByUsernameOrEmail(ctx, strings.TrimSpace(identifier))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrLoginFailed
		}
		span.RecordError(err)
		return nil, domain.ErrStoreUnavailable.WithCause(err)
	}

	ok, err := password.Verify(secret, user.PasswordHash)
	if err != nil || !ok {
		return nil, domain.ErrLoginFailed
	}

	// Disabled status is only disclosed once the password checks out.
	if !user.Enabled {
		return nil, domain.ErrAccountDisabled
	}

	access, err := s.codec.Mint(user, token.TypeAccess, s.cfg.AccessTokenTTL)
	if err != nil {
		span.RecordError(err)
		return nil, domain.ErrInternal.WithCause(err)
	}
	refresh, err := s.codec.Mint(user, token.TypeRefresh, s.cfg.RefreshTokenTTL)
	if err != nil {
		span.RecordError(err)
		return nil, domain.ErrInternal.WithCause(err)
	}

	s.audit("login.success", "username", user.Username, "user_id", user.ID)
	return &LoginResult{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresInMS:  s.cfg.AccessTokenTTL.Milliseconds(),
		User:         profileOf(user),
	}, nil
}

// Refresh exchanges a valid refresh token for a new access token. Type
// mismatch, expiry, bad signature, and revocation all collapse into one
// failure so the caller cannot probe which it was. The refresh token itself
// is not rotated; its jti stays live until natural expiry or logout.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Refresh")
	defer span.End()

	claims, err := s.checkRefreshToken(ctx, refreshToken, true)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByUsername(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrRefreshTokenInvalid
		}
		span.RecordError(err)
		return nil, domain.ErrStoreUnavailable.WithCause(err)
	}

	access, err := s.codec.Mint(user, token.TypeAccess, s.cfg.AccessTokenTTL)
	if err != nil {
		span.RecordError(err)
		return nil, domain.ErrInternal.WithCause(err)
	}

	return &RefreshResult{
		AccessToken: access,
		ExpiresInMS: s.cfg.AccessTokenTTL.Milliseconds(),
	}, nil
}

// Logout revokes the refresh token's jti. Revocation is not idempotent: the
// store's atomic insert-if-absent guarantees a repeat (or a concurrent race)
// fails with ALREADY_REVOKED.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	ctx, span := s.startSpan(ctx, "AuthService.Logout")
	defer span.End()

	claims, err := s.checkRefreshToken(ctx, refreshToken, false)
	if err != nil {
		return err
	}

	if err := s.revoked.Revoke(ctx, claims.JTI, claims.ExpiresAt); err != nil {
		if errors.Is(err, revocation.ErrAlreadyRevoked) {
			s.audit("logout.replayed", "username", claims.Subject, "jti", claims.JTI)
			return domain.ErrAlreadyRevoked
		}
		span.RecordError(err)
		return domain.ErrStoreUnavailable.WithCause(err)
	}

	s.audit("logout.success", "username", claims.Subject, "jti", claims.JTI)
	return nil
}

// Register creates a disabled account and mails a verification code.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) error {
	ctx, span := s.startSpan(ctx, "AuthService.Register")
	defer span.End()

	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))

	// Checked separately so clients can show a field-specific error.
	if taken, err := s.users.ExistsByEmail(ctx, email); err != nil {
		span.RecordError(err)
		return domain.ErrStoreUnavailable.WithCause(err)
	} else if taken {
		return domain.ErrEmailRegistered
	}
	if taken, err := s.users.ExistsByUsername(ctx, username); err != nil {
		span.RecordError(err)
		return domain.ErrStoreUnavailable.WithCause(err)
	} else if taken {
		return domain.ErrUsernameRegistered
	}

	hash, err := password.Hash(strings.TrimSpace(in.Password))
	if err != nil {
		span.RecordError(err)
		return domain.ErrInternal.WithCause(err)
	}

	user := domain.User{
		ID:           s.snowflake.Generate().Int64(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Enabled:      false,
		Provider:     domain.ProviderLocal,
		Roles:        []string{domain.RoleUser},
	}

	if _, err := s.users.Create(ctx, user); err != nil {
		span.RecordError(err)
		return domain.ErrInternal.WithCause(err).WithDetails(err.Error())
	}

	if err := s.issueCode(ctx, email); err != nil {
		span.RecordError(err)
		return domain.ErrInternal.WithCause(err).WithDetails(err.Error())
	}

	s.audit("register.success", "username", username, "user_id", user.ID)
	return nil
}

// VerifyEmail consumes the OTP and enables the account.
func (s *AuthService) VerifyEmail(ctx context.Context, email, code string) error {
	ctx, span := s.startSpan(ctx, "AuthService.VerifyEmail")
	defer span.End()

	user, err := s.findByEmail(ctx, email)
	if err != nil {
		return err
	}

	if err := s.checkAndConsumeCode(ctx, user.Email, code); err != nil {
		return err
	}

	user.Enabled = true
	if err := s.users.Save(ctx, user); err != nil {
		span.RecordError(err)
		return domain.ErrStoreUnavailable.WithCause(err)
	}

	s.audit("email.verified", "username", user.Username, "user_id", user.ID)
	return nil
}

// ResendCode re-issues the verification OTP for a not-yet-enabled account.
func (s *AuthService) ResendCode(ctx context.Context, email string) error {
	ctx, span := s.startSpan(ctx, "AuthService.ResendCode")
	defer span.End()

	user, err := s.findByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user.Enabled {
		return domain.ErrAccountEnabled
	}
	return s.issueCode(ctx, user.Email)
}

// ForgotPassword issues an OTP used to prove control of the email before a
// password reset.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	ctx, span := s.startSpan(ctx, "AuthService.ForgotPassword")
	defer span.End()

	user, err := s.findByEmail(ctx, email)
	if err != nil {
		return err
	}
	return s.issueCode(ctx, user.Email)
}

// VerifyOTP consumes the code and exchanges it for a short-lived reset
// grant. The split keeps the code from being replayed to set an arbitrary
// password directly.
func (s *AuthService) VerifyOTP(ctx context.Context, email, code string) (*VerifyOTPResult, error) {
	ctx, span := s.startSpan(ctx, "AuthService.VerifyOTP")
	defer span.End()

	user, err := s.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if err := s.checkAndConsumeCode(ctx, user.Email, code); err != nil {
		return nil, err
	}

	resetToken := uuid.NewString()
	if err := s.codes.Issue(ctx, otp.ResetKey(resetToken), user.Email, s.cfg.ResetTokenTTL); err != nil {
		span.RecordError(err)
		return nil, domain.ErrStoreUnavailable.WithCause(err)
	}

	s.audit("otp.verified", "username", user.Username, "user_id", user.ID)
	return &VerifyOTPResult{ResetToken: resetToken}, nil
}

// ResetPassword redeems a reset grant exactly once and replaces the hash.
func (s *AuthService) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	ctx, span := s.startSpan(ctx, "AuthService.ResetPassword")
	defer span.End()

	key := otp.ResetKey(resetToken)
	email, err := s.codes.Lookup(ctx, key)
	if err != nil {
		if errors.Is(err, otp.ErrExpired) {
			return domain.ErrInvalidResetToken
		}
		span.RecordError(err)
		return domain.ErrStoreUnavailable.WithCause(err)
	}

	user, err := s.findByEmail(ctx, email)
	if err != nil {
		return err
	}

	hash, err := password.Hash(newPassword)
	if err != nil {
		span.RecordError(err)
		return domain.ErrInternal.WithCause(err)
	}
	user.PasswordHash = hash
	if err := s.users.Save(ctx, user); err != nil {
		span.RecordError(err)
		return domain.ErrStoreUnavailable.WithCause(err)
	}

	if err := s.codes.Consume(ctx, key); err != nil {
		span.RecordError(err)
		return domain.ErrStoreUnavailable.WithCause(err)
	}

	s.audit("password.reset", "username", user.Username, "user_id", user.ID)
	return nil
}

// ChangePassword swaps the hash for an authenticated principal, identified
// explicitly by username rather than by ambient request state.
func (s *AuthService) ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error {
	ctx, span := s.startSpan(ctx, "AuthService.ChangePassword")
	defer span.End()

	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ErrAccountNotFound
		}
		span.RecordError(err)
		return domain.ErrStoreUnavailable.WithCause(err)
	}

	ok, err := password.Verify(oldPassword, user.PasswordHash)
	if err != nil || !ok {
		return domain.ErrOldPasswordIncorrect
	}

	hash, err := password.Hash(newPassword)
	if err != nil {
		span.RecordError(err)
		return domain.ErrInternal.WithCause(err)
	}
	user.PasswordHash = hash
	if err := s.users.Save(ctx, user); err != nil {
		span.RecordError(err)
		return domain.ErrStoreUnavailable.WithCause(err)
	}

	s.audit("password.changed", "username", user.Username, "user_id", user.ID)
	return nil
}

// Profile returns the public projection for an authenticated principal.
func (s *AuthService) Profile(ctx context.Context, username string) (*UserProfile, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Profile")
	defer span.End()

	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrAccountNotFound
		}
		span.RecordError(err)
		return nil, domain.ErrStoreUnavailable.WithCause(err)
	}
	profile := profileOf(user)
	return &profile, nil
}

// checkRefreshToken decodes and validates a presented refresh token. All
// decode failures and type mismatches collapse into REFRESH_TOKEN_INVALID.
// The revocation lookup is included for refresh but skipped for logout,
// where the revoke insert itself detects the repeat.
func (s *AuthService) checkRefreshToken(ctx context.Context, raw string, includeRevocation bool) (token.Claims, error) {
	claims, err := s.codec.Decode(raw)
	if err != nil {
		if errors.Is(err, token.ErrExpired) {
			s.log().Debug("refresh token expired")
		} else {
			s.log().Warn("refresh token rejected", zap.Error(err))
		}
		return token.Claims{}, domain.ErrRefreshTokenInvalid
	}
	if claims.Type != token.TypeRefresh {
		s.log().Warn("wrong token type presented for refresh", zap.String("type", string(claims.Type)))
		return token.Claims{}, domain.ErrRefreshTokenInvalid
	}
	if includeRevocation {
		revoked, err := s.revoked.IsRevoked(ctx, claims.JTI)
		if err != nil {
			return token.Claims{}, domain.ErrStoreUnavailable.WithCause(err)
		}
		if revoked {
			s.log().Warn("revoked refresh token presented", zap.String("jti", claims.JTI))
			return token.Claims{}, domain.ErrRefreshTokenInvalid
		}
	}
	return claims, nil
}

func (s *AuthService) findByEmail(ctx context.Context, email string) (domain.User, error) {
	user, err := s.users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, domain.ErrEmailNotRegistered
		}
		return domain.User{}, domain.ErrStoreUnavailable.WithCause(err)
	}
	return user, nil
}

func (s *AuthService) issueCode(ctx context.Context, email string) error {
	code, err := otp.GenerateCode()
	if err != nil {
		return domain.ErrInternal.WithCause(err)
	}
	if err := s.codes.Issue(ctx, email, code, s.cfg.OTPTTL); err != nil {
		return domain.ErrStoreUnavailable.WithCause(err)
	}
	if err := s.sender.SendCode(ctx, email, code); err != nil {
		return domain.ErrSendFailed.WithCause(err).WithDetails(err.Error())
	}
	s.audit("code.issued", "email", email)
	return nil
}

func (s *AuthService) checkAndConsumeCode(ctx context.Context, email, code string) error {
	ok, err := s.codes.Verify(ctx, email, code)
	if err != nil {
		if errors.Is(err, otp.ErrExpired) {
			return domain.ErrCodeExpired
		}
		return domain.ErrStoreUnavailable.WithCause(err)
	}
	if !ok {
		return domain.ErrCodeInvalid
	}
	if err := s.codes.Consume(ctx, email); err != nil {
		return domain.ErrStoreUnavailable.WithCause(err)
	}
	return nil
}

func profileOf(user domain.User) UserProfile {
	return UserProfile{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		AvatarURL: user.AvatarURL,
		Roles:     append([]string(nil), user.Roles...),
		Enabled:   user.Enabled,
		CreatedAt: user.CreatedAt,
	}
}

func (s *AuthService) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if s == nil || s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return s.tracer.Start(ctx, name)
}

func (s *AuthService) audit(event string, attrs ...any) {
	logger := s.log()
	if logger == nil {
		return
	}
	fields := make([]zap.Field, 0, len(attrs)/2+2)
	fields = append(fields, zap.String("event", event), zap.Time("timestamp", time.Now().UTC()))
	for i := 0; i+1 < len(attrs); i += 2 {
		key, ok := attrs[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, attrs[i+1]))
	}
	logger.Info("audit", fields...)
}

func (s *AuthService) log() *zap.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return zap.L()
}
