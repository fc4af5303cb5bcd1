package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ulritter/freelance-crawler/internal/metrics"
	"github.com/ulritter/freelance-crawler/internal/store"
)

// Login flow errors surfaced to the HTTP layer.
var (
	ErrUnknownUser      = errors.New("user not found")
	ErrDomainNotAllowed = errors.New("email domain not allowed")
	ErrInvalidCode      = errors.New("invalid or expired authentication code")
)

// ServiceConfig tunes the login flow.
type ServiceConfig struct {
	// AllowedEmailDomain restricts sign-ins when non-empty.
	AllowedEmailDomain string
	CodeExpiry         time.Duration
	SessionValidity    time.Duration
}

// Service runs the email-code login flow: issue a short-lived code, verify
// it once, hand out a session token.
type Service struct {
	users  store.UserRepository
	codes  store.AuthCodeRepository
	tokens *TokenManager
	mailer Mailer
	cfg    ServiceConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewService wires the login flow dependencies.
func NewService(
	users store.UserRepository,
	codes store.AuthCodeRepository,
	tokens *TokenManager,
	mailer Mailer,
	cfg ServiceConfig,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CodeExpiry <= 0 {
		cfg.CodeExpiry = 10 * time.Minute
	}
	if cfg.SessionValidity <= 0 {
		cfg.SessionValidity = time.Hour
	}
	return &Service{
		users:  users,
		codes:  codes,
		tokens: tokens,
		mailer: mailer,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// SendCode issues a login code for a known user and mails it.
func (s *Service) SendCode(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := s.checkDomain(email); err != nil {
		return err
	}
	if _, err := s.users.GetUserByEmail(ctx, email); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUnknownUser
		}
		return fmt.Errorf("look up user: %w", err)
	}

	code, err := GenerateCode()
	if err != nil {
		return err
	}
	now := s.now().UTC()
	if err := s.codes.SaveCode(ctx, store.AuthCode{
		Email:     email,
		Code:      code,
		ExpiresAt: now.Add(s.cfg.CodeExpiry),
	}); err != nil {
		return fmt.Errorf("save code: %w", err)
	}
	if _, err := s.codes.PurgeExpired(ctx, now); err != nil {
		// Purge failures never block a login.
		s.logger.Warn("purging expired auth codes failed", zap.Error(err))
	}

	if err := s.mailer.SendCode(ctx, email, code, int(s.cfg.CodeExpiry.Minutes())); err != nil {
		return fmt.Errorf("send code: %w", err)
	}
	metrics.ObserveAuthCodeIssued()
	s.logger.Info("auth code issued", zap.String("email", email))
	return nil
}

// Session is a freshly issued session token.
type Session struct {
	Token     string
	Email     string
	ExpiresAt time.Time
}

// VerifyCode consumes a login code and returns a session token.
func (s *Service) VerifyCode(ctx context.Context, email, code string) (Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	code = strings.ToLower(strings.TrimSpace(code))
	now := s.now().UTC()

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Session{}, ErrUnknownUser
		}
		return Session{}, fmt.Errorf("look up user: %w", err)
	}

	if err := s.codes.ConsumeCode(ctx, email, code, now); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Session{}, ErrInvalidCode
		}
		return Session{}, fmt.Errorf("consume code: %w", err)
	}

	if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("recording last login failed", zap.Error(err))
	}

	token, err := s.tokens.IssueToken(email, s.cfg.SessionValidity, now)
	if err != nil {
		return Session{}, err
	}
	s.logger.Info("user signed in", zap.String("email", email))
	return Session{
		Token:     token,
		Email:     email,
		ExpiresAt: now.Add(s.cfg.SessionValidity),
	}, nil
}

// SessionValidity exposes the configured session lifetime for cookie max-age.
func (s *Service) SessionValidity() time.Duration {
	return s.cfg.SessionValidity
}

// ValidateToken checks a session token and returns the signed-in email.
func (s *Service) ValidateToken(token string) (string, error) {
	return s.tokens.ValidateToken(token)
}

// CheckToken returns the signed-in email and expiry of a session token.
func (s *Service) CheckToken(token string) (string, time.Time, error) {
	claims, err := s.tokens.ParseClaims(token)
	if err != nil {
		return "", time.Time{}, err
	}
	return claims.Subject, claims.ExpiresAt.Time, nil
}

func (s *Service) checkDomain(email string) error {
	if s.cfg.AllowedEmailDomain == "" {
		return nil
	}
	at := strings.LastIndex(email, "@")
	if at < 0 || !strings.EqualFold(email[at+1:], s.cfg.AllowedEmailDomain) {
		return ErrDomainNotAllowed
	}
	return nil
}
