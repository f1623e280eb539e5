package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"portfolio-api/internal/config"
	"portfolio-api/internal/metrics"
	"portfolio-api/internal/model"
	"portfolio-api/internal/repository"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	adminSubject = "admin"
	tokenIssuer  = "portfolio-api"
)

type AuthService interface {
	// Login checks the admin password for a client address and returns a signed
	// token. Repeated failures lock the address out (LockedOutError).
	Login(ctx context.Context, ip, password string) (token string, expiresAt time.Time, err error)
	VerifyToken(token string) error
	// VerifySharedSecret accepts the legacy X-Admin-Auth header value.
	VerifySharedSecret(secret string) bool
}

type authServiceImpl struct {
	attemptRepo     repository.LoginAttemptRepository
	password        []byte
	passwordHash    []byte
	tokenSecret     []byte
	tokenTTL        time.Duration
	maxAttempts     int
	lockoutDuration time.Duration
	logger          *zap.Logger
	now             func() time.Time
}

func NewAuthService(cfg config.Admin, attemptRepo repository.LoginAttemptRepository, logger *zap.Logger) (AuthService, error) {
	secret := []byte(cfg.TokenSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate token secret: %w", err)
		}
		logger.Warn("ADMIN_TOKEN_SECRET not set, admin tokens will not survive a restart")
	}

	if cfg.Password == "" && cfg.PasswordHash == "" {
		logger.Warn("no admin password configured, admin login is disabled")
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	lockout := cfg.LockoutDuration
	if lockout <= 0 {
		lockout = 15 * time.Minute
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}

	return &authServiceImpl{
		attemptRepo:     attemptRepo,
		password:        []byte(cfg.Password),
		passwordHash:    []byte(cfg.PasswordHash),
		tokenSecret:     secret,
		tokenTTL:        ttl,
		maxAttempts:     maxAttempts,
		lockoutDuration: lockout,
		logger:          logger,
		now:             time.Now,
	}, nil
}

func (s *authServiceImpl) Login(ctx context.Context, ip, password string) (string, time.Time, error) {
	now := s.now()

	attempt, err := s.attemptRepo.Get(ctx, ip)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("get login attempts: %w", err)
	}

	if attempt != nil && attempt.LockedAt(now) {
		metrics.LoginAttempts.WithLabelValues("locked").Inc()
		return "", time.Time{}, &LockedOutError{Until: *attempt.LockedUntil, Now: now}
	}

	if !s.passwordMatches(password) {
		if err := s.recordFailure(ctx, ip, now); err != nil {
			return "", time.Time{}, err
		}
		metrics.LoginAttempts.WithLabelValues("failed").Inc()
		return "", time.Time{}, fmt.Errorf("%w: invalid password", ErrUnauthorized)
	}

	if err := s.attemptRepo.Reset(ctx, ip); err != nil {
		return "", time.Time{}, fmt.Errorf("reset login attempts: %w", err)
	}

	expiresAt := now.Add(s.tokenTTL)
	token, err := s.issueToken(now, expiresAt)
	if err != nil {
		return "", time.Time{}, err
	}

	metrics.LoginAttempts.WithLabelValues("success").Inc()
	s.logger.Info("admin login", zap.String("ip", ip))
	return token, expiresAt, nil
}

// recordFailure counts a failed attempt. A lock that has already expired
// starts a fresh count; a lock set by a concurrent request is kept as is.
func (s *authServiceImpl) recordFailure(ctx context.Context, ip string, now time.Time) error {
	var locked bool
	attempt, err := s.attemptRepo.Update(ctx, ip, func(a *model.LoginAttempt) {
		locked = false
		if a.LockedAt(now) {
			return
		}
		if a.LockedUntil != nil {
			a.Attempts = 0
			a.LockedUntil = nil
		}

		a.Attempts++
		a.LastAttempt = now
		if a.Attempts >= s.maxAttempts {
			lockedUntil := now.Add(s.lockoutDuration)
			a.LockedUntil = &lockedUntil
			locked = true
		}
	})
	if err != nil {
		return fmt.Errorf("save login attempt: %w", err)
	}

	if locked {
		s.logger.Warn("admin login locked",
			zap.String("ip", ip),
			zap.Int("attempts", attempt.Attempts),
			zap.Time("locked_until", *attempt.LockedUntil),
		)
	}
	return nil
}

func (s *authServiceImpl) passwordMatches(password string) bool {
	if len(s.passwordHash) > 0 {
		return bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password)) == nil
	}
	if len(s.password) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare(s.password, []byte(password)) == 1
}

func (s *authServiceImpl) issueToken(now, expiresAt time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    tokenIssuer,
		Subject:   adminSubject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.tokenSecret)
	if err != nil {
		return "", fmt.Errorf("sign admin token: %w", err)
	}
	return signed, nil
}

func (s *authServiceImpl) VerifyToken(token string) error {
	if token == "" {
		return ErrUnauthorized
	}

	_, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		return s.tokenSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithSubject(adminSubject),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	return nil
}

func (s *authServiceImpl) VerifySharedSecret(secret string) bool {
	if len(s.password) == 0 || secret == "" {
		return false
	}
	return subtle.ConstantTimeCompare(s.password, []byte(secret)) == 1
}
