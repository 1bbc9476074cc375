package auth

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/taskdeck/apiserver/internal/session"
	"github.com/taskdeck/apiserver/types"
)

// ErrInvalidCredentials covers every structural token failure: bad
// signature, wrong algorithm, malformed claims, expiry. Callers get
// this single kind; the specific reason is only logged.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrSessionRevoked is returned when the token itself checks out but
// its session has been invalidated or has expired out of the registry.
var ErrSessionRevoked = errors.New("session revoked")

const defaultTokenTTL = 30 * 24 * time.Hour

// SessionRegistry is the revocation side table consulted on every
// verify. Implemented by the redis-backed session.Registry.
type SessionRegistry interface {
	Create(ctx context.Context, userID int, ttl time.Duration) (types.Session, error)
	Get(ctx context.Context, sessionID string) (types.Session, error)
	Invalidate(ctx context.Context, sessionID string) error
	InvalidateAllForUser(ctx context.Context, userID int) (int, error)
	ListActiveForUser(ctx context.Context, userID int) ([]types.Session, error)
}

// TokenService issues and verifies signed access tokens. Every token
// embeds a session id (jti); verification requires both a valid
// signature and a still-valid session record, which makes the token
// revocable server-side without giving up stateless claims.
type TokenService struct {
	secret   []byte
	ttl      time.Duration
	registry SessionRegistry
	logger   *slog.Logger
}

func NewTokenService(secret string, ttl time.Duration, registry SessionRegistry, logger *slog.Logger) *TokenService {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &TokenService{
		secret:   []byte(secret),
		ttl:      ttl,
		registry: registry,
		logger:   logger,
	}
}

// TokenIdentity is the result of a successful verification.
type TokenIdentity struct {
	UserID    int
	SessionID string
}

// Issue allocates a session for the user and signs a token bound to
// it. Exactly one new session record exists after a successful call.
func (s *TokenService) Issue(ctx context.Context, userID int) (string, error) {
	sess, err := s.registry.Create(ctx, userID, s.ttl)
	if err != nil {
		return "", err
	}

	claims := jwt.RegisteredClaims{
		Subject:   strconv.Itoa(userID),
		ID:        sess.ID,
		IssuedAt:  jwt.NewNumericDate(sess.CreatedAt),
		ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify checks the signature, the signing method, and the expiry,
// then looks the session up in the registry. Registry errors fail
// closed: a token whose session cannot be confirmed is revoked.
func (s *TokenService) Verify(ctx context.Context, tokenString string) (TokenIdentity, error) {
	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		s.logger.Warn("token verification failed", "error", err)
		return TokenIdentity{}, ErrInvalidCredentials
	}

	userID, err := strconv.Atoi(claims.Subject)
	if err != nil || userID < 1 || claims.ID == "" {
		s.logger.Warn("token carries malformed claims", "subject", claims.Subject)
		return TokenIdentity{}, ErrInvalidCredentials
	}

	sess, err := s.registry.Get(ctx, claims.ID)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			s.logger.Error("session lookup failed, treating token as revoked", "error", err)
		}
		return TokenIdentity{}, ErrSessionRevoked
	}
	if !sess.IsValid || time.Now().After(sess.ExpiresAt) {
		return TokenIdentity{}, ErrSessionRevoked
	}

	return TokenIdentity{UserID: userID, SessionID: claims.ID}, nil
}

// Revoke invalidates a single session. Idempotent.
func (s *TokenService) Revoke(ctx context.Context, sessionID string) error {
	return s.registry.Invalidate(ctx, sessionID)
}

// RevokeAll invalidates every valid session of the user and returns
// how many were flipped. Best-effort: on a mid-batch failure the count
// reflects the invalidations that did succeed.
func (s *TokenService) RevokeAll(ctx context.Context, userID int) (int, error) {
	return s.registry.InvalidateAllForUser(ctx, userID)
}

// Sessions returns the user's currently active sessions.
func (s *TokenService) Sessions(ctx context.Context, userID int) ([]types.Session, error) {
	return s.registry.ListActiveForUser(ctx, userID)
}
