// Package auth issues and verifies bearer tokens. A token is an HS256 JWT whose
// jti names a row in personal_access_tokens; deleting the row revokes it.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chepyr/go-task-manager/shared/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

type TokenStore interface {
	Create(ctx context.Context, token *models.AccessToken) error
	Active(ctx context.Context, id, userID uuid.UUID, now time.Time) (bool, error)
	DeleteByUserID(ctx context.Context, userID uuid.UUID) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type Tokens struct {
	secret []byte
	ttl    time.Duration
	store  TokenStore
	now    func() time.Time
}

func NewTokens(secret string, ttl time.Duration, store TokenStore) *Tokens {
	return &Tokens{
		secret: []byte(secret),
		ttl:    ttl,
		store:  store,
		now:    time.Now,
	}
}

// Issue records a new token for userID and returns its signed form.
func (t *Tokens) Issue(ctx context.Context, userID uuid.UUID) (string, error) {
	now := t.now().UTC()
	record := &models.AccessToken{
		ID:        uuid.New(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(t.ttl),
	}
	if err := t.store.Create(ctx, record); err != nil {
		return "", fmt.Errorf("store token: %w", err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        record.ID.String(),
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(record.ExpiresAt),
	})
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("error signing token: %w", err)
	}
	return signed, nil
}

// Verify returns the caller behind raw. Malformed, expired and revoked tokens
// yield an error wrapping ErrInvalidToken; any other error comes from the store.
func (t *Tokens) Verify(ctx context.Context, raw string) (models.Caller, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || !token.Valid {
		return models.Caller{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return models.Caller{}, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	tokenID, err := uuid.Parse(claims.ID)
	if err != nil {
		return models.Caller{}, fmt.Errorf("%w: bad token id", ErrInvalidToken)
	}

	active, err := t.store.Active(ctx, tokenID, userID, t.now())
	if err != nil {
		return models.Caller{}, fmt.Errorf("look up token: %w", err)
	}
	if !active {
		return models.Caller{}, fmt.Errorf("%w: revoked", ErrInvalidToken)
	}
	return models.Caller{UserID: userID, TokenID: tokenID}, nil
}

// RevokeAll invalidates every token of userID at once.
func (t *Tokens) RevokeAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	return t.store.DeleteByUserID(ctx, userID)
}

// Prune drops records of tokens that expired on their own.
func (t *Tokens) Prune(ctx context.Context) (int64, error) {
	return t.store.DeleteExpired(ctx, t.now())
}
