package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/chepyr/go-task-manager/shared/models"
	"github.com/google/uuid"
)

type TokenRepository struct {
	db *sql.DB
}

func NewTokenRepository(db *sql.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

func (r *TokenRepository) Create(ctx context.Context, token *models.AccessToken) error {
	query := `INSERT INTO personal_access_tokens (id, user_id, created_at, expires_at)
	 VALUES ($1, $2, $3, $4)`
	_, err := r.db.ExecContext(ctx, query, token.ID, token.UserID, token.CreatedAt.UTC(), token.ExpiresAt.UTC())
	return err
}

// Active reports whether the token exists for the user and has not expired at now.
func (r *TokenRepository) Active(ctx context.Context, id, userID uuid.UUID, now time.Time) (bool, error) {
	var active bool
	query := `SELECT EXISTS(SELECT 1 FROM personal_access_tokens
	 WHERE id = $1 AND user_id = $2 AND expires_at > $3)`
	err := r.db.QueryRowContext(ctx, query, id, userID, now.UTC()).Scan(&active)
	return active, err
}

func (r *TokenRepository) DeleteByUserID(ctx context.Context, userID uuid.UUID) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM personal_access_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *TokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM personal_access_tokens WHERE expires_at <= $1`, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
