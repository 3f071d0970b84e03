package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"converse-backend/internal/models"
)

type ChatRepo struct {
	pool *pgxpool.Pool
}

func NewChatRepo(pool *pgxpool.Pool) *ChatRepo {
	return &ChatRepo{pool: pool}
}

// Insert records a completed turn. Rows are never updated afterwards.
func (r *ChatRepo) Insert(ctx context.Context, turn *models.ChatTurn) error {
	turn.ID = uuid.New()

	query := `INSERT INTO chats (id, user_id, message, response)
		VALUES ($1, $2, $3, $4) RETURNING created_at`

	return r.pool.QueryRow(ctx, query,
		turn.ID, turn.UserID, turn.Message, turn.Response,
	).Scan(&turn.CreatedAt)
}

// ListByUser returns the user's turns newest first.
func (r *ChatRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.ChatTurn, error) {
	query := `SELECT id, user_id, message, response, created_at
		FROM chats WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []*models.ChatTurn
	for rows.Next() {
		t := &models.ChatTurn{}
		if err := rows.Scan(&t.ID, &t.UserID, &t.Message, &t.Response, &t.CreatedAt); err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}

	return turns, rows.Err()
}

func (r *ChatRepo) CountByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	var total int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM chats WHERE user_id = $1", userID).Scan(&total)
	return total, err
}
