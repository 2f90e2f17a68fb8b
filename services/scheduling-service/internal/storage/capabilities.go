package storage

import (
	"context"

	"github.com/md-rashed-zaman/supportsched/libs/db"
	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/model"
)

// CapabilityRepository answers capability questions from user_capabilities,
// which the identity service keeps in sync.
type CapabilityRepository struct {
	pool *db.Pool
}

func NewCapabilityRepository(pool *db.Pool) *CapabilityRepository {
	return &CapabilityRepository{pool: pool}
}

func (r *CapabilityRepository) HasCapability(ctx context.Context, userID string, c model.Capability) (bool, error) {
	var ok bool
	err := r.pool.Conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM user_capabilities WHERE user_id = $1 AND capability = $2)
	`, userID, string(c)).Scan(&ok)
	return ok, err
}

func (r *CapabilityRepository) ListWithCapability(ctx context.Context, c model.Capability) ([]string, error) {
	rows, err := r.pool.Conn(ctx).Query(ctx, `
		SELECT user_id FROM user_capabilities WHERE capability = $1 ORDER BY user_id
	`, string(c))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
