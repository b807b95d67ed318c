package store

import (
	"context"
	"time"

	"cashledger/internal/models"
)

type AuditStore struct {
	db DB
}

type AuditEntry struct {
	ID          string          `db:"id" json:"id"`
	ActorUserID *string         `db:"actor_user_id" json:"actorUserId,omitempty"`
	Action      string          `db:"action" json:"action"`
	EntityType  string          `db:"entity_type" json:"entityType"`
	EntityID    string          `db:"entity_id" json:"entityId"`
	Data        models.Metadata `db:"data" json:"data"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
}

func NewAuditStore(db DB) *AuditStore {
	return &AuditStore{db: db}
}

// Log records an audit row. An empty actorID is stored as NULL.
func (s *AuditStore) Log(ctx context.Context, tx Execer, actorID, action, entityType, entityID string, data models.Metadata) error {
	var actor *string
	if actorID != "" {
		actor = &actorID
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_user_id, action, entity_type, entity_id, data)
		VALUES (gen_random_uuid()::text, $1, $2, $3, $4, $5)
	`, actor, action, entityType, entityID, data)
	return err
}

func (s *AuditStore) List(ctx context.Context, limit, offset int) ([]AuditEntry, error) {
	var rows []AuditEntry
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, actor_user_id, action, entity_type, entity_id, data, created_at
		FROM audit_logs
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
