package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/Ashar20/Trader-daddy/internal/approval"
)

// PendingRequestRepository mirrors the in-memory pending ledger for audit
// and crash recovery. It implements approval.PendingRecorder.
type PendingRequestRepository struct {
	store *Store
}

// NewPendingRequestRepository creates a new PendingRequestRepository
func NewPendingRequestRepository(store *Store) *PendingRequestRepository {
	return &PendingRequestRepository{store: store}
}

// SavePending inserts a pending request row keyed by its correlation key
func (r *PendingRequestRepository) SavePending(ctx context.Context, pending *approval.PendingRequest) error {
	request, err := json.Marshal(pending.Request)
	if err != nil {
		return fmt.Errorf("failed to encode session request: %w", err)
	}

	query := `
		INSERT INTO pending_requests (id, correlation_key, conversation_id, kind, chain_id, request, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (correlation_key) DO NOTHING
	`

	_, err = r.store.pool.Exec(ctx, query,
		uuid.New(),
		pending.CorrelationKey,
		pending.ConversationID,
		string(pending.Kind),
		pending.ChainID,
		request,
		pending.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save pending request: %w", err)
	}
	return nil
}

// DeletePending removes a pending request row on its terminal transition
func (r *PendingRequestRepository) DeletePending(ctx context.Context, correlationKey string) error {
	_, err := r.store.pool.Exec(ctx, `DELETE FROM pending_requests WHERE correlation_key = $1`, correlationKey)
	if err != nil {
		return fmt.Errorf("failed to delete pending request: %w", err)
	}
	return nil
}

// Purge removes every pending request row. Called at startup: a prompt
// sent by a previous process can no longer be resolved because its expiry
// timer is gone.
func (r *PendingRequestRepository) Purge(ctx context.Context) (int64, error) {
	tag, err := r.store.pool.Exec(ctx, `DELETE FROM pending_requests`)
	if err != nil {
		return 0, fmt.Errorf("failed to purge pending requests: %w", err)
	}
	return tag.RowsAffected(), nil
}
