package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/Ashar20/Trader-daddy/internal/wallet"
	"github.com/Ashar20/Trader-daddy/internal/walletconnect"
)

// SessionRepository persists WalletConnect sessions so they survive a
// process restart. It implements wallet.SessionRecorder.
type SessionRepository struct {
	store *Store
}

// NewSessionRepository creates a new SessionRepository
func NewSessionRepository(store *Store) *SessionRepository {
	return &SessionRepository{store: store}
}

// SaveSession upserts a session row keyed by its topic
func (r *SessionRepository) SaveSession(ctx context.Context, conversationID string, session *walletconnect.Session) error {
	peer, err := json.Marshal(session.Peer)
	if err != nil {
		return fmt.Errorf("failed to encode peer metadata: %w", err)
	}
	namespaces, err := json.Marshal(session.Namespaces)
	if err != nil {
		return fmt.Errorf("failed to encode session namespaces: %w", err)
	}

	query := `
		INSERT INTO wc_sessions (id, topic, conversation_id, peer, namespaces, sym_key)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (topic) DO UPDATE
		SET conversation_id = EXCLUDED.conversation_id,
		    peer = EXCLUDED.peer,
		    namespaces = EXCLUDED.namespaces,
		    sym_key = EXCLUDED.sym_key
	`

	_, err = r.store.pool.Exec(ctx, query, uuid.New(), session.Topic, conversationID, peer, namespaces, session.SymKey)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// DeleteSession removes a session row by topic
func (r *SessionRepository) DeleteSession(ctx context.Context, topic string) error {
	_, err := r.store.pool.Exec(ctx, `DELETE FROM wc_sessions WHERE topic = $1`, topic)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// List returns all persisted sessions for restart recovery
func (r *SessionRepository) List(ctx context.Context) ([]wallet.SessionRecord, error) {
	query := `
		SELECT topic, conversation_id, peer, namespaces, sym_key
		FROM wc_sessions
		ORDER BY created_at
	`

	rows, err := r.store.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var records []wallet.SessionRecord
	for rows.Next() {
		var (
			record     wallet.SessionRecord
			peer       []byte
			namespaces []byte
		)
		if err := rows.Scan(&record.Session.Topic, &record.ConversationID, &peer, &namespaces, &record.Session.SymKey); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		if err := json.Unmarshal(peer, &record.Session.Peer); err != nil {
			return nil, fmt.Errorf("failed to decode peer metadata: %w", err)
		}
		if err := json.Unmarshal(namespaces, &record.Session.Namespaces); err != nil {
			return nil, fmt.Errorf("failed to decode session namespaces: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate session rows: %w", err)
	}

	return records, nil
}
