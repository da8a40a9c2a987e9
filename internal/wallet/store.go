// Package wallet owns per-conversation wallet state: the derived identity,
// lazily-created per-chain signing clients and the set of active
// WalletConnect sessions.
package wallet

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Ashar20/Trader-daddy/internal/chains"
	internalcrypto "github.com/Ashar20/Trader-daddy/internal/crypto"
	"github.com/Ashar20/Trader-daddy/internal/eth"
	"github.com/Ashar20/Trader-daddy/internal/metrics"
	"github.com/Ashar20/Trader-daddy/internal/walletconnect"
)

// Identity is the signing keypair bound to one conversation. The private
// key never leaves this package's callers; it is re-derivable and never
// persisted.
type Identity struct {
	ConversationID string
	PrivateKey     *ecdsa.PrivateKey
	Address        common.Address
}

// SigningClient is a chain-bound handle capable of sending transactions and
// producing signatures for one identity on one chain. *eth.Client satisfies
// it.
type SigningClient interface {
	Address() common.Address
	ChainID() int64
	SendTransaction(ctx context.Context, params eth.TxParams) (string, error)
	SignTypedData(ctx context.Context, raw json.RawMessage) (string, error)
	PersonalSign(ctx context.Context, data []byte) (string, error)
	Close()
}

// ClientFactory builds a signing client for an identity on a chain.
type ClientFactory func(identity *Identity, chain chains.Chain) (SigningClient, error)

// SessionRecord is a persisted session row used to restore state after a
// restart.
type SessionRecord struct {
	ConversationID string
	Session        walletconnect.Session
}

// SessionRecorder mirrors session registration to durable storage. All
// methods are best-effort from the store's perspective; the in-memory maps
// stay authoritative.
type SessionRecorder interface {
	SaveSession(ctx context.Context, conversationID string, session *walletconnect.Session) error
	DeleteSession(ctx context.Context, topic string) error
}

// conversationWallet clusters everything owned by one conversation.
type conversationWallet struct {
	identity *Identity

	mu       sync.Mutex
	clients  map[int64]SigningClient
	sessions map[string]*walletconnect.Session
}

// Store holds wallet state for all conversations. Identities and signing
// clients are created lazily and exactly once per key.
type Store struct {
	registry *chains.Registry
	factory  ClientFactory
	recorder SessionRecorder // optional

	mu      sync.Mutex
	wallets map[string]*conversationWallet
	topics  map[string]string // session topic -> conversation id
}

// NewStore creates a Store. recorder may be nil to disable persistence.
func NewStore(registry *chains.Registry, factory ClientFactory, recorder SessionRecorder) *Store {
	return &Store{
		registry: registry,
		factory:  factory,
		recorder: recorder,
		wallets:  make(map[string]*conversationWallet),
		topics:   make(map[string]string),
	}
}

// GetOrCreateIdentity returns the conversation's identity, deriving it on
// first use. The mapping is a pure function of the conversation id, so an
// identity is never recreated differently.
func (s *Store) GetOrCreateIdentity(conversationID string) (*Identity, error) {
	cw, err := s.getOrCreateWallet(conversationID)
	if err != nil {
		return nil, err
	}
	return cw.identity, nil
}

// GetOrCreateSigningClient returns the signing client for (conversation,
// chain), creating it on first use. Creation is idempotent under concurrent
// calls: the per-wallet lock guarantees at most one client per chain.
func (s *Store) GetOrCreateSigningClient(conversationID string, chainID int64) (SigningClient, error) {
	chain, err := s.registry.Resolve(chainID)
	if err != nil {
		return nil, err
	}

	cw, err := s.getOrCreateWallet(conversationID)
	if err != nil {
		return nil, err
	}

	cw.mu.Lock()
	defer cw.mu.Unlock()

	if client, ok := cw.clients[chainID]; ok {
		return client, nil
	}

	client, err := s.factory(cw.identity, chain)
	if err != nil {
		return nil, fmt.Errorf("failed to create signing client for chain %d: %w", chainID, err)
	}
	cw.clients[chainID] = client

	slog.Info("created signing client",
		"conversation_id", conversationID,
		"chain_id", chainID,
		"address", cw.identity.Address.Hex())

	return client, nil
}

// RegisterSession binds a settled session to its owning conversation.
func (s *Store) RegisterSession(ctx context.Context, conversationID string, session *walletconnect.Session) error {
	cw, err := s.getOrCreateWallet(conversationID)
	if err != nil {
		return err
	}

	cw.mu.Lock()
	cw.sessions[session.Topic] = session
	cw.mu.Unlock()

	s.mu.Lock()
	s.topics[session.Topic] = conversationID
	s.mu.Unlock()

	metrics.ActiveSessions.Inc()

	if s.recorder != nil {
		if err := s.recorder.SaveSession(ctx, conversationID, session); err != nil {
			slog.Warn("failed to persist session", "topic", session.Topic, "error", err)
		}
	}

	return nil
}

// RemoveSession drops a session by topic. Returns the owning conversation
// and whether the topic was known.
func (s *Store) RemoveSession(ctx context.Context, topic string) (string, bool) {
	s.mu.Lock()
	conversationID, ok := s.topics[topic]
	if ok {
		delete(s.topics, topic)
	}
	cw := s.wallets[conversationID]
	s.mu.Unlock()

	if !ok {
		return "", false
	}

	if cw != nil {
		cw.mu.Lock()
		delete(cw.sessions, topic)
		cw.mu.Unlock()
	}

	metrics.ActiveSessions.Dec()

	if s.recorder != nil {
		if err := s.recorder.DeleteSession(ctx, topic); err != nil {
			slog.Warn("failed to delete persisted session", "topic", topic, "error", err)
		}
	}

	return conversationID, true
}

// FindConversationForTopic resolves the owning conversation for a session
// topic.
func (s *Store) FindConversationForTopic(topic string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conversationID, ok := s.topics[topic]
	return conversationID, ok
}

// SessionsFor returns the active sessions of a conversation.
func (s *Store) SessionsFor(conversationID string) []*walletconnect.Session {
	s.mu.Lock()
	cw := s.wallets[conversationID]
	s.mu.Unlock()

	if cw == nil {
		return nil
	}

	cw.mu.Lock()
	defer cw.mu.Unlock()
	sessions := make([]*walletconnect.Session, 0, len(cw.sessions))
	for _, session := range cw.sessions {
		sessions = append(sessions, session)
	}
	return sessions
}

// Restore reloads previously persisted sessions, typically at startup.
func (s *Store) Restore(ctx context.Context, records []SessionRecord) error {
	for i := range records {
		record := records[i]
		if err := s.RegisterSession(ctx, record.ConversationID, &record.Session); err != nil {
			return fmt.Errorf("failed to restore session %s: %w", record.Session.Topic, err)
		}
	}
	return nil
}

// Close releases all signing clients.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cw := range s.wallets {
		cw.mu.Lock()
		for _, client := range cw.clients {
			client.Close()
		}
		cw.clients = make(map[int64]SigningClient)
		cw.mu.Unlock()
	}
}

// getOrCreateWallet derives the identity on first access. The store lock
// covers only the map; derivation is cheap and deterministic so a lost race
// would produce an identical identity, but the map check keeps it single.
func (s *Store) getOrCreateWallet(conversationID string) (*conversationWallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cw, ok := s.wallets[conversationID]; ok {
		return cw, nil
	}

	privateKey, err := internalcrypto.DeriveConversationKey(conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to derive identity: %w", err)
	}

	cw := &conversationWallet{
		identity: &Identity{
			ConversationID: conversationID,
			PrivateKey:     privateKey,
			Address:        internalcrypto.GetEthereumAddress(privateKey),
		},
		clients:  make(map[int64]SigningClient),
		sessions: make(map[string]*walletconnect.Session),
	}
	s.wallets[conversationID] = cw

	return cw, nil
}
