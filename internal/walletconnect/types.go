// Package walletconnect implements the wallet side of the WalletConnect v2
// sign protocol: pairing, session settlement and request/response exchange
// over the relay.
package walletconnect

import (
	"context"
	"encoding/json"
)

// Metadata describes a peer application.
type Metadata struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	URL         string   `json:"url"`
	Icons       []string `json:"icons"`
}

// Namespace is a protocol-level declaration of which chains, methods and
// events a session supports. Chains use CAIP-2 identifiers.
type Namespace struct {
	Chains  []string `json:"chains,omitempty"`
	Methods []string `json:"methods,omitempty"`
	Events  []string `json:"events,omitempty"`
}

// SessionNamespace is the approved counterpart of a Namespace: it carries
// the CAIP-10 accounts the wallet exposes for each chain.
type SessionNamespace struct {
	Accounts []string `json:"accounts"`
	Methods  []string `json:"methods"`
	Events   []string `json:"events"`
}

// SessionProposal is emitted when a peer proposes a session on a pairing
// topic. PairingTopic correlates the proposal back to the pairing call that
// produced it.
type SessionProposal struct {
	ID                 int64                `json:"id"`
	PairingTopic       string               `json:"pairingTopic"`
	Proposer           Metadata             `json:"proposer"`
	ProposerPublicKey  string               `json:"proposerPublicKey"`
	RequiredNamespaces map[string]Namespace `json:"requiredNamespaces"`
	OptionalNamespaces map[string]Namespace `json:"optionalNamespaces"`
}

// Session is a live pairing between one wallet identity and one peer.
// SymKey is the hex-encoded symmetric key of the session topic; it is what
// makes a persisted session resumable after a restart.
type Session struct {
	Topic      string                      `json:"topic"`
	Peer       Metadata                    `json:"peer"`
	Namespaces map[string]SessionNamespace `json:"namespaces"`
	SymKey     string                      `json:"symKey"`
}

// SessionRequest is a signing or transaction request issued by the peer
// against an active session.
type SessionRequest struct {
	ID      int64           `json:"id"`
	Topic   string          `json:"topic"`
	ChainID string          `json:"chainId"` // CAIP-2
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// SessionDelete is emitted when the peer tears down a session.
type SessionDelete struct {
	Topic string `json:"topic"`
}

// Handler receives protocol events. Implementations must be safe for
// concurrent use; events for different topics may arrive interleaved.
type Handler interface {
	HandleSessionProposal(ctx context.Context, proposal *SessionProposal)
	HandleSessionRequest(ctx context.Context, request *SessionRequest)
	HandleSessionDelete(ctx context.Context, del *SessionDelete)
}

// Signer is the wallet-side protocol surface the rest of the system
// depends on.
type Signer interface {
	// Pair dials into a pairing URI and subscribes to its topic.
	// Returns the pairing topic.
	Pair(ctx context.Context, uri string) (string, error)

	// ApproveProposal settles a session with the given namespaces.
	ApproveProposal(ctx context.Context, proposal *SessionProposal, namespaces map[string]SessionNamespace) (*Session, error)

	// RejectProposal declines a proposal with a protocol error.
	RejectProposal(ctx context.Context, proposal *SessionProposal, rpcErr RPCError) error

	// Respond answers a session request with a successful result.
	Respond(ctx context.Context, topic string, requestID int64, result any) error

	// RespondError answers a session request with a protocol error.
	RespondError(ctx context.Context, topic string, requestID int64, rpcErr RPCError) error
}

// RPCError is a protocol-facing JSON-RPC error.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Protocol error codes surfaced to peers.
const (
	CodeUserRejected      = 4001
	CodeUnsupportedMethod = 4200
	CodeUnsupportedChain  = 4901
	CodeInternalFailure   = 5000
	CodeRequestExpired    = 6000
)

// ErrUserRejected is the standard user-rejection response.
var ErrUserRejected = RPCError{Code: CodeUserRejected, Message: "User rejected"}
