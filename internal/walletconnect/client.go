package walletconnect

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ClientConfig configures the sign-protocol client.
type ClientConfig struct {
	RelayURL  string
	ProjectID string
	Metadata  Metadata
}

// Client implements Signer over a relay connection. Incoming sealed
// messages are decrypted with the per-topic symmetric key and dispatched to
// the registered Handler.
type Client struct {
	relay    *relayClient
	metadata Metadata
	handler  Handler

	mu   sync.RWMutex
	keys map[string][]byte // topic -> symKey

	wg sync.WaitGroup
}

// Ensure the relay-backed client satisfies the protocol surface.
var _ Signer = (*Client)(nil)

// NewClient dials the relay and starts dispatching protocol events to the
// handler.
func NewClient(ctx context.Context, cfg ClientConfig, handler Handler) (*Client, error) {
	if handler == nil {
		return nil, fmt.Errorf("handler is required")
	}

	relay, err := dialRelay(ctx, cfg.RelayURL, cfg.ProjectID)
	if err != nil {
		return nil, err
	}

	c := &Client{
		relay:    relay,
		metadata: cfg.Metadata,
		handler:  handler,
		keys:     make(map[string][]byte),
	}

	c.wg.Add(1)
	go c.dispatchLoop()

	return c, nil
}

// Close shuts down the relay connection and waits for dispatch to finish.
func (c *Client) Close() error {
	err := c.relay.Close()
	c.wg.Wait()
	return err
}

// Pair parses a pairing URI, registers its symmetric key and subscribes to
// the pairing topic. The session proposal will arrive on that topic.
func (c *Client) Pair(ctx context.Context, uri string) (string, error) {
	parsed, err := ParsePairingURI(uri)
	if err != nil {
		return "", err
	}
	if parsed.Expired(time.Now()) {
		return "", fmt.Errorf("pairing URI expired at %s", parsed.Expiry.Format(time.RFC3339))
	}

	c.setKey(parsed.Topic, parsed.SymKey)

	if err := c.relay.Subscribe(ctx, parsed.Topic); err != nil {
		c.dropKey(parsed.Topic)
		return "", err
	}

	return parsed.Topic, nil
}

// ApproveProposal settles a session: key agreement with the proposer,
// subscription to the derived session topic, the approval response on the
// pairing topic and wc_sessionSettle on the session topic.
func (c *Client) ApproveProposal(ctx context.Context, proposal *SessionProposal, namespaces map[string]SessionNamespace) (*Session, error) {
	kp, err := generateKeyPair()
	if err != nil {
		return nil, err
	}

	sessionKey, err := deriveSymKey(kp, proposal.ProposerPublicKey)
	if err != nil {
		return nil, fmt.Errorf("session key agreement failed: %w", err)
	}
	sessionTopic := topicFromKey(sessionKey)

	c.setKey(sessionTopic, sessionKey)

	if err := c.relay.Subscribe(ctx, sessionTopic); err != nil {
		c.dropKey(sessionTopic)
		return nil, err
	}

	approval := map[string]any{
		"relay":              map[string]string{"protocol": "irn"},
		"responderPublicKey": kp.PublicKeyHex(),
	}
	if err := c.publishResult(ctx, proposal.PairingTopic, proposal.ID, approval, ttlResponse, tagSessionProposeResponse); err != nil {
		c.dropKey(sessionTopic)
		return nil, fmt.Errorf("failed to publish proposal approval: %w", err)
	}

	settle := map[string]any{
		"relay":      map[string]string{"protocol": "irn"},
		"namespaces": namespaces,
		"controller": map[string]any{
			"publicKey": kp.PublicKeyHex(),
			"metadata":  c.metadata,
		},
		"expiry": time.Now().Add(7 * 24 * time.Hour).Unix(),
	}
	if err := c.publishRequest(ctx, sessionTopic, "wc_sessionSettle", settle, ttlSettle, tagSessionSettle); err != nil {
		c.dropKey(sessionTopic)
		return nil, fmt.Errorf("failed to settle session: %w", err)
	}

	// The pairing topic has served its purpose once the session settles.
	if err := c.relay.Unsubscribe(ctx, proposal.PairingTopic); err != nil {
		slog.Debug("failed to unsubscribe pairing topic", "topic", proposal.PairingTopic, "error", err)
	}
	c.dropKey(proposal.PairingTopic)

	return &Session{
		Topic:      sessionTopic,
		Peer:       proposal.Proposer,
		Namespaces: namespaces,
		SymKey:     hex.EncodeToString(sessionKey),
	}, nil
}

// Resume re-attaches a previously settled session: it registers the stored
// symmetric key and re-subscribes to the session topic.
func (c *Client) Resume(ctx context.Context, session *Session) error {
	symKey, err := hex.DecodeString(session.SymKey)
	if err != nil || len(symKey) != 32 {
		return fmt.Errorf("invalid session key for topic %s", session.Topic)
	}

	c.setKey(session.Topic, symKey)

	if err := c.relay.Subscribe(ctx, session.Topic); err != nil {
		c.dropKey(session.Topic)
		return err
	}
	return nil
}

// RejectProposal declines a session proposal on its pairing topic.
func (c *Client) RejectProposal(ctx context.Context, proposal *SessionProposal, rpcErr RPCError) error {
	return c.publishError(ctx, proposal.PairingTopic, proposal.ID, rpcErr, tagSessionProposeResponse)
}

// Respond answers a session request with a successful result.
func (c *Client) Respond(ctx context.Context, topic string, requestID int64, result any) error {
	return c.publishResult(ctx, topic, requestID, result, ttlResponse, tagSessionRequestResponse)
}

// RespondError answers a session request with a protocol error.
func (c *Client) RespondError(ctx context.Context, topic string, requestID int64, rpcErr RPCError) error {
	return c.publishError(ctx, topic, requestID, rpcErr, tagSessionRequestResponse)
}

func (c *Client) publishResult(ctx context.Context, topic string, id int64, result any, ttl, tag int) error {
	payload := map[string]any{"id": id, "jsonrpc": "2.0", "result": result}
	return c.sealAndPublish(ctx, topic, payload, ttl, tag)
}

func (c *Client) publishError(ctx context.Context, topic string, id int64, rpcErr RPCError, tag int) error {
	payload := map[string]any{"id": id, "jsonrpc": "2.0", "error": rpcErr}
	return c.sealAndPublish(ctx, topic, payload, ttlResponse, tag)
}

func (c *Client) publishRequest(ctx context.Context, topic, method string, params any, ttl, tag int) error {
	payload := map[string]any{
		"id":      time.Now().UnixMicro(),
		"jsonrpc": "2.0",
		"method":  method,
		"params":  params,
	}
	return c.sealAndPublish(ctx, topic, payload, ttl, tag)
}

func (c *Client) sealAndPublish(ctx context.Context, topic string, payload any, ttl, tag int) error {
	symKey, ok := c.key(topic)
	if !ok {
		return fmt.Errorf("no key registered for topic %s", topic)
	}

	plaintext, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	sealed, err := seal(symKey, plaintext)
	if err != nil {
		return err
	}

	return c.relay.Publish(ctx, topic, sealed, ttl, tag)
}

func (c *Client) setKey(topic string, symKey []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys[topic] = symKey
}

func (c *Client) dropKey(topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.keys, topic)
}

func (c *Client) key(topic string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	symKey, ok := c.keys[topic]
	return symKey, ok
}

// dispatchLoop decrypts inbound relay messages and routes protocol methods
// to the handler.
func (c *Client) dispatchLoop() {
	defer c.wg.Done()

	for inbound := range c.relay.Messages() {
		symKey, ok := c.key(inbound.Topic)
		if !ok {
			slog.Debug("message on topic without key", "topic", inbound.Topic)
			continue
		}

		plaintext, err := open(symKey, inbound.Message)
		if err != nil {
			slog.Warn("failed to open envelope", "topic", inbound.Topic, "error", err)
			continue
		}

		var frame struct {
			ID     int64           `json:"id"`
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
		}
		if err := json.Unmarshal(plaintext, &frame); err != nil {
			slog.Warn("malformed protocol message", "topic", inbound.Topic, "error", err)
			continue
		}

		ctx := context.Background()

		switch frame.Method {
		case "wc_sessionPropose":
			c.dispatchProposal(ctx, inbound.Topic, frame.ID, frame.Params)
		case "wc_sessionRequest":
			c.dispatchRequest(ctx, inbound.Topic, frame.ID, frame.Params)
		case "wc_sessionDelete":
			c.handler.HandleSessionDelete(ctx, &SessionDelete{Topic: inbound.Topic})
		case "":
			// Response frame (e.g. settle acknowledgement); nothing to route.
		default:
			slog.Debug("ignoring protocol method", "method", frame.Method, "topic", inbound.Topic)
		}
	}
}

func (c *Client) dispatchProposal(ctx context.Context, topic string, id int64, params json.RawMessage) {
	var body struct {
		Proposer struct {
			PublicKey string   `json:"publicKey"`
			Metadata  Metadata `json:"metadata"`
		} `json:"proposer"`
		RequiredNamespaces map[string]Namespace `json:"requiredNamespaces"`
		OptionalNamespaces map[string]Namespace `json:"optionalNamespaces"`
	}
	if err := json.Unmarshal(params, &body); err != nil {
		slog.Warn("malformed session proposal", "topic", topic, "error", err)
		return
	}

	c.handler.HandleSessionProposal(ctx, &SessionProposal{
		ID:                 id,
		PairingTopic:       topic,
		Proposer:           body.Proposer.Metadata,
		ProposerPublicKey:  body.Proposer.PublicKey,
		RequiredNamespaces: body.RequiredNamespaces,
		OptionalNamespaces: body.OptionalNamespaces,
	})
}

func (c *Client) dispatchRequest(ctx context.Context, topic string, id int64, params json.RawMessage) {
	var body struct {
		ChainID string `json:"chainId"`
		Request struct {
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
		} `json:"request"`
	}
	if err := json.Unmarshal(params, &body); err != nil {
		slog.Warn("malformed session request", "topic", topic, "error", err)
		return
	}

	c.handler.HandleSessionRequest(ctx, &SessionRequest{
		ID:      id,
		Topic:   topic,
		ChainID: body.ChainID,
		Method:  body.Request.Method,
		Params:  body.Request.Params,
	})
}
