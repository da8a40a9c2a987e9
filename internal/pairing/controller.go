// Package pairing drives WalletConnect pairing and session settlement for
// chat conversations. Each pairing topic is bound to the conversation that
// submitted the URI, so a later session proposal can be routed back to its
// owner without any global ordering assumption.
package pairing

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Ashar20/Trader-daddy/internal/chains"
	"github.com/Ashar20/Trader-daddy/internal/metrics"
	"github.com/Ashar20/Trader-daddy/internal/notify"
	"github.com/Ashar20/Trader-daddy/internal/wallet"
	"github.com/Ashar20/Trader-daddy/internal/walletconnect"
	apperrors "github.com/Ashar20/Trader-daddy/pkg/errors"
)

// Methods and events offered when the proposer does not name any.
var (
	defaultMethods = []string{
		"eth_sendTransaction",
		"eth_signTypedData",
		"eth_signTypedData_v4",
		"personal_sign",
	}
	defaultEvents = []string{"chainChanged", "accountsChanged"}
)

type binding struct {
	conversationID string
	expiresAt      time.Time
}

// Controller owns the pairing-topic bindings and the session lifecycle.
type Controller struct {
	store    *wallet.Store
	signer   walletconnect.Signer
	notifier *notify.Notifier
	registry *chains.Registry
	ttl      time.Duration

	mu       sync.Mutex
	bindings map[string]binding
}

// NewController creates a Controller. Pairing bindings that receive no
// proposal within ttl are discarded.
func NewController(
	store *wallet.Store,
	signer walletconnect.Signer,
	notifier *notify.Notifier,
	registry *chains.Registry,
	ttl time.Duration,
) *Controller {
	return &Controller{
		store:    store,
		signer:   signer,
		notifier: notifier,
		registry: registry,
		ttl:      ttl,
		bindings: make(map[string]binding),
	}
}

// HandleURI pairs with the relay over the given URI on behalf of a
// conversation and binds the resulting pairing topic to it.
func (c *Controller) HandleURI(ctx context.Context, conversationID, uri string) error {
	log := slog.With("conversation_id", conversationID)

	if err := c.notifier.Inform(ctx, conversationID, notify.PairingStarted()); err != nil {
		log.Warn("failed to send pairing acknowledgement", "error", err)
	}

	topic, err := c.signer.Pair(ctx, uri)
	if err != nil {
		log.Warn("pairing failed", "error", err)
		metrics.PairingFailures.Inc()
		if informErr := c.notifier.Inform(ctx, conversationID, notify.PairingFailed()); informErr != nil {
			log.Error("failed to report pairing failure", "error", informErr)
		}
		return apperrors.PairingFailure(err.Error())
	}

	now := time.Now()
	c.mu.Lock()
	c.sweepExpired(now)
	c.bindings[topic] = binding{
		conversationID: conversationID,
		expiresAt:      now.Add(c.ttl),
	}
	c.mu.Unlock()

	log.Info("pairing established", "pairing_topic", topic)
	return nil
}

// sweepExpired drops bindings whose TTL has passed, so pairings that never
// produce a proposal do not accumulate. Callers must hold c.mu.
func (c *Controller) sweepExpired(now time.Time) {
	for topic, b := range c.bindings {
		if now.After(b.expiresAt) {
			delete(c.bindings, topic)
		}
	}
}

// takeBinding resolves and removes the conversation bound to a pairing
// topic. A pairing carries at most one proposal; expired bindings are
// treated as absent.
func (c *Controller) takeBinding(pairingTopic string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.bindings[pairingTopic]
	if !ok {
		return "", false
	}
	delete(c.bindings, pairingTopic)

	if time.Now().After(b.expiresAt) {
		return "", false
	}
	return b.conversationID, true
}

// HandleSessionProposal negotiates namespaces for a proposal and, when the
// wallet can satisfy every required chain, settles the session.
func (c *Controller) HandleSessionProposal(ctx context.Context, proposal *walletconnect.SessionProposal) {
	log := slog.With("pairing_topic", proposal.PairingTopic, "proposer", proposal.Proposer.Name)

	conversationID, ok := c.takeBinding(proposal.PairingTopic)
	if !ok {
		log.Warn("session proposal on unknown or expired pairing topic")
		c.rejectProposal(ctx, proposal, walletconnect.RPCError{
			Code:    walletconnect.CodeInternalFailure,
			Message: "unknown pairing",
		})
		return
	}
	log = log.With("conversation_id", conversationID)

	identity, err := c.store.GetOrCreateIdentity(conversationID)
	if err != nil {
		log.Error("failed to derive wallet identity", "error", err)
		metrics.PairingFailures.Inc()
		c.rejectProposal(ctx, proposal, walletconnect.RPCError{
			Code:    walletconnect.CodeInternalFailure,
			Message: "wallet unavailable",
		})
		c.informFailure(ctx, conversationID, "The wallet could not be prepared for this conversation.")
		return
	}

	namespaces, err := c.negotiate(proposal, identity.Address.Hex())
	if err != nil {
		if appErr, ok := apperrors.IsAppError(err); ok {
			log.Warn("namespace negotiation failed", "code", appErr.Code, "detail", appErr.Detail)
		} else {
			log.Warn("namespace negotiation failed", "error", err)
		}
		metrics.PairingFailures.Inc()
		c.rejectProposal(ctx, proposal, walletconnect.RPCError{
			Code:    walletconnect.CodeUnsupportedChain,
			Message: "requested chains are not supported",
		})
		c.informFailure(ctx, conversationID, err.Error())
		return
	}

	session, err := c.signer.ApproveProposal(ctx, proposal, namespaces)
	if err != nil {
		log.Error("session settlement failed", "error", err)
		metrics.PairingFailures.Inc()
		c.informFailure(ctx, conversationID, "The dApp connection could not be completed.")
		return
	}

	if err := c.store.RegisterSession(ctx, conversationID, session); err != nil {
		log.Error("failed to register session", "error", err)
	}

	log.Info("session established", "session_topic", session.Topic, "address", identity.Address.Hex())

	message := notify.SessionConnected(session.Peer, identity.Address.Hex(), c.registry.All())
	if err := c.notifier.Inform(ctx, conversationID, message); err != nil {
		log.Error("failed to send session confirmation", "error", err)
	}
}

// HandleSessionDelete removes a session torn down by the peer and tells the
// owning conversation.
func (c *Controller) HandleSessionDelete(ctx context.Context, del *walletconnect.SessionDelete) {
	conversationID, ok := c.store.RemoveSession(ctx, del.Topic)
	if !ok {
		slog.Debug("delete for unknown session topic", "topic", del.Topic)
		return
	}

	slog.Info("session deleted by peer", "topic", del.Topic, "conversation_id", conversationID)

	if err := c.notifier.Inform(ctx, conversationID, notify.SessionEnded()); err != nil {
		slog.Error("failed to send session-ended notice", "error", err)
	}
}

// negotiate builds the session namespaces for a proposal. Every required
// chain must be supported or the whole proposal is refused; optional chains
// contribute only their supported subset.
func (c *Controller) negotiate(proposal *walletconnect.SessionProposal, address string) (map[string]walletconnect.SessionNamespace, error) {
	chainSet := make(map[string]struct{})
	methodSet := make(map[string]struct{})
	eventSet := make(map[string]struct{})

	for key, ns := range proposal.RequiredNamespaces {
		if key != "eip155" && !strings.HasPrefix(key, "eip155:") {
			return nil, apperrors.NamespaceNegotiation(fmt.Sprintf("required namespace %q is not supported", key))
		}

		requested := ns.Chains
		if len(requested) == 0 && strings.HasPrefix(key, "eip155:") {
			// CAIP-2-keyed namespace: the key itself names the chain.
			requested = []string{key}
		}

		var unsupported []string
		for _, chain := range requested {
			if c.supports(chain) {
				chainSet[chain] = struct{}{}
			} else {
				unsupported = append(unsupported, chain)
			}
		}
		if len(unsupported) > 0 {
			return nil, apperrors.NamespaceNegotiation(
				"required chains are not supported: " + strings.Join(unsupported, ", "))
		}

		collect(methodSet, ns.Methods)
		collect(eventSet, ns.Events)
	}

	for _, ns := range proposal.OptionalNamespaces {
		for _, chain := range ns.Chains {
			if c.supports(chain) {
				chainSet[chain] = struct{}{}
			}
		}
		collect(methodSet, ns.Methods)
		collect(eventSet, ns.Events)
	}

	if len(chainSet) == 0 {
		// The proposer named no chains at all; offer everything we have.
		for _, chain := range c.registry.All() {
			chainSet[chain.CAIP2()] = struct{}{}
		}
	}

	chainList := make([]string, 0, len(chainSet))
	accounts := make([]string, 0, len(chainSet))
	for chain := range chainSet {
		chainList = append(chainList, chain)
	}
	sort.Strings(chainList)
	for _, chain := range chainList {
		accounts = append(accounts, chain+":"+address)
	}

	methods := sorted(methodSet)
	if len(methods) == 0 {
		methods = defaultMethods
	}
	events := sorted(eventSet)
	if len(events) == 0 {
		events = defaultEvents
	}

	return map[string]walletconnect.SessionNamespace{
		"eip155": {
			Accounts: accounts,
			Methods:  methods,
			Events:   events,
		},
	}, nil
}

func (c *Controller) supports(caip2 string) bool {
	chainID, err := chains.ParseCAIP2(caip2)
	if err != nil {
		return false
	}
	return c.registry.Supported(chainID)
}

func (c *Controller) rejectProposal(ctx context.Context, proposal *walletconnect.SessionProposal, rpcErr walletconnect.RPCError) {
	if err := c.signer.RejectProposal(ctx, proposal, rpcErr); err != nil {
		slog.Error("failed to reject session proposal", "pairing_topic", proposal.PairingTopic, "error", err)
	}
}

func (c *Controller) informFailure(ctx context.Context, conversationID, reason string) {
	if err := c.notifier.Inform(ctx, conversationID, notify.ConnectionFailed(reason)); err != nil {
		slog.Error("failed to report connection failure", "conversation_id", conversationID, "error", err)
	}
}

func collect(set map[string]struct{}, values []string) {
	for _, v := range values {
		set[v] = struct{}{}
	}
}

func sorted(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
