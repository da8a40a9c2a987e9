// Package approval implements the pending-request ledger and the
// reaction-driven state machine that decides whether a requested signature
// or transaction proceeds.
package approval

import (
	"context"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Ashar20/Trader-daddy/internal/chains"
	"github.com/Ashar20/Trader-daddy/internal/eth"
	"github.com/Ashar20/Trader-daddy/internal/metrics"
	"github.com/Ashar20/Trader-daddy/internal/notify"
	"github.com/Ashar20/Trader-daddy/internal/wallet"
	"github.com/Ashar20/Trader-daddy/internal/walletconnect"
	apperrors "github.com/Ashar20/Trader-daddy/pkg/errors"
)

// PendingRequest is a not-yet-decided signing or transaction request. It is
// created when the approval prompt is sent and removed exactly once on its
// terminal transition.
type PendingRequest struct {
	CorrelationKey string
	ConversationID string
	Kind           walletconnect.Kind
	ChainID        int64
	Request        *walletconnect.SessionRequest
	Payload        *walletconnect.Payload
	CreatedAt      time.Time

	timer *time.Timer
}

// PendingRecorder mirrors the pending ledger to durable storage.
type PendingRecorder interface {
	SavePending(ctx context.Context, pending *PendingRequest) error
	DeletePending(ctx context.Context, correlationKey string) error
}

// Gate gates outbound signing on explicit user reactions.
type Gate struct {
	store    *wallet.Store
	signer   walletconnect.Signer
	notifier *notify.Notifier
	registry *chains.Registry
	recorder PendingRecorder // optional
	ttl      time.Duration

	mu      sync.Mutex
	pending map[string]*PendingRequest
}

// NewGate creates a Gate. Pending requests expire after ttl; recorder may
// be nil to disable persistence.
func NewGate(
	store *wallet.Store,
	signer walletconnect.Signer,
	notifier *notify.Notifier,
	registry *chains.Registry,
	recorder PendingRecorder,
	ttl time.Duration,
) *Gate {
	return &Gate{
		store:    store,
		signer:   signer,
		notifier: notifier,
		registry: registry,
		recorder: recorder,
		ttl:      ttl,
		pending:  make(map[string]*PendingRequest),
	}
}

// PendingCount returns the number of undecided requests.
func (g *Gate) PendingCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pending)
}

// HandleSessionRequest validates an inbound session request, prompts the
// owning conversation and records the request as pending. Requests that
// cannot become pending (unknown session, unsupported method or chain,
// undeliverable prompt) are answered to the peer immediately.
func (g *Gate) HandleSessionRequest(ctx context.Context, request *walletconnect.SessionRequest) {
	log := slog.With("topic", request.Topic, "request_id", request.ID, "method", request.Method)

	conversationID, ok := g.store.FindConversationForTopic(request.Topic)
	if !ok {
		log.Warn("session request for unknown topic")
		g.respondError(ctx, request, walletconnect.RPCError{
			Code:    walletconnect.CodeInternalFailure,
			Message: "no session for topic",
		})
		return
	}
	log = log.With("conversation_id", conversationID)

	payload, err := walletconnect.ParsePayload(request.Method, request.Params)
	if err != nil {
		log.Warn("malformed session request",
			"error", apperrors.NewWithDetail(apperrors.ErrCodeBadRequest, "malformed request parameters", err.Error()))
		g.respondError(ctx, request, walletconnect.RPCError{
			Code:    walletconnect.CodeInternalFailure,
			Message: "invalid request parameters",
		})
		return
	}

	if payload.Kind == walletconnect.KindUnsupported {
		log.Info("unsupported request method")
		g.respondError(ctx, request, walletconnect.RPCError{
			Code:    walletconnect.CodeUnsupportedMethod,
			Message: "unsupported method " + request.Method,
		})
		return
	}

	chainID, err := chains.ParseCAIP2(request.ChainID)
	if err == nil && !g.registry.Supported(chainID) {
		err = apperrors.UnsupportedChain(request.ChainID)
	}
	if err != nil {
		// Terminal failure before the request ever becomes pending: answer
		// the peer and tell the user which chain was refused.
		log.Warn("request for unsupported chain", "chain", request.ChainID, "error", err)
		g.respondError(ctx, request, walletconnect.RPCError{
			Code:    walletconnect.CodeUnsupportedChain,
			Message: "unsupported chain " + request.ChainID,
		})
		metrics.ApprovalOutcomes.WithLabelValues(metrics.OutcomeFailed).Inc()
		if informErr := g.notifier.Inform(ctx, conversationID, notify.RequestFailed(err.Error())); informErr != nil {
			log.Error("failed to notify unsupported chain", "error", informErr)
		}
		return
	}

	var summary string
	switch payload.Kind {
	case walletconnect.KindSendTransaction:
		summary = notify.TransactionPrompt(payload.Transaction)
	default:
		summary = notify.SignaturePrompt(payload.Kind)
	}

	messageID, err := g.notifier.Prompt(ctx, conversationID, summary)
	if err != nil {
		// The user can never approve a prompt that was not delivered, so
		// this is equivalent to a failed pending request.
		log.Error("failed to send approval prompt", "error", err)
		g.respondError(ctx, request, walletconnect.RPCError{
			Code:    walletconnect.CodeInternalFailure,
			Message: "wallet unavailable",
		})
		metrics.ApprovalOutcomes.WithLabelValues(metrics.OutcomeFailed).Inc()
		return
	}

	pending := &PendingRequest{
		CorrelationKey: messageID,
		ConversationID: conversationID,
		Kind:           payload.Kind,
		ChainID:        chainID,
		Request:        request,
		Payload:        payload,
		CreatedAt:      time.Now(),
	}
	pending.timer = time.AfterFunc(g.ttl, func() {
		g.expire(messageID)
	})

	g.mu.Lock()
	g.pending[messageID] = pending
	g.mu.Unlock()

	metrics.PendingRequests.Inc()

	if g.recorder != nil {
		if err := g.recorder.SavePending(ctx, pending); err != nil {
			log.Warn("failed to persist pending request", "error", err)
		}
	}

	log.Info("request pending approval", "correlation_key", messageID, "kind", payload.Kind)
}

// HandleReaction resolves a reaction signal against the pending ledger.
// Unknown or already-resolved correlation keys and conversation mismatches
// are logged no-ops; unrecognized markers leave the entry pending.
func (g *Gate) HandleReaction(ctx context.Context, conversationID, messageID string, decision Decision) {
	if decision == DecisionUnrecognized {
		slog.Debug("ignoring unrecognized reaction", "correlation_key", messageID)
		return
	}

	pending, ok := g.take(messageID, conversationID)
	if !ok {
		return
	}

	metrics.PendingRequests.Dec()
	if g.recorder != nil {
		if err := g.recorder.DeletePending(ctx, messageID); err != nil {
			slog.Warn("failed to delete persisted pending request", "correlation_key", messageID, "error", err)
		}
	}

	switch decision {
	case DecisionApprove:
		g.approve(ctx, pending)
	case DecisionReject:
		g.reject(ctx, pending)
	}
}

// take atomically removes a pending entry, checking ownership. A duplicate
// signal for the same key observes the entry already removed and is a
// no-op; a signal from the wrong conversation leaves the entry pending.
func (g *Gate) take(correlationKey, conversationID string) (*PendingRequest, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	pending, ok := g.pending[correlationKey]
	if !ok {
		slog.Info("reaction with no matching pending request",
			"correlation_key", correlationKey,
			"code", apperrors.ErrCodeStaleCorrelation)
		return nil, false
	}

	if pending.ConversationID != conversationID {
		// Guards against replay of a correlation key across chats.
		slog.Warn("reaction from wrong conversation",
			"correlation_key", correlationKey,
			"expected", pending.ConversationID,
			"received", conversationID)
		return nil, false
	}

	delete(g.pending, correlationKey)
	pending.timer.Stop()
	return pending, true
}

// expire transitions a still-pending request to Failed after the TTL.
func (g *Gate) expire(correlationKey string) {
	g.mu.Lock()
	pending, ok := g.pending[correlationKey]
	if ok {
		delete(g.pending, correlationKey)
	}
	g.mu.Unlock()

	if !ok {
		// Lost the race against a reaction; the entry already terminated.
		return
	}

	ctx := context.Background()
	slog.Info("pending request expired",
		"conversation_id", pending.ConversationID,
		"error", apperrors.RequestExpired(correlationKey))

	metrics.PendingRequests.Dec()
	metrics.ApprovalOutcomes.WithLabelValues(metrics.OutcomeExpired).Inc()

	if g.recorder != nil {
		if err := g.recorder.DeletePending(ctx, correlationKey); err != nil {
			slog.Warn("failed to delete persisted pending request", "correlation_key", correlationKey, "error", err)
		}
	}

	g.respondError(ctx, pending.Request, walletconnect.RPCError{
		Code:    walletconnect.CodeRequestExpired,
		Message: "Request expired",
	})

	if err := g.notifier.Inform(ctx, pending.ConversationID, notify.RequestExpired()); err != nil {
		slog.Error("failed to notify request expiry", "error", err)
	}
}

// approve executes the requested operation and reports the outcome to the
// peer and the user. Execution errors are terminal and never retried.
func (g *Gate) approve(ctx context.Context, pending *PendingRequest) {
	log := slog.With(
		"conversation_id", pending.ConversationID,
		"correlation_key", pending.CorrelationKey,
		"chain_id", pending.ChainID,
		"kind", pending.Kind)

	client, err := g.store.GetOrCreateSigningClient(pending.ConversationID, pending.ChainID)
	if err != nil {
		log.Error("failed to get signing client", "error", err)

		code := walletconnect.CodeInternalFailure
		if apperrors.IsCode(err, apperrors.ErrCodeUnsupportedChain) {
			code = walletconnect.CodeUnsupportedChain
		}
		g.fail(ctx, pending, walletconnect.RPCError{Code: code, Message: "unsupported chain"}, err.Error())
		return
	}

	chain, err := g.registry.Resolve(pending.ChainID)
	if err != nil {
		g.fail(ctx, pending, walletconnect.RPCError{
			Code:    walletconnect.CodeUnsupportedChain,
			Message: "unsupported chain",
		}, err.Error())
		return
	}

	var (
		result      string
		successText string
	)

	switch pending.Kind {
	case walletconnect.KindSendTransaction:
		result, err = g.sendTransaction(ctx, client, pending.Payload.Transaction)
		successText = notify.TransactionSent(chain, result)
	case walletconnect.KindSignTypedData:
		result, err = client.SignTypedData(ctx, pending.Payload.TypedData)
		successText = notify.MessageSigned(chain, result)
	case walletconnect.KindPersonalSign:
		result, err = client.PersonalSign(ctx, pending.Payload.Message)
		successText = notify.MessageSigned(chain, result)
	default:
		g.fail(ctx, pending, walletconnect.RPCError{
			Code:    walletconnect.CodeUnsupportedMethod,
			Message: "unsupported method",
		}, "unsupported request kind")
		return
	}

	if err != nil {
		signErr := apperrors.SigningFailure(err.Error())
		log.Error("execution failed", "error", signErr)
		g.fail(ctx, pending, walletconnect.RPCError{
			Code:    walletconnect.CodeInternalFailure,
			Message: "execution failed",
		}, err.Error())
		return
	}

	if err := g.signer.Respond(ctx, pending.Request.Topic, pending.Request.ID, result); err != nil {
		log.Error("failed to respond to peer", "error", err)
	}

	metrics.ApprovalOutcomes.WithLabelValues(metrics.OutcomeApproved).Inc()
	log.Info("request approved", "result", result)

	if err := g.notifier.Inform(ctx, pending.ConversationID, successText); err != nil {
		log.Error("failed to notify approval outcome", "error", err)
	}
}

// sendTransaction converts the decoded request into chain parameters. Gas
// supplied by the dApp is dropped; the client estimates it fresh.
func (g *Gate) sendTransaction(ctx context.Context, client wallet.SigningClient, tx *walletconnect.TransactionParams) (string, error) {
	value := new(big.Int)
	if tx.Value != nil {
		value.Set(tx.Value.ToInt())
	}

	return client.SendTransaction(ctx, eth.TxParams{
		To:    common.HexToAddress(tx.To),
		Value: value,
		Data:  tx.Data,
	})
}

// reject answers the peer with the standard user-rejection code.
func (g *Gate) reject(ctx context.Context, pending *PendingRequest) {
	if err := g.signer.RespondError(ctx, pending.Request.Topic, pending.Request.ID, walletconnect.ErrUserRejected); err != nil {
		slog.Error("failed to send rejection to peer", "correlation_key", pending.CorrelationKey, "error", err)
	}

	metrics.ApprovalOutcomes.WithLabelValues(metrics.OutcomeRejected).Inc()
	slog.Info("request rejected",
		"conversation_id", pending.ConversationID,
		"correlation_key", pending.CorrelationKey)

	if err := g.notifier.Inform(ctx, pending.ConversationID, notify.RequestRejected()); err != nil {
		slog.Error("failed to notify rejection", "error", err)
	}
}

// fail reports a terminal failure to both the peer and the user.
func (g *Gate) fail(ctx context.Context, pending *PendingRequest, rpcErr walletconnect.RPCError, reason string) {
	g.respondError(ctx, pending.Request, rpcErr)
	metrics.ApprovalOutcomes.WithLabelValues(metrics.OutcomeFailed).Inc()

	if err := g.notifier.Inform(ctx, pending.ConversationID, notify.RequestFailed(reason)); err != nil {
		slog.Error("failed to notify failure", "correlation_key", pending.CorrelationKey, "error", err)
	}
}

func (g *Gate) respondError(ctx context.Context, request *walletconnect.SessionRequest, rpcErr walletconnect.RPCError) {
	if err := g.signer.RespondError(ctx, request.Topic, request.ID, rpcErr); err != nil {
		slog.Error("failed to send error response to peer",
			"topic", request.Topic,
			"request_id", request.ID,
			"error", err)
	}
}
