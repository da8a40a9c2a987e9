// Package bot routes raw chat events to the pairing and approval
// subsystems. It is the only package that knows both sides.
package bot

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/Ashar20/Trader-daddy/internal/approval"
	"github.com/Ashar20/Trader-daddy/internal/logger"
	"github.com/Ashar20/Trader-daddy/internal/notify"
	"github.com/Ashar20/Trader-daddy/internal/pairing"
	"github.com/Ashar20/Trader-daddy/internal/walletconnect"
)

// TextHook receives messages that are not pairing URIs, e.g. to feed a
// conversational agent. Optional.
type TextHook func(ctx context.Context, conversationID, text string)

// Router dispatches chat events. Pairing attempts are rate limited per
// conversation; everything else passes straight through.
type Router struct {
	pairing  *pairing.Controller
	gate     *approval.Gate
	notifier *notify.Notifier
	textHook TextHook

	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewRouter creates a Router allowing perMinute pairing attempts per
// conversation with the given burst.
func NewRouter(pairingController *pairing.Controller, gate *approval.Gate, notifier *notify.Notifier, perMinute, burst int) *Router {
	return &Router{
		pairing:  pairingController,
		gate:     gate,
		notifier: notifier,
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

// SetTextHook registers a handler for non-pairing messages. Must be called
// before the router starts receiving events.
func (r *Router) SetTextHook(hook TextHook) {
	r.textHook = hook
}

// OnMessage handles an incoming text message. Messages that are not
// WalletConnect URIs go to the text hook, or are ignored when none is set.
func (r *Router) OnMessage(ctx context.Context, conversationID, text string) {
	ctx = logger.WithConversationID(ctx, conversationID)

	text = strings.TrimSpace(text)
	if !walletconnect.IsPairingURI(text) {
		if r.textHook != nil {
			r.textHook(ctx, conversationID, text)
			return
		}
		logger.Debug(ctx, "ignoring non-pairing message")
		return
	}

	if !r.limiter(conversationID).Allow() {
		logger.Warn(ctx, "pairing rate limit exceeded")
		if err := r.notifier.Inform(ctx, conversationID, notify.RateLimited()); err != nil {
			logger.Error(ctx, "failed to send rate-limit notice", "error", err)
		}
		return
	}

	if err := r.pairing.HandleURI(ctx, conversationID, text); err != nil {
		logger.Warn(ctx, "pairing attempt failed", "error", err)
	}
}

// OnReaction handles an emoji reaction to a previously sent message.
func (r *Router) OnReaction(ctx context.Context, conversationID, messageID, marker string) {
	ctx = logger.WithConversationID(ctx, conversationID)
	r.gate.HandleReaction(ctx, conversationID, messageID, approval.DecisionFromEmoji(marker))
}

// OnPollVote handles a native poll vote on a previously sent message.
func (r *Router) OnPollVote(ctx context.Context, conversationID, messageID string, selected []string) {
	ctx = logger.WithConversationID(ctx, conversationID)
	r.gate.HandleReaction(ctx, conversationID, messageID, approval.DecisionFromPollVote(selected))
}

func (r *Router) limiter(conversationID string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	limiter, ok := r.limiters[conversationID]
	if !ok {
		limiter = rate.NewLimiter(r.limit, r.burst)
		r.limiters[conversationID] = limiter
	}
	return limiter
}
