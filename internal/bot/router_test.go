package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ashar20/Trader-daddy/internal/approval"
	"github.com/Ashar20/Trader-daddy/internal/chains"
	"github.com/Ashar20/Trader-daddy/internal/notify"
	"github.com/Ashar20/Trader-daddy/internal/pairing"
	"github.com/Ashar20/Trader-daddy/internal/wallet"
	"github.com/Ashar20/Trader-daddy/internal/walletconnect"
)

type fakeTransport struct {
	mu       sync.Mutex
	messages []string
	nextID   int
}

func (t *fakeTransport) SendMessage(_ context.Context, _ string, text string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = append(t.messages, text)
	t.nextID++
	return fmt.Sprintf("msg-%d", t.nextID), nil
}

func (t *fakeTransport) count(substr string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, m := range t.messages {
		if strings.Contains(m, substr) {
			n++
		}
	}
	return n
}

type fakeSigner struct {
	mu        sync.Mutex
	pairCalls int
}

func (s *fakeSigner) Pair(_ context.Context, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pairCalls++
	return fmt.Sprintf("pair-%d", s.pairCalls), nil
}

func (s *fakeSigner) ApproveProposal(_ context.Context, proposal *walletconnect.SessionProposal, namespaces map[string]walletconnect.SessionNamespace) (*walletconnect.Session, error) {
	return &walletconnect.Session{Topic: "session-" + proposal.PairingTopic, Peer: proposal.Proposer, Namespaces: namespaces}, nil
}

func (s *fakeSigner) RejectProposal(context.Context, *walletconnect.SessionProposal, walletconnect.RPCError) error {
	return nil
}

func (s *fakeSigner) Respond(context.Context, string, int64, any) error { return nil }

func (s *fakeSigner) RespondError(context.Context, string, int64, walletconnect.RPCError) error {
	return nil
}

func (s *fakeSigner) pairs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pairCalls
}

func newRouter(t *testing.T, perMinute, burst int) (*Router, *fakeSigner, *fakeTransport) {
	t.Helper()

	registry := chains.NewRegistry(nil)
	store := wallet.NewStore(registry, nil, nil)
	signer := &fakeSigner{}
	transport := &fakeTransport{}
	notifier := notify.New(transport)

	controller := pairing.NewController(store, signer, notifier, registry, time.Minute)
	gate := approval.NewGate(store, signer, notifier, registry, nil, time.Minute)

	return NewRouter(controller, gate, notifier, perMinute, burst), signer, transport
}

func TestRouterPairingURIForwarded(t *testing.T) {
	router, signer, _ := newRouter(t, 3, 3)

	router.OnMessage(context.Background(), "conv-1", "  wc:topic@2?relay-protocol=irn&symKey=aa  ")
	assert.Equal(t, 1, signer.pairs())
}

func TestRouterIgnoresPlainText(t *testing.T) {
	router, signer, transport := newRouter(t, 3, 3)

	router.OnMessage(context.Background(), "conv-1", "hello, what can you do?")
	assert.Equal(t, 0, signer.pairs())
	assert.Equal(t, 0, transport.count(""), "no reply to unrelated messages")
}

func TestRouterRateLimitsPairing(t *testing.T) {
	router, signer, transport := newRouter(t, 1, 2)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		router.OnMessage(ctx, "conv-1", "wc:topic@2?relay-protocol=irn&symKey=aa")
	}

	assert.Equal(t, 2, signer.pairs(), "only the burst gets through")
	require.GreaterOrEqual(t, transport.count("Too many pairing attempts"), 1)

	// Other conversations keep their own limiter.
	router.OnMessage(ctx, "conv-2", "wc:topic@2?relay-protocol=irn&symKey=aa")
	assert.Equal(t, 3, signer.pairs())
}

func TestRouterReactionReachesGate(t *testing.T) {
	router, _, _ := newRouter(t, 3, 3)

	// Unknown correlation key must be a silent no-op either way.
	router.OnReaction(context.Background(), "conv-1", "msg-unknown", "👍")
	router.OnPollVote(context.Background(), "conv-1", "msg-unknown", []string{"Approve ✅"})
}

func TestRouterTextHookReceivesNonPairingMessages(t *testing.T) {
	router, signer, _ := newRouter(t, 3, 3)

	var hooked []string
	router.SetTextHook(func(_ context.Context, conversationID, text string) {
		hooked = append(hooked, conversationID+": "+text)
	})

	router.OnMessage(context.Background(), "conv-1", "what is my balance?")
	router.OnMessage(context.Background(), "conv-1", "wc:topic@2?relay-protocol=irn&symKey=aa")

	assert.Equal(t, []string{"conv-1: what is my balance?"}, hooked)
	assert.Equal(t, 1, signer.pairs(), "pairing URIs bypass the hook")
}
