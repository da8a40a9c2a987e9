package pairing

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ashar20/Trader-daddy/internal/chains"
	"github.com/Ashar20/Trader-daddy/internal/notify"
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

func (t *fakeTransport) contains(substr string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, m := range t.messages {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}

type fakeSigner struct {
	mu         sync.Mutex
	pairErr    error
	pairTopic  string
	approved   map[string]walletconnect.SessionNamespace
	rejections []walletconnect.RPCError
}

func (s *fakeSigner) Pair(_ context.Context, _ string) (string, error) {
	if s.pairErr != nil {
		return "", s.pairErr
	}
	return s.pairTopic, nil
}

func (s *fakeSigner) ApproveProposal(_ context.Context, proposal *walletconnect.SessionProposal, namespaces map[string]walletconnect.SessionNamespace) (*walletconnect.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.approved = namespaces
	return &walletconnect.Session{
		Topic:      "session-" + proposal.PairingTopic,
		Peer:       proposal.Proposer,
		Namespaces: namespaces,
	}, nil
}

func (s *fakeSigner) RejectProposal(_ context.Context, _ *walletconnect.SessionProposal, rpcErr walletconnect.RPCError) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejections = append(s.rejections, rpcErr)
	return nil
}

func (s *fakeSigner) Respond(context.Context, string, int64, any) error { return nil }

func (s *fakeSigner) RespondError(context.Context, string, int64, walletconnect.RPCError) error {
	return nil
}

type fixture struct {
	controller *Controller
	store      *wallet.Store
	signer     *fakeSigner
	transport  *fakeTransport
}

func newFixture(t *testing.T, ttl time.Duration) *fixture {
	t.Helper()

	registry := chains.NewRegistry(nil)
	store := wallet.NewStore(registry, nil, nil)
	signer := &fakeSigner{pairTopic: "pair-1"}
	transport := &fakeTransport{}
	controller := NewController(store, signer, notify.New(transport), registry, ttl)

	return &fixture{controller: controller, store: store, signer: signer, transport: transport}
}

func proposalFor(pairingTopic string, requiredChains ...string) *walletconnect.SessionProposal {
	return &walletconnect.SessionProposal{
		ID:           1,
		PairingTopic: pairingTopic,
		Proposer: walletconnect.Metadata{
			Name: "Uniswap Interface",
			URL:  "https://app.uniswap.org",
		},
		RequiredNamespaces: map[string]walletconnect.Namespace{
			"eip155": {
				Chains:  requiredChains,
				Methods: []string{"eth_sendTransaction", "personal_sign"},
				Events:  []string{"chainChanged"},
			},
		},
	}
}

func TestHandleURIBindsPairingTopic(t *testing.T) {
	f := newFixture(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, f.controller.HandleURI(ctx, "conv-1", "wc:pair-1@2?relay-protocol=irn&symKey=aa"))
	assert.True(t, f.transport.contains("Connecting to dApp"))

	f.controller.HandleSessionProposal(ctx, proposalFor("pair-1", "eip155:11155420"))

	identity, err := f.store.GetOrCreateIdentity("conv-1")
	require.NoError(t, err)

	assert.True(t, f.transport.contains(identity.Address.Hex()),
		"session confirmation should show the derived address")
	assert.True(t, f.transport.contains("Uniswap Interface"))

	conversationID, ok := f.store.FindConversationForTopic("session-pair-1")
	require.True(t, ok)
	assert.Equal(t, "conv-1", conversationID)
}

func TestHandleURIPairFailure(t *testing.T) {
	f := newFixture(t, time.Minute)
	f.signer.pairErr = fmt.Errorf("relay unreachable")

	err := f.controller.HandleURI(context.Background(), "conv-1", "wc:broken@2")
	require.Error(t, err)
	assert.True(t, f.transport.contains("Invalid WalletConnect URI"))
}

func TestProposalApprovalBuildsAccounts(t *testing.T) {
	f := newFixture(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, f.controller.HandleURI(ctx, "conv-1", "wc:pair-1@2"))
	f.controller.HandleSessionProposal(ctx, proposalFor("pair-1", "eip155:11155420", "eip155:421614"))

	identity, err := f.store.GetOrCreateIdentity("conv-1")
	require.NoError(t, err)

	require.Contains(t, f.signer.approved, "eip155")
	ns := f.signer.approved["eip155"]
	assert.Equal(t, []string{
		"eip155:11155420:" + identity.Address.Hex(),
		"eip155:421614:" + identity.Address.Hex(),
	}, ns.Accounts)
	assert.Equal(t, []string{"eth_sendTransaction", "personal_sign"}, ns.Methods)
	assert.Equal(t, []string{"chainChanged"}, ns.Events)
}

func TestProposalOptionalChainsSubset(t *testing.T) {
	f := newFixture(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, f.controller.HandleURI(ctx, "conv-1", "wc:pair-1@2"))

	proposal := proposalFor("pair-1", "eip155:44787")
	proposal.OptionalNamespaces = map[string]walletconnect.Namespace{
		"eip155": {Chains: []string{"eip155:1", "eip155:421614"}},
	}
	f.controller.HandleSessionProposal(ctx, proposal)

	ns := f.signer.approved["eip155"]
	var chainsOffered []string
	for _, account := range ns.Accounts {
		chainsOffered = append(chainsOffered, account[:strings.LastIndex(account, ":")])
	}
	assert.Equal(t, []string{"eip155:421614", "eip155:44787"}, chainsOffered,
		"unsupported optional chains are dropped, supported ones kept")
}

func TestProposalRequiredUnsupportedChainRejected(t *testing.T) {
	f := newFixture(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, f.controller.HandleURI(ctx, "conv-1", "wc:pair-1@2"))
	f.controller.HandleSessionProposal(ctx, proposalFor("pair-1", "eip155:1"))

	require.Len(t, f.signer.rejections, 1)
	assert.Equal(t, walletconnect.CodeUnsupportedChain, f.signer.rejections[0].Code)
	assert.True(t, f.transport.contains("eip155:1"), "failure message should name the unsupported chain")

	_, ok := f.store.FindConversationForTopic("session-pair-1")
	assert.False(t, ok, "no session may be registered after a rejection")
}

func TestProposalUnknownPairingTopicRejected(t *testing.T) {
	f := newFixture(t, time.Minute)

	f.controller.HandleSessionProposal(context.Background(), proposalFor("pair-unbound", "eip155:44787"))

	require.Len(t, f.signer.rejections, 1)
	assert.Equal(t, walletconnect.CodeInternalFailure, f.signer.rejections[0].Code)
}

func TestProposalExpiredBindingRejected(t *testing.T) {
	f := newFixture(t, 10*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, f.controller.HandleURI(ctx, "conv-1", "wc:pair-1@2"))
	time.Sleep(30 * time.Millisecond)

	f.controller.HandleSessionProposal(ctx, proposalFor("pair-1", "eip155:44787"))
	require.Len(t, f.signer.rejections, 1)
}

func TestAbandonedBindingsSweptOnNextPairing(t *testing.T) {
	f := newFixture(t, 10*time.Millisecond)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		f.signer.pairTopic = fmt.Sprintf("pair-%d", i)
		require.NoError(t, f.controller.HandleURI(ctx, fmt.Sprintf("conv-%d", i), "wc:abandoned@2"))
	}
	time.Sleep(30 * time.Millisecond)

	f.signer.pairTopic = "pair-fresh"
	require.NoError(t, f.controller.HandleURI(ctx, "conv-fresh", "wc:fresh@2"))

	f.controller.mu.Lock()
	defer f.controller.mu.Unlock()
	require.Len(t, f.controller.bindings, 1)
	_, ok := f.controller.bindings["pair-fresh"]
	assert.True(t, ok)
}

func TestProposalNoChainsOffersEverything(t *testing.T) {
	f := newFixture(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, f.controller.HandleURI(ctx, "conv-1", "wc:pair-1@2"))

	proposal := proposalFor("pair-1")
	proposal.RequiredNamespaces = nil
	f.controller.HandleSessionProposal(ctx, proposal)

	registry := chains.NewRegistry(nil)
	ns := f.signer.approved["eip155"]
	assert.Len(t, ns.Accounts, len(registry.All()))
	assert.Equal(t, defaultMethods, ns.Methods)
	assert.Equal(t, defaultEvents, ns.Events)
}

func TestSessionDelete(t *testing.T) {
	f := newFixture(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, f.controller.HandleURI(ctx, "conv-1", "wc:pair-1@2"))
	f.controller.HandleSessionProposal(ctx, proposalFor("pair-1", "eip155:44787"))

	f.controller.HandleSessionDelete(ctx, &walletconnect.SessionDelete{Topic: "session-pair-1"})

	assert.True(t, f.transport.contains("Session Ended"))
	_, ok := f.store.FindConversationForTopic("session-pair-1")
	assert.False(t, ok)
}
