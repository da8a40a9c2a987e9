package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Ashar20/Trader-daddy/internal/approval"
	"github.com/Ashar20/Trader-daddy/internal/bot"
	"github.com/Ashar20/Trader-daddy/internal/chains"
	"github.com/Ashar20/Trader-daddy/internal/chat"
	"github.com/Ashar20/Trader-daddy/internal/config"
	"github.com/Ashar20/Trader-daddy/internal/eth"
	"github.com/Ashar20/Trader-daddy/internal/logger"
	"github.com/Ashar20/Trader-daddy/internal/metrics"
	"github.com/Ashar20/Trader-daddy/internal/notify"
	"github.com/Ashar20/Trader-daddy/internal/pairing"
	"github.com/Ashar20/Trader-daddy/internal/storage"
	"github.com/Ashar20/Trader-daddy/internal/wallet"
	"github.com/Ashar20/Trader-daddy/internal/walletconnect"
)

// pairingBindingTTL bounds how long a pairing waits for its session
// proposal before the binding is discarded.
const pairingBindingTTL = 5 * time.Minute

// eventHandler bridges relay events to the pairing controller and the
// approval gate. It exists because the relay client and the controllers
// reference each other; it is fully wired before any topic is subscribed.
type eventHandler struct {
	pairing *pairing.Controller
	gate    *approval.Gate
}

func (h *eventHandler) HandleSessionProposal(ctx context.Context, proposal *walletconnect.SessionProposal) {
	h.pairing.HandleSessionProposal(ctx, proposal)
}

func (h *eventHandler) HandleSessionRequest(ctx context.Context, request *walletconnect.SessionRequest) {
	h.gate.HandleSessionRequest(ctx, request)
}

func (h *eventHandler) HandleSessionDelete(ctx context.Context, del *walletconnect.SessionDelete) {
	h.pairing.HandleSessionDelete(ctx, del)
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Init(); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database (optional)
	var (
		sessionRepo *storage.SessionRepository
		pendingRepo *storage.PendingRequestRepository
	)
	if cfg.PostgresDSN != "" {
		store, err := storage.New(cfg.PostgresDSN)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer store.Close()

		sessionRepo = storage.NewSessionRepository(store)
		pendingRepo = storage.NewPendingRequestRepository(store)

		// Pending prompts from a previous process can no longer be resolved.
		purged, err := pendingRepo.Purge(ctx)
		if err != nil {
			slog.Error("failed to purge stale pending requests", "error", err)
			os.Exit(1)
		}
		slog.Info("connected to database", "stale_pending_purged", purged)
	}

	registry := chains.NewRegistry(cfg.RPCOverrides)

	transport := chat.NewConsole(os.Stdout)
	notifier := notify.New(transport)

	factory := func(identity *wallet.Identity, chain chains.Chain) (wallet.SigningClient, error) {
		client, err := eth.NewClient(chain.RPCURL, chain.ID, identity.PrivateKey)
		if err != nil {
			return nil, err
		}
		return client, nil
	}

	var recorder wallet.SessionRecorder
	if sessionRepo != nil {
		recorder = sessionRepo
	}
	walletStore := wallet.NewStore(registry, factory, recorder)
	defer walletStore.Close()

	handler := &eventHandler{}
	wcClient, err := walletconnect.NewClient(ctx, walletconnect.ClientConfig{
		RelayURL:  cfg.RelayURL,
		ProjectID: cfg.ProjectID,
		Metadata: walletconnect.Metadata{
			Name:        cfg.AppName,
			URL:         cfg.AppURL,
			Description: cfg.AppDescription,
		},
	}, handler)
	if err != nil {
		slog.Error("failed to connect to relay", "url", cfg.RelayURL, "error", err)
		os.Exit(1)
	}
	defer wcClient.Close()

	controller := pairing.NewController(walletStore, wcClient, notifier, registry, pairingBindingTTL)

	var pendingRecorder approval.PendingRecorder
	if pendingRepo != nil {
		pendingRecorder = pendingRepo
	}
	gate := approval.NewGate(walletStore, wcClient, notifier, registry, pendingRecorder, cfg.PendingRequestTTL)

	handler.pairing = controller
	handler.gate = gate

	// Resume persisted sessions
	if sessionRepo != nil {
		records, err := sessionRepo.List(ctx)
		if err != nil {
			slog.Error("failed to load persisted sessions", "error", err)
			os.Exit(1)
		}

		resumed := records[:0]
		for i := range records {
			record := records[i]
			if err := wcClient.Resume(ctx, &record.Session); err != nil {
				slog.Warn("failed to resume session", "topic", record.Session.Topic, "error", err)
				continue
			}
			resumed = append(resumed, record)
		}
		if err := walletStore.Restore(ctx, resumed); err != nil {
			slog.Error("failed to restore sessions", "error", err)
			os.Exit(1)
		}
		slog.Info("restored sessions", "count", len(resumed))
	}

	router := bot.NewRouter(controller, gate, notifier, cfg.PairingRatePerMinute, cfg.PairingBurst)

	if cfg.MetricsPort > 0 {
		go func() {
			if err := metrics.Serve(cfg.MetricsPort); err != nil {
				slog.Error("metrics listener stopped", "error", err)
			}
		}()
	}

	// Read chat events until stdin closes or a signal arrives
	listenErrors := make(chan error, 1)
	go func() {
		listenErrors <- transport.Listen(ctx, os.Stdin, router.OnMessage, router.OnReaction)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-listenErrors:
		if err != nil {
			slog.Error("transport error", "error", err)
			os.Exit(1)
		}
		slog.Info("input closed, shutting down")

	case sig := <-shutdown:
		slog.Info("received shutdown signal", "signal", sig.String())
		cancel()
	}

	slog.Info("wallet stopped")
}
