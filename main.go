// Package main is the entry point for the xrd daemon.
// It wires the connection supervisor, subscription tracker, event translator,
// and balance refresher together and runs them until interrupted.
package main

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"xrpdash.live/xrd/internal/balance"
	"xrpdash.live/xrd/internal/config"
	"xrpdash.live/xrd/internal/events"
	"xrpdash.live/xrd/internal/journal"
	"xrpdash.live/xrd/internal/state"
	"xrpdash.live/xrd/internal/xrpl"
)

func main() {
	log.Println("xrd starting...")

	cfg, err := config.LoadConfig(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			log.Printf("Warning: cannot open log file %s: %v", cfg.LogFile, err)
		} else {
			defer f.Close()
			log.SetOutput(io.MultiWriter(os.Stderr, f))
		}
	}

	log.Printf("Node endpoint: %s", cfg.NodeURL)

	store := state.NewStore(cfg.HistoryLimit)
	jrnl := journal.New(cfg.JournalSize)
	bus := events.NewBus()

	supervisor := xrpl.NewSupervisor(xrpl.SupervisorConfig{
		URL:                   cfg.NodeURL,
		InitialReconnectDelay: time.Duration(cfg.InitialReconnectDelaySec) * time.Second,
		MaxReconnectDelay:     time.Duration(cfg.MaxReconnectDelaySec) * time.Second,
	})
	tracker := xrpl.NewTracker(supervisor)

	translator := events.NewTranslator(store, bus, jrnl)
	supervisor.OnMessage(translator.HandleFrame)

	refresher := balance.NewRefresher(supervisor, store, bus, jrnl,
		time.Duration(cfg.BalanceRefreshSec)*time.Second, cfg.RequestsPerSecond)
	translator.OnTrackedActivity = refresher.Kick

	// On every (re)connect, make sure the ledger stream is subscribed and
	// refresh tracked balances. The tracker itself replays account
	// subscriptions; this listener covers the very first connect and keeps
	// balances from going stale across an outage.
	bus.Subscribe(logEvents)
	bus.Subscribe(func(e events.Event) {
		sc, ok := e.(events.ConnectionStateChanged)
		if !ok {
			return
		}
		if !sc.IsConnected() {
			return
		}
		if err := tracker.SubscribeStream(xrpl.StreamLedger); err != nil {
			log.Printf("Warning: ledger stream subscription failed: %v", err)
		}
		if err := tracker.SubscribeStream(xrpl.StreamTransactions); err != nil {
			log.Printf("Warning: transaction stream subscription failed: %v", err)
		}
		refresher.Kick()
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return supervisor.Run(ctx)
	})
	g.Go(func() error {
		return refresher.Run(ctx)
	})
	g.Go(func() error {
		// Closing the live transport unblocks the supervisor's read loop
		// so shutdown is prompt.
		<-ctx.Done()
		supervisor.Stop()
		return ctx.Err()
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("xrd exited: %v", err)
	}

	log.Println("Shutting down...")
}

// logEvents writes a line per domain event so the daemon is observable
// without a frontend.
func logEvents(e events.Event) {
	switch ev := e.(type) {
	case events.ConnectionStateChanged:
		log.Printf("Connection %s", ev.State)
	case events.LedgerClosed:
		log.Printf("Ledger %d closed with %d transactions", ev.LedgerIndex, ev.TxnCount)
	case events.AccountUpdated:
		if change, ok := ev.Change(); ok && !change.IsZero() {
			log.Printf("Account %s balance %s (%+d drops)", ev.Address, ev.Balance.FormatXRP(false), change.Drops())
			return
		}
		log.Printf("Account %s balance %s", ev.Address, ev.Balance.FormatXRP(false))
	case events.TransactionValidated:
		log.Printf("Transaction %s validated in ledger %d", ev.Hash, ev.LedgerIndex)
	case events.TransactionFailed:
		log.Printf("Transaction %s failed: %s", ev.Hash, ev.Error)
	case events.TransactionReceived:
		log.Printf("Transaction %s observed (%s)", ev.Hash, ev.Type)
	}
}
