// aurad is a demo node wiring every core component together over a single
// simulated effect bundle, and exposing /health and /metrics for
// operators. Adapted from the teacher's root main.go: same flag parsing,
// HealthStatus-plus-/health-endpoint shape, and signal-driven graceful
// shutdown, generalized from a CometBFT validator process to an Aura
// device process.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hxrts/aura/pkg/amp"
	"github.com/hxrts/aura/pkg/config"
	"github.com/hxrts/aura/pkg/consensus"
	"github.com/hxrts/aura/pkg/crypto"
	"github.com/hxrts/aura/pkg/crypto/threshold"
	"github.com/hxrts/aura/pkg/effects"
	"github.com/hxrts/aura/pkg/fact"
	"github.com/hxrts/aura/pkg/ids"
	"github.com/hxrts/aura/pkg/journal"
	"github.com/hxrts/aura/pkg/keys"
	"github.com/hxrts/aura/pkg/signals"
	antientropy "github.com/hxrts/aura/pkg/sync"
	"github.com/hxrts/aura/pkg/tree"
)

// HealthStatus tracks the status of each wired component for /health,
// following the teacher's HealthStatus/SetX/updateOverallStatus shape.
type HealthStatus struct {
	mu        sync.RWMutex
	Status    string `json:"status"`
	Journal   string `json:"journal"`
	Tree      string `json:"tree"`
	Keys      string `json:"keys"`
	Sync      string `json:"sync"`
	AMP       string `json:"amp"`
	Consensus string `json:"consensus"`
	startTime time.Time
}

func newHealthStatus() *HealthStatus {
	h := &HealthStatus{Status: "starting", startTime: time.Now()}
	return h
}

func (h *HealthStatus) set(field *string, value string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	*field = value
	if h.Journal == "ok" && h.Tree == "ok" && h.Keys == "ok" && h.Sync == "ok" && h.AMP == "ok" && h.Consensus == "ok" {
		h.Status = "ok"
	}
}

func (h *HealthStatus) ToJSON() []byte {
	h.mu.RLock()
	defer h.mu.RUnlock()
	data, _ := json.Marshal(struct {
		Status        string `json:"status"`
		Journal       string `json:"journal"`
		Tree          string `json:"tree"`
		Keys          string `json:"keys"`
		Sync          string `json:"sync"`
		AMP           string `json:"amp"`
		Consensus     string `json:"consensus"`
		UptimeSeconds int64  `json:"uptime_seconds"`
	}{h.Status, h.Journal, h.Tree, h.Keys, h.Sync, h.AMP, h.Consensus, int64(time.Since(h.startTime).Seconds())})
	return data
}

var healthStatus = newHealthStatus()

// allowAllVerifier accepts every fact's authorization, matching
// fact.AllowAllCapabilities' "single-device test setups and the demo
// node" scope — a real deployment wires pkg/keys' epoch-aware verifier
// here instead.
type allowAllVerifier struct{}

func (allowAllVerifier) Verify(fact.Fact) (bool, error) { return true, nil }

func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	var (
		listenAddr = flag.String("listen", "127.0.0.1:8090", "address for the /health and /metrics HTTP server")
		showHelp   = flag.Bool("help", false, "show help message")
	)
	flag.Parse()
	if *showHelp {
		printHelp()
		return
	}

	log.Printf("starting aurad demo node")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load configuration:", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration:", err)
	}

	reg := prometheus.NewRegistry()
	metrics := newMetrics(reg)

	sim := effects.NewSimulated(cfg.SimulationSeed)
	bundle := sim.Bundle()

	account, err := ids.NewID256(sim.Bytes)
	if err != nil {
		log.Fatal("failed to mint account id:", err)
	}
	device, err := ids.NewID256(sim.Bytes)
	if err != nil {
		log.Fatal("failed to mint device id:", err)
	}

	root := tree.NewGenesisState(tree.ThresholdPolicy(uint32(cfg.ThresholdK), uint32(cfg.ThresholdN)))
	healthStatus.set(&healthStatus.Tree, "ok")
	metrics.treeEpoch.Set(float64(root.Epoch))
	log.Printf("ratchet tree genesis at epoch %d under %d-of-%d root policy", root.Epoch, cfg.ThresholdK, cfg.ThresholdN)

	keyManager := keys.NewManager(0)
	_, dealt, err := keyManager.Rotate(uint32(cfg.ThresholdK), uint32(cfg.ThresholdN), sim)
	if err != nil {
		log.Fatal("failed to run initial key rotation:", err)
	}
	pending, _ := keyManager.Pending()
	if err := keyManager.Commit(pending.Epoch); err != nil {
		log.Fatal("failed to commit initial key epoch:", err)
	}
	healthStatus.set(&healthStatus.Keys, "ok")
	metrics.keyEpoch.Set(float64(keyManager.Active().Epoch))
	log.Printf("threshold key manager committed epoch %d (%d-of-%d)", keyManager.Active().Epoch, cfg.ThresholdK, cfg.ThresholdN)

	contactKey := journal.NewMapReducer(func(f fact.Fact) (string, bool) {
		if _, ok := f.Payload.(fact.ContactAdded); ok {
			return "contacts", true
		}
		return "", false
	})
	j := journal.New(account, bundle.Storage, allowAllVerifier{}, nil, contactKey)
	healthStatus.set(&healthStatus.Journal, "ok")
	log.Printf("journal opened for account %s", account)

	syncer := antientropy.New(j, antientropy.Config{
		BatchSize:      cfg.SyncBatchSize,
		MaxAttempts:    cfg.SyncMaxAttempts,
		InitialBackoff: cfg.SyncInitialBackoff,
		MaxBackoff:     cfg.SyncMaxBackoff,
	})
	healthStatus.set(&healthStatus.Sync, "ok")
	if inv, err := syncer.LocalInventory(context.Background(), nil); err != nil {
		log.Printf("warning: local inventory check failed: %v", err)
	} else {
		log.Printf("anti-entropy syncer ready, local inventory holds %d facts", len(inv.FactIds))
	}

	channelID, err := ids.NewID128(sim.Bytes)
	if err != nil {
		log.Fatal("failed to mint channel id:", err)
	}
	rootSecret, err := sim.Bytes(32)
	if err != nil {
		log.Fatal("failed to draw AMP root secret:", err)
	}
	channel := amp.NewChannel(channelID, crypto.SuiteChaCha20Poly1305, 0, rootSecret,
		amp.Window{Lookbehind: cfg.AMPLookbehind, Lookahead: cfg.AMPLookahead}, cfg.FlowBudgetCeiling)
	healthStatus.set(&healthStatus.AMP, "ok")
	metrics.ampBudgetRemaining.Set(float64(channel.BudgetRemaining()))
	log.Printf("AMP channel %s open at epoch 0, flow budget %d", channelID, cfg.FlowBudgetCeiling)

	registry := signals.NewRegistry()
	_, connWriter, err := registry.Declare("connection_status", "disconnected")
	if err != nil {
		log.Fatal("failed to declare connection_status signal:", err)
	}
	connWriter.Emit("connected")

	witnesses := []ids.AuthorityId{device}
	consensusState, err := consensus.StartConsensus(account, "demo_operation", bundle.Crypto.Hash([]byte("genesis")), 1, witnesses, device, consensus.PathFast)
	if err != nil {
		log.Fatal("failed to start demo consensus instance:", err)
	}

	resultMessage := []byte("demo_operation_result")
	resultId := consensus.ResultId(bundle.Crypto.Hash(resultMessage))
	signingPkg, err := threshold.NewSigningPackage(resultMessage, []uint32{dealt[0].Index})
	if err != nil {
		log.Fatal("failed to build demo consensus signing package:", err)
	}
	share, err := threshold.SignShare(dealt[0], signingPkg)
	if err != nil {
		log.Fatal("failed to produce demo consensus signature share:", err)
	}
	consensusState, err = consensus.ApplyShare(consensusState, consensus.ShareProposal{Witness: device, ResultId: resultId, Share: *share})
	if err != nil {
		log.Fatal("failed to apply demo consensus share:", err)
	}
	if consensusState.Phase == consensus.PhaseCommitted {
		healthStatus.set(&healthStatus.Consensus, "ok")
	} else {
		healthStatus.set(&healthStatus.Consensus, "pending")
	}
	metrics.consensusPhase.Set(float64(consensusState.Phase))
	log.Printf("consensus instance %s reached phase %s (threshold 1-of-%d)", account, consensusState.Phase, len(witnesses))

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(healthStatus.ToJSON())
	})
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	httpServer := &http.Server{Addr: *listenAddr, Handler: mux}

	_, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		log.Printf("aurad listening on %s", *listenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server failed:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("shutting down aurad...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("http server shutdown error: %v", err)
	}
	log.Printf("aurad stopped")
}

func printHelp() {
	fmt.Println(`aurad — Aura demo node

Wires the journal, ratchet tree, threshold key manager, anti-entropy
syncer, AMP channel, and reactive signals over one simulated effect
bundle, and serves /health and /metrics.

Usage:
  aurad [-listen addr] [-help]`)
}
