// Command tunegate serves pay-per-use music generation behind an x402
// payment gate.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/audiomint/tunegate/chain"
	"github.com/audiomint/tunegate/config"
	"github.com/audiomint/tunegate/confirm"
	"github.com/audiomint/tunegate/facilitator"
	"github.com/audiomint/tunegate/logger"
	"github.com/audiomint/tunegate/metrics"
	"github.com/audiomint/tunegate/music"
	"github.com/audiomint/tunegate/server"
	"github.com/audiomint/tunegate/settlement"
	"github.com/audiomint/tunegate/types"
)

const shutdownGrace = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "tunegate: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.NewZapLogger(cfg.LogLevel)

	network, err := types.ParseNetwork(cfg.Network)
	if err != nil {
		return err
	}
	chainCfg, err := chain.Resolve(network, chain.Overrides{
		RPCURL:    cfg.RPCURL,
		AssetAddr: cfg.TokenAddress,
	})
	if err != nil {
		return err
	}

	verifier := facilitator.NewClient(cfg.FacilitatorURL, nil, log)
	work := buildMusicService(cfg)

	opts := []confirm.Option{
		confirm.WithLogger(log),
		confirm.WithMetrics(metrics.NewPrometheusRecorder()),
	}

	if cfg.SettleLocally() {
		rpcURL := cfg.SettlementRPCURL()
		if rpcURL == "" {
			rpcURL = chainCfg.RPCURL
		}
		broadcaster, err := settlement.NewBroadcaster(rpcURL, chainCfg.ChainID,
			chainCfg.AssetAddr, cfg.SettlePrivateKey, log)
		if err != nil {
			return err
		}
		log.Info("local settlement enabled", map[string]any{
			"relayer": broadcaster.RelayerAddress().Hex(),
			"rpcUrl":  rpcURL,
		})
		opts = append(opts, confirm.WithSettler(broadcaster))
	} else if cfg.SettleTransactions {
		log.Info("settlement delegated to managed facilitator", map[string]any{
			"facilitatorUrl": cfg.FacilitatorURL,
		})
	}

	orch := confirm.New(chainCfg, cfg.PayTo, verifier, work, opts...)
	srv := server.New(orch, work, chainCfg, log, cfg.Port)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		log.Info("shutting down", map[string]any{"signal": sig.String()})
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return srv.Shutdown(ctx)
}

func buildMusicService(cfg *config.Config) *music.Service {
	var generator music.TrackGenerator
	switch cfg.GeneratorMode {
	case "elevenlabs":
		generator = music.NewElevenLabsGenerator(music.ElevenLabsConfig{
			APIKey:  cfg.ElevenLabsAPIKey,
			ModelID: cfg.ElevenLabsModelID,
		}, nil)
	default:
		generator = music.PlaceholderGenerator{}
	}
	return music.NewService(music.FallbackRefiner{}, generator)
}
