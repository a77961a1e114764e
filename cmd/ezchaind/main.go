// Command ezchaind is a thin demo entrypoint wiring the pool, the block
// assembler, and the ambient logging/config stack together, grounded on
// kaspad.go's service-wiring style.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ezchain/ezchain-core/block"
	"github.com/ezchain/ezchain-core/config"
	"github.com/ezchain/ezchain-core/logs"
	"github.com/ezchain/ezchain-core/txpool"
	"github.com/ezchain/ezchain-core/util/panics"
)

func main() {
	defer panics.HandlePanic(logs.Get(logs.Pool), nil)

	cfg, err := config.Parse()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error parsing configuration: %s\n", err)
		os.Exit(1)
	}

	switch cfg.LogLevel {
	case "debug":
		logs.SetLevel(logs.LevelDebug)
	case "warn":
		logs.SetLevel(logs.LevelWarn)
	case "error":
		logs.SetLevel(logs.LevelError)
	default:
		logs.SetLevel(logs.LevelInfo)
	}

	if cfg.LogFile != "" {
		if err := logs.InitRotator(cfg.LogFile, 10); err != nil {
			fmt.Fprintf(os.Stderr, "error initializing log rotator: %s\n", err)
			os.Exit(1)
		}
	}
	log := logs.Get(logs.Pool)
	log.Infof("starting ezchaind, pool db=%s", cfg.Pool.DBPath)

	pool, err := txpool.Open(cfg.Pool.DBPath, cfg.Pool.MaxEntryAge())
	if err != nil {
		log.Errorf("failed to open pool: %v", err)
		os.Exit(1)
	}
	defer pool.Close()

	stop := make(chan struct{})
	go runAgingLoop(pool, cfg.Pool.CleanupInterval(), log, stop)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	<-interrupt

	close(stop)
	log.Infof("shutting down ezchaind")
}

func runAgingLoop(pool *txpool.Pool, interval time.Duration, log *logs.Logger, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			removed, err := pool.AgeSweep(time.Now())
			if err != nil {
				log.Warnf("aging sweep failed: %v", err)
				continue
			}
			if removed > 0 {
				log.Infof("aging sweep removed %d stale entries", removed)
			}
		case <-stop:
			return
		}
	}
}

// assembleNextBlock is a convenience used by operators driving the demo
// interactively (e.g. from a REPL build): it packages the pool's current
// contents under the configured strategy and builds the resulting block
// without finalizing it. It passes no signing key, so BuildBlock succeeds
// only for index 0 (genesis) and returns an error for any other index.
func assembleNextBlock(pool *txpool.Pool, cfg *config.Config, miner, previousHash string, index uint64) (*block.Block, *block.Package, error) {
	pkg, err := block.AssemblePackage(pool, cfg.Block.Strategy(), cfg.Block.MaxBatchesPerBlock, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return nil, nil, err
	}
	b, err := block.BuildBlock(pkg, miner, previousHash, index, 0, nil)
	if err != nil {
		return nil, nil, err
	}
	return b, pkg, nil
}
