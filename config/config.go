// Package config defines the CLI/config surface of the data-plane demo
// entrypoint (spec §6's Configuration options), grounded on
// kasparov/kasparovd/config/config.go's go-flags usage.
package config

import (
	"time"

	"github.com/jessevdk/go-flags"

	"github.com/ezchain/ezchain-core/block"
	"github.com/ezchain/ezchain-core/bloom"
)

var activeConfig *Config

// ActiveConfig returns the configuration parsed by the last call to Parse.
func ActiveConfig() *Config {
	return activeConfig
}

// Config holds every tunable named in spec §6.
type Config struct {
	Pool  PoolFlags  `group:"Pool"`
	Block BlockFlags `group:"Block Assembler"`
	Bloom BloomFlags `group:"Bloom"`
	LogLevel string `long:"loglevel" description:"logging level (debug, info, warn, error)" default:"info"`
	LogFile  string `long:"logfile" description:"path to the rotated log file; empty disables file logging"`
}

// PoolFlags mirrors spec §6's pool configuration options.
type PoolFlags struct {
	DBPath               string `long:"db-path" description:"path to the pool's SQLite database file" required:"true"`
	CleanupIntervalHours int    `long:"cleanup-interval-hours" description:"hours between aging sweeps" default:"1"`
	MaxEntryAgeHours     int    `long:"max-entry-age-hours" description:"hours after which an unprocessed entry is aged out" default:"24"`
}

// CleanupInterval returns the configured cleanup interval as a Duration.
func (p PoolFlags) CleanupInterval() time.Duration {
	return time.Duration(p.CleanupIntervalHours) * time.Hour
}

// MaxEntryAge returns the configured max entry age as a Duration.
func (p PoolFlags) MaxEntryAge() time.Duration {
	return time.Duration(p.MaxEntryAgeHours) * time.Hour
}

// BlockFlags mirrors spec §6's block assembler configuration options.
type BlockFlags struct {
	MaxBatchesPerBlock int    `long:"max-batches-per-block" description:"maximum batches selected per block" default:"100"`
	SelectionStrategy  string `long:"selection-strategy" description:"batch selection strategy: fifo or fee" default:"fifo" choice:"fifo" choice:"fee"`
}

// Strategy resolves the configured strategy name to a block.Strategy.
func (b BlockFlags) Strategy() block.Strategy {
	if b.SelectionStrategy == "fee" {
		return block.Fee
	}
	return block.Fifo
}

// BloomFlags mirrors the Bloom filter defaults of spec §4.7.
type BloomFlags struct {
	SizeBits          uint32 `long:"bloom-size-bits" description:"bit-array size" default:"1048576"`
	HashCount         int    `long:"bloom-hash-count" description:"number of MurmurHash3 functions" default:"5"`
	CompressedStorage bool   `long:"bloom-compressed" description:"start bloom filters in compressed storage"`
}

// NewFilter constructs a bloom.Filter using these flags' size/hash-count/
// compressed-storage settings.
func (b BloomFlags) NewFilter() (*bloom.Filter, error) {
	size := b.SizeBits
	if size == 0 {
		size = bloom.DefaultSize
	}
	count := b.HashCount
	if count == 0 {
		count = bloom.DefaultHashCount
	}
	return bloom.New(size, count, b.CompressedStorage)
}

// Parse parses command-line arguments into a Config, applying the
// defaults named above, and stores the result as ActiveConfig.
func Parse() (*Config, error) {
	cfg := &Config{}
	parser := flags.NewParser(cfg, flags.Default)
	if _, err := parser.Parse(); err != nil {
		return nil, err
	}
	activeConfig = cfg
	return cfg, nil
}
