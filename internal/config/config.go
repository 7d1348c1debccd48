// Package config loads runtime settings from the environment. A .env file,
// when present, is loaded first so local development does not need exported
// variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`
	DBPath     string `env:"DB_PATH" envDefault:"/data/auctionhouse.db"`

	// HouseAddr is the ledger account the house escrows items and coin
	// under. GenesisAdmin seeds the memory backend's admin role.
	HouseAddr    string `env:"HOUSE_ADDR" envDefault:"0x00000000000000000000000000000000000a0c71"`
	GenesisAdmin string `env:"GENESIS_ADMIN" envDefault:"0x0000000000000000000000000000000000000001"`

	LedgerBackend  string        `env:"LEDGER_BACKEND" envDefault:"memory"`
	NATSURL        string        `env:"NATS_URL" envDefault:"nats://localhost:4222"`
	NATSStream     string        `env:"NATS_STREAM" envDefault:"AUCTIONHOUSE"`
	EventSubjects  string        `env:"NATS_EVENT_SUBJECTS" envDefault:"auctionhouse.events.>"`
	CommandSubject string        `env:"NATS_COMMAND_SUBJECT" envDefault:"auctionhouse.commands"`
	BalanceSubject string        `env:"NATS_BALANCE_SUBJECT" envDefault:"auctionhouse.balances"`
	PollInterval   time.Duration `env:"LEDGER_POLL_INTERVAL" envDefault:"1s"`
	BatchSize      int           `env:"LEDGER_BATCH_SIZE" envDefault:"100"`

	IPFSGateway   string        `env:"IPFS_GATEWAY" envDefault:"https://ipfs.io"`
	MetadataCache string        `env:"METADATA_CACHE" envDefault:"memory"`
	RedisAddr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	CacheTTL      time.Duration `env:"METADATA_CACHE_TTL" envDefault:"1h"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile  string `env:"LOG_FILE" envDefault:""`
}

func Load() (*Config, error) {
	// Missing .env is the normal case outside development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}
