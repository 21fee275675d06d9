// Package config centralizes runtime configuration for xrd. It loads a
// JSON configuration file and returns a configuration with sensible
// defaults. Tests and development builds will use defaults when the file is
// not present. Operators should place a JSON file at /etc/xrd/config.json or
// specify a different path via the CONFIG_FILE env var.
package config

import (
	"encoding/json"
	"os"
)

// Config holds configurable options for the xrd daemon. The faucet endpoint
// is not configured here: the faucet client is a host-facing component and
// takes its endpoint as a constructor argument.
type Config struct {
	NodeURL                  string  `json:"node_url"`
	InitialReconnectDelaySec int     `json:"initial_reconnect_delay_sec"`
	MaxReconnectDelaySec     int     `json:"max_reconnect_delay_sec"`
	BalanceRefreshSec        int     `json:"balance_refresh_sec"`
	RequestsPerSecond        float64 `json:"requests_per_second"`
	HistoryLimit             int     `json:"history_limit"`
	JournalSize              int     `json:"journal_size"`
	LogFile                  string  `json:"log_file"`
}

// LoadConfig reads a JSON file at path. If the file does not exist or
// cannot be parsed, LoadConfig returns defaults (and no error) so that the
// daemon can run in development with minimal friction.
func LoadConfig(path string) (*Config, error) {
	// sensible defaults: public testnet endpoint
	def := &Config{
		NodeURL:                  "wss://s.altnet.rippletest.net:51233",
		InitialReconnectDelaySec: 1,
		MaxReconnectDelaySec:     30,
		BalanceRefreshSec:        30,
		RequestsPerSecond:        10,
		HistoryLimit:             50,
		JournalSize:              200,
		LogFile:                  "xrd.log",
	}

	// if no file path provided, return defaults
	if path == "" {
		return def, nil
	}

	// read file
	b, err := os.ReadFile(path)
	if err != nil {
		// file missing or unreadable -> use defaults
		return def, nil
	}

	var c Config
	if err := json.Unmarshal(b, &c); err != nil {
		// parse error -> use defaults
		return def, nil
	}

	// merge defaults for any zero-value fields
	if c.NodeURL == "" {
		c.NodeURL = def.NodeURL
	}
	if c.InitialReconnectDelaySec == 0 {
		c.InitialReconnectDelaySec = def.InitialReconnectDelaySec
	}
	if c.MaxReconnectDelaySec == 0 {
		c.MaxReconnectDelaySec = def.MaxReconnectDelaySec
	}
	if c.BalanceRefreshSec == 0 {
		c.BalanceRefreshSec = def.BalanceRefreshSec
	}
	if c.RequestsPerSecond == 0 {
		c.RequestsPerSecond = def.RequestsPerSecond
	}
	if c.HistoryLimit == 0 {
		c.HistoryLimit = def.HistoryLimit
	}
	if c.JournalSize == 0 {
		c.JournalSize = def.JournalSize
	}
	if c.LogFile == "" {
		c.LogFile = def.LogFile
	}

	return &c, nil
}
