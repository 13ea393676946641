package main

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/dotside-studios/davi-ndef-agent/buildinfo"
	"github.com/dotside-studios/davi-ndef-agent/nfc"
	"github.com/dotside-studios/davi-ndef-agent/nfc/type2"
)

// Backend names
const (
	backendLibNFC = "libnfc"
	backendPCSC   = "pcsc"
	backendSim    = "sim"
)

// Config is the resolved agent configuration.
type Config struct {
	Backend            string
	Device             string
	Language           string
	Model              type2.Model
	PollInterval       time.Duration
	LogFile            string
	LogLevel           string
	RequireLockConfirm bool
}

type fileConfig struct {
	Backend            string `toml:"backend"`
	Device             string `toml:"device"`
	Language           string `toml:"language"`
	Model              string `toml:"model"`
	PollInterval       string `toml:"poll_interval"`
	LogFile            string `toml:"log_file"`
	LogLevel           string `toml:"log_level"`
	RequireLockConfirm bool   `toml:"require_lock_confirm"`
}

func defaultConfig() Config {
	return Config{
		Backend:            backendLibNFC,
		Language:           nfc.DefaultLanguage,
		Model:              type2.NTAG216,
		PollInterval:       nfc.DefaultPollingInterval,
		LogFile:            filepath.Join(buildinfo.ConfigDir(), buildinfo.Name+".log"),
		LogLevel:           "info",
		RequireLockConfirm: true,
	}
}

func defaultConfigPath() string {
	return filepath.Join(buildinfo.ConfigDir(), "config.toml")
}

// loadConfig reads path over the defaults. A missing file is only an error
// when mustExist is set.
func loadConfig(path string, mustExist bool) (Config, error) {
	cfg := defaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		if !mustExist && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	if meta.IsDefined("backend") {
		cfg.Backend = strings.ToLower(strings.TrimSpace(raw.Backend))
	}

	if meta.IsDefined("device") {
		cfg.Device = strings.TrimSpace(raw.Device)
	}

	if meta.IsDefined("language") {
		cfg.Language = strings.TrimSpace(raw.Language)
	}

	if meta.IsDefined("model") {
		m, ok := type2.ModelByName(strings.TrimSpace(raw.Model))
		if !ok {
			return Config{}, fmt.Errorf("parse model: unknown tag model %q", raw.Model)
		}
		cfg.Model = m
	}

	if meta.IsDefined("poll_interval") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.PollInterval))
		if err != nil {
			return Config{}, fmt.Errorf("parse poll_interval: %w", err)
		}
		cfg.PollInterval = d
	}

	if meta.IsDefined("log_file") {
		cfg.LogFile = strings.TrimSpace(raw.LogFile)
	}

	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(raw.LogLevel))
	}

	if meta.IsDefined("require_lock_confirm") {
		cfg.RequireLockConfirm = raw.RequireLockConfirm
	}

	return cfg, cfg.validate()
}

func (c Config) validate() error {
	switch c.Backend {
	case backendLibNFC, backendPCSC, backendSim:
	default:
		return fmt.Errorf("unknown backend %q (want %s, %s or %s)", c.Backend, backendLibNFC, backendPCSC, backendSim)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %v", c.PollInterval)
	}
	if _, err := nfc.EncodeTextRecord(c.Language, ""); err != nil {
		return fmt.Errorf("language: %w", err)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	return nil
}
