// Package main provides a terminal agent that reads and writes NFC Forum
// Text records on Type 2 tags (MIFARE Ultralight, NTAG21x).
//
// By default every presented tag is read and its text shown. Arming a write
// makes the next presented tag receive the text instead, optionally locked
// read-only afterwards.
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dotside-studios/davi-ndef-agent/buildinfo"
	"github.com/dotside-studios/davi-ndef-agent/nfc"
	"github.com/dotside-studios/davi-ndef-agent/nfc/libnfc"
	"github.com/dotside-studios/davi-ndef-agent/nfc/pcsc"
	"github.com/dotside-studios/davi-ndef-agent/nfc/type2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	configFlag   = flag.String("config", "", "Path to config.toml (default: user config dir)")
	backendFlag  = flag.String("backend", "", "Reader backend: libnfc, pcsc or sim")
	deviceFlag   = flag.String("device", "", "Reader connection string (default: first found)")
	languageFlag = flag.String("language", "", "Language code for written records")
	modelFlag    = flag.String("model", "", "Tag model assumed for blank tags (NTAG213, NTAG215, NTAG216, MIFARE Ultralight)")
	logFileFlag  = flag.String("log-file", "", "Log file path")
	logLevelFlag = flag.String("log-level", "", "Log level: debug, info, warn, error")
	onceFlag     = flag.String("once", "", "Handle a single tag without the UI and exit: read or write")
	textFlag     = flag.String("text", "", "Text to write with -once write")
	lockFlag     = flag.Bool("lock", false, "Make the tag read-only after writing (permanent)")
	yesFlag      = flag.Bool("yes", false, "Confirm -lock without prompting")
	timeoutFlag  = flag.Duration("timeout", 0, "Give up waiting for a tag after this long with -once (0 waits forever)")
	versionFlag  = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *versionFlag {
		fmt.Println(buildinfo.BuildInfo())
		return
	}

	cfg, err := resolveConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	nfc.SetLogger(logger)

	b, err := newBackend(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer b.release()

	logger.Info("starting",
		zap.String("version", buildinfo.FullVersion()),
		zap.String("backend", cfg.Backend),
		zap.String("device", cfg.Device),
		zap.String("model", cfg.Model.Name))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *onceFlag != "" {
		err = runOnce(ctx, cfg, b, onceOptions{
			Mode:    *onceFlag,
			Text:    *textFlag,
			Lock:    *lockFlag,
			Yes:     *yesFlag,
			Timeout: *timeoutFlag,
		})
	} else {
		err = runTUI(ctx, cfg, b)
	}
	if err != nil {
		logger.Error("exiting with error", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		logger.Sync()
		os.Exit(1)
	}
}

// resolveConfig loads the config file and applies the flags that were set
// on the command line.
func resolveConfig() (Config, error) {
	path, mustExist := *configFlag, true
	if path == "" {
		path, mustExist = defaultConfigPath(), false
	}

	cfg, err := loadConfig(path, mustExist)
	if err != nil {
		return Config{}, err
	}

	var modelErr error
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "backend":
			cfg.Backend = strings.ToLower(*backendFlag)
		case "device":
			cfg.Device = *deviceFlag
		case "language":
			cfg.Language = *languageFlag
		case "model":
			m, ok := type2.ModelByName(*modelFlag)
			if !ok {
				modelErr = fmt.Errorf("unknown tag model %q", *modelFlag)
				return
			}
			cfg.Model = m
		case "log-file":
			cfg.LogFile = *logFileFlag
		case "log-level":
			cfg.LogLevel = strings.ToLower(*logLevelFlag)
		}
	})
	if modelErr != nil {
		return Config{}, modelErr
	}
	return cfg, cfg.validate()
}

// newLogger builds a JSON file logger. The terminal belongs to the UI, so
// nothing is logged to stdout or stderr.
func newLogger(cfg Config) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	zc := zap.NewProductionConfig()
	zc.Level = level
	zc.OutputPaths = []string{cfg.LogFile}
	zc.ErrorOutputPaths = []string{cfg.LogFile}
	zc.DisableStacktrace = true

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger.Named(buildinfo.Name), nil
}

// backend bundles the selected reader manager with the hooks the UI needs.
type backend struct {
	manager nfc.Manager
	model   type2.Model
	// sim is set for the simulated backend only.
	sim *simReader
	// release frees backend resources on exit.
	release func()
}

func newBackend(cfg Config) (*backend, error) {
	b := &backend{model: cfg.Model, release: func() {}}

	switch cfg.Backend {
	case backendLibNFC:
		b.manager = libnfc.NewManager(cfg.Model)
	case backendPCSC:
		m := pcsc.NewManager(cfg.Model)
		b.manager = m
		b.release = func() {
			if err := m.Release(); err != nil {
				nfc.Logger().Warn("release PC/SC context", zap.Error(err))
			}
		}
	case backendSim:
		b.sim = newSimReader(cfg.Model)
		b.manager = nfc.NewSimManager(b.sim.device)
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
	return b, nil
}

// simTapHold is how long a simulated tap keeps the tag in the field.
const simTapHold = 500 * time.Millisecond

// simReader is the simulated reader with one reusable blank tag, so that a
// written tag can be tapped again and read back.
type simReader struct {
	device *nfc.SimDevice
	model  type2.Model
	tag    nfc.Tag
}

func newSimReader(model type2.Model) *simReader {
	s := &simReader{device: nfc.NewSimDevice("Simulated reader"), model: model}
	s.NewTag()
	return s
}

// NewTag replaces the simulated tag with a blank, unformatted one.
func (s *simReader) NewTag() string {
	pages := type2.NewMemoryPages(s.model, false)
	s.tag = type2.New(pages, simUID(), s.model)
	return s.tag.UID()
}

// Tap briefly presents the simulated tag.
func (s *simReader) Tap() string {
	s.device.Tap(s.tag, simTapHold)
	return s.tag.UID()
}

// simUID derives a 7-byte NXP-style UID from a random UUID.
func simUID() string {
	id := uuid.New()
	id[0] = 0x04
	return strings.ToUpper(hex.EncodeToString(id[:7]))
}
