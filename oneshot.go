package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dotside-studios/davi-ndef-agent/nfc"
	"go.uber.org/zap"
)

type onceOptions struct {
	Mode    string // "read" or "write"
	Text    string
	Lock    bool
	Yes     bool
	Timeout time.Duration
}

// runOnce handles the first presented tag and returns. Read text goes to
// stdout, progress to stderr.
func runOnce(ctx context.Context, cfg Config, b *backend, opts onceOptions) error {
	session := nfc.NewSession(nfc.SessionOptions{
		Language:           cfg.Language,
		RequireLockConfirm: cfg.RequireLockConfirm,
	})

	switch strings.ToLower(opts.Mode) {
	case "read":
		if opts.Lock {
			return errors.New("-lock only applies to -once write")
		}
	case "write":
		confirmed := opts.Yes
		if opts.Lock && cfg.RequireLockConfirm && !confirmed {
			var err error
			confirmed, err = confirmLock(os.Stdin, os.Stderr)
			if err != nil {
				return err
			}
			if !confirmed {
				return errors.New("lock not confirmed, nothing written")
			}
		}
		if _, err := session.ArmWrite(opts.Text, opts.Lock, confirmed); err != nil {
			return errors.New(describeError(err))
		}
	default:
		return fmt.Errorf("unknown -once mode %q (want read or write)", opts.Mode)
	}

	ev, err := waitForTag(ctx, cfg, b, session, opts.Timeout)
	if err != nil {
		return err
	}
	if ev.Err != nil {
		return errors.New(describeError(ev.Err))
	}

	if ev.Kind == nfc.EventWrite {
		fmt.Fprintln(os.Stderr, describeWrite(ev))
		return nil
	}
	fmt.Println(ev.Text)
	return nil
}

// waitForTag runs the watcher until one tag has been handled.
func waitForTag(ctx context.Context, cfg Config, b *backend, session *nfc.Session, timeout time.Duration) (nfc.TagEvent, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if timeout > 0 {
		var cancelTimeout context.CancelFunc
		runCtx, cancelTimeout = context.WithTimeout(runCtx, timeout)
		defer cancelTimeout()
	}

	dm := nfc.NewDeviceManager(b.manager, cfg.Device)
	watcher := nfc.NewWatcher(dm, nfc.WatcherOptions{
		PollInterval: cfg.PollInterval,
		OnStatus: func(s nfc.DeviceStatus) {
			if !s.CardPresent {
				fmt.Fprintln(os.Stderr, s.Message)
			}
		},
	})

	var (
		event nfc.TagEvent
		got   bool
	)
	handler := func(ctx context.Context, tag nfc.Tag) {
		if got {
			return
		}
		event = session.HandleTag(ctx, tag)
		got = true
		cancel()
	}

	fmt.Fprintf(os.Stderr, "Present a tag to %s...\n", b.describe(cfg))
	if b.sim != nil {
		uid := b.sim.Tap()
		nfc.Logger().Info("simulated tap", zap.String("uid", uid))
	}

	watcher.Run(runCtx, handler)

	if got {
		return event, nil
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return nfc.TagEvent{}, fmt.Errorf("no tag presented within %v", timeout)
	}
	return nfc.TagEvent{}, errors.New("interrupted")
}

// confirmLock asks for the lock confirmation on in. Only the word "lock"
// confirms.
func confirmLock(in io.Reader, out io.Writer) (bool, error) {
	fmt.Fprint(out, "Locking makes the tag permanently read-only. Type 'lock' to confirm: ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("read confirmation: %w", err)
	}
	return strings.EqualFold(strings.TrimSpace(line), "lock"), nil
}

// describe names the reader for prompts.
func (b *backend) describe(cfg Config) string {
	if cfg.Device != "" {
		return cfg.Device
	}
	if b.sim != nil {
		return b.sim.device.String()
	}
	return "the reader"
}
