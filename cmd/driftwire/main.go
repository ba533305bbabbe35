// Command driftwire joins an ephemeral chat channel over MQTT and keeps
// a local replica synchronized with peers. Comments typed on stdin are
// signed and broadcast; everything received is cached locally so the
// device can catch up after a restart.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/driftwire/driftwire-go/config"
	"github.com/driftwire/driftwire-go/core/catchup"
	"github.com/driftwire/driftwire-go/core/clock"
	"github.com/driftwire/driftwire-go/core/envelope"
	"github.com/driftwire/driftwire-go/core/identity"
	"github.com/driftwire/driftwire-go/core/session"
	"github.com/driftwire/driftwire-go/storage"
	"github.com/driftwire/driftwire-go/transport"
	"github.com/driftwire/driftwire-go/transport/mqtt"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "driftwire:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		brokerFlag  = flag.String("broker", "", "MQTT broker URL (overrides config)")
		channelFlag = flag.String("channel", "", "chat channel (overrides config)")
		nameFlag    = flag.String("name", "", "display name (persisted)")
		verbose     = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	dataDir, err := config.ResolveDataDir()
	if err != nil {
		return err
	}
	cfg, err := config.LoadOrCreate(dataDir)
	if err != nil {
		return err
	}
	if *brokerFlag != "" {
		cfg.Broker = *brokerFlag
	}
	if *channelFlag != "" {
		cfg.Channel = *channelFlag
	}
	if cfg.Broker == "" {
		return fmt.Errorf("no broker configured; pass -broker or edit %s", filepath.Join(dataDir, "config.json"))
	}

	priv, pub, err := identity.EnsureKeyPair(cfg.PrivateKeyPath, cfg.PublicKeyPath)
	if err != nil {
		return err
	}
	log.Info("device identity ready", "fingerprint", identity.Fingerprint(pub))

	// Degrade to in-memory state if the database cannot open at all.
	clk := clock.New()
	var cache session.Cache
	var tracker catchup.Tracker
	store, err := storage.Open(filepath.Join(dataDir, storage.DefaultDBFileName))
	if err != nil {
		log.Error("database unavailable, operating without persistence", "error", err)
	} else {
		defer store.Close()
		cache = store.MessageCache(cfg.Channel)
		tracker = store.WatermarkTracker(cfg.Channel, clk.Now, log)
	}

	userName := *nameFlag
	if store != nil {
		if userName != "" {
			if err := store.SetUserName(userName); err != nil {
				log.Warn("could not persist display name", "error", err)
			}
		} else if userName, err = store.UserName(); err != nil {
			log.Warn("could not read display name", "error", err)
		}
	}
	if userName == "" {
		userName = cfg.DeviceName
	}

	tr := mqtt.New(mqtt.Config{
		Broker:   cfg.Broker,
		Username: cfg.BrokerUsername,
		Password: cfg.BrokerPassword,
		UseTLS:   cfg.UseTLS,
		Channel:  cfg.Channel,
		Logger:   log,
	})

	sess, err := session.New(session.Config{
		UserName:   userName,
		PrivateKey: priv,
		Clock:      clk,
		Cache:      cache,
		Tracker:    tracker,
		Publisher:  transport.Bind(tr, cfg.Channel),
		Logger:     log,
	})
	if err != nil {
		return err
	}

	tr.SetMessageHandler(func(raw *envelope.RawMessage, _ string) {
		sess.HandleMessage(raw)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	return repl(ctx, cancel, sess, tr, cfg.Channel, log)
}

func repl(ctx context.Context, cancel context.CancelFunc, sess *session.Session, tr *mqtt.Transport, channel string, log *slog.Logger) error {
	if err := tr.Start(ctx); err != nil {
		return fmt.Errorf("transport start: %w", err)
	}
	defer tr.Stop()

	if err := sess.Start(ctx); err != nil {
		return fmt.Errorf("session start: %w", err)
	}

	fmt.Printf("joined #%s — type to chat, /history to list, /clear to wipe, /quit to exit\n", channel)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit":
			cancel()
			sess.Close()
			return nil
		case line == "/history":
			for _, c := range sess.Comments() {
				ts := time.UnixMilli(c.Timestamp).Format("15:04:05")
				fmt.Printf("[%s] %s: %s\n", ts, c.UserName, c.Text)
			}
		case line == "/clear":
			if err := sess.ClearAll(ctx); err != nil {
				log.Error("clear failed", "error", err)
			}
		default:
			if _, err := sess.PostComment(line); err != nil {
				fmt.Fprintln(os.Stderr, "not sent:", err)
			}
		}
	}
	cancel()
	sess.Close()
	return scanner.Err()
}
