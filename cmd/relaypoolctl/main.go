package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/relaycore/nostr/client"
	"github.com/relaycore/nostr/config"
	"github.com/relaycore/nostr/notify"
	"github.com/relaycore/nostr/nostr"
)

const usageKinds = "comma-separated event kinds to match"
const usageAuthors = "comma-separated hex author pubkeys to match"
const usageLimit = "max number of stored events to request"
const usageTimeout = "how long to wait before giving up"

func main() {
	rootCmd := &cobra.Command{Use: "relaypoolctl"}

	var difficulty int
	publishCmd := &cobra.Command{
		Use:   "publish <content>",
		Short: "sign and publish a kind-1 text note to every configured relay",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPublish(cmd.Context(), args[0], difficulty)
		},
	}
	publishCmd.Flags().IntVarP(&difficulty, "pow", "d", 0, "mine the note to this NIP-13 difficulty before publishing")

	var kinds, authors string
	var limit int
	var timeout time.Duration
	subCmd := &cobra.Command{
		Use:   "sub",
		Short: "stream matching events from every configured relay to stdout as JSON lines",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSub(cmd.Context(), kinds, authors, limit, timeout)
		},
	}
	subCmd.Flags().StringVar(&kinds, "kinds", "", usageKinds)
	subCmd.Flags().StringVar(&authors, "authors", "", usageAuthors)
	subCmd.Flags().IntVar(&limit, "limit", 0, usageLimit)
	subCmd.Flags().DurationVar(&timeout, "timeout", 0, usageTimeout+" (0 means no timeout)")

	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(subCmd)
	if err := rootCmd.Execute(); err != nil {
		slog.Error("relaypoolctl failed", "error", err)
		os.Exit(1)
	}
}

func newClient() (*client.Client, error) {
	cfg, err := config.LoadConfig[config.ClientConfig]()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.NostrPrivateKey == "" {
		cfg.NostrPrivateKey = nostr.GeneratePrivateKey()
		pubKey, err := nostr.GetPublicKey(cfg.NostrPrivateKey)
		if err != nil {
			return nil, fmt.Errorf("derive public key: %w", err)
		}
		slog.Warn("no NOSTR_PRIVATE_KEY set, using an ephemeral identity", "pubkey", pubKey)
	}
	if len(cfg.NostrRelays) == 0 {
		return nil, fmt.Errorf("no relays configured: set NOSTR_RELAYS")
	}

	c, err := client.New(cfg.NostrPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("construct client: %w", err)
	}
	for _, url := range cfg.NostrRelays {
		c.Pool().AddRelay(strings.TrimSpace(url), cfg.SocksProxy)
	}
	c.Pool().Connect()
	return c, nil
}

func runPublish(ctx context.Context, content string, difficulty int) error {
	c, err := newClient()
	if err != nil {
		return err
	}
	defer c.Shutdown()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var id string
	if difficulty > 0 {
		id, err = c.PublishPowTextNote(ctx, content, nil, difficulty)
	} else {
		id, err = c.PublishTextNote(ctx, content, nil)
	}
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	fmt.Println(id)
	return nil
}

func runSub(parent context.Context, kindsCSV, authorsCSV string, limit int, timeout time.Duration) error {
	c, err := newClient()
	if err != nil {
		return err
	}
	defer c.Shutdown()

	filter := nostr.Filter{Limit: limit}
	if kindsCSV != "" {
		for _, s := range strings.Split(kindsCSV, ",") {
			var k int
			if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d", &k); err != nil {
				return fmt.Errorf("parse kind %q: %w", s, err)
			}
			filter.Kinds = append(filter.Kinds, k)
		}
	}
	if authorsCSV != "" {
		for _, a := range strings.Split(authorsCSV, ",") {
			filter.Authors = append(filter.Authors, strings.TrimSpace(a))
		}
	}

	ctx := parent
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(parent, timeout)
	} else {
		ctx, cancel = context.WithCancel(parent)
	}
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
		case <-ctx.Done():
		}
		// HandleNotifications blocks on the bus channel with no context of
		// its own, so shutting the client down is what actually unblocks it
		// once the deadline or an interrupt fires.
		c.Shutdown()
	}()

	subID := nostr.NewSubscriptionID()
	c.Pool().Subscribe(ctx, subID, nostr.Filters{filter})

	enc := json.NewEncoder(os.Stdout)
	return c.Pool().HandleNotifications(func(n notify.Notification) error {
		if n.Kind != notify.KindEvent || n.SubscriptionID != subID {
			return nil
		}
		return enc.Encode(n.Event)
	})
}
