// Command rss-notifier watches an RSS feed and emails subscribers when a new
// post is published. It runs as an HTTP server for subscription management,
// or performs a single notification run with -send.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	gcs "cloud.google.com/go/storage"

	"rss-notifier/config"
	"rss-notifier/feed"
	"rss-notifier/mail"
	"rss-notifier/pkg/notifier"
	"rss-notifier/sender"
	"rss-notifier/server"
	"rss-notifier/storage"
	"rss-notifier/verify"
)

var sendFlag = flag.Bool("send", false, "run one notification pass and exit instead of serving HTTP")

func main() {
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	ctx := context.Background()
	cfg := config.Get()

	if cfg.FeedSource == "" {
		logger.Error("feed_source must be configured")
		os.Exit(1)
	}

	store, err := newStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	feedClient := feed.New(cfg.FeedSource, cfg.FeedUserAgent, logger)

	var provider mail.Provider
	if cfg.MailerSendToken == "" {
		logger.Warn("No MailerSend token configured, emails will be logged instead of sent")
		provider = mail.NewMockProvider(logger)
	} else {
		ms, err := mail.NewMailerSend(cfg.MailerSendToken, cfg.MailerSendPlan, logger)
		if err != nil {
			logger.Error("Failed to initialize MailerSend", "error", err)
			os.Exit(1)
		}
		provider = ms
	}

	mailer := mail.New(provider, logger,
		notifier.Contact{Email: cfg.FromEmail, Name: cfg.FromName},
		cfg.SubjectNewEntry, cfg.UnsubscribeURL)

	runner := sender.New(feedClient, store, mailer, logger)

	if *sendFlag {
		if err := runner.Run(ctx); err != nil {
			logger.Error("Notification run failed", "error", err)
			os.Exit(1)
		}
		return
	}

	verifier := verify.New(cfg.VerifierAPIKey, logger)
	srv := server.New(store, verifier, runner, logger)
	if err := srv.ListenAndServe(cfg.Port, cfg.CORSOrigins); err != nil {
		logger.Error("HTTP server failed", "error", err)
		os.Exit(1)
	}
}

func newStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (*storage.Store, error) {
	salt := []byte(cfg.StorageSalt)

	if cfg.LocalStorage != "" {
		if err := os.MkdirAll(cfg.LocalStorage, 0o700); err != nil {
			return nil, err
		}
		logger.Info("Using local storage", "path", cfg.LocalStorage)
		return storage.New(nil, "", cfg.LocalStorage, salt, logger), nil
	}

	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	logger.Info("Using Cloud Storage", "bucket", cfg.StorageBucket)
	return storage.New(client, cfg.StorageBucket, "", salt, logger), nil
}
